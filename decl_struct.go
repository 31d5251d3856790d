// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

// StructMember is one (name, declaration) pair within a StructDecl, in
// declaration order.
type StructMember struct {
	Name string
	Decl Declaration
}

// StructDecl declares an ordered sequence of named members, aligned to
// the maximum member alignment and never to less than 8 bits.
type StructDecl struct {
	declBase
	members []StructMember
	byName  map[string]int
}

// NewStruct creates an empty, mutable structure declaration.
func NewStruct() *StructDecl {
	return &StructDecl{
		declBase: declBase{kind: KindStruct, alignBits: 8},
		byName:   make(map[string]int),
	}
}

// Members returns the ordered member list. Callers must not mutate the
// returned slice.
func (d *StructDecl) Members() []StructMember { return d.members }

// IndexOf returns the index of member name, or -1 if absent.
func (d *StructDecl) IndexOf(name string) int {
	if i, ok := d.byName[name]; ok {
		return i
	}
	return -1
}

// AppendMember adds (name, decl) as the next member. Forbidden if a
// member with the same name already exists, or once frozen. Adjusts the
// struct's own alignment to max(existing, decl.Alignment()).
func (d *StructDecl) AppendMember(name string, decl Declaration) error {
	if err := d.checkMutable("StructDecl.AppendMember"); err != nil {
		return err
	}
	if name == "" {
		return newErr("StructDecl.AppendMember", KindInvalidArgument, "name must not be empty")
	}
	if decl == nil {
		return newErr("StructDecl.AppendMember", KindInvalidArgument, "decl must not be nil")
	}
	if _, exists := d.byName[name]; exists {
		return newErr("StructDecl.AppendMember", KindInvalidArgument, "duplicate member name: "+name)
	}
	decl.refInc()
	d.byName[name] = len(d.members)
	d.members = append(d.members, StructMember{Name: name, Decl: decl})
	if decl.Alignment() > d.alignBits {
		d.alignBits = decl.Alignment()
	}
	return nil
}

func (d *StructDecl) freeze() {
	d.markFrozen()
	for _, m := range d.members {
		freezeDecl(m.Decl)
	}
}

// freezeDecl calls the unexported freeze() through the Declaration
// interface; it exists because freeze() itself is not part of the
// exported Declaration surface (only Frozen() is).
func freezeDecl(decl Declaration) {
	switch v := decl.(type) {
	case *IntDecl:
		v.freeze()
	case *FloatDecl:
		v.freeze()
	case *EnumDecl:
		v.freeze()
	case *StringDecl:
		v.freeze()
	case *StructDecl:
		v.freeze()
	case *VariantDecl:
		v.freeze()
	case *StaticArrayDecl:
		v.freeze()
	case *DynamicArrayDecl:
		v.freeze()
	}
}
