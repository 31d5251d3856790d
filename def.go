// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

import "strconv"

// Definition is an instance node shaped by a Declaration, carrying its
// own value plus enough context (name, index, path, owning scope) to
// resolve sibling references at read/write time.
type Definition interface {
	Decl() Declaration
	Name() string
	Index() int
	Path() string
	Scope() *Scope

	read(pos *Position) error
	write(pos *Position) error
}

type defBase struct {
	decl  Declaration
	name  string
	index int
	path  string
	scope *Scope
}

func (d *defBase) Decl() Declaration { return d.decl }
func (d *defBase) Name() string      { return d.name }
func (d *defBase) Index() int        { return d.index }
func (d *defBase) Path() string      { return d.path }
func (d *defBase) Scope() *Scope     { return d.scope }

func childPath(parentPath, name string) string {
	if parentPath == "" {
		return name
	}
	return parentPath + "." + name
}

func arrayElementName(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}

// CreateFrom builds a Definition tree shaped by decl. Containers
// recursively create their children, naming array elements "[0]",
// "[1]", and so on. scope is the Scope this definition's sibling
// references (if any, elsewhere in the tree) will be resolved against;
// rootName seeds the dot-joined path. Creating an instance freezes decl
// (and everything below it); later mutators on it return ErrFrozen.
func CreateFrom(decl Declaration, scope *Scope, name string, index int, rootName string) (Definition, error) {
	if decl != nil {
		decl.freeze()
	}
	path := childPath(rootName, name)
	base := defBase{decl: decl, name: name, index: index, path: path, scope: scope}

	switch d := decl.(type) {
	case *IntDecl:
		return &IntDef{defBase: base, decl: d}, nil
	case *FloatDecl:
		return &FloatDef{defBase: base, decl: d}, nil
	case *EnumDecl:
		return &EnumDef{defBase: base, decl: d}, nil
	case *StringDecl:
		return &StringDef{defBase: base, decl: d}, nil
	case *StructDecl:
		return createStructDef(d, scope, base)
	case *VariantDecl:
		return &VariantDef{defBase: base, decl: d}, nil
	case *StaticArrayDecl:
		return createArrayDef(d, d.element, d.length, false, scope, base)
	case *DynamicArrayDecl:
		return createArrayDef(d, d.element, 0, true, scope, base)
	default:
		return nil, newErr("CreateFrom", KindInvalidArgument, "unknown declaration kind")
	}
}
