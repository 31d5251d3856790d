// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

// StructDef is a runtime structure value: an ordered vector of child
// Definitions mirroring its StructDecl's member order 1:1, so a FieldRef
// computed against the declaration indexes directly into children.
type StructDef struct {
	defBase
	decl     *StructDecl
	children []Definition
}

func createStructDef(decl *StructDecl, scope *Scope, base defBase) (*StructDef, error) {
	sd := &StructDef{defBase: base, decl: decl}
	sd.children = make([]Definition, len(decl.members))
	for i, m := range decl.members {
		child, err := CreateFrom(m.Decl, scope, m.Name, i, base.path)
		if err != nil {
			return nil, err
		}
		sd.children[i] = child
	}
	return sd, nil
}

// Children returns the ordered child definitions.
func (d *StructDef) Children() []Definition { return d.children }

// Field returns the child named name, or nil if absent.
func (d *StructDef) Field(name string) Definition {
	idx := d.decl.IndexOf(name)
	if idx < 0 {
		return nil
	}
	return d.children[idx]
}

func (d *StructDef) read(pos *Position) error {
	if err := pos.Align(uint32(d.decl.Alignment()), false); err != nil {
		return err
	}
	for _, c := range d.children {
		if err := c.read(pos); err != nil {
			return err
		}
	}
	return nil
}

func (d *StructDef) write(pos *Position) error {
	if err := pos.Align(uint32(d.decl.Alignment()), true); err != nil {
		return err
	}
	for _, c := range d.children {
		if err := c.write(pos); err != nil {
			return err
		}
	}
	return nil
}
