// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

// EnumDef is a runtime enum value: an integer paired with its EnumDecl,
// which maps it to zero or more labels.
type EnumDef struct {
	defBase
	decl  *EnumDecl
	value int64
}

func (d *EnumDef) Value() int64 { return d.value }
func (d *EnumDef) SetValue(v int64) { d.value = v }

// Labels returns every label whose range covers the current value.
func (d *EnumDef) Labels() []string { return d.decl.LabelsForValue(d.value) }

// SetLabel sets the value to the low bound of label's first mapped
// range. Returns ErrInvalidArgument if label is not mapped.
func (d *EnumDef) SetLabel(label string) error {
	v, ok := d.decl.ValueForLabel(label)
	if !ok {
		return newErr("EnumDef.SetLabel", KindInvalidArgument, "label not mapped: "+label)
	}
	d.value = v
	return nil
}

func (d *EnumDef) read(pos *Position) error {
	if err := pos.Align(d.decl.Alignment(), false); err != nil {
		return err
	}
	v, err := pos.ReadInt(d.decl.Container().Width(), d.decl.Container().Signed(), d.decl.Container().Order())
	if err != nil {
		return err
	}
	d.value = v
	return nil
}

func (d *EnumDef) write(pos *Position) error {
	if err := pos.Align(d.decl.Alignment(), true); err != nil {
		return err
	}
	return pos.WriteBits(uint64(d.value), d.decl.Container().Width(), d.decl.Container().Order())
}
