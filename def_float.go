// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

// FloatDef is a runtime float value paired with its FloatDecl.
type FloatDef struct {
	defBase
	decl  *FloatDecl
	value float64
}

func (d *FloatDef) Value() float64   { return d.value }
func (d *FloatDef) SetValue(v float64) { d.value = v }

func (d *FloatDef) read(pos *Position) error {
	if err := pos.Align(d.decl.Alignment(), false); err != nil {
		return err
	}
	v, err := pos.ReadFloat(d.decl.MantissaDigits(), d.decl.ExponentDigits(), d.decl.Order())
	if err != nil {
		return err
	}
	d.value = v
	return nil
}

func (d *FloatDef) write(pos *Position) error {
	if err := pos.Align(d.decl.Alignment(), true); err != nil {
		return err
	}
	return pos.WriteFloat(d.value, d.decl.MantissaDigits(), d.decl.ExponentDigits(), d.decl.Order())
}
