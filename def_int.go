// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

// IntDef is a runtime integer value paired with its IntDecl.
type IntDef struct {
	defBase
	decl  *IntDecl
	value int64
}

// Int returns the signed interpretation of the stored value.
func (d *IntDef) Int() int64 { return d.value }

// Uint returns the unsigned interpretation of the stored value, masked
// to the declared width.
func (d *IntDef) Uint() uint64 {
	if d.decl.Width() == 64 {
		return uint64(d.value)
	}
	return uint64(d.value) & ((uint64(1) << d.decl.Width()) - 1)
}

// SetInt stores v, truncated to the declared width.
func (d *IntDef) SetInt(v int64) {
	w := d.decl.Width()
	if w == 64 {
		d.value = v
		return
	}
	shift := 64 - w
	d.value = int64(uint64(v)<<shift) >> shift
}

// SetUint stores v, masked to the declared width.
func (d *IntDef) SetUint(v uint64) {
	w := d.decl.Width()
	if w < 64 {
		v &= (uint64(1) << w) - 1
	}
	d.value = int64(v)
}

func (d *IntDef) read(pos *Position) error {
	if err := pos.Align(d.decl.Alignment(), false); err != nil {
		return err
	}
	v, err := pos.ReadInt(d.decl.Width(), d.decl.Signed(), d.decl.Order())
	if err != nil {
		return err
	}
	d.value = v
	return nil
}

func (d *IntDef) write(pos *Position) error {
	if err := pos.Align(d.decl.Alignment(), true); err != nil {
		return err
	}
	return pos.WriteBits(uint64(d.value), d.decl.Width(), d.decl.Order())
}
