// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

// StringDef is a runtime NUL-terminated string value.
type StringDef struct {
	defBase
	decl  *StringDecl
	value string
}

func (d *StringDef) Value() string { return d.value }

// SetValue stores s, validating it against the declaration's character
// encoding.
func (d *StringDef) SetValue(s string) error {
	if err := validateText(d.decl.Encoding(), []byte(s)); err != nil {
		return err
	}
	d.value = s
	return nil
}

func (d *StringDef) read(pos *Position) error {
	if err := pos.Align(uint32(d.decl.Alignment()), false); err != nil {
		return err
	}
	var buf []byte
	for {
		b, err := pos.PeekByte(uint32(len(buf)))
		if err != nil {
			return err
		}
		if b == 0 {
			break
		}
		buf = append(buf, b)
	}
	if _, err := pos.ReadBytes(uint32(len(buf)) + 1); err != nil { // consume string + NUL
		return err
	}
	if err := validateText(d.decl.Encoding(), buf); err != nil {
		return err
	}
	d.value = string(buf)
	return nil
}

func (d *StringDef) write(pos *Position) error {
	if err := pos.Align(uint32(d.decl.Alignment()), true); err != nil {
		return err
	}
	buf := append([]byte(d.value), 0)
	return pos.WriteBytes(buf)
}
