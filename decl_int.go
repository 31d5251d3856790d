// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

// IntDecl declares a fixed-width integer field: 1..64 bits, a byte
// order, signedness, a preferred display base, an optional character
// encoding (when the integer is used as an array/sequence element
// representing text), and an optional mapping to a clock class.
type IntDecl struct {
	declBase

	widthBits uint8
	order     ByteOrder
	signed    bool
	base      Base
	encoding  Encoding
	clock     *ClockClass
}

// NewInt creates an unattached, mutable integer declaration. width must
// be in 1..64; an alignment of 0 is treated as 1 bit.
func NewInt(width uint8, order ByteOrder, signed bool, base Base, alignBits uint32) (*IntDecl, error) {
	if width == 0 || width > 64 {
		return nil, newErr("NewInt", KindInvalidArgument, "width must be in 1..64")
	}
	if alignBits == 0 {
		alignBits = 1
	}
	return &IntDecl{
		declBase:  declBase{kind: KindInt, alignBits: alignBits},
		widthBits: width,
		order:     order,
		signed:    signed,
		base:      base,
	}, nil
}

func (d *IntDecl) Width() uint8      { return d.widthBits }
func (d *IntDecl) Order() ByteOrder  { return d.order }
func (d *IntDecl) Signed() bool      { return d.signed }
func (d *IntDecl) DisplayBase() Base { return d.base }
func (d *IntDecl) Encoding() Encoding { return d.encoding }
func (d *IntDecl) Clock() *ClockClass { return d.clock }

// IsCharByte reports whether this integer is an 8-bit, byte-aligned,
// character-encoded field, which lets an array of it be represented as
// a byte range rather than per-element definitions.
func (d *IntDecl) IsCharByte() bool {
	return d.widthBits == 8 && d.alignBits == 8 && d.encoding != EncodingNone
}

// SetEncoding sets the preferred character encoding. Rejected once frozen.
func (d *IntDecl) SetEncoding(e Encoding) error {
	if err := d.checkMutable("IntDecl.SetEncoding"); err != nil {
		return err
	}
	d.encoding = e
	return nil
}

// SetClock maps this integer to a clock class (the field stores raw tick
// counts against that clock, e.g. an event header's timestamp). Rejected
// once frozen.
func (d *IntDecl) SetClock(c *ClockClass) error {
	if err := d.checkMutable("IntDecl.SetClock"); err != nil {
		return err
	}
	d.clock = c
	return nil
}

func (d *IntDecl) freeze() { d.markFrozen() }
