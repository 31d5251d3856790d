// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

// FloatDecl declares an IEEE-754 float field, decomposed into a mantissa
// bit count and an exponent bit count whose sum (plus the implicit sign
// bit) must be 32 or 64.
type FloatDecl struct {
	declBase

	mantissaBits uint8
	exponentBits uint8
	order        ByteOrder
}

// NewFloat creates an unattached float declaration. mantissaDigits is the
// stored mantissa width (23 for single precision, 52 for double);
// exponentDigits is 8 or 11 respectively. 1 + mantissaDigits +
// exponentDigits must equal 32 or 64.
func NewFloat(mantissaDigits, exponentDigits uint8, order ByteOrder, alignBits uint32) (*FloatDecl, error) {
	width := 1 + int(mantissaDigits) + int(exponentDigits)
	if width != 32 && width != 64 {
		return nil, newErr("NewFloat", KindUnsupported, "mantissa+exponent+1 must be 32 or 64")
	}
	if alignBits == 0 {
		alignBits = 1
	}
	return &FloatDecl{
		declBase:     declBase{kind: KindFloat, alignBits: alignBits},
		mantissaBits: mantissaDigits,
		exponentBits: exponentDigits,
		order:        order,
	}, nil
}

func (d *FloatDecl) MantissaDigits() uint8 { return d.mantissaBits }
func (d *FloatDecl) ExponentDigits() uint8 { return d.exponentBits }
func (d *FloatDecl) Order() ByteOrder      { return d.order }
func (d *FloatDecl) WidthBits() uint8      { return 1 + d.mantissaBits + d.exponentBits }

func (d *FloatDecl) freeze() { d.markFrozen() }
