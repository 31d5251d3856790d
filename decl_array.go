// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

// StaticArrayDecl declares a fixed-length, homogeneous array.
type StaticArrayDecl struct {
	declBase
	element Declaration
	length  uint64
}

// NewStaticArray creates a static array of length (>= 0) elements, each
// shaped by element.
func NewStaticArray(element Declaration, length uint64) (*StaticArrayDecl, error) {
	if element == nil {
		return nil, newErr("NewStaticArray", KindInvalidArgument, "element must not be nil")
	}
	element.refInc()
	return &StaticArrayDecl{
		declBase: declBase{kind: KindStaticArray, alignBits: element.Alignment()},
		element:  element,
		length:   length,
	}, nil
}

func (d *StaticArrayDecl) Element() Declaration { return d.element }
func (d *StaticArrayDecl) Length() uint64        { return d.length }

func (d *StaticArrayDecl) freeze() {
	d.markFrozen()
	freezeDecl(d.element)
}

// DynamicArrayDecl declares a variable-length array whose length is
// given by a preceding sibling unsigned-integer field.
type DynamicArrayDecl struct {
	declBase
	element    Declaration
	lengthName string
	lengthRef  *FieldRef // populated by Resolve
}

// NewDynamicArray creates a dynamic array shaped by element, whose length
// is read from the sibling field named lengthFieldName at resolution
// time.
func NewDynamicArray(element Declaration, lengthFieldName string) (*DynamicArrayDecl, error) {
	if element == nil {
		return nil, newErr("NewDynamicArray", KindInvalidArgument, "element must not be nil")
	}
	if lengthFieldName == "" {
		return nil, newErr("NewDynamicArray", KindInvalidArgument, "lengthFieldName must not be empty")
	}
	element.refInc()
	return &DynamicArrayDecl{
		declBase:   declBase{kind: KindDynamicArray, alignBits: element.Alignment()},
		element:    element,
		lengthName: lengthFieldName,
	}, nil
}

func (d *DynamicArrayDecl) Element() Declaration { return d.element }
func (d *DynamicArrayDecl) LengthName() string    { return d.lengthName }
func (d *DynamicArrayDecl) LengthRef() *FieldRef  { return d.lengthRef }

func (d *DynamicArrayDecl) freeze() {
	d.markFrozen()
	freezeDecl(d.element)
}
