// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

import "sort"

// EnumRange is an inclusive range [Low, High] of integer values mapped
// to one label.
type EnumRange struct {
	Label string
	Low   int64
	High  int64
}

// EnumDecl declares an enumeration: it owns an integer container
// declaration and an ordered list of label->range mappings. Overlapping
// ranges are permitted — LabelsForValue returns every label that covers
// a value, and the source's "pick the first" policy for variant
// selection is preserved deliberately (see DESIGN.md's Open Questions).
type EnumDecl struct {
	declBase

	container *IntDecl
	ranges    []EnumRange
}

// NewEnumUnsigned creates an enum over an unsigned integer container.
func NewEnumUnsigned(container *IntDecl) (*EnumDecl, error) {
	return newEnum(container, false)
}

// NewEnumSigned creates an enum over a signed integer container.
func NewEnumSigned(container *IntDecl) (*EnumDecl, error) {
	return newEnum(container, true)
}

func newEnum(container *IntDecl, signed bool) (*EnumDecl, error) {
	if container == nil {
		return nil, newErr("NewEnum", KindInvalidArgument, "container must not be nil")
	}
	if container.Signed() != signed {
		return nil, newErr("NewEnum", KindInvalidArgument, "container signedness does not match")
	}
	container.refInc()
	return &EnumDecl{
		declBase:  declBase{kind: KindEnum, alignBits: container.Alignment()},
		container: container,
	}, nil
}

func (d *EnumDecl) Container() *IntDecl    { return d.container }
func (d *EnumDecl) Ranges() []EnumRange    { return d.ranges }

// MapRange adds a label->[lo,hi] mapping. lo must be <= hi. Rejected once
// frozen.
func (d *EnumDecl) MapRange(label string, lo, hi int64) error {
	if err := d.checkMutable("EnumDecl.MapRange"); err != nil {
		return err
	}
	if label == "" {
		return newErr("EnumDecl.MapRange", KindInvalidArgument, "label must not be empty")
	}
	if lo > hi {
		return newErr("EnumDecl.MapRange", KindInvalidArgument, "lo must be <= hi")
	}
	d.ranges = append(d.ranges, EnumRange{Label: label, Low: lo, High: hi})
	return nil
}

// LabelsForValue returns every label whose range contains v, in the
// order they were mapped. Multi-valued when ranges overlap.
func (d *EnumDecl) LabelsForValue(v int64) []string {
	var labels []string
	for _, r := range d.ranges {
		if v >= r.Low && v <= r.High {
			labels = append(labels, r.Label)
		}
	}
	return labels
}

// ValueForLabel returns the low bound of the first range mapped to
// label, and whether label was found at all.
func (d *EnumDecl) ValueForLabel(label string) (int64, bool) {
	for _, r := range d.ranges {
		if r.Label == label {
			return r.Low, true
		}
	}
	return 0, false
}

// LabelSet returns the distinct set of labels mapped by this enum, used
// by variant attachment to check label-set equality against its
// selector.
func (d *EnumDecl) LabelSet() map[string]struct{} {
	set := make(map[string]struct{})
	for _, r := range d.ranges {
		set[r.Label] = struct{}{}
	}
	return set
}

// SortedLabels returns LabelSet's keys sorted, for deterministic TSDL
// emission.
func (d *EnumDecl) SortedLabels() []string {
	set := d.LabelSet()
	out := make([]string, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func (d *EnumDecl) freeze() {
	d.markFrozen()
	d.container.freeze()
}
