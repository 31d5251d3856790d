// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

// VariantOption is one (label, declaration) pair within a VariantDecl.
type VariantOption struct {
	Label string
	Decl  Declaration
}

// VariantDecl declares a tagged union selected by a sibling enum
// field. The selector can be supplied up front by name (resolved at
// attachment time) or bound directly via
// SetSelectorDecl when the caller already holds the enum declaration.
type VariantDecl struct {
	declBase

	selectorName string
	selectorDecl *EnumDecl
	selectorRef  *FieldRef // populated by Resolve when selectorName is used

	options []VariantOption
	byLabel map[string]int
}

// NewVariant creates a variant whose selector will be resolved by name
// at attachment time.
func NewVariant(selectorName string) (*VariantDecl, error) {
	if selectorName == "" {
		return nil, newErr("NewVariant", KindInvalidArgument, "selectorName must not be empty")
	}
	return &VariantDecl{
		declBase:     declBase{kind: KindVariant, alignBits: 8},
		selectorName: selectorName,
		byLabel:      make(map[string]int),
	}, nil
}

// NewVariantUnresolved creates a variant without a selector name; the
// caller must call SetSelectorDecl before attachment.
func NewVariantUnresolved() *VariantDecl {
	return &VariantDecl{
		declBase: declBase{kind: KindVariant, alignBits: 8},
		byLabel:  make(map[string]int),
	}
}

// SetSelectorDecl binds the selector enum directly, bypassing name
// resolution. Rejected once frozen.
func (d *VariantDecl) SetSelectorDecl(enum *EnumDecl) error {
	if err := d.checkMutable("VariantDecl.SetSelectorDecl"); err != nil {
		return err
	}
	if enum == nil {
		return newErr("VariantDecl.SetSelectorDecl", KindInvalidArgument, "enum must not be nil")
	}
	d.selectorDecl = enum
	return nil
}

func (d *VariantDecl) SelectorName() string    { return d.selectorName }
func (d *VariantDecl) SelectorDecl() *EnumDecl { return d.selectorDecl }
func (d *VariantDecl) SelectorRef() *FieldRef  { return d.selectorRef }
func (d *VariantDecl) Options() []VariantOption { return d.options }

// OptionIndex returns the index of the option labeled label, or -1.
func (d *VariantDecl) OptionIndex(label string) int {
	if i, ok := d.byLabel[label]; ok {
		return i
	}
	return -1
}

// AppendOption adds (label, decl) as a variant option. Forbidden once
// frozen or if label is already used.
func (d *VariantDecl) AppendOption(label string, decl Declaration) error {
	if err := d.checkMutable("VariantDecl.AppendOption"); err != nil {
		return err
	}
	if label == "" {
		return newErr("VariantDecl.AppendOption", KindInvalidArgument, "label must not be empty")
	}
	if decl == nil {
		return newErr("VariantDecl.AppendOption", KindInvalidArgument, "decl must not be nil")
	}
	if _, exists := d.byLabel[label]; exists {
		return newErr("VariantDecl.AppendOption", KindInvalidArgument, "duplicate option label: "+label)
	}
	decl.refInc()
	d.byLabel[label] = len(d.options)
	d.options = append(d.options, VariantOption{Label: label, Decl: decl})
	return nil
}

// checkLabelSet verifies this variant's option labels equal its
// selector's label set exactly.
func (d *VariantDecl) checkLabelSet() error {
	if d.selectorDecl == nil {
		return newErr("VariantDecl.checkLabelSet", KindResolutionFailed, "selector enum not resolved")
	}
	enumLabels := d.selectorDecl.LabelSet()
	if len(enumLabels) != len(d.byLabel) {
		return newErr("VariantDecl.checkLabelSet", KindInvalidArgument, "option label set does not equal selector enum label set")
	}
	for label := range d.byLabel {
		if _, ok := enumLabels[label]; !ok {
			return newErr("VariantDecl.checkLabelSet", KindInvalidArgument, "option label not in selector enum: "+label)
		}
	}
	return nil
}

func (d *VariantDecl) freeze() {
	d.markFrozen()
	for _, o := range d.options {
		freezeDecl(o.Decl)
	}
	if d.selectorDecl != nil {
		d.selectorDecl.freeze()
	}
}
