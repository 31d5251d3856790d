// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

// VariantDef is a runtime tagged union: only its currently-selected
// option is ever read or written.
type VariantDef struct {
	defBase
	decl   *VariantDecl
	active Definition
	label  string
}

// CurrentOption resolves the selector sibling's current value to a
// label and returns (lazily creating) that option's Definition. When
// the selector enum's ranges overlap and a value maps to more than one
// label, the first mapped label that also names one of this variant's
// options wins.
func (d *VariantDef) CurrentOption() (Definition, error) {
	if d.active != nil {
		return d.active, nil
	}
	selectorDef, err := d.scope.resolveRef(d.decl.SelectorRef())
	if err != nil {
		return nil, wrapErr("VariantDef.CurrentOption", KindResolutionFailed, "selector field did not resolve", err)
	}
	enumDef, ok := selectorDef.(*EnumDef)
	if !ok {
		return nil, newErr("VariantDef.CurrentOption", KindResolutionFailed, "selector field is not an enum")
	}
	for _, label := range enumDef.Labels() {
		idx := d.decl.OptionIndex(label)
		if idx < 0 {
			continue
		}
		opt := d.decl.options[idx]
		child, err := CreateFrom(opt.Decl, d.scope, label, idx, d.path)
		if err != nil {
			return nil, err
		}
		d.active = child
		d.label = label
		return child, nil
	}
	return nil, newErr("VariantDef.CurrentOption", KindResolutionFailed, "selector value matches no variant option")
}

// SelectedLabel returns the label of the currently-resolved option, or
// "" if CurrentOption has not been called yet.
func (d *VariantDef) SelectedLabel() string { return d.label }

func (d *VariantDef) read(pos *Position) error {
	opt, err := d.CurrentOption()
	if err != nil {
		return err
	}
	return opt.read(pos)
}

func (d *VariantDef) write(pos *Position) error {
	opt, err := d.CurrentOption()
	if err != nil {
		return err
	}
	return opt.write(pos)
}
