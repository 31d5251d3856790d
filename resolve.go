// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

// RootKind names one of the six canonical scopes searched, in order,
// when resolving a dynamic-array length or variant selector reference
//: trace packet header, stream packet context,
// stream event header, stream event context, event-specific context,
// and finally the event payload itself.
type RootKind uint8

const (
	RootPacketHeader RootKind = iota
	RootPacketContext
	RootEventHeader
	RootStreamEventContext
	RootEventContext
	RootPayload
)

// RootDecls bundles the declaration trees of the six canonical scopes
// that are in effect while resolving one event class's context/payload.
// Any field may be nil if the corresponding scope was never declared.
type RootDecls struct {
	PacketHeader       Declaration
	PacketContext      Declaration
	EventHeader        Declaration
	StreamEventContext Declaration
	EventContext       Declaration
	Payload            Declaration
}

func (r RootDecls) get(k RootKind) Declaration {
	switch k {
	case RootPacketHeader:
		return r.PacketHeader
	case RootPacketContext:
		return r.PacketContext
	case RootEventHeader:
		return r.EventHeader
	case RootStreamEventContext:
		return r.StreamEventContext
	case RootEventContext:
		return r.EventContext
	case RootPayload:
		return r.Payload
	default:
		return nil
	}
}

// canonicalOrder lists the roots outer-to-inner.
var canonicalOrder = []RootKind{
	RootPacketHeader, RootPacketContext, RootEventHeader, RootStreamEventContext, RootEventContext, RootPayload,
}

// FieldRef is a resolved reference to an unsigned-integer or enum field,
// recorded directly on the referencing node so that runtime lookup is
// O(depth), never O(name-length).
type FieldRef struct {
	Root RootKind
	Path []int // struct-member indices from Root's declaration down to the target field
}

// ancestorFrame tracks one enclosing StructDecl while walking down a
// declaration tree: the struct itself, the absolute path to reach it
// from its root, and which child index within it led deeper (so a
// dynamic-array/variant reference can be restricted to *prior*
// siblings).
type ancestorFrame struct {
	st       *StructDecl
	absPath  []int
	atIndex  int
}

// Resolve walks every declaration reachable from roots and, for each
// DynamicArrayDecl and VariantDecl, resolves its named reference into a
// FieldRef. It is idempotent: a field already carrying a FieldRef is
// left untouched. Called by Attach before it freezes.
func Resolve(roots RootDecls) error {
	for _, rk := range canonicalOrder {
		root := roots.get(rk)
		if root == nil {
			continue
		}
		if err := resolveNode(root, rk, nil, roots); err != nil {
			return err
		}
	}
	return nil
}

func resolveNode(decl Declaration, ownRoot RootKind, ancestors []ancestorFrame, roots RootDecls) error {
	switch v := decl.(type) {
	case *StructDecl:
		absPath := absPathOf(ancestors)
		for i, m := range v.members {
			frame := ancestorFrame{st: v, absPath: absPath, atIndex: i}
			if err := resolveNode(m.Decl, ownRoot, append(ancestors, frame), roots); err != nil {
				return err
			}
		}
		return nil
	case *StaticArrayDecl:
		return resolveNode(v.element, ownRoot, ancestors, roots)
	case *DynamicArrayDecl:
		if v.lengthRef == nil {
			ref, target, err := resolveName(v.lengthName, ownRoot, ancestors, roots)
			if err != nil {
				return err
			}
			intDecl, ok := target.(*IntDecl)
			if !ok || intDecl.Signed() {
				return newErr("Resolve", KindResolutionFailed, "dynamic-array length field must be an unsigned integer: "+v.lengthName)
			}
			v.lengthRef = ref
		}
		return resolveNode(v.element, ownRoot, ancestors, roots)
	case *VariantDecl:
		if v.selectorDecl == nil {
			if v.selectorName == "" {
				return newErr("Resolve", KindResolutionFailed, "variant has neither a selector name nor a bound selector declaration")
			}
			ref, target, err := resolveName(v.selectorName, ownRoot, ancestors, roots)
			if err != nil {
				return err
			}
			enumDecl, ok := target.(*EnumDecl)
			if !ok {
				return newErr("Resolve", KindResolutionFailed, "variant selector field must be an enum: "+v.selectorName)
			}
			v.selectorDecl = enumDecl
			v.selectorRef = ref
		}
		if err := v.checkLabelSet(); err != nil {
			return err
		}
		for _, o := range v.options {
			if err := resolveNode(o.Decl, ownRoot, ancestors, roots); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}

func absPathOf(ancestors []ancestorFrame) []int {
	if len(ancestors) == 0 {
		return nil
	}
	last := ancestors[len(ancestors)-1]
	path := make([]int, 0, len(last.absPath)+1)
	path = append(path, last.absPath...)
	path = append(path, last.atIndex)
	return path
}

// resolveName implements the canonical-order search: first the prior
// siblings in each enclosing struct of the current root (innermost
// ancestor outward), then every earlier (outer) canonical root in full.
func resolveName(name string, ownRoot RootKind, ancestors []ancestorFrame, roots RootDecls) (*FieldRef, Declaration, error) {
	for i := len(ancestors) - 1; i >= 0; i-- {
		frame := ancestors[i]
		for idx := 0; idx < frame.atIndex; idx++ {
			m := frame.st.members[idx]
			if m.Name == name {
				path := append(append([]int{}, frame.absPath...), idx)
				return &FieldRef{Root: ownRoot, Path: path}, m.Decl, nil
			}
		}
	}
	for _, rk := range canonicalOrder {
		if rk == ownRoot {
			break // outer roots only; reached our own root without a match
		}
		root := roots.get(rk)
		if root == nil {
			continue
		}
		if path, target, ok := findInTree(root, name, nil); ok {
			return &FieldRef{Root: rk, Path: path}, target, nil
		}
	}
	return nil, nil, newErr("resolveName", KindResolutionFailed, "unresolved field reference: "+name)
}

// findInTree does a flat DFS for a struct member named name, used only
// for cross-root (outer-scope) lookups where every field is already
// known to be fully populated by the time the inner root is read.
func findInTree(decl Declaration, name string, path []int) ([]int, Declaration, bool) {
	st, ok := decl.(*StructDecl)
	if !ok {
		return nil, nil, false
	}
	for i, m := range st.members {
		p := append(append([]int{}, path...), i)
		if m.Name == name {
			return p, m.Decl, true
		}
		if found, target, ok := findInTree(m.Decl, name, p); ok {
			return found, target, ok
		}
	}
	return nil, nil, false
}

// Attach resolves every reference in roots and then freezes every
// declaration reachable from them. StreamClass.AddEventClass calls it;
// TraceClass.AddStreamClass freezes the packet header without resolving.
func Attach(roots RootDecls) error {
	if err := Resolve(roots); err != nil {
		return err
	}
	for _, rk := range canonicalOrder {
		if d := roots.get(rk); d != nil {
			freezeDecl(d)
		}
	}
	return nil
}

// lookupPath walks idx-by-idx down a Definition tree, used at runtime by
// dynamic-array length lookup and CurrentOption to follow a FieldRef in
// O(depth).
func lookupPath(root Definition, path []int) (Definition, error) {
	cur := root
	for _, idx := range path {
		sd, ok := cur.(*StructDef)
		if !ok {
			return nil, newErr("lookupPath", KindResolutionFailed, "path traverses a non-struct definition")
		}
		if idx < 0 || idx >= len(sd.children) {
			return nil, newErr("lookupPath", KindResolutionFailed, "path index out of range")
		}
		cur = sd.children[idx]
	}
	return cur, nil
}
