// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

import "sync/atomic"

// Kind tags the closed set of declaration shapes CTF supports. Declaration
// kinds map to a tagged union, not an open-ended class hierarchy.
type Kind uint8

const (
	KindInt Kind = iota
	KindFloat
	KindEnum
	KindString
	KindStruct
	KindVariant
	KindStaticArray
	KindDynamicArray
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindEnum:
		return "enum"
	case KindString:
		return "string"
	case KindStruct:
		return "struct"
	case KindVariant:
		return "variant"
	case KindStaticArray:
		return "static_array"
	case KindDynamicArray:
		return "dynamic_array"
	default:
		return "unknown"
	}
}

// Encoding is the preferred character encoding of a string declaration or
// an 8-bit character-array integer element.
type Encoding uint8

const (
	EncodingNone Encoding = iota
	EncodingASCII
	EncodingUTF8
)

// Base is the preferred display radix for an integer declaration.
type Base uint8

const (
	BaseDecimal Base = iota
	BaseHex
	BaseOctal
	BaseBinary
)

// Declaration is a node in the schema DAG.
// Declarations are immutable once Freeze has been called, directly or
// transitively via attachment to a stream class; every mutator checks
// Frozen() first and returns ErrFrozen rather than silently succeeding.
type Declaration interface {
	Kind() Kind
	Alignment() uint32
	Frozen() bool

	// freeze marks this node and, for containers, every descendant as
	// frozen. Idempotent.
	freeze()

	// refInc/refDec track the shared-ownership refcount; Go's GC keeps
	// the node alive regardless, so these exist to let tests and
	// diagnostics assert the lifecycle, not to drive actual memory
	// reclamation.
	refInc() int32
	refDec() int32
}

// declBase is embedded by every concrete declaration kind.
type declBase struct {
	kind      Kind
	alignBits uint32
	frozen    atomic.Bool
	refs      atomic.Int32
}

func (d *declBase) Kind() Kind          { return d.kind }
func (d *declBase) Alignment() uint32   { return d.alignBits }
func (d *declBase) Frozen() bool        { return d.frozen.Load() }
func (d *declBase) refInc() int32       { return d.refs.Add(1) }
func (d *declBase) refDec() int32       { return d.refs.Add(-1) }
func (d *declBase) checkMutable(op string) error {
	if d.frozen.Load() {
		return newErr(op, KindFrozen, "declaration is frozen")
	}
	return nil
}

// markFrozen is a convenience used by freeze() implementations.
func (d *declBase) markFrozen() { d.frozen.Store(true) }
