// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

import "sync"

// The package keeps two process-wide static float
// declarations (IEEE-754 single and double precision, native byte order)
// that the TSDL parser returns for those canonical splits, plus a
// reserved-keyword set used by the TSDL emitter to know when an
// identifier needs escaping. The C idiom's eager process-init/teardown
// globals become lazy, per-process singletons built on first use; there
// is nothing to tear down since Go reclaims them with the process.

var (
	float32FixtureOnce sync.Once
	float32Fixture     *FloatDecl

	float64FixtureOnce sync.Once
	float64Fixture     *FloatDecl
)

// defaultFloat32Decl returns the shared IEEE-754 single-precision
// declaration the TSDL parser reuses for a matching float.
func defaultFloat32Decl() *FloatDecl {
	float32FixtureOnce.Do(func() {
		d, err := NewFloat(23, 8, OrderNative, 32)
		if err != nil {
			panic(err) // unreachable: 1+23+8 == 32
		}
		float32Fixture = d
	})
	return float32Fixture
}

// defaultFloat64Decl returns the shared IEEE-754 double-precision
// declaration the TSDL parser reuses for a matching float.
func defaultFloat64Decl() *FloatDecl {
	float64FixtureOnce.Do(func() {
		d, err := NewFloat(52, 11, OrderNative, 64)
		if err != nil {
			panic(err) // unreachable: 1+52+11 == 64
		}
		float64Fixture = d
	})
	return float64Fixture
}

var (
	tsdlKeywordsOnce sync.Once
	tsdlKeywords     map[string]struct{}
)

// reservedTSDLKeywords returns the set of TSDL grammar keywords that must
// be escaped (wrapped as `_name`) when emitted as a bare identifier —
// member or type names that collide with grammar tokens such as "struct"
// or "event".
func reservedTSDLKeywords() map[string]struct{} {
	tsdlKeywordsOnce.Do(func() {
		words := []string{
			"align", "bool", "char", "clock", "const", "double", "enum",
			"event", "floating_point", "integer", "int", "long", "packet",
			"short", "signed", "stream", "string", "struct", "trace",
			"typealias", "typedef", "unsigned", "variant", "void",
			"environment", "callsite", "loglevel", "env",
		}
		tsdlKeywords = make(map[string]struct{}, len(words))
		for _, w := range words {
			tsdlKeywords[w] = struct{}{}
		}
	})
	return tsdlKeywords
}
