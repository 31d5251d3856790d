// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

import (
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// StringDecl declares a NUL-terminated character string field with a
// preferred encoding.
type StringDecl struct {
	declBase
	encoding Encoding
}

// NewString creates a string declaration with the given encoding. String
// fields are always byte-aligned.
func NewString(enc Encoding) *StringDecl {
	return &StringDecl{
		declBase: declBase{kind: KindString, alignBits: 8},
		encoding: enc,
	}
}

func (d *StringDecl) Encoding() Encoding { return d.encoding }

func (d *StringDecl) freeze() { d.markFrozen() }

// textEncoding resolves a StringDecl's declared Encoding to a
// golang.org/x/text/encoding.Encoding used to validate (and, for
// transcoding consumers, round-trip) the bytes of a string field.
// EncodingNone has no validation: the bytes are opaque to this layer.
func textEncoding(e Encoding) encoding.Encoding {
	switch e {
	case EncodingUTF8:
		return unicode.UTF8
	case EncodingASCII:
		// CTF's "ASCII" encoding is UTF-8's 7-bit subset; validated with
		// the same codec and an additional high-bit check in
		// validateText below.
		return unicode.UTF8
	default:
		return nil
	}
}

// validateText checks s against decl's declared encoding, returning
// ErrFormatMismatch if it can't possibly have been produced by that
// encoding. A nil/None encoding accepts anything.
func validateText(enc Encoding, s []byte) error {
	codec := textEncoding(enc)
	if codec == nil {
		return nil
	}
	if _, err := codec.NewDecoder().Bytes(s); err != nil {
		return wrapErr("validateText", KindFormatMismatch, "string is not valid for its declared encoding", err)
	}
	// The x/text UTF-8 decoder substitutes U+FFFD for invalid sequences
	// rather than failing, so invalid UTF-8 is rejected explicitly.
	if !utf8.Valid(s) {
		return newErr("validateText", KindFormatMismatch, "string is not valid for its declared encoding")
	}
	if enc == EncodingASCII {
		for _, b := range s {
			if b >= 0x80 {
				return newErr("validateText", KindFormatMismatch, "byte >= 0x80 in an ASCII-encoded string")
			}
		}
	}
	return nil
}
