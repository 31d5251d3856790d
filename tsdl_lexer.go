// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

import (
	"strings"
	"text/scanner"
)

// tsdlLexer wraps text/scanner (the same tokenizer go/parser itself is
// built on) with a one-token lookahead, the minimal extra the
// hand-written recursive-descent parser in tsdl_parser.go needs.
type tsdlLexer struct {
	sc       scanner.Scanner
	lookahead tsdlToken
	havePeek  bool
}

type tsdlToken struct {
	tok  rune
	text string
}

func newTSDLLexer(src string) *tsdlLexer {
	l := &tsdlLexer{}
	l.sc.Init(strings.NewReader(src))
	l.sc.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats | scanner.ScanStrings | scanner.ScanComments | scanner.SkipComments
	l.sc.Whitespace = 1<<'\t' | 1<<'\n' | 1<<'\r' | 1<<' '
	return l
}

func (l *tsdlLexer) next() tsdlToken {
	if l.havePeek {
		l.havePeek = false
		return l.lookahead
	}
	tok := l.sc.Scan()
	return tsdlToken{tok: tok, text: l.sc.TokenText()}
}

func (l *tsdlLexer) peek() tsdlToken {
	if !l.havePeek {
		l.lookahead = l.next()
		l.havePeek = true
	}
	return l.lookahead
}

func (l *tsdlLexer) pos() scanner.Position { return l.sc.Pos() }
