// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/scanner"

	"github.com/google/uuid"
)

// ParsedMetadata is the declaration DAG (plus the typealias table) a
// TSDL parse produces.
type ParsedMetadata struct {
	Trace     *TraceClass
	typealias map[string]Declaration
}

// ParseMetadata accepts either raw TSDL or a packetized metadata stream
// (detecting the packetized magic 0x75D11D57 at offset 0) and returns
// the parsed declaration DAG.
func ParseMetadata(data []byte) (*ParsedMetadata, error) {
	body := data
	if len(data) >= 4 && be32(data) == metadataMagic {
		b, err := unpacketizeMetadata(data)
		if err != nil {
			return nil, err
		}
		body = b
	}
	return parseTSDL(string(body))
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// unpacketizeMetadata strips the packetized-metadata header(s) (magic,
// UUID, CRC, length) off each chunk and concatenates the TSDL bodies.
func unpacketizeMetadata(data []byte) ([]byte, error) {
	var out bytes.Buffer
	for len(data) > 0 {
		if len(data) < 28 {
			return nil, newErr("unpacketizeMetadata", KindFormatMismatch, "truncated metadata packet header")
		}
		magic := be32(data)
		if magic != metadataMagic {
			return nil, newErr("unpacketizeMetadata", KindFormatMismatch, "bad metadata packet magic")
		}
		wantCRC := be32(data[20:24])
		length := be32(data[24:28])
		data = data[28:]
		if uint64(len(data)) < uint64(length) {
			return nil, newErr("unpacketizeMetadata", KindFormatMismatch, "truncated metadata packet body")
		}
		piece := data[:length]
		if crc32Of(piece) != wantCRC {
			return nil, newErr("unpacketizeMetadata", KindFormatMismatch, "metadata packet CRC mismatch")
		}
		out.Write(piece)
		data = data[length:]
	}
	return out.Bytes(), nil
}

// tsdlParser is a hand-written recursive-descent parser over tsdlLexer's
// tokens, the idiomatic Go answer for a small C-like DSL.
type tsdlParser struct {
	l         *tsdlLexer
	typealias map[string]Declaration
	trace     *TraceClass
	streams   map[int64]*StreamClass
}

func parseTSDL(src string) (*ParsedMetadata, error) {
	p := &tsdlParser{
		l:         newTSDLLexer(src),
		typealias: make(map[string]Declaration),
		streams:   make(map[int64]*StreamClass),
	}
	for {
		tok := p.l.peek()
		if tok.tok == scanner.EOF {
			break
		}
		if err := p.parseTopLevelBlock(); err != nil {
			return nil, err
		}
	}
	if p.trace == nil {
		return nil, newErr("ParseMetadata", KindFormatMismatch, "metadata has no trace block")
	}
	return &ParsedMetadata{Trace: p.trace, typealias: p.typealias}, nil
}

func (p *tsdlParser) parseTopLevelBlock() error {
	kw := p.l.next()
	if kw.tok != scanner.Ident {
		return p.errf("expected a block keyword, got %q", kw.text)
	}
	switch kw.text {
	case "trace":
		return p.parseTraceBlock()
	case "env":
		return p.parseEnvBlock()
	case "clock":
		return p.parseClockBlock()
	case "stream":
		return p.parseStreamBlock()
	case "event":
		return p.parseEventBlock()
	case "typealias":
		return p.parseTypealiasBlock()
	default:
		return p.errf("unknown block keyword %q", kw.text)
	}
}

func (p *tsdlParser) errf(format string, args ...any) error {
	return newErr("tsdlParser", KindFormatMismatch, p.l.pos().String()+": "+fmt.Sprintf(format, args...))
}

// expect consumes the next token and verifies its rune value.
func (p *tsdlParser) expect(tok rune) (tsdlToken, error) {
	t := p.l.next()
	if t.tok != tok {
		return t, p.errf("expected %q, got %q", string(tok), t.text)
	}
	return t, nil
}

// parseKeyValues reads `key = value;` or `key := typeExpr;` pairs until
// a closing '}' is reached, invoking cb for each.
func (p *tsdlParser) parseKeyValues(cb func(key string, isType bool, value string, typeDecl Declaration) error) error {
	if _, err := p.expect('{'); err != nil {
		return err
	}
	for {
		if p.l.peek().tok == '}' {
			p.l.next()
			return nil
		}
		key, err := p.parseDottedIdent()
		if err != nil {
			return err
		}
		assign := p.l.next()
		switch assign.tok {
		case ':':
			if _, err := p.expect('='); err != nil {
				return err
			}
			decl, err := p.parseTypeExpr()
			if err != nil {
				return err
			}
			if err := cb(key, true, "", decl); err != nil {
				return err
			}
		case '=':
			val, err := p.parseScalarValue()
			if err != nil {
				return err
			}
			if err := cb(key, false, val, nil); err != nil {
				return err
			}
		default:
			return p.errf("expected '=' or ':=' after %q, got %q", key, assign.text)
		}
		if _, err := p.expect(';'); err != nil {
			return err
		}
	}
}

func (p *tsdlParser) parseDottedIdent() (string, error) {
	first, err := p.expect(scanner.Ident)
	if err != nil {
		return "", err
	}
	name := first.text
	for p.l.peek().tok == '.' {
		p.l.next()
		part, err := p.expect(scanner.Ident)
		if err != nil {
			return "", err
		}
		name += "." + part.text
	}
	return name, nil
}

func (p *tsdlParser) parseScalarValue() (string, error) {
	t := p.l.next()
	switch t.tok {
	case scanner.String:
		s, err := strconv.Unquote(t.text)
		if err != nil {
			return "", p.errf("bad string literal %q", t.text)
		}
		return s, nil
	case scanner.Int:
		return t.text, nil
	case scanner.Ident:
		// Identifier values may be dotted, e.g. `map = clock.mono.value;`.
		name := t.text
		for p.l.peek().tok == '.' {
			p.l.next()
			part, err := p.expect(scanner.Ident)
			if err != nil {
				return "", err
			}
			name += "." + part.text
		}
		return name, nil
	case '-':
		n := p.l.next()
		return "-" + n.text, nil
	default:
		return "", p.errf("expected a scalar value, got %q", t.text)
	}
}

func (p *tsdlParser) parseTraceBlock() error {
	trace := NewTraceClass("")
	err := p.parseKeyValues(func(key string, isType bool, value string, decl Declaration) error {
		switch key {
		case "uuid":
			if u, err := uuid.Parse(value); err == nil {
				trace.SetUUID(u)
			}
		case "byte_order":
			if value == "be" {
				trace.SetNativeByteOrder(OrderBig)
			} else {
				trace.SetNativeByteOrder(OrderLittle)
			}
		case "packet.header":
			return trace.SetPacketHeaderDecl(decl)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if _, err := p.expect(';'); err != nil {
		return err
	}
	p.trace = trace
	return nil
}

func (p *tsdlParser) parseEnvBlock() error {
	err := p.parseKeyValues(func(key string, isType bool, value string, decl Declaration) error {
		if p.trace != nil {
			return p.trace.SetEnv(key, value)
		}
		return nil
	})
	if err != nil {
		return err
	}
	_, err = p.expect(';')
	return err
}

func (p *tsdlParser) parseClockBlock() error {
	clock := NewClockClass("")
	err := p.parseKeyValues(func(key string, isType bool, value string, decl Declaration) error {
		switch key {
		case "name":
			clock.Name = value
		case "description":
			clock.Description = value
		case "uuid":
			if u, err := uuid.Parse(value); err == nil {
				clock.UUID = u
			}
		case "freq":
			if n, err := strconv.ParseUint(value, 10, 64); err == nil {
				clock.FrequencyHz = n
			}
		case "precision":
			if n, err := strconv.ParseUint(value, 10, 64); err == nil {
				clock.Precision = n
			}
		case "offset_s":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				clock.OffsetSeconds = n
			}
		case "offset":
			if n, err := strconv.ParseUint(value, 10, 64); err == nil {
				clock.OffsetCycles = n
			}
		case "absolute":
			clock.OriginIsUnixEpoch = value == "1"
		}
		return nil
	})
	if err != nil {
		return err
	}
	if _, err := p.expect(';'); err != nil {
		return err
	}
	if p.trace != nil {
		p.trace.AddClockClass(clock)
	} else {
		clock.Register()
	}
	return nil
}

func (p *tsdlParser) parseStreamBlock() error {
	sc := NewStreamClass("")
	var id int64
	err := p.parseKeyValues(func(key string, isType bool, value string, decl Declaration) error {
		switch key {
		case "id":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				id = n
			}
		case "packet.context":
			return sc.SetPacketContextDecl(decl)
		case "event.header":
			return sc.SetEventHeaderDecl(decl)
		case "event.context":
			return sc.SetEventContextDecl(decl)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if _, err := p.expect(';'); err != nil {
		return err
	}
	if p.trace != nil {
		if err := p.trace.AddStreamClass(sc); err != nil {
			return err
		}
	}
	p.streams[id] = sc
	return nil
}

func (p *tsdlParser) parseEventBlock() error {
	ec := NewEventClass("")
	var streamID int64
	err := p.parseKeyValues(func(key string, isType bool, value string, decl Declaration) error {
		switch key {
		case "name":
			// The event class was created before its name was known, so
			// the name is set on the unexported field directly.
			ec.name = value
		case "id":
			if n, err := strconv.ParseUint(value, 10, 64); err == nil {
				return ec.SetID(n)
			}
		case "stream_id":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				streamID = n
			}
		case "loglevel":
			if n, err := strconv.ParseInt(value, 10, 32); err == nil {
				ec.SetLogLevel(int32(n))
			}
		case "model.emf.uri":
			ec.SetModelEMFURI(value)
		case "context":
			return ec.SetContextDecl(decl)
		case "fields":
			return ec.SetPayloadDecl(decl)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if _, err := p.expect(';'); err != nil {
		return err
	}
	sc, ok := p.streams[streamID]
	if !ok {
		return p.errf("event references unknown stream_id %d", streamID)
	}
	return sc.AddEventClass(ec)
}

func (p *tsdlParser) parseTypealiasBlock() error {
	// typealias <type-expr> := <name>;
	decl, err := p.parseTypeExpr()
	if err != nil {
		return err
	}
	if _, err := p.expect(':'); err != nil {
		return err
	}
	if _, err := p.expect('='); err != nil {
		return err
	}
	name, err := p.expect(scanner.Ident)
	if err != nil {
		return err
	}
	if _, err := p.expect(';'); err != nil {
		return err
	}
	p.typealias[name.text] = decl
	return nil
}

// parseTypeExpr parses one base type expression (integer/floating_point/
// enum/string/struct/variant) or a typealias reference by name.
func (p *tsdlParser) parseTypeExpr() (Declaration, error) {
	t := p.l.peek()
	if t.tok != scanner.Ident {
		return nil, p.errf("expected a type keyword, got %q", t.text)
	}
	switch t.text {
	case "integer":
		p.l.next()
		return p.parseIntegerType()
	case "floating_point":
		p.l.next()
		return p.parseFloatType()
	case "enum":
		p.l.next()
		return p.parseEnumType()
	case "string":
		p.l.next()
		return p.parseStringType()
	case "struct":
		p.l.next()
		return p.parseStructType()
	case "variant":
		p.l.next()
		return p.parseVariantType()
	default:
		p.l.next()
		if decl, ok := p.typealias[t.text]; ok {
			return decl, nil
		}
		return nil, p.errf("unknown type keyword or alias %q", t.text)
	}
}

func (p *tsdlParser) parseIntegerType() (Declaration, error) {
	var width uint8 = 32
	var align uint32 = 8
	var signed bool
	var order ByteOrder = OrderLittle
	var base Base = BaseDecimal
	var enc Encoding = EncodingNone
	var mapClockName string

	err := p.parseKeyValues(func(key string, isType bool, value string, decl Declaration) error {
		switch key {
		case "size":
			if n, err := strconv.ParseUint(value, 10, 8); err == nil {
				width = uint8(n)
			}
		case "align":
			if n, err := strconv.ParseUint(value, 10, 32); err == nil {
				align = uint32(n)
			}
		case "signed":
			signed = value == "1" || value == "true"
		case "byte_order":
			if value == "be" {
				order = OrderBig
			} else {
				order = OrderLittle
			}
		case "base":
			switch value {
			case "16":
				base = BaseHex
			case "8":
				base = BaseOctal
			case "2":
				base = BaseBinary
			default:
				base = BaseDecimal
			}
		case "encoding":
			switch value {
			case "ASCII":
				enc = EncodingASCII
			case "UTF8":
				enc = EncodingUTF8
			}
		case "map":
			mapClockName = strings.TrimPrefix(strings.TrimSuffix(value, ".value"), "clock.")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	d, err := NewInt(width, order, signed, base, align)
	if err != nil {
		return nil, err
	}
	if enc != EncodingNone {
		_ = d.SetEncoding(enc)
	}
	if mapClockName != "" && p.trace != nil {
		if c := p.trace.ClockByName(mapClockName); c != nil {
			_ = d.SetClock(c)
		}
	}
	return d, nil
}

func (p *tsdlParser) parseFloatType() (Declaration, error) {
	var mantDig uint8 = 24
	var expDig uint8 = 8
	var align uint32 = 8
	var order ByteOrder = OrderLittle

	err := p.parseKeyValues(func(key string, isType bool, value string, decl Declaration) error {
		switch key {
		case "mant_dig":
			if n, err := strconv.ParseUint(value, 10, 8); err == nil {
				mantDig = uint8(n)
			}
		case "exp_dig":
			if n, err := strconv.ParseUint(value, 10, 8); err == nil {
				expDig = uint8(n)
			}
		case "align":
			if n, err := strconv.ParseUint(value, 10, 32); err == nil {
				align = uint32(n)
			}
		case "byte_order":
			if value == "be" {
				order = OrderBig
			} else {
				order = OrderLittle
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// The two canonical IEEE-754 splits in host byte order are shared
	// process-wide fixtures; every trace parsed in this process reuses
	// the same immutable declaration node for them.
	if resolveOrder(order) == resolveOrder(OrderNative) {
		if f32 := defaultFloat32Decl(); mantDig == 24 && expDig == 8 && align == f32.Alignment() {
			return f32, nil
		}
		if f64 := defaultFloat64Decl(); mantDig == 53 && expDig == 11 && align == f64.Alignment() {
			return f64, nil
		}
	}
	return NewFloat(mantDig-1, expDig, order, align)
}

func (p *tsdlParser) parseEnumType() (Declaration, error) {
	if _, err := p.expect(':'); err != nil {
		return nil, err
	}
	containerDecl, err := p.parseTypeExpr()
	if err != nil {
		return nil, err
	}
	containerInt, ok := containerDecl.(*IntDecl)
	if !ok {
		return nil, p.errf("enum container must be an integer type")
	}
	var enum *EnumDecl
	if containerInt.Signed() {
		enum, err = NewEnumSigned(containerInt)
	} else {
		enum, err = NewEnumUnsigned(containerInt)
	}
	if err != nil {
		return nil, err
	}

	if _, err := p.expect('{'); err != nil {
		return nil, err
	}
	for {
		if p.l.peek().tok == '}' {
			p.l.next()
			break
		}
		lbl, err := p.expect(scanner.String)
		if err != nil {
			return nil, err
		}
		label, _ := strconv.Unquote(lbl.text)
		if _, err := p.expect('='); err != nil {
			return nil, err
		}
		lo, err := p.parseSignedInt()
		if err != nil {
			return nil, err
		}
		hi := lo
		if p.l.peek().tok == '.' {
			for i := 0; i < 3; i++ {
				if _, err := p.expect('.'); err != nil {
					return nil, err
				}
			}
			hi, err = p.parseSignedInt()
			if err != nil {
				return nil, err
			}
		}
		if err := enum.MapRange(label, lo, hi); err != nil {
			return nil, err
		}
		if p.l.peek().tok == ',' {
			p.l.next()
		}
	}
	return enum, nil
}

func (p *tsdlParser) parseSignedInt() (int64, error) {
	neg := false
	if p.l.peek().tok == '-' {
		p.l.next()
		neg = true
	}
	t, err := p.expect(scanner.Int)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(t.text, 10, 64)
	if err != nil {
		return 0, p.errf("bad integer literal %q", t.text)
	}
	if neg {
		n = -n
	}
	return n, nil
}

func (p *tsdlParser) parseStringType() (Declaration, error) {
	enc := EncodingUTF8
	err := p.parseKeyValues(func(key string, isType bool, value string, decl Declaration) error {
		if key == "encoding" && value == "ASCII" {
			enc = EncodingASCII
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewString(enc), nil
}

func (p *tsdlParser) parseStructType() (Declaration, error) {
	st := NewStruct()
	if _, err := p.expect('{'); err != nil {
		return nil, err
	}
	for {
		if p.l.peek().tok == '}' {
			p.l.next()
			break
		}
		memberDecl, name, err := p.parseMember()
		if err != nil {
			return nil, err
		}
		if err := st.AppendMember(name, memberDecl); err != nil {
			return nil, err
		}
		if _, err := p.expect(';'); err != nil {
			return nil, err
		}
	}
	// optional `align(N)` trailing annotation, consumed but not
	// re-validated: struct alignment already tracks its widest member.
	if p.l.peek().tok == scanner.Ident && p.l.peek().text == "align" {
		p.l.next()
		if _, err := p.expect('('); err != nil {
			return nil, err
		}
		if _, err := p.expect(scanner.Int); err != nil {
			return nil, err
		}
		if _, err := p.expect(')'); err != nil {
			return nil, err
		}
	}
	return st, nil
}

// parseMember parses one `type name[len];` struct/variant-option member,
// where the bracket suffix (static or dynamic array length) is optional.
func (p *tsdlParser) parseMember() (Declaration, string, error) {
	base, err := p.parseTypeExpr()
	if err != nil {
		return nil, "", err
	}
	nameTok, err := p.expect(scanner.Ident)
	if err != nil {
		return nil, "", err
	}
	name := unescapeTSDLIdent(nameTok.text)
	if p.l.peek().tok != '[' {
		return base, name, nil
	}
	p.l.next()
	lenTok := p.l.next()
	if _, err := p.expect(']'); err != nil {
		return nil, "", err
	}
	if lenTok.tok == scanner.Int {
		n, err := strconv.ParseUint(lenTok.text, 10, 64)
		if err != nil {
			return nil, "", p.errf("bad array length %q", lenTok.text)
		}
		arr, err := NewStaticArray(base, n)
		return arr, name, err
	}
	arr, err := NewDynamicArray(base, unescapeTSDLIdent(lenTok.text))
	return arr, name, err
}

// unescapeTSDLIdent is the inverse of the emitter's keyword escaping: a
// leading underscore is stripped when the remainder is a reserved TSDL
// keyword, and kept otherwise.
func unescapeTSDLIdent(name string) string {
	if strings.HasPrefix(name, "_") {
		if _, reserved := reservedTSDLKeywords()[name[1:]]; reserved {
			return name[1:]
		}
	}
	return name
}

func (p *tsdlParser) parseVariantType() (Declaration, error) {
	selectorName := ""
	if p.l.peek().tok == '<' {
		p.l.next()
		name, err := p.expect(scanner.Ident)
		if err != nil {
			return nil, err
		}
		selectorName = unescapeTSDLIdent(name.text)
		if _, err := p.expect('>'); err != nil {
			return nil, err
		}
	}
	var variant *VariantDecl
	var err error
	if selectorName != "" {
		variant, err = NewVariant(selectorName)
	} else {
		variant = NewVariantUnresolved()
	}
	if err != nil {
		return nil, err
	}
	if _, err := p.expect('{'); err != nil {
		return nil, err
	}
	for {
		if p.l.peek().tok == '}' {
			p.l.next()
			break
		}
		optDecl, label, err := p.parseMember()
		if err != nil {
			return nil, err
		}
		if err := variant.AppendOption(label, optDecl); err != nil {
			return nil, err
		}
		if _, err := p.expect(';'); err != nil {
			return nil, err
		}
	}
	return variant, nil
}
