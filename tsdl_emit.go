// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"io"
	"sort"

	"github.com/google/uuid"
)

// metadataMagic is the packetized-metadata magic number.
const metadataMagic uint32 = 0x75D11D57

// EmitMetadata walks trace's frozen declaration DAG and writes it as
// TSDL, either raw (default) or packetized (magic 0x75D11D57) when
// packetize is true.
func EmitMetadata(w io.Writer, trace *TraceClass, packetize bool) error {
	var body bytes.Buffer
	if err := writeTSDLBody(&body, trace); err != nil {
		return err
	}
	if !packetize {
		_, err := w.Write(body.Bytes())
		return err
	}
	return writePacketizedMetadata(w, body.Bytes(), trace.UUID())
}

func writeTSDLBody(buf *bytes.Buffer, trace *TraceClass) error {
	fmt.Fprintf(buf, "trace {\n")
	fmt.Fprintf(buf, "\tmajor = 1;\n\tminor = 8;\n")
	fmt.Fprintf(buf, "\tuuid = \"%s\";\n", trace.UUID().String())
	fmt.Fprintf(buf, "\tbyte_order = %s;\n", orderName(trace.NativeByteOrder()))
	if trace.PacketHeaderDecl() != nil {
		decl, err := declToTSDL(trace.PacketHeaderDecl())
		if err != nil {
			return err
		}
		fmt.Fprintf(buf, "\tpacket.header := %s;\n", decl)
	}
	fmt.Fprintf(buf, "};\n\n")

	if env := trace.Env(); len(env) > 0 {
		fmt.Fprintf(buf, "env {\n")
		keys := make([]string, 0, len(env))
		for k := range env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(buf, "\t%s = \"%s\";\n", k, env[k])
		}
		fmt.Fprintf(buf, "};\n\n")
	}

	for _, c := range trace.Clocks() {
		fmt.Fprintf(buf, "clock {\n")
		fmt.Fprintf(buf, "\tname = %s;\n", c.Name)
		if c.Description != "" {
			fmt.Fprintf(buf, "\tdescription = \"%s\";\n", c.Description)
		}
		fmt.Fprintf(buf, "\tuuid = \"%s\";\n", c.UUID.String())
		fmt.Fprintf(buf, "\tfreq = %d;\n", c.FrequencyHz)
		fmt.Fprintf(buf, "\tprecision = %d;\n", c.Precision)
		fmt.Fprintf(buf, "\toffset_s = %d;\n", c.OffsetSeconds)
		fmt.Fprintf(buf, "\toffset = %d;\n", c.OffsetCycles)
		fmt.Fprintf(buf, "\tabsolute = %s;\n", boolWord(c.OriginIsUnixEpoch))
		fmt.Fprintf(buf, "};\n\n")
	}

	for streamID, sc := range trace.StreamClasses() {
		if err := writeStreamTSDL(buf, streamID, sc); err != nil {
			return err
		}
	}
	return nil
}

func writeStreamTSDL(buf *bytes.Buffer, streamID int, sc *StreamClass) error {
	fmt.Fprintf(buf, "stream {\n")
	fmt.Fprintf(buf, "\tid = %d;\n", streamID)
	if sc.PacketContextDecl() != nil {
		decl, err := declToTSDL(sc.PacketContextDecl())
		if err != nil {
			return err
		}
		fmt.Fprintf(buf, "\tpacket.context := %s;\n", decl)
	}
	if sc.EventHeaderDecl() != nil {
		decl, err := declToTSDL(sc.EventHeaderDecl())
		if err != nil {
			return err
		}
		fmt.Fprintf(buf, "\tevent.header := %s;\n", decl)
	}
	if sc.EventContextDecl() != nil {
		decl, err := declToTSDL(sc.EventContextDecl())
		if err != nil {
			return err
		}
		fmt.Fprintf(buf, "\tevent.context := %s;\n", decl)
	}
	fmt.Fprintf(buf, "};\n\n")

	for _, ec := range sc.EventClasses() {
		if err := writeEventTSDL(buf, streamID, ec); err != nil {
			return err
		}
	}
	return nil
}

func writeEventTSDL(buf *bytes.Buffer, streamID int, ec *EventClass) error {
	fmt.Fprintf(buf, "event {\n")
	fmt.Fprintf(buf, "\tname = \"%s\";\n", ec.Name())
	fmt.Fprintf(buf, "\tid = %d;\n", ec.ID())
	fmt.Fprintf(buf, "\tstream_id = %d;\n", streamID)
	if level, ok := ec.LogLevel(); ok {
		fmt.Fprintf(buf, "\tloglevel = %d;\n", level)
	}
	if ec.ModelEMFURI() != "" {
		fmt.Fprintf(buf, "\tmodel.emf.uri = \"%s\";\n", ec.ModelEMFURI())
	}
	if ec.ContextDecl() != nil {
		decl, err := declToTSDL(ec.ContextDecl())
		if err != nil {
			return err
		}
		fmt.Fprintf(buf, "\tcontext := %s;\n", decl)
	}
	if ec.PayloadDecl() != nil {
		decl, err := declToTSDL(ec.PayloadDecl())
		if err != nil {
			return err
		}
		fmt.Fprintf(buf, "\tfields := %s;\n", decl)
	}
	fmt.Fprintf(buf, "};\n\n")
	return nil
}

// declToTSDL renders one declaration node as a TSDL type expression.
func declToTSDL(d Declaration) (string, error) {
	switch v := d.(type) {
	case *IntDecl:
		enc := "none"
		switch v.Encoding() {
		case EncodingASCII:
			enc = "ASCII"
		case EncodingUTF8:
			enc = "UTF8"
		}
		s := fmt.Sprintf("integer { size = %d; align = %d; signed = %s; byte_order = %s; base = %s; encoding = %s;",
			v.Width(), v.Alignment(), boolWord(v.Signed()), orderName(v.Order()), baseName(v.DisplayBase()), enc)
		if v.Clock() != nil {
			s += fmt.Sprintf(" map = clock.%s.value;", v.Clock().Name)
		}
		return s + " }", nil
	case *FloatDecl:
		return fmt.Sprintf("floating_point { mant_dig = %d; exp_dig = %d; align = %d; byte_order = %s; }",
			v.mantissaBits+1, v.exponentBits, v.Alignment(), orderName(v.Order())), nil
	case *EnumDecl:
		containerTSDL, err := declToTSDL(v.Container())
		if err != nil {
			return "", err
		}
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "enum : %s {", containerTSDL)
		for i, r := range v.ranges {
			if i > 0 {
				buf.WriteString(",")
			}
			if r.Low == r.High {
				fmt.Fprintf(&buf, " \"%s\" = %d", r.Label, r.Low)
			} else {
				fmt.Fprintf(&buf, " \"%s\" = %d ... %d", r.Label, r.Low, r.High)
			}
		}
		buf.WriteString(" }")
		return buf.String(), nil
	case *StringDecl:
		enc := "UTF8"
		if v.encoding == EncodingASCII {
			enc = "ASCII"
		}
		return fmt.Sprintf("string { encoding = %s; }", enc), nil
	case *StructDecl:
		var buf bytes.Buffer
		buf.WriteString("struct {")
		for _, m := range v.Members() {
			rendered, err := renderMember(m.Name, m.Decl)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&buf, " %s;", rendered)
		}
		fmt.Fprintf(&buf, " } align(%d)", v.Alignment())
		return buf.String(), nil
	case *VariantDecl:
		var buf bytes.Buffer
		fmt.Fprintf(&buf, "variant <%s> {", escapeTSDLIdent(v.SelectorName()))
		for _, o := range v.Options() {
			rendered, err := renderMember(o.Label, o.Decl)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&buf, " %s;", rendered)
		}
		buf.WriteString(" }")
		return buf.String(), nil
	case *StaticArrayDecl:
		elemTSDL, err := declToTSDL(v.element)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s [%d]", elemTSDL, v.length), nil
	case *DynamicArrayDecl:
		elemTSDL, err := declToTSDL(v.element)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s [%s]", elemTSDL, v.lengthName), nil
	default:
		return "", newErr("declToTSDL", KindUnsupported, "unknown declaration kind")
	}
}

// renderMember renders one struct field or variant option as "type name;"
// material (without the trailing semicolon). Array-typed members place the
// length in brackets after the name — "integer {...} data[len];" — matching
// the grammar parseMember expects, rather than declToTSDL's own
// "elem [len]" rendering of a bare array declaration.
func renderMember(name string, d Declaration) (string, error) {
	switch v := d.(type) {
	case *StaticArrayDecl:
		elemTSDL, err := declToTSDL(v.element)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s[%d]", elemTSDL, escapeTSDLIdent(name), v.length), nil
	case *DynamicArrayDecl:
		elemTSDL, err := declToTSDL(v.element)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s[%s]", elemTSDL, escapeTSDLIdent(name), escapeTSDLIdent(v.lengthName)), nil
	default:
		declTSDL, err := declToTSDL(d)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s", declTSDL, escapeTSDLIdent(name)), nil
	}
}

func orderName(o ByteOrder) string {
	if resolveOrder(o) == OrderBig {
		return "be"
	}
	return "le"
}

func baseName(b Base) string {
	switch b {
	case BaseHex:
		return "16"
	case BaseOctal:
		return "8"
	case BaseBinary:
		return "2"
	default:
		return "10"
	}
}

func boolWord(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// writePacketizedMetadata chunks body into metadata packets, each
// opening with magic 0x75D11D57, the trace UUID, and a CRC-32 checksum
// over its own body.
func writePacketizedMetadata(w io.Writer, body []byte, traceUUID uuid.UUID) error {
	const chunk = 4096
	for off := 0; off < len(body) || off == 0; off += chunk {
		end := off + chunk
		if end > len(body) {
			end = len(body)
		}
		piece := body[off:end]

		var hdr bytes.Buffer
		if err := writeBE32(&hdr, metadataMagic); err != nil {
			return err
		}
		hdr.Write(traceUUID[:])
		if err := writeBE32(&hdr, crc32Of(piece)); err != nil {
			return err
		}
		if err := writeBE32(&hdr, uint32(len(piece))); err != nil {
			return err
		}
		if _, err := w.Write(hdr.Bytes()); err != nil {
			return wrapErr("writePacketizedMetadata", KindIO, "writing packet header", err)
		}
		if _, err := w.Write(piece); err != nil {
			return wrapErr("writePacketizedMetadata", KindIO, "writing packet body", err)
		}
		if end == len(body) {
			break
		}
	}
	return nil
}

func writeBE32(buf *bytes.Buffer, v uint32) error {
	b := []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
	_, err := buf.Write(b)
	return err
}

func crc32Of(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}

// escapeTSDLIdent prefixes an identifier with '_' when it collides with a
// TSDL grammar keyword, so member and length-field names like "event" or
// "int" survive a round trip through the metadata text.
func escapeTSDLIdent(name string) string {
	if _, reserved := reservedTSDLKeywords()[name]; reserved {
		return "_" + name
	}
	return name
}
