// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

import (
	"bytes"
	"testing"
)

func buildRoundTripTrace(t *testing.T) *TraceClass {
	t.Helper()

	container, err := NewInt(8, OrderLittle, false, BaseDecimal, 8)
	if err != nil {
		t.Fatalf("NewInt: %v", err)
	}
	enumDecl, err := NewEnumUnsigned(container)
	if err != nil {
		t.Fatalf("NewEnumUnsigned: %v", err)
	}
	if err := enumDecl.MapRange("a", 0, 0); err != nil {
		t.Fatalf("MapRange: %v", err)
	}
	if err := enumDecl.MapRange("b", 1, 3); err != nil {
		t.Fatalf("MapRange: %v", err)
	}

	elem, err := NewInt(16, OrderLittle, false, BaseDecimal, 16)
	if err != nil {
		t.Fatalf("NewInt: %v", err)
	}
	arrDecl, err := NewStaticArray(elem, 2)
	if err != nil {
		t.Fatalf("NewStaticArray: %v", err)
	}

	payload := NewStruct()
	if err := payload.AppendMember("id", enumDecl); err != nil {
		t.Fatalf("AppendMember(id): %v", err)
	}
	if err := payload.AppendMember("val", arrDecl); err != nil {
		t.Fatalf("AppendMember(val): %v", err)
	}
	if err := payload.AppendMember("name", NewString(EncodingUTF8)); err != nil {
		t.Fatalf("AppendMember(name): %v", err)
	}

	sc := NewStreamClass("s")
	ec := NewEventClass("ev")
	if err := ec.SetPayloadDecl(payload); err != nil {
		t.Fatalf("SetPayloadDecl: %v", err)
	}
	ec.SetLogLevel(5)
	ec.SetModelEMFURI("urn:example:evt")
	if err := sc.AddEventClass(ec); err != nil {
		t.Fatalf("AddEventClass: %v", err)
	}

	trace := NewTraceClass("t")
	if err := trace.AddStreamClass(sc); err != nil {
		t.Fatalf("AddStreamClass: %v", err)
	}
	if err := trace.SetEnv("foo", "bar"); err != nil {
		t.Fatalf("SetEnv: %v", err)
	}
	clock := NewClockClass("mono")
	clock.Description = "monotonic test clock"
	trace.AddClockClass(clock)

	return trace
}

func checkRoundTrippedTrace(t *testing.T, original *TraceClass, parsed *ParsedMetadata) {
	t.Helper()

	got := parsed.Trace
	if got.UUID() != original.UUID() {
		t.Fatalf("UUID = %s, want %s", got.UUID(), original.UUID())
	}
	if got.NativeByteOrder() != original.NativeByteOrder() {
		t.Fatalf("NativeByteOrder = %v, want %v", got.NativeByteOrder(), original.NativeByteOrder())
	}
	if env := got.Env(); env["foo"] != "bar" {
		t.Fatalf("Env()[foo] = %q, want bar", env["foo"])
	}
	clocks := got.Clocks()
	if len(clocks) != 1 || clocks[0].Name != "mono" || clocks[0].Description != "monotonic test clock" {
		t.Fatalf("Clocks() = %+v, want one clock named mono", clocks)
	}

	streams := got.StreamClasses()
	if len(streams) != 1 {
		t.Fatalf("len(StreamClasses()) = %d, want 1", len(streams))
	}
	events := streams[0].EventClasses()
	if len(events) != 1 {
		t.Fatalf("len(EventClasses()) = %d, want 1", len(events))
	}
	ec := events[0]
	if ec.Name() != "ev" {
		t.Fatalf("event name = %q, want ev", ec.Name())
	}
	if level, ok := ec.LogLevel(); !ok || level != 5 {
		t.Fatalf("LogLevel() = (%d, %v), want (5, true)", level, ok)
	}
	if ec.ModelEMFURI() != "urn:example:evt" {
		t.Fatalf("ModelEMFURI() = %q, want urn:example:evt", ec.ModelEMFURI())
	}

	payload, ok := ec.PayloadDecl().(*StructDecl)
	if !ok {
		t.Fatalf("PayloadDecl() = %T, want *StructDecl", ec.PayloadDecl())
	}
	members := payload.Members()
	if len(members) != 3 {
		t.Fatalf("len(Members()) = %d, want 3", len(members))
	}

	idEnum, ok := members[0].Decl.(*EnumDecl)
	if !ok || members[0].Name != "id" {
		t.Fatalf("member 0 = %+v, want an enum named id", members[0])
	}
	if labels := idEnum.LabelsForValue(2); len(labels) != 1 || labels[0] != "b" {
		t.Fatalf("LabelsForValue(2) = %v, want [b]", labels)
	}

	valArr, ok := members[1].Decl.(*StaticArrayDecl)
	if !ok || members[1].Name != "val" {
		t.Fatalf("member 1 = %+v, want a static array named val", members[1])
	}
	if valArr.Length() != 2 {
		t.Fatalf("val.Length() = %d, want 2", valArr.Length())
	}
	elemInt, ok := valArr.Element().(*IntDecl)
	if !ok || elemInt.Width() != 16 {
		t.Fatalf("val element = %+v, want a 16-bit integer", valArr.Element())
	}

	if _, ok := members[2].Decl.(*StringDecl); !ok || members[2].Name != "name" {
		t.Fatalf("member 2 = %+v, want a string named name", members[2])
	}
}

func TestEmitParseMetadataRoundTrip(t *testing.T) {
	trace := buildRoundTripTrace(t)

	var buf bytes.Buffer
	if err := EmitMetadata(&buf, trace, false); err != nil {
		t.Fatalf("EmitMetadata: %v", err)
	}

	parsed, err := ParseMetadata(buf.Bytes())
	if err != nil {
		t.Fatalf("ParseMetadata: %v\n--- TSDL ---\n%s", err, buf.String())
	}
	checkRoundTrippedTrace(t, trace, parsed)
}

func TestEmitParseMetadataPacketizedRoundTrip(t *testing.T) {
	trace := buildRoundTripTrace(t)

	var buf bytes.Buffer
	if err := EmitMetadata(&buf, trace, true); err != nil {
		t.Fatalf("EmitMetadata(packetized): %v", err)
	}
	if buf.Len() < 4 || be32(buf.Bytes()) != metadataMagic {
		t.Fatal("packetized output does not start with the metadata magic")
	}

	parsed, err := ParseMetadata(buf.Bytes())
	if err != nil {
		t.Fatalf("ParseMetadata(packetized): %v", err)
	}
	checkRoundTrippedTrace(t, trace, parsed)
}

func TestUnpacketizeMetadataRejectsCRCMismatch(t *testing.T) {
	trace := buildRoundTripTrace(t)

	var buf bytes.Buffer
	if err := EmitMetadata(&buf, trace, true); err != nil {
		t.Fatalf("EmitMetadata(packetized): %v", err)
	}
	data := buf.Bytes()
	if len(data) <= 28 {
		t.Fatal("packetized metadata too short to corrupt its body")
	}
	// Flip a bit in the first body byte, just past the 28-byte chunk header.
	data[28] ^= 0xFF

	_, err := ParseMetadata(data)
	if err == nil {
		t.Fatal("expected an error parsing metadata with a corrupted body")
	}
	e, ok := err.(*Error)
	if !ok || e.Kind != KindFormatMismatch {
		t.Fatalf("expected KindFormatMismatch, got %v", err)
	}
}

func TestParseMetadataRejectsMissingTraceBlock(t *testing.T) {
	_, err := ParseMetadata([]byte("env {\n\tfoo = \"bar\";\n};\n"))
	if err == nil {
		t.Fatal("expected an error for metadata with no trace block")
	}
	e, ok := err.(*Error)
	if !ok || e.Kind != KindFormatMismatch {
		t.Fatalf("expected KindFormatMismatch, got %v", err)
	}
}

// TestParseTSDLTypealias hand-writes a trace that defines and then uses a
// typealias, since EmitMetadata never re-emits typealias blocks (the alias
// table only exists on the parse side).
func TestParseTSDLTypealias(t *testing.T) {
	src := `
trace {
	major = 1;
	minor = 8;
	uuid = "123e4567-e89b-12d3-a456-426614174000";
	byte_order = le;
};

typealias integer { size = 8; align = 8; signed = 0; byte_order = le; base = 10; encoding = none; } := my_u8;

stream {
	id = 0;
	event.header := struct { my_u8 id; } align(8);
};

event {
	name = "ev";
	id = 0;
	stream_id = 0;
};
`
	parsed, err := ParseMetadata([]byte(src))
	if err != nil {
		t.Fatalf("ParseMetadata: %v", err)
	}
	streams := parsed.Trace.StreamClasses()
	if len(streams) != 1 {
		t.Fatalf("len(StreamClasses()) = %d, want 1", len(streams))
	}
	hdr, ok := streams[0].EventHeaderDecl().(*StructDecl)
	if !ok {
		t.Fatalf("EventHeaderDecl() = %T, want *StructDecl", streams[0].EventHeaderDecl())
	}
	members := hdr.Members()
	if len(members) != 1 || members[0].Name != "id" {
		t.Fatalf("members = %+v, want one member named id", members)
	}
	idInt, ok := members[0].Decl.(*IntDecl)
	if !ok || idInt.Width() != 8 {
		t.Fatalf("id decl = %+v, want an 8-bit integer (resolved via typealias)", members[0].Decl)
	}

	events := streams[0].EventClasses()
	if len(events) != 1 || events[0].Name() != "ev" || events[0].ID() != 0 {
		t.Fatalf("event classes = %+v, want one event ev/id=0", events)
	}
}

func TestDeclToTSDLDynamicArrayMember(t *testing.T) {
	lenDecl, err := NewInt(8, OrderLittle, false, BaseDecimal, 8)
	if err != nil {
		t.Fatalf("NewInt: %v", err)
	}
	elemDecl, err := NewInt(8, OrderLittle, false, BaseDecimal, 8)
	if err != nil {
		t.Fatalf("NewInt: %v", err)
	}
	arrDecl, err := NewDynamicArray(elemDecl, "len")
	if err != nil {
		t.Fatalf("NewDynamicArray: %v", err)
	}
	st := NewStruct()
	if err := st.AppendMember("len", lenDecl); err != nil {
		t.Fatalf("AppendMember(len): %v", err)
	}
	if err := st.AppendMember("data", arrDecl); err != nil {
		t.Fatalf("AppendMember(data): %v", err)
	}

	rendered, err := declToTSDL(st)
	if err != nil {
		t.Fatalf("declToTSDL: %v", err)
	}
	// The array's length name must appear as a bracket suffix after the
	// member name, not the element type, so the parser's type-then-name
	// grammar can recover it.
	if !bytes.Contains([]byte(rendered), []byte("data[len]")) {
		t.Fatalf("rendered struct = %q, want it to contain \"data[len]\"", rendered)
	}

	trace := NewTraceClass("t")
	if err := trace.SetPacketHeaderDecl(st); err != nil {
		t.Fatalf("SetPacketHeaderDecl: %v", err)
	}
	var buf bytes.Buffer
	if err := EmitMetadata(&buf, trace, false); err != nil {
		t.Fatalf("EmitMetadata: %v", err)
	}
	parsed, err := ParseMetadata(buf.Bytes())
	if err != nil {
		t.Fatalf("ParseMetadata: %v\n--- TSDL ---\n%s", err, buf.String())
	}
	hdr, ok := parsed.Trace.PacketHeaderDecl().(*StructDecl)
	if !ok {
		t.Fatalf("PacketHeaderDecl() = %T, want *StructDecl", parsed.Trace.PacketHeaderDecl())
	}
	if len(hdr.Members()) != 2 {
		t.Fatalf("len(Members()) = %d, want 2", len(hdr.Members()))
	}
	dataArr, ok := hdr.Members()[1].Decl.(*DynamicArrayDecl)
	if !ok {
		t.Fatalf("data member = %T, want *DynamicArrayDecl", hdr.Members()[1].Decl)
	}
	if dataArr.LengthName() != "len" {
		t.Fatalf("LengthName() = %q, want len", dataArr.LengthName())
	}
}
