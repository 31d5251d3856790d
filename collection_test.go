// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, contents string) error {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(contents), 0o644)
}

func buildCollectionStream(t *testing.T, name string) (*StreamClass, *EventClass) {
	t.Helper()

	headerStruct := NewStruct()
	idDecl, _ := NewInt(8, OrderLittle, false, BaseDecimal, 8)
	tsDecl, _ := NewInt(32, OrderLittle, false, BaseDecimal, 32)
	if err := headerStruct.AppendMember("id", idDecl); err != nil {
		t.Fatalf("AppendMember(id): %v", err)
	}
	if err := headerStruct.AppendMember("timestamp", tsDecl); err != nil {
		t.Fatalf("AppendMember(timestamp): %v", err)
	}

	payloadStruct := NewStruct()
	valDecl, _ := NewInt(32, OrderLittle, false, BaseDecimal, 32)
	if err := payloadStruct.AppendMember("value", valDecl); err != nil {
		t.Fatalf("AppendMember(value): %v", err)
	}

	contextStruct := NewStruct()
	contentSizeDecl, _ := NewInt(64, OrderLittle, false, BaseDecimal, 8)
	packetSizeDecl, _ := NewInt(64, OrderLittle, false, BaseDecimal, 8)
	if err := contextStruct.AppendMember("content_size", contentSizeDecl); err != nil {
		t.Fatalf("AppendMember(content_size): %v", err)
	}
	if err := contextStruct.AppendMember("packet_size", packetSizeDecl); err != nil {
		t.Fatalf("AppendMember(packet_size): %v", err)
	}

	sc := NewStreamClass(name)
	if err := sc.SetPacketContextDecl(contextStruct); err != nil {
		t.Fatalf("SetPacketContextDecl: %v", err)
	}
	if err := sc.SetEventHeaderDecl(headerStruct); err != nil {
		t.Fatalf("SetEventHeaderDecl: %v", err)
	}
	ec := NewEventClass(name + "_ev")
	if err := ec.SetPayloadDecl(payloadStruct); err != nil {
		t.Fatalf("SetPayloadDecl: %v", err)
	}
	if err := sc.AddEventClass(ec); err != nil {
		t.Fatalf("AddEventClass: %v", err)
	}
	return sc, ec
}

func appendTimedValue(t *testing.T, ws *WriterStream, ec *EventClass, clock *ClockClass, ticks uint64, value uint32) {
	t.Helper()
	ev, err := NewEvent(ec, ws.StreamClass())
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	if err := ev.SetClockValue(ClockSnapshot{Class: clock, Ticks: ticks}); err != nil {
		t.Fatalf("SetClockValue: %v", err)
	}
	ev.Payload().(*StructDef).Field("value").(*IntDef).SetUint(uint64(value))
	if err := ws.AppendEvent(ev); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
}

// TestTraceCollectionMergesStreamsByTimestamp writes two streams whose
// events interleave by clock tick and checks TraceCollection.Next replays
// them in non-decreasing timestamp order across both.
func TestTraceCollectionMergesStreamsByTimestamp(t *testing.T) {
	packetHeader := NewStruct()
	magicDecl, _ := NewInt(32, OrderLittle, false, BaseHex, 32)
	streamIDDecl, _ := NewInt(32, OrderLittle, false, BaseDecimal, 32)
	if err := packetHeader.AppendMember("magic", magicDecl); err != nil {
		t.Fatalf("AppendMember(magic): %v", err)
	}
	if err := packetHeader.AppendMember("stream_id", streamIDDecl); err != nil {
		t.Fatalf("AppendMember(stream_id): %v", err)
	}

	trace := NewTraceClass("t")
	if err := trace.SetPacketHeaderDecl(packetHeader); err != nil {
		t.Fatalf("SetPacketHeaderDecl: %v", err)
	}

	clock := NewClockClass("mono")

	sc0, ec0 := buildCollectionStream(t, "s0")
	sc0.AddClock(clock)
	if err := trace.AddStreamClass(sc0); err != nil {
		t.Fatalf("AddStreamClass(sc0): %v", err)
	}

	sc1, ec1 := buildCollectionStream(t, "s1")
	sc1.AddClock(clock)
	if err := trace.AddStreamClass(sc1); err != nil {
		t.Fatalf("AddStreamClass(sc1): %v", err)
	}

	dir := t.TempDir()
	w, err := NewWriter(dir, trace, nil)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	ws0, err := w.CreateStream(sc0)
	if err != nil {
		t.Fatalf("CreateStream(sc0): %v", err)
	}
	ws1, err := w.CreateStream(sc1)
	if err != nil {
		t.Fatalf("CreateStream(sc1): %v", err)
	}

	appendTimedValue(t, ws0, ec0, clock, 100, 1)
	appendTimedValue(t, ws1, ec1, clock, 200, 2)
	appendTimedValue(t, ws0, ec0, clock, 300, 3)
	appendTimedValue(t, ws1, ec1, clock, 400, 4)

	if err := w.Close(); err != nil {
		t.Fatalf("Writer.Close: %v", err)
	}

	r := NewReader(trace, nil)
	rs0, err := r.OpenStream(filepath.Join(dir, "stream_0"), sc0)
	if err != nil {
		t.Fatalf("OpenStream(stream_0): %v", err)
	}
	rs1, err := r.OpenStream(filepath.Join(dir, "stream_1"), sc1)
	if err != nil {
		t.Fatalf("OpenStream(stream_1): %v", err)
	}

	tc := NewTraceCollection(nil)
	tc.AddStream(rs0)
	tc.AddStream(rs1)
	defer tc.Close()

	wantValues := []uint64{1, 2, 3, 4}
	for i, want := range wantValues {
		ev, err := tc.Next()
		if err != nil {
			t.Fatalf("Next(%d): %v", i, err)
		}
		got := ev.Payload().(*StructDef).Field("value").(*IntDef).Uint()
		if got != want {
			t.Fatalf("Next(%d).value = %d, want %d", i, got, want)
		}
	}

	if _, err := tc.Next(); err == nil {
		t.Fatal("expected an error once every stream is exhausted")
	} else if e, ok := err.(*Error); !ok || e.Kind != KindUnderrun {
		t.Fatalf("expected KindUnderrun, got %v", err)
	}
}

func TestDiscoverTracesFindsMetadataDirectories(t *testing.T) {
	root := t.TempDir()
	traceDir := filepath.Join(root, "trace-a")
	if err := writeFile(t, filepath.Join(traceDir, "metadata"), "trace {};"); err != nil {
		t.Fatalf("writeFile: %v", err)
	}
	if err := writeFile(t, filepath.Join(root, "not-a-trace", "readme.txt"), "nothing here"); err != nil {
		t.Fatalf("writeFile: %v", err)
	}

	dirs, err := DiscoverTraces(root)
	if err != nil {
		t.Fatalf("DiscoverTraces: %v", err)
	}
	if len(dirs) != 1 || dirs[0] != traceDir {
		t.Fatalf("DiscoverTraces() = %v, want [%s]", dirs, traceDir)
	}
}
