// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

import "testing"

func TestPositionReadWriteRoundTripAligned(t *testing.T) {
	buf := make([]byte, 8)
	w := NewWritePosition(buf, false)
	if err := w.WriteBits(0xDEADBEEF, 32, OrderLittle); err != nil {
		t.Fatalf("WriteBits: %v", err)
	}
	if err := w.WriteBits(0x1234, 16, OrderBig); err != nil {
		t.Fatalf("WriteBits: %v", err)
	}

	r := NewReadPosition(buf, w.ContentSize())
	got, err := r.ReadBits(32, OrderLittle)
	if err != nil {
		t.Fatalf("ReadBits: %v", err)
	}
	if got != 0xDEADBEEF {
		t.Fatalf("got %#x, want %#x", got, 0xDEADBEEF)
	}
	got, err = r.ReadBits(16, OrderBig)
	if err != nil {
		t.Fatalf("ReadBits: %v", err)
	}
	if got != 0x1234 {
		t.Fatalf("got %#x, want %#x", got, 0x1234)
	}
}

func TestPositionBitfieldAtOffsetFour(t *testing.T) {
	// Write a 4-bit zero nibble, then a 4-bit field 0xA, little-endian
	// bit packing: the first bit written lands at bit 4 (LSB-first within
	// the byte), so byte 0 becomes 0xA0.
	buf := make([]byte, 1)
	w := NewWritePosition(buf, false)
	if err := w.WriteBits(0, 4, OrderLittle); err != nil {
		t.Fatalf("WriteBits: %v", err)
	}
	if err := w.WriteBits(0xA, 4, OrderLittle); err != nil {
		t.Fatalf("WriteBits: %v", err)
	}
	if buf[0] != 0xA0 {
		t.Fatalf("buf[0] = %#x, want 0xA0", buf[0])
	}

	r := NewReadPosition(buf, 8)
	if err := r.Move(4); err != nil {
		t.Fatalf("Move: %v", err)
	}
	got, err := r.ReadBits(4, OrderLittle)
	if err != nil {
		t.Fatalf("ReadBits: %v", err)
	}
	if got != 0xA {
		t.Fatalf("got %#x, want 0xA", got)
	}
}

func TestPositionAlign(t *testing.T) {
	buf := make([]byte, 4)
	w := NewWritePosition(buf, false)
	if err := w.WriteBits(1, 3, OrderLittle); err != nil {
		t.Fatalf("WriteBits: %v", err)
	}
	if err := w.Align(8, true); err != nil {
		t.Fatalf("Align: %v", err)
	}
	if w.Offset() != 8 {
		t.Fatalf("Offset() = %d, want 8", w.Offset())
	}
	// already aligned: no-op
	if err := w.Align(8, true); err != nil {
		t.Fatalf("Align: %v", err)
	}
	if w.Offset() != 8 {
		t.Fatalf("Offset() = %d, want 8 after no-op align", w.Offset())
	}
}

func TestPositionReadOverrun(t *testing.T) {
	buf := make([]byte, 1)
	r := NewReadPosition(buf, 4) // only 4 bits of content
	if _, err := r.ReadBits(8, OrderLittle); err == nil {
		t.Fatal("expected overrun error, got nil")
	} else if e, ok := err.(*Error); !ok || e.Kind != KindOverrun {
		t.Fatalf("expected KindOverrun, got %v", err)
	}
}

func TestPositionWriteOverrunPastPacketSize(t *testing.T) {
	buf := make([]byte, 1)
	w := NewWritePosition(buf, false)
	if err := w.WriteBits(0, 4, OrderLittle); err != nil {
		t.Fatalf("WriteBits: %v", err)
	}
	if err := w.WriteBits(0, 8, OrderLittle); err == nil {
		t.Fatal("expected overrun error, got nil")
	} else if e, ok := err.(*Error); !ok || e.Kind != KindOverrun {
		t.Fatalf("expected KindOverrun, got %v", err)
	}
}

func TestDummyPositionNeverTouchesBuffer(t *testing.T) {
	// A dummy position has no backing buffer at all; WriteBits/WriteBytes
	// must only advance the cursor and must not panic on a nil buf.
	p := NewDummyPosition(64, 0)
	if p.buf != nil {
		t.Fatalf("expected nil buf in dummy position, got %v", p.buf)
	}
	if !p.Dummy() {
		t.Fatal("expected Dummy() == true")
	}
	if err := p.WriteBits(0xFF, 8, OrderLittle); err != nil {
		t.Fatalf("WriteBits in dummy mode: %v", err)
	}
	if p.Offset() != 8 {
		t.Fatalf("Offset() = %d, want 8", p.Offset())
	}
	if err := p.WriteBytes([]byte{1, 2, 3}); err != nil {
		t.Fatalf("WriteBytes in dummy mode: %v", err)
	}
	if p.Offset() != 32 {
		t.Fatalf("Offset() = %d, want 32", p.Offset())
	}
}

func TestDummyPositionRespectsPacketSizeCeiling(t *testing.T) {
	p := NewDummyPosition(16, 0)
	if err := p.WriteBits(0, 16, OrderLittle); err != nil {
		t.Fatalf("WriteBits up to ceiling: %v", err)
	}
	if err := p.WriteBits(0, 1, OrderLittle); err == nil {
		t.Fatal("expected overrun past packet size ceiling, got nil")
	}
}

func TestPositionMarkRollback(t *testing.T) {
	buf := make([]byte, 4)
	w := NewWritePosition(buf, false)
	mark := w.Mark()
	if err := w.WriteBits(0xFFFFFFFF, 32, OrderLittle); err != nil {
		t.Fatalf("WriteBits: %v", err)
	}
	w.Rollback(mark)
	if w.Offset() != mark {
		t.Fatalf("Offset() after rollback = %d, want %d", w.Offset(), mark)
	}
}

func TestPositionReseat(t *testing.T) {
	buf1 := make([]byte, 4)
	p := NewReadPosition(buf1, 32)
	if _, err := p.ReadBits(16, OrderLittle); err != nil {
		t.Fatalf("ReadBits: %v", err)
	}
	buf2 := make([]byte, 8)
	p.Reseat(buf2, 64)
	if p.Offset() != 0 {
		t.Fatalf("Offset() after Reseat = %d, want 0", p.Offset())
	}
	if p.PacketSize() != 64 {
		t.Fatalf("PacketSize() after Reseat = %d, want 64", p.PacketSize())
	}
}

func TestPositionSignedIntSignExtension(t *testing.T) {
	buf := make([]byte, 1)
	w := NewWritePosition(buf, false)
	if err := w.WriteBits(0x1F, 5, OrderLittle); err != nil { // -1 in 5-bit two's complement
		t.Fatalf("WriteBits: %v", err)
	}
	r := NewReadPosition(buf, 5)
	got, err := r.ReadInt(5, true, OrderLittle)
	if err != nil {
		t.Fatalf("ReadInt: %v", err)
	}
	if got != -1 {
		t.Fatalf("got %d, want -1", got)
	}
}

func TestPositionFloatRoundTrip(t *testing.T) {
	buf := make([]byte, 8)
	w := NewWritePosition(buf, false)
	if err := w.WriteFloat(3.5, 23, 8, OrderLittle); err != nil {
		t.Fatalf("WriteFloat: %v", err)
	}
	r := NewReadPosition(buf, 32)
	got, err := r.ReadFloat(23, 8, OrderLittle)
	if err != nil {
		t.Fatalf("ReadFloat: %v", err)
	}
	if got != 3.5 {
		t.Fatalf("got %v, want 3.5", got)
	}
}

func TestPositionBytesRequireByteAlignment(t *testing.T) {
	buf := make([]byte, 2)
	w := NewWritePosition(buf, false)
	if err := w.WriteBits(1, 3, OrderLittle); err != nil {
		t.Fatalf("WriteBits: %v", err)
	}
	if err := w.WriteBytes([]byte{0xAA}); err == nil {
		t.Fatal("expected error writing bytes at a non-byte-aligned offset")
	}
}

func TestPositionPeekByteDoesNotAdvance(t *testing.T) {
	buf := []byte{0x41, 0x00}
	r := NewReadPosition(buf, 16)
	b, err := r.PeekByte(0)
	if err != nil {
		t.Fatalf("PeekByte: %v", err)
	}
	if b != 0x41 {
		t.Fatalf("got %#x, want 0x41", b)
	}
	if r.Offset() != 0 {
		t.Fatalf("Offset() = %d, want 0 (PeekByte must not advance)", r.Offset())
	}
}
