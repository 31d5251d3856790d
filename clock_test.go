// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

import "testing"

func TestScaleTicksIdentityAtNanosecondFrequency(t *testing.T) {
	if got := scaleTicks(1_000_000_000, 123456789); got != 123456789 {
		t.Fatalf("scaleTicks identity = %d, want 123456789", got)
	}
}

func TestScaleTicksConvertsToExactNanoseconds(t *testing.T) {
	// A 1kHz clock: each tick is exactly 1,000,000 ns.
	got := scaleTicks(1_000, 5)
	if got != 5_000_000 {
		t.Fatalf("scaleTicks(1kHz, 5 ticks) = %d, want 5000000", got)
	}
}

func TestScaleTicksLargeValueNoOverflow(t *testing.T) {
	// x*1e9 overflows 64 bits for large x at low frequencies; scaleTicks
	// must use the 128-bit intermediate product rather than drift via
	// float64.
	const freq = 1_000
	x := uint64(1) << 40
	got := scaleTicks(freq, x)
	want := x * 1_000_000 // exact since freq=1000 divides 1e9 evenly
	if got != want {
		t.Fatalf("scaleTicks large x = %d, want %d", got, want)
	}
}

func TestClockSnapshotNanosFromOrigin(t *testing.T) {
	class := NewClockClass("monotonic")
	class.FrequencyHz = 1_000_000_000
	class.OffsetSeconds = 2
	class.OffsetCycles = 500

	snap := ClockSnapshot{Class: class, Ticks: 1000}
	got := snap.NanosFromOrigin()
	want := int64(2*1_000_000_000 + 500 + 1000)
	if got != want {
		t.Fatalf("NanosFromOrigin() = %d, want %d", got, want)
	}
}

func TestClockStateMonotonicityAcceptsNonDecreasing(t *testing.T) {
	class := NewClockClass("c")
	st := NewClockState(class)
	if err := st.SetValue(10); err != nil {
		t.Fatalf("SetValue(10): %v", err)
	}
	if err := st.SetValue(10); err != nil {
		t.Fatalf("SetValue(10) again (equal is allowed): %v", err)
	}
	if err := st.SetValue(20); err != nil {
		t.Fatalf("SetValue(20): %v", err)
	}
	if st.Snapshot().Ticks != 20 {
		t.Fatalf("Snapshot().Ticks = %d, want 20", st.Snapshot().Ticks)
	}
}

func TestClockStateRejectsBackwardsMove(t *testing.T) {
	class := NewClockClass("c")
	st := NewClockState(class)
	if err := st.SetValue(100); err != nil {
		t.Fatalf("SetValue(100): %v", err)
	}
	err := st.SetValue(50)
	if err == nil {
		t.Fatal("expected ErrClockNonMonotonic, got nil")
	}
	e, ok := err.(*Error)
	if !ok || e.Kind != KindClockNonMonotonic {
		t.Fatalf("expected KindClockNonMonotonic, got %v", err)
	}
	// state must be unchanged on rejection
	if st.Snapshot().Ticks != 100 {
		t.Fatalf("Snapshot().Ticks after rejected SetValue = %d, want 100", st.Snapshot().Ticks)
	}
}

func TestClockClassRegisterAndLookup(t *testing.T) {
	class := NewClockClass("registered-clock")
	class.Register()
	got, ok := RegisteredClock(class.UUID)
	if !ok {
		t.Fatal("RegisteredClock: not found after Register")
	}
	if got != class {
		t.Fatal("RegisteredClock returned a different *ClockClass")
	}
}

func TestRegisteredClockMissingReturnsFalse(t *testing.T) {
	unregistered := NewClockClass("never-registered")
	if _, ok := RegisteredClock(unregistered.UUID); ok {
		t.Fatal("RegisteredClock should report false for an unregistered UUID")
	}
}

func TestClockSnapshotNanosFromOriginLowFrequency(t *testing.T) {
	// A 1kHz clock with a 10s + 500-cycle origin offset: 1000 ticks is
	// exactly one second, so the total is 10e9 + 500e6 + 1e9 ns.
	class := NewClockClass("slow")
	class.FrequencyHz = 1_000
	class.OffsetSeconds = 10
	class.OffsetCycles = 500
	class.OriginIsUnixEpoch = true

	snap := ClockSnapshot{Class: class, Ticks: 1000}
	got := snap.NanosFromOrigin()
	want := int64(11_500_000_000)
	if got != want {
		t.Fatalf("NanosFromOrigin() = %d, want %d", got, want)
	}
}
