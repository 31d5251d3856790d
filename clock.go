// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

import (
	"math/bits"
	"sync"

	"github.com/google/uuid"
)

// ClockClass describes one hardware or software clock a trace's events
// are timestamped against.
type ClockClass struct {
	Name              string
	Description       string
	FrequencyHz       uint64 // ticks per second, default 1e9 (nanoseconds)
	Precision         uint64
	OffsetSeconds     int64
	OffsetCycles      uint64
	OriginIsUnixEpoch bool
	UUID              uuid.UUID

	frozen bool
}

// NewClockClass creates a clock class defaulting to a 1GHz (nanosecond)
// frequency and a fresh random UUID, matching the reference
// implementation's default.
func NewClockClass(name string) *ClockClass {
	return &ClockClass{
		Name:        name,
		FrequencyHz: 1_000_000_000,
		UUID:        uuid.New(),
	}
}

func (c *ClockClass) Frozen() bool { return c.frozen }
func (c *ClockClass) freeze()      { c.frozen = true }

// scaleTicks computes floor(1e9 * x / f) as exact integer arithmetic,
// never float64. When f == 1e9 the scale factor is 1 and no division is
// needed. x*1e9 can overflow 64 bits for large x, so the 128-bit
// intermediate product is computed via math/bits.Mul64 and divided back
// down with math/bits.Div64.
func scaleTicks(freqHz, x uint64) uint64 {
	const nsPerSec = 1_000_000_000
	if freqHz == nsPerSec {
		return x
	}
	hi, lo := bits.Mul64(x, nsPerSec)
	if freqHz == 0 || hi >= freqHz {
		// Div64 panics on a zero divisor or a quotient that does not fit
		// in 64 bits; both can only be reached through a nonsensical
		// parsed clock class, so saturate instead.
		return ^uint64(0)
	}
	q, _ := bits.Div64(hi, lo, freqHz)
	return q
}

// ClockSnapshot is an instant materialized as (clock class, raw ticks).
type ClockSnapshot struct {
	Class *ClockClass
	Ticks uint64
}

// NanosFromOrigin implements to_ns_from_origin(v) = offset_seconds*1e9 +
// ns(frequency, offset_cycles) + ns(frequency, v).
func (s ClockSnapshot) NanosFromOrigin() int64 {
	offsetNs := s.Class.OffsetSeconds * 1_000_000_000
	return offsetNs + int64(scaleTicks(s.Class.FrequencyHz, s.Class.OffsetCycles)) + int64(scaleTicks(s.Class.FrequencyHz, s.Ticks))
}

// ClockState tracks one running clock's monotonicity.
type ClockState struct {
	mu      sync.Mutex
	set     bool
	last    uint64
	class   *ClockClass
}

// NewClockState creates a clock state bound to class, initially Unset.
func NewClockState(class *ClockClass) *ClockState {
	return &ClockState{class: class}
}

// SetValue requires v' >= the last accepted value; violating this
// returns ErrClockNonMonotonic and leaves the state unchanged.
func (s *ClockState) SetValue(v uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set && v < s.last {
		return newErr("ClockState.SetValue", KindClockNonMonotonic, "clock value moved backwards")
	}
	s.last = v
	s.set = true
	return nil
}

// Snapshot returns the last accepted value as a ClockSnapshot.
func (s *ClockState) Snapshot() ClockSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ClockSnapshot{Class: s.class, Ticks: s.last}
}

// clockRegistry is the per-process clock-class registry, protected by a
// single mutex, used by readers that need to
// look a clock class up by UUID across streams of a trace collection.
// Built lazily on first use; nothing beyond letting it be garbage collected
// is needed to "tear it down".
type clockRegistry struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]*ClockClass
}

var registryOnce sync.Once
var registry *clockRegistry

func globalClockRegistry() *clockRegistry {
	registryOnce.Do(func() {
		registry = &clockRegistry{byID: make(map[uuid.UUID]*ClockClass)}
	})
	return registry
}

// Register makes c discoverable by RegisteredClock. Safe to call
// concurrently from multiple trace cursors.
func (c *ClockClass) Register() {
	r := globalClockRegistry()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[c.UUID] = c
}

// RegisteredClock looks a previously-Register'd clock class up by UUID.
func RegisteredClock(id uuid.UUID) (*ClockClass, bool) {
	r := globalClockRegistry()
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	return c, ok
}
