// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// TraceClass owns the packet-header declaration shared by every stream of
// one trace, the trace's environment map, its native byte order and UUID,
// and the clock classes its streams may reference.
type TraceClass struct {
	name string

	packetHeaderDecl Declaration
	streamClasses    []*StreamClass
	env              map[string]string
	nativeByteOrder  ByteOrder
	uuid             uuid.UUID
	clocks           []*ClockClass

	headerFrozen atomic.Bool
}

// NewTraceClass creates an empty trace class with a fresh random UUID and
// native byte order defaulting to the host's.
func NewTraceClass(name string) *TraceClass {
	return &TraceClass{
		name:            name,
		env:             make(map[string]string),
		nativeByteOrder: OrderNative,
		uuid:            uuid.New(),
	}
}

func (t *TraceClass) Name() string { return t.name }

// SetPacketHeaderDecl installs the packet-header declaration. Once a
// stream class has been added, the header declaration is frozen and this
// returns ErrFrozen.
func (t *TraceClass) SetPacketHeaderDecl(d Declaration) error {
	if t.headerFrozen.Load() {
		return newErr("TraceClass.SetPacketHeaderDecl", KindFrozen, "packet header already frozen")
	}
	if d != nil {
		d.refInc()
	}
	t.packetHeaderDecl = d
	return nil
}

func (t *TraceClass) PacketHeaderDecl() Declaration { return t.packetHeaderDecl }

// AddStreamClass attaches s to the trace and freezes the trace's
// packet-header declaration from this point on. No id is stored on s;
// its stream id is its position in StreamClasses().
func (t *TraceClass) AddStreamClass(s *StreamClass) error {
	if s.trace != nil {
		return newErr("TraceClass.AddStreamClass", KindInvalidArgument, "stream class already belongs to a trace")
	}
	s.trace = t
	if t.packetHeaderDecl != nil {
		freezeDecl(t.packetHeaderDecl)
	}
	t.headerFrozen.Store(true)
	t.streamClasses = append(t.streamClasses, s)
	return nil
}

func (t *TraceClass) StreamClasses() []*StreamClass { return t.streamClasses }

// SetEnv records one key/value pair of the trace environment, emitted
// into the TSDL `env { ... };` block.
func (t *TraceClass) SetEnv(key, value string) error {
	if key == "" {
		return newErr("TraceClass.SetEnv", KindInvalidArgument, "environment key must not be empty")
	}
	t.env[key] = value
	return nil
}

// Env returns a copy of the trace's environment map.
func (t *TraceClass) Env() map[string]string {
	out := make(map[string]string, len(t.env))
	for k, v := range t.env {
		out[k] = v
	}
	return out
}

func (t *TraceClass) SetNativeByteOrder(o ByteOrder) { t.nativeByteOrder = o }
func (t *TraceClass) NativeByteOrder() ByteOrder     { return resolveOrder(t.nativeByteOrder) }

func (t *TraceClass) SetUUID(u uuid.UUID) { t.uuid = u }
func (t *TraceClass) UUID() uuid.UUID     { return t.uuid }

// AddClockClass registers a clock class the trace's streams may reference
// by name and makes it discoverable process-wide by UUID.
func (t *TraceClass) AddClockClass(c *ClockClass) {
	t.clocks = append(t.clocks, c)
	c.Register()
}

func (t *TraceClass) Clocks() []*ClockClass { return t.clocks }

// ClockByName looks a clock class registered on this trace up by name.
func (t *TraceClass) ClockByName(name string) *ClockClass {
	for _, c := range t.clocks {
		if c.Name == name {
			return c
		}
	}
	return nil
}
