// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

// PacketState is the writer-side packet lifecycle: Unopened -> Open(header_written) -> Open(has_events)
// -> Closed.
type PacketState uint8

const (
	PacketUnopened PacketState = iota
	PacketHeaderWritten
	PacketHasEvents
	PacketClosed
)

func (s PacketState) String() string {
	switch s {
	case PacketUnopened:
		return "unopened"
	case PacketHeaderWritten:
		return "header_written"
	case PacketHasEvents:
		return "has_events"
	case PacketClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// packetMagic is the big-endian magic every stream packet header opens
// with.
const packetMagic uint32 = 0xC1FC1FC1

// Packet is one fixed-or-extensible contiguous region of a stream file:
// an independent header definition tree and an independent context
// definition tree, both optional, plus the state that tracks whether
// events have started.
type Packet struct {
	state PacketState

	headerDef  Definition
	contextDef Definition

	scope *Scope

	eventsDiscarded    uint64
	timestampBegin     uint64
	timestampEnd       uint64
	haveTimestampBegin bool
}

// newPacket builds a packet's header/context definition trees from the
// stream class's declarations, sharing one Scope so the packet context
// (e.g. content_size, timestamp_begin) can reference fields of the
// packet header by name, per the canonical scope order.
func newPacket(traceHeaderDecl, streamContextDecl Declaration) (*Packet, error) {
	p := &Packet{scope: NewScope()}
	if traceHeaderDecl != nil {
		def, err := CreateFrom(traceHeaderDecl, p.scope, "packet_header", 0, "")
		if err != nil {
			return nil, err
		}
		p.headerDef = def
		p.scope.SetRoot(RootPacketHeader, def)
	}
	if streamContextDecl != nil {
		def, err := CreateFrom(streamContextDecl, p.scope, "packet_context", 0, "")
		if err != nil {
			return nil, err
		}
		p.contextDef = def
		p.scope.SetRoot(RootPacketContext, def)
	}
	return p, nil
}

func (p *Packet) State() PacketState  { return p.state }
func (p *Packet) HeaderDef() Definition  { return p.headerDef }
func (p *Packet) ContextDef() Definition { return p.contextDef }
func (p *Packet) Scope() *Scope          { return p.scope }

// EventsDiscarded reports the running count of events known to have
// been dropped upstream of this packet.
func (p *Packet) EventsDiscarded() uint64 { return p.eventsDiscarded }

func (p *Packet) TimestampBegin() (uint64, bool) { return p.timestampBegin, p.haveTimestampBegin }
func (p *Packet) TimestampEnd() uint64           { return p.timestampEnd }

func (p *Packet) observeEventTimestamp(ticks uint64) {
	if !p.haveTimestampBegin {
		p.timestampBegin = ticks
		p.haveTimestampBegin = true
	}
	p.timestampEnd = ticks
}

// setField looks an integer member up on a definition tree by name and
// sets it, used by the writer to populate packet-header/context fields
// (magic, uuid, stream id, content_size, ...) that are conventional but
// not hardcoded into the declaration tree itself.
func setField(root Definition, name string, v uint64) {
	sd, ok := root.(*StructDef)
	if !ok {
		return
	}
	f := sd.Field(name)
	if f == nil {
		return
	}
	if id, ok := f.(*IntDef); ok {
		id.SetUint(v)
	}
}

// setBytesField looks a character-array member up by name and replaces
// its contents, used to populate the conventional "uuid" field of a
// packet header.
func setBytesField(root Definition, name string, b []byte) {
	sd, ok := root.(*StructDef)
	if !ok {
		return
	}
	f := sd.Field(name)
	if f == nil {
		return
	}
	if ad, ok := f.(*ArrayDef); ok && ad.IsChar() {
		_ = ad.SetBytes(b)
	}
}

func getField(root Definition, name string) (uint64, bool) {
	sd, ok := root.(*StructDef)
	if !ok {
		return 0, false
	}
	f := sd.Field(name)
	if f == nil {
		return 0, false
	}
	id, ok := f.(*IntDef)
	if !ok {
		return 0, false
	}
	return id.Uint(), true
}
