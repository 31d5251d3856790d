// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

// StreamClass is the schema shared by every packet of one stream: its
// packet-context, event-header and stream-common event-context
// declarations, plus the event classes it carries.
type StreamClass struct {
	trace *TraceClass
	name  string

	packetContextDecl      Declaration
	eventHeaderDecl        Declaration
	streamEventContextDecl Declaration

	eventClasses []*EventClass
	nextEventID  uint64

	clocks []*ClockClass
}

// NewStreamClass creates an empty stream class, not yet attached to any
// trace class.
func NewStreamClass(name string) *StreamClass {
	return &StreamClass{name: name}
}

func (s *StreamClass) Name() string          { return s.name }
func (s *StreamClass) Trace() *TraceClass    { return s.trace }
func (s *StreamClass) EventClasses() []*EventClass { return s.eventClasses }

func (s *StreamClass) SetPacketContextDecl(d Declaration) error {
	if d != nil {
		d.refInc()
	}
	s.packetContextDecl = d
	return nil
}

func (s *StreamClass) PacketContextDecl() Declaration { return s.packetContextDecl }

func (s *StreamClass) SetEventHeaderDecl(d Declaration) error {
	if d != nil {
		d.refInc()
	}
	s.eventHeaderDecl = d
	return nil
}

func (s *StreamClass) EventHeaderDecl() Declaration { return s.eventHeaderDecl }

// SetEventContextDecl installs the stream-common event-context
// declaration, shared by every event class of this stream (the "stream
// event context", distinct from an individual event class's own
// "specific context" set via EventClass.SetContextDecl; the two trees
// are independent).
func (s *StreamClass) SetEventContextDecl(d Declaration) error {
	if d != nil {
		d.refInc()
	}
	s.streamEventContextDecl = d
	return nil
}

func (s *StreamClass) EventContextDecl() Declaration { return s.streamEventContextDecl }

// AddEventClass attaches e to the stream, assigning it a deterministic
// id (the first unused value of a per-stream counter) if it does not
// already have one, resolving every dynamic-array/variant reference
// reachable from the trace's packet header down through e's payload,
// and freezing every declaration involved.
func (s *StreamClass) AddEventClass(e *EventClass) error {
	if e.id < 0 {
		e.id = int64(s.nextEventID)
	}
	if uint64(e.id) >= s.nextEventID {
		s.nextEventID = uint64(e.id) + 1
	}
	for _, existing := range s.eventClasses {
		if existing.id == e.id {
			return newErr("StreamClass.AddEventClass", KindInvalidArgument, "event class id already in use on this stream")
		}
	}

	var traceHeader Declaration
	if s.trace != nil {
		traceHeader = s.trace.packetHeaderDecl
	}
	roots := RootDecls{
		PacketHeader:       traceHeader,
		PacketContext:      s.packetContextDecl,
		EventHeader:        s.eventHeaderDecl,
		StreamEventContext: s.streamEventContextDecl,
		EventContext:       e.contextDecl,
		Payload:            e.payloadDecl,
	}
	if err := Attach(roots); err != nil {
		return err
	}
	e.stream = s
	s.eventClasses = append(s.eventClasses, e)
	return nil
}

// EventClassByID returns the event class with the given id, or nil.
func (s *StreamClass) EventClassByID(id int64) *EventClass {
	for _, e := range s.eventClasses {
		if e.id == id {
			return e
		}
	}
	return nil
}

// AddClock registers a clock class this stream's events may set
// timestamps against.
func (s *StreamClass) AddClock(c *ClockClass) {
	s.clocks = append(s.clocks, c)
	if s.trace != nil {
		s.trace.AddClockClass(c)
	} else {
		c.Register()
	}
}

func (s *StreamClass) Clocks() []*ClockClass { return s.clocks }
