// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

// EventClass is the schema of one kind of event: its own context and
// payload declarations, plus its attributes (id, name, loglevel,
// model.emf.uri). Context/payload are distinct from the
// stream's shared header/stream-context.
type EventClass struct {
	name string
	id   int64 // -1 until assigned by SetID or StreamClass.AddEventClass

	contextDecl Declaration
	payloadDecl Declaration

	stream *StreamClass

	hasLogLevel bool
	logLevel    int32
	modelEMFURI string
}

// NewEventClass creates an event class with no id yet assigned.
func NewEventClass(name string) *EventClass {
	return &EventClass{name: name, id: -1}
}

func (e *EventClass) Name() string       { return e.name }
func (e *EventClass) ID() int64          { return e.id }
func (e *EventClass) Stream() *StreamClass { return e.stream }

// SetID fixes the event class's id explicitly; once the class has been
// added to a stream (and thereby serialized), the id is immutable.
func (e *EventClass) SetID(id uint64) error {
	if e.stream != nil {
		return newErr("EventClass.SetID", KindFrozen, "event class id is immutable once added to a stream")
	}
	e.id = int64(id)
	return nil
}

func (e *EventClass) SetContextDecl(d Declaration) error {
	if e.stream != nil {
		return newErr("EventClass.SetContextDecl", KindFrozen, "event class already attached to a stream")
	}
	if d != nil {
		d.refInc()
	}
	e.contextDecl = d
	return nil
}

func (e *EventClass) ContextDecl() Declaration { return e.contextDecl }

func (e *EventClass) SetPayloadDecl(d Declaration) error {
	if e.stream != nil {
		return newErr("EventClass.SetPayloadDecl", KindFrozen, "event class already attached to a stream")
	}
	if d != nil {
		d.refInc()
	}
	e.payloadDecl = d
	return nil
}

func (e *EventClass) PayloadDecl() Declaration { return e.payloadDecl }

// SetLogLevel and SetModelEMFURI record the event class's optional
// loglevel and EMF model URI attributes, emitted into its metadata
// block when present.
func (e *EventClass) SetLogLevel(level int32) {
	e.hasLogLevel = true
	e.logLevel = level
}

func (e *EventClass) LogLevel() (int32, bool) { return e.logLevel, e.hasLogLevel }

func (e *EventClass) SetModelEMFURI(uri string) { e.modelEMFURI = uri }
func (e *EventClass) ModelEMFURI() string       { return e.modelEMFURI }

// Event is one instance of an event class: its header/context/payload
// definition trees plus the clock snapshot it was appended with. All
// mutators reject once the event has been appended to a packet.
type Event struct {
	class *EventClass

	scope *Scope

	streamEventContext Definition
	specificContext    Definition
	payload            Definition

	clockSnapshot *ClockSnapshot

	appended bool
}

// NewEvent builds an event instance shaped by class's payload/context
// declarations, plus the owning stream class's stream event context
// declaration, all resolved against a single fresh Scope. The event
// header is built later, by the writer or reader.
func NewEvent(class *EventClass, stream *StreamClass) (*Event, error) {
	if class.stream != stream {
		return nil, newErr("NewEvent", KindInvalidArgument, "event class does not belong to this stream")
	}
	ev := &Event{class: class, scope: NewScope()}

	if stream.streamEventContextDecl != nil {
		def, err := CreateFrom(stream.streamEventContextDecl, ev.scope, "stream_event_context", 0, "")
		if err != nil {
			return nil, err
		}
		ev.streamEventContext = def
		ev.scope.SetRoot(RootStreamEventContext, def)
	}
	if class.contextDecl != nil {
		def, err := CreateFrom(class.contextDecl, ev.scope, "event_context", 0, "")
		if err != nil {
			return nil, err
		}
		ev.specificContext = def
		ev.scope.SetRoot(RootEventContext, def)
	}
	if class.payloadDecl != nil {
		def, err := CreateFrom(class.payloadDecl, ev.scope, "payload", 0, "")
		if err != nil {
			return nil, err
		}
		ev.payload = def
		ev.scope.SetRoot(RootPayload, def)
	}
	return ev, nil
}

func (e *Event) Class() *EventClass { return e.class }

func (e *Event) StreamEventContext() Definition { return e.streamEventContext }
func (e *Event) SpecificContext() Definition    { return e.specificContext }
func (e *Event) Payload() Definition            { return e.payload }

// Scope exposes the event's resolution scope so the packet header and
// packet context definitions (set by the writer/reader once the owning
// packet is known) can be linked in as the outer roots.
func (e *Event) Scope() *Scope { return e.scope }

func (e *Event) checkMutable(op string) error {
	if e.appended {
		return newErr(op, KindFrozen, "event already appended")
	}
	return nil
}

// SetClockValue records the default clock snapshot carried by this
// event.
func (e *Event) SetClockValue(snap ClockSnapshot) error {
	if err := e.checkMutable("Event.SetClockValue"); err != nil {
		return err
	}
	e.clockSnapshot = &snap
	return nil
}

func (e *Event) ClockSnapshot() *ClockSnapshot { return e.clockSnapshot }

func (e *Event) markAppended() { e.appended = true }
