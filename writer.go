// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/efficios/ctf-go/internal/log"
)

// DefaultPacketSizeIncrementBits is PACKET_LEN_INCREMENT:
// every stream file grows by this many bits each time a packet is
// opened.
const DefaultPacketSizeIncrementBits = 4096 * 8 * 8 // 32 KiB packets

// WriterOptions configures a Writer. All knobs are optional; the zero
// value is a usable default.
type WriterOptions struct {
	// PacketSizeIncrementBits is PACKET_LEN_INCREMENT, in bits. Defaults
	// to DefaultPacketSizeIncrementBits.
	PacketSizeIncrementBits uint64

	// Interrupter, if set, is polled at the start of every AppendEvent;
	// AppendEvent returns ErrInterrupted once it is true.
	Interrupter *atomic.Bool

	// PacketizeMetadata, when true, makes FlushMetadata emit the
	// packetized TSDL form (magic 0x75D11D57) instead of raw text.
	PacketizeMetadata bool

	// Logger overrides the default stderr logger.
	Logger log.Logger
}

// Writer drives the CTF write side: one trace directory, one or more
// streams, each a memory-mapped file of packets.
type Writer struct {
	dir     string
	trace   *TraceClass
	opts    WriterOptions
	streams []*WriterStream
	logger  *log.Helper
}

// NewWriter creates (or reuses) the trace directory dir and binds it to
// trace, whose packet-header declaration and UUID every stream created
// from it will share.
func NewWriter(dir string, trace *TraceClass, opts *WriterOptions) (*Writer, error) {
	if opts == nil {
		opts = &WriterOptions{}
	}
	o := *opts
	if o.PacketSizeIncrementBits == 0 {
		o.PacketSizeIncrementBits = DefaultPacketSizeIncrementBits
	}
	if o.PacketSizeIncrementBits%8 != 0 {
		return nil, newErr("NewWriter", KindInvalidArgument, "packet size increment must be byte-aligned")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, wrapErr("NewWriter", KindIO, "creating trace directory", err)
	}
	var logger log.Logger
	if o.Logger != nil {
		logger = o.Logger
	} else {
		logger = log.NewStdLogger(os.Stderr)
	}
	return &Writer{
		dir:    dir,
		trace:  trace,
		opts:   o,
		logger: log.NewHelper(log.NewFilter(logger, log.FilterLevel(log.LevelWarn))),
	}, nil
}

func (w *Writer) Trace() *TraceClass { return w.trace }

// CreateStream opens (creating if necessary) stream_<n> under the trace
// directory, maps an initial packet of PacketSizeIncrementBits, and
// writes its header.
func (w *Writer) CreateStream(sc *StreamClass) (*WriterStream, error) {
	id := uint32(len(w.streams))
	name := fmt.Sprintf("stream_%d", id)
	path := filepath.Join(w.dir, name)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, wrapErr("Writer.CreateStream", KindIO, "opening stream file", err)
	}

	ws := &WriterStream{
		w:              w,
		name:           name,
		file:           f,
		sc:             sc,
		streamID:       id,
		clocks:         make(map[*ClockClass]*ClockState),
		packetSizeBits: w.opts.PacketSizeIncrementBits,
	}
	for _, c := range sc.Clocks() {
		ws.clocks[c] = NewClockState(c)
	}
	if err := ws.growAndMap(w.opts.PacketSizeIncrementBits / 8); err != nil {
		f.Close()
		return nil, err
	}
	if err := ws.openPacket(); err != nil {
		ws.poison(err)
		return nil, err
	}
	w.streams = append(w.streams, ws)
	w.logger.Infof("created stream %s for stream class %q", name, sc.Name())
	return ws, nil
}

// FlushMetadata serializes the trace's declaration DAG as TSDL into the
// `metadata` file at the root of the trace directory, raw by default or
// packetized when the writer was configured with PacketizeMetadata.
func (w *Writer) FlushMetadata() error {
	if w.trace == nil {
		return newErr("Writer.FlushMetadata", KindInvalidArgument, "writer has no trace class")
	}
	f, err := os.OpenFile(filepath.Join(w.dir, "metadata"), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return wrapErr("Writer.FlushMetadata", KindIO, "opening metadata file", err)
	}
	if err := EmitMetadata(f, w.trace, w.opts.PacketizeMetadata); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return wrapErr("Writer.FlushMetadata", KindIO, "closing metadata file", err)
	}
	return nil
}

func (w *Writer) interrupted() bool {
	return w.opts.Interrupter != nil && w.opts.Interrupter.Load()
}

// Close flushes and closes every open stream.
func (w *Writer) Close() error {
	var first error
	for _, ws := range w.streams {
		if err := ws.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// WriterStream is one open, memory-mapped stream file plus the packet
// currently being filled.
type WriterStream struct {
	w    *Writer
	name string
	file *os.File
	sc   *StreamClass

	region         mmap.MMap
	fileOffset     uint64 // byte offset of the current packet's window within region
	packetSizeBits uint64

	streamID uint32

	packet           *Packet
	pos              *Position
	contextStartBits uint64

	clocks map[*ClockClass]*ClockState

	poisonErr error
}

func (ws *WriterStream) Name() string           { return ws.name }
func (ws *WriterStream) StreamClass() *StreamClass { return ws.sc }

func (ws *WriterStream) poison(err error) {
	ws.poisonErr = err
}

// growAndMap extends the backing file by one more packet of
// packetSizeBytes, remaps the whole file, and advances fileOffset to
// the start of the freshly grown window (owned by the *next* packet).
func (ws *WriterStream) growAndMap(packetSizeBytes uint64) error {
	oldTotal := uint64(0)
	if ws.region != nil {
		oldTotal = uint64(len(ws.region))
		if err := ws.region.Unmap(); err != nil {
			return wrapErr("WriterStream.growAndMap", KindIO, "unmapping stream file", err)
		}
	}
	newTotal := oldTotal + packetSizeBytes
	if err := ws.file.Truncate(int64(newTotal)); err != nil {
		return wrapErr("WriterStream.growAndMap", KindIO, "growing stream file", err)
	}
	region, err := mmap.Map(ws.file, mmap.RDWR, 0)
	if err != nil {
		return wrapErr("WriterStream.growAndMap", KindIO, "mapping stream file", err)
	}
	ws.region = region
	ws.fileOffset = oldTotal
	return nil
}

// openPacket builds a fresh Packet over the current packet window,
// writes its header fields by convention (magic, trace uuid, stream id)
// and reserves space for its context, leaving the cursor positioned at
// the start of the event area.
func (ws *WriterStream) openPacket() error {
	p, err := newPacket(ws.traceHeaderDecl(), ws.sc.PacketContextDecl())
	if err != nil {
		return err
	}
	buf := ws.region[ws.fileOffset : ws.fileOffset+ws.packetSizeBits/8]
	ws.pos = NewWritePosition(buf, false)
	ws.packet = p

	if p.headerDef != nil {
		setField(p.headerDef, "magic", uint64(packetMagic))
		if ws.w.trace != nil {
			u := ws.w.trace.UUID()
			setBytesField(p.headerDef, "uuid", u[:])
		}
		setField(p.headerDef, "stream_id", uint64(ws.streamID))
		if err := p.headerDef.write(ws.pos); err != nil {
			return err
		}
	}
	if p.contextDef != nil {
		ws.contextStartBits = ws.pos.Offset()
		setField(p.contextDef, "packet_size", ws.packetSizeBits)
		if err := p.contextDef.write(ws.pos); err != nil {
			return err
		}
	}
	p.state = PacketHeaderWritten
	return nil
}

func (ws *WriterStream) traceHeaderDecl() Declaration {
	if ws.w.trace == nil {
		return nil
	}
	return ws.w.trace.PacketHeaderDecl()
}

// closePacket pads the current packet to its ceiling, patches its
// context trailer fields, and flushes the mapped window.
func (ws *WriterStream) closePacket() error {
	contentSize := ws.pos.Offset()
	if ws.packet.contextDef != nil {
		setField(ws.packet.contextDef, "content_size", contentSize)
		setField(ws.packet.contextDef, "packet_size", ws.packetSizeBits)
		setField(ws.packet.contextDef, "events_discarded", ws.packet.eventsDiscarded)
		if tb, ok := ws.packet.TimestampBegin(); ok {
			setField(ws.packet.contextDef, "timestamp_begin", tb)
		}
		setField(ws.packet.contextDef, "timestamp_end", ws.packet.timestampEnd)

		if err := ws.pos.SeekTo(ws.contextStartBits); err != nil {
			return err
		}
		if err := ws.packet.contextDef.write(ws.pos); err != nil {
			return err
		}
	}
	ws.packet.state = PacketClosed
	if err := ws.region.Flush(); err != nil {
		return wrapErr("WriterStream.closePacket", KindIO, "flushing packet to disk", err)
	}
	return nil
}

// openNextPacket grows the stream file by one more packet increment and
// opens a fresh packet over the new window.
func (ws *WriterStream) openNextPacket() error {
	if err := ws.growAndMap(ws.packetSizeBits / 8); err != nil {
		return err
	}
	return ws.openPacket()
}

// AppendEvent appends in four steps: validate, a dummy size pass, a
// packet split if the event would overflow, then the real write plus
// the clock-monotonicity update.
func (ws *WriterStream) AppendEvent(ev *Event) error {
	if ws.poisonErr != nil {
		return wrapErr("WriterStream.AppendEvent", KindIO, "stream is poisoned", ws.poisonErr)
	}
	if ev.class.stream != ws.sc {
		return newErr("WriterStream.AppendEvent", KindInvalidArgument, "event class does not belong to this stream")
	}
	if ev.appended {
		return newErr("WriterStream.AppendEvent", KindInvalidArgument, "event already appended")
	}
	if ws.w.interrupted() {
		return newErr("WriterStream.AppendEvent", KindInterrupted, "writer interrupted")
	}

	headerDef, err := ws.buildEventHeader(ev)
	if err != nil {
		return err
	}
	ev.scope.SetRoot(RootPacketHeader, ws.packet.headerDef)
	ev.scope.SetRoot(RootPacketContext, ws.packet.contextDef)

	defs := []Definition{headerDef, ev.streamEventContext, ev.specificContext, ev.payload}

	for attempt := 0; ; attempt++ {
		b, err := sizeEvent(defs, ws.pos.Offset())
		if err != nil {
			return err
		}
		if ws.pos.Offset()+b <= ws.pos.PacketSize() {
			break
		}
		if attempt > 0 {
			return newErr("WriterStream.AppendEvent", KindOverrun, "event does not fit in an empty packet")
		}
		if err := ws.closePacket(); err != nil {
			ws.poison(err)
			return err
		}
		if err := ws.openNextPacket(); err != nil {
			ws.poison(err)
			return err
		}
		ev.scope.SetRoot(RootPacketHeader, ws.packet.headerDef)
		ev.scope.SetRoot(RootPacketContext, ws.packet.contextDef)
	}

	mark := ws.pos.Mark()
	for _, d := range defs {
		if d == nil {
			continue
		}
		if err := d.write(ws.pos); err != nil {
			ws.pos.Rollback(mark)
			return err
		}
	}

	if ev.clockSnapshot != nil {
		if state, ok := ws.clocks[ev.clockSnapshot.Class]; ok {
			if err := state.SetValue(ev.clockSnapshot.Ticks); err != nil {
				ws.pos.Rollback(mark)
				return err
			}
		}
		ws.packet.observeEventTimestamp(ev.clockSnapshot.Ticks)
	}
	ws.packet.state = PacketHasEvents
	ev.markAppended()
	return nil
}

// DiscardEvents records n events known to have been dropped upstream of
// the current packet, e.g. by a lossy ring buffer; the count lands in
// the packet context's events_discarded field when the packet closes.
func (ws *WriterStream) DiscardEvents(n uint64) {
	ws.packet.eventsDiscarded += n
}

// buildEventHeader constructs this append's event-header definition
// (event-class id, default clock value) fresh, since both are only
// known once the event is actually being appended.
func (ws *WriterStream) buildEventHeader(ev *Event) (Definition, error) {
	decl := ws.sc.EventHeaderDecl()
	if decl == nil {
		return nil, nil
	}
	def, err := CreateFrom(decl, ev.scope, "event_header", 0, "")
	if err != nil {
		return nil, err
	}
	setField(def, "id", uint64(ev.class.id))
	if ev.clockSnapshot != nil {
		setField(def, "timestamp", ev.clockSnapshot.Ticks)
	}
	ev.scope.SetRoot(RootEventHeader, def)
	return def, nil
}

// sizeEvent runs every non-nil definition through a dummy write pass and
// returns the total bit cost, without touching any real buffer. The dummy
// cursor is unbounded: whether the cost fits the current packet is the
// caller's split decision, not a sizing failure.
func sizeEvent(defs []Definition, startOffsetBits uint64) (uint64, error) {
	dp := NewDummyPosition(^uint64(0), startOffsetBits)
	for _, d := range defs {
		if d == nil {
			continue
		}
		if err := d.write(dp); err != nil {
			return 0, err
		}
	}
	return dp.Offset() - startOffsetBits, nil
}

// Close closes out the current packet and the underlying file.
func (ws *WriterStream) Close() error {
	if ws.packet != nil && ws.packet.state != PacketClosed {
		if err := ws.closePacket(); err != nil {
			return err
		}
	}
	if ws.region != nil {
		if err := ws.region.Unmap(); err != nil {
			return wrapErr("WriterStream.Close", KindIO, "unmapping stream file", err)
		}
	}
	return ws.file.Close()
}
