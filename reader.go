// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

import (
	"os"
	"sync/atomic"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/efficios/ctf-go/internal/log"
)

// ReaderOptions configures a Reader, mirroring WriterOptions.
type ReaderOptions struct {
	Interrupter *atomic.Bool
	Logger      log.Logger
}

// Reader drives the CTF read side: one trace's packet-header declaration
// plus whichever of its streams have been opened.
type Reader struct {
	trace  *TraceClass
	opts   ReaderOptions
	logger *log.Helper
}

// NewReader binds a reader to trace, whose packet-header declaration and
// UUID every opened stream is validated against.
func NewReader(trace *TraceClass, opts *ReaderOptions) *Reader {
	o := ReaderOptions{}
	if opts != nil {
		o = *opts
	}
	var logger log.Logger
	if o.Logger != nil {
		logger = o.Logger
	} else {
		logger = log.NewStdLogger(os.Stderr)
	}
	return &Reader{
		trace:  trace,
		opts:   o,
		logger: log.NewHelper(log.NewFilter(logger, log.FilterLevel(log.LevelWarn))),
	}
}

func (r *Reader) Trace() *TraceClass { return r.trace }

func (r *Reader) interrupted() bool {
	return r.opts.Interrupter != nil && r.opts.Interrupter.Load()
}

// ReaderStream is one open, memory-mapped stream file positioned at its
// current packet.
type ReaderStream struct {
	r    *Reader
	name string
	file *os.File
	sc   *StreamClass

	region     mmap.MMap
	fileOffset uint64

	streamID uint32
	haveID   bool

	packet *Packet
	pos    *Position
}

// OpenStream opens an existing stream_<n> file for reading and maps its
// first packet.
func (r *Reader) OpenStream(path string, sc *StreamClass) (*ReaderStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapErr("Reader.OpenStream", KindIO, "opening stream file", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, wrapErr("Reader.OpenStream", KindIO, "statting stream file", err)
	}
	region, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, wrapErr("Reader.OpenStream", KindIO, "mapping stream file", err)
	}
	rs := &ReaderStream{
		r:      r,
		name:   path,
		file:   f,
		sc:     sc,
		region: region,
	}
	if uint64(info.Size()) == 0 {
		return rs, nil
	}
	if err := rs.openPacket(); err != nil {
		rs.Close()
		return nil, err
	}
	return rs, nil
}

func (rs *ReaderStream) StreamClass() *StreamClass { return rs.sc }
func (rs *ReaderStream) Packet() *Packet           { return rs.packet }

// openPacket maps the packet window starting at fileOffset, reads its
// header and context, and validates the header's magic and (when the
// header has a character-array uuid field) its UUID against the trace's
// metadata. The header's stream_id is recorded as the stream's id; it is
// not compared against the stream class.
func (rs *ReaderStream) openPacket() error {
	if rs.fileOffset >= uint64(len(rs.region)) {
		return newErr("ReaderStream.openPacket", KindIO, "no more packets")
	}

	p, err := newPacket(rs.traceHeaderDecl(), rs.sc.PacketContextDecl())
	if err != nil {
		return err
	}

	// Packet size is only known once the context has been read, so the
	// header is read first against a window sized to the remainder of
	// the file, then the position is re-seated once packet_size is
	// known.
	buf := rs.region[rs.fileOffset:]
	rs.pos = NewReadPosition(buf, uint64(len(buf))*8)
	rs.packet = p

	if p.headerDef != nil {
		if err := p.headerDef.read(rs.pos); err != nil {
			return err
		}
		if magic, ok := getField(p.headerDef, "magic"); ok && magic != uint64(packetMagic) {
			return newErr("ReaderStream.openPacket", KindFormatMismatch, "bad packet magic")
		}
		if sd, ok := p.headerDef.(*StructDef); ok && rs.r.trace != nil {
			if ad, ok := sd.Field("uuid").(*ArrayDef); ok && ad.IsChar() {
				u := rs.r.trace.UUID()
				if string(ad.Bytes()) != string(u[:]) {
					return newErr("ReaderStream.openPacket", KindFormatMismatch, "packet uuid does not match the trace uuid")
				}
			}
		}
		if streamID, ok := getField(p.headerDef, "stream_id"); ok {
			rs.streamID = uint32(streamID)
			rs.haveID = true
		}
	}

	packetSizeBits := uint64(len(buf)) * 8
	contentSizeBits := packetSizeBits
	if p.contextDef != nil {
		if err := p.contextDef.read(rs.pos); err != nil {
			return err
		}
		if v, ok := getField(p.contextDef, "packet_size"); ok && v > 0 {
			packetSizeBits = v
		}
		if v, ok := getField(p.contextDef, "content_size"); ok {
			contentSizeBits = v
		} else {
			contentSizeBits = rs.pos.Offset()
		}
		if v, ok := getField(p.contextDef, "events_discarded"); ok {
			p.eventsDiscarded = v
		}
	} else {
		contentSizeBits = rs.pos.Offset()
	}

	packetSizeBytes := packetSizeBits / 8
	if packetSizeBytes == 0 || rs.fileOffset+packetSizeBytes > uint64(len(rs.region)) {
		return newErr("ReaderStream.openPacket", KindFormatMismatch, "declared packet_size exceeds file size")
	}
	rs.pos.Reseat(rs.region[rs.fileOffset:rs.fileOffset+packetSizeBytes], contentSizeBits)
	// Re-run the header/context read now that the cursor has the real
	// packet window and content ceiling.
	if p.headerDef != nil {
		if err := p.headerDef.read(rs.pos); err != nil {
			return err
		}
	}
	if p.contextDef != nil {
		if err := p.contextDef.read(rs.pos); err != nil {
			return err
		}
	}
	p.state = PacketHeaderWritten
	return nil
}

func (rs *ReaderStream) traceHeaderDecl() Declaration {
	if rs.r.trace == nil {
		return nil
	}
	return rs.r.trace.PacketHeaderDecl()
}

// NextEvent reads the stream event header, looks up the event class by
// id, then reads its context(s) and payload. On EOF-of-content (not
// EOF-of-packet) it advances to the next packet. Returns an error of
// kind KindUnderrun once the stream is exhausted.
func (rs *ReaderStream) NextEvent() (*Event, error) {
	if rs.r.interrupted() {
		return nil, newErr("ReaderStream.NextEvent", KindInterrupted, "reader interrupted")
	}
	if rs.packet == nil {
		return nil, newErr("ReaderStream.NextEvent", KindUnderrun, "no packet open")
	}
	for rs.pos.Offset() >= rs.pos.ContentSize() {
		rs.fileOffset += rs.pos.PacketSize() / 8
		if rs.fileOffset >= uint64(len(rs.region)) {
			return nil, newErr("ReaderStream.NextEvent", KindUnderrun, "end of stream")
		}
		if err := rs.openPacket(); err != nil {
			return nil, err
		}
	}

	headerDecl := rs.sc.EventHeaderDecl()
	var headerDef Definition
	scope := NewScope()
	scope.SetRoot(RootPacketHeader, rs.packet.headerDef)
	scope.SetRoot(RootPacketContext, rs.packet.contextDef)

	if headerDecl != nil {
		def, err := CreateFrom(headerDecl, scope, "event_header", 0, "")
		if err != nil {
			return nil, err
		}
		if err := def.read(rs.pos); err != nil {
			return nil, err
		}
		headerDef = def
		scope.SetRoot(RootEventHeader, def)
	}

	var id int64 = 0
	if headerDef != nil {
		if v, ok := getField(headerDef, "id"); ok {
			id = int64(v)
		}
	}
	class := rs.sc.EventClassByID(id)
	if class == nil {
		return nil, newErr("ReaderStream.NextEvent", KindFormatMismatch, "unknown event class id")
	}

	ev, err := NewEvent(class, rs.sc)
	if err != nil {
		return nil, err
	}
	ev.scope.SetRoot(RootPacketHeader, rs.packet.headerDef)
	ev.scope.SetRoot(RootPacketContext, rs.packet.contextDef)
	if headerDef != nil {
		ev.scope.SetRoot(RootEventHeader, headerDef)
	}

	if ev.streamEventContext != nil {
		if err := ev.streamEventContext.read(rs.pos); err != nil {
			return nil, err
		}
	}
	if ev.specificContext != nil {
		if err := ev.specificContext.read(rs.pos); err != nil {
			return nil, err
		}
	}
	if ev.payload != nil {
		if err := ev.payload.read(rs.pos); err != nil {
			return nil, err
		}
	}

	if headerDef != nil {
		if ticks, ok := getField(headerDef, "timestamp"); ok {
			for _, c := range rs.sc.Clocks() {
				snap := ClockSnapshot{Class: c, Ticks: ticks}
				ev.clockSnapshot = &snap
				break
			}
			rs.packet.observeEventTimestamp(ticks)
		}
	}
	ev.markAppended()
	return ev, nil
}

// Close unmaps and closes the stream file.
func (rs *ReaderStream) Close() error {
	if rs.region != nil {
		if err := rs.region.Unmap(); err != nil {
			return wrapErr("ReaderStream.Close", KindIO, "unmapping stream file", err)
		}
	}
	return rs.file.Close()
}
