// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

import (
	"container/heap"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/efficios/ctf-go/internal/log"
)

// CollectionOptions configures a TraceCollection.
type CollectionOptions struct {
	Interrupter *atomic.Bool
	Logger      log.Logger
}

// TraceCollection iterates the events of every stream added to it with
// AddStream in non-decreasing timestamp order. Finding trace directories
// under a root is done separately, by DiscoverTraces.
type TraceCollection struct {
	opts    CollectionOptions
	logger  *log.Helper
	streams []*ReaderStream
	h       streamHeap
	primed  bool
}

// DiscoverTraces walks root and returns the directories that contain a
// `metadata` file, one per trace.
func DiscoverTraces(root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if _, statErr := os.Stat(filepath.Join(path, "metadata")); statErr == nil {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return nil, wrapErr("DiscoverTraces", KindIO, "walking trace root", err)
	}
	return dirs, nil
}

// NewTraceCollection creates an empty collection; streams are added via
// AddStream once their trace's metadata has been parsed and their
// stream_<n> files opened.
func NewTraceCollection(opts *CollectionOptions) *TraceCollection {
	o := CollectionOptions{}
	if opts != nil {
		o = *opts
	}
	var logger log.Logger
	if o.Logger != nil {
		logger = o.Logger
	} else {
		logger = log.NewStdLogger(os.Stderr)
	}
	return &TraceCollection{
		opts:   o,
		logger: log.NewHelper(log.NewFilter(logger, log.FilterLevel(log.LevelWarn))),
	}
}

// AddStream registers an already-opened ReaderStream with the
// collection.
func (tc *TraceCollection) AddStream(rs *ReaderStream) {
	tc.streams = append(tc.streams, rs)
}

func (tc *TraceCollection) interrupted() bool {
	return tc.opts.Interrupter != nil && tc.opts.Interrupter.Load()
}

// prime seeds the heap with one head event per stream.
func (tc *TraceCollection) prime() error {
	tc.h = make(streamHeap, 0, len(tc.streams))
	for _, rs := range tc.streams {
		if err := tc.advance(rs); err != nil {
			return err
		}
	}
	heap.Init(&tc.h)
	tc.primed = true
	return nil
}

// advance reads the next event off rs and pushes it onto the heap,
// silently skipping a stream once it is exhausted (ErrUnderrun).
func (tc *TraceCollection) advance(rs *ReaderStream) error {
	ev, err := rs.NextEvent()
	if err != nil {
		if ce, ok := err.(*Error); ok && ce.Kind == KindUnderrun {
			return nil
		}
		return err
	}
	ticks := int64(0)
	if ev.clockSnapshot != nil {
		ticks = ev.clockSnapshot.NanosFromOrigin()
	}
	heap.Push(&tc.h, &headEntry{ticks: ticks, streamID: rs.streamID, seq: rs, event: ev})
	return nil
}

// Next pops the earliest not-yet-emitted event across every stream,
// pulling a replacement head from that same stream before returning
// (the decrease-key step). Cooperative cancellation: if the
// interrupter is set, Next returns ErrInterrupted and the caller may
// resume later after clearing it.
func (tc *TraceCollection) Next() (*Event, error) {
	if tc.interrupted() {
		return nil, newErr("TraceCollection.Next", KindInterrupted, "collection iteration interrupted")
	}
	if !tc.primed {
		if err := tc.prime(); err != nil {
			return nil, err
		}
	}
	if tc.h.Len() == 0 {
		return nil, newErr("TraceCollection.Next", KindUnderrun, "no more events")
	}
	top := heap.Pop(&tc.h).(*headEntry)
	if err := tc.advance(top.seq); err != nil {
		return nil, err
	}
	return top.event, nil
}

// Close closes every stream in the collection.
func (tc *TraceCollection) Close() error {
	var first error
	for _, rs := range tc.streams {
		if err := rs.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
