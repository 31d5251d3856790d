// Copyright 2024 The ctf-go Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package ctf

import "container/heap"

// headEntry is one stream's next unconsumed event, ordered into the
// trace-collection's min-heap by (timestamp, stream id) — ties break by
// stream id, stably.
type headEntry struct {
	ticks    int64
	streamID uint32
	seq      *ReaderStream
	event    *Event
}

// streamHeap orders stream heads so that popping always yields the
// earliest not-yet-emitted event across every open stream, breaking
// ties by stream id. Every time a stream's head advances, the caller
// pushes its new head back in, so decrease-key is container/heap's
// ordinary Push/Pop.
type streamHeap []*headEntry

func (h streamHeap) Len() int { return len(h) }

func (h streamHeap) Less(i, j int) bool {
	if h[i].ticks != h[j].ticks {
		return h[i].ticks < h[j].ticks
	}
	return h[i].streamID < h[j].streamID
}

func (h streamHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *streamHeap) Push(x any) { *h = append(*h, x.(*headEntry)) }

func (h *streamHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

var _ heap.Interface = (*streamHeap)(nil)
