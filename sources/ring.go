// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package sources

import (
	"sync"

	"github.com/rapidaai/audiograph/audio"
)

// DefaultRingCapacity is the per-source buffer ring depth (~capacity ticks of
// backlog before capture starts overrunning).
const DefaultRingCapacity = 32

// bufferRing is the bounded queue between a platform capture callback and
// the graph's processing loop. The callback thread pushes, the graph thread
// pops. When full the OLDEST buffer is evicted so the capture thread never
// blocks and the freshest audio survives.
type bufferRing struct {
	mu       sync.Mutex
	buffers  []*audio.Buffer
	capacity int
}

func newBufferRing(capacity int) *bufferRing {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &bufferRing{capacity: capacity}
}

// push appends a buffer, evicting the oldest entry when full. It reports
// whether an eviction happened so the caller can count the overrun.
func (r *bufferRing) push(buf *audio.Buffer) (dropped bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.buffers) >= r.capacity {
		r.buffers = r.buffers[1:]
		dropped = true
	}
	r.buffers = append(r.buffers, buf)
	return dropped
}

// pop removes and returns the oldest buffer, nil when empty.
func (r *bufferRing) pop() *audio.Buffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.buffers) == 0 {
		return nil
	}
	buf := r.buffers[0]
	r.buffers = r.buffers[1:]
	return buf
}

func (r *bufferRing) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffers)
}

func (r *bufferRing) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffers = nil
}
