// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package sinks

import (
	"sync"

	"github.com/rapidaai/audiograph/audio"
	"github.com/rapidaai/audiograph/pkg/commons"
)

// DefaultBufferSinkCapacity caps in-memory accumulation (~100s of 10ms
// buffers).
const DefaultBufferSinkCapacity = 10000

// BufferSink accumulates buffers in memory for inspection, up to an explicit
// cap. Buffers arriving beyond the cap are dropped and counted in Dropped;
// the cap keeps a forgotten test sink from growing without bound.
type BufferSink struct {
	mu       sync.Mutex
	logger   commons.Logger
	capacity int
	buffers  []*audio.Buffer
	closed   bool

	written uint64
	samples uint64
	dropped uint64
}

// NewBufferSink creates an accumulating sink. capacity <= 0 selects the
// default cap.
func NewBufferSink(logger commons.Logger, capacity int) *BufferSink {
	if capacity <= 0 {
		capacity = DefaultBufferSinkCapacity
	}
	return &BufferSink{logger: logger, capacity: capacity}
}

func (s *BufferSink) Write(buf *audio.Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return audio.StateError("buffer.write", audio.ErrClosed)
	}
	if len(s.buffers) >= s.capacity {
		s.dropped++
		if s.dropped == 1 {
			s.logger.Warnw("buffer sink at capacity, dropping", "capacity", s.capacity)
		}
		return nil
	}
	s.buffers = append(s.buffers, buf)
	s.written++
	s.samples += uint64(len(buf.Samples()))
	return nil
}

func (s *BufferSink) Flush() error { return nil }

func (s *BufferSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Buffers returns the accumulated buffers. The returned slice is a copy;
// the buffers themselves are shared and read-only as always.
func (s *BufferSink) Buffers() []*audio.Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*audio.Buffer, len(s.buffers))
	copy(out, s.buffers)
	return out
}

func (s *BufferSink) Stats() audio.SinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return audio.SinkStats{BuffersWritten: s.written, SamplesWritten: s.samples, Dropped: s.dropped}
}

var _ AudioSink = (*BufferSink)(nil)
