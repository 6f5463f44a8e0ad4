// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package sinks

import (
	"sync"

	"github.com/rapidaai/audiograph/audio"
)

// NullSink discards everything, tracking only throughput counters. Used to
// benchmark source/processor overhead in isolation.
type NullSink struct {
	mu      sync.Mutex
	closed  bool
	written uint64
	samples uint64
}

// NewNullSink creates a discarding sink.
func NewNullSink() *NullSink { return &NullSink{} }

func (s *NullSink) Write(buf *audio.Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return audio.StateError("null.write", audio.ErrClosed)
	}
	s.written++
	s.samples += uint64(len(buf.Samples()))
	return nil
}

func (s *NullSink) Flush() error { return nil }

func (s *NullSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *NullSink) Stats() audio.SinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return audio.SinkStats{BuffersWritten: s.written, SamplesWritten: s.samples}
}

var _ AudioSink = (*NullSink)(nil)
