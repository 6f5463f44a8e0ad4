// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package sources

import (
	"sync"
	"time"

	"github.com/rapidaai/audiograph/audio"
	"github.com/rapidaai/audiograph/pkg/commons"
)

// SilenceSource is a deterministic generator producing one zero-filled
// buffer per Read at a fixed cadence. It drives graph topology tests and
// benchmarks without real hardware: timestamps advance by exactly one buffer
// duration per Read, independent of wall time.
type SilenceSource struct {
	mu       sync.Mutex
	logger   commons.Logger
	format   audio.Format
	frames   int
	started  bool
	produced uint64
	base     time.Time
	// clock is injectable for testing; defaults to time.Now.
	clock func() time.Time
}

// NewSilenceSource creates a silence generator emitting buffers of the given
// frame count.
func NewSilenceSource(logger commons.Logger, format audio.Format, frames int) *SilenceSource {
	return &SilenceSource{
		logger: logger,
		format: format,
		frames: frames,
		clock:  time.Now,
	}
}

func (s *SilenceSource) Configure(format audio.Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return audio.StateError("silence.configure", audio.ErrAlreadyStarted)
	}
	if !format.Valid() {
		return audio.FormatError("silence.configure", "invalid format "+format.String())
	}
	s.format = format
	return nil
}

func (s *SilenceSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return audio.StateError("silence.start", audio.ErrAlreadyStarted)
	}
	s.started = true
	s.base = s.clock()
	s.produced = 0
	return nil
}

func (s *SilenceSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	return nil
}

func (s *SilenceSource) Read() (*audio.Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil, audio.StateError("silence.read", audio.ErrNotStarted)
	}
	at := s.base.Add(s.format.FrameDuration(s.frames * int(s.produced)))
	buf, err := audio.NewBuffer(s.format, make([]float32, s.frames*int(s.format.Channels)), at)
	if err != nil {
		return nil, err
	}
	s.produced++
	return buf, nil
}

func (s *SilenceSource) Format() audio.Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

func (s *SilenceSource) Stats() audio.SourceStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return audio.SourceStats{BuffersProduced: s.produced}
}

var _ AudioSource = (*SilenceSource)(nil)
