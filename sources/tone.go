// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package sources

import (
	"math"
	"sync"
	"time"

	"github.com/rapidaai/audiograph/audio"
	"github.com/rapidaai/audiograph/pkg/commons"
)

// ToneSource generates a continuous sine wave, phase-continuous across
// buffer boundaries. Used by mixer/resampler tests that need a signal with a
// known RMS.
type ToneSource struct {
	mu        sync.Mutex
	logger    commons.Logger
	format    audio.Format
	frames    int
	frequency float64
	amplitude float64

	started  bool
	produced uint64
	phase    float64
	base     time.Time
	clock    func() time.Time
}

// NewToneSource creates a sine generator. Amplitude is clamped to [0, 1].
func NewToneSource(logger commons.Logger, format audio.Format, frames int, frequency, amplitude float64) *ToneSource {
	amplitude = math.Max(0, math.Min(1, amplitude))
	return &ToneSource{
		logger:    logger,
		format:    format,
		frames:    frames,
		frequency: frequency,
		amplitude: amplitude,
		clock:     time.Now,
	}
}

func (s *ToneSource) Configure(format audio.Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return audio.StateError("tone.configure", audio.ErrAlreadyStarted)
	}
	if !format.Valid() {
		return audio.FormatError("tone.configure", "invalid format "+format.String())
	}
	s.format = format
	return nil
}

func (s *ToneSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return audio.StateError("tone.start", audio.ErrAlreadyStarted)
	}
	s.started = true
	s.base = s.clock()
	s.produced = 0
	s.phase = 0
	return nil
}

func (s *ToneSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	return nil
}

func (s *ToneSource) Read() (*audio.Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil, audio.StateError("tone.read", audio.ErrNotStarted)
	}

	step := 2 * math.Pi * s.frequency / float64(s.format.SampleRate)
	channels := int(s.format.Channels)
	samples := make([]float32, s.frames*channels)
	for i := 0; i < s.frames; i++ {
		v := float32(s.amplitude * math.Sin(s.phase))
		for c := 0; c < channels; c++ {
			samples[i*channels+c] = v
		}
		s.phase += step
	}
	// Keep phase bounded over long runs.
	s.phase = math.Mod(s.phase, 2*math.Pi)

	at := s.base.Add(s.format.FrameDuration(s.frames * int(s.produced)))
	buf, err := audio.NewBuffer(s.format, samples, at)
	if err != nil {
		return nil, err
	}
	s.produced++
	return buf, nil
}

func (s *ToneSource) Format() audio.Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

func (s *ToneSource) Stats() audio.SourceStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return audio.SourceStats{BuffersProduced: s.produced}
}

var _ AudioSource = (*ToneSource)(nil)
