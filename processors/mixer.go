// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package processors

import (
	"fmt"
	"math"
	"sync"

	"github.com/rapidaai/audiograph/audio"
	"github.com/rapidaai/audiograph/pkg/commons"
)

const (
	MixerMinInputs = 2
	MixerMaxInputs = 8

	// softClipKnee is where the limiter starts bending the transfer curve.
	softClipKnee = 0.95
)

// Mixer sums 2–8 same-format inputs with per-input gain, then soft-clips the
// sum so overlapping loud inputs cannot overflow into harsh digital
// distortion. Inputs of a different format are rejected; callers insert a
// Resampler upstream instead.
type Mixer struct {
	mu     sync.Mutex
	logger commons.Logger
	format audio.Format
	gains  []float64

	processed uint64
	errors    uint64
}

// NewMixer creates a mixer for len(gains) inputs; gains[i] applies to input
// i and is clamped to [0, 1].
func NewMixer(logger commons.Logger, format audio.Format, gains []float64) (*Mixer, error) {
	if len(gains) < MixerMinInputs || len(gains) > MixerMaxInputs {
		return nil, audio.FormatError("mixer",
			fmt.Sprintf("mixer supports %d-%d inputs, got %d", MixerMinInputs, MixerMaxInputs, len(gains)))
	}
	clamped := make([]float64, len(gains))
	for i, g := range gains {
		clamped[i] = math.Max(0, math.Min(1, g))
	}
	return &Mixer{logger: logger, format: format, gains: clamped}, nil
}

// SetGain updates one input's gain. Takes effect on the next Process call.
func (m *Mixer) SetGain(input int, gain float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if input < 0 || input >= len(m.gains) {
		return audio.FormatError("mixer.gain", fmt.Sprintf("no input %d", input))
	}
	m.gains[input] = math.Max(0, math.Min(1, gain))
	return nil
}

func (m *Mixer) Process(inputs []*audio.Buffer) (*audio.Buffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(inputs) != len(m.gains) {
		m.errors++
		return nil, audio.FormatError("mixer.process",
			fmt.Sprintf("configured for %d inputs, got %d", len(m.gains), len(inputs)))
	}
	frames := inputs[0].FrameCount()
	for _, in := range inputs {
		if !in.Format().Equal(m.format) {
			m.errors++
			return nil, audio.FormatMismatch("mixer.process", m.format, in.Format())
		}
		if in.FrameCount() != frames {
			m.errors++
			return nil, audio.FormatError("mixer.process", "inputs are not cadence aligned")
		}
	}

	mixed := make([]float32, len(inputs[0].Samples()))
	for i, in := range inputs {
		gain := m.gains[i]
		for j, s := range in.Samples() {
			mixed[j] += float32(float64(s) * gain)
		}
	}
	for j, s := range mixed {
		mixed[j] = softClip(s)
	}

	out, err := inputs[0].WithSamples(m.format, mixed)
	if err != nil {
		m.errors++
		return nil, err
	}
	m.processed++
	return out, nil
}

// softClip is a tanh knee above ±softClipKnee: linear below the knee, then a
// smooth saturation that asymptotically approaches ±1.
func softClip(s float32) float32 {
	abs := math.Abs(float64(s))
	if abs <= softClipKnee {
		return s
	}
	headroom := 1.0 - softClipKnee
	shaped := softClipKnee + headroom*math.Tanh((abs-softClipKnee)/headroom)
	if s < 0 {
		return float32(-shaped)
	}
	return float32(shaped)
}

func (m *Mixer) FormatIn() audio.Format  { return m.format }
func (m *Mixer) FormatOut() audio.Format { return m.format }

func (m *Mixer) Stats() audio.ProcessorStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return audio.ProcessorStats{BuffersProcessed: m.processed, Errors: m.errors}
}

var _ AudioProcessor = (*Mixer)(nil)
