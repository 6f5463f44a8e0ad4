// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package processors

import (
	"math"
	"sync"

	"github.com/rapidaai/audiograph/audio"
	"github.com/rapidaai/audiograph/pkg/commons"
)

// Normalizer scales audio toward a target peak with one buffer of
// look-ahead: the gain applied to a buffer also accounts for the peak of the
// buffer that follows it, so a loud transient never clips because the gain
// was chosen before it arrived. The look-ahead makes the stage emit nothing
// on its first Process call, so output lags input by exactly one buffer.
type Normalizer struct {
	mu         sync.Mutex
	logger     commons.Logger
	format     audio.Format
	targetPeak float64
	maxGain    float64

	held *audio.Buffer

	processed uint64
	errors    uint64
}

// NewNormalizer creates a look-ahead peak normalizer. targetPeak is the
// desired output peak in (0, 1]; maxGain caps amplification of quiet
// material so noise floors are not blown up.
func NewNormalizer(logger commons.Logger, format audio.Format, targetPeak, maxGain float64) *Normalizer {
	targetPeak = math.Max(0.01, math.Min(1, targetPeak))
	if maxGain <= 0 {
		maxGain = 4.0
	}
	return &Normalizer{logger: logger, format: format, targetPeak: targetPeak, maxGain: maxGain}
}

func (n *Normalizer) Process(inputs []*audio.Buffer) (*audio.Buffer, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(inputs) != 1 {
		n.errors++
		return nil, audio.FormatError("normalizer.process", "normalizer takes exactly one input")
	}
	in := inputs[0]
	if !in.Format().Equal(n.format) {
		n.errors++
		return nil, audio.FormatMismatch("normalizer.process", n.format, in.Format())
	}

	// Prime the look-ahead on the first buffer.
	if n.held == nil {
		n.held = in
		return nil, nil
	}

	current := n.held
	n.held = in

	// Gain from the louder of the outgoing buffer and the look-ahead buffer,
	// so the same gain cannot clip when the next buffer ships.
	peak := math.Max(current.Peak(), in.Peak())
	gain := n.maxGain
	if peak > 0 {
		gain = math.Min(n.maxGain, n.targetPeak/peak)
	}

	out := make([]float32, len(current.Samples()))
	for i, s := range current.Samples() {
		out[i] = float32(float64(s) * gain)
	}
	result, err := current.WithSamples(n.format, out)
	if err != nil {
		n.errors++
		return nil, err
	}
	n.processed++
	return result, nil
}

// Flush returns the final held buffer un-normalized, for callers flushing
// the pipeline at stop. Returns nil once the look-ahead slot is empty.
func (n *Normalizer) Flush() (*audio.Buffer, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	held := n.held
	n.held = nil
	return held, nil
}

func (n *Normalizer) FormatIn() audio.Format  { return n.format }
func (n *Normalizer) FormatOut() audio.Format { return n.format }

func (n *Normalizer) Stats() audio.ProcessorStats {
	n.mu.Lock()
	defer n.mu.Unlock()
	return audio.ProcessorStats{BuffersProcessed: n.processed, Errors: n.errors}
}

var _ AudioProcessor = (*Normalizer)(nil)
