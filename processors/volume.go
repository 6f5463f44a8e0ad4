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

// MaxVolumeGain bounds SetGain; anything hotter is a configuration mistake.
const MaxVolumeGain = 4.0

// VolumeControl scales samples by a gain factor. A gain change is ramped
// linearly across the next buffer instead of being applied as a step, so
// live adjustments never click.
type VolumeControl struct {
	mu     sync.Mutex
	logger commons.Logger
	format audio.Format

	current float64 // gain at the end of the last processed buffer
	target  float64

	processed uint64
	errors    uint64
}

// NewVolumeControl creates a gain stage. The initial gain applies without a
// ramp.
func NewVolumeControl(logger commons.Logger, format audio.Format, gain float64) *VolumeControl {
	gain = clampGain(gain)
	return &VolumeControl{logger: logger, format: format, current: gain, target: gain}
}

func clampGain(gain float64) float64 {
	return math.Max(0, math.Min(MaxVolumeGain, gain))
}

// SetGain schedules a new gain; the transition is spread over the next
// buffer.
func (v *VolumeControl) SetGain(gain float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.target = clampGain(gain)
}

// Gain returns the currently applied gain.
func (v *VolumeControl) Gain() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

func (v *VolumeControl) Process(inputs []*audio.Buffer) (*audio.Buffer, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(inputs) != 1 {
		v.errors++
		return nil, audio.FormatError("volume.process", "volume control takes exactly one input")
	}
	in := inputs[0]
	if !in.Format().Equal(v.format) {
		v.errors++
		return nil, audio.FormatMismatch("volume.process", v.format, in.Format())
	}

	frames := in.FrameCount()
	channels := int(in.Format().Channels)
	out := make([]float32, len(in.Samples()))

	from, to := v.current, v.target
	for i := 0; i < frames; i++ {
		gain := from
		if frames > 1 {
			gain = from + (to-from)*float64(i)/float64(frames-1)
		}
		for c := 0; c < channels; c++ {
			idx := i*channels + c
			out[idx] = float32(float64(in.Samples()[idx]) * gain)
		}
	}
	v.current = to

	result, err := in.WithSamples(v.format, out)
	if err != nil {
		v.errors++
		return nil, err
	}
	v.processed++
	return result, nil
}

func (v *VolumeControl) FormatIn() audio.Format  { return v.format }
func (v *VolumeControl) FormatOut() audio.Format { return v.format }

func (v *VolumeControl) Stats() audio.ProcessorStats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return audio.ProcessorStats{BuffersProcessed: v.processed, Errors: v.errors}
}

var _ AudioProcessor = (*VolumeControl)(nil)
