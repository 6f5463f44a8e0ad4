// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package processors

import (
	"fmt"
	"sync"
	"time"

	resampler "github.com/tphakala/go-audio-resampler"

	"github.com/rapidaai/audiograph/audio"
	"github.com/rapidaai/audiograph/pkg/commons"
)

// Resampler converts between sample rates using the pure-Go libsoxr port
// (DFT pre-stage + polyphase FIR). One engine per channel carries the filter
// state across calls, so buffer boundaries introduce no discontinuities and
// sub-sample error accumulates in the engine instead of being rounded away
// per call, so a long run has no cumulative drift.
type Resampler struct {
	mu     sync.Mutex
	logger commons.Logger
	in     audio.Format
	out    audio.Format

	engines []*resampler.SimpleResamplerFloat32
	flushed bool

	processed uint64
	errors    uint64
}

// NewResampler creates a rate converter between two formats that differ only
// in sample rate.
func NewResampler(logger commons.Logger, in audio.Format, outRate uint32) (*Resampler, error) {
	if !in.Valid() || outRate == 0 {
		return nil, audio.FormatError("resampler", "invalid format or output rate")
	}
	out := in
	out.SampleRate = outRate

	engines := make([]*resampler.SimpleResamplerFloat32, in.Channels)
	for c := range engines {
		engine, err := resampler.NewEngineFloat32(float64(in.SampleRate), float64(outRate), resampler.QualityHigh)
		if err != nil {
			return nil, audio.FormatError("resampler",
				fmt.Sprintf("cannot build %d->%d engine: %v", in.SampleRate, outRate, err))
		}
		engines[c] = engine
	}
	return &Resampler{logger: logger, in: in, out: out, engines: engines}, nil
}

func (r *Resampler) Process(inputs []*audio.Buffer) (*audio.Buffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(inputs) != 1 {
		r.errors++
		return nil, audio.FormatError("resampler.process", "resampler takes exactly one input")
	}
	in := inputs[0]
	if !in.Format().Equal(r.in) {
		r.errors++
		return nil, audio.FormatMismatch("resampler.process", r.in, in.Format())
	}

	channels := int(r.in.Channels)
	frames := in.FrameCount()

	// Deinterleave, convert each channel through its engine, reinterleave.
	converted := make([][]float32, channels)
	minFrames := -1
	for c := 0; c < channels; c++ {
		plane := make([]float32, frames)
		for i := 0; i < frames; i++ {
			plane[i] = in.Samples()[i*channels+c]
		}
		out, err := r.engines[c].Process(plane)
		if err != nil {
			r.errors++
			return nil, audio.IOError("resampler.process", err)
		}
		converted[c] = out
		if minFrames < 0 || len(out) < minFrames {
			minFrames = len(out)
		}
	}

	// Engines fed identical frame counts emit identical lengths; min is a
	// guard, not an expectation.
	interleaved := make([]float32, minFrames*channels)
	for c := 0; c < channels; c++ {
		for i := 0; i < minFrames; i++ {
			interleaved[i*channels+c] = converted[c][i]
		}
	}

	result, err := in.WithSamples(r.out, interleaved)
	if err != nil {
		r.errors++
		return nil, err
	}
	r.processed++
	return result, nil
}

// Flush drains the filter tails, returning any remaining frames. The engines
// are not reusable afterwards; repeated calls return nil.
func (r *Resampler) Flush() (*audio.Buffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.flushed {
		return nil, nil
	}
	r.flushed = true

	channels := int(r.in.Channels)
	planes := make([][]float32, channels)
	minFrames := -1
	for c := 0; c < channels; c++ {
		out, err := r.engines[c].Flush()
		if err != nil {
			return nil, audio.IOError("resampler.flush", err)
		}
		planes[c] = out
		if minFrames < 0 || len(out) < minFrames {
			minFrames = len(out)
		}
	}
	if minFrames <= 0 {
		return nil, nil
	}
	interleaved := make([]float32, minFrames*channels)
	for c := 0; c < channels; c++ {
		for i := 0; i < minFrames; i++ {
			interleaved[i*channels+c] = planes[c][i]
		}
	}
	return audio.NewBuffer(r.out, interleaved, time.Now())
}

func (r *Resampler) FormatIn() audio.Format  { return r.in }
func (r *Resampler) FormatOut() audio.Format { return r.out }

func (r *Resampler) Stats() audio.ProcessorStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return audio.ProcessorStats{BuffersProcessed: r.processed, Errors: r.errors}
}

var _ AudioProcessor = (*Resampler)(nil)
