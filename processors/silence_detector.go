// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package processors

import (
	"sync"
	"time"

	"github.com/rapidaai/audiograph/audio"
	"github.com/rapidaai/audiograph/pkg/commons"
)

// VADEngine classifies a single buffer as speech/activity or quiet. The
// default engine is RMS-based; SileroDetector plugs in an ML model behind
// the same surface.
type VADEngine interface {
	// IsActive reports whether the buffer contains activity.
	IsActive(buf *audio.Buffer) (bool, error)
	// Reset clears per-session state.
	Reset() error
	// Close releases engine resources. Safe to call more than once.
	Close() error
}

// rmsEngine flags activity when buffer RMS reaches the threshold.
type rmsEngine struct {
	threshold float64
}

func (e *rmsEngine) IsActive(buf *audio.Buffer) (bool, error) {
	return buf.RMS() >= e.threshold, nil
}

func (e *rmsEngine) Reset() error { return nil }
func (e *rmsEngine) Close() error { return nil }

// NewRMSEngine returns the default energy-threshold VAD engine.
func NewRMSEngine(threshold float64) VADEngine {
	return &rmsEngine{threshold: threshold}
}

// SilenceDetector passes buffers through unchanged (samples are shared, not
// copied) and tags them with a silence flag. Hysteresis: the flag only turns
// on after the engine reports quiet for at least minSilence of accumulated
// audio, so a brief dip never reads as silence, and a single quiet buffer
// inside loud audio never does either. One active buffer resets the run and
// clears the flag immediately.
type SilenceDetector struct {
	mu         sync.Mutex
	logger     commons.Logger
	format     audio.Format
	engine     VADEngine
	minSilence time.Duration

	quietRun time.Duration
	silent   bool

	processed uint64
	errors    uint64
}

// NewSilenceDetector creates an RMS-threshold detector.
func NewSilenceDetector(logger commons.Logger, format audio.Format, threshold float64, minSilence time.Duration) *SilenceDetector {
	return NewSilenceDetectorWithEngine(logger, format, NewRMSEngine(threshold), minSilence)
}

// NewSilenceDetectorWithEngine creates a detector over a custom VAD engine.
func NewSilenceDetectorWithEngine(logger commons.Logger, format audio.Format, engine VADEngine, minSilence time.Duration) *SilenceDetector {
	return &SilenceDetector{logger: logger, format: format, engine: engine, minSilence: minSilence}
}

func (d *SilenceDetector) Process(inputs []*audio.Buffer) (*audio.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(inputs) != 1 {
		d.errors++
		return nil, audio.FormatError("vad.process", "silence detector takes exactly one input")
	}
	in := inputs[0]
	if !in.Format().Equal(d.format) {
		d.errors++
		return nil, audio.FormatMismatch("vad.process", d.format, in.Format())
	}

	active, err := d.engine.IsActive(in)
	if err != nil {
		d.errors++
		return nil, audio.DeviceError("vad.process", err)
	}

	if active {
		d.quietRun = 0
		d.silent = false
	} else {
		d.quietRun += in.Duration()
		if d.quietRun >= d.minSilence {
			d.silent = true
		}
	}

	d.processed++
	return in.WithSilent(d.silent), nil
}

// Silent reports the detector's current classification.
func (d *SilenceDetector) Silent() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.silent
}

// Reset clears the hysteresis state and the underlying engine.
func (d *SilenceDetector) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.quietRun = 0
	d.silent = false
	return d.engine.Reset()
}

func (d *SilenceDetector) FormatIn() audio.Format  { return d.format }
func (d *SilenceDetector) FormatOut() audio.Format { return d.format }

func (d *SilenceDetector) Stats() audio.ProcessorStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return audio.ProcessorStats{BuffersProcessed: d.processed, Errors: d.errors}
}

var _ AudioProcessor = (*SilenceDetector)(nil)
