// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package audio

import (
	"math"
	"time"
)

// Buffer is an immutable chunk of interleaved float32 samples with an
// attached format and capture timestamp. The sample slice is shared between
// every queue and node that holds the buffer. It is NEVER mutated in place;
// a transform that changes sample content must allocate a new buffer via
// WithSamples.
type Buffer struct {
	format     Format
	samples    []float32
	capturedAt time.Time

	// Silent is VAD metadata set by a silence detector downstream of capture.
	// It travels with the buffer so later stages (e.g. an encoder skipping
	// dead air) can react without re-analysing the samples.
	Silent bool
}

// NewBuffer wraps samples in a Buffer. The sample count must be a whole
// number of frames for the format's channel count. Ownership of the slice
// passes to the buffer: the caller must not write to it afterwards.
func NewBuffer(format Format, samples []float32, capturedAt time.Time) (*Buffer, error) {
	if !format.Valid() {
		return nil, FormatError("buffer", "invalid format "+format.String())
	}
	if len(samples)%int(format.Channels) != 0 {
		return nil, FormatError("buffer",
			"sample count is not frame aligned for channel count")
	}
	return &Buffer{format: format, samples: samples, capturedAt: capturedAt}, nil
}

// Format returns the format descriptor.
func (b *Buffer) Format() Format { return b.format }

// Samples returns the shared sample slice. Callers must treat it as
// read-only.
func (b *Buffer) Samples() []float32 { return b.samples }

// CapturedAt returns the monotonic capture timestamp.
func (b *Buffer) CapturedAt() time.Time { return b.capturedAt }

// FrameCount returns the number of frames (samples per channel).
func (b *Buffer) FrameCount() int {
	return len(b.samples) / int(b.format.Channels)
}

// Duration returns the playback duration of the buffer.
func (b *Buffer) Duration() time.Duration {
	return b.format.FrameDuration(b.FrameCount())
}

// RMS returns the root-mean-square energy across all channels.
func (b *Buffer) RMS() float64 {
	if len(b.samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range b.samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(b.samples)))
}

// Peak returns the largest absolute sample value.
func (b *Buffer) Peak() float64 {
	var peak float64
	for _, s := range b.samples {
		if abs := math.Abs(float64(s)); abs > peak {
			peak = abs
		}
	}
	return peak
}

// IsSilent reports whether the buffer's RMS is below threshold.
func (b *Buffer) IsSilent(threshold float64) bool {
	return b.RMS() < threshold
}

// WithSamples derives a new buffer carrying the given samples and format
// while keeping the capture timestamp and VAD metadata.
func (b *Buffer) WithSamples(format Format, samples []float32) (*Buffer, error) {
	out, err := NewBuffer(format, samples, b.capturedAt)
	if err != nil {
		return nil, err
	}
	out.Silent = b.Silent
	return out, nil
}

// WithSilent derives a buffer sharing the same samples with the VAD flag
// set. The sample slice is not copied.
func (b *Buffer) WithSilent(silent bool) *Buffer {
	out := *b
	out.Silent = silent
	return &out
}
