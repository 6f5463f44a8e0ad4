// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package audio defines the immutable data unit of the graph engine: the
// audio buffer and its format descriptor, together with the error taxonomy
// and per-node statistics shared by sources, processors and sinks.
package audio

import (
	"fmt"
	"time"
)

// SampleFormat identifies the on-device / on-disk sample encoding. Buffers
// inside the graph always carry normalized float32 samples; SampleFormat
// describes what the buffer was captured as or will be encoded to.
type SampleFormat uint8

const (
	SampleFormatF32 SampleFormat = iota
	SampleFormatI16
	SampleFormatI24
	SampleFormatI32
)

func (f SampleFormat) String() string {
	switch f {
	case SampleFormatF32:
		return "f32"
	case SampleFormatI16:
		return "i16"
	case SampleFormatI24:
		return "i24"
	case SampleFormatI32:
		return "i32"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(f))
	}
}

// BitsPerSample returns the encoded width of one sample.
func (f SampleFormat) BitsPerSample() int {
	switch f {
	case SampleFormatI16:
		return 16
	case SampleFormatI24:
		return 24
	default:
		return 32
	}
}

// Format describes an audio stream. It is an immutable value type; two
// formats are equal iff all fields match.
type Format struct {
	SampleRate   uint32
	Channels     uint8
	SampleFormat SampleFormat
}

// Equal reports field-wise equality.
func (f Format) Equal(other Format) bool {
	return f == other
}

// Valid reports whether the format describes a usable stream.
func (f Format) Valid() bool {
	return f.SampleRate > 0 && f.Channels > 0
}

// FrameDuration returns the wall-clock duration of n frames at this format's
// sample rate.
func (f Format) FrameDuration(frames int) time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(frames) / float64(f.SampleRate) * float64(time.Second))
}

func (f Format) String() string {
	return fmt.Sprintf("%dHz/%dch/%s", f.SampleRate, f.Channels, f.SampleFormat)
}
