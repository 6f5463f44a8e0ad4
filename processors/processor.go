// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package processors provides the transform stages of the graph engine:
// mixing, resampling, gain, voice-activity detection and normalization.
// Processors never mutate their input buffers; a stage that changes sample
// content allocates a new buffer and leaves the shared input untouched.
package processors

import (
	"github.com/rapidaai/audiograph/audio"
)

// AudioProcessor is the transform contract. The graph presents time-aligned
// inputs (one buffer per connected input edge, in connection order) and
// forwards the returned buffer downstream.
//
// A processor with internal look-ahead may return (nil, nil) to signal "no
// output this tick" while it accumulates latency; the graph treats that as a
// stall, not an error.
type AudioProcessor interface {
	Process(inputs []*audio.Buffer) (*audio.Buffer, error)

	// FormatIn and FormatOut describe the processor's input/output contract.
	// They differ only for format-changing stages such as the resampler.
	FormatIn() audio.Format
	FormatOut() audio.Format

	Stats() audio.ProcessorStats
}
