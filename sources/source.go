// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package sources provides the audio producers of the graph engine: capture
// devices (microphone, system audio, telephony byte streams) and
// deterministic generators used to drive tests and benchmarks.
package sources

import (
	"github.com/rapidaai/audiograph/audio"
)

// AudioSource is the producer contract. Implementations buffer whatever the
// platform delivers asynchronously and hand it out one buffer at a time via
// a non-blocking Read.
type AudioSource interface {
	// Configure sets the capture format. Only legal before Start.
	Configure(format audio.Format) error

	// Start begins capture. Starting twice returns a state error wrapping
	// audio.ErrAlreadyStarted.
	Start() error

	// Stop halts capture. Stopping an idle source is a no-op.
	Stop() error

	// Read polls for the oldest pending buffer. It returns (nil, nil) when
	// no data has arrived yet; that is not EOF. Reading before Start or
	// after Stop is a state error.
	Read() (*audio.Buffer, error)

	// Format returns the configured capture format.
	Format() audio.Format

	// Stats returns production counters for health monitoring.
	Stats() audio.SourceStats
}
