// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package sinks provides the consumers of the graph engine: file encoders
// and in-memory/discarding sinks for testing and benchmarking.
package sinks

import (
	"github.com/rapidaai/audiograph/audio"
)

// AudioSink is the consumer contract at the end of a graph.
type AudioSink interface {
	// Write consumes one buffer. Writing to a closed sink is a state error.
	Write(buf *audio.Buffer) error

	// Flush pushes any internally buffered data to the underlying medium.
	Flush() error

	// Close finalizes the output. Idempotent: closing twice is a no-op.
	Close() error

	// Stats returns consumption counters for health monitoring.
	Stats() audio.SinkStats
}
