// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package audio

// SourceStats are per-source health counters. Overruns counts buffers the
// capture ring dropped because the consumer fell behind.
type SourceStats struct {
	BuffersProduced uint64
	Overruns        uint64
}

// ProcessorStats are per-processor health counters.
type ProcessorStats struct {
	BuffersProcessed uint64
	Errors           uint64
}

// SinkStats are per-sink health counters. Dropped counts buffers refused by
// a bounded sink's capacity cap.
type SinkStats struct {
	BuffersWritten uint64
	SamplesWritten uint64
	BytesWritten   uint64
	Dropped        uint64
}
