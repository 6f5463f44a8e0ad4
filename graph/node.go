// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package graph

import (
	"fmt"

	"github.com/rapidaai/audiograph/audio"
	"github.com/rapidaai/audiograph/processors"
	"github.com/rapidaai/audiograph/sinks"
	"github.com/rapidaai/audiograph/sources"
)

// NodeKind discriminates the three node categories.
type NodeKind uint8

const (
	KindSource NodeKind = iota
	KindProcessor
	KindSink
)

func (k NodeKind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindProcessor:
		return "processor"
	case KindSink:
		return "sink"
	default:
		return "unknown"
	}
}

// NodeID is a generational handle into the graph's node arena. It stays
// valid for the node's lifetime; after removal the slot's generation is
// bumped so a stale handle can never silently address a new node.
type NodeID struct {
	index      uint32
	generation uint32
}

func (id NodeID) String() string {
	return fmt.Sprintf("n%d.%d", id.index, id.generation)
}

// slot is one arena entry. Topology is adjacency lists of NodeIDs: nodes
// never hold references to each other, which keeps cycle detection a pure
// graph exercise.
type slot struct {
	generation uint32
	occupied   bool
	kind       NodeKind

	source    sources.AudioSource
	processor processors.AudioProcessor
	sink      sinks.AudioSink

	// inputs preserves connection order: a processor's Process call sees one
	// buffer per input edge in exactly this order.
	inputs  []NodeID
	outputs []NodeID
}

// NodeStats is the per-node health snapshot exposed by Graph.Stats. Exactly
// one of Source/Processor/Sink is set, matching Kind.
type NodeStats struct {
	Kind      NodeKind
	Source    *audio.SourceStats
	Processor *audio.ProcessorStats
	Sink      *audio.SinkStats

	// QueueDrops counts buffers this node produced that were discarded
	// because a downstream edge queue was full.
	QueueDrops uint64
	// Queued counts buffers currently sitting in this node's outgoing edge
	// queues; nonzero after an aborted tick means in-flight data survived.
	Queued uint64
}

// edge identifies a directed connection and keys its bounded queue.
type edge struct {
	from NodeID
	to   NodeID
}
