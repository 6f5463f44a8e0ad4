// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package graph

import (
	"fmt"

	"github.com/rapidaai/audiograph/audio"
)

// OverflowPolicy decides what a full edge queue does with an incoming
// buffer. This is an explicit configuration choice, not an implementation
// accident: recording pipelines usually prefer DropNewest on edges (audio
// already in flight wins), while capture rings drop oldest.
type OverflowPolicy uint8

const (
	// DropNewest discards the incoming buffer.
	DropNewest OverflowPolicy = iota
	// DropOldest evicts the queue head to admit the incoming buffer.
	DropOldest
)

func (p OverflowPolicy) String() string {
	switch p {
	case DropNewest:
		return "drop-newest"
	case DropOldest:
		return "drop-oldest"
	default:
		return "unknown"
	}
}

// ParseOverflowPolicy maps a config string to a policy.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch s {
	case "drop-newest", "":
		return DropNewest, nil
	case "drop-oldest":
		return DropOldest, nil
	default:
		return DropNewest, fmt.Errorf("unknown overflow policy %q", s)
	}
}

// DefaultQueueCapacity is the per-edge queue depth.
const DefaultQueueCapacity = 8

// edgeQueue is the bounded FIFO on one edge. The cooperative loop is the
// only accessor, so no locking is needed; boundedness comes from the
// overflow policy, never from blocking the producer.
type edgeQueue struct {
	items    []*audio.Buffer
	capacity int
	policy   OverflowPolicy
}

func newEdgeQueue(capacity int, policy OverflowPolicy) *edgeQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &edgeQueue{capacity: capacity, policy: policy}
}

// push enqueues buf, applying the overflow policy when full. It reports
// whether a buffer (incoming or evicted) was dropped.
func (q *edgeQueue) push(buf *audio.Buffer) (dropped bool) {
	if len(q.items) < q.capacity {
		q.items = append(q.items, buf)
		return false
	}
	if q.policy == DropOldest {
		q.items = append(q.items[1:], buf)
	}
	return true
}

// pop dequeues the oldest buffer, nil when empty.
func (q *edgeQueue) pop() *audio.Buffer {
	if len(q.items) == 0 {
		return nil
	}
	buf := q.items[0]
	q.items = q.items[1:]
	return buf
}

func (q *edgeQueue) len() int { return len(q.items) }
