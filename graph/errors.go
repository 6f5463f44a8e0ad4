// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package graph

import (
	"errors"
	"fmt"
)

// Structural errors raised by Validate and the mutation API. They are fatal
// to the current wiring: fix the topology, do not retry.
var (
	ErrNoSource        = errors.New("graph has no source node")
	ErrNoSink          = errors.New("graph has no sink node")
	ErrCycleDetected   = errors.New("graph contains a cycle")
	ErrUnreachableNode = errors.New("node is not on a source-to-sink path")

	ErrNotIdle   = errors.New("graph is not idle")
	ErrNotActive = errors.New("graph is not active")
	ErrStaleNode = errors.New("node id is stale or unknown")

	ErrDuplicateEdge = errors.New("edge already exists")
	ErrInvalidEdge   = errors.New("edge endpoints are incompatible")
)

// GraphError wraps a structural failure with the operation that hit it.
type GraphError struct {
	Op  string
	Err error
}

func (e *GraphError) Error() string { return fmt.Sprintf("graph.%s: %v", e.Op, e.Err) }
func (e *GraphError) Unwrap() error { return e.Err }

func graphErr(op string, err error) *GraphError {
	return &GraphError{Op: op, Err: err}
}
