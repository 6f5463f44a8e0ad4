// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package native dispatches platform capture/control calls to a bounded
// blocking-task pool with explicit deadlines, so a misbehaving native call
// can never wedge a graph's cooperative processing loop.
package native

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rapidaai/audiograph/audio"
	"github.com/rapidaai/audiograph/pkg/commons"
)

const (
	// DefaultControlTimeout bounds start/configure style calls.
	DefaultControlTimeout = 5 * time.Second
	// DefaultTeardownTimeout bounds stop/close calls, which platform APIs
	// routinely take longer to honour.
	DefaultTeardownTimeout = 10 * time.Second

	// maxConcurrentCalls bounds in-flight native calls per dispatcher.
	maxConcurrentCalls = 8
)

// Dispatcher runs blocking native calls off the caller's goroutine and
// enforces a deadline on each one.
type Dispatcher struct {
	logger commons.Logger
	sem    *semaphore.Weighted
}

// NewDispatcher creates a dispatcher with the default pool width.
func NewDispatcher(logger commons.Logger) *Dispatcher {
	return &Dispatcher{
		logger: logger,
		sem:    semaphore.NewWeighted(maxConcurrentCalls),
	}
}

// Call runs fn with a deadline. When the deadline expires the call's context
// is cancelled and a timeout error is returned; the native goroutine is left
// to finish on its own; its eventual result is logged and discarded.
func (d *Dispatcher) Call(ctx context.Context, op string, timeout time.Duration, fn func(context.Context) error) error {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return audio.DeviceError(op, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	done := make(chan error, 1)
	go func() {
		defer d.sem.Release(1)
		done <- fn(callCtx)
	}()

	select {
	case err := <-done:
		cancel()
		if err != nil {
			return audio.DeviceError(op, err)
		}
		return nil
	case <-callCtx.Done():
		cancel()
		if ctx.Err() != nil {
			return audio.DeviceError(op, ctx.Err())
		}
		d.logger.Warnw("native call exceeded deadline, abandoning", "op", op, "timeout", timeout)
		go func() {
			if err := <-done; err != nil {
				d.logger.Debugw("abandoned native call finished", "op", op, "error", err)
			}
		}()
		return audio.TimeoutError(op, timeout)
	}
}
