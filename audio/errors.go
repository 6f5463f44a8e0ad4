// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package audio

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies engine failures so callers can pick a recovery
// strategy: device/IO failures are retryable with backoff, format failures
// are wiring bugs, timeouts are treated as device failures.
type ErrorKind int

const (
	KindDevice ErrorKind = iota
	KindIO
	KindFormat
	KindTimeout
	KindState
)

func (k ErrorKind) String() string {
	switch k {
	case KindDevice:
		return "device"
	case KindIO:
		return "io"
	case KindFormat:
		return "format"
	case KindTimeout:
		return "timeout"
	case KindState:
		return "state"
	default:
		return "unknown"
	}
}

// Lifecycle sentinels returned by sources, sinks and the graph.
var (
	ErrAlreadyStarted = errors.New("already started")
	ErrNotStarted     = errors.New("not started")
	ErrClosed         = errors.New("closed")
)

// Error is the typed error returned from every fallible engine call. It
// wraps an underlying cause when one exists.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// DeviceError wraps a platform capture/playback failure.
func DeviceError(op string, err error) *Error {
	return &Error{Kind: KindDevice, Op: op, Err: err}
}

// IOError wraps a filesystem or encoder failure.
func IOError(op string, err error) *Error {
	return &Error{Kind: KindIO, Op: op, Err: err}
}

// FormatError reports a format contract violation (a wiring bug, not a
// transient condition).
func FormatError(op, detail string) *Error {
	return &Error{Kind: KindFormat, Op: op, Err: errors.New(detail)}
}

// FormatMismatch reports that an input's format differs from what a node was
// configured for.
func FormatMismatch(op string, want, got Format) *Error {
	return &Error{Kind: KindFormat, Op: op,
		Err: fmt.Errorf("format mismatch: want %s, got %s", want, got)}
}

// TimeoutError reports that a native/blocking call exceeded its deadline.
func TimeoutError(op string, deadline time.Duration) *Error {
	return &Error{Kind: KindTimeout, Op: op,
		Err: fmt.Errorf("deadline of %s exceeded", deadline)}
}

// StateError wraps a lifecycle misuse such as reading before Start.
func StateError(op string, err error) *Error {
	return &Error{Kind: KindState, Op: op, Err: err}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsTimeout reports whether err is a deadline failure.
func IsTimeout(err error) bool { return IsKind(err, KindTimeout) }
