// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package sources

import (
	"context"
	"sync"
	"time"

	"github.com/rapidaai/audiograph/audio"
	"github.com/rapidaai/audiograph/internal/native"
	"github.com/rapidaai/audiograph/pkg/commons"
)

// DeliverFunc receives interleaved normalized samples from the platform
// capture callback thread, tagged with their capture time. The call transfers
// ownership of the slice: the source wraps it without copying, so the driver
// must hand over a fresh slice on every call and never touch it afterwards.
type DeliverFunc func(samples []float32, capturedAt time.Time)

// CaptureDevice is the opaque platform boundary. Open registers a delivery
// callback; frames then arrive asynchronously until Close. Both calls may
// block inside native code, so the engine always drives them through the
// native dispatcher with a deadline.
type CaptureDevice interface {
	Open(ctx context.Context, format audio.Format, deliver DeliverFunc) error
	Close(ctx context.Context) error
}

// captureSettings are the tunables shared by every callback-backed source.
type captureSettings struct {
	ringCapacity    int
	controlTimeout  time.Duration
	teardownTimeout time.Duration
}

func defaultCaptureSettings() captureSettings {
	return captureSettings{
		ringCapacity:    DefaultRingCapacity,
		controlTimeout:  native.DefaultControlTimeout,
		teardownTimeout: native.DefaultTeardownTimeout,
	}
}

// CaptureOption tunes a capture source at construction.
type CaptureOption func(*captureSettings)

// WithRingCapacity sets how many buffers the capture ring holds before
// overruns start evicting the oldest.
func WithRingCapacity(capacity int) CaptureOption {
	return func(s *captureSettings) {
		if capacity > 0 {
			s.ringCapacity = capacity
		}
	}
}

// WithControlTimeout bounds the device Open call.
func WithControlTimeout(timeout time.Duration) CaptureOption {
	return func(s *captureSettings) {
		if timeout > 0 {
			s.controlTimeout = timeout
		}
	}
}

// WithTeardownTimeout bounds the device Close call.
func WithTeardownTimeout(timeout time.Duration) CaptureOption {
	return func(s *captureSettings) {
		if timeout > 0 {
			s.teardownTimeout = timeout
		}
	}
}

// captureSource is the shared body of every callback-backed source: ring
// buffering, lifecycle gating and stats. Concrete sources embed it and add
// only their device identity.
type captureSource struct {
	mu     sync.Mutex
	logger commons.Logger
	op     string

	device     CaptureDevice
	dispatcher *native.Dispatcher
	settings   captureSettings

	format  audio.Format
	ring    *bufferRing
	started bool

	produced uint64
	overruns uint64
}

func newCaptureSource(logger commons.Logger, op string, device CaptureDevice, format audio.Format, opts ...CaptureOption) captureSource {
	settings := defaultCaptureSettings()
	for _, opt := range opts {
		opt(&settings)
	}
	return captureSource{
		logger:     logger,
		op:         op,
		device:     device,
		dispatcher: native.NewDispatcher(logger),
		settings:   settings,
		format:     format,
		ring:       newBufferRing(settings.ringCapacity),
	}
}

func (s *captureSource) Configure(format audio.Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return audio.StateError(s.op+".configure", audio.ErrAlreadyStarted)
	}
	if !format.Valid() {
		return audio.FormatError(s.op+".configure", "invalid format "+format.String())
	}
	s.format = format
	return nil
}

func (s *captureSource) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return audio.StateError(s.op+".start", audio.ErrAlreadyStarted)
	}
	format := s.format
	s.mu.Unlock()

	err := s.dispatcher.Call(context.Background(), s.op+".open", s.settings.controlTimeout,
		func(ctx context.Context) error {
			return s.device.Open(ctx, format, s.deliver)
		})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	s.logger.Infow("capture started", "source", s.op, "format", format.String())
	return nil
}

func (s *captureSource) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	err := s.dispatcher.Call(context.Background(), s.op+".close", s.settings.teardownTimeout,
		func(ctx context.Context) error {
			return s.device.Close(ctx)
		})
	s.ring.reset()
	if err != nil {
		return err
	}
	s.logger.Infow("capture stopped", "source", s.op)
	return nil
}

// deliver runs on the platform callback thread. It must never block: a full
// ring evicts its oldest entry and the overrun is counted.
func (s *captureSource) deliver(samples []float32, capturedAt time.Time) {
	s.mu.Lock()
	format := s.format
	started := s.started
	s.mu.Unlock()
	if !started || len(samples) == 0 {
		return
	}

	buf, err := audio.NewBuffer(format, samples, capturedAt)
	if err != nil {
		s.logger.Warnw("discarding malformed capture callback payload",
			"source", s.op, "samples", len(samples), "error", err)
		return
	}
	s.mu.Lock()
	s.produced++
	s.mu.Unlock()
	if s.ring.push(buf) {
		s.mu.Lock()
		s.overruns++
		s.mu.Unlock()
	}
}

func (s *captureSource) Read() (*audio.Buffer, error) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return nil, audio.StateError(s.op+".read", audio.ErrNotStarted)
	}
	return s.ring.pop(), nil
}

func (s *captureSource) Format() audio.Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

func (s *captureSource) Stats() audio.SourceStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return audio.SourceStats{BuffersProduced: s.produced, Overruns: s.overruns}
}
