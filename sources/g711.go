// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package sources

import (
	"sync"
	"time"

	"github.com/zaf/g711"

	"github.com/rapidaai/audiograph/audio"
	"github.com/rapidaai/audiograph/pkg/commons"
	"github.com/rapidaai/audiograph/pkg/utils"
)

// G711Encoding selects the companding law of an incoming telephony stream.
type G711Encoding string

const (
	G711Ulaw G711Encoding = "ulaw"
	G711Alaw G711Encoding = "alaw"
)

// G711Format is fixed by the telephony transports: 8kHz mono.
var G711Format = audio.Format{
	SampleRate:   8000,
	Channels:     1,
	SampleFormat: audio.SampleFormatI16,
}

// G711Source adapts a µ-law/A-law telephony byte stream into graph buffers.
// The transport delivers companded frames via Push (its receive callback);
// each frame is decoded to normalized float32 and queued like any other
// capture source.
type G711Source struct {
	mu       sync.Mutex
	logger   commons.Logger
	encoding G711Encoding
	ring     *bufferRing
	started  bool
	produced uint64
	overruns uint64
	clock    func() time.Time
}

// NewG711Source creates a telephony source for the given companding law.
func NewG711Source(logger commons.Logger, encoding G711Encoding) *G711Source {
	return &G711Source{
		logger:   logger,
		encoding: encoding,
		ring:     newBufferRing(DefaultRingCapacity),
		clock:    time.Now,
	}
}

// Configure rejects anything other than the fixed G.711 format.
func (s *G711Source) Configure(format audio.Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return audio.StateError("g711.configure", audio.ErrAlreadyStarted)
	}
	if !format.Equal(G711Format) {
		return audio.FormatMismatch("g711.configure", G711Format, format)
	}
	return nil
}

func (s *G711Source) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return audio.StateError("g711.start", audio.ErrAlreadyStarted)
	}
	s.started = true
	return nil
}

func (s *G711Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	s.ring.reset()
	return nil
}

// Push is the transport's receive callback: one companded G.711 frame in,
// one decoded buffer queued. Frames arriving while stopped are dropped.
func (s *G711Source) Push(frame []byte) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started || len(frame) == 0 {
		return
	}

	var lpcm []byte
	switch s.encoding {
	case G711Alaw:
		lpcm = g711.DecodeAlaw(frame)
	default:
		lpcm = g711.DecodeUlaw(frame)
	}

	buf, err := audio.NewBuffer(G711Format, utils.PCM16BytesToFloat32(lpcm), s.clock())
	if err != nil {
		s.logger.Warnw("discarding malformed g711 frame", "bytes", len(frame), "error", err)
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

func (s *G711Source) Read() (*audio.Buffer, error) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return nil, audio.StateError("g711.read", audio.ErrNotStarted)
	}
	return s.ring.pop(), nil
}

func (s *G711Source) Format() audio.Format { return G711Format }

func (s *G711Source) Stats() audio.SourceStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return audio.SourceStats{BuffersProduced: s.produced, Overruns: s.overruns}
}

var _ AudioSource = (*G711Source)(nil)
