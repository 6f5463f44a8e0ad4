// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package sinks

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	opus "gopkg.in/hraban/opus.v2"

	"github.com/rapidaai/audiograph/audio"
	"github.com/rapidaai/audiograph/pkg/commons"
)

const (
	// opusFrameMs is the encoder frame duration. 20ms is the interoperable
	// default across every Opus transport in this codebase.
	opusFrameMs = 20

	// maxOpusPacket bounds one encoded packet.
	maxOpusPacket = 4000
)

// OpusEncoderSink compresses incoming PCM into Opus packets and writes them
// length-prefixed (int16 little-endian, DCA0 layout) to an io.Writer.
// Buffers are re-framed internally to exact 20ms encoder frames; a partial
// frame left at Close is zero-padded and flushed.
//
// Opus accepts 8/12/16/24/48kHz input with 1 or 2 channels.
type OpusEncoderSink struct {
	mu      sync.Mutex
	logger  commons.Logger
	format  audio.Format
	encoder *opus.Encoder
	w       io.Writer

	frameSamples int // samples (all channels) per encoder frame
	pending      []float32
	packet       []byte
	closed       bool

	buffers uint64
	samples uint64
	bytes   uint64
}

// NewOpusEncoderSink creates an Opus sink writing DCA0 frames to w.
func NewOpusEncoderSink(logger commons.Logger, w io.Writer, format audio.Format) (*OpusEncoderSink, error) {
	switch format.SampleRate {
	case 8000, 12000, 16000, 24000, 48000:
	default:
		return nil, audio.FormatError("opus",
			fmt.Sprintf("opus does not support %dHz input", format.SampleRate))
	}
	if format.Channels != 1 && format.Channels != 2 {
		return nil, audio.FormatError("opus", "opus encodes mono or stereo only")
	}

	encoder, err := opus.NewEncoder(int(format.SampleRate), int(format.Channels), opus.AppVoIP)
	if err != nil {
		return nil, audio.DeviceError("opus.init", err)
	}
	return &OpusEncoderSink{
		logger:       logger,
		format:       format,
		encoder:      encoder,
		w:            w,
		frameSamples: int(format.SampleRate) / 1000 * opusFrameMs * int(format.Channels),
		packet:       make([]byte, maxOpusPacket),
	}, nil
}

func (s *OpusEncoderSink) Write(buf *audio.Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return audio.StateError("opus.write", audio.ErrClosed)
	}
	got := buf.Format()
	if got.SampleRate != s.format.SampleRate || got.Channels != s.format.Channels {
		return audio.FormatMismatch("opus.write", s.format, got)
	}

	s.pending = append(s.pending, buf.Samples()...)
	s.samples += uint64(len(buf.Samples()))
	for len(s.pending) >= s.frameSamples {
		if err := s.encodeFrame(s.pending[:s.frameSamples]); err != nil {
			return err
		}
		s.pending = s.pending[s.frameSamples:]
	}
	s.buffers++
	return nil
}

func (s *OpusEncoderSink) encodeFrame(frame []float32) error {
	n, err := s.encoder.EncodeFloat32(frame, s.packet)
	if err != nil {
		return audio.IOError("opus.encode", err)
	}
	var prefix [2]byte
	binary.LittleEndian.PutUint16(prefix[:], uint16(n))
	if _, err := s.w.Write(prefix[:]); err != nil {
		return audio.IOError("opus.write", err)
	}
	if _, err := s.w.Write(s.packet[:n]); err != nil {
		return audio.IOError("opus.write", err)
	}
	s.bytes += uint64(2 + n)
	return nil
}

// Flush encodes any partial frame, padding it with silence.
func (s *OpusEncoderSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.flushLocked()
}

func (s *OpusEncoderSink) flushLocked() error {
	if len(s.pending) == 0 {
		return nil
	}
	frame := make([]float32, s.frameSamples)
	copy(frame, s.pending)
	s.pending = s.pending[:0]
	return s.encodeFrame(frame)
}

// Close flushes the partial frame and stops accepting writes. Idempotent.
func (s *OpusEncoderSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	err := s.flushLocked()
	s.closed = true
	if err != nil {
		return err
	}
	s.logger.Infow("opus stream finalized", "samples", s.samples, "bytes", s.bytes)
	return nil
}

func (s *OpusEncoderSink) Stats() audio.SinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return audio.SinkStats{BuffersWritten: s.buffers, SamplesWritten: s.samples, BytesWritten: s.bytes}
}

var _ AudioSink = (*OpusEncoderSink)(nil)
