// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package sinks

import (
	"encoding/binary"
	"io"
	"os"
	"sync"

	"github.com/rapidaai/audiograph/audio"
	"github.com/rapidaai/audiograph/pkg/commons"
	"github.com/rapidaai/audiograph/pkg/utils"
)

const (
	wavHeaderSize = 44

	wavFormatPCM       = 1 // LINEAR16
	wavFormatIEEEFloat = 3 // float32
)

// WavEncoderSink streams PCM into a RIFF/WAV file. The 44-byte header is
// written up front with zero chunk sizes and patched on Close, so a crashed
// session leaves a recoverable file with a wrong-but-fixable header rather
// than no header at all. Output sample format is i16 or f32 little-endian,
// chosen by the configured format's SampleFormat.
type WavEncoderSink struct {
	mu     sync.Mutex
	logger commons.Logger
	format audio.Format
	file   *os.File
	closed bool

	buffers uint64
	samples uint64
	bytes   uint64
}

// NewWavEncoderSink creates the output file and writes the provisional
// header. Only SampleFormatI16 and SampleFormatF32 are encodable.
func NewWavEncoderSink(logger commons.Logger, path string, format audio.Format) (*WavEncoderSink, error) {
	switch format.SampleFormat {
	case audio.SampleFormatI16, audio.SampleFormatF32:
	default:
		return nil, audio.FormatError("wav", "wav sink encodes i16 or f32, got "+format.SampleFormat.String())
	}
	if !format.Valid() {
		return nil, audio.FormatError("wav", "invalid format "+format.String())
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, audio.IOError("wav.create", err)
	}
	s := &WavEncoderSink{logger: logger, format: format, file: file}
	if err := s.writeHeader(0); err != nil {
		file.Close()
		os.Remove(path)
		return nil, err
	}
	// WriteAt does not move the write offset; position it past the header.
	if _, err := file.Seek(wavHeaderSize, io.SeekStart); err != nil {
		file.Close()
		os.Remove(path)
		return nil, audio.IOError("wav.create", err)
	}
	return s, nil
}

func (s *WavEncoderSink) writeHeader(dataLen uint32) error {
	bytesPerSample := uint16(s.format.SampleFormat.BitsPerSample() / 8)
	blockAlign := bytesPerSample * uint16(s.format.Channels)
	byteRate := s.format.SampleRate * uint32(blockAlign)
	formatTag := uint16(wavFormatPCM)
	if s.format.SampleFormat == audio.SampleFormatF32 {
		formatTag = wavFormatIEEEFloat
	}

	header := make([]byte, 0, wavHeaderSize)
	header = append(header, "RIFF"...)
	header = binary.LittleEndian.AppendUint32(header, 36+dataLen)
	header = append(header, "WAVE"...)
	header = append(header, "fmt "...)
	header = binary.LittleEndian.AppendUint32(header, 16)
	header = binary.LittleEndian.AppendUint16(header, formatTag)
	header = binary.LittleEndian.AppendUint16(header, uint16(s.format.Channels))
	header = binary.LittleEndian.AppendUint32(header, s.format.SampleRate)
	header = binary.LittleEndian.AppendUint32(header, byteRate)
	header = binary.LittleEndian.AppendUint16(header, blockAlign)
	header = binary.LittleEndian.AppendUint16(header, uint16(s.format.SampleFormat.BitsPerSample()))
	header = append(header, "data"...)
	header = binary.LittleEndian.AppendUint32(header, dataLen)

	if _, err := s.file.WriteAt(header, 0); err != nil {
		return audio.IOError("wav.header", err)
	}
	return nil
}

func (s *WavEncoderSink) Write(buf *audio.Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return audio.StateError("wav.write", audio.ErrClosed)
	}
	got := buf.Format()
	if got.SampleRate != s.format.SampleRate || got.Channels != s.format.Channels {
		return audio.FormatMismatch("wav.write", s.format, got)
	}

	var data []byte
	if s.format.SampleFormat == audio.SampleFormatF32 {
		data = utils.Float32ToPCM32FloatBytes(buf.Samples())
	} else {
		data = utils.Float32ToPCM16Bytes(buf.Samples())
	}
	if _, err := s.file.Write(data); err != nil {
		return audio.IOError("wav.write", err)
	}
	s.buffers++
	s.samples += uint64(len(buf.Samples()))
	s.bytes += uint64(len(data))
	return nil
}

func (s *WavEncoderSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if err := s.file.Sync(); err != nil {
		return audio.IOError("wav.flush", err)
	}
	return nil
}

// Close patches the header byte counts and closes the file. Safe to call
// multiple times.
func (s *WavEncoderSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.writeHeader(uint32(s.bytes)); err != nil {
		s.file.Close()
		return err
	}
	if err := s.file.Close(); err != nil {
		return audio.IOError("wav.close", err)
	}
	s.logger.Infow("wav finalized",
		"path", s.file.Name(), "samples", s.samples, "bytes", s.bytes)
	return nil
}

// SamplesWritten returns the total encoded sample count.
func (s *WavEncoderSink) SamplesWritten() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samples
}

func (s *WavEncoderSink) Stats() audio.SinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return audio.SinkStats{BuffersWritten: s.buffers, SamplesWritten: s.samples, BytesWritten: s.bytes}
}

var _ AudioSink = (*WavEncoderSink)(nil)
