// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package processors

import (
	"sync"

	"github.com/streamer45/silero-vad-go/speech"

	"github.com/rapidaai/audiograph/audio"
	"github.com/rapidaai/audiograph/pkg/commons"
)

// SileroDetector is a VADEngine backed by the Silero onnx model. It is a
// drop-in replacement for the RMS engine when energy thresholds misclassify
// breathy speech or keyboard noise; requires onnxruntime and a model file,
// so it is never the default.
//
// The model accepts 8kHz or 16kHz mono input only.
type SileroDetector struct {
	mu       sync.Mutex
	logger   commons.Logger
	detector *speech.Detector
	closed   bool
}

// NewSileroDetector loads the Silero model for the given sample rate.
func NewSileroDetector(logger commons.Logger, modelPath string, sampleRate int, threshold float32) (*SileroDetector, error) {
	detector, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:  modelPath,
		SampleRate: sampleRate,
		Threshold:  threshold,
	})
	if err != nil {
		return nil, audio.DeviceError("silero.load", err)
	}
	return &SileroDetector{logger: logger, detector: detector}, nil
}

// IsActive reports whether the model finds any speech segment in the buffer.
func (s *SileroDetector) IsActive(buf *audio.Buffer) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, audio.StateError("silero.detect", audio.ErrClosed)
	}
	segments, err := s.detector.Detect(buf.Samples())
	if err != nil {
		return false, err
	}
	return len(segments) > 0, nil
}

// Reset clears the model's recurrent state between sessions.
func (s *SileroDetector) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.detector.Reset()
}

// Close destroys the onnx session. Idempotent.
func (s *SileroDetector) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.detector.Destroy()
}

var _ VADEngine = (*SileroDetector)(nil)
