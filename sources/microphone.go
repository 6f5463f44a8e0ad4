// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package sources

import (
	"github.com/rapidaai/audiograph/audio"
	"github.com/rapidaai/audiograph/pkg/commons"
)

// DefaultMicrophoneFormat matches the downstream speech pipeline: 16kHz mono.
var DefaultMicrophoneFormat = audio.Format{
	SampleRate:   16000,
	Channels:     1,
	SampleFormat: audio.SampleFormatF32,
}

// MicrophoneSource wraps a platform audio-input device. The device callback
// pushes buffers into a bounded ring; Read pops the oldest one. A full ring
// drops the oldest entry instead of blocking the capture thread.
type MicrophoneSource struct {
	captureSource
}

// NewMicrophoneSource creates a microphone source over the given platform
// device with the default 16kHz mono format. Reconfigure before Start if the
// hardware delivers something else.
func NewMicrophoneSource(logger commons.Logger, device CaptureDevice, opts ...CaptureOption) *MicrophoneSource {
	return &MicrophoneSource{
		captureSource: newCaptureSource(logger, "microphone", device, DefaultMicrophoneFormat, opts...),
	}
}

var _ AudioSource = (*MicrophoneSource)(nil)
