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

// DefaultSystemAudioFormat is what desktop loopback APIs typically deliver:
// 48kHz stereo.
var DefaultSystemAudioFormat = audio.Format{
	SampleRate:   48000,
	Channels:     2,
	SampleFormat: audio.SampleFormatF32,
}

// SystemAudioSource captures desktop/system playback through a platform
// loopback device. Contract and buffering are identical to MicrophoneSource;
// only the device and default format differ.
type SystemAudioSource struct {
	captureSource
}

// NewSystemAudioSource creates a system-audio source over the given loopback
// device.
func NewSystemAudioSource(logger commons.Logger, device CaptureDevice, opts ...CaptureOption) *SystemAudioSource {
	return &SystemAudioSource{
		captureSource: newCaptureSource(logger, "system-audio", device, DefaultSystemAudioFormat, opts...),
	}
}

var _ AudioSource = (*SystemAudioSource)(nil)
