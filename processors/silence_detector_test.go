// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package processors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/audiograph/audio"
)

// Each 160-frame buffer at 16kHz is 10ms. minSilence of 30ms → three quiet
// buffers before the flag may turn on.
func newTestDetector(t *testing.T) *SilenceDetector {
	t.Helper()
	return NewSilenceDetector(newTestLogger(t), mono16k, 0.01, 30*time.Millisecond)
}

func quiet(t *testing.T) *audio.Buffer { return constBuffer(t, mono16k, 160, 0) }
func loud(t *testing.T) *audio.Buffer  { return sineBuffer(t, mono16k, 160, 440, 0.5) }

func process(t *testing.T, d *SilenceDetector, buf *audio.Buffer) *audio.Buffer {
	t.Helper()
	out, err := d.Process([]*audio.Buffer{buf})
	require.NoError(t, err)
	require.NotNil(t, out)
	return out
}

func TestDetectorNeedsSustainedQuiet(t *testing.T) {
	d := newTestDetector(t)

	assert.False(t, process(t, d, quiet(t)).Silent, "10ms of quiet is not silence")
	assert.False(t, process(t, d, quiet(t)).Silent, "20ms of quiet is not silence")
	assert.True(t, process(t, d, quiet(t)).Silent, "30ms of quiet crosses the threshold")
	assert.True(t, d.Silent())
}

func TestDetectorLoudBufferResetsRun(t *testing.T) {
	d := newTestDetector(t)

	process(t, d, quiet(t))
	process(t, d, quiet(t))
	// A single loud buffer inside an otherwise-silent stream must clear the
	// accumulated run and never allow a false "silent" flag.
	assert.False(t, process(t, d, loud(t)).Silent)
	assert.False(t, process(t, d, quiet(t)).Silent)
	assert.False(t, process(t, d, quiet(t)).Silent)
	assert.True(t, process(t, d, quiet(t)).Silent, "run restarts after the interruption")
}

func TestDetectorSingleQuietBufferInLoudAudio(t *testing.T) {
	d := newTestDetector(t)

	for i := 0; i < 5; i++ {
		assert.False(t, process(t, d, loud(t)).Silent)
	}
	assert.False(t, process(t, d, quiet(t)).Silent, "one quiet dip is not silence")
	assert.False(t, process(t, d, loud(t)).Silent)
}

func TestDetectorPassesSamplesThroughUnchanged(t *testing.T) {
	d := newTestDetector(t)
	in := loud(t)
	out := process(t, d, in)
	assert.Equal(t, &in.Samples()[0], &out.Samples()[0], "detector shares, never copies")
}

func TestDetectorReset(t *testing.T) {
	d := newTestDetector(t)
	process(t, d, quiet(t))
	process(t, d, quiet(t))
	process(t, d, quiet(t))
	require.True(t, d.Silent())

	require.NoError(t, d.Reset())
	assert.False(t, d.Silent())
	assert.False(t, process(t, d, quiet(t)).Silent)
}

func TestDetectorRejectsFormatMismatch(t *testing.T) {
	d := newTestDetector(t)
	other := audio.Format{SampleRate: 8000, Channels: 1, SampleFormat: audio.SampleFormatF32}
	_, err := d.Process([]*audio.Buffer{constBuffer(t, other, 80, 0)})
	require.Error(t, err)
	assert.True(t, audio.IsKind(err, audio.KindFormat))
}
