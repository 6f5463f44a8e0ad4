// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsProduceValidConfig(t *testing.T) {
	v, err := InitConfig()
	require.NoError(t, err)

	cfg, err := GetEngineConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "audiograph", cfg.Name)
	assert.Equal(t, 8, cfg.QueueCapacity)
	assert.Equal(t, "drop-newest", cfg.OverflowPolicy)
	assert.Equal(t, 32, cfg.RingCapacity)
	assert.Equal(t, uint32(16000), cfg.SampleRate)
	assert.Equal(t, uint8(1), cfg.Channels)
	assert.Equal(t, 5, cfg.ControlTimeoutSec)
	assert.Equal(t, 10, cfg.TeardownTimeoutSec)
}

func TestCaptureOptionsCoverEveryCaptureKnob(t *testing.T) {
	v, err := InitConfig()
	require.NoError(t, err)
	cfg, err := GetEngineConfig(v)
	require.NoError(t, err)

	// Ring capacity plus the two native call timeouts.
	assert.Len(t, cfg.CaptureOptions(), 3)
}

func TestValidationRejectsBadValues(t *testing.T) {
	v, err := InitConfig()
	require.NoError(t, err)

	v.Set("OVERFLOW_POLICY", "block")
	_, err = GetEngineConfig(v)
	assert.Error(t, err, "unknown overflow policy")

	v.Set("OVERFLOW_POLICY", "drop-oldest")
	v.Set("QUEUE_CAPACITY", 0)
	_, err = GetEngineConfig(v)
	assert.Error(t, err, "queue capacity must be positive")
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("QUEUE_CAPACITY", "16")
	t.Setenv("OVERFLOW_POLICY", "drop-oldest")

	v, err := InitConfig()
	require.NoError(t, err)
	cfg, err := GetEngineConfig(v)
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.QueueCapacity)
	assert.Equal(t, "drop-oldest", cfg.OverflowPolicy)
}
