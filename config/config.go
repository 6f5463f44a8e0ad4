// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package config loads engine settings from an env file or environment
// variables.
package config

import (
	"log"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/rapidaai/audiograph/sources"
)

// Engine config structure
type EngineConfig struct {
	Name     string `mapstructure:"service_name" validate:"required"`
	Version  string `mapstructure:"version" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"required"`
	LogPath  string `mapstructure:"log_path"`

	// Graph scheduling knobs.
	QueueCapacity  int    `mapstructure:"queue_capacity" validate:"required,gt=0"`
	OverflowPolicy string `mapstructure:"overflow_policy" validate:"oneof=drop-newest drop-oldest"`
	RingCapacity   int    `mapstructure:"ring_capacity" validate:"required,gt=0"`

	// Default capture format for device sources.
	SampleRate uint32 `mapstructure:"sample_rate" validate:"required,gt=0"`
	Channels   uint8  `mapstructure:"channels" validate:"required,gt=0"`

	// Native call timeouts in seconds.
	ControlTimeoutSec  int `mapstructure:"control_timeout_sec" validate:"required,gt=0"`
	TeardownTimeoutSec int `mapstructure:"teardown_timeout_sec" validate:"required,gt=0"`

	// Path to the silero onnx model; empty disables model-based detection.
	SileroModelPath string `mapstructure:"silero_model_path"`
}

// CaptureOptions translates the configured capture knobs into source options.
func (c *EngineConfig) CaptureOptions() []sources.CaptureOption {
	return []sources.CaptureOption{
		sources.WithRingCapacity(c.RingCapacity),
		sources.WithControlTimeout(time.Duration(c.ControlTimeoutSec) * time.Second),
		sources.WithTeardownTimeout(time.Duration(c.TeardownTimeoutSec) * time.Second),
	}
}

// reading config and intializing configs for application
func InitConfig() (*viper.Viper, error) {
	vConfig := viper.NewWithOptions(viper.KeyDelimiter("__"))

	vConfig.AddConfigPath(".")
	vConfig.SetConfigName(".env")
	path := os.Getenv("ENV_PATH")
	if path != "" {
		log.Printf("env path %v", path)
		vConfig.SetConfigFile(path)
	}
	vConfig.SetConfigType("env")
	vConfig.AutomaticEnv()

	setDefault(vConfig)
	if err := vConfig.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		log.Printf("Reading from env varaibles.")
	}

	return vConfig, nil
}

func setDefault(v *viper.Viper) {
	// setting all default values
	// keeping watch on https://github.com/spf13/viper/issues/188

	v.SetDefault("SERVICE_NAME", "audiograph")
	v.SetDefault("VERSION", "0.0.1")
	v.SetDefault("LOG_LEVEL", "debug")
	v.SetDefault("LOG_PATH", "")

	v.SetDefault("QUEUE_CAPACITY", 8)
	v.SetDefault("OVERFLOW_POLICY", "drop-newest")
	v.SetDefault("RING_CAPACITY", 32)

	v.SetDefault("SAMPLE_RATE", 16000)
	v.SetDefault("CHANNELS", 1)

	v.SetDefault("CONTROL_TIMEOUT_SEC", 5)
	v.SetDefault("TEARDOWN_TIMEOUT_SEC", 10)

	v.SetDefault("SILERO_MODEL_PATH", "")
}

// Getting engine config from viper
func GetEngineConfig(v *viper.Viper) (*EngineConfig, error) {
	var config EngineConfig
	err := v.Unmarshal(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}

	// valdating the engine config
	validate := validator.New()
	err = validate.Struct(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}
	return &config, nil
}
