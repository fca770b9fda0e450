// Package config provides configuration management for VoiceTask
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Audio        AudioConfig        `mapstructure:"audio"`
	Turn         TurnConfig         `mapstructure:"turn"`
	Cancellation CancellationConfig `mapstructure:"cancellation"`
	STT          STTConfig          `mapstructure:"stt"`
	TTS          TTSConfig          `mapstructure:"tts"`
	Brain        BrainConfig        `mapstructure:"brain"`
}

// AudioConfig configures capture and voice activity detection
type AudioConfig struct {
	InputDevice         string  `mapstructure:"input_device"`
	SampleRate          int     `mapstructure:"sample_rate"`
	FramesPerBuffer     int     `mapstructure:"frames_per_buffer"`
	BasePowerThreshold  float64 `mapstructure:"base_power_threshold"`
	VADSensitivity      float64 `mapstructure:"vad_sensitivity"` // 0..1
	RequiredVoiceFrames int     `mapstructure:"required_voice_frames"`
}

// TurnConfig configures the turn-taking state machine
type TurnConfig struct {
	SilenceThreshold time.Duration `mapstructure:"silence_threshold"`
	MaxTurnDuration  time.Duration `mapstructure:"max_turn_duration"`
	TickInterval     time.Duration `mapstructure:"tick_interval"`
	CancelCooldown   time.Duration `mapstructure:"cancel_cooldown"`
	PostTTSCooldown  time.Duration `mapstructure:"post_tts_cooldown"`
	AutoListen       bool          `mapstructure:"auto_listen"`
}

// CancellationConfig configures the cancellation-intent score bands
type CancellationConfig struct {
	HighThreshold float64 `mapstructure:"high_threshold"` // fire band
	LowThreshold  float64 `mapstructure:"low_threshold"`  // log-only band
}

// STTConfig configures speech-to-text
type STTConfig struct {
	Provider       string `mapstructure:"provider"` // deepgram
	Language       string `mapstructure:"language"`
	Model          string `mapstructure:"model"`
	APIKey         string `mapstructure:"api_key"`
	InterimResults bool   `mapstructure:"interim_results"`
}

// TTSConfig configures text-to-speech
type TTSConfig struct {
	Provider string  `mapstructure:"provider"` // openai
	VoiceID  string  `mapstructure:"voice_id"`
	Speed    float64 `mapstructure:"speed"`
	APIKey   string  `mapstructure:"api_key"`
}

// BrainConfig configures the response-generator client
type BrainConfig struct {
	ServerURL    string        `mapstructure:"server_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	SystemPrompt string        `mapstructure:"system_prompt"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Audio: AudioConfig{
			InputDevice:         "",
			SampleRate:          16000,
			FramesPerBuffer:     512,
			BasePowerThreshold:  0.02,
			VADSensitivity:      0.5,
			RequiredVoiceFrames: 3,
		},
		Turn: TurnConfig{
			SilenceThreshold: 2500 * time.Millisecond,
			MaxTurnDuration:  60 * time.Second,
			TickInterval:     500 * time.Millisecond,
			CancelCooldown:   2 * time.Second,
			PostTTSCooldown:  1200 * time.Millisecond,
			AutoListen:       true,
		},
		Cancellation: CancellationConfig{
			HighThreshold: 0.8,
			LowThreshold:  0.3,
		},
		STT: STTConfig{
			Provider:       "deepgram",
			Language:       "en-US",
			Model:          "nova-2",
			InterimResults: true,
		},
		TTS: TTSConfig{
			Provider: "openai",
			VoiceID:  "nova",
			Speed:    1.0,
		},
		Brain: BrainConfig{
			ServerURL:    "http://localhost:8080",
			Timeout:      60 * time.Second,
			SystemPrompt: "You are a concise voice assistant for a reminders app.",
		},
	}
}

// Dir returns the configuration directory path
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".voicetask"), nil
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	cfg := DefaultConfig()

	dir, err := Dir()
	if err != nil {
		return cfg, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return cfg, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(dir)
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("VOICETASK")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
		// No config file yet: write the defaults so thresholds are editable
		if err := Save(cfg); err != nil {
			return cfg, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Watch re-reads the config file on change and invokes onChange with the
// fresh values. Thresholds are heuristic and read-mostly; consumers apply
// updates without any transactional guarantee.
func Watch(onChange func(*Config)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg := DefaultConfig()
		if err := viper.Unmarshal(cfg); err != nil {
			return
		}
		onChange(cfg)
	})
	viper.WatchConfig()
}

// Save writes the configuration to file
func Save(cfg *Config) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	viper.Set("audio", cfg.Audio)
	viper.Set("turn", cfg.Turn)
	viper.Set("cancellation", cfg.Cancellation)
	viper.Set("stt", cfg.STT)
	viper.Set("tts", cfg.TTS)
	viper.Set("brain", cfg.Brain)

	return viper.WriteConfigAs(filepath.Join(dir, "config.yaml"))
}
