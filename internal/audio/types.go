// Package audio provides microphone capture, amplitude metering, and
// voice activity detection for VoiceTask.
package audio

import (
	"errors"
)

// Common errors
var (
	ErrCaptureRunning    = errors.New("capture already running")
	ErrCaptureNotStarted = errors.New("capture not started")
	ErrDeviceUnavailable = errors.New("audio input device unavailable")
)

// Frame is a fixed-size buffer of signed samples normalized to [-1,1].
type Frame []float32

// CaptureConfig holds capture settings
type CaptureConfig struct {
	SampleRate      int `json:"sample_rate"`       // Default: 16000 Hz
	FramesPerBuffer int `json:"frames_per_buffer"` // Samples per frame, default 512 (~32ms)
	QueueSize       int `json:"queue_size"`        // Frame channel depth, default 32
}

// DefaultCaptureConfig returns sensible defaults
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		SampleRate:      16000,
		FramesPerBuffer: 512,
		QueueSize:       32,
	}
}

// DetectorConfig holds voice activity detection settings
type DetectorConfig struct {
	// BasePowerThreshold is the unscaled average-power threshold.
	BasePowerThreshold float64 `json:"base_power_threshold"`
	// Sensitivity in [0,1] rescales the threshold:
	// threshold = base * (1 - sensitivity*0.8).
	Sensitivity float64 `json:"sensitivity"`
	// RequiredVoiceFrames is the debounce count: VoiceStart fires on
	// exactly the Nth consecutive qualifying frame.
	RequiredVoiceFrames int `json:"required_voice_frames"`
}

// DefaultDetectorConfig returns sensible defaults
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		BasePowerThreshold:  0.02,
		Sensitivity:         0.5,
		RequiredVoiceFrames: 3,
	}
}

// Decision is the per-frame output of the Detector.
type Decision struct {
	Voiced     bool    `json:"voiced"`
	VoiceStart bool    `json:"voice_start"`
	Average    float64 `json:"average"`
	Peak       float64 `json:"peak"`
	Threshold  float64 `json:"threshold"`
}
