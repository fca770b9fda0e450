package audio

import (
	"sync"

	"github.com/rs/zerolog"
)

// peakGateRatio opens the voice gate on a sharp transient even when the
// frame average stays under the threshold.
const peakGateRatio = 3.0

// Detector implements voice activity detection over amplitude-metered
// frames. Two debounce counters suppress noise spikes: a frame must be
// the Nth consecutive qualifying frame before VoiceStart fires, and a
// single non-qualifying frame resets the run.
//
// The detector only decides when to OPEN a turn. Closing an open turn
// on silence is the turn controller's job, with its own softer timers.
type Detector struct {
	mu     sync.Mutex
	config DetectorConfig
	logger zerolog.Logger

	consecutiveVoiceFrames   int
	consecutiveSilenceFrames int

	// gate reports whether a VoiceStart may be emitted right now
	// (not already capturing a turn, not speaking).
	gate func() bool
}

// NewDetector creates a Detector. gate may be nil, in which case
// VoiceStart is always emitted on the Nth qualifying frame.
func NewDetector(config DetectorConfig, gate func() bool, logger zerolog.Logger) *Detector {
	if config.RequiredVoiceFrames <= 0 {
		config.RequiredVoiceFrames = DefaultDetectorConfig().RequiredVoiceFrames
	}
	if config.BasePowerThreshold <= 0 {
		config.BasePowerThreshold = DefaultDetectorConfig().BasePowerThreshold
	}
	return &Detector{
		config: config,
		gate:   gate,
		logger: logger.With().Str("component", "vad").Logger(),
	}
}

// Process analyzes one frame and returns the detection decision.
func (d *Detector) Process(frame Frame) Decision {
	avg, peak := Power(frame)

	d.mu.Lock()
	threshold := d.config.BasePowerThreshold * (1 - d.config.Sensitivity*0.8)
	voiced := avg > threshold || peak > threshold*peakGateRatio

	if voiced {
		d.consecutiveVoiceFrames++
		d.consecutiveSilenceFrames = 0
	} else {
		d.consecutiveSilenceFrames++
		d.consecutiveVoiceFrames = 0
	}
	reached := voiced && d.consecutiveVoiceFrames == d.config.RequiredVoiceFrames
	d.mu.Unlock()

	start := reached && (d.gate == nil || d.gate())
	if start {
		d.logger.Debug().
			Float64("avg", avg).
			Float64("peak", peak).
			Float64("threshold", threshold).
			Msg("Voice start detected")
	}

	return Decision{
		Voiced:     voiced,
		VoiceStart: start,
		Average:    avg,
		Peak:       peak,
		Threshold:  threshold,
	}
}

// Reset clears the debounce counters.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.consecutiveVoiceFrames = 0
	d.consecutiveSilenceFrames = 0
}

// SetSensitivity updates the sensitivity, clamped to [0,1].
func (d *Detector) SetSensitivity(s float64) {
	if s < 0 {
		s = 0
	} else if s > 1 {
		s = 1
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.config.Sensitivity = s
}

// UpdateConfig replaces the detector configuration.
func (d *Detector) UpdateConfig(config DetectorConfig) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if config.RequiredVoiceFrames > 0 {
		d.config.RequiredVoiceFrames = config.RequiredVoiceFrames
	}
	if config.BasePowerThreshold > 0 {
		d.config.BasePowerThreshold = config.BasePowerThreshold
	}
	d.config.Sensitivity = config.Sensitivity
}

// Config returns a copy of the current configuration.
func (d *Detector) Config() DetectorConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.config
}
