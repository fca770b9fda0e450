// Package tts provides text-to-speech synthesis and playback for
// assistant responses.
package tts

import (
	"context"
	"errors"
	"time"
)

var (
	ErrProviderUnavailable = errors.New("tts: provider unavailable")
	ErrEmptyText           = errors.New("tts: empty text")
)

// Request asks for one utterance to be synthesized.
type Request struct {
	Text    string  `json:"text"`
	VoiceID string  `json:"voice_id,omitempty"`
	Speed   float64 `json:"speed,omitempty"`
}

// Audio is a synthesized utterance ready for playback.
type Audio struct {
	Data           []byte        `json:"-"`
	Format         string        `json:"format"`
	SampleRate     int           `json:"sample_rate"`
	ProcessingTime time.Duration `json:"processing_time"`
	VoiceID        string        `json:"voice_id"`
	Provider       string        `json:"provider"`
}

// Provider synthesizes speech from text.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// IsAvailable reports whether the provider is configured and usable.
	IsAvailable() bool

	// Synthesize converts text to playable audio.
	Synthesize(ctx context.Context, req *Request) (*Audio, error)
}

// PlayFunc plays synthesized audio to completion, returning when
// playback ends or ctx is canceled.
type PlayFunc func(ctx context.Context, audio *Audio) error
