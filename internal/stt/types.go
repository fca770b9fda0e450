// Package stt provides streaming speech-to-text for VoiceTask.
package stt

import (
	"context"
	"errors"
)

var (
	ErrNotConnected   = errors.New("stt: not connected")
	ErrNoAPIKey       = errors.New("stt: API key not configured")
	ErrAlreadyRunning = errors.New("stt: stream already running")
)

// Result is one recognizer emission. Interim results carry the best
// hypothesis so far; a final result ends the utterance. Err is set on
// recognizer failure, after which the stream is dead.
type Result struct {
	Text       string
	Confidence float64
	IsFinal    bool
	Err        error
}

// Provider is a streaming speech recognizer. Audio is pushed with
// SendAudio while results arrive on the channel returned by Start.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// IsAvailable reports whether the provider is configured and usable.
	IsAvailable() bool

	// Start opens the recognition stream. The returned channel is
	// closed when the stream ends.
	Start(ctx context.Context) (<-chan Result, error)

	// SendAudio pushes one chunk of PCM16 little-endian audio.
	SendAudio(audio []byte) error

	// Stop closes the stream and releases the connection.
	Stop() error
}
