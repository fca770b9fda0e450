// Package turn implements the turn-taking state machine for VoiceTask.
package turn

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrTurnActive    = errors.New("a turn is already active")
	ErrSpeaking      = errors.New("cannot start a turn while speaking")
	ErrCancelCooling = errors.New("turn canceled, cooling down")
)

// State is the lifecycle state of a turn session.
type State string

const (
	StateIdle           State = "idle"
	StateListening      State = "listening"
	StateSilenceWarning State = "silence_warning"
	StateProcessing     State = "processing"
	StateSpeaking       State = "speaking"
	StateCanceled       State = "canceled"
)

// Session is one listening episode, from start-of-speech to silence,
// completion, or cancellation. Exactly one live session exists at a time.
type Session struct {
	ID                  string
	State               State
	Transcript          string
	StartedAt           time.Time
	LastSpeechAt        time.Time
	CancellationLatched bool
}

func newSession(now time.Time) *Session {
	return &Session{
		ID:           uuid.NewString(),
		State:        StateListening,
		StartedAt:    now,
		LastSpeechAt: now,
	}
}
