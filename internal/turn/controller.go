package turn

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/voicetask/internal/bus"
)

// Scorer rates a transcript snapshot for cancellation intent in [0,1].
type Scorer interface {
	Score(text string) float64
}

// Config holds the turn state-machine tuning.
type Config struct {
	// SilenceThreshold is elapsed time since last transcript growth
	// after which a turn is complete.
	SilenceThreshold time.Duration
	// MaxTurnDuration is the hard ceiling on one listening episode,
	// independent of silence.
	MaxTurnDuration time.Duration
	// TickInterval drives the cooperative scheduler; must be well
	// below SilenceThreshold.
	TickInterval time.Duration
	// CancelCooldown is how long the Canceled state holds before the
	// controller returns to Idle.
	CancelCooldown time.Duration
	// HighThreshold fires cancellation; LowThreshold is log-only.
	HighThreshold float64
	LowThreshold  float64
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		SilenceThreshold: 2500 * time.Millisecond,
		MaxTurnDuration:  60 * time.Second,
		TickInterval:     500 * time.Millisecond,
		CancelCooldown:   2 * time.Second,
		HighThreshold:    0.8,
		LowThreshold:     0.3,
	}
}

// Callbacks are invoked on turn lifecycle edges. Each is called on its
// own goroutine; handlers must not assume controller state is unchanged.
type Callbacks struct {
	OnTurnCompleted func(sessionID, transcript string)
	OnTurnCanceled  func(sessionID string)
	OnStateChanged  func(sessionID string, from, to State)
}

// Controller owns the single live Session and decides when a turn is
// complete or canceled. Every input (transcript deltas, ticks, speaking
// edges) is serialized under one mutex, and the silence poll, the hard
// ceiling, and the cancel cooldown all run off one tick.
type Controller struct {
	mu        sync.Mutex
	config    Config
	scorer    Scorer
	callbacks Callbacks
	eventBus  *bus.EventBus
	logger    zerolog.Logger

	session    *Session
	canceledAt time.Time

	now func() time.Time

	runMu   sync.Mutex
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

// NewController creates a turn controller. scorer and eventBus may be nil.
func NewController(config Config, scorer Scorer, eventBus *bus.EventBus, callbacks Callbacks, logger zerolog.Logger) *Controller {
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultConfig().TickInterval
	}
	if config.SilenceThreshold <= 0 {
		config.SilenceThreshold = DefaultConfig().SilenceThreshold
	}
	return &Controller{
		config:    config,
		scorer:    scorer,
		callbacks: callbacks,
		eventBus:  eventBus,
		logger:    logger.With().Str("component", "turn").Logger(),
		now:       time.Now,
	}
}

// Start runs the tick loop until ctx is done or Stop is called.
func (c *Controller) Start(ctx context.Context) {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.running {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.running = true

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.config.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.tick()
			}
		}
	}()
}

// Stop halts the tick loop.
func (c *Controller) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if !c.running {
		return
	}
	c.cancel()
	c.wg.Wait()
	c.running = false
}

// StartTurn opens a new session and begins listening. trigger is
// informational ("vad" or "manual"). Starting while speaking is a hard
// precondition violation, not a best-effort flag.
func (c *Controller) StartTurn(trigger string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		switch c.session.State {
		case StateSpeaking:
			return "", ErrSpeaking
		case StateCanceled:
			return "", ErrCancelCooling
		default:
			return "", ErrTurnActive
		}
	}

	c.session = newSession(c.now())
	c.logger.Info().Str("sessionId", c.session.ID).Str("trigger", trigger).Msg("Turn started")
	c.publish(bus.EventTypeTurnStarted, map[string]any{
		"sessionId": c.session.ID,
		"trigger":   trigger,
	})
	c.notifyState(c.session.ID, StateIdle, StateListening)
	return c.session.ID, nil
}

// StopListening discards the live session and returns to Idle. Calling
// it on an already-idle controller is a no-op. A speaking session is
// left alone: playback teardown owns the Speaking edge and EndSpeaking
// closes it once the audio has actually stopped.
func (c *Controller) StopListening() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return
	}
	if c.session.State == StateSpeaking {
		return
	}
	from := c.session.State
	id := c.session.ID
	c.session = nil
	c.logger.Info().Str("sessionId", id).Msg("Listening stopped")
	c.notifyState(id, from, StateIdle)
}

// TranscriptDelta feeds a transcript snapshot from the recognizer.
// Growth resets the silence clock and clears a silence warning; every
// snapshot is scored for cancellation intent.
func (c *Controller) TranscriptDelta(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil || (s.State != StateListening && s.State != StateSilenceWarning) {
		return
	}

	if len(text) > len(s.Transcript) {
		s.Transcript = text
		s.LastSpeechAt = c.now()
		if s.State == StateSilenceWarning {
			c.setStateLocked(StateListening)
		}
	}

	if c.scorer == nil || s.CancellationLatched {
		return
	}
	score := c.scorer.Score(s.Transcript)
	c.publish(bus.EventTypeCancelScore, map[string]any{
		"sessionId": s.ID,
		"score":     score,
	})
	switch {
	case score > c.config.HighThreshold:
		c.cancelLocked()
	case score > c.config.LowThreshold:
		c.logger.Info().
			Str("sessionId", s.ID).
			Float64("score", score).
			Msg("Cancellation intent below fire threshold")
	}
}

// Final closes out the turn with the accumulated transcript. The
// recognizer's terminal events (final result or error) both land here:
// a turn is completed, never dropped silently.
func (c *Controller) Final(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil || (s.State != StateListening && s.State != StateSilenceWarning) {
		return
	}
	if len(text) > len(s.Transcript) {
		s.Transcript = text
	}
	c.completeLocked()
}

// RecognizerError is the failure twin of Final.
func (c *Controller) RecognizerError(err error) {
	c.logger.Warn().Err(err).Msg("Recognizer error, closing turn with accumulated transcript")
	c.Final("")
}

// BeginSpeaking marks the start of TTS playback for the current session.
func (c *Controller) BeginSpeaking() {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil || s.State != StateProcessing {
		return
	}
	c.setStateLocked(StateSpeaking)
}

// EndSpeaking marks TTS playback fully complete (or failed) and returns
// to Idle. Capture re-arming is the orchestrator's job, after its
// echo-guard cooldown.
func (c *Controller) EndSpeaking() {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil || s.State != StateSpeaking {
		return
	}
	id := s.ID
	c.session = nil
	c.notifyState(id, StateSpeaking, StateIdle)
}

// FinishProcessing releases a session stuck in Processing when no
// playback will happen (e.g. nothing to say).
func (c *Controller) FinishProcessing() {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil || s.State != StateProcessing {
		return
	}
	id := s.ID
	c.session = nil
	c.notifyState(id, StateProcessing, StateIdle)
}

// tick advances silence, ceiling, and cooldown timers. One cooperative
// scheduler mutates state; ticks and deltas never interleave a transition.
func (c *Controller) tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.session
	if s == nil {
		return
	}
	now := c.now()

	switch s.State {
	case StateCanceled:
		if now.Sub(c.canceledAt) >= c.config.CancelCooldown {
			id := s.ID
			c.session = nil
			c.notifyState(id, StateCanceled, StateIdle)
		}

	case StateListening, StateSilenceWarning:
		if c.config.MaxTurnDuration > 0 && now.Sub(s.StartedAt) >= c.config.MaxTurnDuration {
			c.logger.Warn().Str("sessionId", s.ID).Msg("Max turn duration reached, forcing completion")
			c.completeLocked()
			return
		}

		elapsed := now.Sub(s.LastSpeechAt)
		switch {
		case elapsed >= c.config.SilenceThreshold:
			c.completeLocked()
		case elapsed >= c.config.SilenceThreshold/2:
			if s.State != StateSilenceWarning {
				c.setStateLocked(StateSilenceWarning)
				c.publish(bus.EventTypeSilenceWarning, map[string]any{"sessionId": s.ID})
			}
		default:
			if s.State == StateSilenceWarning {
				c.setStateLocked(StateListening)
			}
		}
	}
}

// completeLocked emits TurnCompleted. An empty transcript has nothing to
// process and goes straight back to Idle.
func (c *Controller) completeLocked() {
	s := c.session
	id, transcript := s.ID, s.Transcript

	if transcript == "" {
		c.session = nil
		c.notifyState(id, s.State, StateIdle)
	} else {
		c.setStateLocked(StateProcessing)
	}

	c.logger.Info().
		Str("sessionId", id).
		Int("transcriptLen", len(transcript)).
		Msg("Turn completed")
	c.publish(bus.EventTypeTurnCompleted, map[string]any{
		"sessionId":  id,
		"transcript": transcript,
	})
	if cb := c.callbacks.OnTurnCompleted; cb != nil {
		go cb(id, transcript)
	}
}

// cancelLocked latches cancellation for this session, discards the
// transcript, and schedules the return to Idle via the cooldown.
func (c *Controller) cancelLocked() {
	s := c.session
	s.CancellationLatched = true
	s.Transcript = ""
	c.canceledAt = c.now()
	c.setStateLocked(StateCanceled)

	c.logger.Info().Str("sessionId", s.ID).Msg("Turn canceled by user intent")
	c.publish(bus.EventTypeTurnCanceled, map[string]any{"sessionId": s.ID})
	if cb := c.callbacks.OnTurnCanceled; cb != nil {
		go cb(s.ID)
	}
}

func (c *Controller) setStateLocked(to State) {
	s := c.session
	from := s.State
	if from == to {
		return
	}
	s.State = to
	c.notifyState(s.ID, from, to)
}

func (c *Controller) notifyState(sessionID string, from, to State) {
	c.logger.Debug().
		Str("sessionId", sessionID).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Turn state changed")
	c.publish(bus.EventTypeTurnState, map[string]any{
		"sessionId": sessionID,
		"from":      string(from),
		"to":        string(to),
	})
	if cb := c.callbacks.OnStateChanged; cb != nil {
		go cb(sessionID, from, to)
	}
}

func (c *Controller) publish(t bus.EventType, data map[string]any) {
	if c.eventBus != nil {
		c.eventBus.Publish(bus.Event{Type: t, Data: data})
	}
}

// State returns the current session state, or Idle with no session.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return StateIdle
	}
	return c.session.State
}

// SessionID returns the live session id, or "".
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.ID
}

// Transcript returns the live transcript snapshot.
func (c *Controller) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.Transcript
}

// CaptureAllowed reports whether a new turn may open: no live session
// in any state, speaking included.
func (c *Controller) CaptureAllowed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session == nil
}

// UpdateConfig applies new tuning. Threshold changes take effect on the
// next tick.
func (c *Controller) UpdateConfig(config Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if config.TickInterval <= 0 {
		config.TickInterval = c.config.TickInterval
	}
	c.config = config
}
