package voice

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/voicetask/internal/audio"
	"github.com/normanking/voicetask/internal/bus"
	"github.com/normanking/voicetask/internal/stt"
	"github.com/normanking/voicetask/internal/temporal"
	"github.com/normanking/voicetask/internal/tts"
	"github.com/normanking/voicetask/internal/turn"
)

// AudioSource delivers microphone frames. Stop closes the output
// channel; Start opens a fresh one.
type AudioSource interface {
	Start() error
	Stop() error
	Output() <-chan audio.Frame
}

// Recognizer is the streaming speech-to-text surface the loop needs.
type Recognizer interface {
	Start(ctx context.Context) (<-chan stt.Result, error)
	SendAudio(audio []byte) error
	Stop() error
}

// Synthesizer turns reply text into playable audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req *tts.Request) (*tts.Audio, error)
}

// Responder produces the assistant's reply for a finished utterance.
type Responder interface {
	SendMessage(ctx context.Context, text string) (string, error)
	SendTask(ctx context.Context, text, title string, due *time.Time) (string, error)
}

// TaskSink receives every extracted task.
type TaskSink func(title string, due *time.Time)

// Config tunes the conversational loop.
type Config struct {
	Turn     turn.Config
	Detector audio.DetectorConfig

	// PostTTSCooldown is how long the mic stays off after playback
	// ends, so the tail of our own speech is not picked up as input.
	PostTTSCooldown time.Duration
	AutoListen      bool
	VoiceID         string
	Speed           float64
	FallbackReply   string
}

func DefaultOrchestratorConfig() Config {
	return Config{
		Turn:            turn.DefaultConfig(),
		Detector:        audio.DefaultDetectorConfig(),
		PostTTSCooldown: 1200 * time.Millisecond,
		AutoListen:      true,
		VoiceID:         tts.VoiceNova,
		Speed:           1.0,
		FallbackReply:   "Sorry, I had trouble with that. Could you try again?",
	}
}

// Deps are the collaborators the orchestrator drives.
type Deps struct {
	Source       AudioSource
	Recognizer   Recognizer
	Synth        Synthesizer
	Play         tts.PlayFunc
	Responder    Responder
	Scorer       turn.Scorer
	Tasks        TaskSink
	Bus          *bus.EventBus
	Conversation *ConversationManager
	Filter       *stt.Filter
}

// Orchestrator runs the full loop: frames in, detection, one turn at a
// time, recognition, task extraction, reply, playback. The microphone
// and the speaker are mutually exclusive; capture is stopped outright
// while the assistant speaks and re-armed only after the cooldown.
type Orchestrator struct {
	config     Config
	deps       Deps
	controller *turn.Controller
	detector   *audio.Detector
	logger     zerolog.Logger

	mu          sync.Mutex
	streaming   bool
	ctx         context.Context
	speakCancel context.CancelFunc
}

func NewOrchestrator(config Config, deps Deps, logger zerolog.Logger) *Orchestrator {
	if config.PostTTSCooldown <= 0 {
		config.PostTTSCooldown = DefaultOrchestratorConfig().PostTTSCooldown
	}
	if config.FallbackReply == "" {
		config.FallbackReply = DefaultOrchestratorConfig().FallbackReply
	}
	if deps.Filter == nil {
		deps.Filter = stt.NewFilter(nil)
	}
	if deps.Conversation == nil {
		deps.Conversation = NewConversationManager(DefaultConversationConfig())
	}

	o := &Orchestrator{
		config: config,
		deps:   deps,
		logger: logger.With().Str("component", "orchestrator").Logger(),
	}

	o.controller = turn.NewController(config.Turn, deps.Scorer, deps.Bus, turn.Callbacks{
		OnTurnCompleted: o.handleTurnCompleted,
		OnTurnCanceled:  o.handleTurnCanceled,
	}, logger)

	o.detector = audio.NewDetector(config.Detector, o.controller.CaptureAllowed, logger)

	return o
}

// Run starts capture and processes frames until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	o.ctx = ctx
	o.mu.Unlock()

	if err := o.deps.Source.Start(); err != nil {
		return err
	}
	o.controller.Start(ctx)
	defer o.controller.Stop()
	defer o.deps.Source.Stop()
	defer o.stopStreaming()

	o.logger.Info().Msg("Conversation loop running")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		frames := o.deps.Source.Output()
		if frames == nil {
			// Capture is off while speaking; wait for re-arm.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}

		if done := o.pump(ctx, frames); done {
			return ctx.Err()
		}
	}
}

// pump consumes one capture stream until it closes or ctx ends.
func (o *Orchestrator) pump(ctx context.Context, frames <-chan audio.Frame) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case frame, ok := <-frames:
			if !ok {
				return false
			}
			o.handleFrame(ctx, frame)
		}
	}
}

func (o *Orchestrator) handleFrame(ctx context.Context, frame audio.Frame) {
	decision := o.detector.Process(frame)

	o.mu.Lock()
	streaming := o.streaming
	autoListen := o.config.AutoListen
	o.mu.Unlock()

	if decision.VoiceStart && !streaming && autoListen {
		o.openTurn(ctx, "vad")
		streaming = o.isStreaming()
	}

	if streaming {
		if err := o.deps.Recognizer.SendAudio(audio.EncodePCM16(frame)); err != nil {
			o.logger.Warn().Err(err).Msg("Audio push failed")
		}
	}
}

// StartListening opens a turn without waiting for voice activity.
func (o *Orchestrator) StartListening() error {
	o.mu.Lock()
	ctx := o.ctx
	o.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	return o.openTurn(ctx, "manual")
}

// StopListening abandons the live turn and interrupts any reply the
// assistant is currently speaking.
func (o *Orchestrator) StopListening() {
	o.stopStreaming()
	o.interruptSpeech()
	o.controller.StopListening()
}

// interruptSpeech cancels in-flight synthesis or playback. The speak
// goroutine finishes the lifecycle: EndSpeaking, then immediate re-arm.
func (o *Orchestrator) interruptSpeech() {
	o.mu.Lock()
	cancel := o.speakCancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (o *Orchestrator) openTurn(ctx context.Context, trigger string) error {
	sessionID, err := o.controller.StartTurn(trigger)
	if err != nil {
		return err
	}

	results, err := o.deps.Recognizer.Start(ctx)
	if err != nil {
		o.logger.Error().Err(err).Msg("Recognizer start failed, abandoning turn")
		o.controller.StopListening()
		return err
	}

	o.mu.Lock()
	o.streaming = true
	o.mu.Unlock()

	o.publish(bus.EventTypeVoiceStart, map[string]any{
		"sessionId": sessionID,
		"trigger":   trigger,
	})

	go o.consumeResults(sessionID, results)
	return nil
}

// consumeResults folds recognizer emissions into transcript snapshots.
// Finals are committed to the base text; interims extend it. The turn
// itself is closed by the controller's silence timer, not by the
// recognizer's segment finals.
func (o *Orchestrator) consumeResults(sessionID string, results <-chan stt.Result) {
	var base string
	for res := range results {
		if res.Err != nil {
			o.controller.RecognizerError(res.Err)
			return
		}

		snapshot := joinText(base, res.Text)
		if res.IsFinal {
			base = snapshot
		}
		o.controller.TranscriptDelta(snapshot)
		o.publish(bus.EventTypeTranscript, map[string]any{
			"sessionId": sessionID,
			"text":      snapshot,
			"final":     res.IsFinal,
		})
	}
}

func (o *Orchestrator) handleTurnCanceled(sessionID string) {
	o.logger.Info().Str("sessionId", sessionID).Msg("Turn canceled, dropping stream")
	o.stopStreaming()
}

// handleTurnCompleted carries a finished transcript through extraction,
// the backend, and playback. Runs on its own goroutine.
func (o *Orchestrator) handleTurnCompleted(sessionID, transcript string) {
	o.stopStreaming()

	if transcript == "" {
		return
	}

	o.mu.Lock()
	ctx := o.ctx
	o.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	cleaned, ok := o.deps.Filter.Clean(transcript)
	if !ok {
		o.logger.Debug().Str("sessionId", sessionID).Msg("Filler-only transcript, nothing to do")
		o.controller.FinishProcessing()
		return
	}

	result := temporal.Extract(cleaned, time.Now())
	task := isTaskShaped(cleaned, result)
	if task && result.Title != "" {
		o.publish(bus.EventTypeTaskExtracted, map[string]any{
			"sessionId": sessionID,
			"title":     result.Title,
			"due":       result.Due,
			"matched":   result.Matched,
		})
		if o.deps.Tasks != nil {
			o.deps.Tasks(result.Title, result.Due)
		}
	}

	reply := o.buildReply(ctx, cleaned, result, task)

	// A reply for a session that is no longer live must not be spoken.
	if o.controller.SessionID() != sessionID {
		o.logger.Warn().Str("sessionId", sessionID).Msg("Session superseded, dropping reply")
		return
	}

	o.speak(ctx, reply)
	o.deps.Conversation.AddExchange(cleaned, reply)
}

// reminderPrefixes mark an utterance as a reminder request even when no
// temporal expression resolved ("remind me to buy groceries").
var reminderPrefixes = []string{"remind me", "remember to", "don't forget"}

// isTaskShaped reports whether the utterance should be recorded as a
// task: it carried a temporal expression, or it opens with an explicit
// reminder phrase. Everything else is conversation.
func isTaskShaped(cleaned string, result temporal.Result) bool {
	if result.Matched != "" {
		return true
	}
	lower := strings.ToLower(cleaned)
	for _, p := range reminderPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

func (o *Orchestrator) buildReply(ctx context.Context, cleaned string, result temporal.Result, task bool) string {
	if o.deps.Responder == nil {
		return o.config.FallbackReply
	}

	text := cleaned
	if o.deps.Conversation.IsFollowUp(cleaned) {
		if recent := o.deps.Conversation.Recent(3); recent != "" {
			text = recent + "\nUser: " + cleaned
		}
	}

	var (
		reply string
		err   error
	)
	if task && result.Title != "" {
		reply, err = o.deps.Responder.SendTask(ctx, text, result.Title, result.Due)
	} else {
		reply, err = o.deps.Responder.SendMessage(ctx, text)
	}
	if err != nil {
		o.logger.Error().Err(err).Msg("Backend failed, using fallback reply")
		return o.config.FallbackReply
	}
	return reply
}

// speak plays the reply with the microphone fully off, then re-arms
// capture after the cooldown. Synthesis and playback run under a
// per-utterance context so a forced restart can cut them short.
func (o *Orchestrator) speak(ctx context.Context, text string) {
	speakCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	voiceID, speed, cooldown := o.config.VoiceID, o.config.Speed, o.config.PostTTSCooldown
	o.speakCancel = cancel
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.speakCancel = nil
		o.mu.Unlock()
		cancel()
	}()

	o.controller.BeginSpeaking()
	o.deps.Source.Stop()
	o.publish(bus.EventTypeTTSStarted, map[string]any{"text": text})

	var err error
	var synthesized *tts.Audio
	if o.deps.Synth != nil && o.deps.Play != nil {
		synthesized, err = o.deps.Synth.Synthesize(speakCtx, &tts.Request{
			Text:    text,
			VoiceID: voiceID,
			Speed:   speed,
		})
		if err == nil {
			err = o.deps.Play(speakCtx, synthesized)
		}
	}

	switch {
	case errors.Is(err, context.Canceled):
		o.logger.Info().Msg("Playback interrupted")
		o.publish(bus.EventTypeTTSFailed, map[string]any{"error": err.Error()})
	case err != nil:
		o.logger.Error().Err(err).Msg("Playback failed")
		o.publish(bus.EventTypeTTSFailed, map[string]any{"error": err.Error()})
	default:
		o.publish(bus.EventTypeTTSCompleted, map[string]any{"text": text})
	}

	o.controller.EndSpeaking()

	select {
	case <-speakCtx.Done():
		// Interrupted: skip the cooldown, the user wants the mic back.
	case <-time.After(cooldown):
	}
	if ctx.Err() != nil {
		return
	}

	o.detector.Reset()
	if err := o.deps.Source.Start(); err != nil {
		o.logger.Error().Err(err).Msg("Capture restart failed")
	}
}

func (o *Orchestrator) stopStreaming() {
	o.mu.Lock()
	wasStreaming := o.streaming
	o.streaming = false
	o.mu.Unlock()

	if wasStreaming {
		if err := o.deps.Recognizer.Stop(); err != nil {
			o.logger.Warn().Err(err).Msg("Recognizer stop failed")
		}
	}
}

func (o *Orchestrator) isStreaming() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.streaming
}

// State exposes the turn state for status surfaces.
func (o *Orchestrator) State() turn.State {
	return o.controller.State()
}

// UpdateConfig applies fresh thresholds to the detector and controller.
func (o *Orchestrator) UpdateConfig(config Config) {
	o.mu.Lock()
	o.config.PostTTSCooldown = config.PostTTSCooldown
	o.config.AutoListen = config.AutoListen
	o.config.VoiceID = config.VoiceID
	o.config.Speed = config.Speed
	o.mu.Unlock()

	o.controller.UpdateConfig(config.Turn)
	o.detector.UpdateConfig(config.Detector)
}

func (o *Orchestrator) publish(t bus.EventType, data map[string]any) {
	if o.deps.Bus != nil {
		o.deps.Bus.Publish(bus.Event{Type: t, Data: data})
	}
}

func joinText(base, next string) string {
	next = strings.TrimSpace(next)
	if base == "" {
		return next
	}
	if next == "" {
		return base
	}
	return base + " " + next
}
