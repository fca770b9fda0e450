package turn

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeClock lets tests drive the controller's tick without real timers.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

type fixedScorer struct{ score float64 }

func (s fixedScorer) Score(string) float64 { return s.score }

type recorder struct {
	mu        sync.Mutex
	completed []string
	canceled  int
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnTurnCompleted: func(_, transcript string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.completed = append(r.completed, transcript)
		},
		OnTurnCanceled: func(string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.canceled++
		},
	}
}

func (r *recorder) waitCompleted(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		if len(r.completed) >= n {
			out := append([]string(nil), r.completed...)
			r.mu.Unlock()
			return out
		}
		r.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d completions", n)
	return nil
}

func (r *recorder) canceledCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.canceled
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SilenceThreshold = 2 * time.Second
	cfg.MaxTurnDuration = 30 * time.Second
	cfg.CancelCooldown = 2 * time.Second
	return cfg
}

func newTestController(scorer Scorer, rec *recorder, clock *fakeClock) *Controller {
	var cbs Callbacks
	if rec != nil {
		cbs = rec.callbacks()
	}
	c := NewController(testConfig(), scorer, nil, cbs, zerolog.Nop())
	c.now = clock.now
	return c
}

func TestController_SilenceCompletesTurn(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	c := newTestController(fixedScorer{0}, rec, clock)

	if _, err := c.StartTurn("manual"); err != nil {
		t.Fatalf("StartTurn: %v", err)
	}
	c.TranscriptDelta("buy groceries")

	clock.advance(1 * time.Second)
	c.tick()
	if got := c.State(); got != StateSilenceWarning {
		t.Fatalf("expected silence warning at half threshold, got %s", got)
	}

	clock.advance(1 * time.Second)
	c.tick()
	if got := c.State(); got != StateProcessing {
		t.Fatalf("expected processing after silence threshold, got %s", got)
	}

	completed := rec.waitCompleted(t, 1)
	if completed[0] != "buy groceries" {
		t.Errorf("completed transcript = %q", completed[0])
	}
}

func TestController_TranscriptGrowthClearsWarning(t *testing.T) {
	clock := newFakeClock()
	c := newTestController(fixedScorer{0}, nil, clock)

	c.StartTurn("manual")
	c.TranscriptDelta("call")

	clock.advance(1 * time.Second)
	c.tick()
	if got := c.State(); got != StateSilenceWarning {
		t.Fatalf("expected silence warning, got %s", got)
	}

	c.TranscriptDelta("call mom")
	if got := c.State(); got != StateListening {
		t.Fatalf("expected growth to clear warning, got %s", got)
	}
}

func TestController_EmptyTranscriptGoesIdle(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	c := newTestController(fixedScorer{0}, rec, clock)

	c.StartTurn("vad")
	clock.advance(3 * time.Second)
	c.tick()

	if got := c.State(); got != StateIdle {
		t.Fatalf("expected idle for empty turn, got %s", got)
	}
	completed := rec.waitCompleted(t, 1)
	if completed[0] != "" {
		t.Errorf("expected empty completion, got %q", completed[0])
	}
}

func TestController_HardCeilingForcesCompletion(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	c := newTestController(fixedScorer{0}, rec, clock)

	c.StartTurn("manual")
	// Keep talking: growth every second holds the silence clock down.
	text := ""
	for i := 0; i < 31; i++ {
		text += "a"
		c.TranscriptDelta(text)
		clock.advance(1 * time.Second)
		c.tick()
	}

	if got := c.State(); got != StateProcessing {
		t.Fatalf("expected ceiling to force processing, got %s", got)
	}
	rec.waitCompleted(t, 1)
}

func TestController_StopListeningIdempotent(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	c := newTestController(fixedScorer{0}, rec, clock)

	// Stopping while idle must be a no-op.
	c.StopListening()
	c.StopListening()
	if got := c.State(); got != StateIdle {
		t.Fatalf("expected idle, got %s", got)
	}

	c.StartTurn("manual")
	c.TranscriptDelta("half a thought")
	c.StopListening()
	if got := c.State(); got != StateIdle {
		t.Fatalf("expected idle after stop, got %s", got)
	}
	c.StopListening()

	// No completion events from a discarded turn.
	time.Sleep(10 * time.Millisecond)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.completed) != 0 {
		t.Errorf("expected no completions, got %v", rec.completed)
	}
}

func TestController_CancellationLatchHolds(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	c := newTestController(fixedScorer{0.95}, rec, clock)

	c.StartTurn("manual")
	c.TranscriptDelta("never mind about that thing")

	if got := c.State(); got != StateCanceled {
		t.Fatalf("expected canceled, got %s", got)
	}
	if got := c.Transcript(); got != "" {
		t.Errorf("expected transcript discarded, got %q", got)
	}

	// Score stays above the fire band; further deltas must not re-fire.
	c.TranscriptDelta("never mind never mind never mind again")
	c.TranscriptDelta("forget it entirely please no")

	deadline := time.Now().Add(50 * time.Millisecond)
	for time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := rec.canceledCount(); got != 1 {
		t.Fatalf("cancellation fired %d times, want exactly 1", got)
	}

	// New turns are refused during the cooldown, then allowed.
	if _, err := c.StartTurn("vad"); !errors.Is(err, ErrCancelCooling) {
		t.Fatalf("expected ErrCancelCooling, got %v", err)
	}
	clock.advance(3 * time.Second)
	c.tick()
	if got := c.State(); got != StateIdle {
		t.Fatalf("expected idle after cooldown, got %s", got)
	}
	if _, err := c.StartTurn("vad"); err != nil {
		t.Fatalf("expected new turn after cooldown, got %v", err)
	}
}

func TestController_MutualExclusionWithSpeaking(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	c := newTestController(fixedScorer{0}, rec, clock)

	c.StartTurn("manual")
	c.TranscriptDelta("pay rent by tomorrow")
	clock.advance(3 * time.Second)
	c.tick()
	rec.waitCompleted(t, 1)

	c.BeginSpeaking()
	if got := c.State(); got != StateSpeaking {
		t.Fatalf("expected speaking, got %s", got)
	}
	if c.CaptureAllowed() {
		t.Fatal("capture allowed while speaking")
	}
	if _, err := c.StartTurn("vad"); !errors.Is(err, ErrSpeaking) {
		t.Fatalf("expected ErrSpeaking, got %v", err)
	}

	c.EndSpeaking()
	if got := c.State(); got != StateIdle {
		t.Fatalf("expected idle after speaking ends, got %s", got)
	}
	if !c.CaptureAllowed() {
		t.Fatal("capture should be allowed after speaking ends")
	}
}

func TestController_StopListeningLeavesSpeakingAlone(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	c := newTestController(fixedScorer{0}, rec, clock)

	c.StartTurn("manual")
	c.TranscriptDelta("read me the news")
	clock.advance(3 * time.Second)
	c.tick()
	rec.waitCompleted(t, 1)

	c.BeginSpeaking()
	id := c.SessionID()

	// Playback teardown owns the Speaking edge; a stop request must not
	// tear the session out from under live audio.
	c.StopListening()
	if got := c.State(); got != StateSpeaking {
		t.Fatalf("expected speaking to survive stop, got %s", got)
	}
	if got := c.SessionID(); got != id {
		t.Fatalf("session changed from %s to %s", id, got)
	}
	if _, err := c.StartTurn("vad"); !errors.Is(err, ErrSpeaking) {
		t.Fatalf("expected ErrSpeaking while playback winds down, got %v", err)
	}

	c.EndSpeaking()
	if got := c.State(); got != StateIdle {
		t.Fatalf("expected idle after playback ends, got %s", got)
	}
	if _, err := c.StartTurn("vad"); err != nil {
		t.Fatalf("expected new turn after playback, got %v", err)
	}
}

func TestController_RecognizerErrorClosesTurn(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	c := newTestController(fixedScorer{0}, rec, clock)

	c.StartTurn("manual")
	c.TranscriptDelta("send the report")
	c.RecognizerError(errors.New("engine gone"))

	completed := rec.waitCompleted(t, 1)
	if completed[0] != "send the report" {
		t.Errorf("expected accumulated transcript on recognizer error, got %q", completed[0])
	}
	if got := c.State(); got != StateProcessing {
		t.Fatalf("expected processing, got %s", got)
	}
}

func TestController_FinalMergesLongerText(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	c := newTestController(fixedScorer{0}, rec, clock)

	c.StartTurn("manual")
	c.TranscriptDelta("call")
	c.Final("call mom tonight")

	completed := rec.waitCompleted(t, 1)
	if completed[0] != "call mom tonight" {
		t.Errorf("final transcript = %q", completed[0])
	}
}

func TestController_ShrinkingDeltaKeepsSilenceClock(t *testing.T) {
	clock := newFakeClock()
	c := newTestController(fixedScorer{0}, &recorder{}, clock)

	c.StartTurn("manual")
	c.TranscriptDelta("buy milk")
	clock.advance(1 * time.Second)

	// A shorter interim snapshot is not growth.
	c.TranscriptDelta("buy")
	clock.advance(1 * time.Second)
	c.tick()

	if got := c.State(); got != StateProcessing {
		t.Fatalf("expected completion, silence clock should not have reset: %s", got)
	}
	if got := c.Transcript(); got != "buy milk" {
		t.Errorf("transcript = %q, want monotonic growth preserved", got)
	}
}
