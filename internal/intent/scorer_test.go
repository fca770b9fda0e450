package intent

import (
	"testing"
)

func TestScorer_FireBandExamples(t *testing.T) {
	s := NewScorer(DefaultScorerConfig())

	tests := []struct {
		text string
	}{
		{"never mind"},
		{"forget it"},
		{"um no wait actually i meant something else"},
		{"my mistake i didn't mean that"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			score := s.Score(tt.text)
			if score <= 0.8 {
				t.Errorf("Score(%q) = %v, want > 0.8 (fire band)", tt.text, score)
			}
		})
	}
}

func TestScorer_NeverMindScoresAtLeastNinety(t *testing.T) {
	s := NewScorer(DefaultScorerConfig())
	if score := s.Score("never mind"); score < 0.9 {
		t.Errorf("Score(\"never mind\") = %v, want >= 0.9", score)
	}
}

func TestScorer_QuestionPenaltyKeepsBelowFireBand(t *testing.T) {
	s := NewScorer(DefaultScorerConfig())

	tests := []string{
		"what time is it",
		"never mind what was that",
		"forget it how does this work",
	}

	for _, text := range tests {
		if score := s.Score(text); score > 0.8 {
			t.Errorf("Score(%q) = %v, question word must keep it out of the fire band", text, score)
		}
	}
}

func TestScorer_LengthGate(t *testing.T) {
	s := NewScorer(DefaultScorerConfig())

	// Exactly 5 characters is never scored.
	if score := s.Score("no no"); score != 0 {
		t.Errorf("Score of 5-char transcript = %v, want 0", score)
	}
	if score := s.Score("hi"); score != 0 {
		t.Errorf("Score of short transcript = %v, want 0", score)
	}
	// Six characters passes the gate.
	if score := s.Score("no wait"); score == 0 {
		t.Error("expected a 7-char cancellation phrase to be scored")
	}
}

func TestScorer_MultiplicativePenalties(t *testing.T) {
	s := NewScorer(DefaultScorerConfig())

	tests := []struct {
		name string
		text string
		max  float64
	}{
		{
			name: "positive word deflates strong phrase",
			text: "never mind thank you",
			max:  0.5, // 0.9 * 0.4
		},
		{
			name: "long utterance deflated",
			text: "never mind i was going to say that we should probably talk about the plan for next week sometime",
			max:  0.8,
		},
		{
			name: "trailing connective",
			text: "forget it and",
			max:  0.8, // 0.9 * 0.7 = 0.63
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := s.Score(tt.text)
			if score > tt.max {
				t.Errorf("Score(%q) = %v, want <= %v", tt.text, score, tt.max)
			}
		})
	}
}

func TestScorer_HesitationWithNegativeContext(t *testing.T) {
	s := NewScorer(DefaultScorerConfig())

	// Two hesitations, a negative, short utterance.
	score := s.Score("um uh not that one")
	if score < 0.5 {
		t.Errorf("Score = %v, want hesitation+negative contribution", score)
	}

	// Single hesitation is not enough for the category.
	low := s.Score("um that one there")
	if low >= 0.5 {
		t.Errorf("Score = %v, single hesitation should not reach 0.5", low)
	}
}

func TestScorer_NeutralUtterancesStayLow(t *testing.T) {
	s := NewScorer(DefaultScorerConfig())

	tests := []string{
		"buy groceries",
		"remind me to call mom in five minutes",
		"pay rent by tomorrow",
		"schedule a meeting next wednesday",
	}

	for _, text := range tests {
		if score := s.Score(text); score > 0.3 {
			t.Errorf("Score(%q) = %v, want <= 0.3 for a plain task", text, score)
		}
	}
}

func TestScorer_PureFunction(t *testing.T) {
	s := NewScorer(DefaultScorerConfig())
	a := s.Score("never mind about it")
	b := s.Score("never mind about it")
	if a != b {
		t.Errorf("Score is not deterministic: %v vs %v", a, b)
	}
}

func TestScorer_ClampedToUnitRange(t *testing.T) {
	s := NewScorer(DefaultScorerConfig())
	// Stacks exact phrase + self-correction + negatives.
	score := s.Score("no wait forget it i didn't mean that no no")
	if score > 1 || score < 0 {
		t.Errorf("Score = %v, want within [0,1]", score)
	}
}
