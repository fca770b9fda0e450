// Package intent scores transcripts for cancellation intent: the
// inferred desire to retract the current utterance mid-turn.
package intent

import (
	"strings"
)

// ScorerConfig carries every tunable the scorer uses. The weights and
// thresholds are empirically tuned; shifting them changes user-visible
// cancellation behavior.
type ScorerConfig struct {
	// MinLength gates scoring: transcripts of MinLength characters or
	// fewer are never scored.
	MinLength int

	// Phrase lists. Multi-word entries match as substrings; single
	// words match on word boundaries.
	CancellationPhrases   []string
	ApologeticPhrases     []string
	CorrectionCues        []string
	SelfCorrectionPhrases []string
	HesitationMarkers     []string
	NegativeWords         []string
	FillerWords           []string
	QuestionWords         []string
	PositiveWords         []string
	Conjunctions          []string
	TrailingConnectives   []string

	// Additive weights, applied at most once per category.
	ExactPhraseWeight       float64
	ApologyCorrectionWeight float64
	ApologyShortWeight      float64
	ApologyBareWeight       float64
	SelfCorrectionWeight    float64
	HesitationWeight        float64
	FillerRatioWeight       float64
	NegativeClusterWeight   float64

	// Multiplicative penalties, each applied independently.
	QuestionPenalty   float64
	LongPenalty       float64
	PositivePenalty   float64
	ClausePenalty     float64
	IncompletePenalty float64
}

// DefaultScorerConfig returns the tuned defaults.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		MinLength: 5,

		CancellationPhrases: []string{
			"never mind", "nevermind", "forget it", "forget about it",
			"actually never mind", "no wait", "scratch that", "cancel that",
		},
		ApologeticPhrases: []string{
			"oh sorry", "sorry about that", "my mistake", "my bad", "i apologize",
		},
		CorrectionCues: []string{
			"i don't", "not what", "didn't mean", "wrong",
		},
		SelfCorrectionPhrases: []string{
			"i didn't mean", "i meant", "wait i", "actually i", "no i",
			"let me start over", "start over",
		},
		HesitationMarkers: []string{"uh", "um", "er", "ah", "uhh", "umm"},
		NegativeWords:     []string{"no", "not", "don't", "won't", "can't", "nothing", "stop"},
		FillerWords: []string{
			"uh", "um", "er", "ah", "like", "well", "so", "actually",
			"basically", "literally", "hmm",
		},
		QuestionWords: []string{"what", "how", "when", "where", "why", "who", "which"},
		PositiveWords: []string{"yes", "okay", "sure", "good", "great", "please", "thank"},
		Conjunctions:  []string{"and", "but", "so", "then", "because", "since", "while", "if"},
		TrailingConnectives: []string{
			"and", "but", "so", "or", "with", "to", "for",
		},

		ExactPhraseWeight:       0.9,
		ApologyCorrectionWeight: 0.7,
		ApologyShortWeight:      0.5,
		ApologyBareWeight:       0.2,
		SelfCorrectionWeight:    0.6,
		HesitationWeight:        0.5,
		FillerRatioWeight:       0.4,
		NegativeClusterWeight:   0.3,

		QuestionPenalty:   0.5,
		LongPenalty:       0.6,
		PositivePenalty:   0.4,
		ClausePenalty:     0.6,
		IncompletePenalty: 0.7,
	}
}

// Scorer is a pure transcript-to-confidence function. Safe for
// concurrent use; it holds no mutable state.
type Scorer struct {
	config ScorerConfig
}

// NewScorer creates a scorer. A zero-value config falls back to defaults.
func NewScorer(config ScorerConfig) *Scorer {
	if config.MinLength == 0 && config.ExactPhraseWeight == 0 {
		config = DefaultScorerConfig()
	}
	return &Scorer{config: config}
}

// Score rates text for cancellation intent in [0,1]. Additive category
// contributions are summed first, then multiplicative penalties are
// applied in order, then the result is clamped.
func (s *Scorer) Score(text string) float64 {
	cfg := &s.config

	t := strings.ToLower(strings.TrimSpace(text))
	if len([]rune(t)) <= cfg.MinLength {
		return 0
	}

	words := fieldsNormalized(t)
	n := len(words)

	score := 0.0

	// Additive stage: each category contributes at most once.
	if containsAnyPhrase(t, cfg.CancellationPhrases) {
		score += cfg.ExactPhraseWeight
	}

	if containsAnyPhrase(t, cfg.ApologeticPhrases) {
		switch {
		case containsAnyPhrase(t, cfg.CorrectionCues):
			score += cfg.ApologyCorrectionWeight
		case n <= 6:
			score += cfg.ApologyShortWeight
		default:
			score += cfg.ApologyBareWeight
		}
	}

	if containsAnyPhrase(t, cfg.SelfCorrectionPhrases) {
		score += cfg.SelfCorrectionWeight
	}

	hesitations := countMatches(words, cfg.HesitationMarkers)
	negatives := countMatches(words, cfg.NegativeWords)

	if hesitations >= 2 && negatives >= 1 && n <= 8 {
		score += cfg.HesitationWeight
	}

	if n >= 6 && n <= 12 && negatives >= 1 {
		fillers := countMatches(words, cfg.FillerWords)
		if float64(fillers)/float64(n) > 0.5 {
			score += cfg.FillerRatioWeight
		}
	}

	if negatives >= 3 && n <= 8 {
		score += cfg.NegativeClusterWeight
	}

	// Multiplicative stage.
	if countMatches(words, cfg.QuestionWords) > 0 {
		score *= cfg.QuestionPenalty
	}
	if n > 15 {
		score *= cfg.LongPenalty
	}
	if countMatches(words, cfg.PositiveWords) > 0 {
		score *= cfg.PositivePenalty
	}
	if countMatches(words, cfg.Conjunctions) > 0 && n > 8 {
		score *= cfg.ClausePenalty
	}
	if n > 0 && matchesAny(words[n-1], cfg.TrailingConnectives) {
		score *= cfg.IncompletePenalty
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Config returns a copy of the scorer configuration.
func (s *Scorer) Config() ScorerConfig {
	return s.config
}

// fieldsNormalized splits on whitespace and strips edge punctuation so
// "no," and "no" count the same.
func fieldsNormalized(t string) []string {
	raw := strings.Fields(t)
	out := make([]string, 0, len(raw))
	for _, w := range raw {
		w = strings.Trim(w, ".,!?;:\"")
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

func containsAnyPhrase(t string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(t, p) {
			return true
		}
	}
	return false
}

func countMatches(words, list []string) int {
	count := 0
	for _, w := range words {
		if matchesAny(w, list) {
			count++
		}
	}
	return count
}

func matchesAny(word string, list []string) bool {
	for _, l := range list {
		if word == l {
			return true
		}
	}
	return false
}
