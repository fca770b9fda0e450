package stt

import (
	"regexp"
	"strings"
	"sync"
)

// DefaultFillerWords are hesitation sounds stripped from transcripts
// before task extraction. Words that carry intent signal ("actually",
// "no") are deliberately absent.
var DefaultFillerWords = []string{
	"um", "uh", "uhh", "umm",
	"er", "ah", "hmm", "mm",
}

// Filter removes filler words from finished transcripts. It runs after
// turn completion only: interim text keeps its hesitations because the
// cancellation scorer depends on them.
type Filter struct {
	mu      sync.RWMutex
	words   map[string]struct{}
	pattern *regexp.Regexp
}

var (
	spacePattern = regexp.MustCompile(`\s+`)
	punctOnly    = regexp.MustCompile(`^[.,!?;:\s]*$`)
)

func NewFilter(fillerWords []string) *Filter {
	if fillerWords == nil {
		fillerWords = DefaultFillerWords
	}

	f := &Filter{words: make(map[string]struct{}, len(fillerWords))}
	for _, w := range fillerWords {
		f.words[strings.ToLower(w)] = struct{}{}
	}
	f.rebuild()
	return f
}

func (f *Filter) rebuild() {
	if len(f.words) == 0 {
		f.pattern = nil
		return
	}
	parts := make([]string, 0, len(f.words))
	for w := range f.words {
		parts = append(parts, `\b`+regexp.QuoteMeta(w)+`\b`)
	}
	f.pattern = regexp.MustCompile(`(?i)(` + strings.Join(parts, `|`) + `)`)
}

// SetFillerWords replaces the filler list.
func (f *Filter) SetFillerWords(words []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.words = make(map[string]struct{}, len(words))
	for _, w := range words {
		f.words[strings.ToLower(w)] = struct{}{}
	}
	f.rebuild()
}

// Clean strips filler words and normalizes whitespace. The boolean
// reports whether anything meaningful remains.
func (f *Filter) Clean(text string) (string, bool) {
	if text == "" {
		return "", false
	}

	f.mu.RLock()
	pattern := f.pattern
	f.mu.RUnlock()

	cleaned := text
	if pattern != nil {
		cleaned = pattern.ReplaceAllString(cleaned, "")
	}
	cleaned = strings.TrimSpace(spacePattern.ReplaceAllString(cleaned, " "))

	if punctOnly.MatchString(cleaned) {
		return "", false
	}
	return cleaned, true
}
