// Package voice wires capture, detection, turn-taking, recognition, and
// playback into the conversational loop.
package voice

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Exchange is one user utterance and the assistant's reply.
type Exchange struct {
	UserText      string    `json:"userText"`
	AssistantText string    `json:"assistantText"`
	Timestamp     time.Time `json:"timestamp"`
}

// ConversationConfig bounds the retained history.
type ConversationConfig struct {
	MaxExchanges      int
	InactivityTimeout time.Duration
}

func DefaultConversationConfig() ConversationConfig {
	return ConversationConfig{
		MaxExchanges:      10,
		InactivityTimeout: 5 * time.Minute,
	}
}

// followUpWords suggest the utterance leans on prior context.
var followUpWords = []string{
	"it", "that", "this", "them", "those",
	"again", "also", "too", "another", "same",
	"what about", "how about",
	"you said", "earlier", "before",
	"tell me more", "go on",
}

var continuationStarts = []string{"and ", "but ", "so ", "also ", "then "}

// ConversationManager keeps recent exchanges so a follow-up utterance
// can carry its context to the backend. History expires after a quiet
// period; a stale reference is worse than none.
type ConversationManager struct {
	mu           sync.RWMutex
	exchanges    []Exchange
	lastActivity time.Time
	config       ConversationConfig
}

func NewConversationManager(config ConversationConfig) *ConversationManager {
	if config.MaxExchanges <= 0 {
		config.MaxExchanges = 10
	}
	if config.InactivityTimeout <= 0 {
		config.InactivityTimeout = 5 * time.Minute
	}
	return &ConversationManager{
		exchanges:    make([]Exchange, 0, config.MaxExchanges),
		lastActivity: time.Now(),
		config:       config,
	}
}

// AddExchange records one finished turn, trimming to MaxExchanges.
func (cm *ConversationManager) AddExchange(userText, assistantText string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.isExpiredLocked() {
		cm.exchanges = cm.exchanges[:0]
	}

	cm.exchanges = append(cm.exchanges, Exchange{
		UserText:      userText,
		AssistantText: assistantText,
		Timestamp:     time.Now(),
	})
	cm.lastActivity = time.Now()

	if len(cm.exchanges) > cm.config.MaxExchanges {
		cm.exchanges = cm.exchanges[len(cm.exchanges)-cm.config.MaxExchanges:]
	}
}

// Recent formats the last n exchanges for backend context. Empty when
// the history expired or is empty.
func (cm *ConversationManager) Recent(n int) string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if cm.isExpiredLocked() || len(cm.exchanges) == 0 {
		return ""
	}

	start := len(cm.exchanges) - n
	if start < 0 {
		start = 0
	}

	var sb strings.Builder
	sb.WriteString("Previous conversation:\n")
	for _, ex := range cm.exchanges[start:] {
		reply := ex.AssistantText
		if len(reply) > 200 {
			reply = reply[:200] + "..."
		}
		fmt.Fprintf(&sb, "User: %s\nAssistant: %s\n", ex.UserText, reply)
	}
	return sb.String()
}

// IsFollowUp reports whether text likely references prior exchanges.
func (cm *ConversationManager) IsFollowUp(text string) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if len(cm.exchanges) == 0 || cm.isExpiredLocked() {
		return false
	}

	lower := strings.ToLower(text)
	for _, word := range followUpWords {
		if len(word) <= 4 {
			pattern := `\b` + regexp.QuoteMeta(word) + `\b`
			if matched, _ := regexp.MatchString(pattern, lower); matched {
				return true
			}
		} else if strings.Contains(lower, word) {
			return true
		}
	}
	for _, start := range continuationStarts {
		if strings.HasPrefix(lower, start) {
			return true
		}
	}
	return false
}

// ExchangeCount returns the number of stored exchanges.
func (cm *ConversationManager) ExchangeCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.exchanges)
}

// Clear drops all history.
func (cm *ConversationManager) Clear() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.exchanges = cm.exchanges[:0]
}

// IsExpired reports whether the history timed out.
func (cm *ConversationManager) IsExpired() bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.isExpiredLocked()
}

func (cm *ConversationManager) isExpiredLocked() bool {
	if len(cm.exchanges) == 0 {
		return false
	}
	return time.Since(cm.lastActivity) > cm.config.InactivityTimeout
}
