package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	DeepgramWSEndpoint = "wss://api.deepgram.com/v1/listen"
	DeepgramModel      = "nova-2"
)

// DeepgramConfig controls the streaming connection parameters.
type DeepgramConfig struct {
	APIKey         string
	Endpoint       string
	Model          string
	Language       string
	SampleRate     int
	Encoding       string
	Channels       int
	InterimResults bool
	Punctuate      bool
}

func DefaultDeepgramConfig() *DeepgramConfig {
	return &DeepgramConfig{
		Endpoint:       DeepgramWSEndpoint,
		Model:          DeepgramModel,
		Language:       "en-US",
		SampleRate:     16000,
		Encoding:       "linear16",
		Channels:       1,
		InterimResults: true,
		Punctuate:      true,
	}
}

// Deepgram streams microphone audio to the Deepgram listen API over a
// websocket and surfaces interim and final transcripts.
type Deepgram struct {
	apiKey string
	logger zerolog.Logger
	config *DeepgramConfig

	connMu  sync.Mutex
	conn    *websocket.Conn
	running bool
}

func NewDeepgram(logger zerolog.Logger, config *DeepgramConfig) *Deepgram {
	if config == nil {
		config = DefaultDeepgramConfig()
	}
	if config.Endpoint == "" {
		config.Endpoint = DeepgramWSEndpoint
	}

	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("DEEPGRAM_API_KEY")
	}

	return &Deepgram{
		apiKey: apiKey,
		logger: logger.With().Str("provider", "deepgram").Logger(),
		config: config,
	}
}

func (p *Deepgram) Name() string { return "deepgram" }

func (p *Deepgram) IsAvailable() bool { return p.apiKey != "" }

type deepgramMessage struct {
	Type        string          `json:"type"`
	Duration    float64         `json:"duration,omitempty"`
	IsFinal     bool            `json:"is_final,omitempty"`
	SpeechFinal bool            `json:"speech_final,omitempty"`
	Channel     deepgramChannel `json:"channel,omitempty"`
}

type deepgramChannel struct {
	Alternatives []deepgramAlternative `json:"alternatives,omitempty"`
}

type deepgramAlternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

func (p *Deepgram) Start(ctx context.Context) (<-chan Result, error) {
	if p.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	p.connMu.Lock()
	defer p.connMu.Unlock()

	if p.running {
		return nil, ErrAlreadyRunning
	}

	url := fmt.Sprintf("%s?model=%s&language=%s&encoding=%s&sample_rate=%d&channels=%d&punctuate=%t&interim_results=%t",
		p.config.Endpoint,
		p.config.Model,
		p.config.Language,
		p.config.Encoding,
		p.config.SampleRate,
		p.config.Channels,
		p.config.Punctuate,
		p.config.InterimResults,
	)

	header := http.Header{}
	header.Set("Authorization", "Token "+p.apiKey)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			p.logger.Error().Int("status", resp.StatusCode).Err(err).Msg("Deepgram websocket connect failed")
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	p.conn = conn
	p.running = true
	p.logger.Info().Str("model", p.config.Model).Msg("Connected to Deepgram")

	results := make(chan Result, 32)
	go p.readLoop(ctx, conn, results)

	return results, nil
}

func (p *Deepgram) readLoop(ctx context.Context, conn *websocket.Conn, results chan<- Result) {
	defer close(results)

	for {
		if ctx.Err() != nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.logger.Debug().Msg("Deepgram connection closed")
				return
			}
			if ctx.Err() != nil || !p.isRunning() {
				return
			}
			p.logger.Error().Err(err).Msg("Deepgram read failed")
			results <- Result{Err: err}
			return
		}

		var msg deepgramMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			p.logger.Warn().Err(err).Msg("Unparseable Deepgram message")
			continue
		}

		switch msg.Type {
		case "Results":
			if len(msg.Channel.Alternatives) == 0 {
				continue
			}
			alt := msg.Channel.Alternatives[0]
			if alt.Transcript == "" {
				continue
			}
			res := Result{
				Text:       alt.Transcript,
				Confidence: alt.Confidence,
				IsFinal:    msg.IsFinal || msg.SpeechFinal,
			}
			select {
			case results <- res:
				p.logger.Debug().Str("text", alt.Transcript).Bool("final", res.IsFinal).Msg("Transcript")
			default:
				p.logger.Warn().Msg("Result channel full, dropping transcript")
			}

		case "UtteranceEnd":
			p.logger.Debug().Msg("Deepgram utterance end")

		case "Error":
			p.logger.Error().Str("message", string(message)).Msg("Deepgram error frame")
		}
	}
}

func (p *Deepgram) isRunning() bool {
	p.connMu.Lock()
	defer p.connMu.Unlock()
	return p.running
}

func (p *Deepgram) SendAudio(audio []byte) error {
	p.connMu.Lock()
	defer p.connMu.Unlock()

	if !p.running || p.conn == nil {
		return ErrNotConnected
	}
	return p.conn.WriteMessage(websocket.BinaryMessage, audio)
}

func (p *Deepgram) Stop() error {
	p.connMu.Lock()
	defer p.connMu.Unlock()

	if p.conn == nil {
		return nil
	}

	closeMsg := []byte(`{"type": "CloseStream"}`)
	if err := p.conn.WriteMessage(websocket.TextMessage, closeMsg); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to send close message")
	}

	err := p.conn.Close()
	p.conn = nil
	p.running = false

	p.logger.Info().Msg("Deepgram stream stopped")
	return err
}
