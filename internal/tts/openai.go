package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const OpenAIEndpoint = "https://api.openai.com/v1/audio/speech"

// OpenAI TTS voices.
const (
	VoiceAlloy   = "alloy"
	VoiceEcho    = "echo"
	VoiceFable   = "fable"
	VoiceOnyx    = "onyx"
	VoiceNova    = "nova"
	VoiceShimmer = "shimmer"
)

// OpenAIConfig holds OpenAI TTS settings.
type OpenAIConfig struct {
	APIKey       string        `json:"api_key"`
	Endpoint     string        `json:"endpoint"`
	Model        string        `json:"model"`
	DefaultVoice string        `json:"default_voice"`
	Speed        float64       `json:"speed"`
	Timeout      time.Duration `json:"timeout"`
}

func DefaultOpenAIConfig() *OpenAIConfig {
	return &OpenAIConfig{
		Endpoint:     OpenAIEndpoint,
		Model:        "tts-1",
		DefaultVoice: VoiceNova,
		Speed:        1.0,
		Timeout:      30 * time.Second,
	}
}

// OpenAIProvider synthesizes speech through OpenAI's TTS API.
type OpenAIProvider struct {
	apiKey string
	client *http.Client
	logger zerolog.Logger
	config *OpenAIConfig
}

func NewOpenAIProvider(logger zerolog.Logger, config *OpenAIConfig) *OpenAIProvider {
	if config == nil {
		config = DefaultOpenAIConfig()
	}
	if config.Endpoint == "" {
		config.Endpoint = OpenAIEndpoint
	}

	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	return &OpenAIProvider{
		apiKey: apiKey,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger.With().Str("provider", "openai-tts").Logger(),
		config: config,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) IsAvailable() bool { return p.apiKey != "" }

type openAIRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format,omitempty"`
	Speed          float64 `json:"speed,omitempty"`
}

func (p *OpenAIProvider) Synthesize(ctx context.Context, req *Request) (*Audio, error) {
	if p.apiKey == "" {
		return nil, ErrProviderUnavailable
	}
	if req.Text == "" {
		return nil, ErrEmptyText
	}

	startTime := time.Now()

	voice := req.VoiceID
	if voice == "" {
		voice = p.config.DefaultVoice
	}
	speed := req.Speed
	if speed == 0 {
		speed = p.config.Speed
	}

	body, err := json.Marshal(openAIRequest{
		Model:          p.config.Model,
		Input:          req.Text,
		Voice:          voice,
		ResponseFormat: "mp3",
		Speed:          speed,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	p.logger.Debug().
		Str("voice", voice).
		Str("model", p.config.Model).
		Int("textLen", len(req.Text)).
		Msg("Sending TTS request")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		p.logger.Error().
			Int("status", resp.StatusCode).
			Str("body", string(bodyBytes)).
			Msg("OpenAI TTS request failed")
		return nil, fmt.Errorf("openai tts status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	processingTime := time.Since(startTime)
	p.logger.Info().
		Str("voice", voice).
		Int("audioBytes", len(audioData)).
		Dur("processingTime", processingTime).
		Msg("Synthesis complete")

	return &Audio{
		Data:           audioData,
		Format:         "mp3",
		SampleRate:     24000,
		ProcessingTime: processingTime,
		VoiceID:        voice,
		Provider:       p.Name(),
	}, nil
}
