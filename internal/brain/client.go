package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrNoReply is returned when the backend response carries no message.
var ErrNoReply = errors.New("brain: no reply in response")

// ClientConfig configures the backend connection.
type ClientConfig struct {
	ServerURL    string        `json:"server_url"`
	Timeout      time.Duration `json:"timeout"`
	UserID       string        `json:"user_id"`
	SystemPrompt string        `json:"system_prompt"`
}

func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		ServerURL: "http://localhost:8080",
		Timeout:   30 * time.Second,
		UserID:    "default-user",
	}
}

// Client sends finished utterances to the backend and returns its
// spoken reply.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	logger     zerolog.Logger

	mu        sync.RWMutex
	connected bool
}

func NewClient(cfg *ClientConfig, logger zerolog.Logger) *Client {
	if cfg == nil {
		cfg = DefaultClientConfig()
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With().Str("component", "brain-client").Logger(),
	}
}

func (c *Client) metadata() map[string]any {
	md := map[string]any{"userId": c.config.UserID}
	if c.config.SystemPrompt != "" {
		md["systemPrompt"] = c.config.SystemPrompt
	}
	return md
}

// SendMessage posts one user utterance and returns the reply text.
func (c *Client) SendMessage(ctx context.Context, text string) (string, error) {
	msg, err := c.send(ctx, NewTextMessage("user", text, c.metadata()))
	if err != nil {
		return "", err
	}
	return msg.ExtractText(), nil
}

// SendTask reports an extracted task alongside the utterance so the
// backend can persist it and phrase the confirmation.
func (c *Client) SendTask(ctx context.Context, text, title string, due *time.Time) (string, error) {
	data := map[string]any{"title": title}
	if due != nil {
		data["due"] = due.Format(time.RFC3339)
	}

	msg := NewTextMessage("user", text, c.metadata())
	msg.Parts = append(msg.Parts, DataPart{Kind: "data", Data: data})

	reply, err := c.send(ctx, msg)
	if err != nil {
		return "", err
	}
	return reply.ExtractText(), nil
}

func (c *Client) send(ctx context.Context, msg *Message) (*Message, error) {
	rpcReq := JSONRPCRequest{
		JSONRPC: "2.0",
		Method:  "message/send",
		Params:  MessageSendParams{Message: msg},
		ID:      1,
	}

	body, err := json.Marshal(rpcReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.ServerURL+"/", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setConnected(false)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var rpcResp JSONRPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		c.logger.Error().Err(err).Str("body", string(respBody)).Msg("Unparseable JSON-RPC response")
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if rpcResp.Error != nil {
		c.logger.Error().Int("code", rpcResp.Error.Code).Str("msg", rpcResp.Error.Message).Msg("JSON-RPC error")
		return nil, fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	c.setConnected(true)

	if result, ok := rpcResp.Result.(map[string]any); ok {
		if status, ok := result["status"].(map[string]any); ok {
			if msgData, ok := status["message"].(map[string]any); ok {
				return parseMessageFromMap(msgData), nil
			}
		}
		if msgData, ok := result["message"].(map[string]any); ok {
			return parseMessageFromMap(msgData), nil
		}
	}

	c.logger.Warn().Interface("result", rpcResp.Result).Msg("No message in response")
	return nil, ErrNoReply
}

func parseMessageFromMap(data map[string]any) *Message {
	msg := &Message{}

	if role, ok := data["role"].(string); ok {
		msg.Role = role
	}
	if parts, ok := data["parts"].([]any); ok {
		for _, p := range parts {
			partMap, ok := p.(map[string]any)
			if !ok {
				continue
			}
			switch partMap["kind"] {
			case "text":
				text, _ := partMap["text"].(string)
				msg.Parts = append(msg.Parts, TextPart{Kind: "text", Text: text})
			case "data":
				if d, ok := partMap["data"].(map[string]any); ok {
					msg.Parts = append(msg.Parts, DataPart{Kind: "data", Data: d})
				}
			}
		}
	}
	if metadata, ok := data["metadata"].(map[string]any); ok {
		msg.Metadata = metadata
	}
	return msg
}

func (c *Client) setConnected(connected bool) {
	c.mu.Lock()
	c.connected = connected
	c.mu.Unlock()
}

// IsConnected reports whether the last request succeeded.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// ServerURL returns the configured backend address.
func (c *Client) ServerURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config.ServerURL
}
