package stt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

// fakeDeepgram serves the listen endpoint: it echoes every binary
// frame back as a Results message and honors CloseStream.
func fakeDeepgram(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			mt, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			switch mt {
			case websocket.BinaryMessage:
				resp := `{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"pay rent by tomorrow","confidence":0.93}]}}`
				if err := conn.WriteMessage(websocket.TextMessage, []byte(resp)); err != nil {
					return
				}
			case websocket.TextMessage:
				if strings.Contains(string(payload), "CloseStream") {
					conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		}
	}))
}

func testConfig(server *httptest.Server) *DeepgramConfig {
	cfg := DefaultDeepgramConfig()
	cfg.APIKey = "test-key"
	cfg.Endpoint = "ws" + strings.TrimPrefix(server.URL, "http")
	return cfg
}

func TestDeepgramStreamingRoundTrip(t *testing.T) {
	server := fakeDeepgram(t)
	defer server.Close()

	p := NewDeepgram(zerolog.Nop(), testConfig(server))
	require.True(t, p.IsAvailable())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results, err := p.Start(ctx)
	require.NoError(t, err)
	defer p.Stop()

	require.NoError(t, p.SendAudio([]byte{0, 0, 1, 0}))

	select {
	case res := <-results:
		require.NoError(t, res.Err)
		assert.Equal(t, "pay rent by tomorrow", res.Text)
		assert.True(t, res.IsFinal)
		assert.InDelta(t, 0.93, res.Confidence, 1e-9)
	case <-ctx.Done():
		t.Fatal("no transcript received")
	}
}

func TestDeepgramStartWithoutKey(t *testing.T) {
	cfg := DefaultDeepgramConfig()
	cfg.APIKey = ""
	t.Setenv("DEEPGRAM_API_KEY", "")

	p := NewDeepgram(zerolog.Nop(), cfg)
	assert.False(t, p.IsAvailable())

	_, err := p.Start(context.Background())
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestDeepgramSendBeforeStart(t *testing.T) {
	cfg := DefaultDeepgramConfig()
	cfg.APIKey = "test-key"

	p := NewDeepgram(zerolog.Nop(), cfg)
	assert.ErrorIs(t, p.SendAudio([]byte{1, 2}), ErrNotConnected)
}

func TestDeepgramDoubleStartRefused(t *testing.T) {
	server := fakeDeepgram(t)
	defer server.Close()

	p := NewDeepgram(zerolog.Nop(), testConfig(server))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := p.Start(ctx)
	require.NoError(t, err)
	defer p.Stop()

	_, err = p.Start(ctx)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestDeepgramStopClosesResultChannel(t *testing.T) {
	server := fakeDeepgram(t)
	defer server.Close()

	p := NewDeepgram(zerolog.Nop(), testConfig(server))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results, err := p.Start(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Stop())

	select {
	case _, ok := <-results:
		assert.False(t, ok, "result channel should be closed after Stop")
	case <-time.After(2 * time.Second):
		t.Fatal("result channel not closed")
	}
}
