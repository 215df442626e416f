package tts

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// LokutorTTS streams synthesis over a persistent websocket connection to
// the Lokutor API, reused across calls.
type LokutorTTS struct {
	apiKey string
	host   string
	scheme string // "wss" in production; tests override to "ws" against httptest
	mu     sync.Mutex
	conn   *websocket.Conn

	// Player receives each decoded PCM chunk as it arrives. Defaults to a
	// no-op sink (used by tests and by callers that only want the
	// done/cancelled/failed outcome, not the audio itself).
	Player func([]byte) error
}

func NewLokutorTTS(apiKey string) *LokutorTTS {
	return &LokutorTTS{
		apiKey: apiKey,
		host:   "api.lokutor.com",
		scheme: "wss",
		Player: func([]byte) error { return nil },
	}
}

func (t *LokutorTTS) Name() string { return "lokutor" }

func (t *LokutorTTS) getConn(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return t.conn, nil
	}

	u := url.URL{Scheme: t.scheme, Host: t.host, Path: "/ws", RawQuery: "api_key=" + t.apiKey}
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to lokutor: %w", err)
	}

	t.conn = conn
	return conn, nil
}

// Speak synthesizes text and streams the resulting audio to Player,
// honoring ctx cancellation between chunks (spec.md's cancel_signal at
// chunk boundaries): once ctx is Done, Speak stops reading further frames
// and returns OutcomeCancelled without treating it as an error.
func (t *LokutorTTS) Speak(ctx context.Context, text string, opts Options) (Outcome, error) {
	conn, err := t.getConn(ctx)
	if err != nil {
		return OutcomeFailed, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	speed := 1.0
	if opts.RateWPM > 0 {
		speed = float64(opts.RateWPM) / 175.0
	}
	req := map[string]interface{}{
		"text":    text,
		"voice":   opts.Voice,
		"speed":   speed,
		"volume":  opts.Volume,
		"version": "versa-1.0",
	}

	if err := wsjson.Write(ctx, conn, req); err != nil {
		t.conn = nil
		conn.Close(websocket.StatusAbnormalClosure, "failed to write json")
		return OutcomeFailed, fmt.Errorf("failed to send synthesis request: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return OutcomeCancelled, nil
		default:
		}

		messageType, payload, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return OutcomeCancelled, nil
			}
			t.conn = nil
			conn.Close(websocket.StatusAbnormalClosure, "failed to read")
			return OutcomeFailed, fmt.Errorf("failed to read from lokutor: %w", err)
		}

		switch messageType {
		case websocket.MessageBinary:
			if err := t.Player(payload); err != nil {
				return OutcomeFailed, err
			}
		case websocket.MessageText:
			msg := string(payload)
			if msg == "EOS" {
				return OutcomeDone, nil
			}
			if len(msg) >= 4 && msg[:4] == "ERR:" {
				return OutcomeFailed, fmt.Errorf("lokutor error: %s", msg)
			}
		}
	}
}

func (t *LokutorTTS) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		err := t.conn.Close(websocket.StatusNormalClosure, "")
		t.conn = nil
		return err
	}
	return nil
}
