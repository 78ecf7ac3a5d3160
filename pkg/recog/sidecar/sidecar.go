// Package sidecar provides a recognition engine backed by an external
// speech-to-text sidecar process speaking a small JSON protocol over
// WebSocket. It implements the recog.Engine interface.
//
// Each recognition attempt opens its own connection: the engine dials the
// sidecar, sends a "start" message, and reads events until the sidecar
// reports a result, an error, or the attempt is stopped. The sidecar owns
// the microphone and the model; this engine only relays outcomes.
package sidecar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/visagelabs/visage/pkg/recog"
)

const (
	defaultLocale      = "en-US"
	defaultDialTimeout = 5 * time.Second
)

// Option is a functional option for configuring the sidecar Engine.
type Option func(*Engine)

// WithLocale sets the BCP-47 locale tag sent with each start message
// (e.g., "en-US", "de-DE").
func WithLocale(locale string) Option {
	return func(e *Engine) {
		e.locale = locale
	}
}

// WithDialTimeout bounds how long a Start call waits for the sidecar
// connection to come up.
func WithDialTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.dialTimeout = d
	}
}

// Engine implements recog.Engine against a WebSocket STT sidecar.
type Engine struct {
	url         string
	locale      string
	dialTimeout time.Duration

	mu      sync.Mutex
	ev      recog.Events
	attempt *attempt
}

// New creates a sidecar Engine dialing the given WebSocket URL. url must be
// non-empty.
func New(url string, opts ...Option) (*Engine, error) {
	if url == "" {
		return nil, errors.New("sidecar: url must not be empty")
	}
	e := &Engine{
		url:         url,
		locale:      defaultLocale,
		dialTimeout: defaultDialTimeout,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

var _ recog.Engine = (*Engine)(nil)

// Subscribe registers the callback set for recognition events.
func (e *Engine) Subscribe(ev recog.Events) {
	e.mu.Lock()
	e.ev = ev
	e.mu.Unlock()
}

// Start dials the sidecar and begins one recognition attempt.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.attempt != nil {
		e.mu.Unlock()
		return recog.ErrBusy
	}
	ev := e.ev
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), e.dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, e.url, nil)
	if err != nil {
		return fmt.Errorf("sidecar: dial %s: %w", e.url, err)
	}

	start, _ := json.Marshal(clientMessage{Type: "start", Locale: e.locale})
	if err := conn.Write(ctx, websocket.MessageText, start); err != nil {
		conn.Close(websocket.StatusInternalError, "start failed")
		return fmt.Errorf("sidecar: send start: %w", err)
	}

	a := &attempt{conn: conn, done: make(chan struct{})}

	e.mu.Lock()
	if e.attempt != nil {
		e.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "superseded")
		return recog.ErrBusy
	}
	e.attempt = a
	e.mu.Unlock()

	go e.readLoop(a, ev)
	return nil
}

// Stop aborts the in-flight attempt, if any. The read loop fires OnEnd when
// the connection winds down.
func (e *Engine) Stop() {
	e.mu.Lock()
	a := e.attempt
	e.mu.Unlock()
	if a == nil {
		return
	}
	a.close()
}

// ---- attempt ----

// attempt is one live recognition attempt against the sidecar.
type attempt struct {
	conn *websocket.Conn
	once sync.Once
	done chan struct{}
}

// close tears the connection down exactly once. A "stop" message is sent
// first so the sidecar can release the microphone promptly.
func (a *attempt) close() {
	a.once.Do(func() {
		close(a.done)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		stop, _ := json.Marshal(clientMessage{Type: "stop"})
		_ = a.conn.Write(ctx, websocket.MessageText, stop)
		a.conn.Close(websocket.StatusNormalClosure, "attempt stopped")
	})
}

// clientMessage is the JSON frame the engine sends to the sidecar.
type clientMessage struct {
	Type   string `json:"type"`
	Locale string `json:"locale,omitempty"`
}

// serverMessage is the JSON frame the sidecar sends back.
type serverMessage struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
}

// readLoop receives sidecar messages and dispatches engine events. It owns
// the attempt's lifetime: whatever ends the connection, OnEnd fires exactly
// once and the engine is idle again afterwards.
func (e *Engine) readLoop(a *attempt, ev recog.Events) {
	defer func() {
		a.close()
		e.mu.Lock()
		if e.attempt == a {
			e.attempt = nil
		}
		e.mu.Unlock()
		ev.End()
	}()

	for {
		_, msg, err := a.conn.Read(context.Background())
		if err != nil {
			select {
			case <-a.done:
				// Stopped by the caller; not an error.
			default:
				ev.Error(fmt.Errorf("sidecar: connection lost: %w", err))
			}
			return
		}

		sm, ok := parseServerMessage(msg)
		if !ok {
			continue
		}

		switch sm.Type {
		case "result":
			ev.Result(sm.Text)
			return
		case "error":
			ev.Error(fmt.Errorf("sidecar: %s", sm.Message))
			return
		case "end":
			return
		}
	}
}

// parseServerMessage parses a raw sidecar frame. Returns (message, true) on
// success, or (zero, false) if the frame should be ignored.
func parseServerMessage(data []byte) (serverMessage, bool) {
	var sm serverMessage
	if err := json.Unmarshal(data, &sm); err != nil {
		return serverMessage{}, false
	}
	if sm.Type == "" {
		return serverMessage{}, false
	}
	return sm, true
}
