// Package transport implements the realtime channel: a websocket carrying
// named-event JSON frames, plus the process-wide shared connection every
// surface uses.
package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Vovarama1992/shop-chat/internal/logging"
)

const (
	writeWait        = 10 * time.Second
	reconnectMin     = time.Second
	reconnectMax     = 30 * time.Second
	maxFrameSize     = 512 * 1024
	handshakeTimeout = 10 * time.Second
)

// ErrNotConnected is returned by Emit while the socket is down. Sends are
// fire-and-forget; callers log and move on.
var ErrNotConnected = errors.New("transport: not connected")

// Handler receives the raw data of a named event. Handlers are dispatched
// sequentially from a single goroutine and must not block for long.
type Handler func(data json.RawMessage)

// Conn is a named-event websocket connection.
type Conn struct {
	url    string
	header http.Header
	log    zerolog.Logger

	mu        sync.Mutex
	ws        *websocket.Conn
	handlers  map[string][]Handler
	onConnect []func()
	closed    bool
}

// Option configures a Conn.
type Option func(*Conn)

// WithBearer attaches the credential to the websocket handshake.
func WithBearer(token string) Option {
	return func(c *Conn) {
		if token != "" {
			c.header.Set("Authorization", "Bearer "+token)
		}
	}
}

// New creates a connection for the given ws:// or wss:// URL. Nothing is
// dialed until Connect.
func New(url string, opts ...Option) *Conn {
	c := &Conn{
		url:      url,
		header:   http.Header{},
		handlers: map[string][]Handler{},
		log:      logging.Logger().With().Str("component", "transport").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// On registers a handler for a named event. Register before Connect so no
// early frames are missed.
func (c *Conn) On(event string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], h)
}

// OnConnect registers a handler fired after every successful dial,
// including reconnects. Controllers use it to re-establish chat scoping.
func (c *Conn) OnConnect(f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = append(c.onConnect, f)
}

// Connect dials the socket and starts the read loop. Idempotent: a live
// connection is left alone.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("transport: connection closed")
	}
	if c.ws != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return err
	}
	ws.SetReadLimit(maxFrameSize)

	c.mu.Lock()
	c.ws = ws
	connectHandlers := append([]func(){}, c.onConnect...)
	c.mu.Unlock()

	go c.readLoop(ws)

	for _, f := range connectHandlers {
		f()
	}
	return nil
}

// Emit sends a named event. Marshal or connection errors are returned, not
// retried; delivery has no acknowledgment.
func (c *Conn) Emit(event string, payload any) error {
	frame, err := NewFrame(event, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		return ErrNotConnected
	}
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteJSON(frame)
}

// Close tears the connection down for good. Only call on full teardown
// (logout, unmount); other surfaces may still share this connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	c.closed = true
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	if ws != nil {
		return ws.Close()
	}
	return nil
}

// readLoop dispatches inbound frames until the socket dies, then tries to
// reconnect with backoff unless Close was called.
func (c *Conn) readLoop(ws *websocket.Conn) {
	for {
		var frame Frame
		if err := ws.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("socket read failed")
			}
			break
		}
		c.dispatch(frame)
	}

	c.mu.Lock()
	if c.ws == ws {
		c.ws = nil
	}
	closed := c.closed
	c.mu.Unlock()

	if !closed {
		go c.reconnect()
	}
}

func (c *Conn) dispatch(frame Frame) {
	c.mu.Lock()
	handlers := append([]Handler{}, c.handlers[frame.Event]...)
	c.mu.Unlock()

	for _, h := range handlers {
		h(frame.Data)
	}
}

func (c *Conn) reconnect() {
	delay := reconnectMin
	for {
		c.mu.Lock()
		closed := c.closed
		live := c.ws != nil
		c.mu.Unlock()
		if closed || live {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
		err := c.Connect(ctx)
		cancel()
		if err == nil {
			c.log.Info().Msg("socket reconnected")
			return
		}

		c.log.Warn().Err(err).Dur("retry_in", delay).Msg("socket reconnect failed")
		time.Sleep(delay)
		delay *= 2
		if delay > reconnectMax {
			delay = reconnectMax
		}
	}
}

var (
	sharedMu sync.Mutex
	shared   *Conn
)

// Shared returns the process-wide connection, creating it on first use.
// All surfaces mounted in one process share this handle; none of them
// should Close it except on full actor logout.
func Shared(url string, opts ...Option) *Conn {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared == nil {
		shared = New(url, opts...)
	}
	return shared
}

// ResetShared closes and forgets the shared connection. Call on logout.
func ResetShared() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared != nil {
		_ = shared.Close()
		shared = nil
	}
}
