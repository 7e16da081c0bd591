// Package transport provides the reconnecting websocket event channel
// between the client and the authority server. Messages are JSON
// envelopes of the form {"event": "...", "data": ...}.
package transport

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ErrDisconnected is returned by Emit when no connection is live.
var ErrDisconnected = errors.New("transport: not connected")

// Envelope is the wire frame for every event in either direction.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler receives one inbound event with its raw payload.
type Handler func(event string, data []byte)

// Channel dials the server and keeps redialing for as long as Connect
// is in effect. Reconnection attempts are unbounded; the delay between
// attempts is fixed.
type Channel struct {
	url     string
	log     zerolog.Logger
	handler Handler

	redial time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	active    bool // Connect called and Disconnect not yet called
	gen       int  // invalidates stale dial/read loops
}

// New creates a channel for the given websocket URL. The handler is
// called from the read loop for every inbound event; it must not block.
func New(url string, handler Handler, log zerolog.Logger) *Channel {
	return &Channel{
		url:     url,
		log:     log.With().Str("component", "transport").Logger(),
		handler: handler,
		redial:  time.Second,
	}
}

// SetRedialInterval overrides the delay between reconnection attempts.
func (c *Channel) SetRedialInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.redial = d
	c.mu.Unlock()
}

// Connect starts dialing in the background. Calling it while already
// active is a no-op.
func (c *Channel) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active {
		return
	}
	c.active = true
	c.gen++
	go c.dialLoop(c.gen)
}

// Disconnect closes the connection and stops reconnecting until the
// next Connect.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = false
	c.gen++
	c.closeLocked()
}

// Connected reports whether an emission would currently reach the
// server.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Emit sends one event. It fails fast when disconnected; callers decide
// whether the operation has an offline fallback.
func (c *Channel) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	connected := c.connected
	c.mu.Unlock()
	if !connected || conn == nil {
		return ErrDisconnected
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		return ErrDisconnected
	}
	return conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *Channel) dialLoop(gen int) {
	for {
		c.mu.Lock()
		if c.gen != gen || !c.active {
			c.mu.Unlock()
			return
		}
		redial := c.redial
		c.mu.Unlock()

		conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
		if err != nil {
			c.log.Warn().Err(err).Str("url", c.url).Msg("dial failed, retrying")
			time.Sleep(redial)
			continue
		}

		c.mu.Lock()
		if c.gen != gen || !c.active {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		c.connected = true
		c.mu.Unlock()
		c.log.Info().Str("url", c.url).Msg("connected")

		c.readLoop(conn, gen)

		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return
		}
		c.closeLocked()
		stop := !c.active
		c.mu.Unlock()
		if stop {
			return
		}
		c.log.Warn().Msg("connection lost, reconnecting")
		time.Sleep(redial)
	}
}

func (c *Channel) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		c.mu.Lock()
		stale := c.gen != gen
		c.mu.Unlock()
		if stale {
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.log.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}
		if c.handler != nil {
			c.handler(env.Event, env.Data)
		}
	}
}

func (c *Channel) closeLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connected = false
}
