package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// echoServer upgrades every request, records inbound envelopes and lets
// tests push frames back to the most recent client.
type echoServer struct {
	t  *testing.T
	mu sync.Mutex

	conns    []*websocket.Conn
	received []Envelope
}

func newEchoServer(t *testing.T) (*echoServer, string) {
	t.Helper()
	es := &echoServer{t: t}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		es.mu.Lock()
		es.conns = append(es.conns, conn)
		es.mu.Unlock()
		for {
			var env Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			es.mu.Lock()
			es.received = append(es.received, env)
			es.mu.Unlock()
		}
	}))
	t.Cleanup(srv.Close)
	return es, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (es *echoServer) push(env Envelope) {
	es.mu.Lock()
	defer es.mu.Unlock()
	require.NotEmpty(es.t, es.conns, "no client connected")
	require.NoError(es.t, es.conns[len(es.conns)-1].WriteJSON(env))
}

func (es *echoServer) lastReceived() (Envelope, bool) {
	es.mu.Lock()
	defer es.mu.Unlock()
	if len(es.received) == 0 {
		return Envelope{}, false
	}
	return es.received[len(es.received)-1], true
}

func (es *echoServer) connCount() int {
	es.mu.Lock()
	defer es.mu.Unlock()
	return len(es.conns)
}

func (es *echoServer) dropClients() {
	es.mu.Lock()
	defer es.mu.Unlock()
	for _, conn := range es.conns {
		_ = conn.Close()
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestEmitDeliversEnvelope(t *testing.T) {
	es, url := newEchoServer(t)
	ch := New(url, nil, zerolog.Nop())
	ch.SetRedialInterval(10 * time.Millisecond)
	ch.Connect()
	defer ch.Disconnect()

	waitFor(t, ch.Connected)
	require.NoError(t, ch.Emit("join-room", map[string]string{"roomId": "travel-1"}))

	waitFor(t, func() bool { _, ok := es.lastReceived(); return ok })
	env, _ := es.lastReceived()
	assert.Equal(t, "join-room", env.Event)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, "travel-1", payload["roomId"])
}

func TestInboundEventsReachHandler(t *testing.T) {
	es, url := newEchoServer(t)

	var mu sync.Mutex
	var events []string
	var payloads [][]byte
	handler := func(event string, data []byte) {
		mu.Lock()
		events = append(events, event)
		payloads = append(payloads, data)
		mu.Unlock()
	}

	ch := New(url, handler, zerolog.Nop())
	ch.SetRedialInterval(10 * time.Millisecond)
	ch.Connect()
	defer ch.Disconnect()
	waitFor(t, ch.Connected)

	es.push(Envelope{Event: "timer-update", Data: json.RawMessage("42")})
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "timer-update", events[0])
	assert.JSONEq(t, "42", string(payloads[0]))
}

func TestEmitWhileDisconnected(t *testing.T) {
	ch := New("ws://127.0.0.1:1/ws", nil, zerolog.Nop())
	err := ch.Emit("join-room", nil)
	assert.ErrorIs(t, err, ErrDisconnected)
}

func TestReconnectsAfterServerDrop(t *testing.T) {
	es, url := newEchoServer(t)
	ch := New(url, nil, zerolog.Nop())
	ch.SetRedialInterval(10 * time.Millisecond)
	ch.Connect()
	defer ch.Disconnect()
	waitFor(t, ch.Connected)

	es.dropClients()
	waitFor(t, func() bool { return es.connCount() >= 2 && ch.Connected() })
	require.NoError(t, ch.Emit("send-message", map[string]string{"message": "back"}))
}

func TestDisconnectStopsRedialing(t *testing.T) {
	es, url := newEchoServer(t)
	ch := New(url, nil, zerolog.Nop())
	ch.SetRedialInterval(10 * time.Millisecond)
	ch.Connect()
	waitFor(t, ch.Connected)

	ch.Disconnect()
	assert.False(t, ch.Connected())

	before := es.connCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, es.connCount(), "no redial after Disconnect")
	assert.ErrorIs(t, ch.Emit("x", nil), ErrDisconnected)
}

func TestConnectIsIdempotent(t *testing.T) {
	es, url := newEchoServer(t)
	ch := New(url, nil, zerolog.Nop())
	ch.SetRedialInterval(10 * time.Millisecond)
	ch.Connect()
	ch.Connect()
	defer ch.Disconnect()
	waitFor(t, ch.Connected)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, es.connCount(), "a second Connect must not dial again")
}
