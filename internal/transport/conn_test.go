package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// echoServer bounces every frame back and records the bearer header.
func echoServer(t *testing.T) (*httptest.Server, *string) {
	t.Helper()
	var bearer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bearer = r.Header.Get("Authorization")
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			var frame Frame
			if err := ws.ReadJSON(&frame); err != nil {
				return
			}
			if err := ws.WriteJSON(frame); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &bearer
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestEmitBeforeConnect(t *testing.T) {
	c := New("ws://127.0.0.1:0")
	err := c.Emit(EventJoin, JoinPayload{UserID: "u1", Role: "customer"})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestConnectEmitDispatch(t *testing.T) {
	srv, bearer := echoServer(t)

	c := New(wsURL(srv), WithBearer("tok123"))

	var mu sync.Mutex
	var got []JoinChatPayload
	c.On(EventJoinChat, func(data json.RawMessage) {
		var p JoinChatPayload
		require.NoError(t, json.Unmarshal(data, &p))
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
	})

	connects := 0
	c.OnConnect(func() { connects++ })

	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	assert.Equal(t, 1, connects)
	assert.Equal(t, "Bearer tok123", *bearer)

	require.NoError(t, c.Emit(EventJoinChat, JoinChatPayload{ChatID: "chat_u1"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "chat_u1", got[0].ChatID)
	mu.Unlock()
}

func TestConnectIdempotent(t *testing.T) {
	srv, _ := echoServer(t)

	c := New(wsURL(srv))
	connects := 0
	c.OnConnect(func() { connects++ })

	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	assert.Equal(t, 1, connects, "a live connection is left alone")
}

func TestSharedHandle(t *testing.T) {
	t.Cleanup(ResetShared)

	a := Shared("ws://example.invalid/ws")
	b := Shared("ws://other.invalid/ws")
	assert.Same(t, a, b, "every surface shares one connection")

	ResetShared()
	c := Shared("ws://example.invalid/ws")
	assert.NotSame(t, a, c, "reset forgets the old handle")
}
