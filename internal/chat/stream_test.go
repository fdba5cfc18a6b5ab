package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vovarama1992/shop-chat/internal/identity"
	"github.com/Vovarama1992/shop-chat/internal/transport"
)

type emitted struct {
	event   string
	payload any
}

// fakeTransport records emits and lets tests inject events and connects.
type fakeTransport struct {
	mu        sync.Mutex
	emits     []emitted
	handlers  map[string][]transport.Handler
	onConnect []func()
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: map[string][]transport.Handler{}}
}

func (f *fakeTransport) Emit(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emits = append(f.emits, emitted{event: event, payload: payload})
	return nil
}

func (f *fakeTransport) On(event string, h transport.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = append(f.handlers[event], h)
}

func (f *fakeTransport) OnConnect(h func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onConnect = append(f.onConnect, h)
}

func (f *fakeTransport) fireConnect() {
	f.mu.Lock()
	hs := append([]func(){}, f.onConnect...)
	f.mu.Unlock()
	for _, h := range hs {
		h()
	}
}

func (f *fakeTransport) deliver(t *testing.T, m Message) {
	t.Helper()
	data, err := json.Marshal(m)
	require.NoError(t, err)

	f.mu.Lock()
	hs := append([]transport.Handler{}, f.handlers[transport.EventNewMessage]...)
	f.mu.Unlock()
	for _, h := range hs {
		h(data)
	}
}

func (f *fakeTransport) eventsNamed(event string) []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emitted
	for _, e := range f.emits {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

// fakeHistory serves canned responses; a gate channel per key lets tests
// control when a fetch resolves.
type fakeHistory struct {
	mu        sync.Mutex
	responses map[string][]Message
	errs      map[string]error
	gates     map[string]chan struct{}
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{
		responses: map[string][]Message{},
		errs:      map[string]error{},
		gates:     map[string]chan struct{}{},
	}
}

func (f *fakeHistory) gate(chatID string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[chatID] = ch
	return ch
}

func (f *fakeHistory) Messages(_ context.Context, chatID string) ([]Message, error) {
	f.mu.Lock()
	gate := f.gates[chatID]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[chatID]; err != nil {
		return nil, err
	}
	return f.responses[chatID], nil
}

func msg(id, chatID, role, text string) Message {
	return Message{
		ID:         id,
		ChatID:     chatID,
		SenderRole: identity.Role(role),
		Text:       text,
		CreatedAt:  time.Now().UTC(),
	}
}

func waitSynced(t *testing.T, s *Stream) {
	t.Helper()
	require.Eventually(t, func() bool { return s.State() == StateSynced },
		time.Second, 5*time.Millisecond)
}

func TestOpenLoadsHistoryAndAppendsLive(t *testing.T) {
	tr := newFakeTransport()
	hist := newFakeHistory()
	hist.responses["chat_u1"] = []Message{msg("m1", "chat_u1", "admin", "hi")}

	s := NewStream(identity.Actor{ID: "u1", Role: identity.RoleCustomer}, tr, hist)
	s.Open(context.Background(), "chat_u1")
	waitSynced(t, s)

	require.Len(t, s.Messages(), 1)
	assert.Equal(t, "m1", s.Messages()[0].ID)

	tr.deliver(t, msg("m2", "chat_u1", "customer", "hello back"))

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)
}

func TestStaleHistoryDiscarded(t *testing.T) {
	tr := newFakeTransport()
	hist := newFakeHistory()
	hist.responses["chat_a"] = []Message{msg("a1", "chat_a", "admin", "old")}
	hist.responses["chat_b"] = []Message{msg("b1", "chat_b", "admin", "new")}
	gateA := hist.gate("chat_a")

	s := NewStream(identity.Actor{ID: "adm", Role: identity.RoleAdmin}, tr, hist)

	s.Open(context.Background(), "chat_a")
	s.Close()
	s.Open(context.Background(), "chat_b")
	waitSynced(t, s)

	// A's fetch resolves only now, after B became active.
	close(gateA)

	time.Sleep(50 * time.Millisecond)
	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "b1", msgs[0].ID, "stale history for chat_a must not appear")
}

func TestSendWaitsForEcho(t *testing.T) {
	tr := newFakeTransport()
	hist := newFakeHistory()

	s := NewStream(identity.Actor{ID: "u1", Role: identity.RoleCustomer}, tr, hist)
	s.Open(context.Background(), "chat_u1")
	waitSynced(t, s)

	require.NoError(t, s.Send("hello"))

	// Not rendered locally: only the server echo appends.
	assert.Empty(t, s.Messages())

	sends := tr.eventsNamed(transport.EventSendMessage)
	require.Len(t, sends, 1)
	payload := sends[0].payload.(transport.SendMessagePayload)
	assert.Equal(t, "chat_u1", payload.ChatID)
	assert.Equal(t, "hello", payload.Text)
	assert.Equal(t, "customer", payload.SenderRole)

	tr.deliver(t, msg("m1", "chat_u1", "customer", "hello"))
	assert.Len(t, s.Messages(), 1, "echo appends exactly once")
}

func TestSendEmptyTextNoOp(t *testing.T) {
	tr := newFakeTransport()
	s := NewStream(identity.Actor{ID: "u1", Role: identity.RoleCustomer}, tr, newFakeHistory())
	s.Open(context.Background(), "chat_u1")
	waitSynced(t, s)

	require.NoError(t, s.Send(""))
	require.NoError(t, s.Send("   "))

	assert.Empty(t, tr.eventsNamed(transport.EventSendMessage))
	assert.Empty(t, s.Messages())
}

func TestSendWithoutConversation(t *testing.T) {
	tr := newFakeTransport()
	s := NewStream(identity.Actor{ID: "u1", Role: identity.RoleCustomer}, tr, newFakeHistory())

	assert.ErrorIs(t, s.Send("hello"), ErrNoConversation)
}

func TestUnreadWhileClosed(t *testing.T) {
	tr := newFakeTransport()
	s := NewStream(identity.Actor{ID: "u1", Role: identity.RoleCustomer}, tr, newFakeHistory())
	s.Open(context.Background(), "chat_u1")
	waitSynced(t, s)

	s.Close()

	for i := 0; i < 12; i++ {
		tr.deliver(t, msg("m", "chat_u1", "admin", "ping"))
	}
	assert.Equal(t, 10, s.Unread(), "counter saturates at the display ceiling")
	assert.Equal(t, "10+", UnreadBadge(s.Unread()))

	// Own echoes never count.
	tr.deliver(t, msg("m", "chat_u1", "customer", "mine"))
	assert.Equal(t, 10, s.Unread())

	s.Open(context.Background(), "chat_u1")
	assert.Equal(t, 0, s.Unread(), "opening resets unread to zero")
}

func TestUnreadIncrementsByOne(t *testing.T) {
	tr := newFakeTransport()
	s := NewStream(identity.Actor{ID: "u1", Role: identity.RoleCustomer}, tr, newFakeHistory())
	s.Open(context.Background(), "chat_u1")
	waitSynced(t, s)
	s.Close()

	for want := 1; want <= 3; want++ {
		tr.deliver(t, msg("m", "chat_u1", "admin", "ping"))
		assert.Equal(t, want, s.Unread())
	}
}

func TestReopenSameKeyIsRefresh(t *testing.T) {
	tr := newFakeTransport()
	hist := newFakeHistory()
	hist.responses["chat_u1"] = []Message{msg("m1", "chat_u1", "admin", "hi")}

	s := NewStream(identity.Actor{ID: "u1", Role: identity.RoleCustomer}, tr, hist)
	s.Open(context.Background(), "chat_u1")
	waitSynced(t, s)
	s.Open(context.Background(), "chat_u1")
	waitSynced(t, s)

	assert.Empty(t, tr.eventsNamed(transport.EventLeaveChat),
		"re-opening the active key must not leave it")
	assert.Len(t, tr.eventsNamed(transport.EventJoinChat), 2)
	assert.Len(t, s.Messages(), 1)
}

func TestSwitchingConversationsLeavesPrevious(t *testing.T) {
	tr := newFakeTransport()
	s := NewStream(identity.Actor{ID: "adm", Role: identity.RoleAdmin}, tr, newFakeHistory())

	s.Open(context.Background(), "chat_u1")
	waitSynced(t, s)
	s.Open(context.Background(), "chat_u2")
	waitSynced(t, s)

	leaves := tr.eventsNamed(transport.EventLeaveChat)
	require.Len(t, leaves, 1)
	assert.Equal(t, transport.LeaveChatPayload{ChatID: "chat_u1"}, leaves[0].payload)
}

func TestCloseStaysJoined(t *testing.T) {
	tr := newFakeTransport()
	s := NewStream(identity.Actor{ID: "u1", Role: identity.RoleCustomer}, tr, newFakeHistory())
	s.Open(context.Background(), "chat_u1")
	waitSynced(t, s)

	s.Close()

	// Closing the box must not release delivery scoping; the unread
	// counter depends on the room staying joined.
	assert.Empty(t, tr.eventsNamed(transport.EventLeaveChat))
	assert.Equal(t, "chat_u1", s.ActiveKey())
}

func TestLeaveIsTeardown(t *testing.T) {
	tr := newFakeTransport()
	s := NewStream(identity.Actor{ID: "u1", Role: identity.RoleCustomer}, tr, newFakeHistory())
	s.Open(context.Background(), "chat_u1")
	waitSynced(t, s)

	s.Leave()

	leaves := tr.eventsNamed(transport.EventLeaveChat)
	require.Len(t, leaves, 1)
	assert.Equal(t, transport.LeaveChatPayload{ChatID: "chat_u1"}, leaves[0].payload)
	assert.Empty(t, s.ActiveKey())
	assert.ErrorIs(t, s.Send("hello"), ErrNoConversation)

	// After teardown nothing is counted anymore.
	tr.deliver(t, msg("m", "chat_u1", "admin", "ping"))
	assert.Equal(t, 0, s.Unread())
}

func TestReconnectWhileClosedRejoinsRoom(t *testing.T) {
	tr := newFakeTransport()
	s := NewStream(identity.Actor{ID: "u1", Role: identity.RoleCustomer}, tr, newFakeHistory())
	s.Open(context.Background(), "chat_u1")
	waitSynced(t, s)
	s.Close()

	tr.fireConnect()

	joins := tr.eventsNamed(transport.EventJoinChat)
	require.Len(t, joins, 2, "closed box re-joins its room after a reconnect")
	assert.Equal(t, StateDetached, s.State(), "re-join must not re-open the view")

	tr.deliver(t, msg("m", "chat_u1", "admin", "ping"))
	assert.Equal(t, 1, s.Unread())
}

func TestHistoryFailureShowsEmpty(t *testing.T) {
	tr := newFakeTransport()
	hist := newFakeHistory()
	hist.errs["chat_u1"] = context.DeadlineExceeded

	s := NewStream(identity.Actor{ID: "u1", Role: identity.RoleCustomer}, tr, hist)
	s.Open(context.Background(), "chat_u1")
	waitSynced(t, s)

	assert.Empty(t, s.Messages(), "failed fetch renders empty, never stale")
}

func TestReconnectRejoinsActiveConversation(t *testing.T) {
	tr := newFakeTransport()
	hist := newFakeHistory()
	hist.responses["chat_u1"] = []Message{msg("m1", "chat_u1", "admin", "hi")}

	s := NewStream(identity.Actor{ID: "u1", Role: identity.RoleCustomer}, tr, hist)
	tr.fireConnect()

	joins := tr.eventsNamed(transport.EventJoin)
	require.Len(t, joins, 1)
	assert.Equal(t, transport.JoinPayload{UserID: "u1", Role: "customer"}, joins[0].payload)

	s.Open(context.Background(), "chat_u1")
	waitSynced(t, s)

	// Transport drops and comes back: presence and chat scoping must be
	// re-established without any caller involvement.
	tr.fireConnect()
	require.Eventually(t, func() bool {
		return len(tr.eventsNamed(transport.EventJoinChat)) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, tr.eventsNamed(transport.EventJoin), 2)
}

func TestMalformedLiveMessageDropped(t *testing.T) {
	tr := newFakeTransport()
	s := NewStream(identity.Actor{ID: "u1", Role: identity.RoleCustomer}, tr, newFakeHistory())
	s.Open(context.Background(), "chat_u1")
	waitSynced(t, s)

	tr.mu.Lock()
	hs := append([]transport.Handler{}, tr.handlers[transport.EventNewMessage]...)
	tr.mu.Unlock()
	for _, h := range hs {
		h(json.RawMessage(`{"chatId":"chat_u1","text":"no id or time"}`))
	}

	assert.Empty(t, s.Messages())
}

func TestAdminScenario(t *testing.T) {
	// Admin answers u2 while u1 writes in the background.
	tr := newFakeTransport()
	hist := newFakeHistory()
	hist.responses["chat_u2"] = []Message{msg("m1", "chat_u2", "customer", "hi")}

	dir := NewDirectory()
	s := NewStream(identity.Actor{ID: "adm", Role: identity.RoleAdmin}, tr, hist, WithDirectory(dir))

	key := dir.Select("u2")
	require.Equal(t, "chat_u2", key)
	s.Open(context.Background(), key)
	waitSynced(t, s)

	tr.deliver(t, msg("m9", "chat_u1", "customer", "anyone there?"))

	assert.Equal(t, 1, dir.Unread("u1"), "background conversation bumps its badge")
	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "chat_u2", msgs[0].ChatID, "visible list stays on the active conversation")
}
