package chat

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/Vovarama1992/shop-chat/internal/identity"
	"github.com/Vovarama1992/shop-chat/internal/logging"
	"github.com/Vovarama1992/shop-chat/internal/transport"
)

// State of a stream with respect to its active conversation.
type State int

const (
	// StateDetached: no delivery scoping, nothing visible.
	StateDetached State = iota
	// StateJoining: join emitted, history fetch in flight.
	StateJoining
	// StateSynced: history applied, live events append to the tail.
	StateSynced
)

// unreadCap is the display ceiling; counts are not tracked past it.
const unreadCap = 10

// ErrNoConversation is returned by Send when nothing is open.
var ErrNoConversation = errors.New("chat: no active conversation")

// Stream is the message stream controller: the authoritative client-side
// view of the active conversation. One Stream per mounted surface; all of
// them share one transport connection.
//
// History replaces the visible list wholesale; live events append to the
// tail in arrival order. The controller never re-sorts. A locally composed
// message is rendered only when its echo comes back from the transport, so
// the rendered order always matches the server-confirmed order.
type Stream struct {
	actor identity.Actor
	tr    Transport
	hist  History
	dir   *Directory
	log   zerolog.Logger

	mu        sync.Mutex
	state     State
	activeKey string
	msgs      []Message
	unread    int
	notify    func()
}

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithDirectory attaches the admin multi-conversation directory; live
// events for non-active conversations bump its unread counters.
func WithDirectory(d *Directory) StreamOption {
	return func(s *Stream) { s.dir = d }
}

// WithNotify registers a callback fired after every visible state change,
// so a surface can re-render.
func WithNotify(f func()) StreamOption {
	return func(s *Stream) { s.notify = f }
}

// NewStream wires a controller to the transport. Live events are consumed
// from this point on; after every (re)connect the presence join is emitted
// and the active conversation is re-opened.
func NewStream(actor identity.Actor, tr Transport, hist History, opts ...StreamOption) *Stream {
	s := &Stream{
		actor: actor,
		tr:    tr,
		hist:  hist,
		log: logging.Logger().With().
			Str("component", "chat-stream").
			Str("actor", actor.ID).
			Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}

	tr.On(transport.EventNewMessage, s.handleLive)
	tr.OnConnect(s.handleConnected)
	return s
}

// Open makes key the active conversation: emits the join, resets unread and
// issues the history fetch. Idempotent; re-opening the active key is a
// refresh. The previously active conversation, if different, is left.
func (s *Stream) Open(ctx context.Context, key string) {
	s.mu.Lock()
	prev := s.activeKey
	s.activeKey = key
	s.state = StateJoining
	s.unread = 0
	if prev != key {
		s.msgs = nil
	}
	s.mu.Unlock()

	if prev != "" && prev != key {
		s.emit(transport.EventLeaveChat, transport.LeaveChatPayload{ChatID: prev})
	}
	s.emit(transport.EventJoinChat, transport.JoinChatPayload{ChatID: key})

	// Fire-and-forget: composition is never blocked on the fetch.
	go s.loadHistory(ctx, key)
	s.changed()
}

// Send trims and submits the composed text. Empty text is a no-op. The
// message is not injected locally; it shows up when the echo arrives.
func (s *Stream) Send(text string) error {
	t := strings.TrimSpace(text)
	if t == "" {
		return nil
	}

	s.mu.Lock()
	key := s.activeKey
	detached := s.state == StateDetached
	s.mu.Unlock()
	if key == "" || detached {
		return ErrNoConversation
	}

	err := s.tr.Emit(transport.EventSendMessage, transport.SendMessagePayload{
		ChatID:     key,
		SenderID:   s.actor.ID,
		SenderRole: string(s.actor.Role),
		Text:       t,
	})
	if err != nil {
		s.log.Error().Err(err).Str("chat", key).Msg("send failed")
	}
	return err
}

// Close hides the conversation view but keeps the room joined, so
// messages from the other side still arrive and count as unread. It
// does not touch the shared transport connection. Use Leave for full
// teardown.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.state == StateDetached {
		s.mu.Unlock()
		return
	}
	s.state = StateDetached
	s.msgs = nil
	s.mu.Unlock()
	s.changed()
}

// Leave is full teardown: it releases server-side delivery scoping and
// forgets the conversation. Called on unmount or logout, not when the
// widget is merely closed.
func (s *Stream) Leave() {
	s.mu.Lock()
	key := s.activeKey
	s.activeKey = ""
	s.state = StateDetached
	s.msgs = nil
	s.unread = 0
	s.mu.Unlock()

	if key != "" {
		s.emit(transport.EventLeaveChat, transport.LeaveChatPayload{ChatID: key})
	}
	s.changed()
}

// State returns the current lifecycle state.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ActiveKey returns the active conversation key, or "".
func (s *Stream) ActiveKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeKey
}

// Messages returns a copy of the visible message list.
func (s *Stream) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// Unread returns the unread count for the own (closed) conversation.
func (s *Stream) Unread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// UnreadBadge renders a count against the display ceiling ("10+").
func UnreadBadge(n int) string {
	if n >= unreadCap {
		return strconv.Itoa(unreadCap) + "+"
	}
	return strconv.Itoa(n)
}

// handleConnected re-registers presence and, if a conversation is known,
// re-runs the join sequence. A client that does not re-join after a
// reconnect silently stops receiving messages.
func (s *Stream) handleConnected() {
	s.emit(transport.EventJoin, transport.JoinPayload{
		UserID: s.actor.ID,
		Role:   string(s.actor.Role),
	})

	s.mu.Lock()
	key := s.activeKey
	detached := s.state == StateDetached
	s.mu.Unlock()

	if key == "" {
		return
	}
	if detached {
		// Widget closed but still mounted: re-join the room so unread
		// keeps counting.
		s.emit(transport.EventJoinChat, transport.JoinChatPayload{ChatID: key})
		return
	}
	s.Open(context.Background(), key)
}

// handleLive processes every inbound new_message: append when it belongs to
// the active conversation, otherwise pure unread bookkeeping. Inactive
// conversations keep no shadow message list; history stays the source of
// truth for them.
func (s *Stream) handleLive(data json.RawMessage) {
	m, err := DecodeMessage(data)
	if err != nil {
		s.log.Warn().Err(err).Msg("dropping malformed live message")
		return
	}

	s.mu.Lock()
	visible := s.state != StateDetached && m.ChatID == s.activeKey
	if visible {
		s.msgs = append(s.msgs, m)
	} else if s.dir != nil {
		s.dir.Bump(m.ChatID)
	} else if m.ChatID == s.activeKey && m.SenderRole != s.actor.Role {
		// Own conversation, widget closed: count messages from the
		// other side up to the display ceiling.
		if s.unread < unreadCap {
			s.unread++
		}
	}
	s.mu.Unlock()
	s.changed()
}

// loadHistory applies the fetched history wholesale. A response for a key
// that is no longer active is discarded: the guard compares against the
// active key at resolution time, not at call time.
func (s *Stream) loadHistory(ctx context.Context, key string) {
	msgs, err := s.hist.Messages(ctx, key)

	s.mu.Lock()
	if s.activeKey != key || s.state == StateDetached {
		s.mu.Unlock()
		s.log.Debug().Str("chat", key).Msg("discarding stale history response")
		return
	}
	if err != nil {
		// Empty, not stale: the conversation renders empty and a manual
		// refresh re-issues Open.
		s.msgs = nil
		s.state = StateSynced
		s.mu.Unlock()
		s.log.Error().Err(err).Str("chat", key).Msg("history fetch failed")
		s.changed()
		return
	}
	s.msgs = msgs
	s.state = StateSynced
	s.mu.Unlock()
	s.changed()
}

func (s *Stream) emit(event string, payload any) {
	if err := s.tr.Emit(event, payload); err != nil {
		s.log.Warn().Err(err).Str("event", event).Msg("emit failed")
	}
}

func (s *Stream) changed() {
	if s.notify != nil {
		s.notify()
	}
}
