// Package chatserver is the reference backend for the chat core: the
// socket hub, the history and customers API, and the scripted-bot
// endpoints. It is the peer the client packages are tested against and
// what cmd/ runs locally.
package chatserver

import (
	"context"
	"sync"

	"github.com/Vovarama1992/shop-chat/internal/chat"
)

// Store is the message and customer persistence port.
type Store interface {
	Append(ctx context.Context, m chat.Message) error
	History(ctx context.Context, chatID string) ([]chat.Message, error)
	UpsertCustomer(ctx context.Context, c chat.Customer) error
	Customers(ctx context.Context) ([]chat.Customer, error)
}

// MemStore keeps everything in memory, in append order. Used by tests and
// by local runs without DATABASE_URL.
type MemStore struct {
	mu        sync.Mutex
	msgs      map[string][]chat.Message
	customers map[string]chat.Customer
	order     []string
}

func NewMemStore() *MemStore {
	return &MemStore{
		msgs:      map[string][]chat.Message{},
		customers: map[string]chat.Customer{},
	}
}

func (s *MemStore) Append(_ context.Context, m chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs[m.ChatID] = append(s.msgs[m.ChatID], m)
	return nil
}

func (s *MemStore) History(_ context.Context, chatID string) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.Message, len(s.msgs[chatID]))
	copy(out, s.msgs[chatID])
	return out, nil
}

func (s *MemStore) UpsertCustomer(_ context.Context, c chat.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[c.ID]; !ok {
		s.order = append(s.order, c.ID)
	} else if c.Name == "" && c.Email == "" {
		// Do not blank out details we already know.
		return nil
	}
	s.customers[c.ID] = c
	return nil
}

func (s *MemStore) Customers(_ context.Context) ([]chat.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.Customer, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.customers[id])
	}
	return out, nil
}
