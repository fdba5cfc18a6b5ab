// Package identity resolves who is using the client and which conversation
// they belong to. A conversation is always keyed by the customer-side id, so
// every admin that answers lands in the same thread.
package identity

import (
	"errors"
	"strings"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
	RoleGuest    Role = "guest"
	RoleBot      Role = "bot"
)

// Actor is the current user of a client instance. Exactly one is active at
// a time.
type Actor struct {
	ID   string
	Role Role
}

// Provider supplies the current actor and its bearer credential. The chat
// core only reads it; token issuance is owned by the backend.
type Provider interface {
	Actor() (Actor, bool)
	Token() string
}

const keyPrefix = "chat_"

// ErrNoConversation is returned for actors that have no conversation of
// their own (admins resolve into a customer's conversation instead).
var ErrNoConversation = errors.New("identity: actor has no own conversation")

// ConversationKey derives the stable conversation key for a customer or
// guest id. Pure and idempotent: the same id always yields the same key.
func ConversationKey(customerID string) string {
	return keyPrefix + customerID
}

// KeyForActor resolves the conversation key the actor itself belongs to.
// Admins have none; use KeyForCustomer with the target customer instead.
func KeyForActor(a Actor) (string, error) {
	switch a.Role {
	case RoleCustomer, RoleGuest:
		return ConversationKey(a.ID), nil
	default:
		return "", ErrNoConversation
	}
}

// KeyForCustomer resolves the key an admin uses to open customer C's chat.
// It is the same key C resolves for themselves.
func KeyForCustomer(customerID string) string {
	return ConversationKey(customerID)
}

// CustomerID recovers the customer-side id from a conversation key. The
// admin directory uses it to map live events back to list entries.
func CustomerID(key string) string {
	return strings.TrimPrefix(key, keyPrefix)
}

// StaticProvider is the trivial Provider for a known actor and token.
type StaticProvider struct {
	Current     Actor
	BearerToken string
}

func (p StaticProvider) Actor() (Actor, bool) {
	if p.Current.ID == "" {
		return Actor{}, false
	}
	return p.Current, true
}

func (p StaticProvider) Token() string { return p.BearerToken }
