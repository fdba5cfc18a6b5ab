package identity

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// GuestStore persists a generated guest id for the lifetime of the profile.
type GuestStore interface {
	Load() (string, error)
	Save(id string) error
}

// FileGuestStore keeps the guest id in a small file so it survives
// restarts and the guest keeps their conversation.
type FileGuestStore struct {
	Path string
}

func (s FileGuestStore) Load() (string, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func (s FileGuestStore) Save(id string) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.Path, []byte(id+"\n"), 0o600)
}

// EnsureGuest returns the persisted guest actor, generating and saving a new
// id on first use. If the store cannot persist, a throwaway per-session id
// is returned; the resulting fresh conversation is an accepted limitation.
func EnsureGuest(store GuestStore) Actor {
	if store != nil {
		if id, err := store.Load(); err == nil && id != "" {
			return Actor{ID: id, Role: RoleGuest}
		}
	}

	id := "guest_" + uuid.NewString()
	if store != nil {
		_ = store.Save(id)
	}
	return Actor{ID: id, Role: RoleGuest}
}
