package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/Vovarama1992/shop-chat/internal/identity"
	"github.com/Vovarama1992/shop-chat/internal/logging"
)

// Directory is the admin-side map of customers to conversation metadata.
// It renders the customer list with unread badges, independent of which
// conversation is currently active.
type Directory struct {
	mu        sync.Mutex
	customers []Customer
	unread    map[string]int // customer id -> count, capped at unreadCap
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{unread: map[string]int{}}
}

// Load fetches the known customers and zero-initializes unread entries for
// new ones. Counts accumulated for already-known customers survive a
// refresh. On failure the list is cleared rather than left stale.
func (d *Directory) Load(ctx context.Context, lister CustomerLister) error {
	customers, err := lister.Customers(ctx)
	if err != nil {
		d.mu.Lock()
		d.customers = nil
		d.mu.Unlock()
		logging.Error().Err(err).Msg("customer list fetch failed")
		return err
	}

	d.mu.Lock()
	d.customers = customers
	for _, c := range customers {
		if _, ok := d.unread[c.ID]; !ok {
			d.unread[c.ID] = 0
		}
	}
	d.mu.Unlock()
	return nil
}

// Bump increments the unread counter for the conversation key, creating
// the entry if the customer was not known yet. The count saturates at the
// display ceiling; the exact number past it is not tracked.
func (d *Directory) Bump(chatKey string) {
	cid := identity.CustomerID(chatKey)
	d.mu.Lock()
	if d.unread[cid] < unreadCap {
		d.unread[cid]++
	}
	d.mu.Unlock()
}

// Select marks the customer's conversation read and returns its key, ready
// to hand to Stream.Open.
func (d *Directory) Select(customerID string) string {
	d.mu.Lock()
	d.unread[customerID] = 0
	d.mu.Unlock()
	return identity.KeyForCustomer(customerID)
}

// Unread returns the (capped) unread count for a customer.
func (d *Directory) Unread(customerID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.unread[customerID]
}

// Badge renders the customer's unread count for display.
func (d *Directory) Badge(customerID string) string {
	return UnreadBadge(d.Unread(customerID))
}

// Customers returns a copy of the known customer list.
func (d *Directory) Customers() []Customer {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Customer, len(d.customers))
	copy(out, d.customers)
	return out
}

// Search filters the directory by a case-insensitive substring over name
// and email. Pure display logic; unread state is untouched.
func (d *Directory) Search(q string) []Customer {
	t := strings.ToLower(strings.TrimSpace(q))
	all := d.Customers()
	if t == "" {
		return all
	}

	var out []Customer
	for _, c := range all {
		hay := strings.ToLower(c.Name + " " + c.Email)
		if strings.Contains(hay, t) {
			out = append(out, c)
		}
	}
	return out
}
