// Package roster holds the member directory consumed by the scheduler and
// the notification pipeline.
package roster

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a member does not resolve.
var ErrNotFound = errors.New("member not found")

// MaxNameLength is the maximum number of runes allowed in a member name.
const MaxNameLength = 20

// Member is one entry in the roster. LineUserID is empty until the member
// links their LINE account through the webhook flow.
type Member struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	LineUserID string    `json:"-"`
	Active     bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

// Linked reports whether the member can receive push notifications.
func (m Member) Linked() bool {
	return m.LineUserID != ""
}

// Store persists roster members.
type Store interface {
	// Create inserts a member and returns it with its id set.
	Create(ctx context.Context, m Member) (Member, error)
	// Get returns a member by id. Returns ErrNotFound if not found.
	Get(ctx context.Context, id int64) (Member, error)
	// GetByName returns an active member by exact name match.
	GetByName(ctx context.Context, name string) (Member, error)
	// GetByLineUserID returns the active member linked to the given LINE account.
	GetByLineUserID(ctx context.Context, lineUserID string) (Member, error)
	// ListActive returns all active members ordered by name.
	ListActive(ctx context.Context) ([]Member, error)
	// SetLineUserID links (or with an empty id, unlinks) a member's LINE account.
	SetLineUserID(ctx context.Context, id int64, lineUserID string) error
}
