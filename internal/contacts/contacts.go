// Package contacts provides the contact directory consumed by the campaign
// engine. Contacts are an independently-owned aggregate: the engine only
// reads them and performs best-effort status updates.
package contacts

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a contact does not exist
var ErrNotFound = errors.New("contact not found")

// Relationship statuses for a contact
const (
	StatusNew           = "new"
	StatusContacted     = "contacted"
	StatusReplied       = "replied"
	StatusNotInterested = "not_interested"
	StatusWon           = "won"
	StatusLost          = "lost"
)

// Contact is a CRM contact record
type Contact struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	Phone      string            `json:"phone"`
	Status     string            `json:"status"`
	Properties map[string]string `json:"properties,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Terminal reports whether the relationship reached a final state. The
// engine never overwrites a terminal status with "contacted".
func (c *Contact) Terminal() bool {
	return c.Status == StatusWon || c.Status == StatusLost
}

// Directory is the contact collaborator contract consumed by the engine.
// SetStatus is best-effort: callers log and continue on failure.
type Directory interface {
	Get(ctx context.Context, id string) (*Contact, error)
	SetStatus(ctx context.Context, id, status string) error
}
