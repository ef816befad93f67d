package organisation

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates an organisation could not be located.
	ErrNotFound = errors.New("organisation not found")
	// ErrDuplicateName signals organisation name uniqueness breaches.
	ErrDuplicateName = errors.New("organisation with name already exists")
)

// Organisation groups users; membership is many-to-many.
type Organisation struct {
	ID          string    `json:"orgId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"-"`
}
