package store

import (
	"context"
	"errors"

	"github.com/danchettos12/EntrevistIA/internal/models"
)

// ErrStoreUnavailable wraps every read or write failure of a session store.
var ErrStoreUnavailable = errors.New("session store unavailable")

// SessionStore persists completed interview sessions.
type SessionStore interface {
	// CreateSession assigns ID and timestamp and returns the stored record.
	CreateSession(ctx context.Context, record models.SessionRecord) (*models.SessionRecord, error)
	// ListSessionsForUser returns the user's records, newest first.
	ListSessionsForUser(ctx context.Context, userID string) ([]models.SessionRecord, error)
	// Backend names the implementation for logs and metrics.
	Backend() string
	Ping(ctx context.Context) error
}
