// Package session tracks per-user conversation state with a 24-hour
// inactivity expiry.
package session

import (
	"context"

	"github.com/zakisalem/souq-bot/internal/models"
)

// Store persists conversation sessions. Get must treat an expired
// session as absent; implementations may also sweep expired entries
// periodically to bound memory.
type Store interface {
	Get(ctx context.Context, id string) (*models.Session, bool, error)
	Put(ctx context.Context, sess *models.Session) error
	Delete(ctx context.Context, id string) error
	Cleanup(ctx context.Context) (int, error)
	Count() int
}
