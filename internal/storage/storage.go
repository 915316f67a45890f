package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/zakisalem/souq-bot/internal/models"
)

// AdLink is the public path an ad becomes reachable at once approved.
func AdLink(id int64) string {
	return fmt.Sprintf("/ad/%d", id)
}

var (
	ErrNotFound = errors.New("ad not found")
	// ErrAlreadyModerated guards the one-way pending -> approved/rejected
	// transition: an ad is reviewed exactly once.
	ErrAlreadyModerated = errors.New("ad already moderated")
)

// AdStore persists advertisements. Only approved ads are visible to the
// search engine, through ListApproved.
type AdStore interface {
	Create(ctx context.Context, ad *models.Ad) (int64, error)
	Get(ctx context.Context, id int64) (*models.Ad, error)
	ListApproved(ctx context.Context, filters models.AdFilters) ([]models.Ad, error)
	ListPending(ctx context.Context) ([]models.Ad, error)
	SetStatus(ctx context.Context, id int64, status models.AdStatus, notes string) error
	Delete(ctx context.Context, id int64) error
	Close() error
}
