package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zakisalem/souq-bot/internal/models"
)

// MemoryStore keeps ads in process memory. Used by tests and demo
// deployments; production uses PostgresStore.
type MemoryStore struct {
	mu     sync.RWMutex
	ads    map[int64]*models.Ad
	nextID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ads: make(map[int64]*models.Ad), nextID: 1}
}

func (s *MemoryStore) Create(ctx context.Context, ad *models.Ad) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ad.ID = s.nextID
	s.nextID++
	if ad.CreatedAt.IsZero() {
		ad.CreatedAt = time.Now()
	}
	if ad.Status == "" {
		ad.Status = models.AdPending
	}
	stored := *ad
	s.ads[ad.ID] = &stored
	return ad.ID, nil
}

func (s *MemoryStore) Get(ctx context.Context, id int64) (*models.Ad, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ad, exists := s.ads[id]
	if !exists {
		return nil, ErrNotFound
	}
	copied := *ad
	return &copied, nil
}

func (s *MemoryStore) ListApproved(ctx context.Context, f models.AdFilters) ([]models.Ad, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ads []models.Ad
	for _, ad := range s.ads {
		if ad.Status != models.AdApproved {
			continue
		}
		if !matchesFilters(ad, f) {
			continue
		}
		ads = append(ads, *ad)
	}
	sort.Slice(ads, func(i, j int) bool {
		return ads[i].CreatedAt.After(ads[j].CreatedAt)
	})
	return ads, nil
}

func (s *MemoryStore) ListPending(ctx context.Context) ([]models.Ad, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ads []models.Ad
	for _, ad := range s.ads {
		if ad.Status == models.AdPending {
			ads = append(ads, *ad)
		}
	}
	sort.Slice(ads, func(i, j int) bool {
		return ads[i].CreatedAt.Before(ads[j].CreatedAt)
	})
	return ads, nil
}

func (s *MemoryStore) SetStatus(ctx context.Context, id int64, status models.AdStatus, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ad, exists := s.ads[id]
	if !exists {
		return ErrNotFound
	}
	if ad.Status != models.AdPending {
		return ErrAlreadyModerated
	}

	now := time.Now()
	ad.Status = status
	ad.AdminNotes = notes
	switch status {
	case models.AdApproved:
		ad.ApprovedAt = &now
		ad.Link = AdLink(id)
	case models.AdRejected:
		ad.RejectedAt = &now
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ads[id]; !exists {
		return ErrNotFound
	}
	delete(s.ads, id)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func matchesFilters(ad *models.Ad, f models.AdFilters) bool {
	if f.Category != "" && !strings.Contains(ad.Category, f.Category) {
		return false
	}
	if f.Location != "" && !strings.Contains(ad.Location, f.Location) {
		return false
	}
	// A price filter never excludes ads with no price.
	if ad.Price != nil {
		if f.PriceMin > 0 && *ad.Price < f.PriceMin {
			return false
		}
		if f.PriceMax > 0 && *ad.Price > f.PriceMax {
			return false
		}
	}
	return true
}
