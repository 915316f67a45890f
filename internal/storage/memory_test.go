package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zakisalem/souq-bot/internal/models"
)

func price(v float64) *float64 { return &v }

func TestMemoryStoreCreateGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, err := store.Create(ctx, &models.Ad{
		SessionID:    "telegram:1",
		OriginalText: "موبايل للبيع",
		EnhancedText: "موبايل سامسونج للبيع بحالة ممتازة",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if id != 1 {
		t.Errorf("first id = %d, want 1", id)
	}

	ad, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if ad.Status != models.AdPending {
		t.Errorf("new ad status = %q, want pending", ad.Status)
	}
	if ad.CreatedAt.IsZero() {
		t.Error("created_at should be stamped")
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), 42)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreApprove(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, _ := store.Create(ctx, &models.Ad{EnhancedText: "موبايل للبيع"})

	if err := store.SetStatus(ctx, id, models.AdApproved, "looks good"); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	ad, _ := store.Get(ctx, id)
	if ad.Status != models.AdApproved {
		t.Errorf("status = %q, want approved", ad.Status)
	}
	if ad.ApprovedAt == nil {
		t.Error("approved_at should be set")
	}
	if ad.Link != AdLink(id) {
		t.Errorf("link = %q, want %q", ad.Link, AdLink(id))
	}
	if ad.AdminNotes != "looks good" {
		t.Errorf("notes = %q", ad.AdminNotes)
	}
}

func TestMemoryStoreReject(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, _ := store.Create(ctx, &models.Ad{EnhancedText: "اعلان مخالف"})

	if err := store.SetStatus(ctx, id, models.AdRejected, "spam"); err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	ad, _ := store.Get(ctx, id)
	if ad.Status != models.AdRejected {
		t.Errorf("status = %q, want rejected", ad.Status)
	}
	if ad.RejectedAt == nil {
		t.Error("rejected_at should be set")
	}
	if ad.Link != "" {
		t.Errorf("rejected ad should have no link, got %q", ad.Link)
	}
}

func TestMemoryStoreModerationIsOneWay(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, _ := store.Create(ctx, &models.Ad{EnhancedText: "موبايل للبيع"})
	if err := store.SetStatus(ctx, id, models.AdApproved, ""); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	err := store.SetStatus(ctx, id, models.AdRejected, "")
	if !errors.Is(err, ErrAlreadyModerated) {
		t.Errorf("err = %v, want ErrAlreadyModerated", err)
	}

	err = store.SetStatus(ctx, 99, models.AdApproved, "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, _ := store.Create(ctx, &models.Ad{EnhancedText: "موبايل للبيع"})
	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound after delete", err)
	}

	if err := store.Delete(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound for unknown id", err)
	}
}

func TestMemoryStoreListApproved(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	approvedID, _ := store.Create(ctx, &models.Ad{EnhancedText: "موبايل للبيع"})
	store.Create(ctx, &models.Ad{EnhancedText: "لسه تحت المراجعة"})
	store.SetStatus(ctx, approvedID, models.AdApproved, "")

	ads, err := store.ListApproved(ctx, models.AdFilters{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(ads) != 1 {
		t.Fatalf("expected 1 approved ad, got %d", len(ads))
	}
	if ads[0].ID != approvedID {
		t.Errorf("listed ad %d, want %d", ads[0].ID, approvedID)
	}
}

func TestMemoryStoreListApprovedFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	ids := make([]int64, 0, 4)
	for _, ad := range []*models.Ad{
		{EnhancedText: "موبايل", Category: "موبايل", Price: price(2000)},
		{EnhancedText: "موبايل غالي", Category: "موبايل", Price: price(9000)},
		{EnhancedText: "موبايل بدون سعر", Category: "موبايل"},
		{EnhancedText: "عربية", Category: "سيارات", Price: price(3000)},
	} {
		id, _ := store.Create(ctx, ad)
		store.SetStatus(ctx, id, models.AdApproved, "")
		ids = append(ids, id)
	}

	ads, err := store.ListApproved(ctx, models.AdFilters{Category: "موبايل", PriceMax: 5000})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(ads) != 2 {
		t.Fatalf("expected 2 ads (in budget + unpriced), got %d", len(ads))
	}
	for _, ad := range ads {
		if ad.ID == ids[1] || ad.ID == ids[3] {
			t.Errorf("ad %d should have been filtered out", ad.ID)
		}
	}
}

func TestMemoryStoreListPendingOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, _ := store.Create(ctx, &models.Ad{
		EnhancedText: "الاول",
		CreatedAt:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	second, _ := store.Create(ctx, &models.Ad{
		EnhancedText: "التاني",
		CreatedAt:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	})

	ads, err := store.ListPending(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(ads) != 2 {
		t.Fatalf("expected 2 pending ads, got %d", len(ads))
	}
	if ads[0].ID != first || ads[1].ID != second {
		t.Errorf("pending ads should come back oldest first, got %d then %d", ads[0].ID, ads[1].ID)
	}
}
