package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zakisalem/souq-bot/internal/ai"
	"github.com/zakisalem/souq-bot/internal/arabic"
	"github.com/zakisalem/souq-bot/internal/models"
	"github.com/zakisalem/souq-bot/internal/search"
	"github.com/zakisalem/souq-bot/internal/session"
	"github.com/zakisalem/souq-bot/internal/storage"
)

// mockEnhancer implements ai.Enhancer for testing
type mockEnhancer struct {
	text string
	err  error
}

func (m *mockEnhancer) Enhance(ctx context.Context, text string) (ai.Enhancement, error) {
	if m.err != nil {
		return ai.Enhancement{}, m.err
	}
	enhanced := m.text
	if enhanced == "" {
		enhanced = "✨ " + text
	}
	return ai.Enhancement{EnhancedText: enhanced, ImprovementScore: 2.0}, nil
}

// mockAnalyzer implements ai.ImageAnalyzer for testing
type mockAnalyzer struct {
	description string
	err         error
}

func (m *mockAnalyzer) Describe(ctx context.Context, image []byte, mimeType string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.description, nil
}

type fixture struct {
	machine  *Machine
	ads      *storage.MemoryStore
	sessions *session.MemoryStore
}

func newFixture(cfg Config, enhancer ai.Enhancer, analyzer ai.ImageAnalyzer) *fixture {
	ads := storage.NewMemoryStore()
	sessions := session.NewMemoryStore(time.Hour)
	processor := arabic.NewProcessor(arabic.Tables{})
	engine := search.NewEngine(ads, processor, zap.NewNop())
	machine := NewMachine(sessions, ads, engine, processor, enhancer, analyzer, cfg, zap.NewNop())
	return &fixture{machine: machine, ads: ads, sessions: sessions}
}

func (f *fixture) send(t *testing.T, text string) *models.Response {
	t.Helper()
	resp, err := f.machine.Process(context.Background(), models.Event{
		Platform: "test",
		SenderID: "u1",
		Text:     text,
	})
	if err != nil {
		t.Fatalf("process %q failed: %v", text, err)
	}
	if resp == nil {
		t.Fatalf("process %q returned nil response", text)
	}
	return resp
}

func (f *fixture) seedApprovedAd(t *testing.T, ad models.Ad) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := f.ads.Create(ctx, &ad)
	if err != nil {
		t.Fatalf("seeding ad failed: %v", err)
	}
	if err := f.ads.SetStatus(ctx, id, models.AdApproved, ""); err != nil {
		t.Fatalf("approving seeded ad failed: %v", err)
	}
	return id
}

const sampleAdText = "موبايل سامسونج جالاكسي للبيع\nالسعر 3000 جنيه\nللتواصل 01012345678 في القاهرة"

func TestAdvertiserFlow(t *testing.T) {
	f := newFixture(Config{}, &mockEnhancer{}, nil)

	resp := f.send(t, "مرحبا")
	if resp.Text != msgWelcome {
		t.Errorf("greeting reply = %q, want welcome", resp.Text)
	}
	if len(resp.QuickReplies) != 2 {
		t.Errorf("expected role quick replies, got %d", len(resp.QuickReplies))
	}

	resp = f.send(t, "1")
	if resp.Text != msgAdvertiserRequestAd {
		t.Errorf("role reply = %q, want ad request", resp.Text)
	}

	resp = f.send(t, sampleAdText)
	if !strings.Contains(resp.Text, msgAdEnhanced) {
		t.Errorf("expected confirmation prompt, got %q", resp.Text)
	}
	if !strings.Contains(resp.Text, "✨") {
		t.Errorf("expected the enhanced text in the reply, got %q", resp.Text)
	}

	resp = f.send(t, "نعم")
	if !strings.Contains(resp.Text, msgAdSubmitted) {
		t.Errorf("expected submission reply, got %q", resp.Text)
	}

	ads, err := f.ads.ListPending(context.Background())
	if err != nil {
		t.Fatalf("listing pending ads failed: %v", err)
	}
	if len(ads) != 1 {
		t.Fatalf("expected 1 pending ad, got %d", len(ads))
	}
	ad := ads[0]
	if ad.Category != "موبايل" {
		t.Errorf("category = %q, want موبايل", ad.Category)
	}
	if ad.Price == nil || *ad.Price != 3000 {
		t.Errorf("price = %v, want 3000", ad.Price)
	}
	if ad.ContactInfo != "01012345678" {
		t.Errorf("contact = %q", ad.ContactInfo)
	}
	if ad.Location != "القاهرة" {
		t.Errorf("location = %q", ad.Location)
	}
	if ad.OriginalText != sampleAdText {
		t.Errorf("original text not preserved: %q", ad.OriginalText)
	}
}

func TestAdvertiserShortAdReprompt(t *testing.T) {
	f := newFixture(Config{}, &mockEnhancer{}, nil)
	f.send(t, "مرحبا")
	f.send(t, "1")

	resp := f.send(t, "موبايل للبيع")
	if resp.Text != msgAdTooShort {
		t.Errorf("short ad reply = %q, want re-prompt", resp.Text)
	}

	// The state did not advance: a proper ad is still accepted.
	resp = f.send(t, sampleAdText)
	if !strings.Contains(resp.Text, msgAdEnhanced) {
		t.Errorf("expected confirmation prompt after retry, got %q", resp.Text)
	}
}

func TestAdvertiserEnhancementFallback(t *testing.T) {
	f := newFixture(Config{}, &mockEnhancer{err: errors.New("api down")}, nil)
	f.send(t, "مرحبا")
	f.send(t, "1")

	resp := f.send(t, sampleAdText)
	if !strings.Contains(resp.Text, msgConfirmFallback) {
		t.Errorf("expected fallback confirmation prompt, got %q", resp.Text)
	}
	if !strings.Contains(resp.Text, "موبايل سامسونج جالاكسي للبيع") {
		t.Errorf("expected the original text in the reply, got %q", resp.Text)
	}

	f.send(t, "نعم")
	ads, _ := f.ads.ListPending(context.Background())
	if len(ads) != 1 || ads[0].EnhancedText != sampleAdText {
		t.Error("the original text should be stored when enhancement fails")
	}
}

func TestAdvertiserEditLoop(t *testing.T) {
	f := newFixture(Config{}, &mockEnhancer{}, nil)
	f.send(t, "مرحبا")
	f.send(t, "1")
	f.send(t, sampleAdText)

	resp := f.send(t, "تعديل")
	if resp.Text != msgRewritePrompt {
		t.Errorf("edit reply = %q, want rewrite prompt", resp.Text)
	}

	resp = f.send(t, sampleAdText)
	if !strings.Contains(resp.Text, msgAdEnhanced) {
		t.Errorf("expected confirmation prompt after rewrite, got %q", resp.Text)
	}
}

func TestAdvertiserConfirmInvalidInput(t *testing.T) {
	f := newFixture(Config{}, &mockEnhancer{}, nil)
	f.send(t, "مرحبا")
	f.send(t, "1")
	f.send(t, sampleAdText)

	resp := f.send(t, "ممكن اعرف ايه ده")
	if resp.Text != msgConfirmInvalid {
		t.Errorf("invalid confirm reply = %q, want re-prompt", resp.Text)
	}
	if len(resp.QuickReplies) != 2 {
		t.Errorf("expected confirm quick replies, got %d", len(resp.QuickReplies))
	}
}

func TestAutoApprovePublishesImmediately(t *testing.T) {
	f := newFixture(Config{AutoApprove: true}, &mockEnhancer{}, nil)
	f.send(t, "مرحبا")
	f.send(t, "1")
	f.send(t, sampleAdText)

	resp := f.send(t, "نعم")
	if !strings.Contains(resp.Text, msgAdPublished) {
		t.Errorf("expected publish reply, got %q", resp.Text)
	}
	if !strings.Contains(resp.Text, storage.AdLink(1)) {
		t.Errorf("expected the ad link in the reply, got %q", resp.Text)
	}

	ad, err := f.ads.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if ad.Status != models.AdApproved {
		t.Errorf("status = %q, want approved", ad.Status)
	}
}

func TestRequireImageFlow(t *testing.T) {
	f := newFixture(Config{RequireImage: true}, &mockEnhancer{}, nil)
	f.send(t, "مرحبا")
	f.send(t, "1")

	resp := f.send(t, sampleAdText)
	if !strings.Contains(resp.Text, msgRequestImage) {
		t.Errorf("expected image request, got %q", resp.Text)
	}

	resp = f.send(t, "تخطي")
	if !strings.Contains(resp.Text, msgAdEnhanced) {
		t.Errorf("expected confirmation prompt after skip, got %q", resp.Text)
	}

	resp = f.send(t, "نعم")
	if !strings.Contains(resp.Text, msgAdSubmitted) {
		t.Errorf("expected submission reply, got %q", resp.Text)
	}
}

func TestRequireImageAcceptsImageURL(t *testing.T) {
	f := newFixture(Config{RequireImage: true}, &mockEnhancer{}, nil)
	f.send(t, "مرحبا")
	f.send(t, "1")
	f.send(t, sampleAdText)

	resp, err := f.machine.Process(context.Background(), models.Event{
		Platform: "test",
		SenderID: "u1",
		ImageURL: "https://cdn.example.com/photo.jpg",
	})
	if err != nil {
		t.Fatalf("process image failed: %v", err)
	}
	if !strings.Contains(resp.Text, msgAdEnhanced) {
		t.Errorf("expected confirmation prompt after image, got %q", resp.Text)
	}

	f.send(t, "نعم")
	ads, _ := f.ads.ListPending(context.Background())
	if len(ads) != 1 || ads[0].ImageURL != "https://cdn.example.com/photo.jpg" {
		t.Error("image URL should be stored on the ad")
	}
}

func TestTerminalStateStartsOver(t *testing.T) {
	f := newFixture(Config{}, &mockEnhancer{}, nil)
	f.send(t, "مرحبا")
	f.send(t, "1")
	f.send(t, sampleAdText)
	f.send(t, "نعم")

	// A repeated confirmation lands in the terminal state and must
	// start a fresh conversation instead of creating a second ad.
	resp := f.send(t, "نعم")
	if resp.Text != msgWelcome {
		t.Errorf("post-submission reply = %q, want a fresh welcome", resp.Text)
	}

	ads, _ := f.ads.ListPending(context.Background())
	if len(ads) != 1 {
		t.Errorf("expected exactly 1 ad, got %d", len(ads))
	}
}

func TestUnknownStateResets(t *testing.T) {
	f := newFixture(Config{}, &mockEnhancer{}, nil)

	sess := models.NewSession("test", "u1")
	sess.State = models.ConversationState("bogus")
	if err := f.sessions.Put(context.Background(), sess); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	resp := f.send(t, "مرحبا")
	if resp.Text != msgWelcome {
		t.Errorf("reply = %q, want welcome after reset", resp.Text)
	}
}

func TestInvalidRoleReprompt(t *testing.T) {
	f := newFixture(Config{}, &mockEnhancer{}, nil)
	f.send(t, "مرحبا")

	resp := f.send(t, "مش فاهم")
	if resp.Text != msgRolePromptInvalid {
		t.Errorf("reply = %q, want role re-prompt", resp.Text)
	}
}

func TestBuyerFlow(t *testing.T) {
	f := newFixture(Config{}, nil, nil)
	f.seedApprovedAd(t, models.Ad{
		EnhancedText: "موبايل سامسونج جالاكسي بحالة ممتازة",
		Category:     "موبايل",
		ContactInfo:  "01098765432",
	})

	f.send(t, "مرحبا")
	resp := f.send(t, "2")
	if resp.Text != msgBuyerRequestSearch {
		t.Errorf("role reply = %q, want search prompt", resp.Text)
	}

	resp = f.send(t, "عايز موبايل سامسونج")
	if !strings.Contains(resp.Text, "موبايل سامسونج جالاكسي") {
		t.Errorf("expected the seeded ad in the results, got %q", resp.Text)
	}
	if !strings.Contains(resp.Text, msgResultsPrompt) {
		t.Errorf("expected follow-up prompt after results, got %q", resp.Text)
	}

	// Selecting result 1 shows the full ad with contact details.
	resp = f.send(t, "1")
	if !strings.Contains(resp.Text, "01098765432") {
		t.Errorf("expected contact in the detail view, got %q", resp.Text)
	}
}

func TestBuyerQueryTooShort(t *testing.T) {
	f := newFixture(Config{}, nil, nil)
	f.send(t, "مرحبا")
	f.send(t, "2")

	resp := f.send(t, "موبايل")
	if resp.Text != msgQueryTooShort {
		t.Errorf("reply = %q, want query re-prompt", resp.Text)
	}
}

func TestBuyerNoResults(t *testing.T) {
	f := newFixture(Config{}, nil, nil)
	f.send(t, "مرحبا")
	f.send(t, "2")

	resp := f.send(t, "عايز موبايل سامسونج")
	if resp.Text != msgNoResults {
		t.Errorf("reply = %q, want no-results message", resp.Text)
	}

	// Still in the results state: a bare new-search request re-prompts.
	resp = f.send(t, "بحث جديد")
	if resp.Text != msgBuyerRequestSearch {
		t.Errorf("reply = %q, want search prompt", resp.Text)
	}
}

func TestBuyerPriceCeiling(t *testing.T) {
	f := newFixture(Config{}, nil, nil)
	cheap := 2000.0
	expensive := 9000.0
	cheapID := f.seedApprovedAd(t, models.Ad{
		EnhancedText: "موبايل سامسونج للبيع",
		Category:     "موبايل",
		Price:        &cheap,
	})
	expensiveID := f.seedApprovedAd(t, models.Ad{
		EnhancedText: "موبايل سامسونج للبيع",
		Category:     "موبايل",
		Price:        &expensive,
	})

	f.send(t, "مرحبا")
	f.send(t, "2")
	resp := f.send(t, "عايز موبايل اقل من 5000")
	if !strings.Contains(resp.Text, storage.AdLink(cheapID)) {
		t.Errorf("expected the in-budget ad, got %q", resp.Text)
	}
	if strings.Contains(resp.Text, storage.AdLink(expensiveID)) {
		t.Errorf("the over-budget ad leaked into the results: %q", resp.Text)
	}
}

func TestBuyerLocationFilter(t *testing.T) {
	f := newFixture(Config{}, nil, nil)
	gizaID := f.seedApprovedAd(t, models.Ad{
		EnhancedText: "موبايل سامسونج للبيع",
		Category:     "موبايل",
		Location:     "الجيزة",
	})
	cairoID := f.seedApprovedAd(t, models.Ad{
		EnhancedText: "موبايل سامسونج للبيع",
		Category:     "موبايل",
		Location:     "القاهرة",
	})

	f.send(t, "مرحبا")
	f.send(t, "2")

	// Naming a place narrows the results to that place.
	resp := f.send(t, "عايز موبايل في الجيزة")
	if !strings.Contains(resp.Text, storage.AdLink(gizaID)) {
		t.Errorf("expected the الجيزة ad, got %q", resp.Text)
	}
	if strings.Contains(resp.Text, storage.AdLink(cairoID)) {
		t.Errorf("an ad from another city leaked into the results: %q", resp.Text)
	}
}

func TestBuyerNewQueryFromResults(t *testing.T) {
	f := newFixture(Config{}, nil, nil)
	f.seedApprovedAd(t, models.Ad{EnhancedText: "موبايل سامسونج جديد", Category: "موبايل"})

	f.send(t, "مرحبا")
	f.send(t, "2")
	f.send(t, "عايز عربية تويوتا")

	// Typing a fresh query in the results state runs it directly.
	resp := f.send(t, "عايز موبايل جديد")
	if resp.Text == msgResultsPrompt {
		t.Fatalf("new query was not re-dispatched: %q", resp.Text)
	}
	if !strings.Contains(resp.Text, "موبايل سامسونج جديد") {
		t.Errorf("expected results for the new query, got %q", resp.Text)
	}
}

func TestBuyerStaleSelection(t *testing.T) {
	f := newFixture(Config{}, nil, nil)
	f.seedApprovedAd(t, models.Ad{EnhancedText: "موبايل سامسونج للبيع", Category: "موبايل"})

	f.send(t, "مرحبا")
	f.send(t, "2")
	f.send(t, "عايز موبايل سامسونج")

	resp := f.send(t, "7")
	if resp.Text != msgAdNotFound {
		t.Errorf("reply = %q, want not-found message", resp.Text)
	}
}

func TestBuyerImageSearch(t *testing.T) {
	f := newFixture(Config{}, nil, &mockAnalyzer{description: "هاتف سامسونج ازرق"})
	f.seedApprovedAd(t, models.Ad{
		EnhancedText: "موبايل سامسونج ازرق جالاكسي",
		Category:     "موبايل",
	})

	f.send(t, "مرحبا")
	f.send(t, "2")

	resp, err := f.machine.Process(context.Background(), models.Event{
		Platform:  "test",
		SenderID:  "u1",
		Image:     []byte{0xFF, 0xD8},
		ImageMIME: "image/jpeg",
	})
	if err != nil {
		t.Fatalf("image search failed: %v", err)
	}
	if !strings.Contains(resp.Text, "موبايل سامسونج ازرق") {
		t.Errorf("expected image match in the results, got %q", resp.Text)
	}
}

func TestBuyerImageWithoutAnalyzer(t *testing.T) {
	f := newFixture(Config{}, nil, nil)
	f.send(t, "مرحبا")
	f.send(t, "2")

	resp, err := f.machine.Process(context.Background(), models.Event{
		Platform: "test",
		SenderID: "u1",
		Image:    []byte{0xFF, 0xD8},
	})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if resp.Text != msgImageFailed {
		t.Errorf("reply = %q, want image-failed message", resp.Text)
	}
}

// flakySessionStore implements session.Store for testing, failing Put
// on demand.
type flakySessionStore struct {
	*session.MemoryStore
	failPuts int
}

func (s *flakySessionStore) Put(ctx context.Context, sess *models.Session) error {
	if s.failPuts > 0 {
		s.failPuts--
		return errors.New("session backend unavailable")
	}
	return s.MemoryStore.Put(ctx, sess)
}

func TestFailedSessionPersistRollsBackAd(t *testing.T) {
	ads := storage.NewMemoryStore()
	sessions := &flakySessionStore{MemoryStore: session.NewMemoryStore(time.Hour)}
	processor := arabic.NewProcessor(arabic.Tables{})
	engine := search.NewEngine(ads, processor, zap.NewNop())
	machine := NewMachine(sessions, ads, engine, processor, &mockEnhancer{}, nil, Config{}, zap.NewNop())

	send := func(text string) (*models.Response, error) {
		return machine.Process(context.Background(), models.Event{
			Platform: "test",
			SenderID: "u1",
			Text:     text,
		})
	}
	for _, text := range []string{"مرحبا", "1", sampleAdText} {
		if _, err := send(text); err != nil {
			t.Fatalf("process %q failed: %v", text, err)
		}
	}

	sessions.failPuts = 1
	resp, err := send("نعم")
	if err == nil {
		t.Fatal("expected an error when the session cannot be persisted")
	}
	if resp == nil || resp.Text != msgGenericError {
		t.Fatalf("expected the generic error reply, got %+v", resp)
	}
	pending, _ := ads.ListPending(context.Background())
	if len(pending) != 0 {
		t.Fatalf("the ad should be rolled back with the session, got %d pending", len(pending))
	}

	// The stored session is still confirming; a retried approval must
	// file the ad exactly once.
	if _, err := send("نعم"); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	pending, _ = ads.ListPending(context.Background())
	if len(pending) != 1 {
		t.Fatalf("expected exactly 1 ad after the retry, got %d", len(pending))
	}
}

func TestSearchHistoryCapped(t *testing.T) {
	f := newFixture(Config{}, nil, nil)
	f.send(t, "مرحبا")
	f.send(t, "2")

	for i := 0; i < historyLimit+5; i++ {
		f.send(t, "عايز موبايل سامسونج")
		f.send(t, "بحث جديد")
	}

	sess, found, err := f.sessions.Get(context.Background(), models.SessionID("test", "u1"))
	if err != nil || !found {
		t.Fatalf("session missing: %v", err)
	}
	if sess.Buyer == nil {
		t.Fatal("buyer context missing")
	}
	if len(sess.Buyer.History) != historyLimit {
		t.Errorf("history length = %d, want %d", len(sess.Buyer.History), historyLimit)
	}
}
