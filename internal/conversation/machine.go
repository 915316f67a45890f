// Package conversation implements the per-session dialogue state machine:
// it maps an inbound message to exactly one transition (or a re-prompt)
// and confines side effects to session mutation, ad creation and search.
package conversation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zakisalem/souq-bot/internal/ai"
	"github.com/zakisalem/souq-bot/internal/arabic"
	"github.com/zakisalem/souq-bot/internal/models"
	"github.com/zakisalem/souq-bot/internal/search"
	"github.com/zakisalem/souq-bot/internal/session"
	"github.com/zakisalem/souq-bot/internal/storage"
)

// Selection token sets, matched as substrings of the normalized message,
// mirroring the quick-reply payloads and the words users actually type.
var (
	advertiserTokens = []string{"1", "معلن", "advertiser"}
	buyerTokens      = []string{"2", "مشتري", "buyer"}
	approveTokens    = []string{"نعم", "موافق", "approve", "yes", "ok"}
	editTokens       = []string{"تعديل", "edit", "لا", "no"}
	newSearchTokens  = []string{"بحث جديد", "بحث اخر", "search", "جديد"}
	skipTokens       = []string{"تخطي", "skip"}
)

const (
	// Ad text is accepted when either threshold is met.
	minAdLines = 3
	minAdChars = 50

	// Buyer queries need at least this many tokens.
	minQueryTokens = 2

	historyLimit = 10

	maxRedispatch = 3
)

// Config carries the policy knobs of the machine.
type Config struct {
	// AutoApprove publishes confirmed ads immediately instead of
	// queuing them for moderation. Meant for single-tenant demos.
	AutoApprove bool
	// RequireImage inserts the image-upload step between ad text and
	// confirmation.
	RequireImage bool
	// MaxResults caps the buyer result listing.
	MaxResults int
}

type handlerFunc func(ctx context.Context, sess *models.Session, ev models.Event, depth int) (*models.Response, error)

// Machine owns all sessions and serializes message processing per
// session key, so concurrent messages for one user never race.
type Machine struct {
	sessions  session.Store
	ads       storage.AdStore
	engine    *search.Engine
	processor *arabic.Processor
	enhancer  ai.Enhancer      // nil disables enhancement (fallback to original)
	analyzer  ai.ImageAnalyzer // nil disables the image-search path
	logger    *zap.Logger
	cfg       Config

	handlers map[models.ConversationState]handlerFunc

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewMachine(
	sessions session.Store,
	ads storage.AdStore,
	engine *search.Engine,
	processor *arabic.Processor,
	enhancer ai.Enhancer,
	analyzer ai.ImageAnalyzer,
	cfg Config,
	logger *zap.Logger,
) *Machine {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = search.DefaultLimit
	}
	m := &Machine{
		sessions:  sessions,
		ads:       ads,
		engine:    engine,
		processor: processor,
		enhancer:  enhancer,
		analyzer:  analyzer,
		logger:    logger,
		cfg:       cfg,
		locks:     make(map[string]*sync.Mutex),
	}
	m.handlers = map[models.ConversationState]handlerFunc{
		models.StateInitial:              m.handleInitial,
		models.StateWaitingUserType:      m.handleUserType,
		models.StateAdvertiserWaitingAd:  m.handleAdvertiserAd,
		models.StateAdvertiserWaitingImg: m.handleAdvertiserImage,
		models.StateAdvertiserConfirming: m.handleAdvertiserConfirm,
		models.StateBuyerWaitingQuery:    m.handleBuyerQuery,
		models.StateBuyerShowingResults:  m.handleBuyerResults,
	}
	return m
}

// Process is the single entry point for inbound messages. It always
// returns a well-formed response; a non-nil error is the internal flag
// for the adapter to log, never a reason to drop the reply.
func (m *Machine) Process(ctx context.Context, ev models.Event) (resp *models.Response, err error) {
	requestID := uuid.New().String()
	logger := m.logger.With(
		zap.String("request_id", requestID),
		zap.String("platform", ev.Platform),
		zap.String("sender_id", ev.SenderID),
	)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered from panic in message processing", zap.Any("panic", r))
			resp = &models.Response{Text: msgGenericError}
			err = fmt.Errorf("panic in message processing: %v", r)
		}
	}()

	id := models.SessionID(ev.Platform, ev.SenderID)
	lock := m.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	stored, exists, err := m.sessions.Get(ctx, id)
	if err != nil {
		logger.Error("Failed to load session", zap.Error(err))
		return &models.Response{Text: msgGenericError}, fmt.Errorf("loading session %s: %w", id, err)
	}

	var sess *models.Session
	var priorAdID int64
	if exists {
		// Work on a copy: the stored session stays untouched unless the
		// handler's side effects all succeeded.
		sess = stored.Clone()
		if stored.Advertiser != nil {
			priorAdID = stored.Advertiser.AdID
		}
	} else {
		sess = models.NewSession(ev.Platform, ev.SenderID)
	}

	resp, err = m.dispatch(ctx, sess, ev, 0)
	if err != nil {
		logger.Error("Message handling failed", zap.Error(err), zap.String("state", string(sess.State)))
		return &models.Response{Text: msgGenericError}, err
	}

	if putErr := m.sessions.Put(ctx, sess); putErr != nil {
		logger.Error("Failed to persist session", zap.Error(putErr))
		// The stored session never saw the submission: without this the
		// user is still confirming and a retried approval would file the
		// same ad twice.
		m.rollbackAd(ctx, sess, priorAdID, logger)
		return &models.Response{Text: msgGenericError}, fmt.Errorf("persisting session %s: %w", id, putErr)
	}

	logger.Info("Processed message", zap.String("state", string(sess.State)))
	return resp, nil
}

// dispatch routes by state. Unknown or terminal states reset the session
// and re-dispatch, so the machine can never get stuck in an undefined
// state.
func (m *Machine) dispatch(ctx context.Context, sess *models.Session, ev models.Event, depth int) (*models.Response, error) {
	if depth > maxRedispatch {
		return nil, fmt.Errorf("re-dispatch limit exceeded in state %s", sess.State)
	}
	handler, known := m.handlers[sess.State]
	if !known {
		sess.Reset()
		return m.dispatch(ctx, sess, ev, depth+1)
	}
	return handler(ctx, sess, ev, depth)
}

// rollbackAd removes an ad created during a dispatch whose session
// update could not be committed.
func (m *Machine) rollbackAd(ctx context.Context, sess *models.Session, priorAdID int64, logger *zap.Logger) {
	if sess.Advertiser == nil || sess.Advertiser.AdID == 0 || sess.Advertiser.AdID == priorAdID {
		return
	}
	if err := m.ads.Delete(ctx, sess.Advertiser.AdID); err != nil {
		logger.Error("Failed to roll back ad after session persist failure",
			zap.Error(err),
			zap.Int64("ad_id", sess.Advertiser.AdID))
		return
	}
	logger.Warn("Rolled back ad after session persist failure",
		zap.Int64("ad_id", sess.Advertiser.AdID))
}

func (m *Machine) sessionLock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, exists := m.locks[id]
	if !exists {
		lock = &sync.Mutex{}
		m.locks[id] = lock
	}
	return lock
}

func (m *Machine) handleInitial(ctx context.Context, sess *models.Session, ev models.Event, depth int) (*models.Response, error) {
	sess.State = models.StateWaitingUserType
	return &models.Response{
		Text:         msgWelcome,
		QuickReplies: roleQuickReplies(),
	}, nil
}

func (m *Machine) handleUserType(ctx context.Context, sess *models.Session, ev models.Event, depth int) (*models.Response, error) {
	message := normalizedLower(ev.Text)

	switch {
	case containsAny(message, advertiserTokens):
		sess.UserType = models.UserAdvertiser
		sess.Advertiser = &models.AdvertiserContext{}
		sess.State = models.StateAdvertiserWaitingAd
		return &models.Response{Text: msgAdvertiserRequestAd}, nil

	case containsAny(message, buyerTokens):
		sess.UserType = models.UserBuyer
		sess.Buyer = &models.BuyerContext{}
		sess.State = models.StateBuyerWaitingQuery
		return &models.Response{Text: msgBuyerRequestSearch}, nil

	default:
		return &models.Response{
			Text:         msgRolePromptInvalid,
			QuickReplies: roleQuickReplies(),
		}, nil
	}
}

func (m *Machine) handleAdvertiserAd(ctx context.Context, sess *models.Session, ev models.Event, depth int) (*models.Response, error) {
	text := strings.TrimSpace(ev.Text)
	lines := strings.Split(text, "\n")
	if len(lines) < minAdLines && len([]rune(text)) < minAdChars {
		return &models.Response{Text: msgAdTooShort}, nil
	}

	enhanced := text
	enhancementOK := false
	if m.enhancer != nil {
		result, err := m.enhancer.Enhance(ctx, text)
		if err != nil {
			// Degrade to the original text; the flow never stalls on AI.
			m.logger.Warn("Ad enhancement failed, using original text", zap.Error(err))
		} else {
			enhanced = result.EnhancedText
			enhancementOK = true
		}
	}

	if sess.Advertiser == nil {
		sess.Advertiser = &models.AdvertiserContext{}
	}
	sess.Advertiser.OriginalText = text
	sess.Advertiser.EnhancedText = enhanced

	if m.cfg.RequireImage {
		sess.State = models.StateAdvertiserWaitingImg
		return &models.Response{Text: enhanced + "\n\n---\n\n" + msgRequestImage}, nil
	}

	sess.State = models.StateAdvertiserConfirming
	prompt := msgAdEnhanced
	if !enhancementOK {
		prompt = msgConfirmFallback
	}
	return &models.Response{
		Text:         enhanced + "\n\n---\n\n" + prompt,
		QuickReplies: confirmQuickReplies(),
	}, nil
}

func (m *Machine) handleAdvertiserImage(ctx context.Context, sess *models.Session, ev models.Event, depth int) (*models.Response, error) {
	if sess.Advertiser == nil || sess.Advertiser.OriginalText == "" {
		sess.State = models.StateAdvertiserWaitingAd
		return &models.Response{Text: msgAdvertiserRequestAd}, nil
	}
	switch {
	case ev.ImageURL != "":
		sess.Advertiser.ImageURL = ev.ImageURL
	case len(ev.Image) > 0:
		// Adapters without file hosting pass raw bytes only; remember
		// that an image exists even without a resolvable URL.
		sess.Advertiser.ImageURL = "attachment:" + uuid.New().String()
	case containsAny(normalizedLower(ev.Text), skipTokens):
		// Proceed without an image.
	default:
		return &models.Response{Text: msgRequestImage}, nil
	}

	sess.State = models.StateAdvertiserConfirming
	return &models.Response{
		Text:         sess.Advertiser.EnhancedText + "\n\n---\n\n" + msgAdEnhanced,
		QuickReplies: confirmQuickReplies(),
	}, nil
}

func (m *Machine) handleAdvertiserConfirm(ctx context.Context, sess *models.Session, ev models.Event, depth int) (*models.Response, error) {
	message := normalizedLower(ev.Text)

	switch {
	case containsAny(message, approveTokens):
		return m.submitAd(ctx, sess)

	case containsAny(message, editTokens):
		sess.State = models.StateAdvertiserWaitingAd
		return &models.Response{Text: msgRewritePrompt}, nil

	default:
		return &models.Response{
			Text:         msgConfirmInvalid,
			QuickReplies: confirmQuickReplies(),
		}, nil
	}
}

// submitAd persists the confirmed draft. Attributes are extracted from
// the advertiser's own wording, not the AI rewrite: the original text is
// where the factual price and contact live.
func (m *Machine) submitAd(ctx context.Context, sess *models.Session) (*models.Response, error) {
	draft := sess.Advertiser
	if draft == nil || draft.OriginalText == "" {
		sess.State = models.StateAdvertiserWaitingAd
		return &models.Response{Text: msgAdvertiserRequestAd}, nil
	}

	analysis := m.processor.Analyze(draft.OriginalText)
	ad := &models.Ad{
		SessionID:    sess.ID,
		OriginalText: draft.OriginalText,
		EnhancedText: draft.EnhancedText,
		Status:       models.AdPending,
		Category:     analysis.Category,
		Location:     analysis.Location,
		ContactInfo:  analysis.Contact,
		ImageURL:     draft.ImageURL,
	}
	if analysis.Price != nil {
		price := analysis.Price.Value
		ad.Price = &price
	}

	id, err := m.ads.Create(ctx, ad)
	if err != nil {
		// No state change: the user retries the same confirmation.
		return nil, fmt.Errorf("creating ad: %w", err)
	}

	text := fmt.Sprintf("%s\n(رقم الإعلان: %d)", msgAdSubmitted, id)
	if m.cfg.AutoApprove {
		if err := m.ads.SetStatus(ctx, id, models.AdApproved, "auto-approved"); err != nil {
			m.logger.Error("Failed to auto-approve ad", zap.Error(err), zap.Int64("ad_id", id))
		} else {
			text = fmt.Sprintf("%s\n%s", msgAdPublished, storage.AdLink(id))
		}
	}

	draft.AdID = id
	sess.State = models.StateAdvertiserSubmitted
	return &models.Response{Text: text}, nil
}

func (m *Machine) handleBuyerQuery(ctx context.Context, sess *models.Session, ev models.Event, depth int) (*models.Response, error) {
	if sess.Buyer == nil {
		sess.Buyer = &models.BuyerContext{}
	}

	if len(ev.Image) > 0 {
		return m.buyerImageSearch(ctx, sess, ev)
	}

	if len(strings.Fields(ev.Text)) < minQueryTokens {
		return &models.Response{Text: msgQueryTooShort}, nil
	}

	analysis := m.processor.Analyze(ev.Text)
	// A place name in the query is a hard filter; the inferred category
	// is not, the engine scores it as a bonus instead.
	filters := search.Filters{
		Location: analysis.Location,
	}
	if min, max, ok := search.ParsePriceRange(ev.Text); ok {
		filters.PriceMin, filters.PriceMax = min, max
	} else if analysis.Price != nil {
		// A bare price in a buyer query reads as a budget ceiling.
		filters.PriceMax = analysis.Price.Value
	}

	matches, err := m.engine.Search(ctx, ev.Text, filters, m.cfg.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("searching ads: %w", err)
	}

	return m.showResults(sess, ev.Text, matches), nil
}

func (m *Machine) buyerImageSearch(ctx context.Context, sess *models.Session, ev models.Event) (*models.Response, error) {
	if m.analyzer == nil {
		return &models.Response{Text: msgImageFailed}, nil
	}

	description, err := m.analyzer.Describe(ctx, ev.Image, ev.ImageMIME)
	if err != nil {
		// Surface an apology and stay searchable; never a hard error.
		m.logger.Warn("Image analysis failed", zap.Error(err))
		return &models.Response{Text: msgImageFailed}, nil
	}

	matches, err := m.engine.SearchByImage(ctx, description, m.cfg.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("searching ads by image: %w", err)
	}

	return m.showResults(sess, description, matches), nil
}

// showResults stores the result page in the session and transitions to
// the results state whether or not anything matched.
func (m *Machine) showResults(sess *models.Session, query string, matches []models.Match) *models.Response {
	sess.Buyer.LastQuery = query
	sess.Buyer.Results = matches
	sess.Buyer.History = append(sess.Buyer.History, models.SearchRecord{
		Query:     query,
		Results:   len(matches),
		Timestamp: time.Now(),
	})
	if len(sess.Buyer.History) > historyLimit {
		sess.Buyer.History = sess.Buyer.History[len(sess.Buyer.History)-historyLimit:]
	}
	sess.State = models.StateBuyerShowingResults

	if len(matches) == 0 {
		return &models.Response{Text: msgNoResults}
	}
	return &models.Response{Text: formatMatches(matches)}
}

func (m *Machine) handleBuyerResults(ctx context.Context, sess *models.Session, ev models.Event, depth int) (*models.Response, error) {
	if sess.Buyer == nil {
		sess.Buyer = &models.BuyerContext{}
	}
	trimmed := strings.TrimSpace(ev.Text)

	// A pure integer picks one of the listed results, by list position
	// or by ad identifier.
	if n, err := strconv.Atoi(trimmed); err == nil {
		return m.showAdDetail(ctx, sess, n)
	}

	if message := normalizedLower(ev.Text); containsAny(message, newSearchTokens) {
		sess.State = models.StateBuyerWaitingQuery
		for _, token := range newSearchTokens {
			if message == token {
				// A bare "new search" carries no query to run yet.
				return &models.Response{Text: msgBuyerRequestSearch}, nil
			}
		}
		// The message is already the next query.
		return m.dispatch(ctx, sess, ev, depth+1)
	}

	return &models.Response{Text: msgResultsPrompt}, nil
}

func (m *Machine) showAdDetail(ctx context.Context, sess *models.Session, n int) (*models.Response, error) {
	var adID int64
	results := sess.Buyer.Results
	switch {
	case n >= 1 && n <= len(results):
		adID = results[n-1].AdID
	default:
		for _, match := range results {
			if match.AdID == int64(n) {
				adID = match.AdID
				break
			}
		}
	}
	if adID == 0 {
		return &models.Response{Text: msgAdNotFound}, nil
	}

	ad, err := m.ads.Get(ctx, adID)
	if err != nil || ad.Status != models.AdApproved {
		// A stale selection is user-visible, not an internal error.
		return &models.Response{Text: msgAdNotFound}, nil
	}
	return &models.Response{Text: formatAdDetail(ad)}, nil
}

// normalizedLower prepares a message for token matching.
func normalizedLower(text string) string {
	return strings.ToLower(arabic.Normalize(strings.TrimSpace(text)))
}

func containsAny(message string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(message, token) {
			return true
		}
	}
	return false
}
