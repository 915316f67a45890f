package platform

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/zakisalem/souq-bot/internal/models"
	"github.com/zakisalem/souq-bot/internal/search"
	"github.com/zakisalem/souq-bot/internal/storage"
)

// VerifyTokens holds the per-platform webhook verification secrets.
type VerifyTokens struct {
	Facebook  string
	WhatsApp  string
	Instagram string
}

// Server hosts the Meta-style webhooks, the web chat endpoint and the
// moderation API on one fiber app.
type Server struct {
	app       *fiber.App
	processor Processor
	engine    *search.Engine
	ads       storage.AdStore
	senders   map[string]Sender
	tokens    VerifyTokens
	logger    *zap.Logger
}

func NewServer(
	processor Processor,
	engine *search.Engine,
	ads storage.AdStore,
	senders map[string]Sender,
	tokens VerifyTokens,
	logger *zap.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				code = fiberErr.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})
	app.Use(recover.New())

	s := &Server{
		app:       app,
		processor: processor,
		engine:    engine,
		ads:       ads,
		senders:   senders,
		tokens:    tokens,
		logger:    logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	s.app.Get("/webhook/facebook", s.verifyWebhook(s.tokens.Facebook))
	s.app.Post("/webhook/facebook", s.handleMetaWebhook(PlatformFacebook))
	s.app.Get("/webhook/instagram", s.verifyWebhook(s.tokens.Instagram))
	s.app.Post("/webhook/instagram", s.handleMetaWebhook(PlatformInstagram))
	s.app.Get("/webhook/whatsapp", s.verifyWebhook(s.tokens.WhatsApp))
	s.app.Post("/webhook/whatsapp", s.handleWhatsAppWebhook)

	s.app.Post("/api/chat", s.handleChat)
	s.app.Get("/api/search", s.handleSearch)
	s.app.Get("/api/ads/pending", s.handlePendingAds)
	s.app.Post("/api/ads/:id/approve", s.moderate(models.AdApproved))
	s.app.Post("/api/ads/:id/reject", s.moderate(models.AdRejected))
	s.app.Get("/ad/:id", s.handleAdView)
}

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// verifyWebhook answers the Meta hub challenge for all three platforms.
func (s *Server) verifyWebhook(verifyToken string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		mode := c.Query("hub.mode")
		token := c.Query("hub.verify_token")
		challenge := c.Query("hub.challenge")

		if mode == "subscribe" && token != "" && token == verifyToken {
			s.logger.Info("Webhook verified", zap.String("path", c.Path()))
			return c.SendString(challenge)
		}

		s.logger.Warn("Webhook verification failed",
			zap.String("path", c.Path()),
			zap.String("mode", mode))
		return c.SendStatus(fiber.StatusForbidden)
	}
}

func (s *Server) handleMetaWebhook(platformName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body metaWebhookPayload
		if err := c.BodyParser(&body); err != nil {
			s.logger.Error("Failed to parse webhook body", zap.Error(err))
			return c.SendStatus(fiber.StatusBadRequest)
		}

		events := parseMetaEvents(platformName, body)
		// Return to Meta immediately; processing continues off-request.
		go s.processEvents(events)

		return c.SendString("EVENT_RECEIVED")
	}
}

func (s *Server) handleWhatsAppWebhook(c *fiber.Ctx) error {
	var body metaWebhookPayload
	if err := c.BodyParser(&body); err != nil {
		s.logger.Error("Failed to parse webhook body", zap.Error(err))
		return c.SendStatus(fiber.StatusBadRequest)
	}

	events := parseWhatsAppEvents(body)
	go s.processEvents(events)

	return c.SendString("EVENT_RECEIVED")
}

func (s *Server) processEvents(events []models.Event) {
	ctx := context.Background()
	for _, ev := range events {
		resp, err := s.processor.Process(ctx, ev)
		if err != nil {
			s.logger.Error("Failed to process webhook event",
				zap.Error(err),
				zap.String("platform", ev.Platform),
				zap.String("sender_id", ev.SenderID))
		}
		if resp == nil {
			continue
		}

		sender, ok := s.senders[ev.Platform]
		if !ok {
			s.logger.Warn("No sender configured for platform",
				zap.String("platform", ev.Platform))
			continue
		}
		if err := sender.Send(ctx, ev.SenderID, resp); err != nil {
			s.logger.Error("Failed to send response",
				zap.Error(err),
				zap.String("platform", ev.Platform),
				zap.String("sender_id", ev.SenderID))
		}
	}
}

func parseMetaEvents(platformName string, body metaWebhookPayload) []models.Event {
	var events []models.Event
	for _, entry := range body.Entry {
		for _, messaging := range entry.Messaging {
			ev := models.Event{
				Platform:  platformName,
				SenderID:  messaging.Sender.ID,
				Timestamp: time.UnixMilli(messaging.Timestamp),
			}
			switch {
			case messaging.Postback != nil:
				ev.Text = messaging.Postback.Payload
			case messaging.Message != nil:
				ev.Text = messaging.Message.Text
				if messaging.Message.QuickReply != nil {
					ev.Text = messaging.Message.QuickReply.Payload
				}
				for _, att := range messaging.Message.Attachments {
					if att.Type == "image" && att.Payload.URL != "" {
						ev.ImageURL = att.Payload.URL
					}
				}
			default:
				continue
			}
			events = append(events, ev)
		}
	}
	return events
}

func parseWhatsAppEvents(body metaWebhookPayload) []models.Event {
	var events []models.Event
	for _, entry := range body.Entry {
		for _, change := range entry.Changes {
			names := make(map[string]string, len(change.Value.Contacts))
			for _, contact := range change.Value.Contacts {
				names[contact.WaID] = contact.Profile.Name
			}
			for _, msg := range change.Value.Messages {
				ev := models.Event{
					Platform:   PlatformWhatsApp,
					SenderID:   msg.From,
					SenderName: names[msg.From],
					Timestamp:  parseUnixSeconds(msg.Timestamp),
				}
				switch {
				case msg.Text != nil:
					ev.Text = msg.Text.Body
				case msg.Interactive != nil && msg.Interactive.ButtonReply != nil:
					ev.Text = msg.Interactive.ButtonReply.ID
				case msg.Interactive != nil && msg.Interactive.ListReply != nil:
					ev.Text = msg.Interactive.ListReply.ID
				default:
					continue
				}
				events = append(events, ev)
			}
		}
	}
	return events
}

func parseUnixSeconds(s string) time.Time {
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Now()
	}
	return time.Unix(secs, 0)
}

// handleChat is the web widget's synchronous chat endpoint.
func (s *Server) handleChat(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.SenderID == "" || req.Text == "" {
		return fiber.NewError(fiber.StatusBadRequest, "sender_id and text are required")
	}

	resp, err := s.processor.Process(c.Context(), models.Event{
		Platform:  PlatformWeb,
		SenderID:  req.SenderID,
		Text:      req.Text,
		Timestamp: time.Now(),
	})
	if err != nil {
		s.logger.Error("Failed to process chat message",
			zap.Error(err),
			zap.String("sender_id", req.SenderID))
	}
	if resp == nil {
		return fiber.NewError(fiber.StatusInternalServerError, "processing failed")
	}

	return c.JSON(chatResponse{Text: resp.Text, QuickReplies: resp.QuickReplies})
}

// handleSearch is the programmatic search endpoint, capped at the
// engine's maximum rather than the chat display limit.
func (s *Server) handleSearch(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return fiber.NewError(fiber.StatusBadRequest, "q is required")
	}
	limit := c.QueryInt("limit", search.MaxLimit)

	filters := search.Filters{Category: c.Query("category"), Location: c.Query("location")}
	if min, max, ok := search.ParsePriceRange(query); ok {
		filters.PriceMin, filters.PriceMax = min, max
	}

	matches, err := s.engine.Search(c.Context(), query, filters, limit)
	if err != nil {
		s.logger.Error("Search failed", zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "search failed")
	}
	if matches == nil {
		matches = []models.Match{}
	}
	return c.JSON(fiber.Map{"query": query, "count": len(matches), "results": matches})
}

func (s *Server) handlePendingAds(c *fiber.Ctx) error {
	ads, err := s.ads.ListPending(c.Context())
	if err != nil {
		s.logger.Error("Failed to list pending ads", zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "listing failed")
	}
	if ads == nil {
		ads = []models.Ad{}
	}
	return c.JSON(fiber.Map{"count": len(ads), "ads": ads})
}

func (s *Server) moderate(status models.AdStatus) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid ad id")
		}

		var req moderationRequest
		// Notes are optional; an empty body is fine.
		_ = c.BodyParser(&req)

		if err := s.ads.SetStatus(c.Context(), id, status, req.Notes); err != nil {
			switch {
			case errors.Is(err, storage.ErrNotFound):
				return fiber.NewError(fiber.StatusNotFound, "ad not found")
			case errors.Is(err, storage.ErrAlreadyModerated):
				return fiber.NewError(fiber.StatusConflict, "ad already moderated")
			default:
				s.logger.Error("Failed to moderate ad", zap.Error(err), zap.Int64("ad_id", id))
				return fiber.NewError(fiber.StatusInternalServerError, "moderation failed")
			}
		}

		s.logger.Info("Ad moderated",
			zap.Int64("ad_id", id),
			zap.String("status", string(status)))
		return c.JSON(fiber.Map{"id": id, "status": status})
	}
}

// handleAdView serves the public ad page the approval link points at.
func (s *Server) handleAdView(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid ad id")
	}

	ad, err := s.ads.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "ad not found")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "lookup failed")
	}
	if ad.Status != models.AdApproved {
		return fiber.NewError(fiber.StatusNotFound, "ad not found")
	}

	view := fiber.Map{
		"id":   ad.ID,
		"text": ad.EnhancedText,
		"link": ad.Link,
	}
	if ad.Price != nil {
		view["price"] = *ad.Price
	}
	if ad.Location != "" {
		view["location"] = ad.Location
	}
	if ad.ContactInfo != "" {
		view["contact"] = ad.ContactInfo
	}
	if ad.ImageURL != "" {
		view["image_url"] = ad.ImageURL
	}
	return c.JSON(view)
}
