package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zakisalem/souq-bot/internal/ai"
	"github.com/zakisalem/souq-bot/internal/arabic"
	"github.com/zakisalem/souq-bot/internal/conversation"
	"github.com/zakisalem/souq-bot/internal/platform"
	"github.com/zakisalem/souq-bot/internal/search"
	"github.com/zakisalem/souq-bot/internal/session"
	"github.com/zakisalem/souq-bot/internal/storage"
	"github.com/zakisalem/souq-bot/pkg/config"
)

func main() {
	// A missing .env is fine; real deployments set variables directly.
	_ = godotenv.Load()

	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize ad storage
	var ads storage.AdStore
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory ad storage")
		ads = storage.NewMemoryStore()
	} else {
		logger.Info("Using PostgreSQL ad storage")
		dbConfig := storage.DatabaseConfig{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.DBName,
			SSLMode:     cfg.Database.SSLMode,
			UseInMemory: cfg.Database.UseInMemory,
		}
		store, err := storage.NewPostgresStore(dbConfig)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
		ads = store
	}
	defer ads.Close()

	// The Arabic processor is shared by extraction, search and the
	// conversation flow. Config tables extend the built-in defaults
	// and reload live on config file changes.
	processor := arabic.NewProcessor(cfg.Tables.ToTables())
	cfg.WatchTables(logger, processor.Reload)

	engine := search.NewEngine(ads, processor, logger)

	// AI services are optional; the flow degrades to pass-through
	// enhancement and text-only search without them.
	var enhancer ai.Enhancer
	if cfg.OpenAI.APIKey != "" {
		enhancer = ai.NewOpenAIEnhancer(
			cfg.OpenAI.APIKey,
			cfg.OpenAI.Model,
			cfg.OpenAI.MaxTokens,
			cfg.OpenAI.Temperature,
			cfg.OpenAI.Timeout(),
			logger,
		)
	} else {
		logger.Warn("OPENAI_API_KEY not set, ad enhancement disabled")
	}

	var analyzer ai.ImageAnalyzer
	if cfg.Gemini.APIKey != "" {
		gemini, err := ai.NewGeminiAnalyzer(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.Timeout(), logger)
		if err != nil {
			logger.Fatal("Failed to initialize image analyzer", zap.Error(err))
		}
		defer gemini.Close()
		analyzer = gemini
	} else {
		logger.Warn("GEMINI_API_KEY not set, image search disabled")
	}

	// Sessions live in memory with a TTL sweep.
	sessions := session.NewMemoryStore(cfg.Bot.SessionTTL())
	session.StartCleanup(ctx, sessions, cfg.Bot.CleanupInterval(), logger)

	machine := conversation.NewMachine(
		sessions,
		ads,
		engine,
		processor,
		enhancer,
		analyzer,
		conversation.Config{
			AutoApprove:  cfg.Bot.AutoApprove,
			RequireImage: cfg.Bot.RequireImage,
			MaxResults:   cfg.Bot.MaxResults,
		},
		logger,
	)

	errCh := make(chan error, 2)

	if cfg.Telegram.Enabled && cfg.Telegram.Token != "" {
		bot, err := platform.NewTelegramBot(cfg.Telegram.Token, machine, logger)
		if err != nil {
			logger.Fatal("Failed to create Telegram bot", zap.Error(err))
		}
		go func() {
			if err := bot.Start(ctx); err != nil {
				errCh <- fmt.Errorf("telegram bot: %w", err)
			}
		}()
	}

	var server *platform.Server
	if cfg.Server.Enabled {
		server = platform.NewServer(
			machine,
			engine,
			ads,
			buildSenders(cfg, logger),
			platform.VerifyTokens{
				Facebook:  cfg.Webhooks.FacebookVerifyToken,
				WhatsApp:  cfg.Webhooks.WhatsAppVerifyToken,
				Instagram: cfg.Webhooks.InstagramVerifyToken,
			},
			logger,
		)
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		logger.Info("Starting webhook server", zap.String("addr", addr))
		go func() {
			if err := server.Listen(addr); err != nil {
				errCh <- fmt.Errorf("webhook server: %w", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("Component failed", zap.Error(err))
	}

	cancel()
	if server != nil {
		if err := server.Shutdown(); err != nil {
			logger.Error("Failed to shut down webhook server", zap.Error(err))
		}
	}
}

func buildSenders(cfg *config.Config, logger *zap.Logger) map[string]platform.Sender {
	senders := make(map[string]platform.Sender)
	if cfg.Webhooks.FacebookPageToken != "" {
		senders[platform.PlatformFacebook] = platform.NewGraphSender(cfg.Webhooks.FacebookPageToken, logger)
	}
	if cfg.Webhooks.InstagramPageToken != "" {
		senders[platform.PlatformInstagram] = platform.NewGraphSender(cfg.Webhooks.InstagramPageToken, logger)
	}
	if cfg.Webhooks.WhatsAppAccessToken != "" && cfg.Webhooks.WhatsAppPhoneNumberID != "" {
		senders[platform.PlatformWhatsApp] = platform.NewWhatsAppSender(
			cfg.Webhooks.WhatsAppAccessToken,
			cfg.Webhooks.WhatsAppPhoneNumberID,
			logger,
		)
	}
	return senders
}
