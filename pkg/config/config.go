package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/zakisalem/souq-bot/internal/arabic"
)

type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Bot      BotConfig      `mapstructure:"bot"`
	Webhooks WebhookConfig  `mapstructure:"webhooks"`
	Tables   TablesConfig   `mapstructure:"tables"`

	v *viper.Viper
}

type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
}

type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type OpenAIConfig struct {
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	Temperature    float64 `mapstructure:"temperature"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

type GeminiConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type BotConfig struct {
	AutoApprove            bool `mapstructure:"auto_approve"`
	RequireImage           bool `mapstructure:"require_image"`
	MaxResults             int  `mapstructure:"max_results"`
	SessionTTLHours        int  `mapstructure:"session_ttl_hours"`
	CleanupIntervalMinutes int  `mapstructure:"cleanup_interval_minutes"`
}

type WebhookConfig struct {
	FacebookVerifyToken   string `mapstructure:"facebook_verify_token"`
	FacebookPageToken     string `mapstructure:"facebook_page_token"`
	WhatsAppVerifyToken   string `mapstructure:"whatsapp_verify_token"`
	WhatsAppAccessToken   string `mapstructure:"whatsapp_access_token"`
	WhatsAppPhoneNumberID string `mapstructure:"whatsapp_phone_number_id"`
	InstagramVerifyToken  string `mapstructure:"instagram_verify_token"`
	InstagramPageToken    string `mapstructure:"instagram_page_token"`
}

// TablesConfig lets a deployment override the Arabic heuristic word
// lists without a rebuild. Empty lists fall back to the compiled-in
// defaults.
type TablesConfig struct {
	StopWords   []string         `mapstructure:"stop_words"`
	Categories  []CategoryConfig `mapstructure:"categories"`
	Locations   []string         `mapstructure:"locations"`
	BuyingCues  []string         `mapstructure:"buying_cues"`
	SellingCues []string         `mapstructure:"selling_cues"`
}

type CategoryConfig struct {
	Name     string   `mapstructure:"name"`
	Keywords []string `mapstructure:"keywords"`
}

func (t TablesConfig) ToTables() arabic.Tables {
	tables := arabic.Tables{
		StopWords:   t.StopWords,
		Locations:   t.Locations,
		BuyingCues:  t.BuyingCues,
		SellingCues: t.SellingCues,
	}
	for _, c := range t.Categories {
		tables.Categories = append(tables.Categories, arabic.CategoryDef{
			Name:     c.Name,
			Keywords: c.Keywords,
		})
	}
	return tables
}

func (c *OpenAIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *GeminiConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c *BotConfig) SessionTTL() time.Duration {
	if c.SessionTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func (c *BotConfig) CleanupInterval() time.Duration {
	if c.CleanupIntervalMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	// Remove leading slash from path to get database name
	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("telegram.enabled", true)
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 500)
	v.SetDefault("openai.temperature", 0.7)
	v.SetDefault("openai.timeout_seconds", 30)
	v.SetDefault("gemini.model", "gemini-1.5-flash")
	v.SetDefault("gemini.timeout_seconds", 30)
	v.SetDefault("bot.max_results", 5)
	v.SetDefault("bot.session_ttl_hours", 24)
	v.SetDefault("bot.cleanup_interval_minutes", 60)

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	config := &Config{v: v}
	if err := v.Unmarshal(config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		config.Database = dbConfig
	}

	// Get other environment variables
	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}
	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}
	if apiKey := v.GetString("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if token := v.GetString("FACEBOOK_PAGE_TOKEN"); token != "" {
		config.Webhooks.FacebookPageToken = token
	}
	if token := v.GetString("WHATSAPP_ACCESS_TOKEN"); token != "" {
		config.Webhooks.WhatsAppAccessToken = token
	}
	if token := v.GetString("INSTAGRAM_PAGE_TOKEN"); token != "" {
		config.Webhooks.InstagramPageToken = token
	}

	return config, nil
}

// WatchTables re-reads the heuristic word tables whenever the config
// file changes on disk, so the keyword lists can be extended live.
func (c *Config) WatchTables(logger *zap.Logger, onChange func(arabic.Tables)) {
	c.v.OnConfigChange(func(e fsnotify.Event) {
		if err := c.v.ReadInConfig(); err != nil {
			logger.Error("Failed to re-read config", zap.Error(err), zap.String("file", e.Name))
			return
		}
		var tables TablesConfig
		if err := c.v.UnmarshalKey("tables", &tables); err != nil {
			logger.Error("Failed to parse tables from config", zap.Error(err))
			return
		}
		logger.Info("Reloaded heuristic tables", zap.String("file", e.Name))
		onChange(tables.ToTables())
	})
	c.v.WatchConfig()
}
