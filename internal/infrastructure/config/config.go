package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	// OpenAI
	OpenAIAPIKey string `mapstructure:"openai_api_key"`
	ModelName    string `mapstructure:"model_name"`

	// Google Cloud
	GoogleCloudProject string `mapstructure:"google_cloud_project"`
	SubscriptionID     string `mapstructure:"subscription_id"`

	// Gmail auth
	CredentialsFile string `mapstructure:"credentials_file"`
	TokenFile       string `mapstructure:"token_file"`
	TokenStore      string `mapstructure:"token_store"`
	Interactive     bool   `mapstructure:"interactive"`
	GmailEndpoint   string `mapstructure:"gmail_endpoint"`

	// Database
	DatabasePath string `mapstructure:"database_path"`

	Sync     SyncConfig     `mapstructure:"sync"`
	Reset    ResetConfig    `mapstructure:"reset"`
	Counters CountersConfig `mapstructure:"counters"`
	Log      LogConfig      `mapstructure:"log"`
}

type SyncConfig struct {
	PageSize          int           `mapstructure:"page_size"`
	PageDelay         time.Duration `mapstructure:"page_delay"`
	MaxPages          int           `mapstructure:"max_pages"`
	DetailDelay       time.Duration `mapstructure:"detail_delay"`
	DetailConcurrency int           `mapstructure:"detail_concurrency"`
	CommitWait        time.Duration `mapstructure:"commit_wait"`
	OnStart           bool          `mapstructure:"on_start"`
}

type ResetConfig struct {
	Hour     int    `mapstructure:"hour"`
	Minute   int    `mapstructure:"minute"`
	Timezone string `mapstructure:"timezone"`
}

type CountersConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	TokenStoreFile    = "file"
	TokenStoreKeyring = "keyring"
)

var defaults = map[string]any{
	"openai_api_key":          "",
	"model_name":              "gpt-4o-mini",
	"google_cloud_project":    "",
	"subscription_id":         "",
	"credentials_file":        "credentials.json",
	"token_file":              "token.json",
	"token_store":             TokenStoreFile,
	"interactive":             true,
	"gmail_endpoint":          "",
	"database_path":           "mailfootprint.db",
	"sync.page_size":          100,
	"sync.page_delay":         2 * time.Second,
	"sync.max_pages":          1000,
	"sync.detail_delay":       time.Duration(0),
	"sync.detail_concurrency": 1,
	"sync.commit_wait":        30 * time.Second,
	"sync.on_start":           false,
	"reset.hour":              23,
	"reset.minute":            59,
	"reset.timezone":          "Local",
	"counters.interval":       10 * time.Minute,
	"log.level":               "info",
	"log.format":              "console",
}

// Load layers defaults, an optional YAML file and the environment. Nested
// keys map to env vars with underscores, e.g. SYNC_PAGE_DELAY.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var pathErr *os.PathError
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
			log.Debug().Str("path", path).Msg("config file not found, using defaults")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Sync.PageSize < 1 || c.Sync.PageSize > 500 {
		return fmt.Errorf("sync.page_size must be between 1 and 500, got %d", c.Sync.PageSize)
	}
	if c.Sync.PageDelay < 0 || c.Sync.DetailDelay < 0 {
		return fmt.Errorf("sync delays must not be negative")
	}
	if c.Sync.DetailConcurrency < 1 {
		return fmt.Errorf("sync.detail_concurrency must be at least 1, got %d", c.Sync.DetailConcurrency)
	}
	if c.Sync.MaxPages < 0 {
		return fmt.Errorf("sync.max_pages must not be negative")
	}
	if c.Reset.Hour < 0 || c.Reset.Hour > 23 || c.Reset.Minute < 0 || c.Reset.Minute > 59 {
		return fmt.Errorf("reset time %02d:%02d is out of range", c.Reset.Hour, c.Reset.Minute)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.TokenStore != TokenStoreFile && c.TokenStore != TokenStoreKeyring {
		return fmt.Errorf("token_store must be %q or %q, got %q", TokenStoreFile, TokenStoreKeyring, c.TokenStore)
	}
	if c.SubscriptionID != "" && c.GoogleCloudProject == "" {
		return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required when SUBSCRIPTION_ID is set")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	return nil
}

// Location resolves the reset timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Reset.Timezone == "" || strings.EqualFold(c.Reset.Timezone, "Local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Reset.Timezone)
	if err != nil {
		return nil, fmt.Errorf("reset.timezone: %w", err)
	}
	return loc, nil
}

func (c *Config) PubSubEnabled() bool {
	return c.SubscriptionID != ""
}
