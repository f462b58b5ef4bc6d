// Package config assembles the application configuration from .env, an
// optional sources YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	loader "permit-watch/internal/pkg/config"
	envconfig "permit-watch/pkg/config"
)

// Store backends selected by the STORE_URL scheme.
const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
)

var (
	ErrMissingStoreURL  = errors.New("STORE_URL is required")
	ErrUnsupportedStore = errors.New("unsupported STORE_URL scheme")
	ErrMissingChatID    = errors.New("TELEGRAM_CHAT_ID is required when TELEGRAM_TOKEN is set")
)

// AppConfig is everything the worker needs besides scheduling.
type AppConfig struct {
	LogLevel    string
	MetricsPort int
	HTTPTimeout time.Duration
	// TraceLog exports finished spans to the debug log.
	TraceLog         bool
	TraceSampleRatio float64

	Telegram TelegramConfig
	Store    StoreConfig
	Sources  SourcesConfig
}

type TelegramConfig struct {
	Token   string
	ChatID  string
	APIBase string
}

// DryRun reports whether notifications go to the log instead of Telegram.
func (t TelegramConfig) DryRun() bool { return t.Token == "" }

// StoreConfig selects the backend and names the per-kind collections
// (tables for postgres).
type StoreConfig struct {
	URL               string
	Database          string
	FeedCollection    string
	ListingCollection string
	PortalCollection  string
}

// Backend derives the store backend from the URL scheme.
func (s StoreConfig) Backend() (string, error) {
	if s.URL == "" {
		return "", ErrMissingStoreURL
	}
	u, err := url.Parse(s.URL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedStore, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "mongodb", "mongodb+srv":
		return BackendMongo, nil
	case "postgres", "postgresql":
		return BackendPostgres, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedStore, u.Scheme)
}

// Load reads .env, overlays SOURCES_CONFIG and applies the environment.
// Invalid optional values fall back to defaults with a warning; only an
// unreadable sources file is an error here. Call Validate for the checks
// that must stop startup.
func Load(logger *slog.Logger, metrics *loader.ConfigMetrics) (*AppConfig, error) {
	if err := envconfig.LoadDotEnv(); err != nil {
		return nil, err
	}

	sources := DefaultSources()
	if path := envconfig.GetEnvString("SOURCES_CONFIG", ""); path != "" {
		var err error
		if sources, err = LoadSourcesFile(path, sources); err != nil {
			return nil, err
		}
	}

	r := loader.NewReporter(logger, metrics)
	cfg := &AppConfig{
		LogLevel: r.Track("log_level",
			loader.LoadEnvWithFallback("LOG_LEVEL", "info", loader.ValidateLogLevel)).(string),
		MetricsPort: r.Track("metrics_port",
			loader.LoadEnvInt("METRICS_PORT", 9090, func(v int) error {
				return loader.ValidateIntRange(v, 1024, 65535)
			})).(int),
		HTTPTimeout: r.Track("http_timeout",
			loader.LoadEnvDuration("HTTP_TIMEOUT", 20*time.Second, func(d time.Duration) error {
				return loader.ValidateDuration(d, time.Second, 2*time.Minute)
			})).(time.Duration),
		TraceLog:         r.Track("trace_log", loader.LoadEnvBool("TRACE_LOG", false)).(bool),
		TraceSampleRatio: envconfig.GetEnvFloat("TRACE_SAMPLE_RATIO", 1.0),

		Telegram: TelegramConfig{
			Token:   envconfig.GetEnvString("TELEGRAM_TOKEN", ""),
			ChatID:  envconfig.GetEnvString("TELEGRAM_CHAT_ID", ""),
			APIBase: envconfig.GetEnvString("TELEGRAM_API_BASE", ""),
		},
		Store: StoreConfig{
			URL:               envconfig.GetEnvFirst("", "STORE_URL", "MONGODB_URI"),
			Database:          envconfig.GetEnvString("STORE_DATABASE", "permit_watch"),
			FeedCollection:    envconfig.GetEnvString("RSS_ITEMS_COLLECTION_NAME", "rss_items"),
			ListingCollection: envconfig.GetEnvString("DOCUMENTS_COLLECTION_NAME", "documents"),
			PortalCollection:  envconfig.GetEnvString("PORTAL_COLLECTION_NAME", "portal_documents"),
		},
	}

	s := &sources
	s.Feed.URL = r.Track("feed_url",
		loader.LoadEnvWithFallback("FEED_URL", s.Feed.URL, loader.ValidateHTTPURL)).(string)
	s.Feed.Charset = r.Track("feed_charset",
		loader.LoadEnvWithFallback("FEED_CHARSET", orDefault(s.Feed.Charset, "windows-1251"), loader.ValidateCharset)).(string)

	s.Listing.URL = r.Track("listing_url",
		loader.LoadEnvWithFallback("LISTING_URL", s.Listing.URL, loader.ValidateHTTPURL)).(string)
	s.Listing.Region = envconfig.GetEnvString("LISTING_REGION", s.Listing.Region)
	s.Listing.Search = envconfig.GetEnvString("LISTING_SEARCH", s.Listing.Search)
	s.Listing.Year = r.Track("listing_year",
		loader.LoadEnvInt("LISTING_YEAR", s.Listing.Year, loader.ValidateYear)).(int)
	s.Listing.Month = r.Track("listing_month",
		loader.LoadEnvInt("LISTING_MONTH", s.Listing.Month, loader.ValidateMonth)).(int)

	s.Portal.LoginURL = r.Track("portal_login_url",
		loader.LoadEnvWithFallback("PORTAL_LOGIN_URL", s.Portal.LoginURL, loader.ValidateHTTPURL)).(string)
	s.Portal.SearchURL = r.Track("portal_search_url",
		loader.LoadEnvWithFallback("PORTAL_SEARCH_URL", s.Portal.SearchURL, loader.ValidateHTTPURL)).(string)
	s.Portal.Login = envconfig.GetEnvString("PORTAL_LOGIN", "")
	s.Portal.Password = envconfig.GetEnvString("PORTAL_PASSWORD", "")

	cfg.Sources = sources
	r.Finish()
	return cfg, nil
}

// Validate checks the settings without which the worker cannot start.
func (c *AppConfig) Validate() error {
	var errs []error
	if _, err := c.Store.Backend(); err != nil {
		errs = append(errs, err)
	}
	if c.Telegram.Token != "" && c.Telegram.ChatID == "" {
		errs = append(errs, ErrMissingChatID)
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		errs = append(errs, fmt.Errorf("TRACE_SAMPLE_RATIO must be within [0, 1], got %v", c.TraceSampleRatio))
	}
	return errors.Join(errs...)
}

// Secrets returns the configured secret values for log masking.
func (c *AppConfig) Secrets() []string {
	var out []string
	for _, s := range []string{c.Telegram.Token, c.Sources.Portal.Password} {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
