package config

import (
	"time"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Supabase
		OpenLibrary
		CoverSync
		Shelf
		Sessions
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Supabase struct {
		URL    string // Project REST endpoint; empty disables cloud mode
		APIKey string // Anonymous key sent as apikey header
	}
	OpenLibrary struct {
		BaseURL string
	}
	CoverSync struct {
		Enabled  bool
		Schedule string // Cron format: "*/30 * * * *" = every 30 minutes
	}
	Shelf struct {
		Debounce time.Duration // Quiet period before a cloud write
	}
	Sessions struct {
		Lifetime      time.Duration
		SecureCookies bool // Set to false for local dev without HTTPS

		// Rate limiting configuration
		MaxSignInAttempts int           // Max failed attempts before lockout (default: 5)
		RateLimitWindow   time.Duration // Time window for counting attempts (default: 15m)
		LockoutDuration   time.Duration // How long to lock out (default: 30m)
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)

	// Supabase defaults; cloud mode stays off until both are set
	v.SetDefault("supabase_url", "")
	v.SetDefault("supabase_api_key", "")

	v.SetDefault("openlibrary_base_url", "https://openlibrary.org")

	// Cover backfill defaults
	v.SetDefault("cover_sync_enabled", true)
	v.SetDefault("cover_sync_schedule", "*/30 * * * *") // Every 30 minutes

	v.SetDefault("shelf_debounce", "500ms")

	// Session defaults
	v.SetDefault("session_lifetime", "720h") // 30 days
	v.SetDefault("secure_cookies", true)     // HTTPS-only cookies
	v.SetDefault("max_sign_in_attempts", 5)
	v.SetDefault("rate_limit_window", "15m")
	v.SetDefault("lockout_duration", "30m")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Supabase: Supabase{
			URL:    v.GetString("SUPABASE_URL"),
			APIKey: v.GetString("SUPABASE_API_KEY"),
		},
		OpenLibrary: OpenLibrary{
			BaseURL: v.GetString("OPENLIBRARY_BASE_URL"),
		},
		CoverSync: CoverSync{
			Enabled:  v.GetBool("COVER_SYNC_ENABLED"),
			Schedule: v.GetString("COVER_SYNC_SCHEDULE"),
		},
		Shelf: Shelf{
			Debounce: v.GetDuration("SHELF_DEBOUNCE"),
		},
		Sessions: Sessions{
			Lifetime:          v.GetDuration("SESSION_LIFETIME"),
			SecureCookies:     v.GetBool("SECURE_COOKIES"),
			MaxSignInAttempts: v.GetInt("MAX_SIGN_IN_ATTEMPTS"),
			RateLimitWindow:   v.GetDuration("RATE_LIMIT_WINDOW"),
			LockoutDuration:   v.GetDuration("LOCKOUT_DURATION"),
		},
	}
}

// CloudEnabled reports whether the cloud backend can be constructed at all.
func (c *Config) CloudEnabled() bool {
	return c.Supabase.URL != "" && c.Supabase.APIKey != ""
}
