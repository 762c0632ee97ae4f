// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Listing source kinds accepted by LISTING_SOURCE.
const (
	SourceBrowser = "browser"
	SourceFeed    = "feed"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	DatabasePath     string
	LogLevel         string
	AllowedUsers     []int64
	AdminChatID      int64

	// Listing source selection and endpoints. SearchURL and FeedURL are
	// templates with {keyword}, {location}, {min} and {max} placeholders.
	ListingSource string
	SearchURL     string
	FeedURL       string
	BaseURL       string
	Headless      bool

	GeocoderURL string

	PairsLogPath string
	StatusPath   string
	DebugDumpDir string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	dbPath := envOrDefault("DATABASE_PATH", "./data/marketwatch.db")
	logLevel := envOrDefault("LOG_LEVEL", "info")

	var allowedUsers []int64
	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			allowedUsers = append(allowedUsers, uid)
		}
	}

	var adminChatID int64
	if raw := os.Getenv("ADMIN_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_CHAT_ID %q: %w", raw, err)
		}
		adminChatID = id
	}

	source := envOrDefault("LISTING_SOURCE", SourceBrowser)
	if source != SourceBrowser && source != SourceFeed {
		return nil, fmt.Errorf("invalid LISTING_SOURCE %q: must be %q or %q", source, SourceBrowser, SourceFeed)
	}

	feedURL := os.Getenv("MARKET_FEED_URL")
	if source == SourceFeed && feedURL == "" {
		return nil, fmt.Errorf("MARKET_FEED_URL is required when LISTING_SOURCE=feed")
	}

	headless := true
	if raw := os.Getenv("HEADLESS"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid HEADLESS %q: %w", raw, err)
		}
		headless = v
	}

	return &Config{
		TelegramBotToken: token,
		DatabasePath:     dbPath,
		LogLevel:         logLevel,
		AllowedUsers:     allowedUsers,
		AdminChatID:      adminChatID,
		ListingSource:    source,
		SearchURL: envOrDefault("MARKET_SEARCH_URL",
			"https://www.facebook.com/marketplace/{location}/search?minPrice={min}&maxPrice={max}&daysSinceListed=1&sortBy=creation_time_descend&query={keyword}"),
		FeedURL:      feedURL,
		BaseURL:      envOrDefault("MARKET_BASE_URL", "https://www.facebook.com"),
		Headless:     headless,
		GeocoderURL:  envOrDefault("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
		PairsLogPath: envOrDefault("PAIRS_LOG_PATH", "./data/pairs_log.txt"),
		StatusPath:   envOrDefault("STATUS_SNAPSHOT_PATH", "./data/monitoring_status.json"),
		DebugDumpDir: os.Getenv("DEBUG_DUMP_DIR"),
	}, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// IsAdmin reports whether a chat is the configured admin chat. With no admin
// configured, nobody is.
func (c *Config) IsAdmin(chatID int64) bool {
	return c.AdminChatID != 0 && chatID == c.AdminChatID
}
