// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr    string
	DBPath        string
	PublicURL     string
	APIKey        string
	AdminUserID   string
	SecretKey     []byte // 32-byte AES key, nil when unset.
	LedgerURL     string
	LedgerAPIKey  string
	SweepInterval time.Duration // Zero disables the scheduled sweep.
}

// RedirectURL is the externally reachable OAuth callback URL registered with
// the Xero app.
func (c *Config) RedirectURL() string {
	return strings.TrimRight(c.PublicURL, "/") + "/oauth/callback"
}

// Load reads configuration from the environment and returns a validated
// Config. A .env file in the working directory is applied first when present.
// XEROSYNC_API_KEY is required. XEROSYNC_SECRET_KEY is optional but token
// storage stays disabled without it; when set it must be 64 hex characters
// (a 32-byte AES-256 key). Optional variables with defaults:
// XEROSYNC_LISTEN_ADDR (127.0.0.1:8080), XEROSYNC_DB_PATH (xerosync.db),
// XEROSYNC_PUBLIC_URL (http://<listen addr>), XEROSYNC_ADMIN_USER (admin),
// XEROSYNC_SWEEP_INTERVAL (disabled).
func Load() (*Config, error) {
	_ = godotenv.Load()

	apiKey := os.Getenv("XEROSYNC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("XEROSYNC_API_KEY is required")
	}

	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("XEROSYNC_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "xerosync.db"
	if v, ok := os.LookupEnv("XEROSYNC_DB_PATH"); ok {
		dbPath = v
	}

	publicURL := "http://" + listenAddr
	if v, ok := os.LookupEnv("XEROSYNC_PUBLIC_URL"); ok {
		publicURL = v
	}

	adminUser := "admin"
	if v, ok := os.LookupEnv("XEROSYNC_ADMIN_USER"); ok && v != "" {
		adminUser = v
	}

	var secretKey []byte
	if v := os.Getenv("XEROSYNC_SECRET_KEY"); v != "" {
		decoded, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("XEROSYNC_SECRET_KEY is not valid hex: %w", err)
		}
		if len(decoded) != 32 {
			return nil, fmt.Errorf("XEROSYNC_SECRET_KEY must decode to 32 bytes, got %d", len(decoded))
		}
		secretKey = decoded
	}

	var sweepInterval time.Duration
	if v, ok := os.LookupEnv("XEROSYNC_SWEEP_INTERVAL"); ok && v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("XEROSYNC_SWEEP_INTERVAL has invalid duration %q: %w", v, err)
		}
		sweepInterval = parsed
	}

	return &Config{
		ListenAddr:    listenAddr,
		DBPath:        dbPath,
		PublicURL:     publicURL,
		APIKey:        apiKey,
		AdminUserID:   adminUser,
		SecretKey:     secretKey,
		LedgerURL:     os.Getenv("XEROSYNC_LNBITS_URL"),
		LedgerAPIKey:  os.Getenv("XEROSYNC_LNBITS_API_KEY"),
		SweepInterval: sweepInterval,
	}, nil
}
