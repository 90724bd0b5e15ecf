// Package config holds the runtime settings shared by every auction command.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/auctionapi"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/store"
	"github.com/joho/godotenv"
)

const (
	defaultListenAddr    = ":8090"
	defaultAllowedOrigin = "http://localhost:8000"
	defaultAPITimeout    = 15 * time.Second
)

// Config aggregates runtime settings.
type Config struct {
	APIBaseURL     string
	APIKey         string
	APITimeout     time.Duration
	StoreURL       string
	ListenAddr     string
	AllowedOrigins []string
	Verbose        bool
}

// Validate applies defaults and rejects unusable values.
func (cfg *Config) Validate() error {
	cfg.APIBaseURL = defaultIfEmpty(cfg.APIBaseURL, auctionapi.DefaultBaseURL)
	cfg.StoreURL = defaultIfEmpty(cfg.StoreURL, store.DefaultURL)
	cfg.ListenAddr = defaultIfEmpty(cfg.ListenAddr, defaultListenAddr)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APITimeout <= 0 {
		cfg.APITimeout = defaultAPITimeout
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	parsed, err := url.Parse(cfg.APIBaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("api base url %q must be absolute", cfg.APIBaseURL)
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("listen addr is required")
	}
	return nil
}

// ClientConfig returns the settings for the remote API client.
func (cfg Config) ClientConfig() auctionapi.Config {
	return auctionapi.Config{BaseURL: cfg.APIBaseURL, APIKey: cfg.APIKey, Timeout: cfg.APITimeout}
}

// LoadDotEnv loads variables from path into the process environment without
// overriding ones already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ParseAllowedOrigins splits comma-delimited origins into a slice.
func ParseAllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}
