package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/auctionapi"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/store"
)

func TestValidateAppliesDefaults(test *testing.T) {
	cfg := Config{}
	if err := cfg.Validate(); err != nil {
		test.Fatalf("validate: %v", err)
	}
	if cfg.APIBaseURL != auctionapi.DefaultBaseURL || cfg.StoreURL != store.DefaultURL {
		test.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.APITimeout != 15*time.Second || cfg.ListenAddr != ":8090" || len(cfg.AllowedOrigins) != 1 {
		test.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestValidateRejectsRelativeBaseURL(test *testing.T) {
	cfg := Config{APIBaseURL: "api.example"}
	if err := cfg.Validate(); err == nil {
		test.Fatalf("expected error for relative base url")
	}
}

func TestParseAllowedOrigins(test *testing.T) {
	origins := ParseAllowedOrigins(" http://a.test, ,http://b.test ")
	if len(origins) != 2 || origins[0] != "http://a.test" || origins[1] != "http://b.test" {
		test.Fatalf("unexpected origins %v", origins)
	}
	if len(ParseAllowedOrigins("  ")) != 0 {
		test.Fatalf("expected no origins")
	}
}

func TestLoadDotEnv(test *testing.T) {
	if err := LoadDotEnv(filepath.Join(test.TempDir(), "missing.env")); err != nil {
		test.Fatalf("missing file should be ignored: %v", err)
	}
	path := filepath.Join(test.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("AUCTION_TEST_DOTENV=loaded\n"), 0o600); err != nil {
		test.Fatalf("write: %v", err)
	}
	test.Setenv("AUCTION_TEST_DOTENV", "")
	os.Unsetenv("AUCTION_TEST_DOTENV")
	if err := LoadDotEnv(path); err != nil {
		test.Fatalf("load: %v", err)
	}
	if got := os.Getenv("AUCTION_TEST_DOTENV"); got != "loaded" {
		test.Fatalf("expected loaded, got %q", got)
	}
}
