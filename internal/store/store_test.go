package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/auctionapi"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/session"
	"github.com/MarkoPoloResearchLab/auctionhouse/pkg/ledger"
	"github.com/google/uuid"
)

const testPostgresURLEnv = "AUCTION_TEST_POSTGRES_URL"

func TestResolve(test *testing.T) {
	dir := test.TempDir()
	testCases := []struct {
		name       string
		raw        string
		wantDriver string
		wantTarget string
		wantSlot   string
	}{
		{name: "memory", raw: "memory://", wantDriver: DriverMemory, wantSlot: "default"},
		{name: "file", raw: "file://" + dir, wantDriver: DriverFile, wantTarget: dir, wantSlot: "default"},
		{name: "bare path", raw: dir, wantDriver: DriverFile, wantTarget: dir, wantSlot: "default"},
		{name: "sqlite memory", raw: "sqlite://:memory:?slot=ada", wantDriver: DriverSQLite, wantTarget: ":memory:", wantSlot: "ada"},
		{name: "sqlite file", raw: "sqlite://" + filepath.Join(dir, "db", "a.db"), wantDriver: DriverSQLite, wantTarget: filepath.Join(dir, "db", "a.db"), wantSlot: "default"},
		{name: "postgres", raw: "postgres://u:p@localhost:5432/auction?sslmode=disable&slot=ada", wantDriver: DriverPostgres, wantTarget: "postgres://u:p@localhost:5432/auction?sslmode=disable", wantSlot: "ada"},
		{name: "redis", raw: "redis://localhost:6379/0?slot=tab-1", wantDriver: DriverRedis, wantTarget: "redis://localhost:6379/0", wantSlot: "tab-1"},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			location, err := Resolve(testCase.raw)
			if err != nil {
				test.Fatalf("resolve: %v", err)
			}
			if location.Driver != testCase.wantDriver || location.Target != testCase.wantTarget || location.Slot != testCase.wantSlot {
				test.Fatalf("unexpected location %+v", location)
			}
		})
	}
}

func TestResolveDefaultsToHomeDirectory(test *testing.T) {
	test.Setenv("HOME", test.TempDir())
	location, err := Resolve("")
	if err != nil {
		test.Fatalf("resolve: %v", err)
	}
	if location.Driver != DriverFile || !strings.HasSuffix(location.Target, ".auctionhouse") {
		test.Fatalf("unexpected default location %+v", location)
	}
}

func TestResolveRejectsUnknownScheme(test *testing.T) {
	if _, err := Resolve("mongodb://localhost"); !errors.Is(err, ErrUnsupportedScheme) {
		test.Fatalf("expected ErrUnsupportedScheme, got %v", err)
	}
}

func TestOpenBackends(test *testing.T) {
	rawURLs := []string{
		"memory://",
		"file://" + test.TempDir(),
		"sqlite://:memory:",
	}
	for _, rawURL := range rawURLs {
		rawURL := rawURL
		test.Run(rawURL, func(test *testing.T) {
			ctx := context.Background()
			backend, err := Open(ctx, rawURL)
			if err != nil {
				test.Fatalf("open: %v", err)
			}
			defer backend.Close()

			service, err := ledger.NewService(backend, time.Now)
			if err != nil {
				test.Fatalf("service: %v", err)
			}
			if _, err := service.SetBaseCredits(ctx, 120, "test"); err != nil {
				test.Fatalf("sync: %v", err)
			}
			state, err := backend.LoadState(ctx)
			if err != nil || state.ServerBase != 120 {
				test.Fatalf("load state: %+v %v", state, err)
			}

			if err := backend.SaveAuth(ctx, auctionapi.Auth{Name: "ada", AccessToken: "token"}); err != nil {
				test.Fatalf("save auth: %v", err)
			}
			if err := backend.ClearAuth(ctx); err != nil {
				test.Fatalf("clear auth: %v", err)
			}
			if _, err := backend.LoadAuth(ctx); !errors.Is(err, session.ErrAuthNotFound) {
				test.Fatalf("expected ErrAuthNotFound, got %v", err)
			}
		})
	}
}

func TestOpenPostgresCreatesSchema(test *testing.T) {
	postgresURL := os.Getenv(testPostgresURLEnv)
	if postgresURL == "" {
		test.Skipf("%s not set", testPostgresURLEnv)
	}
	separator := "?"
	if strings.Contains(postgresURL, "?") {
		separator = "&"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	backend, err := Open(ctx, postgresURL+separator+"slot="+uuid.NewString())
	if err != nil {
		test.Fatalf("open: %v", err)
	}
	defer backend.Close()
	defer backend.ClearState(ctx)

	if _, err := backend.LoadState(ctx); !errors.Is(err, ledger.ErrStateNotFound) {
		test.Fatalf("expected empty slot on a fresh schema, got %v", err)
	}
	service, err := ledger.NewService(backend, time.Now)
	if err != nil {
		test.Fatalf("service: %v", err)
	}
	if _, err := service.SetBaseCredits(ctx, 75, "test"); err != nil {
		test.Fatalf("sync: %v", err)
	}
	if state, err := backend.LoadState(ctx); err != nil || state.ServerBase != 75 {
		test.Fatalf("load state: %+v %v", state, err)
	}
}
