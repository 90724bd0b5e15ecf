// Package store opens the persistence backend named by a store URL.
package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/session"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/store/filestore"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/store/redisstore"
	"github.com/MarkoPoloResearchLab/auctionhouse/pkg/ledger"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	// DefaultURL keeps both slots as JSON files in the user's home directory.
	DefaultURL = "file://~/.auctionhouse"

	DriverFile     = "file"
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"

	slotParameter     = "slot"
	defaultSQLiteFile = "auctionhouse.db"
	sqliteMemoryPath  = ":memory:"
)

// ErrUnsupportedScheme is returned for store URLs with an unknown scheme.
var ErrUnsupportedScheme = errors.New("unsupported store scheme")

// Backend stores both the ledger slot and the auth slot.
type Backend interface {
	ledger.Store
	session.AuthStore
	Close() error
}

type backend struct {
	ledger.Store
	session.AuthStore
	close func() error
}

func (value backend) Close() error {
	if value.close == nil {
		return nil
	}
	return value.close()
}

// Location is a parsed store URL.
type Location struct {
	Driver string
	// Target is the directory, sqlite path, or connection string handed to the driver.
	Target string
	Slot   string
}

// Open parses rawURL and connects the matching backend. SQLite schemas are
// migrated automatically; Postgres schemas are expected to exist.
func Open(ctx context.Context, rawURL string) (Backend, error) {
	location, err := Resolve(rawURL)
	if err != nil {
		return nil, err
	}
	switch location.Driver {
	case DriverMemory:
		return backend{Store: ledger.NewMemoryStore(), AuthStore: session.NewMemoryAuthStore()}, nil
	case DriverFile:
		files := filestore.New(location.Target)
		return backend{Store: files, AuthStore: files}, nil
	case DriverRedis:
		client, err := redisstore.Connect(ctx, location.Target)
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		redisStore := redisstore.New(client, location.Slot)
		return backend{Store: redisStore, AuthStore: redisStore, close: client.Close}, nil
	case DriverSQLite, DriverPostgres:
		db, cleanup, err := openDatabase(location)
		if err != nil {
			return nil, err
		}
		gormStore := gormstore.New(db, location.Slot)
		if err := gormStore.Migrate(ctx); err != nil {
			_ = cleanup()
			return nil, err
		}
		return backend{Store: gormStore, AuthStore: gormStore, close: cleanup}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnsupportedScheme, location.Driver)
	}
}

// Resolve turns a store URL into a Location without touching any backend
// other than creating directories for file and sqlite targets.
func Resolve(rawURL string) (Location, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		trimmed = DefaultURL
	}
	scheme, _, found := strings.Cut(trimmed, "://")
	if !found {
		path, err := expandHome(trimmed)
		if err != nil {
			return Location{}, err
		}
		return Location{Driver: DriverFile, Target: path, Slot: gormstore.DefaultSlot}, nil
	}

	switch scheme {
	case "memory":
		return Location{Driver: DriverMemory, Slot: gormstore.DefaultSlot}, nil
	case "file":
		path, err := expandHome(strings.TrimPrefix(trimmed, "file://"))
		if err != nil {
			return Location{}, err
		}
		return Location{Driver: DriverFile, Target: path, Slot: gormstore.DefaultSlot}, nil
	case "postgres", "postgresql":
		target, slot, err := splitSlot(trimmed)
		if err != nil {
			return Location{}, err
		}
		return Location{Driver: DriverPostgres, Target: target, Slot: slot}, nil
	case "redis", "rediss":
		target, slot, err := splitSlot(trimmed)
		if err != nil {
			return Location{}, err
		}
		return Location{Driver: DriverRedis, Target: target, Slot: slot}, nil
	case "sqlite":
		path, rawQuery, _ := strings.Cut(strings.TrimPrefix(trimmed, "sqlite://"), "?")
		query, err := url.ParseQuery(rawQuery)
		if err != nil {
			return Location{}, fmt.Errorf("parse sqlite url: %w", err)
		}
		if path == "" || path == "/" {
			path = defaultSQLiteFile
		}
		sqlitePath, err := normalizeSQLitePath(path)
		if err != nil {
			return Location{}, err
		}
		return Location{Driver: DriverSQLite, Target: sqlitePath, Slot: slotFrom(query)}, nil
	default:
		return Location{}, fmt.Errorf("%w %q", ErrUnsupportedScheme, scheme)
	}
}

func openDatabase(location Location) (*gorm.DB, func() error, error) {
	config := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	var (
		db  *gorm.DB
		err error
	)
	switch location.Driver {
	case DriverPostgres:
		db, err = gorm.Open(postgres.Open(location.Target), config)
	case DriverSQLite:
		db, err = gorm.Open(sqlite.Open(location.Target), config)
	default:
		return nil, nil, fmt.Errorf("%w %q", ErrUnsupportedScheme, location.Driver)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", location.Driver, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	if location.Target == sqliteMemoryPath {
		sqlDB.SetMaxOpenConns(1)
	}
	return db, sqlDB.Close, nil
}

// splitSlot removes the slot parameter so the remaining URL can be handed to
// the driver unchanged.
func splitSlot(rawURL string) (string, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("parse store url: %w", err)
	}
	query := parsed.Query()
	slot := slotFrom(query)
	query.Del(slotParameter)
	parsed.RawQuery = query.Encode()
	return parsed.String(), slot, nil
}

func slotFrom(query url.Values) string {
	slot := strings.TrimSpace(query.Get(slotParameter))
	if slot == "" {
		return gormstore.DefaultSlot
	}
	return slot
}

func expandHome(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}

func normalizeSQLitePath(path string) (string, error) {
	if path == sqliteMemoryPath {
		return path, nil
	}
	path, err := expandHome(path)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(".", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	return path, nil
}
