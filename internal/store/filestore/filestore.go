package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/auctionapi"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/session"
	"github.com/MarkoPoloResearchLab/auctionhouse/pkg/ledger"
)

const (
	// AuthFileName holds the signed-in profile.
	AuthFileName = "auction-house-auth.json"
	// CreditsFileName holds the credit ledger.
	CreditsFileName = "auction-house-credit-balance.json"

	dirPermissions  = 0o700
	filePermissions = 0o600

	errorOperationStore = "filestore"
	errorSubjectAuth    = "auth"
	errorSubjectCredits = "credits"
	errorCodeRead       = "read"
	errorCodeDecode     = "decode"
	errorCodeEncode     = "encode"
	errorCodeWrite      = "write"
	errorCodeRemove     = "remove"
)

// Store keeps the auth profile and the ledger as JSON files in one directory.
type Store struct {
	dir   string
	mutex sync.Mutex
}

// New returns a Store rooted at dir. The directory is created on first write.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory holding the files.
func (store *Store) Dir() string {
	return store.dir
}

func (store *Store) LoadState(_ context.Context) (ledger.State, error) {
	var state ledger.State
	if err := store.read(CreditsFileName, errorSubjectCredits, &state); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ledger.State{}, ledger.ErrStateNotFound
		}
		return ledger.State{}, err
	}
	return state, nil
}

func (store *Store) SaveState(_ context.Context, state ledger.State) error {
	return store.write(CreditsFileName, errorSubjectCredits, state)
}

func (store *Store) ClearState(_ context.Context) error {
	return store.remove(CreditsFileName, errorSubjectCredits)
}

func (store *Store) LoadAuth(_ context.Context) (auctionapi.Auth, error) {
	var auth auctionapi.Auth
	if err := store.read(AuthFileName, errorSubjectAuth, &auth); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return auctionapi.Auth{}, session.ErrAuthNotFound
		}
		return auctionapi.Auth{}, err
	}
	return auth, nil
}

func (store *Store) SaveAuth(_ context.Context, auth auctionapi.Auth) error {
	return store.write(AuthFileName, errorSubjectAuth, auth)
}

func (store *Store) ClearAuth(_ context.Context) error {
	return store.remove(AuthFileName, errorSubjectAuth)
}

// Close is a no-op; it lets Store satisfy the backend contract.
func (store *Store) Close() error {
	return nil
}

func (store *Store) read(name string, subject string, target any) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	payload, err := os.ReadFile(filepath.Join(store.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return wrapStoreError(subject, errorCodeRead, err)
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return wrapStoreError(subject, errorCodeDecode, err)
	}
	return nil
}

// write replaces the file through a rename so readers never see a partial payload.
func (store *Store) write(name string, subject string, value any) error {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return wrapStoreError(subject, errorCodeEncode, err)
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if err := os.MkdirAll(store.dir, dirPermissions); err != nil {
		return wrapStoreError(subject, errorCodeWrite, err)
	}
	temporary, err := os.CreateTemp(store.dir, name+".*.tmp")
	if err != nil {
		return wrapStoreError(subject, errorCodeWrite, err)
	}
	temporaryName := temporary.Name()
	if _, err := temporary.Write(payload); err != nil {
		_ = temporary.Close()
		_ = os.Remove(temporaryName)
		return wrapStoreError(subject, errorCodeWrite, err)
	}
	if err := temporary.Close(); err != nil {
		_ = os.Remove(temporaryName)
		return wrapStoreError(subject, errorCodeWrite, err)
	}
	if err := os.Chmod(temporaryName, filePermissions); err != nil {
		_ = os.Remove(temporaryName)
		return wrapStoreError(subject, errorCodeWrite, err)
	}
	if err := os.Rename(temporaryName, filepath.Join(store.dir, name)); err != nil {
		_ = os.Remove(temporaryName)
		return wrapStoreError(subject, errorCodeWrite, err)
	}
	return nil
}

func (store *Store) remove(name string, subject string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	err := os.Remove(filepath.Join(store.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return wrapStoreError(subject, errorCodeRemove, err)
	}
	return nil
}

func wrapStoreError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}
