package session

import (
	"context"
	"errors"
	"sync"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/auctionapi"
)

// ErrAuthNotFound is returned by AuthStore.LoadAuth when nobody is signed in.
var ErrAuthNotFound = errors.New("auth not found")

// AuthStore persists the signed-in profile.
type AuthStore interface {
	LoadAuth(ctx context.Context) (auctionapi.Auth, error)
	SaveAuth(ctx context.Context, auth auctionapi.Auth) error
	ClearAuth(ctx context.Context) error
}

// MemoryAuthStore keeps the auth profile in process memory.
type MemoryAuthStore struct {
	mutex sync.Mutex
	auth  *auctionapi.Auth
}

// NewMemoryAuthStore returns an empty MemoryAuthStore.
func NewMemoryAuthStore() *MemoryAuthStore {
	return &MemoryAuthStore{}
}

func (store *MemoryAuthStore) LoadAuth(context.Context) (auctionapi.Auth, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.auth == nil {
		return auctionapi.Auth{}, ErrAuthNotFound
	}
	return *store.auth, nil
}

func (store *MemoryAuthStore) SaveAuth(_ context.Context, auth auctionapi.Auth) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.auth = &auth
	return nil
}

func (store *MemoryAuthStore) ClearAuth(context.Context) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.auth = nil
	return nil
}
