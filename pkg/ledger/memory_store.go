package ledger

import (
	"context"
	"sync"
)

// MemoryStore keeps the ledger in process memory. It backs ephemeral sessions
// and tests.
type MemoryStore struct {
	mutex sync.Mutex
	state *State
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// LoadState returns a copy of the stored ledger.
func (store *MemoryStore) LoadState(_ context.Context) (State, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.state == nil {
		return State{}, ErrStateNotFound
	}
	return store.state.Clone(), nil
}

// SaveState stores a copy of state.
func (store *MemoryStore) SaveState(_ context.Context, state State) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	cloned := state.Clone()
	store.state = &cloned
	return nil
}

// ClearState forgets the stored ledger.
func (store *MemoryStore) ClearState(_ context.Context) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.state = nil
	return nil
}
