// Package redisstore keeps the ledger and the signed-in profile in Redis so
// several processes can share one slot.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/auctionapi"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/session"
	"github.com/MarkoPoloResearchLab/auctionhouse/pkg/ledger"
	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix namespaces every key the store writes.
	KeyPrefix   = "auctionhouse"
	DefaultSlot = "default"

	creditsSuffix = "credits"
	authSuffix    = "auth"

	errorOperationStore = "redisstore"
	errorSubjectState   = "state"
	errorSubjectAuth    = "auth"
	errorCodeDecode     = "decode"
	errorCodeDelete     = "delete"
	errorCodeEncode     = "encode"
	errorCodeGet        = "get"
	errorCodeSet        = "set"
)

// Connect accepts either a redis:// URL or a bare host:port address.
func Connect(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, parseErr := redis.ParseURL(redisURL)
		if parseErr != nil {
			return nil, fmt.Errorf("parse redis url: %w", parseErr)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// Store implements ledger.Store and session.AuthStore.
type Store struct {
	client redis.UniversalClient
	slot   string
}

func New(client redis.UniversalClient, slot string) *Store {
	if strings.TrimSpace(slot) == "" {
		slot = DefaultSlot
	}
	return &Store{client: client, slot: strings.TrimSpace(slot)}
}

// CreditsKey is the key holding the ledger for slot.
func CreditsKey(slot string) string {
	return strings.Join([]string{KeyPrefix, slot, creditsSuffix}, ":")
}

// AuthKey is the key holding the signed-in profile for slot.
func AuthKey(slot string) string {
	return strings.Join([]string{KeyPrefix, slot, authSuffix}, ":")
}

func (store *Store) LoadState(ctx context.Context) (ledger.State, error) {
	raw, err := store.client.Get(ctx, CreditsKey(store.slot)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ledger.State{}, ledger.ErrStateNotFound
		}
		return ledger.State{}, wrapStoreError(errorSubjectState, errorCodeGet, err)
	}
	state, err := decodeState(raw)
	if err != nil {
		return ledger.State{}, wrapStoreError(errorSubjectState, errorCodeDecode, err)
	}
	return state, nil
}

func (store *Store) SaveState(ctx context.Context, state ledger.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return wrapStoreError(errorSubjectState, errorCodeEncode, err)
	}
	if err := store.client.Set(ctx, CreditsKey(store.slot), raw, 0).Err(); err != nil {
		return wrapStoreError(errorSubjectState, errorCodeSet, err)
	}
	return nil
}

func (store *Store) ClearState(ctx context.Context) error {
	if err := store.client.Del(ctx, CreditsKey(store.slot)).Err(); err != nil {
		return wrapStoreError(errorSubjectState, errorCodeDelete, err)
	}
	return nil
}

func (store *Store) LoadAuth(ctx context.Context) (auctionapi.Auth, error) {
	raw, err := store.client.Get(ctx, AuthKey(store.slot)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return auctionapi.Auth{}, session.ErrAuthNotFound
		}
		return auctionapi.Auth{}, wrapStoreError(errorSubjectAuth, errorCodeGet, err)
	}
	var auth auctionapi.Auth
	if err := json.Unmarshal(raw, &auth); err != nil {
		return auctionapi.Auth{}, wrapStoreError(errorSubjectAuth, errorCodeDecode, err)
	}
	return auth, nil
}

func (store *Store) SaveAuth(ctx context.Context, auth auctionapi.Auth) error {
	raw, err := json.Marshal(auth)
	if err != nil {
		return wrapStoreError(errorSubjectAuth, errorCodeEncode, err)
	}
	if err := store.client.Set(ctx, AuthKey(store.slot), raw, 0).Err(); err != nil {
		return wrapStoreError(errorSubjectAuth, errorCodeSet, err)
	}
	return nil
}

func (store *Store) ClearAuth(ctx context.Context) error {
	if err := store.client.Del(ctx, AuthKey(store.slot)).Err(); err != nil {
		return wrapStoreError(errorSubjectAuth, errorCodeDelete, err)
	}
	return nil
}

func decodeState(raw []byte) (ledger.State, error) {
	state := ledger.NewState()
	if err := json.Unmarshal(raw, &state); err != nil {
		return ledger.State{}, err
	}
	return state, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return ledger.WrapError(errorOperationStore, subject, code, err)
}
