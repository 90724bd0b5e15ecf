package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/auctionapi"
	"github.com/MarkoPoloResearchLab/auctionhouse/pkg/events"
	"github.com/MarkoPoloResearchLab/auctionhouse/pkg/ledger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultSyncStaleAfter is how long a server balance is trusted before
	// SyncCredits asks the server again.
	DefaultSyncStaleAfter = 60 * time.Second

	reasonStoredProfile = "Restored from stored profile"
	reasonLogin         = "Synced after login"
	reasonRegistration  = "Synced after registration"
	reasonRefresh       = "Synced with profile"
	reasonExternal      = "Reported by another component"

	syncFlightKey = "credits"
)

var (
	// ErrInvalidSessionConfig indicates missing dependencies.
	ErrInvalidSessionConfig = errors.New("invalid session configuration")
	// ErrRegisteredButNotSignedIn is returned when registration succeeds and the follow-up login does not.
	ErrRegisteredButNotSignedIn = errors.New("registration succeeded but login failed")
)

// API is the part of the auction API the session talks to.
type API interface {
	Login(ctx context.Context, credentials auctionapi.Credentials) (auctionapi.Auth, error)
	Register(ctx context.Context, registration auctionapi.Registration) (auctionapi.Profile, error)
	GetProfile(ctx context.Context, name string, include auctionapi.Include) (auctionapi.Profile, error)
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *zap.Logger) Option {
	return func(session *Session) {
		if logger != nil {
			session.logger = logger
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(session *Session) {
		if now != nil {
			session.now = now
		}
	}
}

// WithSyncStaleAfter overrides DefaultSyncStaleAfter.
func WithSyncStaleAfter(staleAfter time.Duration) Option {
	return func(session *Session) {
		if staleAfter >= 0 {
			session.staleAfter = staleAfter
		}
	}
}

// Session is the signed-in context shared by page controllers: the auth
// profile, the credit ledger and the bus that links them.
type Session struct {
	store      AuthStore
	credits    *ledger.Service
	api        API
	bus        *events.Bus
	logger     *zap.Logger
	now        func() time.Time
	staleAfter time.Duration

	flights singleflight.Group

	mutex       sync.RWMutex
	auth        auctionapi.Auth
	lastSync    time.Time
	unsubscribe func()
}

// New wires a Session. Call Start before use and Close when done.
func New(store AuthStore, credits *ledger.Service, api API, bus *events.Bus, options ...Option) (*Session, error) {
	if store == nil || credits == nil || api == nil || bus == nil {
		return nil, fmt.Errorf("%w: auth store, ledger, api and bus are required", ErrInvalidSessionConfig)
	}
	session := &Session{
		store:      store,
		credits:    credits,
		api:        api,
		bus:        bus,
		logger:     zap.NewNop(),
		now:        time.Now,
		staleAfter: DefaultSyncStaleAfter,
	}
	for _, option := range options {
		if option != nil {
			option(session)
		}
	}
	return session, nil
}

// Start restores the stored profile and ledger, subscribes to externally
// reported balances and refreshes credits from the server when signed in.
// Unreadable or expired auth is treated as signed out.
func (session *Session) Start(ctx context.Context) {
	session.credits.Load(ctx)

	auth, err := session.store.LoadAuth(ctx)
	switch {
	case errors.Is(err, ErrAuthNotFound):
		auth = auctionapi.Auth{}
	case err != nil:
		session.logger.Warn("unable to read stored auth", zap.Error(err))
		auth = auctionapi.Auth{}
	case auth.SignedIn() && auctionapi.TokenExpired(auth.AccessToken, session.now()):
		session.logger.Info("stored access token expired", zap.String("name", auth.Name))
		if clearErr := session.store.ClearAuth(ctx); clearErr != nil {
			session.logger.Warn("unable to clear expired auth", zap.Error(clearErr))
		}
		auth = auctionapi.Auth{}
	}

	session.mutex.Lock()
	session.auth = auth
	session.lastSync = lastBalanceSync(session.credits.Transactions())
	if session.unsubscribe == nil {
		session.unsubscribe = events.On(session.bus, session.handleExternalSync)
	}
	session.mutex.Unlock()

	session.publishAuth(auth)
	if !auth.SignedIn() {
		if resetErr := session.credits.Reset(ctx); resetErr != nil {
			session.logger.Warn("unable to reset credits", zap.Error(resetErr))
		}
		return
	}
	if auth.Credits != nil {
		if _, syncErr := session.credits.SetBaseCredits(ctx, ledger.Credits(*auth.Credits), reasonStoredProfile); syncErr != nil {
			session.logger.Warn("unable to restore credits", zap.Error(syncErr))
		}
	}
	if _, syncErr := session.SyncCredits(ctx, true); syncErr != nil {
		session.logger.Warn("unable to synchronize credits from API", zap.Error(syncErr))
	}
}

// Close detaches the session from the bus.
func (session *Session) Close() {
	session.mutex.Lock()
	unsubscribe := session.unsubscribe
	session.unsubscribe = nil
	session.mutex.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Auth returns the current auth profile.
func (session *Session) Auth() auctionapi.Auth {
	session.mutex.RLock()
	defer session.mutex.RUnlock()
	return session.auth
}

// SignedIn reports whether an access token is present.
func (session *Session) SignedIn() bool {
	return session.Auth().SignedIn()
}

// UserName returns the signed-in name or an empty string.
func (session *Session) UserName() string {
	auth := session.Auth()
	if !auth.SignedIn() {
		return ""
	}
	return auth.Name
}

// Token returns the access token. It satisfies auctionapi.TokenSource.
func (session *Session) Token() string {
	return session.Auth().AccessToken
}

// Credits returns the ledger owned by the session.
func (session *Session) Credits() *ledger.Service {
	return session.credits
}

// Bus returns the session's event bus.
func (session *Session) Bus() *events.Bus {
	return session.bus
}

// Login signs in, stores the profile and seeds the ledger with the server balance.
func (session *Session) Login(ctx context.Context, credentials auctionapi.Credentials) (auctionapi.Auth, error) {
	return session.signIn(ctx, credentials, reasonLogin)
}

// Register creates the account and signs in with the same credentials.
func (session *Session) Register(ctx context.Context, registration auctionapi.Registration) (auctionapi.Auth, error) {
	if _, err := session.api.Register(ctx, registration); err != nil {
		return auctionapi.Auth{}, err
	}
	auth, err := session.signIn(ctx, auctionapi.Credentials{Email: registration.Email, Password: registration.Password}, reasonRegistration)
	if errors.Is(err, auctionapi.ErrLoginFailed) {
		return auctionapi.Auth{}, ErrRegisteredButNotSignedIn
	}
	return auth, err
}

// Logout clears the auth profile and the ledger.
func (session *Session) Logout(ctx context.Context) error {
	clearErr := session.store.ClearAuth(ctx)
	session.mutex.Lock()
	session.auth = auctionapi.Auth{}
	session.lastSync = time.Time{}
	session.mutex.Unlock()
	resetErr := session.credits.Reset(ctx)
	session.bus.Publish(events.AuthChanged{})
	return errors.Join(clearErr, resetErr)
}

// SyncCredits refreshes the server balance from the profile endpoint. Unless
// force is set it does nothing while the last sync is fresh. Concurrent calls
// share one request. It reports whether a sync ran.
func (session *Session) SyncCredits(ctx context.Context, force bool) (bool, error) {
	auth := session.Auth()
	if !auth.SignedIn() || strings.TrimSpace(auth.Name) == "" {
		return false, nil
	}
	if !force && !session.stale() {
		return false, nil
	}
	_, err, _ := session.flights.Do(syncFlightKey, func() (any, error) {
		profile, err := session.api.GetProfile(ctx, auth.Name, auctionapi.Include{})
		if err != nil {
			return nil, err
		}
		return nil, session.applyServerCredits(ctx, profile.Credits, reasonRefresh)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (session *Session) signIn(ctx context.Context, credentials auctionapi.Credentials, reason string) (auctionapi.Auth, error) {
	auth, err := session.api.Login(ctx, credentials)
	if err != nil {
		return auctionapi.Auth{}, err
	}
	previous := session.UserName()
	if previous != "" && !strings.EqualFold(previous, auth.Name) {
		if resetErr := session.credits.Reset(ctx); resetErr != nil {
			session.logger.Warn("unable to reset credits for new user", zap.Error(resetErr))
		}
	}
	if err := session.store.SaveAuth(ctx, auth); err != nil {
		return auctionapi.Auth{}, fmt.Errorf("store auth: %w", err)
	}
	session.mutex.Lock()
	session.auth = auth
	session.mutex.Unlock()
	session.publishAuth(auth)

	profile, profileErr := session.api.GetProfile(ctx, auth.Name, auctionapi.Include{})
	if profileErr != nil {
		session.logger.Warn("unable to fetch profile after sign-in", zap.String("name", auth.Name), zap.Error(profileErr))
		return auth, nil
	}
	if err := session.applyServerCredits(ctx, profile.Credits, reason); err != nil {
		session.logger.Warn("unable to record credits after sign-in", zap.Error(err))
	}
	return session.Auth(), nil
}

// applyServerCredits records an authoritative balance in the ledger and the
// stored profile.
func (session *Session) applyServerCredits(ctx context.Context, credits int64, reason string) error {
	if _, err := session.credits.SetBaseCredits(ctx, ledger.Credits(credits), reason); err != nil {
		return err
	}
	session.mutex.Lock()
	session.lastSync = session.now()
	current := session.auth
	session.mutex.Unlock()

	if current.Credits != nil && *current.Credits == credits {
		return nil
	}
	updated := current.WithCredits(credits)
	if err := session.store.SaveAuth(ctx, updated); err != nil {
		return fmt.Errorf("store auth credits: %w", err)
	}
	session.mutex.Lock()
	session.auth = updated
	session.mutex.Unlock()
	session.publishAuth(updated)
	return nil
}

func (session *Session) handleExternalSync(event events.BaseCreditsSynced) {
	reason := event.Reason
	if reason == "" {
		reason = reasonExternal
	}
	if _, err := session.credits.SetBaseCredits(context.Background(), ledger.Credits(event.Credits), reason); err != nil {
		session.logger.Warn("unable to apply reported credits", zap.Int64("credits", event.Credits), zap.Error(err))
	}
}

func (session *Session) publishAuth(auth auctionapi.Auth) {
	session.bus.Publish(events.AuthChanged{Name: auth.Name, SignedIn: auth.SignedIn(), Credits: auth.Credits})
}

func (session *Session) stale() bool {
	session.mutex.RLock()
	defer session.mutex.RUnlock()
	if session.lastSync.IsZero() {
		return true
	}
	return session.now().Sub(session.lastSync) >= session.staleAfter
}

func lastBalanceSync(transactions []ledger.Transaction) time.Time {
	for _, transaction := range transactions {
		if transaction.Type == ledger.TransactionBalanceSync {
			return transaction.Timestamp
		}
	}
	return time.Time{}
}
