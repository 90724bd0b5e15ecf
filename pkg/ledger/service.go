package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/auctionhouse/pkg/events"
	"github.com/google/uuid"
)

var errNoChange = errors.New("no change")

// Service tracks spendable credits between authoritative balance syncs.
// Every mutation runs against a copy of the state, is persisted through the
// Store and only then becomes visible.
type Service struct {
	store            Store
	nowFn            func() time.Time
	logger           OperationLogger
	publisher        events.Publisher
	transactionLimit int
	newID            func() string

	mutex sync.Mutex
	state State
}

// NewService wires a Service with an empty ledger. Call Load to read the stored state.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:            store,
		nowFn:            now,
		transactionLimit: DefaultTransactionLimit,
		newID:            uuid.NewString,
		state:            NewState(),
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Load replaces the in-memory ledger with the stored one. Missing or
// unreadable state yields an empty ledger; Load never fails.
func (service *Service) Load(ctx context.Context) {
	loaded, err := service.store.LoadState(ctx)
	if err != nil {
		loaded = NewState()
	} else {
		loaded = loaded.normalize()
		if len(loaded.Transactions) > service.transactionLimit {
			loaded.Transactions = loaded.Transactions[:service.transactionLimit]
		}
	}
	service.mutex.Lock()
	service.state = loaded
	available := loaded.Available()
	service.mutex.Unlock()

	entry := OperationLog{Operation: operationLoad, Available: available}
	if err != nil && !errors.Is(err, ErrStateNotFound) {
		entry.Error = err
	}
	service.logOperation(ctx, entry)
	service.publish(available)
}

// AvailableCredits returns the derived spendable balance.
func (service *Service) AvailableCredits() Credits {
	service.mutex.Lock()
	defer service.mutex.Unlock()
	return service.state.Available()
}

// Snapshot returns a copy of the current ledger.
func (service *Service) Snapshot() State {
	service.mutex.Lock()
	defer service.mutex.Unlock()
	return service.state.Clone()
}

// Transactions returns the credit history, most recent first.
func (service *Service) Transactions() []Transaction {
	service.mutex.Lock()
	defer service.mutex.Unlock()
	transactions := make([]Transaction, len(service.state.Transactions))
	copy(transactions, service.state.Transactions)
	return transactions
}

// Reservation returns the reservation held for a listing, if any.
func (service *Service) Reservation(listingID string) (Reservation, bool) {
	id, err := NewListingID(listingID)
	if err != nil {
		return Reservation{}, false
	}
	service.mutex.Lock()
	defer service.mutex.Unlock()
	reservation, ok := service.state.Reservations[id]
	return reservation, ok
}

// PendingRefund returns the refund still owed for a listing, if any.
func (service *Service) PendingRefund(listingID string) (PendingRefund, bool) {
	id, err := NewListingID(listingID)
	if err != nil {
		return PendingRefund{}, false
	}
	service.mutex.Lock()
	defer service.mutex.Unlock()
	refund, ok := service.state.PendingRefunds[id]
	return refund, ok
}

// ReservationAmount returns the reserved amount for a listing or zero.
func (service *Service) ReservationAmount(listingID string) Credits {
	reservation, ok := service.Reservation(listingID)
	if !ok {
		return 0
	}
	return reservation.Amount
}

// SetBaseCredits records a fresh authoritative balance. A drop is absorbed into
// local reservation portions (oldest update first), a rise consumes pending
// refunds (oldest first), so only the externally visible change reaches Available.
func (service *Service) SetBaseCredits(ctx context.Context, value Credits, reason string) (SyncResult, error) {
	var result SyncResult
	available, err := service.mutate(ctx, func(state *State, now time.Time) error {
		target := nonNegative(value)
		before := state.Available()
		result.PreviousBase = state.ServerBase
		delta := target - state.ServerBase
		if delta < 0 {
			absorbCharge(state, -delta, now)
		} else if delta > 0 {
			consumeRefunds(state, delta, now)
		}
		state.ServerBase = target
		after := state.Available()
		result.ServerBase = target
		result.Change = after - before
		result.Available = after
		service.record(state, Transaction{
			Type:         TransactionBalanceSync,
			Amount:       after - before,
			Description:  describeSync(reason),
			BalanceAfter: after,
			Timestamp:    now,
		})
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationSync,
		Amount:    value,
		Available: available,
		Reason:    reason,
		Error:     err,
	})
	if err != nil {
		return SyncResult{}, err
	}
	return result, nil
}

// CanAffordBid reports whether moving the reservation on listingID to amount
// fits in the available balance. It does not change state.
func (service *Service) CanAffordBid(listingID string, amount int64) Affordability {
	service.mutex.Lock()
	working := service.state.Clone()
	service.mutex.Unlock()

	required := nonNegative(Credits(amount))
	available := working.Available()
	delta := required
	if id, err := NewListingID(listingID); err == nil && required > 0 {
		result, reserveErr := service.reserve(&working, id, required, "", false, time.Time{})
		switch {
		case reserveErr == nil:
			delta = result.Delta
		case errors.Is(reserveErr, errNoChange):
			delta = 0
		}
	}
	return Affordability{
		OK:        required > 0 && delta <= available,
		Available: available,
		Required:  required,
		Deficit:   nonNegative(delta - available),
		Delta:     delta,
	}
}

// ApplyBidReservation moves the user's reservation on a listing to the bid
// amount. It rejects bids the available balance cannot cover and leaves won
// reservations untouched.
func (service *Service) ApplyBidReservation(ctx context.Context, request BidReservation) (ReservationResult, error) {
	id, err := NewListingID(request.ListingID)
	if err != nil {
		service.logOperation(ctx, OperationLog{Operation: operationReserve, ListingID: request.ListingID, Error: err})
		return ReservationResult{}, err
	}
	amount, err := NewBidAmount(request.Amount)
	if err != nil {
		service.logOperation(ctx, OperationLog{Operation: operationReserve, ListingID: id.String(), Error: err})
		return ReservationResult{}, err
	}
	var result ReservationResult
	available, err := service.mutate(ctx, func(state *State, now time.Time) error {
		reserved, reserveErr := service.reserve(state, id, amount, request.ListingTitle, true, now)
		result = reserved
		return reserveErr
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationReserve,
		ListingID: id.String(),
		Amount:    amount,
		Available: available,
		Error:     err,
	})
	if err != nil {
		return ReservationResult{}, err
	}
	return result, nil
}

// ReleaseReservation drops a reservation. The part the server already charged
// becomes a pending refund; the local part is available again immediately.
func (service *Service) ReleaseReservation(ctx context.Context, request Release) (ReleaseResult, error) {
	id, err := NewListingID(request.ListingID)
	if err != nil {
		service.logOperation(ctx, OperationLog{Operation: operationRelease, ListingID: request.ListingID, Reason: request.Reason, Error: err})
		return ReleaseResult{}, err
	}
	var result ReleaseResult
	available, err := service.mutate(ctx, func(state *State, now time.Time) error {
		released, releaseErr := service.release(state, id, request.Reason, request.ListingTitle, now)
		result = released
		return releaseErr
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationRelease,
		ListingID: id.String(),
		Amount:    result.Amount,
		Available: available,
		Reason:    request.Reason,
		Error:     err,
	})
	if err != nil {
		return ReleaseResult{}, err
	}
	return result, nil
}

// MarkReservationAsWon makes a reservation terminal. No credits move.
func (service *Service) MarkReservationAsWon(ctx context.Context, request Win) (WinResult, error) {
	id, err := NewListingID(request.ListingID)
	if err != nil {
		service.logOperation(ctx, OperationLog{Operation: operationWin, ListingID: request.ListingID, Reason: request.Reason, Error: err})
		return WinResult{}, err
	}
	var result WinResult
	available, err := service.mutate(ctx, func(state *State, now time.Time) error {
		won, winErr := service.win(state, id, request.ListingTitle, request.Reason, now)
		result = won
		return winErr
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationWin,
		ListingID: id.String(),
		Available: available,
		Reason:    request.Reason,
		Error:     err,
	})
	if err != nil {
		return WinResult{}, err
	}
	return result, nil
}

// Reset clears the ledger and its stored copy.
func (service *Service) Reset(ctx context.Context) error {
	service.mutex.Lock()
	clearErr := service.store.ClearState(ctx)
	service.state = NewState()
	service.mutex.Unlock()

	err := WrapError(errorOperationLedger, errorSubjectState, errorCodeClear, clearErr)
	service.logOperation(ctx, OperationLog{Operation: operationReset, Error: err})
	service.publish(0)
	return err
}

// mutate applies change to a copy of the state, persists it and commits it.
// A change returning errNoChange leaves everything as is and reports success.
func (service *Service) mutate(ctx context.Context, change func(state *State, now time.Time) error) (Credits, error) {
	service.mutex.Lock()
	working := service.state.Clone()
	now := service.nowFn()
	if err := change(&working, now); err != nil {
		available := service.state.Available()
		service.mutex.Unlock()
		if errors.Is(err, errNoChange) {
			return available, nil
		}
		return available, err
	}
	working.LastUpdated = now
	if len(working.Transactions) > service.transactionLimit {
		working.Transactions = working.Transactions[:service.transactionLimit]
	}
	if err := service.store.SaveState(ctx, working); err != nil {
		available := service.state.Available()
		service.mutex.Unlock()
		return available, WrapError(errorOperationLedger, errorSubjectState, errorCodePersist, err)
	}
	service.state = working
	available := working.Available()
	service.mutex.Unlock()

	service.publish(available)
	return available, nil
}

func (service *Service) reserve(state *State, id ListingID, amount Credits, title string, enforce bool, now time.Time) (ReservationResult, error) {
	existing, exists := state.Reservations[id]
	if exists && existing.Status == ReservationStatusWon {
		return ReservationResult{Unchanged: true, Reservation: existing}, errNoChange
	}
	refund, hasRefund := state.PendingRefunds[id]
	if exists && existing.Amount == amount && !hasRefund {
		return ReservationResult{Unchanged: true, Reservation: existing}, errNoChange
	}

	availableBefore := state.Available()
	rawBefore := state.rawAvailable()
	reservation := existing
	if !exists {
		reservation = Reservation{ListingID: id, CreatedAt: now}
	}
	reservation.Amount = amount

	// A refund still pending for this listing is money the server holds for
	// it, so a new bid reuses it as already charged.
	if hasRefund {
		folded := minCredits(refund.Amount, nonNegative(amount-reservation.ServerHeld))
		reservation.ServerHeld += folded
		refund.Amount -= folded
		if refund.Amount > 0 {
			refund.UpdatedAt = now
			state.PendingRefunds[id] = refund
		} else {
			delete(state.PendingRefunds, id)
		}
	}
	if reservation.ServerHeld > amount {
		addRefund(state, id, reservation.ServerHeld-amount, firstNonEmpty(title, reservation.Title), now)
		reservation.ServerHeld = amount
	}
	reservation.Title = firstNonEmpty(title, reservation.Title)
	reservation.Status = statusFor(reservation)
	reservation.UpdatedAt = now
	state.Reservations[id] = reservation

	delta := rawBefore - state.rawAvailable()
	if enforce && delta > availableBefore {
		return ReservationResult{}, AffordabilityError{Affordability: Affordability{
			Available: availableBefore,
			Required:  amount,
			Deficit:   delta - availableBefore,
			Delta:     delta,
		}}
	}
	service.record(state, Transaction{
		Type:         TransactionBidReserve,
		Amount:       -delta,
		ListingID:    id.String(),
		ListingTitle: reservation.Title,
		Description:  fmt.Sprintf("Reserved %d credits for %s", amount, displayTitle(reservation.Title, id)),
		BalanceAfter: state.Available(),
		Timestamp:    now,
	})
	return ReservationResult{Delta: delta, Reservation: reservation}, nil
}

func (service *Service) release(state *State, id ListingID, reason string, title string, now time.Time) (ReleaseResult, error) {
	reservation, exists := state.Reservations[id]
	if !exists {
		return ReleaseResult{}, fmt.Errorf("%w: %s", ErrUnknownReservation, id.String())
	}
	if reservation.Status == ReservationStatusWon {
		return ReleaseResult{}, fmt.Errorf("%w: %s", ErrReservationWon, id.String())
	}
	displayName := firstNonEmpty(title, reservation.Title)
	immediate := reservation.LocalPortion()
	pending := reservation.ServerHeld
	delete(state.Reservations, id)
	if pending > 0 {
		addRefund(state, id, pending, displayName, now)
	}
	returned := immediate + pending
	service.record(state, Transaction{
		Type:         TransactionBidRefund,
		Amount:       returned,
		ListingID:    id.String(),
		ListingTitle: displayName,
		Description:  describeRelease(returned, displayTitle(displayName, id), reason),
		BalanceAfter: state.Available(),
		Timestamp:    now,
	})
	return ReleaseResult{Amount: returned, Immediate: immediate, Pending: pending}, nil
}

func (service *Service) win(state *State, id ListingID, title string, reason string, now time.Time) (WinResult, error) {
	reservation, exists := state.Reservations[id]
	if !exists {
		return WinResult{}, fmt.Errorf("%w: %s", ErrUnknownReservation, id.String())
	}
	if reservation.Status == ReservationStatusWon {
		return WinResult{Unchanged: true}, errNoChange
	}
	reservation.Status = ReservationStatusWon
	reservation.Title = firstNonEmpty(title, reservation.Title)
	reservation.UpdatedAt = now
	state.Reservations[id] = reservation
	description := fmt.Sprintf("Won %s for %d credits", displayTitle(reservation.Title, id), reservation.Amount)
	if reason != "" {
		description += " (" + reason + ")"
	}
	service.record(state, Transaction{
		Type:         TransactionBidWon,
		Amount:       0,
		ListingID:    id.String(),
		ListingTitle: reservation.Title,
		Description:  description,
		BalanceAfter: state.Available(),
		Timestamp:    now,
	})
	return WinResult{}, nil
}

func (service *Service) record(state *State, transaction Transaction) {
	transaction.ID = service.newID()
	state.Transactions = append([]Transaction{transaction}, state.Transactions...)
}

func (service *Service) publish(available Credits) {
	if service.publisher == nil {
		return
	}
	service.publisher.Publish(events.CreditsUpdated{Available: available.Int64()})
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

func absorbCharge(state *State, charge Credits, now time.Time) {
	keys := make([]ListingID, 0, len(state.Reservations))
	for key := range state.Reservations {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(left, right int) bool {
		leftReservation, rightReservation := state.Reservations[keys[left]], state.Reservations[keys[right]]
		if !leftReservation.UpdatedAt.Equal(rightReservation.UpdatedAt) {
			return leftReservation.UpdatedAt.Before(rightReservation.UpdatedAt)
		}
		return keys[left].String() < keys[right].String()
	})
	for _, key := range keys {
		if charge <= 0 {
			return
		}
		reservation := state.Reservations[key]
		local := reservation.LocalPortion()
		if local == 0 {
			continue
		}
		taken := minCredits(local, charge)
		reservation.ServerHeld += taken
		reservation.Status = statusFor(reservation)
		reservation.UpdatedAt = now
		state.Reservations[key] = reservation
		charge -= taken
	}
}

func consumeRefunds(state *State, credit Credits, now time.Time) {
	keys := make([]ListingID, 0, len(state.PendingRefunds))
	for key := range state.PendingRefunds {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(left, right int) bool {
		leftRefund, rightRefund := state.PendingRefunds[keys[left]], state.PendingRefunds[keys[right]]
		if !leftRefund.CreatedAt.Equal(rightRefund.CreatedAt) {
			return leftRefund.CreatedAt.Before(rightRefund.CreatedAt)
		}
		return keys[left].String() < keys[right].String()
	})
	for _, key := range keys {
		if credit <= 0 {
			return
		}
		refund := state.PendingRefunds[key]
		taken := minCredits(refund.Amount, credit)
		refund.Amount -= taken
		credit -= taken
		if refund.Amount == 0 {
			delete(state.PendingRefunds, key)
			continue
		}
		refund.UpdatedAt = now
		state.PendingRefunds[key] = refund
	}
}

func addRefund(state *State, id ListingID, amount Credits, title string, now time.Time) {
	refund, exists := state.PendingRefunds[id]
	if !exists {
		refund = PendingRefund{ListingID: id, CreatedAt: now}
	}
	refund.Amount += amount
	refund.Title = firstNonEmpty(title, refund.Title)
	refund.UpdatedAt = now
	state.PendingRefunds[id] = refund
}

func describeSync(reason string) string {
	if reason == "" {
		return defaultSyncDescription
	}
	return "Balance synced: " + reason
}

func describeRelease(amount Credits, title string, reason string) string {
	description := fmt.Sprintf("Released %d credits from %s", amount, title)
	if reason != "" {
		description += " (" + reason + ")"
	}
	return description
}

func displayTitle(title string, id ListingID) string {
	if title != "" {
		return title
	}
	return "listing " + id.String()
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
