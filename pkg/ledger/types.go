package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Credits is a whole number of auction credits.
type Credits int64

// Int64 returns the raw value.
func (credits Credits) Int64() int64 {
	return int64(credits)
}

// NewBidAmount validates a bid amount and ensures it is strictly positive.
func NewBidAmount(raw int64) (Credits, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	return Credits(raw), nil
}

// ListingID identifies an auction listing.
type ListingID struct {
	value string
}

// NewListingID validates and normalizes a listing id.
func NewListingID(raw string) (ListingID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ListingID{}, fmt.Errorf("%w: empty value", ErrInvalidListingID)
	}
	return ListingID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id ListingID) String() string {
	return id.value
}

// IsZero reports whether the id is unset.
func (id ListingID) IsZero() bool {
	return id.value == ""
}

// MarshalText lets ListingID key JSON objects.
func (id ListingID) MarshalText() ([]byte, error) {
	return []byte(id.value), nil
}

// UnmarshalText parses a ListingID from a JSON object key or string.
func (id *ListingID) UnmarshalText(raw []byte) error {
	parsed, err := NewListingID(string(raw))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ReservationStatus defines reservation lifecycle.
type ReservationStatus string

const (
	ReservationStatusLocal ReservationStatus = "local"
	ReservationStatusHeld  ReservationStatus = "held"
	ReservationStatusWon   ReservationStatus = "won"
)

// ParseReservationStatus validates a stored status value.
func ParseReservationStatus(raw string) (ReservationStatus, error) {
	switch ReservationStatus(raw) {
	case ReservationStatusLocal, ReservationStatusHeld, ReservationStatusWon:
		return ReservationStatus(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidReservationStatus, raw)
	}
}

// Reservation is a hold on credits while the user leads the bidding on a listing.
// ServerHeld is the part of Amount the server balance already reflects.
type Reservation struct {
	ListingID  ListingID         `json:"listingId"`
	Amount     Credits           `json:"amount"`
	ServerHeld Credits           `json:"serverHeld"`
	Title      string            `json:"title"`
	Status     ReservationStatus `json:"status"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// LocalPortion is the part of the reservation the server has not charged yet.
func (reservation Reservation) LocalPortion() Credits {
	return nonNegative(reservation.Amount - reservation.ServerHeld)
}

// PendingRefund is money returned locally before the server balance reflects it.
type PendingRefund struct {
	ListingID ListingID `json:"listingId"`
	Amount    Credits   `json:"amount"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TransactionType enumerates credit history entry kinds.
type TransactionType string

const (
	TransactionBidReserve  TransactionType = "bid-reserve"
	TransactionBidRefund   TransactionType = "bid-refund"
	TransactionBidWon      TransactionType = "bid-won"
	TransactionBalanceSync TransactionType = "balance-sync"
)

// ParseTransactionType validates a stored transaction type.
func ParseTransactionType(raw string) (TransactionType, error) {
	switch TransactionType(raw) {
	case TransactionBidReserve, TransactionBidRefund, TransactionBidWon, TransactionBalanceSync:
		return TransactionType(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTransactionType, raw)
	}
}

// Transaction is an immutable line in the credit history.
type Transaction struct {
	ID           string          `json:"id"`
	Type         TransactionType `json:"type"`
	Amount       Credits         `json:"amount"`
	ListingID    string          `json:"listingId,omitempty"`
	ListingTitle string          `json:"listingTitle,omitempty"`
	Description  string          `json:"description"`
	BalanceAfter Credits         `json:"balanceAfter"`
	Timestamp    time.Time       `json:"timestamp"`
}

// State is the full persisted ledger for one user profile.
type State struct {
	ServerBase     Credits                     `json:"serverBase"`
	Reservations   map[ListingID]Reservation   `json:"reservations"`
	PendingRefunds map[ListingID]PendingRefund `json:"pendingRefunds"`
	Transactions   []Transaction               `json:"transactions"`
	LastUpdated    time.Time                   `json:"lastUpdated"`
}

// NewState returns an empty ledger.
func NewState() State {
	return State{
		Reservations:   make(map[ListingID]Reservation),
		PendingRefunds: make(map[ListingID]PendingRefund),
		Transactions:   []Transaction{},
	}
}

// Clone returns a deep copy.
func (state State) Clone() State {
	cloned := State{
		ServerBase:     state.ServerBase,
		Reservations:   make(map[ListingID]Reservation, len(state.Reservations)),
		PendingRefunds: make(map[ListingID]PendingRefund, len(state.PendingRefunds)),
		Transactions:   make([]Transaction, len(state.Transactions)),
		LastUpdated:    state.LastUpdated,
	}
	for key, reservation := range state.Reservations {
		cloned.Reservations[key] = reservation
	}
	for key, refund := range state.PendingRefunds {
		cloned.PendingRefunds[key] = refund
	}
	copy(cloned.Transactions, state.Transactions)
	return cloned
}

// Available derives the spendable balance: server base plus pending refunds
// minus the local portion of every reservation, floored at zero.
func (state State) Available() Credits {
	return nonNegative(state.rawAvailable())
}

func (state State) rawAvailable() Credits {
	total := state.ServerBase
	for _, refund := range state.PendingRefunds {
		total += refund.Amount
	}
	for _, reservation := range state.Reservations {
		total -= reservation.LocalPortion()
	}
	return total
}

// normalize repairs a decoded state so that every invariant holds.
func (state State) normalize() State {
	normalized := NewState()
	normalized.ServerBase = nonNegative(state.ServerBase)
	normalized.LastUpdated = state.LastUpdated
	for key, reservation := range state.Reservations {
		if key.IsZero() {
			continue
		}
		reservation.ListingID = key
		reservation.Amount = nonNegative(reservation.Amount)
		reservation.ServerHeld = minCredits(nonNegative(reservation.ServerHeld), reservation.Amount)
		if _, err := ParseReservationStatus(string(reservation.Status)); err != nil {
			reservation.Status = statusFor(reservation)
		}
		normalized.Reservations[key] = reservation
	}
	for key, refund := range state.PendingRefunds {
		if key.IsZero() || refund.Amount <= 0 {
			continue
		}
		refund.ListingID = key
		normalized.PendingRefunds[key] = refund
	}
	for _, transaction := range state.Transactions {
		if _, err := ParseTransactionType(string(transaction.Type)); err != nil {
			continue
		}
		normalized.Transactions = append(normalized.Transactions, transaction)
	}
	return normalized
}

// Affordability is the outcome of a bid pre-check.
type Affordability struct {
	OK        bool
	Available Credits
	Required  Credits
	Deficit   Credits
	Delta     Credits
}

// BidReservation requests a reservation for the user's bid on a listing.
type BidReservation struct {
	ListingID    string
	Amount       int64
	ListingTitle string
}

// ReservationResult reports the effect of ApplyBidReservation.
type ReservationResult struct {
	Delta       Credits
	Unchanged   bool
	Reservation Reservation
}

// Release requests that a reservation be dropped.
type Release struct {
	ListingID    string
	Reason       string
	ListingTitle string
}

// ReleaseResult reports the credits returned by ReleaseReservation.
type ReleaseResult struct {
	Amount    Credits
	Immediate Credits
	Pending   Credits
}

// Win requests that a reservation be marked as won.
type Win struct {
	ListingID    string
	ListingTitle string
	Reason       string
}

// WinResult reports the effect of MarkReservationAsWon.
type WinResult struct {
	Unchanged bool
}

// SyncResult reports the effect of SetBaseCredits.
type SyncResult struct {
	PreviousBase Credits
	ServerBase   Credits
	Change       Credits
	Available    Credits
}

// BidSnapshot is one bid as reported by the remote API.
type BidSnapshot struct {
	Amount Credits
	Bidder string
}

// ListingSnapshot is the slice of a fetched listing needed for reconciliation.
type ListingSnapshot struct {
	ID         string
	Title      string
	EndsAt     time.Time
	Bids       []BidSnapshot
	HighestBid *BidSnapshot
}

// Store is the persistence contract used by Service. LoadState returns
// ErrStateNotFound when nothing has been stored yet.
type Store interface {
	LoadState(ctx context.Context) (State, error)
	SaveState(ctx context.Context, state State) error
	ClearState(ctx context.Context) error
}

func nonNegative(value Credits) Credits {
	if value < 0 {
		return 0
	}
	return value
}

func minCredits(left Credits, right Credits) Credits {
	if left < right {
		return left
	}
	return right
}

func statusFor(reservation Reservation) ReservationStatus {
	if reservation.Status == ReservationStatusWon {
		return ReservationStatusWon
	}
	if reservation.ServerHeld >= reservation.Amount {
		return ReservationStatusHeld
	}
	return ReservationStatusLocal
}
