package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/auctionhouse/pkg/events"
)

const (
	listingOne   = "L1"
	listingTwo   = "L2"
	listingTitle = "Vintage brass collar"
	currentUser  = "ada"
)

var errStoreFailure = errors.New("store error")

func TestSetBaseCreditsWithoutReservationsYieldsValue(test *testing.T) {
	test.Parallel()
	service, _ := newTestService(test)

	mustSetBase(test, service, 750)

	if got := service.AvailableCredits(); got != 750 {
		test.Fatalf("expected 750, got %d", got)
	}
	transactions := service.Transactions()
	if len(transactions) != 1 || transactions[0].Type != TransactionBalanceSync || transactions[0].Amount != 750 {
		test.Fatalf("expected one balance-sync of 750, got %+v", transactions)
	}
	if transactions[0].Description != "Balance synced: test sync" {
		test.Fatalf("unexpected description %q", transactions[0].Description)
	}

	if _, err := service.SetBaseCredits(context.Background(), 800, ""); err != nil {
		test.Fatalf("set base credits: %v", err)
	}
	if latest := service.Transactions()[0]; latest.Description != defaultSyncDescription {
		test.Fatalf("expected default description, got %q", latest.Description)
	}
}

func TestReserveFullBalanceAndRejectOverdraft(test *testing.T) {
	test.Parallel()
	service, _ := newTestService(test)
	mustSetBase(test, service, 100)

	result, err := service.ApplyBidReservation(context.Background(), BidReservation{ListingID: listingOne, Amount: 100, ListingTitle: listingTitle})
	if err != nil {
		test.Fatalf("reserve: %v", err)
	}
	if result.Delta != 100 {
		test.Fatalf("expected delta 100, got %d", result.Delta)
	}
	if got := service.AvailableCredits(); got != 0 {
		test.Fatalf("expected 0 available, got %d", got)
	}

	fresh, _ := newTestService(test)
	mustSetBase(test, fresh, 100)
	_, err = fresh.ApplyBidReservation(context.Background(), BidReservation{ListingID: listingOne, Amount: 101})
	if !errors.Is(err, ErrInsufficientCredits) {
		test.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	var affordabilityError AffordabilityError
	if !errors.As(err, &affordabilityError) || affordabilityError.Affordability.Deficit != 1 {
		test.Fatalf("expected deficit 1, got %v", err)
	}
	if got := fresh.AvailableCredits(); got != 100 {
		test.Fatalf("expected available unchanged at 100, got %d", got)
	}
	if _, exists := fresh.Reservation(listingOne); exists {
		test.Fatalf("rejected bid must not leave a reservation")
	}
}

func TestApplyBidReservationValidatesInput(test *testing.T) {
	test.Parallel()
	service, _ := newTestService(test)
	mustSetBase(test, service, 100)

	if _, err := service.ApplyBidReservation(context.Background(), BidReservation{ListingID: " ", Amount: 10}); !errors.Is(err, ErrInvalidListingID) {
		test.Fatalf("expected ErrInvalidListingID, got %v", err)
	}
	if _, err := service.ApplyBidReservation(context.Background(), BidReservation{ListingID: listingOne, Amount: 0}); !errors.Is(err, ErrInvalidAmount) {
		test.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestReservationInvariantHoldsAcrossSequence(test *testing.T) {
	test.Parallel()
	service, _ := newTestService(test)
	mustSetBase(test, service, 1000)
	steps := []struct {
		amount int64
		base   Credits
	}{
		{amount: 50}, {amount: 80, base: 950}, {amount: 120}, {amount: 60, base: 880}, {amount: 200}, {amount: 10, base: 1000},
	}
	for index, step := range steps {
		if _, err := service.ApplyBidReservation(context.Background(), BidReservation{ListingID: listingOne, Amount: step.amount}); err != nil {
			test.Fatalf("step %d reserve: %v", index, err)
		}
		assertReservationInvariant(test, service)
		if step.base > 0 {
			mustSetBase(test, service, step.base)
			assertReservationInvariant(test, service)
		}
	}
}

func TestReleaseRestoresLocalAmount(test *testing.T) {
	test.Parallel()
	service, _ := newTestService(test)
	mustSetBase(test, service, 300)
	mustReserve(test, service, listingOne, 120)
	if got := service.AvailableCredits(); got != 180 {
		test.Fatalf("expected 180 after reserve, got %d", got)
	}

	result, err := service.ReleaseReservation(context.Background(), Release{ListingID: listingOne, Reason: ReasonOutbid})
	if err != nil {
		test.Fatalf("release: %v", err)
	}
	if result.Amount != 120 || result.Immediate != 120 || result.Pending != 0 {
		test.Fatalf("unexpected release result: %+v", result)
	}
	if got := service.AvailableCredits(); got != 300 {
		test.Fatalf("expected 300 after release, got %d", got)
	}
	latest := service.Transactions()[0]
	if latest.Type != TransactionBidRefund || latest.Amount != 120 {
		test.Fatalf("expected bid-refund of 120, got %+v", latest)
	}
}

func TestReleaseUnknownReservation(test *testing.T) {
	test.Parallel()
	service, _ := newTestService(test)
	_, err := service.ReleaseReservation(context.Background(), Release{ListingID: listingOne})
	if !errors.Is(err, ErrUnknownReservation) {
		test.Fatalf("expected ErrUnknownReservation, got %v", err)
	}
}

func TestWonReservationIsTerminal(test *testing.T) {
	test.Parallel()
	service, _ := newTestService(test)
	mustSetBase(test, service, 200)
	mustReserve(test, service, listingOne, 60)

	result, err := service.MarkReservationAsWon(context.Background(), Win{ListingID: listingOne, Reason: ReasonAuctionEnd})
	if err != nil || result.Unchanged {
		test.Fatalf("expected first win to change state, got %+v (%v)", result, err)
	}
	again, err := service.MarkReservationAsWon(context.Background(), Win{ListingID: listingOne})
	if err != nil || !again.Unchanged {
		test.Fatalf("expected idempotent win, got %+v (%v)", again, err)
	}
	before := service.AvailableCredits()

	if _, err := service.ReleaseReservation(context.Background(), Release{ListingID: listingOne}); !errors.Is(err, ErrReservationWon) {
		test.Fatalf("expected ErrReservationWon, got %v", err)
	}
	if got := service.AvailableCredits(); got != before {
		test.Fatalf("expected available unchanged at %d, got %d", before, got)
	}
	applied, err := service.ApplyBidReservation(context.Background(), BidReservation{ListingID: listingOne, Amount: 90})
	if err != nil || !applied.Unchanged {
		test.Fatalf("expected won reservation left untouched, got %+v (%v)", applied, err)
	}
	if reservation, _ := service.Reservation(listingOne); reservation.Amount != 60 {
		test.Fatalf("expected amount to stay 60, got %d", reservation.Amount)
	}
	wonEntries := 0
	for _, transaction := range service.Transactions() {
		if transaction.Type == TransactionBidWon {
			wonEntries++
			if transaction.Amount != 0 {
				test.Fatalf("bid-won must not move credits, got %d", transaction.Amount)
			}
		}
	}
	if wonEntries != 1 {
		test.Fatalf("expected exactly one bid-won entry, got %d", wonEntries)
	}
}

func TestMarkUnknownReservationAsWon(test *testing.T) {
	test.Parallel()
	service, _ := newTestService(test)
	if _, err := service.MarkReservationAsWon(context.Background(), Win{ListingID: listingOne}); !errors.Is(err, ErrUnknownReservation) {
		test.Fatalf("expected ErrUnknownReservation, got %v", err)
	}
}

func TestServerChargeMovesReservationToHeld(test *testing.T) {
	test.Parallel()
	service, _ := newTestService(test)
	mustSetBase(test, service, 500)
	mustReserve(test, service, listingOne, 50)
	if got := service.AvailableCredits(); got != 450 {
		test.Fatalf("expected 450 after reserve, got %d", got)
	}

	result := mustSetBase(test, service, 450)

	reservation, _ := service.Reservation(listingOne)
	if reservation.ServerHeld != 50 || reservation.Status != ReservationStatusHeld {
		test.Fatalf("expected held reservation with serverHeld 50, got %+v", reservation)
	}
	if got := service.AvailableCredits(); got != 450 {
		test.Fatalf("expected available unchanged at 450, got %d", got)
	}
	if result.Change != 0 {
		test.Fatalf("expected no visible change, got %d", result.Change)
	}
	if latest := service.Transactions()[0]; latest.Type != TransactionBalanceSync || latest.Amount != 0 {
		test.Fatalf("expected zero-amount balance-sync, got %+v", latest)
	}
}

func TestReleasingHeldReservationCreatesPendingRefund(test *testing.T) {
	test.Parallel()
	service, _ := newTestService(test)
	mustSetBase(test, service, 500)
	mustReserve(test, service, listingOne, 50)
	mustSetBase(test, service, 450)

	result, err := service.ReleaseReservation(context.Background(), Release{ListingID: listingOne, Reason: ReasonOutbid})
	if err != nil {
		test.Fatalf("release: %v", err)
	}
	if result.Pending != 50 || result.Immediate != 0 {
		test.Fatalf("expected 50 pending refund, got %+v", result)
	}
	if refund, exists := service.PendingRefund(listingOne); !exists || refund.Amount != 50 {
		test.Fatalf("expected pending refund of 50, got %+v", refund)
	}
	if got := service.AvailableCredits(); got != 500 {
		test.Fatalf("expected refund visible immediately (500), got %d", got)
	}

	mustSetBase(test, service, 500)

	if got := service.AvailableCredits(); got != 500 {
		test.Fatalf("expected no double counting (500), got %d", got)
	}
	if refunds := service.Snapshot().PendingRefunds; len(refunds) != 0 {
		test.Fatalf("expected pending refund consumed, got %+v", refunds)
	}
}

func TestBalanceRiseConsumesOldestRefundFirst(test *testing.T) {
	test.Parallel()
	service, _ := newTestService(test)
	mustSetBase(test, service, 500)
	mustReserve(test, service, listingOne, 40)
	mustReserve(test, service, listingTwo, 70)
	mustSetBase(test, service, 390)
	for _, listingID := range []string{listingOne, listingTwo} {
		if _, err := service.ReleaseReservation(context.Background(), Release{ListingID: listingID, Reason: ReasonOutbid}); err != nil {
			test.Fatalf("release %s: %v", listingID, err)
		}
	}
	if got := service.AvailableCredits(); got != 500 {
		test.Fatalf("expected 390 + 110 pending = 500, got %d", got)
	}

	mustSetBase(test, service, 450)

	if refund, exists := service.PendingRefund(listingOne); exists {
		test.Fatalf("expected the older refund consumed first, got %+v", refund)
	}
	if refund, exists := service.PendingRefund(listingTwo); !exists || refund.Amount != 50 {
		test.Fatalf("expected 50 left on the newer refund, got %+v", refund)
	}
	if got := service.AvailableCredits(); got != 500 {
		test.Fatalf("expected 500 available, got %d", got)
	}
}

func TestServerChargeAbsorbsOldestReservationFirst(test *testing.T) {
	test.Parallel()
	service, _ := newTestService(test)
	mustSetBase(test, service, 500)
	mustReserve(test, service, listingOne, 40)
	mustReserve(test, service, listingTwo, 70)

	mustSetBase(test, service, 440)

	first, _ := service.Reservation(listingOne)
	second, _ := service.Reservation(listingTwo)
	if first.ServerHeld != 40 || first.Status != ReservationStatusHeld {
		test.Fatalf("expected oldest reservation fully held, got %+v", first)
	}
	if second.ServerHeld != 20 || second.Status != ReservationStatusLocal {
		test.Fatalf("expected remaining 20 on the newer reservation, got %+v", second)
	}
	if got := service.AvailableCredits(); got != 390 {
		test.Fatalf("expected 390 available, got %d", got)
	}
}

func TestRebidAfterRefundReusesServerHeldCredits(test *testing.T) {
	test.Parallel()
	service, _ := newTestService(test)
	mustSetBase(test, service, 500)
	mustReserve(test, service, listingOne, 50)
	mustSetBase(test, service, 450)
	if _, err := service.ReleaseReservation(context.Background(), Release{ListingID: listingOne, Reason: ReasonOutbid}); err != nil {
		test.Fatalf("release: %v", err)
	}

	affordability := service.CanAffordBid(listingOne, 80)
	if !affordability.OK || affordability.Delta != 80 {
		test.Fatalf("expected affordable delta 80, got %+v", affordability)
	}
	result, err := service.ApplyBidReservation(context.Background(), BidReservation{ListingID: listingOne, Amount: 80})
	if err != nil {
		test.Fatalf("reserve: %v", err)
	}
	if result.Reservation.ServerHeld != 50 {
		test.Fatalf("expected refund folded into serverHeld, got %+v", result.Reservation)
	}
	if refunds := service.Snapshot().PendingRefunds; len(refunds) != 0 {
		test.Fatalf("expected pending refund cleared, got %+v", refunds)
	}
	if got := service.AvailableCredits(); got != 420 {
		test.Fatalf("expected 500 - 80 = 420, got %d", got)
	}
}

func TestCanAffordBidIsPure(test *testing.T) {
	test.Parallel()
	service, store := newTestService(test)
	mustSetBase(test, service, 100)
	mustReserve(test, service, listingOne, 30)
	saves := store.saves

	affordability := service.CanAffordBid(listingOne, 90)
	if !affordability.OK || affordability.Delta != 60 || affordability.Available != 70 || affordability.Required != 90 {
		test.Fatalf("unexpected affordability: %+v", affordability)
	}
	tooMuch := service.CanAffordBid(listingTwo, 71)
	if tooMuch.OK || tooMuch.Deficit != 1 {
		test.Fatalf("expected deficit 1, got %+v", tooMuch)
	}
	if zero := service.CanAffordBid(listingTwo, 0); zero.OK {
		test.Fatalf("zero bids must not be affordable")
	}
	if store.saves != saves {
		test.Fatalf("CanAffordBid must not persist")
	}
	if reservation, _ := service.Reservation(listingOne); reservation.Amount != 30 {
		test.Fatalf("CanAffordBid must not change reservations")
	}
}

func TestRaisingBidOnlyChargesDifference(test *testing.T) {
	test.Parallel()
	service, _ := newTestService(test)
	mustSetBase(test, service, 100)
	mustReserve(test, service, listingOne, 60)

	result, err := service.ApplyBidReservation(context.Background(), BidReservation{ListingID: listingOne, Amount: 100})
	if err != nil {
		test.Fatalf("raise: %v", err)
	}
	if result.Delta != 40 {
		test.Fatalf("expected delta 40, got %d", result.Delta)
	}
	if latest := service.Transactions()[0]; latest.Type != TransactionBidReserve || latest.Amount != -40 {
		test.Fatalf("expected bid-reserve of -40, got %+v", latest)
	}
	if got := service.AvailableCredits(); got != 0 {
		test.Fatalf("expected 0, got %d", got)
	}
}

func TestSameAmountReservationIsUnchanged(test *testing.T) {
	test.Parallel()
	service, store := newTestService(test)
	mustSetBase(test, service, 100)
	mustReserve(test, service, listingOne, 60)
	saves := store.saves

	result, err := service.ApplyBidReservation(context.Background(), BidReservation{ListingID: listingOne, Amount: 60})
	if err != nil || !result.Unchanged {
		test.Fatalf("expected unchanged result, got %+v (%v)", result, err)
	}
	if store.saves != saves {
		test.Fatalf("unchanged reservation must not persist")
	}
}

func TestTransactionsAreCappedMostRecentFirst(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	service := mustNewService(test, store, WithTransactionLimit(3))
	for value := Credits(1); value <= 5; value++ {
		mustSetBase(test, service, value*10)
	}
	transactions := service.Transactions()
	if len(transactions) != 3 {
		test.Fatalf("expected 3 transactions, got %d", len(transactions))
	}
	if transactions[0].BalanceAfter != 50 || transactions[2].BalanceAfter != 30 {
		test.Fatalf("expected most recent first, got %+v", transactions)
	}
}

func TestSaveFailureLeavesStateUntouched(test *testing.T) {
	test.Parallel()
	service, store := newTestService(test)
	mustSetBase(test, service, 100)
	store.saveErr = errStoreFailure

	_, err := service.ApplyBidReservation(context.Background(), BidReservation{ListingID: listingOne, Amount: 40})
	if !errors.Is(err, errStoreFailure) {
		test.Fatalf("expected store failure, got %v", err)
	}
	var operationError OperationError
	if !errors.As(err, &operationError) || operationError.Code() != errorCodePersist {
		test.Fatalf("expected persist OperationError, got %v", err)
	}
	if got := service.AvailableCredits(); got != 100 {
		test.Fatalf("expected 100, got %d", got)
	}
	if _, exists := service.Reservation(listingOne); exists {
		test.Fatalf("expected no reservation after failed save")
	}
}

func TestLoadFailsOpen(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	store.loadErr = errors.New("malformed payload")
	logger := &recorderLogger{}
	service := mustNewService(test, store, WithOperationLogger(logger))

	service.Load(context.Background())

	if got := service.AvailableCredits(); got != 0 {
		test.Fatalf("expected empty ledger, got %d", got)
	}
	if len(logger.entries) != 1 || logger.entries[0].Status != operationStatusError {
		test.Fatalf("expected a logged load error, got %+v", logger.entries)
	}
}

func TestLoadRestoresPersistedLedger(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	first := mustNewService(test, store)
	mustSetBase(test, first, 300)
	mustReserve(test, first, listingOne, 75)

	second := mustNewService(test, store)
	second.Load(context.Background())

	if got := second.AvailableCredits(); got != 225 {
		test.Fatalf("expected 225 after reload, got %d", got)
	}
	if amount := second.ReservationAmount(listingOne); amount != 75 {
		test.Fatalf("expected reservation of 75, got %d", amount)
	}
}

func TestLoadCapsStoredHistory(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	writer := mustNewService(test, store)
	for value := Credits(1); value <= 5; value++ {
		mustSetBase(test, writer, value*10)
	}

	reader := mustNewService(test, store, WithTransactionLimit(2))
	reader.Load(context.Background())

	transactions := reader.Transactions()
	if len(transactions) != 2 || transactions[0].BalanceAfter != 50 {
		test.Fatalf("expected the 2 newest entries, got %+v", transactions)
	}
}

func TestResetClearsLedgerAndStore(test *testing.T) {
	test.Parallel()
	bus := events.NewBus()
	var published []int64
	events.On(bus, func(event events.CreditsUpdated) { published = append(published, event.Available) })
	store := newStubStore()
	service := mustNewService(test, store, WithPublisher(bus))
	mustSetBase(test, service, 100)
	mustReserve(test, service, listingOne, 20)

	if err := service.Reset(context.Background()); err != nil {
		test.Fatalf("reset: %v", err)
	}
	if store.state != nil {
		test.Fatalf("expected store cleared")
	}
	if service.AvailableCredits() != 0 || len(service.Transactions()) != 0 {
		test.Fatalf("expected empty ledger after reset")
	}
	if len(published) != 3 || published[0] != 100 || published[1] != 80 || published[2] != 0 {
		test.Fatalf("unexpected published balances: %v", published)
	}
}

func TestNewServiceRequiresDependencies(test *testing.T) {
	test.Parallel()
	if _, err := NewService(nil, time.Now); !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf("expected invalid service config error, got %v", err)
	}
	if _, err := NewService(newStubStore(), nil); !errors.Is(err, ErrInvalidServiceConfig) {
		test.Fatalf("expected invalid service config error, got %v", err)
	}
}

type stubStore struct {
	state    *State
	saves    int
	loadErr  error
	saveErr  error
	clearErr error
}

func newStubStore() *stubStore {
	return &stubStore{}
}

func (store *stubStore) LoadState(context.Context) (State, error) {
	if store.loadErr != nil {
		return State{}, store.loadErr
	}
	if store.state == nil {
		return State{}, ErrStateNotFound
	}
	return store.state.Clone(), nil
}

func (store *stubStore) SaveState(_ context.Context, state State) error {
	if store.saveErr != nil {
		return store.saveErr
	}
	cloned := state.Clone()
	store.state = &cloned
	store.saves++
	return nil
}

func (store *stubStore) ClearState(context.Context) error {
	if store.clearErr != nil {
		return store.clearErr
	}
	store.state = nil
	return nil
}

// steppingClock advances one second per reading so ordering by timestamps is stable.
func steppingClock() func() time.Time {
	current := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func newTestService(test *testing.T) (*Service, *stubStore) {
	test.Helper()
	store := newStubStore()
	return mustNewService(test, store), store
}

func mustNewService(test *testing.T, store Store, options ...ServiceOption) *Service {
	test.Helper()
	service, err := NewService(store, steppingClock(), options...)
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func mustSetBase(test *testing.T, service *Service, value Credits) SyncResult {
	test.Helper()
	result, err := service.SetBaseCredits(context.Background(), value, "test sync")
	if err != nil {
		test.Fatalf("set base credits: %v", err)
	}
	return result
}

func mustReserve(test *testing.T, service *Service, listingID string, amount int64) ReservationResult {
	test.Helper()
	result, err := service.ApplyBidReservation(context.Background(), BidReservation{ListingID: listingID, Amount: amount, ListingTitle: listingTitle})
	if err != nil {
		test.Fatalf("reserve %s: %v", listingID, err)
	}
	return result
}

func assertReservationInvariant(test *testing.T, service *Service) {
	test.Helper()
	for id, reservation := range service.Snapshot().Reservations {
		if reservation.ServerHeld < 0 || reservation.ServerHeld > reservation.Amount {
			test.Fatalf("invariant broken for %s: %+v", id, reservation)
		}
	}
}
