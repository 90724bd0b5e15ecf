package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// HighestBid returns the leading bid of a listing. Among equal amounts the
// later bid wins; bids without a bidder name are ignored.
func HighestBid(listing ListingSnapshot) (BidSnapshot, bool) {
	var highest BidSnapshot
	consider := func(bid BidSnapshot) {
		bidder := strings.TrimSpace(bid.Bidder)
		if bid.Amount <= 0 || bidder == "" {
			return
		}
		if bid.Amount >= highest.Amount {
			highest = BidSnapshot{Amount: bid.Amount, Bidder: bidder}
		}
	}
	for _, bid := range listing.Bids {
		consider(bid)
	}
	if listing.HighestBid != nil {
		consider(*listing.HighestBid)
	}
	if highest.Amount <= 0 || highest.Bidder == "" {
		return BidSnapshot{}, false
	}
	return highest, true
}

// ReconcileListing aligns the reservation for one listing with the bids the
// server reports. The reservation follows the user's winning bid, is released
// when the user is signed out or outbid, and is marked won once the auction
// has ended with the user on top.
func (service *Service) ReconcileListing(ctx context.Context, listing ListingSnapshot, currentUser string) error {
	id, err := NewListingID(listing.ID)
	if err != nil {
		return nil
	}
	user := strings.TrimSpace(currentUser)
	var reason string
	available, err := service.mutate(ctx, func(state *State, now time.Time) error {
		highest, hasHighest := HighestBid(listing)
		switch {
		case user == "":
			reason = ReasonSignedOut
		case !hasHighest:
			reason = ReasonNoActiveBid
		case highest.Bidder != user:
			reason = ReasonOutbid
		default:
			return service.followWinningBid(state, id, listing, highest.Amount, now)
		}
		reservation, exists := state.Reservations[id]
		if !exists || reservation.Status == ReservationStatusWon {
			return errNoChange
		}
		_, releaseErr := service.release(state, id, reason, listing.Title, now)
		return releaseErr
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationReconcile,
		ListingID: id.String(),
		Available: available,
		Reason:    reason,
		Error:     err,
	})
	return err
}

// ReconcileListings reconciles every listing and joins the failures.
func (service *Service) ReconcileListings(ctx context.Context, listings []ListingSnapshot, currentUser string) error {
	var failures []error
	for _, listing := range listings {
		if err := service.ReconcileListing(ctx, listing, currentUser); err != nil {
			failures = append(failures, err)
		}
	}
	return errors.Join(failures...)
}

func (service *Service) followWinningBid(state *State, id ListingID, listing ListingSnapshot, amount Credits, now time.Time) error {
	changed := false
	var err error
	if _, tracked := state.Reservations[id]; tracked {
		_, err = service.reserve(state, id, amount, listing.Title, false, now)
	} else {
		service.adopt(state, id, amount, listing.Title, now)
	}
	switch {
	case err == nil:
		changed = true
	case !errors.Is(err, errNoChange):
		return err
	}
	if hasEnded(listing, now) {
		_, winErr := service.win(state, id, listing.Title, ReasonAuctionEnd, now)
		switch {
		case winErr == nil:
			changed = true
		case !errors.Is(winErr, errNoChange):
			return winErr
		}
	}
	if !changed {
		return errNoChange
	}
	return nil
}

// adopt tracks a bid the server already charged as fully held; the available
// balance does not move. A refund pending for the listing is consumed by it.
func (service *Service) adopt(state *State, id ListingID, amount Credits, title string, now time.Time) {
	rawBefore := state.rawAvailable()
	if refund, hasRefund := state.PendingRefunds[id]; hasRefund {
		refund.Amount -= minCredits(refund.Amount, amount)
		if refund.Amount > 0 {
			refund.UpdatedAt = now
			state.PendingRefunds[id] = refund
		} else {
			delete(state.PendingRefunds, id)
		}
		title = firstNonEmpty(title, refund.Title)
	}
	reservation := Reservation{
		ListingID:  id,
		Amount:     amount,
		ServerHeld: amount,
		Title:      title,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	reservation.Status = statusFor(reservation)
	state.Reservations[id] = reservation
	service.record(state, Transaction{
		Type:         TransactionBidReserve,
		Amount:       state.rawAvailable() - rawBefore,
		ListingID:    id.String(),
		ListingTitle: title,
		Description:  fmt.Sprintf("Tracking %d credits already held for %s", amount, displayTitle(title, id)),
		BalanceAfter: state.Available(),
		Timestamp:    now,
	})
}

func hasEnded(listing ListingSnapshot, now time.Time) bool {
	return !listing.EndsAt.IsZero() && !listing.EndsAt.After(now)
}
