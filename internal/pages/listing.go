package pages

import (
	"context"
	"fmt"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/auctionapi"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/chrome"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/forms"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/listings"
	"github.com/MarkoPoloResearchLab/auctionhouse/pkg/ledger"
	"go.uber.org/zap"
)

const (
	MessageListingMissing  = "We couldn't find this listing, so bidding is unavailable."
	MessageExampleListing  = "Bidding is disabled while we show an example listing."
	MessageLogInToBid      = "Log in to place a bid."
	MessageOwnListing      = "You cannot bid on your own listing."
	MessageAuctionEnded    = "This auction has ended. Bidding is closed."
	MessageBidUnavailable  = "Bidding is unavailable right now. Please refresh and try again."
	MessageBidPlaced       = "Bid placed! Good luck."
	MessageNoBids          = "No bids yet"
	messageShowingExample  = "We couldn't find that listing. Showing an example instead."
	messageListingFallback = "We couldn't load this listing right now. Showing an example instead."
	messageBidFailed       = "We couldn't place your bid right now. Please try again."
)

// BidForm describes whether the bid form is usable and why not.
type BidForm struct {
	Allowed bool   `json:"allowed"`
	Notice  Status `json:"notice"`
}

// ListingView is the listing detail page.
type ListingView struct {
	RequestedID string             `json:"requestedId"`
	Listing     auctionapi.Listing `json:"listing"`
	Status      Status             `json:"status"`
	Example     bool               `json:"example"`
	HighestBid  string             `json:"highestBid"`
	NextMinimum int64              `json:"nextMinimum"`
	BidCount    int                `json:"bidCount"`
	Reserved    ledger.Credits     `json:"reserved"`
	CanEdit     bool               `json:"canEdit"`
	Bid         BidForm            `json:"bid"`
}

// Listing loads the detail page for id.
func (controller *Controller) Listing(ctx context.Context, id string) ListingView {
	view := ListingView{RequestedID: id}
	switch {
	case id == "":
		view.Status = warning(messageShowingExample)
		view.Listing = listings.FallbackListings(controller.now())[0]
	default:
		listing, err := controller.api.GetListing(ctx, id, auctionapi.Include{Seller: true, Bids: true})
		if err != nil {
			controller.logger.Warn("unable to load listing", zap.String("listing_id", id), zap.Error(err))
			view.Status = failure(auctionapi.UserMessage(err, messageListingFallback))
			view.Listing = listings.FallbackListings(controller.now())[0]
		} else {
			controller.reconcile(ctx, listing)
			view.Listing = listing
		}
	}
	return controller.decorate(view)
}

func (controller *Controller) decorate(view ListingView) ListingView {
	listing := view.Listing
	view.Example = view.RequestedID == "" || listings.IsFallback(listing.ID)
	view.BidCount = listing.BidCount()
	view.HighestBid = MessageNoBids
	if highest := listing.HighestBidAmount(); highest > 0 {
		view.HighestBid = chrome.FormatCredits(highest)
	}
	view.NextMinimum = forms.NextMinimumBid(listing)
	view.CanEdit = !view.Example && controller.isOwner(listing)
	if !view.Example {
		view.Reserved = controller.session.Credits().ReservationAmount(listing.ID)
	}
	view.Bid = controller.bidForm(view)
	return view
}

// bidForm applies the bidding rules in order: a missing id, an example
// listing, a signed-out visitor, the seller, then a closed auction.
func (controller *Controller) bidForm(view ListingView) BidForm {
	var notice Status
	switch {
	case view.RequestedID == "":
		notice = warning(MessageListingMissing)
	case view.Example:
		notice = warning(MessageExampleListing)
	case !controller.session.SignedIn():
		notice = info(MessageLogInToBid)
	case controller.isOwner(view.Listing):
		notice = warning(MessageOwnListing)
	case view.Listing.HasEnded(controller.now()):
		notice = warning(MessageAuctionEnded)
	default:
		return BidForm{Allowed: true}
	}
	return BidForm{Notice: notice}
}

// PlaceBid validates the amount, checks it against the credit ledger, submits
// it, then reloads the listing and refreshes the server balance.
func (controller *Controller) PlaceBid(ctx context.Context, id string, rawAmount string) (ListingView, Result) {
	view := controller.Listing(ctx, id)
	if view.Example || view.Listing.ID == "" {
		return view, Result{Status: failure(MessageBidUnavailable)}
	}
	if !view.Bid.Allowed {
		return view, Result{Status: view.Bid.Notice}
	}
	amount, err := forms.ValidateBid(rawAmount, view.Listing)
	if err != nil {
		return view, Result{Status: failure(err.Error())}
	}

	credits := controller.session.Credits()
	affordability := credits.CanAffordBid(view.Listing.ID, amount)
	if !affordability.OK {
		return view, Result{Status: failure(insufficientMessage(affordability))}
	}

	if _, err := controller.api.PlaceBid(ctx, view.Listing.ID, amount); err != nil {
		controller.logger.Warn("bid rejected", zap.String("listing_id", view.Listing.ID), zap.Int64("amount", amount), zap.Error(err))
		return view, Result{Status: failure(auctionapi.UserMessage(err, messageBidFailed))}
	}
	if _, err := credits.ApplyBidReservation(ctx, ledger.BidReservation{
		ListingID:    view.Listing.ID,
		Amount:       amount,
		ListingTitle: view.Listing.Title,
	}); err != nil {
		controller.logger.Warn("unable to reserve credits for bid", zap.String("listing_id", view.Listing.ID), zap.Error(err))
	}

	reloaded := controller.Listing(ctx, id)
	if _, err := controller.session.SyncCredits(ctx, true); err != nil {
		controller.logger.Warn("unable to refresh credits after bid", zap.Error(err))
	}
	reloaded.Reserved = credits.ReservationAmount(reloaded.Listing.ID)
	return reloaded, Result{Status: success(MessageBidPlaced)}
}

func insufficientMessage(affordability ledger.Affordability) string {
	if affordability.Required <= 0 {
		return forms.MessageInvalidBid
	}
	return fmt.Sprintf("You need %s more to place this bid. Available: %s.",
		chrome.FormatCredits(affordability.Deficit.Int64()),
		chrome.FormatCredits(affordability.Available.Int64()))
}
