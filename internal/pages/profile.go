package pages

import (
	"context"
	"sort"
	"strings"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/auctionapi"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/forms"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/listings"
	"go.uber.org/zap"
)

const (
	MessageSignInForProfile = "Sign in to view your profile."
	MessageNoActiveListings = "No active listings yet."
	MessageNoWins           = "No wins yet."
	MessageSignInForAvatar  = "You must be signed in to update your avatar."
	MessageAvatarUpdated    = "Avatar updated successfully!"
	messageProfileFallback  = "We couldn't load this profile right now. Showing an example instead."
	messageAvatarFailed     = "Unable to update avatar."
)

// ProfileView is the profile page.
type ProfileView struct {
	Profile   auctionapi.Profile   `json:"profile"`
	Status    Status               `json:"status"`
	Example   bool                 `json:"example"`
	Own       bool                 `json:"own"`
	Active    []auctionapi.Listing `json:"active"`
	Wins      []auctionapi.Listing `json:"wins"`
	Bids      []auctionapi.Bid     `json:"bids"`
	Reserved  []ReservationLine    `json:"reserved"`
	Available int64                `json:"available"`
}

// ReservationLine is one held bid shown next to the credit balance.
type ReservationLine struct {
	ListingID string `json:"listingId"`
	Title     string `json:"title"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

// Profile loads the profile named name, or the signed-in user's profile when
// name is empty. The user's own profile also refreshes every held
// reservation against the server.
func (controller *Controller) Profile(ctx context.Context, name string) ProfileView {
	name = strings.TrimSpace(name)
	if name == "" {
		name = controller.session.UserName()
	}
	if name == "" {
		return controller.fallbackProfile(warning(MessageSignInForProfile))
	}

	profile, err := controller.api.GetProfile(ctx, name, auctionapi.Include{Listings: true, Wins: true})
	if err != nil {
		controller.logger.Warn("unable to load profile", zap.String("name", name), zap.Error(err))
		if !controller.session.SignedIn() {
			return controller.fallbackProfile(warning(MessageSignInForProfile))
		}
		return controller.fallbackProfile(failure(auctionapi.UserMessage(err, messageProfileFallback)))
	}

	view := ProfileView{
		Profile: profile,
		Own:     strings.EqualFold(profile.Name, controller.session.UserName()),
		Active:  listings.FilterActive(profile.Listings, controller.now()),
		Wins:    profile.Wins,
	}
	if view.Own {
		controller.refreshReservations(ctx)
		bids, bidsErr := controller.api.ProfileBids(ctx, profile.Name, auctionapi.ListParams{})
		if bidsErr != nil {
			controller.logger.Warn("unable to load profile bids", zap.String("name", profile.Name), zap.Error(bidsErr))
		}
		view.Bids = bids
		view.Reserved = controller.reservationLines()
		view.Available = controller.session.Credits().AvailableCredits().Int64()
	}
	return view
}

func (controller *Controller) fallbackProfile(status Status) ProfileView {
	profile := listings.FallbackProfile(controller.now())
	return ProfileView{
		Profile: profile,
		Status:  status,
		Example: true,
		Active:  profile.Listings,
	}
}

// refreshReservations fetches each reserved listing with its bids so the
// ledger can release outbid holds and settle won auctions.
func (controller *Controller) refreshReservations(ctx context.Context) {
	for id := range controller.session.Credits().Snapshot().Reservations {
		listing, err := controller.api.GetListing(ctx, id.String(), auctionapi.Include{Bids: true})
		if err != nil {
			controller.logger.Warn("unable to refresh reserved listing", zap.String("listing_id", id.String()), zap.Error(err))
			continue
		}
		controller.reconcile(ctx, listing)
	}
}

func (controller *Controller) reservationLines() []ReservationLine {
	reservations := controller.session.Credits().Snapshot().Reservations
	lines := make([]ReservationLine, 0, len(reservations))
	for id, reservation := range reservations {
		lines = append(lines, ReservationLine{
			ListingID: id.String(),
			Title:     reservation.Title,
			Amount:    reservation.Amount.Int64(),
			Status:    string(reservation.Status),
		})
	}
	sort.Slice(lines, func(left, right int) bool {
		return lines[left].ListingID < lines[right].ListingID
	})
	return lines
}

// UpdateAvatar changes the signed-in user's avatar.
func (controller *Controller) UpdateAvatar(ctx context.Context, form forms.AvatarForm) Result {
	name := controller.session.UserName()
	if name == "" {
		return Result{Status: failure(MessageSignInForAvatar)}
	}
	update, err := forms.ValidateAvatar(form)
	if err != nil {
		return Result{Status: failure(err.Error())}
	}
	if _, err := controller.api.UpdateProfile(ctx, name, update); err != nil {
		controller.logger.Warn("unable to update avatar", zap.String("name", name), zap.Error(err))
		return Result{Status: failure(auctionapi.UserMessage(err, messageAvatarFailed))}
	}
	return Result{Status: success(MessageAvatarUpdated)}
}
