package pages

import (
	"context"
	"strings"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/auctionapi"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/chrome"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/forms"
	"go.uber.org/zap"
)

const (
	MessageSignInToCreate     = "You must be logged in to create a listing."
	MessageListingUnconfirmed = "We created the listing but couldn't confirm its details."
	MessageListingCreated     = "Listing created!"
	MessageNothingToEdit      = "We couldn't find a listing to edit."
	MessageSignInToEdit       = "Sign in to edit this listing."
	MessageNotYourListing     = "You can only edit your own listings."
	MessageListingUpdated     = "Listing updated!"
	MessageListingDeleted     = "Listing deleted."
	messageCreateFailed       = "We couldn't create your listing right now. Please try again."
	messageEditorLoadFailed   = "We couldn't load this listing right now. Please try again."
	messageUpdateFailed       = "We couldn't update this listing right now. Please try again."
	messageDeleteFailed       = "We couldn't delete this listing right now. Please try again."
)

// EditorView is the edit listing page.
type EditorView struct {
	Listing  auctionapi.Listing `json:"listing"`
	Status   Status             `json:"status"`
	Editable bool               `json:"editable"`
}

// CreateListing validates the form and publishes a listing.
func (controller *Controller) CreateListing(ctx context.Context, form forms.ListingForm) Result {
	if !controller.session.SignedIn() {
		return Result{Status: failure(MessageSignInToCreate)}
	}
	input, err := forms.ValidateNewListing(form, controller.now())
	if err != nil {
		return Result{Status: failure(err.Error())}
	}
	listing, err := controller.api.CreateListing(ctx, input)
	if err != nil {
		controller.logger.Warn("unable to create listing", zap.String("title", input.Title), zap.Error(err))
		return Result{Status: failure(auctionapi.UserMessage(err, messageCreateFailed))}
	}
	if strings.TrimSpace(listing.ID) == "" {
		return Result{Status: failure(MessageListingUnconfirmed)}
	}
	return Result{Status: success(MessageListingCreated), Redirect: listingLink(listing.ID)}
}

// LoadEditor loads a listing for editing. Only the seller may edit.
func (controller *Controller) LoadEditor(ctx context.Context, id string) EditorView {
	id = strings.TrimSpace(id)
	if id == "" {
		return EditorView{Status: failure(MessageNothingToEdit)}
	}
	if !controller.session.SignedIn() {
		return EditorView{Status: warning(MessageSignInToEdit)}
	}
	listing, err := controller.api.GetListing(ctx, id, auctionapi.Include{Seller: true})
	if err != nil {
		controller.logger.Warn("unable to load listing for editing", zap.String("listing_id", id), zap.Error(err))
		return EditorView{Status: failure(auctionapi.UserMessage(err, messageEditorLoadFailed))}
	}
	if !controller.isOwner(listing) {
		return EditorView{Listing: listing, Status: failure(MessageNotYourListing)}
	}
	return EditorView{Listing: listing, Editable: true}
}

// UpdateListing saves an edit. The deadline rule is relaxed when the end time
// is left as it was.
func (controller *Controller) UpdateListing(ctx context.Context, id string, form forms.ListingForm) Result {
	editor := controller.LoadEditor(ctx, id)
	if !editor.Editable {
		return Result{Status: editor.Status}
	}
	input, err := forms.ValidateListingUpdate(form, editor.Listing.EndsAt, controller.now())
	if err != nil {
		return Result{Status: failure(err.Error())}
	}
	updated, err := controller.api.UpdateListing(ctx, editor.Listing.ID, input)
	if err != nil {
		controller.logger.Warn("unable to update listing", zap.String("listing_id", editor.Listing.ID), zap.Error(err))
		return Result{Status: failure(auctionapi.UserMessage(err, messageUpdateFailed))}
	}
	target := updated.ID
	if target == "" {
		target = editor.Listing.ID
	}
	return Result{Status: success(MessageListingUpdated), Redirect: listingLink(target)}
}

// DeleteListing removes a listing the user owns and redirects to their profile.
func (controller *Controller) DeleteListing(ctx context.Context, id string) Result {
	editor := controller.LoadEditor(ctx, id)
	if !editor.Editable {
		return Result{Status: editor.Status}
	}
	if err := controller.api.DeleteListing(ctx, editor.Listing.ID); err != nil {
		controller.logger.Warn("unable to delete listing", zap.String("listing_id", editor.Listing.ID), zap.Error(err))
		return Result{Status: failure(auctionapi.UserMessage(err, messageDeleteFailed))}
	}
	return Result{Status: success(MessageListingDeleted), Redirect: chrome.ProfileLink(controller.session.UserName())}
}
