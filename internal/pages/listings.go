package pages

import (
	"context"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/auctionapi"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/listings"
	"go.uber.org/zap"
)

const (
	MessageNoMatches        = "No listings matched your search."
	MessageNoListings       = "No listings found. Try a different search."
	messageListingsFallback = "We couldn't load listings right now. Showing examples instead."
)

// ListingsView is the browse/search page.
type ListingsView struct {
	Route    listings.Route `json:"route"`
	Status   Status         `json:"status"`
	Page     listings.Page  `json:"page"`
	Empty    string         `json:"empty"`
	Fallback bool           `json:"fallback"`
}

// Listings loads the browse page for route. A query searches; otherwise the
// newest listings are listed. API failures fall back to the bundled samples.
func (controller *Controller) Listings(ctx context.Context, route listings.Route) ListingsView {
	view := ListingsView{Route: route}
	params := auctionapi.DefaultListParams()

	var (
		result auctionapi.ListingsPage
		err    error
	)
	if route.Query != "" {
		result, err = controller.api.SearchListings(ctx, route.Query, params)
	} else {
		result, err = controller.api.ListListings(ctx, params)
	}
	if err != nil {
		controller.logger.Warn("unable to load listings", zap.String("query", route.Query), zap.Error(err))
		view.Status = failure(auctionapi.UserMessage(err, messageListingsFallback))
		view.Fallback = true
		view.Page = listings.Apply(listings.FallbackListings(controller.now()), route, controller.now())
		return view
	}
	if len(result.Listings) == 0 {
		view.Status = warning(MessageNoMatches)
		view.Empty = MessageNoListings
		view.Page = listings.Paginate(nil, 1)
		return view
	}

	controller.reconcile(ctx, result.Listings...)
	view.Page = listings.Apply(result.Listings, route, controller.now())
	if view.Page.Total == 0 {
		view.Empty = MessageNoListings
	}
	return view
}
