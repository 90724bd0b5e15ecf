package auctionapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Register creates an account. It does not sign in.
func (client *Client) Register(ctx context.Context, registration Registration) (Profile, error) {
	var response envelope[Profile]
	err := client.do(ctx, call{method: http.MethodPost, path: "/auth/register", body: registration}, &response)
	return response.Data, err
}

// Login exchanges credentials for an access token.
func (client *Client) Login(ctx context.Context, credentials Credentials) (Auth, error) {
	var response envelope[Auth]
	if err := client.do(ctx, call{method: http.MethodPost, path: "/auth/login", body: credentials}, &response); err != nil {
		return Auth{}, err
	}
	if !response.Data.SignedIn() {
		return Auth{}, ErrLoginFailed
	}
	return response.Data, nil
}

// ListListings returns one page of listings.
func (client *Client) ListListings(ctx context.Context, params ListParams) (ListingsPage, error) {
	var response envelope[[]Listing]
	err := client.do(ctx, call{method: http.MethodGet, path: "/auction/listings", query: params.Values()}, &response)
	return ListingsPage{Listings: response.Data, Meta: response.Meta}, err
}

// SearchListings runs a free-text search over titles and descriptions.
func (client *Client) SearchListings(ctx context.Context, query string, params ListParams) (ListingsPage, error) {
	values := params.Values()
	values.Set("q", strings.TrimSpace(query))
	var response envelope[[]Listing]
	err := client.do(ctx, call{method: http.MethodGet, path: "/auction/listings/search", query: values}, &response)
	return ListingsPage{Listings: response.Data, Meta: response.Meta}, err
}

// GetListing fetches a single listing.
func (client *Client) GetListing(ctx context.Context, id string, include Include) (Listing, error) {
	var response envelope[Listing]
	if err := client.do(ctx, call{method: http.MethodGet, path: listingPath(id), query: include.Values()}, &response); err != nil {
		return Listing{}, err
	}
	if response.Data.ID == "" {
		return Listing{}, ErrListingNotFound
	}
	return response.Data, nil
}

// CreateListing publishes a new listing.
func (client *Client) CreateListing(ctx context.Context, input ListingInput) (Listing, error) {
	var response envelope[Listing]
	if err := client.do(ctx, call{method: http.MethodPost, path: "/auction/listings", body: input, requireAuth: true}, &response); err != nil {
		return Listing{}, err
	}
	if response.Data.ID == "" {
		return Listing{}, ErrListingNotFound
	}
	return response.Data, nil
}

// UpdateListing replaces the editable fields of a listing.
func (client *Client) UpdateListing(ctx context.Context, id string, input ListingInput) (Listing, error) {
	var response envelope[Listing]
	err := client.do(ctx, call{method: http.MethodPut, path: listingPath(id), body: input, requireAuth: true}, &response)
	return response.Data, err
}

// DeleteListing removes a listing.
func (client *Client) DeleteListing(ctx context.Context, id string) error {
	return client.do(ctx, call{method: http.MethodDelete, path: listingPath(id), requireAuth: true}, nil)
}

// PlaceBid bids amount credits on a listing and returns the updated listing.
func (client *Client) PlaceBid(ctx context.Context, id string, amount int64) (Listing, error) {
	var response envelope[Listing]
	body := struct {
		Amount int64 `json:"amount"`
	}{Amount: amount}
	err := client.do(ctx, call{method: http.MethodPost, path: listingPath(id) + "/bids", body: body, requireAuth: true}, &response)
	return response.Data, err
}

// GetProfile fetches a profile. The server requires a token for profiles but
// the client sends one only when available.
func (client *Client) GetProfile(ctx context.Context, name string, include Include) (Profile, error) {
	var response envelope[Profile]
	if err := client.do(ctx, call{method: http.MethodGet, path: profilePath(name), query: include.Values()}, &response); err != nil {
		return Profile{}, err
	}
	if response.Data.Name == "" {
		return Profile{}, ErrProfileNotFound
	}
	return response.Data, nil
}

// UpdateProfile changes bio, avatar or banner.
func (client *Client) UpdateProfile(ctx context.Context, name string, update ProfileUpdate) (Profile, error) {
	var response envelope[Profile]
	err := client.do(ctx, call{method: http.MethodPut, path: profilePath(name), body: update, requireAuth: true}, &response)
	return response.Data, err
}

// ProfileListings returns the listings created by a profile.
func (client *Client) ProfileListings(ctx context.Context, name string, params ListParams) ([]Listing, error) {
	var response envelope[[]Listing]
	err := client.do(ctx, call{method: http.MethodGet, path: profilePath(name) + "/listings", query: params.Values()}, &response)
	return response.Data, err
}

// ProfileWins returns the listings a profile has won.
func (client *Client) ProfileWins(ctx context.Context, name string, params ListParams) ([]Listing, error) {
	var response envelope[[]Listing]
	err := client.do(ctx, call{method: http.MethodGet, path: profilePath(name) + "/wins", query: params.Values()}, &response)
	return response.Data, err
}

// ProfileBids returns the bids a profile has placed, with their listings.
func (client *Client) ProfileBids(ctx context.Context, name string, params ListParams) ([]Bid, error) {
	values := params.Values()
	values.Set("_listings", "true")
	var response envelope[[]Bid]
	err := client.do(ctx, call{method: http.MethodGet, path: profilePath(name) + "/bids", query: values}, &response)
	return response.Data, err
}

func listingPath(id string) string {
	return "/auction/listings/" + url.PathEscape(id)
}

func profilePath(name string) string {
	return "/auction/profiles/" + url.PathEscape(name)
}
