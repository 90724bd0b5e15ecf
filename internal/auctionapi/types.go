package auctionapi

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/auctionhouse/pkg/ledger"
)

// Media is an image reference attached to listings and profiles.
type Media struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

// ProfileRef is the short profile form embedded in listings and bids.
type ProfileRef struct {
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Bio    string `json:"bio,omitempty"`
	Avatar *Media `json:"avatar,omitempty"`
}

// Count mirrors the _count object returned next to collections.
type Count struct {
	Bids     int `json:"bids,omitempty"`
	Listings int `json:"listings,omitempty"`
	Wins     int `json:"wins,omitempty"`
}

// Bid is a single bid on a listing.
type Bid struct {
	ID      string     `json:"id"`
	Amount  int64      `json:"amount"`
	Bidder  ProfileRef `json:"bidder"`
	Created time.Time  `json:"created"`
	Listing *Listing   `json:"listing,omitempty"`
}

// Listing is an auction listing.
type Listing struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	Media       []Media     `json:"media,omitempty"`
	Created     time.Time   `json:"created"`
	Updated     time.Time   `json:"updated"`
	EndsAt      time.Time   `json:"endsAt"`
	Bids        []Bid       `json:"bids,omitempty"`
	Seller      *ProfileRef `json:"seller,omitempty"`
	Count       Count       `json:"_count"`
}

// BidCount prefers the server count and falls back to the embedded bids.
func (listing Listing) BidCount() int {
	if listing.Count.Bids > 0 {
		return listing.Count.Bids
	}
	return len(listing.Bids)
}

// HighestBidAmount returns the largest bid amount or zero.
func (listing Listing) HighestBidAmount() int64 {
	var highest int64
	for _, bid := range listing.Bids {
		if bid.Amount > highest {
			highest = bid.Amount
		}
	}
	return highest
}

// SellerName returns the seller's name or an empty string.
func (listing Listing) SellerName() string {
	if listing.Seller == nil {
		return ""
	}
	return listing.Seller.Name
}

// HasEnded reports whether the auction closed at or before now. Listings
// without an end time never end.
func (listing Listing) HasEnded(now time.Time) bool {
	return !listing.EndsAt.IsZero() && !listing.EndsAt.After(now)
}

// Snapshot converts the listing into the form the credit ledger reconciles.
func (listing Listing) Snapshot() ledger.ListingSnapshot {
	bids := make([]ledger.BidSnapshot, 0, len(listing.Bids))
	for _, bid := range listing.Bids {
		bids = append(bids, ledger.BidSnapshot{Amount: ledger.Credits(bid.Amount), Bidder: bid.Bidder.Name})
	}
	return ledger.ListingSnapshot{
		ID:     listing.ID,
		Title:  listing.Title,
		EndsAt: listing.EndsAt,
		Bids:   bids,
	}
}

// Profile is a user profile.
type Profile struct {
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Bio      string    `json:"bio,omitempty"`
	Avatar   *Media    `json:"avatar,omitempty"`
	Banner   *Media    `json:"banner,omitempty"`
	Credits  int64     `json:"credits"`
	Listings []Listing `json:"listings,omitempty"`
	Wins     []Listing `json:"wins,omitempty"`
	Count    Count     `json:"_count"`
}

// Auth is the signed-in identity returned by Login and kept in the auth slot.
type Auth struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	AccessToken string `json:"accessToken"`
	Avatar      *Media `json:"avatar,omitempty"`
	Banner      *Media `json:"banner,omitempty"`
	Credits     *int64 `json:"credits,omitempty"`
}

// SignedIn reports whether the payload carries an access token.
func (auth Auth) SignedIn() bool {
	return strings.TrimSpace(auth.AccessToken) != ""
}

// WithCredits returns a copy of auth carrying the given balance.
func (auth Auth) WithCredits(credits int64) Auth {
	auth.Credits = &credits
	return auth
}

// Registration is the body of POST /auth/register.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Bio      string `json:"bio,omitempty"`
	Avatar   *Media `json:"avatar,omitempty"`
}

// Credentials is the body of POST /auth/login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ListingInput is the body for creating or updating a listing.
type ListingInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Media       []Media    `json:"media,omitempty"`
	EndsAt      *time.Time `json:"endsAt,omitempty"`
}

// ProfileUpdate is the body of PUT /auction/profiles/{name}.
type ProfileUpdate struct {
	Bio    *string `json:"bio,omitempty"`
	Avatar *Media  `json:"avatar,omitempty"`
	Banner *Media  `json:"banner,omitempty"`
}

// Meta is the pagination block of list responses.
type Meta struct {
	IsFirstPage  bool `json:"isFirstPage"`
	IsLastPage   bool `json:"isLastPage"`
	CurrentPage  int  `json:"currentPage"`
	PreviousPage *int `json:"previousPage"`
	NextPage     *int `json:"nextPage"`
	PageCount    int  `json:"pageCount"`
	TotalCount   int  `json:"totalCount"`
}

// ListingsPage is one page of listings.
type ListingsPage struct {
	Listings []Listing
	Meta     Meta
}

// ListParams are the query options accepted by listing collections.
type ListParams struct {
	Sort      string
	SortOrder string
	Limit     int
	Page      int
	Seller    bool
	Bids      bool
	Active    bool
	Tag       string
}

// DefaultListParams returns the query the listings page starts with.
func DefaultListParams() ListParams {
	return ListParams{Sort: "created", SortOrder: "desc", Seller: true, Bids: true, Limit: 40}
}

// Values encodes the params, skipping empty ones.
func (params ListParams) Values() url.Values {
	values := url.Values{}
	setString(values, "sort", params.Sort)
	setString(values, "sortOrder", params.SortOrder)
	if params.Limit > 0 {
		values.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Page > 0 {
		values.Set("page", strconv.Itoa(params.Page))
	}
	setFlag(values, "_seller", params.Seller)
	setFlag(values, "_bids", params.Bids)
	setFlag(values, "_active", params.Active)
	setString(values, "_tag", params.Tag)
	return values
}

// Include selects the relations embedded in single-resource responses.
type Include struct {
	Seller   bool
	Bids     bool
	Listings bool
	Wins     bool
}

// Values encodes the include flags.
func (include Include) Values() url.Values {
	values := url.Values{}
	setFlag(values, "_seller", include.Seller)
	setFlag(values, "_bids", include.Bids)
	setFlag(values, "_listings", include.Listings)
	setFlag(values, "_wins", include.Wins)
	return values
}

func setString(values url.Values, key string, value string) {
	if strings.TrimSpace(value) != "" {
		values.Set(key, value)
	}
}

func setFlag(values url.Values, key string, enabled bool) {
	if enabled {
		values.Set(key, "true")
	}
}
