// Package pages holds one controller per screen. Controllers call the auction
// API, keep the credit ledger in step with what the server reports, and
// return view models with a status line; they never return transport errors
// to the caller.
package pages

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/auctionapi"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/session"
	"go.uber.org/zap"
)

// ErrInvalidControllerConfig indicates missing dependencies.
var ErrInvalidControllerConfig = errors.New("invalid page controller configuration")

// Tone classifies a status line.
type Tone string

const (
	ToneInfo    Tone = "info"
	ToneWarning Tone = "warning"
	ToneError   Tone = "error"
	ToneSuccess Tone = "success"
)

// Status is the message shown above a page or form. The zero value shows
// nothing.
type Status struct {
	Tone    Tone   `json:"tone,omitempty"`
	Message string `json:"message,omitempty"`
}

// Visible reports whether the status has text.
func (status Status) Visible() bool {
	return status.Message != ""
}

// Failed reports whether the status describes an error.
func (status Status) Failed() bool {
	return status.Tone == ToneError
}

func info(message string) Status    { return Status{Tone: ToneInfo, Message: message} }
func warning(message string) Status { return Status{Tone: ToneWarning, Message: message} }
func failure(message string) Status { return Status{Tone: ToneError, Message: message} }
func success(message string) Status { return Status{Tone: ToneSuccess, Message: message} }

// Result is the outcome of a form submission.
type Result struct {
	Status   Status `json:"status"`
	Redirect string `json:"redirect,omitempty"`
}

// API is the part of the auction API the page controllers use.
type API interface {
	ListListings(ctx context.Context, params auctionapi.ListParams) (auctionapi.ListingsPage, error)
	SearchListings(ctx context.Context, query string, params auctionapi.ListParams) (auctionapi.ListingsPage, error)
	GetListing(ctx context.Context, id string, include auctionapi.Include) (auctionapi.Listing, error)
	CreateListing(ctx context.Context, input auctionapi.ListingInput) (auctionapi.Listing, error)
	UpdateListing(ctx context.Context, id string, input auctionapi.ListingInput) (auctionapi.Listing, error)
	DeleteListing(ctx context.Context, id string) error
	PlaceBid(ctx context.Context, id string, amount int64) (auctionapi.Listing, error)
	GetProfile(ctx context.Context, name string, include auctionapi.Include) (auctionapi.Profile, error)
	UpdateProfile(ctx context.Context, name string, update auctionapi.ProfileUpdate) (auctionapi.Profile, error)
	ProfileListings(ctx context.Context, name string, params auctionapi.ListParams) ([]auctionapi.Listing, error)
	ProfileWins(ctx context.Context, name string, params auctionapi.ListParams) ([]auctionapi.Listing, error)
	ProfileBids(ctx context.Context, name string, params auctionapi.ListParams) ([]auctionapi.Bid, error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(logger *zap.Logger) Option {
	return func(controller *Controller) {
		if logger != nil {
			controller.logger = logger
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(controller *Controller) {
		if now != nil {
			controller.now = now
		}
	}
}

// Controller serves every page of the auction house.
type Controller struct {
	api     API
	session *session.Session
	logger  *zap.Logger
	now     func() time.Time
}

// New wires a Controller around a started session.
func New(api API, current *session.Session, options ...Option) (*Controller, error) {
	if api == nil || current == nil {
		return nil, fmt.Errorf("%w: api and session are required", ErrInvalidControllerConfig)
	}
	controller := &Controller{api: api, session: current, logger: zap.NewNop(), now: time.Now}
	for _, option := range options {
		if option != nil {
			option(controller)
		}
	}
	return controller, nil
}

// Session returns the session the controller acts for.
func (controller *Controller) Session() *session.Session {
	return controller.session
}

// reconcile aligns the ledger with fetched listings. Failures are logged; the
// page still renders.
func (controller *Controller) reconcile(ctx context.Context, listings ...auctionapi.Listing) {
	user := controller.session.UserName()
	if user == "" {
		return
	}
	for _, listing := range listings {
		if err := controller.session.Credits().ReconcileListing(ctx, listing.Snapshot(), user); err != nil {
			controller.logger.Warn("unable to reconcile listing credits", zap.String("listing_id", listing.ID), zap.Error(err))
		}
	}
}

func (controller *Controller) isOwner(listing auctionapi.Listing) bool {
	user := controller.session.UserName()
	seller := listing.SellerName()
	return user != "" && seller != "" && strings.EqualFold(user, seller)
}

func listingLink(id string) string {
	return "/listing?id=" + id
}
