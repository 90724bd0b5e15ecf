package webapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/auctionapi"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/chrome"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/pages"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/session"
	"github.com/MarkoPoloResearchLab/auctionhouse/pkg/events"
	"github.com/MarkoPoloResearchLab/auctionhouse/pkg/ledger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)

type stubAPI struct {
	credits  int64
	listings map[string]auctionapi.Listing
}

func (api *stubAPI) Login(_ context.Context, credentials auctionapi.Credentials) (auctionapi.Auth, error) {
	return auctionapi.Auth{Name: "ada", Email: credentials.Email, AccessToken: "token-ada"}, nil
}

func (api *stubAPI) Register(_ context.Context, registration auctionapi.Registration) (auctionapi.Profile, error) {
	return auctionapi.Profile{Name: registration.Name, Email: registration.Email}, nil
}

func (api *stubAPI) GetProfile(_ context.Context, name string, _ auctionapi.Include) (auctionapi.Profile, error) {
	return auctionapi.Profile{Name: name, Credits: api.credits}, nil
}

func (api *stubAPI) ListListings(_ context.Context, _ auctionapi.ListParams) (auctionapi.ListingsPage, error) {
	page := auctionapi.ListingsPage{}
	for _, listing := range api.listings {
		page.Listings = append(page.Listings, listing)
	}
	return page, nil
}

func (api *stubAPI) SearchListings(ctx context.Context, _ string, params auctionapi.ListParams) (auctionapi.ListingsPage, error) {
	return api.ListListings(ctx, params)
}

func (api *stubAPI) GetListing(_ context.Context, id string, _ auctionapi.Include) (auctionapi.Listing, error) {
	listing, ok := api.listings[id]
	if !ok {
		return auctionapi.Listing{}, &auctionapi.APIError{Status: http.StatusNotFound, Messages: []string{"No listing with such ID"}}
	}
	return listing, nil
}

func (api *stubAPI) CreateListing(_ context.Context, input auctionapi.ListingInput) (auctionapi.Listing, error) {
	return auctionapi.Listing{ID: "created", Title: input.Title}, nil
}

func (api *stubAPI) UpdateListing(_ context.Context, id string, input auctionapi.ListingInput) (auctionapi.Listing, error) {
	return auctionapi.Listing{ID: id, Title: input.Title}, nil
}

func (api *stubAPI) DeleteListing(_ context.Context, _ string) error {
	return nil
}

func (api *stubAPI) PlaceBid(_ context.Context, id string, amount int64) (auctionapi.Listing, error) {
	listing := api.listings[id]
	listing.Bids = append(listing.Bids, auctionapi.Bid{Amount: amount, Bidder: auctionapi.ProfileRef{Name: "ada"}})
	api.listings[id] = listing
	return listing, nil
}

func (api *stubAPI) UpdateProfile(_ context.Context, name string, update auctionapi.ProfileUpdate) (auctionapi.Profile, error) {
	return auctionapi.Profile{Name: name, Avatar: update.Avatar}, nil
}

func (api *stubAPI) ProfileListings(_ context.Context, _ string, _ auctionapi.ListParams) ([]auctionapi.Listing, error) {
	return nil, nil
}

func (api *stubAPI) ProfileWins(_ context.Context, _ string, _ auctionapi.ListParams) ([]auctionapi.Listing, error) {
	return nil, nil
}

func (api *stubAPI) ProfileBids(_ context.Context, _ string, _ auctionapi.ListParams) ([]auctionapi.Bid, error) {
	return nil, nil
}

type fixture struct {
	router *gin.Engine
	api    *stubAPI
	ledger *ledger.Service
}

func newFixture(t *testing.T, credits int64) fixture {
	t.Helper()
	now := func() time.Time { return testNow }
	bus := events.NewBus()
	service, err := ledger.NewService(ledger.NewMemoryStore(), now, ledger.WithPublisher(bus))
	require.NoError(t, err)
	api := &stubAPI{credits: credits, listings: map[string]auctionapi.Listing{
		"l1": {
			ID:     "l1",
			Title:  "Brass lamp",
			EndsAt: testNow.Add(24 * time.Hour),
			Seller: &auctionapi.ProfileRef{Name: "bob"},
			Bids:   []auctionapi.Bid{{Amount: 50, Bidder: auctionapi.ProfileRef{Name: "carol"}}},
		},
	}}
	current, err := session.New(session.NewMemoryAuthStore(), service, api, bus, session.WithClock(now))
	require.NoError(t, err)
	t.Cleanup(current.Close)
	header := chrome.Watch(bus, current.Auth(), now)
	t.Cleanup(header.Close)
	current.Start(context.Background())

	controller, err := pages.New(api, current, pages.WithClock(now))
	require.NoError(t, err)
	router, err := NewRouter(Config{AllowedOrigins: []string{"http://localhost:8000"}}, Dependencies{Pages: controller, Chrome: header})
	require.NoError(t, err)
	return fixture{router: router, api: api, ledger: service}
}

func (fx fixture) do(t *testing.T, method string, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var request *http.Request
	if body == "" {
		request = httptest.NewRequest(method, target, nil)
	} else {
		request = httptest.NewRequest(method, target, strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	fx.router.ServeHTTP(recorder, request)
	return recorder
}

func (fx fixture) login(t *testing.T) {
	t.Helper()
	recorder := fx.do(t, http.MethodPost, "/api/session/login", `{"email":"ada@stud.noroff.no","password":"password1"}`)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
}

func decode[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var payload T
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	return payload
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestNewRouterRequiresDependencies(t *testing.T) {
	_, err := NewRouter(Config{}, Dependencies{})
	require.ErrorIs(t, err, ErrInvalidServerConfig)
}

func TestHealthz(t *testing.T) {
	fx := newFixture(t, 0)
	recorder := fx.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"status":"ok"}`, recorder.Body.String())
}

func TestLoginUpdatesSessionAndChrome(t *testing.T) {
	fx := newFixture(t, 500)

	signedOut := decode[sessionResponse](t, fx.do(t, http.MethodGet, "/api/session", ""))
	assert.False(t, signedOut.SignedIn)

	recorder := fx.do(t, http.MethodPost, "/api/session/login", `{"email":"ada@stud.noroff.no","password":"password1"}`)
	require.Equal(t, http.StatusOK, recorder.Code)
	result := decode[pages.Result](t, recorder)
	assert.Equal(t, pages.MessageSignedIn, result.Status.Message)
	assert.Equal(t, "/profile?name=ada", result.Redirect)

	current := decode[sessionResponse](t, fx.do(t, http.MethodGet, "/api/session", ""))
	assert.True(t, current.SignedIn)
	assert.Equal(t, "ada", current.Name)
	require.NotNil(t, current.Credits)
	assert.EqualValues(t, 500, *current.Credits)

	badges := decode[chrome.Badges](t, fx.do(t, http.MethodGet, "/api/chrome", ""))
	assert.Equal(t, "500 credits", badges.Credits.Text)
	assert.Equal(t, "500 credits", badges.Available.Text)

	logout := fx.do(t, http.MethodDelete, "/api/session", "")
	assert.Equal(t, http.StatusOK, logout.Code)
	assert.False(t, decode[chrome.Badges](t, fx.do(t, http.MethodGet, "/api/chrome", "")).SignedIn)
}

func TestInvalidPayload(t *testing.T) {
	fx := newFixture(t, 0)
	recorder := fx.do(t, http.MethodPost, "/api/session/login", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "invalid_payload", decode[errorPayload](t, recorder).Error.Code)
}

func TestRejectedFormIsUnprocessable(t *testing.T) {
	fx := newFixture(t, 0)
	recorder := fx.do(t, http.MethodPost, "/api/session/register", `{"name":"ada","email":"ada@gmail.com","password":"password1","confirmPassword":"password1"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
	assert.Equal(t, pages.ToneError, decode[pages.Result](t, recorder).Status.Tone)
}

func TestListingsAndBidding(t *testing.T) {
	fx := newFixture(t, 1000)

	listingsView := decode[pages.ListingsView](t, fx.do(t, http.MethodGet, "/api/listings?sort=bids", ""))
	assert.Equal(t, 1, listingsView.Page.Total)

	signedOut := fx.do(t, http.MethodPost, "/api/listings/l1/bids", `{"amount":"100"}`)
	assert.Equal(t, http.StatusOK, signedOut.Code)
	assert.Contains(t, signedOut.Body.String(), pages.MessageLogInToBid)

	fx.login(t)
	tooLow := fx.do(t, http.MethodPost, "/api/listings/l1/bids", `{"amount":"20"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, tooLow.Code)
	assert.Contains(t, tooLow.Body.String(), "Your bid must be at least 51 credits.")

	placed := fx.do(t, http.MethodPost, "/api/listings/l1/bids", `{"amount":"100"}`)
	assert.Equal(t, http.StatusOK, placed.Code, placed.Body.String())
	assert.EqualValues(t, 900, fx.ledger.AvailableCredits())
}

func TestReservationEndpoints(t *testing.T) {
	fx := newFixture(t, 500)
	fx.login(t)

	reserved := fx.do(t, http.MethodPost, "/api/credits/reservations", `{"listingId":"l9","amount":200,"listingTitle":"Vase"}`)
	require.Equal(t, http.StatusOK, reserved.Code, reserved.Body.String())
	assert.EqualValues(t, 300, decode[map[string]any](t, reserved)["available"])

	insufficient := fx.do(t, http.MethodPost, "/api/credits/reservations", `{"listingId":"l8","amount":400}`)
	assert.Equal(t, http.StatusConflict, insufficient.Code)
	assert.Equal(t, errorInsufficient, decode[errorPayload](t, insufficient).Error.Code)

	invalid := fx.do(t, http.MethodPost, "/api/credits/reservations", `{"listingId":" ","amount":10}`)
	assert.Equal(t, http.StatusBadRequest, invalid.Code)
	assert.Equal(t, errorInvalidListingID, decode[errorPayload](t, invalid).Error.Code)

	unknown := fx.do(t, http.MethodDelete, "/api/credits/reservations/missing", "")
	assert.Equal(t, http.StatusNotFound, unknown.Code)

	won := fx.do(t, http.MethodPost, "/api/credits/reservations/l9/win", `{"reason":"auction ended"}`)
	require.Equal(t, http.StatusOK, won.Code, won.Body.String())

	released := fx.do(t, http.MethodDelete, "/api/credits/reservations/l9?reason=outbid", "")
	assert.Equal(t, http.StatusConflict, released.Code)
	assert.Equal(t, errorReservationWon, decode[errorPayload](t, released).Error.Code)

	history := decode[struct {
		Transactions []ledger.Transaction `json:"transactions"`
	}](t, fx.do(t, http.MethodGet, "/api/credits/transactions", ""))
	require.NotEmpty(t, history.Transactions)
	assert.Equal(t, ledger.TransactionBidWon, history.Transactions[0].Type)
}

func TestReportedCreditsReachLedger(t *testing.T) {
	fx := newFixture(t, 500)
	fx.login(t)

	missing := fx.do(t, http.MethodPost, "/api/credits/sync", `{"reason":"wallet"}`)
	assert.Equal(t, http.StatusBadRequest, missing.Code)

	recorder := fx.do(t, http.MethodPost, "/api/credits/sync", `{"credits":750,"reason":"wallet"}`)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, int64(750), decode[availableResponse](t, recorder).Available)
}

func TestReconcileEndpointReleasesOutbid(t *testing.T) {
	fx := newFixture(t, 500)
	fx.login(t)
	fx.do(t, http.MethodPost, "/api/credits/reservations", `{"listingId":"l5","amount":100}`)

	body := `{"listings":[{"id":"l5","title":"Clock","endsAt":"2024-05-03T10:00:00Z","bids":[{"amount":150,"bidder":{"name":"carol"}}]}]}`
	recorder := fx.do(t, http.MethodPost, "/api/credits/reconcile", body)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	assert.Equal(t, int64(500), decode[availableResponse](t, recorder).Available)
}

func TestMapLedgerError(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "insufficient", err: ledger.AffordabilityError{}, status: http.StatusConflict, code: errorInsufficient},
		{name: "wrapped unknown", err: ledger.WrapError("ledger", "reservation", "release", ledger.ErrUnknownReservation), status: http.StatusNotFound, code: errorUnknownReservation},
		{name: "amount", err: ledger.ErrInvalidAmount, status: http.StatusBadRequest, code: errorInvalidAmount},
		{name: "other", err: assert.AnError, status: http.StatusInternalServerError, code: errorLedger},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			status, code := mapLedgerError(testCase.err)
			assert.Equal(t, testCase.status, status)
			assert.Equal(t, testCase.code, code)
		})
	}
}
