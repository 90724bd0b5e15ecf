package listings

import (
	"fmt"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/auctionapi"
)

func TestParseRoute(test *testing.T) {
	testCases := []struct {
		name string
		raw  string
		want Route
	}{
		{name: "empty", raw: "", want: Route{Page: 1, Sort: SortNewest}},
		{name: "listing url", raw: "https://auction.example/listing.html?id=abc-1", want: Route{ID: "abc-1", Page: 1, Sort: SortNewest}},
		{name: "bare query", raw: "query=brass%20lamp&page=3&sort=price-low&active=true", want: Route{Query: "brass lamp", Page: 3, Sort: SortPriceLow, Active: true}},
		{name: "profile path", raw: "/profile?name=ada#wins", want: Route{Name: "ada", Page: 1, Sort: SortNewest}},
		{name: "bad values", raw: "?page=-2&sort=cheapest&active=maybe", want: Route{Page: 1, Sort: SortNewest}},
		{name: "path without query", raw: "/listings", want: Route{Page: 1, Sort: SortNewest}},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			route, err := ParseRoute(testCase.raw)
			if err != nil {
				test.Fatalf("parse: %v", err)
			}
			if route != testCase.want {
				test.Fatalf("expected %+v, got %+v", testCase.want, route)
			}
		})
	}
}

func TestRouteEncodeRoundTrip(test *testing.T) {
	route := Route{Query: "cat & dog", Page: 2, Sort: SortEnding, Active: true}
	encoded := route.Encode()
	if encoded != "active=true&page=2&query=cat+%26+dog&sort=ending" {
		test.Fatalf("unexpected encoding %q", encoded)
	}
	parsed, err := ParseRoute(encoded)
	if err != nil || parsed != route {
		test.Fatalf("round trip mismatch: %+v %v", parsed, err)
	}
	if got := (Route{Page: 1, Sort: SortNewest}).Encode(); got != "" {
		test.Fatalf("defaults should encode empty, got %q", got)
	}
}

func newListing(id string, title string, created time.Time, endsAt time.Time, bids ...int64) auctionapi.Listing {
	listing := auctionapi.Listing{ID: id, Title: title, Created: created, EndsAt: endsAt}
	for _, amount := range bids {
		listing.Bids = append(listing.Bids, auctionapi.Bid{Amount: amount})
	}
	return listing
}

func ids(items []auctionapi.Listing) string {
	result := ""
	for _, item := range items {
		result += item.ID
	}
	return result
}

func TestSort(test *testing.T) {
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	items := []auctionapi.Listing{
		newListing("a", "banjo", now.Add(-3*time.Hour), now.Add(5*time.Hour), 10),
		newListing("b", "Accordion", now.Add(-1*time.Hour), now.Add(2*time.Hour), 40, 50, 60),
		newListing("c", "cello", now.Add(-2*time.Hour), time.Time{}),
	}
	testCases := []struct {
		key  SortKey
		want string
	}{
		{key: SortNewest, want: "bca"},
		{key: SortEnding, want: "bac"},
		{key: SortBids, want: "bac"},
		{key: SortPriceHigh, want: "bac"},
		{key: SortPriceLow, want: "cab"},
		{key: SortTitle, want: "bac"},
	}
	for _, testCase := range testCases {
		if got := ids(Sort(items, testCase.key)); got != testCase.want {
			test.Fatalf("sort %s: expected %s, got %s", testCase.key, testCase.want, got)
		}
	}
	if ids(items) != "abc" {
		test.Fatalf("Sort must not reorder its input")
	}
}

func TestApplyFiltersAndPaginates(test *testing.T) {
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	var items []auctionapi.Listing
	for index := 0; index < 30; index++ {
		endsAt := now.Add(time.Duration(index+1) * time.Hour)
		if index%10 == 0 {
			endsAt = now.Add(-time.Hour)
		}
		items = append(items, newListing(fmt.Sprintf("L%02d", index), "item", now.Add(time.Duration(index)*time.Minute), endsAt))
	}

	page := Apply(items, Route{Page: 3, Sort: SortNewest, Active: true}, now)
	if page.Total != 27 || page.TotalPages != 3 || page.Number != 3 || len(page.Listings) != 3 {
		test.Fatalf("unexpected page %+v", page)
	}
	if !page.HasPrevious() || page.HasNext() {
		test.Fatalf("unexpected navigation flags")
	}

	clamped := Paginate(items, 99)
	if clamped.Number != 3 || len(clamped.Listings) != 6 {
		test.Fatalf("expected last page clamp, got %+v", clamped)
	}
	empty := Paginate(nil, 1)
	if empty.TotalPages != 1 || len(empty.Listings) != 0 {
		test.Fatalf("unexpected empty page %+v", empty)
	}
}

func TestFallbackListings(test *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	samples := FallbackListings(now)
	if len(samples) != 2 || samples[0].ID != "sample-1" || samples[1].HighestBidAmount() != 80 {
		test.Fatalf("unexpected samples %+v", samples)
	}
	if !samples[1].EndsAt.Equal(now.Add(7 * 24 * time.Hour)) {
		test.Fatalf("unexpected deadline %v", samples[1].EndsAt)
	}
	if !IsFallback(samples[0].ID) || IsFallback("real-id") {
		test.Fatalf("IsFallback mismatch")
	}
	profile := FallbackProfile(now)
	if profile.Count.Listings != 2 || profile.Credits != 0 {
		test.Fatalf("unexpected profile %+v", profile)
	}
}
