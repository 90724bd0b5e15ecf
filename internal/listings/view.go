package listings

import (
	"sort"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/auctionapi"
)

// PageSize is the number of listings shown per page.
const PageSize = 12

// Page is one page of a listing view.
type Page struct {
	Listings   []auctionapi.Listing `json:"listings"`
	Number     int                  `json:"number"`
	TotalPages int                  `json:"totalPages"`
	Total      int                  `json:"total"`
}

// HasPrevious reports whether a page precedes this one.
func (page Page) HasPrevious() bool {
	return page.Number > 1
}

// HasNext reports whether a page follows this one.
func (page Page) HasNext() bool {
	return page.Number < page.TotalPages
}

// Apply filters, sorts and paginates items for route.
func Apply(items []auctionapi.Listing, route Route, now time.Time) Page {
	view := items
	if route.Active {
		view = FilterActive(view, now)
	}
	return Paginate(Sort(view, route.Sort), route.Page)
}

// FilterActive drops listings whose auction has ended.
func FilterActive(items []auctionapi.Listing, now time.Time) []auctionapi.Listing {
	active := make([]auctionapi.Listing, 0, len(items))
	for _, item := range items {
		if !item.HasEnded(now) {
			active = append(active, item)
		}
	}
	return active
}

// Sort returns a sorted copy of items. Ties keep their original order.
func Sort(items []auctionapi.Listing, key SortKey) []auctionapi.Listing {
	sorted := make([]auctionapi.Listing, len(items))
	copy(sorted, items)
	less := lessFor(key)
	sort.SliceStable(sorted, func(left, right int) bool {
		return less(sorted[left], sorted[right])
	})
	return sorted
}

func lessFor(key SortKey) func(left, right auctionapi.Listing) bool {
	switch key {
	case SortEnding:
		return func(left, right auctionapi.Listing) bool {
			if left.EndsAt.IsZero() != right.EndsAt.IsZero() {
				return right.EndsAt.IsZero()
			}
			return left.EndsAt.Before(right.EndsAt)
		}
	case SortBids:
		return func(left, right auctionapi.Listing) bool {
			return left.BidCount() > right.BidCount()
		}
	case SortPriceHigh:
		return func(left, right auctionapi.Listing) bool {
			return left.HighestBidAmount() > right.HighestBidAmount()
		}
	case SortPriceLow:
		return func(left, right auctionapi.Listing) bool {
			return left.HighestBidAmount() < right.HighestBidAmount()
		}
	case SortTitle:
		return func(left, right auctionapi.Listing) bool {
			return strings.ToLower(left.Title) < strings.ToLower(right.Title)
		}
	default:
		return func(left, right auctionapi.Listing) bool {
			return left.Created.After(right.Created)
		}
	}
}

// Paginate slices items into PageSize pages. Out-of-range page numbers are
// clamped.
func Paginate(items []auctionapi.Listing, number int) Page {
	total := len(items)
	totalPages := (total + PageSize - 1) / PageSize
	if totalPages == 0 {
		totalPages = 1
	}
	if number < 1 {
		number = 1
	}
	if number > totalPages {
		number = totalPages
	}
	start := (number - 1) * PageSize
	end := start + PageSize
	if end > total {
		end = total
	}
	return Page{
		Listings:   items[start:end],
		Number:     number,
		TotalPages: totalPages,
		Total:      total,
	}
}
