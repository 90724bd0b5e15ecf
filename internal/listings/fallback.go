package listings

import (
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/auctionapi"
)

const (
	FallbackSellerName = "Sample seller"
	fallbackIDPrefix   = "sample-"
)

// FallbackListings are shown when the API cannot be reached. Their deadlines
// are relative to now.
func FallbackListings(now time.Time) []auctionapi.Listing {
	seller := &auctionapi.ProfileRef{Name: FallbackSellerName}
	return []auctionapi.Listing{
		{
			ID:          "sample-1",
			Title:       "Hand-painted cat portrait",
			Description: "A cheerful study in gouache ready to brighten any reading nook.",
			Media: []auctionapi.Media{{
				URL: "https://images.unsplash.com/photo-1518791841217-8f162f1e1131?auto=format&fit=crop&w=800&q=80",
				Alt: "Cat portrait",
			}},
			EndsAt: now.Add(3 * 24 * time.Hour),
			Bids:   sampleBids(48, 72),
			Seller: seller,
			Count:  auctionapi.Count{Bids: 2},
		},
		{
			ID:          "sample-2",
			Title:       "Vintage brass collar",
			Description: "Soft velvet lining with tiny bells collected from a Parisian market.",
			Media: []auctionapi.Media{{
				URL: "https://images.unsplash.com/photo-1543852786-1cf6624b9987?auto=format&fit=crop&w=800&q=80",
				Alt: "Brass collar",
			}},
			EndsAt: now.Add(7 * 24 * time.Hour),
			Bids:   sampleBids(18, 34, 55, 63, 80),
			Seller: seller,
			Count:  auctionapi.Count{Bids: 5},
		},
	}
}

// FallbackProfile is shown when a profile cannot be loaded.
func FallbackProfile(now time.Time) auctionapi.Profile {
	samples := FallbackListings(now)
	return auctionapi.Profile{
		Name:     "Sample Seller",
		Email:    "sample.seller@stud.noroff.no",
		Listings: samples,
		Count:    auctionapi.Count{Listings: len(samples)},
	}
}

// IsFallback reports whether id names one of the bundled sample listings.
func IsFallback(id string) bool {
	return strings.HasPrefix(id, fallbackIDPrefix)
}

func sampleBids(amounts ...int64) []auctionapi.Bid {
	bids := make([]auctionapi.Bid, 0, len(amounts))
	for _, amount := range amounts {
		bids = append(bids, auctionapi.Bid{Amount: amount})
	}
	return bids
}
