package forms

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/auctionapi"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/chrome"
)

const (
	MessageInvalidBid    = "Enter a valid bid amount in credits."
	MessageInvalidAvatar = "Enter a valid image URL."
)

// NextMinimumBid is the smallest bid the listing accepts.
func NextMinimumBid(listing auctionapi.Listing) int64 {
	highest := listing.HighestBidAmount()
	if highest > 0 {
		return highest + 1
	}
	return 1
}

// ValidateBid parses a bid amount, drops any fraction, and requires it to
// beat the current highest bid.
func ValidateBid(raw string, listing auctionapi.Listing) (int64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return 0, invalid("amount", MessageInvalidBid)
	}
	amount := int64(math.Floor(value))
	minimum := NextMinimumBid(listing)
	if err := validate.Var(amount, fmt.Sprintf("gte=%d", minimum)); err != nil {
		return 0, invalid("amount", fmt.Sprintf("Your bid must be at least %s.", chrome.FormatCredits(minimum)))
	}
	return amount, nil
}

// AvatarForm is the raw avatar update form.
type AvatarForm struct {
	URL string
	Alt string
}

// ValidateAvatar returns the profile update for a new avatar.
func ValidateAvatar(form AvatarForm) (auctionapi.ProfileUpdate, error) {
	address := strings.TrimSpace(form.URL)
	if !isAbsoluteURL(address) {
		return auctionapi.ProfileUpdate{}, invalid("avatarUrl", MessageInvalidAvatar)
	}
	return auctionapi.ProfileUpdate{Avatar: &auctionapi.Media{URL: address, Alt: strings.TrimSpace(form.Alt)}}, nil
}
