package forms

import (
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/auctionapi"
)

const (
	MessageTitleTooShort   = "Add a title with at least 3 characters."
	MessageInvalidEndsAt   = "Choose a valid auction end date and time."
	MessageEndsTooSoon     = "Your auction must end at least 1 hour from now."
	MessageInvalidMedia    = "Enter a valid, absolute image URL (including https://)."
	MessageInvalidMediaSet = "Enter valid, absolute URLs for all images."

	MaxTags          = 8
	MaxMedia         = 5
	MinEndOffset     = time.Hour
	unchangedEndsAt  = time.Minute
	dateTimeLocal    = "2006-01-02T15:04"
	dateTimeLocalSec = "2006-01-02T15:04:05"
)

// MediaField is one image row of the listing form.
type MediaField struct {
	URL string
	Alt string
}

// ListingForm is the raw create/edit listing form. EndsAt accepts RFC 3339 or
// the HTML datetime-local layout, the latter read in Location.
type ListingForm struct {
	Title       string         `validate:"min=3"`
	Description string
	EndsAt      string
	Tags        string
	Media       []MediaField   `validate:"-"`
	Location    *time.Location `validate:"-"`
}

// ValidateNewListing checks a listing about to be created.
func ValidateNewListing(form ListingForm, now time.Time) (auctionapi.ListingInput, error) {
	return validateListing(form, nil, now, MessageInvalidMedia)
}

// ValidateListingUpdate checks an edit of an existing listing. A deadline
// within a minute of the current one counts as unchanged and skips the
// minimum-offset rule.
func ValidateListingUpdate(form ListingForm, currentEndsAt time.Time, now time.Time) (auctionapi.ListingInput, error) {
	return validateListing(form, &currentEndsAt, now, MessageInvalidMediaSet)
}

func validateListing(form ListingForm, currentEndsAt *time.Time, now time.Time, mediaMessage string) (auctionapi.ListingInput, error) {
	form.Title = strings.TrimSpace(form.Title)
	form.Description = strings.TrimSpace(form.Description)
	if err := validate.Struct(form); err != nil {
		return auctionapi.ListingInput{}, invalid("title", MessageTitleTooShort)
	}

	endsAt, ok := parseEndsAt(form.EndsAt, form.Location)
	if !ok {
		return auctionapi.ListingInput{}, invalid("endsAt", MessageInvalidEndsAt)
	}
	unchanged := currentEndsAt != nil && !currentEndsAt.IsZero() && absDuration(currentEndsAt.Sub(endsAt)) < unchangedEndsAt
	if !unchanged && endsAt.Sub(now) < MinEndOffset {
		return auctionapi.ListingInput{}, invalid("endsAt", MessageEndsTooSoon)
	}

	media, err := normalizeMedia(form.Media, mediaMessage)
	if err != nil {
		return auctionapi.ListingInput{}, err
	}
	endsAtUTC := endsAt.UTC()
	return auctionapi.ListingInput{
		Title:       form.Title,
		Description: form.Description,
		Tags:        NormalizeTags(form.Tags),
		Media:       media,
		EndsAt:      &endsAtUTC,
	}, nil
}

// NormalizeTags splits a comma separated list, lowercases and dedupes it, and
// keeps at most MaxTags entries.
func NormalizeTags(raw string) []string {
	var tags []string
	seen := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		tag := strings.ToLower(strings.TrimSpace(part))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
		if len(tags) == MaxTags {
			break
		}
	}
	return tags
}

func normalizeMedia(fields []MediaField, message string) ([]auctionapi.Media, error) {
	var media []auctionapi.Media
	for _, field := range fields {
		address := strings.TrimSpace(field.URL)
		if address == "" {
			continue
		}
		if !isAbsoluteURL(address) {
			return nil, invalid("media", message)
		}
		media = append(media, auctionapi.Media{URL: address, Alt: strings.TrimSpace(field.Alt)})
		if len(media) == MaxMedia {
			break
		}
	}
	return media, nil
}

func parseEndsAt(raw string, location *time.Location) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return parsed, true
	}
	if location == nil {
		location = time.Local
	}
	for _, layout := range []string{dateTimeLocal, dateTimeLocalSec} {
		if parsed, err := time.ParseInLocation(layout, trimmed, location); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func absDuration(value time.Duration) time.Duration {
	if value < 0 {
		return -value
	}
	return value
}
