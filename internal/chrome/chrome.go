// Package chrome renders the shared page furniture: the auth badge, the credit
// badges and date labels.
package chrome

import (
	"net/url"
	"sync"
	"time"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/auctionapi"
	"github.com/MarkoPoloResearchLab/auctionhouse/pkg/events"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	profilePath      = "/profile"
	profileNameParam = "name"
	unknownDate      = "Unknown"
	dateLayout       = "Jan 2, 2006, 03:04 PM"
	creditsSuffix    = " credits"
)

var printer = message.NewPrinter(language.English)

// FormatNumber groups digits the way the English locale does ("1,234").
func FormatNumber(value int64) string {
	return printer.Sprintf("%d", value)
}

// FormatCredits renders a credit amount ("1,234 credits").
func FormatCredits(value int64) string {
	return FormatNumber(value) + creditsSuffix
}

// FormatDate renders an RFC 3339 timestamp for display. Empty input renders
// as "Unknown"; unparsable input is returned unchanged.
func FormatDate(raw string, location *time.Location) string {
	if raw == "" {
		return unknownDate
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	if location != nil {
		parsed = parsed.In(location)
	}
	return parsed.Format(dateLayout)
}

// CreditBadge is a balance label that hides itself when the balance is unknown.
type CreditBadge struct {
	Text   string `json:"text"`
	Hidden bool   `json:"hidden"`
}

// NewCreditBadge builds a badge for credits; nil means unknown.
func NewCreditBadge(credits *int64) CreditBadge {
	if credits == nil {
		return CreditBadge{Hidden: true}
	}
	return CreditBadge{Text: FormatCredits(*credits)}
}

// ProfileLink points at the profile page of name, or at the bare profile page
// when name is empty.
func ProfileLink(name string) string {
	if name == "" {
		return profilePath
	}
	return profilePath + "?" + url.Values{profileNameParam: []string{name}}.Encode()
}

// Badges is everything the page header shows.
type Badges struct {
	SignedIn    bool        `json:"signedIn"`
	Name        string      `json:"name"`
	ProfileLink string      `json:"profileLink"`
	Credits     CreditBadge `json:"credits"`
	Available   CreditBadge `json:"available"`
	Year        int         `json:"year"`
}

// BadgesFor derives the header for auth.
func BadgesFor(auth auctionapi.Auth, now time.Time) Badges {
	return badges(auth.SignedIn(), auth.Name, auth.Credits, now)
}

func badges(signedIn bool, name string, credits *int64, now time.Time) Badges {
	header := Badges{
		SignedIn:    signedIn,
		ProfileLink: ProfileLink(""),
		Credits:     CreditBadge{Hidden: true},
		Available:   CreditBadge{Hidden: true},
		Year:        now.Year(),
	}
	if signedIn {
		header.Name = name
		header.ProfileLink = ProfileLink(name)
		header.Credits = NewCreditBadge(credits)
	}
	return header
}

// Chrome keeps Badges current by listening on the event bus.
type Chrome struct {
	mutex        sync.RWMutex
	badges       Badges
	now          func() time.Time
	unsubscribes []func()
}

// Watch starts tracking auth and credit events on bus.
func Watch(bus *events.Bus, auth auctionapi.Auth, now func() time.Time) *Chrome {
	if now == nil {
		now = time.Now
	}
	chrome := &Chrome{badges: BadgesFor(auth, now()), now: now}
	chrome.unsubscribes = append(chrome.unsubscribes,
		events.On(bus, chrome.handleAuthChanged),
		events.On(bus, chrome.handleCreditsUpdated),
	)
	return chrome
}

// Badges returns the current header state.
func (chrome *Chrome) Badges() Badges {
	chrome.mutex.RLock()
	defer chrome.mutex.RUnlock()
	return chrome.badges
}

// Close stops listening for events.
func (chrome *Chrome) Close() {
	for _, unsubscribe := range chrome.unsubscribes {
		unsubscribe()
	}
}

func (chrome *Chrome) handleAuthChanged(event events.AuthChanged) {
	next := badges(event.SignedIn, event.Name, event.Credits, chrome.now())
	chrome.mutex.Lock()
	defer chrome.mutex.Unlock()
	if next.SignedIn {
		next.Available = chrome.badges.Available
	}
	chrome.badges = next
}

func (chrome *Chrome) handleCreditsUpdated(event events.CreditsUpdated) {
	chrome.mutex.Lock()
	defer chrome.mutex.Unlock()
	if !chrome.badges.SignedIn {
		chrome.badges.Available = CreditBadge{Hidden: true}
		return
	}
	available := event.Available
	chrome.badges.Available = NewCreditBadge(&available)
}
