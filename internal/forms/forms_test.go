package forms

import (
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/auctionapi"
)

func assertMessage(test *testing.T, err error, want string) {
	test.Helper()
	if err == nil {
		test.Fatalf("expected %q, got nil", want)
	}
	if !IsValidation(err) {
		test.Fatalf("expected ValidationError, got %T", err)
	}
	if err.Error() != want {
		test.Fatalf("expected %q, got %q", want, err.Error())
	}
}

func TestValidateRegister(test *testing.T) {
	testCases := []struct {
		name string
		form RegisterForm
		want string
	}{
		{name: "missing name", form: RegisterForm{Email: "a@noroff.no", Password: "longenough", ConfirmPassword: "longenough"}, want: MessageRegisterIncomplete},
		{name: "short password", form: RegisterForm{Name: "ada", Email: "a@noroff.no", Password: "short", ConfirmPassword: "short"}, want: MessageRegisterIncomplete},
		{name: "mismatch", form: RegisterForm{Name: "ada", Email: "a@noroff.no", Password: "longenough", ConfirmPassword: "different1"}, want: MessagePasswordsMismatch},
		{name: "mismatch before domain", form: RegisterForm{Name: "ada", Email: "a@gmail.com", Password: "longenough", ConfirmPassword: "different1"}, want: MessagePasswordsMismatch},
		{name: "wrong domain", form: RegisterForm{Name: "ada", Email: "a@gmail.com", Password: "longenough", ConfirmPassword: "longenough"}, want: MessageNoroffEmail},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			_, err := ValidateRegister(testCase.form)
			assertMessage(test, err, testCase.want)
		})
	}

	registration, err := ValidateRegister(RegisterForm{Name: " ada ", Email: " Ada@Stud.Noroff.no ", Password: "longenough", ConfirmPassword: "longenough"})
	if err != nil {
		test.Fatalf("valid form rejected: %v", err)
	}
	if registration.Name != "ada" || registration.Email != "Ada@Stud.Noroff.no" {
		test.Fatalf("unexpected registration %+v", registration)
	}
}

func TestValidateLogin(test *testing.T) {
	_, err := ValidateLogin(LoginForm{Email: "ada@noroff.no", Password: "   "})
	assertMessage(test, err, MessageLoginIncomplete)

	credentials, err := ValidateLogin(LoginForm{Email: " ada@noroff.no ", Password: "secret"})
	if err != nil || credentials.Email != "ada@noroff.no" {
		test.Fatalf("unexpected result %+v %v", credentials, err)
	}
}

func TestValidateNewListing(test *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	base := ListingForm{
		Title:    "Brass lamp",
		EndsAt:   now.Add(2 * time.Hour).Format(time.RFC3339),
		Tags:     " Lamp, brass ,lamp,,Vintage",
		Media:    []MediaField{{URL: "https://img.example/lamp.jpg", Alt: " lamp "}, {URL: "  "}},
		Location: time.UTC,
	}

	input, err := ValidateNewListing(base, now)
	if err != nil {
		test.Fatalf("valid listing rejected: %v", err)
	}
	if len(input.Tags) != 3 || input.Tags[0] != "lamp" || input.Tags[1] != "brass" || input.Tags[2] != "vintage" {
		test.Fatalf("unexpected tags %v", input.Tags)
	}
	if len(input.Media) != 1 || input.Media[0].Alt != "lamp" {
		test.Fatalf("unexpected media %+v", input.Media)
	}
	if input.EndsAt == nil || !input.EndsAt.Equal(now.Add(2*time.Hour)) {
		test.Fatalf("unexpected endsAt %v", input.EndsAt)
	}

	shortTitle := base
	shortTitle.Title = " ab "
	_, err = ValidateNewListing(shortTitle, now)
	assertMessage(test, err, MessageTitleTooShort)

	badDate := base
	badDate.EndsAt = "soon"
	_, err = ValidateNewListing(badDate, now)
	assertMessage(test, err, MessageInvalidEndsAt)

	tooSoon := base
	tooSoon.EndsAt = "2025-05-01T12:30"
	_, err = ValidateNewListing(tooSoon, now)
	assertMessage(test, err, MessageEndsTooSoon)

	badMedia := base
	badMedia.Media = []MediaField{{URL: "lamp.jpg"}}
	_, err = ValidateNewListing(badMedia, now)
	assertMessage(test, err, MessageInvalidMedia)
}

func TestValidateListingUpdateKeepsUnchangedDeadline(test *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	current := now.Add(20 * time.Minute)
	form := ListingForm{Title: "Brass lamp", EndsAt: current.Add(30 * time.Second).Format(time.RFC3339)}
	if _, err := ValidateListingUpdate(form, current, now); err != nil {
		test.Fatalf("unchanged deadline rejected: %v", err)
	}
	form.EndsAt = current.Add(5 * time.Minute).Format(time.RFC3339)
	_, err := ValidateListingUpdate(form, current, now)
	assertMessage(test, err, MessageEndsTooSoon)

	form.EndsAt = now.Add(3 * time.Hour).Format(time.RFC3339)
	form.Media = []MediaField{{URL: "not a url"}}
	_, err = ValidateListingUpdate(form, current, now)
	assertMessage(test, err, MessageInvalidMediaSet)
}

func TestNormalizeTagsCapsAtEight(test *testing.T) {
	tags := NormalizeTags("a,b,c,d,e,f,g,h,i,j")
	if len(tags) != MaxTags || tags[7] != "h" {
		test.Fatalf("unexpected tags %v", tags)
	}
	if tags := NormalizeTags(" , "); len(tags) != 0 {
		test.Fatalf("expected no tags, got %v", tags)
	}
}

func TestValidateBid(test *testing.T) {
	listing := auctionapi.Listing{Bids: []auctionapi.Bid{{Amount: 1200}, {Amount: 999}}}
	if got := NextMinimumBid(listing); got != 1201 {
		test.Fatalf("expected 1201, got %d", got)
	}
	if got := NextMinimumBid(auctionapi.Listing{}); got != 1 {
		test.Fatalf("expected 1 with no bids, got %d", got)
	}

	for _, raw := range []string{"", "abc", "0", "-5", "NaN", "Inf"} {
		_, err := ValidateBid(raw, listing)
		assertMessage(test, err, MessageInvalidBid)
	}

	_, err := ValidateBid("1200.9", listing)
	assertMessage(test, err, "Your bid must be at least 1,201 credits.")

	amount, err := ValidateBid(" 1201.7 ", listing)
	if err != nil || amount != 1201 {
		test.Fatalf("expected 1201, got %d %v", amount, err)
	}
}

func TestValidateAvatar(test *testing.T) {
	_, err := ValidateAvatar(AvatarForm{URL: "  "})
	assertMessage(test, err, MessageInvalidAvatar)

	update, err := ValidateAvatar(AvatarForm{URL: "https://img.example/me.png", Alt: "me"})
	if err != nil || update.Avatar == nil || update.Avatar.URL != "https://img.example/me.png" {
		test.Fatalf("unexpected update %+v %v", update, err)
	}
}
