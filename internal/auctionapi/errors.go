package auctionapi

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	defaultFailureMessage = "Request failed"
	authRequiredMessage   = "You must be logged in to perform this action."
)

var (
	// ErrAuthRequired is returned before any network call when an endpoint
	// needs a token and none is available.
	ErrAuthRequired = errors.New("auth required")
	// ErrListingNotFound is returned when a listing response carries no listing.
	ErrListingNotFound = errors.New("listing not found")
	// ErrProfileNotFound is returned when a profile response carries no profile.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrLoginFailed is returned when login succeeds without an access token.
	ErrLoginFailed = errors.New("login returned no access token")
)

// APIError is a non-2xx response from the auction API.
type APIError struct {
	Status     int
	StatusText string
	Messages   []string
}

func (apiError *APIError) Error() string {
	if len(apiError.Messages) > 0 {
		return strings.Join(apiError.Messages, ". ")
	}
	if apiError.StatusText != "" {
		return apiError.StatusText
	}
	return defaultFailureMessage
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.Status == status
}

// UserMessage turns err into text suitable for a status line. Transport
// failures, which carry no server message, use fallback.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var apiError *APIError
	switch {
	case errors.As(err, &apiError):
		return apiError.Error()
	case errors.Is(err, ErrAuthRequired):
		return authRequiredMessage
	case errors.Is(err, ErrListingNotFound):
		return "Listing not found."
	case errors.Is(err, ErrProfileNotFound):
		return "Profile not found."
	}
	return fallback
}

type errorBody struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

func newAPIError(response *http.Response) *APIError {
	apiError := &APIError{Status: response.StatusCode, StatusText: statusText(response)}
	if !isJSON(response.Header.Get("Content-Type")) {
		return apiError
	}
	payload, err := io.ReadAll(response.Body)
	if err != nil {
		return apiError
	}
	var body errorBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return apiError
	}
	switch {
	case len(body.Errors) > 0:
		for _, item := range body.Errors {
			apiError.Messages = append(apiError.Messages, item.Message)
		}
	case body.Error != nil && body.Error.Message != "":
		apiError.Messages = []string{body.Error.Message}
	case body.Message != "":
		apiError.Messages = []string{body.Message}
	}
	return apiError
}

func statusText(response *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(response.Status, strconv.Itoa(response.StatusCode)))
	if text == "" {
		text = http.StatusText(response.StatusCode)
	}
	return text
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(contentType, "application/json")
	}
	return strings.HasSuffix(mediaType, "json")
}
