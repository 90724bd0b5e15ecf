package auctionapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the hosted auction API.
	DefaultBaseURL = "https://v2.api.noroff.dev"
	// DefaultTimeout bounds every request when the caller sets none.
	DefaultTimeout = 15 * time.Second

	headerAPIKey        = "X-Noroff-API-Key"
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	contentTypeJSON     = "application/json"
)

// Config holds the connection settings of a Client.
type Config struct {
	BaseURL string        `validate:"required,url"`
	APIKey  string        `validate:"omitempty,uuid"`
	Timeout time.Duration `validate:"gte=0"`
}

// TokenSource returns the current access token or an empty string.
type TokenSource func() string

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(client *Client) {
		if httpClient != nil {
			client.httpClient = httpClient
		}
	}
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(source TokenSource) Option {
	return func(client *Client) {
		client.tokens = source
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *zap.Logger) Option {
	return func(client *Client) {
		if logger != nil {
			client.logger = logger
		}
	}
}

// Client talks to the auction REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	tokens     TokenSource
	logger     *zap.Logger
}

// NewClient validates config and builds a Client.
func NewClient(config Config, options ...Option) (*Client, error) {
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = DefaultBaseURL
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "invalid auction api config")
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	client := &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		apiKey:     config.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     zap.NewNop(),
	}
	for _, option := range options {
		if option != nil {
			option(client)
		}
	}
	return client, nil
}

type envelope[T any] struct {
	Data T    `json:"data"`
	Meta Meta `json:"meta"`
}

type call struct {
	method      string
	path        string
	query       url.Values
	body        any
	requireAuth bool
}

func (client *Client) token() string {
	if client.tokens == nil {
		return ""
	}
	return strings.TrimSpace(client.tokens())
}

func (client *Client) do(ctx context.Context, request call, out any) error {
	token := client.token()
	if request.requireAuth && token == "" {
		return ErrAuthRequired
	}

	target := client.baseURL + request.path
	if encoded := request.query.Encode(); encoded != "" {
		target += "?" + encoded
	}

	var body io.Reader
	if request.body != nil {
		payload, err := json.Marshal(request.body)
		if err != nil {
			return errors.Wrap(err, "encode request body")
		}
		body = bytes.NewReader(payload)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, request.method, target, body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if client.apiKey != "" {
		httpRequest.Header.Set(headerAPIKey, client.apiKey)
	}
	if request.body != nil {
		httpRequest.Header.Set(headerContentType, contentTypeJSON)
	}
	if token != "" {
		httpRequest.Header.Set(headerAuthorization, "Bearer "+token)
	}

	started := time.Now()
	response, err := client.httpClient.Do(httpRequest)
	if err != nil {
		client.logger.Warn("auction api request failed",
			zap.String("method", request.method),
			zap.String("path", request.path),
			zap.Error(err))
		return errors.Wrapf(err, "%s %s", request.method, request.path)
	}
	defer response.Body.Close()
	client.logger.Debug("auction api request",
		zap.String("method", request.method),
		zap.String("path", request.path),
		zap.Int("status", response.StatusCode),
		zap.Duration("elapsed", time.Since(started)))

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return newAPIError(response)
	}
	if response.StatusCode == http.StatusNoContent || out == nil || !isJSON(response.Header.Get(headerContentType)) {
		_, _ = io.Copy(io.Discard, response.Body)
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s %s", request.method, request.path)
	}
	return nil
}
