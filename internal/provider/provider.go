// ABOUTME: Outbound client for the identity provider's token-refresh endpoint
// ABOUTME: Single-attempt HTTPS exchange with bounded timeout and apikey header

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds the refresh exchange when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Exchange errors. Rejection and unreachability are deliberately distinct:
// the first maps to 401, the second to 500.
var (
	// ErrRejected means the provider was reached but refused the refresh
	// token (non-200 response).
	ErrRejected = errors.New("provider rejected refresh token")

	// ErrUnreachable means the provider could not be reached or did not
	// answer within the timeout.
	ErrUnreachable = errors.New("provider unreachable")
)

// TokenPair is the provider's response to a successful refresh exchange.
// RefreshToken may be empty when the provider does not rotate it.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Client exchanges refresh tokens with the identity provider.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a provider client. baseURL and apiKey must be set;
// a zero timeout falls back to DefaultTimeout.
func NewClient(baseURL, apiKey string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("provider: base URL is required")
	}
	if apiKey == "" {
		return nil, errors.New("provider: API key is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default().With("component", "provider"),
	}, nil
}

// ExchangeRefreshToken trades a refresh token for a new token pair.
// One attempt, no retries; the caller decides how to surface failures.
func (c *Client) ExchangeRefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, fmt.Errorf("encoding exchange request: %w", err)
	}

	url := c.baseURL + "/auth/v1/token?grant_type=refresh_token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("token exchange failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Info("token exchange rejected", "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}

	var pair TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrUnreachable, err)
	}

	return &pair, nil
}
