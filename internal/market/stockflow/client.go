// Package stockflow provides a client for the stockflow trading backend.
package stockflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/0xF3546/stockflow-frontend/internal/logger"
	"github.com/0xF3546/stockflow-frontend/internal/market"
	"github.com/0xF3546/stockflow-frontend/internal/models"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second
)

// TokenSource returns the bearer token for the next request.
type TokenSource func() string

// Client implements the Broker and Authenticator interfaces over HTTP.
type Client struct {
	baseURL    string
	token      TokenSource
	httpClient *http.Client
	logger     *logger.Logger
	limiter    *rate.Limiter
}

var (
	_ market.Broker        = (*Client)(nil)
	_ market.Authenticator = (*Client)(nil)
)

// ClientOption configures the client
type ClientOption func(*Client)

// WithTokenSource sets where the bearer token comes from
func WithTokenSource(ts TokenSource) ClientOption {
	return func(c *Client) {
		c.token = ts
	}
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new stockflow client
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   func() string { return "" },
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  logger.NewSilent(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stockflow API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Unauthorized reports whether the server rejected the token.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// do performs a rate-limited request. A nil result discards the body.
func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug().Str("method", method).Str("url", path).Msg("stockflow API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(msg)),
			Endpoint:   path,
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	// Order endpoints may answer with an empty body
	if result == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeStrict rejects fields the canonical schema does not know.
func decodeStrict(r io.Reader, v interface{}) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// Health checks that the backend is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (*models.AuthToken, error) {
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", creds, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("login response without token")
	}
	username := resp.Username
	if username == "" {
		username = creds.Username
	}
	return &models.AuthToken{Token: resp.Token, Username: username}, nil
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, reg models.Registration) error {
	return c.do(ctx, http.MethodPost, "/auth/register", reg, nil)
}

// FetchPortfolio retrieves the authoritative portfolio. Any schema mismatch
// is reported as ErrRefreshFailed.
func (c *Client) FetchPortfolio(ctx context.Context) (*models.PortfolioSnapshot, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/portfolio", nil, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrRefreshFailed, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty portfolio response", models.ErrRefreshFailed)
	}

	var resp portfolioResponse
	if err := decodeStrict(bytes.NewReader(raw), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrRefreshFailed, err)
	}
	snap, err := resp.toSnapshot()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrRefreshFailed, err)
	}
	return snap, nil
}

// FetchBalance retrieves the cash balance.
func (c *Client) FetchBalance(ctx context.Context) (*models.Balance, error) {
	var resp balanceResponse
	if err := c.do(ctx, http.MethodGet, "/api/balance", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Balance == nil {
		return nil, fmt.Errorf("balance response missing balance")
	}
	return &models.Balance{Cash: *resp.Balance}, nil
}

// SubmitBuyOrder posts a buy order.
func (c *Client) SubmitBuyOrder(ctx context.Context, req models.OrderRequest) (*models.OrderReceipt, error) {
	return c.submit(ctx, "/api/buy", models.SideBuy, req)
}

// SubmitSellOrder posts a sell order.
func (c *Client) SubmitSellOrder(ctx context.Context, req models.OrderRequest) (*models.OrderReceipt, error) {
	return c.submit(ctx, "/api/sell", models.SideSell, req)
}

func (c *Client) submit(ctx context.Context, path string, side models.Side, req models.OrderRequest) (*models.OrderReceipt, error) {
	body := newOrderBody(req)

	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return resp.toReceipt(req, side), nil
}

// SearchStocks queries the symbol search endpoint.
func (c *Client) SearchStocks(ctx context.Context, query string) ([]models.Asset, error) {
	path := "/api/stocks/search?query=" + url.QueryEscape(strings.TrimSpace(query))

	var resp []searchHit
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	out := make([]models.Asset, 0, len(resp))
	for _, h := range resp {
		sym := models.NormalizeSymbol(h.Symbol)
		if sym == "" {
			continue
		}
		out = append(out, models.Asset{Symbol: sym, Name: h.CompanyName, Tradable: true})
	}
	return out, nil
}
