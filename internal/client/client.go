// Package client is a typed HTTP client for the trading desk API.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"optionDesk/internal/analytics"
	"optionDesk/internal/domain"
	"optionDesk/internal/indicators"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Code    string `json:"code,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s, HTTP %d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// Session is the token pair returned by register and login.
type Session struct {
	Account   *domain.Account `json:"account"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// Chart is the chart widget state.
type Chart struct {
	Symbol        string             `json:"symbol"`
	Granularity   domain.Granularity `json:"granularity"`
	ExpiryMinutes int                `json:"expiryMinutes"`
	Quote         domain.Quote       `json:"quote"`
	Markers       []*domain.Position `json:"markers"`
	Candles       []domain.Candle    `json:"candles"`
}

// ChartUpdate changes the chart selection. Zero fields are left unchanged.
type ChartUpdate struct {
	Symbol        string             `json:"symbol,omitempty"`
	Granularity   domain.Granularity `json:"granularity,omitempty"`
	ExpiryMinutes int                `json:"expiryMinutes,omitempty"`
}

// OpenRequest opens a position. Empty Symbol and zero ExpiryMinutes use the chart selection.
type OpenRequest struct {
	Symbol        string          `json:"symbol,omitempty"`
	Direction     string          `json:"direction"`
	Amount        decimal.Decimal `json:"amount"`
	ExpiryMinutes int             `json:"expiryMinutes,omitempty"`
}

// Client talks to one server with an optional session token.
type Client struct {
	client *resty.Client
}

// New creates a client for baseURL.
func New(baseURL, token string) *Client {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(15 * time.Second)
	client.SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &Client{client: client}
}

// SetToken sets the bearer token for later requests.
func (c *Client) SetToken(token string) {
	c.client.SetAuthToken(token)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	return c.doQuery(ctx, method, path, nil, body, out)
}

func (c *Client) doQuery(ctx context.Context, method, path string, query map[string]string, body, out interface{}) error {
	req := c.client.R().SetContext(ctx).SetError(&APIError{})
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr, ok := resp.Error().(*APIError)
		if !ok || apiErr.Message == "" {
			apiErr = &APIError{Message: http.StatusText(resp.StatusCode())}
		}
		apiErr.Status = resp.StatusCode()
		return apiErr
	}
	return nil
}

// Register creates an account and returns its first session.
func (c *Client) Register(ctx context.Context, name, email, password string) (*Session, error) {
	var s Session
	body := map[string]string{"name": name, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/accounts", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Login opens a session.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var s Session
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/sessions", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Logout ends the current session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/sessions", nil, nil)
}

// Account returns the logged-in account.
func (c *Client) Account(ctx context.Context) (*domain.Account, error) {
	var a domain.Account
	if err := c.do(ctx, http.MethodGet, "/api/account", nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Deposit credits the logged-in account.
func (c *Client) Deposit(ctx context.Context, amount decimal.Decimal) (*domain.Account, error) {
	var a domain.Account
	if err := c.do(ctx, http.MethodPost, "/api/account/deposits", map[string]decimal.Decimal{"amount": amount}, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Instruments lists the tradable catalog.
func (c *Client) Instruments(ctx context.Context) ([]domain.Instrument, error) {
	var out []domain.Instrument
	if err := c.do(ctx, http.MethodGet, "/api/instruments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Quote returns the current price of symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (*domain.Quote, error) {
	var q domain.Quote
	query := map[string]string{"symbol": symbol}
	if err := c.doQuery(ctx, http.MethodGet, "/api/prices", query, nil, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// Quotes returns the current price of every instrument.
func (c *Client) Quotes(ctx context.Context) ([]domain.Quote, error) {
	var out []domain.Quote
	if err := c.do(ctx, http.MethodGet, "/api/prices", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Candles returns OHLC candles of symbol at granularity g.
func (c *Client) Candles(ctx context.Context, symbol string, g domain.Granularity) ([]domain.Candle, error) {
	var out []domain.Candle
	query := map[string]string{"symbol": symbol}
	if g != "" {
		query["granularity"] = string(g)
	}
	if err := c.doQuery(ctx, http.MethodGet, "/api/prices/candles", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Study returns an indicator series (SMA, EMA, RSI or ATR) over the candles of symbol.
func (c *Client) Study(ctx context.Context, symbol string, g domain.Granularity, name string, period int) ([]indicators.Point, error) {
	var out []indicators.Point
	query := map[string]string{"symbol": symbol, "name": name, "period": strconv.Itoa(period)}
	if g != "" {
		query["granularity"] = string(g)
	}
	if err := c.doQuery(ctx, http.MethodGet, "/api/prices/studies", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Chart returns the chart state of the session.
func (c *Client) Chart(ctx context.Context) (*Chart, error) {
	var ch Chart
	if err := c.do(ctx, http.MethodGet, "/api/chart", nil, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// UpdateChart changes the chart selection of the session.
func (c *Client) UpdateChart(ctx context.Context, upd ChartUpdate) (*Chart, error) {
	var ch Chart
	if err := c.do(ctx, http.MethodPut, "/api/chart", upd, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// Open opens a position.
func (c *Client) Open(ctx context.Context, req OpenRequest) (*domain.Position, error) {
	var p domain.Position
	if err := c.do(ctx, http.MethodPost, "/api/positions", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Positions lists positions; status is "", "open" or "closed".
func (c *Client) Positions(ctx context.Context, status string) ([]*domain.Position, error) {
	var out []*domain.Position
	var query map[string]string
	if status != "" {
		query = map[string]string{"status": status}
	}
	if err := c.doQuery(ctx, http.MethodGet, "/api/positions", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Position returns one position.
func (c *Client) Position(ctx context.Context, id string) (*domain.Position, error) {
	var p domain.Position
	if err := c.do(ctx, http.MethodGet, "/api/positions/"+id, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ExportCSV returns the positions CSV.
func (c *Client) ExportCSV(ctx context.Context) ([]byte, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Accept", "text/csv").
		SetError(&APIError{}).
		Get("/api/positions/export")
	if err != nil {
		return nil, fmt.Errorf("GET /api/positions/export: %w", err)
	}
	if resp.IsError() {
		apiErr, ok := resp.Error().(*APIError)
		if !ok {
			apiErr = &APIError{Message: http.StatusText(resp.StatusCode())}
		}
		apiErr.Status = resp.StatusCode()
		return nil, apiErr
	}
	return resp.Body(), nil
}

// Stats returns performance metrics for the session's account.
func (c *Client) Stats(ctx context.Context) (*analytics.PerformanceMetrics, error) {
	var m analytics.PerformanceMetrics
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
