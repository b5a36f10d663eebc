package terminal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"tradewatch/internal/config"
	"tradewatch/internal/logger"
	"tradewatch/internal/models"
)

// Client talks to the terminal bridge over HTTP. Each read retries
// transient failures with a linearly growing delay before giving up.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration

	login    int64
	password string
	server   string
}

// NewClient creates a bridge client from config.
func NewClient(cfg config.TerminalConfig) *Client {
	return &Client{
		baseURL:        cfg.BridgeURL,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
		login:          cfg.Login,
		password:       cfg.Password,
		server:         cfg.Server,
	}
}

// Connect asks the bridge to open a terminal session with the
// configured account.
func (c *Client) Connect(ctx context.Context) error {
	body, err := json.Marshal(map[string]any{
		"login":    c.login,
		"password": c.password,
		"server":   c.server,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal connect request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/connect", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build connect request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connect request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("bridge rejected connect (%d): %s", resp.StatusCode, msg)
	}
	logger.Info("Connected to terminal bridge at %s (account %d)", c.baseURL, c.login)
	return nil
}

// doRequest performs a GET with retries and decodes the JSON response
// into out.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			delay := c.retryDelayBase * time.Duration(attempt-1)
			logger.Debug("Retrying %s in %v (attempt %d/%d)", path, delay, attempt, c.maxRetries)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = c.get(ctx, u, out)
		if lastErr == nil {
			return nil
		}
		// A missing session will not heal within a retry loop.
		if lastErr == ErrNotConnected {
			return lastErr
		}
	}
	return fmt.Errorf("request %s failed after %d attempts: %w", path, c.maxRetries, lastErr)
}

func (c *Client) get(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return ErrNotConnected
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("bridge returned %d: %s", resp.StatusCode, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Positions returns the open positions.
func (c *Client) Positions(ctx context.Context) ([]models.Position, error) {
	var out []models.Position
	if err := c.doRequest(ctx, "/positions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Orders returns the pending orders.
func (c *Client) Orders(ctx context.Context) ([]models.Order, error) {
	var out []models.Order
	if err := c.doRequest(ctx, "/orders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Tick returns the latest quote for the symbol.
func (c *Client) Tick(ctx context.Context, symbol string) (models.Tick, error) {
	var out models.Tick
	q := url.Values{"symbol": {symbol}}
	if err := c.doRequest(ctx, "/tick", q, &out); err != nil {
		return models.Tick{}, err
	}
	return out, nil
}

// AccountInfo returns the account metrics snapshot.
func (c *Client) AccountInfo(ctx context.Context) (models.AccountInfo, error) {
	var out models.AccountInfo
	if err := c.doRequest(ctx, "/account", nil, &out); err != nil {
		return models.AccountInfo{}, err
	}
	return out, nil
}

// Bars returns up to count recent bars for the symbol and timeframe.
func (c *Client) Bars(ctx context.Context, symbol, timeframe string, count int) ([]models.Bar, error) {
	var out []models.Bar
	q := url.Values{
		"symbol":    {symbol},
		"timeframe": {timeframe},
		"count":     {strconv.Itoa(count)},
	}
	if err := c.doRequest(ctx, "/bars", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Deals returns the booked deals in the window.
func (c *Client) Deals(ctx context.Context, from, to time.Time) ([]models.Deal, error) {
	var out []models.Deal
	q := url.Values{
		"from": {from.Format(time.RFC3339)},
		"to":   {to.Format(time.RFC3339)},
	}
	if err := c.doRequest(ctx, "/deals", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SymbolSpec returns the instrument constants for the symbol.
func (c *Client) SymbolSpec(ctx context.Context, symbol string) (models.SymbolSpec, error) {
	var out models.SymbolSpec
	q := url.Values{"symbol": {symbol}}
	if err := c.doRequest(ctx, "/symbol", q, &out); err != nil {
		return models.SymbolSpec{}, err
	}
	return out, nil
}

var _ Source = (*Client)(nil)
