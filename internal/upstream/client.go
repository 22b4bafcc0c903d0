package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/neverbe/pos-api/internal/obs"
	"github.com/neverbe/pos-api/internal/resilience"
)

// ErrUpstream marks failures talking to the merchant backend so handlers can
// map them to 502.
var ErrUpstream = errors.New("upstream unavailable")

// ErrNotFound is returned for 404 responses from the backend.
var ErrNotFound = errors.New("not found")

// Client calls the merchant backend REST API. All calls go through the
// resilient HTTP wrapper so retries and the circuit breaker apply uniformly.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *resilience.HTTPClient
	Log     zerolog.Logger
	Metrics *obs.DomainMetrics
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("X-Api-Key", c.APIKey)
	}

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if c.Metrics != nil {
		c.Metrics.UpstreamLatency.WithLabelValues(op).Observe(obs.DurationMillis(time.Since(start)))
	}
	if err != nil {
		c.observe(op, "error")
		c.Log.Error().Err(err).Str("op", op).Str("path", path).Msg("upstream request failed")
		return fmt.Errorf("%w: %s: %v", ErrUpstream, op, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.observe(op, "not_found")
		return fmt.Errorf("%w: %s", ErrNotFound, op)
	case resp.StatusCode >= http.StatusBadRequest:
		c.observe(op, "error")
		return fmt.Errorf("%w: %s: status %d", ErrUpstream, op, resp.StatusCode)
	}

	c.observe(op, "ok")
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: decode: %v", ErrUpstream, op, err)
	}
	return nil
}

func (c *Client) observe(op, outcome string) {
	if c.Metrics != nil {
		c.Metrics.UpstreamRequests.WithLabelValues(op, outcome).Inc()
	}
}

// Stocks lists the store locations available to the terminal.
func (c *Client) Stocks(ctx context.Context) ([]Stock, error) {
	var out struct {
		Data []Stock `json:"data"`
	}
	if err := c.do(ctx, "stocks", http.MethodGet, "/api/v1/stocks", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Products lists catalog entries for a stock location, optionally filtered
// by a search term.
func (c *Client) Products(ctx context.Context, stockID, search string) ([]Product, error) {
	q := url.Values{}
	q.Set("stockId", stockID)
	if search != "" {
		q.Set("search", search)
	}
	var out struct {
		Data []Product `json:"data"`
	}
	if err := c.do(ctx, "products", http.MethodGet, "/api/v1/products?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// PaymentMethods lists the tender types configured for the store.
func (c *Client) PaymentMethods(ctx context.Context) ([]PaymentMethod, error) {
	var out struct {
		Data []PaymentMethod `json:"data"`
	}
	if err := c.do(ctx, "payment_methods", http.MethodGet, "/api/v1/payment-methods", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// PlaceOrder submits a completed order.
func (c *Client) PlaceOrder(ctx context.Context, order Order) (PlacedOrder, error) {
	var out struct {
		Data PlacedOrder `json:"data"`
	}
	if err := c.do(ctx, "place_order", http.MethodPost, "/api/v1/orders", order, &out); err != nil {
		return PlacedOrder{}, err
	}
	return out.Data, nil
}

// Order fetches a previously placed order by id.
func (c *Client) Order(ctx context.Context, orderID string) (Order, error) {
	var out struct {
		Data Order `json:"data"`
	}
	if err := c.do(ctx, "get_order", http.MethodGet, "/api/v1/orders/"+url.PathEscape(orderID), nil, &out); err != nil {
		return Order{}, err
	}
	return out.Data, nil
}

// ExchangeLookup asks the backend whether an order is still exchangeable.
func (c *Client) ExchangeLookup(ctx context.Context, orderID string) (ExchangeLookup, error) {
	var out struct {
		Data ExchangeLookup `json:"data"`
	}
	if err := c.do(ctx, "exchange_lookup", http.MethodGet, "/api/v1/exchanges/"+url.PathEscape(orderID), nil, &out); err != nil {
		return ExchangeLookup{}, err
	}
	return out.Data, nil
}

// SubmitExchange records a reconciled exchange.
func (c *Client) SubmitExchange(ctx context.Context, req ExchangeRequest) (ExchangeResult, error) {
	var out struct {
		Data ExchangeResult `json:"data"`
	}
	if err := c.do(ctx, "submit_exchange", http.MethodPost, "/api/v1/exchanges", req, &out); err != nil {
		return ExchangeResult{}, err
	}
	return out.Data, nil
}

// Ping checks backend liveness for readiness probes.
func (c *Client) Ping(ctx context.Context) error {
	return c.HTTP.Ping(ctx, c.BaseURL+"/health/live")
}
