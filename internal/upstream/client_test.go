package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neverbe/pos-api/internal/resilience"
)

func newClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &Client{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		HTTP:    &resilience.HTTPClient{Client: srv.Client(), Retries: 1, Backoff: time.Millisecond},
		Log:     zerolog.Nop(),
	}, srv
}

func TestPaymentMethods(t *testing.T) {
	var gotKey string
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		assert.Equal(t, "/api/v1/payment-methods", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"pm-001","name":"Cash","feePercent":0,"isActive":true}]}`))
	}))

	methods, err := client.PaymentMethods(context.Background())
	require.NoError(t, err)
	require.Len(t, methods, 1)
	assert.Equal(t, "Cash", methods[0].Name)
	assert.Equal(t, "test-key", gotKey)
}

func TestPlaceOrderSendsPayload(t *testing.T) {
	var gotPath, gotMethod string
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"orderId":"260815123456","status":"Completed"}}`))
	}))

	placed, err := client.PlaceOrder(context.Background(), Order{OrderID: "260815123456"})
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/orders", gotPath)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "260815123456", placed.OrderID)
}

func TestNotFoundMapsToSentinel(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.Order(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestServerErrorMapsToUpstream(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.Stocks(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstream))
}

func TestRetryOnTransientFailure(t *testing.T) {
	attempts := 0
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))

	_, err := client.Stocks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestExchangeLookupPassthrough(t *testing.T) {
	client, _ := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/exchanges/260815123456", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"eligible":false,"message":"exchange window elapsed","workingDaysElapsed":16}}`))
	}))

	res, err := client.ExchangeLookup(context.Background(), "260815123456")
	require.NoError(t, err)
	assert.False(t, res.Eligible)
	assert.Equal(t, 16, res.WorkingDaysElapsed)
}
