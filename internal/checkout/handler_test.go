package checkout

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neverbe/pos-api/internal/common"
)

func newRouter(svc *Service) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(common.WithCashierID(req.Context(), "cashier-1")))
		})
	})
	(&Handler{Service: svc}).Routes(r)
	return r
}

func TestSummaryEndpoint(t *testing.T) {
	svc, _ := newTestService(t, &fakeBackend{})
	seedCart(t, svc)
	router := newRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/checkout/summary?stockId=stock-1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"grandTotal":"1900"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/checkout/summary", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "stockId is mandatory")
}

func TestAddPaymentEndpointValidation(t *testing.T) {
	svc, _ := newTestService(t, &fakeBackend{})
	seedCart(t, svc)
	router := newRouter(svc)

	body := strings.NewReader(`{"methodId":"pm-002","amount":500}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout/payments?stockId=stock-1", body))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_PAYMENT")

	body = strings.NewReader(`{"methodId":"pm-002","amount":500,"cardDigit":"4242"}`)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout/payments?stockId=stock-1", body))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestPlaceOrderEndpoint(t *testing.T) {
	backend := &fakeBackend{}
	svc, _ := newTestService(t, backend)
	seedCart(t, svc)
	router := newRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout/order?stockId=stock-1", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "INSUFFICIENT_PAYMENT")

	_, err := svc.AddPayment(context.Background(), "cashier-1", "stock-1", AddPaymentInput{MethodID: "pm-001", Amount: 1900})
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout/order?stockId=stock-1", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, backend.placed, 1)
}

func TestRemovePaymentEndpoint(t *testing.T) {
	svc, _ := newTestService(t, &fakeBackend{})
	seedCart(t, svc)
	router := newRouter(svc)

	draft, err := svc.AddPayment(context.Background(), "cashier-1", "stock-1", AddPaymentInput{MethodID: "pm-001", Amount: 500})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/checkout/payments/"+draft.ID+"?stockId=stock-1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/checkout/payments/"+draft.ID+"?stockId=stock-1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
