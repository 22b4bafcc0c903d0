package checkout

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/neverbe/pos-api/internal/common"
	"github.com/neverbe/pos-api/internal/payment"
	"github.com/neverbe/pos-api/internal/pricing"
	"github.com/neverbe/pos-api/internal/upstream"
)

// Handler exposes the checkout flow endpoints.
type Handler struct {
	Service *Service
}

// Routes mounts the checkout and order endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/checkout/summary", h.summary)
	r.Post("/checkout/payments", h.addPayment)
	r.Delete("/checkout/payments/{id}", h.removePayment)
	r.Post("/checkout/order", h.placeOrder)
	r.Get("/orders/{orderId}", h.order)
}

func session(r *http.Request) (cashierID, stockID string, ok bool) {
	cashierID, ok = common.CashierID(r.Context())
	if !ok {
		return "", "", false
	}
	stockID = strings.TrimSpace(r.URL.Query().Get("stockId"))
	return cashierID, stockID, stockID != ""
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	cashierID, stockID, ok := session(r)
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "stockId is required", nil)
		return
	}
	view, err := h.Service.Summary(r.Context(), cashierID, stockID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, view)
}

func (h *Handler) addPayment(w http.ResponseWriter, r *http.Request) {
	cashierID, stockID, ok := session(r)
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "stockId is required", nil)
		return
	}
	var in AddPaymentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid request body", nil)
		return
	}
	draft, err := h.Service.AddPayment(r.Context(), cashierID, stockID, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, draft)
}

func (h *Handler) removePayment(w http.ResponseWriter, r *http.Request) {
	cashierID, stockID, ok := session(r)
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "stockId is required", nil)
		return
	}
	drafts, err := h.Service.RemovePayment(r.Context(), cashierID, stockID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, drafts)
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	cashierID, stockID, ok := session(r)
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "stockId is required", nil)
		return
	}
	placed, err := h.Service.PlaceOrder(r.Context(), cashierID, stockID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, placed)
}

func (h *Handler) order(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	order, err := h.Service.Order(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, order)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var app *common.AppError
	switch {
	case errors.Is(err, pricing.ErrInvalidPayment), errors.Is(err, payment.ErrUnknownMethod):
		app = common.NewAppError(http.StatusUnprocessableEntity, "INVALID_PAYMENT", err)
	case errors.Is(err, payment.ErrDraftNotFound):
		app = common.NewAppError(http.StatusNotFound, "NOT_FOUND", err)
	case errors.Is(err, ErrEmptyCart):
		app = common.NewAppError(http.StatusUnprocessableEntity, "EMPTY_CART", err)
	case errors.Is(err, ErrInsufficientPayment):
		app = common.NewAppError(http.StatusUnprocessableEntity, "INSUFFICIENT_PAYMENT", err)
	case errors.Is(err, ErrOrderInProgress):
		app = common.NewAppError(http.StatusConflict, "ORDER_IN_PROGRESS", err)
	case errors.Is(err, upstream.ErrNotFound):
		app = &common.AppError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "order not found", Err: err}
	case errors.Is(err, upstream.ErrUpstream):
		app = &common.AppError{Status: http.StatusBadGateway, Code: "UPSTREAM_UNAVAILABLE", Message: "merchant backend unavailable", Err: err}
	default:
		app = &common.AppError{Status: http.StatusInternalServerError, Code: "INTERNAL", Message: "checkout operation failed", Err: err}
	}
	common.RenderError(w, app)
}
