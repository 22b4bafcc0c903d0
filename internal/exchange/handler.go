package exchange

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/neverbe/pos-api/internal/common"
	"github.com/neverbe/pos-api/internal/pricing"
	"github.com/neverbe/pos-api/internal/upstream"
)

// Handler exposes the exchange endpoints.
type Handler struct {
	Service *Service
}

// Routes mounts the exchange endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/exchange/{orderId}", h.lookup)
	r.Post("/exchange", h.submit)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
	res, err := h.Service.Lookup(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, res)
}

type submitResponse struct {
	Exchange       upstream.ExchangeResult `json:"exchange"`
	Reconciliation Reconciliation          `json:"reconciliation"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid request body", nil)
		return
	}
	result, rec, err := h.Service.Submit(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, submitResponse{Exchange: result, Reconciliation: rec})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var app *common.AppError
	switch {
	case errors.Is(err, ErrRefundNotAllowed):
		app = common.NewAppError(http.StatusUnprocessableEntity, "REFUND_NOT_ALLOWED", err)
	case errors.Is(err, ErrNotEligible):
		app = common.NewAppError(http.StatusUnprocessableEntity, "NOT_ELIGIBLE", err)
	case errors.Is(err, ErrInvalidExchange), errors.Is(err, pricing.ErrInvalidPayment):
		app = common.NewAppError(http.StatusBadRequest, "VALIDATION", err)
	case errors.Is(err, upstream.ErrNotFound):
		app = &common.AppError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "order not found", Err: err}
	case errors.Is(err, upstream.ErrUpstream):
		app = &common.AppError{Status: http.StatusBadGateway, Code: "UPSTREAM_UNAVAILABLE", Message: "merchant backend unavailable", Err: err}
	default:
		app = &common.AppError{Status: http.StatusInternalServerError, Code: "INTERNAL", Message: "exchange operation failed", Err: err}
	}
	common.RenderError(w, app)
}
