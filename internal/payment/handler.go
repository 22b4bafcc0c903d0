package payment

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/neverbe/pos-api/internal/common"
)

// Handler exposes the tender type listing.
type Handler struct {
	Methods *Methods
}

// methodView is the wire shape of a tender type.
type methodView struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	FeePercent  float64 `json:"feePercent"`
	DeferredFee bool    `json:"deferredFee"`
}

// Routes mounts the payment method endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/payment-methods", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	methods, err := h.Methods.List(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "could not load payment methods", nil)
		return
	}
	out := make([]methodView, 0, len(methods))
	for _, m := range methods {
		out = append(out, methodView{
			ID:          m.ID,
			Name:        m.Name,
			FeePercent:  m.FeePercent.InexactFloat64(),
			DeferredFee: m.DeferredFee,
		})
	}
	common.JSONData(w, http.StatusOK, out)
}
