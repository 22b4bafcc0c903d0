package catalog

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/neverbe/pos-api/internal/common"
)

// Handler exposes catalog reads to the terminal.
type Handler struct {
	Service *Service
}

// Routes mounts the catalog endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/stocks", h.stocks)
	r.Get("/products", h.products)
}

func (h *Handler) stocks(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.Service.Stocks(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "could not load stocks", nil)
		return
	}
	common.JSONData(w, http.StatusOK, stocks)
}

func (h *Handler) products(w http.ResponseWriter, r *http.Request) {
	stockID := strings.TrimSpace(r.URL.Query().Get("stockId"))
	if stockID == "" {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "stockId is required", nil)
		return
	}
	search := strings.TrimSpace(r.URL.Query().Get("search"))
	products, err := h.Service.Products(r.Context(), stockID, search)
	if err != nil {
		common.JSONError(w, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "could not load products", nil)
		return
	}
	common.JSONData(w, http.StatusOK, products)
}
