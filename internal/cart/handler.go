package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/neverbe/pos-api/internal/common"
)

// Handler exposes the session cart endpoints. Every route requires an
// authenticated cashier and a stockId query parameter.
type Handler struct {
	Service *Service
}

// Routes mounts the cart endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/cart", h.get)
	r.Post("/cart", h.add)
	r.Patch("/cart", h.setQuantity)
	r.Delete("/cart", h.remove)
}

func session(r *http.Request) (cashierID, stockID string, ok bool) {
	cashierID, ok = common.CashierID(r.Context())
	if !ok {
		return "", "", false
	}
	stockID = strings.TrimSpace(r.URL.Query().Get("stockId"))
	return cashierID, stockID, stockID != ""
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	cashierID, stockID, ok := session(r)
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "stockId is required", nil)
		return
	}
	items, err := h.Service.Get(r.Context(), cashierID, stockID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not load cart", nil)
		return
	}
	common.JSONData(w, http.StatusOK, items)
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	cashierID, stockID, ok := session(r)
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "stockId is required", nil)
		return
	}
	var item Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid request body", nil)
		return
	}
	items, err := h.Service.Add(r.Context(), cashierID, stockID, item)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, items)
}

func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request) {
	cashierID, stockID, ok := session(r)
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "stockId is required", nil)
		return
	}
	var in struct {
		ItemID    string `json:"itemId"`
		VariantID string `json:"variantId"`
		Size      string `json:"size"`
		Quantity  int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "invalid request body", nil)
		return
	}
	items, err := h.Service.SetQuantity(r.Context(), cashierID, stockID, in.ItemID, in.VariantID, in.Size, in.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, items)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	cashierID, stockID, ok := session(r)
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION", "stockId is required", nil)
		return
	}
	itemID := strings.TrimSpace(r.URL.Query().Get("itemId"))
	variantID := strings.TrimSpace(r.URL.Query().Get("variantId"))
	size := strings.TrimSpace(r.URL.Query().Get("size"))
	if itemID == "" && variantID == "" {
		if err := h.Service.Clear(r.Context(), cashierID, stockID); err != nil {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "could not clear cart", nil)
			return
		}
		common.JSONData(w, http.StatusOK, []Item{})
		return
	}
	items, err := h.Service.Remove(r.Context(), cashierID, stockID, itemID, variantID, size)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, items)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrInvalidItem) {
		common.RenderError(w, common.NewAppError(http.StatusBadRequest, "VALIDATION", err))
		return
	}
	common.RenderError(w, &common.AppError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL",
		Message: "cart operation failed",
		Err:     err,
	})
}
