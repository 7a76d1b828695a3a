package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/farmgate/marketstock/internal/cart"
	"github.com/go-chi/chi/v5"
)

type CartHandler struct {
	Carts *cart.Service
}

func (h *CartHandler) Register(r *chi.Mux) {
	r.Post("/carts/{cartID}/items", h.addItem)
	r.Delete("/carts/{cartID}/items/{docID}/{lineID}", h.removeItem)
	r.Get("/carts/{cartID}", h.getCart)
	r.Delete("/carts/{cartID}", h.abandon)
}

type addItemReq struct {
	DocumentID string  `json:"document_id"`
	LineID     string  `json:"line_id"`
	QtyKg      float64 `json:"qty_kg"`
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	cartID := chi.URLParam(r, "cartID")
	var req addItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if cartID == "" || req.DocumentID == "" || req.LineID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	remaining, err := h.Carts.AddItem(ctx, cartID, req.DocumentID, req.LineID, req.QtyKg,
		r.Header.Get("X-Request-Id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reserved_kg":  req.QtyKg,
		"remaining_kg": remaining,
	})
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	err := h.Carts.RemoveItem(ctx, chi.URLParam(r, "cartID"),
		chi.URLParam(r, "docID"), chi.URLParam(r, "lineID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) getCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	items, err := h.Carts.Items(ctx, chi.URLParam(r, "cartID"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *CartHandler) abandon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Carts.Abandon(ctx, chi.URLParam(r, "cartID")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
