package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/farmgate/marketstock/internal/market"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps the market error taxonomy onto status codes. Insufficient
// stock is a normal storefront outcome, not a failure, hence the
// out_of_stock body the UI keys on.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, market.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, market.ErrInsufficientStock):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "out_of_stock"})
	case errors.Is(err, market.ErrDuplicateLine):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "duplicate line"})
	case errors.Is(err, market.ErrBadTransition):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "status transition not allowed"})
	case errors.Is(err, market.ErrInvalidDelta):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid quantity"})
	case errors.Is(err, market.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
