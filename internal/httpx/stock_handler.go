package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/farmgate/marketstock/internal/market"
	"github.com/go-chi/chi/v5"
)

type StockHandler struct {
	Store market.Store
}

func (h *StockHandler) Register(r *chi.Mux) {
	r.Get("/stock/{centerID}/{date}/{shift}", h.getDocument)
	r.Post("/stock/{centerID}/{date}/{shift}/lines", h.addLine)
	r.Patch("/stock/documents/{docID}/lines/{lineID}/status", h.setLineStatus)
	r.Delete("/stock/documents/{docID}/lines/{lineID}", h.removeLine)
}

type documentResp struct {
	ID        string     `json:"id"`
	CenterID  string     `json:"center_id"`
	ShiftDate string     `json:"shift_date"`
	ShiftName string     `json:"shift_name"`
	Lines     []lineResp `json:"lines"`
}

type lineResp struct {
	ID          string  `json:"id"`
	ItemID      string  `json:"item_id"`
	Name        string  `json:"name"`
	ImageURL    string  `json:"image_url,omitempty"`
	Category    string  `json:"category,omitempty"`
	PriceCents  int     `json:"price_cents"`
	OriginalKg  float64 `json:"original_kg"`
	AvailableKg float64 `json:"available_kg"`
	FarmerID    string  `json:"farmer_id"`
	FarmerName  string  `json:"farmer_name,omitempty"`
	Status      string  `json:"status"`
}

func toDocumentResp(d market.StockDocument) documentResp {
	out := documentResp{
		ID:        d.ID,
		CenterID:  d.CenterID,
		ShiftDate: d.ShiftDate.Format("2006-01-02"),
		ShiftName: d.ShiftName,
		Lines:     make([]lineResp, 0, len(d.Lines)),
	}
	for _, l := range d.Lines {
		if l.Status == market.LineRemoved {
			continue
		}
		out.Lines = append(out.Lines, lineResp{
			ID: l.ID, ItemID: l.ItemID, Name: l.Name, ImageURL: l.ImageURL,
			Category: l.Category, PriceCents: l.PriceCents,
			OriginalKg: l.OriginalKg, AvailableKg: l.AvailableKg,
			FarmerID: l.FarmerID, FarmerName: l.FarmerName, Status: string(l.Status),
		})
	}
	return out
}

func shiftParams(r *http.Request) (centerID string, date time.Time, shift string, ok bool) {
	centerID = chi.URLParam(r, "centerID")
	shift = chi.URLParam(r, "shift")
	date, err := time.Parse("2006-01-02", chi.URLParam(r, "date"))
	if centerID == "" || shift == "" || err != nil {
		return "", time.Time{}, "", false
	}
	return centerID, date, shift, true
}

func (h *StockHandler) getDocument(w http.ResponseWriter, r *http.Request) {
	centerID, date, shift, ok := shiftParams(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad shift path"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	d, err := h.Store.FindDocument(ctx, centerID, date, shift)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentResp(d))
}

func (h *StockHandler) addLine(w http.ResponseWriter, r *http.Request) {
	centerID, date, shift, ok := shiftParams(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad shift path"})
		return
	}
	var in market.LineInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	doc, err := h.Store.FindOrCreateDocument(ctx, centerID, date, shift, r.Header.Get("X-User-Id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	line, err := h.Store.AddLine(ctx, doc.ID, in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"document_id": doc.ID,
		"line_id":     line.ID,
	})
}

func (h *StockHandler) setLineStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing status"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	err := h.Store.SetLineStatus(ctx, chi.URLParam(r, "docID"), chi.URLParam(r, "lineID"),
		market.LineStatus(body.Status))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": body.Status})
}

func (h *StockHandler) removeLine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Store.RemoveLine(ctx, chi.URLParam(r, "docID"), chi.URLParam(r, "lineID")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
