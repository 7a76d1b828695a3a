package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/farmgate/marketstock/internal/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStockServer(t *testing.T) (*httptest.Server, *market.MemStore) {
	t.Helper()
	store := market.NewMemStore()
	router := NewRouter()
	(&StockHandler{Store: store}).Register(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, store
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestStockHandlerAddAndGet(t *testing.T) {
	srv, _ := newStockServer(t)

	resp := postJSON(t, srv.URL+"/stock/center-1/2026-09-01/morning/lines", market.LineInput{
		ItemID:     "tomato",
		Name:       "Tomatoes",
		PriceCents: 450,
		QuantityKg: 12.5,
		FarmerID:   "farmer-7",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[map[string]string](t, resp)
	require.NotEmpty(t, created["document_id"])
	require.NotEmpty(t, created["line_id"])

	getResp, err := http.Get(srv.URL + "/stock/center-1/2026-09-01/morning")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	doc := decode[struct {
		ID    string `json:"id"`
		Lines []struct {
			ID          string  `json:"id"`
			AvailableKg float64 `json:"available_kg"`
			OriginalKg  float64 `json:"original_kg"`
			Status      string  `json:"status"`
		} `json:"lines"`
	}](t, getResp)
	assert.Equal(t, created["document_id"], doc.ID)
	require.Len(t, doc.Lines, 1)
	assert.Equal(t, 12.5, doc.Lines[0].AvailableKg)
	assert.Equal(t, 12.5, doc.Lines[0].OriginalKg)
	assert.Equal(t, "ACTIVE", doc.Lines[0].Status)
}

func TestStockHandlerUnknownShift(t *testing.T) {
	srv, _ := newStockServer(t)

	resp, err := http.Get(srv.URL + "/stock/center-1/2026-09-01/evening")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStockHandlerBadDate(t *testing.T) {
	srv, _ := newStockServer(t)

	resp, err := http.Get(srv.URL + "/stock/center-1/not-a-date/morning")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStockHandlerStatusAndRemove(t *testing.T) {
	srv, store := newStockServer(t)
	ctx := context.Background()

	doc, err := store.FindOrCreateDocument(ctx, "center-1",
		time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), "morning", "tester")
	require.NoError(t, err)
	line, err := store.AddLine(ctx, doc.ID, market.LineInput{
		ItemID: "carrot", Name: "Carrots", PriceCents: 300, QuantityKg: 8, FarmerID: "farmer-2",
	})
	require.NoError(t, err)

	base := srv.URL + "/stock/documents/" + doc.ID + "/lines/" + line.ID

	// ACTIVE -> SOLDOUT via PATCH
	req, _ := http.NewRequest(http.MethodPatch, base+"/status",
		bytes.NewReader([]byte(`{"status":"SOLDOUT"}`)))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// SOLDOUT -> SOLDOUT is rejected by the machine
	req, _ = http.NewRequest(http.MethodPatch, base+"/status",
		bytes.NewReader([]byte(`{"status":"SOLDOUT"}`)))
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// pull the line
	req, _ = http.NewRequest(http.MethodDelete, base, nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// removed lines disappear from the storefront view
	getResp, err := http.Get(srv.URL + "/stock/center-1/2026-09-01/morning")
	require.NoError(t, err)
	doc2 := decode[struct {
		Lines []any `json:"lines"`
	}](t, getResp)
	assert.Empty(t, doc2.Lines)

	// and a second pull is a 404
	req, _ = http.NewRequest(http.MethodDelete, base, nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStockHandlerDuplicateLine(t *testing.T) {
	srv, _ := newStockServer(t)
	url := srv.URL + "/stock/center-1/2026-09-01/morning/lines"
	in := market.LineInput{
		ItemID: "tomato", Name: "Tomatoes", PriceCents: 450, QuantityKg: 5, FarmerID: "farmer-7",
	}

	resp := postJSON(t, url, in)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, url, in)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}
