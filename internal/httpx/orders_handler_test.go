package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/farmgate/marketstock/internal/market"
	"github.com/farmgate/marketstock/internal/redisx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderResp struct {
	OrderID    string             `json:"order_id"`
	Status     string             `json:"status"`
	TotalCents int                `json:"total_cents"`
	Items      []market.OrderItem `json:"items"`
}

func TestOrderBodyShape(t *testing.T) {
	o := market.Order{
		ID:         "o-1",
		Status:     market.OrderPlaced,
		TotalCents: 1350,
	}
	items := []market.OrderItem{{LineID: "line-1", QtyKg: 3, PriceCents: 450}}

	b, err := json.Marshal(orderBody(o, items))
	require.NoError(t, err)

	var got orderResp
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "o-1", got.OrderID)
	assert.Equal(t, string(market.OrderPlaced), got.Status)
	assert.Equal(t, 1350, got.TotalCents)
	assert.Len(t, got.Items, 1)
}

// A cache hit must answer with the same shape a fresh read produces,
// which holds because the cached value is the marshaled response body.
func TestGetOrderServesCachedBodyVerbatim(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cached, err := json.Marshal(orderBody(market.Order{
		ID:         "o-7",
		Status:     market.OrderPicked,
		TotalCents: 900,
	}, []market.OrderItem{{LineID: "line-2", QtyKg: 2, PriceCents: 450}}))
	require.NoError(t, err)
	key := fmt.Sprintf(redisx.KeyOrderStatus, "o-7")
	require.NoError(t, mr.Set(key, string(cached)))
	mr.SetTTL(key, redisx.TTLStatusCache)

	router := NewRouter()
	(&OrdersHandler{Redis: rdb}).Register(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/orders/o-7")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[orderResp](t, resp)
	assert.Equal(t, "o-7", got.OrderID)
	assert.Equal(t, string(market.OrderPicked), got.Status)
	assert.Equal(t, 900, got.TotalCents)
	assert.Len(t, got.Items, 1)
}
