package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/farmgate/marketstock/internal/cart"
	kafkax "github.com/farmgate/marketstock/internal/kafka"
	"github.com/farmgate/marketstock/internal/market"
	"github.com/farmgate/marketstock/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

type OrdersHandler struct {
	Repo            *market.OrdersRepo
	Carts           *cart.Service
	ProducerPlaced  *kafkax.Producer // market.order.placed
	ProducerCancels *kafkax.Producer // market.order.cancelled
	Redis           *redis.Client
	Service         string
}

type checkoutReq struct {
	ExternalID string `json:"external_id"`
	CartID     string `json:"cart_id"`
	UserID     string `json:"user_id"`
}

type checkoutResp struct {
	OrderID    string `json:"order_id"`
	TotalCents int    `json:"total_cents"`
	Idempotent bool   `json:"idempotent"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.checkout)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Patch("/orders/{id}/status", h.setStatus)
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.ExternalID == "" || req.CartID == "" || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := h.Carts.Items(ctx, req.CartID)
	if err != nil {
		writeErr(w, err)
		return
	}

	// Take the cart's release token first: from here neither the expiry
	// sweeper nor a concurrent abandon can give back stock the order is
	// about to own.
	claimed, err := h.Carts.Claim(ctx, req.CartID)
	if err != nil {
		writeErr(w, err)
		return
	}

	orderID, total, existed, err := h.Repo.Checkout(ctx, req.ExternalID, req.CartID, req.UserID, items)
	if err != nil {
		if claimed {
			_ = h.Carts.Reschedule(ctx, req.CartID)
		}
		writeErr(w, err)
		return
	}

	// The reservation now belongs to the order; drop the cart without
	// release. On an idempotent retry the cart must match the order's:
	// an external_id reused with a different cart keeps its own expiry.
	ownsCart := !existed
	if existed {
		o, _, err := h.Repo.GetOrder(ctx, orderID)
		ownsCart = err == nil && o.CartID == req.CartID
	}
	if ownsCart {
		if err := h.Carts.Clear(ctx, req.CartID); err != nil {
			// token is already gone, so the leftovers are inert; never
			// fail a placed order over cache cleanup
			log.Printf("clear cart %s: %v", req.CartID, err)
		}
	} else if claimed {
		_ = h.Carts.Reschedule(ctx, req.CartID)
	}

	idemKey := fmt.Sprintf(redisx.KeyIdemCheckout, req.ExternalID)
	_ = h.Redis.Set(ctx, idemKey, orderID, redisx.TTLIdempotency).Err()

	ev := market.Envelope{
		EventID:       uuid.NewString(),
		EventType:     market.EventOrderPlaced,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: orderID,
	}
	ev.Payload = kafkax.MustMarshal(market.OrderPlacedPayload{
		OrderID:    orderID,
		ExternalID: req.ExternalID,
		UserID:     req.UserID,
		Items:      toItemPayloads(items),
		TotalCents: total,
	})
	h.ProducerPlaced.Publish(market.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(market.EventOrderPlaced)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)

	writeJSON(w, http.StatusAccepted, checkoutResp{OrderID: orderID, TotalCents: total, Idempotent: existed})
}

func toItemPayloads(items []market.CheckoutItem) []market.OrderItemPayload {
	out := make([]market.OrderItemPayload, 0, len(items))
	for _, it := range items {
		out = append(out, market.OrderItemPayload{
			DocumentID: it.DocumentID, LineID: it.LineID, QtyKg: it.QtyKg,
		})
	}
	return out
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// cached responses carry the same shape as fresh ones; mutations
	// drop the key instead of rewriting it
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	o, items, err := h.Repo.GetOrder(ctx, orderID)
	if err != nil {
		writeErr(w, err)
		return
	}
	b, _ := json.Marshal(orderBody(o, items))
	_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func orderBody(o market.Order, items []market.OrderItem) map[string]any {
	return map[string]any{
		"order_id":    o.ID,
		"status":      o.Status,
		"total_cents": o.TotalCents,
		"items":       items,
	}
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Repo.Cancel(ctx, orderID); err != nil {
		writeErr(w, err)
		return
	}

	_ = h.Redis.Del(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Err()

	ev := market.Envelope{
		EventID:       uuid.NewString(),
		EventType:     market.EventOrderCancelled,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(market.OrderCancelledPayload{OrderID: orderID, Reason: "USER_CANCELLED"}),
	}
	h.ProducerCancels.Publish(market.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(market.EventOrderCancelled)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)

	writeJSON(w, http.StatusOK, map[string]string{"status": string(market.OrderCancelled)})
}

func (h *OrdersHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing status"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Repo.UpdateStatus(ctx, orderID, market.OrderStatus(body.Status)); err != nil {
		writeErr(w, err)
		return
	}
	_ = h.Redis.Del(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Err()
	writeJSON(w, http.StatusOK, map[string]string{"status": body.Status})
}
