package market

import (
	"encoding/json"
	"time"
)

const (
	EventSupplyApproved = "SupplyApproved"
	EventStockLineAdded = "StockLineAdded"
	EventStockDepleted  = "StockDepleted"
	EventOrderPlaced    = "OrderPlaced"
	EventOrderCancelled = "OrderCancelled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// ---- payloads per event ----

// SupplyApprovedPayload arrives from the farmer-order approval workflow:
// a farmer's supply for one shift was accepted and becomes a stock line.
type SupplyApprovedPayload struct {
	SupplyID  string    `json:"supply_id"`
	CenterID  string    `json:"center_id"`
	ShiftDate time.Time `json:"shift_date"`
	ShiftName string    `json:"shift_name"`
	Approver  string    `json:"approver"`
	Line      LineInput `json:"line"`
}

type StockLineAddedPayload struct {
	DocumentID string  `json:"document_id"`
	LineID     string  `json:"line_id"`
	ItemID     string  `json:"item_id"`
	FarmerID   string  `json:"farmer_id"`
	QuantityKg float64 `json:"quantity_kg"`
}

type StockDepletedPayload struct {
	DocumentID string `json:"document_id"`
	LineID     string `json:"line_id"`
	ItemID     string `json:"item_id"`
}

type OrderItemPayload struct {
	DocumentID string  `json:"document_id"`
	LineID     string  `json:"line_id"`
	QtyKg      float64 `json:"qty_kg"`
	PriceCents int     `json:"price_cents"`
}

type OrderPlacedPayload struct {
	OrderID    string             `json:"order_id"`
	ExternalID string             `json:"external_id"`
	UserID     string             `json:"user_id"`
	Items      []OrderItemPayload `json:"items"`
	TotalCents int                `json:"total_cents"`
}

type OrderCancelledPayload struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason,omitempty"`
}
