package market

import "time"

// StockDocument is the set of items sellable from one logistics center
// during one shift. Unique per (CenterID, ShiftDate, ShiftName).
type StockDocument struct {
	ID        string
	CenterID  string
	ShiftDate time.Time
	ShiftName string
	CreatedBy string
	CreatedAt time.Time
	Lines     []StockLine
}

// StockLine is one farmer's offering inside a StockDocument.
// Invariant: 0 <= AvailableKg <= OriginalKg.
type StockLine struct {
	ID          string
	DocumentID  string
	ItemID      string
	Name        string
	ImageURL    string
	Category    string
	PriceCents  int
	OriginalKg  float64
	AvailableKg float64
	FarmerID    string
	FarmerName  string
	Status      LineStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LineInput carries the fields a caller supplies when appending a line.
type LineInput struct {
	ItemID     string  `json:"item_id"`
	Name       string  `json:"name"`
	ImageURL   string  `json:"image_url"`
	Category   string  `json:"category"`
	PriceCents int     `json:"price_cents"`
	QuantityKg float64 `json:"quantity_kg"`
	FarmerID   string  `json:"farmer_id"`
	FarmerName string  `json:"farmer_name"`
}

type Order struct {
	ID         string
	ExternalID string
	CartID     string
	UserID     string
	Status     OrderStatus
	TotalCents int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type OrderItem struct {
	OrderID    string
	DocumentID string
	LineID     string
	QtyKg      float64
	PriceCents int
}
