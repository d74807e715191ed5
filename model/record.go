package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockRecord tracks the quantity and reservation state of one item at one
// location. It is mutated exclusively through the ledger.
type StockRecord struct {
	LocationID   int64     `json:"location_id"`
	ItemID       int64     `json:"item_id"`
	Quantity     int       `json:"quantity"`
	Reserved     int       `json:"reserved"`
	SafetyStock  int       `json:"safety_stock"`
	ReorderLevel *int      `json:"reorder_level,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Joined fields (not always populated).
	ItemName     string          `json:"item_name,omitempty"`
	LocationName string          `json:"location_name,omitempty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
}

// Available returns the quantity eligible for new reservations.
func (r StockRecord) Available() int {
	return r.Quantity - r.Reserved
}

// Level classifies the record's quantity against its safety stock.
func (r StockRecord) Level() StockLevel {
	return ClassifyStockLevel(r.Quantity, r.SafetyStock)
}

// NeedsReorder reports whether available stock has fallen to the configured
// reorder level. Always false when no reorder level is set.
func (r StockRecord) NeedsReorder() bool {
	return r.ReorderLevel != nil && r.Available() <= *r.ReorderLevel
}
