package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Location is one site in the network that holds stock.
type Location struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Item is a stockable item type (quantity-based, not individual tracking).
type Item struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	CreatedAt time.Time       `json:"created_at"`
}
