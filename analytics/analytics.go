// Package analytics computes read-only statistics over transfer and stock
// collections. Everything here is pure: callers fetch the collections
// through the ledger and workflow query surfaces.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mkovac/zaloga/model"
)

// ApprovalRate returns the share of requests that completed, as a percentage
// rounded to two decimals. An empty collection yields 0.
func ApprovalRate(requests []model.TransferRequest) float64 {
	if len(requests) == 0 {
		return 0
	}
	var completed int
	for _, r := range requests {
		if r.Status == model.StatusCompleted {
			completed++
		}
	}
	rate := float64(completed) / float64(len(requests)) * 100
	return math.Round(rate*100) / 100
}

// AverageProcessingTime returns the mean time from request to completion
// over completed requests. Zero when nothing completed.
func AverageProcessingTime(requests []model.TransferRequest) time.Duration {
	var total time.Duration
	var n int
	for _, r := range requests {
		if r.Status != model.StatusCompleted || r.CompletedAt == nil {
			continue
		}
		total += r.CompletedAt.Sub(r.RequestedAt)
		n++
	}
	if n == 0 {
		return 0
	}
	return total / time.Duration(n)
}

// Summary aggregates the stock records of one location.
type Summary struct {
	Items          int             `json:"items"`
	TotalUnits     int             `json:"total_units"`
	ReservedUnits  int             `json:"reserved_units"`
	AvailableUnits int             `json:"available_units"`
	TotalValue     decimal.Decimal `json:"total_value"`
	ReservedValue  decimal.Decimal `json:"reserved_value"`
	AvailableValue decimal.Decimal `json:"available_value"`
	LowStock       int             `json:"low_stock"`
}

// StoreSummary aggregates counts and values over the stock records of one
// location. Values come from the records' joined unit prices.
func StoreSummary(records []model.StockRecord) Summary {
	s := Summary{
		TotalValue:     decimal.Zero,
		ReservedValue:  decimal.Zero,
		AvailableValue: decimal.Zero,
	}
	for _, r := range records {
		s.Items++
		s.TotalUnits += r.Quantity
		s.ReservedUnits += r.Reserved
		s.AvailableUnits += r.Available()
		s.TotalValue = s.TotalValue.Add(r.UnitPrice.Mul(decimal.NewFromInt(int64(r.Quantity))))
		s.ReservedValue = s.ReservedValue.Add(r.UnitPrice.Mul(decimal.NewFromInt(int64(r.Reserved))))
		s.AvailableValue = s.AvailableValue.Add(r.UnitPrice.Mul(decimal.NewFromInt(int64(r.Available()))))
		if r.Level().Understocked() {
			s.LowStock++
		}
	}
	return s
}

// LocationStock is one location's share of an item's network-wide stock.
type LocationStock struct {
	LocationID   int64            `json:"location_id"`
	LocationName string           `json:"location_name"`
	Quantity     int              `json:"quantity"`
	Reserved     int              `json:"reserved"`
	Available    int              `json:"available"`
	Level        model.StockLevel `json:"level"`
}

// CrossLocationView breaks down one item's stock per location, sorted by
// location name.
func CrossLocationView(records []model.StockRecord) []LocationStock {
	view := make([]LocationStock, 0, len(records))
	for _, r := range records {
		view = append(view, LocationStock{
			LocationID:   r.LocationID,
			LocationName: r.LocationName,
			Quantity:     r.Quantity,
			Reserved:     r.Reserved,
			Available:    r.Available(),
			Level:        r.Level(),
		})
	}
	sort.Slice(view, func(i, j int) bool {
		if view[i].LocationName != view[j].LocationName {
			return view[i].LocationName < view[j].LocationName
		}
		return view[i].LocationID < view[j].LocationID
	})
	return view
}
