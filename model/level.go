package model

// StockLevel classifies a stock record's quantity against its safety stock.
type StockLevel string

// Stock levels, from most to least depleted.
const (
	LevelOutOfStock StockLevel = "out_of_stock"
	LevelCritical   StockLevel = "critical"
	LevelLow        StockLevel = "low"
	LevelOptimal    StockLevel = "optimal"
	LevelExcess     StockLevel = "excess"
)

// ClassifyStockLevel buckets a quantity against a safety stock threshold.
// Boundaries are inclusive on the more depleted bucket: exactly half the
// safety stock is critical, exactly twice the safety stock is optimal.
func ClassifyStockLevel(quantity, safetyStock int) StockLevel {
	switch {
	case quantity == 0:
		return LevelOutOfStock
	case quantity*2 <= safetyStock:
		return LevelCritical
	case quantity <= safetyStock:
		return LevelLow
	case quantity <= 2*safetyStock:
		return LevelOptimal
	default:
		return LevelExcess
	}
}

// Severity orders levels by depletion: excess 0 through out_of_stock 4.
func (l StockLevel) Severity() int {
	switch l {
	case LevelOutOfStock:
		return 4
	case LevelCritical:
		return 3
	case LevelLow:
		return 2
	case LevelOptimal:
		return 1
	default:
		return 0
	}
}

// Understocked reports whether l is low, critical or out of stock.
func (l StockLevel) Understocked() bool {
	return l.Severity() >= LevelLow.Severity()
}
