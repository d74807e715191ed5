package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mkovac/zaloga/model"
)

const recordColumns = `r.location_id, r.item_id, r.quantity, r.reserved, r.safety_stock,
	        r.reorder_level, r.updated_at,
	        i.name AS item_name, i.unit_price, l.name AS location_name`

func scanRecord(scan func(dest ...any) error) (model.StockRecord, error) {
	var rec model.StockRecord
	var reorder sql.NullInt64
	err := scan(&rec.LocationID, &rec.ItemID, &rec.Quantity, &rec.Reserved, &rec.SafetyStock,
		&reorder, &rec.UpdatedAt, &rec.ItemName, &rec.UnitPrice, &rec.LocationName)
	if err != nil {
		return rec, err
	}
	if reorder.Valid {
		level := int(reorder.Int64)
		rec.ReorderLevel = &level
	}
	return rec, nil
}

// Record returns the stock record for an item at a location, or nil if the
// item has never been stocked there.
func (l *Ledger) Record(ctx context.Context, locationID, itemID int64) (*model.StockRecord, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+`
		 FROM stock_records r
		 JOIN items i ON i.id = r.item_id
		 JOIN locations l ON l.id = r.location_id
		 WHERE r.location_id = ? AND r.item_id = ?`,
		locationID, itemID,
	)
	rec, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting stock record: %w", err)
	}
	return &rec, nil
}

// AvailableQuantity returns quantity minus reserved for an item at a
// location. Zero for items never stocked there.
func (l *Ledger) AvailableQuantity(ctx context.Context, locationID, itemID int64) (int, error) {
	rec, err := l.Record(ctx, locationID, itemID)
	if err != nil {
		return 0, err
	}
	if rec == nil {
		return 0, nil
	}
	return rec.Available(), nil
}

// LevelStatus classifies an item's stock level at a location. Items never
// stocked there classify as out of stock.
func (l *Ledger) LevelStatus(ctx context.Context, locationID, itemID int64) (model.StockLevel, error) {
	rec, err := l.Record(ctx, locationID, itemID)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return model.LevelOutOfStock, nil
	}
	return rec.Level(), nil
}

// NeedsReorder reports whether available stock of an item at a location has
// fallen to its configured reorder level.
func (l *Ledger) NeedsReorder(ctx context.Context, locationID, itemID int64) (bool, error) {
	rec, err := l.Record(ctx, locationID, itemID)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}
	return rec.NeedsReorder(), nil
}

// ListByLocation returns all stock records at one location, ordered by item
// name.
func (l *Ledger) ListByLocation(ctx context.Context, locationID int64) ([]model.StockRecord, error) {
	return l.listRecords(ctx,
		`SELECT `+recordColumns+`
		 FROM stock_records r
		 JOIN items i ON i.id = r.item_id
		 JOIN locations l ON l.id = r.location_id
		 WHERE r.location_id = ?
		 ORDER BY i.name`, locationID)
}

// ListByItem returns one item's stock records across all locations, ordered
// by location name.
func (l *Ledger) ListByItem(ctx context.Context, itemID int64) ([]model.StockRecord, error) {
	return l.listRecords(ctx,
		`SELECT `+recordColumns+`
		 FROM stock_records r
		 JOIN items i ON i.id = r.item_id
		 JOIN locations l ON l.id = r.location_id
		 WHERE r.item_id = ?
		 ORDER BY l.name`, itemID)
}

func (l *Ledger) listRecords(ctx context.Context, query string, arg int64) ([]model.StockRecord, error) {
	rows, err := l.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("listing stock records: %w", err)
	}
	defer rows.Close()

	var records []model.StockRecord
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning stock record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
