package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mkovac/zaloga/model"
)

// getRecordTx reads a stock record inside a transaction, before a write.
func getRecordTx(ctx context.Context, tx *sql.Tx, locationID, itemID int64) (model.StockRecord, bool, error) {
	rec := model.StockRecord{LocationID: locationID, ItemID: itemID}
	var reorder sql.NullInt64
	err := tx.QueryRowContext(ctx,
		`SELECT quantity, reserved, safety_stock, reorder_level, updated_at
		 FROM stock_records WHERE location_id = ? AND item_id = ?`,
		locationID, itemID,
	).Scan(&rec.Quantity, &rec.Reserved, &rec.SafetyStock, &reorder, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, fmt.Errorf("reading stock record: %w", err)
	}
	if reorder.Valid {
		level := int(reorder.Int64)
		rec.ReorderLevel = &level
	}
	return rec, true, nil
}

// ReserveTx increases the reserved quantity inside the caller's transaction.
// Fails with InsufficientStockError when qty exceeds the available quantity.
func (l *Ledger) ReserveTx(ctx context.Context, tx *sql.Tx, locationID, itemID int64, qty int) (Change, error) {
	if qty <= 0 {
		return Change{}, &model.ValidationError{Message: "reserve quantity must be positive"}
	}

	rec, ok, err := getRecordTx(ctx, tx, locationID, itemID)
	if err != nil {
		return Change{}, err
	}
	if !ok || qty > rec.Available() {
		return Change{}, &model.InsufficientStockError{
			LocationID: locationID,
			ItemID:     itemID,
			Requested:  qty,
			Available:  rec.Available(),
		}
	}

	after := rec
	after.Reserved += qty
	if l.touchOnReserve {
		after.UpdatedAt = time.Now().UTC()
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE stock_records SET reserved = ?, updated_at = ?
		 WHERE location_id = ? AND item_id = ?`,
		after.Reserved, after.UpdatedAt, locationID, itemID,
	); err != nil {
		return Change{}, fmt.Errorf("reserving stock: %w", err)
	}

	return Change{Before: rec, After: after, Op: "reserve"}, nil
}

// ReleaseTx decreases the reserved quantity inside the caller's transaction.
// Fails with OverReleaseError when qty exceeds the reserved quantity.
func (l *Ledger) ReleaseTx(ctx context.Context, tx *sql.Tx, locationID, itemID int64, qty int) (Change, error) {
	if qty <= 0 {
		return Change{}, &model.ValidationError{Message: "release quantity must be positive"}
	}

	rec, ok, err := getRecordTx(ctx, tx, locationID, itemID)
	if err != nil {
		return Change{}, err
	}
	if !ok || qty > rec.Reserved {
		return Change{}, &model.OverReleaseError{
			LocationID: locationID,
			ItemID:     itemID,
			Requested:  qty,
			Reserved:   rec.Reserved,
		}
	}

	after := rec
	after.Reserved -= qty
	if l.touchOnReserve {
		after.UpdatedAt = time.Now().UTC()
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE stock_records SET reserved = ?, updated_at = ?
		 WHERE location_id = ? AND item_id = ?`,
		after.Reserved, after.UpdatedAt, locationID, itemID,
	); err != nil {
		return Change{}, fmt.Errorf("releasing stock: %w", err)
	}

	return Change{Before: rec, After: after, Op: "release"}, nil
}

// adjustTx changes the quantity by delta inside the caller's transaction.
// Fails with InsufficientStockError when the result would drop below the
// reserved quantity.
func (l *Ledger) adjustTx(ctx context.Context, tx *sql.Tx, locationID, itemID int64, delta int, reason string) (Change, error) {
	rec, ok, err := getRecordTx(ctx, tx, locationID, itemID)
	if err != nil {
		return Change{}, err
	}
	if !ok {
		return Change{}, &model.InsufficientStockError{
			LocationID: locationID,
			ItemID:     itemID,
			Requested:  -delta,
		}
	}

	newQty := rec.Quantity + delta
	if newQty < rec.Reserved {
		return Change{}, &model.InsufficientStockError{
			LocationID: locationID,
			ItemID:     itemID,
			Requested:  -delta,
			Available:  rec.Available(),
		}
	}

	after := rec
	after.Quantity = newQty
	after.UpdatedAt = time.Now().UTC()

	if _, err := tx.ExecContext(ctx,
		`UPDATE stock_records SET quantity = ?, updated_at = ?
		 WHERE location_id = ? AND item_id = ?`,
		after.Quantity, after.UpdatedAt, locationID, itemID,
	); err != nil {
		return Change{}, fmt.Errorf("adjusting stock: %w", err)
	}

	return Change{Before: rec, After: after, Op: "adjust", Reason: reason}, nil
}

// addStockTx adds quantity to a record inside the caller's transaction,
// creating the record if absent. defaultSafety applies only on creation.
func (l *Ledger) addStockTx(ctx context.Context, tx *sql.Tx, locationID, itemID int64, qty, defaultSafety int) (Change, error) {
	rec, ok, err := getRecordTx(ctx, tx, locationID, itemID)
	if err != nil {
		return Change{}, err
	}

	now := time.Now().UTC()
	after := rec
	after.Quantity += qty
	after.UpdatedAt = now

	if !ok {
		after.SafetyStock = defaultSafety
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stock_records (location_id, item_id, quantity, reserved, safety_stock, updated_at)
			 VALUES (?, ?, ?, 0, ?, ?)`,
			locationID, itemID, after.Quantity, after.SafetyStock, now,
		); err != nil {
			return Change{}, fmt.Errorf("creating stock record: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			`UPDATE stock_records SET quantity = ?, updated_at = ?
			 WHERE location_id = ? AND item_id = ?`,
			after.Quantity, now, locationID, itemID,
		); err != nil {
			return Change{}, fmt.Errorf("adding stock: %w", err)
		}
	}

	return Change{Before: rec, After: after, Op: "add"}, nil
}

// TransferTx executes the stock side of a completed transfer inside the
// caller's transaction: the source loses qty from both quantity and
// reserved, the destination gains qty. A destination record created here
// defaults its safety stock to the transferred quantity.
func (l *Ledger) TransferTx(ctx context.Context, tx *sql.Tx, fromLocationID, toLocationID, itemID int64, qty int) (Change, Change, error) {
	if qty <= 0 {
		return Change{}, Change{}, &model.ValidationError{Message: "transfer quantity must be positive"}
	}

	src, ok, err := getRecordTx(ctx, tx, fromLocationID, itemID)
	if err != nil {
		return Change{}, Change{}, err
	}
	if !ok || qty > src.Quantity {
		return Change{}, Change{}, &model.InsufficientStockError{
			LocationID: fromLocationID,
			ItemID:     itemID,
			Requested:  qty,
			Available:  src.Available(),
		}
	}
	if qty > src.Reserved {
		return Change{}, Change{}, fmt.Errorf("reservation mismatch for item %d at location %d: transferring %d, reserved %d",
			itemID, fromLocationID, qty, src.Reserved)
	}

	now := time.Now().UTC()
	srcAfter := src
	srcAfter.Quantity -= qty
	srcAfter.Reserved -= qty
	srcAfter.UpdatedAt = now

	if _, err := tx.ExecContext(ctx,
		`UPDATE stock_records SET quantity = ?, reserved = ?, updated_at = ?
		 WHERE location_id = ? AND item_id = ?`,
		srcAfter.Quantity, srcAfter.Reserved, now, fromLocationID, itemID,
	); err != nil {
		return Change{}, Change{}, fmt.Errorf("updating source stock: %w", err)
	}

	dstChange, err := l.addStockTx(ctx, tx, toLocationID, itemID, qty, qty)
	if err != nil {
		return Change{}, Change{}, fmt.Errorf("updating destination stock: %w", err)
	}
	dstChange.Op = "transfer_in"

	return Change{Before: src, After: srcAfter, Op: "transfer_out"}, dstChange, nil
}
