package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mkovac/zaloga/db"
	"github.com/mkovac/zaloga/model"
)

// withTx runs a mutation in its own transaction and emits its changes after
// commit. Busy errors surface as model.ErrConcurrencyConflict.
func (l *Ledger) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) ([]Change, error)) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning %s: %w", op, db.Conflict(err))
	}
	defer tx.Rollback()

	changes, err := fn(tx)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", op, db.Conflict(err))
	}

	l.Emit(changes...)
	return nil
}

// Reserve earmarks qty units of an item at a location for a pending
// transfer. Fails with InsufficientStockError when fewer than qty units are
// available.
func (l *Ledger) Reserve(ctx context.Context, locationID, itemID int64, qty int) error {
	return l.withTx(ctx, "reserve", func(tx *sql.Tx) ([]Change, error) {
		ch, err := l.ReserveTx(ctx, tx, locationID, itemID, qty)
		if err != nil {
			return nil, err
		}
		return []Change{ch}, nil
	})
}

// Release returns qty reserved units of an item at a location to the
// available pool. Fails with OverReleaseError when qty exceeds the reserved
// quantity.
func (l *Ledger) Release(ctx context.Context, locationID, itemID int64, qty int) error {
	return l.withTx(ctx, "release", func(tx *sql.Tx) ([]Change, error) {
		ch, err := l.ReleaseTx(ctx, tx, locationID, itemID, qty)
		if err != nil {
			return nil, err
		}
		return []Change{ch}, nil
	})
}

// Adjust changes an item's quantity at a location by delta (positive or
// negative), recording the reason on the emitted stock event. Fails with
// InsufficientStockError if the result would drop below the reserved
// quantity.
func (l *Ledger) Adjust(ctx context.Context, locationID, itemID int64, delta int, reason string) error {
	if delta == 0 {
		return &model.ValidationError{Message: "adjustment delta must be non-zero"}
	}
	return l.withTx(ctx, "adjust", func(tx *sql.Tx) ([]Change, error) {
		ch, err := l.adjustTx(ctx, tx, locationID, itemID, delta, reason)
		if err != nil {
			return nil, err
		}
		return []Change{ch}, nil
	})
}

// AddStock adds qty units of an item at a location, creating the stock
// record when the item is first stocked there.
func (l *Ledger) AddStock(ctx context.Context, locationID, itemID int64, qty int) error {
	if qty <= 0 {
		return &model.ValidationError{Message: "stock quantity must be positive"}
	}
	return l.withTx(ctx, "add stock", func(tx *sql.Tx) ([]Change, error) {
		ch, err := l.addStockTx(ctx, tx, locationID, itemID, qty, 0)
		if err != nil {
			return nil, err
		}
		return []Change{ch}, nil
	})
}

// SetSafetyStock configures the safety stock threshold and optional reorder
// level of a record, creating an empty record if the item has never been
// stocked at the location.
func (l *Ledger) SetSafetyStock(ctx context.Context, locationID, itemID int64, safetyStock int, reorderLevel *int) error {
	if safetyStock < 0 {
		return &model.ValidationError{Message: "safety stock must not be negative"}
	}
	if reorderLevel != nil && *reorderLevel < 0 {
		return &model.ValidationError{Message: "reorder level must not be negative"}
	}
	return l.withTx(ctx, "set safety stock", func(tx *sql.Tx) ([]Change, error) {
		_, ok, err := getRecordTx(ctx, tx, locationID, itemID)
		if err != nil {
			return nil, err
		}
		if !ok {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO stock_records (location_id, item_id, quantity, reserved, safety_stock, reorder_level)
				 VALUES (?, ?, 0, 0, ?, ?)`,
				locationID, itemID, safetyStock, reorderValue(reorderLevel),
			)
		} else {
			_, err = tx.ExecContext(ctx,
				`UPDATE stock_records SET safety_stock = ?, reorder_level = ?
				 WHERE location_id = ? AND item_id = ?`,
				safetyStock, reorderValue(reorderLevel), locationID, itemID,
			)
		}
		if err != nil {
			return nil, fmt.Errorf("setting safety stock: %w", err)
		}
		return nil, nil
	})
}

func reorderValue(level *int) any {
	if level == nil {
		return nil
	}
	return *level
}
