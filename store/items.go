package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mkovac/zaloga/model"
)

// CreateItem creates a new item. The unit price feeds value aggregation in
// analytics.
func CreateItem(ctx context.Context, db *sql.DB, name, sku string, unitPrice decimal.Decimal) (*model.Item, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO items (name, sku, unit_price) VALUES (?, ?, ?)`,
		name, sku, unitPrice.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID.
func GetItem(ctx context.Context, db *sql.DB, id int64) (*model.Item, error) {
	item := &model.Item{}
	var sku sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, name, sku, unit_price, created_at FROM items WHERE id = ?`, id,
	).Scan(&item.ID, &item.Name, &sku, &item.UnitPrice, &item.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	item.SKU = sku.String
	return item, nil
}

// ListItems returns all items ordered by name.
func ListItems(ctx context.Context, db *sql.DB) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, sku, unit_price, created_at FROM items ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var item model.Item
		var sku sql.NullString
		if err := rows.Scan(&item.ID, &item.Name, &sku, &item.UnitPrice, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		item.SKU = sku.String
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateItemPrice updates an item's unit price.
func UpdateItemPrice(ctx context.Context, db *sql.DB, id int64, unitPrice decimal.Decimal) error {
	_, err := db.ExecContext(ctx,
		`UPDATE items SET unit_price = ? WHERE id = ?`,
		unitPrice.String(), id,
	)
	if err != nil {
		return fmt.Errorf("updating item price: %w", err)
	}
	return nil
}
