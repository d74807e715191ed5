package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mkovac/zaloga/model"
)

// CreateLocation creates a new location.
func CreateLocation(ctx context.Context, db *sql.DB, name string) (*model.Location, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO locations (name) VALUES (?)`,
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("creating location: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting location id: %w", err)
	}

	return GetLocation(ctx, db, id)
}

// GetLocation returns a location by ID.
func GetLocation(ctx context.Context, db *sql.DB, id int64) (*model.Location, error) {
	l := &model.Location{}
	err := db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM locations WHERE id = ?`, id,
	).Scan(&l.ID, &l.Name, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting location: %w", err)
	}
	return l, nil
}

// ListLocations returns all locations ordered by name.
func ListLocations(ctx context.Context, db *sql.DB) ([]model.Location, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, created_at FROM locations ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}
	defer rows.Close()

	var locations []model.Location
	for rows.Next() {
		var l model.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}
