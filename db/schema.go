package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS locations (
    id         INTEGER PRIMARY KEY,
    name       TEXT NOT NULL UNIQUE,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS items (
    id         INTEGER PRIMARY KEY,
    name       TEXT NOT NULL UNIQUE,
    sku        TEXT,
    unit_price TEXT NOT NULL DEFAULT '0',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS stock_records (
    location_id   INTEGER NOT NULL REFERENCES locations(id),
    item_id       INTEGER NOT NULL REFERENCES items(id),
    quantity      INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
    reserved      INTEGER NOT NULL DEFAULT 0 CHECK (reserved >= 0 AND reserved <= quantity),
    safety_stock  INTEGER NOT NULL DEFAULT 0 CHECK (safety_stock >= 0),
    reorder_level INTEGER,
    updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (location_id, item_id)
);

CREATE TABLE IF NOT EXISTS transfers (
    id               INTEGER PRIMARY KEY,
    request_id       TEXT NOT NULL UNIQUE,
    item_id          INTEGER NOT NULL REFERENCES items(id),
    from_location_id INTEGER NOT NULL REFERENCES locations(id),
    to_location_id   INTEGER NOT NULL REFERENCES locations(id),
    quantity         INTEGER NOT NULL CHECK (quantity > 0),
    status           TEXT NOT NULL DEFAULT 'pending'
                     CHECK (status IN ('pending', 'approved', 'in_transit', 'completed', 'rejected', 'cancelled')),
    priority         TEXT NOT NULL DEFAULT 'normal'
                     CHECK (priority IN ('normal', 'urgent', 'emergency')),
    requested_by     TEXT NOT NULL,
    approved_by      TEXT,
    reason           TEXT NOT NULL,
    requested_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    approved_at      DATETIME,
    completed_at     DATETIME,
    CHECK (from_location_id <> to_location_id)
);

CREATE INDEX IF NOT EXISTS idx_transfers_status ON transfers(status);
CREATE INDEX IF NOT EXISTS idx_transfers_from ON transfers(from_location_id);
CREATE INDEX IF NOT EXISTS idx_transfers_to ON transfers(to_location_id);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
