package workflow

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mkovac/zaloga/model"
)

const transferColumns = `t.id, t.request_id, t.item_id, t.from_location_id, t.to_location_id,
	        t.quantity, t.status, t.priority, t.requested_by, t.approved_by, t.reason,
	        t.requested_at, t.approved_at, t.completed_at,
	        i.name AS item_name, fl.name AS from_location_name, tl.name AS to_location_name`

const transferJoins = ` FROM transfers t
	 JOIN items i ON i.id = t.item_id
	 JOIN locations fl ON fl.id = t.from_location_id
	 JOIN locations tl ON tl.id = t.to_location_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransfer(row rowScanner) (*model.TransferRequest, error) {
	t := &model.TransferRequest{}
	var approvedBy sql.NullString
	err := row.Scan(&t.ID, &t.RequestID, &t.ItemID, &t.FromLocationID, &t.ToLocationID,
		&t.Quantity, &t.Status, &t.Priority, &t.RequestedBy, &approvedBy, &t.Reason,
		&t.RequestedAt, &t.ApprovedAt, &t.CompletedAt,
		&t.ItemName, &t.FromLocationName, &t.ToLocationName)
	if err != nil {
		return nil, err
	}
	t.ApprovedBy = approvedBy.String
	return t, nil
}

// Get returns a transfer request by ID, or nil if it does not exist.
func (s *Service) Get(ctx context.Context, id int64) (*model.TransferRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transferColumns+transferJoins+` WHERE t.id = ?`, id)
	t, err := scanTransfer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting transfer: %w", err)
	}
	return t, nil
}

// GetByRequestID returns a transfer request by its public request ID, or nil
// if it does not exist.
func (s *Service) GetByRequestID(ctx context.Context, requestID string) (*model.TransferRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transferColumns+transferJoins+` WHERE t.request_id = ?`, requestID)
	t, err := scanTransfer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting transfer: %w", err)
	}
	return t, nil
}

// getTransferTx reads a transfer request inside a transaction, before a
// transition writes to it.
func getTransferTx(ctx context.Context, tx *sql.Tx, id int64) (*model.TransferRequest, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+transferColumns+transferJoins+` WHERE t.id = ?`, id)
	t, err := scanTransfer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting transfer: %w", err)
	}
	return t, nil
}

// Filter narrows List results. Zero values match everything; LocationID
// matches either side of the transfer.
type Filter struct {
	LocationID int64
	Status     model.Status
	Priority   model.Priority
}

// List returns transfer requests, newest first, optionally filtered.
func (s *Service) List(ctx context.Context, filter Filter) ([]model.TransferRequest, error) {
	query := `SELECT ` + transferColumns + transferJoins + ` WHERE 1=1`
	var args []any

	if filter.LocationID > 0 {
		query += ` AND (t.from_location_id = ? OR t.to_location_id = ?)`
		args = append(args, filter.LocationID, filter.LocationID)
	}
	if filter.Status != "" {
		query += ` AND t.status = ?`
		args = append(args, filter.Status)
	}
	if filter.Priority != "" {
		query += ` AND t.priority = ?`
		args = append(args, filter.Priority)
	}

	query += ` ORDER BY t.requested_at DESC, t.id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transfers: %w", err)
	}
	defer rows.Close()

	var transfers []model.TransferRequest
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transfer: %w", err)
		}
		transfers = append(transfers, *t)
	}
	return transfers, rows.Err()
}
