// Package workflow drives transfer requests through their lifecycle:
// pending, approved, in_transit, completed, with rejected and cancelled as
// the other terminal states. Stock is only ever touched through the ledger,
// inside the same transaction as the status change.
package workflow

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mkovac/zaloga/db"
	"github.com/mkovac/zaloga/ledger"
	"github.com/mkovac/zaloga/model"
)

// AuditFunc receives a transfer event after each committed transition.
type AuditFunc func(model.TransferEvent)

// Service orchestrates transfer requests on top of the stock ledger.
type Service struct {
	db     *sql.DB
	ledger *ledger.Ledger
	log    *slog.Logger
	audit  AuditFunc
}

// Option configures a Service.
type Option func(*Service)

// WithAuditFunc installs a sink for transfer lifecycle events.
func WithAuditFunc(fn AuditFunc) Option {
	return func(s *Service) { s.audit = fn }
}

// WithLogger sets the logger used for execution failures and sink panics.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// New creates a transfer workflow service.
func New(database *sql.DB, led *ledger.Ledger, opts ...Option) *Service {
	s := &Service{db: database, ledger: led, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest holds the input for a new transfer request.
type CreateRequest struct {
	ItemID         int64
	FromLocationID int64
	ToLocationID   int64
	Quantity       int
	Priority       model.Priority
	RequestedBy    string
	Reason         string
}

func (r CreateRequest) validate() error {
	switch {
	case r.Quantity <= 0:
		return &model.ValidationError{Message: "quantity must be positive"}
	case r.FromLocationID == r.ToLocationID:
		return &model.ValidationError{Message: "source and destination must differ"}
	case r.RequestedBy == "":
		return &model.ValidationError{Message: "requester is required"}
	case r.Reason == "":
		return &model.ValidationError{Message: "reason is required"}
	case len(r.Reason) > model.MaxReasonLength:
		return &model.ValidationError{Message: fmt.Sprintf("reason exceeds %d characters", model.MaxReasonLength)}
	case !r.Priority.Valid():
		return &model.ValidationError{Message: "unknown priority: " + string(r.Priority)}
	}
	return nil
}

// Create validates the request, reserves the quantity at the source and
// persists the transfer as pending, all in one transaction. If the
// reservation fails nothing is persisted.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*model.TransferRequest, error) {
	if req.Priority == "" {
		req.Priority = model.PriorityNormal
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning create: %w", db.Conflict(err))
	}
	defer tx.Rollback()

	ch, err := s.ledger.ReserveTx(ctx, tx, req.FromLocationID, req.ItemID, req.Quantity)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO transfers (request_id, item_id, from_location_id, to_location_id,
		                        quantity, status, priority, requested_by, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		requestID, req.ItemID, req.FromLocationID, req.ToLocationID,
		req.Quantity, model.StatusPending, req.Priority, req.RequestedBy, req.Reason,
	)
	if err != nil {
		return nil, fmt.Errorf("creating transfer: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting transfer id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing create: %w", db.Conflict(err))
	}

	s.ledger.Emit(ch)
	s.emit(model.TransferEvent{
		TransferID: id,
		RequestID:  requestID,
		Action:     "create",
		Actor:      req.RequestedBy,
		To:         model.StatusPending,
		At:         time.Now().UTC(),
	})

	return s.Get(ctx, id)
}

// emit delivers an audit event. Sink panics are logged, never propagated.
func (s *Service) emit(ev model.TransferEvent) {
	if s.audit == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("audit sink panicked", "action", ev.Action, "request", ev.RequestID, "panic", r)
		}
	}()
	s.audit(ev)
}
