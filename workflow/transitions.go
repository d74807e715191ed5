package workflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mkovac/zaloga/db"
	"github.com/mkovac/zaloga/ledger"
	"github.com/mkovac/zaloga/model"
)

// Approve moves a pending request to approved, recording the approver. It
// does not move stock. Returns false without error when the request is no
// longer pending.
func (s *Service) Approve(ctx context.Context, id int64, approver string) (bool, error) {
	if approver == "" {
		return false, &model.ValidationError{Message: "approver is required"}
	}

	var approved bool
	err := s.transition(ctx, id, "approve", approver, func(tx *sql.Tx, t *model.TransferRequest) (model.Status, []ledger.Change, error) {
		if t.Status != model.StatusPending {
			return "", nil, nil // not an error, by contract
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE transfers SET status = ?, approved_by = ?, approved_at = CURRENT_TIMESTAMP
			 WHERE id = ?`,
			model.StatusApproved, approver, id,
		)
		if err != nil {
			return "", nil, fmt.Errorf("approving transfer: %w", err)
		}
		approved = true
		return model.StatusApproved, nil, nil
	})
	return approved, err
}

// Reject moves a pending request to rejected, releasing its reservation and
// appending extraReason to the stored reason.
func (s *Service) Reject(ctx context.Context, id int64, approver, extraReason string) error {
	if approver == "" {
		return &model.ValidationError{Message: "approver is required"}
	}

	return s.transition(ctx, id, "reject", approver, func(tx *sql.Tx, t *model.TransferRequest) (model.Status, []ledger.Change, error) {
		if !t.Rejectable() {
			return "", nil, &model.InvalidTransitionError{From: t.Status, To: model.StatusRejected}
		}

		ch, err := s.ledger.ReleaseTx(ctx, tx, t.FromLocationID, t.ItemID, t.Quantity)
		if err != nil {
			return "", nil, err
		}

		reason := t.Reason
		if extraReason != "" {
			reason = t.Reason + "; " + extraReason
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE transfers SET status = ?, approved_by = ?, approved_at = CURRENT_TIMESTAMP, reason = ?
			 WHERE id = ?`,
			model.StatusRejected, approver, reason, id,
		)
		if err != nil {
			return "", nil, fmt.Errorf("rejecting transfer: %w", err)
		}
		return model.StatusRejected, []ledger.Change{ch}, nil
	})
}

// Cancel withdraws a pending or approved request, releasing its reservation.
func (s *Service) Cancel(ctx context.Context, id int64, actor string) error {
	if actor == "" {
		return &model.ValidationError{Message: "actor is required"}
	}

	return s.transition(ctx, id, "cancel", actor, func(tx *sql.Tx, t *model.TransferRequest) (model.Status, []ledger.Change, error) {
		if !t.CanBeCancelled() {
			return "", nil, &model.InvalidTransitionError{From: t.Status, To: model.StatusCancelled}
		}

		ch, err := s.ledger.ReleaseTx(ctx, tx, t.FromLocationID, t.ItemID, t.Quantity)
		if err != nil {
			return "", nil, err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE transfers SET status = ? WHERE id = ?`,
			model.StatusCancelled, id,
		)
		if err != nil {
			return "", nil, fmt.Errorf("cancelling transfer: %w", err)
		}
		return model.StatusCancelled, []ledger.Change{ch}, nil
	})
}

// Dispatch marks an approved request as in transit. No stock moves until
// completion.
func (s *Service) Dispatch(ctx context.Context, id int64, actor string) error {
	if actor == "" {
		return &model.ValidationError{Message: "actor is required"}
	}

	return s.transition(ctx, id, "dispatch", actor, func(tx *sql.Tx, t *model.TransferRequest) (model.Status, []ledger.Change, error) {
		if t.Status != model.StatusApproved {
			return "", nil, &model.InvalidTransitionError{From: t.Status, To: model.StatusInTransit}
		}

		_, err := tx.ExecContext(ctx,
			`UPDATE transfers SET status = ? WHERE id = ?`,
			model.StatusInTransit, id,
		)
		if err != nil {
			return "", nil, fmt.Errorf("dispatching transfer: %w", err)
		}
		return model.StatusInTransit, nil, nil
	})
}

// Complete executes an approved or in-transit transfer as one transaction:
// the source loses the quantity and its reservation, the destination gains
// it. An execution failure rolls everything back, is logged, and returns
// false without an error.
func (s *Service) Complete(ctx context.Context, id int64, actor string) (bool, error) {
	if actor == "" {
		return false, &model.ValidationError{Message: "actor is required"}
	}

	var completed bool
	err := s.transition(ctx, id, "complete", actor, func(tx *sql.Tx, t *model.TransferRequest) (model.Status, []ledger.Change, error) {
		if !t.Completable() {
			return "", nil, &model.InvalidTransitionError{From: t.Status, To: model.StatusCompleted}
		}

		srcCh, dstCh, err := s.ledger.TransferTx(ctx, tx, t.FromLocationID, t.ToLocationID, t.ItemID, t.Quantity)
		if err != nil {
			s.log.Error("transfer execution failed",
				"request", t.RequestID, "item", t.ItemID,
				"from", t.FromLocationID, "to", t.ToLocationID,
				"quantity", t.Quantity, "error", err)
			return "", nil, errExecutionFailed
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE transfers SET status = ?, completed_at = CURRENT_TIMESTAMP WHERE id = ?`,
			model.StatusCompleted, id,
		)
		if err != nil {
			return "", nil, fmt.Errorf("completing transfer: %w", err)
		}
		completed = true
		return model.StatusCompleted, []ledger.Change{srcCh, dstCh}, nil
	})
	if errors.Is(err, errExecutionFailed) {
		return false, nil
	}
	return completed, err
}

// errExecutionFailed is internal to Complete: it aborts the transaction but
// surfaces as a boolean failure, not an error.
var errExecutionFailed = errors.New("transfer execution failed")

// Approvable reports whether the request can be approved right now: it must
// still be pending and the source's physical quantity must still cover it
// (stock may have been adjusted since the request was created).
func (s *Service) Approvable(ctx context.Context, id int64) (bool, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if t == nil {
		return false, model.ErrNotFound
	}
	if t.Status != model.StatusPending {
		return false, nil
	}

	rec, err := s.ledger.Record(ctx, t.FromLocationID, t.ItemID)
	if err != nil {
		return false, err
	}
	return rec != nil && rec.Quantity >= t.Quantity, nil
}

// transition loads the request, applies fn inside a transaction, commits,
// then emits ledger changes and the audit event.
func (s *Service) transition(ctx context.Context, id int64, action, actor string,
	fn func(tx *sql.Tx, t *model.TransferRequest) (model.Status, []ledger.Change, error)) error {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning %s: %w", action, db.Conflict(err))
	}
	defer tx.Rollback()

	t, err := getTransferTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if t == nil {
		return model.ErrNotFound
	}

	next, changes, err := fn(tx, t)
	if err != nil {
		return err
	}
	if next == "" {
		// No transition happened (Approve's false-on-non-pending contract).
		return tx.Commit()
	}

	// The transition table is the final authority, whatever fn checked.
	if !t.Status.CanTransitionTo(next) {
		return &model.InvalidTransitionError{From: t.Status, To: next}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing %s: %w", action, db.Conflict(err))
	}

	s.ledger.Emit(changes...)
	s.emit(model.TransferEvent{
		TransferID: t.ID,
		RequestID:  t.RequestID,
		Action:     action,
		Actor:      actor,
		From:       t.Status,
		To:         next,
		At:         time.Now().UTC(),
	})
	return nil
}
