// Package ledger is the sole mutator of stock records. Every mutation runs
// as a single transaction against the store and upholds the reservation
// invariant 0 <= reserved <= quantity across concurrent callers.
package ledger

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/mkovac/zaloga/model"
)

// AlertFunc receives a stock alert after a mutation commits a crossing into
// a more depleted level.
type AlertFunc func(model.StockAlert)

// EventFunc receives a description of every committed stock mutation.
type EventFunc func(model.StockEvent)

// Ledger owns all stock record mutations.
type Ledger struct {
	db             *sql.DB
	log            *slog.Logger
	alert          AlertFunc
	event          EventFunc
	touchOnReserve bool
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithAlertFunc installs a sink for stock level alerts.
func WithAlertFunc(fn AlertFunc) Option {
	return func(l *Ledger) { l.alert = fn }
}

// WithEventFunc installs a sink for stock mutation events.
func WithEventFunc(fn EventFunc) Option {
	return func(l *Ledger) { l.event = fn }
}

// WithTouchOnReserve makes reservation-only changes refresh a record's
// updated_at timestamp. Off by default: only quantity changes touch it.
func WithTouchOnReserve(on bool) Option {
	return func(l *Ledger) { l.touchOnReserve = on }
}

// WithLogger sets the logger used for sink failures.
func WithLogger(log *slog.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// New creates a Ledger on top of an opened database.
func New(db *sql.DB, opts ...Option) *Ledger {
	l := &Ledger{db: db, log: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Change captures a stock record before and after one mutation. Callers that
// run ledger mutations inside their own transaction pass collected changes
// to Emit after committing.
type Change struct {
	Before model.StockRecord
	After  model.StockRecord
	Op     string
	Reason string
}

// Emit publishes events and alerts for committed changes. An alert fires
// only when a record crossed into a more depleted, understocked level. Sink
// panics are logged, never propagated.
func (l *Ledger) Emit(changes ...Change) {
	now := time.Now().UTC()
	for _, ch := range changes {
		if l.event != nil {
			l.safely("event", func() {
				l.event(model.StockEvent{
					LocationID:    ch.After.LocationID,
					ItemID:        ch.After.ItemID,
					Op:            ch.Op,
					QuantityDelta: ch.After.Quantity - ch.Before.Quantity,
					ReservedDelta: ch.After.Reserved - ch.Before.Reserved,
					Reason:        ch.Reason,
					At:            now,
				})
			})
		}

		prev, cur := ch.Before.Level(), ch.After.Level()
		if l.alert != nil && cur.Understocked() && cur.Severity() > prev.Severity() {
			l.safely("alert", func() {
				l.alert(model.StockAlert{
					Record:   ch.After,
					Previous: prev,
					Current:  cur,
					At:       now,
				})
			})
		}
	}
}

func (l *Ledger) safely(sink string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("stock sink panicked", "sink", sink, "panic", r)
		}
	}()
	fn()
}
