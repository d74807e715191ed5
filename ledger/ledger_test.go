package ledger

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mkovac/zaloga/db"
	"github.com/mkovac/zaloga/model"
	"github.com/mkovac/zaloga/store"
)

// setup creates a test database with one location and one item.
func setup(t *testing.T, opts ...Option) (*Ledger, *sql.DB, int64, int64) {
	t.Helper()
	database := db.NewTestDB(t)
	ctx := context.Background()

	loc, err := store.CreateLocation(ctx, database, "Central")
	if err != nil {
		t.Fatalf("CreateLocation: %v", err)
	}
	item, err := store.CreateItem(ctx, database, "Aspirin 100mg", "ASP-100", decimal.RequireFromString("2.50"))
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	return New(database, opts...), database, loc.ID, item.ID
}

func mustRecord(t *testing.T, led *Ledger, locationID, itemID int64) model.StockRecord {
	t.Helper()
	rec, err := led.Record(context.Background(), locationID, itemID)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec == nil {
		t.Fatalf("expected stock record for item %d at location %d", itemID, locationID)
	}
	return *rec
}

func TestAddStockCreatesRecord(t *testing.T) {
	led, _, loc, item := setup(t)
	ctx := context.Background()

	if err := led.AddStock(ctx, loc, item, 50); err != nil {
		t.Fatalf("AddStock: %v", err)
	}

	rec := mustRecord(t, led, loc, item)
	if rec.Quantity != 50 || rec.Reserved != 0 {
		t.Errorf("expected quantity 50, reserved 0, got %d/%d", rec.Quantity, rec.Reserved)
	}
	if rec.ItemName != "Aspirin 100mg" || rec.LocationName != "Central" {
		t.Errorf("expected joined names, got %q at %q", rec.ItemName, rec.LocationName)
	}

	// Adding again accumulates.
	if err := led.AddStock(ctx, loc, item, 25); err != nil {
		t.Fatalf("AddStock: %v", err)
	}
	if rec := mustRecord(t, led, loc, item); rec.Quantity != 75 {
		t.Errorf("expected quantity 75, got %d", rec.Quantity)
	}
}

func TestReserveAndRelease(t *testing.T) {
	led, _, loc, item := setup(t)
	ctx := context.Background()

	led.AddStock(ctx, loc, item, 100)

	if err := led.Reserve(ctx, loc, item, 30); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	rec := mustRecord(t, led, loc, item)
	if rec.Reserved != 30 || rec.Available() != 70 {
		t.Errorf("expected reserved 30, available 70, got %d/%d", rec.Reserved, rec.Available())
	}

	// Round trip: release restores the original reservation.
	if err := led.Release(ctx, loc, item, 30); err != nil {
		t.Fatalf("Release: %v", err)
	}
	rec = mustRecord(t, led, loc, item)
	if rec.Reserved != 0 || rec.Quantity != 100 {
		t.Errorf("expected reserved 0, quantity 100, got %d/%d", rec.Reserved, rec.Quantity)
	}
}

func TestReserveInsufficientStock(t *testing.T) {
	led, _, loc, item := setup(t)
	ctx := context.Background()

	led.AddStock(ctx, loc, item, 10)
	led.Reserve(ctx, loc, item, 8)

	err := led.Reserve(ctx, loc, item, 5)
	var insufficient *model.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insufficient.Requested != 5 || insufficient.Available != 2 {
		t.Errorf("expected requested 5, available 2, got %d/%d", insufficient.Requested, insufficient.Available)
	}

	// The losing call must not change the reservation.
	if rec := mustRecord(t, led, loc, item); rec.Reserved != 8 {
		t.Errorf("expected reserved to stay 8, got %d", rec.Reserved)
	}
}

func TestReserveUnstockedItem(t *testing.T) {
	led, _, loc, item := setup(t)

	err := led.Reserve(context.Background(), loc, item, 1)
	var insufficient *model.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
}

func TestOverRelease(t *testing.T) {
	led, _, loc, item := setup(t)
	ctx := context.Background()

	led.AddStock(ctx, loc, item, 10)
	led.Reserve(ctx, loc, item, 3)

	err := led.Release(ctx, loc, item, 5)
	var over *model.OverReleaseError
	if !errors.As(err, &over) {
		t.Fatalf("expected OverReleaseError, got %v", err)
	}
	if over.Requested != 5 || over.Reserved != 3 {
		t.Errorf("expected requested 5, reserved 3, got %d/%d", over.Requested, over.Reserved)
	}
}

func TestAdjust(t *testing.T) {
	led, _, loc, item := setup(t)
	ctx := context.Background()

	led.AddStock(ctx, loc, item, 50)

	if err := led.Adjust(ctx, loc, item, -20, "damaged in storage"); err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if rec := mustRecord(t, led, loc, item); rec.Quantity != 30 {
		t.Errorf("expected quantity 30, got %d", rec.Quantity)
	}

	if err := led.Adjust(ctx, loc, item, 5, "recount"); err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if rec := mustRecord(t, led, loc, item); rec.Quantity != 35 {
		t.Errorf("expected quantity 35, got %d", rec.Quantity)
	}
}

func TestAdjustBelowReserved(t *testing.T) {
	led, _, loc, item := setup(t)
	ctx := context.Background()

	led.AddStock(ctx, loc, item, 50)
	led.Reserve(ctx, loc, item, 40)

	err := led.Adjust(ctx, loc, item, -20, "shrinkage")
	var insufficient *model.InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	rec := mustRecord(t, led, loc, item)
	if rec.Quantity != 50 || rec.Reserved != 40 {
		t.Errorf("expected 50/40 unchanged, got %d/%d", rec.Quantity, rec.Reserved)
	}
}

func TestAvailableQuantity(t *testing.T) {
	led, _, loc, item := setup(t)
	ctx := context.Background()

	avail, err := led.AvailableQuantity(ctx, loc, item)
	if err != nil {
		t.Fatalf("AvailableQuantity: %v", err)
	}
	if avail != 0 {
		t.Errorf("expected 0 for unstocked item, got %d", avail)
	}

	led.AddStock(ctx, loc, item, 20)
	led.Reserve(ctx, loc, item, 7)

	avail, _ = led.AvailableQuantity(ctx, loc, item)
	if avail != 13 {
		t.Errorf("expected 13, got %d", avail)
	}
}

func TestLevelStatus(t *testing.T) {
	led, _, loc, item := setup(t)
	ctx := context.Background()

	level, err := led.LevelStatus(ctx, loc, item)
	if err != nil {
		t.Fatalf("LevelStatus: %v", err)
	}
	if level != model.LevelOutOfStock {
		t.Errorf("expected out_of_stock for unstocked item, got %s", level)
	}

	led.AddStock(ctx, loc, item, 30)
	led.SetSafetyStock(ctx, loc, item, 20, nil)

	level, _ = led.LevelStatus(ctx, loc, item)
	if level != model.LevelOptimal {
		t.Errorf("expected optimal, got %s", level)
	}
}

func TestNeedsReorder(t *testing.T) {
	led, _, loc, item := setup(t)
	ctx := context.Background()

	reorder := 30
	led.AddStock(ctx, loc, item, 50)
	led.SetSafetyStock(ctx, loc, item, 10, &reorder)

	needs, err := led.NeedsReorder(ctx, loc, item)
	if err != nil {
		t.Fatalf("NeedsReorder: %v", err)
	}
	if needs {
		t.Error("available 50 > reorder level 30, expected no reorder")
	}

	led.Reserve(ctx, loc, item, 25)
	needs, _ = led.NeedsReorder(ctx, loc, item)
	if !needs {
		t.Error("available 25 <= reorder level 30, expected reorder")
	}
}

func TestUpdatedAtPolicy(t *testing.T) {
	led, _, loc, item := setup(t)
	ctx := context.Background()

	led.AddStock(ctx, loc, item, 50)
	before := mustRecord(t, led, loc, item).UpdatedAt

	// Reservation-only changes don't touch the timestamp by default.
	led.Reserve(ctx, loc, item, 10)
	if got := mustRecord(t, led, loc, item).UpdatedAt; !got.Equal(before) {
		t.Errorf("expected updated_at unchanged after reserve, got %v vs %v", got, before)
	}

	// Quantity changes always do.
	led.Adjust(ctx, loc, item, -5, "recount")
	if got := mustRecord(t, led, loc, item).UpdatedAt; got.Equal(before) {
		t.Error("expected updated_at to change after adjust")
	}
}

func TestUpdatedAtTouchOnReserve(t *testing.T) {
	led, _, loc, item := setup(t, WithTouchOnReserve(true))
	ctx := context.Background()

	led.AddStock(ctx, loc, item, 50)
	before := mustRecord(t, led, loc, item).UpdatedAt

	led.Reserve(ctx, loc, item, 10)
	if got := mustRecord(t, led, loc, item).UpdatedAt; got.Equal(before) {
		t.Error("expected updated_at to change after reserve with touch-on-reserve")
	}
}

func TestAlertsOnLevelCrossing(t *testing.T) {
	var alerts []model.StockAlert
	led, _, loc, item := setup(t, WithAlertFunc(func(a model.StockAlert) {
		alerts = append(alerts, a)
	}))
	ctx := context.Background()

	led.AddStock(ctx, loc, item, 100)
	led.SetSafetyStock(ctx, loc, item, 40, nil)
	if len(alerts) != 0 {
		t.Fatalf("expected no alerts yet, got %d", len(alerts))
	}

	// 100 -> 20 crosses into critical (20*2 <= 40).
	led.Adjust(ctx, loc, item, -80, "expired batch")
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Current != model.LevelCritical || alerts[0].Previous != model.LevelExcess {
		t.Errorf("expected excess -> critical, got %s -> %s", alerts[0].Previous, alerts[0].Current)
	}

	// 20 -> 0 crosses into out_of_stock.
	led.Adjust(ctx, loc, item, -20, "recall")
	if len(alerts) != 2 || alerts[1].Current != model.LevelOutOfStock {
		t.Fatalf("expected out_of_stock alert, got %v", alerts)
	}

	// Restocking does not alert.
	led.Adjust(ctx, loc, item, 100, "restock")
	if len(alerts) != 2 {
		t.Errorf("expected no alert on restock, got %d", len(alerts))
	}

	// Reservations don't change the quantity, so no alert.
	led.Reserve(ctx, loc, item, 90)
	if len(alerts) != 2 {
		t.Errorf("expected no alert on reserve, got %d", len(alerts))
	}
}

func TestEventsCarryReason(t *testing.T) {
	var events []model.StockEvent
	led, _, loc, item := setup(t, WithEventFunc(func(e model.StockEvent) {
		events = append(events, e)
	}))
	ctx := context.Background()

	led.AddStock(ctx, loc, item, 50)
	led.Adjust(ctx, loc, item, -5, "damaged")

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	adjust := events[1]
	if adjust.Op != "adjust" || adjust.QuantityDelta != -5 || adjust.Reason != "damaged" {
		t.Errorf("unexpected adjust event: %+v", adjust)
	}
}

func TestSinkPanicIsContained(t *testing.T) {
	led, _, loc, item := setup(t, WithAlertFunc(func(model.StockAlert) {
		panic("broken sink")
	}), WithEventFunc(func(model.StockEvent) {
		panic("broken sink")
	}))
	ctx := context.Background()

	led.AddStock(ctx, loc, item, 10)
	if err := led.Adjust(ctx, loc, item, -10, "writeoff"); err != nil {
		t.Fatalf("Adjust should succeed despite panicking sinks: %v", err)
	}
	if rec := mustRecord(t, led, loc, item); rec.Quantity != 0 {
		t.Errorf("expected quantity 0, got %d", rec.Quantity)
	}
}

func TestConcurrentReservesSerialize(t *testing.T) {
	led, _, loc, item := setup(t)
	ctx := context.Background()

	led.AddStock(ctx, loc, item, 100)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = led.Reserve(ctx, loc, item, 60)
		}(i)
	}
	wg.Wait()

	var failed int
	for _, err := range errs {
		if err != nil {
			var insufficient *model.InsufficientStockError
			if !errors.As(err, &insufficient) && !errors.Is(err, model.ErrConcurrencyConflict) {
				t.Fatalf("unexpected error: %v", err)
			}
			failed++
		}
	}
	if failed != 1 {
		t.Fatalf("expected exactly one loser, got %d", failed)
	}

	rec := mustRecord(t, led, loc, item)
	if rec.Reserved != 60 {
		t.Errorf("expected reserved 60, got %d", rec.Reserved)
	}
	if rec.Reserved > rec.Quantity {
		t.Errorf("invariant violated: reserved %d > quantity %d", rec.Reserved, rec.Quantity)
	}
}

func TestListByLocationAndItem(t *testing.T) {
	led, database, loc, item := setup(t)
	ctx := context.Background()

	loc2, _ := store.CreateLocation(ctx, database, "Airport branch")
	item2, _ := store.CreateItem(ctx, database, "Bandages", "BND-01", decimal.RequireFromString("1.20"))

	led.AddStock(ctx, loc, item, 10)
	led.AddStock(ctx, loc, item2.ID, 20)
	led.AddStock(ctx, loc2.ID, item, 5)

	byLoc, err := led.ListByLocation(ctx, loc)
	if err != nil {
		t.Fatalf("ListByLocation: %v", err)
	}
	if len(byLoc) != 2 {
		t.Fatalf("expected 2 records at Central, got %d", len(byLoc))
	}
	if byLoc[0].ItemName != "Aspirin 100mg" {
		t.Errorf("expected item-name ordering, got %q first", byLoc[0].ItemName)
	}

	byItem, err := led.ListByItem(ctx, item)
	if err != nil {
		t.Fatalf("ListByItem: %v", err)
	}
	if len(byItem) != 2 {
		t.Fatalf("expected 2 records for aspirin, got %d", len(byItem))
	}
	if byItem[0].LocationName != "Airport branch" {
		t.Errorf("expected location-name ordering, got %q first", byItem[0].LocationName)
	}
}
