package store

import (
	"context"
	"errors"
	"testing"
)

func TestUpdateIngredientQuantityGuard(t *testing.T) {
	m := NewMemory()
	m.SeedIngredient(Ingredient{ID: 1, Name: "Bun", Quantity: 10})
	ctx := context.Background()

	if err := m.UpdateIngredientQuantity(ctx, 1, 10, 8); err != nil {
		t.Fatalf("guarded update: %v", err)
	}

	// Stale expectation loses.
	err := m.UpdateIngredientQuantity(ctx, 1, 10, 6)
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	ing, _ := m.GetIngredient(ctx, 1)
	if ing.Quantity != 8 {
		t.Fatalf("losing write must not apply, got %v", ing.Quantity)
	}
}

func TestClaimTableOnlyOnce(t *testing.T) {
	m := NewMemory()
	m.SeedTable(Table{ID: 1, Name: "Table 1", Status: TableAvailable})
	ctx := context.Background()

	if err := m.ClaimTable(ctx, 1); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := m.ClaimTable(ctx, 1); !errors.Is(err, ErrAlreadyOccupied) {
		t.Fatalf("expected ErrAlreadyOccupied, got %v", err)
	}
	if err := m.ClaimTable(ctx, 9); !errors.Is(err, ErrTableUnknown) {
		t.Fatalf("expected ErrTableUnknown, got %v", err)
	}
}

func TestDeleteReservationOnlyOnce(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	saved, err := m.AddReservation(ctx, Reservation{TableID: 1, Date: "2026-08-29", Time: "19:00"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := m.DeleteReservation(ctx, saved.ID); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := m.DeleteReservation(ctx, saved.ID); !errors.Is(err, ErrReservationTaken) {
		t.Fatalf("expected ErrReservationTaken, got %v", err)
	}
}

func TestIDsMintedMaxPlusOne(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first, _ := m.AddReservation(ctx, Reservation{TableID: 1, Date: "2026-08-29", Time: "18:00"})
	second, _ := m.AddReservation(ctx, Reservation{TableID: 2, Date: "2026-08-29", Time: "18:00"})
	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("expected sequential ids, got %d then %d", first.ID, second.ID)
	}

	// Deleting the max re-uses its id, matching the original store.
	if err := m.DeleteReservation(ctx, second.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	third, _ := m.AddReservation(ctx, Reservation{TableID: 3, Date: "2026-08-29", Time: "18:00"})
	if third.ID != 2 {
		t.Fatalf("expected id 2 after delete, got %d", third.ID)
	}
}
