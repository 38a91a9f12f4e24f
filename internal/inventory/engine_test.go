package inventory

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"foh-order-service/internal/fault"
	"foh-order-service/internal/store"

	"go.uber.org/zap"
)

func newTestStore() *store.Memory {
	m := store.NewMemory()
	m.SeedProduct(store.Product{ID: 1, Name: "Burger", Price: 8.50})
	m.SeedIngredient(store.Ingredient{ID: 1, Name: "Bun", Quantity: 10, Unit: "pcs"})
	m.SeedIngredient(store.Ingredient{ID: 2, Name: "Beef Patty", Quantity: 5, Unit: "pcs"})
	m.SeedRecipe(1, []store.RecipeEntry{
		{ProductID: 1, IngredientID: 1, Quantity: 2},
		{ProductID: 1, IngredientID: 2, Quantity: 1},
	})
	return m
}

func ingredientQty(t *testing.T, s store.Store, id int64) float64 {
	t.Helper()
	ing, err := s.GetIngredient(context.Background(), id)
	if err != nil {
		t.Fatalf("get ingredient %d: %v", id, err)
	}
	return ing.Quantity
}

func TestConsumeDecrementsPerRecipe(t *testing.T) {
	m := newTestStore()
	engine := New(m, zap.NewNop())

	result, err := engine.Consume(context.Background(), []Line{{DishName: "Burger", Quantity: 2}})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(result.Applied) != 2 {
		t.Fatalf("expected 2 applied changes, got %d", len(result.Applied))
	}
	if len(result.Shortages) != 0 {
		t.Fatalf("expected no shortages, got %v", result.Shortages)
	}

	if got := ingredientQty(t, m, 1); got != 6 {
		t.Fatalf("bun stock: expected 6, got %v", got)
	}
	if got := ingredientQty(t, m, 2); got != 3 {
		t.Fatalf("patty stock: expected 3, got %v", got)
	}
}

func TestConsumeMatchesDishNameCaseInsensitively(t *testing.T) {
	m := newTestStore()
	engine := New(m, zap.NewNop())

	result, err := engine.Consume(context.Background(), []Line{{DishName: "  burger ", Quantity: 1}})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(result.Skipped) != 0 {
		t.Fatalf("expected no skipped items, got %v", result.Skipped)
	}
	if got := ingredientQty(t, m, 1); got != 8 {
		t.Fatalf("bun stock: expected 8, got %v", got)
	}
}

func TestConsumeClampsAtZeroAndReportsShortage(t *testing.T) {
	m := store.NewMemory()
	m.SeedProduct(store.Product{ID: 1, Name: "Burger", Price: 8.50})
	m.SeedIngredient(store.Ingredient{ID: 2, Name: "Beef Patty", Quantity: 1, Unit: "pcs"})
	m.SeedRecipe(1, []store.RecipeEntry{{ProductID: 1, IngredientID: 2, Quantity: 1}})
	engine := New(m, zap.NewNop())

	result, err := engine.Consume(context.Background(), []Line{{DishName: "Burger", Quantity: 3}})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	if got := ingredientQty(t, m, 2); got != 0 {
		t.Fatalf("patty stock: expected clamp at 0, got %v", got)
	}
	if len(result.Shortages) != 1 {
		t.Fatalf("expected 1 shortage, got %d", len(result.Shortages))
	}
	s := result.Shortages[0]
	if s.IngredientID != 2 || s.Required != 3 || s.Available != 1 {
		t.Fatalf("unexpected shortage: %+v", s)
	}
}

func TestConsumeSkipsUnknownDish(t *testing.T) {
	m := newTestStore()
	engine := New(m, zap.NewNop())

	result, err := engine.Consume(context.Background(), []Line{
		{DishName: "Mystery Soup", Quantity: 1},
		{DishName: "Burger", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	if len(result.Skipped) != 1 {
		t.Fatalf("expected 1 skip, got %v", result.Skipped)
	}
	miss := result.Skipped[0]
	if miss.Code != fault.CodeLookupMiss {
		t.Fatalf("expected LOOKUP_MISS, got %s", miss.Code)
	}
	if miss.Details["dish"] != "Mystery Soup" {
		t.Fatalf("skip should name the dish, got %v", miss.Details)
	}
	if got := ingredientQty(t, m, 1); got != 8 {
		t.Fatalf("bun stock: expected 8, got %v", got)
	}
}

func TestConsumeSkipsProductWithoutRecipe(t *testing.T) {
	m := newTestStore()
	m.SeedProduct(store.Product{ID: 2, Name: "Water", Price: 1})
	engine := New(m, zap.NewNop())

	result, err := engine.Consume(context.Background(), []Line{{DishName: "Water", Quantity: 2}})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(result.Skipped) != 1 || result.Skipped[0].Details["dish"] != "Water" {
		t.Fatalf("expected Water skipped, got %v", result.Skipped)
	}
	if len(result.Applied) != 0 {
		t.Fatalf("expected no changes, got %v", result.Applied)
	}
}

func TestConsumeAggregatesDemandAcrossLines(t *testing.T) {
	m := newTestStore()
	m.SeedProduct(store.Product{ID: 2, Name: "Cheeseburger", Price: 9.50})
	m.SeedRecipe(2, []store.RecipeEntry{
		{ProductID: 2, IngredientID: 1, Quantity: 2},
		{ProductID: 2, IngredientID: 2, Quantity: 1},
	})
	engine := New(m, zap.NewNop())

	_, err := engine.Consume(context.Background(), []Line{
		{DishName: "Burger", Quantity: 1},
		{DishName: "Cheeseburger", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	// One decrement per ingredient, not per line.
	if got := ingredientQty(t, m, 1); got != 6 {
		t.Fatalf("bun stock: expected 6, got %v", got)
	}
	if got := ingredientQty(t, m, 2); got != 3 {
		t.Fatalf("patty stock: expected 3, got %v", got)
	}
}

func TestConsumeSerializesConcurrentPassesOverSharedIngredient(t *testing.T) {
	m := store.NewMemory()
	m.SeedProduct(store.Product{ID: 1, Name: "Burger", Price: 8.50})
	m.SeedIngredient(store.Ingredient{ID: 1, Name: "Beef Patty", Quantity: 100, Unit: "pcs"})
	m.SeedRecipe(1, []store.RecipeEntry{{ProductID: 1, IngredientID: 1, Quantity: 1}})
	engine := New(m, zap.NewNop())

	const workers = 8
	const perPass = 5

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Consume(context.Background(), []Line{{DishName: "Burger", Quantity: perPass}})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent consume: %v", err)
		}
	}

	// Every pass must land: no lost updates across the shared
	// ingredient.
	if got := ingredientQty(t, m, 1); got != 100-workers*perPass {
		t.Fatalf("patty stock: expected %d, got %v", 100-workers*perPass, got)
	}
}

// conflictingStore rejects the first n guarded writes with a version
// conflict before passing through; reads are untouched.
type conflictingStore struct {
	*store.Memory
	conflicts int32
}

func (c *conflictingStore) UpdateIngredientQuantity(ctx context.Context, id int64, expected, quantity float64) error {
	if atomic.AddInt32(&c.conflicts, -1) >= 0 {
		return store.ErrVersionConflict
	}
	return c.Memory.UpdateIngredientQuantity(ctx, id, expected, quantity)
}

func TestConsumeRetriesAfterVersionConflict(t *testing.T) {
	cs := &conflictingStore{Memory: newTestStore(), conflicts: 1}
	engine := New(cs, zap.NewNop())

	result, err := engine.Consume(context.Background(), []Line{{DishName: "Burger", Quantity: 1}})
	if err != nil {
		t.Fatalf("consume should recover from one conflict: %v", err)
	}
	if len(result.Applied) != 2 || len(result.Failed) != 0 {
		t.Fatalf("expected clean result after retry, got %+v", result)
	}
	if got := ingredientQty(t, cs, 1); got != 8 {
		t.Fatalf("bun stock: expected 8, got %v", got)
	}
}

func TestConsumeGivesUpAfterRepeatedConflicts(t *testing.T) {
	cs := &conflictingStore{Memory: newTestStore(), conflicts: 1 << 30}
	engine := New(cs, zap.NewNop())

	result, err := engine.Consume(context.Background(), []Line{{DishName: "Burger", Quantity: 1}})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if len(result.Failed) != 2 {
		t.Fatalf("expected both ingredients reported failed, got %+v", result.Failed)
	}
	if !strings.Contains(result.Failed[0].Reason, "conflicting updates") {
		t.Fatalf("failure should name the conflict exhaustion, got %q", result.Failed[0].Reason)
	}
	if got := ingredientQty(t, cs, 1); got != 10 {
		t.Fatalf("no write should have landed, got %v", got)
	}
}
