package orders

import (
	"context"
	"errors"
	"testing"

	"foh-order-service/internal/fault"
	"foh-order-service/internal/inventory"
	"foh-order-service/internal/store"
	"foh-order-service/internal/transactions"

	"go.uber.org/zap"
)

func newTestLedger(t *testing.T) (*Ledger, *store.Memory) {
	t.Helper()
	m := store.NewMemory()
	m.SeedProduct(store.Product{ID: 1, Name: "Burger", Price: 8.50})
	m.SeedProduct(store.Product{ID: 2, Name: "Fries", Price: 3.00})
	m.SeedIngredient(store.Ingredient{ID: 1, Name: "Bun", Quantity: 10, Unit: "pcs"})
	m.SeedIngredient(store.Ingredient{ID: 2, Name: "Beef Patty", Quantity: 5, Unit: "pcs"})
	m.SeedRecipe(1, []store.RecipeEntry{
		{ProductID: 1, IngredientID: 1, Quantity: 2},
		{ProductID: 1, IngredientID: 2, Quantity: 1},
	})
	m.SeedTable(store.Table{ID: 1, Name: "Table 1", Capacity: 4, Status: store.TableOccupied})

	log := zap.NewNop()
	txs, err := transactions.Load(context.Background(), m, log)
	if err != nil {
		t.Fatalf("load transactions: %v", err)
	}
	return NewLedger(m, inventory.New(m, log), txs, log), m
}

func TestSaveOrderAddsAndUpdates(t *testing.T) {
	ledger, _ := newTestLedger(t)

	status, err := ledger.SaveOrder("Table 1", []Item{{DishName: "Burger", Quantity: 2}})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if status != SaveAdded {
		t.Fatalf("expected added, got %s", status)
	}

	status, err = ledger.SaveOrder("Table 1", []Item{{DishName: "Burger", Quantity: 3}})
	if err != nil {
		t.Fatalf("save again: %v", err)
	}
	if status != SaveUpdated {
		t.Fatalf("expected updated, got %s", status)
	}

	order, ok := ledger.GetOrderByTable("Table 1")
	if !ok {
		t.Fatal("order not found after save")
	}
	if len(order.Items) != 1 || order.Items[0].Quantity != 3 {
		t.Fatalf("unexpected order items: %+v", order.Items)
	}
}

func TestSaveOrderValidation(t *testing.T) {
	ledger, _ := newTestLedger(t)

	cases := []struct {
		name  string
		table string
		items []Item
	}{
		{name: "empty table", table: "  ", items: []Item{{DishName: "Burger", Quantity: 1}}},
		{name: "no items", table: "Table 1", items: nil},
		{name: "blank dish", table: "Table 1", items: []Item{{DishName: " ", Quantity: 1}}},
		{name: "zero quantity", table: "Table 1", items: []Item{{DishName: "Burger", Quantity: 0}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ledger.SaveOrder(tc.table, tc.items)
			var fe *fault.Error
			if !errors.As(err, &fe) || fe.Code != fault.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestSaveOrderPreservesCompletedFlagByDishName(t *testing.T) {
	ledger, _ := newTestLedger(t)
	ctx := context.Background()

	if _, err := ledger.SaveOrder("Table 1", []Item{{DishName: "Burger", Quantity: 1}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := ledger.MarkPendingItemsAsCompleted(ctx, "Table 1"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// Re-save with a different case and a new dish; Burger keeps its
	// completed flag, Fries starts pending.
	if _, err := ledger.SaveOrder("Table 1", []Item{
		{DishName: "BURGER", Quantity: 1, Completed: false},
		{DishName: "Fries", Quantity: 2, Completed: true},
	}); err != nil {
		t.Fatalf("re-save: %v", err)
	}

	order, _ := ledger.GetOrderByTable("Table 1")
	byName := map[string]bool{}
	for _, item := range order.Items {
		byName[dishKey(item.DishName)] = item.Completed
	}
	if !byName["burger"] {
		t.Fatal("burger should keep its completed flag")
	}
	if byName["fries"] {
		t.Fatal("fries should start pending even when the caller claims completion")
	}
}

func TestMarkPendingItemsAsCompletedIsIdempotent(t *testing.T) {
	ledger, m := newTestLedger(t)
	ctx := context.Background()

	if _, err := ledger.SaveOrder("Table 1", []Item{{DishName: "Burger", Quantity: 1}}); err != nil {
		t.Fatalf("save: %v", err)
	}

	result, err := ledger.MarkPendingItemsAsCompleted(ctx, "Table 1")
	if err != nil {
		t.Fatalf("first complete: %v", err)
	}
	if len(result.Applied) != 2 {
		t.Fatalf("expected 2 ingredient changes, got %d", len(result.Applied))
	}

	bun, _ := m.GetIngredient(ctx, 1)
	patty, _ := m.GetIngredient(ctx, 2)
	if bun.Quantity != 8 || patty.Quantity != 4 {
		t.Fatalf("after first pass: bun %v patty %v", bun.Quantity, patty.Quantity)
	}

	result, err = ledger.MarkPendingItemsAsCompleted(ctx, "Table 1")
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if len(result.Applied) != 0 {
		t.Fatalf("second pass should not touch inventory, got %+v", result.Applied)
	}

	bun, _ = m.GetIngredient(ctx, 1)
	patty, _ = m.GetIngredient(ctx, 2)
	if bun.Quantity != 8 || patty.Quantity != 4 {
		t.Fatalf("stock moved on repeat completion: bun %v patty %v", bun.Quantity, patty.Quantity)
	}
}

func TestMarkPendingItemsUnknownTable(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.MarkPendingItemsAsCompleted(context.Background(), "Table 9")
	var fe *fault.Error
	if !errors.As(err, &fe) || fe.Code != fault.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCheckoutTableRecordsTransactionAndFreesTable(t *testing.T) {
	ledger, m := newTestLedger(t)
	ctx := context.Background()

	if _, err := ledger.SaveOrder("Table 1", []Item{{DishName: "Burger", Quantity: 2}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := ledger.MarkPendingItemsAsCompleted(ctx, "Table 1"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	result, err := ledger.CheckoutTable(ctx, "Table 1", 17.00)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if result.Degraded {
		t.Fatal("expected clean persist")
	}
	if !result.TableFreed {
		t.Fatal("expected table to be freed")
	}
	if len(result.PendingItems) != 0 {
		t.Fatalf("expected no pending items, got %v", result.PendingItems)
	}
	if result.Transaction.TotalAmount != 17.00 {
		t.Fatalf("unexpected total: %v", result.Transaction.TotalAmount)
	}
	if len(result.Transaction.Items) != 1 || result.Transaction.Items[0].Price != 8.50 {
		t.Fatalf("expected priced items, got %+v", result.Transaction.Items)
	}

	if _, ok := ledger.GetOrderByTable("Table 1"); ok {
		t.Fatal("order should be removed after checkout")
	}

	txs, _ := m.GetTransactions(ctx)
	if len(txs) != 1 {
		t.Fatalf("expected 1 stored transaction, got %d", len(txs))
	}

	tables, _ := m.GetTables(ctx)
	if tables[0].Status != store.TableAvailable {
		t.Fatalf("expected table available, got %s", tables[0].Status)
	}
}

func TestCheckoutWithPendingItemsReportsThem(t *testing.T) {
	ledger, m := newTestLedger(t)
	ctx := context.Background()

	if _, err := ledger.SaveOrder("Table 1", []Item{{DishName: "Burger", Quantity: 1}}); err != nil {
		t.Fatalf("save: %v", err)
	}

	result, err := ledger.CheckoutTable(ctx, "Table 1", 8.50)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if len(result.PendingItems) != 1 || result.PendingItems[0] != "Burger" {
		t.Fatalf("expected Burger pending, got %v", result.PendingItems)
	}

	// Checkout never consumes; the pending item left stock untouched.
	bun, _ := m.GetIngredient(ctx, 1)
	if bun.Quantity != 10 {
		t.Fatalf("stock should not move on checkout, got %v", bun.Quantity)
	}
}

func TestCheckoutUnknownTable(t *testing.T) {
	ledger, _ := newTestLedger(t)

	_, err := ledger.CheckoutTable(context.Background(), "Table 9", 10)
	var fe *fault.Error
	if !errors.As(err, &fe) || fe.Code != fault.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

// refusingHistoryStore fails every transaction write; everything else
// passes through.
type refusingHistoryStore struct {
	*store.Memory
}

func (s *refusingHistoryStore) AddTransaction(context.Context, store.Transaction) (store.Transaction, error) {
	return store.Transaction{}, errors.New("write refused")
}

func TestCheckoutSurfacesDegradedResultWhenHistoryWriteFails(t *testing.T) {
	m := store.NewMemory()
	m.SeedProduct(store.Product{ID: 1, Name: "Burger", Price: 8.50})
	m.SeedTable(store.Table{ID: 1, Name: "Table 1", Capacity: 4, Status: store.TableOccupied})
	st := &refusingHistoryStore{Memory: m}

	log := zap.NewNop()
	txs, err := transactions.Load(context.Background(), st, log)
	if err != nil {
		t.Fatalf("load transactions: %v", err)
	}
	ledger := NewLedger(st, inventory.New(st, log), txs, log)
	ctx := context.Background()

	if _, err := ledger.SaveOrder("Table 1", []Item{{DishName: "Burger", Quantity: 1}}); err != nil {
		t.Fatalf("save: %v", err)
	}

	result, err := ledger.CheckoutTable(ctx, "Table 1", 8.50)
	if err != nil {
		t.Fatalf("checkout must complete locally: %v", err)
	}
	if !result.Degraded {
		t.Fatal("failed history write must surface as degraded, not clean success")
	}
	if result.Transaction.ID == 0 {
		t.Fatal("degraded checkout still needs a locally minted id")
	}

	// The sale completed locally: order gone, table freed, entry in
	// the in-memory ledger.
	if _, ok := ledger.GetOrderByTable("Table 1"); ok {
		t.Fatal("order should be removed even on a degraded checkout")
	}
	if !result.TableFreed {
		t.Fatal("expected table to be freed")
	}
	if _, found := txs.Find(result.Transaction.ID); !found {
		t.Fatal("degraded entry should be in local history")
	}
}

func TestRemoveOrder(t *testing.T) {
	ledger, _ := newTestLedger(t)

	if _, err := ledger.SaveOrder("Table 1", []Item{{DishName: "Burger", Quantity: 1}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !ledger.RemoveOrder("Table 1") {
		t.Fatal("expected remove to succeed")
	}
	if ledger.RemoveOrder("Table 1") {
		t.Fatal("second remove should report missing")
	}
}
