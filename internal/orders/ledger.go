package orders

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"foh-order-service/internal/fault"
	"foh-order-service/internal/inventory"
	"foh-order-service/internal/store"
	"foh-order-service/internal/transactions"

	"go.uber.org/zap"
)

type Item struct {
	DishName  string `json:"dishName"`
	Quantity  int    `json:"quantity"`
	Completed bool   `json:"completed"`
}

type Order struct {
	TableLabel string `json:"tableLabel"`
	Items      []Item `json:"items"`
}

type SaveStatus string

const (
	SaveAdded   SaveStatus = "added"
	SaveUpdated SaveStatus = "updated"
)

type CheckoutResult struct {
	Transaction store.Transaction `json:"transaction"`
	// Degraded means the sale is recorded locally but the history
	// write failed; distinguishable from clean success by contract.
	Degraded     bool     `json:"degraded"`
	TableFreed   bool     `json:"tableFreed"`
	PendingItems []string `json:"pendingItems,omitempty"`
}

// Ledger owns the active tab per table. One mutex guards the map;
// inventory consumption runs outside it so one table's draw-down
// never blocks another table's mutations.
type Ledger struct {
	store        store.Store
	inventory    *inventory.Engine
	transactions *transactions.Ledger
	logger       *zap.Logger

	mu     sync.Mutex
	active map[string]*Order
}

func NewLedger(st store.Store, inv *inventory.Engine, txs *transactions.Ledger, logger *zap.Logger) *Ledger {
	return &Ledger{
		store:        st,
		inventory:    inv,
		transactions: txs,
		logger:       logger,
		active:       make(map[string]*Order),
	}
}

// SaveOrder upserts the active order for a table. Incoming items
// replace the stored list, but an item keeps its prior completed flag
// when its dish name matches an existing one; new dishes start
// incomplete regardless of what the caller sent.
func (l *Ledger) SaveOrder(table string, items []Item) (SaveStatus, error) {
	table = strings.TrimSpace(table)
	if table == "" {
		return "", fault.Validation("table is required")
	}
	if len(items) == 0 {
		return "", fault.Validation("at least one item is required")
	}
	for _, item := range items {
		if strings.TrimSpace(item.DishName) == "" {
			return "", fault.Validation("every item needs a dish name")
		}
		if item.Quantity <= 0 {
			return "", fault.Validation("item quantity must be positive")
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	existing, ok := l.active[table]

	merged := make([]Item, len(items))
	for i, item := range items {
		item.DishName = strings.TrimSpace(item.DishName)
		item.Completed = false
		if ok {
			for _, prior := range existing.Items {
				if dishKey(prior.DishName) == dishKey(item.DishName) {
					item.Completed = prior.Completed
					break
				}
			}
		}
		merged[i] = item
	}

	l.active[table] = &Order{TableLabel: table, Items: merged}
	if ok {
		return SaveUpdated, nil
	}
	return SaveAdded, nil
}

func (l *Ledger) GetOrderByTable(table string) (Order, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	order, ok := l.active[strings.TrimSpace(table)]
	if !ok {
		return Order{}, false
	}
	return cloneOrder(order), true
}

func (l *Ledger) Orders() []Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Order, 0, len(l.active))
	for _, order := range l.active {
		out = append(out, cloneOrder(order))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TableLabel < out[j].TableLabel })
	return out
}

// MarkPendingItemsAsCompleted flips every pending item and then runs
// exactly one consumption pass over the order's full item list. When
// nothing was pending the pass is skipped entirely, which is what
// keeps a repeated call from decrementing stock twice. Consumption
// errors propagate with the per-ingredient report attached; some
// ingredients may already be decremented at that point and the result
// says which.
func (l *Ledger) MarkPendingItemsAsCompleted(ctx context.Context, table string) (inventory.Result, error) {
	table = strings.TrimSpace(table)

	l.mu.Lock()
	order, ok := l.active[table]
	if !ok {
		l.mu.Unlock()
		return inventory.Result{}, fault.NotFound("no active order for table " + table)
	}

	hadPending := false
	for i := range order.Items {
		if !order.Items[i].Completed {
			order.Items[i].Completed = true
			hadPending = true
		}
	}

	lines := make([]inventory.Line, len(order.Items))
	for i, item := range order.Items {
		lines[i] = inventory.Line{DishName: item.DishName, Quantity: item.Quantity}
	}
	l.mu.Unlock()

	if !hadPending {
		return inventory.Result{}, nil
	}

	result, err := l.inventory.Consume(ctx, lines)
	if err != nil {
		l.logger.Error("consumption pass failed",
			zap.String("table", table),
			zap.Int("failedIngredients", len(result.Failed)),
			zap.Int("appliedIngredients", len(result.Applied)),
			zap.Error(err))
		return result, fault.Persistence("inventory update failed for some ingredients", err)
	}
	return result, nil
}

// CheckoutTable snapshots the active order into the transaction
// ledger, removes it, and frees the table. The operation completes
// locally even when the history write fails; that case is surfaced as
// Degraded, never as a silent success.
func (l *Ledger) CheckoutTable(ctx context.Context, table string, totalAmount float64) (CheckoutResult, error) {
	table = strings.TrimSpace(table)

	l.mu.Lock()
	order, ok := l.active[table]
	if !ok {
		l.mu.Unlock()
		return CheckoutResult{}, fault.NotFound("no active order for table " + table)
	}
	snapshot := cloneOrder(order)
	delete(l.active, table)
	l.mu.Unlock()

	var pending []string
	for _, item := range snapshot.Items {
		if !item.Completed {
			pending = append(pending, item.DishName)
		}
	}
	if len(pending) > 0 {
		// Checkout before completion is allowed (walk-outs, comps)
		// but it skips consumption for those items, so the caller is
		// told rather than left to assume stock moved.
		l.logger.Warn("checkout with pending items, consumption skipped",
			zap.String("table", table),
			zap.Strings("pendingItems", pending))
	}

	tx := store.Transaction{
		TableLabel:  table,
		Items:       l.priceItems(ctx, snapshot.Items),
		TotalAmount: totalAmount,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	saved, persisted := l.transactions.Append(ctx, tx)

	freed := l.freeTable(ctx, table)

	return CheckoutResult{
		Transaction:  saved,
		Degraded:     !persisted,
		TableFreed:   freed,
		PendingItems: pending,
	}, nil
}

func (l *Ledger) RemoveOrder(table string) bool {
	table = strings.TrimSpace(table)
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.active[table]; !ok {
		return false
	}
	delete(l.active, table)
	return true
}

// priceItems attaches current product prices to the snapshot. A dish
// with no product keeps price zero, same as the original billing
// view.
func (l *Ledger) priceItems(ctx context.Context, items []Item) []store.TransactionItem {
	products, err := l.store.GetProducts(ctx)
	if err != nil {
		l.logger.Warn("price lookup failed, snapshot keeps zero prices", zap.Error(err))
	}
	byName := make(map[string]store.Product, len(products))
	for _, p := range products {
		byName[dishKey(p.Name)] = p
	}

	out := make([]store.TransactionItem, len(items))
	for i, item := range items {
		entry := store.TransactionItem{DishName: item.DishName, Quantity: item.Quantity}
		if p, ok := byName[dishKey(item.DishName)]; ok {
			entry.Price = p.Price
		}
		out[i] = entry
	}
	return out
}

// freeTable flips the table matching this label back to Available.
// The label is the order key, so the match runs over table names the
// way the original billing screen did it.
func (l *Ledger) freeTable(ctx context.Context, table string) bool {
	tables, err := l.store.GetTables(ctx)
	if err != nil {
		l.logger.Warn("table lookup failed after checkout", zap.String("table", table), zap.Error(err))
		return false
	}
	for _, t := range tables {
		if dishKey(t.Name) == dishKey(table) {
			if err := l.store.UpdateTableStatus(ctx, t.ID, store.TableAvailable); err != nil {
				l.logger.Warn("table release failed after checkout",
					zap.Int64("tableId", t.ID), zap.Error(err))
				return false
			}
			return true
		}
	}
	return false
}

func cloneOrder(order *Order) Order {
	items := make([]Item, len(order.Items))
	copy(items, order.Items)
	return Order{TableLabel: order.TableLabel, Items: items}
}

func dishKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
