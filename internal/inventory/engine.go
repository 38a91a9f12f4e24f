package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"foh-order-service/internal/fault"
	"foh-order-service/internal/store"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Line is one dish demand from an order, decoupled from the order
// ledger's item type so the engine can also serve ad hoc draw-downs.
type Line struct {
	DishName string
	Quantity int
}

type Change struct {
	IngredientID int64   `json:"ingredientId"`
	Name         string  `json:"name"`
	Consumed     float64 `json:"consumed"`
	Remaining    float64 `json:"remaining"`
}

type Shortage struct {
	IngredientID int64   `json:"ingredientId"`
	Name         string  `json:"name"`
	Required     float64 `json:"required"`
	Available    float64 `json:"available"`
}

type FailedUpdate struct {
	IngredientID int64  `json:"ingredientId"`
	Reason       string `json:"reason"`
}

// Result names exactly which ingredients were and weren't touched.
// There is no rollback for a half-applied pass; the caller gets the
// full account instead. Skipped carries one LOOKUP_MISS per dish that
// could not be resolved to a product or recipe.
type Result struct {
	Applied   []Change       `json:"applied"`
	Shortages []Shortage     `json:"shortages"`
	Skipped   []*fault.Error `json:"skippedItems"`
	Failed    []FailedUpdate `json:"failed"`
}

const casRetries = 5

type Engine struct {
	store  store.Store
	logger *zap.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func New(st store.Store, logger *zap.Logger) *Engine {
	return &Engine{store: st, logger: logger, locks: make(map[int64]*sync.Mutex)}
}

// ingredientLock serializes read-modify-write per ingredient id so
// concurrent passes over different tables that share an ingredient
// cannot lose each other's decrement. Unrelated ingredients proceed
// in parallel.
func (e *Engine) ingredientLock(id int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[id] = lock
	}
	return lock
}

// Consume resolves each line against the product and recipe graph,
// accumulates per-ingredient demand, then applies clamped decrements
// one ingredient at a time. A dish with no matching product or no
// recipe is skipped and reported; a failed write is reported and does
// not stop the remaining ingredients.
func (e *Engine) Consume(ctx context.Context, lines []Line) (Result, error) {
	var result Result

	products, err := e.store.GetProducts(ctx)
	if err != nil {
		return result, fmt.Errorf("load products: %w", err)
	}
	byName := make(map[string]store.Product, len(products))
	for _, p := range products {
		byName[normalizeDish(p.Name)] = p
	}

	demand := make(map[int64]float64)
	order := make([]int64, 0)
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		product, ok := byName[normalizeDish(line.DishName)]
		if !ok {
			result.Skipped = append(result.Skipped, fault.LookupMiss(
				"no product for dish", map[string]any{"dish": line.DishName}))
			e.logger.Warn("no product for dish, skipping",
				zap.String("dish", line.DishName))
			continue
		}
		entries, err := e.store.GetRecipeForProduct(ctx, product.ID)
		if err != nil {
			return result, fmt.Errorf("load recipe for product %d: %w", product.ID, err)
		}
		if len(entries) == 0 {
			result.Skipped = append(result.Skipped, fault.LookupMiss(
				"product has no recipe", map[string]any{
					"dish":      line.DishName,
					"productId": product.ID,
				}))
			e.logger.Warn("product has no recipe, skipping",
				zap.String("dish", line.DishName), zap.Int64("productId", product.ID))
			continue
		}
		for _, entry := range entries {
			if _, seen := demand[entry.IngredientID]; !seen {
				order = append(order, entry.IngredientID)
			}
			demand[entry.IngredientID] += entry.Quantity * float64(line.Quantity)
		}
	}

	var errs error
	for _, id := range order {
		change, shortage, err := e.consumeIngredient(ctx, id, demand[id])
		if err != nil {
			result.Failed = append(result.Failed, FailedUpdate{IngredientID: id, Reason: err.Error()})
			errs = multierr.Append(errs, fmt.Errorf("ingredient %d: %w", id, err))
			continue
		}
		result.Applied = append(result.Applied, change)
		if shortage != nil {
			result.Shortages = append(result.Shortages, *shortage)
			e.logger.Warn("ingredient shortage",
				zap.Int64("ingredientId", shortage.IngredientID),
				zap.String("name", shortage.Name),
				zap.Float64("required", shortage.Required),
				zap.Float64("available", shortage.Available))
		}
	}

	return result, errs
}

// consumeIngredient runs one guarded read-modify-write under the
// per-ingredient lock. The store-side version check is a backstop for
// writers outside this process; a conflict re-reads and retries.
func (e *Engine) consumeIngredient(ctx context.Context, id int64, needed float64) (Change, *Shortage, error) {
	lock := e.ingredientLock(id)
	lock.Lock()
	defer lock.Unlock()

	for attempt := 0; attempt < casRetries; attempt++ {
		ing, err := e.store.GetIngredient(ctx, id)
		if err != nil {
			return Change{}, nil, err
		}

		remaining := ing.Quantity - needed
		if remaining < 0 {
			remaining = 0
		}

		err = e.store.UpdateIngredientQuantity(ctx, id, ing.Quantity, remaining)
		if errors.Is(err, store.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return Change{}, nil, err
		}

		change := Change{
			IngredientID: id,
			Name:         ing.Name,
			Consumed:     ing.Quantity - remaining,
			Remaining:    remaining,
		}
		if ing.Quantity < needed {
			return change, &Shortage{
				IngredientID: id,
				Name:         ing.Name,
				Required:     needed,
				Available:    ing.Quantity,
			}, nil
		}
		return change, nil, nil
	}
	return Change{}, nil, fmt.Errorf("gave up after %d conflicting updates", casRetries)
}

func normalizeDish(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
