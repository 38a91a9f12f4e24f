package store

import (
	"context"
	"sync"
	"time"
)

// Memory backs development mode (no DATABASE_URL) and tests. It
// implements the same contract as Postgres, including the conditional
// writes, so the engine's serialization discipline is exercised either
// way. Ids are minted max+1 per collection, like the original store.
type Memory struct {
	mu           sync.Mutex
	products     map[int64]Product
	ingredients  map[int64]Ingredient
	recipes      map[int64][]RecipeEntry
	tables       map[int64]Table
	reservations map[int64]Reservation
	transactions []Transaction
}

func NewMemory() *Memory {
	return &Memory{
		products:     make(map[int64]Product),
		ingredients:  make(map[int64]Ingredient),
		recipes:      make(map[int64][]RecipeEntry),
		tables:       make(map[int64]Table),
		reservations: make(map[int64]Reservation),
	}
}

func (m *Memory) SeedProduct(p Product)            { m.mu.Lock(); m.products[p.ID] = p; m.mu.Unlock() }
func (m *Memory) SeedIngredient(i Ingredient)      { m.mu.Lock(); m.ingredients[i.ID] = i; m.mu.Unlock() }
func (m *Memory) SeedTable(t Table)                { m.mu.Lock(); m.tables[t.ID] = t; m.mu.Unlock() }
func (m *Memory) SeedRecipe(productID int64, entries []RecipeEntry) {
	m.mu.Lock()
	m.recipes[productID] = entries
	m.mu.Unlock()
}

func (m *Memory) GetProducts(context.Context) ([]Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *Memory) GetIngredient(_ context.Context, id int64) (Ingredient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ing, ok := m.ingredients[id]
	if !ok {
		return Ingredient{}, ErrNotFound
	}
	return ing, nil
}

func (m *Memory) UpdateIngredientQuantity(_ context.Context, id int64, expected, quantity float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ing, ok := m.ingredients[id]
	if !ok {
		return ErrNotFound
	}
	if ing.Quantity != expected {
		return ErrVersionConflict
	}
	ing.Quantity = quantity
	m.ingredients[id] = ing
	return nil
}

func (m *Memory) GetRecipeForProduct(_ context.Context, productID int64) ([]RecipeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.recipes[productID]
	out := make([]RecipeEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (m *Memory) GetTables(context.Context) ([]Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Table, 0, len(m.tables))
	for _, t := range m.tables {
		out = append(out, t)
	}
	return out, nil
}

func (m *Memory) UpdateTableStatus(_ context.Context, id int64, status TableStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[id]
	if !ok {
		return ErrTableUnknown
	}
	t.Status = status
	m.tables[id] = t
	return nil
}

func (m *Memory) ClaimTable(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[id]
	if !ok {
		return ErrTableUnknown
	}
	if t.Status != TableAvailable {
		return ErrAlreadyOccupied
	}
	t.Status = TableOccupied
	m.tables[id] = t
	return nil
}

func (m *Memory) GetReservations(context.Context) ([]Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Reservation, 0, len(m.reservations))
	for _, r := range m.reservations {
		out = append(out, r)
	}
	return out, nil
}

func (m *Memory) AddReservation(_ context.Context, r Reservation) (Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var max int64
	for id := range m.reservations {
		if id > max {
			max = id
		}
	}
	r.ID = max + 1
	if r.CreatedAt == "" {
		r.CreatedAt = time.Now().Format(time.RFC3339)
	}
	m.reservations[r.ID] = r
	return r, nil
}

func (m *Memory) DeleteReservation(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reservations[id]; !ok {
		return ErrReservationTaken
	}
	delete(m.reservations, id)
	return nil
}

func (m *Memory) AddTransaction(_ context.Context, t Transaction) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var max int64
	for _, existing := range m.transactions {
		if existing.ID > max {
			max = existing.ID
		}
	}
	t.ID = max + 1
	m.transactions = append(m.transactions, t)
	return t, nil
}

func (m *Memory) GetTransactions(context.Context) ([]Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transaction, len(m.transactions))
	copy(out, m.transactions)
	return out, nil
}
