package store

import (
	"context"
	"errors"
)

// The persistence gateway offers keyed CRUD over flat collections and
// nothing else: no multi-key transactions, no server-side joins. Any
// serialization discipline (per-ingredient writes, table claims,
// reservation consumption) is layered on top by the engine.

var (
	ErrNotFound         = errors.New("store: not found")
	ErrVersionConflict  = errors.New("store: concurrent update")
	ErrAlreadyOccupied  = errors.New("store: table not available")
	ErrTableUnknown     = errors.New("store: unknown table")
	ErrReservationTaken = errors.New("store: reservation already consumed")
)

type TableStatus string

const (
	TableAvailable TableStatus = "Available"
	TableOccupied  TableStatus = "Occupied"
)

type Product struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type Ingredient struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Unit     string  `json:"unit"`
	Quantity float64 `json:"quantity"`
}

type RecipeEntry struct {
	ProductID    int64   `json:"productId"`
	IngredientID int64   `json:"ingredientId"`
	Quantity     float64 `json:"quantity"`
}

type Table struct {
	ID       int64       `json:"id"`
	Name     string      `json:"name"`
	Capacity int         `json:"capacity"`
	Status   TableStatus `json:"status"`
}

type Reservation struct {
	ID           int64  `json:"id"`
	TableID      int64  `json:"tableId"`
	Date         string `json:"date"` // YYYY-MM-DD
	Time         string `json:"time"` // canonical HH:MM
	CustomerName string `json:"customerName"`
	Phone        string `json:"phone"`
	GuestCount   int    `json:"guestCount"`
	Status       string `json:"status"`
	CreatedAt    string `json:"createdAt"`
}

type TransactionItem struct {
	DishName string  `json:"dishName"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type Transaction struct {
	ID          int64             `json:"id"`
	TableLabel  string            `json:"tableLabel"`
	Items       []TransactionItem `json:"items"`
	TotalAmount float64           `json:"totalAmount"`
	// RFC3339 when written by this engine; historical rows may carry
	// anything, which is why aggregation re-parses it.
	Timestamp string `json:"timestamp"`
}

type Store interface {
	GetProducts(ctx context.Context) ([]Product, error)
	GetIngredient(ctx context.Context, id int64) (Ingredient, error)
	// UpdateIngredientQuantity writes quantity only when the stored
	// value still equals expected; ErrVersionConflict otherwise.
	UpdateIngredientQuantity(ctx context.Context, id int64, expected, quantity float64) error
	GetRecipeForProduct(ctx context.Context, productID int64) ([]RecipeEntry, error)

	GetTables(ctx context.Context) ([]Table, error)
	UpdateTableStatus(ctx context.Context, id int64, status TableStatus) error
	// ClaimTable flips Available -> Occupied; ErrAlreadyOccupied when
	// another station won the claim first.
	ClaimTable(ctx context.Context, id int64) error

	GetReservations(ctx context.Context) ([]Reservation, error)
	AddReservation(ctx context.Context, r Reservation) (Reservation, error)
	// DeleteReservation reports ErrReservationTaken when the row was
	// already gone, so two overrides can never both win.
	DeleteReservation(ctx context.Context, id int64) error

	AddTransaction(ctx context.Context, t Transaction) (Transaction, error)
	GetTransactions(ctx context.Context) ([]Transaction, error)
}
