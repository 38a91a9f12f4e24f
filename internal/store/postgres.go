package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres keeps every gateway call a single-key statement. The store
// is a dumb keyed collection by contract, so nothing here opens a
// multi-statement transaction; conditional writes carry their guard
// in the WHERE clause instead.
type Postgres struct {
	db          *pgxpool.Pool
	callTimeout time.Duration
	readRetries int
}

func NewPostgres(db *pgxpool.Pool, callTimeout time.Duration, readRetries int) *Postgres {
	if callTimeout <= 0 {
		callTimeout = 5 * time.Second
	}
	if readRetries < 1 {
		readRetries = 1
	}
	return &Postgres{db: db, callTimeout: callTimeout, readRetries: readRetries}
}

func (p *Postgres) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.callTimeout)
}

// readRetry retries idempotent reads with a short backoff. Writes are
// never retried here: a money or reservation write that timed out may
// have landed, and replaying it silently could double-apply.
func (p *Postgres) readRetry(ctx context.Context, op func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < p.readRetries; attempt++ {
		callCtx, cancel := p.withTimeout(ctx)
		err = op(callCtx)
		cancel()
		if err == nil || errors.Is(err, ErrNotFound) || ctx.Err() != nil {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * 150 * time.Millisecond)
	}
	return err
}

func (p *Postgres) GetProducts(ctx context.Context) ([]Product, error) {
	var out []Product
	err := p.readRetry(ctx, func(ctx context.Context) error {
		rows, err := p.db.Query(ctx, `select id, name, price from products order by id`)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var prod Product
			var price pgtype.Numeric
			if err := rows.Scan(&prod.ID, &prod.Name, &price); err != nil {
				return err
			}
			prod.Price = numericToFloat64(price)
			out = append(out, prod)
		}
		return rows.Err()
	})
	return out, err
}

func (p *Postgres) GetIngredient(ctx context.Context, id int64) (Ingredient, error) {
	var ing Ingredient
	err := p.readRetry(ctx, func(ctx context.Context) error {
		var qty pgtype.Numeric
		err := p.db.QueryRow(ctx, `
			select id, name, unit, quantity from ingredients where id = $1
		`, id).Scan(&ing.ID, &ing.Name, &ing.Unit, &qty)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		ing.Quantity = numericToFloat64(qty)
		return nil
	})
	return ing, err
}

func (p *Postgres) UpdateIngredientQuantity(ctx context.Context, id int64, expected, quantity float64) error {
	callCtx, cancel := p.withTimeout(ctx)
	defer cancel()

	tag, err := p.db.Exec(callCtx, `
		update ingredients
		set quantity = $1
		where id = $2 and quantity = $3
	`, quantity, id, expected)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		var exists bool
		if err := p.db.QueryRow(callCtx, `select exists(select 1 from ingredients where id = $1)`, id).Scan(&exists); err == nil && !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

func (p *Postgres) GetRecipeForProduct(ctx context.Context, productID int64) ([]RecipeEntry, error) {
	var out []RecipeEntry
	err := p.readRetry(ctx, func(ctx context.Context) error {
		rows, err := p.db.Query(ctx, `
			select product_id, ingredient_id, quantity
			from recipes
			where product_id = $1
		`, productID)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var entry RecipeEntry
			var qty pgtype.Numeric
			if err := rows.Scan(&entry.ProductID, &entry.IngredientID, &qty); err != nil {
				return err
			}
			entry.Quantity = numericToFloat64(qty)
			out = append(out, entry)
		}
		return rows.Err()
	})
	return out, err
}

func (p *Postgres) GetTables(ctx context.Context) ([]Table, error) {
	var out []Table
	err := p.readRetry(ctx, func(ctx context.Context) error {
		rows, err := p.db.Query(ctx, `select id, name, capacity, status from tables order by id`)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var t Table
			var status string
			if err := rows.Scan(&t.ID, &t.Name, &t.Capacity, &status); err != nil {
				return err
			}
			t.Status = TableStatus(status)
			out = append(out, t)
		}
		return rows.Err()
	})
	return out, err
}

func (p *Postgres) UpdateTableStatus(ctx context.Context, id int64, status TableStatus) error {
	callCtx, cancel := p.withTimeout(ctx)
	defer cancel()

	tag, err := p.db.Exec(callCtx, `update tables set status = $1 where id = $2`, string(status), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrTableUnknown
	}
	return nil
}

func (p *Postgres) ClaimTable(ctx context.Context, id int64) error {
	callCtx, cancel := p.withTimeout(ctx)
	defer cancel()

	tag, err := p.db.Exec(callCtx, `
		update tables
		set status = $1
		where id = $2 and status = $3
	`, string(TableOccupied), id, string(TableAvailable))
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		var exists bool
		if err := p.db.QueryRow(callCtx, `select exists(select 1 from tables where id = $1)`, id).Scan(&exists); err == nil && !exists {
			return ErrTableUnknown
		}
		return ErrAlreadyOccupied
	}
	return nil
}

func (p *Postgres) GetReservations(ctx context.Context) ([]Reservation, error) {
	var out []Reservation
	err := p.readRetry(ctx, func(ctx context.Context) error {
		rows, err := p.db.Query(ctx, `
			select id, table_id, reservation_date, reservation_time,
			       customer_name, phone, guest_count, status, created_at
			from reservations
			order by id
		`)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var res Reservation
			var createdAt pgtype.Timestamptz
			if err := rows.Scan(&res.ID, &res.TableID, &res.Date, &res.Time,
				&res.CustomerName, &res.Phone, &res.GuestCount, &res.Status, &createdAt); err != nil {
				return err
			}
			if createdAt.Valid {
				res.CreatedAt = createdAt.Time.Format(time.RFC3339)
			}
			out = append(out, res)
		}
		return rows.Err()
	})
	return out, err
}

func (p *Postgres) AddReservation(ctx context.Context, r Reservation) (Reservation, error) {
	callCtx, cancel := p.withTimeout(ctx)
	defer cancel()

	err := p.db.QueryRow(callCtx, `
		insert into reservations (table_id, reservation_date, reservation_time,
		                          customer_name, phone, guest_count, status, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, now())
		returning id, created_at
	`, r.TableID, r.Date, r.Time, r.CustomerName, r.Phone, r.GuestCount, r.Status).
		Scan(&r.ID, &createdAtScanner{&r.CreatedAt})
	if err != nil {
		return Reservation{}, err
	}
	return r, nil
}

func (p *Postgres) DeleteReservation(ctx context.Context, id int64) error {
	callCtx, cancel := p.withTimeout(ctx)
	defer cancel()

	tag, err := p.db.Exec(callCtx, `delete from reservations where id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrReservationTaken
	}
	return nil
}

func (p *Postgres) AddTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	callCtx, cancel := p.withTimeout(ctx)
	defer cancel()

	items, err := json.Marshal(t.Items)
	if err != nil {
		return Transaction{}, fmt.Errorf("encode transaction items: %w", err)
	}
	err = p.db.QueryRow(callCtx, `
		insert into transactions (table_label, items, total_amount, ts)
		values ($1, $2, $3, $4)
		returning id
	`, t.TableLabel, items, t.TotalAmount, t.Timestamp).Scan(&t.ID)
	if err != nil {
		return Transaction{}, err
	}
	return t, nil
}

func (p *Postgres) GetTransactions(ctx context.Context) ([]Transaction, error) {
	var out []Transaction
	err := p.readRetry(ctx, func(ctx context.Context) error {
		rows, err := p.db.Query(ctx, `
			select id, table_label, items, total_amount, ts
			from transactions
			order by id
		`)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var t Transaction
			var items []byte
			var total pgtype.Numeric
			if err := rows.Scan(&t.ID, &t.TableLabel, &items, &total, &t.Timestamp); err != nil {
				return err
			}
			t.TotalAmount = numericToFloat64(total)
			if len(items) > 0 {
				if err := json.Unmarshal(items, &t.Items); err != nil {
					t.Items = nil
				}
			}
			out = append(out, t)
		}
		return rows.Err()
	})
	return out, err
}

// createdAtScanner formats the returned timestamp straight into the
// record's string field.
type createdAtScanner struct{ dst *string }

func (s *createdAtScanner) ScanTimestamptz(v pgtype.Timestamptz) error {
	if v.Valid {
		*s.dst = v.Time.Format(time.RFC3339)
	}
	return nil
}

func numericToFloat64(value pgtype.Numeric) float64 {
	if !value.Valid {
		return 0
	}
	f, err := value.Float64Value()
	if err == nil {
		return f.Float64
	}
	text, err := value.MarshalJSON()
	if err != nil {
		return 0
	}
	var out float64
	if _, err := fmt.Sscan(string(text), &out); err != nil {
		return 0
	}
	return out
}
