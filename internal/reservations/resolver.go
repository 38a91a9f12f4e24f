package reservations

import (
	"context"
	"errors"
	"strings"
	"time"

	"foh-order-service/internal/fault"
	"foh-order-service/internal/store"

	"go.uber.org/zap"
)

// Walk-in protection window around the wall clock, not around the
// reservation's own slot: a booking inside now-1h..now+4h blocks
// seating a walk-in at that table.
const (
	openWindowBefore = time.Hour
	openWindowAfter  = 4 * time.Hour
)

type Request struct {
	TableID      int64  `json:"tableId"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	CustomerName string `json:"customerName"`
	Phone        string `json:"phone"`
	GuestCount   int    `json:"guestCount"`
}

type OpenResult struct {
	TableID  int64              `json:"tableId"`
	Opened   bool               `json:"opened"`
	Consumed *store.Reservation `json:"consumedReservation,omitempty"`
}

type Resolver struct {
	store  store.Store
	logger *zap.Logger
	loc    *time.Location
	now    func() time.Time
}

func NewResolver(st store.Store, logger *zap.Logger, venueTimezone string) *Resolver {
	loc, err := time.LoadLocation(venueTimezone)
	if err != nil {
		logger.Warn("unknown venue timezone, using UTC", zap.String("tz", venueTimezone))
		loc = time.UTC
	}
	return &Resolver{store: st, logger: logger, loc: loc, now: time.Now}
}

// CanonicalTime normalizes a booking time to 24-hour HH:MM. Input may
// be 24-hour or 12-hour with AM/PM. Anything else is rejected: an
// unreadable time cannot be conflict-checked, so it fails closed.
func CanonicalTime(value string) (string, error) {
	trimmed := strings.TrimSpace(strings.ToUpper(value))
	for _, layout := range []string{"15:04", "3:04 PM", "3:04PM"} {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			return ts.Format("15:04"), nil
		}
	}
	return "", fault.Validation("unrecognized time format: " + value)
}

// Create validates the request and rejects any booking that collides
// with an existing one on the same table, date and canonical time.
func (r *Resolver) Create(ctx context.Context, req Request) (store.Reservation, error) {
	if req.TableID <= 0 {
		return store.Reservation{}, fault.Validation("tableId is required")
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		return store.Reservation{}, fault.Validation("customerName is required")
	}
	if strings.TrimSpace(req.Phone) == "" {
		return store.Reservation{}, fault.Validation("phone is required")
	}
	if req.GuestCount <= 0 {
		return store.Reservation{}, fault.Validation("guestCount must be positive")
	}
	date := strings.TrimSpace(req.Date)
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return store.Reservation{}, fault.Validation("date must be YYYY-MM-DD")
	}
	canonical, err := CanonicalTime(req.Time)
	if err != nil {
		return store.Reservation{}, err
	}

	existing, err := r.store.GetReservations(ctx)
	if err != nil {
		return store.Reservation{}, fault.Persistence("reservation lookup failed", err)
	}
	for _, other := range existing {
		if other.TableID != req.TableID || other.Date != date {
			continue
		}
		otherTime, err := CanonicalTime(other.Time)
		if err != nil {
			// A stored slot we cannot read is a conflict risk, not a
			// free pass.
			otherTime = ""
		}
		if otherTime == "" || otherTime == canonical {
			return store.Reservation{}, fault.Conflict("table already reserved for this slot", map[string]any{
				"tableId": req.TableID,
				"date":    date,
				"time":    canonical,
			})
		}
	}

	saved, err := r.store.AddReservation(ctx, store.Reservation{
		TableID:      req.TableID,
		Date:         date,
		Time:         canonical,
		CustomerName: strings.TrimSpace(req.CustomerName),
		Phone:        strings.TrimSpace(req.Phone),
		GuestCount:   req.GuestCount,
		Status:       "Confirmed",
	})
	if err != nil {
		return store.Reservation{}, fault.Persistence("reservation write failed", err)
	}
	return saved, nil
}

func (r *Resolver) List(ctx context.Context) ([]store.Reservation, error) {
	out, err := r.store.GetReservations(ctx)
	if err != nil {
		return nil, fault.Persistence("reservation lookup failed", err)
	}
	return out, nil
}

func (r *Resolver) Cancel(ctx context.Context, id int64) error {
	err := r.store.DeleteReservation(ctx, id)
	if errors.Is(err, store.ErrReservationTaken) {
		return fault.NotFound("reservation not found")
	}
	if err != nil {
		return fault.Persistence("reservation delete failed", err)
	}
	return nil
}

// OpenTable seats a walk-in. A reservation for the table whose slot
// falls inside the wall-clock window blocks the open; supplying the
// exact phone number on file consumes that reservation and permits
// it. The delete is row-count guarded in the store, so two stations
// racing the same override cannot both win.
func (r *Resolver) OpenTable(ctx context.Context, tableID int64, phone string) (OpenResult, error) {
	if tableID <= 0 {
		return OpenResult{}, fault.Validation("tableId is required")
	}

	existing, err := r.store.GetReservations(ctx)
	if err != nil {
		return OpenResult{}, fault.Persistence("reservation lookup failed", err)
	}

	blocking := r.findBlocking(existing, tableID)
	if blocking == nil {
		return r.claim(ctx, tableID, nil)
	}

	supplied := strings.TrimSpace(phone)
	if supplied == "" {
		return OpenResult{}, fault.Conflict("table has a reservation inside the seating window", map[string]any{
			"reservationId": blocking.ID,
			"date":          blocking.Date,
			"time":          blocking.Time,
			"customerName":  blocking.CustomerName,
		})
	}
	if supplied != blocking.Phone {
		return OpenResult{}, fault.Conflict("phone does not match the reservation on file", map[string]any{
			"reservationId": blocking.ID,
		})
	}

	if err := r.store.DeleteReservation(ctx, blocking.ID); err != nil {
		if errors.Is(err, store.ErrReservationTaken) {
			return OpenResult{}, fault.Conflict("reservation was already consumed", map[string]any{
				"reservationId": blocking.ID,
			})
		}
		return OpenResult{}, fault.Persistence("reservation delete failed", err)
	}
	r.logger.Info("reservation consumed by table open",
		zap.Int64("tableId", tableID),
		zap.Int64("reservationId", blocking.ID))

	return r.claim(ctx, tableID, blocking)
}

func (r *Resolver) claim(ctx context.Context, tableID int64, consumed *store.Reservation) (OpenResult, error) {
	err := r.store.ClaimTable(ctx, tableID)
	switch {
	case errors.Is(err, store.ErrAlreadyOccupied):
		return OpenResult{}, fault.Conflict("table is not available", map[string]any{"tableId": tableID})
	case errors.Is(err, store.ErrTableUnknown):
		return OpenResult{}, fault.NotFound("table not found")
	case err != nil:
		return OpenResult{}, fault.Persistence("table claim failed", err)
	}
	return OpenResult{TableID: tableID, Opened: true, Consumed: consumed}, nil
}

// findBlocking returns the earliest reservation for the table whose
// venue-local date+time lies inside the window. A stored time that no
// longer parses blocks too (fail closed).
func (r *Resolver) findBlocking(list []store.Reservation, tableID int64) *store.Reservation {
	now := r.now().In(r.loc)
	windowStart := now.Add(-openWindowBefore)
	windowEnd := now.Add(openWindowAfter)

	var blocking *store.Reservation
	var blockingAt time.Time
	for i := range list {
		res := list[i]
		if res.TableID != tableID {
			continue
		}
		slot, err := r.slotTime(res)
		if err != nil {
			r.logger.Warn("reservation slot unreadable, treating as blocking",
				zap.Int64("reservationId", res.ID),
				zap.String("date", res.Date),
				zap.String("time", res.Time))
			if blocking == nil {
				blocking = &list[i]
				blockingAt = windowStart
			}
			continue
		}
		if slot.Before(windowStart) || slot.After(windowEnd) {
			continue
		}
		if blocking == nil || slot.Before(blockingAt) {
			blocking = &list[i]
			blockingAt = slot
		}
	}
	return blocking
}

func (r *Resolver) slotTime(res store.Reservation) (time.Time, error) {
	canonical, err := CanonicalTime(res.Time)
	if err != nil {
		return time.Time{}, err
	}
	return time.ParseInLocation("2006-01-02 15:04", res.Date+" "+canonical, r.loc)
}
