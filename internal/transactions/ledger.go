package transactions

import (
	"context"
	"sort"
	"sync"
	"time"

	"foh-order-service/internal/store"

	"go.uber.org/zap"
)

type DayStat struct {
	Date    string  `json:"date"` // YYYY-MM-DD
	Revenue float64 `json:"revenue"`
	Count   int     `json:"count"`
}

type MonthStat struct {
	Month   string  `json:"month"` // YYYY-MM
	Revenue float64 `json:"revenue"`
	Count   int     `json:"count"`
}

// Ledger is the append-only record of finalized sales, loaded once at
// startup and kept in memory alongside entries appended since.
type Ledger struct {
	store  store.Store
	logger *zap.Logger

	mu      sync.Mutex
	entries []store.Transaction
}

func Load(ctx context.Context, st store.Store, logger *zap.Logger) (*Ledger, error) {
	entries, err := st.GetTransactions(ctx)
	if err != nil {
		return nil, err
	}
	return &Ledger{store: st, logger: logger, entries: entries}, nil
}

// Append persists the snapshot and records it in memory. When the
// store write fails, the entry still lands locally under a minted id
// and persisted=false tells the caller the sale is recorded degraded,
// not clean.
func (l *Ledger) Append(ctx context.Context, t store.Transaction) (store.Transaction, bool) {
	saved, err := l.store.AddTransaction(ctx, t)
	if err == nil {
		l.mu.Lock()
		l.entries = append(l.entries, saved)
		l.mu.Unlock()
		return saved, true
	}

	l.logger.Error("transaction persist failed, keeping local copy",
		zap.String("table", t.TableLabel),
		zap.Float64("total", t.TotalAmount),
		zap.Error(err))

	t.ID = time.Now().UnixMilli()
	l.mu.Lock()
	l.entries = append(l.entries, t)
	l.mu.Unlock()
	return t, false
}

func (l *Ledger) History() []store.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]store.Transaction, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Ledger) Totals() (revenue float64, count int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.entries {
		revenue += t.TotalAmount
		count++
	}
	return revenue, count
}

// DailyStats groups by calendar day of the stored timestamp and keeps
// the most recent limit days that have data. Entries whose timestamp
// does not parse are left out of the aggregation; they remain in raw
// history.
func (l *Ledger) DailyStats(limit int) []DayStat {
	byDay := make(map[string]*DayStat)
	for _, t := range l.History() {
		ts, ok := parseTimestamp(t.Timestamp)
		if !ok {
			continue
		}
		key := ts.Format("2006-01-02")
		stat := byDay[key]
		if stat == nil {
			stat = &DayStat{Date: key}
			byDay[key] = stat
		}
		stat.Revenue += t.TotalAmount
		stat.Count++
	}

	out := make([]DayStat, 0, len(byDay))
	for _, stat := range byDay {
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func (l *Ledger) MonthlyStats(limit int) []MonthStat {
	byMonth := make(map[string]*MonthStat)
	for _, t := range l.History() {
		ts, ok := parseTimestamp(t.Timestamp)
		if !ok {
			continue
		}
		key := ts.Format("2006-01")
		stat := byMonth[key]
		if stat == nil {
			stat = &MonthStat{Month: key}
			byMonth[key] = stat
		}
		stat.Revenue += t.TotalAmount
		stat.Count++
	}

	out := make([]MonthStat, 0, len(byMonth))
	for _, stat := range byMonth {
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func (l *Ledger) Find(id int64) (store.Transaction, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.entries {
		if t.ID == id {
			return t, true
		}
	}
	return store.Transaction{}, false
}

func parseTimestamp(value string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
