package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"foh-order-service/internal/archive"
	"foh-order-service/internal/config"
	"foh-order-service/internal/fault"
	"foh-order-service/internal/orders"
	"foh-order-service/internal/queue"
	"foh-order-service/internal/reservations"
	"foh-order-service/internal/store"
	"foh-order-service/internal/transactions"
	"foh-order-service/internal/ws"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	Logger       *zap.Logger
	Config       config.Config
	Store        store.Store
	Orders       *orders.Ledger
	Reservations *reservations.Resolver
	Transactions *transactions.Ledger
	Events       *queue.Publisher
	Archive      *archive.Store
	WS           *ws.Server
}

func (h *Handler) broadcast(eventType string, payload any) {
	if h.WS != nil {
		h.WS.Broadcast(eventType, payload)
	}
}

func readPathString(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

func readPathInt64(r *http.Request, key string) (int64, error) {
	value := readPathString(r, key)
	if value == "" {
		return 0, errMissingParam
	}
	var out int64
	_, err := fmt.Sscan(value, &out)
	return out, err
}

var errMissingParam = errors.New("missing param")

func notFoundOrder(table string) error {
	return fault.NotFound("no active order for table " + table)
}
