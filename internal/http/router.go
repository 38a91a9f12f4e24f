package httpapi

import (
	"net/http"

	"foh-order-service/internal/config"
	"foh-order-service/internal/http/handlers"
	"foh-order-service/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

func NewRouter(h *handlers.Handler, logger *zap.Logger, cfg config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Telemetry(logger))

	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-Requested-With",
				"Cache-Control",
				"Pragma",
			},
			AllowCredentials: true,
			MaxAge:           300,
		}

		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}

		r.Use(cors.Handler(options))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/orders", h.OrdersList)
		r.Post("/orders", h.OrderSave)
		r.Get("/orders/{table}", h.OrderGet)
		r.Delete("/orders/{table}", h.OrderRemove)
		r.Post("/orders/{table}/complete", h.OrderComplete)
		r.Post("/orders/{table}/checkout", h.OrderCheckout)
		r.Get("/orders/{table}/invoice", h.OrderInvoiceText)
		r.Get("/orders/{table}/invoice.pdf", h.OrderInvoicePDF)

		r.Get("/transactions", h.TransactionsList)
		r.Get("/transactions/stats", h.TransactionsStats)
		r.Get("/transactions/{id}/invoice", h.TransactionInvoiceText)
		r.Get("/transactions/{id}/invoice.pdf", h.TransactionInvoicePDF)

		r.Get("/reservations", h.ReservationsList)
		r.Post("/reservations", h.ReservationCreate)
		r.Delete("/reservations/{id}", h.ReservationCancel)

		r.Get("/tables", h.TablesList)
		r.Post("/tables/{id}/open", h.TableOpen)
	})

	if h.WS != nil {
		r.Get("/ws", h.WS.Handle)
	}

	return r
}
