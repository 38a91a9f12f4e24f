package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"foh-order-service/internal/archive"
	"foh-order-service/internal/config"
	"foh-order-service/internal/db"
	httpapi "foh-order-service/internal/http"
	"foh-order-service/internal/http/handlers"
	"foh-order-service/internal/inventory"
	"foh-order-service/internal/logger"
	"foh-order-service/internal/orders"
	"foh-order-service/internal/queue"
	"foh-order-service/internal/reservations"
	"foh-order-service/internal/store"
	"foh-order-service/internal/transactions"
	"foh-order-service/internal/ws"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	var st store.Store
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("database connection failed", zap.Error(err))
		}
		defer pool.Close()
		st = store.NewPostgres(pool, cfg.StoreCallTimeout, cfg.StoreReadRetries)
	} else {
		log.Warn("DATABASE_URL is empty, using in-memory store with demo data")
		st = seedDemoStore()
	}

	var queueClient *queue.Client
	if cfg.RabbitMQURL != "" {
		qc, err := queue.New(cfg.RabbitMQURL)
		if err != nil {
			if cfg.Env == "production" {
				log.Fatal("rabbitmq connection failed", zap.Error(err))
			}
			log.Warn("rabbitmq connection failed; continuing without events", zap.Error(err))
			qc = nil
		}
		if qc != nil {
			if err := qc.EnsureExchange(cfg.EventsExchange); err != nil {
				if cfg.Env == "production" {
					log.Fatal("rabbitmq exchange failed", zap.Error(err))
				}
				log.Warn("rabbitmq exchange failed; continuing without events", zap.Error(err))
				_ = qc.Close()
				qc = nil
			}
		}
		queueClient = qc
		if qc != nil {
			defer qc.Close()
			log.Info("events enabled", zap.String("exchange", cfg.EventsExchange))
		}
	} else {
		log.Info("events disabled (RABBITMQ_URL is empty)")
	}

	var archiveStore *archive.Store
	if cfg.ObjectStoreEndpoint != "" {
		archiveStore, err = archive.New(ctx, archive.Config{
			Endpoint:        cfg.ObjectStoreEndpoint,
			Region:          cfg.ObjectStoreRegion,
			AccessKeyID:     cfg.ObjectStoreAccessKeyID,
			SecretAccessKey: cfg.ObjectStoreSecretAccessKey,
			Bucket:          cfg.ObjectStoreBucket,
			PublicBaseURL:   cfg.ObjectStorePublicBaseURL,
		})
		if err != nil {
			if cfg.Env == "production" {
				log.Fatal("invoice archive setup failed", zap.Error(err))
			}
			log.Warn("invoice archive setup failed; continuing without archive", zap.Error(err))
			archiveStore = nil
		} else {
			log.Info("invoice archive enabled", zap.String("bucket", cfg.ObjectStoreBucket))
		}
	}

	txLedger, err := transactions.Load(ctx, st, log)
	if err != nil {
		log.Fatal("transaction history load failed", zap.Error(err))
	}

	engine := inventory.New(st, log)
	orderLedger := orders.NewLedger(st, engine, txLedger, log)
	resolver := reservations.NewResolver(st, log, cfg.VenueTimezone)
	wsServer := ws.New(log)

	h := &handlers.Handler{
		Logger:       log,
		Config:       cfg,
		Store:        st,
		Orders:       orderLedger,
		Reservations: resolver,
		Transactions: txLedger,
		Events:       queue.NewPublisher(queueClient, cfg.EventsExchange, log),
		Archive:      archiveStore,
		WS:           wsServer,
	}

	apiServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(h, log, cfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("order api ready", zap.String("base", "/api"))
		log.Info("order ws ready", zap.String("base", "/ws"))
		log.Info("order service listening", zap.String("addr", cfg.HTTPAddr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxShutdown); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
	}
}

// seedDemoStore loads the small menu used for local development, so
// the API is exercisable without a database.
func seedDemoStore() *store.Memory {
	m := store.NewMemory()

	m.SeedIngredient(store.Ingredient{ID: 1, Name: "Bun", Quantity: 50, Unit: "pcs"})
	m.SeedIngredient(store.Ingredient{ID: 2, Name: "Beef Patty", Quantity: 40, Unit: "pcs"})
	m.SeedIngredient(store.Ingredient{ID: 3, Name: "Cheese Slice", Quantity: 60, Unit: "pcs"})
	m.SeedIngredient(store.Ingredient{ID: 4, Name: "Potato", Quantity: 20, Unit: "kg"})
	m.SeedIngredient(store.Ingredient{ID: 5, Name: "Coffee Beans", Quantity: 5, Unit: "kg"})

	m.SeedProduct(store.Product{ID: 1, Name: "Burger", Price: 8.50})
	m.SeedProduct(store.Product{ID: 2, Name: "Cheeseburger", Price: 9.50})
	m.SeedProduct(store.Product{ID: 3, Name: "Fries", Price: 3.00})
	m.SeedProduct(store.Product{ID: 4, Name: "Espresso", Price: 2.50})

	m.SeedRecipe(1, []store.RecipeEntry{
		{IngredientID: 1, Quantity: 2},
		{IngredientID: 2, Quantity: 1},
	})
	m.SeedRecipe(2, []store.RecipeEntry{
		{IngredientID: 1, Quantity: 2},
		{IngredientID: 2, Quantity: 1},
		{IngredientID: 3, Quantity: 1},
	})
	m.SeedRecipe(3, []store.RecipeEntry{
		{IngredientID: 4, Quantity: 0.2},
	})
	m.SeedRecipe(4, []store.RecipeEntry{
		{IngredientID: 5, Quantity: 0.018},
	})

	for i := int64(1); i <= 8; i++ {
		m.SeedTable(store.Table{ID: i, Name: "Table " + strconv.FormatInt(i, 10), Capacity: 4, Status: store.TableAvailable})
	}

	return m
}
