package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/cloud-kitchen/config"
	"github.com/yeremiapane/cloud-kitchen/database"
	"github.com/yeremiapane/cloud-kitchen/kds"
	"github.com/yeremiapane/cloud-kitchen/messaging"
	"github.com/yeremiapane/cloud-kitchen/models"
	"github.com/yeremiapane/cloud-kitchen/router"
	"github.com/yeremiapane/cloud-kitchen/services"
	"github.com/yeremiapane/cloud-kitchen/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to load configuration: %v", err)
	}
	utils.InitLogger(cfg.LogLevel)
	utils.SetJWTSecret(cfg.JWTSecret)

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}
	if cfg.SeedMenu {
		if err := database.SeedMenu(db); err != nil {
			utils.ErrorLogger.Printf("Error seeding menu: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := services.NewGormOrderStore(db)
	ids, err := services.NewDisplayIDGenerator(ctx, cfg.DisplayIDScheme, store)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to set up display ids: %v", err)
	}
	checkout := services.NewCheckoutService(store, ids, cfg.CheckoutAtomic, cfg.RequestTimeout)

	hub := kds.NewHub()
	notifiers := services.Notifiers{hub}
	if cfg.AMQPURL != "" {
		publisher, err := messaging.Dial(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			utils.ErrorLogger.Printf("Status events disabled, broker unavailable: %v", err)
		} else {
			defer publisher.Close()
			notifiers = append(notifiers, publisher)
		}
	}
	events := services.NewAsyncNotifier(notifiers, services.DefaultNotifyQueueSize)
	defer events.Close()
	status := services.NewOrderStatusService(store, events, cfg.RequestTimeout)

	// The board watcher keeps KDS screens in sync with writes made by other instances.
	board := services.NewBoardWatcher(store.ListOrders, models.ActiveOrderStatuses(), services.PollerOptions{
		Interval: cfg.BoardPollInterval,
		Timeout:  cfg.RequestTimeout,
		OnUpdate: func(snap services.Snapshot) {
			if snap.Unreachable {
				hub.BroadcastStale("order store unreachable")
				return
			}
			hub.BroadcastBoard(snap.Orders)
		},
	})
	board.Start(ctx)
	defer board.Stop()

	reconciler := services.NewOrphanReconciler(store, cfg.OrphanGrace, cfg.OrphanCheckInterval)
	reconciler.Start(ctx)
	defer reconciler.Stop()

	r := router.SetupRouter(router.Options{
		DB:             db,
		Store:          store,
		Checkout:       checkout,
		Status:         status,
		Hub:            hub,
		Operators:      cfg.Operators,
		TokenTTL:       cfg.TokenTTL,
		RequestTimeout: cfg.RequestTimeout,
		CORSOrigins:    cfg.CORSOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.InfoLogger.Printf("Listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatal(err)
		}
	}()

	<-ctx.Done()
	utils.InfoLogger.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.ErrorLogger.Printf("Error during shutdown: %v", err)
	}
}
