package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/NiMv1/payment-service/internal/adapter/handler"
	"github.com/NiMv1/payment-service/internal/adapter/memory"
	"github.com/NiMv1/payment-service/internal/adapter/storage"
	"github.com/NiMv1/payment-service/internal/core/config"
	"github.com/NiMv1/payment-service/internal/core/events"
	"github.com/NiMv1/payment-service/internal/core/saga"
	"github.com/NiMv1/payment-service/internal/core/service"
	"github.com/NiMv1/payment-service/internal/core/worker"
)

func main() {
	// 1. Load Config
	cfg := config.LoadConfig()

	// 2. Setup Logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 3. Setup Repositories (Postgres when configured, in-memory otherwise)
	var (
		walletRepo      service.WalletRepository
		paymentRepo     service.PaymentRepository
		transactionRepo service.TransactionRepository
		idempotencyRepo service.IdempotencyRepository
		closeDB         func()
	)
	if cfg.DatabaseURL != "" {
		dbPool, err := storage.ConnectDB(cfg.DatabaseURL)
		if err != nil {
			slog.Error("❌ Database connection failed", "error", err)
			os.Exit(1)
		}
		slog.Info("✅ Connected to Postgres")
		walletRepo = storage.NewWalletRepository(dbPool)
		paymentRepo = storage.NewPaymentRepository(dbPool)
		transactionRepo = storage.NewTransactionRepository(dbPool)
		idempotencyRepo = storage.NewIdempotencyRepository(dbPool)
		closeDB = dbPool.Close
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory storage")
		walletRepo = memory.NewWalletRepository()
		paymentRepo = memory.NewPaymentRepository()
		transactionRepo = memory.NewTransactionRepository()
		idempotencyRepo = memory.NewIdempotencyRepository()
		closeDB = func() {}
	}

	// 4. Setup Event Publisher
	var publisher events.Publisher = events.NopPublisher{}
	var closePublisher func()
	if cfg.WebhookURL != "" {
		wp := events.NewWebhookPublisher(cfg.WebhookURL)
		publisher = wp
		closePublisher = wp.Close
	} else {
		slog.Warn("WEBHOOK_URL not set, events are discarded")
		closePublisher = func() {}
	}

	// 5. Setup Services
	idempotencySvc := service.NewIdempotencyService(idempotencyRepo, cfg.IdempotencyTTL)
	walletSvc := service.NewWalletService(walletRepo)
	paymentSvc := service.NewPaymentService(paymentRepo, transactionRepo, idempotencySvc, publisher)

	journal, err := saga.NewBoltJournal(cfg.SagaJournalPath)
	if err != nil {
		slog.Error("❌ Failed to open saga journal", "error", err)
		os.Exit(1)
	}
	transferSaga := saga.NewTransferSaga(walletSvc, journal)

	// Transfers left behind by a crash need an operator's eye.
	if entries, err := journal.Incomplete(); err == nil && len(entries) > 0 {
		slog.Warn("⚠️ Incomplete transfers found in saga journal, manual reconciliation needed", "count", len(entries))
	}

	paymentHandler := &handler.PaymentHandler{Service: paymentSvc}
	walletHandler := &handler.WalletHandler{Service: walletSvc, Saga: transferSaga}

	// 6. Setup Fiber
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	// 7. Routes
	api := app.Group("/api/v1")

	api.Post("/payments", paymentHandler.CreatePayment)
	api.Get("/payments/order/:orderId", paymentHandler.GetPaymentByOrder)
	api.Get("/payments/user/:userId", paymentHandler.GetUserPayments)
	api.Get("/payments/:id", paymentHandler.GetPayment)
	api.Post("/payments/:id/confirm", paymentHandler.ConfirmPayment)
	api.Post("/payments/:id/cancel", paymentHandler.CancelPayment)
	api.Post("/payments/:id/refund", paymentHandler.RefundPayment)

	api.Post("/wallets", walletHandler.OpenWallet)
	api.Get("/wallets/:userId", walletHandler.GetUserWallets)
	api.Get("/wallets/:userId/:currency", walletHandler.GetWallet)
	api.Post("/wallets/deposit", walletHandler.Deposit)
	api.Post("/wallets/withdraw", walletHandler.Withdraw)
	api.Post("/wallets/transfer", walletHandler.Transfer)

	// 8. Start Background Tasks
	reaper := worker.NewReaper(paymentSvc, idempotencySvc, cfg.PaymentReaperTick, cfg.IdempotencySweep)
	reaper.Start()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("🚀 Server starting", "env", cfg.Env, "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
		}
	}()

	<-stop
	slog.Info("🛑 Shutting down server...")

	reaper.Stop()
	closePublisher()

	if err := app.Shutdown(); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}

	if err := journal.Close(); err != nil {
		slog.Error("Saga journal close failed", "error", err)
	}
	closeDB()

	slog.Info("👋 Server exited successfully")
}
