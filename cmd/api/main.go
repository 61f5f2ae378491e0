package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kulapay/kulapay-backend/api/routes"
	"github.com/kulapay/kulapay-backend/internal/chat"
	"github.com/kulapay/kulapay-backend/internal/config"
	"github.com/kulapay/kulapay-backend/internal/handlers"
	"github.com/kulapay/kulapay-backend/internal/logging"
	"github.com/kulapay/kulapay-backend/internal/loyalty"
	"github.com/kulapay/kulapay-backend/internal/metrics"
	"github.com/kulapay/kulapay-backend/internal/repositories"
	"github.com/kulapay/kulapay-backend/internal/repositories/memory"
	mongorepo "github.com/kulapay/kulapay-backend/internal/repositories/mongodb"
	"github.com/kulapay/kulapay-backend/internal/services"
	"github.com/kulapay/kulapay-backend/internal/ussd"
	"github.com/kulapay/kulapay-backend/pkg/jwt"
	"github.com/kulapay/kulapay-backend/pkg/mobilemoney"
	"github.com/kulapay/kulapay-backend/pkg/mongodb"
	"github.com/kulapay/kulapay-backend/pkg/smsgateway"
	"golang.org/x/exp/slog"
)

const version = "1.0.0"

// ledger bundles the store implementations selected by Storage.Driver.
type ledger struct {
	vendors       repositories.VendorRepository
	customers     repositories.CustomerRepository
	transactions  repositories.TransactionRepository
	notifications repositories.NotificationRepository
	pinger        handlers.Pinger
	close         func(context.Context) error
}

func main() {
	if err := run(); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.SetDefault(logging.New(cfg.LogLevel, cfg.LogFormat))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.close(context.Background()); err != nil {
			slog.Error("Error closing ledger store", "error", err)
		}
	}()

	policy := loyalty.Policy{
		PointsPerUnit:    cfg.Loyalty.PointsPerUnit,
		RewardPoints:     cfg.Loyalty.RewardPoints,
		RewardName:       cfg.Loyalty.RewardName,
		MinTransactions:  cfg.Loyalty.MinTransactions,
		MinSpend:         cfg.Loyalty.MinSpend,
		CreditPercentage: cfg.Loyalty.CreditPercentage,
		MaxCreditLimit:   cfg.Loyalty.MaxCreditLimit,
		Currency:         cfg.Loyalty.Currency,
	}
	if err := policy.Validate(); err != nil {
		return err
	}

	tokens, err := jwt.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.ExpiresIn)
	if err != nil {
		return fmt.Errorf("admin API: %w", err)
	}

	collector := metrics.New()
	notifications := services.NewNotificationService(store.notifications, newGateway(cfg), collector,
		cfg.Messaging.Workers, cfg.Messaging.QueueSize)

	checkout := mobilemoney.NewClient(mobilemoney.Config{
		BaseURL:     cfg.MobileMoney.BaseURL,
		Username:    cfg.MobileMoney.Username,
		APIKey:      cfg.MobileMoney.APIKey,
		ProductName: cfg.MobileMoney.ProductName,
		Currency:    cfg.Loyalty.Currency,
		Mock:        cfg.MobileMoney.Mock,
	})

	vendorService := services.NewVendorService(store.vendors, cfg.Security.PINCost)
	creditService := services.NewCreditService(store.vendors, store.customers, store.transactions, policy,
		checkout, collector, cfg.Messaging.CountryCode)
	saleService := services.NewSaleService(store.vendors, store.customers, store.transactions, creditService,
		notifications, collector)
	statsService := services.NewStatsService(store.transactions)

	machine := ussd.NewMachine(vendorService, saleService, statsService, ussd.Options{
		ServiceName:    cfg.USSD.ServiceName,
		BackToken:      cfg.USSD.BackToken,
		HomeToken:      cfg.USSD.HomeToken,
		MinPhoneLength: cfg.USSD.MinPhoneLength,
		Currency:       cfg.Loyalty.Currency,
	}, collector)
	router := chat.NewRouter(saleService, creditService, cfg.Loyalty.Currency, collector)

	engine := routes.SetupRouter(cfg, routes.HandlerDependencies{
		USSDHandler:         handlers.NewUSSDHandler(machine),
		ChatHandler:         handlers.NewChatHandler(router, notifications),
		VendorHandler:       handlers.NewVendorHandler(vendorService, statsService),
		LedgerHandler:       handlers.NewLedgerHandler(statsService, creditService),
		NotificationHandler: handlers.NewNotificationHandler(notifications),
		HealthHandler:       handlers.NewHealthHandler(store.pinger, version),
		Tokens:              tokens,
		Metrics:             collector,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "port", cfg.Server.Port, "storage", cfg.Storage.Driver,
			"messagingMock", cfg.Messaging.Mock)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	if err := notifications.Close(shutdownCtx); err != nil {
		slog.Warn("Pending notifications dropped", "error", err)
	}

	slog.Info("Server exiting")
	return nil
}

func openLedger(ctx context.Context, cfg *config.Config) (*ledger, error) {
	if cfg.Storage.Driver == "memory" {
		slog.Warn("Using in-memory ledger store; data is lost on restart")
		s := memory.New()
		return &ledger{
			vendors:       s.Vendors(),
			customers:     s.Customers(),
			transactions:  s.Transactions(),
			notifications: s.Notifications(),
			close:         func(context.Context) error { return nil },
		}, nil
	}

	client, err := mongodb.NewClient(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
	if err != nil {
		return nil, err
	}
	db := client.Database(cfg.MongoDB.Database)

	indexCtx, cancel := context.WithTimeout(ctx, cfg.MongoDB.Timeout)
	defer cancel()
	if err := mongorepo.EnsureIndexes(indexCtx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return &ledger{
		vendors:       mongorepo.NewVendorRepository(db),
		customers:     mongorepo.NewCustomerRepository(db),
		transactions:  mongorepo.NewTransactionRepository(db),
		notifications: mongorepo.NewNotificationRepository(db),
		pinger:        client,
		close:         client.Disconnect,
	}, nil
}

func newGateway(cfg *config.Config) smsgateway.Gateway {
	if cfg.Messaging.Mock {
		slog.Warn("Outbound messaging is in mock mode")
		return smsgateway.NewMockGateway(cfg.Messaging.CountryCode)
	}
	return smsgateway.NewAfricasTalkingGateway(smsgateway.Config{
		Username:    cfg.Messaging.Username,
		APIKey:      cfg.Messaging.APIKey,
		SMSURL:      cfg.Messaging.SMSURL,
		WhatsAppURL: cfg.Messaging.WhatsAppURL,
		SenderID:    cfg.Messaging.SenderID,
		CountryCode: cfg.Messaging.CountryCode,
		MaxRetries:  cfg.Messaging.MaxRetries,
		Timeout:     cfg.Messaging.Timeout,
	}, nil)
}
