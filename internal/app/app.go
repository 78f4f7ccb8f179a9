package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/brightline/classledger/internal/config"
	"github.com/brightline/classledger/internal/controller"
	"github.com/brightline/classledger/internal/creditapi"
	"github.com/brightline/classledger/internal/notify"
	"github.com/brightline/classledger/internal/repository"
	"github.com/brightline/classledger/internal/service"
	"github.com/brightline/classledger/internal/session"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Run wires everything together and serves until SIGINT/SIGTERM.
func Run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("create database pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	migrator, err := NewMigrator(pool, cfg.MigrationsDir, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := migrator.Run(ctx); err != nil {
		return err
	}
	migrator.Close()

	// Repositories.
	scheduleRepo := repository.NewScheduleRepository(pool)
	classLogRepo := repository.NewClassLogRepository(pool)
	ledgerRepo := repository.NewLedgerRepository(pool)
	subscriptionRepo := repository.NewSubscriptionRepository(pool)
	prepaidRepo := repository.NewPrepaidRepository(pool)
	rateRepo := repository.NewRateRepository(pool)

	// Collaborators.
	credits := creditapi.NewClient(cfg.CreditAPIURL, logger)
	sessions := session.NewProvider(cfg.JWTSecret)
	emails := notify.NewEmailService(cfg.SendgridKey, cfg.EmailFromName, cfg.EmailFrom, cfg.AdminEmail, logger)

	var alerter service.AdminAlerter
	if cfg.TelegramToken != "" && cfg.AdminChatID != "" {
		tg, err := notify.NewTelegramAlerter(cfg.TelegramToken, cfg.AdminChatID, logger)
		if err != nil {
			return fmt.Errorf("create telegram alerter: %w", err)
		}
		alerter = tg
	}

	// Services.
	settlementSvc := service.NewSettlementService(
		scheduleRepo, classLogRepo, rateRepo, credits, sessions, emails, alerter, logger,
	)
	paymentSvc := service.NewPaymentService(
		classLogRepo, ledgerRepo, subscriptionRepo, prepaidRepo, rateRepo, logger,
	)
	ledgerSvc := service.NewLedgerService(ledgerRepo, subscriptionRepo, logger)
	reportSvc := service.NewReportService(classLogRepo, emails, logger)

	reportJob := NewReportJob(reportSvc, logger)
	reportJob.Start(ctx)
	defer reportJob.Stop()

	// HTTP server.
	srv := fiber.New(fiber.Config{
		AppName:               "classledger",
		DisableStartupMessage: cfg.Environment == "production",
	})
	ctrl := controller.New(settlementSvc, paymentSvc, ledgerSvc, logger)
	ctrl.Register(srv, controller.AuthMiddleware(sessions))

	errChan := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("port", cfg.Port))
		errChan <- srv.Listen(":" + cfg.Port)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigChan:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
		return srv.Shutdown()
	}
}
