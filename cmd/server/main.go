// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/estatechain/ledger-backend/internal/config"
	cronrunner "github.com/estatechain/ledger-backend/internal/cron"
	"github.com/estatechain/ledger-backend/internal/database"
	"github.com/estatechain/ledger-backend/internal/i18n"
	"github.com/estatechain/ledger-backend/internal/logging"
	"github.com/estatechain/ledger-backend/internal/middleware"
	"github.com/estatechain/ledger-backend/internal/router"
	"github.com/estatechain/ledger-backend/internal/services"
	"github.com/estatechain/ledger-backend/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log)

	utils.SetJWTSecret(cfg.JWT.SecretKey)
	utils.SetJWTIssuer(cfg.JWT.Issuer)

	db, err := database.Initialize(cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close(db)

	if err := database.RunMigrations(db); err != nil {
		logrus.WithError(err).Fatal("Failed to run migrations")
	}

	if err := i18n.Initialize(); err != nil {
		logrus.WithError(err).Fatal("Failed to initialize i18n")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := services.NewStorageService(cfg.AWS)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to configure report storage")
	}
	var archive services.ReportArchive
	if storage != nil {
		archive = storage
	}

	svc := router.NewServices(db, archive)
	auditLogger := middleware.NewAuditLogger(db)
	r := router.Initialize(ctx, router.Deps{
		DB:          db,
		Config:      cfg,
		Services:    svc,
		AuditLogger: auditLogger,
	})

	jobs := cronrunner.New(ctx)
	if _, err := jobs.Add("ledger-audit", cfg.Ledger.AuditSchedule, func(ctx context.Context) error {
		_, err := svc.Audit.Run(ctx, cfg.Ledger.AuditRepair)
		return err
	}); err != nil {
		logrus.WithError(err).Fatal("Failed to schedule ledger audit")
	}

	if cfg.Blockchain.VerifySettlements {
		verifier, closeChain, err := services.ConnectBlockchainService(ctx, db, cfg.Blockchain)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to connect settlement verifier")
		}
		defer closeChain()

		if _, err := jobs.Add("settlement-verify", cfg.Ledger.VerifySchedule, func(ctx context.Context) error {
			_, err := verifier.VerifyPending(ctx)
			return err
		}); err != nil {
			logrus.WithError(err).Fatal("Failed to schedule settlement verification")
		}
	}
	jobs.Start()

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		logrus.WithField("addr", srv.Addr).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}
	jobs.Stop()
	auditLogger.Wait()

	logrus.Info("Server exited")
}
