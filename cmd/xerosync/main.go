package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/lnbridge/xerosync/internal/adapter/driven/lnbits"
	sqliteadapter "github.com/lnbridge/xerosync/internal/adapter/driven/sqlite"
	xeroadapter "github.com/lnbridge/xerosync/internal/adapter/driven/xero"
	httphandler "github.com/lnbridge/xerosync/internal/adapter/driving/http"
	"github.com/lnbridge/xerosync/internal/application"
	"github.com/lnbridge/xerosync/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"public_url", cfg.PublicURL,
		"sweep_interval", cfg.SweepInterval,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire driven adapters.
	credentialStore := sqliteadapter.NewCredentialRepo(db, cfg.SecretKey)
	settingsStore := sqliteadapter.NewSettingsRepo(db, cfg.SecretKey)
	walletStore := sqliteadapter.NewWalletRepo(db)
	attemptStore := sqliteadapter.NewAttemptRepo(db)

	// 6. OAuth manager and Xero API client. The client pulls access tokens
	// from the manager on every call and asks it to refresh on 401s.
	oauthMgr := application.NewOAuthManager(credentialStore, settingsStore, cfg.RedirectURL(), slog.Default())
	xeroClient := xeroadapter.NewClient(oauthMgr, slog.Default())

	ledger := lnbits.NewLedger(cfg.LedgerURL, cfg.LedgerAPIKey, slog.Default())
	if cfg.LedgerURL == "" {
		slog.Warn("XEROSYNC_LNBITS_URL not set, payment pushes will fail until configured")
	}

	// 7. Sync service and optional scheduled sweep.
	syncSvc := application.NewSyncService(walletStore, attemptStore, ledger, xeroClient, settingsStore, slog.Default())
	if cfg.SweepInterval > 0 {
		runner := application.NewTaskRunner(walletStore, syncSvc, cfg.SweepInterval, slog.Default())
		go runner.Start(ctx)
		slog.Info("scheduled sweep enabled", "interval", cfg.SweepInterval)
	}

	// 8. HTTP surface.
	apiHandler := httphandler.NewHandler(settingsStore, walletStore, attemptStore, xeroClient, oauthMgr, syncSvc, cfg.AdminUserID, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, cfg.APIKey, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("xerosync started", "listen_addr", cfg.ListenAddr)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
