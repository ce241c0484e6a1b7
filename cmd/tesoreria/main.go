package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"tesoreria/internal/backend"
	"tesoreria/internal/cli"
	apphttp "tesoreria/internal/http"
	applog "tesoreria/internal/log"
	"tesoreria/internal/services"
)

func main() {
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig(cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentApp))
	logger := cli.SetupLogger(cfg.LogLevel, applog.ComponentApp)

	ctx := context.Background()
	res := cli.InitBackend(ctx, logger, cfg)
	svc := cli.NewLedgerService(ctx, res, cfg)

	retry := services.NewRetryProcessor(svc.Reconciler(), services.RetryProcessorConfig{
		Interval:    cfg.RetryInterval,
		MaxAttempts: cfg.RetryMaxAttempts,
	})
	runCtx, stopRetry := context.WithCancel(ctx)
	defer stopRetry()
	if err := retry.Start(runCtx); err != nil {
		logger.Error("Failed to start retry processor", "error", err)
		os.Exit(1)
	}

	opts := []apphttp.Option{apphttp.WithLogger(applog.New(applog.Config{Handler: logger.Handler(), Component: applog.ComponentHTTP}))}
	if p, ok := res.Store.(backend.Pinger); ok {
		opts = append(opts, apphttp.WithPinger(p))
	}
	srv := apphttp.NewServer(":"+cfg.Port, svc, opts...)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := retry.Stop(ctx); err != nil {
			logger.Warn("Retry processor did not stop in time", "error", err)
		}
		// One last attempt so a recovered store gets the pending changes
		if err := svc.Reconciler().Retry(ctx); err != nil {
			logger.Error("Store still misses ledger changes at shutdown", "error", err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting tesoreria server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"amqp", res.Publisher != nil,
		"movements", svc.Ledger().Len())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
