package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"

	"github.com/efreitasn/fifoledger/internal/config"
	"github.com/efreitasn/fifoledger/internal/domain"
	"github.com/efreitasn/fifoledger/internal/engine"
	"github.com/efreitasn/fifoledger/internal/handler"
	"github.com/efreitasn/fifoledger/internal/metrics"
	"github.com/efreitasn/fifoledger/internal/service"
	"github.com/efreitasn/fifoledger/internal/store"
)

func loadConfig(c *cli.Context) (*config.Config, error) {
	if f := c.String("env-file"); f != "" {
		return config.Load(f)
	}
	return config.Load()
}

func newLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	// Metrics.
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Ledger and price book.
	ledger := engine.NewLedger(store.NewTradeLog(), domain.NewSymbolRegistry())
	prices := store.NewPriceBook(cfg.Prices)

	ledgerSvc := service.NewLedgerService(ledger, prices, m, logger)
	router := handler.NewRouter(ledgerSvc, m, logger, handler.RouterOptions{
		EnableReset: cfg.EnableReset,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.Int("seeded_prices", len(cfg.Prices)),
			slog.Bool("reset_enabled", cfg.EnableReset),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for SIGINT/SIGTERM or a listener failure.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serve %s: %w", addr, err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped", slog.Int("trades", ledger.TradeCount()))
	return nil
}

func healthcheck(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/healthz", cfg.Port))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return cli.Exit(fmt.Sprintf("healthz returned %d", resp.StatusCode), 1)
	}
	return nil
}
