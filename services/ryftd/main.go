package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	nativecommon "ryft/native/common"
	"ryft/native/ryft"
	"ryft/observability"
	"ryft/observability/logging"
	telemetry "ryft/observability/otel"
	"ryft/services/ryftd/config"
	"ryft/services/ryftd/journal"
	"ryft/services/ryftd/middleware"
	"ryft/services/ryftd/runtime"
	"ryft/services/ryftd/server"
	"ryft/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/ryftd/config.toml", "path to ryftd config")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.Setup("ryftd", cfg.Environment, logging.FileConfig{
		Path:       cfg.LogFile,
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 30,
		Compress:   true,
	})

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "ryftd",
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		Ledger:      observability.Ledger().Snapshot,
	})
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		_ = shutdownTelemetry(context.Background())
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		log.Fatalf("create data dir: %v", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		log.Fatalf("open ledger store: %v", err)
	}
	defer db.Close()

	events, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		log.Fatalf("open journal: %v", err)
	}
	defer events.Close()

	engine := ryft.NewEngine(ryft.DefaultAccounts())
	pauses := nativecommon.NewPauses()
	pauses.Set(ryft.ModuleName, cfg.Ledger.Paused)
	engine.SetPauses(pauses)

	rt := runtime.New(db, engine, events, logger)
	genesis := runtime.Genesis{
		Admin:      cfg.Ledger.AdminAddress(),
		Treasury:   cfg.Ledger.TreasuryAddress(),
		FeeRateBps: cfg.Ledger.FeeRateBps,
		AllowList:  cfg.Ledger.AllowListAddresses(),
	}
	for _, account := range cfg.Genesis {
		genesis.Accounts = append(genesis.Accounts, runtime.Allocation{Address: account.Addr(), Balance: account.Balance})
	}
	if err := rt.Bootstrap(context.Background(), genesis); err != nil {
		log.Fatalf("bootstrap ledger: %v", err)
	}

	limits := make(map[string]middleware.RateLimit, len(cfg.RateLimits))
	for _, limit := range cfg.RateLimits {
		limits[limit.Route] = middleware.RateLimit{RequestsPerMinute: limit.RequestsPerMinute, Burst: limit.Burst}
	}
	srv := server.New(server.Config{
		Auth: middleware.AuthConfig{
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ClockSkew:  cfg.Auth.SkewDuration(),
		},
		RateLimits:  limits,
		ServiceName: "ryftd",
		LogRequests: cfg.IsDev(),
	}, rt, events, logger)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           otelhttp.NewHandler(srv.Handler(), "ryftd"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("ryftd listening", slog.String("address", cfg.ListenAddress))
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("forcing server stop", slog.String("error", err.Error()))
			_ = httpServer.Close()
		}
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve http", slog.String("error", err.Error()))
		}
	}
}
