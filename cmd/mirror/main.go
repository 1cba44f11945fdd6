package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/bazaar-store/internal/config"
	"example.com/bazaar-store/internal/logging"
	"example.com/bazaar-store/internal/mirror"
	"example.com/bazaar-store/internal/sqliteutil"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file")
		dbPath     = flag.String("db", "", "path to the mirror sqlite database file (overrides config)")
		addr       = flag.String("addr", "", "HTTP listen address for the mirror API (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.New().Error("load config failed", "error", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.Mirror.DB = *dbPath
	}
	if *addr != "" {
		cfg.Mirror.Addr = *addr
	}

	ctx := context.Background()
	logger := logging.NewWithOptions(cfg.Logging())

	if cfg.Mirror.AccessKey == "" {
		logger.Error("mirror access key is required (mirror.access_key or MIRROR_ACCESS_KEY)")
		os.Exit(1)
	}

	db, err := sqliteutil.Open(cfg.Mirror.DB)
	if err != nil {
		logger.Error("open mirror db failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store, err := mirror.NewStore(db, cfg.Mirror.Table)
	if err != nil {
		logger.Error("configure mirror table failed", "error", err)
		os.Exit(1)
	}
	if err := store.Init(ctx); err != nil {
		logger.Error("init mirror schema failed", "error", err)
		os.Exit(1)
	}

	serverLogger := logger.With("component", "mirror.http")
	server := &http.Server{
		Addr:              cfg.Mirror.Addr,
		Handler:           mirror.NewServer(store, cfg.Mirror.AccessKey, serverLogger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		serverLogger.Info("mirror API listening", "addr", cfg.Mirror.Addr, "db", cfg.Mirror.DB, "table", store.Table())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverLogger.Error("mirror server error", "error", err)
		}
	}()

	waitForShutdown(serverLogger, server)
}

func waitForShutdown(logger *slog.Logger, server *http.Server) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		return
	}
	logger.Info("mirror server stopped")
}
