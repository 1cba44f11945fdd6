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

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	temporalworker "go.temporal.io/sdk/worker"

	"example.com/bazaar-store/internal/assistant"
	"example.com/bazaar-store/internal/config"
	"example.com/bazaar-store/internal/datasync"
	"example.com/bazaar-store/internal/dispatch"
	"example.com/bazaar-store/internal/localcache"
	"example.com/bazaar-store/internal/logging"
	"example.com/bazaar-store/internal/mirror"
	"example.com/bazaar-store/internal/secret"
	"example.com/bazaar-store/internal/sqliteutil"
	"example.com/bazaar-store/internal/storefront"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file")
		dbPath     = flag.String("db", "", "path to the local cache sqlite database (overrides config)")
		addr       = flag.String("addr", "", "HTTP listen address for the storefront API (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.New().Error("load config failed", "error", err)
		os.Exit(1)
	}
	if *dbPath != "" {
		cfg.Storefront.DB = *dbPath
	}
	if *addr != "" {
		cfg.Storefront.Addr = *addr
	}

	ctx := context.Background()
	logger := logging.NewWithOptions(cfg.Logging())

	db, err := sqliteutil.Open(cfg.Storefront.DB)
	if err != nil {
		logger.Error("open local cache failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cache := localcache.New(db, logger.With("component", "localcache"))
	if err := cache.Init(ctx); err != nil {
		logger.Error("init local cache schema failed", "error", err)
		os.Exit(1)
	}

	sealer, err := loadSealer(cfg.Storefront)
	if err != nil {
		logger.Error("load sealing key failed", "error", err)
		os.Exit(1)
	}

	mirrorOpts := mirror.Options{Table: cfg.Mirror.Table, Timeout: cfg.Mirror.Timeout}
	factory := func(c mirror.Credentials) (mirror.Mirror, error) { return mirror.Open(c, mirrorOpts) }

	dispatcher, temporalClient := newDispatcher(cfg, logger)
	orch := datasync.New(cache, factory, logger, datasync.WithDispatcher(dispatcher), datasync.WithSealer(sealer))
	var mirrorWorker temporalworker.Worker
	if temporalClient != nil {
		defer temporalClient.Close()
		w := dispatch.RegisterWorker(temporalClient, orch.Mirror, logger)
		if err := w.Start(); err != nil {
			logger.Error("temporal worker failed to start, remote writes will queue until a worker runs", "error", err)
		} else {
			mirrorWorker = w
		}
	}

	svc := storefront.NewService(orch, logger)
	svc.Load(ctx)

	chatClient, err := assistant.NewChatClient(ctx, cfg.Assistant.APIKey, cfg.Assistant.Model)
	switch {
	case err != nil:
		logger.Warn("assistant disabled", "error", err)
	case chatClient == nil:
		logger.Warn("assistant API key missing, assistant replies will be unavailable")
	}
	chat := assistant.NewService(chatClient, svc.Products, logger)

	auth, err := storefront.NewAdminAuth(cfg.Storefront.AdminUser, cfg.Storefront.AdminPasswordHash, cfg.Storefront.AdminPassword)
	if err != nil {
		logger.Error("admin credentials not configured", "error", err)
		os.Exit(1)
	}

	serverLogger := logger.With("component", "storefront.http")
	server := &http.Server{
		Addr:              cfg.Storefront.Addr,
		Handler:           storefront.NewServer(svc, chat, auth, serverLogger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		serverLogger.Info("storefront API listening", "addr", cfg.Storefront.Addr, "db", cfg.Storefront.DB, "mode", orch.Mode())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverLogger.Error("storefront server error", "error", err)
		}
	}()

	waitForShutdown(serverLogger, server)
	var stopper interface{ Stop() }
	if mirrorWorker != nil {
		stopper = mirrorWorker
	}
	drain(logger, dispatcher, stopper, orch)
}

// drain releases the sync pipeline once the HTTP server has stopped. Pending
// dispatches are flushed, then the worker finishes its activities, and only
// then is the mirror they resolve through the orchestrator closed.
func drain(logger *slog.Logger, dispatcher any, w interface{ Stop() }, orch interface{ Close() error }) {
	if c, ok := dispatcher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			logger.Warn("close dispatcher failed", "error", err)
		}
	}
	if w != nil {
		w.Stop()
	}
	if err := orch.Close(); err != nil {
		logger.Warn("close mirror failed", "error", err)
	}
}

func loadSealer(cfg config.StorefrontConfig) (*secret.Sealer, error) {
	var (
		key []byte
		err error
	)
	if cfg.SecretKey != "" {
		key, err = secret.ParseKey(cfg.SecretKey)
	} else {
		key, err = secret.LoadOrCreateKeyFile(cfg.SecretKeyFile)
	}
	if err != nil {
		return nil, err
	}
	return secret.NewSealer(key)
}

// newDispatcher returns the Temporal dispatcher and its client when a host is
// configured and reachable, the goroutine dispatcher otherwise.
func newDispatcher(cfg config.Config, logger *slog.Logger) (datasync.Dispatcher, client.Client) {
	if cfg.Temporal.HostPort == "" {
		return dispatch.NewGoroutine(cfg.Mirror.Timeout, logger), nil
	}
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(logger.With("component", "temporal")),
	})
	if err != nil {
		logger.Warn("temporal unreachable, dispatching remote writes in-process", "host_port", cfg.Temporal.HostPort, "error", err)
		return dispatch.NewGoroutine(cfg.Mirror.Timeout, logger), nil
	}
	logger.Info("temporal dispatcher enabled", "host_port", cfg.Temporal.HostPort, "task_queue", dispatch.TaskQueue())
	return dispatch.NewTemporal(c, logger), c
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
	logger.Info("storefront server stopped")
}
