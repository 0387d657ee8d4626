package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpapi "github.com/parcelgate/parcelgate/internal/adapter/inbound/http"
	fileaudit "github.com/parcelgate/parcelgate/internal/adapter/outbound/audit"
	celeval "github.com/parcelgate/parcelgate/internal/adapter/outbound/cel"
	"github.com/parcelgate/parcelgate/internal/adapter/outbound/memory"
	"github.com/parcelgate/parcelgate/internal/adapter/outbound/sqlite"
	"github.com/parcelgate/parcelgate/internal/config"
	"github.com/parcelgate/parcelgate/internal/domain/audit"
	"github.com/parcelgate/parcelgate/internal/domain/auth"
	"github.com/parcelgate/parcelgate/internal/domain/document"
	"github.com/parcelgate/parcelgate/internal/domain/principal"
	"github.com/parcelgate/parcelgate/internal/domain/rules"
	"github.com/parcelgate/parcelgate/internal/domain/upload"
	"github.com/parcelgate/parcelgate/internal/service"

	"github.com/prometheus/client_golang/prometheus"
)

var serveDevMode bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP decision API",
	Long: `Starts the decision API and serves it until interrupted.

In --dev mode authentication is optional and logging switches to debug.
Never use --dev on a non-loopback address in production.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveDevMode, "dev", false, "development mode: debug logging, auth optional")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return err
	}
	if serveDevMode {
		cfg.DevMode = true
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if file := config.ConfigFileUsed(); file != "" {
		logger.Info("loaded config", "file", file)
	} else {
		logger.Info("no config file found, using defaults")
	}
	if cfg.DevMode {
		logger.Warn("running in dev mode, authentication is optional")
	}

	// Stop on the first signal; a second signal kills the process outright.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, storeOK, err := openDocumentStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closer, ok := store.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				logger.Error("failed to close document store", "error", err)
			}
		}
	}()

	trailStore, err := openAuditStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := trailStore.Close(); err != nil {
			logger.Error("failed to close audit trail", "error", err)
		}
	}()

	trail := service.NewAuditService(trailStore, logger,
		service.WithChannelSize(cfg.Audit.ChannelSize),
		service.WithBatchSize(cfg.Audit.BatchSize),
		service.WithFlushInterval(cfg.Audit.FlushIntervalDuration()),
		service.WithSendTimeout(cfg.Audit.SendTimeoutDuration()),
	)
	trail.Start(ctx)
	defer trail.Stop()

	resolver := principal.NewDirectoryResolver(store, logger)

	evaluator, err := celeval.NewEvaluator()
	if err != nil {
		return fmt.Errorf("failed to build overlay environment: %w", err)
	}
	overlayRules := make([]service.OverlayRule, 0, len(cfg.Overlays))
	for _, o := range cfg.Overlays {
		overlayRules = append(overlayRules, service.OverlayRule{Name: o.Name, Condition: o.Condition})
	}
	overlays, err := service.CompileOverlays(evaluator, overlayRules)
	if err != nil {
		return err
	}
	if len(overlays) > 0 {
		logger.Info("compiled overlay rules", "count", len(overlays))
	}

	engine := service.NewDecisionService(
		rules.NewTable(resolver),
		upload.NewTable(resolver),
		resolver,
		evaluator,
		overlays,
		trail,
		logger,
	)

	keyring, err := auth.NewKeyring(cfg.Auth.APIKeys)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	metrics := httpapi.NewMetrics(registry, trail.DroppedRecords)
	health := httpapi.NewHealthChecker(trail, storeOK, Version)

	handler := httpapi.NewHandler(engine, trail, metrics, health, logger)
	var h http.Handler = handler.Routes(registry)
	h = httpapi.APIKeyMiddleware(keyring)(h)
	h = httpapi.MetricsMiddleware(metrics)(h)
	h = httpapi.RequestIDMiddleware(logger)(h)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	return nil
}

// openDocumentStore builds the configured backend and a liveness probe
// for the health endpoint.
func openDocumentStore(cfg *config.Config, logger *slog.Logger) (document.Store, func() error, error) {
	switch cfg.Store.Backend {
	case "sqlite":
		store, err := sqlite.Open(cfg.Store.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		logger.Info("using sqlite document store", "path", cfg.Store.Path)
		probe := func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_, err := store.Get(ctx, "users", "__health__")
			if errors.Is(err, document.ErrNotFound) {
				return nil
			}
			return err
		}
		return store, probe, nil
	default:
		logger.Info("using in-memory document store")
		return memory.NewDocumentStore(), func() error { return nil }, nil
	}
}

func openAuditStore(cfg *config.Config, logger *slog.Logger) (audit.Store, error) {
	if dir, ok := strings.CutPrefix(cfg.Audit.Output, "file://"); ok {
		store, err := fileaudit.NewFileStore(fileaudit.FileStoreConfig{
			Dir:           dir,
			RetentionDays: cfg.Audit.RetentionDays,
			CacheSize:     cfg.Audit.CacheSize,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit trail: %w", err)
		}
		logger.Info("writing audit trail to files", "dir", dir)
		return store, nil
	}
	return memory.NewAuditStore(cfg.Audit.CacheSize), nil
}
