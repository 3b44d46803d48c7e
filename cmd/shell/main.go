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

	"golang.org/x/sync/errgroup"

	"inventory_reports/internal/delivery"
	apphttp "inventory_reports/internal/http"
	"inventory_reports/internal/http/router"
	"inventory_reports/internal/inventory"
	"inventory_reports/internal/reclaim"
	"inventory_reports/internal/reports"
	"inventory_reports/internal/resources"
	"inventory_reports/internal/shell"
	"inventory_reports/platform/config"
	"inventory_reports/platform/logger"
	"inventory_reports/platform/metrics"
	"inventory_reports/platform/resilience"
	"inventory_reports/platform/validator"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting display shell", "env", cfg.Env, "addr", cfg.HTTPAddr, "report_service", cfg.GetReportServiceURL())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("display shell stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("display shell stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	m := metrics.New("inventory_reports")
	val := validator.New()

	// ========================================================================
	// Report service and inventory store
	// ========================================================================

	requester := newRequester(cfg, log, m)
	itemsClient := inventory.NewClient(cfg.GetReportServiceURL(), cfg.GetRequestTimeout())
	store := inventory.NewStore(itemsClient, val, log)
	if err := store.Refresh(ctx); err != nil {
		log.Warn("initial inventory load failed; starting with an empty table", "error", err)
	}

	initial, err := reports.ParseFormat(cfg.GetDefaultFormat())
	if err != nil {
		log.Warn("DEFAULT_FORMAT is not a report format; using pdf", "value", cfg.GetDefaultFormat())
		initial = reports.FormatPDF
	}
	selector := reports.NewSelector(initial)

	// ========================================================================
	// Resource lifecycle
	// ========================================================================

	blobStore, linker, closeStore, err := newBlobStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	manager := resources.NewManager(blobStore, linker, log, resources.WithMetrics(m))
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := manager.Close(releaseCtx); err != nil {
			log.Warn("releasing outstanding handles failed", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	scheduler, err := newScheduler(cfg, manager, log)
	if err != nil {
		return err
	}
	defer func() { _ = scheduler.Close() }()
	if worker, ok := scheduler.(*reclaim.AsynqScheduler); ok {
		g.Go(func() error { return worker.Run(gctx) })
	}

	// ========================================================================
	// Delivery and shell
	// ========================================================================

	notes := shell.NewNotifications(0, log)
	var opener delivery.Opener = &delivery.LinkOpener{}
	if cfg.GetOpenBrowser() {
		opener = delivery.BrowserOpener{}
	}

	deliverySvc := delivery.NewService(delivery.Config{
		Requester:          requester,
		Handles:            manager,
		Saver:              delivery.FileSaver{Dir: cfg.GetDownloadDir()},
		Surface:            &delivery.InlineSurface{},
		Opener:             opener,
		Notifier:           notes,
		Scheduler:          scheduler,
		Metrics:            m,
		Log:                log,
		ExternalPreviewTTL: cfg.GetExternalPreviewTTL(),
	})
	defer deliverySvc.Close()

	shellModule, err := shell.NewModule(store, selector, deliverySvc, manager, notes, val, log)
	if err != nil {
		return err
	}

	app := &apphttp.App{
		Config:  cfg,
		Logger:  log,
		Metrics: m,
		Health:  reportServiceHealth{client: itemsClient},
		Modules: []apphttp.Module{shellModule},
	}
	engine := router.New(app)

	srv := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Info("server listening", "addr", srv.Addr, "public_url", cfg.GetPublicBaseURL())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newRequester(cfg *config.Config, log *logger.Logger, m *metrics.Metrics) *reports.Requester {
	opts := []reports.Option{
		reports.WithMetrics(m),
		reports.WithRateLimit(cfg.GetReportRateLimit(), cfg.GetReportRateBurst()),
	}
	if cfg.GetBreakerEnabled() {
		cbCfg := resilience.DefaultCircuitBreakerConfig("report-service")
		cbCfg.FailureThreshold = cfg.GetBreakerFailureThreshold()
		cbCfg.Timeout = cfg.GetBreakerOpenTimeout()
		opts = append(opts, reports.WithCircuitBreaker(resilience.NewCircuitBreaker(cbCfg, log, m.SetCircuitBreakerState)))
	}
	if cfg.GetDedupeInFlight() {
		opts = append(opts, reports.WithInFlightDedupe())
	}
	return reports.NewRequester(cfg.GetReportServiceURL(), cfg.GetRequestTimeout(), log, opts...)
}

// newBlobStore picks the payload store for BLOB_BACKEND. MinIO also links
// handles through presigned URLs; the others are served from /blobs/:id.
func newBlobStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (resources.BlobStore, resources.Linker, func(), error) {
	local := resources.BaseURLLinker{BaseURL: cfg.GetPublicBaseURL()}

	switch cfg.GetBlobBackend() {
	case config.BlobBackendRedis:
		rs, err := resources.NewRedisStore(cfg.GetRedisURL(), cfg.GetRedisBlobTTL())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to initialize redis blob store: %w", err)
		}
		if err := withRetry(ctx, log, "redis ping", 5, time.Second, func() error { return rs.Ping(ctx) }); err != nil {
			_ = rs.Close()
			return nil, nil, nil, err
		}
		log.Info("blob store ready", "backend", "redis")
		return rs, local, func() { _ = rs.Close() }, nil

	case config.BlobBackendMinIO:
		ms, err := resources.NewMinIOStore(cfg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to initialize storage service: %w", err)
		}
		if err := withRetry(ctx, log, "ensure reports bucket", 5, 2*time.Second, func() error {
			return ms.EnsureBucketExists(ctx)
		}); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to ensure storage bucket exists: %w", err)
		}
		log.Info("blob store ready", "backend", "minio", "bucket", cfg.GetMinIOBucketReports())
		return ms, ms, func() {}, nil

	default:
		log.Info("blob store ready", "backend", "memory")
		return resources.NewMemoryStore(), local, func() {}, nil
	}
}

// newScheduler reclaims external previews through Redis when it is
// configured and through in-process timers otherwise.
func newScheduler(cfg *config.Config, manager *resources.Manager, log *logger.Logger) (reclaim.Scheduler, error) {
	if !cfg.IsRedisEnabled() {
		log.Info("REDIS_URL not configured; external previews reclaimed by in-process timers")
		return reclaim.NewTimerScheduler(manager, log), nil
	}
	s, err := reclaim.NewAsynqScheduler(cfg.GetRedisURL(), manager, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize reclaim scheduler: %w", err)
	}
	return s, nil
}

type reportServiceHealth struct {
	client *inventory.Client
}

func (h reportServiceHealth) Ping(ctx context.Context) error {
	_, err := h.client.List(ctx)
	return err
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
