package http

import (
	"context"

	"inventory_reports/platform/config"
	"inventory_reports/platform/logger"
	"inventory_reports/platform/metrics"
)

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App holds the fully initialized application dependencies.
// This is populated by main.go (the composition root) and passed to the router.
type App struct {
	// Config holds the HTTP settings.
	Config config.HTTPConfig
	// Logger is the structured logger.
	Logger *logger.Logger
	// Metrics is exposed on /metrics when set.
	Metrics *metrics.Metrics
	// Health is used for readiness checks (report service reachability).
	Health HealthChecker
	// Modules contains all HTTP-facing modules.
	Modules []Module
}
