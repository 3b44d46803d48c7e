// Package http provides HTTP server infrastructure including the Module interface
// that every shell module implements for route registration.
package http

import (
	"inventory_reports/platform/config"

	"github.com/gin-gonic/gin"
)

// Module represents a bounded context that can register its HTTP routes.
// Each module implements this interface to encapsulate its own route setup,
// keeping the router decoupled from specific endpoints.
type Module interface {
	// Name returns the module's identifier for logging purposes.
	Name() string
	// RegisterRoutes mounts the module's routes on the provided router context.
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext provides shared dependencies for module route registration.
type RouterContext struct {
	// Engine is the root Gin engine for modules that serve outside /api.
	Engine *gin.Engine
	// API is the /api route group, rate limited.
	API *gin.RouterGroup
	// Config is the HTTP configuration.
	Config config.HTTPConfig
}
