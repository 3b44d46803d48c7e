// Package shell is the display shell: the HTTP surface a browser UI talks to
// for the inventory table, format selection and report delivery.
package shell

import (
	"fmt"

	"inventory_reports/internal/delivery"
	apphttp "inventory_reports/internal/http"
	"inventory_reports/internal/inventory"
	"inventory_reports/internal/reports"
	"inventory_reports/internal/shell/handler"
	"inventory_reports/platform/logger"
	"inventory_reports/platform/validator"
)

// FormatTag is the validation tag for report format tokens.
const FormatTag = "reportformat"

// Module is the display shell module implementing http.Module.
type Module struct {
	handler *handler.Handler
	notes   *Notifications
}

// NewModule creates the shell module. notes must be the same Notifications
// the delivery service reports to.
func NewModule(store *inventory.Store, selector *reports.Selector, svc *delivery.Service, blobs handler.Blobs, notes *Notifications, val *validator.Validator, log *logger.Logger) (*Module, error) {
	if err := val.RegisterOneOf(FormatTag, reports.Tokens()); err != nil {
		return nil, fmt.Errorf("register %s validation: %w", FormatTag, err)
	}

	h := handler.New(handler.Deps{
		Store:     store,
		Selector:  selector,
		Delivery:  svc,
		Blobs:     blobs,
		Notifier:  notes,
		Validator: val,
		Log:       log,
	})
	return &Module{handler: h, notes: notes}, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "shell"
}

// Notifications returns the message buffer.
func (m *Module) Notifications() *Notifications {
	return m.notes
}

// RegisterRoutes mounts shell routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.API.GET("/items", m.handler.ListItems)
	ctx.API.GET("/items/:id", m.handler.GetItem)
	ctx.API.POST("/items", m.handler.CreateItem)
	ctx.API.PUT("/items/:id", m.handler.UpdateItem)
	ctx.API.DELETE("/items/:id", m.handler.DeleteItem)

	ctx.API.GET("/format", m.handler.GetFormat)
	ctx.API.PUT("/format", m.handler.SetFormat)

	ctx.API.POST("/reports/download", m.handler.Download)
	ctx.API.POST("/reports/sample", m.handler.DownloadSample)

	ctx.API.GET("/preview", m.handler.PreviewState)
	ctx.API.POST("/preview/inline", m.handler.OpenInlinePreview)
	ctx.API.DELETE("/preview/inline", m.handler.CloseInlinePreview)
	ctx.API.POST("/preview/external", m.handler.OpenExternalPreview)
	ctx.API.DELETE("/preview/external/:id", m.handler.CloseExternalPreview)

	ctx.API.GET("/notifications", m.handler.ListNotifications)
	ctx.API.DELETE("/notifications", m.handler.ClearNotifications)

	// Blobs live outside /api so previews are not rate limited.
	ctx.Engine.GET("/blobs/:id", m.handler.ServeBlob)
}
