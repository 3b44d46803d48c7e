package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"inventory_reports/internal/delivery"
	"inventory_reports/internal/inventory"
	"inventory_reports/internal/reports"
	"inventory_reports/internal/resources"
	"inventory_reports/internal/shell/transport"
	"inventory_reports/platform/apperr"
	"inventory_reports/platform/httpkit"
	"inventory_reports/platform/logger"
	"inventory_reports/platform/validator"
)

const (
	msgInvalidRequest = "invalid request"
	msgInvalidID      = "invalid item id"
)

// Notifier is the user message sink; delivery.Notifier plus listing.
type Notifier interface {
	delivery.Notifier
	Since(after uint64) []transport.NotificationResponse
	Clear()
}

// Blobs serves retained payloads.
type Blobs interface {
	Open(ctx context.Context, id string) (resources.Handle, resources.Blob, error)
}

// Deps are the collaborators of the shell handler.
type Deps struct {
	Store     *inventory.Store
	Selector  *reports.Selector
	Delivery  *delivery.Service
	Blobs     Blobs
	Notifier  Notifier
	Validator *validator.Validator
	Log       *logger.Logger
}

// Handler handles HTTP requests for the display shell.
type Handler struct {
	store    *inventory.Store
	selector *reports.Selector
	delivery *delivery.Service
	blobs    Blobs
	notes    Notifier
	val      *validator.Validator
	log      *logger.Logger
}

// New creates a new shell handler.
func New(d Deps) *Handler {
	return &Handler{
		store:    d.Store,
		selector: d.Selector,
		delivery: d.Delivery,
		blobs:    d.Blobs,
		notes:    d.Notifier,
		val:      d.Validator,
		log:      d.Log,
	}
}

// ListItems refreshes and returns the inventory table. A failed refresh
// still answers 200 with the previous snapshot marked stale.
// GET /api/items
func (h *Handler) ListItems(c *gin.Context) {
	resp := h.snapshot(c.Request.Context())
	httpkit.OK(c, resp)
}

func (h *Handler) snapshot(ctx context.Context) transport.ItemListResponse {
	err := h.store.Refresh(ctx)
	resp := transport.ToItemListResponse(h.store.Items())
	if err != nil {
		resp.Stale = true
		resp.Error = err.Error()
	}
	return resp
}

// GetItem returns one item from the store.
// GET /api/items/:id
func (h *Handler) GetItem(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	item, err := h.store.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToItemResponse(item))
}

// CreateItem adds an item and returns the refreshed table.
// POST /api/items
func (h *Handler) CreateItem(c *gin.Context) {
	var req transport.ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.BadRequest(c, msgInvalidRequest)
		return
	}

	err := h.store.Add(c.Request.Context(), inventory.NewItem(req))
	if h.mutationFailed(c, "add", err) {
		return
	}
	httpkit.Created(c, transport.ToItemListResponse(h.store.Items()))
}

// UpdateItem replaces an item and returns the refreshed table.
// PUT /api/items/:id
func (h *Handler) UpdateItem(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req transport.ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.BadRequest(c, msgInvalidRequest)
		return
	}

	err := h.store.Update(c.Request.Context(), id, inventory.NewItem(req))
	if h.mutationFailed(c, "update", err) {
		return
	}
	httpkit.OK(c, transport.ToItemListResponse(h.store.Items()))
}

// DeleteItem removes an item and returns the refreshed table.
// DELETE /api/items/:id
func (h *Handler) DeleteItem(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	err := h.store.Remove(c.Request.Context(), id)
	if h.mutationFailed(c, "remove", err) {
		return
	}
	httpkit.OK(c, transport.ToItemListResponse(h.store.Items()))
}

// mutationFailed notifies the user of a failed store mutation and writes
// the error response.
func (h *Handler) mutationFailed(c *gin.Context, action string, err error) bool {
	if err == nil {
		return false
	}
	if apperr.Is(err, apperr.KindStoreMutation) {
		h.notes.Notify(delivery.LevelError, fmt.Sprintf("Failed to %s item", action))
	}
	return httpkit.HandleError(c, err)
}

// GetFormat returns the selected report format.
// GET /api/format
func (h *Handler) GetFormat(c *gin.Context) {
	httpkit.OK(c, transport.FormatResponse{
		Format:  string(h.selector.Get()),
		Formats: reports.Tokens(),
	})
}

// SetFormat changes the selected report format. Open previews are not touched.
// PUT /api/format
func (h *Handler) SetFormat(c *gin.Context) {
	var req transport.FormatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.BadRequest(c, msgInvalidRequest)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.HandleError(c, invalidFormat(req.Format))
		return
	}
	if httpkit.HandleError(c, h.selector.SetToken(req.Format)) {
		return
	}
	h.GetFormat(c)
}

// Download generates the selected (or ?format=) report and saves it.
// POST /api/reports/download
func (h *Handler) Download(c *gin.Context) {
	format, ok := h.format(c)
	if !ok {
		return
	}
	res, err := h.delivery.Download(c.Request.Context(), format)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, res)
}

// DownloadSample saves a report rendered from sample data.
// POST /api/reports/sample
func (h *Handler) DownloadSample(c *gin.Context) {
	format, ok := h.format(c)
	if !ok {
		return
	}
	res, err := h.delivery.DownloadSample(c.Request.Context(), format)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, res)
}

// OpenInlinePreview shows a preview on the inline surface.
// POST /api/preview/inline
func (h *Handler) OpenInlinePreview(c *gin.Context) {
	format, ok := h.format(c)
	if !ok {
		return
	}
	_, err := h.delivery.InlinePreview(c.Request.Context(), format)
	if httpkit.HandleError(c, err) {
		return
	}
	h.PreviewState(c)
}

// CloseInlinePreview detaches and releases the inline preview.
// DELETE /api/preview/inline
func (h *Handler) CloseInlinePreview(c *gin.Context) {
	h.delivery.ClosePreview(c.Request.Context())
	h.PreviewState(c)
}

// PreviewState reports the inline preview state.
// GET /api/preview
func (h *Handler) PreviewState(c *gin.Context) {
	resp := transport.PreviewResponse{State: h.delivery.PreviewState()}
	if handle, ok := h.delivery.InlineHandle(); ok {
		resp.Handle = &handle
	}
	httpkit.OK(c, resp)
}

// OpenExternalPreview opens a preview in a separate display context.
// POST /api/preview/external
func (h *Handler) OpenExternalPreview(c *gin.Context) {
	format, ok := h.format(c)
	if !ok {
		return
	}
	handle, err := h.delivery.ExternalPreview(c.Request.Context(), format)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, handle)
}

// CloseExternalPreview is called by a display context that was closed.
// DELETE /api/preview/external/:id
func (h *Handler) CloseExternalPreview(c *gin.Context) {
	if httpkit.HandleError(c, h.delivery.ReleaseExternal(c.Request.Context(), c.Param("id"))) {
		return
	}
	httpkit.NoContent(c)
}

// ListNotifications returns messages newer than ?after=.
// GET /api/notifications
func (h *Handler) ListNotifications(c *gin.Context) {
	var after uint64
	if raw := c.Query("after"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			httpkit.BadRequest(c, msgInvalidRequest)
			return
		}
		after = v
	}
	httpkit.OK(c, h.notes.Since(after))
}

// ClearNotifications drops every message.
// DELETE /api/notifications
func (h *Handler) ClearNotifications(c *gin.Context) {
	h.notes.Clear()
	httpkit.NoContent(c)
}

// ServeBlob streams a live handle inline. Released handles are 404.
// GET /blobs/:id
func (h *Handler) ServeBlob(c *gin.Context) {
	handle, blob, err := h.blobs.Open(c.Request.Context(), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}

	contentType := blob.ContentType
	if contentType == "" {
		contentType = handle.Format.ContentType()
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", handle.Filename()))
	c.Header("Cache-Control", "no-store")
	c.Header("Referrer-Policy", "no-referrer")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Cross-Origin-Opener-Policy", "same-origin")
	c.Data(http.StatusOK, contentType, blob.Data)
}

// format resolves ?format= or falls back to the selector.
func (h *Handler) format(c *gin.Context) (reports.Format, bool) {
	var q transport.DeliveryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httpkit.BadRequest(c, msgInvalidRequest)
		return "", false
	}
	if q.Format == "" {
		return h.selector.Get(), true
	}
	if err := h.val.Struct(q); err != nil {
		httpkit.HandleError(c, invalidFormat(q.Format))
		return "", false
	}
	return reports.Format(q.Format), true
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		httpkit.BadRequest(c, msgInvalidID)
		return 0, false
	}
	return id, true
}

func invalidFormat(token string) error {
	return apperr.InvalidFormat(token).WithDetails(gin.H{"allowed": reports.Tokens()})
}
