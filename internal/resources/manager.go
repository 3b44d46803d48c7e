package resources

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"inventory_reports/internal/reports"
	"inventory_reports/platform/apperr"
	"inventory_reports/platform/logger"
	"inventory_reports/platform/metrics"
)

// Release reasons, used as the metrics label and in logs.
const (
	ReasonReleased   = "released"
	ReasonSaved      = "saved"
	ReasonSuperseded = "superseded"
	ReasonClosed     = "closed"
	ReasonReclaimed  = "reclaimed"
	ReasonShutdown   = "shutdown"
)

// Manager wraps payloads into handles and releases them. Release is
// idempotent: only the first call for a handle touches the store.
type Manager struct {
	store   BlobStore
	linker  Linker
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu   sync.Mutex
	live map[string]Handle
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMetrics publishes handle counts.
func WithMetrics(m *metrics.Metrics) ManagerOption {
	return func(mg *Manager) { mg.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(mg *Manager) { mg.now = now }
}

// NewManager creates a manager over store; linker produces handle URLs.
func NewManager(store BlobStore, linker Linker, log *logger.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		linker: linker,
		log:    log,
		now:    time.Now,
		live:   make(map[string]Handle),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Wrap retains p and returns a fresh handle, distinct for every call.
func (m *Manager) Wrap(ctx context.Context, p reports.Payload) (Handle, error) {
	h := Handle{
		ID:          uuid.NewString(),
		Format:      p.Format,
		ContentType: p.ContentType,
		Size:        p.Size(),
		CreatedAt:   m.now().UTC(),
	}

	if err := m.store.Put(ctx, h.ID, Blob{ContentType: p.ContentType, Data: p.Data}); err != nil {
		return Handle{}, apperr.Wrap(apperr.KindInternal, "could not retain report", err).WithOp("resources.wrap")
	}

	url, err := m.linker.Link(ctx, h)
	if err != nil {
		_ = m.store.Delete(ctx, h.ID)
		return Handle{}, apperr.Wrap(apperr.KindInternal, "could not address report", err).WithOp("resources.wrap")
	}
	h.URL = url

	m.mu.Lock()
	m.live[h.ID] = h
	n := len(m.live)
	m.mu.Unlock()

	m.metrics.SetHandlesOutstanding(n)
	m.log.HandleEvent("wrapped", h.ID, n)
	return h, nil
}

// Release frees the handle. Releasing an already released handle is a no-op.
func (m *Manager) Release(ctx context.Context, h Handle) error {
	return m.ReleaseByID(ctx, h.ID, ReasonReleased)
}

// ReleaseByID frees the handle with the given id and records why.
func (m *Manager) ReleaseByID(ctx context.Context, id, reason string) error {
	m.mu.Lock()
	_, ok := m.live[id]
	if ok {
		delete(m.live, id)
	}
	n := len(m.live)
	m.mu.Unlock()

	if !ok {
		return nil
	}

	m.metrics.SetHandlesOutstanding(n)
	m.metrics.RecordRelease(reason)
	m.log.HandleEvent(reason, id, n)

	if err := m.store.Delete(ctx, id); err != nil {
		m.log.Warn("blob delete failed after release", "handle_id", id, "error", err)
		return apperr.Wrap(apperr.KindInternal, "could not free report", err).WithOp("resources.release")
	}
	return nil
}

// Open returns the handle and its bytes while it is live.
func (m *Manager) Open(ctx context.Context, id string) (Handle, Blob, error) {
	m.mu.Lock()
	h, ok := m.live[id]
	m.mu.Unlock()
	if !ok {
		return Handle{}, Blob{}, apperr.NotFound("report is no longer available").WithOp("resources.open")
	}

	blob, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrBlobNotFound) {
			return Handle{}, Blob{}, apperr.NotFound("report is no longer available").WithOp("resources.open")
		}
		return Handle{}, Blob{}, apperr.Wrap(apperr.KindInternal, "could not load report", err).WithOp("resources.open")
	}
	if blob.ContentType == "" {
		blob.ContentType = h.ContentType
	}
	return h, blob, nil
}

// Live reports whether id is wrapped and not yet released.
func (m *Manager) Live(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live[id]
	return ok
}

// Outstanding is the number of wrapped but unreleased handles.
func (m *Manager) Outstanding() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// Close releases every outstanding handle.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.live))
	for id := range m.live {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := m.ReleaseByID(ctx, id, ReasonShutdown); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
