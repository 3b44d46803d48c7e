// Package delivery turns rendered reports into something the user sees:
// a saved file, an inline preview or a preview in a separate context.
package delivery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"inventory_reports/internal/reclaim"
	"inventory_reports/internal/reports"
	"inventory_reports/internal/resources"
	"inventory_reports/platform/apperr"
	"inventory_reports/platform/logger"
	"inventory_reports/platform/metrics"
)

// Delivery mode names, used in metrics and logs.
const (
	ModeDownload        = "download"
	ModeSample          = "sample"
	ModeInlinePreview   = "inline_preview"
	ModeExternalPreview = "external_preview"
)

// PreviewState is the state of the inline preview.
type PreviewState string

const (
	PreviewClosed  PreviewState = "closed"
	PreviewOpening PreviewState = "opening"
	PreviewOpen    PreviewState = "open"
)

// Config holds the collaborators of a Service. Notifier, Scheduler and
// Metrics are optional.
type Config struct {
	Requester Requester
	Handles   Handles
	Saver     Saver
	Surface   Surface
	Opener    Opener
	Notifier  Notifier
	Scheduler reclaim.Scheduler
	Metrics   *metrics.Metrics
	Log       *logger.Logger

	// ExternalPreviewTTL bounds how long an externally shown handle lives
	// when closure is never observed. Zero keeps it until shutdown.
	ExternalPreviewTTL time.Duration
}

// Errors returned by InlinePreview for payloads that arrive too late to be
// shown. Neither payload is wrapped.
var (
	ErrPreviewDiscarded  = apperr.Conflict("preview was closed before it arrived")
	ErrPreviewSuperseded = apperr.Conflict("a newer preview is already shown")
)

// DownloadResult describes a finished download.
type DownloadResult struct {
	Handle   resources.Handle `json:"handle"`
	Filename string           `json:"filename"`
	Path     string           `json:"path"`
}

// Service runs the delivery modes. Each call makes its own report request
// and owns its own handle.
type Service struct {
	requester Requester
	handles   Handles
	saver     Saver
	surface   Surface
	opener    Opener
	notifier  Notifier
	scheduler reclaim.Scheduler
	metrics   *metrics.Metrics
	log       *logger.Logger
	extTTL    time.Duration

	// swapMu serializes inline preview completions so that release of the
	// previous handle always happens before the next wrap.
	swapMu sync.Mutex

	mu      sync.Mutex
	pending int
	// gen numbers inline requests in issue order. Requests at or below
	// closedGen were cancelled by ClosePreview; requests below settledGen
	// lost to a newer one that already reached the surface.
	gen        uint64
	closedGen  uint64
	settledGen uint64
	inline     *resources.Handle
	external   map[string]struct{}

	done      chan struct{}
	closeOnce sync.Once
	watchers  sync.WaitGroup
}

// NewService creates a delivery service.
func NewService(cfg Config) *Service {
	s := &Service{
		requester: cfg.Requester,
		handles:   cfg.Handles,
		saver:     cfg.Saver,
		surface:   cfg.Surface,
		opener:    cfg.Opener,
		notifier:  cfg.Notifier,
		scheduler: cfg.Scheduler,
		metrics:   cfg.Metrics,
		log:       cfg.Log,
		extTTL:    cfg.ExternalPreviewTTL,
		external:  make(map[string]struct{}),
		done:      make(chan struct{}),
	}
	if s.notifier == nil {
		s.notifier = noopNotifier{}
	}
	if s.surface == nil {
		s.surface = &InlineSurface{}
	}
	return s
}

// Download requests a generated report, wraps it, hands it to the saver as
// inventory-report.<ext> and releases the handle.
func (s *Service) Download(ctx context.Context, format reports.Format) (DownloadResult, error) {
	res, err := s.save(ctx, format, reports.ModeGenerate, format.Filename())
	s.finish(ctx, ModeDownload, format, err)
	if err == nil {
		s.notifier.Notify(LevelInfo, fmt.Sprintf("Saved %s", res.Filename))
	}
	return res, err
}

// DownloadSample saves a report rendered from the service's sample data.
func (s *Service) DownloadSample(ctx context.Context, format reports.Format) (DownloadResult, error) {
	name := reports.DownloadBaseName + "-sample." + format.Extension()
	res, err := s.save(ctx, format, reports.ModeSample, name)
	s.finish(ctx, ModeSample, format, err)
	if err == nil {
		s.notifier.Notify(LevelInfo, fmt.Sprintf("Saved %s", res.Filename))
	}
	return res, err
}

func (s *Service) save(ctx context.Context, format reports.Format, mode reports.Mode, filename string) (DownloadResult, error) {
	payload, err := s.requester.Request(ctx, format, mode)
	if err != nil {
		return DownloadResult{}, err
	}

	h, err := s.handles.Wrap(ctx, payload)
	if err != nil {
		return DownloadResult{}, err
	}
	defer s.release(ctx, h.ID, resources.ReasonSaved)

	_, blob, err := s.handles.Open(ctx, h.ID)
	if err != nil {
		return DownloadResult{}, err
	}

	path, err := s.saver.Save(ctx, filename, blob)
	if err != nil {
		return DownloadResult{}, apperr.Wrap(apperr.KindInternal, "could not save "+filename, err).WithOp("delivery.download")
	}
	return DownloadResult{Handle: h, Filename: filename, Path: path}, nil
}

// InlinePreview requests a preview and shows it on the inline surface. The
// previously shown handle is released before the new payload is wrapped, so
// at most one inline handle is outstanding. A payload that arrives after a
// newer request has settled is dropped, so the surface ends on the newest.
func (s *Service) InlinePreview(ctx context.Context, format reports.Format) (resources.Handle, error) {
	s.mu.Lock()
	s.gen++
	my := s.gen
	s.pending++
	s.mu.Unlock()

	payload, reqErr := s.requester.Request(ctx, format, reports.ModePreview)

	s.swapMu.Lock()
	defer s.swapMu.Unlock()

	s.mu.Lock()
	s.pending--
	latest := my == s.gen
	discarded := my <= s.closedGen
	superseded := my < s.settledGen
	if !discarded && !superseded {
		s.settledGen = my
	}
	s.mu.Unlock()

	if discarded {
		s.log.WithContext(ctx).Debug("inline preview discarded after close", "format", format)
		return resources.Handle{}, ErrPreviewDiscarded
	}
	if superseded {
		s.log.WithContext(ctx).Debug("inline preview superseded by a newer request", "format", format)
		return resources.Handle{}, ErrPreviewSuperseded
	}

	if reqErr != nil {
		if latest {
			s.dropInline(ctx, resources.ReasonClosed)
		}
		s.finish(ctx, ModeInlinePreview, format, reqErr)
		return resources.Handle{}, reqErr
	}

	s.dropInline(ctx, resources.ReasonSuperseded)

	h, err := s.handles.Wrap(ctx, payload)
	if err != nil {
		s.finish(ctx, ModeInlinePreview, format, err)
		return resources.Handle{}, err
	}

	s.mu.Lock()
	s.inline = &h
	s.mu.Unlock()
	s.surface.Attach(h)

	s.finish(ctx, ModeInlinePreview, format, nil)
	return h, nil
}

// ClosePreview detaches and releases the inline preview. Requests still in
// flight are discarded when they arrive.
func (s *Service) ClosePreview(ctx context.Context) {
	s.mu.Lock()
	s.closedGen = s.gen
	s.mu.Unlock()

	s.swapMu.Lock()
	defer s.swapMu.Unlock()
	s.dropInline(ctx, resources.ReasonClosed)
}

// dropInline detaches and releases the current inline handle. Callers hold swapMu.
func (s *Service) dropInline(ctx context.Context, reason string) {
	s.mu.Lock()
	prev := s.inline
	s.inline = nil
	s.mu.Unlock()

	if prev == nil {
		return
	}
	s.surface.Detach()
	s.release(ctx, prev.ID, reason)
}

// PreviewState reports Opening while an inline request is pending, Open
// while a handle is shown and Closed otherwise.
func (s *Service) PreviewState() PreviewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.pending > 0:
		return PreviewOpening
	case s.inline != nil:
		return PreviewOpen
	default:
		return PreviewClosed
	}
}

// InlineHandle returns the handle shown inline, if any.
func (s *Service) InlineHandle() (resources.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inline == nil {
		return resources.Handle{}, false
	}
	return *s.inline, true
}

// ExternalPreview requests a preview and opens it in a separate context. The
// handle is released when the opener reports closure or, failing that, by the
// reclaim scheduler after the configured TTL.
func (s *Service) ExternalPreview(ctx context.Context, format reports.Format) (resources.Handle, error) {
	payload, err := s.requester.Request(ctx, format, reports.ModePreview)
	if err != nil {
		s.finish(ctx, ModeExternalPreview, format, err)
		return resources.Handle{}, err
	}

	h, err := s.handles.Wrap(ctx, payload)
	if err != nil {
		s.finish(ctx, ModeExternalPreview, format, err)
		return resources.Handle{}, err
	}

	closed, err := s.opener.Open(ctx, h)
	if err != nil {
		s.release(ctx, h.ID, resources.ReasonClosed)
		err = apperr.Wrap(apperr.KindInternal, "could not open the preview", err).WithOp("delivery.external_preview")
		s.finish(ctx, ModeExternalPreview, format, err)
		return resources.Handle{}, err
	}

	s.trackExternal(h.ID)
	if s.scheduler != nil && s.extTTL > 0 {
		if err := s.scheduler.Schedule(context.WithoutCancel(ctx), h.ID, s.extTTL); err != nil {
			s.log.Warn("could not schedule preview reclaim", "handle_id", h.ID, "error", err)
		}
	}
	if closed != nil {
		s.watch(h.ID, closed)
	}

	s.finish(ctx, ModeExternalPreview, format, nil)
	return h, nil
}

// ReleaseExternal releases an externally shown handle, for displays that
// report closure out of band. Only handles handed out by ExternalPreview are
// accepted; anything else, the inline handle included, is NotFound.
func (s *Service) ReleaseExternal(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.external[id]
	delete(s.external, id)
	s.mu.Unlock()

	if !ok {
		return apperr.NotFound("no external preview with id " + id).WithOp("delivery.release_external")
	}
	if s.scheduler != nil {
		s.scheduler.Cancel(ctx, id)
	}
	s.release(ctx, id, resources.ReasonClosed)
	return nil
}

// trackExternal records id as externally shown and forgets ids the reclaim
// scheduler has already released.
func (s *Service) trackExternal(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for known := range s.external {
		if !s.handles.Live(known) {
			delete(s.external, known)
		}
	}
	s.external[id] = struct{}{}
}

func (s *Service) watch(id string, closed <-chan struct{}) {
	s.watchers.Add(1)
	go func() {
		defer s.watchers.Done()
		select {
		case <-closed:
			_ = s.ReleaseExternal(context.Background(), id)
		case <-s.done:
		}
	}()
}

// Close stops closure watchers. Outstanding handles are released by the
// resource manager on shutdown.
func (s *Service) Close() {
	s.closeOnce.Do(func() { close(s.done) })
	s.watchers.Wait()
}

func (s *Service) release(ctx context.Context, id, reason string) {
	if err := s.handles.ReleaseByID(context.WithoutCancel(ctx), id, reason); err != nil {
		s.log.Warn("handle release failed", "handle_id", id, "reason", reason, "error", err)
	}
}

func (s *Service) finish(ctx context.Context, mode string, format reports.Format, err error) {
	s.metrics.RecordDelivery(mode, err)
	if err == nil {
		s.log.WithContext(ctx).Info("delivery completed", "mode", mode, "format", format)
		return
	}
	s.log.WithContext(ctx).Warn("delivery failed", "mode", mode, "format", format, "error", err)
	s.notifier.Notify(LevelError, FailureMessage(format, err))
}

// FailureMessage phrases err for the user, naming the likely cause.
func FailureMessage(format reports.Format, err error) string {
	if d, ok := reports.FailureDetails(err); ok {
		if d.StatusCode != 0 {
			return fmt.Sprintf("Could not get the %s report: the report service at %s returned status %d.", format, d.ServiceURL, d.StatusCode)
		}
		return fmt.Sprintf("Could not get the %s report. Is the report service running at %s?", format, d.ServiceURL)
	}
	if e, ok := apperr.As(err); ok {
		return fmt.Sprintf("Could not deliver the %s report: %s.", format, e.Message)
	}
	return fmt.Sprintf("Could not deliver the %s report.", format)
}
