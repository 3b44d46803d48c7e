package delivery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/browser"

	"inventory_reports/internal/reports"
	"inventory_reports/internal/resources"
)

// Requester fetches a rendered report.
type Requester interface {
	Request(ctx context.Context, format reports.Format, mode reports.Mode) (reports.Payload, error)
}

// Handles is the part of resources.Manager that delivery uses.
type Handles interface {
	Wrap(ctx context.Context, p reports.Payload) (resources.Handle, error)
	ReleaseByID(ctx context.Context, id, reason string) error
	Open(ctx context.Context, id string) (resources.Handle, resources.Blob, error)
	Live(id string) bool
}

// Saver persists a downloaded report and returns where it went.
type Saver interface {
	Save(ctx context.Context, filename string, blob resources.Blob) (string, error)
}

// Surface is the inline preview area of the display.
type Surface interface {
	Attach(h resources.Handle)
	Detach()
}

// Opener shows a handle in a new, isolated display context. The returned
// channel is closed when the context is known to be closed; nil means
// closure cannot be observed.
type Opener interface {
	Open(ctx context.Context, h resources.Handle) (<-chan struct{}, error)
}

// Notifier receives user facing messages.
type Notifier interface {
	Notify(level Level, message string)
}

// Level of a notification.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// FileSaver writes downloads into a directory.
type FileSaver struct {
	Dir string
}

// Save writes blob to Dir/filename through a temp file so readers never see
// a partial report.
func (s FileSaver) Save(_ context.Context, filename string, blob resources.Blob) (string, error) {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filename+".*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(blob.Data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close %s: %w", filename, err)
	}

	target := filepath.Join(dir, filename)
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("rename to %s: %w", target, err)
	}
	return target, nil
}

// BrowserOpener opens handle URLs in the system browser. The browser does
// not report tab closure, so the handle is left to the reclaim scheduler.
type BrowserOpener struct{}

func (BrowserOpener) Open(_ context.Context, h resources.Handle) (<-chan struct{}, error) {
	if h.URL == "" {
		return nil, errors.New("handle has no url")
	}
	if err := browser.OpenURL(h.URL); err != nil {
		return nil, fmt.Errorf("open browser: %w", err)
	}
	return nil, nil
}

// LinkOpener only publishes the URL, for headless use. Closure is never observed.
type LinkOpener struct {
	mu    sync.Mutex
	links []string
}

func (o *LinkOpener) Open(_ context.Context, h resources.Handle) (<-chan struct{}, error) {
	o.mu.Lock()
	o.links = append(o.links, h.URL)
	o.mu.Unlock()
	return nil, nil
}

// Links returns every URL handed out so far.
func (o *LinkOpener) Links() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.links...)
}

// InlineSurface keeps the currently attached handle for the shell to render.
type InlineSurface struct {
	mu         sync.RWMutex
	current    *resources.Handle
	attachedAt time.Time
}

func (s *InlineSurface) Attach(h resources.Handle) {
	s.mu.Lock()
	s.current = &h
	s.attachedAt = time.Now()
	s.mu.Unlock()
}

func (s *InlineSurface) Detach() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}

// Current returns the attached handle, if any.
func (s *InlineSurface) Current() (resources.Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return resources.Handle{}, false
	}
	return *s.current, true
}

type noopNotifier struct{}

func (noopNotifier) Notify(Level, string) {}
