// Package resources owns the lifecycle of retained report payloads. A payload
// is wrapped into a Handle that carries an addressable URL; the bytes live in
// a BlobStore until the handle is released.
package resources

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"inventory_reports/internal/reports"
)

// ErrBlobNotFound is returned by a BlobStore for unknown or expired ids.
var ErrBlobNotFound = errors.New("blob not found")

// Blob is the stored form of a payload.
type Blob struct {
	ContentType string
	Data        []byte
}

// BlobStore keeps payload bytes addressed by handle id.
type BlobStore interface {
	Put(ctx context.Context, id string, blob Blob) error
	Get(ctx context.Context, id string) (Blob, error)
	Delete(ctx context.Context, id string) error
}

// Linker turns a handle into a URL that a display surface can load.
type Linker interface {
	Link(ctx context.Context, h Handle) (string, error)
}

// Handle is an addressable reference to a retained payload.
type Handle struct {
	ID          string         `json:"id"`
	URL         string         `json:"url"`
	Format      reports.Format `json:"format"`
	ContentType string         `json:"contentType"`
	Size        int            `json:"size"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// Filename is the save name for the handle's payload.
func (h Handle) Filename() string {
	return h.Format.Filename()
}

// BaseURLLinker serves handles from the shell's own blob endpoint.
type BaseURLLinker struct {
	BaseURL string
}

// Link returns {BaseURL}/blobs/{id}.
func (l BaseURLLinker) Link(_ context.Context, h Handle) (string, error) {
	return strings.TrimRight(l.BaseURL, "/") + "/blobs/" + h.ID, nil
}

// MemoryStore keeps blobs in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]Blob
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string]Blob)}
}

func (s *MemoryStore) Put(_ context.Context, id string, blob Blob) error {
	data := make([]byte, len(blob.Data))
	copy(data, blob.Data)
	s.mu.Lock()
	s.blobs[id] = Blob{ContentType: blob.ContentType, Data: data}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Blob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[id]
	if !ok {
		return Blob{}, ErrBlobNotFound
	}
	return blob, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.blobs, id)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored blobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
