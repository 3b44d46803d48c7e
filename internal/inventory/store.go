package inventory

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"inventory_reports/platform/apperr"
	"inventory_reports/platform/logger"
	"inventory_reports/platform/sanitize"
	"inventory_reports/platform/validator"
)

// ItemsAPI is the remote side of the store.
type ItemsAPI interface {
	List(ctx context.Context) ([]Item, error)
	Get(ctx context.Context, id int64) (Item, error)
	Create(ctx context.Context, in NewItem) (Item, error)
	Update(ctx context.Context, id int64, in NewItem) (Item, error)
	Delete(ctx context.Context, id int64) error
}

// Store keeps the last fetched snapshot of the item list. Mutations go to
// the remote API first; the snapshot only changes after a successful refresh.
type Store struct {
	api ItemsAPI
	val *validator.Validator
	log *logger.Logger

	mu     sync.RWMutex
	items  []Item
	loaded bool
}

// NewStore creates a store over api.
func NewStore(api ItemsAPI, val *validator.Validator, log *logger.Logger) *Store {
	return &Store{api: api, val: val, log: log, items: []Item{}}
}

// Refresh replaces the snapshot with the current remote list. On failure the
// previous snapshot (possibly empty) is kept and a StoreFetchFailed error is returned.
func (s *Store) Refresh(ctx context.Context) error {
	items, err := s.api.List(ctx)
	if err != nil {
		s.log.StoreError("list_items", err)
		return apperr.Wrap(apperr.KindStoreFetch, "could not load inventory items", err).WithOp("inventory.refresh")
	}

	s.mu.Lock()
	s.items = items
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// Items returns a copy of the snapshot.
func (s *Store) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Loaded reports whether at least one refresh succeeded.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// GrandTotal sums the snapshot.
func (s *Store) GrandTotal() Money {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return GrandTotal(s.items)
}

// Get fetches a single item from the remote store.
func (s *Store) Get(ctx context.Context, id int64) (Item, error) {
	item, err := s.api.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return Item{}, apperr.NotFound("item not found").WithOp("inventory.get")
		}
		s.log.StoreError("get_item", err)
		return Item{}, apperr.Wrap(apperr.KindStoreFetch, "could not load item", err).WithOp("inventory.get")
	}
	return item, nil
}

// Add validates and creates an item, then refreshes the snapshot.
func (s *Store) Add(ctx context.Context, in NewItem) error {
	in.Name = sanitize.Line(in.Name)
	if err := s.val.Struct(in); err != nil {
		return apperr.Wrap(apperr.KindValidation, validator.Describe(err), err).WithOp("inventory.add")
	}
	if _, err := s.api.Create(ctx, in); err != nil {
		s.log.StoreError("create_item", err)
		return apperr.Wrap(apperr.KindStoreMutation, "failed to add item", err).WithOp("inventory.add")
	}
	s.refreshAfterMutation(ctx)
	return nil
}

// Update validates and replaces an item, then refreshes the snapshot.
func (s *Store) Update(ctx context.Context, id int64, in NewItem) error {
	in.Name = sanitize.Line(in.Name)
	if err := s.val.Struct(in); err != nil {
		return apperr.Wrap(apperr.KindValidation, validator.Describe(err), err).WithOp("inventory.update")
	}
	if _, err := s.api.Update(ctx, id, in); err != nil {
		if isNotFound(err) {
			return apperr.NotFound("item not found").WithOp("inventory.update")
		}
		s.log.StoreError("update_item", err)
		return apperr.Wrap(apperr.KindStoreMutation, "failed to update item", err).WithOp("inventory.update")
	}
	s.refreshAfterMutation(ctx)
	return nil
}

// Remove deletes an item, then refreshes the snapshot.
func (s *Store) Remove(ctx context.Context, id int64) error {
	if err := s.api.Delete(ctx, id); err != nil {
		s.log.StoreError("delete_item", err)
		return apperr.Wrap(apperr.KindStoreMutation, "failed to remove item", err).WithOp("inventory.remove")
	}
	s.refreshAfterMutation(ctx)
	return nil
}

// refreshAfterMutation reloads the list; a failed reload leaves the stale
// snapshot in place and is only logged because the mutation itself succeeded.
func (s *Store) refreshAfterMutation(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil {
		s.log.Warn("inventory snapshot is stale after mutation", "error", err)
	}
}

func isNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}
