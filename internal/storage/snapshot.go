package storage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/artifex-heritage/artifex/internal/catalogue"
	"github.com/artifex-heritage/artifex/internal/models"
)

// Fetcher produces a fresh catalogue.
type Fetcher interface {
	Fetch(ctx context.Context) (catalogue.Catalogue, error)
}

// patch is a local edit applied to the held catalogue.
type patch func(catalogue.Catalogue) (catalogue.Catalogue, bool)

// SnapshotStore holds the current catalogue snapshot.
//
// Fetches are ordered by initiation: Begin issues a ticket and only the
// newest ticket may settle the store. Local patches made while that fetch is
// outstanding are replayed onto its result, so a slow fetch cannot undo them.
// After Close every settle and patch is ignored.
type SnapshotStore struct {
	mu      sync.RWMutex
	records catalogue.Catalogue
	loaded  bool
	lastErr error
	issued  uint64
	settled uint64
	closed  bool
	pending []patch
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{records: catalogue.Catalogue{}}
}

// Begin starts a fetch and returns its ticket.
func (s *SnapshotStore) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	s.pending = nil
	return s.issued
}

// TryBegin starts a fetch unless one is already outstanding or the store is
// closed. The check and the ticket issue happen under one lock.
func (s *SnapshotStore) TryBegin() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.issued > s.settled {
		return 0, false
	}
	s.issued++
	s.pending = nil
	return s.issued, true
}

// Commit installs c if ticket is the newest fetch. It reports whether c was applied.
func (s *SnapshotStore) Commit(ticket uint64, c catalogue.Catalogue) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(ticket) {
		slog.Debug("Discarding stale catalogue", "ticket", ticket, "latest", s.issued, "closed", s.closed)
		return false
	}

	next := make(catalogue.Catalogue, len(c))
	copy(next, c)
	for _, p := range s.pending {
		if patched, ok := p(next); ok {
			next = patched
		}
	}

	s.records = next
	s.loaded = true
	s.lastErr = nil
	s.settled = ticket
	s.pending = nil
	return true
}

// Fail records err for ticket if it is the newest fetch. The previous snapshot is kept.
func (s *SnapshotStore) Fail(ticket uint64, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(ticket) {
		slog.Debug("Discarding stale fetch failure", "ticket", ticket, "latest", s.issued, "error", err)
		return false
	}
	s.lastErr = err
	s.settled = ticket
	s.pending = nil
	return true
}

func (s *SnapshotStore) current(ticket uint64) bool {
	return !s.closed && ticket == s.issued && ticket > s.settled
}

// Close stops the store from accepting any further results or patches.
func (s *SnapshotStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.pending = nil
}

// Refresh runs one fetch through the ticket protocol.
func (s *SnapshotStore) Refresh(ctx context.Context, f Fetcher) error {
	return s.Settle(ctx, s.Begin(), f)
}

// Settle runs f and settles ticket with its result.
func (s *SnapshotStore) Settle(ctx context.Context, ticket uint64, f Fetcher) error {
	c, err := f.Fetch(ctx)
	if err != nil {
		s.Fail(ticket, err)
		return err
	}
	s.Commit(ticket, c)
	return nil
}

// Remove drops the record with id. It reports whether a record was removed.
func (s *SnapshotStore) Remove(id string) bool {
	return s.apply(func(c catalogue.Catalogue) (catalogue.Catalogue, bool) {
		for i := range c {
			if c[i].ID == id {
				next := make(catalogue.Catalogue, 0, len(c)-1)
				next = append(next, c[:i]...)
				return append(next, c[i+1:]...), true
			}
		}
		return c, false
	})
}

// Replace swaps in rec for the record with the same id, keeping its position.
// Timestamps rec does not carry are kept from the held record.
// It reports whether a record was replaced.
func (s *SnapshotStore) Replace(rec models.CatalogueRecord) bool {
	return s.apply(func(c catalogue.Catalogue) (catalogue.Catalogue, bool) {
		for i := range c {
			if c[i].ID == rec.ID {
				next := make(catalogue.Catalogue, len(c))
				copy(next, c)
				if rec.CreatedAt == "" {
					rec.CreatedAt = c[i].CreatedAt
				}
				if rec.UpdatedAt == "" {
					rec.UpdatedAt = c[i].UpdatedAt
				}
				next[i] = rec
				return next, true
			}
		}
		return c, false
	})
}

func (s *SnapshotStore) apply(p patch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if s.issued > s.settled {
		s.pending = append(s.pending, p)
	}
	next, ok := p(s.records)
	if ok {
		s.records = next
	}
	return ok
}

// Snapshot returns the held catalogue and its status. The slice is never
// mutated after it is returned.
func (s *SnapshotStore) Snapshot() (catalogue.Catalogue, catalogue.Status) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records, catalogue.Status{Loaded: s.loaded, Err: s.lastErr}
}

// Fetching reports whether the newest fetch has not settled yet.
func (s *SnapshotStore) Fetching() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.issued > s.settled
}
