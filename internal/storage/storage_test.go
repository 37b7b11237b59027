package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/artifex-heritage/artifex/internal/catalogue"
	"github.com/artifex-heritage/artifex/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := New()
	store.now = func() time.Time { return now }

	store.Set("live", &models.AdminSession{Token: "live", ExpiresAt: now.Add(time.Hour)})
	store.Set("stale", &models.AdminSession{Token: "stale", ExpiresAt: now.Add(-time.Minute)})
	store.Set("forever", &models.AdminSession{Token: "forever"})

	got, ok := store.Get("live")
	require.True(t, ok)
	assert.Equal(t, "live", got.Token)

	_, ok = store.Get("stale")
	assert.False(t, ok, "expired sessions must not be returned")
	assert.Len(t, store.GetAll(), 2, "expired session is dropped on access")

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, store.Prune())
	_, ok = store.Get("forever")
	assert.True(t, ok, "sessions without expiry never expire")

	store.Delete("forever")
	assert.Empty(t, store.GetAll())
}

func rec(id, name string) models.CatalogueRecord {
	return models.CatalogueRecord{ID: id, Name: name, Category: "Mukhas", Keywords: models.Keywords{}}
}

func snapshotIDs(s *SnapshotStore) []string {
	c, _ := s.Snapshot()
	out := []string{}
	for _, r := range c {
		out = append(out, r.ID)
	}
	return out
}

func TestSnapshotStore_InitialState(t *testing.T) {
	s := NewSnapshotStore()
	c, status := s.Snapshot()
	assert.Empty(t, c)
	assert.False(t, status.Loaded)
	assert.NoError(t, status.Err)
	assert.False(t, s.Fetching())

	s.Begin()
	assert.True(t, s.Fetching())
}

func TestSnapshotStore_LastInitiatedWins(t *testing.T) {
	s := NewSnapshotStore()

	first := s.Begin()
	second := s.Begin()

	assert.True(t, s.Commit(second, catalogue.Catalogue{rec("new", "New")}))
	assert.False(t, s.Commit(first, catalogue.Catalogue{rec("old", "Old")}), "stale result must be discarded")
	assert.Equal(t, []string{"new"}, snapshotIDs(s))

	third := s.Begin()
	fourth := s.Begin()
	assert.False(t, s.Fail(third, errors.New("late failure")))
	_, status := s.Snapshot()
	assert.NoError(t, status.Err, "a superseded failure must not surface")

	assert.True(t, s.Fail(fourth, catalogue.ErrFetchFailed))
	c, status := s.Snapshot()
	assert.ErrorIs(t, status.Err, catalogue.ErrFetchFailed)
	assert.True(t, status.Loaded)
	assert.Len(t, c, 1, "a failed fetch keeps the previous snapshot")
	assert.False(t, s.Commit(fourth, catalogue.Catalogue{}), "a ticket settles once")
}

func TestSnapshotStore_CloseGuard(t *testing.T) {
	s := NewSnapshotStore()
	ticket := s.Begin()
	s.Close()

	assert.False(t, s.Commit(ticket, catalogue.Catalogue{rec("1", "A")}))
	assert.False(t, s.Fail(ticket, errors.New("x")))
	assert.False(t, s.Remove("1"))
	assert.False(t, s.Replace(rec("1", "B")))
	_, status := s.Snapshot()
	assert.False(t, status.Loaded)
}

func TestSnapshotStore_Patches(t *testing.T) {
	s := NewSnapshotStore()
	s.Commit(s.Begin(), catalogue.Catalogue{rec("1", "A"), rec("2", "B"), rec("3", "C")})

	before, _ := s.Snapshot()

	assert.True(t, s.Replace(rec("2", "B2")))
	assert.True(t, s.Remove("1"))
	assert.False(t, s.Remove("missing"))
	assert.False(t, s.Replace(rec("missing", "X")))

	after, _ := s.Snapshot()
	assert.Equal(t, []string{"2", "3"}, snapshotIDs(s))
	assert.Equal(t, "B2", after[0].Name)
	assert.Equal(t, "B", before[1].Name, "earlier snapshots are never mutated")
	assert.Len(t, before, 3)
}

func TestSnapshotStore_TryBegin(t *testing.T) {
	s := NewSnapshotStore()

	ticket, ok := s.TryBegin()
	require.True(t, ok)
	_, ok = s.TryBegin()
	assert.False(t, ok, "a fetch is already outstanding")

	require.NoError(t, s.Settle(context.Background(), ticket, fakeFetcher{c: catalogue.Catalogue{rec("1", "A")}}))
	assert.Equal(t, []string{"1"}, snapshotIDs(s))

	_, ok = s.TryBegin()
	assert.True(t, ok, "the previous fetch has settled")

	s.Close()
	_, ok = s.TryBegin()
	assert.False(t, ok)
}

func TestSnapshotStore_ReplaceKeepsTimestamps(t *testing.T) {
	s := NewSnapshotStore()
	held := rec("2", "B")
	held.CreatedAt = "2024-03-01T10:00:00Z"
	held.UpdatedAt = "2024-03-02T10:00:00Z"
	s.Commit(s.Begin(), catalogue.Catalogue{held})

	require.True(t, s.Replace(rec("2", "B2")))
	c, _ := s.Snapshot()
	assert.Equal(t, "B2", c[0].Name)
	assert.Equal(t, "2024-03-01T10:00:00Z", c[0].CreatedAt)
	assert.Equal(t, "2024-03-02T10:00:00Z", c[0].UpdatedAt)

	echoed := rec("2", "B3")
	echoed.UpdatedAt = "2024-04-01T09:00:00Z"
	require.True(t, s.Replace(echoed))
	c, _ = s.Snapshot()
	assert.Equal(t, "2024-03-01T10:00:00Z", c[0].CreatedAt)
	assert.Equal(t, "2024-04-01T09:00:00Z", c[0].UpdatedAt)
}

func TestSnapshotStore_PatchesSurviveInFlightFetch(t *testing.T) {
	s := NewSnapshotStore()
	s.Commit(s.Begin(), catalogue.Catalogue{rec("1", "A"), rec("2", "B")})

	ticket := s.Begin()
	s.Remove("1")
	s.Replace(rec("2", "B2"))

	// the fetch was started before the edits reached the backend
	s.Commit(ticket, catalogue.Catalogue{rec("1", "A"), rec("2", "B"), rec("4", "D")})

	c, _ := s.Snapshot()
	assert.Equal(t, []string{"2", "4"}, snapshotIDs(s))
	assert.Equal(t, "B2", c[0].Name)

	// a fetch begun after the edits supersedes them
	s.Commit(s.Begin(), catalogue.Catalogue{rec("1", "A")})
	assert.Equal(t, []string{"1"}, snapshotIDs(s))
}

type fakeFetcher struct {
	c   catalogue.Catalogue
	err error
}

func (f fakeFetcher) Fetch(ctx context.Context) (catalogue.Catalogue, error) {
	return f.c, f.err
}

func TestSnapshotStore_Refresh(t *testing.T) {
	s := NewSnapshotStore()

	require.NoError(t, s.Refresh(context.Background(), fakeFetcher{c: catalogue.Catalogue{rec("1", "A")}}))
	assert.Equal(t, []string{"1"}, snapshotIDs(s))

	err := s.Refresh(context.Background(), fakeFetcher{err: catalogue.ErrFetchFailed})
	assert.ErrorIs(t, err, catalogue.ErrFetchFailed)
	_, status := s.Snapshot()
	assert.ErrorIs(t, status.Err, catalogue.ErrFetchFailed)
	assert.False(t, s.Fetching())
}

func TestSnapshotStore_ConcurrentReaders(t *testing.T) {
	s := NewSnapshotStore()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c, _ := s.Snapshot()
				_ = catalogue.Filter(c, catalogue.Query{FreeText: "a"})
			}
		}()
	}
	for i := 0; i < 50; i++ {
		s.Commit(s.Begin(), catalogue.Catalogue{rec("1", "A"), rec("2", "B")})
		s.Remove("1")
	}
	wg.Wait()

	assert.Equal(t, []string{"2"}, snapshotIDs(s))
}
