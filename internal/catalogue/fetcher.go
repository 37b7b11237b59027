package catalogue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/artifex-heritage/artifex/internal/frontql"
	"github.com/artifex-heritage/artifex/internal/snapshot"
)

// ErrFetchFailed marks a catalogue read that could not complete. It is
// retry-eligible and never fatal to the caller.
var ErrFetchFailed = errors.New("catalogue fetch failed")

const (
	recordFields = "id,name,category,keywords,imageUrl,created_at,updated_at"
	newestFirst  = "-created_at"
)

// Source yields the raw catalogue rows in display order.
type Source interface {
	Rows(ctx context.Context) ([]json.RawMessage, error)
}

// RemoteSource reads the collection from the hosted backend in a single page.
type RemoteSource struct {
	Client     *frontql.Client
	Collection string
	PageSize   int
}

func (s *RemoteSource) Rows(ctx context.Context) ([]json.RawMessage, error) {
	pageSize := s.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	resp, err := s.Client.List(ctx, s.Collection, frontql.ListParams{
		Fields: recordFields,
		Sort:   newestFirst,
		Page:   fmt.Sprintf("1,%d", pageSize),
	})
	if err != nil {
		return nil, err
	}
	if resp.Count > len(resp.Rows) {
		slog.Warn("Catalogue larger than one page, extra rows not fetched", "count", resp.Count, "fetched", len(resp.Rows))
	}
	return resp.Rows, nil
}

// FileSource reads a previously exported snapshot file.
type FileSource struct {
	Path string
}

func (s *FileSource) Rows(ctx context.Context) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return snapshot.Load(s.Path)
}

// Fetcher loads and normalizes the catalogue from a Source.
type Fetcher struct {
	source  Source
	timeout time.Duration
	retries int
	backoff time.Duration
}

// NewFetcher creates a fetcher. A zero timeout disables the per-attempt deadline;
// retries is the number of extra attempts after the first failure.
func NewFetcher(source Source, timeout time.Duration, retries int) *Fetcher {
	if retries < 0 {
		retries = 0
	}
	return &Fetcher{
		source:  source,
		timeout: timeout,
		retries: retries,
		backoff: 500 * time.Millisecond,
	}
}

// Fetch reads the whole catalogue once. Every failure is wrapped in ErrFetchFailed.
func (f *Fetcher) Fetch(ctx context.Context) (Catalogue, error) {
	start := time.Now()

	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			slog.Warn("Retrying catalogue fetch", "attempt", attempt+1, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", ErrFetchFailed, ctx.Err())
			case <-time.After(f.backoff):
			}
		}

		rows, err := f.attempt(ctx)
		if err == nil {
			records := NormalizeAll(rows)
			slog.Info("Catalogue fetched", "records", len(records), "rows", len(rows), "duration", time.Since(start))
			return Catalogue(records), nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	return nil, fmt.Errorf("%w: %w", ErrFetchFailed, lastErr)
}

func (f *Fetcher) attempt(ctx context.Context) ([]json.RawMessage, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	return f.source.Rows(ctx)
}
