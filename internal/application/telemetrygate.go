package application

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/haulwatch/service-tracking/internal/domain/tracking"
)

type memoEntry struct {
	snap     tracking.Snapshot
	cachedAt time.Time
}

// TelemetryGate serializes access to the headless-browser fetcher.
// Concurrent fetches across all groups share a fixed pool of browser
// slots, identical requests in flight are collapsed to one fetch, and
// fresh results are memoized briefly so a burst of commands for the
// same driver costs a single page render. Failures are never memoized.
type TelemetryGate struct {
	fetcher RawTelemetryFetcher
	logger  *zap.Logger
	sem     *semaphore.Weighted
	flights singleflight.Group
	timeout time.Duration
	ttl     time.Duration

	mu   sync.Mutex
	memo map[string]memoEntry
	now  func() time.Time
}

// NewTelemetryGate creates a gate with the given browser pool size,
// per-fetch timeout, and memo TTL.
func NewTelemetryGate(fetcher RawTelemetryFetcher, poolSize int64, timeout, ttl time.Duration, logger *zap.Logger) *TelemetryGate {
	return &TelemetryGate{
		fetcher: fetcher,
		logger:  logger,
		sem:     semaphore.NewWeighted(poolSize),
		timeout: timeout,
		ttl:     ttl,
		memo:    make(map[string]memoEntry),
		now:     time.Now,
	}
}

// Snapshot returns the current telemetry snapshot for a source URL,
// memoized per (consumerID, sourceURL). The caller's context covers
// waiting only: once a fetch is underway it runs to completion on its
// own timeout, so a caller that gives up does not cancel the result
// for other waiters.
func (g *TelemetryGate) Snapshot(ctx context.Context, consumerID, sourceURL string) (tracking.Snapshot, error) {
	key := consumerID + "|" + sourceURL

	if snap, ok := g.memoized(key); ok {
		return snap, nil
	}

	ch := g.flights.DoChan(key, func() (interface{}, error) {
		return g.fetch(key, sourceURL)
	})

	select {
	case <-ctx.Done():
		return tracking.Snapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return tracking.Snapshot{}, res.Err
		}
		return res.Val.(tracking.Snapshot), nil
	}
}

func (g *TelemetryGate) fetch(key, sourceURL string) (interface{}, error) {
	// Admission blocks until a browser slot frees up, regardless of
	// how long that takes.
	if err := g.sem.Acquire(context.Background(), 1); err != nil {
		return nil, err
	}
	defer g.sem.Release(1)

	// A fetch for this key may have finished while we queued.
	if snap, ok := g.memoized(key); ok {
		return snap, nil
	}

	fetchCtx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	start := g.now()
	pageText, err := g.fetcher.Fetch(fetchCtx, sourceURL)
	if err != nil {
		g.logger.Warn("telemetry fetch failed",
			zap.String("source_url", sourceURL),
			zap.Duration("elapsed", g.now().Sub(start)),
			zap.Error(err),
		)
		return nil, &tracking.FetchError{SourceURL: sourceURL, Err: err}
	}

	snap := tracking.ParseTelemetry(pageText, sourceURL, g.now())

	g.mu.Lock()
	g.memo[key] = memoEntry{snap: snap, cachedAt: g.now()}
	g.mu.Unlock()

	return snap, nil
}

func (g *TelemetryGate) memoized(key string) (tracking.Snapshot, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.memo[key]
	if !ok {
		return tracking.Snapshot{}, false
	}
	if g.now().Sub(entry.cachedAt) >= g.ttl {
		delete(g.memo, key)
		return tracking.Snapshot{}, false
	}
	return entry.snap, true
}
