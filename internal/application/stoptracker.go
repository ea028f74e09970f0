package application

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/haulwatch/service-tracking/internal/domain/tracking"
)

// StopTracker watches snapshots for stopped drivers and raises a
// single alert per stop episode once it exceeds the threshold.
// Episodes are keyed by tracker source URL, so a driver keeps one
// episode no matter how many groups follow them.
type StopTracker struct {
	logger    *zap.Logger
	threshold time.Duration

	mu       sync.Mutex
	episodes map[string]*tracking.StopEpisode
	now      func() time.Time
}

// NewStopTracker creates a StopTracker that alerts after threshold.
func NewStopTracker(threshold time.Duration, logger *zap.Logger) *StopTracker {
	return &StopTracker{
		logger:    logger,
		threshold: threshold,
		episodes:  make(map[string]*tracking.StopEpisode),
		now:       time.Now,
	}
}

// Observe feeds one snapshot into the tracker. Zero speed opens an
// episode or refreshes the location of an open one; movement closes
// it. Snapshots whose speed cannot be read are ignored, so an offline
// tracker never masquerades as a long stop.
func (t *StopTracker) Observe(snap tracking.Snapshot) {
	speed, ok := snap.SpeedMPH()
	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	key := snap.SourceURL
	if speed == 0 {
		if ep, exists := t.episodes[key]; exists {
			ep.LastLocation = snap.Location
			return
		}
		t.episodes[key] = &tracking.StopEpisode{
			StoppedSince: t.now(),
			LastLocation: snap.Location,
		}
		t.logger.Info("driver stopped", zap.String("source_url", key))
		return
	}

	if _, exists := t.episodes[key]; exists {
		delete(t.episodes, key)
		t.logger.Info("driver moving again", zap.String("source_url", key))
	}
}

// CheckExtendedStop fires exactly once per episode, on the first check
// at or past the threshold. It returns the stopped time in whole
// minutes when it fires.
func (t *StopTracker) CheckExtendedStop(sourceURL string) (bool, int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ep, ok := t.episodes[sourceURL]
	if !ok {
		return false, 0
	}
	duration := ep.Duration(t.now())
	if duration >= t.threshold && !ep.Alerted {
		ep.Alerted = true
		return true, int64(duration / time.Minute)
	}
	return false, 0
}

// StoppedFor reports how long the current episode has lasted, if one
// is open.
func (t *StopTracker) StoppedFor(sourceURL string) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ep, ok := t.episodes[sourceURL]
	if !ok {
		return 0, false
	}
	return ep.Duration(t.now()), true
}
