package application

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/haulwatch/service-tracking/internal/domain/tracking"
)

type distanceEntry struct {
	miles      float64
	recordedAt time.Time
	origin     string
}

// DistanceResolver computes distance and travel time from a driver's
// location to a destination. It degrades through three methods: the
// commercial distance matrix, road routing over geocoded coordinates,
// and finally a straight-line estimate.
//
// Every successful result for a known consumer passes an
// anti-regression check: with telemetry pages refreshing unevenly, a
// distance that grows while the previous reading is still fresh points
// at a routing glitch rather than a driver moving backwards, and is
// rejected.
type DistanceResolver struct {
	maps   CommercialMaps
	router RoadRouter
	geo    *GeoResolver
	logger *zap.Logger
	ttl    time.Duration

	mu       sync.Mutex
	lastGood map[string]distanceEntry
	now      func() time.Time
}

// NewDistanceResolver creates a DistanceResolver. maps and router may
// be nil when the corresponding provider is not configured.
func NewDistanceResolver(maps CommercialMaps, router RoadRouter, geo *GeoResolver, ttl time.Duration, logger *zap.Logger) *DistanceResolver {
	return &DistanceResolver{
		maps:     maps,
		router:   router,
		geo:      geo,
		logger:   logger,
		ttl:      ttl,
		lastGood: make(map[string]distanceEntry),
		now:      time.Now,
	}
}

// Resolve computes the distance from origin to destination. consumerID
// scopes the anti-regression check; pass "" to skip it. Failures are
// reported as *tracking.DistanceError.
func (r *DistanceResolver) Resolve(ctx context.Context, consumerID, origin, destination string) (tracking.Distance, error) {
	origin = tracking.SanitizeAddress(origin)
	destination = tracking.SanitizeAddress(destination)

	if r.maps != nil && r.maps.Enabled() && r.maps.MatrixEnabled() {
		dist, ok, err := r.maps.RoadDistance(ctx, origin, destination)
		if err != nil {
			r.logger.Warn("distance matrix lookup failed", zap.Error(err))
		} else if ok {
			if err := r.accept(consumerID, destination, origin, dist.Miles); err != nil {
				return tracking.Distance{}, err
			}
			return dist, nil
		}
	}

	from, err := r.geo.Resolve(ctx, origin)
	if err != nil {
		return tracking.Distance{}, &tracking.DistanceError{Reason: "origin could not be geocoded", Err: err}
	}
	to, err := r.geo.Resolve(ctx, destination)
	if err != nil {
		return tracking.Distance{}, &tracking.DistanceError{Reason: "destination could not be geocoded", Err: err}
	}

	if r.router != nil {
		dist, ok, err := r.router.Route(ctx, from, to)
		if err != nil {
			r.logger.Warn("road routing failed", zap.Error(err))
		} else if ok {
			if err := r.accept(consumerID, destination, origin, dist.Miles); err != nil {
				return tracking.Distance{}, err
			}
			return dist, nil
		}
	}

	dist := tracking.EstimateDistance(from, to)
	r.logger.Info("using straight-line distance estimate",
		zap.String("origin", origin),
		zap.String("destination", destination),
		zap.Float64("miles", dist.Miles),
	)
	if err := r.accept(consumerID, destination, origin, dist.Miles); err != nil {
		return tracking.Distance{}, err
	}
	return dist, nil
}

// accept runs the anti-regression check and records the reading. A
// rejected reading leaves the previous record untouched.
func (r *DistanceResolver) accept(consumerID, destination, origin string, miles float64) error {
	if consumerID == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := consumerID + "|" + destination
	now := r.now()
	if entry, ok := r.lastGood[key]; ok {
		if now.Sub(entry.recordedAt) < r.ttl && miles > entry.miles {
			r.logger.Warn("distance regression rejected",
				zap.String("consumer_id", consumerID),
				zap.Float64("previous_miles", entry.miles),
				zap.Float64("new_miles", miles),
			)
			return &tracking.DistanceError{Reason: "regression"}
		}
	}
	r.lastGood[key] = distanceEntry{miles: miles, recordedAt: now, origin: origin}
	return nil
}
