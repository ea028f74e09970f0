package application

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/haulwatch/service-tracking/internal/domain/tracking"
)

type geocodeEntry struct {
	coords   tracking.Coordinates
	cachedAt time.Time
}

// GeoResolver turns free-form addresses into coordinates. Providers are
// tried in a fixed order, commercial first, and every provider gets the
// full list of address variants before the next one is consulted.
// Results are cached for a configurable TTL keyed by the address as
// passed, so repeated lookups of the same scraped string cost one
// provider call.
type GeoResolver struct {
	maps   CommercialMaps
	public PublicGeocoder
	logger *zap.Logger
	ttl    time.Duration

	mu    sync.Mutex
	cache map[string]geocodeEntry
	now   func() time.Time
}

// NewGeoResolver creates a GeoResolver. maps may be nil when no
// commercial provider is configured.
func NewGeoResolver(maps CommercialMaps, public PublicGeocoder, ttl time.Duration, logger *zap.Logger) *GeoResolver {
	return &GeoResolver{
		maps:   maps,
		public: public,
		logger: logger,
		ttl:    ttl,
		cache:  make(map[string]geocodeEntry),
		now:    time.Now,
	}
}

// Resolve geocodes an address. It returns *tracking.GeocodeError when
// every provider and variant has been exhausted.
func (r *GeoResolver) Resolve(ctx context.Context, address string) (tracking.Coordinates, error) {
	if coords, ok := r.cached(address); ok {
		return coords, nil
	}

	sanitized := tracking.SanitizeAddress(address)
	if sanitized == "" {
		return tracking.Coordinates{}, &tracking.GeocodeError{Address: address}
	}
	variants := tracking.AddressVariants(sanitized)

	if r.maps != nil && r.maps.Enabled() {
		for _, v := range variants {
			coords, ok, err := r.maps.Geocode(ctx, v)
			if err != nil {
				r.logger.Warn("commercial geocoding failed",
					zap.String("variant", v), zap.Error(err))
				continue
			}
			if ok {
				r.store(address, coords)
				return coords, nil
			}
		}
	}

	for _, v := range variants {
		coords, ok, err := r.public.Search(ctx, v)
		if err != nil {
			r.logger.Warn("public geocoding failed",
				zap.String("variant", v), zap.Error(err))
			continue
		}
		if ok {
			r.store(address, coords)
			return coords, nil
		}
	}

	for _, v := range variants {
		addr, ok := tracking.ParseStreetAddress(v)
		if !ok {
			continue
		}
		coords, found, err := r.public.SearchStructured(ctx, addr)
		if err != nil {
			r.logger.Warn("structured geocoding failed",
				zap.String("variant", v), zap.Error(err))
			continue
		}
		if found {
			r.store(address, coords)
			return coords, nil
		}
	}

	for _, v := range variants {
		city, state, ok := tracking.ParseCityState(v)
		if !ok {
			continue
		}
		coords, found, err := r.public.Search(ctx, city+", "+state)
		if err != nil {
			r.logger.Warn("city/state geocoding failed",
				zap.String("variant", v), zap.Error(err))
			continue
		}
		if found {
			r.store(address, coords)
			return coords, nil
		}
	}

	r.logger.Warn("all geocoding attempts failed", zap.String("address", address))
	return tracking.Coordinates{}, &tracking.GeocodeError{Address: address}
}

func (r *GeoResolver) cached(address string) (tracking.Coordinates, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.cache[address]
	if !ok {
		return tracking.Coordinates{}, false
	}
	if r.now().Sub(entry.cachedAt) >= r.ttl {
		delete(r.cache, address)
		return tracking.Coordinates{}, false
	}
	return entry.coords, true
}

func (r *GeoResolver) store(address string, coords tracking.Coordinates) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[address] = geocodeEntry{coords: coords, cachedAt: r.now()}
}
