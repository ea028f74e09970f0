package application

import (
	"context"

	"github.com/haulwatch/service-tracking/internal/domain/tracking"
)

// Provider lookups follow one convention: ok=false with a nil error is
// a soft miss (no result for this input, try the next strategy), while
// a non-nil error means the provider itself misbehaved.

// CommercialMaps is the paid geocoding and routing provider. Both
// capabilities switch off independently: geocoding when startup
// validation fails, road distance when the provider denies matrix
// requests.
type CommercialMaps interface {
	Enabled() bool
	MatrixEnabled() bool
	Geocode(ctx context.Context, query string) (tracking.Coordinates, bool, error)
	RoadDistance(ctx context.Context, origin, destination string) (tracking.Distance, bool, error)
}

// PublicGeocoder is the free fallback geocoder.
type PublicGeocoder interface {
	Search(ctx context.Context, query string) (tracking.Coordinates, bool, error)
	SearchStructured(ctx context.Context, addr tracking.StreetAddress) (tracking.Coordinates, bool, error)
}

// RoadRouter computes road distance between two coordinate pairs.
type RoadRouter interface {
	Route(ctx context.Context, from, to tracking.Coordinates) (tracking.Distance, bool, error)
}

// RawTelemetryFetcher renders a telemetry page and returns its visible
// text. Implementations drive a real browser, so calls are expensive
// and must be pooled behind the TelemetryGate.
type RawTelemetryFetcher interface {
	Fetch(ctx context.Context, sourceURL string) (string, error)
}

// Notifier delivers tracking updates to a group's channel.
type Notifier interface {
	LocationUpdated(ctx context.Context, groupID string, status LocationStatusDTO) error
	ProgressUpdated(ctx context.Context, groupID string, report DistanceReportDTO) error
	ExtendedStop(ctx context.Context, groupID string, alert ExtendedStopAlertDTO) error
}
