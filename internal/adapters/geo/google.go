package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/haulwatch/service-tracking/internal/domain/tracking"
)

const googleBaseURL = "https://maps.googleapis.com"

// GoogleMaps is the commercial geocoding and routing provider. Both
// capabilities start disabled and are switched on by Validate once the
// key is confirmed working; a REQUEST_DENIED at runtime switches the
// offending capability back off for the life of the process.
type GoogleMaps struct {
	rest    *restClient
	apiKey  string
	baseURL string
	logger  *zap.Logger

	enabled       atomic.Bool
	matrixEnabled atomic.Bool
	authWarn      sync.Once
}

// NewGoogleMaps creates the provider. The key is required; run
// Validate before first use to enable the capabilities it unlocks.
func NewGoogleMaps(apiKey string, logger *zap.Logger) (*GoogleMaps, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google maps api key is empty")
	}
	return &GoogleMaps{
		rest:    newRestClient(10 * time.Second),
		apiKey:  apiKey,
		baseURL: googleBaseURL,
		logger:  logger,
	}, nil
}

// Enabled reports whether geocoding calls may be attempted.
func (g *GoogleMaps) Enabled() bool { return g.enabled.Load() }

// MatrixEnabled reports whether distance matrix calls may be attempted.
func (g *GoogleMaps) MatrixEnabled() bool { return g.matrixEnabled.Load() }

// Validate probes the API key with a known geocoding query, then with a
// known matrix route. Each capability is enabled only when its probe
// succeeds, so a key with geocoding but no Distance Matrix access still
// contributes what it can.
func (g *GoogleMaps) Validate(ctx context.Context) {
	_, ok, err := g.geocode(ctx, "New York, NY")
	if err != nil || !ok {
		g.logger.Warn("google maps geocoding validation failed, provider disabled", zap.Error(err))
		return
	}
	g.enabled.Store(true)
	g.logger.Info("google maps geocoding validated")

	_, ok, err = g.roadDistance(ctx, "New York, NY", "Los Angeles, CA")
	if err != nil || !ok {
		g.logger.Warn("google maps distance matrix validation failed, matrix disabled", zap.Error(err))
		return
	}
	g.matrixEnabled.Store(true)
	g.logger.Info("google maps distance matrix validated")
}

type googleGeocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode resolves a query to coordinates. A query the API cannot place
// is a soft miss.
func (g *GoogleMaps) Geocode(ctx context.Context, query string) (tracking.Coordinates, bool, error) {
	if !g.enabled.Load() {
		return tracking.Coordinates{}, false, nil
	}
	return g.geocode(ctx, query)
}

func (g *GoogleMaps) geocode(ctx context.Context, query string) (tracking.Coordinates, bool, error) {
	endpoint := g.baseURL + "/maps/api/geocode/json"
	resp, err := g.rest.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		q := url.Values{}
		q.Set("address", query)
		q.Set("key", g.apiKey)
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return tracking.Coordinates{}, false, fmt.Errorf("google geocode request: %w", err)
	}
	defer resp.Body.Close()

	var decoded googleGeocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return tracking.Coordinates{}, false, fmt.Errorf("decode google geocode response: %w", err)
	}

	switch decoded.Status {
	case "OK":
	case "REQUEST_DENIED":
		g.disableGeocoding(decoded.ErrorMessage)
		return tracking.Coordinates{}, false, nil
	default:
		return tracking.Coordinates{}, false, nil
	}
	if len(decoded.Results) == 0 {
		return tracking.Coordinates{}, false, nil
	}

	loc := decoded.Results[0].Geometry.Location
	return tracking.Coordinates{Lat: loc.Lat, Lon: loc.Lng}, true, nil
}

type googleMatrixResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Rows         []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Text  string  `json:"text"`
				Value float64 `json:"value"`
			} `json:"distance"`
			Duration struct {
				Text  string  `json:"text"`
				Value float64 `json:"value"`
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

// RoadDistance fetches driving distance and time between two addresses.
// Routes the API cannot find are soft misses.
func (g *GoogleMaps) RoadDistance(ctx context.Context, origin, destination string) (tracking.Distance, bool, error) {
	if !g.enabled.Load() || !g.matrixEnabled.Load() {
		return tracking.Distance{}, false, nil
	}
	return g.roadDistance(ctx, origin, destination)
}

func (g *GoogleMaps) roadDistance(ctx context.Context, origin, destination string) (tracking.Distance, bool, error) {
	endpoint := g.baseURL + "/maps/api/distancematrix/json"
	resp, err := g.rest.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		q := url.Values{}
		q.Set("origins", origin)
		q.Set("destinations", destination)
		q.Set("mode", "driving")
		q.Set("units", "imperial")
		q.Set("avoid", "tolls")
		q.Set("key", g.apiKey)
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return tracking.Distance{}, false, fmt.Errorf("google distance matrix request: %w", err)
	}
	defer resp.Body.Close()

	var decoded googleMatrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return tracking.Distance{}, false, fmt.Errorf("decode google distance matrix response: %w", err)
	}

	switch decoded.Status {
	case "OK":
	case "REQUEST_DENIED":
		g.disableMatrix(decoded.ErrorMessage)
		return tracking.Distance{}, false, nil
	default:
		g.logger.Warn("google distance matrix returned non-OK status",
			zap.String("status", decoded.Status),
			zap.String("error_message", decoded.ErrorMessage),
		)
		return tracking.Distance{}, false, nil
	}

	if len(decoded.Rows) == 0 || len(decoded.Rows[0].Elements) == 0 {
		return tracking.Distance{}, false, nil
	}
	element := decoded.Rows[0].Elements[0]
	if element.Status != "OK" {
		return tracking.Distance{}, false, nil
	}

	minutes := element.Duration.Value / 60
	return tracking.Distance{
		Miles:           element.Distance.Value * tracking.MilesPerMeter,
		DistanceText:    element.Distance.Text,
		DurationText:    tracking.FormatDuration(minutes),
		DurationMinutes: minutes,
		Method:          tracking.MethodDistanceMatrix,
	}, true, nil
}

func (g *GoogleMaps) disableGeocoding(message string) {
	g.enabled.Store(false)
	g.authWarn.Do(func() {
		g.logger.Error("google maps rejected the api key, geocoding disabled",
			zap.String("error_message", message))
	})
}

func (g *GoogleMaps) disableMatrix(message string) {
	g.matrixEnabled.Store(false)
	g.authWarn.Do(func() {
		g.logger.Error("google maps rejected the api key, distance matrix disabled",
			zap.String("error_message", message))
	})
}
