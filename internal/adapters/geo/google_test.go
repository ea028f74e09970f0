package geo

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/haulwatch/service-tracking/internal/domain/tracking"
)

func zapTestLogger() *zap.Logger {
	return zap.NewNop()
}

const (
	geocodeOKBody = `{"status":"OK","results":[{"geometry":{"location":{"lat":40.7128,"lng":-74.006}}}]}`
	matrixOKBody  = `{"status":"OK","rows":[{"elements":[{"status":"OK",` +
		`"distance":{"text":"100 mi","value":160934.4},` +
		`"duration":{"text":"1 hour 30 mins","value":5400}}]}]}`
)

func newGoogle(t *testing.T, handler http.Handler) *GoogleMaps {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	g, err := NewGoogleMaps("test-key", zapTestLogger())
	require.NoError(t, err)
	g.baseURL = server.URL
	return g
}

func googleMux(geocode, matrix http.HandlerFunc) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/maps/api/geocode/json", geocode)
	mux.HandleFunc("/maps/api/distancematrix/json", matrix)
	return mux
}

func respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}
}

func TestNewGoogleMaps_RequiresKey(t *testing.T) {
	_, err := NewGoogleMaps("", zapTestLogger())
	assert.Error(t, err)
}

func TestGoogleMaps_Validate_EnablesBothCapabilities(t *testing.T) {
	var geocodeQuery, matrixUnits, matrixMode, matrixKey string
	g := newGoogle(t, googleMux(
		func(w http.ResponseWriter, r *http.Request) {
			geocodeQuery = r.URL.Query().Get("address")
			respond(geocodeOKBody)(w, r)
		},
		func(w http.ResponseWriter, r *http.Request) {
			matrixUnits = r.URL.Query().Get("units")
			matrixMode = r.URL.Query().Get("mode")
			matrixKey = r.URL.Query().Get("key")
			respond(matrixOKBody)(w, r)
		},
	))

	g.Validate(context.Background())

	assert.True(t, g.Enabled())
	assert.True(t, g.MatrixEnabled())
	assert.Equal(t, "New York, NY", geocodeQuery)
	assert.Equal(t, "imperial", matrixUnits)
	assert.Equal(t, "driving", matrixMode)
	assert.Equal(t, "test-key", matrixKey)
}

func TestGoogleMaps_Validate_GeocodingOnly(t *testing.T) {
	g := newGoogle(t, googleMux(
		respond(geocodeOKBody),
		respond(`{"status":"REQUEST_DENIED","error_message":"Distance Matrix API not enabled"}`),
	))

	g.Validate(context.Background())

	assert.True(t, g.Enabled(), "a key without matrix access still geocodes")
	assert.False(t, g.MatrixEnabled())
}

func TestGoogleMaps_Validate_BadKeyDisablesEverything(t *testing.T) {
	g := newGoogle(t, googleMux(
		respond(`{"status":"REQUEST_DENIED","error_message":"API key invalid"}`),
		respond(matrixOKBody),
	))

	g.Validate(context.Background())

	assert.False(t, g.Enabled())
	assert.False(t, g.MatrixEnabled())
}

func TestGoogleMaps_Geocode(t *testing.T) {
	g := newGoogle(t, googleMux(respond(geocodeOKBody), respond(matrixOKBody)))
	g.Validate(context.Background())

	coords, ok, err := g.Geocode(context.Background(), "New York, NY")

	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, tracking.Coordinates{Lat: 40.7128, Lon: -74.006}, coords)
}

func TestGoogleMaps_Geocode_ZeroResultsIsSoftMiss(t *testing.T) {
	calls := 0
	g := newGoogle(t, googleMux(
		func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				respond(geocodeOKBody)(w, r)
				return
			}
			respond(`{"status":"ZERO_RESULTS","results":[]}`)(w, r)
		},
		respond(matrixOKBody),
	))
	g.Validate(context.Background())

	_, ok, err := g.Geocode(context.Background(), "Nowhere At All")

	assert.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, g.Enabled(), "a miss does not disable the provider")
}

func TestGoogleMaps_Geocode_RequestDeniedSticks(t *testing.T) {
	calls := 0
	g := newGoogle(t, googleMux(
		func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				respond(geocodeOKBody)(w, r)
				return
			}
			respond(`{"status":"REQUEST_DENIED","error_message":"key revoked"}`)(w, r)
		},
		respond(matrixOKBody),
	))
	g.Validate(context.Background())
	require.True(t, g.Enabled())

	_, ok, err := g.Geocode(context.Background(), "New York, NY")

	assert.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, g.Enabled(), "a revoked key disables geocoding for good")
}

func TestGoogleMaps_RoadDistance(t *testing.T) {
	g := newGoogle(t, googleMux(respond(geocodeOKBody), respond(matrixOKBody)))
	g.Validate(context.Background())

	dist, ok, err := g.RoadDistance(context.Background(), "New York, NY", "Philadelphia, PA")

	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 100.0, dist.Miles, 0.01)
	assert.Equal(t, "100 mi", dist.DistanceText, "distance text comes from the API")
	assert.Equal(t, "1.5 hr", dist.DurationText, "duration text is reformatted")
	assert.InDelta(t, 90.0, dist.DurationMinutes, 0.001)
	assert.Equal(t, tracking.MethodDistanceMatrix, dist.Method)
}

func TestGoogleMaps_RoadDistance_UnroutableElement(t *testing.T) {
	g := newGoogle(t, googleMux(
		respond(geocodeOKBody),
		responseSequence(
			matrixOKBody,
			`{"status":"OK","rows":[{"elements":[{"status":"NOT_FOUND"}]}]}`,
		),
	))
	g.Validate(context.Background())

	_, ok, err := g.RoadDistance(context.Background(), "New York, NY", "Honolulu, HI")

	assert.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, g.MatrixEnabled())
}

func TestGoogleMaps_RoadDistance_RequestDeniedSticks(t *testing.T) {
	g := newGoogle(t, googleMux(
		respond(geocodeOKBody),
		responseSequence(
			matrixOKBody,
			`{"status":"REQUEST_DENIED","error_message":"quota plan changed"}`,
		),
	))
	g.Validate(context.Background())
	require.True(t, g.MatrixEnabled())

	_, ok, err := g.RoadDistance(context.Background(), "New York, NY", "Philadelphia, PA")

	assert.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, g.MatrixEnabled())
	assert.True(t, g.Enabled(), "geocoding survives a matrix denial")
}

// responseSequence serves each body once, staying on the last one.
func responseSequence(bodies ...string) http.HandlerFunc {
	i := 0
	return func(w http.ResponseWriter, r *http.Request) {
		body := bodies[len(bodies)-1]
		if i < len(bodies) {
			body = bodies[i]
			i++
		}
		respond(body)(w, r)
	}
}
