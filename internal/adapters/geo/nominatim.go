package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/haulwatch/service-tracking/internal/domain/tracking"
)

// Nominatim is the free OpenStreetMap geocoder. Its usage policy allows
// at most one request per second, enforced here with a limiter so
// concurrent update loops cannot get the service banned.
type Nominatim struct {
	rest      *restClient
	baseURL   string
	userAgent string
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// NewNominatim creates the geocoder. userAgent identifies this service
// to the API, which the usage policy requires.
func NewNominatim(baseURL, userAgent string, logger *zap.Logger) *Nominatim {
	return &Nominatim{
		rest:      newRestClient(10 * time.Second),
		baseURL:   baseURL,
		userAgent: userAgent,
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
		logger:    logger,
	}
}

type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Search runs a free-text lookup restricted to the US. No results is a
// soft miss.
func (n *Nominatim) Search(ctx context.Context, query string) (tracking.Coordinates, bool, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("limit", "3")
	q.Set("countrycodes", "us")
	return n.search(ctx, q)
}

// SearchStructured looks up a decomposed street address. More precise
// than free text when the components parsed cleanly.
func (n *Nominatim) SearchStructured(ctx context.Context, addr tracking.StreetAddress) (tracking.Coordinates, bool, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("housenumber", addr.HouseNumber)
	q.Set("street", addr.Street)
	q.Set("city", addr.City)
	q.Set("state", addr.State)
	q.Set("country", "us")
	q.Set("limit", "1")
	return n.search(ctx, q)
}

func (n *Nominatim) search(ctx context.Context, query url.Values) (tracking.Coordinates, bool, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return tracking.Coordinates{}, false, err
	}

	endpoint := n.baseURL + "/search"
	resp, err := n.rest.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", n.userAgent)
		req.URL.RawQuery = query.Encode()
		return req, nil
	})
	if err != nil {
		return tracking.Coordinates{}, false, fmt.Errorf("nominatim request: %w", err)
	}
	defer resp.Body.Close()

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return tracking.Coordinates{}, false, fmt.Errorf("decode nominatim response: %w", err)
	}
	if len(results) == 0 {
		return tracking.Coordinates{}, false, nil
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return tracking.Coordinates{}, false, fmt.Errorf("nominatim returned bad latitude %q: %w", results[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return tracking.Coordinates{}, false, fmt.Errorf("nominatim returned bad longitude %q: %w", results[0].Lon, err)
	}
	return tracking.Coordinates{Lat: lat, Lon: lon}, true, nil
}
