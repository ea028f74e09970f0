package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/haulwatch/service-tracking/internal/domain/tracking"
)

// OSRM routes between coordinate pairs over the public OSRM demo
// server, or any self-hosted instance sharing its API.
type OSRM struct {
	rest      *restClient
	baseURL   string
	userAgent string
	logger    *zap.Logger
}

// NewOSRM creates the router.
func NewOSRM(baseURL, userAgent string, logger *zap.Logger) *OSRM {
	return &OSRM{
		rest:      newRestClient(10 * time.Second),
		baseURL:   baseURL,
		userAgent: userAgent,
		logger:    logger,
	}
}

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

// Route computes driving distance and time between two points. No
// route between them is a soft miss.
func (o *OSRM) Route(ctx context.Context, from, to tracking.Coordinates) (tracking.Distance, bool, error) {
	endpoint := fmt.Sprintf("%s/route/v1/driving/%s,%s;%s,%s?overview=false",
		o.baseURL,
		formatCoord(from.Lon), formatCoord(from.Lat),
		formatCoord(to.Lon), formatCoord(to.Lat),
	)

	resp, err := o.rest.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", o.userAgent)
		return req, nil
	})
	if err != nil {
		return tracking.Distance{}, false, fmt.Errorf("osrm request: %w", err)
	}
	defer resp.Body.Close()

	var decoded osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return tracking.Distance{}, false, fmt.Errorf("decode osrm response: %w", err)
	}
	if len(decoded.Routes) == 0 {
		o.logger.Warn("osrm returned no routes", zap.String("code", decoded.Code))
		return tracking.Distance{}, false, nil
	}

	route := decoded.Routes[0]
	miles := route.Distance * tracking.MilesPerMeter
	minutes := route.Duration / 60
	return tracking.Distance{
		Miles:           miles,
		DistanceText:    fmt.Sprintf("%.1f mi", miles),
		DurationText:    tracking.FormatDuration(minutes),
		DurationMinutes: minutes,
		Method:          tracking.MethodOSRM,
	}, true, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
