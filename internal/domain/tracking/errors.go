package tracking

import "fmt"

// FetchError reports that a driver's telemetry page could not be
// loaded. The usual cause is a tracker that has gone offline.
type FetchError struct {
	SourceURL string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("telemetry fetch failed for %s: %v", e.SourceURL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// GeocodeError reports that no provider could resolve an address to
// coordinates.
type GeocodeError struct {
	Address string
}

func (e *GeocodeError) Error() string {
	return fmt.Sprintf("address not found: %q", e.Address)
}

// DistanceError reports that distance to the destination could not be
// calculated.
type DistanceError struct {
	Reason string
	Err    error
}

func (e *DistanceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("could not calculate distance: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("could not calculate distance: %s", e.Reason)
}

func (e *DistanceError) Unwrap() error { return e.Err }
