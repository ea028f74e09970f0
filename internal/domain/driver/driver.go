package driver

import (
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Driver is the aggregate root for a tracked fleet driver. The tracker
// URL points at the driver's ELD telemetry page.
type Driver struct {
	id         uuid.UUID
	name       string
	unitNumber string
	trackerURL string
	version    int64
	createdAt  time.Time
	updatedAt  time.Time
}

// NewDriver creates a driver profile with validated fields.
func NewDriver(name, unitNumber, trackerURL string) (*Driver, error) {
	if name == "" {
		return nil, fmt.Errorf("driver name is required")
	}
	if trackerURL == "" {
		return nil, fmt.Errorf("tracker URL is required")
	}
	if err := validateTrackerURL(trackerURL); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Driver{
		id:         uuid.New(),
		name:       name,
		unitNumber: unitNumber,
		trackerURL: trackerURL,
		version:    1,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// Reconstruct rebuilds a Driver from persistence data (no validation).
func Reconstruct(
	id uuid.UUID,
	name, unitNumber, trackerURL string,
	version int64,
	createdAt, updatedAt time.Time,
) *Driver {
	return &Driver{
		id:         id,
		name:       name,
		unitNumber: unitNumber,
		trackerURL: trackerURL,
		version:    version,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}

// --- Getters ---

func (d *Driver) ID() uuid.UUID        { return d.id }
func (d *Driver) Name() string         { return d.name }
func (d *Driver) UnitNumber() string   { return d.unitNumber }
func (d *Driver) TrackerURL() string   { return d.trackerURL }
func (d *Driver) Version() int64       { return d.version }
func (d *Driver) CreatedAt() time.Time { return d.createdAt }
func (d *Driver) UpdatedAt() time.Time { return d.updatedAt }

// --- Behavior ---

// Update applies partial updates to the driver profile.
func (d *Driver) Update(name, unitNumber, trackerURL string) error {
	if trackerURL != "" {
		if err := validateTrackerURL(trackerURL); err != nil {
			return err
		}
		d.trackerURL = trackerURL
	}
	if name != "" {
		d.name = name
	}
	if unitNumber != "" {
		d.unitNumber = unitNumber
	}
	d.version++
	d.updatedAt = time.Now().UTC()
	return nil
}

func validateTrackerURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("tracker URL must be an absolute http(s) URL")
	}
	return nil
}
