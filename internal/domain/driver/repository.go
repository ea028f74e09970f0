package driver

import (
	"context"

	"github.com/google/uuid"
)

// DriverRepository defines the persistence contract for driver aggregates.
type DriverRepository interface {
	// FindByID retrieves a driver by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Driver, error)

	// FindByName retrieves a driver by exact name, case-insensitively.
	FindByName(ctx context.Context, name string) (*Driver, error)

	// ListAll retrieves all drivers with pagination.
	ListAll(ctx context.Context, page, limit int) ([]*Driver, int64, error)

	// Save persists a new driver.
	Save(ctx context.Context, driver *Driver) error

	// Update persists changes to an existing driver with optimistic locking.
	Update(ctx context.Context, driver *Driver) error

	// Delete removes a driver.
	Delete(ctx context.Context, id uuid.UUID) error
}
