package group

import (
	"context"

	"github.com/google/uuid"
)

// GroupRepository defines the persistence contract for dispatch groups.
type GroupRepository interface {
	// FindByID retrieves a group by its platform identifier.
	FindByID(ctx context.Context, id string) (*Group, error)

	// FindByDriverID retrieves the group a driver is assigned to, if any.
	FindByDriverID(ctx context.Context, driverID uuid.UUID) (*Group, error)

	// ListAll retrieves all groups with pagination.
	ListAll(ctx context.Context, page, limit int) ([]*Group, int64, error)

	// ListWithDestination retrieves every group that has an active
	// destination. Used to resume update loops after a restart.
	ListWithDestination(ctx context.Context) ([]*Group, error)

	// Save persists a new group.
	Save(ctx context.Context, group *Group) error

	// Update persists changes to an existing group with optimistic locking.
	Update(ctx context.Context, group *Group) error

	// AssignDriver atomically makes driverID the tracked driver of
	// groupID, detaching the driver from any other group first.
	AssignDriver(ctx context.Context, groupID string, driverID uuid.UUID) error

	// Delete removes a group.
	Delete(ctx context.Context, id string) error
}
