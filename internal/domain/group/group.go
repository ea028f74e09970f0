package group

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Group is the aggregate root for a dispatch group: one channel of
// people following one driver toward at most one destination. Group IDs
// come from the messaging platform, so they are opaque strings rather
// than UUIDs.
type Group struct {
	id          string
	name        string
	destination string
	driverID    *uuid.UUID
	version     int64
	createdAt   time.Time
	updatedAt   time.Time
}

// NewGroup registers a dispatch group.
func NewGroup(id, name string) (*Group, error) {
	if id == "" {
		return nil, fmt.Errorf("group ID is required")
	}

	now := time.Now().UTC()
	return &Group{
		id:        id,
		name:      name,
		version:   1,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Reconstruct rebuilds a Group from persistence data (no validation).
func Reconstruct(
	id, name, destination string,
	driverID *uuid.UUID,
	version int64,
	createdAt, updatedAt time.Time,
) *Group {
	return &Group{
		id:          id,
		name:        name,
		destination: destination,
		driverID:    driverID,
		version:     version,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// --- Getters ---

func (g *Group) ID() string          { return g.id }
func (g *Group) Name() string        { return g.name }
func (g *Group) Destination() string { return g.destination }
func (g *Group) Version() int64      { return g.version }
func (g *Group) CreatedAt() time.Time { return g.createdAt }
func (g *Group) UpdatedAt() time.Time { return g.updatedAt }

// DriverID returns the assigned driver, or nil when none is assigned.
func (g *Group) DriverID() *uuid.UUID {
	if g.driverID == nil {
		return nil
	}
	id := *g.driverID
	return &id
}

func (g *Group) HasDriver() bool      { return g.driverID != nil }
func (g *Group) HasDestination() bool { return g.destination != "" }

// --- Behavior ---

// Rename changes the display name.
func (g *Group) Rename(name string) {
	if name != "" {
		g.name = name
	}
	g.touch()
}

// SetDestination points the group's tracking loop at a new destination.
func (g *Group) SetDestination(destination string) error {
	if destination == "" {
		return fmt.Errorf("destination is required")
	}
	g.destination = destination
	g.touch()
	return nil
}

// ClearDestination removes the destination, which also ends periodic
// progress updates for the group.
func (g *Group) ClearDestination() {
	g.destination = ""
	g.touch()
}

// AssignDriver points the group at a driver.
func (g *Group) AssignDriver(driverID uuid.UUID) {
	id := driverID
	g.driverID = &id
	g.touch()
}

// UnassignDriver detaches the current driver.
func (g *Group) UnassignDriver() {
	g.driverID = nil
	g.touch()
}

func (g *Group) touch() {
	g.version++
	g.updatedAt = time.Now().UTC()
}
