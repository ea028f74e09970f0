package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/haulwatch/service-tracking/internal/domain"
	driverDomain "github.com/haulwatch/service-tracking/internal/domain/driver"
	groupDomain "github.com/haulwatch/service-tracking/internal/domain/group"
)

// CreateDriverRequest is the request DTO for registering a driver.
type CreateDriverRequest struct {
	Name       string `json:"name" binding:"required"`
	UnitNumber string `json:"unit_number"`
	TrackerURL string `json:"tracker_url" binding:"required"`
}

// UpdateDriverRequest is the request DTO for updating a driver. Empty
// fields are left unchanged.
type UpdateDriverRequest struct {
	Name       string `json:"name"`
	UnitNumber string `json:"unit_number"`
	TrackerURL string `json:"tracker_url"`
}

// AssignDriverRequest is the request DTO for assigning a driver to a
// dispatch group by name.
type AssignDriverRequest struct {
	DriverName string `json:"driver_name" binding:"required"`
}

// DriverDTO is the API response representation of a driver.
type DriverDTO struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	UnitNumber      string    `json:"unit_number,omitempty"`
	TrackerURL      string    `json:"tracker_url"`
	AssignedGroupID string    `json:"assigned_group_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DriverService manages the driver registry and driver-to-group
// assignment.
type DriverService struct {
	drivers driverDomain.DriverRepository
	groups  groupDomain.GroupRepository
	logger  *zap.Logger
}

// NewDriverService creates a new DriverService.
func NewDriverService(
	drivers driverDomain.DriverRepository,
	groups groupDomain.GroupRepository,
	logger *zap.Logger,
) *DriverService {
	return &DriverService{
		drivers: drivers,
		groups:  groups,
		logger:  logger,
	}
}

// CreateDriver registers a driver. Driver names are unique so groups
// can assign by name.
func (s *DriverService) CreateDriver(ctx context.Context, req CreateDriverRequest) (*DriverDTO, error) {
	if _, err := s.drivers.FindByName(ctx, req.Name); err == nil {
		return nil, domain.NewConflictError(fmt.Sprintf("driver %q already exists", req.Name))
	} else if !domain.IsNotFound(err) {
		return nil, err
	}

	drv, err := driverDomain.NewDriver(req.Name, req.UnitNumber, req.TrackerURL)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	if err := s.drivers.Save(ctx, drv); err != nil {
		s.logger.Error("failed to create driver", zap.Error(err))
		return nil, fmt.Errorf("failed to create driver: %w", err)
	}

	s.logger.Info("driver created",
		zap.String("driver_id", drv.ID().String()),
		zap.String("name", drv.Name()),
	)
	result := toDriverDTO(drv, "")
	return &result, nil
}

// GetDriver returns a single driver together with its current group
// assignment, if any.
func (s *DriverService) GetDriver(ctx context.Context, driverID uuid.UUID) (*DriverDTO, error) {
	drv, err := s.drivers.FindByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	result := toDriverDTO(drv, s.assignedGroupID(ctx, drv.ID()))
	return &result, nil
}

// ListDrivers returns all drivers with pagination.
func (s *DriverService) ListDrivers(ctx context.Context, page, limit int) ([]DriverDTO, int64, error) {
	drivers, total, err := s.drivers.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list drivers: %w", err)
	}
	dtos := make([]DriverDTO, len(drivers))
	for i, drv := range drivers {
		dtos[i] = toDriverDTO(drv, s.assignedGroupID(ctx, drv.ID()))
	}
	return dtos, total, nil
}

// UpdateDriver applies a partial update to a driver.
func (s *DriverService) UpdateDriver(ctx context.Context, driverID uuid.UUID, req UpdateDriverRequest) (*DriverDTO, error) {
	drv, err := s.drivers.FindByID(ctx, driverID)
	if err != nil {
		return nil, err
	}

	if err := drv.Update(req.Name, req.UnitNumber, req.TrackerURL); err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	if err := s.drivers.Update(ctx, drv); err != nil {
		s.logger.Error("failed to update driver", zap.Error(err))
		return nil, fmt.Errorf("failed to update driver: %w", err)
	}

	result := toDriverDTO(drv, s.assignedGroupID(ctx, drv.ID()))
	return &result, nil
}

// DeleteDriver removes a driver from the registry. Any group the
// driver was assigned to is left without a driver.
func (s *DriverService) DeleteDriver(ctx context.Context, driverID uuid.UUID) error {
	if _, err := s.drivers.FindByID(ctx, driverID); err != nil {
		return err
	}
	if err := s.drivers.Delete(ctx, driverID); err != nil {
		s.logger.Error("failed to delete driver", zap.Error(err))
		return fmt.Errorf("failed to delete driver: %w", err)
	}
	s.logger.Info("driver deleted", zap.String("driver_id", driverID.String()))
	return nil
}

// AssignDriver assigns a driver to a dispatch group by name. A driver
// follows at most one group at a time, so any previous assignment of
// the same driver moves to the new group. The group is registered on
// first use.
func (s *DriverService) AssignDriver(ctx context.Context, groupID string, req AssignDriverRequest) (*DriverDTO, error) {
	drv, err := s.drivers.FindByName(ctx, req.DriverName)
	if err != nil {
		return nil, err
	}

	if _, err := s.groups.FindByID(ctx, groupID); err != nil {
		if !domain.IsNotFound(err) {
			return nil, err
		}
		grp, err := groupDomain.NewGroup(groupID, "")
		if err != nil {
			return nil, domain.NewValidationError(err.Error())
		}
		if err := s.groups.Save(ctx, grp); err != nil {
			return nil, fmt.Errorf("failed to register group: %w", err)
		}
		s.logger.Info("group registered on first use", zap.String("group_id", groupID))
	}

	if err := s.groups.AssignDriver(ctx, groupID, drv.ID()); err != nil {
		s.logger.Error("failed to assign driver", zap.Error(err))
		return nil, fmt.Errorf("failed to assign driver: %w", err)
	}

	s.logger.Info("driver assigned",
		zap.String("group_id", groupID),
		zap.String("driver_id", drv.ID().String()),
		zap.String("name", drv.Name()),
	)
	result := toDriverDTO(drv, groupID)
	return &result, nil
}

// UnassignDriver removes the group's driver assignment.
func (s *DriverService) UnassignDriver(ctx context.Context, groupID string) error {
	grp, err := s.groups.FindByID(ctx, groupID)
	if err != nil {
		return err
	}
	if grp.DriverID() == nil {
		return nil
	}
	grp.UnassignDriver()
	if err := s.groups.Update(ctx, grp); err != nil {
		s.logger.Error("failed to unassign driver", zap.Error(err))
		return fmt.Errorf("failed to unassign driver: %w", err)
	}
	s.logger.Info("driver unassigned", zap.String("group_id", groupID))
	return nil
}

// assignedGroupID looks up which group a driver currently follows.
// Unassigned drivers return an empty ID.
func (s *DriverService) assignedGroupID(ctx context.Context, driverID uuid.UUID) string {
	grp, err := s.groups.FindByDriverID(ctx, driverID)
	if err != nil {
		return ""
	}
	return grp.ID()
}

func toDriverDTO(drv *driverDomain.Driver, assignedGroupID string) DriverDTO {
	return DriverDTO{
		ID:              drv.ID(),
		Name:            drv.Name(),
		UnitNumber:      drv.UnitNumber(),
		TrackerURL:      drv.TrackerURL(),
		AssignedGroupID: assignedGroupID,
		CreatedAt:       drv.CreatedAt(),
		UpdatedAt:       drv.UpdatedAt(),
	}
}
