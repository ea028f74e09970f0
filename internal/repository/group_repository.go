package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/haulwatch/service-tracking/internal/domain"
	groupDomain "github.com/haulwatch/service-tracking/internal/domain/group"
	"gorm.io/gorm"
)

// GroupModel is the GORM model for the dispatch_groups table. Group IDs
// come from the messaging platform, so the primary key is a string.
type GroupModel struct {
	ID          string     `gorm:"type:varchar(64);primaryKey"`
	Name        string     `gorm:"type:varchar(255)"`
	Destination string     `gorm:"type:text;not null;default:''"`
	DriverID    *uuid.UUID `gorm:"type:uuid;uniqueIndex"`
	Version     int64      `gorm:"not null;default:1"`
	CreatedAt   time.Time  `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt   time.Time  `gorm:"type:timestamptz;not null;default:now()"`
}

// TableName returns the table name for the GORM model.
func (GroupModel) TableName() string { return "dispatch_groups" }

// GormGroupRepository is the GORM-based implementation of GroupRepository.
type GormGroupRepository struct {
	db *gorm.DB
}

// NewGormGroupRepository creates a new GormGroupRepository.
func NewGormGroupRepository(db *gorm.DB) *GormGroupRepository {
	return &GormGroupRepository{db: db}
}

// FindByID retrieves a group by its platform identifier.
func (r *GormGroupRepository) FindByID(ctx context.Context, id string) (*groupDomain.Group, error) {
	var model GroupModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Group", id)
		}
		return nil, fmt.Errorf("failed to find group by ID: %w", err)
	}
	return toDomainGroup(&model), nil
}

// FindByDriverID retrieves the group a driver currently reports into.
func (r *GormGroupRepository) FindByDriverID(ctx context.Context, driverID uuid.UUID) (*groupDomain.Group, error) {
	var model GroupModel
	if err := r.db.WithContext(ctx).Where("driver_id = ?", driverID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Group", driverID.String())
		}
		return nil, fmt.Errorf("failed to find group by driver: %w", err)
	}
	return toDomainGroup(&model), nil
}

// ListAll retrieves all groups with pagination.
func (r *GormGroupRepository) ListAll(ctx context.Context, page, limit int) ([]*groupDomain.Group, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&GroupModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count groups: %w", err)
	}

	var models []GroupModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list groups: %w", err)
	}

	groups := make([]*groupDomain.Group, len(models))
	for i, m := range models {
		groups[i] = toDomainGroup(&m)
	}
	return groups, total, nil
}

// ListWithDestination retrieves every group with an active destination,
// oldest first so restarts resume update loops in a stable order.
func (r *GormGroupRepository) ListWithDestination(ctx context.Context) ([]*groupDomain.Group, error) {
	var models []GroupModel
	if err := r.db.WithContext(ctx).
		Where("destination <> ''").
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list groups with destination: %w", err)
	}

	groups := make([]*groupDomain.Group, len(models))
	for i, m := range models {
		groups[i] = toDomainGroup(&m)
	}
	return groups, nil
}

// Save persists a new group.
func (r *GormGroupRepository) Save(ctx context.Context, grp *groupDomain.Group) error {
	if err := r.db.WithContext(ctx).Create(toGroupModel(grp)).Error; err != nil {
		return fmt.Errorf("failed to save group: %w", err)
	}
	return nil
}

// Update persists changes to an existing group with optimistic locking.
func (r *GormGroupRepository) Update(ctx context.Context, grp *groupDomain.Group) error {
	model := toGroupModel(grp)

	// Destination and driver may be cleared to their zero values, so
	// the update names every column explicitly.
	expectedVersion := grp.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&GroupModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"name":        model.Name,
			"destination": model.Destination,
			"driver_id":   model.DriverID,
			"version":     model.Version,
			"updated_at":  model.UpdatedAt,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to update group: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("group was modified by another transaction")
	}
	return nil
}

// AssignDriver atomically makes driverID the tracked driver of groupID.
// The driver is detached from any other group in the same transaction
// so it never reports into two channels at once.
func (r *GormGroupRepository) AssignDriver(ctx context.Context, groupID string, driverID uuid.UUID) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&GroupModel{}).
			Where("driver_id = ? AND id <> ?", driverID, groupID).
			Updates(map[string]interface{}{
				"driver_id":  nil,
				"version":    gorm.Expr("version + 1"),
				"updated_at": now,
			}).Error; err != nil {
			return fmt.Errorf("failed to detach driver from previous group: %w", err)
		}

		result := tx.Model(&GroupModel{}).
			Where("id = ?", groupID).
			Updates(map[string]interface{}{
				"driver_id":  driverID,
				"version":    gorm.Expr("version + 1"),
				"updated_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to assign driver to group: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return domain.NewNotFoundError("Group", groupID)
		}
		return nil
	})
}

// Delete removes a group and with it the driver assignment.
func (r *GormGroupRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&GroupModel{}).Error
}

// --- Conversion Helpers ---

func toGroupModel(grp *groupDomain.Group) *GroupModel {
	return &GroupModel{
		ID:          grp.ID(),
		Name:        grp.Name(),
		Destination: grp.Destination(),
		DriverID:    grp.DriverID(),
		Version:     grp.Version(),
		CreatedAt:   grp.CreatedAt(),
		UpdatedAt:   grp.UpdatedAt(),
	}
}

func toDomainGroup(m *GroupModel) *groupDomain.Group {
	return groupDomain.Reconstruct(
		m.ID, m.Name, m.Destination,
		m.DriverID,
		m.Version,
		m.CreatedAt, m.UpdatedAt,
	)
}
