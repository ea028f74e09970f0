package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/haulwatch/service-tracking/internal/domain"
	driverDomain "github.com/haulwatch/service-tracking/internal/domain/driver"
	"gorm.io/gorm"
)

// DriverModel is the GORM model for the drivers table.
type DriverModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name       string    `gorm:"type:varchar(100);not null;uniqueIndex"`
	UnitNumber string    `gorm:"type:varchar(50)"`
	TrackerURL string    `gorm:"type:text;not null"`
	Version    int64     `gorm:"not null;default:1"`
	CreatedAt  time.Time `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt  time.Time `gorm:"type:timestamptz;not null;default:now()"`
}

func (DriverModel) TableName() string { return "drivers" }

// GormDriverRepository implements DriverRepository using GORM.
type GormDriverRepository struct {
	db *gorm.DB
}

func NewGormDriverRepository(db *gorm.DB) *GormDriverRepository {
	return &GormDriverRepository{db: db}
}

func (r *GormDriverRepository) FindByID(ctx context.Context, id uuid.UUID) (*driverDomain.Driver, error) {
	var model DriverModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Driver", id.String())
		}
		return nil, err
	}
	return toDriverDomain(&model), nil
}

// FindByName matches case-insensitively because dispatchers type driver
// names by hand.
func (r *GormDriverRepository) FindByName(ctx context.Context, name string) (*driverDomain.Driver, error) {
	var model DriverModel
	if err := r.db.WithContext(ctx).Where("LOWER(name) = LOWER(?)", name).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Driver", name)
		}
		return nil, err
	}
	return toDriverDomain(&model), nil
}

func (r *GormDriverRepository) ListAll(ctx context.Context, page, limit int) ([]*driverDomain.Driver, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&DriverModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []DriverModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Order("name ASC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}

	drivers := make([]*driverDomain.Driver, len(models))
	for i, m := range models {
		drivers[i] = toDriverDomain(&m)
	}
	return drivers, total, nil
}

func (r *GormDriverRepository) Save(ctx context.Context, drv *driverDomain.Driver) error {
	return r.db.WithContext(ctx).Create(toDriverModel(drv)).Error
}

func (r *GormDriverRepository) Update(ctx context.Context, drv *driverDomain.Driver) error {
	model := toDriverModel(drv)
	previousVersion := drv.Version() - 1

	result := r.db.WithContext(ctx).
		Model(&DriverModel{}).
		Where("id = ? AND version = ?", model.ID, previousVersion).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("driver was modified by another transaction")
	}
	return nil
}

func (r *GormDriverRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&DriverModel{}).Error
}

// --- Conversions ---

func toDriverModel(d *driverDomain.Driver) *DriverModel {
	return &DriverModel{
		ID:         d.ID(),
		Name:       d.Name(),
		UnitNumber: d.UnitNumber(),
		TrackerURL: d.TrackerURL(),
		Version:    d.Version(),
		CreatedAt:  d.CreatedAt(),
		UpdatedAt:  d.UpdatedAt(),
	}
}

func toDriverDomain(m *DriverModel) *driverDomain.Driver {
	return driverDomain.Reconstruct(
		m.ID,
		m.Name, m.UnitNumber, m.TrackerURL,
		m.Version,
		m.CreatedAt, m.UpdatedAt,
	)
}
