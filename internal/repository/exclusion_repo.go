package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jmylchreest/hwcodec/internal/models"
)

type exclusionRepository struct {
	db *gorm.DB
}

// NewExclusionRepository creates an ExclusionRepository.
func NewExclusionRepository(db *gorm.DB) ExclusionRepository {
	return &exclusionRepository{db: db}
}

func (r *exclusionRepository) Add(ctx context.Context, e *models.Exclusion) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validating exclusion: %w", err)
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "luid"}, {Name: "codec"}},
		DoNothing: true,
	}).Create(e).Error
}

func (r *exclusionRepository) Remove(ctx context.Context, luid int64, codec string) error {
	res := r.db.WithContext(ctx).Where("luid = ? AND codec = ?", luid, codec).Delete(&models.Exclusion{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("luid %d codec %s: %w", luid, codec, models.ErrExclusionNotFound)
	}
	return nil
}

func (r *exclusionRepository) List(ctx context.Context) ([]*models.Exclusion, error) {
	var out []*models.Exclusion
	if err := r.db.WithContext(ctx).Order("luid, codec").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

var _ ExclusionRepository = (*exclusionRepository)(nil)
