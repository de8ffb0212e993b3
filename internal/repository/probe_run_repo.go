package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jmylchreest/hwcodec/internal/models"
)

type probeRunRepository struct {
	db *gorm.DB
}

// NewProbeRunRepository creates a ProbeRunRepository.
func NewProbeRunRepository(db *gorm.DB) ProbeRunRepository {
	return &probeRunRepository{db: db}
}

func (r *probeRunRepository) Create(ctx context.Context, run *models.ProbeRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validating probe run: %w", err)
	}
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *probeRunRepository) first(ctx context.Context, query string, args ...any) (*models.ProbeRun, error) {
	var run models.ProbeRun
	err := r.db.WithContext(ctx).
		Preload("Features", func(db *gorm.DB) *gorm.DB {
			return db.Order("direction, driver, codec, luid")
		}).
		Where(query, args...).
		Order("started_at DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *probeRunRepository) GetByID(ctx context.Context, id models.ULID) (*models.ProbeRun, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *probeRunRepository) Latest(ctx context.Context, signature string) (*models.ProbeRun, error) {
	return r.first(ctx, "signature = ?", signature)
}

func (r *probeRunRepository) List(ctx context.Context, limit int) ([]*models.ProbeRun, error) {
	var runs []*models.ProbeRun
	q := r.db.WithContext(ctx).Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (r *probeRunRepository) DeleteOlderThan(ctx context.Context, t time.Time) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []models.ULID
		if err := tx.Model(&models.ProbeRun{}).Where("started_at < ?", t).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("run_id IN ?", ids).Delete(&models.ProbeFeature{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&models.ProbeRun{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}

var _ ProbeRunRepository = (*probeRunRepository)(nil)
