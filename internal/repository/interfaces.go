// Package repository defines data access for probe runs and exclusions.
package repository

import (
	"context"
	"time"

	"github.com/jmylchreest/hwcodec/internal/models"
)

// ProbeRunRepository persists probe runs with their features.
type ProbeRunRepository interface {
	// Create stores a run and its features.
	Create(ctx context.Context, run *models.ProbeRun) error
	// GetByID retrieves a run with its features. Returns nil when missing.
	GetByID(ctx context.Context, id models.ULID) (*models.ProbeRun, error)
	// Latest returns the newest run for signature, or nil.
	Latest(ctx context.Context, signature string) (*models.ProbeRun, error)
	// List returns the newest runs first, without features.
	List(ctx context.Context, limit int) ([]*models.ProbeRun, error)
	// DeleteOlderThan removes runs started before t with their features.
	DeleteOlderThan(ctx context.Context, t time.Time) (int64, error)
}

// ExclusionRepository persists the exclusion list.
type ExclusionRepository interface {
	// Add stores the pair. Adding an existing pair is a no-op.
	Add(ctx context.Context, e *models.Exclusion) error
	// Remove deletes the pair. Returns models.ErrExclusionNotFound when absent.
	Remove(ctx context.Context, luid int64, codec string) error
	// List returns all pairs ordered by LUID then codec.
	List(ctx context.Context) ([]*models.Exclusion, error)
}
