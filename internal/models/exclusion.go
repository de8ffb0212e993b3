package models

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/jmylchreest/hwcodec/internal/codec"
)

// Exclusion is a stored (adapter, codec) pair the prober must skip.
type Exclusion struct {
	BaseModel

	LUID   int64  `gorm:"not null;uniqueIndex:idx_exclusion_pair" json:"luid"`
	Codec  string `gorm:"size:8;not null;uniqueIndex:idx_exclusion_pair" json:"codec"`
	Reason string `gorm:"size:255" json:"reason,omitempty"`
}

// TableName returns the table name for Exclusion.
func (Exclusion) TableName() string {
	return "exclusions"
}

// Validate checks the codec name.
func (e *Exclusion) Validate() error {
	if _, err := codec.ParseKind(e.Codec); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidCodec, e.Codec)
	}
	return nil
}

// BeforeCreate generates the ID and validates the exclusion.
func (e *Exclusion) BeforeCreate(tx *gorm.DB) error {
	if err := e.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return e.Validate()
}
