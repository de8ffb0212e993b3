package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jmylchreest/hwcodec/internal/codec"
)

// Direction is encode or decode.
type Direction string

const (
	DirectionEncode Direction = "encode"
	DirectionDecode Direction = "decode"
)

// ProbeRun is one capability discovery on a host. It stays valid while the
// adapter signature is unchanged and the run is younger than the cache TTL.
type ProbeRun struct {
	BaseModel

	// Signature is the adapter signature as 16 hex digits.
	Signature string `gorm:"size:16;not null;index" json:"signature"`

	Hostname      string `gorm:"size:255" json:"hostname"`
	OS            string `gorm:"size:32" json:"os"`
	Arch          string `gorm:"size:32" json:"arch"`
	Platform      string `gorm:"size:64" json:"platform,omitempty"`
	KernelVersion string `gorm:"size:128" json:"kernel_version,omitempty"`
	CPUModel      string `gorm:"size:255" json:"cpu_model,omitempty"`
	Simulated     bool   `gorm:"default:false" json:"simulated"`

	StartedAt  time.Time `gorm:"not null;index" json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Features []ProbeFeature `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"features"`
}

// TableName returns the table name for ProbeRun.
func (ProbeRun) TableName() string {
	return "probe_runs"
}

// FormatSignature renders an adapter signature for storage.
func FormatSignature(sig uint64) string {
	return fmt.Sprintf("%016x", sig)
}

// Validate checks the run before it is stored.
func (r *ProbeRun) Validate() error {
	if r.Signature == "" {
		return ErrSignatureRequired
	}
	for i := range r.Features {
		if err := r.Features[i].Validate(); err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
	}
	return nil
}

// Fresh reports whether the run can be reused for signature at now.
// A zero ttl never expires.
func (r *ProbeRun) Fresh(signature string, ttl time.Duration, now time.Time) bool {
	if r.Signature != signature {
		return false
	}
	return ttl <= 0 || now.Sub(r.StartedAt) < ttl
}

// BeforeCreate generates the ID and validates the run.
func (r *ProbeRun) BeforeCreate(tx *gorm.DB) error {
	if err := r.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	return r.Validate()
}

// ProbeFeature is one working (adapter, codec) pair found by a run.
type ProbeFeature struct {
	BaseModel

	RunID       ULID      `gorm:"type:varchar(26);not null;index" json:"run_id"`
	Direction   Direction `gorm:"size:8;not null" json:"direction"`
	Driver      string    `gorm:"size:8;not null" json:"driver"`
	Codec       string    `gorm:"size:8;not null" json:"codec"`
	LUID        int64     `gorm:"not null" json:"luid"`
	VendorID    uint32    `json:"vendor_id"`
	Description string    `gorm:"size:255" json:"description,omitempty"`
}

// TableName returns the table name for ProbeFeature.
func (ProbeFeature) TableName() string {
	return "probe_features"
}

// Validate checks direction, driver and codec names.
func (f *ProbeFeature) Validate() error {
	if f.Direction != DirectionEncode && f.Direction != DirectionDecode {
		return ErrInvalidDirection
	}
	if _, err := codec.ParseDriver(f.Driver); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDriver, f.Driver)
	}
	if _, err := codec.ParseKind(f.Codec); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidCodec, f.Codec)
	}
	return nil
}
