package probe

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/hwcodec/internal/codec"
)

// Exclusion is an adapter and codec pair that must not be probed.
type Exclusion struct {
	LUID  int64      `json:"luid" yaml:"luid"`
	Codec codec.Kind `json:"codec" yaml:"codec"`
}

// Exclusions is an ordered list of excluded pairs.
type Exclusions []Exclusion

// Contains reports whether the exact (luid, k) pair is excluded.
func (e Exclusions) Contains(luid int64, k codec.Kind) bool {
	return slices.Contains(e, Exclusion{LUID: luid, Codec: k})
}

// Add appends the pair unless it is already present.
func (e Exclusions) Add(luid int64, k codec.Kind) Exclusions {
	if e.Contains(luid, k) {
		return e
	}
	return append(e, Exclusion{LUID: luid, Codec: k})
}

type exclusionFile struct {
	Exclusions Exclusions `yaml:"exclusions"`
}

// LoadExclusions reads an exclusion list. A missing file is an empty list.
func LoadExclusions(path string) (Exclusions, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading exclusions: %w", err)
	}
	var f exclusionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing exclusions %s: %w", path, err)
	}
	return f.Exclusions, nil
}

// SaveExclusions writes the list, creating parent directories.
func SaveExclusions(path string, e Exclusions) error {
	data, err := yaml.Marshal(exclusionFile{Exclusions: e})
	if err != nil {
		return fmt.Errorf("encoding exclusions: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating exclusions dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing exclusions: %w", err)
	}
	return nil
}
