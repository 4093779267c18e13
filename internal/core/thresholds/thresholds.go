// Package thresholds holds the live floor-strike thresholds and the path
// that reloads them from a key-value document without a restart.
package thresholds

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Thresholds are negative-going limits on the vertical axis. An impact needs
// the acceleration estimate below AccFactor and the velocity estimate below
// VelFactor on the same tick.
type Thresholds struct {
	AccFactor float32 `json:"acc_factor" yaml:"acc_factor"`
	VelFactor float32 `json:"vel_factor" yaml:"vel_factor"`
}

type Format uint8

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFor picks the document format from a file extension.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// document uses pointers so that absent keys are distinguishable from zero.
type document struct {
	AccFactor *float32 `json:"acc_factor" yaml:"acc_factor"`
	VelFactor *float32 `json:"vel_factor" yaml:"vel_factor"`
}

// Decode parses a thresholds document. Both keys are required and must be
// finite; unknown keys are ignored.
func Decode(data []byte, format Format) (Thresholds, error) {
	var doc document
	var err error
	switch format {
	case FormatYAML:
		err = yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return Thresholds{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	if doc.AccFactor == nil {
		return Thresholds{}, fmt.Errorf("%w: %w: acc_factor", ErrInvalidDocument, ErrMissingField)
	}
	if doc.VelFactor == nil {
		return Thresholds{}, fmt.Errorf("%w: %w: vel_factor", ErrInvalidDocument, ErrMissingField)
	}

	t := Thresholds{AccFactor: *doc.AccFactor, VelFactor: *doc.VelFactor}
	if !finite(t.AccFactor) || !finite(t.VelFactor) {
		return Thresholds{}, fmt.Errorf("%w: non-finite value", ErrInvalidDocument)
	}
	return t, nil
}

func finite(f float32) bool {
	v := float64(f)
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Store holds the single live Thresholds value. The zero Store is empty.
type Store struct {
	current atomic.Pointer[Thresholds]
}

func NewStore(initial *Thresholds) *Store {
	s := &Store{}
	if initial != nil {
		s.Swap(*initial)
	}
	return s
}

// Load returns the live value; ok is false until the first successful swap.
func (s *Store) Load() (Thresholds, bool) {
	p := s.current.Load()
	if p == nil {
		return Thresholds{}, false
	}
	return *p, true
}

// Current returns a pointer to an immutable snapshot, or nil when empty.
func (s *Store) Current() *Thresholds {
	return s.current.Load()
}

// Swap atomically replaces the live value.
func (s *Store) Swap(t Thresholds) {
	s.current.Store(&t)
}
