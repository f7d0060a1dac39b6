package zones

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Mode says how the horizontal component of an OffsetSet is applied.
type Mode string

const (
	// ModeAbsolute grows or shrinks the footprint by Horizontal meters on each side.
	ModeAbsolute Mode = "absolute"
	// ModeRatio scales the footprint half size by Horizontal.
	ModeRatio Mode = "ratio"
)

// OffsetSet is one offset. Vertical is always the half height of the bounds in meters.
type OffsetSet struct {
	Horizontal float64 `json:"horizontal"`
	Vertical   float64 `json:"vertical"`
	Mode       Mode    `json:"mode,omitempty"`
}

// OffsetPair is the external and internal offset of a zone.
type OffsetPair struct {
	External OffsetSet `json:"external"`
	Internal OffsetSet `json:"internal"`
}

// LabelOffsets overrides the offsets for one scene label.
type LabelOffsets struct {
	Label    string    `json:"label"`
	External OffsetSet `json:"external"`
	Internal OffsetSet `json:"internal"`
}

// OffsetConfig holds per label offsets and an optional default pair.
type OffsetConfig struct {
	Labels  []LabelOffsets `json:"labels,omitempty"`
	Default *OffsetPair    `json:"default,omitempty"`
}

// FallbackOffsets is used for a label with no entry when the config has no default.
func FallbackOffsets() OffsetPair {
	set := OffsetSet{Horizontal: 0.2, Vertical: 0.2, Mode: ModeAbsolute}
	return OffsetPair{External: set, Internal: set}
}

// RatioDefaults is a ratio based default pair: a 20% margin outside the surface and a hole of
// 80% of the surface, both 0.2m high.
func RatioDefaults() OffsetPair {
	return OffsetPair{
		External: OffsetSet{Horizontal: 1.2, Vertical: 0.2, Mode: ModeRatio},
		Internal: OffsetSet{Horizontal: 0.8, Vertical: 0.2, Mode: ModeRatio},
	}
}

// Resolve returns the offsets for label: the first matching label entry, then the default pair,
// then FallbackOffsets.
func (oc OffsetConfig) Resolve(label string) OffsetPair {
	for _, entry := range oc.Labels {
		if entry.Label == label {
			return OffsetPair{External: entry.External, Internal: entry.Internal}
		}
	}
	if oc.Default != nil {
		return *oc.Default
	}
	return FallbackOffsets()
}

// Validate returns every problem with the config.
func (oc OffsetConfig) Validate(path string) error {
	var err error
	for i, entry := range oc.Labels {
		entryPath := fmt.Sprintf("%s.labels.%d", path, i)
		if entry.Label == "" {
			err = multierr.Append(err, errors.Errorf("%s: label is required", entryPath))
		}
		pair := OffsetPair{External: entry.External, Internal: entry.Internal}
		err = multierr.Append(err, pair.Validate(entryPath))
	}
	if oc.Default != nil {
		err = multierr.Append(err, oc.Default.Validate(path+".default"))
	}
	return err
}

// Validate checks both offsets and that the internal bounds can never outgrow the external ones.
// Mixed modes whose nesting depends on the surface size are left to Build, which clamps.
func (p OffsetPair) Validate(path string) error {
	setErrs := multierr.Combine(
		p.External.validate(path+".external"),
		p.Internal.validate(path+".internal"),
	)
	if setErrs != nil {
		return setErrs
	}

	var err error
	ext, in := p.External, p.Internal
	if in.Vertical > ext.Vertical {
		err = multierr.Append(err, errors.Errorf(
			"%s: internal vertical %v exceeds external vertical %v", path, in.Vertical, ext.Vertical))
	}
	switch {
	case ext.mode() == ModeAbsolute && ext.Horizontal < 0:
		err = multierr.Append(err, errors.Errorf(
			"%s.external.horizontal must not be negative in absolute mode", path))
	case ext.mode() == ModeRatio && in.mode() == ModeRatio && in.Horizontal > ext.Horizontal:
		err = multierr.Append(err, errors.Errorf(
			"%s: internal ratio %v exceeds external ratio %v", path, in.Horizontal, ext.Horizontal))
	case ext.mode() == ModeAbsolute && in.mode() == ModeAbsolute && -in.Horizontal > ext.Horizontal:
		err = multierr.Append(err, errors.Errorf(
			"%s: internal margin %v grows past external margin %v", path, in.Horizontal, ext.Horizontal))
	case ext.mode() == ModeAbsolute && in.mode() == ModeRatio && in.Horizontal > 1:
		err = multierr.Append(err, errors.Errorf(
			"%s.internal.horizontal ratio above 1 can outgrow an absolute external margin", path))
	}
	return err
}

func (s OffsetSet) mode() Mode {
	if s.Mode == "" {
		return ModeAbsolute
	}
	return s.Mode
}

func (s OffsetSet) validate(path string) error {
	var err error
	switch s.Mode {
	case "", ModeAbsolute, ModeRatio:
	default:
		err = multierr.Append(err, errors.Errorf("%s: unknown mode %q", path, s.Mode))
	}
	if !finite(s.Horizontal) {
		err = multierr.Append(err, errors.Errorf("%s.horizontal must be finite", path))
	}
	if !finite(s.Vertical) {
		err = multierr.Append(err, errors.Errorf("%s.vertical must be finite", path))
	}
	if s.Vertical < 0 {
		err = multierr.Append(err, errors.Errorf("%s.vertical must not be negative", path))
	}
	if s.Mode == ModeRatio && s.Horizontal < 0 {
		err = multierr.Append(err, errors.Errorf("%s.horizontal ratio must not be negative", path))
	}
	return err
}

// externalHalfSize grows a footprint of half size (hw, hd).
func (s OffsetSet) externalHalfSize(hw, hd float64) r3.Vector {
	if s.mode() == ModeRatio {
		return r3.Vector{X: hw * s.Horizontal, Y: s.Vertical, Z: hd * s.Horizontal}
	}
	return r3.Vector{X: hw + s.Horizontal, Y: s.Vertical, Z: hd + s.Horizontal}
}

// internalHalfSize shrinks a footprint of half size (hw, hd), never below zero.
func (s OffsetSet) internalHalfSize(hw, hd float64) r3.Vector {
	var v r3.Vector
	if s.mode() == ModeRatio {
		v = r3.Vector{X: hw * s.Horizontal, Y: s.Vertical, Z: hd * s.Horizontal}
	} else {
		v = r3.Vector{X: hw - s.Horizontal, Y: s.Vertical, Z: hd - s.Horizontal}
	}
	return r3.Vector{X: math.Max(0, v.X), Y: math.Max(0, v.Y), Z: math.Max(0, v.Z)}
}

// halfSizes returns the external and internal half sizes for a footprint of half size (hw, hd).
// The internal half size is clamped to the external one on every axis.
func (p OffsetPair) halfSizes(hw, hd float64) (external, internal r3.Vector) {
	external = p.External.externalHalfSize(hw, hd)
	external = r3.Vector{X: math.Max(0, external.X), Y: math.Max(0, external.Y), Z: math.Max(0, external.Z)}
	internal = p.Internal.internalHalfSize(hw, hd)
	internal = r3.Vector{
		X: math.Min(internal.X, external.X),
		Y: math.Min(internal.Y, external.Y),
		Z: math.Min(internal.Z, external.Z),
	}
	return external, internal
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
