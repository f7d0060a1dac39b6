// Package hazard turns detector output into hazard records: objects small enough to be choking
// hazards, and objects whose class is on the dangerous label list.
package hazard

import (
	"strings"

	"github.com/golang/geo/r2"

	"github.com/babyproofxr/hazard/spatialmath"
)

// Perimeter sample positions, in the order they are stored in Record.PerimeterDistances.
const (
	Left = iota
	Right
	Top
	Bottom
)

// ZoneRef names the room zone a hazard sits in.
type ZoneRef struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Record is a detection that passed the hazard filter.
type Record struct {
	DetectionIndex int    `json:"detection_index"`
	ClassID        int    `json:"class_id"`
	Label          string `json:"label"`

	// ScreenCenter and ScreenSize are in display pixels with the origin at the display middle.
	ScreenCenter r2.Point `json:"screen_center"`
	ScreenSize   r2.Point `json:"screen_size"`

	WorldPosition    spatialmath.WorldPoint `json:"world_position"`
	IsDangerousLabel bool                   `json:"is_dangerous_label"`
	IsChokingHazard  bool                   `json:"is_choking_hazard"`

	// PerimeterDistances are the world distances from the center to the left, right, top and
	// bottom edge midpoints. A sample that missed is +Inf.
	PerimeterDistances [4]float64 `json:"-"`

	Zone *ZoneRef `json:"zone,omitempty"`
}

// WidthSum is the world extent measured across the box.
func (r Record) WidthSum() float64 {
	return r.PerimeterDistances[Left] + r.PerimeterDistances[Right]
}

// HeightSum is the world extent measured down the box.
func (r Record) HeightSum() float64 {
	return r.PerimeterDistances[Top] + r.PerimeterDistances[Bottom]
}

var labelReplacer = strings.NewReplacer(" ", "_", "\n", "_", "\r", "_", "\t", "_")

// NormalizeLabel trims a label and replaces inner whitespace with underscores.
func NormalizeLabel(label string) string {
	return labelReplacer.Replace(strings.TrimSpace(label))
}
