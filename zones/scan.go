package zones

import (
	"context"
	"encoding/json"
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/babyproofxr/hazard/spatialmath"
)

// ErrUnresolvedRoomScan means no room scan is available to build zones from.
var ErrUnresolvedRoomScan = errors.New("room scan is not available")

// RoomScanSource supplies the surfaces of the current room.
type RoomScanSource interface {
	RoomScan(ctx context.Context) ([]Surface, error)
}

// StaticRoomScan is a RoomScanSource over surfaces already in memory. An empty scan is unresolved.
type StaticRoomScan []Surface

// RoomScan returns the surfaces.
func (s StaticRoomScan) RoomScan(ctx context.Context) ([]Surface, error) {
	if len(s) == 0 {
		return nil, ErrUnresolvedRoomScan
	}
	return s, nil
}

// RoomScanFile is a RoomScanSource read from a JSON file on every call.
type RoomScanFile string

// RoomScan reads the file. A missing file or a file with no surfaces is unresolved.
func (f RoomScanFile) RoomScan(ctx context.Context) ([]Surface, error) {
	if f == "" {
		return nil, ErrUnresolvedRoomScan
	}
	return ReadRoomScan(string(f))
}

type surfaceJSON struct {
	Label  string                  `json:"label"`
	Kind   string                  `json:"kind"`
	Anchor *spatialmath.PoseConfig `json:"anchor,omitempty"`
	Rect   *spatialmath.Rect       `json:"rect,omitempty"`
	Min    *r3.Vector              `json:"min,omitempty"`
	Max    *r3.Vector              `json:"max,omitempty"`
}

type roomScanJSON struct {
	Surfaces []surfaceJSON `json:"surfaces"`
}

// ReadRoomScan reads a room scan file.
func ReadRoomScan(path string) ([]Surface, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrapf(ErrUnresolvedRoomScan, "no scan at %q", path)
	}
	if err != nil {
		return nil, errors.Wrap(err, "error reading room scan")
	}
	return ParseRoomScan(data)
}

// ParseRoomScan decodes {"surfaces": [...]} where each surface has a label, a kind of "plane" or
// "volume", an anchor pose, and either a rect or min and max.
func ParseRoomScan(data []byte) ([]Surface, error) {
	var raw roomScanJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "error parsing room scan")
	}
	if len(raw.Surfaces) == 0 {
		return nil, errors.Wrap(ErrUnresolvedRoomScan, "room scan has no surfaces")
	}
	surfaces := make([]Surface, 0, len(raw.Surfaces))
	for i, s := range raw.Surfaces {
		anchor, err := s.Anchor.ParseConfig()
		if err != nil {
			return nil, errors.Wrapf(err, "surface %d anchor", i)
		}
		switch s.Kind {
		case "plane":
			if s.Rect == nil {
				return nil, errors.Errorf("surface %d: plane %q needs a rect", i, s.Label)
			}
			surfaces = append(surfaces, Plane{Label: s.Label, Anchor: anchor, Rect: *s.Rect})
		case "volume":
			if s.Min == nil || s.Max == nil {
				return nil, errors.Errorf("surface %d: volume %q needs min and max", i, s.Label)
			}
			surfaces = append(surfaces, Volume{Label: s.Label, Anchor: anchor, Min: *s.Min, Max: *s.Max})
		default:
			return nil, errors.Errorf("surface %d: unknown kind %q", i, s.Kind)
		}
	}
	return surfaces, nil
}
