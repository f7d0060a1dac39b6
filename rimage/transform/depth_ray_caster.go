package transform

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/babyproofxr/hazard/rimage"
	"github.com/babyproofxr/hazard/spatialmath"
)

// DepthRayCaster projects screen points by sampling a depth map from a calibrated camera.
// The camera frame is the usual optical frame: +X right, +Y down, +Z forward.
type DepthRayCaster struct {
	intrinsics    *PinholeCameraIntrinsics
	pixelToRay    *mat.Dense
	cameraToWorld spatialmath.Pose
	depth         *rimage.DepthMap
}

// NewDepthRayCaster returns a caster for a depth map taken by a camera with the given intrinsics
// and camera-to-world pose. The depth map must match the intrinsics resolution.
func NewDepthRayCaster(
	intrinsics *PinholeCameraIntrinsics,
	cameraToWorld spatialmath.Pose,
	dm *rimage.DepthMap,
) (*DepthRayCaster, error) {
	pixelToRay, err := intrinsics.InverseCameraMatrix()
	if err != nil {
		return nil, err
	}
	if !dm.HasData() {
		return nil, errors.New("depth map has no data")
	}
	if intrinsics.Width != dm.Width() || intrinsics.Height != dm.Height() {
		return nil, errors.Errorf("depth map dimension and intrinsics don't match DepthMap(%d,%d) != Intrinsics(%d,%d)",
			dm.Width(), dm.Height(), intrinsics.Width, intrinsics.Height)
	}
	if cameraToWorld == nil {
		cameraToWorld = spatialmath.NewZeroPose()
	}
	return &DepthRayCaster{
		intrinsics:    intrinsics,
		pixelToRay:    pixelToRay,
		cameraToWorld: cameraToWorld,
		depth:         dm,
	}, nil
}

// Resolution is the size of the depth map the caster samples.
func (c *DepthRayCaster) Resolution() Resolution {
	return c.intrinsics.Resolution()
}

// Project implements RayProjector. Pixels outside the frame and pixels without a depth return are misses.
func (c *DepthRayCaster) Project(ctx context.Context, nx, ny float64, res Resolution) spatialmath.WorldPoint {
	if ctx.Err() != nil || !res.Valid() || !finite(nx) || !finite(ny) {
		return spatialmath.NoHit()
	}
	px := PixelFor(nx, ny, res)
	if px.X < 0 || px.X > res.Width || px.Y < 0 || px.Y > res.Height {
		return spatialmath.NoHit()
	}
	col := min(px.X, res.Width-1)
	row := min(res.Height-px.Y, res.Height-1)

	// sample in depth map space when the caller's resolution differs
	if res.Width != c.depth.Width() || res.Height != c.depth.Height() {
		col = col * c.depth.Width() / res.Width
		row = row * c.depth.Height() / res.Height
	}

	d := c.depth.GetDepth(col, row)
	if d == 0 {
		return spatialmath.NoHit()
	}
	return spatialmath.NewWorldPoint(spatialmath.TransformPoint(c.cameraToWorld, c.backProject(col, row, d)))
}

// backProject returns the camera frame point, in meters, seen at a depth map pixel.
func (c *DepthRayCaster) backProject(col, row int, d rimage.Depth) r3.Vector {
	var ray mat.VecDense
	ray.MulVec(c.pixelToRay, mat.NewVecDense(3, []float64{float64(col), float64(row), 1}))
	z := float64(d) / 1000
	return r3.Vector{X: ray.AtVec(0) * z, Y: ray.AtVec(1) * z, Z: z}
}

// DepthCameraConfig describes a depth camera snapshot on disk.
type DepthCameraConfig struct {
	Intrinsics *PinholeCameraIntrinsics `json:"intrinsic_parameters,omitempty"`
	// IntrinsicsFile is read with ReadPinholeCameraIntrinsics when Intrinsics is not set inline.
	// Relative paths are relative to the config file.
	IntrinsicsFile string                  `json:"intrinsics_file,omitempty"`
	Pose           *spatialmath.PoseConfig `json:"pose,omitempty"`
	// DepthMap is a path relative to the config file, read with rimage.ParseDepthMap.
	DepthMap string `json:"depth_map"`
}

// NewDepthRayCasterFromJSONFile loads a DepthCameraConfig and the depth map it refers to.
func NewDepthRayCasterFromJSONFile(jsonPath string) (*DepthRayCaster, error) {
	//nolint:gosec
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading camera config")
	}
	var cfg DepthCameraConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing camera config")
	}
	if cfg.DepthMap == "" {
		return nil, errors.Errorf("camera config %q has no depth_map", jsonPath)
	}
	pose, err := cfg.Pose.ParseConfig()
	if err != nil {
		return nil, errors.Wrap(err, "error parsing camera pose")
	}
	intrinsics := cfg.Intrinsics
	if intrinsics == nil && cfg.IntrinsicsFile != "" {
		intrinsics, err = ReadPinholeCameraIntrinsics(relativeTo(jsonPath, cfg.IntrinsicsFile))
		if err != nil {
			return nil, err
		}
	}
	dmPath := relativeTo(jsonPath, cfg.DepthMap)
	dm, err := rimage.ParseDepthMap(dmPath)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading depth map %q", dmPath)
	}
	return NewDepthRayCaster(intrinsics, pose, dm)
}

func relativeTo(configPath, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(configPath), p)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
