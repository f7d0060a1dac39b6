package transform

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrNoIntrinsics is when a camera does not have intrinsics parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError is used when the intriniscs are not defined.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// PinholeCameraIntrinsics holds the parameters necessary to do a perspective projection of a 3D scene to the 2D plane.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("Intrinsics do not exist")
	}
	if params.Width <= 0 || params.Height <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid size (%#v, %#v)", params.Width, params.Height))
	}
	if params.Fx <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fx = %#v", params.Fx))
	}
	if params.Fy <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fy = %#v", params.Fy))
	}
	if params.Ppx < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal X point Ppx = %#v", params.Ppx))
	}
	if params.Ppy < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal Y point Ppy = %#v", params.Ppy))
	}
	return nil
}

// Resolution returns the image size the intrinsics were calibrated for.
func (params *PinholeCameraIntrinsics) Resolution() Resolution {
	return Resolution{Width: params.Width, Height: params.Height}
}

// ReadPinholeCameraIntrinsics reads intrinsics saved as json and checks them.
func ReadPinholeCameraIntrinsics(path string) (*PinholeCameraIntrinsics, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "error reading intrinsics")
	}
	var intrinsics PinholeCameraIntrinsics
	if err := json.Unmarshal(data, &intrinsics); err != nil {
		return nil, errors.Wrapf(err, "error parsing intrinsics %q", path)
	}
	if err := intrinsics.CheckValid(); err != nil {
		return nil, errors.Wrapf(err, "intrinsics %q", path)
	}
	return &intrinsics, nil
}

// GetCameraMatrix creates a new camera matrix and returns it.
// Camera matrix:
// [[fx 0 ppx],
//
//	[0 fy ppy],
//	[0 0  1]]
func (params *PinholeCameraIntrinsics) GetCameraMatrix() *mat.Dense {
	if params == nil {
		return nil
	}
	cameraMatrix := mat.NewDense(3, 3, nil)
	cameraMatrix.Set(0, 0, params.Fx)
	cameraMatrix.Set(1, 1, params.Fy)
	cameraMatrix.Set(0, 2, params.Ppx)
	cameraMatrix.Set(1, 2, params.Ppy)
	cameraMatrix.Set(2, 2, 1)
	return cameraMatrix
}

// InverseCameraMatrix maps homogeneous pixels (x, y, 1) to camera rays with unit depth.
func (params *PinholeCameraIntrinsics) InverseCameraMatrix() (*mat.Dense, error) {
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	var inv mat.Dense
	if err := inv.Inverse(params.GetCameraMatrix()); err != nil {
		return nil, errors.Wrap(err, "camera matrix is not invertible")
	}
	return &inv, nil
}
