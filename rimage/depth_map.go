// Package rimage holds the image-plane data the hazard engine samples, chiefly depth maps.
package rimage

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Depth is the depth in millimeters. Zero means the sensor had no return for the pixel.
type Depth uint16

// MaxDepth is the largest representable depth.
const MaxDepth = Depth(65535)

// DepthMap is a row-major grid of depths.
type DepthMap struct {
	width  int
	height int

	data []Depth
}

// NewEmptyDepthMap returns a width x height depth map with no returns.
func NewEmptyDepthMap(width, height int) *DepthMap {
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]Depth, width*height),
	}
}

// NewDepthMapFromData wraps row-major data, which must hold width*height values.
func NewDepthMapFromData(width, height int, data []Depth) (*DepthMap, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("bad width or height for depth map %v %v", width, height)
	}
	if len(data) != width*height {
		return nil, errors.Errorf("depth map %dx%d needs %d values, got %d", width, height, width*height, len(data))
	}
	return &DepthMap{width: width, height: height, data: data}, nil
}

// HasData reports whether the map has any pixels.
func (dm *DepthMap) HasData() bool {
	return dm != nil && dm.width > 0 && dm.height > 0
}

// Width returns the number of columns.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the number of rows.
func (dm *DepthMap) Height() int {
	return dm.height
}

// Bounds returns the pixel rectangle of the map.
func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

// Contains reports whether (x, y) is a pixel of the map.
func (dm *DepthMap) Contains(x, y int) bool {
	return x >= 0 && y >= 0 && x < dm.width && y < dm.height
}

// Get returns the depth at p, or 0 outside the map.
func (dm *DepthMap) Get(p image.Point) Depth {
	return dm.GetDepth(p.X, p.Y)
}

// GetDepth returns the depth at (x, y), or 0 outside the map.
func (dm *DepthMap) GetDepth(x, y int) Depth {
	if !dm.Contains(x, y) {
		return 0
	}
	return dm.data[y*dm.width+x]
}

// Set sets the depth at (x, y). Out of range writes are ignored.
func (dm *DepthMap) Set(x, y int, val Depth) {
	if !dm.Contains(x, y) {
		return
	}
	dm.data[y*dm.width+x] = val
}

// MinMax returns the smallest and largest non-zero depths.
func (dm *DepthMap) MinMax() (Depth, Depth) {
	min, max := MaxDepth, Depth(0)
	for _, d := range dm.data {
		if d == 0 {
			continue
		}
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	if max == 0 {
		return 0, 0
	}
	return min, max
}

func readNext(r io.Reader) (int64, error) {
	data := make([]byte, 8)
	if _, err := io.ReadFull(r, data); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(data)), nil
}

// ParseDepthMap reads a depth map file, gunzipping it when the name ends in .gz.
// Files ending in .json are read with ReadDepthMapJSON, everything else with ReadDepthMap.
func ParseDepthMap(fn string) (dm *DepthMap, err error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	var r io.Reader = f
	name := fn
	if filepath.Ext(fn) == ".gz" {
		name = strings.TrimSuffix(fn, ".gz")
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "opening gzip depth map %q", fn)
		}
		defer func() {
			err = multierr.Combine(err, gz.Close())
		}()
		r = gz
	}

	if filepath.Ext(name) == ".json" {
		return ReadDepthMapJSON(r)
	}
	return ReadDepthMap(bufio.NewReader(r))
}

type depthMapJSON struct {
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	DepthMM []Depth `json:"depth_mm"`
}

// ReadDepthMapJSON reads {"width", "height", "depth_mm"} where depth_mm is row-major.
func ReadDepthMapJSON(r io.Reader) (*DepthMap, error) {
	var raw depthMapJSON
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "error parsing depth map JSON")
	}
	return NewDepthMapFromData(raw.Width, raw.Height, raw.DepthMM)
}

// MarshalJSON writes the same shape ReadDepthMapJSON reads.
func (dm *DepthMap) MarshalJSON() ([]byte, error) {
	return json.Marshal(depthMapJSON{Width: dm.width, Height: dm.height, DepthMM: dm.data})
}

// ReadDepthMap reads the binary format: little endian uint64 width and height, followed by
// width*height uint64 depths in row-major order.
func ReadDepthMap(r io.Reader) (*DepthMap, error) {
	rawWidth, err := readNext(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading depth map width")
	}
	rawHeight, err := readNext(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading depth map height")
	}
	width, height := int(rawWidth), int(rawHeight)
	if width <= 0 || width >= 100000 || height <= 0 || height >= 100000 {
		return nil, errors.Errorf("bad width or height for depth map %v %v", width, height)
	}

	dm := NewEmptyDepthMap(width, height)
	for i := range dm.data {
		v, err := readNext(r)
		if err != nil {
			return nil, errors.Wrapf(err, "reading depth %d of %d", i, len(dm.data))
		}
		if v < 0 || v > int64(MaxDepth) {
			return nil, errors.Errorf("depth %d out of range at %d", v, i)
		}
		dm.data[i] = Depth(v)
	}
	return dm, nil
}

// WriteToFile writes the map in the binary format, gzipped when the name ends in .gz.
func (dm *DepthMap) WriteToFile(fn string) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	var out io.Writer = f
	if filepath.Ext(fn) == ".gz" {
		gout := gzip.NewWriter(f)
		defer func() {
			err = multierr.Combine(err, gout.Close())
		}()
		out = gout
	}
	_, err = dm.WriteTo(out)
	return err
}

// WriteTo writes the map in the binary format.
func (dm *DepthMap) WriteTo(out io.Writer) (int64, error) {
	buf := make([]byte, 8)
	var written int64
	put := func(v uint64) error {
		binary.LittleEndian.PutUint64(buf, v)
		n, err := out.Write(buf)
		written += int64(n)
		return err
	}

	if err := put(uint64(dm.width)); err != nil {
		return written, err
	}
	if err := put(uint64(dm.height)); err != nil {
		return written, err
	}
	for _, d := range dm.data {
		if err := put(uint64(d)); err != nil {
			return written, err
		}
	}
	return written, nil
}
