package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.viam.com/test"
)

const roomScan = `{
	"surfaces": [
		{
			"label": "FLOOR",
			"kind": "plane",
			"anchor": {"position": {"x": 0, "y": 0, "z": 0}, "orientation": {"roll": -90, "pitch": 0, "yaw": 0}},
			"rect": {"x_min": -2, "x_max": 2, "y_min": -1, "y_max": 1}
		},
		{
			"label": "TABLE",
			"kind": "volume",
			"anchor": {"position": {"x": 5, "y": 0, "z": 0}, "orientation": {"roll": -90}},
			"min": {"x": -0.5, "y": -0.3, "z": 0},
			"max": {"x": 0.5, "y": 0.3, "z": 0.7}
		}
	]
}`

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	test.That(t, os.WriteFile(p, []byte(contents), 0o600), test.ShouldBeNil)
	return p
}

// fixtures writes a 10x10 camera looking at a wall one meter away, one millimeter per pixel,
// and a batch with a small ball, a large sofa and a knife.
func fixtures(t *testing.T) (dir, cfgPath, batchPath, cameraPath string) {
	t.Helper()
	dir = t.TempDir()
	writeFile(t, dir, "labels.txt", "ball\nknife\nsofa\n")
	writeFile(t, dir, "dangerous.txt", "knife\n")
	cfgPath = writeFile(t, dir, "hazard.json", `{
		"labels_path": "labels.txt",
		"dangerous_labels_path": "dangerous.txt",
		"choking_hazard_max_size_m": 0.005,
		"log": {"level": "warn"}
	}`)
	batchPath = writeFile(t, dir, "batch.json", `{
		"image_width": 10,
		"image_height": 10,
		"boxes": [[5, 5, 1, 1], [5, 5, 10, 10], [2, 2, 2, 2]],
		"class_ids": [0, 2, 1]
	}`)
	depth := strings.TrimSuffix(strings.Repeat("1000,", 100), ",")
	writeFile(t, dir, "depth.json", `{"width": 10, "height": 10, "depth_mm": [`+depth+`]}`)
	cameraPath = writeFile(t, dir, "camera.json", `{
		"intrinsic_parameters": {"width_px": 10, "height_px": 10, "fx": 1000, "fy": 1000, "ppx": 5, "ppy": 5},
		"depth_map": "depth.json"
	}`)
	return dir, cfgPath, batchPath, cameraPath
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).Run(append([]string{"hazard"}, args...))
	return out.String(), errOut.String(), err
}

func TestClassifyAction(t *testing.T) {
	_, cfgPath, batchPath, cameraPath := fixtures(t)

	t.Run("table", func(t *testing.T) {
		out, errOut, err := run(t, "--config", cfgPath, "classify", "--batch", batchPath, "--camera", cameraPath)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out, test.ShouldContainSubstring, "ball")
		test.That(t, out, test.ShouldContainSubstring, "knife")
		test.That(t, out, test.ShouldNotContainSubstring, "sofa")
		test.That(t, out, test.ShouldContainSubstring, "HAZARDS")
		// no room scan is configured, which is only a warning
		test.That(t, errOut, test.ShouldContainSubstring, "no room scan")
	})

	t.Run("json", func(t *testing.T) {
		out, _, err := run(t, "-c", cfgPath, "classify", "--batch", batchPath, "--camera", cameraPath, "--json")
		test.That(t, err, test.ShouldBeNil)
		var records []map[string]interface{}
		test.That(t, json.Unmarshal([]byte(out), &records), test.ShouldBeNil)
		test.That(t, records, test.ShouldHaveLength, 2)
		test.That(t, records[0]["label"], test.ShouldEqual, "ball")
		test.That(t, records[0]["is_choking_hazard"], test.ShouldEqual, true)
		test.That(t, records[1]["label"], test.ShouldEqual, "knife")
		test.That(t, records[1]["is_dangerous_label"], test.ShouldEqual, true)
	})

	t.Run("debug run key", func(t *testing.T) {
		_, errOut, err := run(t, "-c", cfgPath, "--debug", "classify", "--batch", batchPath, "--camera", cameraPath)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, errOut, test.ShouldContainSubstring, "objects detected")
		test.That(t, errOut, test.ShouldContainSubstring, `"run": "`)
	})

	t.Run("empty batch", func(t *testing.T) {
		emptyPath := writeFile(t, t.TempDir(), "empty.json", `{"image_width": 10, "image_height": 10, "boxes": [], "class_ids": []}`)
		out, _, err := run(t, "-c", cfgPath, "classify", "--batch", emptyPath, "--camera", cameraPath, "--json")
		test.That(t, err, test.ShouldBeNil)
		var records []map[string]interface{}
		test.That(t, json.Unmarshal([]byte(out), &records), test.ShouldBeNil)
		test.That(t, records, test.ShouldNotBeNil)
		test.That(t, records, test.ShouldHaveLength, 0)

		out, _, err = run(t, "-c", cfgPath, "classify", "--batch", emptyPath, "--camera", cameraPath)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out, test.ShouldContainSubstring, "HAZARDS")
		test.That(t, out, test.ShouldNotContainSubstring, "ball")
	})

	t.Run("class filter", func(t *testing.T) {
		dir := filepath.Dir(cfgPath)
		knivesOnly := writeFile(t, dir, "knives.json", `{
			"labels_path": "labels.txt",
			"dangerous_labels_path": "dangerous.txt",
			"choking_hazard_max_size_m": 0.005,
			"class_ids": [1]
		}`)
		out, _, err := run(t, "-c", knivesOnly, "classify", "--batch", batchPath, "--camera", cameraPath, "--json")
		test.That(t, err, test.ShouldBeNil)
		var records []map[string]interface{}
		test.That(t, json.Unmarshal([]byte(out), &records), test.ShouldBeNil)
		test.That(t, records, test.ShouldHaveLength, 1)
		test.That(t, records[0]["label"], test.ShouldEqual, "knife")
	})

	t.Run("errors", func(t *testing.T) {
		_, _, err := run(t, "classify", "--batch", batchPath, "--camera", cameraPath)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "--config")

		_, _, err = run(t, "-c", cfgPath, "classify", "--batch", batchPath)
		test.That(t, err, test.ShouldNotBeNil)

		_, _, err = run(t, "-c", cfgPath, "classify", "--batch", batchPath, "--camera", cameraPath, "--display-size", "100")
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "a width and a height")

		_, _, err = run(t, "-c", cfgPath, "classify", "--batch", cameraPath, "--camera", cameraPath)
		test.That(t, err, test.ShouldNotBeNil)
	})
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestClassifyWatch(t *testing.T) {
	_, cfgPath, batchPath, cameraPath := fixtures(t)
	out := &syncBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- NewApp(out, io.Discard).RunContext(ctx, []string{
			"hazard", "-c", cfgPath, "classify", "--batch", batchPath, "--camera", cameraPath, "--json", "--watch",
		})
	}()

	deadline := time.Now().Add(10 * time.Second)
	for !strings.Contains(out.String(), `"knife"`) {
		test.That(t, time.Now().Before(deadline), test.ShouldBeTrue)
		time.Sleep(20 * time.Millisecond)
	}

	// dropping the dangerous labels leaves only the ball
	noDanger := `{"labels_path": "labels.txt", "choking_hazard_max_size_m": 0.005, "log": {"level": "warn"}}`
	for strings.Count(out.String(), `"ball"`) < 2 {
		test.That(t, time.Now().Before(deadline), test.ShouldBeTrue)
		test.That(t, os.WriteFile(cfgPath, []byte(noDanger), 0o600), test.ShouldBeNil)
		time.Sleep(200 * time.Millisecond)
	}
	test.That(t, strings.Count(out.String(), `"knife"`), test.ShouldEqual, 1)

	cancel()
	select {
	case err := <-done:
		test.That(t, err, test.ShouldBeNil)
	case <-time.After(10 * time.Second):
		t.Fatal("classify --watch did not stop")
	}
}

func TestZonesAction(t *testing.T) {
	dir := t.TempDir()
	scanPath := writeFile(t, dir, "scan.json", roomScan)

	out, _, err := run(t, "zones", "--room-scan", scanPath, "--point", "5.6,0.7,0")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "Zone_FLOOR_0")
	test.That(t, out, test.ShouldContainSubstring, "Zone_TABLE_1")
	test.That(t, out, test.ShouldContainSubstring, "volume_top")
	test.That(t, out, test.ShouldContainSubstring, "is in zone Zone_TABLE_1")

	out, _, err = run(t, "zones", "--room-scan", scanPath, "--point", "5,0.7,0")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "is in zone none")

	_, _, err = run(t, "zones", "--room-scan", scanPath, "--point", "1,2")
	test.That(t, err, test.ShouldNotBeNil)

	_, _, err = run(t, "zones")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "room scan is not available")
}

func TestSchemaAction(t *testing.T) {
	out, _, err := run(t, "schema")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "dangerous_labels_path")
	test.That(t, out, test.ShouldContainSubstring, "zone_offsets")
}
