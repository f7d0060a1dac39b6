package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/babyproofxr/hazard/config"
	"github.com/babyproofxr/hazard/logging"
	"github.com/babyproofxr/hazard/rimage/transform"
	"github.com/babyproofxr/hazard/services/detection"
	"github.com/babyproofxr/hazard/spatialmath"
	"github.com/babyproofxr/hazard/vision/hazard"
	"github.com/babyproofxr/hazard/vision/objectdetection"
	"github.com/babyproofxr/hazard/zones"
)

// loadConfig reads the --config file, or returns defaults when required is false and none is given.
func loadConfig(c *cli.Context, required bool) (*config.Config, logging.Logger, error) {
	cfg := config.Default()
	path := c.String(flagConfig)
	bootLogger := logging.NewBlankLogger("hazard")
	bootLogger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	switch {
	case path != "":
		var err error
		cfg, err = config.Read(c.Context, path, bootLogger)
		if err != nil {
			return nil, nil, err
		}
	case required:
		return nil, nil, errors.New("this command needs --config")
	}

	logger, err := logging.NewWriterLoggerFromConfig("hazard", cfg.Log, c.App.ErrWriter)
	if err != nil {
		return nil, nil, err
	}
	if c.Bool(flagDebug) {
		logger.SetLevel(logging.DEBUG)
	}
	return cfg, logger, nil
}

func roomScanSource(c *cli.Context, cfg *config.Config) zones.RoomScanSource {
	if p := c.Path(flagRoomScan); p != "" {
		return zones.RoomScanFile(p)
	}
	return cfg.RoomScan()
}

// ClassifyAction runs a saved detector batch through a full inference cycle and prints the hazards.
// With --watch it runs again whenever the config file changes, until interrupted.
func ClassifyAction(c *cli.Context) error {
	cfg, logger, err := loadConfig(c, true)
	if err != nil {
		return err
	}
	//nolint:errcheck
	defer logger.Sync()

	batch, err := objectdetection.ReadBatchFile(c.Path(flagBatch))
	if err != nil {
		return err
	}
	caster, err := transform.NewDepthRayCasterFromJSONFile(c.Path(flagCamera))
	if err != nil {
		return err
	}
	geom, err := displayGeometry(c, batch)
	if err != nil {
		return err
	}
	cycle := detection.Cycle{
		Boxes:      detection.NewReadyReadback(batch.Tensor()),
		ClassIDs:   detection.NewReadyReadback(batch.ClassIDs),
		Geometry:   geom,
		Resolution: caster.Resolution(),
		Projector:  caster,
	}

	if err := classify(runContext(c), c, cfg, logger, cycle); err != nil {
		return err
	}
	if !c.Bool(flagWatch) {
		return nil
	}

	logger.CInfow(c.Context, "watching config for changes", "path", cfg.ConfigFilePath)
	return config.Watch(c.Context, cfg.ConfigFilePath, logger.Sublogger("config"), func(updated *config.Config) {
		cycle.Boxes = detection.NewReadyReadback(batch.Tensor())
		cycle.ClassIDs = detection.NewReadyReadback(batch.ClassIDs)
		if err := classify(runContext(c), c, updated, logger, cycle); err != nil {
			logger.CWarnw(c.Context, "cannot classify with the updated config", "error", err)
		}
	})
}

// runContext tags each classification with its own run key under --debug, so the log lines of
// one run can be told apart in --watch mode.
func runContext(c *cli.Context) context.Context {
	if c.Bool(flagDebug) {
		return logging.WithRunKey(c.Context, "")
	}
	return c.Context
}

// classify builds the pipeline and zones for cfg, runs one cycle and prints the records.
// A batch without detections prints no hazards.
func classify(ctx context.Context, c *cli.Context, cfg *config.Config, logger logging.Logger, cycle detection.Cycle) error {
	pipeline, err := cfg.NewPipeline(logger.Sublogger("hazard"))
	if err != nil {
		return err
	}
	registry := zones.NewRegistry(logger.Sublogger("zones"))
	if err := registry.BuildFromScan(ctx, roomScanSource(c, cfg), cfg.ZoneOffsets); err != nil {
		return err
	}

	session, err := detection.NewSession(detection.Config{
		Pipeline:        pipeline,
		Zones:           registry,
		ReadbackTimeout: cfg.ReadbackTimeout,
		OnObjectsDetected: func(count int) {
			logger.CInfow(ctx, "objects detected", "count", count)
		},
		Logger: logger.Sublogger("detection"),
	})
	if err != nil {
		return err
	}
	if _, err := session.Start(ctx, cycle); err != nil {
		return err
	}
	for session.Advance(ctx) != detection.StageDone {
	}
	if err := session.Err(); err != nil && !errors.Is(err, detection.ErrEmptyReadback) {
		return err
	}

	records := session.Records()
	if records == nil {
		records = []hazard.Record{}
	}
	if c.Bool(flagJSON) {
		md, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(c.App.Writer, string(md))
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, recordTable(records))
	return err
}

func displayGeometry(c *cli.Context, batch *objectdetection.BatchFile) (objectdetection.DisplayGeometry, error) {
	geom := objectdetection.DisplayGeometry{
		DisplayWidth:  float64(batch.ImageWidth),
		DisplayHeight: float64(batch.ImageHeight),
		ImageWidth:    float64(batch.ImageWidth),
		ImageHeight:   float64(batch.ImageHeight),
	}
	if size := c.IntSlice(flagDisplay); len(size) > 0 {
		if len(size) != 2 {
			return geom, errors.Errorf("--%s takes a width and a height, got %v", flagDisplay, size)
		}
		geom.DisplayWidth, geom.DisplayHeight = float64(size[0]), float64(size[1])
	}
	return geom, geom.Validate()
}

func recordTable(records []hazard.Record) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Label", "Class", "Dangerous", "Choking", "Width (m)", "Height (m)", "Position", "Zone"})
	for _, r := range records {
		zone := ""
		if r.Zone != nil {
			zone = r.Zone.ID
		}
		t.AppendRow(table.Row{
			r.DetectionIndex,
			r.Label,
			r.ClassID,
			r.IsDangerousLabel,
			r.IsChokingHazard,
			formatMeters(r.WidthSum()),
			formatMeters(r.HeightSum()),
			formatPoint(r.WorldPosition),
			zone,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "", "hazards", len(records)})
	return t.Render()
}

func formatMeters(v float64) string {
	if math.IsInf(v, 1) {
		return "-"
	}
	return fmt.Sprintf("%.3f", v)
}

func formatPoint(p spatialmath.WorldPoint) string {
	if !p.Hit() {
		return "-"
	}
	v, _ := p.Point()
	return fmt.Sprintf("X:%.3f, Y:%.3f, Z:%.3f", v.X, v.Y, v.Z)
}

// ZonesAction builds zones from the room scan and prints them, optionally locating a point.
func ZonesAction(c *cli.Context) error {
	cfg, logger, err := loadConfig(c, false)
	if err != nil {
		return err
	}
	//nolint:errcheck
	defer logger.Sync()

	surfaces, err := roomScanSource(c, cfg).RoomScan(c.Context)
	if err != nil {
		return err
	}
	registry := zones.NewRegistry(logger.Sublogger("zones"))
	if err := registry.Build(c.Context, surfaces, cfg.ZoneOffsets); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(c.App.Writer, zoneTable(registry.Zones())); err != nil {
		return err
	}

	coords := c.Float64Slice(flagPoint)
	if len(coords) == 0 {
		return nil
	}
	if len(coords) != 3 {
		return errors.Errorf("--%s takes x, y and z, got %v", flagPoint, coords)
	}
	p := spatialmath.NewWorldPoint(r3.Vector{X: coords[0], Y: coords[1], Z: coords[2]})
	id, ok := registry.ZoneID(p)
	if !ok {
		id = "none"
	}
	_, err = fmt.Fprintf(c.App.Writer, "%s is in zone %s\n", formatPoint(p), id)
	return err
}

func zoneTable(zs []*zones.Zone) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"ID", "Label", "Kind", "Origin", "External half size", "Internal half size"})
	for _, z := range zs {
		internal := "-"
		if z.HasInterior() {
			internal = formatVector(z.Internal.HalfSize)
		}
		t.AppendRow(table.Row{
			z.ID,
			z.Label,
			z.Kind,
			formatVector(z.Pose.Point()),
			formatVector(z.External.HalfSize),
			internal,
		})
	}
	return t.Render()
}

func formatVector(v r3.Vector) string {
	return fmt.Sprintf("X:%.2f, Y:%.2f, Z:%.2f", v.X, v.Y, v.Z)
}

// SchemaAction prints the config file's json schema.
func SchemaAction(c *cli.Context) error {
	md, err := json.MarshalIndent(config.Schema(), "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, string(md))
	return err
}
