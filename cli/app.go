// Package cli contains the hazard command line tool.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	flagConfig   = "config"
	flagDebug    = "debug"
	flagBatch    = "batch"
	flagCamera   = "camera"
	flagDisplay  = "display-size"
	flagRoomScan = "room-scan"
	flagPoint    = "point"
	flagJSON     = "json"
	flagWatch    = "watch"
)

// NewApp returns the hazard CLI writing its output to out and logs and errors to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "hazard",
		Usage:           "classify detections as child-safety hazards and inspect room zones",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "classify",
				Usage:     "run one detector batch through the hazard pipeline",
				UsageText: "hazard --config hazard.json classify --batch batch.json --camera camera.json",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:     flagBatch,
						Usage:    "detector batch `FILE` (image size, boxes, class ids)",
						Required: true,
					},
					&cli.PathFlag{
						Name:     flagCamera,
						Usage:    "depth camera `FILE` (intrinsics, pose, depth map)",
						Required: true,
					},
					&cli.IntSliceFlag{
						Name:  flagDisplay,
						Usage: "display width and height in pixels, defaults to the batch image size",
					},
					&cli.PathFlag{
						Name:  flagRoomScan,
						Usage: "room scan `FILE` to annotate hazards with zones, overrides the config",
					},
					&cli.BoolFlag{
						Name:  flagJSON,
						Usage: "print records as json",
					},
					&cli.BoolFlag{
						Name:  flagWatch,
						Usage: "classify again whenever the config file changes, until interrupted",
					},
				},
				Action: ClassifyAction,
			},
			{
				Name:  "zones",
				Usage: "build hazard zones from a room scan",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:  flagRoomScan,
						Usage: "room scan `FILE`, overrides the config",
					},
					&cli.Float64SliceFlag{
						Name:  flagPoint,
						Usage: "world point x,y,z in meters to look up",
					},
				},
				Action: ZonesAction,
			},
			{
				Name:   "schema",
				Usage:  "print the json schema of the config file",
				Action: SchemaAction,
			},
		},
	}
}
