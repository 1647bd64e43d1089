package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/aura-ix/tomochan/container"
	"github.com/aura-ix/tomochan/deinflect"
	"github.com/aura-ix/tomochan/dictpack"
)

func newCmd_Convert() *cli.Command {
	var meta container.Meta
	return &cli.Command{
		Name:        "convert",
		Usage:       "Convert a dictionary corpus or a transform-set into a tomochan package.",
		Description: "Converts either a corpus directory into a dictionary package, or a transform-set JSON file into a deinflector package.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Usage:    "corpus directory (dict) or transform-set JSON file (deinflector)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "output",
				Usage:    "path of the package file to write",
				Required: true,
			},
			&cli.StringFlag{
				Name:        "name",
				Usage:       "user visible package name; defaults to the corpus title (dict) or the input file name (deinflector)",
				Destination: &meta.Name,
			},
			&cli.StringFlag{
				Name:        "revision-name",
				Usage:       "user visible revision name; defaults to the corpus revision",
				Destination: &meta.RevisionName,
			},
			&cli.Uint64Flag{
				Name:        "revision",
				Usage:       "internal revision number, larger is always newer",
				Destination: &meta.Revision,
			},
			&cli.StringFlag{
				Name:  "kind",
				Usage: "what to build; one of: dict, deinflector",
				Value: "dict",
			},
			&cli.BoolFlag{
				Name:  "progress",
				Usage: "show a progress bar while importing records",
				Value: true,
			},
		},
		Action: func(c *cli.Context) error {
			input := c.String("input")
			output := c.String("output")

			startedAt := time.Now()
			defer func() {
				klog.Infof("Finished in %s", time.Since(startedAt))
			}()

			switch kind := c.String("kind"); kind {
			case "dict":
				if ok, err := isDirectory(input); err != nil {
					return err
				} else if !ok {
					return fmt.Errorf("dict input must be a corpus directory")
				}
				payload, index, err := dictpack.ConvertDirectory(input, c.Bool("progress"))
				if err != nil {
					return err
				}
				if meta.Name == "" {
					meta.Name = index.Title
				}
				if meta.RevisionName == "" {
					meta.RevisionName = index.Revision
				}
				if err := dictpack.SavePayload(output, meta, payload); err != nil {
					return err
				}
			case "deinflector":
				if ok, err := isFile(input); err != nil {
					return err
				} else if !ok {
					return fmt.Errorf("deinflector input must be a transform-set JSON file")
				}
				data, err := os.ReadFile(input)
				if err != nil {
					return fmt.Errorf("failed to read transform set: %w", err)
				}
				set, err := deinflect.ParseTransformSet(data)
				if err != nil {
					return err
				}
				compiled, err := deinflect.Compile(set)
				if err != nil {
					return err
				}
				if meta.Name == "" {
					meta.Name = strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
				}
				if err := compiled.Save(output, meta); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown kind: %q (valid kinds: dict, deinflector)", kind)
			}

			klog.Infof("wrote %s", output)
			return nil
		},
	}
}
