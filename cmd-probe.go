package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/aura-ix/tomochan/container"
	"github.com/aura-ix/tomochan/dictpack"
	"github.com/aura-ix/tomochan/fstindex"
)

func newCmd_Probe() *cli.Command {
	var verify bool
	return &cli.Command{
		Name:        "probe",
		Usage:       "Inspect tomochan package files.",
		Description: "Prints the container header of each given package. Dictionary packages additionally get per-kind key counts, and the distinct term count across all of them.",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     "path",
				Usage:    "package file to inspect; can be repeated",
				Required: true,
			},
			&cli.BoolFlag{
				Name:        "verify",
				Usage:       "verify payload hashes",
				Destination: &verify,
			},
		},
		Action: func(c *cli.Context) error {
			var dictionaries []*dictpack.Package
			defer func() {
				for _, pkg := range dictionaries {
					pkg.Close()
				}
			}()

			for _, path := range c.StringSlice("path") {
				if err := probeOne(path, verify, &dictionaries); err != nil {
					return err
				}
			}

			if len(dictionaries) > 1 {
				unique, err := dictpack.UnionUniqueTerms(dictionaries...)
				if err != nil {
					return err
				}
				fmt.Printf("distinct terms across %d dictionaries: %d\n", len(dictionaries), unique)
			}
			return nil
		},
	}
}

func probeOne(path string, verify bool, dictionaries *[]*dictpack.Package) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	info, err := container.ReadInfo(file)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if verify {
		if err := info.ValidatePayload(file); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	hdr := info.Header
	fmt.Printf("%s:\n", path)
	fmt.Printf("  name:          %s\n", hdr.Name)
	fmt.Printf("  revision:      %s (%d)\n", hdr.RevisionName, hdr.Revision)
	fmt.Printf("  role:          %s (min role version %d)\n", hdr.Role, hdr.MinRoleVersion)
	fmt.Printf("  payload:       %s at offset %d\n", humanize.Bytes(hdr.PayloadLength), info.PayloadOffset)
	fmt.Printf("  sha256:        %s\n", hex.EncodeToString(hdr.PayloadSha256[:]))

	if hdr.Role != container.RoleDictionary {
		return nil
	}

	pkg, err := dictpack.Open(path, false)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	*dictionaries = append(*dictionaries, pkg)

	for _, kind := range []fstindex.Kind{
		fstindex.KindTerm,
		fstindex.KindKanji,
		fstindex.KindTag,
		fstindex.KindTermMeta,
		fstindex.KindKanjiMeta,
		fstindex.KindFile,
	} {
		keys, err := pkg.Keys(kind)
		if err != nil {
			return err
		}
		fmt.Printf("  %-13s %d distinct keys\n", kind.String()+":", len(keys))
	}
	return nil
}
