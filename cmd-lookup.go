package main

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/aura-ix/tomochan/deinflect"
	"github.com/aura-ix/tomochan/dictpack"
)

func newCmd_Lookup() *cli.Command {
	var verify bool
	return &cli.Command{
		Name:        "lookup",
		Usage:       "Look a word up in one or more dictionary packages.",
		Description: "Looks a word up in the given dictionary packages. With --deinflector, the word is first expanded into its plausible dictionary forms and every candidate is looked up.",
		ArgsUsage:   "<word> <package>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "deinflector",
				Usage: "deinflector package used to expand inflected words",
			},
			&cli.StringFlag{
				Name:  "type",
				Usage: "what to look up; one of: term, kanji, tag, term-meta, kanji-meta, file",
				Value: "term",
			},
			&cli.BoolFlag{
				Name:        "verify",
				Usage:       "verify package payload hashes before querying",
				Destination: &verify,
			},
		},
		Action: func(c *cli.Context) error {
			args := c.Args()
			if args.Len() < 2 {
				return fmt.Errorf("a word and at least one package are required")
			}
			word := args.Get(0)
			packagePaths := args.Slice()[1:]

			candidates := []deinflect.Result{{Term: word}}
			if deinflectorPath := c.String("deinflector"); deinflectorPath != "" {
				d, err := deinflect.Open(deinflectorPath, verify)
				if err != nil {
					return err
				}
				candidates = d.Deinflect(word)
				klog.Infof("expanded %q into %d candidate forms", word, len(candidates))
			}

			packages := make([]*dictpack.Package, 0, len(packagePaths))
			defer func() {
				for _, pkg := range packages {
					pkg.Close()
				}
			}()
			for _, path := range packagePaths {
				pkg, err := dictpack.Open(path, verify)
				if err != nil {
					return err
				}
				packages = append(packages, pkg)
			}

			numResults := 0
			for _, pkg := range packages {
				name := pkg.Header().Name
				for _, candidate := range candidates {
					n, err := lookupOne(pkg, c.String("type"), candidate.Term)
					if err != nil {
						return err
					}
					if n > 0 && len(candidate.RuleChain) > 0 {
						fmt.Printf("(%s: reached %q via rule chain %v)\n", name, candidate.Term, candidate.RuleChain)
					}
					numResults += n
				}
			}
			klog.Infof("%d result(s)", numResults)

			if len(packages) > 1 {
				unique, err := dictpack.UnionUniqueTerms(packages...)
				if err != nil {
					return err
				}
				klog.Infof("%d distinct terms across %d packages", unique, len(packages))
			}
			return nil
		},
	}
}

func lookupOne(pkg *dictpack.Package, lookupType string, key string) (int, error) {
	dump := func(results ...any) {
		for _, result := range results {
			fmt.Print(spew.Sdump(result))
		}
	}
	switch lookupType {
	case "term":
		results, err := pkg.Terms(key)
		if err != nil {
			return 0, err
		}
		for i := range results {
			dump(results[i])
		}
		return len(results), nil
	case "kanji":
		results, err := pkg.Kanji(key)
		if err != nil {
			return 0, err
		}
		for i := range results {
			dump(results[i])
		}
		return len(results), nil
	case "tag":
		tag, err := pkg.Tag(key)
		if err != nil || tag == nil {
			return 0, err
		}
		dump(*tag)
		return 1, nil
	case "term-meta":
		results, err := pkg.TermMeta(key)
		if err != nil {
			return 0, err
		}
		for i := range results {
			dump(results[i])
		}
		return len(results), nil
	case "kanji-meta":
		results, err := pkg.KanjiMeta(key)
		if err != nil {
			return 0, err
		}
		for i := range results {
			dump(results[i])
		}
		return len(results), nil
	case "file":
		data, ok, err := pkg.File(key)
		if err != nil || !ok {
			return 0, err
		}
		fmt.Printf("file %s: %d bytes\n", key, len(data))
		return 1, nil
	default:
		return 0, fmt.Errorf("unknown lookup type: %q (valid types: term, kanji, tag, term-meta, kanji-meta, file)", lookupType)
	}
}
