// Package deinflect compiles inflection transform rules into a compact
// suffix automaton and enumerates the plausible dictionary forms of an
// inflected surface word.
//
// Rule compatibility is a set-intersection test over tag bitmasks: each
// distinct tag name gets one bit of a u64, so the inner gate of the
// rewrite loop is a single AND and zero-compare. An accept mask of
// MaxUint64 accepts any tag context, including the initial untagged query.
package deinflect

import (
	"math"
	"unicode/utf8"

	"k8s.io/klog/v2"
)

// depthLimit bounds the rewrite chain of a single result.
const depthLimit = 10

// TransformMeta describes one named transform of the compiled set.
type TransformMeta struct {
	Name    string
	Desc    *string
	IsFinal bool
}

// Production is one compiled rewrite: strip the matched accept suffix,
// append ProduceSuffix, carry ProduceTags into the next step.
type Production struct {
	TransformIdx  uint32
	AcceptTags    uint64
	ProduceTags   uint64
	ProduceSuffix []byte
}

// Deinflector is the compiled, immutable rule table. Safe for concurrent
// readers.
type Deinflector struct {
	transforms    []TransformMeta
	suffixMap     map[string][]Production
	suffixLengths []uint64 // distinct accept-suffix byte lengths, ascending
}

// Result is one candidate dictionary form. RuleChain holds the transform
// indices applied, outermost first; the seed result has an empty chain.
type Result struct {
	Term      string
	RuleChain []uint32
}

// Transforms returns the compiled transform descriptors in rule order.
func (d *Deinflector) Transforms() []TransformMeta {
	return d.transforms
}

// TransformName resolves a rule-chain index for display.
func (d *Deinflector) TransformName(idx uint32) string {
	if int(idx) >= len(d.transforms) {
		return "?"
	}
	return d.transforms[idx].Name
}

// Deinflect returns every plausible dictionary form of term in discovery
// order: depth-first, rule order within a state, shortest suffix first.
// The first result is always the unmodified input with an empty chain.
// Two calls over the same inputs yield identical sequences.
func (d *Deinflector) Deinflect(term string) []Result {
	results := []Result{{Term: term}}
	d.recurse([]byte(term), nil, math.MaxUint64, &results, 1)
	return results
}

func (d *Deinflector) recurse(term []byte, chain []uint32, tags uint64, results *[]Result, depth int) {
	if depth > depthLimit {
		return
	}

	for _, length := range d.suffixLengths {
		if length > uint64(len(term)) {
			// lengths are sorted ascending, so every further one is too
			// long as well
			break
		}
		suffixIdx := len(term) - int(length)
		productions, ok := d.suffixMap[string(term[suffixIdx:])]
		if !ok {
			continue
		}
		for i := range productions {
			production := &productions[i]
			if production.AcceptTags != math.MaxUint64 && tags&production.AcceptTags == 0 {
				continue
			}

			newTerm := make([]byte, 0, suffixIdx+len(production.ProduceSuffix))
			newTerm = append(newTerm, term[:suffixIdx]...)
			newTerm = append(newTerm, production.ProduceSuffix...)

			if !utf8.Valid(newTerm) {
				// A fault of the rule data, not of the query; skip the
				// branch and keep going.
				klog.Warningf("deinflection of %q via %s produced invalid UTF-8",
					term, d.TransformName(production.TransformIdx))
				continue
			}

			newChain := make([]uint32, len(chain), len(chain)+1)
			copy(newChain, chain)
			newChain = append(newChain, production.TransformIdx)

			*results = append(*results, Result{Term: string(newTerm), RuleChain: newChain})

			if d.transforms[production.TransformIdx].IsFinal {
				// Final transforms terminate rewriting along this branch.
				continue
			}
			d.recurse(newTerm, newChain, production.ProduceTags, results, depth+1)
		}
	}
}
