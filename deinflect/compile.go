package deinflect

import (
	"errors"
	"fmt"
	"math"
	"sort"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrTooManyTags        = errors.New("too many tags: at most 64 distinct tag names are supported")
	ErrSubtagsUnsupported = errors.New("transform sets declaring subtags are not supported")
)

// TransformSet is the source description of an inflection rule set.
type TransformSet struct {
	DictTags []string `json:"dict_tags"`
	// Subtags declares hierarchical tag relationships: for subtags x, y
	// of A, both satisfy an A constraint, but x does not satisfy y and A
	// satisfies neither. The compiled bitmask cannot express this, so
	// Compile rejects sets that use it.
	Subtags    map[string][]string `json:"subtags"`
	Transforms []Transform         `json:"transforms"`
}

type Transform struct {
	Name    string  `json:"name"`
	Desc    *string `json:"desc"`
	IsFinal bool    `json:"is_final"`
	Rules   []Rule  `json:"rules"`
}

type Rule struct {
	Accept  State `json:"accept"`
	Produce State `json:"produce"`
}

type State struct {
	Suffix string   `json:"suffix"`
	Tags   []string `json:"tags"`
}

// ParseTransformSet parses a transform-set JSON document.
func ParseTransformSet(data []byte) (*TransformSet, error) {
	var set TransformSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse transform set: %w", err)
	}
	return &set, nil
}

// Compile turns a transform set into the packed rule table.
//
// Every distinct tag name across all rules gets one bit of a u64, in
// first-seen order; a 65th distinct tag is a build error. Rules with an
// empty accept tag set compile to the any-tag sentinel. Duplicate rules
// are kept verbatim, so a duplicated rule yields duplicated results.
func Compile(set *TransformSet) (*Deinflector, error) {
	if len(set.Subtags) > 0 {
		return nil, ErrSubtagsUnsupported
	}

	transforms := make([]TransformMeta, 0, len(set.Transforms))
	for _, transform := range set.Transforms {
		transforms = append(transforms, TransformMeta{
			Name:    transform.Name,
			Desc:    transform.Desc,
			IsFinal: transform.IsFinal,
		})
	}

	nextLeaf := uint64(1)
	tagBits := make(map[string]uint64)
	for _, transform := range set.Transforms {
		for _, rule := range transform.Rules {
			for _, tag := range append(append([]string{}, rule.Accept.Tags...), rule.Produce.Tags...) {
				if _, known := tagBits[tag]; known {
					continue
				}
				if nextLeaf == 0 {
					return nil, ErrTooManyTags
				}
				tagBits[tag] = nextLeaf
				nextLeaf <<= 1
			}
		}
	}

	suffixMap := make(map[string][]Production)
	lengthSet := make(map[uint64]struct{})
	for transformIdx, transform := range set.Transforms {
		for _, rule := range transform.Rules {
			var produceTags uint64
			for _, tag := range rule.Produce.Tags {
				produceTags |= tagBits[tag]
			}

			acceptTags := uint64(math.MaxUint64)
			if len(rule.Accept.Tags) > 0 {
				acceptTags = 0
				for _, tag := range rule.Accept.Tags {
					acceptTags |= tagBits[tag]
				}
			}

			suffixMap[rule.Accept.Suffix] = append(suffixMap[rule.Accept.Suffix], Production{
				TransformIdx:  uint32(transformIdx),
				AcceptTags:    acceptTags,
				ProduceTags:   produceTags,
				ProduceSuffix: []byte(rule.Produce.Suffix),
			})
			lengthSet[uint64(len(rule.Accept.Suffix))] = struct{}{}
		}
	}

	suffixLengths := make([]uint64, 0, len(lengthSet))
	for length := range lengthSet {
		suffixLengths = append(suffixLengths, length)
	}
	sort.Slice(suffixLengths, func(i, j int) bool { return suffixLengths[i] < suffixLengths[j] })

	return &Deinflector{
		transforms:    transforms,
		suffixMap:     suffixMap,
		suffixLengths: suffixLengths,
	}, nil
}
