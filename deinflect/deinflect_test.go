package deinflect_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aura-ix/tomochan/container"
	"github.com/aura-ix/tomochan/deinflect"
)

// pastTenseSet has one non-final rule った→る and one final rule る→る
// gated on the tag the first rule produces.
func pastTenseSet() *deinflect.TransformSet {
	return &deinflect.TransformSet{
		Transforms: []deinflect.Transform{
			{
				Name: "past",
				Rules: []deinflect.Rule{{
					Accept:  deinflect.State{Suffix: "った"},
					Produce: deinflect.State{Suffix: "る", Tags: []string{"v1"}},
				}},
			},
			{
				Name:    "dictionary form",
				IsFinal: true,
				Rules: []deinflect.Rule{{
					Accept:  deinflect.State{Suffix: "る", Tags: []string{"v1"}},
					Produce: deinflect.State{Suffix: "る", Tags: []string{"v1-final"}},
				}},
			},
		},
	}
}

func TestDeinflectSimple(t *testing.T) {
	d, err := deinflect.Compile(pastTenseSet())
	require.NoError(t, err)

	results := d.Deinflect("走った")
	require.Equal(t, []deinflect.Result{
		{Term: "走った", RuleChain: nil},
		{Term: "走る", RuleChain: []uint32{0}},
		{Term: "走る", RuleChain: []uint32{0, 1}},
	}, results)
}

func TestSeedResultComesFirst(t *testing.T) {
	d, err := deinflect.Compile(pastTenseSet())
	require.NoError(t, err)

	for _, word := range []string{"", "x", "走った", "食べた"} {
		results := d.Deinflect(word)
		require.NotEmpty(t, results)
		require.Equal(t, deinflect.Result{Term: word}, results[0])
		for _, result := range results[1:] {
			require.NotEmpty(t, result.RuleChain)
		}
	}
}

func TestDepthLimit(t *testing.T) {
	// a→aa rewrites unconditionally and never terminates on its own
	set := &deinflect.TransformSet{
		Transforms: []deinflect.Transform{{
			Name: "grow",
			Rules: []deinflect.Rule{{
				Accept:  deinflect.State{Suffix: "a"},
				Produce: deinflect.State{Suffix: "aa"},
			}},
		}},
	}
	d, err := deinflect.Compile(set)
	require.NoError(t, err)

	results := d.Deinflect("xa")
	require.Len(t, results, 11) // the seed plus 10 rewrites

	for i, result := range results {
		require.Len(t, result.RuleChain, i)
		require.LessOrEqual(t, len(result.RuleChain), 10)
	}
	require.Equal(t, "xaaaaaaaaaaa", results[10].Term)
}

func TestDeterministic(t *testing.T) {
	d, err := deinflect.Compile(pastTenseSet())
	require.NoError(t, err)

	first := d.Deinflect("走った")
	second := d.Deinflect("走った")
	require.Equal(t, first, second)
}

func TestShortestSuffixFirst(t *testing.T) {
	set := &deinflect.TransformSet{
		Transforms: []deinflect.Transform{
			{
				Name:    "long",
				IsFinal: true,
				Rules: []deinflect.Rule{{
					Accept:  deinflect.State{Suffix: "った"},
					Produce: deinflect.State{Suffix: "う"},
				}},
			},
			{
				Name:    "short",
				IsFinal: true,
				Rules: []deinflect.Rule{{
					Accept:  deinflect.State{Suffix: "た"},
					Produce: deinflect.State{Suffix: "る"},
				}},
			},
		},
	}
	d, err := deinflect.Compile(set)
	require.NoError(t, err)

	results := d.Deinflect("買った")
	// the shorter suffix is tried first even though its rule comes second
	require.Equal(t, []deinflect.Result{
		{Term: "買った", RuleChain: nil},
		{Term: "買っる", RuleChain: []uint32{1}},
		{Term: "買う", RuleChain: []uint32{0}},
	}, results)
}

func TestTagGateBlocksIncompatibleRules(t *testing.T) {
	set := &deinflect.TransformSet{
		Transforms: []deinflect.Transform{
			{
				Name: "step",
				Rules: []deinflect.Rule{{
					Accept:  deinflect.State{Suffix: "b"},
					Produce: deinflect.State{Suffix: "c", Tags: []string{"t1"}},
				}},
			},
			{
				Name:    "gated",
				IsFinal: true,
				Rules: []deinflect.Rule{{
					Accept:  deinflect.State{Suffix: "c", Tags: []string{"t2"}},
					Produce: deinflect.State{Suffix: "d"},
				}},
			},
		},
	}
	d, err := deinflect.Compile(set)
	require.NoError(t, err)

	// after "step", the tag context is t1; "gated" wants t2 and must not fire
	results := d.Deinflect("ab")
	require.Equal(t, []deinflect.Result{
		{Term: "ab", RuleChain: nil},
		{Term: "ac", RuleChain: []uint32{0}},
	}, results)

	// from the untagged seed, though, "gated" accepts: the initial
	// context is the any-tag sentinel
	results = d.Deinflect("ac")
	require.Equal(t, []deinflect.Result{
		{Term: "ac", RuleChain: nil},
		{Term: "ad", RuleChain: []uint32{1}},
	}, results)
}

func TestCompileTooManyTags(t *testing.T) {
	set := &deinflect.TransformSet{Transforms: []deinflect.Transform{{Name: "many"}}}
	for i := 0; i < 65; i++ {
		set.Transforms[0].Rules = append(set.Transforms[0].Rules, deinflect.Rule{
			Accept:  deinflect.State{Suffix: "x"},
			Produce: deinflect.State{Suffix: "y", Tags: []string{string(rune('A' + i))}},
		})
	}
	_, err := deinflect.Compile(set)
	require.ErrorIs(t, err, deinflect.ErrTooManyTags)

	// 64 distinct tags still compile
	set.Transforms[0].Rules = set.Transforms[0].Rules[:64]
	_, err = deinflect.Compile(set)
	require.NoError(t, err)
}

func TestCompileRejectsSubtags(t *testing.T) {
	set := pastTenseSet()
	set.Subtags = map[string][]string{"v": {"v1", "v5"}}
	_, err := deinflect.Compile(set)
	require.ErrorIs(t, err, deinflect.ErrSubtagsUnsupported)
}

func TestParseTransformSet(t *testing.T) {
	set, err := deinflect.ParseTransformSet([]byte(`{
		"dict_tags": ["v1", "v5"],
		"subtags": {},
		"transforms": [
			{
				"name": "past",
				"desc": "past tense",
				"is_final": false,
				"rules": [
					{
						"accept": {"suffix": "った", "tags": []},
						"produce": {"suffix": "る", "tags": ["v1"]}
					}
				]
			}
		]
	}`))
	require.NoError(t, err)
	require.Equal(t, []string{"v1", "v5"}, set.DictTags)
	require.Len(t, set.Transforms, 1)
	require.Equal(t, "past", set.Transforms[0].Name)
	require.NotNil(t, set.Transforms[0].Desc)
	require.Equal(t, "past tense", *set.Transforms[0].Desc)
	require.Equal(t, "った", set.Transforms[0].Rules[0].Accept.Suffix)

	_, err = deinflect.ParseTransformSet([]byte("not json"))
	require.Error(t, err)
}

func TestSaveOpenRoundTrip(t *testing.T) {
	container.AllowDevelopmentVersions(true)
	t.Cleanup(func() { container.AllowDevelopmentVersions(false) })

	compiled, err := deinflect.Compile(pastTenseSet())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rules.tmdf")
	require.NoError(t, compiled.Save(path, container.Meta{
		Name:         "japanese",
		RevisionName: "2025-06-01",
		Revision:     3,
	}))

	reloaded, err := deinflect.Open(path, true)
	require.NoError(t, err)

	require.Equal(t, compiled.Deinflect("走った"), reloaded.Deinflect("走った"))
	require.Equal(t, "past", reloaded.TransformName(0))
	require.Len(t, reloaded.Transforms(), 2)
}

func TestOpenRejectsWrongRole(t *testing.T) {
	container.AllowDevelopmentVersions(true)
	t.Cleanup(func() { container.AllowDevelopmentVersions(false) })

	path := filepath.Join(t.TempDir(), "dict.tmdb")
	file, err := os.Create(path)
	require.NoError(t, err)
	hdr := container.NewHeader(container.Meta{Name: "x"}, container.RoleDictionary, 0)
	require.NoError(t, container.Write(file, hdr, []byte("payload")))
	require.NoError(t, file.Close())

	_, err = deinflect.Open(path, false)
	require.ErrorIs(t, err, container.ErrRoleMismatch)
}
