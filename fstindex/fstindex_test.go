package fstindex_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aura-ix/tomochan/fstindex"
)

func buildAndLoad(t *testing.T, entries []fstindex.Entry) *fstindex.Index {
	t.Helper()
	image, err := fstindex.Build(entries)
	require.NoError(t, err)
	index, err := fstindex.Load(image)
	require.NoError(t, err)
	return index
}

func TestDuplicateKeyOrdering(t *testing.T) {
	index := buildAndLoad(t, []fstindex.Entry{
		{Kind: fstindex.KindTerm, Key: "ある", Value: 10},
		{Kind: fstindex.KindTerm, Key: "ある", Value: 20},
		{Kind: fstindex.KindTerm, Key: "ある", Value: 30},
	})

	values, err := index.Lookup(fstindex.KindTerm, "ある")
	require.NoError(t, err)
	require.Equal(t, []uint64{10, 20, 30}, values)

	keys, err := index.Keys(fstindex.KindTerm)
	require.NoError(t, err)
	require.Equal(t, []string{"ある"}, keys)
}

func TestKindIsolation(t *testing.T) {
	index := buildAndLoad(t, []fstindex.Entry{
		{Kind: fstindex.KindTerm, Key: "犬", Value: 1},
		{Kind: fstindex.KindKanji, Key: "犬", Value: 2},
	})

	termValues, err := index.Lookup(fstindex.KindTerm, "犬")
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, termValues)

	kanjiValues, err := index.Lookup(fstindex.KindKanji, "犬")
	require.NoError(t, err)
	require.Equal(t, []uint64{2}, kanjiValues)

	termKeys, err := index.Keys(fstindex.KindTerm)
	require.NoError(t, err)
	require.Equal(t, []string{"犬"}, termKeys)

	kanjiKeys, err := index.Keys(fstindex.KindKanji)
	require.NoError(t, err)
	require.Equal(t, []string{"犬"}, kanjiKeys)
}

func TestLookupMissingKey(t *testing.T) {
	index := buildAndLoad(t, []fstindex.Entry{
		{Kind: fstindex.KindTerm, Key: "ある", Value: 10},
	})

	values, err := index.Lookup(fstindex.KindTerm, "ない")
	require.NoError(t, err)
	require.Empty(t, values)

	values, err = index.Lookup(fstindex.KindKanji, "ある")
	require.NoError(t, err)
	require.Empty(t, values)
}

func TestKeyPrefixOfAnotherKey(t *testing.T) {
	// "ある" is a byte prefix of "あるく"; the 0x00 separator keeps
	// their ranges apart.
	index := buildAndLoad(t, []fstindex.Entry{
		{Kind: fstindex.KindTerm, Key: "あるく", Value: 2},
		{Kind: fstindex.KindTerm, Key: "ある", Value: 1},
	})

	values, err := index.Lookup(fstindex.KindTerm, "ある")
	require.NoError(t, err)
	require.Equal(t, []uint64{1}, values)

	values, err = index.Lookup(fstindex.KindTerm, "あるく")
	require.NoError(t, err)
	require.Equal(t, []uint64{2}, values)

	keys, err := index.Keys(fstindex.KindTerm)
	require.NoError(t, err)
	require.Equal(t, []string{"ある", "あるく"}, keys)
}

func TestKeysSortedAndDistinct(t *testing.T) {
	index := buildAndLoad(t, []fstindex.Entry{
		{Kind: fstindex.KindTag, Key: "v5", Value: 3},
		{Kind: fstindex.KindTag, Key: "adj-i", Value: 1},
		{Kind: fstindex.KindTag, Key: "v1", Value: 2},
		{Kind: fstindex.KindTag, Key: "adj-i", Value: 4},
	})

	keys, err := index.Keys(fstindex.KindTag)
	require.NoError(t, err)
	require.Equal(t, []string{"adj-i", "v1", "v5"}, keys)
}

func TestPrefixScan(t *testing.T) {
	index := buildAndLoad(t, []fstindex.Entry{
		{Kind: fstindex.KindTerm, Key: "走る", Value: 1},
		{Kind: fstindex.KindTerm, Key: "走り出す", Value: 2},
		{Kind: fstindex.KindTerm, Key: "歩く", Value: 3},
		{Kind: fstindex.KindFile, Key: "走る.png", Value: 4},
	})

	pairs, err := index.Prefix(fstindex.KindTerm, "走")
	require.NoError(t, err)
	require.Equal(t, []fstindex.KeyValue{
		{Key: "走り出す", Value: 2},
		{Key: "走る", Value: 1},
	}, pairs)

	pairs, err = index.Prefix(fstindex.KindTerm, "")
	require.NoError(t, err)
	require.Len(t, pairs, 3)
}

func TestBuildRejectsNulInKey(t *testing.T) {
	_, err := fstindex.Build([]fstindex.Entry{
		{Kind: fstindex.KindTerm, Key: "bad\x00key", Value: 1},
	})
	require.ErrorIs(t, err, fstindex.ErrKeyHasNul)
}

func TestUnionUniqueKeyCount(t *testing.T) {
	first := buildAndLoad(t, []fstindex.Entry{
		{Kind: fstindex.KindTerm, Key: "ある", Value: 1},
		{Kind: fstindex.KindTerm, Key: "ある", Value: 2}, // duplicate within one file
		{Kind: fstindex.KindTerm, Key: "犬", Value: 3},
		{Kind: fstindex.KindKanji, Key: "猫", Value: 4}, // other kind, not counted
	})
	second := buildAndLoad(t, []fstindex.Entry{
		{Kind: fstindex.KindTerm, Key: "犬", Value: 5}, // duplicate across files
		{Kind: fstindex.KindTerm, Key: "猫", Value: 6},
	})

	count, err := fstindex.UnionUniqueKeyCount(fstindex.KindTerm, first, second)
	require.NoError(t, err)
	require.Equal(t, 3, count) // ある, 犬, 猫

	count, err = fstindex.UnionUniqueKeyCount(fstindex.KindTerm, first)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	count, err = fstindex.UnionUniqueKeyCount(fstindex.KindTermMeta, first, second)
	require.NoError(t, err)
	require.Equal(t, 0, count)

	count, err = fstindex.UnionUniqueKeyCount(fstindex.KindTerm)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}
