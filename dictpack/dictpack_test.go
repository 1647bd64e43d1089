package dictpack_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aura-ix/tomochan/container"
	"github.com/aura-ix/tomochan/dictpack"
	"github.com/aura-ix/tomochan/fstindex"
	"github.com/aura-ix/tomochan/schema"
)

func allowDev(t *testing.T) {
	t.Helper()
	container.AllowDevelopmentVersions(true)
	t.Cleanup(func() { container.AllowDevelopmentVersions(false) })
}

func term(key, reading, gloss string) *schema.Term {
	return &schema.Term{
		Term:    key,
		Reading: reading,
		Definitions: []schema.Definition{
			{Kind: schema.DefinitionText, Text: gloss},
		},
		Rules: "v5",
	}
}

func buildTestPackage(t *testing.T, dir string) string {
	t.Helper()
	builder := dictpack.NewBuilder()

	// three records under one key, insertion order matters
	_, err := builder.Insert(term("ある", "ある", "to exist"))
	require.NoError(t, err)
	_, err = builder.Insert(term("ある", "ある", "a certain ..."))
	require.NoError(t, err)
	_, err = builder.Insert(term("ある", "ある", "to happen"))
	require.NoError(t, err)

	// same key under two kinds
	_, err = builder.Insert(term("犬", "いぬ", "dog"))
	require.NoError(t, err)
	_, err = builder.Insert(&schema.Kanji{
		Character: "犬",
		Onyomi:    "ケン",
		Kunyomi:   "いぬ",
		Meanings:  []string{"dog"},
		Stats:     map[string]string{"strokes": "4"},
	})
	require.NoError(t, err)

	_, err = builder.Insert(&schema.Tag{Name: "v5", Category: "partOfSpeech", Notes: "godan verb"})
	require.NoError(t, err)
	_, err = builder.Insert(&schema.TermMeta{
		Term: "ある",
		Mode: schema.TermMetaFreq,
		Frequency: &schema.FrequencyData{
			Frequency: schema.Frequency{Kind: schema.FrequencyNumber, Value: 120},
		},
	})
	require.NoError(t, err)
	_, err = builder.Insert(&schema.KanjiMeta{
		Character: "犬",
		Mode:      "freq",
		Data:      schema.Frequency{Kind: schema.FrequencyNumber, Value: 77},
	})
	require.NoError(t, err)
	_, err = builder.Insert(&schema.FileRecord{Path: "img/inu.png", Data: []byte{0x89, 'P', 'N', 'G'}})
	require.NoError(t, err)

	path := filepath.Join(dir, "test.tmdb")
	require.NoError(t, builder.Save(path, container.Meta{
		Name:         "testdict",
		RevisionName: "2025-06-01",
		Revision:     1,
	}))
	return path
}

func TestPackageRoundTrip(t *testing.T) {
	allowDev(t)
	path := buildTestPackage(t, t.TempDir())

	pkg, err := dictpack.Open(path, true)
	require.NoError(t, err)
	defer pkg.Close()

	require.Equal(t, "testdict", pkg.Header().Name)
	require.Equal(t, container.RoleDictionary, pkg.Header().Role)

	// duplicate keys come back in insertion order
	offsets, err := pkg.Lookup(fstindex.KindTerm, "ある")
	require.NoError(t, err)
	require.Len(t, offsets, 3)
	for i := 1; i < len(offsets); i++ {
		require.Greater(t, offsets[i], offsets[i-1])
	}

	terms, err := pkg.Terms("ある")
	require.NoError(t, err)
	require.Len(t, terms, 3)
	require.Equal(t, "to exist", terms[0].Definitions[0].Text)
	require.Equal(t, "a certain ...", terms[1].Definitions[0].Text)
	require.Equal(t, "to happen", terms[2].Definitions[0].Text)

	// kind isolation
	dogTerms, err := pkg.Terms("犬")
	require.NoError(t, err)
	require.Len(t, dogTerms, 1)
	kanji, err := pkg.Kanji("犬")
	require.NoError(t, err)
	require.Len(t, kanji, 1)
	require.Equal(t, "ケン", kanji[0].Onyomi)
	require.Equal(t, "4", kanji[0].Stats["strokes"])

	tag, err := pkg.Tag("v5")
	require.NoError(t, err)
	require.NotNil(t, tag)
	require.Equal(t, "godan verb", tag.Notes)
	missingTag, err := pkg.Tag("nope")
	require.NoError(t, err)
	require.Nil(t, missingTag)

	meta, err := pkg.TermMeta("ある")
	require.NoError(t, err)
	require.Len(t, meta, 1)
	require.Equal(t, float32(120), meta[0].Frequency.Frequency.Value)

	kanjiMeta, err := pkg.KanjiMeta("犬")
	require.NoError(t, err)
	require.Len(t, kanjiMeta, 1)

	data, ok, err := pkg.File("img/inu.png")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)
	_, ok, err = pkg.File("missing.png")
	require.NoError(t, err)
	require.False(t, ok)

	files, err := pkg.ListFiles()
	require.NoError(t, err)
	require.Equal(t, []string{"img/inu.png"}, files)

	termKeys, err := pkg.Keys(fstindex.KindTerm)
	require.NoError(t, err)
	require.Equal(t, []string{"ある", "犬"}, termKeys)
}

func TestHashMutationDetected(t *testing.T) {
	allowDev(t)
	path := buildTestPackage(t, t.TempDir())

	file, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	info, err := container.ReadInfo(file)
	require.NoError(t, err)
	// flip one byte inside the payload region
	offset := int64(info.PayloadOffset) + int64(info.Header.PayloadLength)/2
	buf := make([]byte, 1)
	_, err = file.ReadAt(buf, offset)
	require.NoError(t, err)
	buf[0] ^= 0xff
	_, err = file.WriteAt(buf, offset)
	require.NoError(t, err)
	require.NoError(t, file.Close())

	_, err = dictpack.Open(path, true)
	require.ErrorIs(t, err, container.ErrHashMismatch)
}

func TestTruncatedPayloadDetected(t *testing.T) {
	allowDev(t)
	path := buildTestPackage(t, t.TempDir())

	// grow the file by one byte; the section arithmetic no longer adds up
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = file.Write([]byte{0x00})
	require.NoError(t, err)
	require.NoError(t, file.Close())

	_, err = dictpack.Open(path, false)
	require.ErrorIs(t, err, dictpack.ErrTruncated)
}

func TestOpenRejectsDevelopmentByDefault(t *testing.T) {
	container.AllowDevelopmentVersions(true)
	path := buildTestPackage(t, t.TempDir())
	container.AllowDevelopmentVersions(false)

	_, err := dictpack.Open(path, false)
	require.ErrorIs(t, err, container.ErrDevelopmentVersion)
}

func TestUnionUniqueTerms(t *testing.T) {
	allowDev(t)
	dir := t.TempDir()

	first := dictpack.NewBuilder()
	for _, key := range []string{"ある", "ある", "犬"} {
		_, err := first.Insert(term(key, key, "gloss"))
		require.NoError(t, err)
	}
	firstPath := filepath.Join(dir, "first.tmdb")
	require.NoError(t, first.Save(firstPath, container.Meta{Name: "first"}))

	second := dictpack.NewBuilder()
	for _, key := range []string{"犬", "猫"} {
		_, err := second.Insert(term(key, key, "gloss"))
		require.NoError(t, err)
	}
	secondPath := filepath.Join(dir, "second.tmdb")
	require.NoError(t, second.Save(secondPath, container.Meta{Name: "second"}))

	firstPkg, err := dictpack.Open(firstPath, false)
	require.NoError(t, err)
	defer firstPkg.Close()
	secondPkg, err := dictpack.Open(secondPath, false)
	require.NoError(t, err)
	defer secondPkg.Close()

	count, err := dictpack.UnionUniqueTerms(firstPkg, secondPkg)
	require.NoError(t, err)
	require.Equal(t, 3, count) // ある, 犬, 猫
}
