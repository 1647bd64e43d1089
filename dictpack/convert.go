package dictpack

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"

	"github.com/aura-ix/tomochan/schema"
)

// bankPrefixes are the corpus files already represented as typed records;
// the file import pass skips them at every directory level.
var bankPrefixes = []string{
	schema.TermBankPrefix,
	schema.TermMetaBankPrefix,
	schema.KanjiBankPrefix,
	schema.KanjiMetaBankPrefix,
	schema.TagBankPrefix,
}

// ConvertDirectory ingests a corpus directory and assembles a dictionary
// payload: every bank record plus every extra file, indexed under its
// kind. The parsed index.json is returned so callers can default
// container metadata from it.
func ConvertDirectory(dir string, showProgress bool) ([]byte, *schema.DictionaryIndex, error) {
	dict, err := schema.LoadDirectory(dir)
	if err != nil {
		return nil, nil, err
	}
	klog.Infof("loaded %s: %d terms, %d term meta, %d kanji, %d kanji meta, %d tags",
		dict.Index.Title, len(dict.Terms), len(dict.TermMeta), len(dict.Kanji), len(dict.KanjiMeta), len(dict.Tags))

	builder := NewBuilder()
	numRecords := len(dict.Terms) + len(dict.TermMeta) + len(dict.Kanji) + len(dict.KanjiMeta) + len(dict.Tags)
	var bar *progressbar.ProgressBar
	if showProgress {
		bar = progressbar.Default(int64(numRecords), "importing records")
	}
	insert := func(record schema.Record) error {
		if _, err := builder.Insert(record); err != nil {
			return err
		}
		if bar != nil {
			bar.Add(1)
		}
		return nil
	}

	for i := range dict.Terms {
		if err := insert(&dict.Terms[i]); err != nil {
			return nil, nil, err
		}
	}
	for i := range dict.Kanji {
		if err := insert(&dict.Kanji[i]); err != nil {
			return nil, nil, err
		}
	}
	for i := range dict.Tags {
		if err := insert(&dict.Tags[i]); err != nil {
			return nil, nil, err
		}
	}
	for i := range dict.TermMeta {
		if err := insert(&dict.TermMeta[i]); err != nil {
			return nil, nil, err
		}
	}
	for i := range dict.KanjiMeta {
		if err := insert(&dict.KanjiMeta[i]); err != nil {
			return nil, nil, err
		}
	}
	if bar != nil {
		bar.Finish()
	}

	numFiles, err := importFiles(dir, builder)
	if err != nil {
		return nil, nil, err
	}
	klog.Infof("imported %d extra files", numFiles)

	payload, err := builder.Finalize()
	if err != nil {
		return nil, nil, err
	}
	return payload, &dict.Index, nil
}

// importFiles walks the corpus directory and stores every non-bank file
// verbatim, keyed by its directory-relative slash path.
func importFiles(dir string, builder *Builder) (int, error) {
	numFiles := 0
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if isBankFile(entry.Name()) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path of %s: %w", path, err)
		}
		record := &schema.FileRecord{Path: filepath.ToSlash(relPath), Data: data}
		if _, err := builder.Insert(record); err != nil {
			return err
		}
		numFiles++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return numFiles, nil
}

func isBankFile(name string) bool {
	if name == schema.IndexFileName {
		return true
	}
	for _, prefix := range bankPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
