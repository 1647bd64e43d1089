package schema

import (
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
)

// Dictionary is a fully parsed corpus directory.
type Dictionary struct {
	Index     DictionaryIndex
	Terms     []Term
	TermMeta  []TermMeta
	Kanji     []Kanji
	KanjiMeta []KanjiMeta
	Tags      []Tag
}

// Bank file prefixes. Files named <prefix><n>.json are loaded with n
// counting up from 1 until the first missing file.
const (
	TermBankPrefix      = "term_bank_"
	TermMetaBankPrefix  = "term_meta_bank_"
	KanjiBankPrefix     = "kanji_bank_"
	KanjiMetaBankPrefix = "kanji_meta_bank_"
	TagBankPrefix       = "tag_bank_"

	IndexFileName = "index.json"
)

// LoadDirectory parses a corpus directory: index.json plus every numbered
// bank file.
func LoadDirectory(dir string) (*Dictionary, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	index, err := LoadIndexFile(filepath.Join(dir, IndexFileName))
	if err != nil {
		return nil, err
	}

	dict := &Dictionary{Index: *index}
	if dict.Terms, err = loadBanks(dir, TermBankPrefix, parseTerm); err != nil {
		return nil, err
	}
	if dict.TermMeta, err = loadBanks(dir, TermMetaBankPrefix, parseTermMeta); err != nil {
		return nil, err
	}
	if dict.Kanji, err = loadBanks(dir, KanjiBankPrefix, parseKanji); err != nil {
		return nil, err
	}
	if dict.KanjiMeta, err = loadBanks(dir, KanjiMetaBankPrefix, parseKanjiMeta); err != nil {
		return nil, err
	}
	if dict.Tags, err = loadBanks(dir, TagBankPrefix, parseTag); err != nil {
		return nil, err
	}
	return dict, nil
}

// loadBanks reads <prefix>1.json, <prefix>2.json, ... until a file is
// missing, parsing each entry with parse.
func loadBanks[T any](dir, prefix string, parse func([]jsoniter.RawMessage) (*T, error)) ([]T, error) {
	var items []T
	for i := 1; ; i++ {
		path := filepath.Join(dir, fmt.Sprintf("%s%d.json", prefix, i))
		content, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		var entries [][]jsoniter.RawMessage
		if err := json.Unmarshal(content, &entries); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		for entryIdx, entry := range entries {
			item, err := parse(entry)
			if err != nil {
				return nil, fmt.Errorf("%s entry %d: %w", path, entryIdx, err)
			}
			items = append(items, *item)
		}
	}
	return items, nil
}

func asString(raw jsoniter.RawMessage, field string) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("invalid %s: %w", field, err)
	}
	return s, nil
}

func asStringOrEmpty(raw jsoniter.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func asFloat32(raw jsoniter.RawMessage, field string) (float32, error) {
	var v float32
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("invalid %s: %w", field, err)
	}
	return v, nil
}

func asInt32(raw jsoniter.RawMessage, field string) (int32, error) {
	var v int32
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("invalid %s: %w", field, err)
	}
	return v, nil
}
