package schema

import (
	"fmt"
	"os"

	bin "github.com/gagliardetto/binary"

	"github.com/aura-ix/tomochan/fstindex"
)

// DictionaryIndex is the parsed index.json of a corpus directory. It is
// used to validate the corpus and to default container metadata; it is
// not itself stored in the package.
type DictionaryIndex struct {
	Title                 string                 `json:"title"`
	Revision              string                 `json:"revision"`
	MinimumYomitanVersion string                 `json:"minimumYomitanVersion"`
	Sequenced             bool                   `json:"sequenced"`
	Format                uint8                  `json:"format"`
	Author                string                 `json:"author"`
	IsUpdatable           bool                   `json:"isUpdatable"`
	IndexURL              string                 `json:"indexUrl"`
	DownloadURL           string                 `json:"downloadUrl"`
	URL                   string                 `json:"url"`
	Description           string                 `json:"description"`
	Attribution           string                 `json:"attribution"`
	SourceLanguage        string                 `json:"sourceLanguage"`
	TargetLanguage        string                 `json:"targetLanguage"`
	FrequencyMode         string                 `json:"frequencyMode"`
	TagMeta               map[string]TagMetaInfo `json:"tagMeta"`

	// Older corpora name the format field "version".
	Version uint8 `json:"version"`
}

type TagMetaInfo struct {
	Category string  `json:"category"`
	Order    float32 `json:"order"`
	Notes    string  `json:"notes"`
	Score    float32 `json:"score"`
}

// LoadIndexFile parses and validates an index.json.
func LoadIndexFile(path string) (*DictionaryIndex, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var index DictionaryIndex
	if err := json.Unmarshal(content, &index); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if index.Title == "" {
		return nil, fmt.Errorf("%s: missing title", path)
	}
	if index.Revision == "" {
		return nil, fmt.Errorf("%s: missing revision", path)
	}
	if index.Format == 0 {
		index.Format = index.Version
	}
	if index.Format < 1 || index.Format > 3 {
		return nil, fmt.Errorf("%s: invalid format value: %d", path, index.Format)
	}
	return &index, nil
}

// FileRecord is a non-bank file carried verbatim inside a package,
// keyed by its directory-relative path.
type FileRecord struct {
	Path string
	Data []byte
}

func (f *FileRecord) Kind() fstindex.Kind { return fstindex.KindFile }
func (f *FileRecord) Key() string         { return f.Path }

func (f *FileRecord) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteUint32(uint32(len(f.Data)), bin.LE); err != nil {
		return err
	}
	return encoder.WriteBytes(f.Data, false)
}

// DecodeFile deserializes a File record from store bytes.
func DecodeFile(data []byte) ([]byte, error) {
	decoder := bin.NewBinDecoder(data)
	n, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return nil, fmt.Errorf("failed to decode file record: %w", err)
	}
	raw, err := decoder.ReadNBytes(int(n))
	if err != nil {
		return nil, fmt.Errorf("failed to decode file record: %w", err)
	}
	return raw, nil
}
