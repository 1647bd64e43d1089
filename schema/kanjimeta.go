package schema

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	jsoniter "github.com/json-iterator/go"

	"github.com/aura-ix/tomochan/fstindex"
)

// KanjiMeta is one entry of a kanji meta bank. The only mode in the wild
// is "freq".
type KanjiMeta struct {
	Character string
	Mode      string
	Data      Frequency
}

func (km *KanjiMeta) Kind() fstindex.Kind { return fstindex.KindKanjiMeta }
func (km *KanjiMeta) Key() string         { return km.Character }

func (km *KanjiMeta) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := writeString(encoder, km.Character); err != nil {
		return err
	}
	if err := writeString(encoder, km.Mode); err != nil {
		return err
	}
	return km.Data.marshalWithEncoder(encoder)
}

func (km *KanjiMeta) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	if km.Character, err = readString(decoder); err != nil {
		return err
	}
	if km.Mode, err = readString(decoder); err != nil {
		return err
	}
	return km.Data.unmarshalWithDecoder(decoder)
}

// DecodeKanjiMeta deserializes a KanjiMeta record from store bytes.
func DecodeKanjiMeta(data []byte) (*KanjiMeta, error) {
	var km KanjiMeta
	if err := km.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, fmt.Errorf("failed to decode kanji meta record: %w", err)
	}
	return &km, nil
}

// parseKanjiMeta parses one kanji-meta-bank entry: [character, mode, data]
func parseKanjiMeta(entry []jsoniter.RawMessage) (*KanjiMeta, error) {
	if len(entry) != 3 {
		return nil, fmt.Errorf("kanji meta entry must have exactly 3 elements, got %d", len(entry))
	}
	character, err := asString(entry[0], "character")
	if err != nil {
		return nil, err
	}
	mode, err := asString(entry[1], "mode")
	if err != nil {
		return nil, err
	}
	freq, err := parseFrequency(entry[2])
	if err != nil {
		return nil, err
	}
	return &KanjiMeta{Character: character, Mode: mode, Data: *freq}, nil
}
