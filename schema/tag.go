package schema

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	jsoniter "github.com/json-iterator/go"

	"github.com/aura-ix/tomochan/fstindex"
)

// Tag is one entry of a tag bank.
type Tag struct {
	Name     string
	Category string
	Order    float32
	Notes    string
	Score    float32
}

func (t *Tag) Kind() fstindex.Kind { return fstindex.KindTag }
func (t *Tag) Key() string         { return t.Name }

func (t *Tag) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := writeString(encoder, t.Name); err != nil {
		return err
	}
	if err := writeString(encoder, t.Category); err != nil {
		return err
	}
	if err := encoder.WriteFloat32(t.Order, bin.LE); err != nil {
		return err
	}
	if err := writeString(encoder, t.Notes); err != nil {
		return err
	}
	return encoder.WriteFloat32(t.Score, bin.LE)
}

func (t *Tag) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	if t.Name, err = readString(decoder); err != nil {
		return err
	}
	if t.Category, err = readString(decoder); err != nil {
		return err
	}
	if t.Order, err = decoder.ReadFloat32(bin.LE); err != nil {
		return err
	}
	if t.Notes, err = readString(decoder); err != nil {
		return err
	}
	t.Score, err = decoder.ReadFloat32(bin.LE)
	return err
}

// DecodeTag deserializes a Tag record from store bytes.
func DecodeTag(data []byte) (*Tag, error) {
	var t Tag
	if err := t.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, fmt.Errorf("failed to decode tag record: %w", err)
	}
	return &t, nil
}

// parseTag parses one tag-bank entry: [name, category, order, notes, score]
func parseTag(entry []jsoniter.RawMessage) (*Tag, error) {
	if len(entry) != 5 {
		return nil, fmt.Errorf("tag entry must have exactly 5 elements, got %d", len(entry))
	}
	t := &Tag{}
	var err error
	if t.Name, err = asString(entry[0], "tag name"); err != nil {
		return nil, err
	}
	if t.Category, err = asString(entry[1], "category"); err != nil {
		return nil, err
	}
	if t.Order, err = asFloat32(entry[2], "order"); err != nil {
		return nil, err
	}
	if t.Notes, err = asString(entry[3], "notes"); err != nil {
		return nil, err
	}
	if t.Score, err = asFloat32(entry[4], "score"); err != nil {
		return nil, err
	}
	return t, nil
}
