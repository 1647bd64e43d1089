// Package schema holds the typed records of an imported dictionary corpus
// (terms, kanji, tags, metadata) together with their bank-JSON parsers and
// their stable binary encoding.
//
// The binary encoding is what ends up inside a dictionary package's record
// store: little-endian fixed-width integers with u32 length prefixes,
// written through hand-rolled MarshalWithEncoder/UnmarshalWithDecoder
// methods so the byte layout is explicit and stable across versions.
package schema

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	jsoniter "github.com/json-iterator/go"

	"github.com/aura-ix/tomochan/fstindex"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Record is anything that can be stored in a dictionary package: it knows
// its key space, its lookup key, and how to serialize itself.
type Record interface {
	Kind() fstindex.Kind
	Key() string
	MarshalWithEncoder(encoder *bin.Encoder) error
}

// Encode serializes a record with the store encoding.
func Encode(record Record) ([]byte, error) {
	var buf bytes.Buffer
	encoder := bin.NewBinEncoder(&buf)
	if err := record.MarshalWithEncoder(encoder); err != nil {
		return nil, fmt.Errorf("failed to encode %s record: %w", record.Kind(), err)
	}
	return buf.Bytes(), nil
}

func writeString(encoder *bin.Encoder, s string) error {
	if err := encoder.WriteUint32(uint32(len(s)), bin.LE); err != nil {
		return err
	}
	return encoder.WriteBytes([]byte(s), false)
}

func readString(decoder *bin.Decoder) (string, error) {
	n, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return "", err
	}
	raw, err := decoder.ReadNBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func writeOptionalString(encoder *bin.Encoder, s *string) error {
	if err := encoder.WriteBool(s != nil); err != nil {
		return err
	}
	if s == nil {
		return nil
	}
	return writeString(encoder, *s)
}

func readOptionalString(decoder *bin.Decoder) (*string, error) {
	present, err := decoder.ReadBool()
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	s, err := readString(decoder)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func writeStringSlice(encoder *bin.Encoder, ss []string) error {
	if err := encoder.WriteUint32(uint32(len(ss)), bin.LE); err != nil {
		return err
	}
	for _, s := range ss {
		if err := writeString(encoder, s); err != nil {
			return err
		}
	}
	return nil
}

func readStringSlice(decoder *bin.Decoder) ([]string, error) {
	n, err := decoder.ReadUint32(bin.LE)
	if err != nil || n == 0 {
		return nil, err
	}
	ss := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		s, err := readString(decoder)
		if err != nil {
			return nil, err
		}
		ss = append(ss, s)
	}
	return ss, nil
}

func writeUint32Slice(encoder *bin.Encoder, vs []uint32) error {
	if err := encoder.WriteUint32(uint32(len(vs)), bin.LE); err != nil {
		return err
	}
	for _, v := range vs {
		if err := encoder.WriteUint32(v, bin.LE); err != nil {
			return err
		}
	}
	return nil
}

func readUint32Slice(decoder *bin.Decoder) ([]uint32, error) {
	n, err := decoder.ReadUint32(bin.LE)
	if err != nil || n == 0 {
		return nil, err
	}
	vs := make([]uint32, 0, n)
	for i := uint32(0); i < n; i++ {
		v, err := decoder.ReadUint32(bin.LE)
		if err != nil {
			return nil, err
		}
		vs = append(vs, v)
	}
	return vs, nil
}
