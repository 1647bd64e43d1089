package schema

import (
	"fmt"
	"sort"

	bin "github.com/gagliardetto/binary"
	jsoniter "github.com/json-iterator/go"

	"github.com/aura-ix/tomochan/fstindex"
)

// Kanji is one entry of a kanji bank.
type Kanji struct {
	Character string
	Onyomi    string
	Kunyomi   string
	Tags      string
	Meanings  []string
	Stats     map[string]string
}

func (k *Kanji) Kind() fstindex.Kind { return fstindex.KindKanji }
func (k *Kanji) Key() string         { return k.Character }

func (k *Kanji) MarshalWithEncoder(encoder *bin.Encoder) error {
	for _, s := range []string{k.Character, k.Onyomi, k.Kunyomi, k.Tags} {
		if err := writeString(encoder, s); err != nil {
			return err
		}
	}
	if err := writeStringSlice(encoder, k.Meanings); err != nil {
		return err
	}
	// Stats are a map; emit them key-sorted so encoding is deterministic.
	statKeys := make([]string, 0, len(k.Stats))
	for key := range k.Stats {
		statKeys = append(statKeys, key)
	}
	sort.Strings(statKeys)
	if err := encoder.WriteUint32(uint32(len(statKeys)), bin.LE); err != nil {
		return err
	}
	for _, key := range statKeys {
		if err := writeString(encoder, key); err != nil {
			return err
		}
		if err := writeString(encoder, k.Stats[key]); err != nil {
			return err
		}
	}
	return nil
}

func (k *Kanji) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	for _, s := range []*string{&k.Character, &k.Onyomi, &k.Kunyomi, &k.Tags} {
		if *s, err = readString(decoder); err != nil {
			return err
		}
	}
	if k.Meanings, err = readStringSlice(decoder); err != nil {
		return err
	}
	numStats, err := decoder.ReadUint32(bin.LE)
	if err != nil || numStats == 0 {
		return err
	}
	k.Stats = make(map[string]string, numStats)
	for i := uint32(0); i < numStats; i++ {
		key, err := readString(decoder)
		if err != nil {
			return err
		}
		value, err := readString(decoder)
		if err != nil {
			return err
		}
		k.Stats[key] = value
	}
	return nil
}

// DecodeKanji deserializes a Kanji record from store bytes.
func DecodeKanji(data []byte) (*Kanji, error) {
	var k Kanji
	if err := k.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, fmt.Errorf("failed to decode kanji record: %w", err)
	}
	return &k, nil
}

// parseKanji parses one kanji-bank entry:
// [character, onyomi, kunyomi, tags, meanings, stats]
func parseKanji(entry []jsoniter.RawMessage) (*Kanji, error) {
	if len(entry) != 6 {
		return nil, fmt.Errorf("kanji entry must have exactly 6 elements, got %d", len(entry))
	}
	k := &Kanji{}
	var err error
	if k.Character, err = asString(entry[0], "character"); err != nil {
		return nil, err
	}
	if k.Onyomi, err = asString(entry[1], "onyomi"); err != nil {
		return nil, err
	}
	if k.Kunyomi, err = asString(entry[2], "kunyomi"); err != nil {
		return nil, err
	}
	if k.Tags, err = asString(entry[3], "tags"); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(entry[4], &k.Meanings); err != nil {
		return nil, fmt.Errorf("meanings must be an array of strings: %w", err)
	}
	if err := json.Unmarshal(entry[5], &k.Stats); err != nil {
		return nil, fmt.Errorf("stats must be an object of strings: %w", err)
	}
	return k, nil
}
