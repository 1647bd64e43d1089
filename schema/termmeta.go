package schema

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	jsoniter "github.com/json-iterator/go"

	"github.com/aura-ix/tomochan/fstindex"
)

// TermMetaMode discriminates term metadata entries.
type TermMetaMode byte

const (
	TermMetaFreq TermMetaMode = iota
	TermMetaPitch
	TermMetaIpa
)

func (m TermMetaMode) String() string {
	switch m {
	case TermMetaFreq:
		return "freq"
	case TermMetaPitch:
		return "pitch"
	case TermMetaIpa:
		return "ipa"
	}
	return fmt.Sprintf("TermMetaMode(%d)", byte(m))
}

// TermMeta is one entry of a term meta bank. Exactly one of Frequency,
// Pitch and Ipa is set, per Mode.
type TermMeta struct {
	Term string
	Mode TermMetaMode

	Frequency *FrequencyData
	Pitch     *PitchData
	Ipa       *IpaData
}

func (tm *TermMeta) Kind() fstindex.Kind { return fstindex.KindTermMeta }
func (tm *TermMeta) Key() string         { return tm.Term }

// FrequencyKind discriminates frequency payloads.
type FrequencyKind byte

const (
	FrequencyNumber FrequencyKind = iota
	FrequencyText
	FrequencyDetailed
)

// Frequency is either a bare number, a bare string, or a detailed
// value/displayValue pair.
type Frequency struct {
	Kind         FrequencyKind
	Value        float32 // FrequencyNumber, FrequencyDetailed
	Text         string  // FrequencyText
	DisplayValue *string // FrequencyDetailed
}

// FrequencyData is a frequency with an optional disambiguating reading.
type FrequencyData struct {
	Reading   *string
	Frequency Frequency
}

type PitchData struct {
	Reading string
	Pitches []PitchAccent
}

type PitchAccent struct {
	Position PitchPosition
	Nasal    []uint32
	Devoice  []uint32
	Tags     []string
}

// PitchPosition is a downstep position: either a mora index or a
// high/low pattern string.
type PitchPosition struct {
	IsPattern bool
	Numeric   uint32
	Pattern   string
}

type IpaData struct {
	Reading        string
	Transcriptions []IpaTranscription
}

type IpaTranscription struct {
	Ipa  string
	Tags []string
}

func (f *Frequency) marshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteByte(byte(f.Kind)); err != nil {
		return err
	}
	switch f.Kind {
	case FrequencyNumber:
		return encoder.WriteFloat32(f.Value, bin.LE)
	case FrequencyText:
		return writeString(encoder, f.Text)
	case FrequencyDetailed:
		if err := encoder.WriteFloat32(f.Value, bin.LE); err != nil {
			return err
		}
		return writeOptionalString(encoder, f.DisplayValue)
	default:
		return fmt.Errorf("unknown frequency kind %d", f.Kind)
	}
}

func (f *Frequency) unmarshalWithDecoder(decoder *bin.Decoder) error {
	kind, err := decoder.ReadByte()
	if err != nil {
		return err
	}
	f.Kind = FrequencyKind(kind)
	switch f.Kind {
	case FrequencyNumber:
		f.Value, err = decoder.ReadFloat32(bin.LE)
		return err
	case FrequencyText:
		f.Text, err = readString(decoder)
		return err
	case FrequencyDetailed:
		if f.Value, err = decoder.ReadFloat32(bin.LE); err != nil {
			return err
		}
		f.DisplayValue, err = readOptionalString(decoder)
		return err
	default:
		return fmt.Errorf("unknown frequency kind %d", kind)
	}
}

func (tm *TermMeta) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := writeString(encoder, tm.Term); err != nil {
		return err
	}
	if err := encoder.WriteByte(byte(tm.Mode)); err != nil {
		return err
	}
	switch tm.Mode {
	case TermMetaFreq:
		if err := writeOptionalString(encoder, tm.Frequency.Reading); err != nil {
			return err
		}
		return tm.Frequency.Frequency.marshalWithEncoder(encoder)
	case TermMetaPitch:
		if err := writeString(encoder, tm.Pitch.Reading); err != nil {
			return err
		}
		if err := encoder.WriteUint32(uint32(len(tm.Pitch.Pitches)), bin.LE); err != nil {
			return err
		}
		for i := range tm.Pitch.Pitches {
			if err := tm.Pitch.Pitches[i].marshalWithEncoder(encoder); err != nil {
				return err
			}
		}
		return nil
	case TermMetaIpa:
		if err := writeString(encoder, tm.Ipa.Reading); err != nil {
			return err
		}
		if err := encoder.WriteUint32(uint32(len(tm.Ipa.Transcriptions)), bin.LE); err != nil {
			return err
		}
		for _, tr := range tm.Ipa.Transcriptions {
			if err := writeString(encoder, tr.Ipa); err != nil {
				return err
			}
			if err := writeStringSlice(encoder, tr.Tags); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown term meta mode %d", tm.Mode)
	}
}

func (tm *TermMeta) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	term, err := readString(decoder)
	if err != nil {
		return err
	}
	tm.Term = term
	mode, err := decoder.ReadByte()
	if err != nil {
		return err
	}
	tm.Mode = TermMetaMode(mode)
	switch tm.Mode {
	case TermMetaFreq:
		tm.Frequency = &FrequencyData{}
		if tm.Frequency.Reading, err = readOptionalString(decoder); err != nil {
			return err
		}
		return tm.Frequency.Frequency.unmarshalWithDecoder(decoder)
	case TermMetaPitch:
		tm.Pitch = &PitchData{}
		if tm.Pitch.Reading, err = readString(decoder); err != nil {
			return err
		}
		numPitches, err := decoder.ReadUint32(bin.LE)
		if err != nil || numPitches == 0 {
			return err
		}
		tm.Pitch.Pitches = make([]PitchAccent, numPitches)
		for i := range tm.Pitch.Pitches {
			if err := tm.Pitch.Pitches[i].unmarshalWithDecoder(decoder); err != nil {
				return err
			}
		}
		return nil
	case TermMetaIpa:
		tm.Ipa = &IpaData{}
		if tm.Ipa.Reading, err = readString(decoder); err != nil {
			return err
		}
		numTranscriptions, err := decoder.ReadUint32(bin.LE)
		if err != nil || numTranscriptions == 0 {
			return err
		}
		tm.Ipa.Transcriptions = make([]IpaTranscription, numTranscriptions)
		for i := range tm.Ipa.Transcriptions {
			if tm.Ipa.Transcriptions[i].Ipa, err = readString(decoder); err != nil {
				return err
			}
			if tm.Ipa.Transcriptions[i].Tags, err = readStringSlice(decoder); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown term meta mode %d", mode)
	}
}

func (p *PitchAccent) marshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteBool(p.Position.IsPattern); err != nil {
		return err
	}
	if p.Position.IsPattern {
		if err := writeString(encoder, p.Position.Pattern); err != nil {
			return err
		}
	} else {
		if err := encoder.WriteUint32(p.Position.Numeric, bin.LE); err != nil {
			return err
		}
	}
	if err := writeUint32Slice(encoder, p.Nasal); err != nil {
		return err
	}
	if err := writeUint32Slice(encoder, p.Devoice); err != nil {
		return err
	}
	return writeStringSlice(encoder, p.Tags)
}

func (p *PitchAccent) unmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	if p.Position.IsPattern, err = decoder.ReadBool(); err != nil {
		return err
	}
	if p.Position.IsPattern {
		if p.Position.Pattern, err = readString(decoder); err != nil {
			return err
		}
	} else {
		if p.Position.Numeric, err = decoder.ReadUint32(bin.LE); err != nil {
			return err
		}
	}
	if p.Nasal, err = readUint32Slice(decoder); err != nil {
		return err
	}
	if p.Devoice, err = readUint32Slice(decoder); err != nil {
		return err
	}
	p.Tags, err = readStringSlice(decoder)
	return err
}

// DecodeTermMeta deserializes a TermMeta record from store bytes.
func DecodeTermMeta(data []byte) (*TermMeta, error) {
	var tm TermMeta
	if err := tm.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, fmt.Errorf("failed to decode term meta record: %w", err)
	}
	return &tm, nil
}

// parseTermMeta parses one term-meta-bank entry: [term, mode, data]
func parseTermMeta(entry []jsoniter.RawMessage) (*TermMeta, error) {
	if len(entry) != 3 {
		return nil, fmt.Errorf("term meta entry must have exactly 3 elements, got %d", len(entry))
	}
	term, err := asString(entry[0], "term")
	if err != nil {
		return nil, err
	}
	mode, err := asString(entry[1], "mode")
	if err != nil {
		return nil, err
	}
	tm := &TermMeta{Term: term}
	switch mode {
	case "freq":
		tm.Mode = TermMetaFreq
		if tm.Frequency, err = parseFrequencyData(entry[2]); err != nil {
			return nil, err
		}
	case "pitch":
		tm.Mode = TermMetaPitch
		if tm.Pitch, err = parsePitchData(entry[2]); err != nil {
			return nil, err
		}
	case "ipa":
		tm.Mode = TermMetaIpa
		if tm.Ipa, err = parseIpaData(entry[2]); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown term meta mode: %q", mode)
	}
	return tm, nil
}

func parseFrequencyData(raw jsoniter.RawMessage) (*FrequencyData, error) {
	var withReading struct {
		Reading   *string             `json:"reading"`
		Frequency jsoniter.RawMessage `json:"frequency"`
	}
	if err := json.Unmarshal(raw, &withReading); err == nil &&
		withReading.Reading != nil && withReading.Frequency != nil {
		freq, err := parseFrequency(withReading.Frequency)
		if err != nil {
			return nil, err
		}
		return &FrequencyData{Reading: withReading.Reading, Frequency: *freq}, nil
	}
	freq, err := parseFrequency(raw)
	if err != nil {
		return nil, err
	}
	return &FrequencyData{Frequency: *freq}, nil
}

func parseFrequency(raw jsoniter.RawMessage) (*Frequency, error) {
	var detailed struct {
		Value        *float32 `json:"value"`
		DisplayValue *string  `json:"displayValue"`
	}
	if err := json.Unmarshal(raw, &detailed); err == nil && detailed.Value != nil {
		return &Frequency{
			Kind:         FrequencyDetailed,
			Value:        *detailed.Value,
			DisplayValue: detailed.DisplayValue,
		}, nil
	}
	var num float32
	if err := json.Unmarshal(raw, &num); err == nil {
		return &Frequency{Kind: FrequencyNumber, Value: num}, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return &Frequency{Kind: FrequencyText, Text: text}, nil
	}
	return nil, fmt.Errorf("invalid frequency format")
}

func parsePitchData(raw jsoniter.RawMessage) (*PitchData, error) {
	var obj struct {
		Reading string `json:"reading"`
		Pitches []struct {
			Position jsoniter.RawMessage `json:"position"`
			Nasal    jsoniter.RawMessage `json:"nasal"`
			Devoice  jsoniter.RawMessage `json:"devoice"`
			Tags     []string            `json:"tags"`
		} `json:"pitches"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("pitch data must be an object: %w", err)
	}
	if obj.Reading == "" {
		return nil, fmt.Errorf("pitch data is missing reading")
	}
	if obj.Pitches == nil {
		return nil, fmt.Errorf("pitch data is missing pitches array")
	}
	data := &PitchData{Reading: obj.Reading}
	for _, p := range obj.Pitches {
		accent := PitchAccent{Tags: p.Tags}
		if p.Position == nil {
			return nil, fmt.Errorf("pitch accent is missing position")
		}
		var numeric uint32
		if err := json.Unmarshal(p.Position, &numeric); err == nil {
			accent.Position = PitchPosition{Numeric: numeric}
		} else {
			var pattern string
			if err := json.Unmarshal(p.Position, &pattern); err != nil {
				return nil, fmt.Errorf("invalid pitch position")
			}
			accent.Position = PitchPosition{IsPattern: true, Pattern: pattern}
		}
		var err error
		if accent.Nasal, err = parsePositions(p.Nasal); err != nil {
			return nil, fmt.Errorf("invalid nasal positions: %w", err)
		}
		if accent.Devoice, err = parsePositions(p.Devoice); err != nil {
			return nil, fmt.Errorf("invalid devoice positions: %w", err)
		}
		data.Pitches = append(data.Pitches, accent)
	}
	return data, nil
}

// parsePositions accepts a single mora index or an array of them.
func parsePositions(raw jsoniter.RawMessage) ([]uint32, error) {
	if raw == nil {
		return nil, nil
	}
	var single uint32
	if err := json.Unmarshal(raw, &single); err == nil {
		return []uint32{single}, nil
	}
	var multiple []uint32
	if err := json.Unmarshal(raw, &multiple); err != nil {
		return nil, err
	}
	return multiple, nil
}

func parseIpaData(raw jsoniter.RawMessage) (*IpaData, error) {
	var obj struct {
		Reading        string `json:"reading"`
		Transcriptions []struct {
			Ipa  string   `json:"ipa"`
			Tags []string `json:"tags"`
		} `json:"transcriptions"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("ipa data must be an object: %w", err)
	}
	if obj.Reading == "" {
		return nil, fmt.Errorf("ipa data is missing reading")
	}
	data := &IpaData{Reading: obj.Reading}
	for _, tr := range obj.Transcriptions {
		data.Transcriptions = append(data.Transcriptions, IpaTranscription{Ipa: tr.Ipa, Tags: tr.Tags})
	}
	return data, nil
}
