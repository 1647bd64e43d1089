package schema

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	jsoniter "github.com/json-iterator/go"

	"github.com/aura-ix/tomochan/fstindex"
)

// Term is one entry of a term bank.
type Term struct {
	Term           string
	Reading        string
	Definitions    []Definition
	Score          float32
	Sequence       int32
	DefinitionTags string
	Rules          string
	TermTags       string
}

func (t *Term) Kind() fstindex.Kind { return fstindex.KindTerm }
func (t *Term) Key() string         { return t.Term }

// DefinitionKind discriminates the glossary entry variants.
type DefinitionKind byte

const (
	DefinitionText DefinitionKind = iota
	DefinitionStructuredContent
	DefinitionImage
	DefinitionDeinflection
)

// Definition is one glossary entry of a term. Structured content is
// carried as its raw JSON rather than a typed tree; consumers that render
// it re-parse on their side.
type Definition struct {
	Kind DefinitionKind

	Text    string // DefinitionText
	Content string // DefinitionStructuredContent, raw JSON

	Image *ImageDefinition // DefinitionImage

	Uninflected    string   // DefinitionDeinflection
	DeinflectRules []string // DefinitionDeinflection
}

type ImageDefinition struct {
	Path        string
	Width       *uint16
	Height      *uint16
	Title       *string
	Alt         *string
	Description *string
	Pixelated   bool
	Monochrome  bool
	Background  bool
}

func (t *Term) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := writeString(encoder, t.Term); err != nil {
		return err
	}
	if err := writeString(encoder, t.Reading); err != nil {
		return err
	}
	if err := encoder.WriteUint32(uint32(len(t.Definitions)), bin.LE); err != nil {
		return err
	}
	for i := range t.Definitions {
		if err := t.Definitions[i].marshalWithEncoder(encoder); err != nil {
			return err
		}
	}
	if err := encoder.WriteFloat32(t.Score, bin.LE); err != nil {
		return err
	}
	if err := encoder.WriteInt32(t.Sequence, bin.LE); err != nil {
		return err
	}
	if err := writeString(encoder, t.DefinitionTags); err != nil {
		return err
	}
	if err := writeString(encoder, t.Rules); err != nil {
		return err
	}
	return writeString(encoder, t.TermTags)
}

func (t *Term) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	if t.Term, err = readString(decoder); err != nil {
		return err
	}
	if t.Reading, err = readString(decoder); err != nil {
		return err
	}
	numDefs, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return err
	}
	if numDefs > 0 {
		t.Definitions = make([]Definition, numDefs)
	}
	for i := range t.Definitions {
		if err := t.Definitions[i].unmarshalWithDecoder(decoder); err != nil {
			return err
		}
	}
	if t.Score, err = decoder.ReadFloat32(bin.LE); err != nil {
		return err
	}
	if t.Sequence, err = decoder.ReadInt32(bin.LE); err != nil {
		return err
	}
	if t.DefinitionTags, err = readString(decoder); err != nil {
		return err
	}
	if t.Rules, err = readString(decoder); err != nil {
		return err
	}
	t.TermTags, err = readString(decoder)
	return err
}

// DecodeTerm deserializes a Term record from store bytes.
func DecodeTerm(data []byte) (*Term, error) {
	var t Term
	if err := t.UnmarshalWithDecoder(bin.NewBinDecoder(data)); err != nil {
		return nil, fmt.Errorf("failed to decode term record: %w", err)
	}
	return &t, nil
}

func (d *Definition) marshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteByte(byte(d.Kind)); err != nil {
		return err
	}
	switch d.Kind {
	case DefinitionText:
		return writeString(encoder, d.Text)
	case DefinitionStructuredContent:
		return writeString(encoder, d.Content)
	case DefinitionImage:
		return d.Image.marshalWithEncoder(encoder)
	case DefinitionDeinflection:
		if err := writeString(encoder, d.Uninflected); err != nil {
			return err
		}
		return writeStringSlice(encoder, d.DeinflectRules)
	default:
		return fmt.Errorf("unknown definition kind %d", d.Kind)
	}
}

func (d *Definition) unmarshalWithDecoder(decoder *bin.Decoder) error {
	kind, err := decoder.ReadByte()
	if err != nil {
		return err
	}
	d.Kind = DefinitionKind(kind)
	switch d.Kind {
	case DefinitionText:
		d.Text, err = readString(decoder)
		return err
	case DefinitionStructuredContent:
		d.Content, err = readString(decoder)
		return err
	case DefinitionImage:
		d.Image = &ImageDefinition{}
		return d.Image.unmarshalWithDecoder(decoder)
	case DefinitionDeinflection:
		if d.Uninflected, err = readString(decoder); err != nil {
			return err
		}
		d.DeinflectRules, err = readStringSlice(decoder)
		return err
	default:
		return fmt.Errorf("unknown definition kind %d", kind)
	}
}

func (img *ImageDefinition) marshalWithEncoder(encoder *bin.Encoder) error {
	if err := writeString(encoder, img.Path); err != nil {
		return err
	}
	for _, dim := range []*uint16{img.Width, img.Height} {
		if err := encoder.WriteBool(dim != nil); err != nil {
			return err
		}
		if dim != nil {
			if err := encoder.WriteUint16(*dim, bin.LE); err != nil {
				return err
			}
		}
	}
	for _, s := range []*string{img.Title, img.Alt, img.Description} {
		if err := writeOptionalString(encoder, s); err != nil {
			return err
		}
	}
	for _, b := range []bool{img.Pixelated, img.Monochrome, img.Background} {
		if err := encoder.WriteBool(b); err != nil {
			return err
		}
	}
	return nil
}

func (img *ImageDefinition) unmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	if img.Path, err = readString(decoder); err != nil {
		return err
	}
	for _, dim := range []**uint16{&img.Width, &img.Height} {
		present, err := decoder.ReadBool()
		if err != nil {
			return err
		}
		if present {
			v, err := decoder.ReadUint16(bin.LE)
			if err != nil {
				return err
			}
			*dim = &v
		}
	}
	for _, s := range []**string{&img.Title, &img.Alt, &img.Description} {
		if *s, err = readOptionalString(decoder); err != nil {
			return err
		}
	}
	for _, b := range []*bool{&img.Pixelated, &img.Monochrome, &img.Background} {
		if *b, err = decoder.ReadBool(); err != nil {
			return err
		}
	}
	return nil
}

// parseTerm parses one term-bank entry:
// [term, reading, definitionTags, rules, score, definitions, sequence, termTags]
func parseTerm(entry []jsoniter.RawMessage) (*Term, error) {
	if len(entry) != 8 {
		return nil, fmt.Errorf("term entry must have exactly 8 elements, got %d", len(entry))
	}
	term, err := asString(entry[0], "term")
	if err != nil {
		return nil, err
	}
	reading, err := asString(entry[1], "reading")
	if err != nil {
		return nil, err
	}
	score, err := asFloat32(entry[4], "score")
	if err != nil {
		return nil, err
	}
	defs, err := parseDefinitions(entry[5])
	if err != nil {
		return nil, err
	}
	sequence, err := asInt32(entry[6], "sequence")
	if err != nil {
		return nil, err
	}
	termTags, err := asString(entry[7], "term tags")
	if err != nil {
		return nil, err
	}
	rules, err := asString(entry[3], "rules")
	if err != nil {
		return nil, err
	}
	return &Term{
		Term:           term,
		Reading:        reading,
		Definitions:    defs,
		Score:          score,
		Sequence:       sequence,
		DefinitionTags: asStringOrEmpty(entry[2]),
		Rules:          rules,
		TermTags:       termTags,
	}, nil
}

func parseDefinitions(raw jsoniter.RawMessage) ([]Definition, error) {
	var items []jsoniter.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("definitions must be an array: %w", err)
	}
	defs := make([]Definition, 0, len(items))
	for _, item := range items {
		def, err := parseDefinition(item)
		if err != nil {
			return nil, err
		}
		defs = append(defs, *def)
	}
	return defs, nil
}

// parseDefinition accepts the glossary entry forms: a bare string, a
// [uninflected, rules] pair, or a typed object.
func parseDefinition(raw jsoniter.RawMessage) (*Definition, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return &Definition{Kind: DefinitionText, Text: text}, nil
	}

	var pair []jsoniter.RawMessage
	if err := json.Unmarshal(raw, &pair); err == nil {
		if len(pair) != 2 {
			return nil, fmt.Errorf("deinflection definition must be a 2-element array")
		}
		var uninflected string
		var rules []string
		if err := json.Unmarshal(pair[0], &uninflected); err != nil {
			return nil, fmt.Errorf("invalid deinflection definition: %w", err)
		}
		if err := json.Unmarshal(pair[1], &rules); err != nil {
			return nil, fmt.Errorf("invalid deinflection rules: %w", err)
		}
		return &Definition{Kind: DefinitionDeinflection, Uninflected: uninflected, DeinflectRules: rules}, nil
	}

	var obj struct {
		Type        string          `json:"type"`
		Text        string          `json:"text"`
		Content     jsoniter.RawMessage `json:"content"`
		Path        string          `json:"path"`
		Width       *uint16         `json:"width"`
		Height      *uint16         `json:"height"`
		Title       *string         `json:"title"`
		Alt         *string         `json:"alt"`
		Description *string         `json:"description"`
		Pixelated   *bool           `json:"pixelated"`
		Appearance  string          `json:"appearance"`
		Background  *bool           `json:"background"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("invalid definition format: %w", err)
	}
	switch obj.Type {
	case "text":
		return &Definition{Kind: DefinitionText, Text: obj.Text}, nil
	case "structured-content":
		if obj.Content == nil {
			return nil, fmt.Errorf("structured-content definition is missing content")
		}
		return &Definition{Kind: DefinitionStructuredContent, Content: string(obj.Content)}, nil
	case "image":
		if obj.Path == "" {
			return nil, fmt.Errorf("image definition is missing path")
		}
		img := &ImageDefinition{
			Path:        obj.Path,
			Width:       obj.Width,
			Height:      obj.Height,
			Title:       obj.Title,
			Alt:         obj.Alt,
			Description: obj.Description,
			Monochrome:  obj.Appearance == "monochrome",
			Background:  true,
		}
		if obj.Pixelated != nil {
			img.Pixelated = *obj.Pixelated
		}
		if obj.Background != nil {
			img.Background = *obj.Background
		}
		return &Definition{Kind: DefinitionImage, Image: img}, nil
	default:
		return nil, fmt.Errorf("unknown definition type: %q", obj.Type)
	}
}
