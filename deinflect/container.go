package deinflect

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	bin "github.com/gagliardetto/binary"

	"github.com/aura-ix/tomochan/container"
)

// currentRoleVersion is the deinflector payload format version this build
// reads and writes. Zero marks the format as still in development.
const currentRoleVersion uint64 = 0

const savedMinRoleVersion uint64 = 0

func (d *Deinflector) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteUint32(uint32(len(d.transforms)), bin.LE); err != nil {
		return err
	}
	for _, transform := range d.transforms {
		if err := writeString(encoder, transform.Name); err != nil {
			return err
		}
		if err := encoder.WriteBool(transform.Desc != nil); err != nil {
			return err
		}
		if transform.Desc != nil {
			if err := writeString(encoder, *transform.Desc); err != nil {
				return err
			}
		}
		if err := encoder.WriteBool(transform.IsFinal); err != nil {
			return err
		}
	}

	// The suffix map is emitted key-sorted so the payload is
	// deterministic.
	suffixes := make([]string, 0, len(d.suffixMap))
	for suffix := range d.suffixMap {
		suffixes = append(suffixes, suffix)
	}
	sort.Strings(suffixes)
	if err := encoder.WriteUint32(uint32(len(suffixes)), bin.LE); err != nil {
		return err
	}
	for _, suffix := range suffixes {
		if err := writeString(encoder, suffix); err != nil {
			return err
		}
		productions := d.suffixMap[suffix]
		if err := encoder.WriteUint32(uint32(len(productions)), bin.LE); err != nil {
			return err
		}
		for _, production := range productions {
			if err := encoder.WriteUint32(production.TransformIdx, bin.LE); err != nil {
				return err
			}
			if err := encoder.WriteUint64(production.AcceptTags, bin.LE); err != nil {
				return err
			}
			if err := encoder.WriteUint64(production.ProduceTags, bin.LE); err != nil {
				return err
			}
			if err := encoder.WriteUint32(uint32(len(production.ProduceSuffix)), bin.LE); err != nil {
				return err
			}
			if err := encoder.WriteBytes(production.ProduceSuffix, false); err != nil {
				return err
			}
		}
	}

	if err := encoder.WriteUint32(uint32(len(d.suffixLengths)), bin.LE); err != nil {
		return err
	}
	for _, length := range d.suffixLengths {
		if err := encoder.WriteUint64(length, bin.LE); err != nil {
			return err
		}
	}
	return nil
}

func (d *Deinflector) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	numTransforms, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return err
	}
	d.transforms = make([]TransformMeta, numTransforms)
	for i := range d.transforms {
		if d.transforms[i].Name, err = readString(decoder); err != nil {
			return err
		}
		hasDesc, err := decoder.ReadBool()
		if err != nil {
			return err
		}
		if hasDesc {
			desc, err := readString(decoder)
			if err != nil {
				return err
			}
			d.transforms[i].Desc = &desc
		}
		if d.transforms[i].IsFinal, err = decoder.ReadBool(); err != nil {
			return err
		}
	}

	numSuffixes, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return err
	}
	d.suffixMap = make(map[string][]Production, numSuffixes)
	for i := uint32(0); i < numSuffixes; i++ {
		suffix, err := readString(decoder)
		if err != nil {
			return err
		}
		numProductions, err := decoder.ReadUint32(bin.LE)
		if err != nil {
			return err
		}
		productions := make([]Production, numProductions)
		for j := range productions {
			p := &productions[j]
			if p.TransformIdx, err = decoder.ReadUint32(bin.LE); err != nil {
				return err
			}
			if int(p.TransformIdx) >= len(d.transforms) {
				return fmt.Errorf("production references transform %d of %d", p.TransformIdx, len(d.transforms))
			}
			if p.AcceptTags, err = decoder.ReadUint64(bin.LE); err != nil {
				return err
			}
			if p.ProduceTags, err = decoder.ReadUint64(bin.LE); err != nil {
				return err
			}
			suffixLen, err := decoder.ReadUint32(bin.LE)
			if err != nil {
				return err
			}
			if p.ProduceSuffix, err = decoder.ReadNBytes(int(suffixLen)); err != nil {
				return err
			}
		}
		d.suffixMap[suffix] = productions
	}

	numLengths, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return err
	}
	d.suffixLengths = make([]uint64, numLengths)
	for i := range d.suffixLengths {
		if d.suffixLengths[i], err = decoder.ReadUint64(bin.LE); err != nil {
			return err
		}
	}
	return nil
}

// Save writes the compiled rule table as a Deinflector container.
func (d *Deinflector) Save(path string, meta container.Meta) error {
	var payload bytes.Buffer
	if err := d.MarshalWithEncoder(bin.NewBinEncoder(&payload)); err != nil {
		return fmt.Errorf("failed to encode deinflector: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create package file: %w", err)
	}
	defer file.Close()

	hdr := container.NewHeader(meta, container.RoleDeinflector, savedMinRoleVersion)
	if err := container.Write(file, hdr, payload.Bytes()); err != nil {
		return fmt.Errorf("failed to write container: %w", err)
	}
	return nil
}

// Open loads a Deinflector container from disk. With verify set, the
// payload hash and length are checked first.
func Open(path string, verify bool) (*Deinflector, error) {
	file, info, err := container.Open(path, container.RoleDeinflector, currentRoleVersion, verify)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if _, err := file.Seek(int64(info.PayloadOffset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to payload: %w", err)
	}
	payload, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}

	var d Deinflector
	decoder := bin.NewBinDecoder(payload)
	if err := d.UnmarshalWithDecoder(decoder); err != nil {
		return nil, fmt.Errorf("failed to decode deinflector: %w", err)
	}
	if decoder.Remaining() != 0 {
		return nil, fmt.Errorf("deinflector payload has %d trailing bytes", decoder.Remaining())
	}
	return &d, nil
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
