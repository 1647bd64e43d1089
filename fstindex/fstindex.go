// Package fstindex implements the unified FST index: one ordered
// byte-keyed automaton multiplexing every key space of a dictionary
// package, with duplicate-key support.
//
// Keys stored in the FST are composites:
//
//	[kind: 1 byte] [utf8 key bytes] [0x00] [repetition: 4 bytes big-endian]
//
// The kind byte groups each key space into a contiguous range; the 0x00
// separator keeps distinct keys from straddling one another (domain keys
// never contain 0x00); the repetition ordinal makes duplicate (kind, key)
// pairs unique while preserving insertion order.
package fstindex

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/blevesearch/vellum"
)

// Kind tags what a key in the unified index refers to.
type Kind byte

const (
	KindTerm Kind = iota
	KindKanji
	KindTag
	KindTermMeta
	KindKanjiMeta
	KindFile
)

var kindNames = map[Kind]string{
	KindTerm:      "Term",
	KindKanji:     "Kanji",
	KindTag:       "Tag",
	KindTermMeta:  "TermMeta",
	KindKanjiMeta: "KanjiMeta",
	KindFile:      "File",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(0x%02X)", byte(k))
}

// KindFromByte validates and converts a raw kind byte.
func KindFromByte(b byte) (Kind, error) {
	if b > byte(KindFile) {
		return 0, fmt.Errorf("invalid kind byte 0x%02X", b)
	}
	return Kind(b), nil
}

var (
	ErrMalformedKey = errors.New("malformed composite key")
	ErrKeyHasNul    = errors.New("key contains a NUL byte")
)

// Entry is one (kind, key, value) triple to be indexed. Values are store
// offsets, but the index does not care.
type Entry struct {
	Kind  Kind
	Key   string
	Value uint64
}

// KeyValue is a decoded index entry returned by prefix scans.
type KeyValue struct {
	Key   string
	Value uint64
}

// separator (1) + repetition ordinal (4)
const compositeSuffixLen = 5

const minCompositeLen = 1 + compositeSuffixLen

func compositeKey(kind Kind, key string, rep uint32) []byte {
	composite := make([]byte, 0, 1+len(key)+compositeSuffixLen)
	composite = append(composite, byte(kind))
	composite = append(composite, key...)
	composite = append(composite, 0x00)
	composite = binary.BigEndian.AppendUint32(composite, rep)
	return composite
}

// splitComposite pulls the kind and key segment back out of a composite.
// The separator sits at a fixed distance from the end because keys never
// contain 0x00.
func splitComposite(composite []byte) (Kind, []byte, error) {
	if len(composite) < minCompositeLen {
		return 0, nil, fmt.Errorf("%w: %d bytes is below the minimum %d", ErrMalformedKey, len(composite), minCompositeLen)
	}
	kind, err := KindFromByte(composite[0])
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s", ErrMalformedKey, err)
	}
	keyEnd := len(composite) - compositeSuffixLen
	if composite[keyEnd] != 0x00 {
		return 0, nil, fmt.Errorf("%w: missing separator", ErrMalformedKey)
	}
	return kind, composite[1:keyEnd], nil
}

// Build sorts the entries by (kind, key) and emits them into a new FST
// image. The sort is stable, so duplicate (kind, key) pairs keep their
// insertion order via the repetition ordinal.
func Build(entries []Entry) ([]byte, error) {
	for _, entry := range entries {
		if strings.IndexByte(entry.Key, 0x00) >= 0 {
			return nil, fmt.Errorf("%w: %q", ErrKeyHasNul, entry.Key)
		}
	}

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Kind != sorted[j].Kind {
			return sorted[i].Kind < sorted[j].Kind
		}
		return sorted[i].Key < sorted[j].Key
	})

	var buf bytes.Buffer
	builder, err := vellum.New(&buf, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create FST builder: %w", err)
	}

	var rep uint32
	for i, entry := range sorted {
		if i > 0 && sorted[i-1].Kind == entry.Kind && sorted[i-1].Key == entry.Key {
			rep++
		} else {
			rep = 0
		}
		// The sort above guarantees strictly increasing composite keys;
		// an out-of-order error here is an internal invariant violation.
		if err := builder.Insert(compositeKey(entry.Kind, entry.Key, rep), entry.Value); err != nil {
			return nil, fmt.Errorf("failed to insert key into FST: %w", err)
		}
	}
	if err := builder.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize FST: %w", err)
	}
	return buf.Bytes(), nil
}

// Index is a read-only view over an FST image. The backing byte slice
// (often an mmap) must stay valid for the lifetime of the Index.
type Index struct {
	fst *vellum.FST
}

// Load constructs an Index over an FST image without copying it.
func Load(data []byte) (*Index, error) {
	fst, err := vellum.Load(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load FST: %w", err)
	}
	return &Index{fst: fst}, nil
}

// Lookup returns the values of every entry with exactly this (kind, key),
// in insertion order.
func (x *Index) Lookup(kind Kind, key string) ([]uint64, error) {
	prefix := make([]byte, 0, 1+len(key)+1)
	prefix = append(prefix, byte(kind))
	prefix = append(prefix, key...)
	prefix = append(prefix, 0x00)

	itr, err := x.fst.Iterator(prefix, nil)
	if errors.Is(err, vellum.ErrIteratorDone) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open FST iterator: %w", err)
	}
	defer itr.Close()

	var results []uint64
	for err == nil {
		composite, value := itr.Current()
		foundKind, foundKey, kerr := splitComposite(composite)
		if kerr != nil {
			return nil, kerr
		}
		if foundKind != kind || string(foundKey) != key {
			// Composite keys for one (kind, key) are contiguous.
			break
		}
		results = append(results, value)
		err = itr.Next()
	}
	if err != nil && !errors.Is(err, vellum.ErrIteratorDone) {
		return nil, fmt.Errorf("FST iteration failed: %w", err)
	}
	return results, nil
}

// Keys returns the distinct keys of a kind in byte-lexicographic order.
func (x *Index) Keys(kind Kind) ([]string, error) {
	itr, err := x.kindIterator(kind)
	if errors.Is(err, vellum.ErrIteratorDone) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer itr.Close()

	var keys []string
	for err == nil {
		composite, _ := itr.Current()
		_, keyBytes, kerr := splitComposite(composite)
		if kerr != nil {
			return nil, kerr
		}
		// Duplicates are adjacent thanks to the sort, so comparing with
		// the previous key is enough to deduplicate.
		if len(keys) == 0 || keys[len(keys)-1] != string(keyBytes) {
			keys = append(keys, string(keyBytes))
		}
		err = itr.Next()
	}
	if err != nil && !errors.Is(err, vellum.ErrIteratorDone) {
		return nil, fmt.Errorf("FST iteration failed: %w", err)
	}
	return keys, nil
}

// Prefix returns every (key, value) pair of the kind whose key starts with
// the given prefix, in index order. Duplicate keys appear once per entry.
func (x *Index) Prefix(kind Kind, prefix string) ([]KeyValue, error) {
	start := make([]byte, 0, 1+len(prefix))
	start = append(start, byte(kind))
	start = append(start, prefix...)

	itr, err := x.fst.Iterator(start, kindRangeEnd(kind))
	if errors.Is(err, vellum.ErrIteratorDone) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open FST iterator: %w", err)
	}
	defer itr.Close()

	var results []KeyValue
	for err == nil {
		composite, value := itr.Current()
		_, keyBytes, kerr := splitComposite(composite)
		if kerr != nil {
			return nil, kerr
		}
		if !bytes.HasPrefix(keyBytes, []byte(prefix)) {
			break
		}
		results = append(results, KeyValue{Key: string(keyBytes), Value: value})
		err = itr.Next()
	}
	if err != nil && !errors.Is(err, vellum.ErrIteratorDone) {
		return nil, fmt.Errorf("FST iteration failed: %w", err)
	}
	return results, nil
}

func kindRangeEnd(kind Kind) []byte {
	return []byte{byte(kind) + 1}
}

func (x *Index) kindIterator(kind Kind) (*vellum.FSTIterator, error) {
	itr, err := x.fst.Iterator([]byte{byte(kind)}, kindRangeEnd(kind))
	if err != nil && !errors.Is(err, vellum.ErrIteratorDone) {
		return nil, fmt.Errorf("failed to open FST iterator: %w", err)
	}
	return itr, err
}

// UnionUniqueKeyCount counts the distinct keys of a kind across several
// indexes. The per-index ranges are interleaved through an ordered
// multi-way merge, so duplicates across files come out adjacent and one
// representative per distinct key is counted.
func UnionUniqueKeyCount(kind Kind, indexes ...*Index) (int, error) {
	var itrs []vellum.Iterator
	for _, index := range indexes {
		itr, err := index.kindIterator(kind)
		if errors.Is(err, vellum.ErrIteratorDone) {
			continue
		}
		if err != nil {
			return 0, err
		}
		itrs = append(itrs, itr)
	}
	if len(itrs) == 0 {
		return 0, nil
	}

	merged, err := vellum.NewMergeIterator(itrs, func(vals []uint64) uint64 {
		return vals[0]
	})
	if errors.Is(err, vellum.ErrIteratorDone) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to open merge iterator: %w", err)
	}
	defer merged.Close()

	var (
		count   int
		haveKey bool
		lastKey []byte
	)
	for err == nil {
		composite, _ := merged.Current()
		foundKind, keyBytes, kerr := splitComposite(composite)
		if kerr != nil {
			return 0, kerr
		}
		if foundKind != kind {
			// A sub-iterator that ran past its range end may still report
			// the first key beyond it; every such key sorts after all
			// in-range keys, so the kind's range is exhausted.
			break
		}
		if !haveKey || !bytes.Equal(keyBytes, lastKey) {
			count++
			haveKey = true
			lastKey = append(lastKey[:0], keyBytes...)
		}
		err = merged.Next()
	}
	if err != nil && !errors.Is(err, vellum.ErrIteratorDone) {
		return 0, fmt.Errorf("FST iteration failed: %w", err)
	}
	return count, nil
}
