// Package dictpack binds the unified FST index and the record store into
// one dictionary container payload, and serves lookups from it.
//
// The payload layout is a small fixed header {fst_len, store_len}
// followed by the FST image and the compressed store stream. Section
// boundaries are computed as absolute file offsets so the FST can be
// memory-mapped in place.
package dictpack

import (
	"errors"
	"fmt"
	"io"
	"os"

	bin "github.com/gagliardetto/binary"
	"github.com/edsrzf/mmap-go"
	"go.uber.org/multierr"

	"github.com/aura-ix/tomochan/container"
	"github.com/aura-ix/tomochan/fstindex"
	"github.com/aura-ix/tomochan/schema"
	"github.com/aura-ix/tomochan/store"
)

// currentRoleVersion is the dictionary payload format version this build
// reads and writes. Zero marks the format as still in development.
const currentRoleVersion uint64 = 0

const savedMinRoleVersion uint64 = 0

// payloadHeaderSize is the encoded size of the two u64 section lengths.
const payloadHeaderSize = 16

var ErrTruncated = errors.New("dictionary payload is truncated or overlong")

// Package is an opened dictionary container.
//
// The FST mapping is immutable and freely shareable; the store reader
// holds seek state and is not safe for concurrent use. Callers that want
// parallel record fetches should open one Package per goroutine or guard
// GetRecord with a mutex.
type Package struct {
	header container.Header

	index *fstindex.Index
	store *store.Reader

	fstMap    mmap.MMap
	mapFile   *os.File
	storeFile *os.File
}

// Open loads a dictionary container from disk. With verify set, the
// payload hash and length are checked before anything is mapped.
func Open(path string, verify bool) (*Package, error) {
	file, info, err := container.Open(path, container.RoleDictionary, currentRoleVersion, verify)
	if err != nil {
		return nil, err
	}

	pkg, err := load(file, path, info)
	if err != nil {
		file.Close()
		return nil, err
	}
	return pkg, nil
}

func load(file *os.File, path string, info *container.Info) (*Package, error) {
	if _, err := file.Seek(int64(info.PayloadOffset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to payload: %w", err)
	}
	headerBytes := make([]byte, payloadHeaderSize)
	if _, err := io.ReadFull(file, headerBytes); err != nil {
		return nil, fmt.Errorf("%w: missing payload header", ErrTruncated)
	}
	decoder := bin.NewBinDecoder(headerBytes)
	fstLen, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return nil, fmt.Errorf("failed to decode payload header: %w", err)
	}
	storeLen, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return nil, fmt.Errorf("failed to decode payload header: %w", err)
	}

	fstStart := info.PayloadOffset + payloadHeaderSize
	storeStart := fstStart + fstLen
	storeEnd := storeStart + storeLen

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat package file: %w", err)
	}
	if uint64(stat.Size()) != storeEnd {
		return nil, fmt.Errorf("%w: expected file length %d, found %d", ErrTruncated, storeEnd, stat.Size())
	}

	// Map the FST slice read-only. The map offset must be page-aligned,
	// so round down and slice the delta back off.
	pageSize := uint64(os.Getpagesize())
	mapOffset := fstStart &^ (pageSize - 1)
	delta := fstStart - mapOffset
	fstMap, err := mmap.MapRegion(file, int(delta+fstLen), mmap.RDONLY, 0, int64(mapOffset))
	if err != nil {
		return nil, fmt.Errorf("failed to mmap FST: %w", err)
	}

	index, err := fstindex.Load(fstMap[delta : delta+fstLen])
	if err != nil {
		fstMap.Unmap()
		return nil, err
	}

	// The store gets its own handle so its seek state is independent of
	// the mapped file.
	storeFile, err := os.Open(path)
	if err != nil {
		fstMap.Unmap()
		return nil, fmt.Errorf("failed to reopen package file: %w", err)
	}
	storeReader, err := store.Open(io.NewSectionReader(storeFile, int64(storeStart), int64(storeLen)))
	if err != nil {
		fstMap.Unmap()
		storeFile.Close()
		return nil, err
	}

	return &Package{
		header:    info.Header,
		index:     index,
		store:     storeReader,
		fstMap:    fstMap,
		mapFile:   file,
		storeFile: storeFile,
	}, nil
}

// Close releases the FST mapping and both file handles.
func (p *Package) Close() error {
	var err error
	err = multierr.Append(err, p.store.Close())
	err = multierr.Append(err, p.fstMap.Unmap())
	err = multierr.Append(err, p.mapFile.Close())
	err = multierr.Append(err, p.storeFile.Close())
	return err
}

// Header returns the container header the package was opened with.
func (p *Package) Header() container.Header {
	return p.header
}

// Index exposes the package's FST index view.
func (p *Package) Index() *fstindex.Index {
	return p.index
}

// Lookup returns the store offsets of every record with this (kind, key),
// in build-time insertion order.
func (p *Package) Lookup(kind fstindex.Kind, key string) ([]uint64, error) {
	return p.index.Lookup(kind, key)
}

// Keys returns the distinct keys of a kind in byte-lexicographic order.
func (p *Package) Keys(kind fstindex.Kind) ([]string, error) {
	return p.index.Keys(kind)
}

// GetRecord fetches one raw record by store offset.
func (p *Package) GetRecord(offset uint64) ([]byte, error) {
	return p.store.Get(offset)
}

// Terms returns the decoded term records stored under key.
func (p *Package) Terms(key string) ([]schema.Term, error) {
	return decodeAll(p, fstindex.KindTerm, key, schema.DecodeTerm)
}

// Kanji returns the decoded kanji records stored under key.
func (p *Package) Kanji(key string) ([]schema.Kanji, error) {
	return decodeAll(p, fstindex.KindKanji, key, schema.DecodeKanji)
}

// TermMeta returns the decoded term metadata stored under key.
func (p *Package) TermMeta(key string) ([]schema.TermMeta, error) {
	return decodeAll(p, fstindex.KindTermMeta, key, schema.DecodeTermMeta)
}

// KanjiMeta returns the decoded kanji metadata stored under key.
func (p *Package) KanjiMeta(key string) ([]schema.KanjiMeta, error) {
	return decodeAll(p, fstindex.KindKanjiMeta, key, schema.DecodeKanjiMeta)
}

// Tag returns the tag record with this name, or nil if the package does
// not define it.
func (p *Package) Tag(name string) (*schema.Tag, error) {
	offsets, err := p.index.Lookup(fstindex.KindTag, name)
	if err != nil || len(offsets) == 0 {
		return nil, err
	}
	record, err := p.store.Get(offsets[0])
	if err != nil {
		return nil, err
	}
	return schema.DecodeTag(record)
}

// File returns the bytes of an extra file stored under the given
// directory-relative path; ok is false if the package carries no such
// file.
func (p *Package) File(path string) (data []byte, ok bool, err error) {
	offsets, err := p.index.Lookup(fstindex.KindFile, path)
	if err != nil || len(offsets) == 0 {
		return nil, false, err
	}
	record, err := p.store.Get(offsets[0])
	if err != nil {
		return nil, false, err
	}
	data, err = schema.DecodeFile(record)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// ListFiles returns the paths of every extra file in the package.
func (p *Package) ListFiles() ([]string, error) {
	return p.index.Keys(fstindex.KindFile)
}

func decodeAll[T any](p *Package, kind fstindex.Kind, key string, decode func([]byte) (*T, error)) ([]T, error) {
	offsets, err := p.index.Lookup(kind, key)
	if err != nil {
		return nil, err
	}
	results := make([]T, 0, len(offsets))
	for _, offset := range offsets {
		record, err := p.store.Get(offset)
		if err != nil {
			return nil, err
		}
		decoded, err := decode(record)
		if err != nil {
			return nil, err
		}
		results = append(results, *decoded)
	}
	return results, nil
}

// UnionUniqueTerms counts the distinct term keys across several packages.
func UnionUniqueTerms(packages ...*Package) (int, error) {
	indexes := make([]*fstindex.Index, 0, len(packages))
	for _, pkg := range packages {
		indexes = append(indexes, pkg.index)
	}
	return fstindex.UnionUniqueKeyCount(fstindex.KindTerm, indexes...)
}
