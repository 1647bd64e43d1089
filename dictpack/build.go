package dictpack

import (
	"bytes"
	"fmt"
	"os"

	bin "github.com/gagliardetto/binary"

	"github.com/aura-ix/tomochan/container"
	"github.com/aura-ix/tomochan/fstindex"
	"github.com/aura-ix/tomochan/schema"
	"github.com/aura-ix/tomochan/store"
)

// Builder accumulates typed records and assembles the dictionary payload.
// Single-owner, single-threaded; Finalize consumes it.
type Builder struct {
	store     *store.Builder
	entries   []fstindex.Entry
	finalized bool
}

func NewBuilder() *Builder {
	return &Builder{store: store.NewBuilder()}
}

// Insert serializes one record, appends it to the store and registers its
// key. The returned offset is the record's handle in the built package.
func (b *Builder) Insert(record schema.Record) (uint64, error) {
	if b.finalized {
		return 0, fmt.Errorf("cannot insert into a finalized builder")
	}
	data, err := schema.Encode(record)
	if err != nil {
		return 0, err
	}
	offset, err := b.store.Insert(data)
	if err != nil {
		return 0, err
	}
	b.entries = append(b.entries, fstindex.Entry{
		Kind:  record.Kind(),
		Key:   record.Key(),
		Value: offset,
	})
	return offset, nil
}

// Len returns the number of records inserted so far.
func (b *Builder) Len() int {
	return len(b.entries)
}

// Finalize builds the FST over every inserted key, compresses the store
// and assembles the payload: {fst_len, store_len} header, FST image,
// store stream.
func (b *Builder) Finalize() ([]byte, error) {
	if b.finalized {
		return nil, fmt.Errorf("builder already finalized")
	}
	b.finalized = true

	fstBytes, err := fstindex.Build(b.entries)
	if err != nil {
		return nil, err
	}
	storeBytes, err := b.store.Finalize()
	if err != nil {
		return nil, err
	}

	var payload bytes.Buffer
	payload.Grow(payloadHeaderSize + len(fstBytes) + len(storeBytes))
	encoder := bin.NewBinEncoder(&payload)
	if err := encoder.WriteUint64(uint64(len(fstBytes)), bin.LE); err != nil {
		return nil, fmt.Errorf("failed to encode payload header: %w", err)
	}
	if err := encoder.WriteUint64(uint64(len(storeBytes)), bin.LE); err != nil {
		return nil, fmt.Errorf("failed to encode payload header: %w", err)
	}
	payload.Write(fstBytes)
	payload.Write(storeBytes)
	return payload.Bytes(), nil
}

// Save finalizes the builder and writes the payload as a Dictionary
// container.
func (b *Builder) Save(path string, meta container.Meta) error {
	payload, err := b.Finalize()
	if err != nil {
		return err
	}
	return SavePayload(path, meta, payload)
}

// SavePayload writes an already-assembled dictionary payload as a
// Dictionary container.
func SavePayload(path string, meta container.Meta, payload []byte) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create package file: %w", err)
	}
	defer file.Close()

	hdr := container.NewHeader(meta, container.RoleDictionary, savedMinRoleVersion)
	if err := container.Write(file, hdr, payload); err != nil {
		return fmt.Errorf("failed to write package file: %w", err)
	}
	return nil
}
