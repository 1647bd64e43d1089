// Package store implements the record store: an append-on-build,
// random-read-by-offset blob of length-prefixed records compressed with
// the zstd seekable format.
//
// Offsets are logical positions in the uncompressed stream. They are
// handed out at build time and stay valid for the lifetime of the built
// image; the embedded frame index lets readers seek straight to any
// uncompressed offset without realignment.
package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	seekable "github.com/SaveTheRbtz/zstd-seekable-format-go/pkg"
	"github.com/klauspost/compress/zstd"
)

var ErrCorrupt = errors.New("corrupt record store")

// frameSize is the uncompressed frame granularity of the seekable stream.
// Seeking decompresses at most one frame before the target offset.
const frameSize = 128 << 10

// maxRecordLen caps a single record's length prefix so a corrupted or
// misaligned read cannot ask for an absurd allocation.
const maxRecordLen = 1 << 30

// Builder accumulates records in memory and compresses them on Finalize.
// It is single-owner and not safe for concurrent use.
type Builder struct {
	buf       bytes.Buffer
	finalized bool
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Insert appends one record and returns its offset: the logical position
// of its first byte in the uncompressed stream, before the append.
// Offsets are monotonically increasing.
func (b *Builder) Insert(record []byte) (uint64, error) {
	if b.finalized {
		return 0, fmt.Errorf("cannot insert into a finalized store")
	}
	if len(record) > maxRecordLen {
		return 0, fmt.Errorf("record of %d bytes exceeds the %d byte limit", len(record), maxRecordLen)
	}
	offset := uint64(b.buf.Len())
	var lenPrefix [4]byte
	binary.LittleEndian.PutUint32(lenPrefix[:], uint32(len(record)))
	b.buf.Write(lenPrefix[:])
	b.buf.Write(record)
	return offset, nil
}

// Len returns the current uncompressed stream length.
func (b *Builder) Len() uint64 {
	return uint64(b.buf.Len())
}

// Finalize compresses the stream into the zstd seekable format and
// consumes the builder. The returned blob contains the frames plus the
// embedded seek table.
func (b *Builder) Finalize() ([]byte, error) {
	if b.finalized {
		return nil, fmt.Errorf("store already finalized")
	}
	b.finalized = true

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	defer encoder.Close()

	var compressed bytes.Buffer
	w, err := seekable.NewWriter(&compressed, encoder)
	if err != nil {
		return nil, fmt.Errorf("failed to create seekable writer: %w", err)
	}

	// Each Write becomes one seekable frame.
	data := b.buf.Bytes()
	for len(data) > 0 {
		n := min(len(data), frameSize)
		if _, err := w.Write(data[:n]); err != nil {
			return nil, fmt.Errorf("failed to compress store: %w", err)
		}
		data = data[n:]
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize compressed store: %w", err)
	}
	return compressed.Bytes(), nil
}

// Reader decodes records out of a finalized store image by offset.
//
// A Reader holds mutable seek state and is NOT safe for concurrent use;
// give each goroutine its own Reader over its own section of the file, or
// guard one with a mutex.
type Reader struct {
	src     seekable.Reader
	decoder *zstd.Decoder
}

// Open wraps a seekable compressed store image. The io.ReadSeeker must
// cover exactly the store bytes (frames + seek table).
func Open(rs io.ReadSeeker) (*Reader, error) {
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	src, err := seekable.NewReader(rs, decoder)
	if err != nil {
		decoder.Close()
		return nil, fmt.Errorf("%w: %s", ErrCorrupt, err)
	}
	return &Reader{src: src, decoder: decoder}, nil
}

// Get returns the record whose first byte sits at the given uncompressed
// offset.
func (r *Reader) Get(offset uint64) ([]byte, error) {
	if _, err := r.src.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: seek to %d failed: %s", ErrCorrupt, offset, err)
	}
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r.src, lenPrefix[:]); err != nil {
		return nil, fmt.Errorf("%w: truncated record at %d: %s", ErrCorrupt, offset, err)
	}
	recordLen := binary.LittleEndian.Uint32(lenPrefix[:])
	if recordLen > maxRecordLen {
		return nil, fmt.Errorf("%w: implausible record length %d at %d", ErrCorrupt, recordLen, offset)
	}
	record := make([]byte, recordLen)
	if _, err := io.ReadFull(r.src, record); err != nil {
		return nil, fmt.Errorf("%w: truncated record at %d: %s", ErrCorrupt, offset, err)
	}
	return record, nil
}

// Close releases the decoder. The underlying io.ReadSeeker is the
// caller's to close.
func (r *Reader) Close() error {
	err := r.src.Close()
	r.decoder.Close()
	return err
}
