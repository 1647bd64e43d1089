package store_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aura-ix/tomochan/store"
)

func TestSingleRecordRoundTrip(t *testing.T) {
	builder := store.NewBuilder()

	record := make([]byte, 100)
	offset, err := builder.Insert(record)
	require.NoError(t, err)
	require.Equal(t, uint64(0), offset)

	compressed, err := builder.Finalize()
	require.NoError(t, err)
	require.NotEmpty(t, compressed)

	reader, err := store.Open(bytes.NewReader(compressed))
	require.NoError(t, err)
	defer reader.Close()

	got, err := reader.Get(0)
	require.NoError(t, err)
	require.Equal(t, record, got)
}

func TestOffsetsMonotonicAndStable(t *testing.T) {
	builder := store.NewBuilder()

	records := make([][]byte, 0, 64)
	offsets := make([]uint64, 0, 64)
	for i := 0; i < 64; i++ {
		record := bytes.Repeat([]byte{byte(i)}, i*7+1)
		record = append(record, []byte(fmt.Sprintf("record-%d", i))...)
		offset, err := builder.Insert(record)
		require.NoError(t, err)
		records = append(records, record)
		offsets = append(offsets, offset)
	}

	for i := 1; i < len(offsets); i++ {
		require.Greater(t, offsets[i], offsets[i-1])
	}

	compressed, err := builder.Finalize()
	require.NoError(t, err)

	reader, err := store.Open(bytes.NewReader(compressed))
	require.NoError(t, err)
	defer reader.Close()

	// read back out of order to exercise seeking
	for _, i := range []int{63, 0, 31, 1, 62, 32} {
		got, err := reader.Get(offsets[i])
		require.NoError(t, err)
		require.Equal(t, records[i], got)
	}
}

func TestLargeStreamSpansFrames(t *testing.T) {
	builder := store.NewBuilder()

	// push the uncompressed stream well past one frame
	big := bytes.Repeat([]byte("suspicious minds "), 8192)
	var offsets []uint64
	for i := 0; i < 8; i++ {
		offset, err := builder.Insert(big)
		require.NoError(t, err)
		offsets = append(offsets, offset)
	}
	compressed, err := builder.Finalize()
	require.NoError(t, err)

	reader, err := store.Open(bytes.NewReader(compressed))
	require.NoError(t, err)
	defer reader.Close()

	got, err := reader.Get(offsets[len(offsets)-1])
	require.NoError(t, err)
	require.Equal(t, big, got)
}

func TestGetPastEndIsCorrupt(t *testing.T) {
	builder := store.NewBuilder()
	_, err := builder.Insert([]byte("only"))
	require.NoError(t, err)
	end := builder.Len()
	compressed, err := builder.Finalize()
	require.NoError(t, err)

	reader, err := store.Open(bytes.NewReader(compressed))
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.Get(end)
	require.ErrorIs(t, err, store.ErrCorrupt)
}

func TestInsertAfterFinalize(t *testing.T) {
	builder := store.NewBuilder()
	_, err := builder.Finalize()
	require.NoError(t, err)

	_, err = builder.Insert([]byte("late"))
	require.Error(t, err)

	_, err = builder.Finalize()
	require.Error(t, err)
}

func TestOpenGarbage(t *testing.T) {
	_, err := store.Open(bytes.NewReader([]byte("definitely not zstd")))
	require.ErrorIs(t, err, store.ErrCorrupt)
}
