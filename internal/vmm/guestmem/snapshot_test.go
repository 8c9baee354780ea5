package guestmem

import (
	"bytes"
	"context"
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fillPage(t *testing.T, mem *Memory, addr GuestAddress, value byte) {
	t.Helper()

	page := bytes.Repeat([]byte{value}, int(pageSize))
	require.NoError(t, mem.WriteAllAtAddr(page, addr))
}

func TestWriteSnapshotFull(t *testing.T) {
	mem := newTestMemory(t, []Range{
		{Start: 0x0, Size: 2 * pageSize},
	})

	fillPage(t, mem, 0x0, 0xaa)
	fillPage(t, mem, GuestAddress(pageSize), 0xbb)

	var out bytes.Buffer

	n, err := mem.WriteSnapshot(context.Background(), &out, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2*pageSize), n)

	assert.Equal(t, bytes.Repeat([]byte{0xaa}, int(pageSize)), out.Bytes()[:pageSize])
	assert.Equal(t, bytes.Repeat([]byte{0xbb}, int(pageSize)), out.Bytes()[pageSize:])
}

func TestWriteSnapshotDirtyPages(t *testing.T) {
	mem := newTestMemory(t, []Range{
		{Start: 0x0, Size: 4 * pageSize},
	})

	for i := range 4 {
		fillPage(t, mem, GuestAddress(uint64(i)*pageSize), byte(0x10*i+1))
	}

	dirty := bitset.New(4)
	dirty.Set(1)
	dirty.Set(3)

	var out bytes.Buffer

	n, err := mem.WriteSnapshot(context.Background(), &out, dirty)
	require.NoError(t, err)
	assert.Equal(t, int64(2*pageSize), n)

	assert.Equal(t, bytes.Repeat([]byte{0x11}, int(pageSize)), out.Bytes()[:pageSize])
	assert.Equal(t, bytes.Repeat([]byte{0x31}, int(pageSize)), out.Bytes()[pageSize:])
}

func TestWriteSnapshotDirtyAcrossHole(t *testing.T) {
	// Two regions with a guest hole between them share one backing; dirty
	// page indexes are contiguous across the hole.
	mem := newTestMemory(t, []Range{
		{Start: 0x0, Size: 2 * pageSize},
		{Start: GuestAddress(8 * pageSize), Size: 2 * pageSize},
	})

	fillPage(t, mem, GuestAddress(8*pageSize), 0xcc)

	// Backing page 2 is the first page of the second region.
	dirty := bitset.New(4)
	dirty.Set(2)

	var out bytes.Buffer

	n, err := mem.WriteSnapshot(context.Background(), &out, dirty)
	require.NoError(t, err)
	assert.Equal(t, int64(pageSize), n)
	assert.Equal(t, bytes.Repeat([]byte{0xcc}, int(pageSize)), out.Bytes())
}

func TestWriteSnapshotNoDirtyPages(t *testing.T) {
	mem := newTestMemory(t, []Range{
		{Start: 0x0, Size: 2 * pageSize},
	})

	var out bytes.Buffer

	n, err := mem.WriteSnapshot(context.Background(), &out, bitset.New(2))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.Equal(t, 0, out.Len())
}
