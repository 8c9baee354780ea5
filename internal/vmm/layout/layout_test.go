package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthvm/hearth/internal/vmm/guestmem"
)

func TestGuestMemoryLayoutUnprotected(t *testing.T) {
	ranges := GuestMemoryLayout(512<<20, Unprotected)

	require.Len(t, ranges, 1)
	assert.Equal(t, PhysMemStart, ranges[0].Start)
	assert.Equal(t, uint64(512<<20), ranges[0].Size)
}

func TestGuestMemoryLayoutProtected(t *testing.T) {
	ranges := GuestMemoryLayout(512<<20, Protected)

	require.Len(t, ranges, 2)

	// The firmware window sits directly below DRAM, sorted first.
	assert.Equal(t, ProtectedVMFirmwareStart, ranges[0].Start)
	assert.Equal(t, ProtectedVMFirmwareMaxSize, ranges[0].Size)
	assert.Equal(t, PhysMemStart, ranges[0].End())

	assert.Equal(t, PhysMemStart, ranges[1].Start)

	for i := 1; i < len(ranges); i++ {
		assert.LessOrEqual(t, ranges[i-1].End(), ranges[i].Start)
	}
}

func TestLayoutFeedsGuestMemory(t *testing.T) {
	ranges := GuestMemoryLayout(16<<20, UnprotectedWithFirmware)

	mem, err := guestmem.NewMemory(ranges)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, mem.Close())
	})

	assert.Equal(t, uint64(16<<20)+ProtectedVMFirmwareMaxSize, mem.MemorySize())
	assert.True(t, mem.AddressInRange(KernelAddr()))
	assert.False(t, mem.AddressInRange(0x1000))
}

func TestKernelAddr(t *testing.T) {
	assert.Equal(t, guestmem.GuestAddress(0x8080_0000), KernelAddr())
}
