// Package layout computes the arm64 guest physical address space layout
// consumed by guestmem.NewMemory.
package layout

import (
	"github.com/hearthvm/hearth/internal/vmm/guestmem"
)

const (
	// PhysMemStart is the start of DRAM inside the guest physical address
	// space. Everything below it is reserved for MMIO, the interrupt
	// controller and firmware.
	PhysMemStart guestmem.GuestAddress = 0x8000_0000

	// KernelOffset places the kernel 8MB into DRAM.
	KernelOffset uint64 = 0x80_0000

	// ProtectedVMFirmwareMaxSize is the size of the firmware window carved
	// out directly below DRAM for protected VMs.
	ProtectedVMFirmwareMaxSize uint64 = 0x40_0000

	// ProtectedVMFirmwareStart is the base of the firmware window.
	ProtectedVMFirmwareStart guestmem.GuestAddress = PhysMemStart - guestmem.GuestAddress(ProtectedVMFirmwareMaxSize)
)

// Protection selects the confidential-computing mode of the guest.
type Protection int

const (
	// Unprotected is a regular VM.
	Unprotected Protection = iota
	// Protected runs the guest behind protected-VM firmware measured by the
	// hypervisor.
	Protected
	// UnprotectedWithFirmware boots the protected-VM firmware without
	// enabling protection, for firmware development.
	UnprotectedWithFirmware
)

func (p Protection) needsFirmware() bool {
	return p == Protected || p == UnprotectedWithFirmware
}

// KernelAddr returns the load address of the kernel image.
func KernelAddr() guestmem.GuestAddress {
	return PhysMemStart.UncheckedAdd(KernelOffset)
}

// GuestMemoryLayout returns the valid RAM ranges for a guest with memSize
// bytes of DRAM, sorted by base address. Protected guests additionally get
// the firmware window below DRAM; the hole between the two ranges is where
// MMIO devices live.
func GuestMemoryLayout(memSize uint64, protection Protection) []guestmem.Range {
	ranges := make([]guestmem.Range, 0, 2)

	if protection.needsFirmware() {
		ranges = append(ranges, guestmem.NewRange(ProtectedVMFirmwareStart, ProtectedVMFirmwareMaxSize))
	}

	ranges = append(ranges, guestmem.NewRange(PhysMemStart, memSize))

	return ranges
}
