package guestmem

import "fmt"

// GuestAddress is an address in the guest's physical address space,
// as seen by guest software.
type GuestAddress uint64

// CheckedAdd returns addr+offset and true, or false if the sum would wrap
// past the 64-bit boundary.
func (a GuestAddress) CheckedAdd(offset uint64) (GuestAddress, bool) {
	sum := uint64(a) + offset
	if sum < uint64(a) {
		return 0, false
	}

	return GuestAddress(sum), true
}

// UncheckedAdd returns addr+offset without an overflow check.
// Only use when the bounds were already validated.
func (a GuestAddress) UncheckedAdd(offset uint64) GuestAddress {
	return GuestAddress(uint64(a) + offset)
}

// OffsetFrom returns the distance from base to a.
// Callers must have established base <= a with a containment check first.
func (a GuestAddress) OffsetFrom(base GuestAddress) uint64 {
	if base > a {
		panic(fmt.Sprintf("offset from %s to %s underflows", base, a))
	}

	return uint64(a) - uint64(base)
}

func (a GuestAddress) String() string {
	return fmt.Sprintf("0x%x", uint64(a))
}

// Range is one contiguous range of guest physical address space.
type Range struct {
	// Start is the first guest address of the range. Start is inclusive.
	Start GuestAddress
	// Size is the size of the range in bytes.
	Size uint64
}

// End returns the first guest address past the range. End is exclusive.
func (r Range) End() GuestAddress {
	return r.Start.UncheckedAdd(r.Size)
}

func NewRange(start GuestAddress, size uint64) Range {
	return Range{
		Start: start,
		Size:  size,
	}
}
