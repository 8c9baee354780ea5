package guestmem

import (
	"cmp"
	"errors"
	"iter"
	"slices"
)

const shmName = "hearth_guest"

// Memory tracks the memory regions mapped into the guest's physical address
// space along with the backing objects supplying their bytes.
//
// The set of regions is fixed at construction, so all queries and I/O are
// safe for concurrent use from any number of goroutines without locking.
// The bytes themselves are a shared mutable resource: concurrent accesses to
// overlapping ranges are permitted and must be synchronized by the caller if
// ordering matters.
type Memory struct {
	regions []*Region
}

// NewMemory creates guest memory from a flat list of (address, size) ranges
// sorted by address, all backed by a single anonymous shared memory segment
// sliced at monotonically increasing offsets.
//
// Every size must be a positive multiple of the host page size and ranges
// must not overlap. Gaps between ranges are permitted and represent holes in
// the physical address space.
func NewMemory(ranges []Range) (*Memory, error) {
	shm, err := createShm(ranges)
	if err != nil {
		return nil, err
	}

	regions := make([]*Region, 0, len(ranges))

	cleanup := func() {
		for _, r := range regions {
			_ = r.unmap()
		}
		_ = shm.Close()
	}

	var offset uint64
	for _, rng := range ranges {
		if last := len(regions) - 1; last >= 0 {
			prevEnd, ok := regions[last].Start().CheckedAdd(regions[last].Size())
			if !ok || prevEnd > rng.Start {
				cleanup()

				return nil, ErrRegionOverlap
			}
		}

		region, err := NewRegionFromShm(rng.Size, rng.Start, offset, shm)
		if err != nil {
			cleanup()

			return nil, err
		}

		regions = append(regions, region)
		offset += rng.Size
	}

	return &Memory{regions: regions}, nil
}

// FromRegions creates guest memory from pre-built regions, used when regions
// come from heterogeneous backing objects (e.g. a RAM region plus a
// separately mapped firmware image). Regions are sorted by base address and
// checked pairwise for overlap. The container takes ownership of the regions.
func FromRegions(regions []*Region) (*Memory, error) {
	slices.SortFunc(regions, func(a, b *Region) int {
		return cmp.Compare(a.guestBase, b.guestBase)
	})

	for i := 1; i < len(regions); i++ {
		if regions[i-1].End() > regions[i].Start() {
			return nil, ErrRegionOverlap
		}
	}

	return &Memory{regions: regions}, nil
}

func createShm(ranges []Range) (*Backing, error) {
	var alignedSize uint64
	for _, rng := range ranges {
		if rng.Size%pageSize != 0 {
			return nil, ErrNotPageAligned
		}

		alignedSize += rng.Size
	}

	if alignedSize == 0 {
		return nil, &InvalidSizeError{Size: alignedSize}
	}

	return NewShmBacking(shmName, alignedSize)
}

// Close unmaps all regions and releases their backing objects.
func (m *Memory) Close() error {
	var errs []error

	closed := make(map[*Backing]bool, 1)
	for _, r := range m.regions {
		errs = append(errs, r.unmap())

		if !closed[r.backing] {
			closed[r.backing] = true
			errs = append(errs, r.backing.Close())
		}
	}

	return errors.Join(errs...)
}

// AddressInRange reports whether addr is covered by some region.
func (m *Memory) AddressInRange(addr GuestAddress) bool {
	for _, r := range m.regions {
		if r.Contains(addr) {
			return true
		}
	}

	return false
}

// RangeOverlap reports whether [start, end) intersects any region.
func (m *Memory) RangeOverlap(start, end GuestAddress) bool {
	for _, r := range m.regions {
		if r.Start() < end && start < r.End() {
			return true
		}
	}

	return false
}

// CheckedOffset returns addr+offset if the sum does not overflow and lands
// inside some region.
//
// Only the endpoint is validated; the traversed span may cross a hole in the
// address space. Use IsValidRange to validate a whole span.
func (m *Memory) CheckedOffset(addr GuestAddress, offset uint64) (GuestAddress, bool) {
	sum, ok := addr.CheckedAdd(offset)
	if !ok || !m.AddressInRange(sum) {
		return 0, false
	}

	return sum, true
}

// IsValidRange reports whether [start, start+length) lies entirely within a
// single region. A guest buffer that spans two adjacent regions is not
// contiguous in host memory, so it is rejected here even if every address in
// it is mapped.
func (m *Memory) IsValidRange(start GuestAddress, length uint64) bool {
	if length == 0 {
		return false
	}

	end, ok := start.CheckedAdd(length - 1)
	if !ok {
		return false
	}

	for _, r := range m.regions {
		if r.Start() <= start && end < r.End() {
			return true
		}
	}

	return false
}

// MemorySize returns the sum of all region sizes in bytes.
func (m *Memory) MemorySize() uint64 {
	var size uint64
	for _, r := range m.regions {
		size += r.Size()
	}

	return size
}

// EndAddr returns the exclusive end of the highest region. Because regions
// may have gaps this is not the same as MemorySize.
func (m *Memory) EndAddr() GuestAddress {
	var end GuestAddress
	for _, r := range m.regions {
		if r.End() > end {
			end = r.End()
		}
	}

	return end
}

func (m *Memory) NumRegions() int {
	return len(m.regions)
}

// RegionInfo describes one region for hypervisor registration or descriptor
// export: the fields map directly onto a second-stage mapping request.
type RegionInfo struct {
	Index     int
	GuestAddr GuestAddress
	Size      uint64
	// HostAddr is the base of the region's mapping in this process, for
	// passing to kernel ioctls.
	HostAddr uintptr
	Backing  *Backing
	// Offset is the region's byte offset inside its backing object.
	Offset uint64
}

// Regions returns the sequence of per-region layout descriptions.
func (m *Memory) Regions() iter.Seq[RegionInfo] {
	return func(yield func(RegionInfo) bool) {
		for i, r := range m.regions {
			info := RegionInfo{
				Index:     i,
				GuestAddr: r.Start(),
				Size:      r.Size(),
				HostAddr:  r.hostBase(),
				Backing:   r.backing,
				Offset:    r.backingOff,
			}
			if !yield(info) {
				return
			}
		}
	}
}

// Fds returns the raw descriptor of every region's backing object, in region
// order. The descriptors stay owned by the container.
func (m *Memory) Fds() []int {
	fds := make([]int, 0, len(m.regions))
	for _, r := range m.regions {
		fds = append(fds, r.backing.Fd())
	}

	return fds
}

// doInRegion locates the region containing addr and returns it along with
// the offset of addr relative to the region start. Every bounds-checked
// operation routes through here.
func (m *Memory) doInRegion(addr GuestAddress) (*Region, int, error) {
	for _, r := range m.regions {
		if r.Contains(addr) {
			return r, int(addr.OffsetFrom(r.Start())), nil
		}
	}

	return nil, 0, &InvalidAddressError{Addr: addr}
}

// GetHostAddress converts a guest address into an address in this process.
// This should only be necessary for handing addresses to the kernel, as with
// vhost ioctls; normal accesses should go through the checked read/write
// operations. The returned address must not be used beyond the container's
// lifetime.
func (m *Memory) GetHostAddress(addr GuestAddress) (uintptr, error) {
	r, off, err := m.doInRegion(addr)
	if err != nil {
		return 0, err
	}

	return r.hostBase() + uintptr(off), nil
}

// GetHostAddressRange is GetHostAddress with the additional guarantee that
// [addr, addr+size) lies within a single region.
func (m *Memory) GetHostAddressRange(addr GuestAddress, size uint64) (uintptr, error) {
	if size == 0 {
		return 0, &InvalidSizeError{Size: size}
	}

	r, off, err := m.doInRegion(addr)
	if err != nil {
		return 0, err
	}

	if r.Size()-uint64(off) < size {
		return 0, &InvalidAddressError{Addr: addr}
	}

	return r.hostBase() + uintptr(off), nil
}

// ShmRegion returns the backing object of the region containing addr, for a
// peer process that needs the descriptor to establish its own mapping.
func (m *Memory) ShmRegion(addr GuestAddress) (*Backing, error) {
	for _, r := range m.regions {
		if r.Contains(addr) {
			return r.backing, nil
		}
	}

	return nil, &InvalidAddressError{Addr: addr}
}

// OffsetRegion returns the backing object of the region containing the
// memory at offset from the base of guest memory.
func (m *Memory) OffsetRegion(offset uint64) (*Backing, error) {
	if len(m.regions) == 0 {
		return nil, &InvalidOffsetError{Offset: offset}
	}

	addr, ok := m.CheckedOffset(m.regions[0].Start(), offset)
	if !ok {
		return nil, &InvalidOffsetError{Offset: offset}
	}

	return m.ShmRegion(addr)
}

// OffsetFromBase converts a guest address into an offset within its backing
// object. Because of gaps in guest memory, a peer process mapping the
// exported descriptor needs this offset to find data starting at addr.
func (m *Memory) OffsetFromBase(addr GuestAddress) (uint64, error) {
	r, off, err := m.doInRegion(addr)
	if err != nil {
		return 0, err
	}

	return r.backingOff + uint64(off), nil
}
