package guestmem

import (
	"fmt"
	"math"
	"os"
	"unsafe"

	"github.com/edsrzf/mmap-go"
)

// Region is one contiguous range of guest physical address space, paired
// with a host memory mapping over a slice of a Backing.
//
// The mapping is exclusively owned by the region; the Backing underneath may
// be shared with other regions or other processes. A region does not enforce
// non-overlap with siblings, that is the container's job.
type Region struct {
	mapping    mmap.MMap
	guestBase  GuestAddress
	backing    *Backing
	backingOff uint64
}

// NewRegionFromShm maps size bytes starting at offset within an existing
// shared memory backing, to be attached to a VM at guestBase.
func NewRegionFromShm(size uint64, guestBase GuestAddress, offset uint64, shm *Backing) (*Region, error) {
	if !shm.IsShm() {
		return nil, fmt.Errorf("backing is not a shared memory segment")
	}

	return newRegion(size, guestBase, offset, shm)
}

// NewRegionFromFile maps size bytes starting at offset within an open file,
// to be attached to a VM at guestBase. The region takes ownership of the
// file.
func NewRegionFromFile(size uint64, guestBase GuestAddress, offset uint64, file *os.File) (*Region, error) {
	return newRegion(size, guestBase, offset, NewFileBacking(file))
}

func newRegion(size uint64, guestBase GuestAddress, offset uint64, backing *Backing) (*Region, error) {
	if size == 0 {
		return nil, &InvalidSizeError{Size: size}
	}

	if size > math.MaxInt {
		return nil, &RegionTooLargeError{Size: size}
	}

	// The guest range must not wrap past the 64-bit boundary; End() relies
	// on this.
	if _, ok := guestBase.CheckedAdd(size); !ok {
		return nil, &RegionTooLargeError{Size: size}
	}

	m, err := mmap.MapRegion(backing.File(), int(size), mmap.RDWR, 0, int64(offset))
	if err != nil {
		return nil, &MappingError{Err: err}
	}

	return &Region{
		mapping:    m,
		guestBase:  guestBase,
		backing:    backing,
		backingOff: offset,
	}, nil
}

// Start returns the first guest address the region covers.
func (r *Region) Start() GuestAddress {
	return r.guestBase
}

// End returns the first guest address past the region. End is exclusive.
func (r *Region) End() GuestAddress {
	return r.guestBase.UncheckedAdd(r.Size())
}

// Contains reports whether addr is in [Start, End).
func (r *Region) Contains(addr GuestAddress) bool {
	return addr >= r.guestBase && addr < r.End()
}

func (r *Region) Size() uint64 {
	return uint64(len(r.mapping))
}

// Backing returns the backing object supplying the region's bytes.
func (r *Region) Backing() *Backing {
	return r.backing
}

// BackingOffset returns the byte offset into the backing object where the
// region's mapping begins.
func (r *Region) BackingOffset() uint64 {
	return r.backingOff
}

func (r *Region) hostBase() uintptr {
	return uintptr(unsafe.Pointer(&r.mapping[0]))
}

func (r *Region) unmap() error {
	return r.mapping.Unmap()
}
