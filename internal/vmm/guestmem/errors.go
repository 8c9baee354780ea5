package guestmem

import (
	"errors"
	"fmt"
)

var (
	// ErrRegionOverlap is returned when two guest memory regions would claim
	// overlapping guest physical addresses.
	ErrRegionOverlap = errors.New("memory regions overlap")

	// ErrNotPageAligned is returned when a flat range list contains a size
	// that is not a multiple of the host page size.
	ErrNotPageAligned = errors.New("memory regions must be page aligned")
)

// InvalidAddressError is returned when a guest address is not covered by any
// memory region.
type InvalidAddressError struct {
	Addr GuestAddress
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("invalid guest address %s", e.Addr)
}

// InvalidOffsetError is returned when an offset relative to the base of guest
// memory does not resolve to a mapped address.
type InvalidOffsetError struct {
	Offset uint64
}

func (e *InvalidOffsetError) Error() string {
	return fmt.Sprintf("invalid offset 0x%x", e.Offset)
}

// InvalidSizeError is returned for zero-length requests on operations that
// require a positive size.
type InvalidSizeError struct {
	Size uint64
}

func (e *InvalidSizeError) Error() string {
	return fmt.Sprintf("size %d must not be zero", e.Size)
}

// RegionTooLargeError is returned when a region size does not fit the
// platform's size representation or wraps the guest address space.
type RegionTooLargeError struct {
	Size uint64
}

func (e *RegionTooLargeError) Error() string {
	return fmt.Sprintf("memory region size %d is too large", e.Size)
}

// MappingError wraps a failure of the underlying mapping syscall.
type MappingError struct {
	Err error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("failed to map guest memory: %v", e.Err)
}

func (e *MappingError) Unwrap() error {
	return e.Err
}

// AccessError reports a failed access to guest memory at a given address,
// wrapping the lower-level cause.
type AccessError struct {
	Addr GuestAddress
	Err  error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("invalid guest memory access at addr=%s: %v", e.Addr, e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}

// OutOfBoundsError is returned when a requested byte span does not fit within
// the single region containing its start address.
type OutOfBoundsError struct {
	// Offset is the start of the span relative to the region base.
	Offset uint64
	// Length is the requested span length in bytes.
	Length uint64
	// Size is the region size in bytes.
	Size uint64
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("requested range [0x%x, 0x%x) is out of bounds of region of size 0x%x", e.Offset, e.Offset+e.Length, e.Size)
}

// ShortReadError is returned by the exact read variants when fewer bytes were
// available than requested. Part of the buffer may have been filled.
type ShortReadError struct {
	Expected  int
	Completed int
}

func (e *ShortReadError) Error() string {
	return fmt.Sprintf("incomplete read of %d instead of %d bytes", e.Completed, e.Expected)
}

// ShortWriteError is returned by the all-or-error write variants when fewer
// bytes fit than requested. Part of the data may have been written.
type ShortWriteError struct {
	Expected  int
	Completed int
}

func (e *ShortWriteError) Error() string {
	return fmt.Sprintf("incomplete write of %d instead of %d bytes", e.Completed, e.Expected)
}
