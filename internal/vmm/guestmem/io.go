package guestmem

import (
	"io"
	"unsafe"
)

// WriteAtAddr writes buf to guest memory starting at addr and returns the
// number of bytes written. The count can be less than len(buf) when the
// buffer would cross the end of the containing region; that is a legitimate
// short write, not an error. Fails only if addr is in no region.
//
// The destination bytes are shared and externally synchronized: callers that
// need ordering between concurrent writers must bring their own locking.
func (m *Memory) WriteAtAddr(buf []byte, addr GuestAddress) (int, error) {
	r, off, err := m.doInRegion(addr)
	if err != nil {
		return 0, err
	}

	return copy(r.mapping[off:], buf), nil
}

// WriteAllAtAddr writes the entire buf to guest memory at addr, failing with
// a ShortWriteError if it does not fit in the containing region. Part of the
// data may have been written nevertheless.
func (m *Memory) WriteAllAtAddr(buf []byte, addr GuestAddress) error {
	completed, err := m.WriteAtAddr(buf, addr)
	if err != nil {
		return err
	}

	if completed != len(buf) {
		return &ShortWriteError{Expected: len(buf), Completed: completed}
	}

	return nil
}

// ReadAtAddr reads from guest memory at addr into buf and returns the number
// of bytes read. The count can be less than len(buf) when the read would
// cross the end of the containing region. Fails only if addr is in no
// region.
//
// The source bytes are shared and externally synchronized.
func (m *Memory) ReadAtAddr(buf []byte, addr GuestAddress) (int, error) {
	r, off, err := m.doInRegion(addr)
	if err != nil {
		return 0, err
	}

	return copy(buf, r.mapping[off:]), nil
}

// ReadExactAtAddr fills the entire buf from guest memory at addr, failing
// with a ShortReadError if the containing region ends first. Part of the
// buffer may have been filled nevertheless.
func (m *Memory) ReadExactAtAddr(buf []byte, addr GuestAddress) error {
	completed, err := m.ReadAtAddr(buf, addr)
	if err != nil {
		return err
	}

	if completed != len(buf) {
		return &ShortReadError{Expected: len(buf), Completed: completed}
	}

	return nil
}

// GetSliceAtAddr returns a view of length bytes of guest memory starting at
// addr. The span must fit within the single region containing addr.
//
// The returned slice aliases guest memory directly: it stays valid for the
// life of the container, is mutated by the guest and other threads at any
// time, and carries no synchronization.
func (m *Memory) GetSliceAtAddr(addr GuestAddress, length uint64) ([]byte, error) {
	r, off, err := m.doInRegion(addr)
	if err != nil {
		return nil, err
	}

	if length > r.Size()-uint64(off) {
		return nil, &OutOfBoundsError{Offset: uint64(off), Length: length, Size: r.Size()}
	}

	end := off + int(length)

	return r.mapping[off:end:end], nil
}

// ReadObjFromAddr reads a T from guest memory at addr. T must be a
// fixed-layout type without pointers; the value is copied out bytewise, so a
// concurrently mutating guest can produce a torn but memory-safe result.
// Fails if the object's byte span does not fit within the single containing
// region.
func ReadObjFromAddr[T any](m *Memory, addr GuestAddress) (T, error) {
	var v T

	src, err := m.GetSliceAtAddr(addr, uint64(unsafe.Sizeof(v)))
	if err != nil {
		return v, err
	}

	copy(unsafe.Slice((*byte)(unsafe.Pointer(&v)), len(src)), src)

	return v, nil
}

// WriteObjAtAddr writes a T to guest memory at addr. Same constraints as
// ReadObjFromAddr.
func WriteObjAtAddr[T any](m *Memory, v T, addr GuestAddress) error {
	dst, err := m.GetSliceAtAddr(addr, uint64(unsafe.Sizeof(v)))
	if err != nil {
		return err
	}

	copy(dst, unsafe.Slice((*byte)(unsafe.Pointer(&v)), len(dst)))

	return nil
}

// Ref is a live handle to an object of type T inside guest memory. Load and
// Store copy the value bytewise; the underlying bytes are shared and
// externally synchronized.
type Ref[T any] struct {
	b []byte
}

func (r Ref[T]) Load() T {
	var v T
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&v)), len(r.b)), r.b)

	return v
}

func (r Ref[T]) Store(v T) {
	copy(r.b, unsafe.Slice((*byte)(unsafe.Pointer(&v)), len(r.b)))
}

// GetRefAtAddr returns a Ref over exactly the size of T at addr. Fails if
// the object extends past the end of the containing region.
func GetRefAtAddr[T any](m *Memory, addr GuestAddress) (Ref[T], error) {
	var v T

	b, err := m.GetSliceAtAddr(addr, uint64(unsafe.Sizeof(v)))
	if err != nil {
		return Ref[T]{}, err
	}

	return Ref[T]{b: b}, nil
}

// ReadToMemory reads count bytes from src and writes them to guest memory at
// addr. Used for loading boot images and block device reads. The whole count
// must fit within the containing region.
func (m *Memory) ReadToMemory(addr GuestAddress, src io.Reader, count uint64) error {
	view, err := m.GetSliceAtAddr(addr, count)
	if err != nil {
		return m.wrapAccess(addr, err)
	}

	if _, err := io.ReadFull(src, view); err != nil {
		return &AccessError{Addr: addr, Err: err}
	}

	return nil
}

// WriteFromMemory reads count bytes of guest memory starting at addr and
// writes them to dst. The whole count must fit within the containing region.
func (m *Memory) WriteFromMemory(addr GuestAddress, dst io.Writer, count uint64) error {
	view, err := m.GetSliceAtAddr(addr, count)
	if err != nil {
		return m.wrapAccess(addr, err)
	}

	if _, err := dst.Write(view); err != nil {
		return &AccessError{Addr: addr, Err: err}
	}

	return nil
}

// wrapAccess keeps lookup failures as-is and tags region-bounds violations
// with the faulting address.
func (m *Memory) wrapAccess(addr GuestAddress, err error) error {
	if oob, ok := err.(*OutOfBoundsError); ok {
		return &AccessError{Addr: addr, Err: oob}
	}

	return err
}
