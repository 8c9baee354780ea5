package guestmem

import (
	"os"
)

// Backing is the host resource supplying the bytes for one or more guest
// memory regions: an anonymous shared memory segment or an open file.
//
// A Backing may be shared by several regions sliced out of the same
// allocation, and its descriptor may be exported to peer processes that map
// the same guest memory. Identity is by underlying resource, not by value.
type Backing struct {
	file *os.File
	shm  bool
}

// NewFileBacking wraps an open file as a region backing. The Backing takes
// ownership of the file.
func NewFileBacking(f *os.File) *Backing {
	return &Backing{
		file: f,
	}
}

// IsShm reports whether the backing is an anonymous shared memory segment.
func (b *Backing) IsShm() bool {
	return b.shm
}

func (b *Backing) File() *os.File {
	return b.file
}

// Fd returns the raw OS descriptor of the underlying resource for exporting
// to the hypervisor or to peer processes. Callers must not close it or
// otherwise invalidate it.
func (b *Backing) Fd() int {
	return int(b.file.Fd())
}

func (b *Backing) Close() error {
	return b.file.Close()
}
