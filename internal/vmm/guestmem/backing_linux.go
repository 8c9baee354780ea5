//go:build linux

package guestmem

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// NewShmBacking allocates an anonymous shared memory segment of the given
// size. The segment is sealed against resizing so that peer processes mapping
// the exported descriptor cannot shrink it under our mappings.
func NewShmBacking(name string, size uint64) (*Backing, error) {
	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC|unix.MFD_ALLOW_SEALING)
	if err != nil {
		return nil, fmt.Errorf("failed to create shm region: %w", err)
	}

	f := os.NewFile(uintptr(fd), name)

	err = unix.Ftruncate(fd, int64(size))
	if err != nil {
		err = errors.Join(err, f.Close())

		return nil, fmt.Errorf("failed to resize shm region: %w", err)
	}

	_, err = unix.FcntlInt(uintptr(fd), unix.F_ADD_SEALS, unix.F_SEAL_SHRINK|unix.F_SEAL_GROW)
	if err != nil {
		err = errors.Join(err, f.Close())

		return nil, fmt.Errorf("failed to set seals on shm region: %w", err)
	}

	return &Backing{
		file: f,
		shm:  true,
	}, nil
}
