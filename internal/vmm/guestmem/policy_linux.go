//go:build linux

package guestmem

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// SetPolicy applies the given policy to every region. Call once after
// construction, before the container is shared.
func (m *Memory) SetPolicy(policy Policy) error {
	if policy == 0 {
		return nil
	}

	for _, r := range m.regions {
		if policy&PolicyUseHugepages != 0 {
			err := unix.Madvise(r.mapping, unix.MADV_HUGEPAGE)
			if err != nil {
				return fmt.Errorf("failed to madvise hugepages for region at %s: %w", r.Start(), err)
			}
		}

		if policy&PolicyLockGuestMemory != 0 {
			err := unix.Mlock(r.mapping)
			if err != nil {
				return fmt.Errorf("failed to lock region at %s: %w", r.Start(), err)
			}
		}
	}

	return nil
}
