package guestmem

// Policy selects host memory management hints applied to all guest memory
// regions after construction.
type Policy uint32

const (
	// PolicyUseHugepages advises the host kernel to back guest memory with
	// transparent huge pages.
	PolicyUseHugepages Policy = 1 << iota
	// PolicyLockGuestMemory pins guest memory so it is never swapped out.
	PolicyLockGuestMemory
)
