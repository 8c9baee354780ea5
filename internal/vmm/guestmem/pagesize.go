package guestmem

import (
	"fmt"

	"github.com/tklauser/go-sysconf"

	"github.com/hearthvm/hearth/pkg/utils"
)

var pageSize = utils.Must(hostPageSize())

// HostPageSize returns the page size of the host in bytes.
func HostPageSize() uint64 {
	return pageSize
}

func hostPageSize() (uint64, error) {
	size, err := sysconf.Sysconf(sysconf.SC_PAGE_SIZE)
	if err != nil {
		return 0, fmt.Errorf("failed to get page size: %w", err)
	}

	return uint64(size), nil
}
