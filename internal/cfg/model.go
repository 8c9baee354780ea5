package cfg

import (
	"github.com/caarlos0/env/v11"

	"github.com/hearthvm/hearth/internal/vmm/guestmem"
)

type Config struct {
	GuestMemoryMB   uint64 `env:"GUEST_MEMORY_MB"   envDefault:"512"`
	UseHugepages    bool   `env:"USE_HUGEPAGES"     envDefault:"false"`
	LockGuestMemory bool   `env:"LOCK_GUEST_MEMORY" envDefault:"false"`
	ProtectedVM     bool   `env:"PROTECTED_VM"      envDefault:"false"`
}

func Parse() (Config, error) {
	return env.ParseAs[Config]()
}

// MemoryPolicy translates the configuration into the policy bits applied to
// guest memory after construction.
func (c Config) MemoryPolicy() guestmem.Policy {
	var policy guestmem.Policy

	if c.UseHugepages {
		policy |= guestmem.PolicyUseHugepages
	}

	if c.LockGuestMemory {
		policy |= guestmem.PolicyLockGuestMemory
	}

	return policy
}
