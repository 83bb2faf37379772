package redis

import (
	"github.com/havenloop/haven/internal/domain/membership"
)

// MembershipLockFactory adapts the generic lock factory to the membership
// registry's narrower contract.
type MembershipLockFactory struct {
	Factory LockFactory
}

func (f MembershipLockFactory) NewMutex(name string) membership.Mutex {
	return f.Factory.NewMutex(name)
}
