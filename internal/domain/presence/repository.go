package presence

import (
	"context"
)

// Repository is the persistence contract for current presence records.  The
// store keeps exactly one row per member; Save overwrites unconditionally.
type Repository interface {
	Save(ctx context.Context, p *Presence) error
	Get(ctx context.Context, memberID string) (*Presence, error)
	GetMany(ctx context.Context, memberIDs []string) ([]*Presence, error)
	SetCadence(ctx context.Context, memberID string, cadenceSeconds int) error
}

// IdentityDirectory answers whether an identity is known to the platform.
// The membership registry provides this at wiring time.
type IdentityDirectory interface {
	KnownIdentity(ctx context.Context, memberID string) (bool, error)

	// AuthorizedViewers returns the identities whose presence the viewer may
	// see (the viewer's circle, owner included).
	AuthorizedViewers(ctx context.Context, viewerID string) ([]string, error)
}
