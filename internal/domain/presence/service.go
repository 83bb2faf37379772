package presence

import (
	"context"
	"time"

	"github.com/havenloop/haven/internal/infrastructure/monitoring/logging"
	"github.com/havenloop/haven/pkg/types/geo"
	apperrors "github.com/havenloop/haven/pkg/errors"
)

// ChangePublisher pushes presence changes to the realtime subscription hub.
// Implementations must never block: a slow viewer is the hub's problem, not
// the reporting client's.
type ChangePublisher interface {
	PresenceChanged(groupIDs []string, snap *Snapshot)
	CadenceChanged(memberID string, cadenceSeconds int)
}

// GroupResolver supplies the family groups a member belongs to, for routing
// change events to per-group subscription channels.
type GroupResolver interface {
	GroupIDsOf(ctx context.Context, memberID string) ([]string, error)
}

// Config holds the presence service tunables.
type Config struct {
	Thresholds       Thresholds
	IdleCadence      time.Duration
	EmergencyCadence time.Duration
}

// Service is the presence contract.
type Service interface {
	// Report overwrites the member's current presence record.  It fails only
	// for unknown identities or malformed payloads; a missed report is never
	// an error, just staleness.
	Report(ctx context.Context, r Report) (*Snapshot, error)

	// CircleSnapshot returns the presence of every identity visible to the
	// viewer.  Members who paused sharing appear with redacted location and
	// freshness "paused".
	CircleSnapshot(ctx context.Context, viewerID string) ([]*Snapshot, error)

	// SetEmergencyCadence switches the subject's advisory reporting interval
	// to the emergency cadence; SetIdleCadence reverts it.  The value is
	// advisory to the client; the service only records what is achieved.
	SetEmergencyCadence(ctx context.Context, subjectID string) error
	SetIdleCadence(ctx context.Context, subjectID string) error

	// Freshness classifies the member's record at the given instant.
	Freshness(ctx context.Context, memberID string, now time.Time) (Freshness, error)
}

type service struct {
	repo      Repository
	directory IdentityDirectory
	groups    GroupResolver
	publisher ChangePublisher
	cfg       Config
	log       logging.Logger
}

// NewService creates the presence service.
func NewService(repo Repository, directory IdentityDirectory, groups GroupResolver, publisher ChangePublisher, cfg Config, log logging.Logger) Service {
	if cfg.Thresholds.LiveWithin <= 0 {
		cfg.Thresholds = DefaultThresholds()
	}
	if cfg.IdleCadence <= 0 {
		cfg.IdleCadence = 5 * time.Minute
	}
	if cfg.EmergencyCadence <= 0 {
		cfg.EmergencyCadence = 5 * time.Second
	}
	return &service{
		repo:      repo,
		directory: directory,
		groups:    groups,
		publisher: publisher,
		cfg:       cfg,
		log:       log.Named("presence"),
	}
}

func (s *service) Report(ctx context.Context, r Report) (*Snapshot, error) {
	if err := r.Validate(); err != nil {
		return nil, apperrors.NewValidation(err.Error())
	}
	known, err := s.directory.KnownIdentity(ctx, r.MemberID)
	if err != nil {
		return nil, err
	}
	if !known {
		return nil, apperrors.New(apperrors.ErrCodeIdentityUnknown, "unknown member identity").
			WithDetail("member_id=" + r.MemberID)
	}

	now := time.Now().UTC()

	// Preserve the advisory cadence across overwrites.
	cadence := 0
	if prev, err := s.repo.Get(ctx, r.MemberID); err == nil {
		cadence = prev.CadenceSeconds
	}

	p := &Presence{
		MemberID:       r.MemberID,
		Location:       r.Location,
		Accuracy:       r.Accuracy,
		Battery:        r.Battery,
		IsPaused:       r.IsPaused,
		LastSeen:       now,
		CadenceSeconds: cadence,
	}
	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}

	snap := &Snapshot{Presence: *p, Freshness: p.Classify(now, s.cfg.Thresholds)}
	s.fanOut(ctx, r.MemberID, snap)
	return snap, nil
}

// fanOut routes the change to the member's group channels.  Publishing is
// best-effort: a routing failure degrades freshness for viewers but must not
// fail the member's write.
func (s *service) fanOut(ctx context.Context, memberID string, snap *Snapshot) {
	if s.publisher == nil {
		return
	}
	groupIDs, err := s.groups.GroupIDsOf(ctx, memberID)
	if err != nil {
		s.log.Warn("presence fan-out skipped", logging.String("member_id", memberID), logging.Err(err))
		return
	}
	s.publisher.PresenceChanged(groupIDs, snap)
}

func (s *service) CircleSnapshot(ctx context.Context, viewerID string) ([]*Snapshot, error) {
	visible, err := s.directory.AuthorizedViewers(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.GetMany(ctx, visible)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	snaps := make([]*Snapshot, 0, len(records))
	for _, p := range records {
		snap := &Snapshot{Presence: *p, Freshness: p.Classify(now, s.cfg.Thresholds)}
		if p.IsPaused {
			// Opted-out members stay listed but share nothing.
			snap.Location = geo.Point{}
			snap.Accuracy = 0
			snap.Battery = 0
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func (s *service) SetEmergencyCadence(ctx context.Context, subjectID string) error {
	return s.setCadence(ctx, subjectID, int(s.cfg.EmergencyCadence.Seconds()))
}

func (s *service) SetIdleCadence(ctx context.Context, subjectID string) error {
	return s.setCadence(ctx, subjectID, int(s.cfg.IdleCadence.Seconds()))
}

func (s *service) setCadence(ctx context.Context, subjectID string, seconds int) error {
	if err := s.repo.SetCadence(ctx, subjectID, seconds); err != nil {
		return err
	}
	if s.publisher != nil {
		s.publisher.CadenceChanged(subjectID, seconds)
	}
	s.log.Info("reporting cadence changed",
		logging.String("member_id", subjectID),
		logging.Int("cadence_seconds", seconds))
	return nil
}

func (s *service) Freshness(ctx context.Context, memberID string, now time.Time) (Freshness, error) {
	p, err := s.repo.Get(ctx, memberID)
	if err != nil {
		return "", err
	}
	return p.Classify(now, s.cfg.Thresholds), nil
}
