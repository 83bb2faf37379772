package incident

import (
	"context"
	"time"

	"github.com/havenloop/haven/internal/infrastructure/monitoring/logging"
	"github.com/havenloop/haven/pkg/types/geo"
	apperrors "github.com/havenloop/haven/pkg/errors"
)

// CadenceController is the slice of the presence service the state machine
// drives: emergency cadence on trigger, idle cadence back on resolution.
type CadenceController interface {
	SetEmergencyCadence(ctx context.Context, subjectID string) error
	SetIdleCadence(ctx context.Context, subjectID string) error
}

// ViewerDirectory resolves who must be alerted about the subject.
type ViewerDirectory interface {
	AuthorizedViewers(ctx context.Context, subjectID string) ([]string, error)
	GroupIDsOf(ctx context.Context, memberID string) ([]string, error)
}

// Notifier is the notification fan-out boundary.  Delivery is at-least-once
// beyond it; a publish failure is recorded, never rolled back into incident
// state.  Partial delivery is success of the core.
type Notifier interface {
	IncidentTriggered(ctx context.Context, ev *Event, recipients []string)
	IncidentTransitioned(ctx context.Context, ev *Event, actorID string, groupIDs []string)
	LocationAppended(ctx context.Context, sample *LocationSample, groupIDs []string)
}

// Geocoder resolves a human-readable address for the trigger location.
// Best-effort: an empty address is not an error condition.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, p geo.Point) (string, error)
}

// EscalationTimers cancels pending escalation work for an incident.  The
// scheduler satisfies this at wiring time.
type EscalationTimers interface {
	CancelIncident(incidentID string)
}

// Config holds the state machine tunables.
type Config struct {
	// TriggerDedupWindow bounds how long a retried trigger is treated as the
	// same emergency rather than rejected.  Kept short so a genuine second
	// emergency is never masked.
	TriggerDedupWindow time.Duration
}

// Service is the incident state machine contract.
type Service interface {
	// Trigger opens an incident for the subject.  A retry inside the
	// de-duplication window returns the existing event; outside it, a
	// non-terminal event fails the call with ErrCodeIncidentAlreadyActive.
	Trigger(ctx context.Context, subjectID string, location geo.Point) (*Event, error)

	// AdvanceToInProgress is legal only from active.
	AdvanceToInProgress(ctx context.Context, incidentID, actorID string) (*Event, error)

	// Resolve and Cancel are legal from active or in_progress.  Both revert
	// the subject's reporting cadence and stop pending escalation timers
	// before returning.
	Resolve(ctx context.Context, incidentID, actorID string) (*Event, error)
	Cancel(ctx context.Context, incidentID, actorID string) (*Event, error)

	// Annotate appends an audit note.  Always legal, terminal states
	// included.
	Annotate(ctx context.Context, incidentID, actorID, note string) (*Event, error)

	// AppendLocation writes one trail point for a non-terminal incident.
	AppendLocation(ctx context.Context, incidentID string, location geo.Point, at time.Time) (*LocationSample, error)

	Get(ctx context.Context, incidentID string) (*Event, error)
	ListByStatus(ctx context.Context, status Status, limit int) ([]*Event, error)
	LocationTrail(ctx context.Context, incidentID string) ([]*LocationSample, error)
}

type service struct {
	repo     Repository
	cadence  CadenceController
	viewers  ViewerDirectory
	notifier Notifier
	geocoder Geocoder
	timers   EscalationTimers
	cfg      Config
	log      logging.Logger
}

// NewService creates the incident state machine.  notifier, geocoder and
// timers may be nil in tests; the service degrades to state-only behavior.
func NewService(repo Repository, cadence CadenceController, viewers ViewerDirectory, notifier Notifier, geocoder Geocoder, timers EscalationTimers, cfg Config, log logging.Logger) Service {
	if cfg.TriggerDedupWindow <= 0 {
		cfg.TriggerDedupWindow = 30 * time.Second
	}
	return &service{
		repo:     repo,
		cadence:  cadence,
		viewers:  viewers,
		notifier: notifier,
		geocoder: geocoder,
		timers:   timers,
		cfg:      cfg,
		log:      log.Named("incident"),
	}
}

func (s *service) Trigger(ctx context.Context, subjectID string, location geo.Point) (*Event, error) {
	ev, err := NewEvent(subjectID, location)
	if err != nil {
		return nil, apperrors.NewValidation(err.Error())
	}

	if s.geocoder != nil {
		if addr, gerr := s.geocoder.ReverseGeocode(ctx, location); gerr == nil {
			ev.Address = addr
		} else {
			s.log.Warn("reverse geocode failed", logging.String("subject_id", subjectID), logging.Err(gerr))
		}
	}

	if err := s.repo.Create(ctx, ev); err != nil {
		if !apperrors.IsCode(err, apperrors.ErrCodeIncidentAlreadyActive) {
			return nil, err
		}
		existing, gerr := s.repo.GetActiveBySubject(ctx, subjectID)
		if gerr != nil {
			return nil, err
		}
		// A retried trigger inside the window is the same emergency.
		if time.Now().UTC().Sub(existing.CreatedAt) <= s.cfg.TriggerDedupWindow {
			s.log.Info("trigger de-duplicated",
				logging.String("subject_id", subjectID),
				logging.String("incident_id", existing.ID))
			return existing, nil
		}
		return nil, apperrors.New(apperrors.ErrCodeIncidentAlreadyActive, "subject already has an open incident").
			WithDetail("incident_id=" + existing.ID)
	}

	// Cadence switch and fan-out are best-effort once the event is durable.
	// An SOS that fails to speed up reporting or to notify one channel is
	// still an SOS.
	if err := s.cadence.SetEmergencyCadence(ctx, subjectID); err != nil {
		s.log.Error("emergency cadence switch failed",
			logging.String("incident_id", ev.ID), logging.Err(err))
	}
	if s.notifier != nil {
		recipients, verr := s.viewers.AuthorizedViewers(ctx, subjectID)
		if verr != nil {
			s.log.Error("viewer resolution failed, fan-out skipped",
				logging.String("incident_id", ev.ID), logging.Err(verr))
		} else {
			s.notifier.IncidentTriggered(ctx, ev, recipients)
		}
	}

	s.log.Info("incident triggered",
		logging.String("incident_id", ev.ID),
		logging.String("subject_id", subjectID))
	return ev, nil
}

func (s *service) AdvanceToInProgress(ctx context.Context, incidentID, actorID string) (*Event, error) {
	return s.transition(ctx, incidentID, actorID, StatusInProgress)
}

func (s *service) Resolve(ctx context.Context, incidentID, actorID string) (*Event, error) {
	return s.transition(ctx, incidentID, actorID, StatusResolved)
}

func (s *service) Cancel(ctx context.Context, incidentID, actorID string) (*Event, error) {
	return s.transition(ctx, incidentID, actorID, StatusCanceled)
}

func (s *service) transition(ctx context.Context, incidentID, actorID string, to Status) (*Event, error) {
	if actorID == "" {
		return nil, apperrors.NewValidation("actor ID is required")
	}
	ev, err := s.repo.Get(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(ev.Status, to) {
		return nil, apperrors.Newf(apperrors.ErrCodeIllegalTransition,
			"cannot move incident from %s to %s", ev.Status, to)
	}

	var resolvedAt *time.Time
	if to.IsTerminal() {
		now := time.Now().UTC()
		resolvedAt = &now
	}

	updated, err := s.repo.UpdateStatus(ctx, incidentID, ev.Status, to, resolvedAt)
	if err != nil {
		// A concurrent transition won; re-read so the caller sees why.
		if apperrors.IsConflict(err) {
			if cur, gerr := s.repo.Get(ctx, incidentID); gerr == nil {
				return nil, apperrors.Newf(apperrors.ErrCodeIllegalTransition,
					"cannot move incident from %s to %s", cur.Status, to)
			}
		}
		return nil, err
	}

	if to.IsTerminal() {
		// Cadence revert and timer cancellation happen before returning, so
		// no escalation fires on a state the caller already closed.
		if s.timers != nil {
			s.timers.CancelIncident(incidentID)
		}
		if err := s.cadence.SetIdleCadence(ctx, updated.SubjectID); err != nil {
			s.log.Error("idle cadence revert failed",
				logging.String("incident_id", incidentID), logging.Err(err))
		}
	}
	s.announce(ctx, updated, actorID)

	s.log.Info("incident transitioned",
		logging.String("incident_id", incidentID),
		logging.String("actor_id", actorID),
		logging.String("from", string(ev.Status)),
		logging.String("to", string(to)))
	return updated, nil
}

func (s *service) announce(ctx context.Context, ev *Event, actorID string) {
	if s.notifier == nil {
		return
	}
	groupIDs, err := s.viewers.GroupIDsOf(ctx, ev.SubjectID)
	if err != nil {
		s.log.Warn("group resolution failed, transition fan-out skipped",
			logging.String("incident_id", ev.ID), logging.Err(err))
		return
	}
	s.notifier.IncidentTransitioned(ctx, ev, actorID, groupIDs)
}

func (s *service) Annotate(ctx context.Context, incidentID, actorID, note string) (*Event, error) {
	if note == "" {
		return nil, apperrors.NewValidation("note cannot be empty")
	}
	if actorID == "" {
		return nil, apperrors.NewValidation("actor ID is required")
	}
	updated, err := s.repo.AppendNote(ctx, incidentID, Annotation{
		ActorID:   actorID,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	s.announce(ctx, updated, actorID)
	return updated, nil
}

func (s *service) AppendLocation(ctx context.Context, incidentID string, location geo.Point, at time.Time) (*LocationSample, error) {
	ev, err := s.repo.Get(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if ev.Status.IsTerminal() {
		return nil, apperrors.Conflict("incident is closed, trail is immutable")
	}
	sample, err := NewLocationSample(incidentID, location, at)
	if err != nil {
		return nil, apperrors.NewValidation(err.Error())
	}
	if err := s.repo.AppendLocation(ctx, sample); err != nil {
		return nil, err
	}
	if s.notifier != nil {
		if groupIDs, gerr := s.viewers.GroupIDsOf(ctx, ev.SubjectID); gerr == nil {
			s.notifier.LocationAppended(ctx, sample, groupIDs)
		}
	}
	return sample, nil
}

func (s *service) Get(ctx context.Context, incidentID string) (*Event, error) {
	return s.repo.Get(ctx, incidentID)
}

func (s *service) ListByStatus(ctx context.Context, status Status, limit int) ([]*Event, error) {
	if !status.IsValid() {
		return nil, apperrors.NewValidation("unknown incident status")
	}
	return s.repo.ListByStatus(ctx, status, limit)
}

func (s *service) LocationTrail(ctx context.Context, incidentID string) ([]*LocationSample, error) {
	if _, err := s.repo.Get(ctx, incidentID); err != nil {
		return nil, err
	}
	return s.repo.ListLocations(ctx, incidentID)
}
