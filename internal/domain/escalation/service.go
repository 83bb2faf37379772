package escalation

import (
	"context"
	"time"

	"github.com/havenloop/haven/internal/domain/incident"
	"github.com/havenloop/haven/internal/infrastructure/monitoring/logging"
	apperrors "github.com/havenloop/haven/pkg/errors"
)

// IncidentReader is the slice of the incident state machine the protocol
// needs: current status lookups and the open-incident listing for the sweep.
type IncidentReader interface {
	Get(ctx context.Context, incidentID string) (*incident.Event, error)
	ListByStatus(ctx context.Context, status incident.Status, limit int) ([]*incident.Event, error)
}

// Escalator executes escalation actions: alerting an operator, or prompting a
// human about emergency services.  Execution is the fan-out's job; the
// protocol only decides and records.
type Escalator interface {
	Escalate(ctx context.Context, ev *incident.Event, action Action)
}

// Config holds the protocol's grace periods and sweep sizing.
type Config struct {
	OperatorGrace          time.Duration
	EmergencyServicesGrace time.Duration
	SweepBatchSize         int
}

// Service is the acknowledgement and escalation contract.
type Service interface {
	// Acknowledge records the responder's answer.  Idempotent: a repeat from
	// the same responder returns the original row unchanged.
	Acknowledge(ctx context.Context, incidentID, responderID, message string) (*Acknowledgement, error)

	Acknowledgements(ctx context.Context, incidentID string) ([]*Acknowledgement, error)

	// EvaluateIncident runs one escalation check for the incident, executing
	// and recording at most one new action.  Status is re-read immediately
	// before any action so a just-resolved incident never escalates.
	EvaluateIncident(ctx context.Context, incidentID string) (Action, error)

	// Sweep evaluates every active incident.  Returns how many actions fired.
	Sweep(ctx context.Context) (int, error)
}

type service struct {
	repo      Repository
	incidents IncidentReader
	escalator Escalator
	cfg       Config
	log       logging.Logger
}

// NewService creates the acknowledgement and escalation protocol.
func NewService(repo Repository, incidents IncidentReader, escalator Escalator, cfg Config, log logging.Logger) Service {
	if cfg.OperatorGrace <= 0 {
		cfg.OperatorGrace = 3 * time.Minute
	}
	if cfg.EmergencyServicesGrace <= 0 {
		cfg.EmergencyServicesGrace = 10 * time.Minute
	}
	if cfg.SweepBatchSize <= 0 {
		cfg.SweepBatchSize = 500
	}
	return &service{
		repo:      repo,
		incidents: incidents,
		escalator: escalator,
		cfg:       cfg,
		log:       log.Named("escalation"),
	}
}

func (s *service) Acknowledge(ctx context.Context, incidentID, responderID, message string) (*Acknowledgement, error) {
	ev, err := s.incidents.Get(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if ev.Status.IsTerminal() {
		return nil, apperrors.New(apperrors.ErrCodeIncidentNotAcknowledgeable,
			"incident is closed").WithDetail("status=" + string(ev.Status))
	}

	ack, err := NewAcknowledgement(incidentID, responderID, message)
	if err != nil {
		return nil, apperrors.NewValidation(err.Error())
	}
	stored, err := s.repo.Create(ctx, ack)
	if err != nil {
		return nil, err
	}
	if stored.ID == ack.ID {
		s.log.Info("incident acknowledged",
			logging.String("incident_id", incidentID),
			logging.String("responder_id", responderID))
	}
	return stored, nil
}

func (s *service) Acknowledgements(ctx context.Context, incidentID string) ([]*Acknowledgement, error) {
	if _, err := s.incidents.Get(ctx, incidentID); err != nil {
		return nil, err
	}
	return s.repo.ListByIncident(ctx, incidentID)
}

func (s *service) EvaluateIncident(ctx context.Context, incidentID string) (Action, error) {
	// Re-read status right before deciding: the sweep runs decoupled from the
	// write path and must never act on an incident that just closed.
	ev, err := s.incidents.Get(ctx, incidentID)
	if err != nil {
		return ActionNone, err
	}
	count, err := s.repo.CountByIncident(ctx, incidentID)
	if err != nil {
		return ActionNone, err
	}
	fired, err := s.repo.FiredLevel(ctx, incidentID)
	if err != nil {
		return ActionNone, err
	}

	action := Check(CheckInput{
		IncidentActive:         ev.Status == incident.StatusActive,
		IncidentAge:            time.Now().UTC().Sub(ev.CreatedAt),
		AckCount:               count,
		LastFired:              fired,
		OperatorGrace:          s.cfg.OperatorGrace,
		EmergencyServicesGrace: s.cfg.EmergencyServicesGrace,
	})
	if action == ActionNone {
		return ActionNone, nil
	}

	// Record before executing: a lost race means another sweep owns this
	// rung, and executing here would double-fire it.
	won, err := s.repo.RecordFiredLevel(ctx, incidentID, LevelOf(action))
	if err != nil {
		return ActionNone, err
	}
	if !won {
		return ActionNone, nil
	}

	if s.escalator != nil {
		s.escalator.Escalate(ctx, ev, action)
	}
	s.log.Info("escalation fired",
		logging.String("incident_id", incidentID),
		logging.String("action", string(action)))
	return action, nil
}

func (s *service) Sweep(ctx context.Context) (int, error) {
	open, err := s.incidents.ListByStatus(ctx, incident.StatusActive, s.cfg.SweepBatchSize)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeEscalationSweepFailed, "failed to list active incidents")
	}

	fired := 0
	for _, ev := range open {
		action, err := s.EvaluateIncident(ctx, ev.ID)
		if err != nil {
			// One bad incident must not stall the rest of the sweep.
			s.log.Error("escalation evaluation failed",
				logging.String("incident_id", ev.ID), logging.Err(err))
			continue
		}
		if action != ActionNone {
			fired++
		}
	}
	return fired, nil
}
