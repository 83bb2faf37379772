// Package oversight is the operator-facing application surface: incident
// queues, full incident detail, forced transitions and group broadcasts.
// Operators act through the same state machine as members; nothing here
// bypasses transition legality.
package oversight

import (
	"context"

	"github.com/havenloop/haven/internal/domain/escalation"
	"github.com/havenloop/haven/internal/domain/incident"
	"github.com/havenloop/haven/internal/domain/membership"
	"github.com/havenloop/haven/internal/infrastructure/monitoring/logging"
	apperrors "github.com/havenloop/haven/pkg/errors"
)

// Broadcaster delivers an operator message to every member of a group.  Both
// the Kafka notifier and the realtime publisher satisfy it; wiring composes
// them.
type Broadcaster interface {
	Broadcast(ctx context.Context, groupID, operatorID, message string)
}

// IncidentDetail is the full operator view of one incident.
type IncidentDetail struct {
	Event            *incident.Event               `json:"event"`
	Trail            []*incident.LocationSample    `json:"trail"`
	Acknowledgements []*escalation.Acknowledgement `json:"acknowledgements"`
}

// Service is the operator console contract.
type Service interface {
	// ListIncidents returns the incident queue for one status.
	ListIncidents(ctx context.Context, status incident.Status, limit int) ([]*incident.Event, error)

	// GetIncidentDetail assembles event, location trail and acknowledgements.
	GetIncidentDetail(ctx context.Context, incidentID string) (*IncidentDetail, error)

	// ForceTransition moves an incident on behalf of an operator.  Transition
	// legality still applies; an illegal target fails the same way it would
	// for a member.
	ForceTransition(ctx context.Context, incidentID, operatorID string, target incident.Status) (*incident.Event, error)

	// Annotate appends an operator note to the incident audit record.
	Annotate(ctx context.Context, incidentID, operatorID, note string) (*incident.Event, error)

	// BroadcastMessage sends an operator message to a whole family group.
	BroadcastMessage(ctx context.Context, groupID, operatorID, message string) error
}

type service struct {
	incidents   incident.Service
	escalations escalation.Service
	groups      membership.Service
	broadcaster Broadcaster
	log         logging.Logger
}

func NewService(incidents incident.Service, escalations escalation.Service, groups membership.Service, broadcaster Broadcaster, log logging.Logger) Service {
	return &service{
		incidents:   incidents,
		escalations: escalations,
		groups:      groups,
		broadcaster: broadcaster,
		log:         log.Named("oversight"),
	}
}

func (s *service) ListIncidents(ctx context.Context, status incident.Status, limit int) ([]*incident.Event, error) {
	return s.incidents.ListByStatus(ctx, status, limit)
}

func (s *service) GetIncidentDetail(ctx context.Context, incidentID string) (*IncidentDetail, error) {
	ev, err := s.incidents.Get(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	trail, err := s.incidents.LocationTrail(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	acks, err := s.escalations.Acknowledgements(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	return &IncidentDetail{Event: ev, Trail: trail, Acknowledgements: acks}, nil
}

func (s *service) ForceTransition(ctx context.Context, incidentID, operatorID string, target incident.Status) (*incident.Event, error) {
	actor := "operator:" + operatorID

	var (
		ev  *incident.Event
		err error
	)
	switch target {
	case incident.StatusInProgress:
		ev, err = s.incidents.AdvanceToInProgress(ctx, incidentID, actor)
	case incident.StatusResolved:
		ev, err = s.incidents.Resolve(ctx, incidentID, actor)
	case incident.StatusCanceled:
		ev, err = s.incidents.Cancel(ctx, incidentID, actor)
	default:
		return nil, apperrors.NewValidation("unsupported transition target").
			WithDetail("target=" + string(target))
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("operator forced transition",
		logging.String("incident_id", incidentID),
		logging.String("operator_id", operatorID),
		logging.String("target", string(target)))
	return ev, nil
}

func (s *service) Annotate(ctx context.Context, incidentID, operatorID, note string) (*incident.Event, error) {
	return s.incidents.Annotate(ctx, incidentID, "operator:"+operatorID, note)
}

func (s *service) BroadcastMessage(ctx context.Context, groupID, operatorID, message string) error {
	if message == "" {
		return apperrors.NewValidation("broadcast message cannot be empty")
	}
	// Reject broadcasts to groups that do not exist before they hit the wire.
	if _, err := s.groups.GetGroup(ctx, groupID); err != nil {
		return err
	}

	s.broadcaster.Broadcast(ctx, groupID, operatorID, message)
	s.log.Info("operator broadcast sent",
		logging.String("group_id", groupID),
		logging.String("operator_id", operatorID))
	return nil
}
