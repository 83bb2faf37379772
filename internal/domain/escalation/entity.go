// Package escalation records family and operator responses to an open
// incident and drives the escalation ladder when nobody responds.
package escalation

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Acknowledgement is one responder's answer to an incident.  Append-only, at
// most one per (incident, responder); later attempts return the stored row.
type Acknowledgement struct {
	ID             string    `json:"id"`
	IncidentID     string    `json:"incident_id"`
	ResponderID    string    `json:"responder_id"`
	Message        string    `json:"message,omitempty"`
	AcknowledgedAt time.Time `json:"acknowledged_at"`
}

// NewAcknowledgement creates an acknowledgement stamped now.
func NewAcknowledgement(incidentID, responderID, message string) (*Acknowledgement, error) {
	if incidentID == "" {
		return nil, errors.New("incident ID cannot be empty")
	}
	if responderID == "" {
		return nil, errors.New("responder ID cannot be empty")
	}
	return &Acknowledgement{
		ID:             uuid.New().String(),
		IncidentID:     incidentID,
		ResponderID:    responderID,
		Message:        message,
		AcknowledgedAt: time.Now().UTC(),
	}, nil
}

// Level is the highest escalation rung already fired for an incident.
type Level int

const (
	LevelNone Level = iota
	LevelOperator
	LevelEmergencyServices
)

// Action is the outcome of an escalation check.
type Action string

const (
	ActionNone Action = ""

	// ActionEscalateToOperator alerts a human operator.
	ActionEscalateToOperator Action = "escalate_to_operator"

	// ActionEscalateToEmergencyServicesPrompt recommends contacting emergency
	// services to a human.  Never an automatic call.
	ActionEscalateToEmergencyServicesPrompt Action = "escalate_to_emergency_services_prompt"
)

// LevelOf maps an action to the ladder rung it fires.
func LevelOf(a Action) Level {
	switch a {
	case ActionEscalateToOperator:
		return LevelOperator
	case ActionEscalateToEmergencyServicesPrompt:
		return LevelEmergencyServices
	default:
		return LevelNone
	}
}

// CheckInput is everything the escalation decision depends on.
type CheckInput struct {
	IncidentActive bool
	IncidentAge    time.Duration
	AckCount       int
	LastFired      Level

	OperatorGrace          time.Duration
	EmergencyServicesGrace time.Duration
}

// Check is the escalation decision: deterministic and side-effect free.  The
// caller executes the returned action exactly once and records the fired
// level; Check itself never repeats a rung already fired.
func Check(in CheckInput) Action {
	if !in.IncidentActive || in.AckCount > 0 {
		return ActionNone
	}
	if in.IncidentAge >= in.EmergencyServicesGrace && in.LastFired < LevelEmergencyServices {
		return ActionEscalateToEmergencyServicesPrompt
	}
	if in.IncidentAge >= in.OperatorGrace && in.LastFired < LevelOperator {
		return ActionEscalateToOperator
	}
	return ActionNone
}
