package repositories

import (
	"context"
	"database/sql"

	"github.com/havenloop/haven/internal/domain/escalation"
	"github.com/havenloop/haven/internal/infrastructure/database/postgres"
	"github.com/havenloop/haven/internal/infrastructure/monitoring/logging"
	"github.com/havenloop/haven/pkg/errors"
)

type postgresEscalationRepo struct {
	baseRepo
}

// NewPostgresEscalationRepo creates the acknowledgement store.  Idempotency
// rides on the unique (incident_id, responder_id) constraint: the insert is
// ON CONFLICT DO NOTHING and the stored row is read back, so the first
// writer's message always wins.
func NewPostgresEscalationRepo(conn *postgres.Connection, log logging.Logger) escalation.Repository {
	return &postgresEscalationRepo{baseRepo: baseRepo{conn: conn, log: log}}
}

func (r *postgresEscalationRepo) Create(ctx context.Context, ack *escalation.Acknowledgement) (*escalation.Acknowledgement, error) {
	_, err := r.executor().ExecContext(ctx, `
		INSERT INTO incident_acknowledgements (id, incident_id, responder_id, acknowledged_at, message)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (incident_id, responder_id) DO NOTHING
	`, ack.ID, ack.IncidentID, ack.ResponderID, ack.AcknowledgedAt, ack.Message)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert acknowledgement")
	}

	var stored escalation.Acknowledgement
	err = r.executor().QueryRowContext(ctx, `
		SELECT id, incident_id, responder_id, acknowledged_at, message
		FROM incident_acknowledgements
		WHERE incident_id = $1 AND responder_id = $2
	`, ack.IncidentID, ack.ResponderID).Scan(
		&stored.ID, &stored.IncidentID, &stored.ResponderID, &stored.AcknowledgedAt, &stored.Message)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to read back acknowledgement")
	}
	return &stored, nil
}

func (r *postgresEscalationRepo) ListByIncident(ctx context.Context, incidentID string) ([]*escalation.Acknowledgement, error) {
	rows, err := r.executor().QueryContext(ctx, `
		SELECT id, incident_id, responder_id, acknowledged_at, message
		FROM incident_acknowledgements
		WHERE incident_id = $1 ORDER BY acknowledged_at
	`, incidentID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list acknowledgements")
	}
	defer rows.Close()

	var out []*escalation.Acknowledgement
	for rows.Next() {
		var a escalation.Acknowledgement
		if err := rows.Scan(&a.ID, &a.IncidentID, &a.ResponderID, &a.AcknowledgedAt, &a.Message); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan acknowledgement")
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *postgresEscalationRepo) CountByIncident(ctx context.Context, incidentID string) (int, error) {
	var n int
	err := r.executor().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM incident_acknowledgements WHERE incident_id = $1
	`, incidentID).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to count acknowledgements")
	}
	return n, nil
}

func (r *postgresEscalationRepo) FiredLevel(ctx context.Context, incidentID string) (escalation.Level, error) {
	var level int
	err := r.executor().QueryRowContext(ctx, `
		SELECT fired_level FROM incident_escalations WHERE incident_id = $1
	`, incidentID).Scan(&level)
	if err == sql.ErrNoRows {
		return escalation.LevelNone, nil
	}
	if err != nil {
		return escalation.LevelNone, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to read escalation level")
	}
	return escalation.Level(level), nil
}

// RecordFiredLevel raises the stored rung with a guarded upsert; the WHERE
// clause makes concurrent sweeps race safely, only one writer wins.
func (r *postgresEscalationRepo) RecordFiredLevel(ctx context.Context, incidentID string, level escalation.Level) (bool, error) {
	res, err := r.executor().ExecContext(ctx, `
		INSERT INTO incident_escalations (incident_id, fired_level)
		VALUES ($1, $2)
		ON CONFLICT (incident_id) DO UPDATE SET fired_level = EXCLUDED.fired_level
		WHERE incident_escalations.fired_level < EXCLUDED.fired_level
	`, incidentID, int(level))
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to record escalation level")
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
