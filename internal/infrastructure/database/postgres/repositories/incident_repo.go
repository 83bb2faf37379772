package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/havenloop/haven/internal/domain/incident"
	"github.com/havenloop/haven/internal/infrastructure/database/postgres"
	"github.com/havenloop/haven/internal/infrastructure/monitoring/logging"
	"github.com/havenloop/haven/pkg/errors"
)

type postgresIncidentRepo struct {
	baseRepo
}

// NewPostgresIncidentRepo creates the incident store.  The schema carries a
// partial unique index on (subject_id) WHERE status IN ('active',
// 'in_progress'); its violation is what makes incident creation atomic per
// subject.
func NewPostgresIncidentRepo(conn *postgres.Connection, log logging.Logger) incident.Repository {
	return &postgresIncidentRepo{baseRepo: baseRepo{conn: conn, log: log}}
}

func (r *postgresIncidentRepo) Create(ctx context.Context, ev *incident.Event) error {
	notes, err := json.Marshal(ev.Notes)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode notes")
	}
	_, err = r.executor().ExecContext(ctx, `
		INSERT INTO incident_events
			(id, subject_id, status, trigger_lat, trigger_lng, address, metadata_json, sequence_no, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, ev.ID, ev.SubjectID, ev.Status, ev.TriggerLocation.Lat, ev.TriggerLocation.Lng,
		ev.Address, notes, ev.SequenceNo, ev.CreatedAt, ev.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "incident_events_one_open_per_subject") {
			return errors.New(errors.ErrCodeIncidentAlreadyActive, "subject already has an open incident")
		}
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert incident")
	}
	return nil
}

const incidentColumns = `
	id, subject_id, status, trigger_lat, trigger_lng, address,
	metadata_json, sequence_no, created_at, updated_at, resolved_at
`

func (r *postgresIncidentRepo) Get(ctx context.Context, id string) (*incident.Event, error) {
	return r.scanEvent(r.executor().QueryRowContext(ctx, `
		SELECT `+incidentColumns+` FROM incident_events WHERE id = $1
	`, id))
}

func (r *postgresIncidentRepo) GetActiveBySubject(ctx context.Context, subjectID string) (*incident.Event, error) {
	return r.scanEvent(r.executor().QueryRowContext(ctx, `
		SELECT `+incidentColumns+` FROM incident_events
		WHERE subject_id = $1 AND status IN ('active', 'in_progress')
	`, subjectID))
}

// UpdateStatus is conditional on the stored status still being from, so a
// lost transition race surfaces instead of silently overwriting.
func (r *postgresIncidentRepo) UpdateStatus(ctx context.Context, id string, from, to incident.Status, resolvedAt *time.Time) (*incident.Event, error) {
	row := r.executor().QueryRowContext(ctx, `
		UPDATE incident_events
		SET status = $3, sequence_no = sequence_no + 1, updated_at = $4, resolved_at = COALESCE($5, resolved_at)
		WHERE id = $1 AND status = $2
		RETURNING `+incidentColumns+`
	`, id, from, to, time.Now().UTC(), resolvedAt)

	ev, err := r.scanEvent(row)
	if err != nil {
		if errors.IsNotFound(err) {
			// Either the incident is gone or its status moved underneath us.
			if _, gerr := r.Get(ctx, id); gerr == nil {
				return nil, errors.Conflict("incident status changed concurrently")
			}
			return nil, errors.New(errors.ErrCodeIncidentNotFound, "incident not found")
		}
		return nil, err
	}
	return ev, nil
}

func (r *postgresIncidentRepo) AppendNote(ctx context.Context, id string, note incident.Annotation) (*incident.Event, error) {
	encoded, err := json.Marshal(note)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode note")
	}
	row := r.executor().QueryRowContext(ctx, `
		UPDATE incident_events
		SET metadata_json = metadata_json || $2::jsonb,
		    sequence_no = sequence_no + 1,
		    updated_at = $3
		WHERE id = $1
		RETURNING `+incidentColumns+`
	`, id, "["+string(encoded)+"]", time.Now().UTC())

	ev, err := r.scanEvent(row)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.New(errors.ErrCodeIncidentNotFound, "incident not found")
		}
		return nil, err
	}
	return ev, nil
}

func (r *postgresIncidentRepo) ListByStatus(ctx context.Context, status incident.Status, limit int) ([]*incident.Event, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.executor().QueryContext(ctx, `
		SELECT `+incidentColumns+` FROM incident_events
		WHERE status = $1 ORDER BY created_at LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list incidents")
	}
	defer rows.Close()

	var out []*incident.Event
	for rows.Next() {
		ev, err := r.scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *postgresIncidentRepo) AppendLocation(ctx context.Context, sample *incident.LocationSample) error {
	_, err := r.executor().ExecContext(ctx, `
		INSERT INTO incident_locations (id, incident_id, lat, lng, ts)
		VALUES ($1, $2, $3, $4, $5)
	`, sample.ID, sample.IncidentID, sample.Location.Lat, sample.Location.Lng, sample.Timestamp)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to append location sample")
	}
	return nil
}

func (r *postgresIncidentRepo) ListLocations(ctx context.Context, incidentID string) ([]*incident.LocationSample, error) {
	rows, err := r.executor().QueryContext(ctx, `
		SELECT id, incident_id, lat, lng, ts FROM incident_locations
		WHERE incident_id = $1 ORDER BY ts
	`, incidentID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list location trail")
	}
	defer rows.Close()

	var out []*incident.LocationSample
	for rows.Next() {
		var s incident.LocationSample
		if err := rows.Scan(&s.ID, &s.IncidentID, &s.Location.Lat, &s.Location.Lng, &s.Timestamp); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan location sample")
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

func (r *postgresIncidentRepo) scanEvent(row scanner) (*incident.Event, error) {
	var (
		ev         incident.Event
		notes      []byte
		address    sql.NullString
		resolvedAt sql.NullTime
	)
	err := row.Scan(&ev.ID, &ev.SubjectID, &ev.Status, &ev.TriggerLocation.Lat, &ev.TriggerLocation.Lng,
		&address, &notes, &ev.SequenceNo, &ev.CreatedAt, &ev.UpdatedAt, &resolvedAt)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeIncidentNotFound, "incident not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan incident")
	}
	ev.Address = address.String
	if resolvedAt.Valid {
		t := resolvedAt.Time
		ev.ResolvedAt = &t
	}
	if len(notes) > 0 {
		if err := json.Unmarshal(notes, &ev.Notes); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode notes")
		}
	}
	return &ev, nil
}
