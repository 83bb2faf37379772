package repositories

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/havenloop/haven/internal/domain/presence"
	"github.com/havenloop/haven/internal/infrastructure/database/postgres"
	"github.com/havenloop/haven/internal/infrastructure/monitoring/logging"
	"github.com/havenloop/haven/pkg/errors"
)

type postgresPresenceRepo struct {
	baseRepo
}

// NewPostgresPresenceRepo creates the presence store.  One row per member,
// upserted on every report.
func NewPostgresPresenceRepo(conn *postgres.Connection, log logging.Logger) presence.Repository {
	return &postgresPresenceRepo{baseRepo: baseRepo{conn: conn, log: log}}
}

func (r *postgresPresenceRepo) Save(ctx context.Context, p *presence.Presence) error {
	_, err := r.executor().ExecContext(ctx, `
		INSERT INTO presence (member_id, lat, lng, accuracy, battery, is_paused, last_seen, cadence_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (member_id) DO UPDATE SET
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			accuracy = EXCLUDED.accuracy,
			battery = EXCLUDED.battery,
			is_paused = EXCLUDED.is_paused,
			last_seen = EXCLUDED.last_seen,
			cadence_seconds = EXCLUDED.cadence_seconds
	`, p.MemberID, p.Location.Lat, p.Location.Lng, p.Accuracy, p.Battery, p.IsPaused, p.LastSeen, p.CadenceSeconds)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to save presence")
	}
	return nil
}

func (r *postgresPresenceRepo) Get(ctx context.Context, memberID string) (*presence.Presence, error) {
	return r.scanPresence(r.executor().QueryRowContext(ctx, `
		SELECT member_id, lat, lng, accuracy, battery, is_paused, last_seen, cadence_seconds
		FROM presence WHERE member_id = $1
	`, memberID))
}

func (r *postgresPresenceRepo) GetMany(ctx context.Context, memberIDs []string) ([]*presence.Presence, error) {
	if len(memberIDs) == 0 {
		return nil, nil
	}
	rows, err := r.executor().QueryContext(ctx, `
		SELECT member_id, lat, lng, accuracy, battery, is_paused, last_seen, cadence_seconds
		FROM presence WHERE member_id = ANY($1)
	`, pq.Array(memberIDs))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list presence records")
	}
	defer rows.Close()

	var out []*presence.Presence
	for rows.Next() {
		p, err := r.scanPresence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *postgresPresenceRepo) SetCadence(ctx context.Context, memberID string, cadenceSeconds int) error {
	// Cadence instructions may precede the first report.
	_, err := r.executor().ExecContext(ctx, `
		INSERT INTO presence (member_id, lat, lng, accuracy, battery, is_paused, last_seen, cadence_seconds)
		VALUES ($1, 0, 0, 0, 0, FALSE, to_timestamp(0), $2)
		ON CONFLICT (member_id) DO UPDATE SET cadence_seconds = EXCLUDED.cadence_seconds
	`, memberID, cadenceSeconds)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to set cadence")
	}
	return nil
}

func (r *postgresPresenceRepo) scanPresence(row scanner) (*presence.Presence, error) {
	var p presence.Presence
	err := row.Scan(&p.MemberID, &p.Location.Lat, &p.Location.Lng, &p.Accuracy, &p.Battery, &p.IsPaused, &p.LastSeen, &p.CadenceSeconds)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodePresenceNotFound, "no presence record for member")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan presence")
	}
	return &p, nil
}
