package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/havenloop/haven/internal/domain/membership"
	"github.com/havenloop/haven/internal/infrastructure/database/postgres"
	"github.com/havenloop/haven/internal/infrastructure/monitoring/logging"
	"github.com/havenloop/haven/pkg/errors"
)

type postgresMembershipRepo struct {
	baseRepo
}

// NewPostgresMembershipRepo creates the membership registry store.
func NewPostgresMembershipRepo(conn *postgres.Connection, log logging.Logger) membership.Repository {
	return &postgresMembershipRepo{baseRepo: baseRepo{conn: conn, log: log}}
}

func (r *postgresMembershipRepo) CreateGroup(ctx context.Context, group *membership.FamilyGroup, owner *membership.FamilyMembership) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO family_groups (id, owner_id, seat_quota, created_at)
			VALUES ($1, $2, $3, $4)
		`, group.ID, group.OwnerID, group.SeatQuota, group.CreatedAt)
		if err != nil {
			if isUniqueViolation(err, "family_groups_owner_id_key") {
				return errors.Conflict("owner already has a group")
			}
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert group")
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO family_memberships (id, group_id, member_id, billing_responsibility, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, owner.ID, owner.GroupID, owner.MemberID, owner.Billing, owner.Status, owner.CreatedAt, owner.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert owner membership")
		}
		return nil
	})
}

func (r *postgresMembershipRepo) GetGroup(ctx context.Context, id string) (*membership.FamilyGroup, error) {
	return r.scanGroup(r.executor().QueryRowContext(ctx, `
		SELECT id, owner_id, seat_quota, created_at FROM family_groups WHERE id = $1
	`, id))
}

func (r *postgresMembershipRepo) GetGroupByOwner(ctx context.Context, ownerID string) (*membership.FamilyGroup, error) {
	return r.scanGroup(r.executor().QueryRowContext(ctx, `
		SELECT id, owner_id, seat_quota, created_at FROM family_groups WHERE owner_id = $1
	`, ownerID))
}

func (r *postgresMembershipRepo) scanGroup(row scanner) (*membership.FamilyGroup, error) {
	var g membership.FamilyGroup
	err := row.Scan(&g.ID, &g.OwnerID, &g.SeatQuota, &g.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeGroupNotFound, "group not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan group")
	}
	return &g, nil
}

func (r *postgresMembershipRepo) UpdateSeatQuota(ctx context.Context, groupID string, seatQuota int) error {
	res, err := r.executor().ExecContext(ctx, `
		UPDATE family_groups SET seat_quota = $2 WHERE id = $1
	`, groupID, seatQuota)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to update seat quota")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrCodeGroupNotFound, "group not found")
	}
	return nil
}

// CreateInvite checks the quota and inserts the invite in one transaction.
// The group row is locked FOR UPDATE, so two concurrent invites for the last
// seat serialize and the second one sees the first one's row.  The owner's
// own membership is exempt: the quota bounds invited seats.
func (r *postgresMembershipRepo) CreateInvite(ctx context.Context, invite *membership.FamilyInvite) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var ownerID string
		var quota int
		err := tx.QueryRowContext(ctx, `
			SELECT owner_id, seat_quota FROM family_groups WHERE id = $1 FOR UPDATE
		`, invite.GroupID).Scan(&ownerID, &quota)
		if err == sql.ErrNoRows {
			return errors.New(errors.ErrCodeGroupNotFound, "group not found")
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to lock group")
		}

		var taken int
		err = tx.QueryRowContext(ctx, `
			SELECT
				(SELECT COUNT(*) FROM family_memberships
				  WHERE group_id = $1 AND member_id <> $2 AND status IN ('pending', 'active'))
				+
				(SELECT COUNT(*) FROM family_invites
				  WHERE group_id = $1 AND status = 'pending' AND expires_at > $3)
		`, invite.GroupID, ownerID, time.Now().UTC()).Scan(&taken)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to count seats")
		}
		if taken >= quota {
			return errors.New(errors.ErrCodeSeatQuotaExceeded, "no free seat in group")
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO family_invites (id, group_id, contact, billing_responsibility, status, expires_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, invite.ID, invite.GroupID, invite.Contact, invite.Billing, invite.Status, invite.ExpiresAt, invite.CreatedAt)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert invite")
		}
		return nil
	})
}

func (r *postgresMembershipRepo) GetInvite(ctx context.Context, id string) (*membership.FamilyInvite, error) {
	var inv membership.FamilyInvite
	err := r.executor().QueryRowContext(ctx, `
		SELECT id, group_id, contact, billing_responsibility, status, expires_at, created_at
		FROM family_invites WHERE id = $1
	`, id).Scan(&inv.ID, &inv.GroupID, &inv.Contact, &inv.Billing, &inv.Status, &inv.ExpiresAt, &inv.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeInviteNotFound, "invite not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan invite")
	}
	return &inv, nil
}

func (r *postgresMembershipRepo) ConsumeInvite(ctx context.Context, inviteID string, m *membership.FamilyMembership) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE family_invites SET status = 'consumed' WHERE id = $1 AND status = 'pending'
		`, inviteID)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to consume invite")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errors.New(errors.ErrCodeInviteAlreadyConsumed, "invite already consumed")
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO family_memberships (id, group_id, member_id, billing_responsibility, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, m.ID, m.GroupID, m.MemberID, m.Billing, m.Status, m.CreatedAt, m.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert membership")
		}
		return nil
	})
}

func (r *postgresMembershipRepo) RevokeInvite(ctx context.Context, inviteID string) error {
	res, err := r.executor().ExecContext(ctx, `
		UPDATE family_invites SET status = 'revoked' WHERE id = $1 AND status = 'pending'
	`, inviteID)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to revoke invite")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrCodeInviteNotFound, "invite not found")
	}
	return nil
}

func (r *postgresMembershipRepo) GetMembership(ctx context.Context, id string) (*membership.FamilyMembership, error) {
	return r.scanMembership(r.executor().QueryRowContext(ctx, `
		SELECT id, group_id, member_id, billing_responsibility, status, created_at, updated_at
		FROM family_memberships WHERE id = $1
	`, id))
}

func (r *postgresMembershipRepo) GetMembershipByGroupAndMember(ctx context.Context, groupID, memberID string) (*membership.FamilyMembership, error) {
	return r.scanMembership(r.executor().QueryRowContext(ctx, `
		SELECT id, group_id, member_id, billing_responsibility, status, created_at, updated_at
		FROM family_memberships
		WHERE group_id = $1 AND member_id = $2 AND status <> 'canceled'
		ORDER BY created_at DESC
		LIMIT 1
	`, groupID, memberID))
}

func (r *postgresMembershipRepo) scanMembership(row scanner) (*membership.FamilyMembership, error) {
	var m membership.FamilyMembership
	err := row.Scan(&m.ID, &m.GroupID, &m.MemberID, &m.Billing, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeMembershipNotFound, "membership not found")
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan membership")
	}
	return &m, nil
}

func (r *postgresMembershipRepo) UpdateMembershipStatus(ctx context.Context, id string, status membership.MembershipStatus) error {
	res, err := r.executor().ExecContext(ctx, `
		UPDATE family_memberships SET status = $2, updated_at = $3 WHERE id = $1
	`, id, status, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to update membership status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New(errors.ErrCodeMembershipNotFound, "membership not found")
	}
	return nil
}

func (r *postgresMembershipRepo) ListMembers(ctx context.Context, groupID string) ([]*membership.FamilyMembership, error) {
	rows, err := r.executor().QueryContext(ctx, `
		SELECT id, group_id, member_id, billing_responsibility, status, created_at, updated_at
		FROM family_memberships WHERE group_id = $1 ORDER BY created_at
	`, groupID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list members")
	}
	defer rows.Close()

	var out []*membership.FamilyMembership
	for rows.Next() {
		m, err := r.scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *postgresMembershipRepo) ListGroupsForMember(ctx context.Context, memberID string) ([]*membership.FamilyGroup, error) {
	rows, err := r.executor().QueryContext(ctx, `
		SELECT DISTINCT g.id, g.owner_id, g.seat_quota, g.created_at
		FROM family_groups g
		JOIN family_memberships m ON m.group_id = g.id
		WHERE m.member_id = $1 AND m.status IN ('pending', 'active')
	`, memberID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list groups for member")
	}
	defer rows.Close()

	var out []*membership.FamilyGroup
	for rows.Next() {
		var g membership.FamilyGroup
		if err := rows.Scan(&g.ID, &g.OwnerID, &g.SeatQuota, &g.CreatedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan group")
		}
		out = append(out, &g)
	}
	return out, rows.Err()
}

func (r *postgresMembershipRepo) ListActiveMemberIDs(ctx context.Context, groupID string) ([]string, error) {
	rows, err := r.executor().QueryContext(ctx, `
		SELECT member_id FROM family_memberships WHERE group_id = $1 AND status = 'active'
	`, groupID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to list active members")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan member id")
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
