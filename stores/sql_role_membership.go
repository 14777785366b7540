package stores

import (
	"context"
	"time"

	"github.com/oarkflow/squealx"
)

// SQLRoleMembershipStore keeps user-role assignments in the role_members
// table. Assignments are idempotent.
type SQLRoleMembershipStore struct {
	db *squealx.DB
}

func NewSQLRoleMembershipStore(db *squealx.DB) *SQLRoleMembershipStore {
	return &SQLRoleMembershipStore{db: db}
}

func (s *SQLRoleMembershipStore) AssignRole(ctx context.Context, userID, roleID, organizationID string) error {
	q := `INSERT OR IGNORE INTO role_members(user_id, role_id, organization_id, created_at)
	      VALUES(:user_id, :role_id, :organization_id, :created_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"user_id": userID, "role_id": roleID, "organization_id": organizationID, "created_at": time.Now(),
	})
	return err
}

func (s *SQLRoleMembershipStore) RevokeRole(ctx context.Context, userID, roleID, organizationID string) error {
	q := `DELETE FROM role_members WHERE user_id = :user_id AND role_id = :role_id AND organization_id = :organization_id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"user_id": userID, "role_id": roleID, "organization_id": organizationID,
	})
	return err
}

func (s *SQLRoleMembershipStore) ListRoleIDs(ctx context.Context, userID, organizationID string) ([]string, error) {
	q := `SELECT role_id FROM role_members WHERE user_id = :user_id AND organization_id = :organization_id`
	rows, err := s.db.NamedQueryContext(ctx, q, map[string]any{
		"user_id": userID, "organization_id": organizationID,
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
