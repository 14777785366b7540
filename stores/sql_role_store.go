package stores

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/authorizer"
)

// SQLRoleStore persists roles and permissions via squealx. Membership
// lookups are delegated so they can be served from Redis instead of SQL.
type SQLRoleStore struct {
	db      *squealx.DB
	members authorizer.RoleMembershipStore
}

func NewSQLRoleStore(db *squealx.DB) *SQLRoleStore {
	return &SQLRoleStore{db: db, members: NewSQLRoleMembershipStore(db)}
}

// WithMembershipStore swaps the assignment backend, e.g. for Redis.
func (s *SQLRoleStore) WithMembershipStore(m authorizer.RoleMembershipStore) *SQLRoleStore {
	s.members = m
	return s
}

func (s *SQLRoleStore) CreateRole(ctx context.Context, r *authorizer.Role) error {
	permIDs, _ := json.Marshal(r.PermissionIDs)
	q := `INSERT INTO roles(id, organization_id, name, parent_role_id, permission_ids_json, is_active, created_at, updated_at)
	      VALUES(:id, :organization_id, :name, :parent_role_id, :permission_ids_json, :is_active, :created_at, :updated_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id": r.ID, "organization_id": r.OrganizationID, "name": r.Name,
		"parent_role_id": r.ParentRoleID, "permission_ids_json": string(permIDs),
		"is_active": boolToInt(r.IsActive), "created_at": r.CreatedAt, "updated_at": r.UpdatedAt,
	})
	return err
}

func (s *SQLRoleStore) UpdateRole(ctx context.Context, r *authorizer.Role) error {
	permIDs, _ := json.Marshal(r.PermissionIDs)
	q := `UPDATE roles SET organization_id=:organization_id, name=:name, parent_role_id=:parent_role_id,
	      permission_ids_json=:permission_ids_json, is_active=:is_active, updated_at=:updated_at WHERE id=:id`
	res, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id": r.ID, "organization_id": r.OrganizationID, "name": r.Name,
		"parent_role_id": r.ParentRoleID, "permission_ids_json": string(permIDs),
		"is_active": boolToInt(r.IsActive), "updated_at": time.Now(),
	})
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return authorizer.ErrNotFound
	}
	return nil
}

func (s *SQLRoleStore) DeleteRole(ctx context.Context, roleID string) error {
	_, err := s.db.NamedExecContext(ctx, `DELETE FROM roles WHERE id = :id`, map[string]any{"id": roleID})
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, `DELETE FROM role_members WHERE role_id = :id`, map[string]any{"id": roleID})
	return err
}

const roleColumns = `id, organization_id, name, parent_role_id, permission_ids_json, is_active, created_at, updated_at`

func (s *SQLRoleStore) GetRoleByID(ctx context.Context, roleID string) (*authorizer.Role, error) {
	q := `SELECT ` + roleColumns + ` FROM roles WHERE id = :id`
	rows, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": roleID})
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, authorizer.ErrNotFound
	}
	return scanRole(rows)
}

func scanRole(rows interface {
	Scan(dest ...any) error
}) (*authorizer.Role, error) {
	var id, org, name, parentID, permIDsJSON string
	var isActive int
	var createdRaw, updatedRaw any
	if err := rows.Scan(&id, &org, &name, &parentID, &permIDsJSON, &isActive, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	r := &authorizer.Role{
		ID: id, OrganizationID: org, Name: name, ParentRoleID: parentID,
		IsActive:  isActive != 0,
		CreatedAt: scanTime(createdRaw),
		UpdatedAt: scanTime(updatedRaw),
	}
	_ = json.Unmarshal([]byte(permIDsJSON), &r.PermissionIDs)
	return r, nil
}

func (s *SQLRoleStore) ListRoles(ctx context.Context, organizationID string) ([]*authorizer.Role, error) {
	q := `SELECT ` + roleColumns + ` FROM roles WHERE organization_id = :organization_id OR organization_id = ''`
	rows, err := s.db.NamedQueryContext(ctx, q, map[string]any{"organization_id": organizationID})
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*authorizer.Role, 0)
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *SQLRoleStore) AssignRole(ctx context.Context, userID, roleID, organizationID string) error {
	return s.members.AssignRole(ctx, userID, roleID, organizationID)
}

func (s *SQLRoleStore) RevokeRole(ctx context.Context, userID, roleID, organizationID string) error {
	return s.members.RevokeRole(ctx, userID, roleID, organizationID)
}

func (s *SQLRoleStore) GetRolesForUser(ctx context.Context, userID, organizationID string) ([]*authorizer.Role, error) {
	roleIDs, err := s.members.ListRoleIDs(ctx, userID, organizationID)
	if err != nil {
		return nil, err
	}
	out := make([]*authorizer.Role, 0, len(roleIDs))
	for _, id := range roleIDs {
		r, err := s.GetRoleByID(ctx, id)
		if err != nil {
			if err == authorizer.ErrNotFound {
				continue
			}
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *SQLRoleStore) CreatePermission(ctx context.Context, p *authorizer.Permission) error {
	conds, _ := json.Marshal(p.Conditions)
	q := `INSERT INTO permissions(id, resource_type, action, effect, priority, conditions_json, is_active, created_at, updated_at)
	      VALUES(:id, :resource_type, :action, :effect, :priority, :conditions_json, :is_active, :created_at, :updated_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id": p.ID, "resource_type": p.ResourceType, "action": p.Action,
		"effect": string(p.Effect), "priority": p.Priority, "conditions_json": string(conds),
		"is_active": boolToInt(p.IsActive), "created_at": p.CreatedAt, "updated_at": p.UpdatedAt,
	})
	return err
}

func (s *SQLRoleStore) UpdatePermission(ctx context.Context, p *authorizer.Permission) error {
	conds, _ := json.Marshal(p.Conditions)
	q := `UPDATE permissions SET resource_type=:resource_type, action=:action, effect=:effect,
	      priority=:priority, conditions_json=:conditions_json, is_active=:is_active, updated_at=:updated_at WHERE id=:id`
	res, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id": p.ID, "resource_type": p.ResourceType, "action": p.Action,
		"effect": string(p.Effect), "priority": p.Priority, "conditions_json": string(conds),
		"is_active": boolToInt(p.IsActive), "updated_at": time.Now(),
	})
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return authorizer.ErrNotFound
	}
	return nil
}

const permColumns = `id, resource_type, action, effect, priority, conditions_json, is_active, created_at, updated_at`

func (s *SQLRoleStore) GetPermissionByID(ctx context.Context, permID string) (*authorizer.Permission, error) {
	q := `SELECT ` + permColumns + ` FROM permissions WHERE id = :id`
	rows, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": permID})
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, authorizer.ErrNotFound
	}
	return scanPermission(rows)
}

func scanPermission(rows interface {
	Scan(dest ...any) error
}) (*authorizer.Permission, error) {
	var id, rt, action, effect, condsJSON string
	var priority, isActive int
	var createdRaw, updatedRaw any
	if err := rows.Scan(&id, &rt, &action, &effect, &priority, &condsJSON, &isActive, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	p := &authorizer.Permission{
		ID: id, ResourceType: rt, Action: action,
		Effect: authorizer.Effect(effect), Priority: priority,
		IsActive:  isActive != 0,
		CreatedAt: scanTime(createdRaw),
		UpdatedAt: scanTime(updatedRaw),
	}
	_ = json.Unmarshal([]byte(condsJSON), &p.Conditions)
	return p, nil
}

func (s *SQLRoleStore) GetPermissionsForRole(ctx context.Context, roleID string) ([]*authorizer.Permission, error) {
	role, err := s.GetRoleByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	out := make([]*authorizer.Permission, 0, len(role.PermissionIDs))
	for _, id := range role.PermissionIDs {
		p, err := s.GetPermissionByID(ctx, id)
		if err != nil {
			if err == authorizer.ErrNotFound {
				continue
			}
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
