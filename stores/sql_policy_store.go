package stores

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/authorizer"
)

// SQLPolicyStore persists ABAC policies via squealx.
type SQLPolicyStore struct {
	db *squealx.DB
}

func NewSQLPolicyStore(db *squealx.DB) *SQLPolicyStore {
	return &SQLPolicyStore{db: db}
}

func (s *SQLPolicyStore) CreatePolicy(ctx context.Context, p *authorizer.Policy) error {
	conds, _ := json.Marshal(p.Conditions)
	q := `INSERT INTO policies(id, name, effect, resource_type, action, organization_id, conditions_json, priority, is_active, created_by, created_at, updated_at)
	      VALUES(:id, :name, :effect, :resource_type, :action, :organization_id, :conditions_json, :priority, :is_active, :created_by, :created_at, :updated_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id": p.ID, "name": p.Name, "effect": string(p.Effect),
		"resource_type": p.ResourceType, "action": p.Action, "organization_id": p.OrganizationID,
		"conditions_json": string(conds), "priority": p.Priority, "is_active": boolToInt(p.IsActive),
		"created_by": p.CreatedBy, "created_at": p.CreatedAt, "updated_at": p.UpdatedAt,
	})
	return err
}

func (s *SQLPolicyStore) UpdatePolicy(ctx context.Context, p *authorizer.Policy) error {
	conds, _ := json.Marshal(p.Conditions)
	q := `UPDATE policies SET name=:name, effect=:effect, resource_type=:resource_type, action=:action,
	      organization_id=:organization_id, conditions_json=:conditions_json, priority=:priority,
	      is_active=:is_active, updated_at=:updated_at WHERE id=:id`
	res, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id": p.ID, "name": p.Name, "effect": string(p.Effect),
		"resource_type": p.ResourceType, "action": p.Action, "organization_id": p.OrganizationID,
		"conditions_json": string(conds), "priority": p.Priority, "is_active": boolToInt(p.IsActive),
		"updated_at": time.Now(),
	})
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return authorizer.ErrNotFound
	}
	return nil
}

func (s *SQLPolicyStore) DeletePolicy(ctx context.Context, policyID string) error {
	_, err := s.db.NamedExecContext(ctx, `DELETE FROM policies WHERE id = :id`, map[string]any{"id": policyID})
	return err
}

const policyColumns = `id, name, effect, resource_type, action, organization_id, conditions_json, priority, is_active, created_by, created_at, updated_at`

func (s *SQLPolicyStore) GetPolicyByID(ctx context.Context, policyID string) (*authorizer.Policy, error) {
	q := `SELECT ` + policyColumns + ` FROM policies WHERE id = :id`
	rows, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": policyID})
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, authorizer.ErrNotFound
	}
	return scanPolicy(rows)
}

func scanPolicy(rows interface {
	Scan(dest ...any) error
}) (*authorizer.Policy, error) {
	var id, name, effect, rt, action, org, condsJSON, createdBy string
	var priority, isActive int
	var createdRaw, updatedRaw any
	if err := rows.Scan(&id, &name, &effect, &rt, &action, &org, &condsJSON, &priority, &isActive, &createdBy, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	p := &authorizer.Policy{
		ID: id, Name: name, Effect: authorizer.Effect(effect),
		ResourceType: rt, Action: action, OrganizationID: org,
		Priority: priority, IsActive: isActive != 0, CreatedBy: createdBy,
		CreatedAt: scanTime(createdRaw), UpdatedAt: scanTime(updatedRaw),
	}
	_ = json.Unmarshal([]byte(condsJSON), &p.Conditions)
	return p, nil
}

func (s *SQLPolicyStore) ListPolicies(ctx context.Context, organizationID string) ([]*authorizer.Policy, error) {
	q := `SELECT ` + policyColumns + ` FROM policies WHERE organization_id = :organization_id OR organization_id = ''`
	return s.queryPolicies(ctx, q, map[string]any{"organization_id": organizationID})
}

// GetApplicablePolicies narrows by scope in SQL; the resolver re-verifies
// with full pattern matching.
func (s *SQLPolicyStore) GetApplicablePolicies(ctx context.Context, resourceType, action, organizationID string) ([]*authorizer.Policy, error) {
	q := `SELECT ` + policyColumns + ` FROM policies
	      WHERE (resource_type = :resource_type OR resource_type = '*')
	        AND (action = :action OR action = '*')
	        AND (organization_id = :organization_id OR organization_id = '')
	        AND is_active = 1`
	return s.queryPolicies(ctx, q, map[string]any{
		"resource_type": resourceType, "action": action, "organization_id": organizationID,
	})
}

func (s *SQLPolicyStore) queryPolicies(ctx context.Context, q string, args map[string]any) ([]*authorizer.Policy, error) {
	rows, err := s.db.NamedQueryContext(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*authorizer.Policy, 0)
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
