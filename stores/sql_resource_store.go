package stores

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/authorizer"
)

// SQLResourceStore persists resource records and their attribute maps.
type SQLResourceStore struct {
	db *squealx.DB
}

func NewSQLResourceStore(db *squealx.DB) *SQLResourceStore {
	return &SQLResourceStore{db: db}
}

func (s *SQLResourceStore) CreateResource(ctx context.Context, r *authorizer.Resource) error {
	attrs, _ := json.Marshal(r.Attributes)
	q := `INSERT INTO resources(resource_type, resource_id, owner_id, organization_id, attributes_json, is_active, created_at, updated_at)
	      VALUES(:resource_type, :resource_id, :owner_id, :organization_id, :attributes_json, :is_active, :created_at, :updated_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"resource_type": r.ResourceType, "resource_id": r.ResourceID,
		"owner_id": r.OwnerID, "organization_id": r.OrganizationID,
		"attributes_json": string(attrs), "is_active": boolToInt(r.IsActive),
		"created_at": r.CreatedAt, "updated_at": r.UpdatedAt,
	})
	return err
}

func (s *SQLResourceStore) UpdateResourceAttributes(ctx context.Context, resourceType, resourceID string, attrs map[string]any) error {
	r, err := s.GetResource(ctx, resourceType, resourceID)
	if err != nil {
		return err
	}
	if r.Attributes == nil {
		r.Attributes = map[string]any{}
	}
	for k, v := range attrs {
		r.Attributes[k] = v
	}
	merged, _ := json.Marshal(r.Attributes)
	q := `UPDATE resources SET attributes_json = :attributes_json, updated_at = :updated_at
	      WHERE resource_type = :resource_type AND resource_id = :resource_id`
	_, err = s.db.NamedExecContext(ctx, q, map[string]any{
		"resource_type": resourceType, "resource_id": resourceID,
		"attributes_json": string(merged), "updated_at": time.Now(),
	})
	return err
}

func (s *SQLResourceStore) DeleteResource(ctx context.Context, resourceType, resourceID string) error {
	q := `DELETE FROM resources WHERE resource_type = :resource_type AND resource_id = :resource_id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"resource_type": resourceType, "resource_id": resourceID,
	})
	return err
}

func (s *SQLResourceStore) GetResource(ctx context.Context, resourceType, resourceID string) (*authorizer.Resource, error) {
	q := `SELECT resource_type, resource_id, owner_id, organization_id, attributes_json, is_active, created_at, updated_at
	      FROM resources WHERE resource_type = :resource_type AND resource_id = :resource_id`
	rows, err := s.db.NamedQueryContext(ctx, q, map[string]any{
		"resource_type": resourceType, "resource_id": resourceID,
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, authorizer.ErrNotFound
	}
	var rt, id, owner, org, attrsJSON string
	var isActive int
	var createdRaw, updatedRaw any
	if err := rows.Scan(&rt, &id, &owner, &org, &attrsJSON, &isActive, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	r := &authorizer.Resource{
		ResourceType: rt, ResourceID: id, OwnerID: owner, OrganizationID: org,
		IsActive:  isActive != 0,
		CreatedAt: scanTime(createdRaw), UpdatedAt: scanTime(updatedRaw),
	}
	_ = json.Unmarshal([]byte(attrsJSON), &r.Attributes)
	return r, nil
}
