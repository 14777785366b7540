package stores

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/authorizer"
)

// SQLAuditStore persists the decision trail.
type SQLAuditStore struct {
	db *squealx.DB
}

func NewSQLAuditStore(db *squealx.DB) *SQLAuditStore {
	return &SQLAuditStore{db: db}
}

func (s *SQLAuditStore) LogDecision(ctx context.Context, e *authorizer.AuditEntry) error {
	reasons, _ := json.Marshal(e.Reasons)
	meta, _ := json.Marshal(e.Metadata)
	q := `INSERT INTO audit_log(id, ts, user_id, organization_id, resource_type, resource_id, action, allowed, reasons_json, duration_ms, metadata_json)
	      VALUES(:id, :ts, :user_id, :organization_id, :resource_type, :resource_id, :action, :allowed, :reasons_json, :duration_ms, :metadata_json)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id": e.ID, "ts": e.Timestamp, "user_id": e.UserID, "organization_id": e.OrganizationID,
		"resource_type": e.ResourceType, "resource_id": e.ResourceID, "action": e.Action,
		"allowed": boolToInt(e.Allowed), "reasons_json": string(reasons),
		"duration_ms": e.DurationMS, "metadata_json": string(meta),
	})
	return err
}

func (s *SQLAuditStore) GetAccessLog(ctx context.Context, f authorizer.AuditFilter) ([]*authorizer.AuditEntry, error) {
	clauses := []string{"1=1"}
	args := map[string]any{}
	if f.UserID != "" {
		clauses = append(clauses, "user_id = :user_id")
		args["user_id"] = f.UserID
	}
	if f.OrganizationID != "" {
		clauses = append(clauses, "organization_id = :organization_id")
		args["organization_id"] = f.OrganizationID
	}
	if f.ResourceType != "" {
		clauses = append(clauses, "resource_type = :resource_type")
		args["resource_type"] = f.ResourceType
	}
	if f.ResourceID != "" {
		clauses = append(clauses, "resource_id = :resource_id")
		args["resource_id"] = f.ResourceID
	}
	if !f.Since.IsZero() {
		clauses = append(clauses, "ts >= :since")
		args["since"] = f.Since
	}
	if !f.Until.IsZero() {
		clauses = append(clauses, "ts <= :until")
		args["until"] = f.Until
	}
	q := `SELECT id, ts, user_id, organization_id, resource_type, resource_id, action, allowed, reasons_json, duration_ms, metadata_json
	      FROM audit_log WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY ts DESC`
	if f.Limit > 0 {
		q += ` LIMIT :limit`
		args["limit"] = f.Limit
	}

	rows, err := s.db.NamedQueryContext(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*authorizer.AuditEntry, 0)
	for rows.Next() {
		var id, userID, org, rt, rid, action, reasonsJSON, metaJSON string
		var allowed int
		var durationMS float64
		var tsRaw any
		if err := rows.Scan(&id, &tsRaw, &userID, &org, &rt, &rid, &action, &allowed, &reasonsJSON, &durationMS, &metaJSON); err != nil {
			return nil, err
		}
		e := &authorizer.AuditEntry{
			ID: id, Timestamp: scanTime(tsRaw), UserID: userID, OrganizationID: org,
			ResourceType: rt, ResourceID: rid, Action: action,
			Allowed: allowed != 0, DurationMS: durationMS,
		}
		_ = json.Unmarshal([]byte(reasonsJSON), &e.Reasons)
		_ = json.Unmarshal([]byte(metaJSON), &e.Metadata)
		out = append(out, e)
	}
	return out, nil
}
