package authorizer

import (
	"context"
	"errors"

	"github.com/oarkflow/authorizer/logger"
	"github.com/oarkflow/authorizer/utils"
)

// MaxInheritanceDepth bounds role chain walks. A chain longer than this is
// treated the same as a cycle.
const MaxInheritanceDepth = 32

// RBACResolver computes the effective permission set for a user by walking
// each assigned role's inheritance chain.
type RBACResolver struct {
	roles               RoleStore
	eval                *ConditionEvaluator
	cache               *PermissionCache
	log                 logger.Logger
	skipInactiveParents bool
	maxDepth            int
}

func NewRBACResolver(roles RoleStore, eval *ConditionEvaluator, log logger.Logger) *RBACResolver {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &RBACResolver{roles: roles, eval: eval, log: log, maxDepth: MaxInheritanceDepth}
}

// Resolve returns every permission the user holds through active assigned
// roles and their ancestor chains. Hierarchy breaks (cycles, depth overflow)
// are logged and the rest of the chain's permissions are kept; the same role
// walked twice from different assignments yields duplicate entries on
// purpose, so a deny granted via two paths stays a deny.
func (r *RBACResolver) Resolve(ctx context.Context, userID, organizationID string) ([]EffectivePermission, error) {
	if r.cache != nil {
		if perms, ok := r.cache.Get(userID, organizationID); ok {
			return perms, nil
		}
	}

	assigned, err := r.roles.GetRolesForUser(ctx, userID, organizationID)
	if err != nil {
		return nil, &RepositoryError{Op: "roles for user", Err: err}
	}

	var out []EffectivePermission
	for _, role := range assigned {
		if role == nil || !role.IsActive {
			continue
		}
		perms, err := r.collectChain(ctx, role)
		if err != nil {
			var hierErr *RoleHierarchyError
			if errors.As(err, &hierErr) {
				r.log.Error("role hierarchy broken", "role_id", hierErr.RoleID, "depth", hierErr.Depth, "cause", hierErr.Cause)
				out = append(out, perms...)
				continue
			}
			return nil, err
		}
		out = append(out, perms...)
	}

	if r.cache != nil {
		r.cache.Set(userID, organizationID, out)
	}
	return out, nil
}

// collectChain gathers permissions from the role and its ancestors. On a
// hierarchy error the permissions collected so far are returned alongside it.
func (r *RBACResolver) collectChain(ctx context.Context, role *Role) ([]EffectivePermission, error) {
	var out []EffectivePermission
	visited := map[string]struct{}{}
	current := role

	for depth := 0; ; depth++ {
		if depth >= r.maxDepth {
			return out, &RoleHierarchyError{RoleID: current.ID, Depth: depth, Cause: "max inheritance depth exceeded"}
		}
		if _, seen := visited[current.ID]; seen {
			return out, &RoleHierarchyError{RoleID: current.ID, Depth: depth, Cause: "cycle detected"}
		}
		visited[current.ID] = struct{}{}

		if current.IsActive {
			perms, err := r.roles.GetPermissionsForRole(ctx, current.ID)
			if err != nil {
				return nil, &RepositoryError{Op: "permissions for role", Err: err}
			}
			for _, p := range perms {
				if p == nil || !p.IsActive {
					continue
				}
				out = append(out, EffectivePermission{Permission: *p, RoleID: current.ID, RoleName: current.Name})
			}
		}

		if current.ParentRoleID == "" {
			return out, nil
		}
		parent, err := r.roles.GetRoleByID(ctx, current.ParentRoleID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				r.log.Debug("parent role missing", "role_id", current.ID, "parent_role_id", current.ParentRoleID)
				return out, nil
			}
			return nil, &RepositoryError{Op: "role by id", Err: err}
		}
		if !parent.IsActive && !r.skipInactiveParents {
			// An inactive ancestor terminates inheritance at this point;
			// with the skip option the walk hops over it instead.
			return out, nil
		}
		current = parent
	}
}

// MatchRequest filters the effective permissions down to candidates for
// this request: scope must match (wildcards allowed) and any static
// conditions on the permission must hold against the attribute context.
func (r *RBACResolver) MatchRequest(perms []EffectivePermission, resourceType, action string, attrs AttributeContext) []Candidate {
	var out []Candidate
	for _, ep := range perms {
		p := ep.Permission
		if !matchScope(p.ResourceType, resourceType) || !matchScope(p.Action, action) {
			continue
		}
		if len(p.Conditions) > 0 && !r.eval.EvaluateAll(p.Conditions, attrs) {
			continue
		}
		out = append(out, Candidate{
			Source:   SourceRBAC,
			Effect:   p.Effect,
			Priority: p.Priority,
			Exact:    p.ResourceType == resourceType && p.Action == action,
			RuleID:   p.ID,
			RoleID:   ep.RoleID,
		})
	}
	return out
}

// matchScope compares a rule scope field against the request value. "*" and
// "" match anything; otherwise pattern matching applies.
func matchScope(pattern, value string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	return pattern == value || utils.Match(value, pattern)
}
