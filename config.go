package authorizer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the declarative seed format for roles and policies. It is what
// the authorizer-config tool validates and converts.
type Config struct {
	Version  int          `json:"version" yaml:"version"`
	Roles    []SeedRole   `json:"roles,omitempty" yaml:"roles,omitempty"`
	Policies []SeedPolicy `json:"policies,omitempty" yaml:"policies,omitempty"`
}

// SeedRole declares a role by name. Parent refers to another seed role by
// name. Grants is the compact "resource_type:action" allow shorthand;
// Permissions carries the structured form when effect, priority or
// conditions matter.
type SeedRole struct {
	Name        string           `json:"name" yaml:"name"`
	Parent      string           `json:"parent,omitempty" yaml:"parent,omitempty"`
	Grants      []string         `json:"grants,omitempty" yaml:"grants,omitempty"`
	Permissions []SeedPermission `json:"permissions,omitempty" yaml:"permissions,omitempty"`
}

type SeedPermission struct {
	ResourceType string          `json:"resource_type" yaml:"resource_type"`
	Action       string          `json:"action" yaml:"action"`
	Effect       Effect          `json:"effect,omitempty" yaml:"effect,omitempty"`
	Priority     int             `json:"priority,omitempty" yaml:"priority,omitempty"`
	Conditions   []SeedCondition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

type SeedPolicy struct {
	Name         string          `json:"name" yaml:"name"`
	Effect       Effect          `json:"effect" yaml:"effect"`
	ResourceType string          `json:"resource_type" yaml:"resource_type"`
	Action       string          `json:"action" yaml:"action"`
	Priority     int             `json:"priority,omitempty" yaml:"priority,omitempty"`
	Conditions   []SeedCondition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// SeedCondition accepts either the structured triple or a compact Expr
// string like "user.roles intersects {resource.shared_with_roles}".
type SeedCondition struct {
	Attribute string   `json:"attribute,omitempty" yaml:"attribute,omitempty"`
	Operator  Operator `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value     any      `json:"value,omitempty" yaml:"value,omitempty"`
	Expr      string   `json:"expr,omitempty" yaml:"expr,omitempty"`
}

func (sc SeedCondition) toCondition() (PolicyCondition, error) {
	if sc.Expr != "" {
		return ParseCondition(sc.Expr)
	}
	return PolicyCondition{Attribute: sc.Attribute, Operator: sc.Operator, Value: sc.Value}, nil
}

func LoadConfigYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigurationError{Subject: path, Reason: err.Error()}
	}
	return &cfg, nil
}

func LoadConfigJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigurationError{Subject: path, Reason: err.Error()}
	}
	return &cfg, nil
}

func (c *Config) ToYAML() ([]byte, error) { return yaml.Marshal(c) }

func (c *Config) ToJSON() ([]byte, error) { return json.MarshalIndent(c, "", "  ") }

// Validate checks cross-references and every condition without touching a
// store.
func (c *Config) Validate() error {
	eval := NewConditionEvaluator()
	byName := map[string]struct{}{}
	for _, r := range c.Roles {
		if r.Name == "" {
			return &ConfigurationError{Subject: "role", Reason: "empty name"}
		}
		if _, dup := byName[r.Name]; dup {
			return &ConfigurationError{Subject: "role " + r.Name, Reason: "duplicate role name"}
		}
		byName[r.Name] = struct{}{}
	}
	for _, r := range c.Roles {
		if r.Parent != "" {
			if _, ok := byName[r.Parent]; !ok {
				return &ConfigurationError{Subject: "role " + r.Name, Reason: fmt.Sprintf("unknown parent %q", r.Parent)}
			}
		}
		for _, g := range r.Grants {
			if _, _, err := splitGrant(g); err != nil {
				return err
			}
		}
		for _, sp := range r.Permissions {
			if sp.ResourceType == "" || sp.Action == "" {
				return &ConfigurationError{Subject: "role " + r.Name, Reason: "permission needs resource_type and action"}
			}
			for _, sc := range sp.Conditions {
				cond, err := sc.toCondition()
				if err != nil {
					return err
				}
				if err := eval.Validate(cond); err != nil {
					return err
				}
			}
		}
	}
	for _, sp := range c.Policies {
		if sp.Name == "" {
			return &ConfigurationError{Subject: "policy", Reason: "empty name"}
		}
		if sp.Effect != EffectAllow && sp.Effect != EffectDeny {
			return &ConfigurationError{Subject: "policy " + sp.Name, Reason: "effect must be allow or deny"}
		}
		for _, sc := range sp.Conditions {
			cond, err := sc.toCondition()
			if err != nil {
				return err
			}
			if err := eval.Validate(cond); err != nil {
				return err
			}
		}
	}
	return nil
}

func splitGrant(g string) (string, string, error) {
	parts := strings.SplitN(g, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", &ConfigurationError{Subject: "grant " + g, Reason: "expected resource_type:action"}
	}
	return parts[0], parts[1], nil
}

// DefaultConfig is the rule set seeded into a fresh organization: the
// owner > admin > member > viewer chain plus the document sharing policies.
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Roles: []SeedRole{
			{
				Name: "viewer",
				Grants: []string{
					"organization:read", "user:read", "role:read",
					"resource:read", "application:read",
				},
			},
			{
				Name:   "member",
				Parent: "viewer",
				Grants: []string{"resource:use", "application:use"},
			},
			{
				Name:   "admin",
				Parent: "member",
				Grants: []string{
					"organization:update", "user:*", "role:*",
					"permission:read", "resource:*", "application:*",
				},
			},
			{
				Name:   "owner",
				Parent: "admin",
				Grants: []string{
					"organization:*", "permission:*",
				},
			},
		},
		Policies: []SeedPolicy{
			{
				Name: "document-owner-access", Effect: EffectAllow,
				ResourceType: "document", Action: "*", Priority: 100,
				Conditions: []SeedCondition{{Expr: "user_id eq {resource.owner_id}"}},
			},
			{
				Name: "document-shared-roles", Effect: EffectAllow,
				ResourceType: "document", Action: "read", Priority: 90,
				Conditions: []SeedCondition{{Expr: "user.roles intersects {resource.shared_with_roles}"}},
			},
			{
				Name: "document-shared-users", Effect: EffectAllow,
				ResourceType: "document", Action: "read", Priority: 85,
				Conditions: []SeedCondition{{Expr: "user_id in {resource.shared_with_users}"}},
			},
			{
				Name: "document-archived-freeze", Effect: EffectDeny,
				ResourceType: "document", Action: "update", Priority: 150,
				Conditions: []SeedCondition{{Expr: "resource.is_archived eq true"}},
			},
		},
	}
}

// SeedOrganization materializes a config into the stores for one
// organization. Roles land in declaration order with a second pass for
// parents, so forward references work.
func (s *Service) SeedOrganization(ctx context.Context, organizationID, createdBy string, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	roleIDs := make(map[string]string, len(cfg.Roles))
	for _, sr := range cfg.Roles {
		role := &Role{OrganizationID: organizationID, Name: sr.Name, IsActive: true}
		if err := s.CreateRole(ctx, role); err != nil {
			return err
		}
		roleIDs[sr.Name] = role.ID

		for _, g := range sr.Grants {
			rt, action, err := splitGrant(g)
			if err != nil {
				return err
			}
			if err := s.seedPermission(ctx, role.ID, SeedPermission{ResourceType: rt, Action: action}); err != nil {
				return err
			}
		}
		for _, sp := range sr.Permissions {
			if err := s.seedPermission(ctx, role.ID, sp); err != nil {
				return err
			}
		}
	}
	for _, sr := range cfg.Roles {
		if sr.Parent == "" {
			continue
		}
		if err := s.SetRoleParent(ctx, roleIDs[sr.Name], roleIDs[sr.Parent]); err != nil {
			return err
		}
	}

	for _, sp := range cfg.Policies {
		conds := make([]PolicyCondition, 0, len(sp.Conditions))
		for _, sc := range sp.Conditions {
			cond, err := sc.toCondition()
			if err != nil {
				return err
			}
			conds = append(conds, cond)
		}
		p := &Policy{
			Name:           sp.Name,
			Effect:         sp.Effect,
			ResourceType:   sp.ResourceType,
			Action:         sp.Action,
			OrganizationID: organizationID,
			Conditions:     conds,
			Priority:       sp.Priority,
			IsActive:       true,
			CreatedBy:      createdBy,
		}
		if err := s.CreatePolicy(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) seedPermission(ctx context.Context, roleID string, sp SeedPermission) error {
	effect := sp.Effect
	if effect == "" {
		effect = EffectAllow
	}
	conds := make([]PolicyCondition, 0, len(sp.Conditions))
	for _, sc := range sp.Conditions {
		cond, err := sc.toCondition()
		if err != nil {
			return err
		}
		conds = append(conds, cond)
	}
	perm := &Permission{
		ResourceType: sp.ResourceType,
		Action:       sp.Action,
		Effect:       effect,
		Priority:     sp.Priority,
		Conditions:   conds,
		IsActive:     true,
	}
	if err := s.CreatePermission(ctx, perm); err != nil {
		return err
	}
	return s.AddPermissionToRole(ctx, roleID, perm.ID)
}
