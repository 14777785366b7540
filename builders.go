package authorizer

// Builders provide a fluent API for assembling rules in code and tests.

// PolicyBuilder builds a Policy.
type PolicyBuilder struct {
	p *Policy
}

func NewPolicyBuilder() *PolicyBuilder {
	return &PolicyBuilder{p: &Policy{Effect: EffectAllow, ResourceType: "*", Action: "*", IsActive: true}}
}

func (b *PolicyBuilder) ID(id string) *PolicyBuilder           { b.p.ID = id; return b }
func (b *PolicyBuilder) Name(n string) *PolicyBuilder          { b.p.Name = n; return b }
func (b *PolicyBuilder) Effect(e Effect) *PolicyBuilder        { b.p.Effect = e; return b }
func (b *PolicyBuilder) ResourceType(rt string) *PolicyBuilder { b.p.ResourceType = rt; return b }
func (b *PolicyBuilder) Action(a string) *PolicyBuilder        { b.p.Action = a; return b }
func (b *PolicyBuilder) Organization(org string) *PolicyBuilder {
	b.p.OrganizationID = org
	return b
}
func (b *PolicyBuilder) Priority(p int) *PolicyBuilder     { b.p.Priority = p; return b }
func (b *PolicyBuilder) Active(active bool) *PolicyBuilder { b.p.IsActive = active; return b }
func (b *PolicyBuilder) Condition(attribute string, op Operator, value any) *PolicyBuilder {
	b.p.Conditions = append(b.p.Conditions, PolicyCondition{Attribute: attribute, Operator: op, Value: value})
	return b
}

// ConditionExpr parses a compact condition string; a bad expression panics,
// so it belongs in static rule definitions and tests.
func (b *PolicyBuilder) ConditionExpr(expr string) *PolicyBuilder {
	cond, err := ParseCondition(expr)
	if err != nil {
		panic(err)
	}
	b.p.Conditions = append(b.p.Conditions, cond)
	return b
}
func (b *PolicyBuilder) Build() *Policy { return b.p }

// RoleBuilder builds a Role.
type RoleBuilder struct {
	r *Role
}

func NewRoleBuilder() *RoleBuilder {
	return &RoleBuilder{r: &Role{IsActive: true}}
}

func (b *RoleBuilder) ID(id string) *RoleBuilder            { b.r.ID = id; return b }
func (b *RoleBuilder) Name(n string) *RoleBuilder           { b.r.Name = n; return b }
func (b *RoleBuilder) Organization(org string) *RoleBuilder { b.r.OrganizationID = org; return b }
func (b *RoleBuilder) Parent(parentID string) *RoleBuilder  { b.r.ParentRoleID = parentID; return b }
func (b *RoleBuilder) Active(active bool) *RoleBuilder      { b.r.IsActive = active; return b }
func (b *RoleBuilder) Permissions(ids ...string) *RoleBuilder {
	b.r.PermissionIDs = append(b.r.PermissionIDs, ids...)
	return b
}
func (b *RoleBuilder) Build() *Role { return b.r }

// PermissionBuilder builds a Permission.
type PermissionBuilder struct {
	p *Permission
}

func NewPermissionBuilder() *PermissionBuilder {
	return &PermissionBuilder{p: &Permission{Effect: EffectAllow, IsActive: true}}
}

func (b *PermissionBuilder) ID(id string) *PermissionBuilder { b.p.ID = id; return b }
func (b *PermissionBuilder) ResourceType(rt string) *PermissionBuilder {
	b.p.ResourceType = rt
	return b
}
func (b *PermissionBuilder) Action(a string) *PermissionBuilder    { b.p.Action = a; return b }
func (b *PermissionBuilder) Effect(e Effect) *PermissionBuilder    { b.p.Effect = e; return b }
func (b *PermissionBuilder) Priority(p int) *PermissionBuilder     { b.p.Priority = p; return b }
func (b *PermissionBuilder) Active(active bool) *PermissionBuilder { b.p.IsActive = active; return b }
func (b *PermissionBuilder) Condition(attribute string, op Operator, value any) *PermissionBuilder {
	b.p.Conditions = append(b.p.Conditions, PolicyCondition{Attribute: attribute, Operator: op, Value: value})
	return b
}
func (b *PermissionBuilder) Build() *Permission { return b.p }
