package authorizer

import (
	"maps"
	"strings"
	"time"
)

// AttributeContext is the flattened attribute view conditions evaluate
// against. Top-level request fields sit alongside the "user", "resource"
// and "environment" maps, so both "user_id" and "user.department" resolve.
type AttributeContext map[string]any

// ResolveAttributes builds the attribute context for one request. Caller
// supplied environment values win over the computed ones.
func ResolveAttributes(actx *AuthorizationContext) AttributeContext {
	attrs := AttributeContext{
		"user_id":         actx.UserID,
		"organization_id": actx.OrganizationID,
		"resource_type":   actx.ResourceType,
		"resource_id":     actx.ResourceID,
		"action":          actx.Action,
	}

	user := maps.Clone(actx.UserAttributes)
	if user == nil {
		user = map[string]any{}
	}
	attrs["user"] = user

	resource := maps.Clone(actx.ResourceAttributes)
	if resource == nil {
		resource = map[string]any{}
	}
	attrs["resource"] = resource

	env := maps.Clone(actx.Environment)
	if env == nil {
		env = map[string]any{}
	}
	now := time.Now()
	setIfAbsent(env, "current_time", now.Format(time.RFC3339))
	setIfAbsent(env, "current_hour", now.Hour())
	setIfAbsent(env, "day_of_week", strings.ToLower(now.Weekday().String()))
	setIfAbsent(env, "is_weekend", now.Weekday() == time.Saturday || now.Weekday() == time.Sunday)
	setIfAbsent(env, "is_business_hours", now.Hour() >= 9 && now.Hour() < 17)
	attrs["environment"] = env

	return attrs
}

func setIfAbsent(m map[string]any, key string, v any) {
	if _, ok := m[key]; !ok {
		m[key] = v
	}
}

// Lookup resolves a dotted path ("resource.shared_with_roles") against the
// context, descending through nested maps.
func (a AttributeContext) Lookup(path string) (any, bool) {
	if v, ok := a[path]; ok {
		return v, true
	}
	parts := strings.Split(path, ".")
	var cur any = map[string]any(a)
	for _, p := range parts {
		switch m := cur.(type) {
		case map[string]any:
			v, ok := m[p]
			if !ok {
				return nil, false
			}
			cur = v
		case AttributeContext:
			v, ok := m[p]
			if !ok {
				return nil, false
			}
			cur = v
		case map[any]any:
			v, ok := m[p]
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}

// templatePath extracts the attribute path from a "{resource.owner_id}"
// style template. Returns false for plain values.
func templatePath(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	if len(s) < 3 || s[0] != '{' || s[len(s)-1] != '}' {
		return "", false
	}
	return s[1 : len(s)-1], true
}
