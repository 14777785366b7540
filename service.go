package authorizer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oarkflow/authorizer/logger"
)

// Service is the authorization façade: it fans a request out to the RBAC
// and ABAC resolvers, combines their candidates and records the decision.
type Service struct {
	rbac      *RBACResolver
	abac      *ABACResolver
	roles     RoleStore
	policies  PolicyStore
	resources ResourceStore
	audit     AuditStore
	eval      *ConditionEvaluator
	cache     *PermissionCache
	log       logger.Logger

	auditCh   chan *AuditEntry
	closeOnce sync.Once
	done      chan struct{}
}

// Option configures a Service at construction time.
type Option func(*Service)

func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithAuditStore enables the async decision trail. Entries are enqueued
// non-blocking; under backpressure they are dropped with an error log.
func WithAuditStore(store AuditStore) Option {
	return func(s *Service) { s.audit = store }
}

// WithPermissionCache memoizes resolved permission sets.
func WithPermissionCache(cache *PermissionCache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithSkipInactiveParents makes inheritance walks hop over inactive
// ancestors instead of terminating at them.
func WithSkipInactiveParents() Option {
	return func(s *Service) { s.rbac.skipInactiveParents = true }
}

func New(roles RoleStore, policies PolicyStore, resources ResourceStore, opts ...Option) *Service {
	eval := NewConditionEvaluator()
	s := &Service{
		roles:     roles,
		policies:  policies,
		resources: resources,
		eval:      eval,
		log:       logger.NewNullLogger(),
		done:      make(chan struct{}),
	}
	s.rbac = NewRBACResolver(roles, eval, s.log)
	s.abac = NewABACResolver(policies, eval, s.log)
	for _, opt := range opts {
		opt(s)
	}
	s.rbac.log = s.log
	s.rbac.cache = s.cache
	s.abac.log = s.log

	if s.audit != nil {
		s.auditCh = make(chan *AuditEntry, 1024)
		go s.auditWorker()
	}
	return s
}

// Close stops the audit worker after draining queued entries.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		if s.auditCh != nil {
			close(s.auditCh)
			<-s.done
		}
	})
}

func (s *Service) auditWorker() {
	defer close(s.done)
	for entry := range s.auditCh {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.audit.LogDecision(ctx, entry); err != nil {
			s.log.Error("audit write failed", "entry_id", entry.ID, "error", err.Error())
		}
		cancel()
	}
}

type rbacOutcome struct {
	candidates []Candidate
	err        error
}

type abacOutcome struct {
	candidates []Candidate
	err        error
}

// Authorize evaluates one request. The decision is always non-nil: store
// failures and context cancellation produce a default-deny with an error
// reason and Err set, never a panic or an allow.
func (s *Service) Authorize(ctx context.Context, actx *AuthorizationContext) *Decision {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return s.finish(start, actx, s.errorDecision(err))
	}

	enriched, err := s.enrichContext(ctx, actx)
	if err != nil {
		return s.finish(start, enriched, s.errorDecision(err))
	}
	attrs := ResolveAttributes(enriched)

	rbacCh := make(chan rbacOutcome, 1)
	abacCh := make(chan abacOutcome, 1)

	go func() {
		perms, err := s.rbac.Resolve(ctx, enriched.UserID, enriched.OrganizationID)
		if err != nil {
			rbacCh <- rbacOutcome{err: err}
			return
		}
		rbacCh <- rbacOutcome{candidates: s.rbac.MatchRequest(perms, enriched.ResourceType, enriched.Action, attrs)}
	}()
	go func() {
		results, err := s.abac.Resolve(ctx, enriched, attrs)
		if err != nil {
			abacCh <- abacOutcome{err: err}
			return
		}
		abacCh <- abacOutcome{candidates: candidatesFromPolicies(results)}
	}()

	var rbacCands, abacCands []Candidate
	for pending := 2; pending > 0; pending-- {
		select {
		case <-ctx.Done():
			return s.finish(start, enriched, s.errorDecision(ctx.Err()))
		case rb := <-rbacCh:
			if rb.err != nil {
				return s.finish(start, enriched, s.errorDecision(rb.err))
			}
			rbacCands = rb.candidates
		case ab := <-abacCh:
			if ab.err != nil {
				return s.finish(start, enriched, s.errorDecision(ab.err))
			}
			abacCands = ab.candidates
		}
	}

	return s.finish(start, enriched, Combine(rbacCands, abacCands))
}

// enrichContext merges the persisted resource record into the request
// context. Inline attributes win; an unknown resource is not an error.
func (s *Service) enrichContext(ctx context.Context, actx *AuthorizationContext) (*AuthorizationContext, error) {
	enriched := actx.Clone()
	if s.resources == nil || enriched.ResourceID == "" {
		return enriched, nil
	}
	res, err := s.resources.GetResource(ctx, enriched.ResourceType, enriched.ResourceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return enriched, nil
		}
		return enriched, &RepositoryError{Op: "resource lookup", Err: err}
	}
	if enriched.ResourceAttributes == nil {
		enriched.ResourceAttributes = map[string]any{}
	}
	for k, v := range res.Attributes {
		setIfAbsent(enriched.ResourceAttributes, k, v)
	}
	setIfAbsent(enriched.ResourceAttributes, "owner_id", res.OwnerID)
	setIfAbsent(enriched.ResourceAttributes, "organization_id", res.OrganizationID)
	setIfAbsent(enriched.ResourceAttributes, "is_active", res.IsActive)
	return enriched, nil
}

func (s *Service) errorDecision(err error) *Decision {
	return &Decision{
		Allowed:     false,
		Err:         err,
		EvaluatedAt: time.Now(),
		Reasons:     []Reason{{Kind: ReasonError, Message: err.Error()}},
	}
}

func (s *Service) finish(start time.Time, actx *AuthorizationContext, d *Decision) *Decision {
	d.Duration = time.Since(start)
	if d.Err != nil {
		s.log.Error("authorization failed",
			"user_id", actx.UserID, "resource_type", actx.ResourceType,
			"action", actx.Action, "error", d.Err.Error())
	} else {
		s.log.Debug("authorization decided",
			"user_id", actx.UserID, "resource_type", actx.ResourceType,
			"resource_id", actx.ResourceID, "action", actx.Action,
			"allowed", d.Allowed, "duration", d.Duration.String())
	}

	if s.auditCh != nil {
		entry := &AuditEntry{
			ID:             uuid.NewString(),
			Timestamp:      d.EvaluatedAt,
			UserID:         actx.UserID,
			OrganizationID: actx.OrganizationID,
			ResourceType:   actx.ResourceType,
			ResourceID:     actx.ResourceID,
			Action:         actx.Action,
			Allowed:        d.Allowed,
			Reasons:        d.Reasons,
			DurationMS:     float64(d.Duration.Microseconds()) / 1000,
		}
		select {
		case s.auditCh <- entry:
		default:
			s.log.Error("audit queue full, dropping entry", "entry_id", entry.ID)
		}
	}
	return d
}

// CanAccess is the boolean shortcut for a request against a concrete
// resource record.
func (s *Service) CanAccess(ctx context.Context, userID string, res *Resource, action string) bool {
	actx := &AuthorizationContext{
		UserID:             userID,
		OrganizationID:     res.OrganizationID,
		ResourceType:       res.ResourceType,
		ResourceID:         res.ResourceID,
		Action:             action,
		ResourceAttributes: res.Attributes,
	}
	return s.Authorize(ctx, actx).Allowed
}

// CheckActions evaluates several actions against one base context and
// returns the verdict per action.
func (s *Service) CheckActions(ctx context.Context, actx *AuthorizationContext, actions []string) map[string]bool {
	out := make(map[string]bool, len(actions))
	for _, action := range actions {
		req := actx.Clone()
		req.Action = action
		out[action] = s.Authorize(ctx, req).Allowed
	}
	return out
}

// CheckAny reports whether at least one of the actions is allowed.
func (s *Service) CheckAny(ctx context.Context, actx *AuthorizationContext, actions []string) bool {
	for _, action := range actions {
		req := actx.Clone()
		req.Action = action
		if s.Authorize(ctx, req).Allowed {
			return true
		}
	}
	return false
}

// CheckAll reports whether every action is allowed. An empty action list
// is false, not vacuously true.
func (s *Service) CheckAll(ctx context.Context, actx *AuthorizationContext, actions []string) bool {
	if len(actions) == 0 {
		return false
	}
	for _, action := range actions {
		req := actx.Clone()
		req.Action = action
		if !s.Authorize(ctx, req).Allowed {
			return false
		}
	}
	return true
}

// BatchAuthorize evaluates the requests in order and returns one decision
// per request, aligned by index.
func (s *Service) BatchAuthorize(ctx context.Context, reqs []*AuthorizationContext) []*Decision {
	out := make([]*Decision, len(reqs))
	for i, req := range reqs {
		out[i] = s.Authorize(ctx, req)
	}
	return out
}

// UserPermissions lists the distinct "resource_type:action" grants the user
// holds through roles, sorted for stable output. Deny permissions are
// excluded.
func (s *Service) UserPermissions(ctx context.Context, userID, organizationID string) ([]string, error) {
	perms, err := s.rbac.Resolve(ctx, userID, organizationID)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var out []string
	for _, ep := range perms {
		if ep.Permission.Effect != EffectAllow {
			continue
		}
		name := ep.Permission.ResourceType + ":" + ep.Permission.Action
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// AccessLog queries the persisted decision trail.
func (s *Service) AccessLog(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error) {
	if s.audit == nil {
		return nil, &ConfigurationError{Subject: "audit", Reason: "no audit store configured"}
	}
	return s.audit.GetAccessLog(ctx, filter)
}
