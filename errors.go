package authorizer

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// RoleHierarchyError reports a broken inheritance chain (cycle or depth
// overflow). Permissions collected before the break are still usable.
type RoleHierarchyError struct {
	RoleID string
	Depth  int
	Cause  string
}

func (e *RoleHierarchyError) Error() string {
	return fmt.Sprintf("role hierarchy broken at %s (depth %d): %s", e.RoleID, e.Depth, e.Cause)
}

// InvalidConditionError reports a condition that cannot be evaluated. The
// owning rule is excluded from the decision; evaluation itself fails closed.
type InvalidConditionError struct {
	Attribute string
	Operator  Operator
	Reason    string
}

func (e *InvalidConditionError) Error() string {
	return fmt.Sprintf("invalid condition %s %s: %s", e.Attribute, e.Operator, e.Reason)
}

// RepositoryError wraps a failure from a backing store. It aborts the
// authorization call; the caller receives a default-deny decision.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }

// ConfigurationError reports malformed rule data found at load or admin time.
type ConfigurationError struct {
	Subject string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %s", e.Subject, e.Reason)
}
