package cerberus

import (
	"fmt"

	"github.com/aegis-gateway/aegis/pkg/domain"
)

// ValidationError indicates structurally malformed input, such as a path
// segment that should be a canonical identifier but is not.
type ValidationError struct {
	Message string
	Segment string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(message, segment string) *ValidationError {
	return &ValidationError{Message: message, Segment: segment}
}

// AuthenticationError indicates that a protected route was requested
// without any principal.
type AuthenticationError struct {
	Message    string
	Path       string
	RouteClass domain.RouteClass
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication required: %s (path=%s)", e.Message, e.Path)
}

// NewAuthenticationError creates a new authentication error.
func NewAuthenticationError(message, path string, class domain.RouteClass) *AuthenticationError {
	return &AuthenticationError{Message: message, Path: path, RouteClass: class}
}

// AuthorizationError indicates a principal whose role does not meet the
// matched rule's minimum. The observed and required roles are for the
// audit trail only, never the client.
type AuthorizationError struct {
	Message      string
	Path         string
	ObservedRole domain.Role
	RequiredRole domain.Role
	RouteClass   domain.RouteClass
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("authorization denied: %s (path=%s, role=%s, required=%s)",
		e.Message, e.Path, e.ObservedRole, e.RequiredRole)
}

// NewAuthorizationError creates a new authorization error.
func NewAuthorizationError(message, path string, observed, required domain.Role, class domain.RouteClass) *AuthorizationError {
	return &AuthorizationError{
		Message:      message,
		Path:         path,
		ObservedRole: observed,
		RequiredRole: required,
		RouteClass:   class,
	}
}
