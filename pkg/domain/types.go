package domain

import (
	"fmt"
	"strings"
	"time"
)

// Roles

// Role is an ordered privilege level. Higher values subsume lower ones.
type Role int

const (
	RoleAnonymous Role = iota
	RoleUser
	RoleAdmin
	RoleSuperAdmin
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "USER"
	case RoleAdmin:
		return "ADMIN"
	case RoleSuperAdmin:
		return "SUPER_ADMIN"
	default:
		return "ANONYMOUS"
	}
}

// HasAtLeast reports whether the role meets the required minimum.
func (r Role) HasAtLeast(required Role) bool {
	return r >= required
}

// ParseRole maps a role name to its ordered value. Unknown names map to
// RoleAnonymous so a corrupt session can never escalate.
func ParseRole(s string) Role {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "USER":
		return RoleUser
	case "ADMIN":
		return RoleAdmin
	case "SUPER_ADMIN", "SUPERADMIN":
		return RoleSuperAdmin
	default:
		return RoleAnonymous
	}
}

// Principal is the authenticated identity attached to a request, if any.
// It is produced by the identity subsystem; the gateway only reads it.
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// RequestContext carries everything the pipeline needs to decide on one
// request. Created fresh per request, never persisted.
type RequestContext struct {
	Identifier string // rate-limit key: principal ID when known, client IP otherwise
	IP         string
	UserAgent  string
	Path       string
	Method     string
	Principal  *Principal // nil means unauthenticated
}

// Route classification

// RouteClass decides the shape of a denial response: web routes redirect,
// API routes answer with a status code. Explicit configuration, never
// inferred from the path.
type RouteClass string

const (
	RouteClassWeb RouteClass = "web"
	RouteClassAPI RouteClass = "api"
)

// AccessRule grants a path prefix to a minimum role. Rules are static
// configuration, immutable during request handling.
type AccessRule struct {
	PathPrefix  string     `yaml:"path_prefix" json:"path_prefix"`
	Role        string     `yaml:"minimum_role" json:"minimum_role"`
	RouteClass  RouteClass `yaml:"route_class" json:"route_class"`
	MinimumRole Role       `yaml:"-" json:"-"` // parsed from Role at load time
}

// Limit classes

// LimitClass selects which rate-limit budget a request draws from.
type LimitClass string

const (
	LimitClassGeneral  LimitClass = "general"
	LimitClassLogin    LimitClass = "login"
	LimitClassRegister LimitClass = "register"
)

// Security events

// EventType tags a security-relevant occurrence in the audit trail.
type EventType string

const (
	EventRateLimitExceeded      EventType = "RATE_LIMIT_EXCEEDED"
	EventLoginRateLimitExceeded EventType = "LOGIN_RATE_LIMIT_EXCEEDED"
	EventSuspiciousActivity     EventType = "SUSPICIOUS_ACTIVITY_DETECTED"
	EventInvalidIdentifier      EventType = "INVALID_IDENTIFIER_ATTEMPT"
	EventUnauthorizedAdmin      EventType = "UNAUTHORIZED_ADMIN_ACCESS"
	EventUnauthorizedAPI        EventType = "UNAUTHORIZED_API_ACCESS"
	EventLoginFailed            EventType = "LOGIN_FAILED"
	EventLoginBlocked           EventType = "LOGIN_BLOCKED"
)

// SecurityEvent is one immutable entry in the audit trail. Once written it
// is never mutated or deleted by the gateway; retention is an external
// policy decision.
type SecurityEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"event_type"`
	UserID    string         `json:"user_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	IP        string         `json:"ip,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func (e *SecurityEvent) String() string {
	return fmt.Sprintf("%s user=%s ip=%s at=%s", e.Type, e.UserID, e.IP, e.Timestamp.Format(time.RFC3339))
}
