// Package cerberus guards the gate: it validates path structure and
// enforces role-based access over an ordered rule table.
package cerberus

import (
	"sort"
	"strings"

	"github.com/aegis-gateway/aegis/pkg/domain"
)

// AccessController evaluates RBAC rules against a request context.
// Rules are immutable after construction; evaluation is read-only and safe
// for concurrent use.
type AccessController struct {
	rules     []domain.AccessRule // sorted longest prefix first
	validator *PathValidator
}

// DefaultRules covers the standard surface of the backend this gateway
// fronts: admin consoles need ADMIN, platform operations SUPER_ADMIN, the
// authenticated app and API need USER, everything else is public.
func DefaultRules() []domain.AccessRule {
	return []domain.AccessRule{
		{PathPrefix: "/admin/platform", Role: "SUPER_ADMIN", RouteClass: domain.RouteClassWeb},
		{PathPrefix: "/admin/security", Role: "ADMIN", RouteClass: domain.RouteClassAPI},
		{PathPrefix: "/admin", Role: "ADMIN", RouteClass: domain.RouteClassWeb},
		{PathPrefix: "/api/admin", Role: "ADMIN", RouteClass: domain.RouteClassAPI},
		{PathPrefix: "/api", Role: "USER", RouteClass: domain.RouteClassAPI},
		{PathPrefix: "/dashboard", Role: "USER", RouteClass: domain.RouteClassWeb},
	}
}

// NewAccessController creates a controller over the given rules. Nil rules
// fall back to DefaultRules. Role names are parsed once here so request
// handling never compares strings.
func NewAccessController(rules []domain.AccessRule) *AccessController {
	if rules == nil {
		rules = DefaultRules()
	}

	parsed := make([]domain.AccessRule, len(rules))
	copy(parsed, rules)
	for i := range parsed {
		parsed[i].MinimumRole = domain.ParseRole(parsed[i].Role)
		if parsed[i].RouteClass == "" {
			parsed[i].RouteClass = domain.RouteClassAPI
		}
	}

	// Longest prefix first, so the first match is the most specific.
	sort.SliceStable(parsed, func(i, j int) bool {
		return len(parsed[i].PathPrefix) > len(parsed[j].PathPrefix)
	})

	return &AccessController{
		rules:     parsed,
		validator: NewPathValidator(),
	}
}

// ValidatePath applies structural identifier validation. See PathValidator.
func (c *AccessController) ValidatePath(path string) error {
	return c.validator.Validate(path)
}

// Authorize checks the request against the most specific matching rule.
// An unmatched path is public. A matched rule with no principal yields
// *AuthenticationError; a principal below the minimum role yields
// *AuthorizationError. The error carries the route class so the pipeline
// can pick between a status code and a redirect.
func (c *AccessController) Authorize(rc *domain.RequestContext) error {
	rule, ok := c.match(rc.Path)
	if !ok || rule.MinimumRole == domain.RoleAnonymous {
		return nil
	}

	if rc.Principal == nil {
		return NewAuthenticationError("no principal on protected route", rc.Path, rule.RouteClass)
	}

	if !rc.Principal.Role.HasAtLeast(rule.MinimumRole) {
		return NewAuthorizationError("insufficient role", rc.Path,
			rc.Principal.Role, rule.MinimumRole, rule.RouteClass)
	}

	return nil
}

func (c *AccessController) match(path string) (domain.AccessRule, bool) {
	for _, rule := range c.rules {
		if strings.HasPrefix(path, rule.PathPrefix) {
			return rule, true
		}
	}
	return domain.AccessRule{}, false
}
