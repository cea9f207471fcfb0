package cerberus

import (
	"errors"
	"testing"

	"github.com/aegis-gateway/aegis/pkg/domain"
)

func ctxFor(path string, p *domain.Principal) *domain.RequestContext {
	return &domain.RequestContext{
		Identifier: "1.2.3.4",
		IP:         "1.2.3.4",
		Path:       path,
		Method:     "GET",
		Principal:  p,
	}
}

func TestAccessController_RoleMatrix(t *testing.T) {
	c := NewAccessController(nil)

	user := &domain.Principal{ID: "u1", Role: domain.RoleUser}
	admin := &domain.Principal{ID: "a1", Role: domain.RoleAdmin}
	super := &domain.Principal{ID: "s1", Role: domain.RoleSuperAdmin}

	tests := []struct {
		name      string
		path      string
		principal *domain.Principal
		wantAuthn bool // expect AuthenticationError
		wantAuthz bool // expect AuthorizationError
	}{
		{name: "public path anonymous", path: "/about", principal: nil},
		{name: "protected path anonymous", path: "/dashboard", principal: nil, wantAuthn: true},
		{name: "api anonymous", path: "/api/posts", principal: nil, wantAuthn: true},
		{name: "user on user path", path: "/dashboard/settings", principal: user},
		{name: "user on admin path", path: "/admin/users", principal: user, wantAuthz: true},
		{name: "admin on admin path", path: "/admin/users", principal: admin},
		{name: "admin on super admin path", path: "/admin/platform/tenants", principal: admin, wantAuthz: true},
		{name: "super admin on super admin path", path: "/admin/platform/tenants", principal: super},
		{name: "super admin everywhere", path: "/api/admin/keys", principal: super},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Authorize(ctxFor(tt.path, tt.principal))

			var authnErr *AuthenticationError
			var authzErr *AuthorizationError

			switch {
			case tt.wantAuthn:
				if !errors.As(err, &authnErr) {
					t.Errorf("want AuthenticationError, got %v", err)
				}
			case tt.wantAuthz:
				if !errors.As(err, &authzErr) {
					t.Errorf("want AuthorizationError, got %v", err)
				}
			default:
				if err != nil {
					t.Errorf("want admit, got %v", err)
				}
			}
		})
	}
}

func TestAccessController_MostSpecificPrefixWins(t *testing.T) {
	c := NewAccessController([]domain.AccessRule{
		{PathPrefix: "/admin", Role: "SUPER_ADMIN", RouteClass: domain.RouteClassWeb},
		{PathPrefix: "/admin/reports", Role: "USER", RouteClass: domain.RouteClassWeb},
	})

	user := &domain.Principal{ID: "u1", Role: domain.RoleUser}

	if err := c.Authorize(ctxFor("/admin/reports/weekly", user)); err != nil {
		t.Errorf("specific /admin/reports rule should admit USER, got %v", err)
	}

	var authzErr *AuthorizationError
	err := c.Authorize(ctxFor("/admin/users", user))
	if !errors.As(err, &authzErr) {
		t.Fatalf("broad /admin rule should deny USER, got %v", err)
	}
	if authzErr.RequiredRole != domain.RoleSuperAdmin {
		t.Errorf("got required role %s, want SUPER_ADMIN", authzErr.RequiredRole)
	}
	if authzErr.ObservedRole != domain.RoleUser {
		t.Errorf("got observed role %s, want USER", authzErr.ObservedRole)
	}
}

func TestAccessController_RouteClassExposed(t *testing.T) {
	c := NewAccessController(nil)

	var authnErr *AuthenticationError
	if err := c.Authorize(ctxFor("/dashboard", nil)); !errors.As(err, &authnErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	} else if authnErr.RouteClass != domain.RouteClassWeb {
		t.Errorf("dashboard is a web route, got class %s", authnErr.RouteClass)
	}

	if err := c.Authorize(ctxFor("/api/posts", nil)); !errors.As(err, &authnErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	} else if authnErr.RouteClass != domain.RouteClassAPI {
		t.Errorf("api is an API route, got class %s", authnErr.RouteClass)
	}
}

func TestRoleOrdering(t *testing.T) {
	if !domain.RoleSuperAdmin.HasAtLeast(domain.RoleAdmin) {
		t.Error("SUPER_ADMIN should subsume ADMIN")
	}
	if domain.RoleUser.HasAtLeast(domain.RoleAdmin) {
		t.Error("USER should not reach ADMIN")
	}
	if domain.ParseRole("admin") != domain.RoleAdmin {
		t.Error("ParseRole should be case-insensitive")
	}
	if domain.ParseRole("root") != domain.RoleAnonymous {
		t.Error("unknown role names must map to ANONYMOUS")
	}
}
