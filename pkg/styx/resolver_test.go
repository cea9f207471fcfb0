package styx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aegis-gateway/aegis/pkg/domain"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, claims jwt.MapClaims, secret []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestJWTResolver_BearerToken(t *testing.T) {
	resolver := NewJWTResolver(testSecret)

	token := signToken(t, jwt.MapClaims{
		"sub":  "user-123",
		"role": "ADMIN",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}, testSecret)

	req := httptest.NewRequest("GET", "/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	principal, err := resolver.Resolve(req)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if principal.ID != "user-123" {
		t.Errorf("got ID %q, want user-123", principal.ID)
	}
	if principal.Role != domain.RoleAdmin {
		t.Errorf("got role %v, want ADMIN", principal.Role)
	}
}

func TestJWTResolver_SessionCookie(t *testing.T) {
	resolver := NewJWTResolver(testSecret)

	token := signToken(t, jwt.MapClaims{"sub": "user-456"}, testSecret)
	req := httptest.NewRequest("GET", "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})

	principal, err := resolver.Resolve(req)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if principal.ID != "user-456" {
		t.Errorf("got ID %q, want user-456", principal.ID)
	}
	// No role claim defaults to USER.
	if principal.Role != domain.RoleUser {
		t.Errorf("got role %v, want USER", principal.Role)
	}
}

func TestJWTResolver_NoToken(t *testing.T) {
	resolver := NewJWTResolver(testSecret)

	req := httptest.NewRequest("GET", "/", nil)
	principal, err := resolver.Resolve(req)
	if err != nil {
		t.Fatalf("missing token must not be an error: %v", err)
	}
	if principal != nil {
		t.Errorf("got principal %v, want nil", principal)
	}
}

func TestJWTResolver_RejectsBadSignature(t *testing.T) {
	resolver := NewJWTResolver(testSecret)

	token := signToken(t, jwt.MapClaims{"sub": "user-123"}, []byte("other-secret"))
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	if _, err := resolver.Resolve(req); err == nil {
		t.Fatal("forged token must be rejected")
	}
}

func TestJWTResolver_RejectsExpired(t *testing.T) {
	resolver := NewJWTResolver(testSecret)

	token := signToken(t, jwt.MapClaims{
		"sub": "user-123",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}, testSecret)
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	if _, err := resolver.Resolve(req); err == nil {
		t.Fatal("expired token must be rejected")
	}
}

func TestJWTResolver_RejectsMissingSubject(t *testing.T) {
	resolver := NewJWTResolver(testSecret)

	token := signToken(t, jwt.MapClaims{"role": "ADMIN"}, testSecret)
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	if _, err := resolver.Resolve(req); err == nil {
		t.Fatal("token without subject must be rejected")
	}
}

func TestJWTResolver_UnknownRoleIsAnonymous(t *testing.T) {
	resolver := NewJWTResolver(testSecret)

	token := signToken(t, jwt.MapClaims{"sub": "user-789", "role": "WIZARD"}, testSecret)
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	principal, err := resolver.Resolve(req)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if principal.Role != domain.RoleAnonymous {
		t.Errorf("unknown role claim got %v, want ANONYMOUS", principal.Role)
	}
}

func TestBearerToken_Malformed(t *testing.T) {
	for _, header := range []string{"", "Bearer", "Basic dXNlcjpwYXNz", "Bearertoken"} {
		req := httptest.NewRequest("GET", "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if got := bearerToken(req); got != "" {
			t.Errorf("header %q yielded token %q, want empty", header, got)
		}
	}
}
