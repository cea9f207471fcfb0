package styx

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aegis-gateway/aegis/pkg/domain"
)

// SessionCookieName is where browser sessions carry their token.
const SessionCookieName = "session"

// PrincipalResolver is the boundary to the identity subsystem: it turns a
// request's session token into a Principal. A nil principal with nil error
// means the request is simply unauthenticated.
type PrincipalResolver interface {
	Resolve(r *http.Request) (*domain.Principal, error)
}

// JWTResolver resolves principals from HMAC-signed session tokens issued by
// the identity provider. The gateway only reads the claims; it never issues
// or refreshes tokens.
type JWTResolver struct {
	secret []byte
}

// NewJWTResolver creates a resolver verifying with the shared secret.
func NewJWTResolver(secret []byte) *JWTResolver {
	return &JWTResolver{secret: secret}
}

// Resolve reads the bearer token (Authorization header first, session
// cookie second) and verifies it. Missing token is not an error; a present
// but invalid token is, so the caller can log it before treating the
// request as anonymous.
func (j *JWTResolver) Resolve(r *http.Request) (*domain.Principal, error) {
	tokenString := bearerToken(r)
	if tokenString == "" {
		if c, err := r.Cookie(SessionCookieName); err == nil {
			tokenString = c.Value
		}
	}
	if tokenString == "" {
		return nil, nil
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return j.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", token.Claims)
	}

	sub, _ := claims.GetSubject()
	if sub == "" {
		return nil, fmt.Errorf("session token has no subject")
	}

	role := domain.RoleUser
	if raw, ok := claims["role"].(string); ok {
		role = domain.ParseRole(raw)
	}

	return &domain.Principal{ID: sub, Role: role}, nil
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// StaticResolver returns a fixed principal. Useful in tests.
type StaticResolver struct {
	Principal *domain.Principal
}

func (s *StaticResolver) Resolve(*http.Request) (*domain.Principal, error) {
	return s.Principal, nil
}
