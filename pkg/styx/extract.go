package styx

import (
	"net"
	"net/http"
	"strings"

	"github.com/aegis-gateway/aegis/pkg/domain"
)

// ClientIP extracts the client address, preferring proxy headers.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// newRequestContext derives the per-request view the pipeline decides on.
// The identifier is the authenticated principal when known, so a user
// behind a shared NAT is throttled individually; otherwise the client IP.
func newRequestContext(r *http.Request, principal *domain.Principal) *domain.RequestContext {
	ip := ClientIP(r)

	identifier := ip
	if principal != nil {
		identifier = "user:" + principal.ID
	}

	return &domain.RequestContext{
		Identifier: identifier,
		IP:         ip,
		UserAgent:  r.UserAgent(),
		Path:       r.URL.Path,
		Method:     r.Method,
		Principal:  principal,
	}
}

// sanitizeQuery strips characters with injection potential from query keys
// and values before the request reaches a business handler. Structure is
// preserved; only the dangerous characters are removed.
func sanitizeQuery(r *http.Request) {
	q := r.URL.Query()
	if len(q) == 0 {
		return
	}

	clean := make(map[string][]string, len(q))
	for key, values := range q {
		ck := stripDangerous(key)
		for _, v := range values {
			clean[ck] = append(clean[ck], stripDangerous(v))
		}
	}

	out := r.URL.Query()
	for k := range out {
		delete(out, k)
	}
	for k, vs := range clean {
		for _, v := range vs {
			out.Add(k, v)
		}
	}
	r.URL.RawQuery = out.Encode()
}

const dangerousChars = `<>'";()&+`

func stripDangerous(s string) string {
	if !strings.ContainsAny(s, dangerousChars) {
		return s
	}
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(dangerousChars, r) {
			return -1
		}
		return r
	}, s)
}
