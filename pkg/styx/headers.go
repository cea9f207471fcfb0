package styx

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aegis-gateway/aegis/pkg/nemesis"
)

// protectiveHeaders are attached to every response that passes through the
// gateway, admitted or rejected.
var protectiveHeaders = map[string]string{
	"X-Content-Type-Options":    "nosniff",
	"X-Frame-Options":           "DENY",
	"X-XSS-Protection":          "1; mode=block",
	"Referrer-Policy":           "strict-origin-when-cross-origin",
	"Permissions-Policy":        "camera=(), microphone=(), geolocation=()",
	"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
}

func writeProtectiveHeaders(w http.ResponseWriter) {
	h := w.Header()
	for name, value := range protectiveHeaders {
		h.Set(name, value)
	}
}

// writeRateLimitHeaders exposes the window state so well-behaved clients
// can pace themselves.
func writeRateLimitHeaders(w http.ResponseWriter, res nemesis.Result) {
	h := w.Header()
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", res.ResetAt.UTC().Format(time.RFC3339))
}

func writeRetryAfter(w http.ResponseWriter, res nemesis.Result) {
	w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfter(time.Now())))
}
