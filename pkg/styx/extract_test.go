package styx

import (
	"net/http/httptest"
	"testing"

	"github.com/aegis-gateway/aegis/pkg/domain"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "203.0.113.9:44211",
			want:       "203.0.113.9",
		},
		{
			name:       "x-forwarded-for single hop",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.7"},
			want:       "198.51.100.7",
		},
		{
			name:       "x-forwarded-for chain takes first hop",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.2, 10.0.0.3"},
			want:       "198.51.100.7",
		},
		{
			name:       "x-real-ip fallback",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Real-IP": "198.51.100.8"},
			want:       "198.51.100.8",
		},
		{
			name:       "forwarded-for wins over real-ip",
			remoteAddr: "10.0.0.1:80",
			headers: map[string]string{
				"X-Forwarded-For": "198.51.100.7",
				"X-Real-IP":       "198.51.100.8",
			},
			want: "198.51.100.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewRequestContext_Identifier(t *testing.T) {
	req := httptest.NewRequest("GET", "/dashboard", nil)
	req.RemoteAddr = "203.0.113.9:44211"

	rc := newRequestContext(req, nil)
	if rc.Identifier != "203.0.113.9" {
		t.Errorf("anonymous identifier = %q, want client IP", rc.Identifier)
	}

	rc = newRequestContext(req, &domain.Principal{ID: "u7", Role: domain.RoleUser})
	if rc.Identifier != "user:u7" {
		t.Errorf("authenticated identifier = %q, want user:u7", rc.Identifier)
	}
	if rc.IP != "203.0.113.9" {
		t.Errorf("IP = %q, should stay the client address", rc.IP)
	}
}

func TestSanitizeQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		key   string
		want  string
	}{
		{
			name:  "script tag stripped",
			query: "q=%3Cscript%3Ealert%281%29%3C%2Fscript%3E",
			key:   "q",
			want:  "scriptalert1/script",
		},
		{
			name:  "sql quote stripped",
			query: "name=O%27Brien",
			key:   "name",
			want:  "OBrien",
		},
		{
			name:  "clean value untouched",
			query: "page=2",
			key:   "page",
			want:  "2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/search?"+tt.query, nil)
			sanitizeQuery(req)
			if got := req.URL.Query().Get(tt.key); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeQuery_EmptyQueryNoop(t *testing.T) {
	req := httptest.NewRequest("GET", "/search", nil)
	sanitizeQuery(req)
	if req.URL.RawQuery != "" {
		t.Errorf("raw query = %q, want empty", req.URL.RawQuery)
	}
}
