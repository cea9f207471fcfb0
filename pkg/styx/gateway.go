// Package styx is the river every request must cross. It sequences the
// security checks in a fixed order and produces the final admit, throttle,
// or reject decision.
package styx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aegis-gateway/aegis/pkg/argus"
	"github.com/aegis-gateway/aegis/pkg/cerberus"
	"github.com/aegis-gateway/aegis/pkg/domain"
	"github.com/aegis-gateway/aegis/pkg/hermes"
	"github.com/aegis-gateway/aegis/pkg/mnemosyne"
	"github.com/aegis-gateway/aegis/pkg/nemesis"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// PrincipalContextKey is the context key for the authenticated principal.
const PrincipalContextKey contextKey = "styx.principal"

// Config is the gateway's static request-classification table.
type Config struct {
	// EndpointClasses maps POST paths to their tighter limit class
	// (login, register). Exact match on the path.
	EndpointClasses map[string]domain.LimitClass

	// LoginRedirect is where web-class routes send unauthenticated
	// browsers; DeniedRedirect is for authenticated-but-insufficient.
	LoginRedirect  string
	DeniedRedirect string
}

// DefaultConfig covers the standard credential endpoints.
func DefaultConfig() Config {
	return Config{
		EndpointClasses: map[string]domain.LimitClass{
			"/login":             domain.LimitClassLogin,
			"/register":          domain.LimitClassRegister,
			"/api/auth/login":    domain.LimitClassLogin,
			"/api/auth/register": domain.LimitClassRegister,
		},
		LoginRedirect:  "/login",
		DeniedRedirect: "/",
	}
}

// Gateway wraps an HTTP handler with the full security pipeline:
// anomaly check, general and endpoint rate limits, path validation, RBAC,
// protective headers. The first rejecting stage terminates the pipeline
// and emits exactly one audit event.
type Gateway struct {
	limiter    nemesis.Limiter
	detector   argus.Detector
	controller *cerberus.AccessController
	recorder   *mnemosyne.Recorder
	resolver   PrincipalResolver
	metrics    hermes.Metrics
	logger     *slog.Logger
	cfg        Config
}

// NewGateway assembles the pipeline. All collaborators are required except
// metrics, which defaults to a no-op.
func NewGateway(
	limiter nemesis.Limiter,
	detector argus.Detector,
	controller *cerberus.AccessController,
	recorder *mnemosyne.Recorder,
	resolver PrincipalResolver,
	metrics hermes.Metrics,
	logger *slog.Logger,
	cfg Config,
) *Gateway {
	if metrics == nil {
		metrics = hermes.NewNoopMetrics()
	}
	if cfg.EndpointClasses == nil {
		cfg = DefaultConfig()
	}
	return &Gateway{
		limiter:    limiter,
		detector:   detector,
		controller: controller,
		recorder:   recorder,
		resolver:   resolver,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
	}
}

// Wrap returns a handler enforcing the pipeline in front of next.
func (g *Gateway) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		principal, err := g.resolver.Resolve(r)
		if err != nil {
			// Invalid token: proceed anonymous, the trail still sees it.
			g.logger.Debug("session token rejected", "error", err, "ip", ClientIP(r))
			principal = nil
		}
		rc := newRequestContext(r, principal)

		// Protective headers go on every response, including rejects.
		writeProtectiveHeaders(w)

		// Stage 1: anomaly check. Cheapest reject first, before any
		// counter is spent.
		if suspicious, signature := g.detector.IsSuspicious(rc.UserAgent); suspicious {
			g.recorder.Record(domain.EventSuspiciousActivity, userID(rc), map[string]any{
				"signature": signature,
				"path":      rc.Path,
				"method":    rc.Method,
			}, rc.IP, rc.UserAgent)
			g.finish(w, rc, start, "anomaly", http.StatusForbidden, "Forbidden")
			return
		}

		// Stage 2: general rate limit.
		res, err := g.limiter.Check(r.Context(), rc.Identifier, domain.LimitClassGeneral)
		if err != nil {
			// Fail open: a broken counter store must not reject traffic.
			g.logger.Error("rate limit check failed", "error", err, "identifier", rc.Identifier)
		}
		if !res.Allowed {
			g.denyRateLimited(w, rc, start, domain.LimitClassGeneral, res)
			return
		}
		writeRateLimitHeaders(w, res)

		// Stage 3: endpoint-specific rate limit for credential endpoints.
		if class, ok := g.endpointClass(rc); ok {
			res, err := g.limiter.Check(r.Context(), rc.Identifier, class)
			if err != nil {
				g.logger.Error("rate limit check failed", "error", err, "identifier", rc.Identifier, "class", string(class))
			}
			if !res.Allowed {
				g.denyRateLimited(w, rc, start, class, res)
				return
			}
			writeRateLimitHeaders(w, res)
		}

		// Stage 4: structural path validation.
		if err := g.controller.ValidatePath(rc.Path); err != nil {
			var verr *cerberus.ValidationError
			details := map[string]any{"path": rc.Path}
			if errors.As(err, &verr) {
				details["segment"] = verr.Segment
			}
			g.recorder.Record(domain.EventInvalidIdentifier, userID(rc), details, rc.IP, rc.UserAgent)
			g.finish(w, rc, start, "path_validation", http.StatusBadRequest, "Bad Request")
			return
		}

		// Stage 5: RBAC.
		if err := g.controller.Authorize(rc); err != nil {
			g.denyAccess(w, r, rc, start, err)
			return
		}

		// Admit: hand the sanitized request and principal to the
		// business handler.
		sanitizeQuery(r)
		if rc.Principal != nil {
			r = r.WithContext(context.WithValue(r.Context(), PrincipalContextKey, rc.Principal))
		}

		g.observe(rc, start, "admit", "allow")
		next.ServeHTTP(w, r)
	})
}

// endpointClass reports the tighter limit class for credential endpoints.
// Only mutating requests draw from those budgets.
func (g *Gateway) endpointClass(rc *domain.RequestContext) (domain.LimitClass, bool) {
	if rc.Method != http.MethodPost {
		return "", false
	}
	class, ok := g.cfg.EndpointClasses[rc.Path]
	return class, ok
}

func (g *Gateway) denyRateLimited(w http.ResponseWriter, rc *domain.RequestContext, start time.Time, class domain.LimitClass, res nemesis.Result) {
	eventType := domain.EventRateLimitExceeded
	if class == domain.LimitClassLogin {
		eventType = domain.EventLoginRateLimitExceeded
	}
	g.recorder.Record(eventType, userID(rc), map[string]any{
		"path":  rc.Path,
		"class": string(class),
	}, rc.IP, rc.UserAgent)

	writeRateLimitHeaders(w, res)
	writeRetryAfter(w, res)
	g.finish(w, rc, start, "rate_limit", http.StatusTooManyRequests, "Too Many Requests")
}

func (g *Gateway) denyAccess(w http.ResponseWriter, r *http.Request, rc *domain.RequestContext, start time.Time, err error) {
	eventType := domain.EventUnauthorizedAPI
	if strings.HasPrefix(rc.Path, "/admin") {
		eventType = domain.EventUnauthorizedAdmin
	}

	details := map[string]any{"path": rc.Path, "role": observedRole(rc).String()}

	var authnErr *cerberus.AuthenticationError
	var authzErr *cerberus.AuthorizationError

	switch {
	case errors.As(err, &authnErr):
		g.recorder.Record(eventType, userID(rc), details, rc.IP, rc.UserAgent)
		if authnErr.RouteClass == domain.RouteClassWeb {
			g.observe(rc, start, "rbac", "redirect")
			http.Redirect(w, r, g.cfg.LoginRedirect, http.StatusSeeOther)
			return
		}
		g.finish(w, rc, start, "rbac", http.StatusUnauthorized, "Unauthorized")

	case errors.As(err, &authzErr):
		details["required"] = authzErr.RequiredRole.String()
		g.recorder.Record(eventType, userID(rc), details, rc.IP, rc.UserAgent)
		if authzErr.RouteClass == domain.RouteClassWeb {
			g.observe(rc, start, "rbac", "redirect")
			http.Redirect(w, r, g.cfg.DeniedRedirect, http.StatusSeeOther)
			return
		}
		g.finish(w, rc, start, "rbac", http.StatusForbidden, "Forbidden")

	default:
		g.logger.Error("unexpected authorization failure", "error", err, "path", rc.Path)
		g.finish(w, rc, start, "rbac", http.StatusForbidden, "Forbidden")
	}
}

// finish writes a minimal, non-revealing rejection. Internal detail lives
// only in the audit trail.
func (g *Gateway) finish(w http.ResponseWriter, rc *domain.RequestContext, start time.Time, stage string, status int, message string) {
	g.observe(rc, start, stage, "deny")
	http.Error(w, message, status)
}

func (g *Gateway) observe(rc *domain.RequestContext, start time.Time, stage, outcome string) {
	g.metrics.IncCounter("styx_decisions_total", 1,
		hermes.Label{Key: "stage", Value: stage},
		hermes.Label{Key: "outcome", Value: outcome},
	)
	g.metrics.ObserveHistogram("styx_pipeline_seconds", time.Since(start).Seconds(),
		hermes.Label{Key: "stage", Value: stage},
	)
}

func userID(rc *domain.RequestContext) string {
	if rc.Principal != nil {
		return rc.Principal.ID
	}
	return ""
}

func observedRole(rc *domain.RequestContext) domain.Role {
	if rc.Principal != nil {
		return rc.Principal.Role
	}
	return domain.RoleAnonymous
}

// GetPrincipal retrieves the authenticated principal from the request
// context, if the pipeline admitted one.
func GetPrincipal(ctx context.Context) (*domain.Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey).(*domain.Principal)
	return p, ok
}
