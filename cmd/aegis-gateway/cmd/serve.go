package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aegis-gateway/aegis/pkg/argus"
	"github.com/aegis-gateway/aegis/pkg/cerberus"
	"github.com/aegis-gateway/aegis/pkg/config"
	"github.com/aegis-gateway/aegis/pkg/domain"
	"github.com/aegis-gateway/aegis/pkg/hermes"
	"github.com/aegis-gateway/aegis/pkg/mnemosyne"
	"github.com/aegis-gateway/aegis/pkg/nemesis"
	"github.com/aegis-gateway/aegis/pkg/styx"
	"github.com/aegis-gateway/aegis/pkg/talos"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway in front of the upstream backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cfg *config.Config) error {
	logger := newLogger(cfg.LogLevel)
	logger.Info("starting aegis gateway", "port", cfg.Port, "upstream", cfg.UpstreamURL)

	metrics := hermes.NewPrometheusMetrics()

	limiter, err := newLimiter(cfg)
	if err != nil {
		return err
	}
	defer limiter.Close()

	auditStore, err := newAuditStore(cfg)
	if err != nil {
		return err
	}
	defer auditStore.Close()

	var opts []mnemosyne.RecorderOption
	if cfg.AuditQueueSize > 0 {
		opts = append(opts, mnemosyne.WithQueueSize(cfg.AuditQueueSize))
	}
	recorder := mnemosyne.NewRecorder(auditStore, logger, metrics, opts...)

	detector, err := newDetector(cfg)
	if err != nil {
		return err
	}

	controller, err := newController(cfg)
	if err != nil {
		return err
	}

	gwCfg := styx.DefaultConfig()
	gwCfg.LoginRedirect = cfg.LoginRedirect
	gwCfg.DeniedRedirect = cfg.DeniedRedirect

	gateway := styx.NewGateway(
		limiter,
		detector,
		controller,
		recorder,
		styx.NewJWTResolver([]byte(cfg.JWTSecret)),
		metrics,
		logger,
		gwCfg,
	)

	upstream, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return fmt.Errorf("invalid upstream_url %q: %w", cfg.UpstreamURL, err)
	}
	proxy := httputil.NewSingleHostReverseProxy(upstream)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("upstream request failed", "error", err, "path", r.URL.Path)
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
	}

	// A failing upstream trips the breaker; the gateway then sheds load
	// with 503s instead of piling requests onto a sick backend.
	shield := talos.NewShield(talos.NewBreaker(5, 30*time.Second, 2), proxy, metrics, logger)

	// Application routes sit behind the gateway; /metrics does not, it is
	// scraped from inside the perimeter.
	router := mux.NewRouter()
	router.Handle("/admin/security/stats", styx.NewStatsHandler(recorder, logger, 0)).Methods(http.MethodGet)
	router.PathPrefix("/").Handler(shield)

	outer := http.NewServeMux()
	outer.Handle("/metrics", promhttp.Handler())
	outer.Handle("/", gateway.Wrap(router))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           outer,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("forced shutdown", "error", err)
		}
		// Flush queued audit events before the stores close.
		return recorder.Close(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("gateway stopped")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func newLimiter(cfg *config.Config) (nemesis.Limiter, error) {
	if cfg.LimitStrategy == "token_bucket" {
		return nemesis.NewTokenBucketLimiter(cfg.LimitClasses()), nil
	}

	var store nemesis.Store
	switch cfg.LimitStore {
	case "redis":
		redisStore, err := nemesis.NewRedisStore(cfg.RedisAddr, cfg.RedisDB, cfg.RedisPassword)
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		store = nemesis.NewMemoryStore()
	}
	return nemesis.NewFixedWindowLimiter(store, cfg.LimitClasses()), nil
}

func newAuditStore(cfg *config.Config) (mnemosyne.Store, error) {
	switch cfg.AuditStore {
	case "sqlite":
		return mnemosyne.NewSQLiteStore(cfg.AuditDBPath)
	default:
		return mnemosyne.NewMemoryStore(0), nil
	}
}

func newDetector(cfg *config.Config) (argus.Detector, error) {
	if cfg.SignaturesFile == "" {
		return argus.NewSignatureDetector(nil), nil
	}
	signatures, err := argus.LoadSignatures(cfg.SignaturesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load signatures: %w", err)
	}
	return argus.NewSignatureDetector(signatures), nil
}

func newController(cfg *config.Config) (*cerberus.AccessController, error) {
	var rules []domain.AccessRule
	if cfg.RulesFile != "" {
		loaded, err := cerberus.NewRuleLoader().LoadRules(cfg.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load access rules: %w", err)
		}
		rules = loaded
	}
	return cerberus.NewAccessController(rules), nil
}
