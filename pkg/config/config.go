// Package config loads gateway settings from a YAML file and AEGIS_
// environment variables, with environment taking precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/aegis-gateway/aegis/pkg/domain"
	"github.com/aegis-gateway/aegis/pkg/nemesis"
)

type Config struct {
	Port        string `mapstructure:"port"`
	UpstreamURL string `mapstructure:"upstream_url"`
	LogLevel    string `mapstructure:"log_level"`

	// JWTSecret verifies session tokens issued by the identity provider.
	// Empty means every request is treated as anonymous.
	JWTSecret string `mapstructure:"jwt_secret"`

	GeneralLimit   int           `mapstructure:"general_limit"`
	GeneralWindow  time.Duration `mapstructure:"general_window"`
	LoginLimit     int           `mapstructure:"login_limit"`
	LoginWindow    time.Duration `mapstructure:"login_window"`
	RegisterLimit  int           `mapstructure:"register_limit"`
	RegisterWindow time.Duration `mapstructure:"register_window"`

	// LimitStrategy selects the algorithm: "fixed_window" (default) or
	// "token_bucket". The bucket variant smooths boundary bursts but is
	// in-process only.
	LimitStrategy string `mapstructure:"limit_strategy"`

	// LimitStore selects the counter backend: "memory" or "redis".
	// Only meaningful for the fixed window.
	LimitStore    string `mapstructure:"limit_store"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisPassword string `mapstructure:"redis_password"`

	// AuditStore selects the event backend: "memory" or "sqlite".
	AuditStore     string `mapstructure:"audit_store"`
	AuditDBPath    string `mapstructure:"audit_db_path"`
	AuditQueueSize int    `mapstructure:"audit_queue_size"`

	// RulesFile and SignaturesFile override the compiled-in access rules
	// and attack-tool signatures when set.
	RulesFile      string `mapstructure:"rules_file"`
	SignaturesFile string `mapstructure:"signatures_file"`

	LoginRedirect  string `mapstructure:"login_redirect"`
	DeniedRedirect string `mapstructure:"denied_redirect"`
}

// Load reads the optional config file at path, then applies AEGIS_*
// environment overrides (AEGIS_PORT, AEGIS_REDIS_ADDR, ...).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AEGIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("upstream_url", "http://localhost:3000")
	v.SetDefault("log_level", "INFO")
	v.SetDefault("jwt_secret", "")

	v.SetDefault("general_limit", 100)
	v.SetDefault("general_window", 15*time.Minute)
	v.SetDefault("login_limit", 5)
	v.SetDefault("login_window", 15*time.Minute)
	v.SetDefault("register_limit", 3)
	v.SetDefault("register_window", 15*time.Minute)

	v.SetDefault("limit_strategy", "fixed_window")
	v.SetDefault("limit_store", "memory")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_password", "")

	v.SetDefault("audit_store", "memory")
	v.SetDefault("audit_db_path", "aegis-audit.db")
	v.SetDefault("audit_queue_size", 0)

	v.SetDefault("rules_file", "")
	v.SetDefault("signatures_file", "")

	v.SetDefault("login_redirect", "/login")
	v.SetDefault("denied_redirect", "/")
}

// Validate rejects values that would make the gateway silently useless.
func (c *Config) Validate() error {
	switch c.LimitStrategy {
	case "fixed_window", "token_bucket":
	default:
		return fmt.Errorf("unknown limit_strategy %q (want fixed_window or token_bucket)", c.LimitStrategy)
	}
	if c.LimitStrategy == "token_bucket" && c.LimitStore == "redis" {
		return fmt.Errorf("token_bucket strategy is in-process and cannot use the redis store")
	}
	switch c.LimitStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown limit_store %q (want memory or redis)", c.LimitStore)
	}
	switch c.AuditStore {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown audit_store %q (want memory or sqlite)", c.AuditStore)
	}
	if c.GeneralLimit <= 0 || c.LoginLimit <= 0 || c.RegisterLimit <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	if c.GeneralWindow <= 0 || c.LoginWindow <= 0 || c.RegisterWindow <= 0 {
		return fmt.Errorf("rate limit windows must be positive")
	}
	if c.UpstreamURL == "" {
		return fmt.Errorf("upstream_url is required")
	}
	return nil
}

// LimitClasses converts the flat settings into the limiter's class table.
func (c *Config) LimitClasses() map[domain.LimitClass]nemesis.ClassConfig {
	return map[domain.LimitClass]nemesis.ClassConfig{
		domain.LimitClassGeneral:  {Limit: c.GeneralLimit, Window: c.GeneralWindow},
		domain.LimitClassLogin:    {Limit: c.LoginLimit, Window: c.LoginWindow},
		domain.LimitClassRegister: {Limit: c.RegisterLimit, Window: c.RegisterWindow},
	}
}
