package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/open-rails/castingkit/core"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		// TrustedProxies are CIDRs whose forwarded client headers are believed.
		TrustedProxies []string `yaml:"trusted_proxies"`
		RateLimit      struct {
			// Requests per client per window on protected routes; 0 disables.
			Requests int           `yaml:"requests"`
			Window   time.Duration `yaml:"window"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`

	Auth struct {
		Issuer       string        `yaml:"issuer"`
		Audience     string        `yaml:"audience"`
		JWKSURL      string        `yaml:"jwks_url"`
		Discover     bool          `yaml:"discover"`
		Algorithms   []string      `yaml:"algorithms"`
		Leeway       time.Duration `yaml:"leeway"`
		FetchTimeout time.Duration `yaml:"fetch_timeout"`
		CacheTTL     time.Duration `yaml:"cache_ttl"`
	} `yaml:"auth"`

	Storage struct {
		// memory | postgres
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"storage"`

	// Cache holds the shared copy of the issuer's key set document.
	Cache struct {
		// none | memory | redis
		Kind  string        `yaml:"kind"`
		TTL   time.Duration `yaml:"ttl"`
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load reads the YAML file at path (optional when empty), applies
// environment overrides and defaults, then validates.
func Load(path string) (*Config, error) {
	var c Config
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	c.applyEnvOverrides()
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if len(c.Server.CORSAllowedOrigins) == 0 {
		c.Server.CORSAllowedOrigins = []string{"*"}
	}
	if c.Server.RateLimit.Window == 0 {
		c.Server.RateLimit.Window = time.Minute
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "none"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = time.Hour
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "casting:"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func (c *Config) Validate() error {
	if err := c.Accept().Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if c.Server.RateLimit.Requests < 0 || c.Server.RateLimit.Window < 0 {
		return errors.New("server: rate_limit values must not be negative")
	}
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return errors.New("storage: dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("storage: unknown driver %q", c.Storage.Driver)
	}
	switch c.Cache.Kind {
	case "none", "memory":
	case "redis":
		if strings.TrimSpace(c.Cache.Redis.Addr) == "" {
			return errors.New("cache: redis.addr is required for the redis cache")
		}
	default:
		return fmt.Errorf("cache: unknown kind %q", c.Cache.Kind)
	}
	return nil
}

// TrustedProxyPrefixes parses Server.TrustedProxies. A bare address is
// taken as a single-host prefix.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.Server.TrustedProxies))
	for _, s := range c.Server.TrustedProxies {
		s = strings.TrimSpace(s)
		if !strings.Contains(s, "/") {
			a, err := netip.ParseAddr(s)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", s, err)
			}
			out = append(out, netip.PrefixFrom(a, a.BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", s, err)
		}
		out = append(out, p.Masked())
	}
	return out, nil
}

// Accept returns the token trust configuration.
func (c *Config) Accept() core.AcceptConfig {
	return core.AcceptConfig{
		Issuer:       c.Auth.Issuer,
		Audience:     c.Auth.Audience,
		JWKSURL:      c.Auth.JWKSURL,
		Discover:     c.Auth.Discover,
		Algorithms:   c.Auth.Algorithms,
		Leeway:       c.Auth.Leeway,
		FetchTimeout: c.Auth.FetchTimeout,
		CacheTTL:     c.Auth.CacheTTL,
	}.WithDefaults()
}

// ---- env helpers ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

func getEnvCSV(key string) ([]string, bool) {
	s, ok := getEnvStr(key)
	if !ok {
		return nil, false
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, true
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("CASTING_SERVER_ADDR"); ok {
		c.Server.Addr = v
	} else if v, ok := getEnvStr("PORT"); ok {
		c.Server.Addr = ":" + v
	}
	if v, ok := getEnvCSV("CASTING_CORS_ALLOWED_ORIGINS"); ok {
		c.Server.CORSAllowedOrigins = v
	}
	if v, ok := getEnvCSV("CASTING_TRUSTED_PROXIES"); ok {
		c.Server.TrustedProxies = v
	}
	if v, ok := getEnvInt("CASTING_RATE_LIMIT_REQUESTS"); ok {
		c.Server.RateLimit.Requests = v
	}
	if v, ok := getEnvDur("CASTING_RATE_LIMIT_WINDOW"); ok {
		c.Server.RateLimit.Window = v
	}

	if v, ok := getEnvStr("CASTING_AUTH_ISSUER"); ok {
		c.Auth.Issuer = v
	}
	if v, ok := getEnvStr("CASTING_AUTH_AUDIENCE"); ok {
		c.Auth.Audience = v
	}
	if v, ok := getEnvStr("CASTING_AUTH_JWKS_URL"); ok {
		c.Auth.JWKSURL = v
	}
	if v, ok := getEnvBool("CASTING_AUTH_DISCOVER"); ok {
		c.Auth.Discover = v
	}
	if v, ok := getEnvCSV("CASTING_AUTH_ALGORITHMS"); ok {
		c.Auth.Algorithms = v
	}
	if v, ok := getEnvDur("CASTING_AUTH_LEEWAY"); ok {
		c.Auth.Leeway = v
	}
	if v, ok := getEnvDur("CASTING_AUTH_FETCH_TIMEOUT"); ok {
		c.Auth.FetchTimeout = v
	}
	if v, ok := getEnvDur("CASTING_AUTH_CACHE_TTL"); ok {
		c.Auth.CacheTTL = v
	}

	if v, ok := getEnvStr("CASTING_STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("CASTING_STORAGE_DSN"); ok {
		c.Storage.DSN = v
	} else if v, ok := getEnvStr("DATABASE_URL"); ok {
		c.Storage.DSN = v
		if c.Storage.Driver == "" {
			c.Storage.Driver = "postgres"
		}
	}

	if v, ok := getEnvStr("CASTING_CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvDur("CASTING_CACHE_TTL"); ok {
		c.Cache.TTL = v
	}
	if v, ok := getEnvStr("CASTING_REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("CASTING_REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("CASTING_REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}

	if v, ok := getEnvStr("CASTING_LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}
	if v, ok := getEnvStr("CASTING_LOG_FORMAT"); ok {
		c.Log.Format = strings.ToLower(v)
	}
}
