// Package config loads the service configuration from YAML, applies defaults
// and environment overrides, and validates the result.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"freightgraph/internal/model"
)

type Config struct {
	Environment string          `yaml:"environment" validate:"omitempty,oneof=development production"`
	Server      ServerConfig    `yaml:"server"`
	Log         LogConfig       `yaml:"log"`
	Cache       CacheConfig     `yaml:"cache"`
	Broker      BrokerConfig    `yaml:"broker"`
	Explorer    ExplorerConfig  `yaml:"explorer"`
	Builder     BuilderConfig   `yaml:"builder"`
	Providers   ProvidersConfig `yaml:"providers"`
	Webhooks    WebhookConfig   `yaml:"webhooks"`

	// Path is the file the config was read from, empty when defaults were used.
	Path string `yaml:"-"`
}

type ServerConfig struct {
	Port       int        `yaml:"port" validate:"min=1,max=65535"`
	AdminToken string     `yaml:"adminToken"`
	Auth       AuthConfig `yaml:"auth"`
}

// AuthConfig enables bearer JWTs on the admin endpoints next to AdminToken.
type AuthConfig struct {
	Mode       string `yaml:"mode" validate:"omitempty,oneof=hmac jwks"`
	HMACSecret string `yaml:"hmacSecret"`
	JWKSURL    string `yaml:"jwksURL" validate:"omitempty,url"`
	Issuer     string `yaml:"issuer"`
	AdminRole  string `yaml:"adminRole"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
}

type CacheConfig struct {
	Backend     string `yaml:"backend" validate:"oneof=snapshot memory redis postgres sqlite"`
	Dir         string `yaml:"dir"`
	RedisURL    string `yaml:"redisURL"`
	DatabaseURL string `yaml:"databaseURL"`
	SQLitePath  string `yaml:"sqlitePath"`
}

type BrokerConfig struct {
	RedisURL string `yaml:"redisURL"`
}

// WebhookConfig lists endpoints told about finished explorations and builds.
type WebhookConfig struct {
	URLs        []string `yaml:"urls" validate:"dive,url"`
	Secret      string   `yaml:"secret"`
	MaxAttempts int      `yaml:"maxAttempts" validate:"gte=0,lte=20"`
	QueueSize   int      `yaml:"queueSize" validate:"gte=0"`
}

type ExplorerConfig struct {
	MaxHops           int           `yaml:"maxHops" validate:"min=1,max=10"`
	WallClock         time.Duration `yaml:"wallClock" validate:"gt=0"`
	MaxPorts          int           `yaml:"maxPorts" validate:"min=1"`
	MaxCompleteRoutes int           `yaml:"maxCompleteRoutes" validate:"min=1"`
	Window            time.Duration `yaml:"window" validate:"gt=0"`
	MaxTreeNodes      int           `yaml:"maxTreeNodes" validate:"min=1"`
}

type BuilderConfig struct {
	Deadline         time.Duration `yaml:"deadline" validate:"gt=0"`
	HubsPerSide      int           `yaml:"hubsPerSide" validate:"min=1,max=10"`
	LayoverAirports  int           `yaml:"layoverAirports" validate:"min=0,max=5"`
	LayoverBatchSize int           `yaml:"layoverBatchSize" validate:"min=1"`
	RoadSpeedKph     float64       `yaml:"roadSpeedKph" validate:"gt=0"`
	TransferBuffer   time.Duration `yaml:"transferBuffer" validate:"gte=0"`
	CargoTons        float64       `yaml:"cargoTons" validate:"gt=0"`
	Seed             int64         `yaml:"seed"`

	// HubDelayHours adds fixed hours to edges leaving the named hubs.
	HubDelayHours map[string]float64 `yaml:"hubDelayHours" validate:"dive,gte=0"`
	// Disruptions and Weather apply to every build.
	Disruptions []model.Disruption `yaml:"disruptions" validate:"dive"`
	Weather     *model.WeatherGrid `yaml:"weather"`
}

type ProviderConfig struct {
	BaseURL      string        `yaml:"baseURL" validate:"omitempty,url"`
	APIKey       string        `yaml:"apiKey"`
	TokenURL     string        `yaml:"tokenURL" validate:"omitempty,url"`
	ClientID     string        `yaml:"clientID"`
	ClientSecret string        `yaml:"clientSecret"`
	RPS          float64       `yaml:"rps" validate:"gte=0"`
	Burst        int           `yaml:"burst" validate:"gte=0"`
	Timeout      time.Duration `yaml:"timeout" validate:"gte=0"`
	MaxRetries   int           `yaml:"maxRetries" validate:"gte=0,lte=10"`
}

type HubsConfig struct {
	Catalog     string `yaml:"catalog"`
	DatabaseURL string `yaml:"databaseURL"`
}

type ProvidersConfig struct {
	Sea       ProviderConfig `yaml:"sea"`
	Air       ProviderConfig `yaml:"air"`
	Emissions ProviderConfig `yaml:"emissions"`
	Delay     ProviderConfig `yaml:"delay"`
	Hubs      HubsConfig     `yaml:"hubs"`
	// Fixtures is a JSON file of voyages and flights served when no
	// schedule service is configured.
	Fixtures string `yaml:"fixtures"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	c := &Config{}
	applyDefaults(c)
	return c
}

// Load reads path, or the first existing default location when path is empty.
// A missing file is not an error: defaults and environment overrides still apply.
func Load(path string) (*Config, error) {
	candidates := []string{path}
	if path == "" {
		candidates = []string{os.Getenv("FREIGHTGRAPH_CONFIG"), "config.yml", "config/config.yml"}
	}
	cfg := &Config{}
	for _, p := range candidates {
		if p == "" {
			continue
		}
		data, err := os.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) && path == "" {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", p, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", p, err)
		}
		cfg.Path = p
		break
	}
	applyDefaults(cfg)
	applyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Builder.Weather.Validate(); err != nil {
		return fmt.Errorf("invalid config: builder.weather: %w", err)
	}
	switch cfg.Cache.Backend {
	case "redis":
		if cfg.Cache.RedisURL == "" {
			return fmt.Errorf("invalid config: cache.redisURL required for redis backend")
		}
	case "postgres":
		if cfg.Cache.DatabaseURL == "" {
			return fmt.Errorf("invalid config: cache.databaseURL required for postgres backend")
		}
	}
	return nil
}

func applyDefaults(c *Config) {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "snapshot"
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = "data/cache"
	}
	if c.Cache.SQLitePath == "" {
		c.Cache.SQLitePath = "data/cache.db"
	}
	e := &c.Explorer
	if e.MaxHops == 0 {
		e.MaxHops = 5
	}
	if e.WallClock == 0 {
		e.WallClock = 180 * time.Second
	}
	if e.MaxPorts == 0 {
		e.MaxPorts = 50
	}
	if e.MaxCompleteRoutes == 0 {
		e.MaxCompleteRoutes = 100
	}
	if e.Window == 0 {
		e.Window = 30 * 24 * time.Hour
	}
	if e.MaxTreeNodes == 0 {
		e.MaxTreeNodes = 5000
	}
	b := &c.Builder
	if b.Deadline == 0 {
		b.Deadline = 5 * time.Minute
	}
	if b.HubsPerSide == 0 {
		b.HubsPerSide = 3
	}
	if b.LayoverAirports == 0 {
		b.LayoverAirports = 2
	}
	if b.LayoverBatchSize == 0 {
		b.LayoverBatchSize = 3
	}
	if b.RoadSpeedKph == 0 {
		b.RoadSpeedKph = 60
	}
	if b.TransferBuffer == 0 {
		b.TransferBuffer = 2 * time.Hour
	}
	if b.CargoTons == 0 {
		b.CargoTons = 1
	}
	if c.Webhooks.MaxAttempts == 0 {
		c.Webhooks.MaxAttempts = 5
	}
	if c.Webhooks.QueueSize == 0 {
		c.Webhooks.QueueSize = 256
	}
	for _, p := range []*ProviderConfig{&c.Providers.Sea, &c.Providers.Air, &c.Providers.Emissions, &c.Providers.Delay} {
		if p.RPS == 0 {
			p.RPS = 5
		}
		if p.Burst == 0 {
			p.Burst = 5
		}
		if p.Timeout == 0 {
			p.Timeout = 15 * time.Second
		}
		if p.MaxRetries == 0 {
			p.MaxRetries = 2
		}
	}
}

// applyEnv overlays the environment variables the deployment sets.
func applyEnv(c *Config) {
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.Port = n
		}
	}
	c.Server.AdminToken = envOr("ADMIN_TOKEN", c.Server.AdminToken)
	c.Server.Auth.Mode = strings.ToLower(envOr("AUTH_MODE", c.Server.Auth.Mode))
	c.Server.Auth.HMACSecret = envOr("AUTH_HMAC_SECRET", c.Server.Auth.HMACSecret)
	c.Server.Auth.JWKSURL = envOr("AUTH_JWKS_URL", c.Server.Auth.JWKSURL)
	c.Log.Level = strings.ToLower(envOr("LOG_LEVEL", c.Log.Level))
	c.Cache.Backend = envOr("CACHE_BACKEND", c.Cache.Backend)
	c.Cache.Dir = envOr("CACHE_DIR", c.Cache.Dir)
	c.Cache.SQLitePath = envOr("CACHE_SQLITE_PATH", c.Cache.SQLitePath)
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Cache.RedisURL = v
		c.Broker.RedisURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Cache.DatabaseURL = v
		c.Providers.Hubs.DatabaseURL = v
	}
	c.Providers.Hubs.Catalog = envOr("HUB_CATALOG", c.Providers.Hubs.Catalog)
	c.Providers.Fixtures = envOr("SCHEDULE_FIXTURES", c.Providers.Fixtures)
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		c.Webhooks.URLs = strings.Split(v, ",")
	}
	c.Webhooks.Secret = envOr("WEBHOOK_SECRET", c.Webhooks.Secret)
	if v := os.Getenv("WEBHOOK_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Webhooks.MaxAttempts = n
		}
	}
	for prefix, p := range map[string]*ProviderConfig{
		"SEA":       &c.Providers.Sea,
		"AIR":       &c.Providers.Air,
		"EMISSIONS": &c.Providers.Emissions,
		"DELAY":     &c.Providers.Delay,
	} {
		p.BaseURL = envOr(prefix+"_BASE_URL", p.BaseURL)
		p.APIKey = envOr(prefix+"_API_KEY", p.APIKey)
		p.TokenURL = envOr(prefix+"_TOKEN_URL", p.TokenURL)
		p.ClientID = envOr(prefix+"_CLIENT_ID", p.ClientID)
		p.ClientSecret = envOr(prefix+"_CLIENT_SECRET", p.ClientSecret)
	}
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
