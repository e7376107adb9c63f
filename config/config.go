package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/toil-engine/generic"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	// Redis holds TOIL thresholds when Address is set; otherwise they live in SQLite.
	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Engine struct {
		FortnightAnchor   string  `yaml:"fortnight_anchor"`
		DefaultDailyHours float64 `yaml:"default_daily_hours"`
	} `yaml:"engine"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if _, err := cfg.Fortnight(); err != nil {
		return nil, err
	}

	if cfg.Database.Path != ":memory:" {
		if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/toil.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
}

// Fortnight returns the week-parity anchor. An empty value uses the default Monday.
func (c *Config) Fortnight() (generic.FortnightConfig, error) {
	if c.Engine.FortnightAnchor == "" {
		return generic.DefaultFortnight(), nil
	}
	anchor, err := generic.ParseDate(c.Engine.FortnightAnchor)
	if err != nil {
		return generic.FortnightConfig{}, fmt.Errorf("engine.fortnight_anchor: %w", err)
	}
	return generic.FortnightConfig{Anchor: anchor}, nil
}

// DailyFallback is the day target for users without a schedule. Zero means
// the engine default.
func (c *Config) DailyFallback() decimal.Decimal {
	if c.Engine.DefaultDailyHours <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(c.Engine.DefaultDailyHours)
}

func (c *Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (c *Config) RedisEnabled() bool {
	return c.Redis.Address != ""
}
