package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Host       string `mapstructure:"HOST"`
	Port       int    `mapstructure:"PORT" validate:"min=1,max=65535"`
	Debug      bool   `mapstructure:"DEBUG"`
	CORSOrigin string `mapstructure:"CORS_ORIGIN" validate:"required"`
	OpsPort    int    `mapstructure:"OPS_PORT" validate:"min=0,max=65535"` // 0 disables the ops listener

	NetworkSource string `mapstructure:"NETWORK_SOURCE" validate:"oneof=overpass file neo4j postgis"`
	OverpassURL   string `mapstructure:"OVERPASS_URL" validate:"required_if=NetworkSource overpass,omitempty,url"`
	GraphFile     string `mapstructure:"GRAPH_FILE" validate:"required_if=NetworkSource file"`
	Neo4jURI      string `mapstructure:"NEO4J_URI" validate:"required_if=NetworkSource neo4j"`
	Neo4jUser     string `mapstructure:"NEO4J_USER"`
	Neo4jPassword string `mapstructure:"NEO4J_PASSWORD"`
	Neo4jDatabase string `mapstructure:"NEO4J_DATABASE"`
	DatabaseURL   string `mapstructure:"DATABASE_URL" validate:"required_if=NetworkSource postgis"`

	CacheDir      string        `mapstructure:"CACHE_DIR"`
	CacheInMemory bool          `mapstructure:"CACHE_IN_MEMORY"`
	CacheTTL      time.Duration `mapstructure:"CACHE_TTL" validate:"gte=0"`

	DefaultRadiusM float64       `mapstructure:"DEFAULT_RADIUS_M" validate:"gt=0"`
	FetchTimeout   time.Duration `mapstructure:"FETCH_TIMEOUT" validate:"gte=0"`
	LookupTimeout  time.Duration `mapstructure:"LOOKUP_TIMEOUT" validate:"gte=0"`
	FilterWorkers  int           `mapstructure:"FILTER_WORKERS" validate:"gte=0"`
}

var defaults = map[string]any{
	"HOST":             "0.0.0.0",
	"PORT":             5000,
	"DEBUG":            false,
	"CORS_ORIGIN":      "*",
	"OPS_PORT":         9090,
	"NETWORK_SOURCE":   "overpass",
	"OVERPASS_URL":     "https://overpass-api.de/api/interpreter",
	"GRAPH_FILE":       "",
	"NEO4J_URI":        "",
	"NEO4J_USER":       "neo4j",
	"NEO4J_PASSWORD":   "",
	"NEO4J_DATABASE":   "",
	"DATABASE_URL":     "",
	"CACHE_DIR":        "",
	"CACHE_IN_MEMORY":  false,
	"CACHE_TTL":        "1h",
	"DEFAULT_RADIUS_M": 5000.0,
	"FETCH_TIMEOUT":    "30s",
	"LOOKUP_TIMEOUT":   "5s",
	"FILTER_WORKERS":   0,
}

// Load reads envFiles (".env" when none are given) into the process
// environment, then builds a validated Config from the environment and the
// defaults. A missing env file is not an error.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		slog.Info("No .env file found, using default environment variables")
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) OpsAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.OpsPort)
}

func (c *Config) CacheEnabled() bool {
	return c.CacheDir != "" || c.CacheInMemory
}
