// Package config loads Shovel settings from the environment.
//
// Values come from process environment variables, optionally seeded from a
// .env file. Every variable is prefixed with SHOVEL_.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/Suhaibinator/shovel/pkg/envelope"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the service settings.
type Config struct {
	Addr        string        `env:"ADDR" envDefault:":8080"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"5s"`
	MaxBodySize int64         `env:"MAX_BODY_SIZE" envDefault:"1048576"`

	MetaTag       string `env:"META_TAG" envDefault:"meta"`
	DataTag       string `env:"DATA_TAG" envDefault:"data"`
	PaginationTag string `env:"PAGINATION_TAG" envDefault:"pagination"`

	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogDevelopment bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`

	MetricsNamespace string `env:"METRICS_NAMESPACE" envDefault:"shovel"`
	EnableTraceID    bool   `env:"TRACE_ID" envDefault:"true"`
}

// Prefix is prepended to every variable name.
const Prefix = "SHOVEL_"

// Load reads the optional .env files (default ".env") and parses the environment.
// Variables already set in the process take precedence over the files.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix}); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	return cfg, nil
}

// Tags returns the configured envelope key names.
func (c Config) Tags() envelope.Tags {
	return envelope.NewTags(c.MetaTag, c.DataTag, c.PaginationTag)
}

// Logger builds a zap logger at the configured level.
func (c Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("config: log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if c.LogDevelopment {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
