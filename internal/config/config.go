// Package config loads the web server configuration from the environment.
// A .env file is read first when present, so local runs and containers share the same variable names.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Host string `env:"HOST" envDefault:""`
	Port int    `env:"PORT" envDefault:"3000"`

	// MongoDB
	MongoURI            string        `env:"MONGO_URI,required"`
	MongoDatabase       string        `env:"MONGO_DATABASE" envDefault:"usersdb"`
	MongoCollection     string        `env:"MONGO_COLLECTION" envDefault:"users"`
	MongoConnectTimeout time.Duration `env:"MONGO_CONNECT_TIMEOUT" envDefault:"10s"`

	// RabbitMQ. An empty URL disables user events.
	RabbitMQURL    string `env:"RABBITMQ_URL" envDefault:""`
	EventsExchange string `env:"EVENTS_EXCHANGE" envDefault:"users.events"`

	// Logging
	LogDevelopment bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`
	LogDebug       bool   `env:"LOG_DEBUG" envDefault:"false"`
	LogFile        string `env:"LOG_FILE" envDefault:"web-server.log"`

	CORSAllowOrigins string        `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// EventsEnabled reports whether a message broker is configured.
func (c *Config) EventsEnabled() bool {
	return strings.TrimSpace(c.RabbitMQURL) != ""
}

// Load reads the optional env files and parses the environment into a Config.
// A missing env file is not an error; a malformed one is.
func Load(envFiles ...string) (*Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid PORT %d", cfg.Port)
	}
	return cfg, nil
}
