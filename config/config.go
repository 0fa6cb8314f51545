package config

import (
	"flag"
	"os"
	"strconv"
)

// Config holds all application configuration.
type Config struct {
	Port             int
	KeepAliveTimeout int
	Workers          int
	Env              string
}

// New loads configuration from flags, with environment overrides.
func New() *Config {
	cfg := &Config{}

	flag.IntVar(&cfg.Port, "port", 8080, "HTTP server port")
	flag.IntVar(&cfg.KeepAliveTimeout, "keep-alive-timeout", 5, "Idle connection timeout (seconds)")
	flag.IntVar(&cfg.Workers, "workers", 0, "Worker reactor count (0 = one per CPU)")
	flag.StringVar(&cfg.Env, "env", "development", "Environment (development/production)")

	flag.Parse()

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}

	return cfg
}
