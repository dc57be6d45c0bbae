package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	ServerAddress string `env:"SERVER_ADDRESS"`
	DatabaseDSN   string `env:"DATABASE_DSN"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RateLimit     int    `env:"RATE_LIMIT"`
	RateWindow    int    `env:"RATE_WINDOW"`
	ResolveHosts  bool   `env:"RESOLVE_HOSTS"`
}

func ParseFlags() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	envServerAddress := cfg.ServerAddress
	envDatabaseDSN := cfg.DatabaseDSN
	envRedisAddr := cfg.RedisAddr
	envRateLimit := cfg.RateLimit
	envRateWindow := cfg.RateWindow
	envResolveHosts := cfg.ResolveHosts

	flag.StringVar(&cfg.ServerAddress, "a", "localhost:8080", "Address of the server")
	flag.StringVar(&cfg.DatabaseDSN, "d", "", "PostgreSQL DSN (empty enables the in-memory store)")
	flag.StringVar(&cfg.RedisAddr, "r", "localhost:6379", "Redis address for rate limiting")
	flag.IntVar(&cfg.RateLimit, "l", 2, "Max create requests per caller per window")
	flag.IntVar(&cfg.RateWindow, "w", 60, "Rate limit window in seconds")
	flag.BoolVar(&cfg.ResolveHosts, "resolve", false, "Reject URLs whose host does not resolve")

	flag.Parse()

	if envServerAddress != "" {
		cfg.ServerAddress = envServerAddress
	}
	if envDatabaseDSN != "" {
		cfg.DatabaseDSN = envDatabaseDSN
	}
	if envRedisAddr != "" {
		cfg.RedisAddr = envRedisAddr
	}
	if envRateLimit != 0 {
		cfg.RateLimit = envRateLimit
	}
	if envRateWindow != 0 {
		cfg.RateWindow = envRateWindow
	}
	if envResolveHosts {
		cfg.ResolveHosts = true
	}

	cfg.applyDefaultValues()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("redis address cannot be empty")
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	if c.RateWindow <= 0 {
		return fmt.Errorf("rate window must be positive")
	}
	return nil
}

func (c *Config) applyDefaultValues() {
	if c.ServerAddress == "" {
		c.ServerAddress = getDefaultServerAddress()
	}

	if c.RedisAddr == "" {
		c.RedisAddr = getDefaultRedisAddr()
	}

	if c.RateLimit == 0 {
		c.RateLimit = 2
	}

	if c.RateWindow == 0 {
		c.RateWindow = 60
	}
}

func getDefaultServerAddress() string {
	return "localhost:8080"
}

func getDefaultRedisAddr() string {
	return "localhost:6379"
}
