package config

import "time"

// SetDefaults sets default values for all configuration fields
func SetDefaults(cfg *Config) {
	// API defaults
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "https://api.spacetraders.io/v2"
	}
	if cfg.API.AgentTokenFile == "" {
		cfg.API.AgentTokenFile = "./agent_token.txt"
	}
	if cfg.API.AccountTokenFile == "" {
		cfg.API.AccountTokenFile = "./token.txt"
	}
	if cfg.API.RateLimit.Requests == 0 {
		cfg.API.RateLimit.Requests = 2
	}
	if cfg.API.RateLimit.Burst == 0 {
		cfg.API.RateLimit.Burst = 2
	}
	if cfg.API.Retry.MaxAttempts == 0 {
		cfg.API.Retry.MaxAttempts = 4
	}
	if cfg.API.Retry.BackoffBaseMillis == 0 {
		cfg.API.Retry.BackoffBaseMillis = 350
	}

	// Database defaults
	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
	}
	if cfg.Database.Type == "sqlite" && cfg.Database.Path == "" {
		cfg.Database.Path = "./data/fleetcore.db"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Pool.MaxOpen == 0 {
		cfg.Database.Pool.MaxOpen = 25
	}
	if cfg.Database.Pool.MaxIdle == 0 {
		cfg.Database.Pool.MaxIdle = 5
	}
	if cfg.Database.Pool.MaxLifetime == 0 {
		cfg.Database.Pool.MaxLifetime = 5 * time.Minute
	}

	// Fleet defaults
	if cfg.Fleet.RequestTTL == 0 {
		cfg.Fleet.RequestTTL = 40 * time.Second
	}
	if cfg.Fleet.PIDFile == "" {
		cfg.Fleet.PIDFile = "/tmp/fleet-daemon.pid"
	}

	// Controller defaults
	if cfg.Controllers.MarketIntel.RefreshFreq == 0 {
		cfg.Controllers.MarketIntel.RefreshFreq = 10 * time.Minute
	}
	if cfg.Controllers.MarketIntel.Mode == "" {
		cfg.Controllers.MarketIntel.Mode = "no_exchanges"
	}
	if cfg.Controllers.Extraction.MaxMiners == 0 {
		cfg.Controllers.Extraction.MaxMiners = 8
	}
	if cfg.Controllers.Extraction.MaxSiphoners == 0 {
		cfg.Controllers.Extraction.MaxSiphoners = 10
	}
	if cfg.Controllers.Extraction.MaxHaulers == 0 {
		cfg.Controllers.Extraction.MaxHaulers = 3
	}
	if cfg.Controllers.Trading.MaxHaulers == 0 {
		cfg.Controllers.Trading.MaxHaulers = 2
	}
	if cfg.Controllers.Trading.RefreshPeriod == 0 {
		cfg.Controllers.Trading.RefreshPeriod = 12 * time.Second
	}
}
