package config

import "time"

// FleetConfig holds fleet resource manager configuration
type FleetConfig struct {
	// How long a queued ship request stays valid
	RequestTTL time.Duration `mapstructure:"request_ttl" validate:"required"`

	// PID file location for single-instance enforcement
	PIDFile string `mapstructure:"pid_file"`
}
