package config

import "time"

// ControllersConfig holds per-controller configuration
type ControllersConfig struct {
	MarketIntel MarketIntelConfig `mapstructure:"market_intel"`
	Extraction  ExtractionConfig  `mapstructure:"extraction"`
	Trading     TradingConfig     `mapstructure:"trading"`
}

// MarketIntelConfig parameterises the market-intel controller
type MarketIntelConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	System  string `mapstructure:"system"`

	// Minimum time before a market becomes eligible for scanning again;
	// negative disables idle sleeping between passes.
	RefreshFreq time.Duration `mapstructure:"refresh_freq"`

	// Which markets to include: all, no_fuel, no_exchanges
	Mode string `mapstructure:"mode" validate:"omitempty,oneof=all no_fuel no_exchanges"`
}

// ExtractionConfig parameterises the extract+haul controllers
type ExtractionConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	System       string `mapstructure:"system"`
	MaxMiners    int    `mapstructure:"max_miners" validate:"min=0"`
	MaxSiphoners int    `mapstructure:"max_siphoners" validate:"min=0"`
	MaxHaulers   int    `mapstructure:"max_haulers" validate:"min=0"`
}

// TradingConfig parameterises the greedy trader
type TradingConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	System        string        `mapstructure:"system"`
	MaxHaulers    int           `mapstructure:"max_haulers" validate:"min=0"`
	RefreshPeriod time.Duration `mapstructure:"refresh_period"`
}
