package config

import (
	"go.uber.org/fx"
)

// Module provides the project *Config, read from Path(). A missing file
// yields the defaults so the CLI works without one.
var Module = fx.Module("config", fx.Provide(
	func() (*Config, error) {
		return Load(Path())
	},
))
