package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// SERVER_ADDR points at a running instance, e.g. http://localhost:8080.
	// Leaving it empty skips the whole suite.
	ServerAddr string `envconfig:"SERVER_ADDR"`
	// AUTH_SECRET must match the server's signing secret so the suite can
	// mint its own participant tokens.
	AuthSecret string `envconfig:"AUTH_SECRET" default:"e2e-secret"`
	// E2E_DEBUG_JSON allows dumping full request/response bodies as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
