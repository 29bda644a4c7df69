package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_GATEWAY_ADDR is the base http url of a running server, e2e is skipped when empty
	GatewayAddr string `envconfig:"E2E_GATEWAY_ADDR"`
	// E2E_HEALTH_ADDR is the host:port of the gRPC health endpoint, optional
	HealthAddr string `envconfig:"E2E_HEALTH_ADDR"`
	// E2E_DEBUG_JSON allows dumping every websocket frame
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
