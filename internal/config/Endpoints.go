package config

import (
	"errors"
	"os"

	"github.com/rs/zerolog/log"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// NodeGRPC is the gRPC endpoint of the chain node used for bank queries.
	// Required only when POOL_MODE is "live"; the in-memory ledger needs no
	// node.
	NodeGRPC string
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	NodeGRPC = getEnvWithDefault("NODE_GRPC", "")
	if os.Getenv("POOL_MODE") == "live" && NodeGRPC == "" {
		return errors.New("environment variable NODE_GRPC is required when POOL_MODE is live")
	}

	log.Debug().
		Str("NodeGRPC", NodeGRPC).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}
