package config

import (
	"github.com/rs/zerolog/log"
)

// Subgraph endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// GraphV3Endpoint is the Uniswap-v3-style subgraph URL for the configured
	// network. Primary source.
	GraphV3Endpoint string
	// GraphV2Endpoint is the v2-style subgraph URL exposing the same query
	// shape. Secondary source; results from both are unioned.
	GraphV2Endpoint string
)

// SubgraphSource names one upstream endpoint.
type SubgraphSource struct {
	Name string
	URL  string
}

// loadEndpointConfig loads subgraph endpoint configuration from environment
// variables. This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading subgraph endpoint configuration from environment variables...")

	var err error

	GraphV3Endpoint, err = getEnv("GRAPH_V3_ENDPOINT")
	if err != nil {
		return err
	}

	GraphV2Endpoint, err = getEnv("GRAPH_V2_ENDPOINT")
	if err != nil {
		return err
	}

	log.Debug().
		Str("GraphV3Endpoint", GraphV3Endpoint).
		Str("GraphV2Endpoint", GraphV2Endpoint).
		Msg("Subgraph endpoint configuration loaded successfully.")

	return nil
}

// SubgraphSources returns the configured upstream sources in query order.
func SubgraphSources() []SubgraphSource {
	return []SubgraphSource{
		{Name: "uniswap-v3", URL: GraphV3Endpoint},
		{Name: "uniswap-v2", URL: GraphV2Endpoint},
	}
}
