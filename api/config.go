// Package api provides an HTTP API server for driving one grove session: its
// conversation tree, turns, identity and conversation directory.
package api

import "github.com/papercomputeco/grove/pkg/metrics"

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8090")
	ListenAddr string

	// Metrics is exposed on /metrics when set.
	Metrics *metrics.Metrics
}
