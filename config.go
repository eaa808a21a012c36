package offer

import (
	"crypto/tls"
	"time"
)

// Default configuration for clients of the signing service.
var defaultConfig = &HTTPConfig{
	DialTimeout:         5 * time.Second,  // Timeout for establishing TCP connections
	KeepAlive:           30 * time.Second, // Interval for TCP keep-alive probes
	IdleConnTimeout:     90 * time.Second, // Max idle time before closing a keep-alive connection
	MaxIdleConnsPerHost: 8,                // Maximum idle connections per host
	ReadIdleTimeout:     15 * time.Second, // Idle period before sending an HTTP/2 PING
	HTTPTimeout:         10 * time.Second, // Overall HTTP request timeout
	TLSConfig: &tls.Config{
		MinVersion: tls.VersionTLS12,
	},
}

// HTTPConfig defines transport and timeout settings used by clients.
type HTTPConfig struct {
	HTTPTimeout         time.Duration // Maximum duration for a complete HTTP request
	ReadIdleTimeout     time.Duration // Idle period before sending an HTTP/2 PING frame
	KeepAlive           time.Duration // Interval for TCP keep-alive probes
	DialTimeout         time.Duration // Timeout for establishing new TCP connections
	IdleConnTimeout     time.Duration // Max time an idle connection is kept alive
	MaxIdleConnsPerHost int           // Maximum idle connections per host
	TLSConfig           *tls.Config   // TLS settings for HTTPS connections
}

// DefaultConfig returns a copy of the default configuration.
// Modifying the copy does not affect the package defaults.
func DefaultConfig() HTTPConfig {
	configCopy := *defaultConfig
	if defaultConfig.TLSConfig != nil {
		configCopy.TLSConfig = defaultConfig.TLSConfig.Clone()
	}
	return configCopy
}
