package tracker

import (
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
)

// TransportConfig tunes the HTTP client used against the tracker API.
type TransportConfig struct {
	Timeout             time.Duration
	EnableHTTP2         bool
	MaxIdleConnsPerHost int
	DialTimeout         time.Duration
}

// DefaultTransportConfig returns the transport settings used when none are given.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Timeout:             20 * time.Second,
		EnableHTTP2:         true,
		MaxIdleConnsPerHost: 4,
		DialTimeout:         10 * time.Second,
	}
}

// newHTTPClient builds a pooled client, upgrading to HTTP/2 when enabled.
func newHTTPClient(cfg TransportConfig, logger zerolog.Logger) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConnsPerHost * 2,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	if cfg.EnableHTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			logger.Warn().Err(err).Msg("Failed to configure HTTP/2, falling back to HTTP/1.1")
		} else {
			logger.Debug().Msg("HTTP/2 support enabled")
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
}
