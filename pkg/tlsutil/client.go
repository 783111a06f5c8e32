package tlsutil

import (
	"crypto/tls"
	"net/http"
	"time"
)

const defaultClientTimeout = 60 * time.Second

// CreateHTTPClient creates an HTTP client for calls to external services.
// Connections use the cached DNS dialer and require TLS 1.2 or newer.
func CreateHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
		// Use DNS caching to reduce DNS queries for the handful of hosts every
		// request talks to (the Octopus instance, GitHub, the model endpoint)
		DialContext:           defaultDialer().DialContext,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if timeout <= 0 {
		timeout = defaultClientTimeout
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
