package objectprovider

import (
	"fmt"
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// newHTTPClient builds a client with a connection pool large enough for highly concurrent
// transfers. HTTP/2 is negotiated where the endpoint supports it.
func newHTTPClient(maxConnsPerHost int) (*http.Client, error) {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          max(200, maxConnsPerHost),
		MaxIdleConnsPerHost:   maxConnsPerHost,
		MaxConnsPerHost:       maxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	err := http2.ConfigureTransport(transport)
	if err != nil {
		return nil, fmt.Errorf("configuring HTTP/2 failed: %w", err)
	}
	// No overall timeout: large objects take as long as they take, passes have their own deadline.
	return &http.Client{Transport: transport}, nil
}
