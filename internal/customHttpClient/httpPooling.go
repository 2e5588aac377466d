package customHttpClient

import (
	"net/http"

	"github.com/scopecraft/sowforge/internal/config"
)

var customTransport = &http.Transport{
	MaxIdleConns:        config.MaxIdleConns,
	MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
	IdleConnTimeout:     config.IdleConnTimeout,
}

// GetPooledClient returns a client sharing the process-wide transport, so
// repeated Databricks polling reuses connections.
func GetPooledClient() *http.Client {
	return &http.Client{Transport: customTransport}
}
