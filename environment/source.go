// Package environment fetches best-effort environmental context.
// Absence of environmental data never blocks an analysis stage.
package environment

import (
	"context"
	"net/http"
	"time"

	"github.com/penlight/vitalsum/logging"
	"github.com/penlight/vitalsum/models"
	"github.com/penlight/vitalsum/netclient"
)

// Source provides the current environment snapshot, if available.
type Source interface {
	Current(ctx context.Context) (*models.EnvironmentSnapshot, bool)
}

// HTTPSource fetches the snapshot from a weather endpoint. Any failure
// is reported as absence, never as an error.
type HTTPSource struct {
	baseURL string
	http    *netclient.Client
	timeout time.Duration
}

// NewHTTPSource creates a best-effort HTTP environment source. A zero
// timeout defaults to 2s.
func NewHTTPSource(baseURL string, httpClient *netclient.Client, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTPSource{
		baseURL: baseURL,
		http:    httpClient,
		timeout: timeout,
	}
}

// Current implements Source.
func (s *HTTPSource) Current(ctx context.Context) (*models.EnvironmentSnapshot, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.http.Execute(ctx, &netclient.Request{
		Method: http.MethodGet,
		URL:    s.baseURL + "/v1/current",
	})
	if err != nil {
		logging.LogDebugf("environment fetch skipped: %v", err)
		return nil, false
	}

	var snapshot models.EnvironmentSnapshot
	if err := netclient.DecodeJSON(resp, &snapshot); err != nil {
		logging.LogDebugf("environment decode skipped: %v", err)
		return nil, false
	}
	return &snapshot, true
}

// Static always returns the same snapshot; a nil snapshot means no
// environment data. Used for tests and offline runs.
type Static struct {
	Snapshot *models.EnvironmentSnapshot
}

// Current implements Source.
func (s *Static) Current(ctx context.Context) (*models.EnvironmentSnapshot, bool) {
	if s.Snapshot == nil {
		return nil, false
	}
	return s.Snapshot, true
}
