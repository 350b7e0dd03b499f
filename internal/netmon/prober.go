package netmon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Prober performs a lightweight connectivity round trip.
type Prober interface {
	Probe(ctx context.Context) error
}

// HTTPProber probes with a HEAD request against a small endpoint on the
// same origin as the data store.
type HTTPProber struct {
	url        string
	httpClient *http.Client
}

// NewHTTPProber creates a prober for the given URL.
func NewHTTPProber(url string, timeout time.Duration) *HTTPProber {
	return &HTTPProber{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Probe sends the request. Any response counts as connectivity; transport
// errors and timeouts do not.
func (p *HTTPProber) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return fmt.Errorf("create probe request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("probe: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return nil
}
