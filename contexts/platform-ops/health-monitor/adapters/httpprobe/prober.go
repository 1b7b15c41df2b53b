// Package httpprobe implements ports.Prober with HTTP GET health checks.
package httpprobe

import (
	"context"
	"io"
	"net/http"
	"time"

	"basehub/contexts/platform-ops/health-monitor/ports"
)

const defaultTimeout = 5 * time.Second

type Prober struct {
	client *http.Client
	clock  ports.Clock
}

func NewProber(timeout time.Duration, clock ports.Clock) *Prober {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Prober{
		client: &http.Client{Timeout: timeout},
		clock:  clock,
	}
}

func (p *Prober) Probe(ctx context.Context, service string, url string) ports.ProbeResult {
	started := p.now()
	result := ports.ProbeResult{
		Service:   service,
		URL:       url,
		CheckedAt: started,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Detail = err.Error()
		return result
	}
	resp, err := p.client.Do(req)
	result.LatencyMs = time.Since(started).Milliseconds()
	if err != nil {
		result.Detail = err.Error()
		return result
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	result.StatusCode = resp.StatusCode
	if resp.StatusCode == http.StatusOK {
		result.Healthy = true
	} else {
		result.Detail = resp.Status
	}
	return result
}

func (p *Prober) now() time.Time {
	if p.clock == nil {
		return time.Now().UTC()
	}
	return p.clock.Now()
}
