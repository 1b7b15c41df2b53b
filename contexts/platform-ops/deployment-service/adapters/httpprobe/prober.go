// Package httpprobe implements ports.Prober over net/http.
package httpprobe

import (
	"context"
	"io"
	"net/http"
	"time"

	"basehub/contexts/platform-ops/deployment-service/ports"
)

const (
	defaultTimeout = 5 * time.Second
	maxBodyBytes   = 1 << 20
)

type Prober struct {
	client *http.Client
}

func NewProber(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Prober{client: &http.Client{Timeout: timeout}}
}

func (p *Prober) Get(ctx context.Context, url string) (ports.ProbeResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ports.ProbeResponse{}, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return ports.ProbeResponse{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return ports.ProbeResponse{}, err
	}
	return ports.ProbeResponse{StatusCode: resp.StatusCode, Body: body}, nil
}
