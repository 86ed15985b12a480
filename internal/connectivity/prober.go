package connectivity

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/offline-pay/offline_pay/internal/scheduler"
)

// Prober polls the backend health endpoint and feeds the result into a Monitor.
type Prober struct {
	url     string
	client  *http.Client
	monitor *Monitor
	logger  *slog.Logger
}

// NewProber probes baseURL + "/healthz" with the given per-request timeout.
func NewProber(baseURL string, timeout time.Duration, monitor *Monitor, logger *slog.Logger) *Prober {
	return &Prober{
		url:     baseURL + "/healthz",
		client:  &http.Client{Timeout: timeout},
		monitor: monitor,
		logger:  logger,
	}
}

// Check performs one probe. Any 2xx answer counts as online.
func (p *Prober) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}

// Tick probes once and updates the monitor.
func (p *Prober) Tick(ctx context.Context) {
	err := p.Check(ctx)
	online := err == nil
	if p.monitor.Set(online) {
		if online {
			p.logger.Info("backend reachable")
		} else {
			p.logger.Warn("backend unreachable", "error", err)
		}
	}
}

// Start polls every interval until ctx is done. The returned scheduler can be stopped early.
func (p *Prober) Start(ctx context.Context, interval time.Duration) (*scheduler.Scheduler, error) {
	s, err := scheduler.New("connectivity-probe", interval, p.Tick, p.logger)
	if err != nil {
		return nil, err
	}
	s.Start(ctx)
	return s, nil
}
