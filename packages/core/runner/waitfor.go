package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/abdul-hamid-achik/restdd/packages/http"
	"github.com/abdul-hamid-achik/restdd/packages/scenario"
)

// WaitConfig describes a readiness probe run before a suite starts.
type WaitConfig struct {
	URL      string
	Status   int
	Timeout  time.Duration
	Interval time.Duration
}

// WaitForService polls a URL until it answers with the expected status or
// the timeout passes.
func WaitForService(ctx context.Context, transport http.Transport, cfg WaitConfig, logger *slog.Logger) error {
	if cfg.Status == 0 {
		cfg.Status = 200
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	logger.Info("waiting for service", "url", cfg.URL, "status", cfg.Status, "timeout", cfg.Timeout)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	var lastErr error
	var lastStatus int
	for {
		resp, err := transport.Do(ctx, http.NewRequest("GET", cfg.URL).SetTimeout(cfg.Interval))
		switch {
		case err != nil:
			lastErr = err
		case resp.StatusCode == cfg.Status:
			logger.Info("service ready", "url", cfg.URL, "status", resp.StatusCode)
			return nil
		default:
			lastStatus = resp.StatusCode
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("service %s not ready after %v: %w", cfg.URL, cfg.Timeout, lastErr)
			}
			return fmt.Errorf("service %s not ready after %v: got status %d, expected %d", cfg.URL, cfg.Timeout, lastStatus, cfg.Status)
		case <-ticker.C:
		}
	}
}

// WaitFor runs a readiness probe with the suite's transport and logger.
func (s *Suite) WaitFor(ctx context.Context, cfg WaitConfig) error {
	probe := New(&scenario.Scenario{}, s.opts...)
	return WaitForService(ctx, probe.transport, cfg, s.logger)
}
