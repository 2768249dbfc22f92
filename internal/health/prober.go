// Package health watches the reachability of the API proxy target so a
// backend that is down shows up in the logs before the first /api call fails.
package health

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/rathix/todo-devserver/internal/metrics"
)

// HTTPProber abstracts *http.Client for testability.
type HTTPProber interface {
	Do(req *http.Request) (*http.Response, error)
}

// TargetFunc reports the current proxy target, if any.
type TargetFunc func() (string, bool)

// Status is the last known reachability of a target.
type Status string

const (
	StatusUnknown     Status = "unknown"
	StatusReachable   Status = "reachable"
	StatusUnreachable Status = "unreachable"
)

const defaultProbeTimeout = 5 * time.Second

// Result describes one probe.
type Result struct {
	Target         string
	Status         Status
	HTTPCode       int
	ResponseTimeMs int64
	Err            error
}

// Prober periodically probes the proxy target.
type Prober struct {
	client   HTTPProber
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	target string
	status Status
}

// NewProber creates a prober. If logger is nil, a no-op logger is used.
func NewProber(client HTTPProber, interval time.Duration, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Prober{
		client:   client,
		interval: interval,
		timeout:  defaultProbeTimeout,
		logger:   logger,
		status:   StatusUnknown,
	}
}

// Run probes immediately and then every interval until ctx is cancelled.
// target is consulted on every tick so reloaded configs are picked up.
func (p *Prober) Run(ctx context.Context, target TargetFunc) {
	p.tick(ctx, target)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx, target)
		}
	}
}

// Status returns the last observed status and the target it applies to.
func (p *Prober) Status() (string, Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target, p.status
}

func (p *Prober) tick(ctx context.Context, target TargetFunc) {
	t, ok := target()
	if !ok {
		p.record(Result{Status: StatusUnknown})
		return
	}
	p.record(p.Probe(ctx, t))
}

// Probe sends one HEAD request to target. Any HTTP response, whatever its
// status, means the backend is reachable.
func (p *Prober) Probe(ctx context.Context, target string) Result {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return Result{Target: target, Status: StatusUnreachable, Err: err}
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return Result{Target: target, Status: StatusUnreachable, ResponseTimeMs: elapsed, Err: err}
	}
	resp.Body.Close()

	return Result{
		Target:         target,
		Status:         StatusReachable,
		HTTPCode:       resp.StatusCode,
		ResponseTimeMs: elapsed,
	}
}

// record stores res and logs only when the status or target changes.
func (p *Prober) record(res Result) {
	p.mu.Lock()
	changed := res.Target != p.target || res.Status != p.status
	p.target = res.Target
	p.status = res.Status
	p.mu.Unlock()

	metrics.SetTargetUp(res.Status == StatusReachable)

	if !changed {
		p.logger.Debug("proxy target probe completed",
			"target", res.Target,
			"status", string(res.Status),
			"responseTimeMs", res.ResponseTimeMs,
		)
		return
	}

	switch res.Status {
	case StatusReachable:
		p.logger.Info("Proxy target reachable",
			"target", res.Target,
			"httpCode", res.HTTPCode,
			"responseTimeMs", res.ResponseTimeMs,
		)
	case StatusUnreachable:
		p.logger.Warn("Proxy target unreachable, API requests will fail",
			"target", res.Target,
			"error", res.Err,
		)
	}
}
