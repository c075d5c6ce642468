// Package health implements liveness and readiness probes. Registered
// checks run on background tickers; a check flips unhealthy only after
// three consecutive failures so one slow probe does not bounce the pod.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
)

// CheckFunc probes one component. Nil means healthy.
type CheckFunc func(ctx context.Context) error

const failureThreshold = 3

// check state: the counters are touched only by the single run goroutine;
// healthy and lastErr are also read by HTTP handlers, hence atomic.
type check struct {
	name    string
	timeout time.Duration
	probe   CheckFunc

	healthy atomic.Bool
	lastErr atomic.Pointer[error]
	fails   int
}

func newCheck(name string, timeout time.Duration, probe CheckFunc) *check {
	c := &check{name: name, timeout: timeout, probe: probe}
	c.healthy.Store(true)
	return c
}

func (c *check) run(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.probe(probeCtx)
	c.lastErr.Store(&err)

	if err != nil {
		c.fails++
		if c.fails >= failureThreshold {
			c.healthy.Store(false)
		}
		return
	}
	c.fails = 0
	c.healthy.Store(true)
}

func (c *check) failure() (string, bool) {
	if c.healthy.Load() {
		return "", false
	}
	if p := c.lastErr.Load(); p != nil && *p != nil {
		return (*p).Error(), true
	}
	return "check is unhealthy", true
}

// Service manages the process's liveness and readiness checks. It starts
// not ready; call SetReady(true) once initialization completes.
type Service struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*check
	readiness []*check
	cancel    context.CancelFunc
}

// New creates an empty Service.
func New() *Service {
	return &Service{}
}

// AddLivenessCheck registers a liveness probe, answering "is the process
// functioning" (goroutine leaks, deadlocks).
func (s *Service) AddLivenessCheck(name string, timeout time.Duration, probe CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveness = append(s.liveness, newCheck(name, timeout, probe))
}

// AddReadinessCheck registers a readiness probe, answering "can the
// process serve traffic" (database reachable, caches warm).
func (s *Service) AddReadinessCheck(name string, timeout time.Duration, probe CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readiness = append(s.readiness, newCheck(name, timeout, probe))
}

// Start launches one background goroutine per registered check, each
// probing at the given interval until Stop or context cancellation.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	checks := append(append([]*check(nil), s.liveness...), s.readiness...)
	s.mu.Unlock()

	for _, c := range checks {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			c.run(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					c.run(ctx)
				}
			}
		}()
	}
}

// Stop cancels all probe goroutines. Safe to call repeatedly.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// SetReady flips the manual readiness gate. Set false during graceful
// shutdown to drain traffic before the listener closes.
func (s *Service) SetReady(ready bool) {
	s.ready.Store(ready)
}

// IsReady reports whether the manual gate is open and every readiness
// check passes.
func (s *Service) IsReady() bool {
	if !s.ready.Load() {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.readiness {
		if _, failed := c.failure(); failed {
			return false
		}
	}
	return true
}

// LiveEndpoint serves /livez: 200 when all liveness checks pass, 503 with
// per-check failure details otherwise.
func (s *Service) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	checks := append([]*check(nil), s.liveness...)
	s.mu.RUnlock()

	writeStatus(w, failures(checks))
}

// ReadyEndpoint serves /readyz: 200 only when the service is marked ready
// and every readiness check passes.
func (s *Service) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	checks := append([]*check(nil), s.readiness...)
	s.mu.RUnlock()

	fails := failures(checks)
	if !s.ready.Load() {
		fails["_readiness"] = "service is not ready"
	}
	writeStatus(w, fails)
}

func failures(checks []*check) map[string]string {
	fails := make(map[string]string)
	for _, c := range checks {
		if msg, failed := c.failure(); failed {
			fails[c.name] = msg
		}
	}
	return fails
}

func writeStatus(w http.ResponseWriter, fails map[string]string) {
	resp := struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks,omitempty"`
	}{Status: "ok"}

	status := http.StatusOK
	if len(fails) > 0 {
		resp.Status = "unhealthy"
		resp.Checks = fails
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// GoroutineCountCheck reports unhealthy when the goroutine count exceeds
// threshold. Useful as a liveness probe for goroutine leaks.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if count := runtime.NumGoroutine(); count > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", count, threshold)
		}
		return nil
	}
}
