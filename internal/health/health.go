// Package health exposes the liveness and readiness endpoints. Liveness is
// unconditional; readiness runs the registered dependency probes (postgres,
// redis) so a dead pool flips /readyz before the load balancer does.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Check probes one dependency. A nil error means healthy.
type Check func(ctx context.Context) error

type Manager struct {
	mu      sync.RWMutex
	checks  map[string]Check
	timeout time.Duration
}

func NewManager(timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Manager{
		checks:  map[string]Check{},
		timeout: timeout,
	}
}

// Register adds a named dependency probe. Registering the same name again
// replaces the previous probe.
func (m *Manager) Register(name string, check Check) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// Run executes every registered probe and returns the per-dependency result,
// "ok" or the error text.
func (m *Manager) Run(ctx context.Context) (map[string]string, bool) {
	m.mu.RLock()
	checks := make(map[string]Check, len(m.checks))
	for name, check := range m.checks {
		checks[name] = check
	}
	m.mu.RUnlock()

	results := make(map[string]string, len(checks))
	healthy := true
	for name, check := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
		if err := check(checkCtx); err != nil {
			results[name] = err.Error()
			healthy = false
		} else {
			results[name] = "ok"
		}
		cancel()
	}
	return results, healthy
}

func LivenessHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func ReadinessHandler(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		results, healthy := m.Run(c.Request.Context())
		if healthy {
			c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": results})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "checks": results})
	}
}
