package monitoring

import (
	"fmt"
	"sync"
	"time"

	"iceflux/internal/core/domain"
	"iceflux/internal/core/ports"
)

// CycleStatus is a point-in-time view of the collection loop for the ops endpoints.
type CycleStatus struct {
	StartedAt    time.Time           `json:"started_at"`
	Succeeded    uint64              `json:"cycles_succeeded"`
	Failed       uint64              `json:"cycles_failed"`
	Skipped      uint64              `json:"cycles_skipped"`
	LastSuccess  *domain.CycleReport `json:"last_success,omitempty"`
	LastError    string              `json:"last_error,omitempty"`
	LastErrorAt  *time.Time          `json:"last_error_at,omitempty"`
	LastFailStep domain.CycleStep    `json:"last_failed_step,omitempty"`
}

// CycleTracker remembers the latest cycle outcomes. It is read by the ops HTTP server and
// never consulted by the collector itself.
type CycleTracker struct {
	mu     sync.RWMutex
	now    func() time.Time
	status CycleStatus
	// lastHealthy is the time of the latest successful or lease-skipped cycle.
	lastHealthy time.Time
}

func NewCycleTracker(now func() time.Time) *CycleTracker {
	if now == nil {
		now = time.Now
	}
	started := now()
	return &CycleTracker{
		now:         now,
		status:      CycleStatus{StartedAt: started},
		lastHealthy: started,
	}
}

func (t *CycleTracker) CycleSucceeded(report domain.CycleReport) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Succeeded++
	t.status.LastSuccess = &report
	t.lastHealthy = t.now()
}

func (t *CycleTracker) CycleSkipped(domain.CycleReport) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Skipped++
	t.lastHealthy = t.now()
}

func (t *CycleTracker) CycleFailed(step domain.CycleStep, err error, _ time.Duration) {
	at := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Failed++
	t.status.LastFailStep = step
	t.status.LastErrorAt = &at
	if err != nil {
		t.status.LastError = err.Error()
	}
}

// Status returns a copy of the current status.
func (t *CycleTracker) Status() CycleStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	status := t.status
	if status.LastSuccess != nil {
		report := *status.LastSuccess
		status.LastSuccess = &report
	}
	if status.LastErrorAt != nil {
		at := *status.LastErrorAt
		status.LastErrorAt = &at
	}
	return status
}

// CheckFresh fails when no cycle succeeded within maxAge. Cycles skipped because another
// replica holds the lease count as healthy.
func (t *CycleTracker) CheckFresh(maxAge time.Duration) error {
	t.mu.RLock()
	last := t.lastHealthy
	t.mu.RUnlock()

	if age := t.now().Sub(last); age > maxAge {
		return fmt.Errorf("no successful cycle for %s (limit %s)", age.Round(time.Second), maxAge)
	}
	return nil
}

// Observers fans cycle outcomes out to several observers in order.
type Observers []ports.CycleObserver

func (o Observers) CycleSucceeded(report domain.CycleReport) {
	for _, obs := range o {
		obs.CycleSucceeded(report)
	}
}

func (o Observers) CycleSkipped(report domain.CycleReport) {
	for _, obs := range o {
		obs.CycleSkipped(report)
	}
}

func (o Observers) CycleFailed(step domain.CycleStep, err error, duration time.Duration) {
	for _, obs := range o {
		obs.CycleFailed(step, err, duration)
	}
}
