package anomaly

import (
	"sync"
	"time"

	"thermal-worker-go/internal/models"
)

// CooldownGate serializes evidence captures and rate limits them.
//
// TryAcquire checks and sets the busy flag atomically, so concurrent breach
// signals can never start two captures. The cooldown is measured from the
// completion of the previous capture.
type CooldownGate struct {
	mu         sync.Mutex
	cooldown   time.Duration
	lastEvent  time.Time
	processing bool
}

func NewCooldownGate(cooldown time.Duration) *CooldownGate {
	return &CooldownGate{cooldown: cooldown}
}

// TryAcquire returns true and marks the gate busy when no capture is in
// flight and the cooldown since the last event has elapsed.
func (g *CooldownGate) TryAcquire(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.processing {
		return false
	}
	if !g.lastEvent.IsZero() && now.Sub(g.lastEvent) < g.cooldown {
		return false
	}
	g.processing = true
	return true
}

// Release records a completed event and clears the busy flag.
func (g *CooldownGate) Release(completedAt time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.lastEvent = completedAt
	g.processing = false
}

// Abort clears the busy flag without starting a new cooldown window.
func (g *CooldownGate) Abort() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.processing = false
}

func (g *CooldownGate) Cooldown() time.Duration {
	return g.cooldown
}

func (g *CooldownGate) Status() models.GateStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	return models.GateStatus{
		LastEventTime: g.lastEvent,
		Processing:    g.processing,
	}
}
