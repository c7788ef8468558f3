package anomaly

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGateCooldownFromCompletion(t *testing.T) {
	gate := NewCooldownGate(60 * time.Second)
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, gate.TryAcquire(t0))
	assert.False(t, gate.TryAcquire(t0.Add(time.Second)), "busy gate must refuse")

	completed := t0.Add(10 * time.Second)
	gate.Release(completed)

	assert.False(t, gate.TryAcquire(completed.Add(59*time.Second)))
	assert.True(t, gate.TryAcquire(completed.Add(60*time.Second)), "cooldown boundary is inclusive")
}

func TestGateAbortKeepsPreviousWindow(t *testing.T) {
	gate := NewCooldownGate(time.Minute)
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, gate.TryAcquire(t0))
	gate.Abort()

	status := gate.Status()
	assert.False(t, status.Processing)
	assert.True(t, status.LastEventTime.IsZero())
	assert.True(t, gate.TryAcquire(t0.Add(time.Second)))
}

func TestGateConcurrentAcquire(t *testing.T) {
	gate := NewCooldownGate(0)
	now := time.Now()

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if gate.TryAcquire(now) {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), granted.Load())
	assert.True(t, gate.Status().Processing)

	for i := 0; i < 10; i++ {
		assert.False(t, gate.TryAcquire(now.Add(time.Hour)))
	}

	gate.Release(now)
	assert.True(t, gate.TryAcquire(now))
}
