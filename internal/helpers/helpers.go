package helpers

import (
	"math"
	"math/rand/v2"
	"time"
)

// IsJPEGData checks if the byte slice contains JPEG data by checking magic bytes
func IsJPEGData(data []byte) bool {
	if len(data) < 3 {
		return false
	}
	// JPEG magic bytes: FF D8 FF
	return data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF
}

// CalculateBackoffDelay calculates jittered exponential backoff delay
func CalculateBackoffDelay(attempt int, minDelay, maxDelay time.Duration, jitterPct int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}

	// Base delay with exponential backoff
	baseDelay := time.Duration(math.Pow(2, float64(attempt))) * time.Second

	// Clamp to configured min/max
	if baseDelay < minDelay {
		baseDelay = minDelay
	}
	if maxDelay > 0 && baseDelay > maxDelay {
		baseDelay = maxDelay
	}

	if jitterPct <= 0 {
		return baseDelay
	}

	// Add jitter (random percentage of the delay)
	jitter := time.Duration(float64(baseDelay) * float64(jitterPct) / 100.0 * (rand.Float64()*2 - 1))
	return baseDelay + jitter
}
