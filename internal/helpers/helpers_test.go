package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsJPEGData(t *testing.T) {
	assert.True(t, IsJPEGData([]byte{0xFF, 0xD8, 0xFF, 0xE0}))
	assert.False(t, IsJPEGData([]byte{0x89, 'P', 'N', 'G'}))
	assert.False(t, IsJPEGData(nil))
}

func TestCalculateBackoffDelay(t *testing.T) {
	assert.Equal(t, time.Second, CalculateBackoffDelay(0, time.Second, 30*time.Second, 0))
	assert.Equal(t, 4*time.Second, CalculateBackoffDelay(2, time.Second, 30*time.Second, 0))
	assert.Equal(t, 30*time.Second, CalculateBackoffDelay(10, time.Second, 30*time.Second, 0))
	assert.Equal(t, 30*time.Second, CalculateBackoffDelay(1000, time.Second, 30*time.Second, 0))

	for i := 0; i < 100; i++ {
		d := CalculateBackoffDelay(3, time.Second, 30*time.Second, 20)
		assert.GreaterOrEqual(t, d, 6400*time.Millisecond)
		assert.LessOrEqual(t, d, 9600*time.Millisecond)
	}
}
