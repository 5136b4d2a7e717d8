package circuitbreaker

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 3, Timeout: time.Minute})

	failing := func() error { return fmt.Errorf("boom") }
	for i := 0; i < 3; i++ {
		require.Error(t, cb.Execute(failing))
	}
	assert.Equal(t, StateOpen, cb.State())

	// Calls are rejected without running while open.
	ran := false
	err := cb.Execute(func() error { ran = true; return nil })
	assert.Error(t, err)
	assert.False(t, ran)
}

func TestBreakerRecoversAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 1, Timeout: 10 * time.Millisecond})

	require.Error(t, cb.Execute(func() error { return fmt.Errorf("boom") }))
	assert.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)

	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 2, Timeout: time.Minute})

	require.Error(t, cb.Execute(func() error { return fmt.Errorf("boom") }))
	require.NoError(t, cb.Execute(func() error { return nil }))
	require.Error(t, cb.Execute(func() error { return fmt.Errorf("boom") }))

	assert.Equal(t, StateClosed, cb.State())
}
