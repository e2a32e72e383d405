package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("backend down")

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func newTestBreaker(opts CircuitBreakerOptions) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker("test", opts)
	cb.now = clock.now
	return cb, clock
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerOptions{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute})

	assert.ErrorIs(t, cb.Call(func() error { return errDown }), errDown)
	assert.Equal(t, StateClosed, cb.GetState())
	assert.ErrorIs(t, cb.Call(func() error { return errDown }), errDown)
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Call(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.Equal(t, int64(1), cb.GetStats().Rejected)
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerOptions{FailureThreshold: 2})

	_ = cb.Call(func() error { return errDown })
	require.NoError(t, cb.Call(func() error { return nil }))
	_ = cb.Call(func() error { return errDown })
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, 1, cb.GetStats().FailureCount)
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb, clock := newTestBreaker(CircuitBreakerOptions{FailureThreshold: 1, SuccessThreshold: 2, Timeout: 10 * time.Second})

	_ = cb.Call(func() error { return errDown })
	require.Equal(t, StateOpen, cb.GetState())

	clock.t = clock.t.Add(11 * time.Second)
	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateHalfOpen, cb.GetState())
	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(CircuitBreakerOptions{FailureThreshold: 1, SuccessThreshold: 2, Timeout: 10 * time.Second})

	_ = cb.Call(func() error { return errDown })
	clock.t = clock.t.Add(11 * time.Second)
	_ = cb.Call(func() error { return errDown })
	assert.Equal(t, StateOpen, cb.GetState())
	assert.ErrorIs(t, cb.Call(func() error { return nil }), ErrCircuitOpen)
}

func TestCircuitBreaker_IsFailureFilter(t *testing.T) {
	ignored := errors.New("bad request")
	cb, _ := newTestBreaker(CircuitBreakerOptions{
		FailureThreshold: 1,
		IsFailure:        func(err error) bool { return errors.Is(err, errDown) },
	})

	assert.ErrorIs(t, cb.Call(func() error { return ignored }), ignored)
	assert.Equal(t, StateClosed, cb.GetState())
	_ = cb.Call(func() error { return errDown })
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker("defaults", CircuitBreakerOptions{})
	stats := cb.GetStats()
	assert.Equal(t, "defaults", cb.Name())
	assert.Equal(t, 5, stats.FailureThreshold)
	assert.Equal(t, 3, stats.SuccessThreshold)
	assert.Equal(t, "1m0s", stats.Timeout)
	assert.Equal(t, "closed", stats.State)
}

func TestGetCircuitBreaker_Registry(t *testing.T) {
	a := GetCircuitBreaker("registry-b", DefaultCircuitBreakerOptions())
	b := GetCircuitBreaker("registry-b", CircuitBreakerOptions{FailureThreshold: 1})
	assert.Same(t, a, b)
	GetCircuitBreaker("registry-a", DefaultCircuitBreakerOptions())

	var names []string
	for _, s := range GetAllCircuitBreakers() {
		names = append(names, s.Name)
	}
	assert.Subset(t, names, []string{"registry-a", "registry-b"})
	for i := 1; i < len(names); i++ {
		assert.LessOrEqual(t, names[i-1], names[i])
	}
}
