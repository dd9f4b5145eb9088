package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errGateway = errors.New("paygate unavailable")

func newTestBreaker(timeout time.Duration) *CircuitBreaker {
	return NewCircuitBreaker("paygate", Config{
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     timeout,
		ReadyToTrip: ConsecutiveFailures(3),
	})
}

func tripBreaker(cb *CircuitBreaker) {
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errGateway })
	}
}

func TestCircuitBreaker_ClosedPassesThrough(t *testing.T) {
	cb := newTestBreaker(time.Second)

	for i := 0; i < 5; i++ {
		require.NoError(t, cb.Execute(func() error { return nil }))
	}

	if cb.State() != StateClosed {
		t.Errorf("期望状态为CLOSED，实际%s", cb.State())
	}
	assert.Equal(t, uint32(5), cb.Counts().TotalSuccesses)
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := newTestBreaker(time.Minute)
	tripBreaker(cb)

	if cb.State() != StateOpen {
		t.Fatalf("期望状态为OPEN，实际%s", cb.State())
	}

	called := false
	err := cb.Execute(func() error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, ErrOpenState)
	if called {
		t.Error("熔断器打开时不应该调用实际函数")
	}
}

func TestCircuitBreaker_SuccessResetsConsecutiveFailures(t *testing.T) {
	cb := newTestBreaker(time.Minute)

	_ = cb.Execute(func() error { return errGateway })
	_ = cb.Execute(func() error { return errGateway })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return errGateway })

	assert.Equal(t, StateClosed, cb.State(), "成功请求应清零连续失败计数")
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	cb := newTestBreaker(50 * time.Millisecond)
	tripBreaker(cb)

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := newTestBreaker(50 * time.Millisecond)
	tripBreaker(cb)

	time.Sleep(80 * time.Millisecond)
	_ = cb.Execute(func() error { return errGateway })

	if cb.State() != StateOpen {
		t.Errorf("期望状态转回OPEN，实际%s", cb.State())
	}
}

// TestCircuitBreaker_HalfOpenLimitsProbes 半开状态只放行MaxRequests个探测请求
func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	cb := newTestBreaker(50 * time.Millisecond)
	tripBreaker(cb)
	time.Sleep(80 * time.Millisecond)

	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = cb.Execute(func() error {
			<-release
			return nil
		})
	}()

	// 等第一个探测请求占住名额
	require.Eventually(t, func() bool { return cb.Counts().Requests == 1 }, time.Second, 5*time.Millisecond)

	err := cb.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrOpenState)

	close(release)
	wg.Wait()
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	var changes []string

	cb := newTestBreaker(50 * time.Millisecond)
	cb.SetStateChangeCallback(func(name string, from State, to State) {
		changes = append(changes, from.String()+"->"+to.String())
	})

	tripBreaker(cb)
	time.Sleep(80 * time.Millisecond)
	_ = cb.Execute(func() error { return nil })

	assert.Equal(t, []string{"CLOSED->OPEN", "OPEN->HALF_OPEN", "HALF_OPEN->CLOSED"}, changes)
}

func TestCircuitBreaker_FailureRate(t *testing.T) {
	cb := NewCircuitBreaker("paygate", Config{
		Interval: time.Hour,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts Counts) bool {
			return counts.Requests >= 10 && counts.FailureRate() > 0.5
		},
	})

	for i := 0; i < 10; i++ {
		index := i
		_ = cb.Execute(func() error {
			if index < 4 {
				return nil
			}
			return errGateway
		})
	}

	if cb.State() != StateOpen {
		t.Errorf("期望状态为OPEN（失败率超过50%%），实际%s", cb.State())
	}
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker("paygate", Config{Timeout: time.Minute})

	for i := 0; i < 4; i++ {
		_ = cb.Execute(func() error { return errGateway })
	}
	assert.Equal(t, StateClosed, cb.State(), "默认阈值为连续5次失败")

	_ = cb.Execute(func() error { return errGateway })
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, "paygate", cb.Name())
}

func BenchmarkCircuitBreaker(b *testing.B) {
	cb := newTestBreaker(30 * time.Second)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.Execute(func() error { return nil })
	}
}
