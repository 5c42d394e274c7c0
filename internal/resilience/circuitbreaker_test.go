package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errFail = errors.New("venue unavailable")

func failing() (int, error) { return 0, errFail }
func succeeding() (int, error) { return 42, nil }

func testConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		CoolOff:          20 * time.Millisecond,
	}
}

func TestDo_PassesThroughWhenClosed(t *testing.T) {
	cb := NewCircuitBreaker("paper", testConfig())
	ctx := context.Background()

	v, err := Do(ctx, cb, succeeding)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if v != 42 {
		t.Errorf("value = %d", v)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("state = %s", cb.State())
	}
}

func TestDo_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker("paper", testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := Do(ctx, cb, failing); !errors.Is(err, errFail) {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %s, want OPEN", cb.State())
	}

	// Open circuit rejects without calling fn.
	called := false
	_, err := Do(ctx, cb, func() (int, error) {
		called = true
		return 0, nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("rejected call still reached the dependency")
	}

	stats := cb.Stats()
	if stats.TotalRejected != 1 || stats.TotalFailures != 3 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestDo_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("paper", testConfig())
	ctx := context.Background()

	Do(ctx, cb, failing)
	Do(ctx, cb, failing)
	Do(ctx, cb, succeeding)
	Do(ctx, cb, failing)
	Do(ctx, cb, failing)

	if cb.State() != CircuitClosed {
		t.Errorf("state = %s, want CLOSED after interleaved success", cb.State())
	}
}

func TestDo_RecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker("paper", testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		Do(ctx, cb, failing)
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %s", cb.State())
	}

	time.Sleep(30 * time.Millisecond)

	// First probe moves to half-open; two successes close it.
	if _, err := Do(ctx, cb, succeeding); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("state = %s, want HALF_OPEN", cb.State())
	}
	if _, err := Do(ctx, cb, succeeding); err != nil {
		t.Fatal(err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("state = %s, want CLOSED after recovery", cb.State())
	}
}

func TestDo_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("paper", testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		Do(ctx, cb, failing)
	}
	time.Sleep(30 * time.Millisecond)

	if _, err := Do(ctx, cb, failing); !errors.Is(err, errFail) {
		t.Fatal(err)
	}
	if cb.State() != CircuitOpen {
		t.Errorf("state = %s, want OPEN after failed probe", cb.State())
	}
}

func TestDo_ContextCancellationCountsAsFailure(t *testing.T) {
	cb := NewCircuitBreaker("paper", testConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := Do(ctx, cb, func() (int, error) {
		time.Sleep(time.Second)
		return 0, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
	if cb.Stats().TotalFailures != 1 {
		t.Errorf("stats = %+v", cb.Stats())
	}
}

func TestReset(t *testing.T) {
	cb := NewCircuitBreaker("paper", testConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		Do(ctx, cb, failing)
	}
	cb.Reset()
	if cb.State() != CircuitClosed {
		t.Errorf("state = %s", cb.State())
	}
	if _, err := Do(ctx, cb, succeeding); err != nil {
		t.Errorf("call after reset: %v", err)
	}
}
