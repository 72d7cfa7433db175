package resttimer_test

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/camziny/z-fit-2.0/internal/resttimer"
)

func TestCountdown_Elapses(t *testing.T) {
	var (
		mu    sync.Mutex
		ticks []int
	)
	c := resttimer.Start(t.Context(), 3,
		resttimer.WithInterval(time.Millisecond),
		resttimer.WithOnTick(func(remaining int) {
			mu.Lock()
			ticks = append(ticks, remaining)
			mu.Unlock()
		}),
	)

	if !c.Wait() {
		t.Fatal("Wait() = false, want countdown to elapse")
	}
	if got := c.Remaining(); got != 0 {
		t.Errorf("Remaining() = %d, want 0", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if want := []int{2, 1, 0}; !slices.Equal(ticks, want) {
		t.Errorf("ticks = %v, want %v", ticks, want)
	}
}

func TestCountdown_Cancel(t *testing.T) {
	c := resttimer.Start(t.Context(), 120, resttimer.WithInterval(time.Hour))
	if got := c.Remaining(); got != 120 {
		t.Fatalf("Remaining() = %d, want 120", got)
	}

	c.Cancel()
	c.Cancel()

	if c.Wait() {
		t.Error("Wait() = true after cancel, want false")
	}
	if got := c.Remaining(); got != 0 {
		t.Errorf("Remaining() = %d after cancel, want 0", got)
	}
}

func TestCountdown_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	c := resttimer.Start(ctx, 60, resttimer.WithInterval(time.Hour))
	cancel()

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("countdown did not stop after context cancellation")
	}
}

func TestCountdown_ZeroSeconds(t *testing.T) {
	c := resttimer.Start(t.Context(), 0)
	if !c.Wait() {
		t.Error("Wait() = false for zero-second countdown, want true")
	}
}
