package resttimer

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestCountdown_run_ReleasesContextWhenElapsed(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	released := false
	c := &Countdown{
		mu:        sync.Mutex{},
		remaining: 2,
		cancel:    cancel,
		done:      make(chan struct{}),
		elapsed:   false,
	}
	c.run(ctx, func() { released = true }, config{interval: time.Millisecond, onTick: nil})

	if !released {
		t.Error("context not released after the countdown elapsed")
	}
	if !c.Wait() {
		t.Error("Wait() = false, want true for an elapsed countdown")
	}
}
