// Package resttimer provides the cancellable rest countdown shown between sets. It only drives presentation and
// never touches session state.
package resttimer

import (
	"context"
	"sync"
	"time"
)

// Countdown ticks down from a number of seconds until it elapses or is cancelled.
type Countdown struct {
	mu        sync.Mutex
	remaining int
	cancel    context.CancelFunc
	done      chan struct{}
	elapsed   bool
}

type config struct {
	interval time.Duration
	onTick   func(remaining int)
}

// Option configures a Countdown.
type Option func(*config)

// WithInterval overrides the one-second tick.
func WithInterval(d time.Duration) Option {
	return func(c *config) {
		c.interval = d
	}
}

// WithOnTick registers a callback invoked with the remaining seconds after every tick, including the final 0.
func WithOnTick(fn func(remaining int)) Option {
	return func(c *config) {
		c.onTick = fn
	}
}

// Start begins a countdown of seconds. A non-positive duration returns a countdown that has already elapsed.
// Cancelling ctx cancels the countdown.
func Start(ctx context.Context, seconds int, opts ...Option) *Countdown {
	cfg := config{interval: time.Second, onTick: nil}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(ctx)
	c := &Countdown{
		mu:        sync.Mutex{},
		remaining: max(seconds, 0),
		cancel:    cancel,
		done:      make(chan struct{}),
		elapsed:   false,
	}
	if seconds <= 0 {
		c.elapsed = true
		close(c.done)
		cancel()
		return c
	}

	go c.run(ctx, cancel, cfg)
	return c
}

// run ticks until the countdown elapses or ctx is cancelled. It releases ctx either way.
func (c *Countdown) run(ctx context.Context, release context.CancelFunc, cfg config) {
	defer close(c.done)
	defer release()
	ticker := time.NewTicker(cfg.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			c.remaining = 0
			c.mu.Unlock()
			return
		case <-ticker.C:
			c.mu.Lock()
			c.remaining--
			remaining := c.remaining
			if remaining == 0 {
				c.elapsed = true
			}
			c.mu.Unlock()
			if cfg.onTick != nil {
				cfg.onTick(remaining)
			}
			if remaining == 0 {
				return
			}
		}
	}
}

// Remaining returns the seconds left. It is 0 after the countdown elapsed or was cancelled.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Cancel stops the countdown and clears the remaining time. It is safe to call more than once.
func (c *Countdown) Cancel() {
	c.cancel()
	<-c.done
}

// Done is closed when the countdown elapses or is cancelled.
func (c *Countdown) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the countdown ends and reports whether it ran to completion.
func (c *Countdown) Wait() bool {
	<-c.done
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}
