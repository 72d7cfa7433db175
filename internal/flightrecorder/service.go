// Package flightrecorder keeps a rolling in-memory execution trace and dumps it to disk when a request is too slow,
// so a timed out request can be inspected with go tool trace after the fact.
package flightrecorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/trace"
	"sync/atomic"
	"time"
)

const (
	defaultWindow   = 5 * time.Minute
	defaultMaxBytes = 64 * 1024 * 1024
	defaultCooldown = 30 * time.Minute
)

// Recorder owns a runtime flight recorder and the directory its snapshots are written to.
type Recorder struct {
	logger   *slog.Logger
	recorder *trace.FlightRecorder
	dir      string
	cooldown time.Duration
	now      func() time.Time
	// lastCapture is the Unix nanosecond timestamp of the last snapshot, 0 before the first one.
	lastCapture atomic.Int64
}

// Config configures a Recorder. Zero values fall back to defaults.
type Config struct {
	// Dir is where snapshots are written. It is created when missing.
	Dir string
	// Window is how much recent execution a snapshot covers.
	Window time.Duration
	// MaxBytes caps the in-memory trace buffer.
	MaxBytes uint64
	// Cooldown is the minimum time between two snapshots.
	Cooldown time.Duration
}

// New creates a Recorder. Call Start to begin recording.
func New(logger *slog.Logger, cfg Config) (*Recorder, error) {
	if cfg.Dir == "" {
		return nil, errors.New("traces directory is required")
	}
	if stat, err := os.Stat(cfg.Dir); err != nil {
		if err = os.MkdirAll(cfg.Dir, 0o750); err != nil { //nolint:mnd // owner and group only.
			return nil, fmt.Errorf("create traces directory: %w", err)
		}
	} else if !stat.IsDir() {
		return nil, fmt.Errorf("traces path %s is not a directory", cfg.Dir)
	}

	window := cfg.Window
	if window == 0 {
		window = defaultWindow
	}
	maxBytes := cfg.MaxBytes
	if maxBytes == 0 {
		maxBytes = defaultMaxBytes
	}
	cooldown := cfg.Cooldown
	if cooldown == 0 {
		cooldown = defaultCooldown
	}

	return &Recorder{
		logger:      logger,
		recorder:    trace.NewFlightRecorder(trace.FlightRecorderConfig{MinAge: window, MaxBytes: maxBytes}),
		dir:         cfg.Dir,
		cooldown:    cooldown,
		now:         time.Now,
		lastCapture: atomic.Int64{},
	}, nil
}

// Start begins recording.
func (r *Recorder) Start(ctx context.Context) error {
	if err := r.recorder.Start(); err != nil {
		return fmt.Errorf("start flight recorder: %w", err)
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "flight recorder started",
		slog.String("dir", r.dir), slog.Duration("cooldown", r.cooldown))
	return nil
}

// Stop ends recording.
func (r *Recorder) Stop(ctx context.Context) {
	r.recorder.Stop()
	r.logger.LogAttrs(ctx, slog.LevelInfo, "flight recorder stopped")
}

// Capture writes the recorded window to a file named after reason and returns its path. It returns an empty path
// without writing anything while the previous snapshot is younger than the cooldown.
func (r *Recorder) Capture(ctx context.Context, reason string) (string, error) {
	now := r.now()
	last := r.lastCapture.Load()
	if last > 0 && now.Sub(time.Unix(0, last)) < r.cooldown {
		r.logger.LogAttrs(ctx, slog.LevelDebug, "skipping trace capture during cooldown",
			slog.Time("last_capture", time.Unix(0, last)))
		return "", nil
	}
	if !r.lastCapture.CompareAndSwap(last, now.UnixNano()) {
		// Someone else is capturing.
		return "", nil
	}

	path := filepath.Join(r.dir, fmt.Sprintf("%s-%s.trace", reason, now.UTC().Format("20060102-150405.000")))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create trace file: %w", err)
	}
	written, err := r.recorder.WriteTo(file)
	if err != nil {
		return "", errors.Join(fmt.Errorf("write trace: %w", err), file.Close())
	}
	if err = file.Close(); err != nil {
		return "", fmt.Errorf("close trace file: %w", err)
	}

	r.logger.LogAttrs(ctx, slog.LevelWarn, "captured trace",
		slog.String("reason", reason), slog.String("file", path), slog.Int64("bytes", written))
	return path, nil
}
