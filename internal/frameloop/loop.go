// Package frameloop drives the measurement pipeline from an external frame
// source at a fixed cadence. Each tick pulls at most one frame and evaluates
// it to completion before the next tick is read, so evaluations never
// overlap. The loop ends when its context is cancelled, Stop is called, or
// the source is exhausted.
package frameloop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/banshee-data/mirrorfit/internal/measure"
	"github.com/banshee-data/mirrorfit/internal/monitoring"
	"github.com/banshee-data/mirrorfit/internal/pose"
	"github.com/banshee-data/mirrorfit/internal/timeutil"
)

// ErrNoFrame is returned by a Source that has nothing new for this tick.
var ErrNoFrame = errors.New("no frame available")

// Source yields raw keypoint frames from the pose estimator. NextFrame
// returns io.EOF once the source is exhausted.
type Source interface {
	NextFrame(ctx context.Context) (pose.Frame, error)
}

// Processor evaluates one frame. *session.Session satisfies it.
type Processor interface {
	ProcessFrame(frame pose.Frame) measure.Output
}

// Stats counts loop activity.
type Stats struct {
	Ticks    uint64 `json:"ticks"`
	Frames   uint64 `json:"frames"`
	Idle     uint64 `json:"idle"`     // ticks with no new frame
	Errors   uint64 `json:"errors"`   // source errors other than EOF / no frame
	Overruns uint64 `json:"overruns"` // frames that took longer than the interval
}

// Loop calls a Processor once per tick.
type Loop struct {
	src      Source
	proc     Processor
	clock    timeutil.Clock
	interval time.Duration
	onOutput func(measure.Output)

	stopped atomic.Bool

	ticks, frames, idle, errs, overruns atomic.Uint64
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock overrides the clock that paces the loop.
func WithClock(c timeutil.Clock) Option {
	return func(l *Loop) { l.clock = c }
}

// WithOutputHandler registers a callback invoked with every frame's output,
// on the loop goroutine.
func WithOutputHandler(fn func(measure.Output)) Option {
	return func(l *Loop) { l.onOutput = fn }
}

// New returns a Loop that pulls from src every interval.
func New(src Source, proc Processor, interval time.Duration, opts ...Option) (*Loop, error) {
	if src == nil {
		return nil, errors.New("frame source is required")
	}
	if proc == nil {
		return nil, errors.New("frame processor is required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("frame interval must be positive, got %s", interval)
	}
	l := &Loop{
		src:      src,
		proc:     proc,
		clock:    timeutil.RealClock{},
		interval: interval,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Run processes frames until ctx is done, Stop is called or the source
// returns io.EOF. It returns ctx.Err() on cancellation and nil otherwise.
func (l *Loop) Run(ctx context.Context) error {
	ticker := l.clock.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
		}
		if l.stopped.Load() {
			return nil
		}
		if done := l.step(ctx); done {
			return nil
		}
	}
}

// step handles one tick and reports whether the source is exhausted.
func (l *Loop) step(ctx context.Context) bool {
	l.ticks.Add(1)
	start := l.clock.Now()

	frame, err := l.src.NextFrame(ctx)
	switch {
	case errors.Is(err, io.EOF):
		monitoring.Logf("frame source exhausted after %d frames", l.frames.Load())
		return true
	case errors.Is(err, ErrNoFrame):
		l.idle.Add(1)
		return false
	case err != nil:
		l.errs.Add(1)
		monitoring.Logf("failed to read frame: %v", err)
		return false
	}

	out := l.proc.ProcessFrame(frame)
	l.frames.Add(1)
	if l.onOutput != nil {
		l.onOutput(out)
	}
	if l.clock.Since(start) > l.interval {
		l.overruns.Add(1)
	}
	return false
}

// Stop makes Run return at the next tick.
func (l *Loop) Stop() {
	l.stopped.Store(true)
}

// Stats returns a snapshot of the loop counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Ticks:    l.ticks.Load(),
		Frames:   l.frames.Load(),
		Idle:     l.idle.Load(),
		Errors:   l.errs.Load(),
		Overruns: l.overruns.Load(),
	}
}
