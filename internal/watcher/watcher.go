// Package watcher turns changes of the volume signal into directional raw events.
//
// After every observed change the signal is forced back to the middle of its
// range so that the next press in either direction is still visible.
package watcher

import (
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/sweeney/volume-counter/internal/logic"
	"github.com/sweeney/volume-counter/internal/volume"
)

// Watcher tracks a baseline level and emits a RawEvent for every change.
// Not safe for concurrent use: level notifications must be serialized by
// the caller onto one goroutine.
type Watcher struct {
	source   volume.Source
	sink     func(logic.RawEvent)
	notify   func(float64)
	clock    clockwork.Clock
	log      *zap.SugaredLogger
	min, max float64

	observing bool
	baseline  float64
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithClock sets the clock used to timestamp raw events.
func WithClock(c clockwork.Clock) Option {
	return func(w *Watcher) { w.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(w *Watcher) { w.log = l }
}

// WithRange overrides the signal range. The default is [0, 1].
func WithRange(min, max float64) Option {
	return func(w *Watcher) {
		if max > min {
			w.min, w.max = min, max
		}
	}
}

// WithNotify sets the function registered with the source on Start.
// By default the source calls OnSignalChanged directly. The run loop uses
// this to hop notifications onto its own goroutine.
func WithNotify(fn func(float64)) Option {
	return func(w *Watcher) { w.notify = fn }
}

// New creates a Watcher that sends raw events to sink.
func New(source volume.Source, sink func(logic.RawEvent), opts ...Option) *Watcher {
	w := &Watcher{
		source: source,
		sink:   sink,
		clock:  clockwork.NewRealClock(),
		log:    zap.NewNop().Sugar(),
		min:    volume.MinLevel,
		max:    volume.MaxLevel,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.notify == nil {
		w.notify = w.OnSignalChanged
	}
	return w
}

// Midpoint is the level the signal is forced to after every change.
func (w *Watcher) Midpoint() float64 {
	return w.min + (w.max-w.min)/2
}

// Start captures the current level as baseline and subscribes to changes.
// It is a no-op when already observing.
func (w *Watcher) Start() error {
	if w.observing {
		return nil
	}

	level, err := w.source.Level()
	if err != nil {
		return &ConfigurationError{Op: "read level", Err: err}
	}

	if err := w.source.Subscribe(w.notify); err != nil {
		return &ConfigurationError{Op: "subscribe", Err: err}
	}

	w.baseline = level
	w.observing = true
	w.log.Debugw("volume observation started", "baseline", level)
	return nil
}

// Stop ends observation. It is a no-op when not observing. Observation is
// always stopped; a failed unsubscribe is reported as *TeardownError.
func (w *Watcher) Stop() error {
	if !w.observing {
		return nil
	}
	w.observing = false

	if err := w.source.Unsubscribe(); err != nil {
		return &TeardownError{Err: err}
	}
	w.log.Debugw("volume observation stopped")
	return nil
}

// IsObserving reports whether Start has succeeded without a later Stop.
func (w *Watcher) IsObserving() bool {
	return w.observing
}

// Baseline returns the level currently treated as "no change".
func (w *Watcher) Baseline() float64 {
	return w.baseline
}

// OnSignalChanged handles a level reported by the source just now.
func (w *Watcher) OnSignalChanged(level float64) {
	w.Observe(level, w.clock.Now())
}

// Observe handles a level that the source reported at the given time.
func (w *Watcher) Observe(level float64, at time.Time) {
	if !w.observing {
		return
	}

	delta := level - w.baseline
	if delta == 0 {
		// Duplicate notification, or the echo of our own re-centering
		return
	}

	dir := logic.DirectionDecrease
	if delta > 0 {
		dir = logic.DirectionIncrease
	}
	w.sink(logic.RawEvent{Direction: dir, Timestamp: at})

	// The baseline moves to the midpoint before the source is asked to get
	// there. The forced change may be reported back synchronously and must
	// not count as a press.
	mid := w.Midpoint()
	w.baseline = mid
	if err := w.source.SetLevel(mid); err != nil {
		w.log.Warnw("volume re-center failed", "target", mid, "error", err)
	}
}
