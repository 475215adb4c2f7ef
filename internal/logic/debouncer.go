package logic

import (
	"errors"
	"time"
)

var (
	errNonPositiveDebounce = errors.New("debounce interval must be positive")
	errNegativeThreshold   = errors.New("simultaneous threshold must not be negative")
)

// Debouncer collapses bursts of raw events into a clean event stream and
// fuses opposite presses that arrive close together into a single RESET.
//
// With fusion enabled, a directional event is held as pending until either
// the next raw event arrives or Flush observes that its fusion window has
// closed. With fusion disabled (threshold 0) events are emitted immediately.
//
// Not safe for concurrent use.
type Debouncer struct {
	cfg DebounceConfig

	lastAccepted    time.Time
	hasLastAccepted bool

	pending    RawEvent
	hasPending bool

	counts EventCounts
}

// NewDebouncer creates a debouncer in the idle state.
// An invalid config falls back to the defaults.
func NewDebouncer(cfg DebounceConfig) *Debouncer {
	d := &Debouncer{cfg: DefaultDebounceConfig()}
	_ = d.Configure(cfg)
	return d
}

// Configure replaces both timing thresholds. Existing state is kept.
func (d *Debouncer) Configure(cfg DebounceConfig) error {
	if cfg.DebounceInterval <= 0 {
		return errNonPositiveDebounce
	}
	if cfg.SimultaneousThreshold < 0 {
		return errNegativeThreshold
	}
	d.cfg = cfg
	return nil
}

// Config returns the active thresholds.
func (d *Debouncer) Config() DebounceConfig {
	return d.cfg
}

// Submit processes a raw event and returns any events that should be emitted,
// in arrival order.
func (d *Debouncer) Submit(raw RawEvent) []AcceptedEvent {
	var out []AcceptedEvent

	if d.hasPending {
		gap := raw.Timestamp.Sub(d.pending.Timestamp)
		if raw.Direction == d.pending.Direction.Opposite() && gap <= d.cfg.SimultaneousThreshold {
			d.hasPending = false
			return []AcceptedEvent{d.accept(DirectionReset, raw.Timestamp)}
		}

		// Not a simultaneous press: the pending event stands on its own
		out = append(out, d.releasePending())
	}

	if d.withinDebounce(raw.Timestamp) {
		d.counts.Dropped++
		return out
	}

	if d.cfg.SimultaneousThreshold == 0 {
		return append(out, d.accept(raw.Direction, raw.Timestamp))
	}

	d.pending = raw
	d.hasPending = true
	return out
}

// Flush emits the pending event once no opposite press can fuse with it anymore.
// Returns nil if nothing is pending or the fusion window is still open.
func (d *Debouncer) Flush(now time.Time) []AcceptedEvent {
	if !d.hasPending {
		return nil
	}
	if now.Sub(d.pending.Timestamp) <= d.cfg.SimultaneousThreshold {
		return nil
	}
	return []AcceptedEvent{d.releasePending()}
}

// Discard drops any pending event. The last accepted timestamp is kept so the
// spacing guarantee holds across a stop/start of observation.
func (d *Debouncer) Discard() {
	d.hasPending = false
	d.pending = RawEvent{}
}

// HasPending reports whether a directional event is waiting for its fusion window.
func (d *Debouncer) HasPending() bool {
	return d.hasPending
}

// Counts returns accepted and dropped event counts since startup.
func (d *Debouncer) Counts() EventCounts {
	return d.counts
}

// LastAccepted returns the timestamp of the most recent emission.
func (d *Debouncer) LastAccepted() (time.Time, bool) {
	return d.lastAccepted, d.hasLastAccepted
}

func (d *Debouncer) withinDebounce(t time.Time) bool {
	return d.hasLastAccepted && t.Sub(d.lastAccepted) < d.cfg.DebounceInterval
}

// releasePending emits the pending event under its own direction.
// It already passed the debounce check when it became pending.
func (d *Debouncer) releasePending() AcceptedEvent {
	p := d.pending
	d.hasPending = false
	d.pending = RawEvent{}
	return d.accept(p.Direction, p.Timestamp)
}

func (d *Debouncer) accept(dir Direction, t time.Time) AcceptedEvent {
	d.lastAccepted = t
	d.hasLastAccepted = true

	switch dir {
	case DirectionIncrease:
		d.counts.Increase++
	case DirectionDecrease:
		d.counts.Decrease++
	case DirectionReset:
		d.counts.Reset++
	}

	return AcceptedEvent{Direction: dir, Timestamp: t}
}
