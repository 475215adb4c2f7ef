// Package app wires the volume watcher, debouncer and counter into the
// daemon's run loop. Every state change happens on the loop goroutine.
package app

import (
	"context"
	"errors"
	"os"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/sweeney/volume-counter/internal/counter"
	"github.com/sweeney/volume-counter/internal/feedback"
	"github.com/sweeney/volume-counter/internal/logic"
	"github.com/sweeney/volume-counter/internal/metrics"
	"github.com/sweeney/volume-counter/internal/mqtt"
	"github.com/sweeney/volume-counter/internal/status"
	"github.com/sweeney/volume-counter/internal/volume"
	"github.com/sweeney/volume-counter/internal/watcher"
)

// ErrStopped is returned by Control once the run loop has exited.
var ErrStopped = errors.New("daemon stopped")

// levelBuffer holds level reports waiting for the loop. A synchronous echo
// of the loop's own re-centering is sent from the loop goroutine, so the
// channel must have room for it.
const levelBuffer = 64

// Options holds the timing settings of the run loop.
type Options struct {
	Debounce      logic.DebounceConfig
	FlushInterval time.Duration
	Heartbeat     time.Duration // 0 disables
	RetryInterval time.Duration
}

// Deps are the collaborators of the daemon. Connection and Pulser may be nil.
type Deps struct {
	Source     volume.Source
	Counter    *counter.Counter
	Publisher  mqtt.Publisher
	Connection mqtt.ConnectionStatus
	Pulser     feedback.Pulser
	Tracker    *status.Tracker
	Clock      clockwork.Clock
	Log        *zap.SugaredLogger
}

type observation struct {
	level float64
	at    time.Time
}

type controlRequest struct {
	dir   logic.Direction
	reply chan controlResult
}

type controlResult struct {
	value int64
	err   error
}

// Daemon is the volume counter's run loop.
type Daemon struct {
	opts Options
	deps Deps
	log  *zap.SugaredLogger

	debouncer *logic.Debouncer
	watcher   *watcher.Watcher

	levels   chan observation
	controls chan controlRequest
	done     chan struct{}

	lastHeartbeat time.Time
}

// New creates a Daemon. It does not touch the volume source until Run.
func New(opts Options, deps Deps) *Daemon {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop().Sugar()
	}
	if deps.Pulser == nil {
		deps.Pulser = feedback.NopPulser{}
	}

	d := &Daemon{
		opts:      opts,
		deps:      deps,
		log:       deps.Log,
		debouncer: logic.NewDebouncer(opts.Debounce),
		levels:    make(chan observation, levelBuffer),
		controls:  make(chan controlRequest),
		done:      make(chan struct{}),
	}
	d.watcher = watcher.New(deps.Source, d.onRaw,
		watcher.WithClock(deps.Clock),
		watcher.WithLogger(deps.Log.Named("watcher")),
		watcher.WithNotify(d.notify),
	)
	return d
}

// Control applies a change from the on-screen controls. It waits for the
// run loop to process it and returns the new counter value.
func (d *Daemon) Control(dir logic.Direction) (int64, error) {
	req := controlRequest{dir: dir, reply: make(chan controlResult, 1)}
	select {
	case d.controls <- req:
	case <-d.done:
		return 0, ErrStopped
	}
	res := <-req.reply
	return res.value, res.err
}

// Run starts observing the volume and processes events until a signal
// arrives or ctx is cancelled.
func (d *Daemon) Run(ctx context.Context, sig <-chan os.Signal) error {
	flush := d.deps.Clock.NewTicker(d.opts.FlushInterval)
	defer flush.Stop()
	retry := d.deps.Clock.NewTicker(d.opts.RetryInterval)
	defer retry.Stop()

	return d.loop(ctx, flush.Chan(), retry.Chan(), sig)
}

func (d *Daemon) loop(ctx context.Context, tick, retry <-chan time.Time, sig <-chan os.Signal) error {
	defer close(d.done)

	d.lastHeartbeat = d.deps.Clock.Now()
	d.publishSystem("STARTUP", "", true)
	d.startWatching()

	for {
		select {
		case s := <-sig:
			d.log.Infow("received signal, shutting down", "signal", s)
			d.shutdown(signalName(s))
			return nil

		case <-ctx.Done():
			d.log.Infow("context cancelled, shutting down")
			d.shutdown("CANCELLED")
			return nil

		case obs := <-d.levels:
			d.watcher.Observe(obs.level, obs.at)
			d.updateTracker()

		case req := <-d.controls:
			v, err := d.apply(req.dir, d.deps.Clock.Now(), logic.OriginControl)
			req.reply <- controlResult{value: v, err: err}

		case <-retry:
			if !d.watcher.IsObserving() {
				d.startWatching()
			}

		case <-tick:
			// Levels already reported are older than this tick
			d.drainLevels()

			now := d.deps.Clock.Now()
			for _, ev := range d.debouncer.Flush(now) {
				d.apply(ev.Direction, ev.Timestamp, logic.OriginVolume)
			}
			d.checkHeartbeat(now)
			d.updateTracker()
		}
	}
}

// notify runs on the source's goroutine.
func (d *Daemon) notify(level float64) {
	select {
	case d.levels <- observation{level: level, at: d.deps.Clock.Now()}:
	case <-d.done:
	}
}

func (d *Daemon) drainLevels() {
	for {
		select {
		case obs := <-d.levels:
			d.watcher.Observe(obs.level, obs.at)
		default:
			return
		}
	}
}

func (d *Daemon) startWatching() {
	if err := d.watcher.Start(); err != nil {
		d.log.Warnw("volume observation unavailable, will retry",
			"retry", d.opts.RetryInterval, "error", err)
		metrics.Observing.Set(0)
		d.updateTracker()
		return
	}
	d.log.Infow("observing volume", "baseline", d.watcher.Baseline())
	metrics.Observing.Set(1)
	d.updateTracker()
}

func (d *Daemon) stopWatching() {
	if err := d.watcher.Stop(); err != nil {
		d.log.Warnw("volume observation teardown failed", "error", err)
	}
	// A press still waiting for its fusion window is not applied
	d.debouncer.Discard()
	metrics.Observing.Set(0)
}

// onRaw is the watcher's sink.
func (d *Daemon) onRaw(raw logic.RawEvent) {
	metrics.RawEvents.WithLabelValues(string(raw.Direction)).Inc()

	dropped := d.debouncer.Counts().Dropped
	accepted := d.debouncer.Submit(raw)
	if d.debouncer.Counts().Dropped > dropped {
		metrics.DroppedEvents.Inc()
		d.log.Debugw("raw event debounced", "direction", raw.Direction, "at", raw.Timestamp)
	}

	for _, ev := range accepted {
		d.apply(ev.Direction, ev.Timestamp, logic.OriginVolume)
	}
}

func (d *Daemon) apply(dir logic.Direction, at time.Time, origin logic.Origin) (int64, error) {
	v, err := d.deps.Counter.Apply(dir)
	if err != nil {
		d.log.Warnw("rejected counter change", "direction", dir, "source", origin, "error", err)
		return v, err
	}
	metrics.AcceptedEvents.WithLabelValues(string(dir), string(origin)).Inc()
	d.log.Infow("counter changed", "event", dir, "source", origin, "value", v)

	d.deps.Tracker.SetValue(v, at, dir)
	if origin == logic.OriginControl {
		d.deps.Tracker.RecordControl(dir)
	}

	change := logic.Change{Timestamp: at, Direction: dir, Origin: origin, Value: v}
	if err := d.deps.Publisher.Publish(change); err != nil {
		d.log.Warnw("publish error", "error", err)
	}

	strength := feedback.Light
	if dir == logic.DirectionReset {
		strength = feedback.Medium
	}
	if err := d.deps.Pulser.Pulse(strength); err != nil {
		d.log.Warnw("feedback pulse failed", "error", err)
	}
	return v, nil
}

func (d *Daemon) checkHeartbeat(now time.Time) {
	if d.opts.Heartbeat <= 0 || now.Sub(d.lastHeartbeat) < d.opts.Heartbeat {
		return
	}
	d.lastHeartbeat = now

	counts := d.debouncer.Counts()
	d.log.Infow("heartbeat",
		"value", d.deps.Counter.Value(),
		"observing", d.watcher.IsObserving(),
		"increase", counts.Increase,
		"decrease", counts.Decrease,
		"reset", counts.Reset,
		"dropped", counts.Dropped,
	)
	d.publishSystem("HEARTBEAT", "", false)
}

func (d *Daemon) shutdown(reason string) {
	d.stopWatching()
	d.publishSystem("SHUTDOWN", reason, true)
}

func (d *Daemon) publishSystem(event, reason string, retained bool) {
	d.updateTracker()
	snap := d.deps.Tracker.Snapshot()
	err := d.deps.Publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  d.deps.Clock.Now(),
		Event:      event,
		Reason:     reason,
		Retained:   retained,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		d.log.Warnw("failed to publish system event", "event", event, "error", err)
		return
	}
	d.log.Debugw("published system event", "event", event)
}

func (d *Daemon) updateTracker() {
	d.deps.Tracker.Update(d.watcher.IsObserving(), d.debouncer.Counts())
	if d.deps.Connection != nil {
		d.deps.Tracker.SetMQTTConnected(d.deps.Connection.IsConnected())
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
