// Package status provides a thread-safe status tracker for the volume-counter daemon.
// It is read by HTTP handlers and used to build MQTT lifecycle payloads.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/volume-counter/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	DebounceMs              int64
	SimultaneousThresholdMs int64
	HeartbeatMs             int64
	Broker                  string
	VolumeStateTopic        string
	HTTPAddr                string
	Store                   string // "redis" or "memory"
	Feedback                bool
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Value         int64
	LastUpdated   time.Time
	LastEvent     logic.Direction
	Observing     bool
	Counts        logic.EventCounts
	ControlCounts logic.EventCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime:   startTime,
			LastUpdated: startTime,
			Config:      cfg,
		},
		now: time.Now,
	}
}

// SetValue records the counter value after a change.
func (t *Tracker) SetValue(value int64, updated time.Time, dir logic.Direction) {
	t.mu.Lock()
	t.snap.Value = value
	t.snap.LastUpdated = updated
	t.snap.LastEvent = dir
	t.mu.Unlock()
}

// RecordControl counts a change made through the on-screen controls.
func (t *Tracker) RecordControl(dir logic.Direction) {
	t.mu.Lock()
	switch dir {
	case logic.DirectionIncrease:
		t.snap.ControlCounts.Increase++
	case logic.DirectionDecrease:
		t.snap.ControlCounts.Decrease++
	case logic.DirectionReset:
		t.snap.ControlCounts.Reset++
	}
	t.mu.Unlock()
}

// Update sets observation state and volume event counts.
// Called from the run loop after every event and tick.
func (t *Tracker) Update(observing bool, counts logic.EventCounts) {
	t.mu.Lock()
	t.snap.Observing = observing
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
