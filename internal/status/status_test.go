package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/volume-counter/internal/logic"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		DebounceMs:              150,
		SimultaneousThresholdMs: 100,
		HeartbeatMs:             900000,
		Broker:                  "tcp://localhost:1883",
		VolumeStateTopic:        "media/volume/state",
		HTTPAddr:                ":8080",
		Store:                   "memory",
	}
}

func newFixedTracker(now time.Time) *Tracker {
	tr := NewTracker(start, testConfig())
	tr.now = func() time.Time { return now }
	return tr
}

func TestNewTracker(t *testing.T) {
	tr := NewTracker(start, testConfig())

	snap := tr.Snapshot()
	assert.Equal(t, start, snap.StartTime)
	assert.Equal(t, start, snap.LastUpdated)
	assert.Equal(t, int64(150), snap.Config.DebounceMs)
	assert.False(t, snap.Observing)
	assert.False(t, snap.MQTTConnected)
	assert.Zero(t, snap.Value)
}

func TestSetValue(t *testing.T) {
	tr := NewTracker(start, Config{})
	at := start.Add(time.Minute)

	tr.SetValue(-3, at, logic.DirectionDecrease)

	snap := tr.Snapshot()
	assert.Equal(t, int64(-3), snap.Value)
	assert.Equal(t, at, snap.LastUpdated)
	assert.Equal(t, logic.DirectionDecrease, snap.LastEvent)
}

func TestUpdateAndRecordControl(t *testing.T) {
	tr := NewTracker(start, Config{})

	tr.Update(true, logic.EventCounts{Increase: 4, Reset: 1, Dropped: 9})
	tr.RecordControl(logic.DirectionIncrease)
	tr.RecordControl(logic.DirectionReset)
	tr.RecordControl(logic.DirectionReset)

	snap := tr.Snapshot()
	assert.True(t, snap.Observing)
	assert.Equal(t, logic.EventCounts{Increase: 4, Reset: 1, Dropped: 9}, snap.Counts)
	assert.Equal(t, logic.EventCounts{Increase: 1, Reset: 2}, snap.ControlCounts)
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(start, Config{})

	tr.SetMQTTConnected(true)
	assert.True(t, tr.Snapshot().MQTTConnected)
	tr.SetMQTTConnected(false)
	assert.False(t, tr.Snapshot().MQTTConnected)
}

func TestSnapshotUptime(t *testing.T) {
	tr := newFixedTracker(start.Add(90 * time.Second))
	assert.Equal(t, 90*time.Second, tr.Snapshot().Uptime())
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(start, Config{})
	tr.SetValue(1, start, logic.DirectionIncrease)

	snap := tr.Snapshot()
	tr.SetValue(2, start, logic.DirectionIncrease)

	assert.Equal(t, int64(1), snap.Value)
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(start, Config{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			tr.SetValue(int64(i), start, logic.DirectionIncrease)
		}(i)
		go func() {
			defer wg.Done()
			tr.RecordControl(logic.DirectionDecrease)
		}()
		go func() {
			defer wg.Done()
			_ = tr.Snapshot()
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, tr.Snapshot().ControlCounts.Decrease)
}

func TestFormatJSON(t *testing.T) {
	tr := newFixedTracker(start.Add(2*time.Hour + 500*time.Millisecond))
	tr.SetValue(12, start.Add(time.Hour), logic.DirectionReset)
	tr.Update(true, logic.EventCounts{Increase: 10, Decrease: 3, Reset: 1, Dropped: 22})
	tr.RecordControl(logic.DirectionIncrease)
	tr.SetMQTTConnected(true)

	var sj StatusJSON
	require.NoError(t, json.Unmarshal(FormatJSON(tr.Snapshot()), &sj))

	s := sj.Status
	assert.Empty(t, s.Event)
	assert.Equal(t, int64(12), s.Value)
	assert.Equal(t, "2026-01-01T01:00:00Z", s.LastUpdated)
	assert.Equal(t, "RESET", s.LastEvent)
	assert.True(t, s.Observing)
	assert.Equal(t, int64(7200), s.UptimeSeconds)
	assert.Equal(t, "2026-01-01T00:00:00Z", s.StartTime)
	assert.True(t, s.MQTT.Connected)
	assert.Equal(t, "tcp://localhost:1883", s.MQTT.Broker)
	assert.Equal(t, CountsJSON{Increase: 10, Decrease: 3, Reset: 1, Dropped: 22}, s.Volume)
	assert.Equal(t, CountsJSON{Increase: 1}, s.Controls)
	assert.Equal(t, int64(100), s.Config.SimultaneousThresholdMs)
	assert.Equal(t, "memory", s.Config.Store)
}

func TestFormatStatusEvent(t *testing.T) {
	tr := newFixedTracker(start.Add(time.Minute))

	data := FormatStatusEvent(tr.Snapshot(), "SHUTDOWN", "SIGTERM")

	var sj StatusJSON
	require.NoError(t, json.Unmarshal(data, &sj))
	assert.Equal(t, "SHUTDOWN", sj.Status.Event)
	assert.Equal(t, "SIGTERM", sj.Status.Reason)
	assert.NotContains(t, string(data), "\n", "MQTT payloads are compact")
}

func TestFormatStatusEventOmitsEmptyReason(t *testing.T) {
	data := FormatStatusEvent(newFixedTracker(start).Snapshot(), "STARTUP", "")
	assert.NotContains(t, string(data), `"reason"`)
	assert.NotContains(t, string(data), `"last_event"`)
}
