package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Value         int64      `json:"value"`
	LastUpdated   string     `json:"last_updated"`
	LastEvent     string     `json:"last_event,omitempty"`
	Observing     bool       `json:"observing"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Volume        CountsJSON `json:"volume_events"`
	Controls      CountsJSON `json:"control_events"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Increase int `json:"increase"`
	Decrease int `json:"decrease"`
	Reset    int `json:"reset"`
	Dropped  int `json:"dropped,omitempty"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	DebounceMs              int64  `json:"debounce_ms"`
	SimultaneousThresholdMs int64  `json:"simultaneous_threshold_ms"`
	HeartbeatMs             int64  `json:"heartbeat_ms"`
	Broker                  string `json:"broker"`
	VolumeStateTopic        string `json:"volume_state_topic"`
	HTTPAddr                string `json:"http_addr"`
	Store                   string `json:"store"`
	Feedback                bool   `json:"feedback"`
}

func buildInner(snap Snapshot) StatusInner {
	c := snap.Config
	return StatusInner{
		Value:         snap.Value,
		LastUpdated:   snap.LastUpdated.UTC().Format(time.RFC3339),
		LastEvent:     string(snap.LastEvent),
		Observing:     snap.Observing,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: c.Broker},
		Volume: CountsJSON{
			Increase: snap.Counts.Increase,
			Decrease: snap.Counts.Decrease,
			Reset:    snap.Counts.Reset,
			Dropped:  snap.Counts.Dropped,
		},
		Controls: CountsJSON{
			Increase: snap.ControlCounts.Increase,
			Decrease: snap.ControlCounts.Decrease,
			Reset:    snap.ControlCounts.Reset,
		},
		Config: ConfigJSON{
			DebounceMs:              c.DebounceMs,
			SimultaneousThresholdMs: c.SimultaneousThresholdMs,
			HeartbeatMs:             c.HeartbeatMs,
			Broker:                  c.Broker,
			VolumeStateTopic:        c.VolumeStateTopic,
			HTTPAddr:                c.HTTPAddr,
			Store:                   c.Store,
			Feedback:                c.Feedback,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
