// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/volume-counter/internal/logic"
)

// Topic is the MQTT topic for counter changes.
const Topic = "counter/volume/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "counter/volume/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a counter change to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(change logic.Change) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT", "RECONNECTED"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// Payload is the message body for a counter change.
type Payload struct {
	Counter CounterPayload `json:"counter"`
}

// CounterPayload contains the change details.
type CounterPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Source    string `json:"source"`
	Value     int64  `json:"value"`
}

// FormatPayload creates the JSON payload for a counter change.
func FormatPayload(change logic.Change) ([]byte, error) {
	return json.Marshal(Payload{
		Counter: CounterPayload{
			Timestamp: formatTime(change.Timestamp),
			Event:     string(change.Direction),
			Source:    string(change.Origin),
			Value:     change.Value,
		},
	})
}

// SystemPayload is the message body for simple system events (LWT,
// RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	inner := SystemPayloadInner{Event: event.Event, Reason: event.Reason}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = formatTime(event.Timestamp)
	}
	return json.Marshal(SystemPayload{System: inner})
}

// WillPayload is the retained last-will message the broker publishes if
// the daemon disappears without a SHUTDOWN. It carries no timestamp.
func WillPayload() []byte {
	data, _ := FormatSystemPayload(SystemEvent{Event: "OFFLINE", Reason: "LWT"})
	return data
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
