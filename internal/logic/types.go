// Package logic contains pure business logic for volume-button event classification.
// This package has NO external dependencies (no MQTT, Redis, GPIO, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Direction is the classification of a volume-button event.
type Direction string

const (
	DirectionIncrease Direction = "INCREASE"
	DirectionDecrease Direction = "DECREASE"
	DirectionReset    Direction = "RESET"
)

// Opposite returns the other press direction. RESET has no opposite.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionIncrease:
		return DirectionDecrease
	case DirectionDecrease:
		return DirectionIncrease
	}
	return ""
}

// RawEvent is a single directional change observed on the volume signal.
// Direction is always INCREASE or DECREASE.
type RawEvent struct {
	Direction Direction
	Timestamp time.Time
}

// AcceptedEvent is a debounced, classified event ready for the counter.
type AcceptedEvent struct {
	Direction Direction
	Timestamp time.Time
}

// Default timing thresholds.
const (
	DefaultDebounceInterval      = 150 * time.Millisecond
	DefaultSimultaneousThreshold = 100 * time.Millisecond
)

// DebounceConfig holds the two timing thresholds of the debouncer.
type DebounceConfig struct {
	// Minimum spacing between two accepted events of any kind
	DebounceInterval time.Duration
	// Maximum gap between opposite raw events for them to fuse into RESET.
	// Zero disables fusion.
	SimultaneousThreshold time.Duration
}

// DefaultDebounceConfig returns the 150ms / 100ms defaults.
func DefaultDebounceConfig() DebounceConfig {
	return DebounceConfig{
		DebounceInterval:      DefaultDebounceInterval,
		SimultaneousThreshold: DefaultSimultaneousThreshold,
	}
}

// EventCounts tracks accepted and dropped events since startup.
type EventCounts struct {
	Increase int
	Decrease int
	Reset    int
	Dropped  int
}

// Origin identifies what caused a counter change.
type Origin string

const (
	OriginVolume  Origin = "volume"
	OriginControl Origin = "control"
)

// Change is a counter mutation after it has been applied.
type Change struct {
	Timestamp time.Time
	Direction Direction
	Origin    Origin
	Value     int64
}
