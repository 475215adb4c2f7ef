// Package volume provides the observed output-volume signal with abstraction for testing.
// The real implementation follows a media endpoint's volume over MQTT.
// The fake implementation allows testing without a broker.
package volume

import "errors"

// Source is an external volume level in the range [MinLevel, MaxLevel].
type Source interface {
	// Level returns the current volume level.
	Level() (float64, error)

	// SetLevel forces the volume to the given level. Implementations must not
	// block the caller waiting for the change to be observed.
	SetLevel(level float64) error

	// Subscribe registers fn to be called on every observed level change.
	// Only one subscriber is supported; a second call replaces the first.
	Subscribe(fn func(level float64)) error

	// Unsubscribe stops level notifications.
	Unsubscribe() error
}

// Signal range.
const (
	MinLevel = 0.0
	MaxLevel = 1.0
)

// ErrNoLevel is returned by Level when no value has been observed yet.
var ErrNoLevel = errors.New("volume: no level observed yet")

// Clamp limits level to [MinLevel, MaxLevel].
func Clamp(level float64) float64 {
	if level < MinLevel {
		return MinLevel
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}
