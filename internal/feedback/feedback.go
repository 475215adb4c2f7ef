// Package feedback pulses a GPIO output (buzzer, vibration motor or LED) when
// the counter changes. The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package feedback

import "time"

// Strength selects how long a pulse lasts.
type Strength string

const (
	// Light is used for single increments and decrements
	Light Strength = "LIGHT"
	// Medium is used for resets
	Medium Strength = "MEDIUM"
)

// Duration returns the pulse width for s.
func (s Strength) Duration() time.Duration {
	if s == Medium {
		return 80 * time.Millisecond
	}
	return 30 * time.Millisecond
}

// Pulser emits tactile feedback.
type Pulser interface {
	// Pulse drives the output for the strength's duration. It must not block
	// for the length of the pulse.
	Pulse(s Strength) error

	// Close releases GPIO resources.
	Close() error
}

// Default line (BCM numbering)
const (
	DefaultChip = "gpiochip0"
	DefaultLine = 18
)

// NopPulser is used when feedback is disabled.
type NopPulser struct{}

// Pulse does nothing.
func (NopPulser) Pulse(Strength) error { return nil }

// Close does nothing.
func (NopPulser) Close() error { return nil }
