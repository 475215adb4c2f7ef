//go:build !linux

package feedback

import "errors"

// RealPulser is not available on non-Linux platforms.
type RealPulser struct{}

// NewRealPulser returns an error on non-Linux platforms.
func NewRealPulser(chip string, line int) (*RealPulser, error) {
	return nil, errors.New("feedback: gpio not supported on this platform (requires Linux)")
}

// Pulse is not implemented on non-Linux platforms.
func (r *RealPulser) Pulse(Strength) error {
	return errors.New("feedback: gpio not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RealPulser) Close() error {
	return nil
}
