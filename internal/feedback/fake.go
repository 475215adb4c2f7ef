package feedback

import "sync"

// FakePulser records pulses for test assertions.
type FakePulser struct {
	mu sync.Mutex

	// Pulses contains every requested strength, in order.
	Pulses []Strength

	// PulseError, if set, will be returned by Pulse.
	PulseError error

	// Closed tracks if Close was called
	Closed bool
}

// NewFakePulser creates a FakePulser.
func NewFakePulser() *FakePulser {
	return &FakePulser{}
}

// Pulse records the strength.
func (f *FakePulser) Pulse(s Strength) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PulseError != nil {
		return f.PulseError
	}
	f.Pulses = append(f.Pulses, s)
	return nil
}

// Close marks the pulser as closed.
func (f *FakePulser) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Recorded returns a copy of the recorded pulses.
func (f *FakePulser) Recorded() []Strength {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Strength(nil), f.Pulses...)
}

// Reset clears recorded pulses.
func (f *FakePulser) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pulses = nil
	f.Closed = false
	f.PulseError = nil
}
