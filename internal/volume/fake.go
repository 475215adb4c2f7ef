package volume

import "sync"

// FakeSource is a test double with a scripted level and recorded writes.
type FakeSource struct {
	mu sync.Mutex

	// Current is the level returned by Level.
	Current float64

	// Forced records every level passed to SetLevel, in order.
	Forced []float64

	// LevelError, if set, will be returned by Level.
	LevelError error

	// SetLevelError, if set, will be returned by SetLevel.
	SetLevelError error

	// SubscribeError, if set, will be returned by Subscribe.
	SubscribeError error

	// UnsubscribeError, if set, will be returned by Unsubscribe.
	UnsubscribeError error

	// EchoForced makes SetLevel notify the subscriber with the forced level,
	// the way a real endpoint reports its own change back.
	EchoForced bool

	subscriber func(float64)
}

// NewFakeSource creates a FakeSource at the given level.
func NewFakeSource(level float64) *FakeSource {
	return &FakeSource{Current: level}
}

// Level returns the scripted level.
func (f *FakeSource) Level() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LevelError != nil {
		return 0, f.LevelError
	}
	return f.Current, nil
}

// SetLevel records the forced level and updates Current.
func (f *FakeSource) SetLevel(level float64) error {
	f.mu.Lock()
	if f.SetLevelError != nil {
		err := f.SetLevelError
		f.mu.Unlock()
		return err
	}
	f.Forced = append(f.Forced, level)
	f.Current = level
	fn := f.subscriber
	echo := f.EchoForced
	f.mu.Unlock()

	if echo && fn != nil {
		fn(level)
	}
	return nil
}

// Subscribe stores fn as the subscriber.
func (f *FakeSource) Subscribe(fn func(float64)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubscribeError != nil {
		return f.SubscribeError
	}
	f.subscriber = fn
	return nil
}

// Unsubscribe removes the subscriber. The subscriber is removed even when
// UnsubscribeError is set.
func (f *FakeSource) Unsubscribe() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscriber = nil
	return f.UnsubscribeError
}

// Subscribed reports whether a subscriber is registered.
func (f *FakeSource) Subscribed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscriber != nil
}

// Push simulates the endpoint reporting a new level.
// Returns false if nobody is subscribed.
func (f *FakeSource) Push(level float64) bool {
	f.mu.Lock()
	f.Current = level
	fn := f.subscriber
	f.mu.Unlock()

	if fn == nil {
		return false
	}
	fn(level)
	return true
}

// ForcedLevels returns a copy of the recorded SetLevel calls.
func (f *FakeSource) ForcedLevels() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.Forced...)
}

// FailLevel sets LevelError under the lock, for use while a watcher is running.
func (f *FakeSource) FailLevel(err error) {
	f.mu.Lock()
	f.LevelError = err
	f.mu.Unlock()
}
