package watcher

import "fmt"

// ConfigurationError is returned by Start when the signal source could not be
// prepared for observation. Start may be retried.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("watcher: configure source (%s): %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// TeardownError is returned by Stop when the subscription could not be
// released cleanly. Observation has stopped regardless.
type TeardownError struct {
	Err error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("watcher: teardown: %v", e.Err)
}

func (e *TeardownError) Unwrap() error {
	return e.Err
}
