//go:build linux

package feedback

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"
)

// RealPulser drives a GPIO output line using Linux GPIO character device.
type RealPulser struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
}

// NewRealPulser requests line on chip as an output, initially low.
func NewRealPulser(chipName string, offset int) (*RealPulser, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request feedback pin %d: %w", offset, err)
	}

	return &RealPulser{chip: chip, line: line}, nil
}

// Pulse drives the line high and schedules it low after the strength's
// duration. A pulse during a pulse extends it.
func (r *RealPulser) Pulse(s Strength) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("pulse: feedback line closed")
	}
	if err := r.line.SetValue(1); err != nil {
		return fmt.Errorf("set feedback pin: %w", err)
	}

	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(s.Duration(), r.release)
	return nil
}

func (r *RealPulser) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	// Nothing to report to; the next pulse surfaces a broken line.
	_ = r.line.SetValue(0)
}

// Close drives the line low and releases GPIO resources.
// Reconfigures the pin to input with pull-down (matching Pi boot defaults)
// before closing to leave a clean state for shutdown/reboot.
func (r *RealPulser) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
	}

	var err error
	if r.line != nil {
		err = multierr.Append(err, wrap("clear feedback pin", r.line.SetValue(0)))
		err = multierr.Append(err, wrap("reconfigure feedback pin", r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown)))
		err = multierr.Append(err, wrap("close feedback pin", r.line.Close()))
	}
	if r.chip != nil {
		err = multierr.Append(err, wrap("close chip", r.chip.Close()))
	}
	return err
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
