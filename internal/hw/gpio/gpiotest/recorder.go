// Package gpiotest provides a recording gpio.Driver for hardware package tests.
package gpiotest

import (
	"sync"

	"github.com/cjeanneret/ZumoGo/internal/hw/gpio"
)

// Call is one recorded driver operation.
type Call struct {
	Op    string // "setup", "write", "read", "pwm"
	Pin   int
	Mode  gpio.PinMode
	Level gpio.Level
	Freq  int
	Duty  uint32
	Cycle uint32
}

// Recorder records GPIO calls for verification. ReadPin answers from
// ReadFunc when set, otherwise from Levels (default Low).
type Recorder struct {
	mu       sync.Mutex
	Calls    []Call
	Levels   map[int]gpio.Level
	ReadFunc func(pin int) gpio.Level
}

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{Levels: make(map[int]gpio.Level)}
}

func (r *Recorder) SetupPin(pin int, mode gpio.PinMode) error {
	r.record(Call{Op: "setup", Pin: pin, Mode: mode})
	return nil
}

func (r *Recorder) WritePin(pin int, level gpio.Level) error {
	r.record(Call{Op: "write", Pin: pin, Level: level})
	return nil
}

func (r *Recorder) ReadPin(pin int) (gpio.Level, error) {
	r.record(Call{Op: "read", Pin: pin})
	if r.ReadFunc != nil {
		return r.ReadFunc(pin), nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Levels[pin], nil
}

func (r *Recorder) SetPWM(pin int, freq int, duty, cycle uint32) error {
	r.record(Call{Op: "pwm", Pin: pin, Freq: freq, Duty: duty, Cycle: cycle})
	return nil
}

func (r *Recorder) Close() error {
	return nil
}

// Reset drops all recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.Calls = nil
	r.mu.Unlock()
}

// Ops returns the recorded calls with the given op, optionally filtered by pin (pin < 0 = all).
func (r *Recorder) Ops(op string, pin int) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []Call
	for _, c := range r.Calls {
		if c.Op == op && (pin < 0 || c.Pin == pin) {
			result = append(result, c)
		}
	}
	return result
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	r.Calls = append(r.Calls, c)
	r.mu.Unlock()
}
