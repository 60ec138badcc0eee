package gpio

import (
	"github.com/cjeanneret/ZumoGo/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode indicates how a GPIO is driven.
type PinMode int

const (
	Input PinMode = iota
	Output
	InputPullUp // input with internal pull-up (active-low buttons)
	PWM         // hardware PWM (GPIO12/13/18/19 on the Pi)
)

// Driver defines the abstract interface for controlling GPIOs.
// This allows plugging in a real Raspberry Pi implementation
// or a mock for development on PC.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	// SetPWM sets the PWM frequency (Hz) and duty cycle (duty/cycle) of a pin.
	// freq 0 or duty 0 turns the output off.
	SetPWM(pin int, freq int, duty, cycle uint32) error
	Close() error
}

// MockDriver is a test implementation that simply logs actions.
// Used for development on PC or testing. Reads return Idle.
type MockDriver struct {
	Idle Level
}

// NewDriver creates a GPIO driver based on the chosen mode.
// If mock is true, returns a MockDriver (for dev/test).
// If mock is false, returns a real RPiDriver (for Raspberry Pi).
func NewDriver(mock bool) (Driver, error) {
	if mock {
		debug.Info("Using MOCK GPIO driver (development mode)")
		// Idle high keeps active-low buttons released.
		return &MockDriver{Idle: High}, nil
	}
	return NewRPiRealDriver()
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	return m.Idle, nil
}

func (m *MockDriver) SetPWM(pin int, freq int, duty, cycle uint32) error {
	debug.GPIO("SetPWM", pin, debug.Fmt("freq=%d duty=%d/%d", freq, duty, cycle))
	return nil
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	return nil
}
