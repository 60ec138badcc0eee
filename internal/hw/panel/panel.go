package panel

import (
	"github.com/cjeanneret/ZumoGo/internal/hw/gpio"
)

// Button is an active-low push button (SW1 on the Zumo board).
type Button struct {
	gpio gpio.Driver
	pin  int
}

// NewButton configures pin as an input with pull-up.
func NewButton(g gpio.Driver, pin int) (*Button, error) {
	if err := g.SetupPin(pin, gpio.InputPullUp); err != nil {
		return nil, err
	}
	return &Button{gpio: g, pin: pin}, nil
}

// Pressed reports whether the button is held down (pin LOW).
func (b *Button) Pressed() (bool, error) {
	lvl, err := b.gpio.ReadPin(b.pin)
	if err != nil {
		return false, err
	}
	return lvl == gpio.Low, nil
}

// LED is the status LED.
type LED struct {
	gpio gpio.Driver
	pin  int
	on   bool
}

// NewLED configures pin as an output and switches the LED off.
func NewLED(g gpio.Driver, pin int) (*LED, error) {
	if err := g.SetupPin(pin, gpio.Output); err != nil {
		return nil, err
	}
	l := &LED{gpio: g, pin: pin}
	return l, l.Set(false)
}

// Set switches the LED on or off.
func (l *LED) Set(on bool) error {
	if err := l.gpio.WritePin(l.pin, gpio.Level(on)); err != nil {
		return err
	}
	l.on = on
	return nil
}

// Toggle inverts the LED.
func (l *LED) Toggle() error {
	return l.Set(!l.on)
}

// On reports the last state written.
func (l *LED) On() bool { return l.on }
