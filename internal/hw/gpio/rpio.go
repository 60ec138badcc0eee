package gpio

import (
	"fmt"

	"github.com/cjeanneret/ZumoGo/internal/debug"
	"github.com/stianeikeland/go-rpio/v4"
)

// RPiDriver is the real implementation for Raspberry Pi using go-rpio.
type RPiDriver struct {
	pins    map[int]rpio.Pin
	modes   map[int]PinMode
	pwmUsed bool
}

// NewRPiRealDriver creates a real GPIO driver for Raspberry Pi.
// Requires running on a Raspberry Pi with access to /dev/gpiomem or as root.
// Hardware PWM additionally needs /dev/mem (root).
func NewRPiRealDriver() (*RPiDriver, error) {
	debug.Info("Initializing real GPIO driver (go-rpio)")

	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO: %w (are you running on a Raspberry Pi?)", err)
	}

	debug.Verbose("GPIO memory mapped successfully")

	return &RPiDriver{
		pins:  make(map[int]rpio.Pin),
		modes: make(map[int]PinMode),
	}, nil
}

func (r *RPiDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)

	p := rpio.Pin(pin)

	switch mode {
	case Input:
		p.Input()
	case InputPullUp:
		p.Input()
		p.PullUp()
	case Output:
		p.Output()
	case PWM:
		p.Pwm()
		if !r.pwmUsed {
			rpio.StartPwm()
			r.pwmUsed = true
		}
	default:
		return fmt.Errorf("unknown pin mode: %d", mode)
	}

	r.pins[pin] = p
	r.modes[pin] = mode
	return nil
}

func (r *RPiDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)

	p, ok := r.pins[pin]
	if !ok || r.modes[pin] != Output {
		// Pin not setup as output yet
		if err := r.SetupPin(pin, Output); err != nil {
			return err
		}
		p = r.pins[pin]
	}

	if level == High {
		p.High()
	} else {
		p.Low()
	}

	return nil
}

func (r *RPiDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)

	p, ok := r.pins[pin]
	if !ok || (r.modes[pin] != Input && r.modes[pin] != InputPullUp) {
		// Pin not setup as input yet
		if err := r.SetupPin(pin, Input); err != nil {
			return Low, err
		}
		p = r.pins[pin]
	}

	if p.Read() == rpio.High {
		return High, nil
	}
	return Low, nil
}

func (r *RPiDriver) SetPWM(pin int, freq int, duty, cycle uint32) error {
	debug.GPIO("SetPWM", pin, debug.Fmt("freq=%d duty=%d/%d", freq, duty, cycle))

	if cycle == 0 {
		return fmt.Errorf("pwm cycle length must be > 0")
	}
	p, ok := r.pins[pin]
	if !ok || r.modes[pin] != PWM {
		if err := r.SetupPin(pin, PWM); err != nil {
			return err
		}
		p = r.pins[pin]
	}

	if freq <= 0 || duty == 0 {
		p.DutyCycle(0, cycle)
		return nil
	}
	// go-rpio's Freq sets the PWM clock; one period spans cycle clock ticks.
	p.Freq(freq * int(cycle))
	p.DutyCycle(duty, cycle)
	return nil
}

func (r *RPiDriver) Close() error {
	debug.Trace("GPIO Close (real driver)")

	if r.pwmUsed {
		rpio.StopPwm()
	}
	// Reset all pins to input (safe state)
	for pin, p := range r.pins {
		debug.Verbose("Resetting pin %d to input", pin)
		p.Input()
	}

	return rpio.Close()
}
