package buzzer

import (
	"time"

	"github.com/cjeanneret/ZumoGo/internal/debug"
	"github.com/cjeanneret/ZumoGo/internal/hw/gpio"
)

// Config holds the buzzer wiring.
type Config struct {
	Pin      int
	ClockHz  int           // pitch reference: frequency = ClockHz / pitch
	TickUnit time.Duration // duration of one beep tick
}

// Buzzer plays square-wave tones on a PWM pin.
type Buzzer struct {
	gpio  gpio.Driver
	cfg   Config
	sleep func(time.Duration)
}

// New creates a buzzer. ClockHz defaults to 100kHz (pitch 153 ≈ E5) and
// TickUnit to 1ms.
func New(g gpio.Driver, cfg Config) (*Buzzer, error) {
	if cfg.ClockHz <= 0 {
		cfg.ClockHz = 100000
	}
	if cfg.TickUnit <= 0 {
		cfg.TickUnit = time.Millisecond
	}
	if err := g.SetupPin(cfg.Pin, gpio.PWM); err != nil {
		return nil, err
	}
	return &Buzzer{gpio: g, cfg: cfg, sleep: time.Sleep}, nil
}

// Frequency returns the tone frequency in Hz for a pitch code.
func (b *Buzzer) Frequency(pitch uint8) int {
	if pitch == 0 {
		return 0
	}
	return b.cfg.ClockHz / int(pitch)
}

// Beep plays pitch for ticks tick units and blocks until the tone ends.
// Pitch 0 is a rest.
func (b *Buzzer) Beep(ticks uint32, pitch uint8) error {
	freq := b.Frequency(pitch)
	debug.Trace("Beep: %d ticks at %d Hz", ticks, freq)

	if freq > 0 {
		if err := b.gpio.SetPWM(b.cfg.Pin, freq, 1, 2); err != nil {
			return err
		}
	}
	b.sleep(time.Duration(ticks) * b.cfg.TickUnit)
	return b.gpio.SetPWM(b.cfg.Pin, freq, 0, 2)
}
