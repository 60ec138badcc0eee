package reflectance

import (
	"fmt"
	"time"

	"github.com/cjeanneret/ZumoGo/internal/debug"
	"github.com/cjeanneret/ZumoGo/internal/hw/gpio"
	"github.com/cjeanneret/ZumoGo/internal/logic/line"
)

// Config holds the wiring and timing of the RC reflectance array
// (Pololu QTR-RC style, as on the Zumo shield).
type Config struct {
	L3Pin      int
	L1Pin      int
	R1Pin      int
	R3Pin      int
	EmitterPin int           // IR LED enable. 0 = always on / not wired.
	ChargeTime time.Duration // how long the sensor capacitors are charged
	Window     time.Duration // measurement window; undischarged sensors read MaxValue
	MaxValue   uint16        // magnitude reported for a full window
}

// Array measures the four sensors by timing the capacitor discharge.
// Darker surfaces reflect less IR, discharge slower and read higher.
type Array struct {
	gpio  gpio.Driver
	cfg   Config
	pins  [4]int
	now   func() time.Time
	sleep func(time.Duration)
}

// New configures the sensor pins and turns the emitters on.
func New(g gpio.Driver, cfg Config) (*Array, error) {
	if cfg.ChargeTime <= 0 {
		cfg.ChargeTime = 10 * time.Microsecond
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Millisecond
	}
	if cfg.MaxValue == 0 {
		cfg.MaxValue = 24000
	}

	a := &Array{
		gpio:  g,
		cfg:   cfg,
		pins:  [4]int{cfg.L3Pin, cfg.L1Pin, cfg.R1Pin, cfg.R3Pin},
		now:   time.Now,
		sleep: time.Sleep,
	}

	if cfg.EmitterPin > 0 {
		if err := g.SetupPin(cfg.EmitterPin, gpio.Output); err != nil {
			return nil, fmt.Errorf("setup emitter pin: %w", err)
		}
		if err := g.WritePin(cfg.EmitterPin, gpio.High); err != nil {
			return nil, fmt.Errorf("enable emitters: %w", err)
		}
	}
	return a, nil
}

// Read performs one timed measurement of all four sensors.
// It blocks for at most ChargeTime + Window.
func (a *Array) Read() (line.Reading, error) {
	for _, p := range a.pins {
		if err := a.gpio.SetupPin(p, gpio.Output); err != nil {
			return line.Reading{}, err
		}
		if err := a.gpio.WritePin(p, gpio.High); err != nil {
			return line.Reading{}, err
		}
	}
	a.sleep(a.cfg.ChargeTime)

	for _, p := range a.pins {
		if err := a.gpio.SetupPin(p, gpio.Input); err != nil {
			return line.Reading{}, err
		}
	}

	var (
		elapsed [4]time.Duration
		done    [4]bool
		pending = len(a.pins)
	)
	start := a.now()
	for pending > 0 {
		dt := a.now().Sub(start)
		if dt >= a.cfg.Window {
			break
		}
		for i, p := range a.pins {
			if done[i] {
				continue
			}
			lvl, err := a.gpio.ReadPin(p)
			if err != nil {
				return line.Reading{}, err
			}
			if lvl == gpio.Low {
				elapsed[i] = dt
				done[i] = true
				pending--
			}
		}
	}

	var v [4]uint16
	for i := range v {
		if !done[i] {
			v[i] = a.cfg.MaxValue
			continue
		}
		v[i] = a.scale(elapsed[i])
	}

	r := line.Reading{L3: v[0], L1: v[1], R1: v[2], R3: v[3]}
	debug.Sensors(r.L3, r.L1, r.R1, r.R3)
	return r, nil
}

// Close turns the emitters off.
func (a *Array) Close() error {
	if a.cfg.EmitterPin > 0 {
		return a.gpio.WritePin(a.cfg.EmitterPin, gpio.Low)
	}
	return nil
}

func (a *Array) scale(d time.Duration) uint16 {
	if d >= a.cfg.Window {
		return a.cfg.MaxValue
	}
	return uint16(uint64(d) * uint64(a.cfg.MaxValue) / uint64(a.cfg.Window))
}
