package motor

import (
	"fmt"
	"time"

	"github.com/cjeanneret/ZumoGo/internal/debug"
	"github.com/cjeanneret/ZumoGo/internal/hw/gpio"
)

// Direction of a single track.
type Direction uint8

const (
	Forward  Direction = 0
	Backward Direction = 1
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// Command is one differential drive request.
// Scale multiplies the driver's hold unit: Drive returns after
// Scale*HoldUnit with the command applied.
type Command struct {
	LeftDir    Direction
	RightDir   Direction
	LeftSpeed  uint8
	RightSpeed uint8
	Scale      uint
}

// Straight returns a forward command with both tracks at speed.
func Straight(speed uint8, scale uint) Command {
	return Command{LeftSpeed: speed, RightSpeed: speed, Scale: scale}
}

// Config holds the hardware configuration for the two tracks.
type Config struct {
	LeftDirPin  int
	RightDirPin int
	LeftPWMPin  int
	RightPWMPin int
	PWMFreq     int           // PWM frequency in Hz. 0 = 1kHz.
	InvertLeft  bool          // swap direction polarity of the left motor
	InvertRight bool          // swap direction polarity of the right motor
	HoldUnit    time.Duration // time per Scale unit
}

// Drive runs a pair of DC motors through a direction pin and a PWM pin each
// (Pololu Zumo shield wiring).
type Drive struct {
	gpio  gpio.Driver
	cfg   Config
	sleep func(time.Duration)
}

// maxSpeed is the full-scale PWM duty.
const maxSpeed = 255

// New creates a motor drive. Motors start stopped.
func New(g gpio.Driver, cfg Config) (*Drive, error) {
	if cfg.PWMFreq <= 0 {
		cfg.PWMFreq = 1000
	}
	for _, p := range []int{cfg.LeftDirPin, cfg.RightDirPin} {
		if err := g.SetupPin(p, gpio.Output); err != nil {
			return nil, fmt.Errorf("setup dir pin %d: %w", p, err)
		}
	}
	for _, p := range []int{cfg.LeftPWMPin, cfg.RightPWMPin} {
		if err := g.SetupPin(p, gpio.PWM); err != nil {
			return nil, fmt.Errorf("setup pwm pin %d: %w", p, err)
		}
	}

	d := &Drive{gpio: g, cfg: cfg, sleep: time.Sleep}
	if err := d.Stop(); err != nil {
		return nil, err
	}
	return d, nil
}

// Drive applies cmd and holds it for cmd.Scale hold units.
// There is no feedback: the command is fire-and-forget.
func (d *Drive) Drive(cmd Command) error {
	debug.Trace("Motor: L=%s/%d R=%s/%d scale=%d", cmd.LeftDir, cmd.LeftSpeed, cmd.RightDir, cmd.RightSpeed, cmd.Scale)

	if err := d.gpio.WritePin(d.cfg.LeftDirPin, dirLevel(cmd.LeftDir, d.cfg.InvertLeft)); err != nil {
		return err
	}
	if err := d.gpio.WritePin(d.cfg.RightDirPin, dirLevel(cmd.RightDir, d.cfg.InvertRight)); err != nil {
		return err
	}
	if err := d.gpio.SetPWM(d.cfg.LeftPWMPin, d.cfg.PWMFreq, uint32(cmd.LeftSpeed), maxSpeed); err != nil {
		return err
	}
	if err := d.gpio.SetPWM(d.cfg.RightPWMPin, d.cfg.PWMFreq, uint32(cmd.RightSpeed), maxSpeed); err != nil {
		return err
	}

	if hold := time.Duration(cmd.Scale) * d.cfg.HoldUnit; hold > 0 {
		d.sleep(hold)
	}
	return nil
}

// Stop sets both PWM outputs to zero.
func (d *Drive) Stop() error {
	debug.Trace("Motor: stop")
	if err := d.gpio.SetPWM(d.cfg.LeftPWMPin, d.cfg.PWMFreq, 0, maxSpeed); err != nil {
		return err
	}
	return d.gpio.SetPWM(d.cfg.RightPWMPin, d.cfg.PWMFreq, 0, maxSpeed)
}

func dirLevel(d Direction, invert bool) gpio.Level {
	backward := d == Backward
	if invert {
		backward = !backward
	}
	// Zumo: DIR LOW = forward, HIGH = backward.
	return gpio.Level(backward)
}
