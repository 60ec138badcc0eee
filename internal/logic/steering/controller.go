// Package steering converts the line offset into differential track speeds.
package steering

import (
	"github.com/chewxy/math32"

	"github.com/cjeanneret/ZumoGo/internal/hw/motor"
	"github.com/cjeanneret/ZumoGo/internal/logic/line"
)

// Gains configures the PD controller and the speed envelope.
type Gains struct {
	Kp         float32
	Kd         float32
	BaseSpeed  float32
	MinSpeed   uint8
	MaxSpeed   uint8
	PivotSpeed uint8 // track speed during an edge pivot
}

// DefaultGains returns the tuned competition values.
func DefaultGains() Gains {
	return Gains{
		Kp:         45,
		Kd:         128,
		BaseSpeed:  255,
		MinSpeed:   0,
		MaxSpeed:   255,
		PivotSpeed: 255,
	}
}

// Output is the result of one controller step.
type Output struct {
	Left       uint8
	Right      uint8
	MotorSpeed float32 // Kp*e + Kd*de
	Corrected  bool    // saturation symmetry correction applied
}

// Controller is a proportional-derivative steering controller.
// The only state carried between ticks is the previous error.
type Controller struct {
	gains     Gains
	lastError float32
}

// New creates a controller.
func New(g Gains) *Controller {
	return &Controller{gains: g}
}

// Gains returns the controller configuration.
func (c *Controller) Gains() Gains { return c.gains }

// LastError returns the error seen on the previous step.
func (c *Controller) LastError() float32 { return c.lastError }

// Reset clears the derivative history. Call when line following (re)starts.
func (c *Controller) Reset() { c.lastError = 0 }

// Step computes the track speeds for offset.
//
// Both speeds are clamped independently to [MinSpeed, MaxSpeed]. If the
// clamped pair no longer turns the way motorSpeed asks (opposite turn or no
// differential left), the track that should be faster is forced to MaxSpeed.
func (c *Controller) Step(offset line.Offset) Output {
	e := float32(offset)
	m := c.gains.Kp*e + c.gains.Kd*(e-c.lastError)
	c.lastError = e

	left := c.clamp(c.gains.BaseSpeed + m)
	right := c.clamp(c.gains.BaseSpeed - m)

	hi := float32(c.gains.MaxSpeed)
	out := Output{MotorSpeed: m}
	switch {
	case m > 0 && left <= right && left < hi:
		left = hi
		out.Corrected = true
	case m < 0 && right <= left && right < hi:
		right = hi
		out.Corrected = true
	}
	out.Left = uint8(left)
	out.Right = uint8(right)
	return out
}

func (c *Controller) clamp(v float32) float32 {
	lo, hi := float32(c.gains.MinSpeed), float32(c.gains.MaxSpeed)
	if math32.IsNaN(v) {
		return lo
	}
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}

// Command turns a step output into a forward drive command.
func Command(out Output, scale uint) motor.Command {
	return motor.Command{
		LeftDir:    motor.Forward,
		RightDir:   motor.Forward,
		LeftSpeed:  out.Left,
		RightSpeed: out.Right,
		Scale:      scale,
	}
}

// Override returns the pivot command used when the outer sensor on side has
// run onto the boundary. The robot spins away from that side at PivotSpeed:
// an outer-left hit pivots right, an outer-right hit pivots left.
func (c *Controller) Override(side line.Side, scale uint) motor.Command {
	s := c.gains.PivotSpeed
	cmd := motor.Command{LeftSpeed: s, RightSpeed: s, Scale: scale}
	if side == line.Left {
		// pivot right
		cmd.LeftDir, cmd.RightDir = motor.Forward, motor.Backward
	} else {
		// pivot left
		cmd.LeftDir, cmd.RightDir = motor.Backward, motor.Forward
	}
	return cmd
}
