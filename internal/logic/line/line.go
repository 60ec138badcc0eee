// Package line turns raw reflectance readings into a steering signal and
// classifies what the sensor bar is currently over.
package line

import (
	"errors"
	"fmt"
)

// ErrMiscalibrated reports a sensor whose learned white is not below its black reference.
var ErrMiscalibrated = errors.New("sensor miscalibrated: white >= black")

// Reading is one fresh measurement of the four sensors, outer-left to outer-right.
// Higher values are darker.
type Reading struct {
	L3 uint16 // outer left
	L1 uint16 // inner left
	R1 uint16 // inner right
	R3 uint16 // outer right
}

// Reference is the raw magnitude of one sensor over white and over black.
type Reference struct {
	White uint16
	Black uint16
}

// Usable reports whether the reference spans a non-empty range.
func (r Reference) Usable() bool {
	return r.White < r.Black
}

// Calibration holds the references of all four sensors.
type Calibration struct {
	L3 Reference
	L1 Reference
	R1 Reference
	R3 Reference
}

// NewCalibration builds a calibration with the same black reference
// for every sensor and the given white values.
func NewCalibration(black uint16, white Reading) Calibration {
	return Calibration{
		L3: Reference{White: white.L3, Black: black},
		L1: Reference{White: white.L1, Black: black},
		R1: Reference{White: white.R1, Black: black},
		R3: Reference{White: white.R3, Black: black},
	}
}

// Validate returns ErrMiscalibrated naming every unusable sensor.
func (c Calibration) Validate() error {
	var bad []string
	for _, s := range []struct {
		name string
		ref  Reference
	}{{"l3", c.L3}, {"l1", c.L1}, {"r1", c.R1}, {"r3", c.R3}} {
		if !s.ref.Usable() {
			bad = append(bad, fmt.Sprintf("%s(white=%d black=%d)", s.name, s.ref.White, s.ref.Black))
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("%w: %v", ErrMiscalibrated, bad)
	}
	return nil
}

// Side selects the left or right half of the sensor bar.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Right {
		return "right"
	}
	return "left"
}
