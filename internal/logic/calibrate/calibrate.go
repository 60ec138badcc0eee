// Package calibrate learns the white reference of each reflectance sensor.
package calibrate

import (
	"fmt"
	"time"

	"github.com/cjeanneret/ZumoGo/internal/debug"
	"github.com/cjeanneret/ZumoGo/internal/logic/line"
)

// Sampler is the reflectance sensor driver.
type Sampler interface {
	Read() (line.Reading, error)
}

// Beeper plays a blocking tone.
type Beeper interface {
	Beep(ticks uint32, pitch uint8) error
}

// Confirmation tone played when a pass completes.
const (
	ToneTicks uint32 = 25
	TonePitch uint8  = 200
)

// Params configures a calibration pass.
type Params struct {
	Samples  int           // number of reads
	Interval time.Duration // delay after each read
	Window   time.Duration // total pass duration; the remainder after sampling is waited out
	Black    uint16        // fixed black reference for every sensor
}

// DefaultParams returns the stock timing: 10 reads 100ms apart in a 1.1s window.
func DefaultParams() Params {
	return Params{
		Samples:  10,
		Interval: 100 * time.Millisecond,
		Window:   1100 * time.Millisecond,
		Black:    23999,
	}
}

// Procedure averages the sensors over a fixed window.
type Procedure struct {
	sampler Sampler
	beeper  Beeper
	sleep   func(time.Duration)
	params  Params
}

// New creates a calibration procedure. sleep is the blocking delay primitive.
func New(s Sampler, b Beeper, sleep func(time.Duration), p Params) *Procedure {
	if p.Samples <= 0 {
		p.Samples = DefaultParams().Samples
	}
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Procedure{sampler: s, beeper: b, sleep: sleep, params: p}
}

// Run performs one pass and returns the new calibration.
//
// Every sensor's white value is the arithmetic mean (truncated) of the
// sampled readings. The confirmation tone is played once the pass is
// complete, before validation: a miscalibrated result still beeps and is
// returned together with an error wrapping line.ErrMiscalibrated.
// A read error aborts the pass; nothing is retried.
func (p *Procedure) Run() (line.Calibration, error) {
	debug.Section("Calibration")

	var sum [4]uint32
	for i := 0; i < p.params.Samples; i++ {
		r, err := p.sampler.Read()
		if err != nil {
			return line.Calibration{}, fmt.Errorf("calibration sample %d: %w", i, err)
		}
		sum[0] += uint32(r.L3)
		sum[1] += uint32(r.L1)
		sum[2] += uint32(r.R1)
		sum[3] += uint32(r.R3)
		debug.Verbose("line: %d    l:%d r:%d", i, r.L1, r.R1)
		p.sleep(p.params.Interval)
	}
	if rest := p.params.Window - time.Duration(p.params.Samples)*p.params.Interval; rest > 0 {
		p.sleep(rest)
	}

	n := uint32(p.params.Samples)
	white := line.Reading{
		L3: uint16(sum[0] / n),
		L1: uint16(sum[1] / n),
		R1: uint16(sum[2] / n),
		R3: uint16(sum[3] / n),
	}
	cal := line.NewCalibration(p.params.Black, white)
	debug.PrintStruct("Calibration", cal)

	if p.beeper != nil {
		if err := p.beeper.Beep(ToneTicks, TonePitch); err != nil {
			debug.Error(fmt.Errorf("calibration tone: %w", err))
		}
	}

	if err := cal.Validate(); err != nil {
		return cal, err
	}
	debug.Info("Calibrated white: l3=%d l1=%d r1=%d r3=%d", white.L3, white.L1, white.R1, white.R3)
	return cal, nil
}
