// Package safety watches the battery and flags a critically low voltage.
package safety

import (
	"fmt"
	"time"

	"github.com/cjeanneret/ZumoGo/internal/debug"
)

// Battery returns the raw ADC code of the battery voltage.
type Battery interface {
	ReadRaw() (uint16, error)
}

// Params configures the monitor.
type Params struct {
	Interval    time.Duration // polling cadence
	CriticalV   float64       // readings strictly below halt the robot
	CountsPerV  float64       // ADC counts per volt at the ADC pin
	DividerGain float64       // battery volts per ADC-pin volt
}

// DefaultParams returns the Zumo values: every 5s, 4.00V, raw/819*1.5.
func DefaultParams() Params {
	return Params{
		Interval:    5 * time.Second,
		CriticalV:   4.00,
		CountsPerV:  819,
		DividerGain: 1.5,
	}
}

// Volts converts a raw ADC code to battery volts.
func (p Params) Volts(raw uint16) float64 {
	return float64(raw) / p.CountsPerV * p.DividerGain
}

// Status is the result of one battery sample.
type Status struct {
	Raw   uint16
	Volts float64
	Low   bool
}

// Monitor samples the battery on a fixed cadence. A single low reading is
// enough to report Low; there is no debounce.
type Monitor struct {
	battery Battery
	params  Params
	last    time.Time
	sampled bool
	status  Status
}

// New creates a monitor. The first call to Due always reports true.
func New(b Battery, p Params) *Monitor {
	if p.CountsPerV == 0 {
		p.CountsPerV = DefaultParams().CountsPerV
	}
	if p.DividerGain == 0 {
		p.DividerGain = DefaultParams().DividerGain
	}
	return &Monitor{battery: b, params: p}
}

// Due reports whether a sample is owed at now.
func (m *Monitor) Due(now time.Time) bool {
	return !m.sampled || now.Sub(m.last) >= m.params.Interval
}

// Check samples the battery and restarts the interval. A read error is
// returned as-is and does not count as a low battery.
func (m *Monitor) Check(now time.Time) (Status, error) {
	m.last = now
	m.sampled = true

	raw, err := m.battery.ReadRaw()
	if err != nil {
		return Status{}, fmt.Errorf("read battery: %w", err)
	}
	v := m.params.Volts(raw)
	s := Status{Raw: raw, Volts: v, Low: v < m.params.CriticalV}
	m.status = s
	debug.Battery(v, s.Low)
	return s, nil
}

// Poll runs Check when a sample is due. ok is false when nothing was sampled.
func (m *Monitor) Poll(now time.Time) (s Status, ok bool, err error) {
	if !m.Due(now) {
		return Status{}, false, nil
	}
	s, err = m.Check(now)
	return s, err == nil, err
}

// Last returns the most recent successful sample.
func (m *Monitor) Last() Status { return m.status }
