// Package run sequences a line-following run: calibration, alignment on the
// start line, PD following, the final stop and the low-battery halt.
package run

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cjeanneret/ZumoGo/internal/debug"
	"github.com/cjeanneret/ZumoGo/internal/hw/motor"
	"github.com/cjeanneret/ZumoGo/internal/logic/line"
	"github.com/cjeanneret/ZumoGo/internal/logic/safety"
	"github.com/cjeanneret/ZumoGo/internal/logic/steering"
	"github.com/cjeanneret/ZumoGo/internal/logic/tune"
	"github.com/google/uuid"
)

// Sensors returns one reflectance reading.
type Sensors interface {
	Read() (line.Reading, error)
}

// Motors drives the two tracks.
type Motors interface {
	Drive(cmd motor.Command) error
	Stop() error
}

// Button is the start button.
type Button interface {
	Pressed() (bool, error)
}

// LED is the status LED.
type LED interface {
	Set(on bool) error
	Toggle() error
}

// Clock abstracts time so tests can run the machine without sleeping.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// Calibrator learns the white references.
type Calibrator interface {
	Run() (line.Calibration, error)
}

// Monitor is polled at the start of every active tick.
type Monitor interface {
	Poll(now time.Time) (safety.Status, bool, error)
}

// Remote carries start and go requests from the operator console. Each
// request is consumed once.
type Remote interface {
	TakeStart() bool
	TakeGo() bool
}

// Hardware groups the collaborators of a Machine. Remote may be nil.
type Hardware struct {
	Sensors Sensors
	Motors  Motors
	Button  Button
	LED     LED
	Beeper  tune.Beeper
	Clock   Clock
	Remote  Remote
}

// Params holds the sequencing constants.
type Params struct {
	IdlePoll       time.Duration // wait per idle or waiting tick
	HeartbeatTicks int           // idle ticks per LED toggle
	AlignSettle    time.Duration // pause before creeping to the start line
	AlignSpeed     uint8         // creep speed while aligning and stopping
	SettleTicks    int           // following ticks before stop-line checks start
	StopCheckTicks int           // following ticks between stop-line checks
	StopConfirm    int           // stop-line detections that end following
	StopThreshold  uint16        // per-sensor stop-line level
	EdgeMargin     uint16        // 0 uses the learned outer white
	DriveScale     uint          // hold of each motor command, in motor hold units
	Song           tune.Song     // played when the run is finished
}

// DefaultParams returns the values used on the Zumo.
func DefaultParams() Params {
	return Params{
		IdlePoll:       20 * time.Millisecond,
		HeartbeatTicks: 25,
		AlignSettle:    500 * time.Millisecond,
		AlignSpeed:     100,
		SettleTicks:    20,
		StopCheckTicks: 20,
		StopConfirm:    4,
		StopThreshold:  20000,
		DriveScale:     1,
		Song:           tune.Finale,
	}
}

// Status is a snapshot of the machine for the console.
type Status struct {
	Session    string  `json:"session"`
	Phase      string  `json:"phase"`
	Calibrated bool    `json:"calibrated"`
	Volts      float64 `json:"battery_volts"`
	LowBattery bool    `json:"low_battery"`
}

// Machine owns one session, from power-on until Finished or a low battery.
// All methods except Phase and Status must be called from one goroutine.
type Machine struct {
	hw      Hardware
	calib   Calibrator
	monitor Monitor
	steer   *steering.Controller
	params  Params
	session string

	phase atomic.Int32

	mu         sync.Mutex
	calibrated bool
	battery    safety.Status

	cal   line.Calibration
	norm  *line.Normalizer
	class *line.Classifier

	buttonHeld bool
	heartbeat  int

	settled bool
	onLine  bool

	ticks    int
	stopHits int

	cleared bool

	alarm *alarm
}

// New creates a machine in Idle with a fresh session id.
func New(hw Hardware, calib Calibrator, mon Monitor, steer *steering.Controller, p Params) *Machine {
	if p.IdlePoll <= 0 {
		p.IdlePoll = DefaultParams().IdlePoll
	}
	if p.HeartbeatTicks <= 0 {
		p.HeartbeatTicks = DefaultParams().HeartbeatTicks
	}
	if p.StopCheckTicks <= 0 {
		p.StopCheckTicks = DefaultParams().StopCheckTicks
	}
	if p.StopConfirm <= 0 {
		p.StopConfirm = DefaultParams().StopConfirm
	}
	if p.DriveScale == 0 {
		p.DriveScale = 1
	}
	m := &Machine{
		hw:      hw,
		calib:   calib,
		monitor: mon,
		steer:   steer,
		params:  p,
		session: uuid.New().String(),
	}
	m.phase.Store(int32(Idle))
	debug.Info("Session %s", m.session)
	return m
}

// Session returns the session id.
func (m *Machine) Session() string { return m.session }

// Phase returns the current phase. Safe for concurrent use.
func (m *Machine) Phase() Phase { return Phase(m.phase.Load()) }

// Calibration returns the learned calibration and whether one exists.
func (m *Machine) Calibration() (line.Calibration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cal, m.calibrated
}

// Status returns a snapshot for the console. Safe for concurrent use.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Session:    m.session,
		Phase:      m.Phase().String(),
		Calibrated: m.calibrated,
		Volts:      m.battery.Volts,
		LowBattery: m.battery.Low,
	}
}

// Run steps the machine until it is Finished or ctx is done. Tick errors
// are logged and the loop goes on.
func (m *Machine) Run(ctx context.Context) error {
	for m.Phase() != Finished {
		if err := m.Step(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			debug.Error(err)
		}
	}
	return nil
}

// Step runs one tick of the current phase. Cancellation is checked before
// the tick starts, never in the middle of one.
func (m *Machine) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p := m.Phase()
	if !p.Terminal() && m.checkBattery() {
		return m.halt()
	}

	switch m.Phase() {
	case Idle:
		return m.stepIdle()
	case Calibrating:
		return m.stepCalibrating()
	case Aligning:
		return m.stepAligning()
	case Following:
		return m.stepFollowing()
	case Stopping:
		return m.stepStopping()
	case HaltedLowBattery:
		return m.stepHalted()
	}
	return nil
}

// checkBattery polls the monitor and reports a low battery.
func (m *Machine) checkBattery() bool {
	if m.monitor == nil {
		return false
	}
	s, ok, err := m.monitor.Poll(m.hw.Clock.Now())
	if err != nil {
		debug.Error(err)
		return false
	}
	if !ok {
		return false
	}
	m.mu.Lock()
	m.battery = s
	m.mu.Unlock()
	return s.Low
}

func (m *Machine) enter(next Phase) {
	prev := m.Phase()
	m.phase.Store(int32(next))
	debug.Phase(prev.String(), next.String())
}

func (m *Machine) halt() error {
	m.enter(HaltedLowBattery)
	m.alarm = newAlarm()
	if err := m.hw.Motors.Stop(); err != nil {
		return fmt.Errorf("stop motors: %w", err)
	}
	return nil
}

// pressed reports a new button press (released to pressed) or a console
// start request.
func (m *Machine) pressed() (bool, error) {
	if m.hw.Remote != nil && m.hw.Remote.TakeStart() {
		return true, nil
	}
	return m.buttonEdge()
}

func (m *Machine) buttonEdge() (bool, error) {
	down, err := m.hw.Button.Pressed()
	if err != nil {
		return false, fmt.Errorf("read button: %w", err)
	}
	edge := down && !m.buttonHeld
	m.buttonHeld = down
	return edge, nil
}

func (m *Machine) stepIdle() error {
	start, err := m.pressed()
	if err != nil {
		return err
	}
	if start {
		m.heartbeat = 0
		if err := m.hw.LED.Set(false); err != nil {
			debug.Error(err)
		}
		m.mu.Lock()
		calibrated := m.calibrated
		m.mu.Unlock()
		if calibrated {
			m.startAligning()
		} else {
			m.enter(Calibrating)
		}
		return nil
	}

	m.heartbeat++
	if m.heartbeat >= m.params.HeartbeatTicks {
		m.heartbeat = 0
		if err := m.hw.LED.Toggle(); err != nil {
			return fmt.Errorf("toggle led: %w", err)
		}
	}
	m.hw.Clock.Sleep(m.params.IdlePoll)
	return nil
}

func (m *Machine) stepCalibrating() error {
	cal, err := m.calib.Run()
	if err != nil {
		m.enter(Idle)
		return fmt.Errorf("calibrate: %w", err)
	}
	m.setCalibration(cal)
	m.startAligning()
	return nil
}

func (m *Machine) setCalibration(cal line.Calibration) {
	m.mu.Lock()
	m.cal = cal
	m.calibrated = true
	m.mu.Unlock()
	m.norm = line.NewNormalizer(cal)
	m.class = line.NewClassifier(m.params.StopThreshold, cal, m.params.EdgeMargin)
	debug.PrintStruct("calibration", cal)
}

func (m *Machine) startAligning() {
	m.settled = false
	m.onLine = false
	m.dropGo()
	m.enter(Aligning)
}

// dropGo discards a go request sent before the robot reached the start line.
func (m *Machine) dropGo() {
	if m.hw.Remote != nil && m.hw.Remote.TakeGo() {
		debug.Info("Go received before the start line, ignored")
	}
}

func (m *Machine) stepAligning() error {
	if !m.settled {
		m.settled = true
		m.hw.Clock.Sleep(m.params.AlignSettle)
		return nil
	}

	if !m.onLine {
		r, err := m.hw.Sensors.Read()
		if err != nil {
			return fmt.Errorf("read sensors: %w", err)
		}
		if m.class.OnStopLine(r) {
			m.onLine = true
			m.dropGo()
			debug.Info("On start line, waiting for go")
			if err := m.hw.Motors.Stop(); err != nil {
				return fmt.Errorf("stop motors: %w", err)
			}
			return nil
		}
		return m.drive(motor.Straight(m.params.AlignSpeed, m.params.DriveScale))
	}

	start := m.hw.Remote != nil && m.hw.Remote.TakeGo()
	if !start {
		edge, err := m.buttonEdge()
		if err != nil {
			return err
		}
		start = edge
	}
	if start {
		m.startFollowing()
		return nil
	}
	m.hw.Clock.Sleep(m.params.IdlePoll)
	return nil
}

func (m *Machine) startFollowing() {
	m.steer.Reset()
	m.norm.Reset()
	m.ticks = 0
	m.stopHits = 0
	m.enter(Following)
}

func (m *Machine) stepFollowing() error {
	r, err := m.hw.Sensors.Read()
	if err != nil {
		return fmt.Errorf("read sensors: %w", err)
	}
	debug.Sensors(r.L3, r.L1, r.R1, r.R3)

	off, ok := m.norm.Offset(r)
	if !ok {
		debug.Live("reading outside calibrated range, holding offset %f", off)
	}
	out := m.steer.Step(off)
	cmd := steering.Command(out, m.params.DriveScale)
	if side, hit := m.class.Edge(r); hit {
		cmd = m.steer.Override(side, m.params.DriveScale)
		debug.Live("edge %s: pivot", side)
	}
	debug.Steer(float32(off), out.MotorSpeed, out.Left, out.Right)
	driveErr := m.drive(cmd)

	m.ticks++
	if m.ticks >= m.params.SettleTicks &&
		(m.ticks-m.params.SettleTicks)%m.params.StopCheckTicks == 0 &&
		m.class.OnStopLine(r) {
		m.stopHits++
		debug.Live("stop line %d/%d", m.stopHits, m.params.StopConfirm)
		if m.stopHits >= m.params.StopConfirm {
			m.cleared = false
			m.enter(Stopping)
		}
	}
	return driveErr
}

func (m *Machine) stepStopping() error {
	r, err := m.hw.Sensors.Read()
	if err != nil {
		return fmt.Errorf("read sensors: %w", err)
	}
	on := m.class.OnStopLine(r)
	if !m.cleared {
		m.cleared = !on
	} else if on {
		return m.finish()
	}
	return m.drive(motor.Straight(m.params.AlignSpeed, m.params.DriveScale))
}

func (m *Machine) finish() error {
	if err := m.hw.Motors.Stop(); err != nil {
		return fmt.Errorf("stop motors: %w", err)
	}
	m.enter(Finished)
	debug.Summary("Run finished")
	if err := tune.Play(m.hw.Beeper, m.hw.Clock.Sleep, m.params.Song); err != nil {
		return fmt.Errorf("play tune: %w", err)
	}
	return nil
}

func (m *Machine) stepHalted() error {
	if m.alarm == nil {
		m.alarm = newAlarm()
	}
	if err := m.hw.LED.Toggle(); err != nil {
		return fmt.Errorf("toggle led: %w", err)
	}
	m.hw.Clock.Sleep(m.alarm.next())
	return nil
}

func (m *Machine) drive(cmd motor.Command) error {
	if err := m.hw.Motors.Drive(cmd); err != nil {
		return fmt.Errorf("drive motors: %w", err)
	}
	return nil
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time { return time.Now() }

// Sleep calls time.Sleep.
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }
