package main

import (
	"fmt"
	"time"

	"github.com/cjeanneret/ZumoGo/internal/config"
	"github.com/cjeanneret/ZumoGo/internal/debug"
	"github.com/cjeanneret/ZumoGo/internal/hw/battery"
	"github.com/cjeanneret/ZumoGo/internal/hw/buzzer"
	"github.com/cjeanneret/ZumoGo/internal/hw/gpio"
	"github.com/cjeanneret/ZumoGo/internal/hw/motor"
	"github.com/cjeanneret/ZumoGo/internal/hw/panel"
	"github.com/cjeanneret/ZumoGo/internal/hw/reflectance"
	"github.com/cjeanneret/ZumoGo/internal/logic/calibrate"
	"github.com/cjeanneret/ZumoGo/internal/logic/run"
	"github.com/cjeanneret/ZumoGo/internal/logic/safety"
	"github.com/cjeanneret/ZumoGo/internal/logic/steering"
	"github.com/cjeanneret/ZumoGo/internal/logic/tune"
	"github.com/cjeanneret/ZumoGo/internal/web"
)

// robot owns the hardware of one session and the machine driving it.
type robot struct {
	machine *run.Machine
	motors  *motor.Drive
	sensors *reflectance.Array
	bridge  *battery.Bridge
}

// newRobot wires the hardware described by cfg. console may be nil.
func newRobot(g gpio.Driver, cfg *config.Config, console *web.Console) (*robot, error) {
	r := &robot{}

	debug.Step(2, "Initializing motors")
	motors, err := motor.New(g, motor.Config{
		LeftDirPin:  cfg.Motors.LeftDirPin,
		RightDirPin: cfg.Motors.RightDirPin,
		LeftPWMPin:  cfg.Motors.LeftPWMPin,
		RightPWMPin: cfg.Motors.RightPWMPin,
		PWMFreq:     cfg.Motors.PWMFreqHz,
		InvertLeft:  cfg.Motors.InvertLeft,
		InvertRight: cfg.Motors.InvertRight,
		HoldUnit:    cfg.MotorHold(),
	})
	if err != nil {
		return nil, fmt.Errorf("init motors: %w", err)
	}
	r.motors = motors
	debug.PrintStruct("Motors config", cfg.Motors)

	debug.Step(3, "Initializing reflectance sensors")
	sensors, err := reflectance.New(g, reflectance.Config{
		L3Pin:      cfg.Sensors.L3Pin,
		L1Pin:      cfg.Sensors.L1Pin,
		R1Pin:      cfg.Sensors.R1Pin,
		R3Pin:      cfg.Sensors.R3Pin,
		EmitterPin: cfg.Sensors.EmitterPin,
		ChargeTime: cfg.SensorCharge(),
		Window:     cfg.SensorWindow(),
		MaxValue:   cfg.Sensors.MaxValue,
	})
	if err != nil {
		return nil, fmt.Errorf("init sensors: %w", err)
	}
	r.sensors = sensors
	debug.PrintStruct("Sensors config", cfg.Sensors)

	debug.Step(4, "Initializing buzzer and panel")
	var beeper tune.Beeper = silent{}
	if cfg.Buzzer.Pin > 0 {
		bz, err := buzzer.New(g, buzzer.Config{
			Pin:      cfg.Buzzer.Pin,
			ClockHz:  cfg.Buzzer.ClockHz,
			TickUnit: cfg.BuzzerTick(),
		})
		if err != nil {
			return nil, fmt.Errorf("init buzzer: %w", err)
		}
		beeper = bz
	}
	button, err := panel.NewButton(g, cfg.Panel.ButtonPin)
	if err != nil {
		return nil, fmt.Errorf("init button: %w", err)
	}
	led, err := panel.NewLED(g, cfg.Panel.LEDPin)
	if err != nil {
		return nil, fmt.Errorf("init led: %w", err)
	}

	debug.Step(5, "Initializing battery monitor")
	batt, err := r.newBattery(cfg)
	if err != nil {
		return nil, err
	}

	debug.Step(6, "Creating run machine")
	calib := calibrate.New(sensors, beeper, time.Sleep, calibrate.Params{
		Samples:  cfg.Calibration.Samples,
		Interval: cfg.CalibrationInterval(),
		Window:   cfg.CalibrationWindow(),
		Black:    cfg.Control.Black,
	})
	monitor := safety.New(batt, safety.Params{
		Interval:    cfg.BatteryInterval(),
		CriticalV:   cfg.Battery.CriticalV,
		CountsPerV:  cfg.Battery.CountsPerV,
		DividerGain: cfg.Battery.DividerGain,
	})
	steer := steering.New(gainsFromConfig(cfg))

	hw := run.Hardware{
		Sensors: sensors,
		Motors:  motors,
		Button:  button,
		LED:     led,
		Beeper:  beeper,
		Clock:   run.SystemClock{},
	}
	if console != nil {
		hw.Remote = console
	}
	r.machine = run.New(hw, calib, monitor, steer, paramsFromConfig(cfg))
	return r, nil
}

func (r *robot) newBattery(cfg *config.Config) (safety.Battery, error) {
	switch cfg.Battery.Type {
	case "fixed":
		debug.Value("Battery", fmt.Sprintf("fixed raw %d", cfg.Battery.FixedRaw))
		return &battery.Fixed{Raw: cfg.Battery.FixedRaw}, nil
	case "serial":
		b := battery.NewBridge(cfg.Battery.Port, cfg.Battery.Baud, cfg.BatteryTimeout())
		if err := b.Connect(); err != nil {
			return nil, fmt.Errorf("connect battery bridge: %w", err)
		}
		r.bridge = b
		debug.Value("Battery", cfg.Battery.Port)
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported battery type: %s", cfg.Battery.Type)
	}
}

// Close stops the motors and releases the devices.
func (r *robot) Close() {
	if r.motors != nil {
		if err := r.motors.Stop(); err != nil {
			debug.Error(fmt.Errorf("stop motors: %w", err))
		}
	}
	if r.sensors != nil {
		if err := r.sensors.Close(); err != nil {
			debug.Error(fmt.Errorf("close sensors: %w", err))
		}
	}
	if r.bridge != nil {
		if err := r.bridge.Close(); err != nil {
			debug.Error(fmt.Errorf("close battery bridge: %w", err))
		}
	}
}

func gainsFromConfig(cfg *config.Config) steering.Gains {
	return steering.Gains{
		Kp:         cfg.Control.Kp,
		Kd:         cfg.Control.Kd,
		BaseSpeed:  cfg.Control.BaseSpeed,
		MinSpeed:   cfg.Control.MinSpeed,
		MaxSpeed:   cfg.Control.MaxSpeed,
		PivotSpeed: cfg.Control.PivotSpeed,
	}
}

func paramsFromConfig(cfg *config.Config) run.Params {
	return run.Params{
		IdlePoll:       cfg.IdlePoll(),
		HeartbeatTicks: cfg.Run.HeartbeatTicks,
		AlignSettle:    cfg.AlignSettle(),
		AlignSpeed:     cfg.Run.AlignSpeed,
		SettleTicks:    cfg.Run.SettleTicks,
		StopCheckTicks: cfg.Run.StopCheckTicks,
		StopConfirm:    cfg.Run.StopConfirm,
		StopThreshold:  cfg.Control.StopThreshold,
		EdgeMargin:     cfg.Control.EdgeMargin,
		DriveScale:     cfg.Control.DriveScale,
		Song:           tune.Finale,
	}
}

// silent is the beeper used when no buzzer is wired.
type silent struct{}

func (silent) Beep(uint32, uint8) error { return nil }
