package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes bounds the size of a config file.
const MaxConfigFileBytes = 64 << 10

// MotorsConfig holds the wiring of the two tracks (direction GPIO + PWM).
type MotorsConfig struct {
	LeftDirPin  int  `yaml:"left_dir_pin"`
	RightDirPin int  `yaml:"right_dir_pin"`
	LeftPWMPin  int  `yaml:"left_pwm_pin"`  // hardware PWM capable pin
	RightPWMPin int  `yaml:"right_pwm_pin"` // hardware PWM capable pin
	PWMFreqHz   int  `yaml:"pwm_freq_hz"`
	InvertLeft  bool `yaml:"invert_left"` // motor wired backwards
	InvertRight bool `yaml:"invert_right"`
	HoldMs      int  `yaml:"hold_ms"` // how long one drive command is held per scale unit
}

// SensorsConfig holds the reflectance array wiring and timing.
type SensorsConfig struct {
	L3Pin      int    `yaml:"l3_pin"`
	L1Pin      int    `yaml:"l1_pin"`
	R1Pin      int    `yaml:"r1_pin"`
	R3Pin      int    `yaml:"r3_pin"`
	EmitterPin int    `yaml:"emitter_pin"` // 0 = emitters always on
	ChargeUs   int    `yaml:"charge_us"`
	WindowUs   int    `yaml:"window_us"`
	MaxValue   uint16 `yaml:"max_value"` // reading of a sensor that never discharged
}

// BatteryConfig selects the battery source and the low-voltage policy.
// Type is "serial" (ADC bridge on a serial port) or "fixed" (constant raw
// code, for bench runs without the bridge).
type BatteryConfig struct {
	Type        string  `yaml:"type"`
	Port        string  `yaml:"port"`
	Baud        int     `yaml:"baud"`
	TimeoutMs   int     `yaml:"timeout_ms"`
	FixedRaw    uint16  `yaml:"fixed_raw"`
	IntervalMs  int     `yaml:"interval_ms"`
	CriticalV   float64 `yaml:"critical_v"`
	CountsPerV  float64 `yaml:"counts_per_v"`
	DividerGain float64 `yaml:"divider_gain"`
}

// BuzzerConfig holds the buzzer PWM pin and tone clock.
type BuzzerConfig struct {
	Pin     int `yaml:"pin"`      // 0 = no buzzer
	ClockHz int `yaml:"clock_hz"` // tone frequency = clock_hz / pitch
	TickMs  int `yaml:"tick_ms"`  // length of one beep tick
}

// PanelConfig holds the start button and status LED pins.
type PanelConfig struct {
	ButtonPin int `yaml:"button_pin"` // active low, internal pull-up
	LEDPin    int `yaml:"led_pin"`
}

// ControlConfig holds the steering gains and line thresholds.
type ControlConfig struct {
	Kp            float32 `yaml:"kp"`
	Kd            float32 `yaml:"kd"`
	BaseSpeed     float32 `yaml:"base_speed"`
	MinSpeed      uint8   `yaml:"min_speed"`
	MaxSpeed      uint8   `yaml:"max_speed"`
	PivotSpeed    uint8   `yaml:"pivot_speed"`
	Black         uint16  `yaml:"black"`          // saturation reference of every sensor
	StopThreshold uint16  `yaml:"stop_threshold"` // all four at or above = stop line
	EdgeMargin    uint16  `yaml:"edge_margin"`    // 0 = use the learned outer white
	DriveScale    uint    `yaml:"drive_scale"`
}

// CalibrationConfig holds the calibration pass timing.
type CalibrationConfig struct {
	Samples    int `yaml:"samples"`
	IntervalMs int `yaml:"interval_ms"`
	WindowMs   int `yaml:"window_ms"`
}

// RunConfig holds the run sequencing constants.
type RunConfig struct {
	IdlePollMs     int   `yaml:"idle_poll_ms"`
	HeartbeatTicks int   `yaml:"heartbeat_ticks"`
	AlignSettleMs  int   `yaml:"align_settle_ms"`
	AlignSpeed     uint8 `yaml:"align_speed"`
	SettleTicks    int   `yaml:"settle_ticks"`
	StopCheckTicks int   `yaml:"stop_check_ticks"`
	StopConfirm    int   `yaml:"stop_confirm"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Motors      MotorsConfig      `yaml:"motors"`
	Sensors     SensorsConfig     `yaml:"sensors"`
	Battery     BatteryConfig     `yaml:"battery"`
	Buzzer      BuzzerConfig      `yaml:"buzzer"`
	Panel       PanelConfig       `yaml:"panel"`
	Control     ControlConfig     `yaml:"control"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Run         RunConfig         `yaml:"run"`
	Defaults    DefaultsConfig    `yaml:"defaults"`
}

// Default returns the configuration of the stock robot. Every value is the
// one Load falls back to when a field is absent.
func Default() *Config {
	return &Config{
		Motors: MotorsConfig{
			LeftDirPin:  5,
			RightDirPin: 6,
			LeftPWMPin:  12,
			RightPWMPin: 13,
			PWMFreqHz:   1000,
			HoldMs:      1,
		},
		Sensors: SensorsConfig{
			L3Pin:      17,
			L1Pin:      27,
			R1Pin:      22,
			R3Pin:      23,
			EmitterPin: 24,
			ChargeUs:   10,
			WindowUs:   1000,
			MaxValue:   24000,
		},
		Battery: BatteryConfig{
			Type:        "serial",
			Port:        "/dev/ttyUSB0",
			Baud:        115200,
			TimeoutMs:   200,
			IntervalMs:  5000,
			CriticalV:   4.00,
			CountsPerV:  819,
			DividerGain: 1.5,
		},
		Buzzer: BuzzerConfig{
			Pin:     18,
			ClockHz: 100000,
			TickMs:  1,
		},
		Panel: PanelConfig{
			ButtonPin: 26,
			LEDPin:    16,
		},
		Control: ControlConfig{
			Kp:            45,
			Kd:            128,
			BaseSpeed:     255,
			MinSpeed:      0,
			MaxSpeed:      255,
			PivotSpeed:    255,
			Black:         23999,
			StopThreshold: 20000,
			DriveScale:    1,
		},
		Calibration: CalibrationConfig{
			Samples:    10,
			IntervalMs: 100,
			WindowMs:   1100,
		},
		Run: RunConfig{
			IdlePollMs:     20,
			HeartbeatTicks: 25,
			AlignSettleMs:  500,
			AlignSpeed:     100,
			SettleTicks:    20,
			StopCheckTicks: 20,
			StopConfirm:    4,
		},
		Defaults: DefaultsConfig{
			DebugLevel: 1,
			MockGPIO:   true,
		},
	}
}

// ValidateConfigPath accepts only .yaml files that sit directly inside a
// directory named configs.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config file must have .yaml extension: %s", path)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file must be in a configs/ directory: %s", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration. The file is laid
// over Default(), so only the fields that differ need to be present.
func Load(path string) (*Config, error) {
	if err := ValidateConfigPath(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file larger than %d bytes", MaxConfigFileBytes)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	cfg.ensureDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ensureDefaults restores defaults for values that were explicitly zeroed
// but have no meaningful zero.
func (c *Config) ensureDefaults() {
	d := Default()
	if c.Motors.PWMFreqHz <= 0 {
		c.Motors.PWMFreqHz = d.Motors.PWMFreqHz
	}
	if c.Motors.HoldMs <= 0 {
		c.Motors.HoldMs = d.Motors.HoldMs
	}
	if c.Sensors.MaxValue == 0 {
		c.Sensors.MaxValue = d.Sensors.MaxValue
	}
	if c.Buzzer.ClockHz <= 0 {
		c.Buzzer.ClockHz = d.Buzzer.ClockHz
	}
	if c.Battery.IntervalMs <= 0 {
		c.Battery.IntervalMs = d.Battery.IntervalMs
	}
	if c.Control.Black == 0 {
		c.Control.Black = d.Control.Black
	}
	if c.Control.DriveScale == 0 {
		c.Control.DriveScale = d.Control.DriveScale
	}
	if c.Calibration.Samples <= 0 {
		c.Calibration.Samples = d.Calibration.Samples
	}
	if c.Run.StopCheckTicks <= 0 {
		c.Run.StopCheckTicks = d.Run.StopCheckTicks
	}
	if c.Run.StopConfirm <= 0 {
		c.Run.StopConfirm = d.Run.StopConfirm
	}
}

// Validate checks the cross-field constraints.
func (c *Config) Validate() error {
	ctl := c.Control
	if ctl.MinSpeed > ctl.MaxSpeed {
		return fmt.Errorf("control.min_speed (%d) must be <= control.max_speed (%d)", ctl.MinSpeed, ctl.MaxSpeed)
	}
	if ctl.BaseSpeed < float32(ctl.MinSpeed) || ctl.BaseSpeed > float32(ctl.MaxSpeed) {
		return fmt.Errorf("control.base_speed must be between %d and %d, got %g", ctl.MinSpeed, ctl.MaxSpeed, ctl.BaseSpeed)
	}
	if ctl.Kp < 0 || ctl.Kd < 0 {
		return fmt.Errorf("control gains must be >= 0, got kp=%g kd=%g", ctl.Kp, ctl.Kd)
	}
	if ctl.StopThreshold == 0 || ctl.StopThreshold > ctl.Black {
		return fmt.Errorf("control.stop_threshold must be in 1..%d, got %d", ctl.Black, ctl.StopThreshold)
	}
	if ctl.EdgeMargin >= ctl.Black {
		return fmt.Errorf("control.edge_margin must be < control.black (%d), got %d", ctl.Black, ctl.EdgeMargin)
	}

	switch c.Battery.Type {
	case "serial":
		if c.Battery.Port == "" {
			return errors.New("battery.port is required for a serial battery")
		}
	case "fixed":
	default:
		return fmt.Errorf("unsupported battery type: %q", c.Battery.Type)
	}
	if c.Battery.CriticalV <= 0 {
		return fmt.Errorf("battery.critical_v must be > 0, got %g", c.Battery.CriticalV)
	}

	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	return nil
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// MotorHold returns the hold of one drive command per scale unit.
func (c *Config) MotorHold() time.Duration { return ms(c.Motors.HoldMs) }

// SensorCharge returns the capacitor charge time.
func (c *Config) SensorCharge() time.Duration {
	return time.Duration(c.Sensors.ChargeUs) * time.Microsecond
}

// SensorWindow returns the discharge measurement window.
func (c *Config) SensorWindow() time.Duration {
	return time.Duration(c.Sensors.WindowUs) * time.Microsecond
}

// BatteryTimeout returns the ADC bridge request timeout.
func (c *Config) BatteryTimeout() time.Duration { return ms(c.Battery.TimeoutMs) }

// BatteryInterval returns the battery polling cadence.
func (c *Config) BatteryInterval() time.Duration { return ms(c.Battery.IntervalMs) }

// BuzzerTick returns the length of one beep tick.
func (c *Config) BuzzerTick() time.Duration { return ms(c.Buzzer.TickMs) }

// CalibrationInterval returns the delay between calibration samples.
func (c *Config) CalibrationInterval() time.Duration { return ms(c.Calibration.IntervalMs) }

// CalibrationWindow returns the total calibration pass duration.
func (c *Config) CalibrationWindow() time.Duration { return ms(c.Calibration.WindowMs) }

// IdlePoll returns the wait of an idle tick.
func (c *Config) IdlePoll() time.Duration { return ms(c.Run.IdlePollMs) }

// AlignSettle returns the pause before creeping to the start line.
func (c *Config) AlignSettle() time.Duration { return ms(c.Run.AlignSettleMs) }
