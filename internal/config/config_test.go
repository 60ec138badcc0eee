package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ---------- ValidateConfigPath ----------

func TestValidateConfigPath_Valid(t *testing.T) {
	// Create a real configs/ directory so filepath.Abs resolves correctly.
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "default.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ValidateConfigPath(path); err != nil {
		t.Errorf("expected valid path, got error: %v", err)
	}
}

func TestValidateConfigPath_PathTraversal(t *testing.T) {
	cases := []string{
		"../../etc/passwd",
		"configs/../../../etc/shadow",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for traversal path %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_WrongExtension(t *testing.T) {
	cases := []string{
		"configs/default.json",
		"configs/default.yml",
		"configs/default.txt",
		"configs/default",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for extension in %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_NotInConfigsDir(t *testing.T) {
	cases := []string{
		"other/default.yaml",
		"default.yaml",
		"/tmp/default.yaml",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for path outside configs/ %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_EmptyPath(t *testing.T) {
	if err := ValidateConfigPath(""); err == nil {
		t.Error("expected error for empty path, got nil")
	}
}

func TestValidateConfigPath_VeryLongPath(t *testing.T) {
	long := "configs/" + strings.Repeat("a", 1000) + ".yaml"
	// Should not panic; error or success is OS-dependent, but must not crash.
	_ = ValidateConfigPath(long)
}

func TestValidateConfigPath_SpecialChars(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name    string
		wantErr bool
	}{
		{"con fig.yaml", false},
		{"café.yaml", false},
	}
	for _, tc := range cases {
		path := filepath.Join(cfgDir, tc.name)
		err := ValidateConfigPath(path)
		if tc.wantErr && err == nil {
			t.Errorf("expected error for %q, got nil", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("unexpected error for %q: %v", tc.name, err)
		}
	}
}

func TestValidateConfigPath_DoubleTraversal(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	// Cleans to <tmp>/../configs/ok.yaml: the parent is still named configs.
	path := filepath.Join(cfgDir, "../../configs/ok.yaml")
	if err := ValidateConfigPath(path); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	escaped := filepath.Join(cfgDir, "../other/ok.yaml")
	if err := ValidateConfigPath(escaped); err == nil {
		t.Errorf("expected error for %q, got nil", escaped)
	}
}

// ---------- Load ----------

// writeConfig creates a temporary configs/ dir with the given YAML content and returns the path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
motors:
  left_dir_pin: 5
  right_dir_pin: 6
  left_pwm_pin: 12
  right_pwm_pin: 13
  pwm_freq_hz: 2000
  invert_right: true
sensors:
  l3_pin: 17
  l1_pin: 27
  r1_pin: 22
  r3_pin: 23
  emitter_pin: 24
  window_us: 2000
battery:
  type: fixed
  fixed_raw: 2600
buzzer:
  pin: 18
panel:
  button_pin: 26
  led_pin: 16
control:
  kp: 30
  kd: 90
  base_speed: 200
  max_speed: 240
  stop_threshold: 21000
run:
  align_speed: 80
defaults:
  debug_level: 2
  mock_gpio: true
`

func TestLoad_ValidFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Motors.PWMFreqHz != 2000 {
		t.Errorf("motors.pwm_freq_hz = %d, want 2000", cfg.Motors.PWMFreqHz)
	}
	if !cfg.Motors.InvertRight || cfg.Motors.InvertLeft {
		t.Errorf("invert flags = %v/%v, want false/true", cfg.Motors.InvertLeft, cfg.Motors.InvertRight)
	}
	if cfg.SensorWindow() != 2*time.Millisecond {
		t.Errorf("sensor window = %v, want 2ms", cfg.SensorWindow())
	}
	if cfg.Battery.Type != "fixed" || cfg.Battery.FixedRaw != 2600 {
		t.Errorf("battery = %+v", cfg.Battery)
	}
	if cfg.Control.Kp != 30 || cfg.Control.Kd != 90 {
		t.Errorf("gains = %v/%v, want 30/90", cfg.Control.Kp, cfg.Control.Kd)
	}
	if cfg.Control.BaseSpeed != 200 || cfg.Control.MaxSpeed != 240 {
		t.Errorf("speeds = %v/%v, want 200/240", cfg.Control.BaseSpeed, cfg.Control.MaxSpeed)
	}
	if cfg.Control.StopThreshold != 21000 {
		t.Errorf("stop_threshold = %d, want 21000", cfg.Control.StopThreshold)
	}
	if cfg.Run.AlignSpeed != 80 {
		t.Errorf("align_speed = %d, want 80", cfg.Run.AlignSpeed)
	}
	if cfg.Defaults.DebugLevel != 2 {
		t.Errorf("debug_level = %d, want 2", cfg.Defaults.DebugLevel)
	}
	// untouched fields keep their defaults
	if cfg.Control.Black != 23999 {
		t.Errorf("black = %d, want 23999", cfg.Control.Black)
	}
	if cfg.Run.StopConfirm != 4 {
		t.Errorf("stop_confirm = %d, want 4", cfg.Run.StopConfirm)
	}
}

func TestLoad_EmptyFileGivesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := Default()
	if cfg.Control != d.Control {
		t.Errorf("control = %+v, want %+v", cfg.Control, d.Control)
	}
	if cfg.IdlePoll() != 20*time.Millisecond {
		t.Errorf("idle poll = %v, want 20ms", cfg.IdlePoll())
	}
	if cfg.AlignSettle() != 500*time.Millisecond {
		t.Errorf("align settle = %v, want 500ms", cfg.AlignSettle())
	}
	if cfg.CalibrationWindow() != 1100*time.Millisecond {
		t.Errorf("calibration window = %v, want 1.1s", cfg.CalibrationWindow())
	}
	if cfg.BatteryInterval() != 5*time.Second {
		t.Errorf("battery interval = %v, want 5s", cfg.BatteryInterval())
	}
	if cfg.SensorCharge() != 10*time.Microsecond {
		t.Errorf("sensor charge = %v, want 10us", cfg.SensorCharge())
	}
}

func TestLoad_ZeroedFieldsRestored(t *testing.T) {
	yaml := `
motors:
  pwm_freq_hz: 0
  hold_ms: 0
control:
  black: 0
  drive_scale: 0
run:
  stop_confirm: 0
`
	cfg, err := Load(writeConfig(t, yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Motors.PWMFreqHz != 1000 {
		t.Errorf("pwm_freq_hz = %d, want 1000", cfg.Motors.PWMFreqHz)
	}
	if cfg.MotorHold() != time.Millisecond {
		t.Errorf("motor hold = %v, want 1ms", cfg.MotorHold())
	}
	if cfg.Control.Black != 23999 || cfg.Control.DriveScale != 1 {
		t.Errorf("control = %+v", cfg.Control)
	}
	if cfg.Run.StopConfirm != 4 {
		t.Errorf("stop_confirm = %d, want 4", cfg.Run.StopConfirm)
	}
}

func TestLoad_InvalidControl(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"base_above_max", "control:\n  base_speed: 250\n  max_speed: 200\n"},
		{"base_below_min", "control:\n  base_speed: 10\n  min_speed: 50\n"},
		{"min_above_max", "control:\n  min_speed: 200\n  max_speed: 100\n  base_speed: 150\n"},
		{"negative_kp", "control:\n  kp: -1\n"},
		{"stop_above_black", "control:\n  stop_threshold: 30000\n"},
		{"margin_at_black", "control:\n  edge_margin: 23999\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoad_InvalidBattery(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"unknown_type", "battery:\n  type: i2c\n"},
		{"serial_without_port", "battery:\n  type: serial\n  port: \"\"\n"},
		{"zero_critical", "battery:\n  type: fixed\n  critical_v: -1\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoad_DebugLevelOutOfRange(t *testing.T) {
	if _, err := Load(writeConfig(t, "defaults:\n  debug_level: 5\n")); err == nil {
		t.Error("expected error for debug_level 5, got nil")
	}
}

func TestLoad_FileTooLarge(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "big.yaml")
	data := make([]byte, MaxConfigFileBytes+1)
	for i := range data {
		data[i] = '#'
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for oversized config file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "{{{{invalid yaml!!!!")); err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}

func TestLoad_UnknownFields(t *testing.T) {
	yaml := `
control:
  kp: 45
unknown_section:
  foo: bar
`
	if _, err := Load(writeConfig(t, yaml)); err != nil {
		t.Errorf("unknown fields should be ignored, got error: %v", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(filepath.Join(cfgDir, "nonexistent.yaml")); err == nil {
		t.Error("expected error for nonexistent file, got nil")
	}
}

func TestLoad_RejectsPathOutsideConfigs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "robot.yaml")
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for config outside configs/, got nil")
	}
}

func TestDefaultFileMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "default.yaml"))
	if err != nil {
		t.Fatalf("load shipped config: %v", err)
	}
	d := Default()
	if cfg.Control != d.Control {
		t.Errorf("control = %+v, want %+v", cfg.Control, d.Control)
	}
	if cfg.Run != d.Run {
		t.Errorf("run = %+v, want %+v", cfg.Run, d.Run)
	}
}
