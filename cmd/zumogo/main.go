package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/cjeanneret/ZumoGo/internal/config"
	"github.com/cjeanneret/ZumoGo/internal/debug"
	"github.com/cjeanneret/ZumoGo/internal/hw/gpio"
	"github.com/cjeanneret/ZumoGo/internal/logic/run"
	"github.com/cjeanneret/ZumoGo/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start the operator console on port; -web= for default 8080, -web 8980 for custom port")
	logStream := flag.Bool("log_stream", false, "with -web, also stream the debug log to the console page")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	kp := flag.Float64("kp", 0, "override the proportional gain")
	kd := flag.Float64("kd", 0, "override the derivative gain")
	baseSpeed := flag.Float64("base_speed", 0, "override the straight-line speed (1-255)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Only non-zero values are applied; zero means "use config"
	ov := overrides{Kp: *kp, Kd: *kd, BaseSpeed: *baseSpeed}
	if err := validateCLIOverrides(ov); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, ov)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration after overrides: %v", err)
	}

	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)

	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	var console *web.Console
	var broadcaster *web.StatusBroadcaster
	if webPort.port() > 0 {
		console = web.NewConsole()
		if *logStream {
			broadcaster = web.NewStatusBroadcaster()
			debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
		}
	}

	r, err := newRobot(gpioDriver, cfg, console)
	if err != nil {
		log.Fatalf("init robot failed: %v", err)
	}
	defer r.Close()

	if console != nil {
		srv, err := web.NewServer(fmt.Sprintf(":%d", webPort.port()), broadcaster, console, r.machine, os.Stdout)
		if err != nil {
			log.Fatalf("web server: %v", err)
		}
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Printf("web server: %v", err)
			}
		}()
	}

	debug.Summary(fmt.Sprintf("Ready, session %s. Press the button to start.", r.machine.Session()))
	if err := r.machine.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("run failed: %v", err)
	}
	if r.machine.Phase() == run.Finished {
		debug.Section("Run Complete")
	}
}

// overrides holds the tuning values that can be set on the command line.
type overrides struct {
	Kp        float64
	Kd        float64
	BaseSpeed float64
}

// validateCLIOverrides checks that non-zero CLI overrides are within valid ranges.
func validateCLIOverrides(o overrides) error {
	if o.Kp != 0 && !(o.Kp > 0 && o.Kp <= 1000) {
		return fmt.Errorf("kp must be between 0 and 1000, got %g", o.Kp)
	}
	if o.Kd != 0 && !(o.Kd > 0 && o.Kd <= 1000) {
		return fmt.Errorf("kd must be between 0 and 1000, got %g", o.Kd)
	}
	if o.BaseSpeed != 0 && !(o.BaseSpeed >= 1 && o.BaseSpeed <= math.MaxUint8) {
		return fmt.Errorf("base_speed must be between 1 and 255, got %g", o.BaseSpeed)
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only non-zero override values are applied.
func applyOverrides(cfg *config.Config, o overrides) {
	if o.Kp > 0 {
		cfg.Control.Kp = float32(o.Kp)
	}
	if o.Kd > 0 {
		cfg.Control.Kd = float32(o.Kd)
	}
	if o.BaseSpeed > 0 {
		cfg.Control.BaseSpeed = float32(o.BaseSpeed)
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
