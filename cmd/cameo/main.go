package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/cjeanneret/cameo/internal/config"
	"github.com/cjeanneret/cameo/internal/debug"
	"github.com/cjeanneret/cameo/internal/hw/buttons"
	"github.com/cjeanneret/cameo/internal/hw/camera"
	"github.com/cjeanneret/cameo/internal/hw/display"
	"github.com/cjeanneret/cameo/internal/hw/gpio"
	"github.com/cjeanneret/cameo/internal/logic/cameo"
	"github.com/cjeanneret/cameo/internal/logic/capture"
)

// unset marks an integer flag that was not given on the command line.
const unset = -1

func main() {
	// CLI flags
	cfgPath := flag.String("config", "", "path to a YAML config file (empty = built-in defaults)")
	deviceID := flag.Int("device", unset, "override camera device index")
	debugLevel := flag.Int("debug", unset, "override debug level (0-4)")
	mirror := &boolOverride{}
	flag.Var(mirror, "mirror", "override preview mirroring (true/false)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	if err := validateCLIOverrides(*deviceID, *debugLevel); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, *deviceID, *debugLevel, mirror)

	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", debug.Level())

	debug.Step(1, "Opening camera")
	dev, err := camera.OpenDevice(cfg.Camera.DeviceID, camera.Settings{
		Width:  cfg.Camera.Width,
		Height: cfg.Camera.Height,
		FPS:    cfg.Camera.FPS,
	})
	if err != nil {
		log.Fatalf("init camera failed: %v", cameraError(err, cfg.Camera.DeviceID))
	}
	defer func() {
		if err := dev.Close(); err != nil {
			log.Printf("closing camera failed: %v", err)
		}
	}()

	debug.Step(2, "Creating preview and capture manager")
	var app *cameo.App
	win := display.NewWindow(cfg.Window.Name, func(key int) { app.OnKeypress(key) })
	mgr := capture.NewManager(dev, win, cfg.Window.Mirror,
		capture.WithWarmupFrames(cfg.Output.WarmupFrames))
	mgr.SetChannel(cfg.Camera.Channel)
	defer func() {
		if err := mgr.Close(); err != nil {
			log.Printf("closing capture manager failed: %v", err)
		}
	}()
	debug.PrintStruct("Window config", cfg.Window)
	debug.PrintStruct("Output config", cfg.Output)

	app = cameo.New(win, mgr,
		cameo.Keys{
			Screenshot: cfg.Keys.Screenshot,
			Record:     cfg.Keys.Record,
			Quit:       cfg.Keys.Quit,
		},
		cameo.Outputs{
			ScreenshotFile: cfg.Output.ScreenshotFile,
			ScreencastFile: cfg.Output.ScreencastFile,
			Codec:          cfg.Output.Codec,
		})

	if cfg.Controls.Enabled() {
		debug.Step(3, "Initializing GPIO controls")
		debug.Value("Mock GPIO", cfg.Controls.MockGPIO)
		gpioDriver, err := gpio.NewDriver(cfg.Controls.MockGPIO)
		if err != nil {
			log.Fatalf("init GPIO failed: %v", err)
		}
		defer func() {
			if err := gpioDriver.Close(); err != nil {
				log.Printf("closing GPIO driver failed: %v", err)
			}
		}()

		panel, err := buttons.NewPanel(gpioDriver, panelConfig(cfg))
		if err != nil {
			log.Fatalf("init buttons failed: %v", err)
		}
		defer func() {
			if err := panel.Close(); err != nil {
				log.Printf("closing buttons failed: %v", err)
			}
		}()
		debug.PrintStruct("Controls config", cfg.Controls)
		app.SetControls(panel)
	}

	debug.Summary("Cameo ready")
	debug.Info("space: screenshot to %s, tab: record to %s, esc: quit",
		cfg.Output.ScreenshotFile, cfg.Output.ScreencastFile)

	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("cameo: %v", err)
	}
}

// cameraError adds a hint when the backend opened nothing at the index.
func cameraError(err error, deviceID int) error {
	if errors.Is(err, camera.ErrDeviceNotOpen) {
		return fmt.Errorf("%w (is a camera connected as device %d? try -device)", err, deviceID)
	}
	return err
}

// loadConfig reads path, or returns the built-in defaults when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// validateCLIOverrides checks the integer overrides that were given.
// unset means "use config value".
func validateCLIOverrides(deviceID, debugLevel int) error {
	if deviceID != unset && deviceID < 0 {
		return fmt.Errorf("device must be >= 0, got %d", deviceID)
	}
	if debugLevel != unset && (debugLevel < debug.LevelOff || debugLevel > debug.LevelTrace) {
		return fmt.Errorf("debug must be between %d and %d, got %d", debug.LevelOff, debug.LevelTrace, debugLevel)
	}
	return nil
}

// applyOverrides mutates cfg with the overrides that were given.
func applyOverrides(cfg *config.Config, deviceID, debugLevel int, mirror *boolOverride) {
	if deviceID != unset {
		cfg.Camera.DeviceID = deviceID
	}
	if debugLevel != unset {
		cfg.Defaults.DebugLevel = debugLevel
	}
	if mirror != nil && mirror.set {
		cfg.Window.Mirror = mirror.val
	}
}

func panelConfig(cfg *config.Config) buttons.Config {
	return buttons.Config{
		ScreenshotPin: cfg.Controls.ScreenshotPin,
		RecordPin:     cfg.Controls.RecordPin,
		QuitPin:       cfg.Controls.QuitPin,
		LEDPin:        cfg.Controls.RecordLEDPin,
		ScreenshotKey: cfg.Keys.Screenshot,
		RecordKey:     cfg.Keys.Record,
		QuitKey:       cfg.Keys.Quit,
	}
}

// boolOverride implements flag.Value for -mirror: it remembers whether the
// flag was given, so a config value is only replaced on request.
// -mirror alone means true.
type boolOverride struct {
	val bool
	set bool
}

func (b *boolOverride) String() string {
	if !b.set {
		return "unset"
	}
	if b.val {
		return "true"
	}
	return "false"
}

func (b *boolOverride) Set(s string) error {
	switch s {
	case "true", "1", "on", "yes":
		b.val = true
	case "false", "0", "off", "no":
		b.val = false
	default:
		return fmt.Errorf("expected true or false, got %q", s)
	}
	b.set = true
	return nil
}

// IsBoolFlag lets the flag package accept -mirror without a value.
func (b *boolOverride) IsBoolFlag() bool { return true }
