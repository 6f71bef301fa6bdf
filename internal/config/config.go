package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default values used when the config file omits a field.
const (
	DefaultWindowName      = "Cameo"
	DefaultScreenshotFile  = "screenshot.jpg"
	DefaultScreencastFile  = "screencast.avi"
	DefaultCodec           = "I420"
	DefaultWarmupFrames    = 20
	DefaultScreenshotKey   = 32 // space
	DefaultRecordKey       = 9  // tab
	DefaultQuitKey         = 27 // escape
	DefaultDebugLevel      = 1
	maxDebugLevel          = 4
	maxKeyCode             = 255
	fourccLength           = 4
	configFileExtension    = ".yaml"
	parentDirectoryElement = ".."
)

// CameraConfig selects and tunes the capture device.
type CameraConfig struct {
	DeviceID int     `yaml:"device_id"` // index passed to the capture backend
	Width    int     `yaml:"width"`     // requested frame width (0 = device default)
	Height   int     `yaml:"height"`    // requested frame height (0 = device default)
	FPS      float64 `yaml:"fps"`       // requested frame rate (0 = device default)
	Channel  int     `yaml:"channel"`   // retrieve channel, 0 for the normal image
}

// WindowConfig describes the preview window.
type WindowConfig struct {
	Name   string `yaml:"name"`
	Mirror bool   `yaml:"mirror"` // flip the preview horizontally (recordings are never mirrored)
}

// OutputConfig names the files written by the screenshot and record keys.
type OutputConfig struct {
	ScreenshotFile string `yaml:"screenshot_file"`
	ScreencastFile string `yaml:"screencast_file"`
	Codec          string `yaml:"codec"`         // FOURCC, e.g. "I420", "MJPG"
	WarmupFrames   int    `yaml:"warmup_frames"` // frames to estimate fps when the device reports none
}

// KeysConfig maps key codes (low 8 bits) to actions.
type KeysConfig struct {
	Screenshot int `yaml:"screenshot"`
	Record     int `yaml:"record"`
	Quit       int `yaml:"quit"`
}

// ControlsConfig describes optional GPIO push buttons and the recording LED.
// A pin set to 0 is not used. Buttons are wired active LOW with pull-ups.
type ControlsConfig struct {
	MockGPIO      bool `yaml:"mock_gpio"` // use mock GPIO (true=dev/test, false=real Raspberry Pi)
	ScreenshotPin int  `yaml:"screenshot_pin"`
	RecordPin     int  `yaml:"record_pin"`
	QuitPin       int  `yaml:"quit_pin"`
	RecordLEDPin  int  `yaml:"record_led_pin"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
}

// Config aggregates all application configuration.
type Config struct {
	Camera   CameraConfig   `yaml:"camera"`
	Window   WindowConfig   `yaml:"window"`
	Output   OutputConfig   `yaml:"output"`
	Keys     KeysConfig     `yaml:"keys"`
	Controls ControlsConfig `yaml:"controls"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// Default returns the configuration used when no file is given:
// camera 0, a mirrored "Cameo" window, screenshot.jpg and screencast.avi.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Name:   DefaultWindowName,
			Mirror: true,
		},
		Output: OutputConfig{
			ScreenshotFile: DefaultScreenshotFile,
			ScreencastFile: DefaultScreencastFile,
			Codec:          DefaultCodec,
			WarmupFrames:   DefaultWarmupFrames,
		},
		Keys: KeysConfig{
			Screenshot: DefaultScreenshotKey,
			Record:     DefaultRecordKey,
			Quit:       DefaultQuitKey,
		},
		Controls: ControlsConfig{MockGPIO: true},
		Defaults: DefaultsConfig{DebugLevel: DefaultDebugLevel},
	}
}

// ValidateConfigPath checks that path names a .yaml file and does not
// climb out of its directory with "..".
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	for _, elem := range strings.Split(filepath.ToSlash(path), "/") {
		if elem == parentDirectoryElement {
			return fmt.Errorf("config path %q must not contain %q", path, parentDirectoryElement)
		}
	}
	if filepath.Ext(path) != configFileExtension {
		return fmt.Errorf("config path %q must have a %s extension", path, configFileExtension)
	}
	return nil
}

// Load reads a YAML file on top of Default() and returns the configuration.
func Load(path string) (*Config, error) {
	if err := ValidateConfigPath(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize restores defaults for emptied fields and validates the rest.
func (c *Config) normalize() error {
	if c.Window.Name == "" {
		c.Window.Name = DefaultWindowName
	}
	if c.Output.ScreenshotFile == "" {
		c.Output.ScreenshotFile = DefaultScreenshotFile
	}
	if c.Output.ScreencastFile == "" {
		c.Output.ScreencastFile = DefaultScreencastFile
	}
	if c.Output.Codec == "" {
		c.Output.Codec = DefaultCodec
	}
	if c.Output.WarmupFrames <= 0 {
		c.Output.WarmupFrames = DefaultWarmupFrames
	}
	return c.Validate()
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.Camera.DeviceID < 0 {
		return fmt.Errorf("camera.device_id must be >= 0, got %d", c.Camera.DeviceID)
	}
	if c.Camera.Width < 0 || c.Camera.Height < 0 {
		return fmt.Errorf("camera.width and camera.height must be >= 0, got %dx%d", c.Camera.Width, c.Camera.Height)
	}
	if c.Camera.FPS < 0 {
		return fmt.Errorf("camera.fps must be >= 0, got %g", c.Camera.FPS)
	}
	if c.Camera.Channel < 0 {
		return fmt.Errorf("camera.channel must be >= 0, got %d", c.Camera.Channel)
	}
	if len(c.Output.Codec) != fourccLength {
		return fmt.Errorf("output.codec must be a %d character FOURCC, got %q", fourccLength, c.Output.Codec)
	}
	if c.Output.ScreenshotFile == c.Output.ScreencastFile {
		return fmt.Errorf("output.screenshot_file and output.screencast_file must differ, both are %q", c.Output.ScreenshotFile)
	}
	if err := c.Keys.validate(); err != nil {
		return err
	}
	if err := c.Controls.validate(); err != nil {
		return err
	}
	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > maxDebugLevel {
		return fmt.Errorf("defaults.debug_level must be between 0 and %d, got %d", maxDebugLevel, c.Defaults.DebugLevel)
	}
	return nil
}

func (k KeysConfig) validate() error {
	keys := map[string]int{"screenshot": k.Screenshot, "record": k.Record, "quit": k.Quit}
	seen := make(map[int]string, len(keys))
	for _, name := range []string{"screenshot", "record", "quit"} {
		code := keys[name]
		if code <= 0 || code > maxKeyCode {
			return fmt.Errorf("keys.%s must be between 1 and %d, got %d", name, maxKeyCode, code)
		}
		if other, dup := seen[code]; dup {
			return fmt.Errorf("keys.%s and keys.%s share key code %d", other, name, code)
		}
		seen[code] = name
	}
	return nil
}

func (ctl ControlsConfig) validate() error {
	pins := map[string]int{
		"screenshot_pin": ctl.ScreenshotPin,
		"record_pin":     ctl.RecordPin,
		"quit_pin":       ctl.QuitPin,
		"record_led_pin": ctl.RecordLEDPin,
	}
	seen := make(map[int]string, len(pins))
	for _, name := range []string{"screenshot_pin", "record_pin", "quit_pin", "record_led_pin"} {
		pin := pins[name]
		if pin < 0 {
			return fmt.Errorf("controls.%s must be >= 0, got %d", name, pin)
		}
		if pin == 0 {
			continue
		}
		if other, dup := seen[pin]; dup {
			return fmt.Errorf("controls.%s and controls.%s share pin %d", other, name, pin)
		}
		seen[pin] = name
	}
	return nil
}

// Enabled reports whether any GPIO pin is configured.
func (ctl ControlsConfig) Enabled() bool {
	return ctl.ScreenshotPin > 0 || ctl.RecordPin > 0 || ctl.QuitPin > 0 || ctl.RecordLEDPin > 0
}
