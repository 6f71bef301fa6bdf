package buttons

import (
	"fmt"

	"github.com/cjeanneret/cameo/internal/debug"
	"github.com/cjeanneret/cameo/internal/hw/gpio"
)

// Config holds the pin and key code of each control. A pin of 0 is not used.
type Config struct {
	ScreenshotPin int
	RecordPin     int
	QuitPin       int
	LEDPin        int // lit while recording

	ScreenshotKey int
	RecordKey     int
	QuitKey       int
}

// Panel reads push buttons wired between a GPIO pin and ground and reports
// each press as the key code the keyboard would send for the same action.
// Buttons are active LOW: the internal pull-up holds the pin HIGH until pressed.
type Panel struct {
	gpio    gpio.Driver
	buttons []*button
	ledPin  int
	ledOn   bool
}

type button struct {
	name    string
	pin     int
	key     int
	pressed bool
}

// NewPanel configures the button inputs and switches the LED off.
func NewPanel(g gpio.Driver, cfg Config) (*Panel, error) {
	p := &Panel{gpio: g, ledPin: cfg.LEDPin}

	for _, b := range []*button{
		{name: "screenshot", pin: cfg.ScreenshotPin, key: cfg.ScreenshotKey},
		{name: "record", pin: cfg.RecordPin, key: cfg.RecordKey},
		{name: "quit", pin: cfg.QuitPin, key: cfg.QuitKey},
	} {
		if b.pin <= 0 {
			continue
		}
		if err := g.SetupPin(b.pin, gpio.InputPullUp); err != nil {
			return nil, fmt.Errorf("setup %s button on pin %d: %w", b.name, b.pin, err)
		}
		debug.Verbose("Button %s on pin %d sends key %d", b.name, b.pin, b.key)
		p.buttons = append(p.buttons, b)
	}

	if p.ledPin > 0 {
		if err := g.SetupPin(p.ledPin, gpio.Output); err != nil {
			return nil, fmt.Errorf("setup LED on pin %d: %w", p.ledPin, err)
		}
		if err := g.WritePin(p.ledPin, gpio.Low); err != nil {
			return nil, fmt.Errorf("switch LED off: %w", err)
		}
	}

	return p, nil
}

// Poll samples every button once and returns the key codes of buttons that
// went from released to pressed since the previous Poll. Holding a button
// down reports it only once.
func (p *Panel) Poll() ([]int, error) {
	var keys []int
	for _, b := range p.buttons {
		level, err := p.gpio.ReadPin(b.pin)
		if err != nil {
			return keys, fmt.Errorf("read %s button: %w", b.name, err)
		}
		down := level == gpio.Low
		if down && !b.pressed {
			debug.Live("Button %s pressed", b.name)
			keys = append(keys, b.key)
		}
		b.pressed = down
	}
	return keys, nil
}

// SetRecording lights the LED while recording. The pin is only written on change.
func (p *Panel) SetRecording(on bool) error {
	if p.ledPin <= 0 || on == p.ledOn {
		return nil
	}
	level := gpio.Low
	if on {
		level = gpio.High
	}
	if err := p.gpio.WritePin(p.ledPin, level); err != nil {
		return fmt.Errorf("write LED: %w", err)
	}
	p.ledOn = on
	return nil
}

// Close switches the LED off. The driver itself is closed by its owner.
func (p *Panel) Close() error {
	return p.SetRecording(false)
}
