package gpio

import (
	"fmt"

	"github.com/cjeanneret/cameo/internal/debug"
	"github.com/stianeikeland/go-rpio/v4"
)

// RPiDriver drives Raspberry Pi pins through go-rpio's memory-mapped registers.
// Pins must be set up before use: buttons as InputPullUp, the LED as Output.
type RPiDriver struct {
	pins map[int]rpio.Pin
	mode map[int]PinMode
}

// NewRPiRealDriver maps the GPIO registers.
// Requires running on a Raspberry Pi with access to /dev/gpiomem or as root.
func NewRPiRealDriver() (*RPiDriver, error) {
	debug.Info("Initializing real GPIO driver (go-rpio)")

	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO: %w (are you running on a Raspberry Pi?)", err)
	}

	debug.Verbose("GPIO memory mapped successfully")

	return &RPiDriver{
		pins: make(map[int]rpio.Pin),
		mode: make(map[int]PinMode),
	}, nil
}

func (r *RPiDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)

	p := rpio.Pin(pin)
	switch mode {
	case Input:
		p.Input()
		p.PullOff()
	case InputPullUp:
		p.Input()
		p.PullUp()
	case Output:
		p.Output()
	default:
		return fmt.Errorf("unknown pin mode: %d", mode)
	}

	r.pins[pin] = p
	r.mode[pin] = mode
	return nil
}

func (r *RPiDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)

	p, ok := r.pins[pin]
	if !ok || r.mode[pin] != Output {
		return fmt.Errorf("pin %d is not set up as output", pin)
	}
	if level == High {
		p.High()
	} else {
		p.Low()
	}
	return nil
}

func (r *RPiDriver) ReadPin(pin int) (Level, error) {
	p, ok := r.pins[pin]
	if !ok || r.mode[pin] == Output {
		return Low, fmt.Errorf("pin %d is not set up as input", pin)
	}
	if p.Read() == rpio.High {
		debug.GPIO("ReadPin", pin, High)
		return High, nil
	}
	debug.GPIO("ReadPin", pin, Low)
	return Low, nil
}

// Close drives outputs LOW, returns every pin to a floating input and unmaps the registers.
func (r *RPiDriver) Close() error {
	debug.Trace("GPIO Close (real driver)")

	for pin, p := range r.pins {
		if r.mode[pin] == Output {
			p.Low()
		}
		debug.Verbose("Releasing pin %d", pin)
		p.Input()
		p.PullOff()
	}
	return rpio.Close()
}
