package buttons

import (
	"errors"
	"reflect"
	"testing"

	"github.com/cjeanneret/cameo/internal/hw/gpio"
)

// recordingDriver records LED writes on top of the mock driver.
type recordingDriver struct {
	gpio.MockDriver
	writes []gpioCall
}

type gpioCall struct {
	pin   int
	level gpio.Level
}

func (d *recordingDriver) WritePin(pin int, level gpio.Level) error {
	d.writes = append(d.writes, gpioCall{pin: pin, level: level})
	return d.MockDriver.WritePin(pin, level)
}

// failingDriver fails every read.
type failingDriver struct {
	gpio.MockDriver
}

func (d *failingDriver) ReadPin(pin int) (gpio.Level, error) {
	return gpio.Low, errors.New("bus error")
}

var testConfig = Config{
	ScreenshotPin: 17,
	RecordPin:     27,
	QuitPin:       22,
	LEDPin:        5,
	ScreenshotKey: 32,
	RecordKey:     9,
	QuitKey:       27,
}

func TestNewPanel_SetsUpPins(t *testing.T) {
	drv := &recordingDriver{}
	if _, err := NewPanel(drv, testConfig); err != nil {
		t.Fatalf("NewPanel: %v", err)
	}

	for _, pin := range []int{17, 27, 22} {
		mode, ok := drv.Mode(pin)
		if !ok || mode != gpio.InputPullUp {
			t.Errorf("pin %d mode = %v (set up: %v), want InputPullUp", pin, mode, ok)
		}
	}
	if mode, _ := drv.Mode(5); mode != gpio.Output {
		t.Errorf("LED pin mode = %v, want Output", mode)
	}
	want := []gpioCall{{pin: 5, level: gpio.Low}}
	if !reflect.DeepEqual(drv.writes, want) {
		t.Errorf("writes = %v, want LED switched off %v", drv.writes, want)
	}
}

func TestNewPanel_UnusedPinsSkipped(t *testing.T) {
	drv := &recordingDriver{}
	p, err := NewPanel(drv, Config{QuitPin: 22, QuitKey: 27})
	if err != nil {
		t.Fatalf("NewPanel: %v", err)
	}
	if len(p.buttons) != 1 {
		t.Errorf("buttons = %d, want 1", len(p.buttons))
	}
	if _, ok := drv.Mode(0); ok {
		t.Error("pin 0 should never be set up")
	}
	if len(drv.writes) != 0 {
		t.Errorf("writes = %v, want none without an LED", drv.writes)
	}
}

func TestPoll_IdleReportsNothing(t *testing.T) {
	drv := &recordingDriver{}
	p, _ := NewPanel(drv, testConfig)

	keys, err := p.Poll()
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("keys = %v, want none while idle", keys)
	}
}

func TestPoll_PressReportedOnce(t *testing.T) {
	drv := &recordingDriver{}
	p, _ := NewPanel(drv, testConfig)

	drv.SetInput(17, gpio.Low)
	keys, _ := p.Poll()
	if !reflect.DeepEqual(keys, []int{32}) {
		t.Fatalf("first poll keys = %v, want [32]", keys)
	}

	// Still held down
	keys, _ = p.Poll()
	if len(keys) != 0 {
		t.Errorf("held button keys = %v, want none", keys)
	}

	// Release, then press again
	drv.SetInput(17, gpio.High)
	if keys, _ = p.Poll(); len(keys) != 0 {
		t.Errorf("release keys = %v, want none", keys)
	}
	drv.SetInput(17, gpio.Low)
	keys, _ = p.Poll()
	if !reflect.DeepEqual(keys, []int{32}) {
		t.Errorf("second press keys = %v, want [32]", keys)
	}
}

func TestPoll_SimultaneousPressesInPinOrder(t *testing.T) {
	drv := &recordingDriver{}
	p, _ := NewPanel(drv, testConfig)

	drv.SetInput(22, gpio.Low)
	drv.SetInput(27, gpio.Low)
	keys, _ := p.Poll()
	if !reflect.DeepEqual(keys, []int{9, 27}) {
		t.Errorf("keys = %v, want [9 27] (record before quit)", keys)
	}
}

func TestPoll_ReadError(t *testing.T) {
	p, err := NewPanel(&failingDriver{}, testConfig)
	if err != nil {
		t.Fatalf("NewPanel: %v", err)
	}
	if _, err := p.Poll(); err == nil {
		t.Error("expected read error, got nil")
	}
}

func TestSetRecording_WritesOnlyOnChange(t *testing.T) {
	drv := &recordingDriver{}
	p, _ := NewPanel(drv, testConfig)
	drv.writes = nil // reset after init

	for _, on := range []bool{true, true, false, false, true} {
		if err := p.SetRecording(on); err != nil {
			t.Fatalf("SetRecording(%v): %v", on, err)
		}
	}

	want := []gpioCall{
		{pin: 5, level: gpio.High},
		{pin: 5, level: gpio.Low},
		{pin: 5, level: gpio.High},
	}
	if !reflect.DeepEqual(drv.writes, want) {
		t.Errorf("writes = %v, want %v", drv.writes, want)
	}
}

func TestClose_SwitchesLEDOff(t *testing.T) {
	drv := &recordingDriver{}
	p, _ := NewPanel(drv, testConfig)
	_ = p.SetRecording(true)

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if level, _ := drv.ReadPin(5); level != gpio.Low {
		t.Errorf("LED = %v after Close, want Low", level)
	}
}

func TestSetRecording_NoLED(t *testing.T) {
	drv := &recordingDriver{}
	p, _ := NewPanel(drv, Config{RecordPin: 27, RecordKey: 9})
	if err := p.SetRecording(true); err != nil {
		t.Errorf("SetRecording without LED: %v", err)
	}
	if len(drv.writes) != 0 {
		t.Errorf("writes = %v, want none", drv.writes)
	}
}
