package uartboot

import (
	"errors"

	"periph.io/x/conn/v3/gpio"
)

// Device binds the hardware capabilities the engine runs against. UART,
// Timer and Sys are always required; the rest depends on the configured
// policies (see bind).
type Device struct {
	UART  UART
	Timer Timer
	NVM   NVM
	Flash Flash
	Sys   System

	// RxLine is the raw receive line level, sampled by the autobaud
	// detector before the UART is configured.
	RxLine gpio.PinIO

	// Entry0 and Entry1 are the forced-entry pins. Entry1 is only used
	// by the bridge and dual-pin policies.
	Entry0 gpio.PinIO
	Entry1 gpio.PinIO

	// Blink is the cosmetic status LED, toggled from the poll step.
	Blink gpio.PinIO
}

var (
	errNoUART   = errors.New("uartboot: device has no UART")
	errNoTimer  = errors.New("uartboot: device has no timer")
	errNoSystem = errors.New("uartboot: device has no reset-cause source")
	errNoFlash  = errors.New("uartboot: device has no flash capability")
	errNoNVM    = errors.New("uartboot: marker enabled but device has no NVM")
	errNoRxLine = errors.New("uartboot: autobaud enabled but device has no raw RX line")
	errNoPins   = errors.New("uartboot: forced-entry mode needs pins the device lacks")
)

// bind checks that the device carries every capability the configuration
// will exercise.
func (d *Device) bind(cfg *Config) error {
	if d.UART == nil {
		return errNoUART
	}
	if d.Timer == nil {
		return errNoTimer
	}
	if d.Sys == nil {
		return errNoSystem
	}
	if d.Flash == nil {
		return errNoFlash
	}
	if cfg.Marker.Enable && d.NVM == nil {
		return errNoNVM
	}
	if cfg.Autobaud && d.RxLine == nil {
		return errNoRxLine
	}
	switch cfg.Entry {
	case EntryDisabled:
	case EntryPinLow, EntryPinHigh:
		if d.Entry0 == nil {
			return errNoPins
		}
	case EntryPinBridge, EntryDualPinLow:
		if d.Entry0 == nil || d.Entry1 == nil {
			return errNoPins
		}
	}
	return nil
}

// parkPins returns every pin the bootloader touched to a plain input so
// the application observes reset-equivalent I/O state.
func (d *Device) parkPins() {
	for _, p := range []gpio.PinIO{d.Entry0, d.Entry1, d.Blink} {
		if p != nil {
			p.In(gpio.Float, gpio.NoEdge)
		}
	}
}
