package uartboot

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"
)

// Parity selects the UART frame parity mode.
type Parity uint8

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

// EntryMode selects the forced-entry pin policy evaluated at boot.
type EntryMode uint8

const (
	EntryDisabled EntryMode = iota
	// EntryPinLow enters when a pulled-up pin reads low.
	EntryPinLow
	// EntryPinHigh enters when an externally pulled-down pin reads high.
	EntryPinHigh
	// EntryPinBridge enters when the two entry pins are electrically
	// bridged, verified by driving each low in turn and observing the
	// other.
	EntryPinBridge
	// EntryDualPinLow enters when both pulled-up entry pins read low.
	EntryDualPinLow
)

// MarkerConfig describes the persisted magic-marker byte. While the cell
// holds Sentinel the application is considered verified and the boot
// decision may skip the bootloader; any other value (including the erased
// 0xFF) forces entry.
type MarkerConfig struct {
	Enable bool
	// Sentinel is the "application verified" value.
	Sentinel byte
	// Addr is the NVM cell address holding the marker. Zero selects the
	// default, the last cell of the part's EEPROM.
	Addr uint16
	// RestoreOnExit rewrites the sentinel when a flashing session ends
	// with the exit command.
	RestoreOnExit bool
}

// Logger is the optional progress logger, satisfied by logrus.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
}

// Config is the bootloader's build-time surface: everything here is fixed
// before Run and never changes during a session.
type Config struct {
	// CPUClock is the core clock the free-running timer counts at.
	CPUClock physic.Frequency

	// Baud is the fixed target rate; ignored when Autobaud is set.
	Baud        physic.Frequency
	DoubleSpeed bool
	Parity      Parity
	StopBits    int

	// Autobaud derives the divisor from the incoming training signal
	// instead of Baud.
	Autobaud bool

	// ConnectTimeout is the entry window in timer ticks (one tick per
	// 16-bit timer overflow). Zero disables the window; without it the
	// only entries are forced ones.
	ConnectTimeout uint32

	Entry  EntryMode
	Marker MarkerConfig

	// Part is the program-memory geometry.
	Part Part

	// HWID is the hardware identifier returned in the session
	// descriptor, space-padded or truncated to 15 bytes.
	HWID string

	// Blink enables the cosmetic status LED on Device.Blink.
	Blink bool

	Logger Logger
}

var (
	errNoClock   = errors.New("uartboot: CPU clock not set")
	errNoBaud    = errors.New("uartboot: baud rate not set and autobaud disabled")
	errBadDiv    = errors.New("uartboot: baud rate unreachable from CPU clock")
	errNoEntry   = errors.New("uartboot: no entry path: marker, pins and connect timeout all disabled")
	errStopBits  = errors.New("uartboot: stop bits must be 1 or 2")
	errTinyPages = errors.New("uartboot: part has no programmable pages")
)

func (c *Config) validate() error {
	if c.CPUClock <= 0 {
		return errNoClock
	}
	if c.StopBits == 0 {
		c.StopBits = 1
	}
	if c.StopBits != 1 && c.StopBits != 2 {
		return errStopBits
	}
	if err := c.Part.validate(); err != nil {
		return err
	}
	if c.Marker.Enable && c.Marker.Addr == 0 && c.Part.EEPROMBytes > 0 {
		c.Marker.Addr = uint16(c.Part.EEPROMBytes - 1)
	}
	if !c.Autobaud {
		if c.Baud <= 0 {
			return errNoBaud
		}
		if _, err := c.Divisor(); err != nil {
			return err
		}
	}
	// Without any of these the decision engine could only ever jump to
	// the application and the bootloader would be unreachable.
	if !c.Marker.Enable && c.Entry == EntryDisabled && c.ConnectTimeout == 0 {
		return errNoEntry
	}
	return nil
}

// divisorScale is the baud generator divider [ATmega328P|19.3.1 Internal
// Clock Generation]: Fcpu / (16 * BAUD), or 8 in double-speed mode.
func divisorScale(doubleSpeed bool) int64 {
	if doubleSpeed {
		return 8
	}
	return 16
}

// Divisor computes the baud-rate register value for the fixed Baud setting.
func (c *Config) Divisor() (uint16, error) {
	cpu := int64(c.CPUClock / physic.Hertz)
	baud := int64(c.Baud / physic.Hertz)
	if cpu <= 0 || baud <= 0 {
		return 0, errBadDiv
	}
	scale := divisorScale(c.DoubleSpeed)
	div := (cpu + scale*baud/2) / (scale * baud)
	if div < 1 || div-1 > 0xFFF {
		return 0, errBadDiv
	}
	return uint16(div - 1), nil
}

func (c *Config) settings(divisor uint16) PortSettings {
	return PortSettings{
		Divisor:     divisor,
		DoubleSpeed: c.DoubleSpeed,
		Parity:      c.Parity,
		StopBits:    c.StopBits,
	}
}

// cycles converts a duration to CPU clock counts, the unit of the
// free-running timer.
func (c *Config) cycles(d time.Duration) uint32 {
	hz := int64(c.CPUClock / physic.Hertz)
	return uint32(hz * d.Nanoseconds() / int64(time.Second))
}

// Ticks converts a duration to connect-timeout ticks at the configured
// CPU clock, one tick per 16-bit timer overflow.
func (c *Config) Ticks(d time.Duration) uint32 {
	return c.cycles(d) >> 16
}

func (c *Config) String() string {
	if c.Autobaud {
		return fmt.Sprintf("%s %s autobaud", c.Part.Name, c.CPUClock)
	}
	return fmt.Sprintf("%s %s %s", c.Part.Name, c.CPUClock, c.Baud)
}
