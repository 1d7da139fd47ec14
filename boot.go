package uartboot

import (
	"periph.io/x/conn/v3/gpio"
)

// ExitReason reports why Run handed control back to the application.
type ExitReason uint8

const (
	// ReasonNoEntry: the decision engine jumped straight to the
	// application; no bootloader peripheral was ever initialized.
	ReasonNoEntry ExitReason = iota
	// ReasonConnectTimeout: the entry window expired with no valid
	// protocol traffic (including autobaud never converging).
	ReasonConnectTimeout
	// ReasonExitCommand: the host closed the session.
	ReasonExitCommand
)

func (r ExitReason) String() string {
	switch r {
	case ReasonNoEntry:
		return "no-entry"
	case ReasonConnectTimeout:
		return "connect-timeout"
	case ReasonExitCommand:
		return "exit-command"
	}
	return "unknown"
}

// RunResult summarizes one bootloader pass. Whatever the reason, control
// belongs to the application when Run returns.
type RunResult struct {
	Reason ExitReason
	// Forced is set when entry came from reset-cause, marker or pin
	// policy rather than the connect-timeout window.
	Forced bool
	// PagesWritten counts committed page programs.
	PagesWritten int
}

// Bootloader is one boot pass over a device. Create it implicitly via Run.
type Bootloader struct {
	dev  *Device
	cfg  *Config
	tick ticker
	tr   transport
	prog programmer

	flags SessionFlags
	pages int

	timeoutArmed bool
	t0           uint32
}

// blinkShift selects the tick bit driving the cosmetic LED phase.
const blinkShift = 4

// Run evaluates the boot-entry policy and, if it decides to enter, serves
// the flashing protocol until exit or timeout. It returns only once the
// device is in reset-equivalent peripheral state; the caller owns the
// actual jump to the application's reset vector.
func Run(dev *Device, cfg Config) (RunResult, error) {
	if err := cfg.validate(); err != nil {
		return RunResult{}, err
	}
	if err := dev.bind(&cfg); err != nil {
		return RunResult{}, err
	}
	b := &Bootloader{
		dev:  dev,
		cfg:  &cfg,
		tick: ticker{timer: dev.Timer},
		tr:   transport{uart: dev.UART},
		prog: programmer{flash: dev.Flash, nvm: dev.NVM, marker: cfg.Marker},
	}
	return b.run()
}

func (b *Bootloader) run() (RunResult, error) {
	enter, forced, err := b.decide()
	if err != nil {
		return RunResult{}, err
	}
	if !enter {
		// Straight to the application: nothing was initialized, only
		// the entry pins need parking.
		b.dev.parkPins()
		b.logf("application verified, skipping bootloader")
		return RunResult{Reason: ReasonNoEntry}, nil
	}

	b.flags.set(FlagEntered)
	if forced {
		b.flags.set(FlagForcedEntry)
	}
	b.dev.Timer.Enable()
	b.tr.step = b.pollStep
	b.t0 = b.tick.now()
	b.timeoutArmed = !forced && b.cfg.ConnectTimeout > 0

	divisor, ok := b.divisor()
	reason := ReasonConnectTimeout
	if ok {
		b.dev.UART.Configure(b.cfg.settings(divisor))
		b.logf("session open, divisor=%d forced=%v", divisor, forced)
		reason = b.serve()
	}

	b.teardown()
	return RunResult{
		Reason:       reason,
		Forced:       forced,
		PagesWritten: b.pages,
	}, nil
}

// decide evaluates the entry conditions in strict priority order.
func (b *Bootloader) decide() (enter, forced bool, err error) {
	// A cleared reset-cause register means the application called into
	// the bootloader directly.
	if b.dev.Sys.ResetCause() == 0 {
		return true, true, nil
	}
	if b.prog.markerForcesEntry() {
		return true, true, nil
	}
	if b.cfg.Entry != EntryDisabled {
		hit, perr := b.entryPins()
		if perr != nil {
			return false, false, perr
		}
		if hit {
			return true, true, nil
		}
	}
	if b.cfg.ConnectTimeout > 0 {
		return true, false, nil
	}
	return false, false, nil
}

// divisor yields the UART divisor, from configuration or line measurement.
func (b *Bootloader) divisor() (uint16, bool) {
	if !b.cfg.Autobaud {
		d, err := b.cfg.Divisor()
		return d, err == nil
	}
	ab := &autobaud{rx: b.dev.RxLine, timer: b.dev.Timer, step: b.pollStep}
	return ab.detect(b.cfg)
}

// pollStep is the cooperative scheduler invoked from every blocking wait:
// tick accounting, blink phase, and the connect-timeout abort.
func (b *Bootloader) pollStep() bool {
	b.tick.service()
	if b.cfg.Blink && b.dev.Blink != nil {
		b.dev.Blink.Out(gpio.Level(b.tick.now()>>blinkShift&1 == 1))
	}
	if b.timeoutArmed && elapsed(b.tick.now(), b.t0) > b.cfg.ConnectTimeout {
		return false
	}
	return true
}

// disarmTimeout permanently disables the connect window; called once the
// scanner has seen valid protocol traffic.
func (b *Bootloader) disarmTimeout() {
	b.timeoutArmed = false
}

// teardown returns every peripheral the bootloader used to reset state.
func (b *Bootloader) teardown() {
	b.dev.UART.Disable()
	b.dev.Timer.Disable()
	b.dev.parkPins()
	b.logf("handing over to application, pages=%d", b.pages)
}

func (b *Bootloader) logf(format string, args ...interface{}) {
	if b.cfg.Logger != nil {
		b.cfg.Logger.Debugf(format, args...)
	}
}

// debounceReads is the number of consecutive samples a pin condition must
// hold to be accepted.
const debounceReads = 8

func (b *Bootloader) entryPins() (bool, error) {
	d := b.dev
	switch b.cfg.Entry {
	case EntryPinLow:
		if err := d.Entry0.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return false, err
		}
		return holds(func() bool { return d.Entry0.Read() == gpio.Low }), nil
	case EntryPinHigh:
		// The pin is expected to be pulled down externally.
		if err := d.Entry0.In(gpio.Float, gpio.NoEdge); err != nil {
			return false, err
		}
		return holds(func() bool { return d.Entry0.Read() == gpio.High }), nil
	case EntryDualPinLow:
		if err := d.Entry0.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return false, err
		}
		if err := d.Entry1.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return false, err
		}
		return holds(func() bool {
			return d.Entry0.Read() == gpio.Low && d.Entry1.Read() == gpio.Low
		}), nil
	case EntryPinBridge:
		return b.bridged()
	}
	return false, nil
}

func holds(cond func() bool) bool {
	for i := 0; i < debounceReads; i++ {
		if !cond() {
			return false
		}
	}
	return true
}

// bridged verifies the two entry pins are electrically connected by
// driving each low in turn and watching the level appear on the other.
func (b *Bootloader) bridged() (bool, error) {
	p0, p1 := b.dev.Entry0, b.dev.Entry1
	for i := 0; i < debounceReads; i++ {
		ok, err := bridgeProbe(p0, p1)
		if err != nil || !ok {
			return false, err
		}
		ok, err = bridgeProbe(p1, p0)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// bridgeProbe drives drv low and expects obs to follow, then releases drv
// and expects obs to return high. The release leg rejects a line that is
// simply stuck low.
func bridgeProbe(drv, obs gpio.PinIO) (bool, error) {
	if err := obs.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return false, err
	}
	if err := drv.Out(gpio.Low); err != nil {
		return false, err
	}
	low := obs.Read() == gpio.Low
	if err := drv.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return false, err
	}
	high := obs.Read() == gpio.High
	return low && high, nil
}
