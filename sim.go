package uartboot

import (
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// Sim is a complete in-memory MCU: flash pages, EEPROM, UART, free-running
// timer and reset-cause register, all driven from one virtual cycle
// counter. Every hardware status poll advances the counter by PollCost
// cycles, which is what makes the engine's busy-wait loops act as the
// passage of time. Sim backs the test suite and `uartboot run -sim`.
type Sim struct {
	Part Part

	// PollCost is the virtual cost of one status poll, in CPU cycles.
	PollCost uint32

	cycles  uint32
	ovfSeen uint32

	// UART
	rxq      []simRx
	tx       []byte
	uartOn   bool
	Settings PortSettings
	// Counters for asserting that peripherals stayed untouched.
	UARTConfigures int
	UARTDisables   int
	TimerEnables   int
	TimerDisables  int

	// Raw RX line waveform, for autobaud.
	wave     []Span
	waveBase uint32

	eeprom   []byte
	EEWrites int

	pages  [][]uint16
	latch  []uint16
	Erases map[int]int
	Writes map[int]int
	RWWs   int

	cause ResetCause
}

type simRx struct {
	b  byte
	st LineStatus
}

// Span is one level of the simulated RX line, held for Cycles.
type Span struct {
	Level  gpio.Level
	Cycles uint32
}

// NewSim builds a simulator with erased flash and EEPROM and the given
// reset cause latched (zero models entry by direct application call).
func NewSim(part Part, cause ResetCause) *Sim {
	ee := part.EEPROMBytes
	if ee == 0 {
		ee = 1024
	}
	s := &Sim{
		Part:     part,
		PollCost: 16,
		cause:    cause,
		eeprom:   make([]byte, ee),
		latch:    make([]uint16, part.PageWords),
		Erases:   map[int]int{},
		Writes:   map[int]int{},
	}
	for i := range s.eeprom {
		s.eeprom[i] = erasedCell
	}
	for i := range s.latch {
		s.latch[i] = 0xFFFF
	}
	s.pages = make([][]uint16, part.Pages())
	for i := range s.pages {
		p := make([]uint16, part.PageWords)
		for j := range p {
			p[j] = 0xFFFF
		}
		s.pages[i] = p
	}
	return s
}

// Device assembles the capability views over the simulator.
func (s *Sim) Device() *Device {
	return &Device{
		UART:   (*simUART)(s),
		Timer:  (*simTimer)(s),
		NVM:    (*simNVM)(s),
		Flash:  (*simFlash)(s),
		Sys:    (*simSys)(s),
		RxLine: s.RxPin(),
	}
}

func (s *Sim) poll() {
	s.cycles += s.PollCost
}

// QueueBytes schedules clean received bytes.
func (s *Sim) QueueBytes(p []byte) {
	for _, b := range p {
		s.rxq = append(s.rxq, simRx{b: b})
	}
}

// QueueByteStatus schedules a received byte with latched error flags.
func (s *Sim) QueueByteStatus(b byte, st LineStatus) {
	s.rxq = append(s.rxq, simRx{b: b, st: st})
}

// TX returns everything the engine transmitted.
func (s *Sim) TX() []byte { return s.tx }

// PlayWave loads an RX line waveform starting now. After the last span
// the line idles high.
func (s *Sim) PlayWave(spans []Span) {
	s.wave = spans
	s.waveBase = s.cycles
}

func (s *Sim) rxLevel() gpio.Level {
	off := s.cycles - s.waveBase
	for _, sp := range s.wave {
		if off < sp.Cycles {
			return sp.Level
		}
		off -= sp.Cycles
	}
	return gpio.High
}

// PageBytes returns a page's content in wire order (little-endian words).
func (s *Sim) PageBytes(page int) []byte {
	out := make([]byte, 0, len(s.pages[page])*2)
	for _, w := range s.pages[page] {
		out = append(out, byte(w), byte(w>>8))
	}
	return out
}

// Marker reads the EEPROM cell at addr without simulating a poll.
func (s *Sim) Marker(addr uint16) byte { return s.eeprom[addr] }

// SetMarker presets the EEPROM cell at addr.
func (s *Sim) SetMarker(addr uint16, b byte) { s.eeprom[addr] = b }

// RxPin returns the raw RX line as a gpio pin for the autobaud detector.
func (s *Sim) RxPin() gpio.PinIO {
	return &wavePin{
		Pin: &gpiotest.Pin{N: "SIMRX", Num: 0, L: gpio.High},
		sim: s,
	}
}

type wavePin struct {
	*gpiotest.Pin
	sim *Sim
}

func (p *wavePin) Read() gpio.Level {
	p.sim.poll()
	return p.sim.rxLevel()
}

// simUART implements the UART capability.
type simUART Sim

func (u *simUART) Configure(s PortSettings) {
	u.uartOn = true
	u.Settings = s
	u.UARTConfigures++
}

func (u *simUART) Disable() {
	u.uartOn = false
	u.UARTDisables++
}

func (u *simUART) RxReady() bool {
	(*Sim)(u).poll()
	return u.uartOn && len(u.rxq) > 0
}

func (u *simUART) ReadByte() (byte, LineStatus) {
	r := u.rxq[0]
	u.rxq = u.rxq[1:]
	return r.b, r.st
}

func (u *simUART) TxReady() bool {
	(*Sim)(u).poll()
	return true
}

func (u *simUART) WriteByte(b byte) { u.tx = append(u.tx, b) }

func (u *simUART) TxComplete() bool {
	(*Sim)(u).poll()
	return true
}

// simTimer implements the free-running timer over the cycle counter.
type simTimer Sim

func (t *simTimer) Enable()  { t.TimerEnables++ }
func (t *simTimer) Disable() { t.TimerDisables++ }

func (t *simTimer) Count() uint16 {
	(*Sim)(t).poll()
	return uint16(t.cycles)
}

func (t *simTimer) Overflow() bool {
	(*Sim)(t).poll()
	epoch := t.cycles >> 16
	if t.ovfSeen < epoch {
		t.ovfSeen++
		return true
	}
	return false
}

// simNVM implements the EEPROM capability.
type simNVM Sim

func (n *simNVM) Read(addr uint16) byte { return n.eeprom[addr] }

func (n *simNVM) Write(addr uint16, b byte) {
	n.eeprom[addr] = b
	n.EEWrites++
}

// simFlash implements self-programming over the page array.
type simFlash Sim

func (f *simFlash) FillLatch(word int, v uint16) { f.latch[word] = v }

func (f *simFlash) ErasePage(page int) {
	for i := range f.pages[page] {
		f.pages[page][i] = 0xFFFF
	}
	f.Erases[page]++
}

func (f *simFlash) WritePage(page int) {
	copy(f.pages[page], f.latch)
	// The hardware latch auto-erases after a page write.
	for i := range f.latch {
		f.latch[i] = 0xFFFF
	}
	f.Writes[page]++
}

func (f *simFlash) EnableRWW() { f.RWWs++ }

// simSys implements the reset-cause register, read-and-clear.
type simSys Sim

func (y *simSys) ResetCause() ResetCause {
	c := y.cause
	y.cause = 0
	return c
}
