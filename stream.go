package uartboot

import (
	"io"
	"time"

	"periph.io/x/conn/v3/physic"
)

// StreamUART adapts a byte stream (a serial port, a pty, a socket) to the
// UART capability, for running the engine on a host instead of a target.
// A pump goroutine moves received bytes into a buffered channel so that
// RxReady stays a non-blocking poll. The host's port is assumed to be
// configured out of band; Configure only records the settings.
type StreamUART struct {
	w       io.Writer
	rx      chan byte
	pending byte
	havePnd bool
	on      bool
	dead    bool

	// Settings is the last configuration the engine applied, for
	// inspection by the caller.
	Settings PortSettings
}

// NewStreamUART starts pumping rw and returns the adapter. The goroutine
// exits when the stream reads EOF or errors.
func NewStreamUART(rw io.ReadWriter) *StreamUART {
	u := &StreamUART{w: rw, rx: make(chan byte, 256)}
	go u.pump(rw)
	return u
}

func (u *StreamUART) pump(r io.Reader) {
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			u.rx <- b
		}
		if err != nil {
			close(u.rx)
			return
		}
	}
}

func (u *StreamUART) Configure(s PortSettings) {
	u.Settings = s
	u.on = true
}

func (u *StreamUART) Disable() { u.on = false }

func (u *StreamUART) RxReady() bool {
	if !u.on {
		return false
	}
	if u.havePnd {
		return true
	}
	select {
	case b, ok := <-u.rx:
		if !ok {
			return false
		}
		u.pending = b
		u.havePnd = true
		return true
	default:
		return false
	}
}

// ReadByte hands over the byte claimed by the last RxReady. Host-side
// streams have no framing visibility, so the line status is always clean.
func (u *StreamUART) ReadByte() (byte, LineStatus) {
	u.havePnd = false
	return u.pending, 0
}

func (u *StreamUART) TxReady() bool { return !u.dead }

// WriteByte sends b downstream. A write error marks the port dead;
// TxReady then stays false and the engine's timeout path takes over.
func (u *StreamUART) WriteByte(b byte) {
	if u.dead {
		return
	}
	if _, err := u.w.Write([]byte{b}); err != nil {
		u.dead = true
	}
}

func (u *StreamUART) TxComplete() bool { return true }

// WallTimer is the free-running timer mapped onto the wall clock: counts
// advance at Clock cycles per second from the moment Enable is called.
type WallTimer struct {
	Clock physic.Frequency

	epoch   time.Time
	ovfSeen uint32
}

func (t *WallTimer) Enable() {
	t.epoch = time.Now()
	t.ovfSeen = 0
}

func (t *WallTimer) Disable() {}

func (t *WallTimer) cycles() uint32 {
	ns := time.Since(t.epoch).Nanoseconds()
	hz := uint64(t.Clock / physic.Hertz)
	return uint32(uint64(ns) * hz / uint64(time.Second))
}

func (t *WallTimer) Count() uint16 { return uint16(t.cycles()) }

func (t *WallTimer) Overflow() bool {
	epoch := t.cycles() >> 16
	if t.ovfSeen < epoch {
		t.ovfSeen++
		return true
	}
	return false
}
