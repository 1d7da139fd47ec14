package uartboot

// transport is the blocking byte layer over the UART capability. Every
// wait loop invokes the poll step, which services the tick counter, the
// blink phase and the connect-timeout window; a false return aborts the
// wait. Receiver error flags are accumulated across reads so a whole page
// payload can be judged at once.
type transport struct {
	uart UART
	// step is the cooperative poll callback. May be nil.
	step func() bool
	// status accumulates line errors since the last takeStatus.
	status LineStatus
}

// readByte blocks until a byte arrives. ok is false when the poll step
// aborted the wait (connect timeout expired).
func (t *transport) readByte() (b byte, ok bool) {
	for !t.uart.RxReady() {
		if t.step != nil && !t.step() {
			return 0, false
		}
	}
	b, st := t.uart.ReadByte()
	t.status |= st
	return b, true
}

// writeByte blocks until the transmit buffer is free, then sends b. An
// aborting poll step drops the byte; the session is over anyway.
func (t *transport) writeByte(b byte) {
	for !t.uart.TxReady() {
		if t.step != nil && !t.step() {
			return
		}
	}
	t.uart.WriteByte(b)
}

func (t *transport) write(p []byte) {
	for _, b := range p {
		t.writeByte(b)
	}
}

// drain waits until the transmit shift register has fully emptied to the
// line. Called before handing control to the application so the exit
// acknowledgement is not cut off by the peripheral teardown.
func (t *transport) drain() {
	for !t.uart.TxComplete() {
		if t.step != nil && !t.step() {
			return
		}
	}
}

// takeStatus returns and clears the accumulated receiver error flags.
func (t *transport) takeStatus() LineStatus {
	s := t.status
	t.status = 0
	return s
}
