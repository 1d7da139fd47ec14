package uartboot

// ticker folds the hardware timer's overflow events into a wrapping
// 32-bit tick count. One tick is one full 16-bit timer period. It is the
// shared time base for the connect-timeout window, the autobaud timeouts
// and the blink phase.
type ticker struct {
	timer Timer
	ticks uint32
}

// service accounts one pending overflow, if any. Called from every
// blocking wait so that busy-poll loops keep time moving.
func (t *ticker) service() {
	if t.timer.Overflow() {
		t.ticks++
	}
}

func (t *ticker) now() uint32 {
	return t.ticks
}

// elapsed returns now-since under wraparound. Unsigned subtraction is
// modular, so the comparison stays correct across the 32-bit boundary.
func elapsed(now, since uint32) uint32 {
	return now - since
}
