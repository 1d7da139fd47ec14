package uartboot

import "testing"

// fakeTimer hands out a scripted number of overflow events.
type fakeTimer struct {
	count    uint16
	pending  int
	enabled  bool
	disabled bool
}

func (f *fakeTimer) Enable()       { f.enabled = true }
func (f *fakeTimer) Disable()      { f.disabled = true }
func (f *fakeTimer) Count() uint16 { return f.count }

func (f *fakeTimer) Overflow() bool {
	if f.pending > 0 {
		f.pending--
		return true
	}
	return false
}

func TestTickerServiceOnePerCall(t *testing.T) {
	ft := &fakeTimer{pending: 3}
	tk := ticker{timer: ft}
	for i := 1; i <= 3; i++ {
		tk.service()
		if tk.now() != uint32(i) {
			t.Fatalf("after %d services: ticks = %d", i, tk.now())
		}
	}
	tk.service()
	if tk.now() != 3 {
		t.Fatalf("spurious tick: %d", tk.now())
	}
}

func TestElapsedAcrossWrap(t *testing.T) {
	tests := []struct {
		now, since, want uint32
	}{
		{10, 3, 7},
		{5, 0xFFFFFFFF, 6},
		{0, 0, 0},
	}
	for _, tt := range tests {
		if got := elapsed(tt.now, tt.since); got != tt.want {
			t.Errorf("elapsed(%d, %d) = %d, want %d", tt.now, tt.since, got, tt.want)
		}
	}
}
