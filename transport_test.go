package uartboot

import "testing"

func TestReadByteAbortsWhenStepFails(t *testing.T) {
	sim := NewSim(knownParts["atmega8"], ResetExternal)
	u := (*simUART)(sim)
	u.Configure(PortSettings{})

	steps := 0
	tr := transport{uart: u, step: func() bool {
		steps++
		return steps < 100
	}}
	if _, ok := tr.readByte(); ok {
		t.Fatal("readByte succeeded on a silent line")
	}
	if steps != 100 {
		t.Fatalf("step called %d times, want 100", steps)
	}
}

func TestStatusAccumulatesAcrossReads(t *testing.T) {
	sim := NewSim(knownParts["atmega8"], ResetExternal)
	u := (*simUART)(sim)
	u.Configure(PortSettings{})
	sim.QueueByteStatus('a', LineFrameError)
	sim.QueueBytes([]byte{'b'})
	sim.QueueByteStatus('c', LineOverrun)

	tr := transport{uart: u}
	for i := 0; i < 3; i++ {
		if _, ok := tr.readByte(); !ok {
			t.Fatalf("read %d aborted", i)
		}
	}
	if st := tr.takeStatus(); st != LineFrameError|LineOverrun {
		t.Fatalf("takeStatus = %#02x", st)
	}
	if st := tr.takeStatus(); st != 0 {
		t.Fatalf("takeStatus not cleared: %#02x", st)
	}
}

func TestWriteSendsInOrder(t *testing.T) {
	sim := NewSim(knownParts["atmega8"], ResetExternal)
	u := (*simUART)(sim)
	u.Configure(PortSettings{})

	tr := transport{uart: u}
	tr.write([]byte("blst"))
	tr.drain()
	if got := string(sim.TX()); got != "blst" {
		t.Fatalf("TX = %q", got)
	}
}
