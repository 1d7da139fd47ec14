package uartboot

import (
	"bytes"
	"io"
	"testing"
	"time"

	"periph.io/x/conn/v3/physic"
)

type pipeRW struct {
	io.Reader
	io.Writer
}

func TestStreamUARTReceive(t *testing.T) {
	devR, hostW := io.Pipe()
	var out bytes.Buffer
	u := NewStreamUART(pipeRW{devR, &out})
	u.Configure(PortSettings{Divisor: 103})

	go hostW.Write([]byte("BL"))

	deadline := time.Now().Add(5 * time.Second)
	var got []byte
	for len(got) < 2 {
		if u.RxReady() {
			b, st := u.ReadByte()
			if st != 0 {
				t.Fatalf("line status %#02x on a stream", st)
			}
			got = append(got, b)
		}
		if time.Now().After(deadline) {
			t.Fatal("bytes never arrived")
		}
	}
	if string(got) != "BL" {
		t.Fatalf("got %q", got)
	}

	u.WriteByte('x')
	if out.String() != "x" {
		t.Fatalf("out = %q", out.String())
	}

	u.Disable()
	if u.RxReady() {
		t.Fatal("disabled port reported ready")
	}
}

type failWriter struct{}

func (failWriter) Write(p []byte) (int, error) {
	return 0, io.ErrClosedPipe
}

func TestStreamUARTDeadPort(t *testing.T) {
	u := NewStreamUART(pipeRW{bytes.NewReader(nil), failWriter{}})
	u.Configure(PortSettings{})

	if !u.TxReady() {
		t.Fatal("fresh port not ready")
	}
	u.WriteByte('x')
	if u.TxReady() {
		t.Fatal("port still claims readiness after a write error")
	}
	// Further writes are dropped, not retried against the dead writer.
	u.WriteByte('y')
}

func TestWallTimerAdvances(t *testing.T) {
	wt := &WallTimer{Clock: 16 * physic.MegaHertz}
	wt.Enable()
	time.Sleep(20 * time.Millisecond)

	// 20ms at 16MHz is at least four full 16-bit periods.
	if c := wt.cycles(); c < 4*65536 {
		t.Fatalf("only %d cycles elapsed", c)
	}
	if !wt.Overflow() {
		t.Fatal("no overflow after several periods")
	}
}

func TestRunOverStream(t *testing.T) {
	devR, hostW := io.Pipe()
	hostR, devW := io.Pipe()

	sim := NewSim(knownParts["atmega8"], ResetExternal)
	dev := sim.Device()
	dev.UART = NewStreamUART(pipeRW{devR, devW})
	dev.Timer = &WallTimer{Clock: 16 * physic.MegaHertz}
	dev.RxLine = nil

	cfg := bootConfig(sim.Part)
	cfg.ConnectTimeout = cfg.Ticks(5 * time.Second)

	done := make(chan RunResult, 1)
	go func() {
		res, err := Run(dev, cfg)
		if err != nil {
			t.Error(err)
		}
		done <- res
	}()

	if _, err := hostW.Write([]byte("BLST")); err != nil {
		t.Fatal(err)
	}
	reply := make([]byte, 4+descriptorLen)
	if _, err := io.ReadFull(hostR, reply); err != nil {
		t.Fatal(err)
	}
	if string(reply[:4]) != "blst" {
		t.Fatalf("reply = %q", reply)
	}

	if _, err := hostW.Write([]byte("BLXT")); err != nil {
		t.Fatal(err)
	}
	ack := make([]byte, 4)
	if _, err := io.ReadFull(hostR, ack); err != nil {
		t.Fatal(err)
	}
	if string(ack) != "blxt" {
		t.Fatalf("ack = %q", ack)
	}

	res := <-done
	if res.Reason != ReasonExitCommand {
		t.Fatalf("res = %+v", res)
	}
}
