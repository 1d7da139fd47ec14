package uartboot

import (
	"testing"
	"time"

	"periph.io/x/conn/v3/physic"
)

func TestDivisor(t *testing.T) {
	tests := []struct {
		cpu     physic.Frequency
		baud    physic.Frequency
		double  bool
		want    uint16
		wantErr bool
	}{
		{16 * physic.MegaHertz, 9600 * physic.Hertz, false, 103, false},
		{16 * physic.MegaHertz, 19200 * physic.Hertz, false, 51, false},
		{16 * physic.MegaHertz, 115200 * physic.Hertz, false, 8, false},
		{16 * physic.MegaHertz, 115200 * physic.Hertz, true, 16, false},
		{8 * physic.MegaHertz, 9600 * physic.Hertz, false, 51, false},
		// Too slow: the divisor register is only 12 bits wide.
		{16 * physic.MegaHertz, 110 * physic.Hertz, false, 0, true},
		// Too fast: the divisor would round to zero.
		{16 * physic.MegaHertz, 3 * physic.MegaHertz, false, 0, true},
	}
	for _, tt := range tests {
		c := Config{CPUClock: tt.cpu, Baud: tt.baud, DoubleSpeed: tt.double}
		got, err := c.Divisor()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s/%s: err = %v", tt.cpu, tt.baud, err)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("%s/%s 2x=%v: divisor = %d, want %d", tt.cpu, tt.baud, tt.double, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			CPUClock:       16 * physic.MegaHertz,
			Baud:           19200 * physic.Hertz,
			Part:           knownParts["atmega328p"],
			ConnectTimeout: 100,
		}
	}

	if c := base(); c.validate() != nil {
		t.Fatalf("base config rejected: %v", c.validate())
	}

	c := base()
	c.CPUClock = 0
	if err := c.validate(); err != errNoClock {
		t.Errorf("no clock: %v", err)
	}

	c = base()
	c.Baud = 0
	if err := c.validate(); err != errNoBaud {
		t.Errorf("no baud: %v", err)
	}

	c = base()
	c.Baud = 0
	c.Autobaud = true
	if err := c.validate(); err != nil {
		t.Errorf("autobaud without baud rejected: %v", err)
	}

	c = base()
	c.StopBits = 3
	if err := c.validate(); err != errStopBits {
		t.Errorf("stop bits: %v", err)
	}

	// A config with every entry path disabled could only ever jump to the
	// application.
	c = base()
	c.ConnectTimeout = 0
	if err := c.validate(); err != errNoEntry {
		t.Errorf("no entry path: %v", err)
	}
	c.Marker = MarkerConfig{Enable: true, Sentinel: 0xA5}
	if err := c.validate(); err != nil {
		t.Errorf("marker-only entry rejected: %v", err)
	}
}

func TestValidateDefaultsStopBits(t *testing.T) {
	c := Config{
		CPUClock:       16 * physic.MegaHertz,
		Baud:           19200 * physic.Hertz,
		Part:           knownParts["atmega8"],
		ConnectTimeout: 1,
	}
	if err := c.validate(); err != nil {
		t.Fatal(err)
	}
	if c.StopBits != 1 {
		t.Fatalf("StopBits defaulted to %d", c.StopBits)
	}
}

func TestMarkerAddrDefaultsToLastCell(t *testing.T) {
	c := Config{
		CPUClock:       16 * physic.MegaHertz,
		Baud:           19200 * physic.Hertz,
		Part:           knownParts["atmega328p"],
		ConnectTimeout: 1,
		Marker:         MarkerConfig{Enable: true, Sentinel: 0xA5},
	}
	if err := c.validate(); err != nil {
		t.Fatal(err)
	}
	if c.Marker.Addr != 1023 {
		t.Fatalf("marker addr = %d", c.Marker.Addr)
	}
}

func TestTicks(t *testing.T) {
	c := Config{CPUClock: 16 * physic.MegaHertz}
	// 10ms at 16MHz is 160000 cycles, i.e. 2 full 16-bit timer periods.
	if got := c.Ticks(10 * time.Millisecond); got != 2 {
		t.Fatalf("Ticks(10ms) = %d", got)
	}
	if got := c.Ticks(time.Second); got != 244 {
		t.Fatalf("Ticks(1s) = %d", got)
	}
}
