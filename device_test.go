package uartboot

import "testing"

func TestBindRejectsMissingCapabilities(t *testing.T) {
	sim := NewSim(knownParts["atmega8"], ResetExternal)
	cfg := bootConfig(sim.Part)

	dev := sim.Device()
	dev.UART = nil
	if _, err := Run(dev, cfg); err != errNoUART {
		t.Errorf("no UART: %v", err)
	}

	dev = sim.Device()
	dev.Timer = nil
	if _, err := Run(dev, cfg); err != errNoTimer {
		t.Errorf("no timer: %v", err)
	}

	dev = sim.Device()
	dev.Flash = nil
	if _, err := Run(dev, cfg); err != errNoFlash {
		t.Errorf("no flash: %v", err)
	}

	dev = sim.Device()
	dev.NVM = nil
	c := cfg
	c.Marker = MarkerConfig{Enable: true, Sentinel: 0xA5}
	if _, err := Run(dev, c); err != errNoNVM {
		t.Errorf("marker without NVM: %v", err)
	}

	dev = sim.Device()
	dev.RxLine = nil
	c = cfg
	c.Autobaud = true
	if _, err := Run(dev, c); err != errNoRxLine {
		t.Errorf("autobaud without RX line: %v", err)
	}

	dev = sim.Device()
	c = cfg
	c.Entry = EntryPinLow
	if _, err := Run(dev, c); err != errNoPins {
		t.Errorf("pin entry without pins: %v", err)
	}

	dev = sim.Device()
	c = cfg
	c.Entry = EntryPinBridge
	dev.Entry0, _ = bridgePair(true)
	if _, err := Run(dev, c); err != errNoPins {
		t.Errorf("bridge entry with one pin: %v", err)
	}
}
