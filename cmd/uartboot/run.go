package main

import (
	"flag"
	"os"
	"time"

	"github.com/igloz/uartboot"
	"github.com/jacobsa/go-serial/serial"
	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// runCmd serves one bootloader pass. The program memory, EEPROM and
// reset-cause register are always the built-in simulated target; the
// serial side is either the simulator's queue (-sim) or a real port.
func runCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	port := fs.String("port", "", "serial device (e.g. /dev/ttyUSB0)")
	sim := fs.Bool("sim", false, "loop back against the simulated serial line")
	partName := fs.String("part", "atmega328p", "target part name (see info)")
	cpu := fs.Uint("cpu", 16000000, "CPU clock in Hz")
	baud := fs.Uint("baud", 19200, "baud rate")
	double := fs.Bool("2x", false, "double-speed UART sampling")
	autobaud := fs.Bool("autobaud", false, "derive the divisor from the training signal (simulator only)")
	timeout := fs.Duration("timeout", 3*time.Second, "connect window, 0 to disable")
	hwid := fs.String("hwid", "UARTBOOT", "hardware id reported in the session descriptor")
	marker := fs.Uint("marker", 0, "magic-marker sentinel byte, 0 to disable")
	markerAddr := fs.Uint("marker-addr", 0, "EEPROM address of the marker cell")
	restore := fs.Bool("restore", true, "rewrite the marker sentinel on clean exit")
	entry := fs.String("entry", "", "forced-entry pin policy: low, high, bridge, dual")
	pin0 := fs.String("pin0", "", "entry pin name (gpioreg)")
	pin1 := fs.String("pin1", "", "second entry pin name (bridge/dual)")
	image := fs.String("image", "", "write the programmed pages to this file on exit")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Parse(args)

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	part, ok := uartboot.PartByName(*partName)
	if !ok {
		fatalUsage("unknown part: %q", *partName)
	}

	cfg := uartboot.Config{
		CPUClock:    physic.Frequency(*cpu) * physic.Hertz,
		Baud:        physic.Frequency(*baud) * physic.Hertz,
		DoubleSpeed: *double,
		Autobaud:    *autobaud,
		Part:        part,
		HWID:        *hwid,
		Logger:      log,
	}
	cfg.ConnectTimeout = cfg.Ticks(*timeout)
	if *marker != 0 {
		cfg.Marker = uartboot.MarkerConfig{
			Enable:        true,
			Sentinel:      byte(*marker),
			Addr:          uint16(*markerAddr),
			RestoreOnExit: *restore,
		}
	}

	// A fresh simulated part has an erased marker cell, which forces
	// entry; that is also the state after an interrupted session.
	target := uartboot.NewSim(part, uartboot.ResetExternal)
	dev := target.Device()
	if !*sim {
		if *port == "" {
			fatalUsage("one of -port or -sim is required")
		}
		if *autobaud {
			fatalUsage("-autobaud needs the raw line level and only works with -sim")
		}
		opts := serial.OpenOptions{
			PortName:        *port,
			BaudRate:        *baud,
			DataBits:        8,
			StopBits:        1,
			ParityMode:      serial.PARITY_NONE,
			MinimumReadSize: 1,
		}
		conn, err := serial.Open(opts)
		if err != nil {
			fatalf("failed to open %s: %v", *port, err)
		}
		defer conn.Close()
		dev.UART = uartboot.NewStreamUART(conn)
		dev.Timer = &uartboot.WallTimer{Clock: cfg.CPUClock}
		dev.RxLine = nil
	}

	if *entry != "" {
		cfg.Entry = entryMode(*entry)
		if _, err := host.Init(); err != nil {
			fatalf("host initialization failed: %v", err)
		}
		dev.Entry0 = gpioreg.ByName(*pin0)
		if dev.Entry0 == nil {
			fatalUsage("no such pin: %q", *pin0)
		}
		if *pin1 != "" {
			dev.Entry1 = gpioreg.ByName(*pin1)
			if dev.Entry1 == nil {
				fatalUsage("no such pin: %q", *pin1)
			}
		}
	}

	res, err := uartboot.Run(dev, cfg)
	if err != nil {
		fatalf("%v", err)
	}
	log.Infof("exit: %s, forced=%v, %d pages written", res.Reason, res.Forced, res.PagesWritten)

	if *image != "" {
		out := make([]byte, 0, part.Pages()*part.PageWords*2)
		for p := 0; p < part.Pages(); p++ {
			out = append(out, target.PageBytes(p)...)
		}
		if err := os.WriteFile(*image, out, 0644); err != nil {
			fatalf("failed to write %s: %v", *image, err)
		}
		log.Infof("image saved to %s", *image)
	}
}

func entryMode(s string) uartboot.EntryMode {
	switch s {
	case "low":
		return uartboot.EntryPinLow
	case "high":
		return uartboot.EntryPinHigh
	case "bridge":
		return uartboot.EntryPinBridge
	case "dual":
		return uartboot.EntryDualPinLow
	}
	fatalUsage("unknown entry policy: %q", s)
	return uartboot.EntryDisabled
}
