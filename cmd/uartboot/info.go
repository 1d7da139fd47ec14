package main

import (
	"flag"
	"fmt"

	"github.com/igloz/uartboot"
	"periph.io/x/conn/v3/physic"
)

// infoCmd lists the known parts and, for the given clock and rate, the
// baud divisor the engine would program.
func infoCmd(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	cpu := fs.Uint("cpu", 16000000, "CPU clock in Hz")
	baud := fs.Uint("baud", 19200, "baud rate")
	double := fs.Bool("2x", false, "double-speed UART sampling")
	fs.Parse(args)

	fmt.Printf("%-12s %8s %6s %6s %6s\n", "part", "flash", "page", "boot", "pages")
	for _, name := range uartboot.PartNames() {
		p, _ := uartboot.PartByName(name)
		fmt.Printf("%-12s %7dw %5dw %5dw %6d\n",
			p.Name, p.FlashWords, p.PageWords, p.BootWords, p.Pages())
	}

	cfg := uartboot.Config{
		CPUClock:    physic.Frequency(*cpu) * physic.Hertz,
		Baud:        physic.Frequency(*baud) * physic.Hertz,
		DoubleSpeed: *double,
	}
	div, err := cfg.Divisor()
	if err != nil {
		fmt.Printf("\n%s / %s: %v\n", cfg.CPUClock, cfg.Baud, err)
		return
	}
	fmt.Printf("\n%s / %s: divisor %d (2x=%v)\n", cfg.CPUClock, cfg.Baud, div, *double)
}
