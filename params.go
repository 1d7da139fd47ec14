package uartboot

import (
	"errors"
	"sort"
)

// Part describes one device's program-memory geometry. All sizes are in
// 16-bit words, the native flash unit of this family.
type Part struct {
	Name string

	// FlashWords is the total program memory size.
	FlashWords int
	// PageWords is the erase/write page size.
	PageWords int
	// BootWords is the region reserved for the bootloader at the top of
	// program memory. It is excluded from Pages so the engine can never
	// select its own pages for programming.
	BootWords int

	// EEPROMBytes is the non-volatile data storage size; the magic
	// marker defaults to its last cell.
	EEPROMBytes int
}

// Default bootloader reservation: 1024 bytes at the top of flash.
const defaultBootWords = 512

// Geometries from the respective datasheets ("Memory Programming" /
// "Page Size" tables).
var knownParts = map[string]Part{
	"atmega8":    {Name: "atmega8", FlashWords: 4096, PageWords: 32, BootWords: defaultBootWords, EEPROMBytes: 512},
	"atmega88":   {Name: "atmega88", FlashWords: 4096, PageWords: 32, BootWords: defaultBootWords, EEPROMBytes: 512},
	"atmega168":  {Name: "atmega168", FlashWords: 8192, PageWords: 64, BootWords: defaultBootWords, EEPROMBytes: 512},
	"atmega328p": {Name: "atmega328p", FlashWords: 16384, PageWords: 64, BootWords: defaultBootWords, EEPROMBytes: 1024},
	"atmega644":  {Name: "atmega644", FlashWords: 32768, PageWords: 128, BootWords: defaultBootWords, EEPROMBytes: 2048},
	// Above 64K words the word address no longer fits 16 bits; the
	// Flash implementation owns the extended addressing [ATmega328P|26].
	"atmega1284p": {Name: "atmega1284p", FlashWords: 65536, PageWords: 128, BootWords: defaultBootWords, EEPROMBytes: 4096},
}

// PartByName looks up a known geometry.
func PartByName(name string) (Part, bool) {
	p, ok := knownParts[name]
	return p, ok
}

// PartNames lists the known geometries.
func PartNames() []string {
	names := make([]string, 0, len(knownParts))
	for n := range knownParts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Pages is the number of pages available for application programming:
// everything below the bootloader reservation.
func (p Part) Pages() int {
	return (p.FlashWords - p.BootWords) / p.PageWords
}

var errBadPart = errors.New("uartboot: part geometry is not page-aligned")

func (p Part) validate() error {
	if p.PageWords <= 0 || p.PageWords > 255 {
		return errBadPart
	}
	if p.FlashWords%p.PageWords != 0 || p.BootWords%p.PageWords != 0 {
		return errBadPart
	}
	if p.Pages() <= 0 || p.Pages() > 0xFFFF {
		return errTinyPages
	}
	return nil
}
