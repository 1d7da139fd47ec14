package uartboot

import (
	"sort"
	"testing"
)

func TestPartPages(t *testing.T) {
	tests := []struct {
		name string
		want int
	}{
		{"atmega8", 112},
		{"atmega168", 120},
		{"atmega328p", 248},
		{"atmega1284p", 508},
	}
	for _, tt := range tests {
		p, ok := PartByName(tt.name)
		if !ok {
			t.Fatalf("%s: unknown", tt.name)
		}
		if got := p.Pages(); got != tt.want {
			t.Errorf("%s: Pages = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestPartValidate(t *testing.T) {
	for name, p := range knownParts {
		if err := p.validate(); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}

	bad := Part{Name: "bad", FlashWords: 4096, PageWords: 48, BootWords: 512}
	if bad.validate() == nil {
		t.Error("unaligned geometry accepted")
	}
	bad = Part{Name: "bad", FlashWords: 512, PageWords: 32, BootWords: 512}
	if bad.validate() == nil {
		t.Error("all-bootloader part accepted")
	}
}

func TestPartNamesSorted(t *testing.T) {
	names := PartNames()
	if len(names) != len(knownParts) {
		t.Fatalf("got %d names", len(names))
	}
	if !sort.StringsAreSorted(names) {
		t.Fatalf("not sorted: %v", names)
	}
}
