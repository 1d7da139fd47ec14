package uartboot

import "testing"

func TestCRC8Vectors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want byte
	}{
		{"empty", nil, 0xFF},
		{"zero", []byte{0x00}, 0xD2},
		{"ff cancels seed", []byte{0xFF}, 0x00},
	}
	for _, tt := range tests {
		if got := CRC8(tt.data); got != tt.want {
			t.Errorf("%s: CRC8 = %#02x, want %#02x", tt.name, got, tt.want)
		}
	}
}

// The receiver accepts a frame by folding the transmitted checksum into
// its own accumulator and checking for zero. That must hold for any
// payload, since the trailing byte is the sender's accumulator itself.
func TestCRC8TrailingByteFoldsToZero(t *testing.T) {
	payloads := [][]byte{
		{},
		{0x00},
		{0xFF, 0xFF, 0xFF},
		{0xDE, 0xAD, 0xBE, 0xEF},
		make([]byte, 128),
	}
	for i := range payloads[4] {
		payloads[4][i] = byte(i * 7)
	}
	for _, p := range payloads {
		crc := CRC8(p)
		if got := UpdateCRC8(crc, crc); got != 0 {
			t.Errorf("payload %x: fold(%#02x) = %#02x, want 0", p, crc, got)
		}
	}
}

func TestCRC8DetectsBitFlip(t *testing.T) {
	p := []byte{0x12, 0x34, 0x56, 0x78}
	ref := CRC8(p)
	for i := range p {
		for bit := 0; bit < 8; bit++ {
			q := append([]byte(nil), p...)
			q[i] ^= 1 << bit
			if CRC8(q) == ref {
				t.Errorf("flip byte %d bit %d: collision", i, bit)
			}
		}
	}
}
