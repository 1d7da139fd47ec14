package uartboot

// Page payload checksum: 8-bit CRC over polynomial
// x^8+x^7+x^6+x^3+x^2+x+1 (0xCF), MSB first, seeded with CRC8Init per page.
// The sender transmits the final accumulator after the payload; folding
// that trailing byte must leave the accumulator at zero for acceptance.

const CRC8Init = 0xFF

const crc8Poly = 0xCF

// UpdateCRC8 folds one byte into the running accumulator.
func UpdateCRC8(acc, b byte) byte {
	acc ^= b
	for i := 0; i < 8; i++ {
		if acc&0x80 != 0 {
			acc = acc<<1 ^ crc8Poly
		} else {
			acc <<= 1
		}
	}
	return acc
}

// CRC8 computes the checksum of a whole payload, seeded with CRC8Init.
// This is the trailing byte a sender must transmit after the payload.
func CRC8(data []byte) byte {
	acc := byte(CRC8Init)
	for _, b := range data {
		acc = UpdateCRC8(acc, b)
	}
	return acc
}
