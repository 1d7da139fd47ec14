// Package uartboot implements the decision, protocol, and self-programming
// engine of a small UART bootloader for AVR-class microcontrollers: the
// boot-entry policy, an autobaud line-speed detector, a checksummed byte
// protocol with start-session / program-page / exit commands, and the
// page-at-a-time flash rewrite sequence.
//
// The engine is hardware-independent. All register-level behavior is reached
// through the narrow capability interfaces in hal.go (UART, Timer, NVM,
// Flash, System) plus periph.io gpio pins, so the same engine runs against
// the in-memory simulator (Sim), a real serial line (StreamUART), or test
// fakes.
//
// # References:
//
// AVR (https://www.microchip.com/en-us/products/microcontrollers-and-microprocessors/8-bit-mcus/avr-mcus)
//   - [ATmega328P]: megaAVR Data Sheet (19. USART0, 26. Boot Loader Support - self-programming)
//   - [AVR109]: Self Programming (page buffer fill / erase / write ordering)
//   - [AVR305]: Half Duplex Compact Software UART (bit-time measurement)
package uartboot
