package uartboot

// LineStatus carries the receiver error flags observed when a byte arrived.
// The bits mirror the USART status register [ATmega328P|19.10.3 UCSR0A].
type LineStatus uint8

const (
	LineFrameError LineStatus = 1 << iota
	LineOverrun
	LineParityError
)

// PortSettings is the derived UART register configuration. Divisor is the
// baud-rate register value (UBRR); DoubleSpeed selects the U2X mode where
// the divisor scale is 8 instead of 16.
type PortSettings struct {
	Divisor     uint16
	DoubleSpeed bool
	Parity      Parity
	StopBits    int
}

// UART is the byte-level serial capability. All waiting is done by the
// caller polling RxReady/TxReady; the methods themselves never block.
type UART interface {
	// Configure enables receiver and transmitter with the given settings.
	Configure(s PortSettings)
	// Disable turns receiver and transmitter off, returning the port to
	// its reset state.
	Disable()

	RxReady() bool
	// ReadByte returns the next received byte and the error flags that
	// were latched with it. Only valid after RxReady reported true.
	ReadByte() (byte, LineStatus)

	TxReady() bool
	WriteByte(b byte)
	// TxComplete reports that the transmit shift register has fully
	// drained to the line, not merely that the buffer has space.
	TxComplete() bool
}

// Timer is the free-running hardware timer. Count wraps at 16 bits;
// Overflow reads and clears the overflow flag, one event per call.
type Timer interface {
	Enable()
	Disable()
	Count() uint16
	Overflow() bool
}

// NVM is byte-granular non-volatile storage (EEPROM). Write blocks until
// the cell has committed.
type NVM interface {
	Read(addr uint16) byte
	Write(addr uint16, b byte)
}

// Flash is the self-programming capability of the program memory.
// ErasePage and WritePage block until the self-programming unit reports
// completion (the SPM busy-poll lives in the implementation). Word
// addresses wider than 16 bits on large parts are likewise the
// implementation's concern; the engine only ever presents a page index
// below Part.Pages().
type Flash interface {
	// FillLatch stages one 16-bit word into the temporary page buffer.
	FillLatch(word int, v uint16)
	ErasePage(page int)
	// WritePage commits the staged buffer into the given page.
	WritePage(page int)
	// EnableRWW re-enables reads from the application section after a
	// programming operation [ATmega328P|26.2.2].
	EnableRWW()
}

// ResetCause is the reset-source register content. A zero value means no
// hardware reset source was recorded, i.e. the bootloader was entered by a
// direct call from the running application.
type ResetCause uint8

const (
	ResetPowerOn ResetCause = 1 << iota
	ResetExternal
	ResetBrownOut
	ResetWatchdog
)

// System exposes the chip-level odds and ends the engine needs.
type System interface {
	// ResetCause reads and clears the reset-source register.
	ResetCause() ResetCause
}
