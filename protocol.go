package uartboot

// Wire protocol (multi-byte fields little-endian):
//
//	request                                        reply
//	'B' 'L' 'S' 'T'                                "blst" + descriptor (18 bytes)
//	'B' 'L' 'P' 'G' idx16 payload crc              "blpg" + idx16, or "bler"
//	'B' 'L' 'X' 'T'                                "blxt"
//
// The descriptor is page-size-in-words (1), page count (2), hardware id
// (15, space padded). The payload CRC is the running CRC8 accumulator
// transmitted after page-size*2 payload bytes.

// SessionFlags is the non-exclusive session state. Ready/Flashing are
// orthogonal to ForcedEntry; none of them is a linear state machine.
type SessionFlags uint8

const (
	// FlagEntered: the bootloader is active.
	FlagEntered SessionFlags = 1 << iota
	// FlagReady: a start-session command has been accepted.
	FlagReady
	// FlagFlashing: at least one page was written since Ready.
	FlagFlashing
	// FlagForcedEntry: entry came from an explicit forced condition.
	FlagForcedEntry
)

func (f *SessionFlags) set(flag SessionFlags) { *f |= flag }

// Has reports whether flag is set.
func (f SessionFlags) Has(flag SessionFlags) bool { return f&flag != 0 }

const (
	marker0 = 'B'
	marker1 = 'L'

	selStart   = 'S'
	selProgram = 'P'
	selExit    = 'X'

	tailStart   = 'T'
	tailProgram = 'G'
	tailExit    = 'T'
)

var (
	replyStart = [4]byte{'b', 'l', 's', 't'}
	replyProg  = [4]byte{'b', 'l', 'p', 'g'}
	replyExit  = [4]byte{'b', 'l', 'x', 't'}
	replyError = [4]byte{'b', 'l', 'e', 'r'}
)

const (
	hwIDLen       = 15
	descriptorLen = 3 + hwIDLen
)

type command uint8

const (
	cmdNone command = iota
	cmdStartSession
	cmdProgramPage
	cmdExit
)

// serve is the session loop: scan for commands and dispatch until the
// host exits or the entry window expires.
func (b *Bootloader) serve() ExitReason {
	for {
		cmd, ok := b.nextCommand()
		if !ok {
			return ReasonConnectTimeout
		}
		switch cmd {
		case cmdStartSession:
			b.handleStart()
		case cmdProgramPage:
			if !b.handleProgram() {
				return ReasonConnectTimeout
			}
		case cmdExit:
			b.handleExit()
			return ReasonExitCommand
		}
	}
}

// nextCommand scans the stream byte by byte for the two-byte marker and a
// command pair. Any mismatch restarts the scan, with the offending byte
// re-examined as a possible first marker byte, so a corrupted byte cannot
// desynchronize the parser for more than one frame. Each byte that
// matches its expected position counts as valid traffic and permanently
// disarms the connect timeout.
func (b *Bootloader) nextCommand() (command, bool) {
	state := 0
	var sel byte
	for {
		c, ok := b.tr.readByte()
		if !ok {
			return cmdNone, false
		}
		switch state {
		case 0:
			if c == marker0 {
				b.disarmTimeout()
				state = 1
			}
		case 1:
			switch c {
			case marker1:
				b.disarmTimeout()
				state = 2
			case marker0:
				state = 1
			default:
				state = 0
			}
		case 2:
			switch c {
			case selStart, selProgram, selExit:
				b.disarmTimeout()
				sel = c
				state = 3
			case marker0:
				state = 1
			default:
				state = 0
			}
		case 3:
			var want byte
			var cmd command
			switch sel {
			case selStart:
				want, cmd = tailStart, cmdStartSession
			case selProgram:
				want, cmd = tailProgram, cmdProgramPage
			default:
				want, cmd = tailExit, cmdExit
			}
			if c == want {
				b.disarmTimeout()
				return cmd, true
			}
			if c == marker0 {
				state = 1
			} else {
				state = 0
			}
		}
	}
}

// descriptor is the immutable session self-description returned on start.
func (b *Bootloader) descriptor() [descriptorLen]byte {
	var d [descriptorLen]byte
	d[0] = byte(b.cfg.Part.PageWords)
	pages := b.cfg.Part.Pages()
	d[1] = byte(pages)
	d[2] = byte(pages >> 8)
	id := b.cfg.HWID
	if len(id) > hwIDLen {
		id = id[:hwIDLen]
	}
	copy(d[3:], id)
	for i := 3 + len(id); i < descriptorLen; i++ {
		d[i] = ' '
	}
	return d
}

// handleStart accepts (or re-accepts) a session. Re-issuing start is
// always legal and yields the identical reply.
func (b *Bootloader) handleStart() {
	// A set Flashing flag here means a previous start's programming
	// left write access to the region pending; reassert it first.
	if b.flags.Has(FlagFlashing) {
		b.dev.Flash.EnableRWW()
	}
	b.flags.set(FlagReady)
	b.tr.write(replyStart[:])
	d := b.descriptor()
	b.tr.write(d[:])
	b.logf("session ready: %d words/page, %d pages", b.cfg.Part.PageWords, b.cfg.Part.Pages())
}

// handleProgram reads one program-page frame and commits it if it is
// acceptable. The false return only happens when a blocking read was
// aborted, which ends the session loop.
func (b *Bootloader) handleProgram() bool {
	idxLo, ok := b.tr.readByte()
	if !ok {
		return false
	}
	idxHi, ok := b.tr.readByte()
	if !ok {
		return false
	}
	page := int(idxLo) | int(idxHi)<<8
	words := b.cfg.Part.PageWords

	if !b.flags.Has(FlagReady) || page >= b.cfg.Part.Pages() {
		// Discard the frame, deliberately two bytes short of the
		// payload length: if a byte was lost upstream the scanner
		// realigns by the time the next marker is due. Known resync
		// heuristic, preserved as-is.
		for i := 0; i < words*2-2; i++ {
			if _, ok := b.tr.readByte(); !ok {
				return false
			}
		}
		b.tr.write(replyError[:])
		return true
	}

	crc := byte(CRC8Init)
	b.tr.takeStatus()
	for w := 0; w < words; w++ {
		lo, ok := b.tr.readByte()
		if !ok {
			return false
		}
		hi, ok := b.tr.readByte()
		if !ok {
			return false
		}
		crc = UpdateCRC8(crc, lo)
		crc = UpdateCRC8(crc, hi)
		// Stage as we go: there is only one page latch and no room
		// for a second buffer.
		b.prog.stageWord(w, uint16(lo)|uint16(hi)<<8)
	}
	tb, ok := b.tr.readByte()
	if !ok {
		return false
	}
	crc = UpdateCRC8(crc, tb)

	if st := b.tr.takeStatus(); st != 0 || crc != 0 {
		// A degraded payload and a checksum mismatch look the same to
		// the host; nothing reaches flash either way.
		b.tr.write(replyError[:])
		return true
	}

	if !b.flags.Has(FlagFlashing) {
		b.prog.clearMarker()
		b.flags.set(FlagFlashing)
	}
	b.prog.commit(page)
	b.pages++
	b.logf("page %d programmed", page)

	b.tr.write(replyProg[:])
	b.tr.writeByte(idxLo)
	b.tr.writeByte(idxHi)
	return true
}

// handleExit closes the session. Without any page written the existing
// application image is left untouched, marker included.
func (b *Bootloader) handleExit() {
	if b.flags.Has(FlagFlashing) {
		b.dev.Flash.EnableRWW()
		b.prog.restoreMarker()
	}
	b.tr.write(replyExit[:])
	// The acknowledgement must be fully on the line before the UART is
	// torn down.
	b.tr.drain()
}
