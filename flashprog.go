package uartboot

// programmer drives the self-programming sequence one page at a time and
// owns the magic-marker lifecycle. The page buffer is filled while bytes
// are still streaming in (there is only one latch), then the target page
// is erased and the buffer committed; both operations run to completion
// inside the Flash implementation before control returns.
type programmer struct {
	flash  Flash
	nvm    NVM
	marker MarkerConfig
}

// erasedCell is the NVM content after an erase.
const erasedCell = 0xFF

func (p *programmer) stageWord(word int, v uint16) {
	p.flash.FillLatch(word, v)
}

// commit erases the target page, writes the staged buffer and re-enables
// application-section reads. [AVR109]: the temporary buffer survives the
// erase, so staging before erasing is safe.
func (p *programmer) commit(page int) {
	p.flash.ErasePage(page)
	p.flash.WritePage(page)
	p.flash.EnableRWW()
}

// clearMarker erases the magic cell. Done at the first page write of a
// session, so a session interrupted by power loss leaves the device
// forced into the bootloader on the next reset.
func (p *programmer) clearMarker() {
	if p.marker.Enable {
		p.nvm.Write(p.marker.Addr, erasedCell)
	}
}

// restoreMarker rewrites the sentinel at a successful exit, if configured
// to do so.
func (p *programmer) restoreMarker() {
	if p.marker.Enable && p.marker.RestoreOnExit {
		p.nvm.Write(p.marker.Addr, p.marker.Sentinel)
	}
}

// markerForcesEntry reports whether the persisted cell differs from the
// sentinel. The erased state left by an interrupted session counts as
// different, which is the whole point.
func (p *programmer) markerForcesEntry() bool {
	return p.marker.Enable && p.nvm.Read(p.marker.Addr) != p.marker.Sentinel
}
