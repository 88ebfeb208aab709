// Package memory implements the guest's 16-bit address space: the fixed
// WRAM/HRAM regions, the echo-RAM mirror, I/O register dispatch, and the
// cartridge slot (ROM + bank controller + external RAM). VRAM and OAM live
// behind the display controller, reached through the same IOHandler
// dispatch as its register file.
package memory

import (
	"gobound/internal/debug"
)

// IOHandler is implemented by each memory-mapped peripheral (display,
// sound, timer, input). offset is relative to the
// peripheral's own register file, not an absolute bus address.
type IOHandler interface {
	Read8(offset uint16) uint8
	Write8(offset uint16, value uint8)
}

// Bus wires WRAM, HRAM, the cartridge slot, and the I/O peripherals into a
// single flat 0x0000-0xFFFF address space.
type Bus struct {
	WRAM [0x2000]uint8 // 0xC000-0xDFFF
	HRAM [0x7F]uint8   // 0xFF80-0xFFFE

	Cartridge *Cartridge

	PPU   IOHandler
	APU   IOHandler
	Timer IOHandler
	Input IOHandler

	// IF/IE live on the bus itself: they're a single byte each, shared by
	// every peripheral that raises an interrupt and by the CPU that reads
	// them every Step.
	IF uint8
	IE uint8

	// BootROMEnabled gates reads below 0x0100 to the boot ROM image while
	// set; cleared by a write to 0xFF50;
	BootROMEnabled bool
	BootROM        []uint8

	dmaReg uint8

	logger *debug.Logger
}

// NewBus creates a bus with no cartridge inserted; call LoadCartridge
// (or set Cartridge directly) before running the CPU against it.
func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) SetLogger(logger *debug.Logger) { b.logger = logger }

func (b *Bus) logMemory(format string, args ...interface{}) {
	if b.logger != nil && b.logger.IsComponentEnabled(debug.ComponentMemory) {
		b.logger.Logf(debug.ComponentMemory, debug.LogLevelTrace, format, args...)
	}
}

// Read8 dispatches a CPU-visible read across the full address space.
func (b *Bus) Read8(addr uint16) uint8 {
	switch {
	case addr < 0x0100 && b.BootROMEnabled && int(addr) < len(b.BootROM):
		return b.BootROM[addr]

	case addr < 0x8000:
		return b.cart().Read8(addr)

	case addr < 0xA000:
		if b.PPU != nil {
			return b.PPU.Read8(addr - 0x8000)
		}
		return 0xFF

	case addr < 0xC000:
		return b.cart().Read8(addr)

	case addr < 0xE000:
		return b.WRAM[addr-0xC000]

	case addr < 0xFE00: // echo RAM mirrors 0xC000-0xDDFF
		return b.WRAM[addr-0xE000]

	case addr < 0xFEA0:
		if b.PPU != nil {
			return b.PPU.Read8(addr - 0xFE00 + 0x3000)
		}
		return 0xFF

	case addr < 0xFF00: // unusable, reads as 0 on DMG
		return 0x00

	case addr < 0xFF80:
		return b.readIO(addr)

	case addr < 0xFFFF:
		return b.HRAM[addr-0xFF80]

	default: // 0xFFFF
		return b.IE
	}
}

// Write8 dispatches a CPU-visible write across the full address space.
func (b *Bus) Write8(addr uint16, value uint8) {
	switch {
	case addr < 0x8000:
		b.cart().Write8(addr, value)

	case addr < 0xA000:
		if b.PPU != nil {
			b.PPU.Write8(addr-0x8000, value)
		}

	case addr < 0xC000:
		b.cart().Write8(addr, value)

	case addr < 0xE000:
		b.WRAM[addr-0xC000] = value

	case addr < 0xFE00:
		b.WRAM[addr-0xE000] = value

	case addr < 0xFEA0:
		if b.PPU != nil {
			b.PPU.Write8(addr-0xFE00+0x3000, value)
		}

	case addr < 0xFF00:
		// unusable

	case addr < 0xFF80:
		b.writeIO(addr, value)

	case addr < 0xFFFF:
		b.HRAM[addr-0xFF80] = value

	default:
		b.IE = value
	}
}

func (b *Bus) Read16(addr uint16) uint16 {
	return uint16(b.Read8(addr)) | uint16(b.Read8(addr+1))<<8
}

func (b *Bus) Write16(addr uint16, value uint16) {
	b.Write8(addr, uint8(value))
	b.Write8(addr+1, uint8(value>>8))
}

func (b *Bus) cart() *Cartridge {
	if b.Cartridge == nil {
		return emptyCartridge
	}
	return b.Cartridge
}

// readIO routes the 0xFF00-0xFF7F register window to IF, the boot ROM
// disable latch, the OAM DMA register, and the four owning peripherals
// (input, timer, sound, display).
func (b *Bus) readIO(addr uint16) uint8 {
	switch addr {
	case 0xFF00:
		if b.Input != nil {
			return b.Input.Read8(0)
		}
		return 0xFF
	case 0xFF0F:
		return b.IF | 0xE0 // top 3 bits always read as 1
	case 0xFF50:
		if b.BootROMEnabled {
			return 0x00
		}
		return 0x01
	case 0xFF46:
		return b.dmaReg
	}

	switch {
	case addr >= 0xFF04 && addr <= 0xFF07:
		if b.Timer != nil {
			return b.Timer.Read8(addr - 0xFF04)
		}
	case addr >= 0xFF10 && addr <= 0xFF3F:
		if b.APU != nil {
			return b.APU.Read8(addr - 0xFF10)
		}
	case addr >= 0xFF40 && addr <= 0xFF4B:
		if b.PPU != nil {
			return b.PPU.Read8(addr - 0xFF40 + 0x2000) // see writeIO comment
		}
	}
	b.logMemory("unmapped I/O read at 0x%04X", addr)
	return 0xFF
}

func (b *Bus) writeIO(addr uint16, value uint8) {
	switch addr {
	case 0xFF00:
		if b.Input != nil {
			b.Input.Write8(0, value)
		}
		return
	case 0xFF0F:
		b.IF = value & 0x1F
		return
	case 0xFF50:
		if value != 0 {
			b.BootROMEnabled = false
		}
		return
	case 0xFF46:
		b.runOAMDMA(value)
		return
	}

	switch {
	case addr >= 0xFF04 && addr <= 0xFF07:
		if b.Timer != nil {
			b.Timer.Write8(addr-0xFF04, value)
		}
		return
	case addr >= 0xFF10 && addr <= 0xFF3F:
		if b.APU != nil {
			b.APU.Write8(addr-0xFF10, value)
		}
		return
	case addr >= 0xFF40 && addr <= 0xFF4B:
		// The PPU's own register file also holds VRAM/OAM behind the
		// 0x8000/0xFE00 windows handled above, so its LCDC..WX window is
		// offset by 0x2000 within the handler's own addressing to keep
		// the two windows from colliding.
		if b.PPU != nil {
			b.PPU.Write8(addr-0xFF40+0x2000, value)
		}
		return
	}
	b.logMemory("unmapped I/O write at 0x%04X = 0x%02X", addr, value)
}

// runOAMDMA copies 160 bytes from value*0x100 into OAM. Real hardware
// spreads this over 160 M-cycles and blocks CPU access to everything but
// HRAM while it runs; we apply it instantly, which is accurate for any ROM
// that waits out the transfer (as the DMA routine in every boot ROM does)
// before touching OAM or running code outside HRAM.
func (b *Bus) runOAMDMA(value uint8) {
	b.dmaReg = value
	src := uint16(value) << 8
	if b.PPU == nil {
		return
	}
	for i := uint16(0); i < 0xA0; i++ {
		b.PPU.Write8(0x3000+i, b.Read8(src+i))
	}
}

// RaiseInterrupt sets one bit in IF. bit is one of the cpu.IntXxx masks.
func (b *Bus) RaiseInterrupt(bit uint8) {
	b.IF |= bit
}

// SetInputHandler, SetPPUHandler, SetAPUHandler, SetTimerHandler wire the
// peripherals into the bus's I/O dispatch after construction, since the
// peripherals themselves are typically constructed after the bus (several
// take the bus, or each other, as constructor arguments).
func (b *Bus) SetPPUHandler(h IOHandler)   { b.PPU = h }
func (b *Bus) SetAPUHandler(h IOHandler)   { b.APU = h }
func (b *Bus) SetTimerHandler(h IOHandler) { b.Timer = h }
func (b *Bus) SetInputHandler(h IOHandler) { b.Input = h }
