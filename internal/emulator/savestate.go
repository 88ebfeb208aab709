package emulator

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"gobound/internal/cpu"
)

const saveStateVersion = 1

// SaveState is a serializable snapshot of the CPU registers and IME/halt
// state, WRAM, HRAM, IF/IE, cartridge RAM, the display controller's
// VRAM/OAM/register file, the sound register file, and the master clock's
// cycle count. It does not capture the timer registers, the cartridge's
// bank selection or RTC, joypad state, or the display controller's
// position within the current line, and host-only fields such as the
// frame-limiting clock or the logger are excluded.
type SaveState struct {
	Version uint16

	Registers cpu.Registers
	IME       bool
	Halted    bool
	CPUCycles uint64

	WRAM [0x2000]uint8
	HRAM [0x7F]uint8
	IF   uint8
	IE   uint8

	CartRAM []uint8

	PPU PPUState
	APU APUState

	ClockCycle uint64
}

// PPUState captures the display controller's VRAM, OAM, and register file.
type PPUState struct {
	VRAM                          [0x2000]uint8
	OAM                           [0xA0]uint8
	LCDC, STAT, SCY, SCX, LY, LYC uint8
	BGP, OBP0, OBP1, WY, WX       uint8
}

// APUState is intentionally coarse: on load, registers are replayed
// through Write8 rather than the channels' internal timer/envelope state
// being restored field-for-field, since that state isn't exported outside
// the package. This reproduces audible output close to the original point
// but not sample-for-sample; see DESIGN.md.
type APUState struct {
	Registers [0x30]uint8
	WaveRAM   [0x10]uint8
}

// Encode serializes the console's current state to a byte slice.
func (c *Console) Encode() ([]byte, error) {
	st := SaveState{
		Version:   saveStateVersion,
		Registers: c.CPU.Registers,
		IME:       c.CPU.IME,
		Halted:    c.CPU.Halted,
		CPUCycles: c.CPU.Cycles,
		WRAM:      c.Bus.WRAM,
		HRAM:      c.Bus.HRAM,
		IF:        c.Bus.IF,
		IE:        c.Bus.IE,
		PPU: PPUState{
			VRAM: c.PPU.VRAM,
			OAM:  c.PPU.OAM,
			LCDC: c.PPU.LCDC, STAT: c.PPU.STAT,
			SCY: c.PPU.SCY, SCX: c.PPU.SCX,
			LY: c.PPU.LY, LYC: c.PPU.LYC,
			BGP: c.PPU.BGP, OBP0: c.PPU.OBP0, OBP1: c.PPU.OBP1,
			WY: c.PPU.WY, WX: c.PPU.WX,
		},
		ClockCycle: c.Clock.Cycle,
	}
	if c.Bus.Cartridge != nil {
		st.CartRAM = append([]uint8(nil), c.Bus.Cartridge.RAM()...)
	}
	for reg := uint16(0); reg < 0x30; reg++ {
		st.APU.Registers[reg] = c.APU.Read8(reg)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		return nil, fmt.Errorf("emulator: encode savestate: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode restores a previously encoded snapshot onto the console. The
// cartridge ROM itself must already be loaded (ROM bytes aren't part of
// the snapshot); only RAM, registers, and peripheral state are restored.
func (c *Console) Decode(data []uint8) error {
	var st SaveState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return fmt.Errorf("emulator: decode savestate: %w", err)
	}
	if st.Version != saveStateVersion {
		return fmt.Errorf("emulator: savestate version %d unsupported (want %d)", st.Version, saveStateVersion)
	}

	c.CPU.Registers = st.Registers
	c.CPU.IME = st.IME
	c.CPU.Halted = st.Halted
	c.CPU.Cycles = st.CPUCycles
	c.Bus.WRAM = st.WRAM
	c.Bus.HRAM = st.HRAM
	c.Bus.IF = st.IF
	c.Bus.IE = st.IE

	c.PPU.VRAM = st.PPU.VRAM
	c.PPU.OAM = st.PPU.OAM
	c.PPU.LCDC, c.PPU.STAT = st.PPU.LCDC, st.PPU.STAT
	c.PPU.SCY, c.PPU.SCX = st.PPU.SCY, st.PPU.SCX
	c.PPU.LY, c.PPU.LYC = st.PPU.LY, st.PPU.LYC
	c.PPU.BGP, c.PPU.OBP0, c.PPU.OBP1 = st.PPU.BGP, st.PPU.OBP0, st.PPU.OBP1
	c.PPU.WY, c.PPU.WX = st.PPU.WY, st.PPU.WX

	c.Clock.Cycle = st.ClockCycle

	if c.Bus.Cartridge != nil && len(st.CartRAM) > 0 {
		copy(c.Bus.Cartridge.RAM(), st.CartRAM)
	}
	for reg, v := range st.APU.Registers {
		c.APU.Write8(uint16(reg), v)
	}
	return nil
}
