package memory

import (
	"fmt"
	"time"
)

// Cartridge owns ROM data, external RAM, and the bank controller state
// machine selected by the header's cartridge-type byte.
type Cartridge struct {
	rom      []uint8
	ram      []uint8
	ramDirty bool

	mbc        mbcKind
	hasBattery bool
	hasRTC     bool

	romBank    uint16
	ramBank    uint8
	ramEnabled bool

	// MBC1 banking-mode select: 0 = ROM banking (default), 1 = RAM banking.
	bankMode uint8

	rtc rtcState

	// fault latches the first invalid RAM access; the console checks it at
	// frame boundaries and aborts the run, since the bus read/write paths
	// themselves have no error channel.
	fault error

	title string
}

type mbcKind int

const (
	mbcNone mbcKind = iota
	mbcMBC1
	mbcMBC2
	mbcMBC3
	mbcMBC5
)

// emptyCartridge is returned by Bus.cart() when no cartridge is inserted,
// so Read8/Write8 on an empty bus never need a nil check.
var emptyCartridge = &Cartridge{rom: make([]uint8, 0x8000), mbc: mbcNone}

// LoadCartridge parses a raw ROM image's header (starting at 0x0100) and
// returns a Cartridge configured for whatever bank controller the
// cartridge-type byte (0x0147) selects.
func LoadCartridge(data []uint8) (*Cartridge, error) {
	if len(data) < 0x0150 {
		return nil, fmt.Errorf("cartridge: image too small (%d bytes): %w", len(data), ErrInvalidCartridge)
	}

	c := &Cartridge{rom: data, romBank: 1}

	titleEnd := 0x0144
	for i := 0x0134; i < titleEnd; i++ {
		if data[i] == 0 {
			titleEnd = i
			break
		}
	}
	c.title = string(data[0x0134:titleEnd])

	cartType := data[0x0147]
	var err error
	c.mbc, c.hasBattery, c.hasRTC, err = decodeCartType(cartType)
	if err != nil {
		return nil, err
	}

	ramSize, err := decodeRAMSize(data[0x0149])
	if err != nil {
		return nil, err
	}
	if c.mbc == mbcMBC2 {
		ramSize = 512 // MBC2's built-in 4-bit RAM, nibble-addressed
	}
	c.ram = make([]uint8, ramSize)

	return c, nil
}

func decodeCartType(b uint8) (kind mbcKind, battery bool, rtc bool, err error) {
	switch b {
	case 0x00:
		return mbcNone, false, false, nil
	case 0x01, 0x02:
		return mbcMBC1, false, false, nil
	case 0x03:
		return mbcMBC1, true, false, nil
	case 0x05:
		return mbcMBC2, false, false, nil
	case 0x06:
		return mbcMBC2, true, false, nil
	case 0x0F:
		return mbcMBC3, true, true, nil
	case 0x10:
		return mbcMBC3, true, true, nil
	case 0x11, 0x12:
		return mbcMBC3, false, false, nil
	case 0x13:
		return mbcMBC3, true, false, nil
	case 0x19, 0x1A:
		return mbcMBC5, false, false, nil
	case 0x1B:
		return mbcMBC5, true, false, nil
	case 0x1C, 0x1D:
		return mbcMBC5, false, false, nil
	case 0x1E:
		return mbcMBC5, true, false, nil
	default:
		return mbcNone, false, false, fmt.Errorf("cartridge: unsupported cartridge type 0x%02X: %w", b, ErrInvalidCartridge)
	}
}

func decodeRAMSize(b uint8) (int, error) {
	switch b {
	case 0x00:
		return 0, nil
	case 0x01:
		return 2 * 1024, nil
	case 0x02:
		return 8 * 1024, nil
	case 0x03:
		return 32 * 1024, nil
	case 0x04:
		return 128 * 1024, nil
	case 0x05:
		return 64 * 1024, nil
	default:
		return 0, fmt.Errorf("cartridge: unsupported RAM size byte 0x%02X: %w", b, ErrInvalidCartridge)
	}
}

func (c *Cartridge) Title() string    { return c.title }
func (c *Cartridge) HasBattery() bool { return c.hasBattery }

// RAM exposes the external RAM bytes for save-file persistence.
func (c *Cartridge) RAM() []uint8 { return c.ram }
func (c *Cartridge) Dirty() bool  { return c.ramDirty }
func (c *Cartridge) ClearDirty()  { c.ramDirty = false }

// HasRTC reports whether the cartridge carries an MBC3 real-time clock.
func (c *Cartridge) HasRTC() bool { return c.hasRTC }

// TickRTC advances the real-time clock by the wall-clock time elapsed
// since the last call, using rtc.epoch to track fractional seconds across
// calls so short, frequent RunFrame-driven ticks still accumulate
// correctly instead of truncating to zero every time.
func (c *Cartridge) TickRTC(now time.Time) {
	if !c.hasRTC {
		return
	}
	if c.rtc.epoch.IsZero() {
		c.rtc.epoch = now
		return
	}
	elapsed := now.Sub(c.rtc.epoch)
	seconds := int(elapsed / time.Second)
	if seconds <= 0 {
		return
	}
	c.rtc.Tick(seconds)
	c.rtc.epoch = c.rtc.epoch.Add(time.Duration(seconds) * time.Second)
}

// RTCBase returns the instant at which the RTC counters read zero - the
// anchor persisted alongside the battery RAM so a reloaded cartridge can
// rebuild the counters from wall-clock elapsed time.
func (c *Cartridge) RTCBase(now time.Time) time.Time {
	if c.rtc.epoch.IsZero() {
		c.rtc.epoch = now
	}
	return c.rtc.epoch.Add(-time.Duration(c.rtc.counterSeconds()) * time.Second)
}

// SetRTCBase rebuilds the RTC counters as the whole seconds elapsed from
// base to now, decomposed into days/hours/minutes/seconds, and marks the
// clock ticked up to now. Days past the 9-bit counter set the day-carry
// flag, exactly as they would have had the console been running.
func (c *Cartridge) SetRTCBase(base, now time.Time) {
	if !c.hasRTC {
		return
	}
	elapsed := int64(now.Sub(base) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	c.rtc.setCounterSeconds(elapsed)
	c.rtc.epoch = now
}

func (c *Cartridge) Read8(addr uint16) uint8 {
	switch {
	case addr < 0x4000:
		return c.romAt(0, addr)
	case addr < 0x8000:
		return c.romAt(c.effectiveROMBank(), addr-0x4000)
	case addr >= 0xA000 && addr < 0xC000:
		return c.readRAM(addr - 0xA000)
	}
	return 0xFF
}

func (c *Cartridge) Write8(addr uint16, value uint8) {
	if addr >= 0xA000 && addr < 0xC000 {
		c.writeRAM(addr-0xA000, value)
		return
	}
	switch c.mbc {
	case mbcMBC1:
		c.writeMBC1(addr, value)
	case mbcMBC2:
		c.writeMBC2(addr, value)
	case mbcMBC3:
		c.writeMBC3(addr, value)
	case mbcMBC5:
		c.writeMBC5(addr, value)
	}
}

func (c *Cartridge) romAt(bank uint16, offset uint16) uint8 {
	idx := int(bank)*0x4000 + int(offset)
	if idx < 0 || idx >= len(c.rom) {
		return 0xFF
	}
	return c.rom[idx]
}

// effectiveROMBank reduces the selected bank modulo the cartridge's bank
// count, matching how real controllers leave high bank bits unconnected
// on smaller ROMs.
func (c *Cartridge) effectiveROMBank() uint16 {
	bank := c.romBank
	if bank == 0 {
		bank = 1
	}
	if n := uint16(len(c.rom) / 0x4000); n > 0 {
		bank %= n
	}
	return bank
}

// Fault returns the latched invalid-access error, if any.
func (c *Cartridge) Fault() error { return c.fault }

// latchFault records the first invalid RAM access; later ones keep the
// original, which names the instruction stream's first offender.
func (c *Cartridge) latchFault(op string, offset uint16) {
	if c.fault == nil {
		c.fault = fmt.Errorf("cartridge: %s at 0xA000+0x%04X while RAM disabled: %w", op, offset, ErrInvalidRAMAccess)
	}
}

func (c *Cartridge) readRAM(offset uint16) uint8 {
	if !c.ramEnabled {
		if c.mbc != mbcNone {
			c.latchFault("read", offset)
		}
		return 0xFF
	}
	if c.mbc == mbcMBC3 && c.ramBank >= 0x08 {
		return c.rtc.read(c.ramBank)
	}
	idx := int(c.ramBank)*0x2000 + int(offset)
	if c.mbc == mbcMBC2 {
		idx = int(offset) % 512
	}
	if idx < 0 || idx >= len(c.ram) {
		return 0xFF
	}
	if c.mbc == mbcMBC2 {
		return c.ram[idx] | 0xF0
	}
	return c.ram[idx]
}

func (c *Cartridge) writeRAM(offset uint16, value uint8) {
	if !c.ramEnabled {
		if c.mbc != mbcNone {
			c.latchFault("write", offset)
		}
		return
	}
	if c.mbc == mbcMBC3 && c.ramBank >= 0x08 {
		c.rtc.write(c.ramBank, value)
		c.ramDirty = true
		return
	}
	idx := int(c.ramBank)*0x2000 + int(offset)
	if c.mbc == mbcMBC2 {
		idx = int(offset) % 512
		value &= 0x0F
	}
	if idx < 0 || idx >= len(c.ram) {
		return
	}
	c.ram[idx] = value
	c.ramDirty = true
}

func (c *Cartridge) writeMBC1(addr uint16, value uint8) {
	switch {
	case addr < 0x2000:
		c.ramEnabled = value&0x0F == 0x0A
	case addr < 0x4000:
		bank := value & 0x1F
		if bank == 0 {
			bank = 1
		}
		c.romBank = c.romBank&0x60 | uint16(bank)
	case addr < 0x6000:
		bits := uint16(value&0x03) << 5
		if c.bankMode == 0 {
			c.romBank = c.romBank&0x1F | bits
		} else {
			c.ramBank = uint8(value & 0x03)
		}
	case addr < 0x8000:
		c.bankMode = value & 0x01
	}
}

func (c *Cartridge) writeMBC2(addr uint16, value uint8) {
	switch {
	case addr < 0x4000:
		if addr&0x0100 == 0 {
			c.ramEnabled = value&0x0F == 0x0A
		} else {
			bank := value & 0x0F
			if bank == 0 {
				bank = 1
			}
			c.romBank = uint16(bank)
		}
	}
}

func (c *Cartridge) writeMBC3(addr uint16, value uint8) {
	switch {
	case addr < 0x2000:
		c.ramEnabled = value&0x0F == 0x0A
	case addr < 0x4000:
		bank := value & 0x7F
		if bank == 0 {
			bank = 1
		}
		c.romBank = uint16(bank)
	case addr < 0x6000:
		c.ramBank = value
	case addr < 0x8000:
		c.rtc.latch(value)
	}
}

func (c *Cartridge) writeMBC5(addr uint16, value uint8) {
	switch {
	case addr < 0x2000:
		c.ramEnabled = value&0x0F == 0x0A
	case addr < 0x3000:
		c.romBank = c.romBank&0x100 | uint16(value)
	case addr < 0x4000:
		c.romBank = c.romBank&0xFF | uint16(value&0x01)<<8
	case addr < 0x6000:
		c.ramBank = value & 0x0F
	}
}

// rtcState implements the MBC3 real-time clock: seconds, minutes, hours,
// and a 9-bit day counter split across two registers, plus a halt flag and
// day-carry flag packed into the day-high byte. Selecting register 0x08
// through 0x0C via the RAM-bank-select write routes RAM reads/writes here
// instead of to the external RAM banks.
type rtcState struct {
	seconds, minutes, hours uint8
	dayLow                  uint8
	dayHigh                 uint8 // bit0 = day bit8, bit6 = halt, bit7 = day carry

	latched                                                           bool
	latchSeconds, latchMinutes, latchHours, latchDayLow, latchDayHigh uint8

	latchWritePending bool
	epoch             time.Time
}

func (r *rtcState) latch(value uint8) {
	if value == 0 {
		r.latchWritePending = true
		return
	}
	if value == 1 && r.latchWritePending {
		r.latchSeconds = r.seconds
		r.latchMinutes = r.minutes
		r.latchHours = r.hours
		r.latchDayLow = r.dayLow
		r.latchDayHigh = r.dayHigh
	}
	r.latchWritePending = false
}

func (r *rtcState) read(reg uint8) uint8 {
	switch reg {
	case 0x08:
		return r.latchSeconds
	case 0x09:
		return r.latchMinutes
	case 0x0A:
		return r.latchHours
	case 0x0B:
		return r.latchDayLow
	case 0x0C:
		return r.latchDayHigh
	default:
		return 0xFF
	}
}

func (r *rtcState) write(reg uint8, value uint8) {
	switch reg {
	case 0x08:
		r.seconds = value
	case 0x09:
		r.minutes = value
	case 0x0A:
		r.hours = value
	case 0x0B:
		r.dayLow = value
	case 0x0C:
		r.dayHigh = value & 0xC1
	}
}

// counterSeconds flattens the running counters to total seconds, with the
// day-carry flag contributing a full 512-day wrap.
func (r *rtcState) counterSeconds() int64 {
	days := int64(r.dayLow) | int64(r.dayHigh&0x01)<<8
	if r.dayHigh&0x80 != 0 {
		days += 0x200
	}
	return days*86400 + int64(r.hours)*3600 + int64(r.minutes)*60 + int64(r.seconds)
}

// setCounterSeconds is counterSeconds's inverse, preserving the halt bit.
func (r *rtcState) setCounterSeconds(total int64) {
	days := total / 86400
	r.seconds = uint8(total % 60)
	r.minutes = uint8(total / 60 % 60)
	r.hours = uint8(total / 3600 % 24)
	r.dayLow = uint8(days)
	r.dayHigh = r.dayHigh & 0x40
	r.dayHigh |= uint8(days>>8) & 0x01
	if days > 0x1FF {
		r.dayHigh |= 0x80
	}
}

// Tick advances the RTC by the given number of seconds, matching the
// counter's own rollover and day-carry rules. The halt bit (dayHigh bit6)
// freezes the counter entirely.
func (r *rtcState) Tick(seconds int) {
	if r.dayHigh&0x40 != 0 || seconds <= 0 {
		return
	}
	total := int(r.seconds) + seconds
	r.seconds = uint8(total % 60)
	carryMinutes := total / 60
	total = int(r.minutes) + carryMinutes
	r.minutes = uint8(total % 60)
	carryHours := total / 60
	total = int(r.hours) + carryHours
	r.hours = uint8(total % 24)
	carryDays := total / 24

	day := int(r.dayLow) | int(r.dayHigh&0x01)<<8
	day += carryDays
	if day > 0x1FF {
		day &= 0x1FF
		r.dayHigh |= 0x80
	}
	r.dayLow = uint8(day)
	r.dayHigh = r.dayHigh&0xFE | uint8(day>>8)&0x01
}
