package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIO is a minimal IOHandler used to observe what the bus routes to it.
type fakeIO struct {
	reads  map[uint16]uint8
	writes map[uint16]uint8
}

func newFakeIO() *fakeIO {
	return &fakeIO{reads: map[uint16]uint8{}, writes: map[uint16]uint8{}}
}

func (f *fakeIO) Read8(offset uint16) uint8 { return f.reads[offset] }
func (f *fakeIO) Write8(offset uint16, v uint8) {
	f.writes[offset] = v
}

// TestPlainRAMWriteReadIdentity exhaustively checks that write-then-read
// is the identity over WRAM and HRAM for every value.
func TestPlainRAMWriteReadIdentity(t *testing.T) {
	b := NewBus()
	regions := [][2]uint32{
		{0xC000, 0xE000},
		{0xFF80, 0xFFFF},
	}
	for _, r := range regions {
		for a := r[0]; a < r[1]; a++ {
			for v := 0; v < 256; v++ {
				b.Write8(uint16(a), uint8(v))
				if got := b.Read8(uint16(a)); got != uint8(v) {
					t.Fatalf("read after write at 0x%04X: got 0x%02X, want 0x%02X", a, got, v)
				}
			}
		}
	}
}

// TestEchoMirrorsEntireRange checks read equivalence across the whole
// 0xE000-0xFDFF mirror, not just a spot address.
func TestEchoMirrorsEntireRange(t *testing.T) {
	b := NewBus()
	for a := uint32(0xC000); a < 0xDE00; a++ {
		b.Write8(uint16(a), uint8(a^(a>>8)))
	}
	for a := uint32(0xE000); a < 0xFE00; a++ {
		if b.Read8(uint16(a)) != b.Read8(uint16(a-0x2000)) {
			t.Fatalf("echo read at 0x%04X diverges from 0x%04X", a, a-0x2000)
		}
	}
}

func TestWRAMEchoMirror(t *testing.T) {
	b := NewBus()
	b.Write8(0xC010, 0x55)
	assert.Equal(t, uint8(0x55), b.Read8(0xE010), "echo RAM must mirror WRAM")

	b.Write8(0xE020, 0x66)
	assert.Equal(t, uint8(0x66), b.Read8(0xC020))
}

func TestIFTopBitsReadAsSet(t *testing.T) {
	b := NewBus()
	b.Write8(0xFF0F, 0x01)
	assert.Equal(t, uint8(0xE1), b.Read8(0xFF0F))
}

func TestOAMDMACopiesFromSourceIntoPPUWindow(t *testing.T) {
	b := NewBus()
	ppu := newFakeIO()
	b.SetPPUHandler(ppu)

	for i := uint16(0); i < 0xA0; i++ {
		b.WRAM[i] = uint8(i + 1)
	}
	b.Write8(0xFF46, 0xC0) // source = 0xC000

	for i := uint16(0); i < 0xA0; i++ {
		assert.Equal(t, uint8(i+1), ppu.writes[0x3000+i])
	}
}

func TestTimerAndAPURegisterRangesRouteToHandlers(t *testing.T) {
	b := NewBus()
	timer := newFakeIO()
	apu := newFakeIO()
	b.SetTimerHandler(timer)
	b.SetAPUHandler(apu)

	b.Write8(0xFF05, 0x10) // TIMA
	assert.Equal(t, uint8(0x10), timer.writes[0x01])

	b.Write8(0xFF11, 0x80) // NR11
	assert.Equal(t, uint8(0x80), apu.writes[0x01])
}

func TestBootROMDisableLatch(t *testing.T) {
	b := NewBus()
	b.BootROMEnabled = true
	b.BootROM = make([]uint8, 0x100)
	b.BootROM[0] = 0xAA
	assert.Equal(t, uint8(0xAA), b.Read8(0x0000))

	b.Write8(0xFF50, 0x01)
	assert.False(t, b.BootROMEnabled)
}

func TestCartLoadedThroughBusAccess(t *testing.T) {
	data := romImage(0x00, 0x00, 2)
	cart, err := LoadCartridge(data)
	require.NoError(t, err)

	b := NewBus()
	b.Cartridge = cart
	assert.Equal(t, cart.rom[0], b.Read8(0x0000))
}
