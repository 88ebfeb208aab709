package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flatBus is a minimal 64KB Bus used to exercise the interpreter in
// isolation from the real memory map.
type flatBus struct {
	mem [0x10000]uint8
}

func (b *flatBus) Read8(addr uint16) uint8     { return b.mem[addr] }
func (b *flatBus) Write8(addr uint16, v uint8) { b.mem[addr] = v }

func newTestCPU(program ...uint8) (*CPU, *flatBus) {
	bus := &flatBus{}
	copy(bus.mem[0x0100:], program)
	c := New(bus)
	return c, bus
}

func TestLoadImmediateRegister(t *testing.T) {
	c, _ := newTestCPU(0x3E, 0x42) // LD A,0x42
	cycles, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, 8, cycles)
	assert.Equal(t, uint8(0x42), c.A)
}

func TestAddSetsZeroAndCarry(t *testing.T) {
	c, _ := newTestCPU(0x80) // ADD A,B
	c.A = 0xFF
	c.B = 0x01
	_, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, uint8(0), c.A)
	assert.True(t, c.F&FlagZ != 0)
	assert.True(t, c.F&FlagC != 0)
	assert.True(t, c.F&FlagH != 0)
	assert.False(t, c.F&FlagN != 0)
}

func TestJumpRelativeTaken(t *testing.T) {
	c, _ := newTestCPU(0x18, 0x02) // JR +2
	pcBefore := c.PC
	cycles, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, 12, cycles)
	assert.Equal(t, pcBefore+2+2, c.PC)
}

func TestInterruptDispatchPicksHighestPriority(t *testing.T) {
	c, bus := newTestCPU(0x00)
	c.IME = true
	bus.mem[0xFFFF] = IntVBlank | IntTimer
	bus.mem[0xFF0F] = IntVBlank | IntTimer

	cycles, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, 20, cycles)
	assert.Equal(t, uint16(0x0040), c.PC)
	assert.False(t, c.IME)
	assert.Equal(t, IntTimer, bus.mem[0xFF0F])
}

func TestHaltBugWhenInterruptAlreadyLatchedWithIMEOff(t *testing.T) {
	c, bus := newTestCPU(0x76, 0x3C) // HALT; INC A
	bus.mem[0xFFFF] = IntVBlank
	bus.mem[0xFF0F] = IntVBlank

	_, err := c.Step()
	require.NoError(t, err)
	assert.True(t, c.haltBug)
	assert.False(t, c.Halted)

	// The byte after HALT executes twice: PC fails to advance past it the
	// first time around.
	a := c.A
	_, err = c.Step()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0101), c.PC)
	_, err = c.Step()
	require.NoError(t, err)
	assert.Equal(t, a+2, c.A, "INC A after buggy HALT must run twice")
	assert.Equal(t, uint16(0x0102), c.PC)
}

func TestInvalidOpcodeReturnsError(t *testing.T) {
	c, _ := newTestCPU(0xD3) // reserved
	_, err := c.Step()
	require.Error(t, err)
	var invalidErr *InvalidOpcodeError
	require.ErrorAs(t, err, &invalidErr)
	assert.Equal(t, uint8(0xD3), invalidErr.Opcode)
}

func TestEIDelaysEnableByOneInstruction(t *testing.T) {
	c, _ := newTestCPU(0xFB, 0x00, 0x00) // EI, NOP, NOP
	_, err := c.Step()                   // executes EI
	require.NoError(t, err)
	assert.False(t, c.IME)

	_, err = c.Step() // executes the instruction right after EI
	require.NoError(t, err)
	assert.False(t, c.IME, "interrupts must still be disabled for the instruction immediately after EI")

	_, err = c.Step() // by now the delayed enable has taken effect
	require.NoError(t, err)
	assert.True(t, c.IME)
}
