package debug

import (
	"fmt"
	"os"
	"sync"

	"gobound/internal/cpu"
)

// CycleLogger writes one line per retired CPU instruction to a file: PC,
// opcode, every register, flags, and the T-cycle count the instruction
// took. It implements cpu.Tracer, so wiring it is a single
// `console.CPU.Tracer = logger` assignment.
type CycleLogger struct {
	file      *os.File
	maxSteps  uint64
	startStep uint64
	stepCount uint64
	enabled   bool
	mu        sync.Mutex
}

// NewCycleLogger creates a logger writing to filename. maxSteps caps how
// many instructions are logged (0 = unlimited); startStep skips that many
// instructions before logging begins.
func NewCycleLogger(filename string, maxSteps, startStep uint64) (*CycleLogger, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("debug: create cycle log: %w", err)
	}

	l := &CycleLogger{file: file, maxSteps: maxSteps, startStep: startStep, enabled: true}
	fmt.Fprintln(file, "Instruction trace")
	fmt.Fprintln(file, "=================")
	fmt.Fprintln(file, "PC     | OP | AF    BC    DE    HL    SP    | flags (ZNHC) | cycles")
	return l, nil
}

// TraceStep implements cpu.Tracer.
func (l *CycleLogger) TraceStep(pc uint16, opcode uint8, r cpu.Registers, cycles int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}
	l.stepCount++
	if l.stepCount <= l.startStep {
		return
	}
	if l.maxSteps > 0 && l.stepCount-l.startStep > l.maxSteps {
		l.enabled = false
		return
	}

	f := r.F
	fmt.Fprintf(l.file, "%04X | %02X | AF:%04X BC:%04X DE:%04X HL:%04X SP:%04X | Z:%d N:%d H:%d C:%d | %d\n",
		pc, opcode, r.AF(), r.BC(), r.DE(), r.HL(), r.SP,
		boolBit(f&cpu.FlagZ != 0), boolBit(f&cpu.FlagN != 0), boolBit(f&cpu.FlagH != 0), boolBit(f&cpu.FlagC != 0),
		cycles)
}

func boolBit(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SetEnabled enables or disables logging without closing the file.
func (l *CycleLogger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// Close flushes and closes the underlying file.
func (l *CycleLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	fmt.Fprintf(l.file, "\nlogged %d instructions\n", l.stepCount-l.startStep)
	err := l.file.Close()
	l.file = nil
	return err
}
