// Package clock coordinates every subsystem against the guest's single
// 4.194304 MHz T-cycle clock: the CPU interpreter drives the pace (it
// reports how many cycles its last instruction took), and everything
// else - PPU, APU, timer - catches up by that many cycles every step.
package clock

import "fmt"

// CPUStepFn executes exactly one CPU instruction (or interrupt dispatch,
// or halted idle slot) and reports how many T-cycles it took.
type CPUStepFn func() (int, error)

// CyclesStepFn advances a cycle-driven peripheral by the given number of
// T-cycles.
type CyclesStepFn func(cycles int)

// MasterClock is the single driver loop tying the CPU's instruction pace
// to every other cycle-accurate peripheral.
type MasterClock struct {
	Cycle uint64

	CPUStep   CPUStepFn
	PPUStep   CyclesStepFn
	APUStep   CyclesStepFn
	TimerStep CyclesStepFn
}

// NewMasterClock creates a scheduler with no peripherals wired; set the
// Step fields (or use the Wire helper) before calling Step.
func NewMasterClock() *MasterClock {
	return &MasterClock{}
}

// Wire attaches the peripheral step functions in one call.
func (c *MasterClock) Wire(cpuStep CPUStepFn, ppuStep, apuStep, timerStep CyclesStepFn) {
	c.CPUStep = cpuStep
	c.PPUStep = ppuStep
	c.APUStep = apuStep
	c.TimerStep = timerStep
}

// Step retires one CPU instruction and advances every other peripheral by
// the same number of T-cycles, returning that count.
func (c *MasterClock) Step() (int, error) {
	if c.CPUStep == nil {
		return 0, fmt.Errorf("clock: no CPU step function wired")
	}

	cycles, err := c.CPUStep()
	if err != nil {
		return 0, fmt.Errorf("clock: CPU step: %w", err)
	}

	if c.TimerStep != nil {
		c.TimerStep(cycles)
	}
	if c.PPUStep != nil {
		c.PPUStep(cycles)
	}
	if c.APUStep != nil {
		c.APUStep(cycles)
	}

	c.Cycle += uint64(cycles)
	return cycles, nil
}

// StepFrame runs Step repeatedly until at least minCycles T-cycles have
// elapsed (a full GB frame is 70224 T-cycles), returning the cycle total
// actually consumed (instructions aren't divisible, so it can overshoot
// slightly).
func (c *MasterClock) StepFrame(minCycles int) (int, error) {
	total := 0
	for total < minCycles {
		n, err := c.Step()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (c *MasterClock) Reset() {
	c.Cycle = 0
}
