package emulator

import (
	"strings"
	"testing"
	"time"

	"gobound/internal/apu"
)

// loopROM is a ROM-only image that NOPs from 0x0100 to 0x0150 and then
// spins forever on JR -2.
func loopROM() []uint8 {
	rom := make([]uint8, 0x8000)
	copy(rom[0x0134:], "LOOPTEST")
	rom[0x0150] = 0x18 // JR -2
	rom[0x0151] = 0xFE
	return rom
}

// TestOneSimulatedSecondOfNopLoop drives the clock for exactly one
// emulated second and checks the CPU has settled into the final two-byte
// loop while the display has produced a full second's worth of frames
// (the V-blank entry count doubles as the interrupt-rate check, since the
// interrupt is raised on every entry).
func TestOneSimulatedSecondOfNopLoop(t *testing.T) {
	c := New()
	if err := c.LoadROM(loopROM(), ""); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	c.Start()

	if _, err := c.Clock.StepFrame(4194304); err != nil {
		t.Fatalf("StepFrame: %v", err)
	}

	if c.CPU.PC < 0x0150 || c.CPU.PC > 0x0152 {
		t.Errorf("PC after one second: 0x%04X, want within the 0x0150 JR loop", c.CPU.PC)
	}
	if got := c.PPU.FrameCounter; got < 59 || got > 60 {
		t.Errorf("V-blank entries in one simulated second: %d, want 59 or 60", got)
	}
}

func TestGetCurrentFrameDefaultsToWhite(t *testing.T) {
	c := New()
	out := make([]uint8, FrameBytes)
	c.GetCurrentFrame(out)
	for i, v := range out {
		if v != 0xFF {
			t.Fatalf("default frame byte %d: got 0x%02X, want 0xFF", i, v)
		}
	}
}

func TestVideoFramesPublishWithIncreasingSequence(t *testing.T) {
	c := New()
	if err := c.LoadROM(loopROM(), ""); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	c.Start()

	var last uint64
	for i := 0; i < 3; i++ {
		if err := c.RunFrame(); err != nil {
			t.Fatalf("RunFrame %d: %v", i, err)
		}
		f := c.TakeVideoFrame()
		if f == nil {
			t.Fatalf("frame %d: nothing published", i)
		}
		if f.Seq <= last {
			t.Fatalf("frame sequence went backwards: %d after %d", f.Seq, last)
		}
		last = f.Seq
		c.ReturnVideoFrame(f)
	}
}

func TestGetAudioDataDeliversWholeFrames(t *testing.T) {
	c := New()
	if err := c.LoadROM(loopROM(), ""); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	c.Start()

	// Three video frames generate ~2200 stereo samples - enough to
	// complete at least one published 1024-sample audio frame.
	for i := 0; i < 3; i++ {
		if err := c.RunFrame(); err != nil {
			t.Fatalf("RunFrame: %v", err)
		}
	}

	out := make([]int16, 4*apu.FrameSamples)
	n := c.GetAudioData(out)
	if n == 0 {
		t.Fatal("no audio delivered after three frames")
	}
	if n%(2*apu.FrameSamples) != 0 {
		t.Errorf("audio delivered in a partial frame: %d values", n)
	}
}

func TestCoordinatorSurfacesInvalidOpcode(t *testing.T) {
	rom := loopROM()
	rom[0x0100] = 0xD3 // reserved byte: fatal immediately

	c := New()
	if err := c.LoadROM(rom, ""); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}

	coord := NewCoordinator(c)
	coord.Start()
	defer coord.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for coord.ExceptionMessage() == "" && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	msg := coord.ExceptionMessage()
	if !strings.Contains(msg, "invalid opcode") {
		t.Fatalf("exception message %q does not name the invalid opcode", msg)
	}
}

func TestPauseStopsEmulatedTime(t *testing.T) {
	c := New()
	if err := c.LoadROM(loopROM(), ""); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}

	coord := NewCoordinator(c)
	coord.Start()
	defer coord.Stop()

	// Let it run briefly, then pause and verify emulated time freezes.
	time.Sleep(100 * time.Millisecond)
	if !coord.TogglePause() {
		t.Fatal("TogglePause must report the paused state")
	}
	time.Sleep(50 * time.Millisecond) // let the in-flight frame finish

	frozen := coord.EmulatedSeconds()
	time.Sleep(300 * time.Millisecond)
	if got := coord.EmulatedSeconds(); got != frozen {
		t.Errorf("emulated time advanced while paused: %v -> %v", frozen, got)
	}

	if coord.TogglePause() {
		t.Fatal("second toggle must unpause")
	}
	deadline := time.Now().Add(2 * time.Second)
	for coord.EmulatedSeconds() <= frozen && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if coord.EmulatedSeconds() <= frozen {
		t.Error("emulated time did not resume after unpause")
	}
}
