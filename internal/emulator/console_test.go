package emulator

import "testing"

// minimalROM returns a 0x8000-byte (32 KiB) image with a valid-enough header for
// LoadCartridge: ROM-only, no RAM, no battery. CPU will just execute
// whatever zero bytes decode to (NOP) starting at 0x0100.
func minimalROM() []uint8 {
	rom := make([]uint8, 0x8000)
	copy(rom[0x0134:], "TESTROM")
	rom[0x0147] = 0x00 // ROM only
	rom[0x0149] = 0x00 // no RAM
	return rom
}

func TestLoadROMAndRunFrame(t *testing.T) {
	c := New()
	if err := c.LoadROM(minimalROM(), ""); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	c.Start()

	if err := c.RunFrame(); err != nil {
		t.Fatalf("RunFrame: %v", err)
	}

	if len(c.FrameBuffer()) != 160*144 {
		t.Fatalf("unexpected framebuffer size: %d", len(c.FrameBuffer()))
	}
}

func TestRunFrameNoOpWhenStopped(t *testing.T) {
	c := New()
	if err := c.LoadROM(minimalROM(), ""); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	before := c.Clock.Cycle
	if err := c.RunFrame(); err != nil {
		t.Fatalf("RunFrame: %v", err)
	}
	if c.Clock.Cycle != before {
		t.Error("expected no clock progress while console is stopped")
	}
}

func TestSaveStateRoundTrip(t *testing.T) {
	c := New()
	if err := c.LoadROM(minimalROM(), ""); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	c.Start()
	if err := c.RunFrame(); err != nil {
		t.Fatalf("RunFrame: %v", err)
	}

	data, err := c.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	c2 := New()
	if err := c2.LoadROM(minimalROM(), ""); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	if err := c2.Decode(data); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if c2.CPU.PC != c.CPU.PC {
		t.Errorf("PC after restore: got 0x%04X, want 0x%04X", c2.CPU.PC, c.CPU.PC)
	}
}
