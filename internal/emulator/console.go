// Package emulator wires the CPU, memory bus, display controller, sound
// controller, timer, and joypad into a single runnable console, and
// provides the timing coordinator that paces emulated frames to
// wall-clock time on a dedicated goroutine (see coordinator.go).
package emulator

import (
	"fmt"
	"time"

	"gobound/internal/apu"
	"gobound/internal/clock"
	"gobound/internal/cpu"
	"gobound/internal/debug"
	"gobound/internal/input"
	"gobound/internal/memory"
	"gobound/internal/ppu"
	"gobound/internal/save"
	"gobound/internal/sync2"
)

// CyclesPerFrame is the T-cycle count of one full 154-line frame
// (456 cycles/line * 154 lines).
const CyclesPerFrame = ppu.DotsPerScanline * ppu.TotalScanlines

// InputState is the host-facing snapshot of all eight buttons: 0xFF means
// pressed, 0x00 released, mirroring the raw key-state bytes the original
// console wrapper traffics in.
type InputState struct {
	Up, Down, Left, Right uint8
	A, B, Start, Select   uint8
}

// Console owns every component and the clock that drives them in lockstep.
// Everything behind RunFrame is owned by the interpreter goroutine; the
// host-facing surface (GetCurrentFrame, GetAudioData, SetInputState) only
// touches cross-thread state through the publishing slots and the input
// mutex.
type Console struct {
	CPU   *cpu.CPU
	Bus   *memory.Bus
	PPU   *ppu.PPU
	APU   *apu.APU
	Timer *clock.Timer
	Input *input.System
	Clock *clock.MasterClock

	Logger *debug.Logger
	Saves  *save.Manager

	Running bool

	videoEnabled bool

	videoFrames *sync2.Slot[VideoFrame]
	videoCur    *VideoFrame
	videoSeq    uint64
	lastFrame   *VideoFrame

	// audioCur/audioPos track the partially consumed audio frame between
	// GetAudioData calls. Host-thread only.
	audioCur *apu.Frame
	audioPos int
}

// New creates a fully wired, unstarted console with no cartridge inserted.
func New() *Console {
	logger := debug.NewLogger(10000)
	return NewWithLogger(logger)
}

func NewWithLogger(logger *debug.Logger) *Console {
	bus := memory.NewBus()
	bus.SetLogger(logger)

	p := ppu.New(bus)
	p.SetLogger(logger)
	bus.SetPPUHandler(p)

	a := apu.New()
	a.SetLogger(logger)
	bus.SetAPUHandler(a)

	t := clock.NewTimer(bus)
	bus.SetTimerHandler(t)

	in := input.NewSystem(bus)
	bus.SetInputHandler(in)

	c := cpu.New(bus)

	masterClock := clock.NewMasterClock()
	masterClock.Wire(
		c.Step,
		func(cycles int) { p.Step(cycles) },
		func(cycles int) { a.Step(cycles) },
		func(cycles int) { t.Step(cycles) },
	)

	return &Console{
		CPU:          c,
		Bus:          bus,
		PPU:          p,
		APU:          a,
		Timer:        t,
		Input:        in,
		Clock:        masterClock,
		Logger:       logger,
		videoEnabled: true,
		videoFrames:  sync2.NewSlot[VideoFrame](),
		videoCur:     &VideoFrame{},
	}
}

// Configure enables or disables the video and audio output paths. Either
// can be switched off for headless use; the underlying components keep
// running so register-visible behavior is unchanged.
func (c *Console) Configure(enableVideo, enableAudio bool) {
	c.videoEnabled = enableVideo
	c.APU.SetOutputEnabled(enableAudio)
}

// LoadROM parses and inserts a cartridge image, wiring a save manager over
// savePath if the cartridge has battery-backed RAM, and restoring RTC
// state from the companion clock file when the cartridge has a timer.
func (c *Console) LoadROM(data []uint8, savePath string) error {
	cart, err := memory.LoadCartridge(data)
	if err != nil {
		return fmt.Errorf("emulator: load ROM: %w", err)
	}
	c.Bus.Cartridge = cart
	c.CPU.Reset()
	c.Clock.Reset()
	c.applyPostBootIO()

	if cart.HasBattery() && savePath != "" {
		if err := save.Load(savePath, cart.RAM()); err != nil {
			return fmt.Errorf("emulator: load save file: %w", err)
		}
		if cart.HasRTC() {
			base, ok, err := save.LoadRTC(save.RTCPath(savePath))
			if err != nil {
				return fmt.Errorf("emulator: load RTC file: %w", err)
			}
			if ok {
				cart.SetRTCBase(base, time.Now())
			}
		}
		c.Saves = save.NewManager(savePath, cart, 2*time.Second)
		c.Saves.SetLogger(c.Logger)
		go c.Saves.Start()
	}
	return nil
}

// applyPostBootIO sets the I/O registers to the values the boot ROM leaves
// behind, so a cartridge started directly at 0x0100 sees the same machine
// state it would on hardware: LCD on, background palette set, sound
// powered with both output terminals open.
func (c *Console) applyPostBootIO() {
	c.Bus.Write8(0xFF40, 0x91) // LCDC: LCD on, BG on, tile data 0x8000
	c.Bus.Write8(0xFF47, 0xFC) // BGP
	c.Bus.Write8(0xFF48, 0xFF) // OBP0
	c.Bus.Write8(0xFF49, 0xFF) // OBP1
	c.Bus.Write8(0xFF26, 0xF0) // NR52: sound on (must precede channel writes)
	c.Bus.Write8(0xFF24, 0x77) // NR50
	c.Bus.Write8(0xFF25, 0xF3) // NR51
	c.Bus.Write8(0xFF00, 0x30) // P1: neither button group selected
}

// RunFrame advances the console by exactly one frame's worth of T-cycles
// (modulo the last instruction's overshoot) and publishes the finished
// video frame. Pacing to real time is the coordinator's job, not this
// function's.
func (c *Console) RunFrame() error {
	if !c.Running {
		return nil
	}

	c.PPU.FrameComplete = false
	if _, err := c.Clock.StepFrame(CyclesPerFrame); err != nil {
		return fmt.Errorf("emulator: frame step: %w", err)
	}

	if cart := c.Bus.Cartridge; cart != nil {
		if err := cart.Fault(); err != nil {
			return fmt.Errorf("emulator: %w", err)
		}
		cart.TickRTC(time.Now())
	}

	if c.videoEnabled {
		c.publishVideoFrame()
	}
	return nil
}

func (c *Console) Start() { c.Running = true }
func (c *Console) Stop()  { c.Running = false }

// Shutdown stops the console and flushes any pending battery-RAM save.
func (c *Console) Shutdown() error {
	c.Stop()
	if c.Saves != nil {
		return c.Saves.Stop()
	}
	return nil
}

// FrameBuffer returns the PPU's most recently completed frame as one
// shade index (0-3) per pixel, row-major, 160x144. Interpreter-thread
// only; hosts on the other side of the coordinator use GetCurrentFrame.
func (c *Console) FrameBuffer() []uint8 {
	return c.PPU.OutputBuffer[:]
}

// GetAudioData fills out with interleaved 16-bit stereo samples pulled
// from the published audio frames and returns how many values it wrote.
// Non-blocking: when the emulation hasn't produced enough yet, the
// shortfall is simply not written and the host pads or waits.
func (c *Console) GetAudioData(out []int16) int {
	n := 0
	for n < len(out) {
		if c.audioCur == nil {
			c.audioCur = c.APU.TakeFrame()
			c.audioPos = 0
			if c.audioCur == nil {
				break
			}
		}
		copied := copy(out[n:], c.audioCur.Samples[c.audioPos:])
		n += copied
		c.audioPos += copied
		if c.audioPos >= len(c.audioCur.Samples) {
			c.APU.ReturnFrame(c.audioCur)
			c.audioCur = nil
		}
	}
	return n
}

// SetInputState applies a full eight-button snapshot from the host.
// anyDown/anyUp are the host's edge hints; when neither is set the
// snapshot is unchanged and the call is a no-op.
func (c *Console) SetInputState(st InputState, anyDown, anyUp bool) {
	if !anyDown && !anyUp {
		return
	}
	c.Input.SetButton(input.GroupDirection, input.ButtonUp, st.Up != 0)
	c.Input.SetButton(input.GroupDirection, input.ButtonDown, st.Down != 0)
	c.Input.SetButton(input.GroupDirection, input.ButtonLeft, st.Left != 0)
	c.Input.SetButton(input.GroupDirection, input.ButtonRight, st.Right != 0)
	c.Input.SetButton(input.GroupAction, input.ButtonA, st.A != 0)
	c.Input.SetButton(input.GroupAction, input.ButtonB, st.B != 0)
	c.Input.SetButton(input.GroupAction, input.ButtonStart, st.Start != 0)
	c.Input.SetButton(input.GroupAction, input.ButtonSelect, st.Select != 0)
}

// SetButton forwards a single joypad edge to the input controller.
func (c *Console) SetButton(group uint8, bit uint8, pressed bool) {
	c.Input.SetButton(group, bit, pressed)
}
