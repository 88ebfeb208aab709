// Package apu implements the guest's 4-channel sound controller: two
// square-wave channels (one with a frequency sweep), a programmable
// wave channel, a noise channel, and the 512Hz frame sequencer that
// clocks their length counters, envelopes, and sweep unit.
package apu

import (
	"gobound/internal/debug"
	"gobound/internal/gbmath"
	"gobound/internal/sync2"
)

// hpfCharge is the per-sample DC-blocking capacitor's charge retention at
// the 44100Hz output rate (multiplier^(2^22/44100) for multiplier
// 0.999958, the measured DMG capacitor decay).
var hpfCharge = gbmath.FloatToQ8_8(0.996013)

// Master clock rate; sample generation divides this down to the host
// output rate in GenerateSample.
const masterClockHz = 4194304

// SampleRate is the fixed output rate audio frames are published at.
const SampleRate = 44100

// cyclesPerFrameSequencerStep is how many T-cycles elapse between frame
// sequencer ticks (512 Hz).
const cyclesPerFrameSequencerStep = masterClockHz / 512

// FrameSamples is the stereo sample count of one published audio frame.
// Every frame that reaches the consumer holds exactly this many L/R pairs.
const FrameSamples = 1024

// Frame is one fixed-size block of interleaved signed 16-bit stereo
// samples, stamped with a monotonically increasing sequence number. Frames
// travel from the emulation thread to the host audio thread through a
// latest-wins publishing slot and come back via ReturnFrame for reuse.
type Frame struct {
	Seq     uint64
	Samples [FrameSamples * 2]int16
}

// APU owns the four channels, the NR50/NR51/NR52 mixing registers, and
// the frame sequencer. It is wired onto the bus as an IOHandler over the
// 0xFF10-0xFF3F register window (offset 0 here is address 0xFF10).
type APU struct {
	enabled bool

	sq1   squareChannel
	sq2   squareChannel
	wave  waveChannel
	noise noiseChannel

	nr50 uint8 // master volume / Vin panning
	nr51 uint8 // channel panning

	frameSeqCounter int
	frameSeqStep    int

	sampleCounter int

	// outputEnabled gates sample generation entirely; the channels and
	// frame sequencer still run so register-visible state stays correct
	// when the host runs audio-less.
	outputEnabled bool

	frames   *sync2.Slot[Frame]
	cur      *Frame
	curPos   int
	frameSeq uint64

	// hpfL/hpfR are the left/right DC-blocking capacitor filter states
	// applied to every mixed sample before it is published.
	hpfL, hpfR gbmath.Q8_8

	logger *debug.Logger
}

func New() *APU {
	a := &APU{
		outputEnabled: true,
		frames:        sync2.NewSlot[Frame](),
		cur:           &Frame{},
	}
	a.sq1.hasSweep = true
	return a
}

func (a *APU) SetLogger(logger *debug.Logger) { a.logger = logger }

// SetOutputEnabled turns sample generation on or off without touching
// channel state.
func (a *APU) SetOutputEnabled(enabled bool) { a.outputEnabled = enabled }

// Step advances the APU by cycles T-cycles: runs the frame sequencer at
// its fixed 512Hz rate and appends output samples at SampleRate.
func (a *APU) Step(cycles int) {
	for i := 0; i < cycles; i++ {
		a.tick()
	}
}

func (a *APU) tick() {
	a.sq1.tickTimer()
	a.sq2.tickTimer()
	a.wave.tickTimer()
	a.noise.tickTimer()

	a.frameSeqCounter++
	if a.frameSeqCounter >= cyclesPerFrameSequencerStep {
		a.frameSeqCounter = 0
		a.stepFrameSequencer()
	}

	a.sampleCounter += SampleRate
	if a.sampleCounter >= masterClockHz {
		a.sampleCounter -= masterClockHz
		a.generateSample()
	}
}

// stepFrameSequencer clocks length counters on even steps, the sweep unit
// on steps 2 and 6, and envelopes on step 7 - the fixed 8-step sequence
// real hardware derives from DIV-APU.
func (a *APU) stepFrameSequencer() {
	if a.frameSeqStep%2 == 0 {
		a.sq1.clockLength()
		a.sq2.clockLength()
		a.wave.clockLength()
		a.noise.clockLength()
	}
	if a.frameSeqStep == 2 || a.frameSeqStep == 6 {
		a.sq1.clockSweep()
	}
	if a.frameSeqStep == 7 {
		a.sq1.clockEnvelope()
		a.sq2.clockEnvelope()
		a.noise.clockEnvelope()
	}
	a.frameSeqStep = (a.frameSeqStep + 1) % 8
}

func (a *APU) generateSample() {
	if !a.outputEnabled {
		return
	}
	if !a.enabled {
		a.pushSample(0, 0)
		return
	}

	s1 := a.sq1.output()
	s2 := a.sq2.output()
	w := a.wave.output()
	n := a.noise.output()

	var left, right float32
	if a.nr51&0x10 != 0 {
		left += s1
	}
	if a.nr51&0x20 != 0 {
		left += s2
	}
	if a.nr51&0x40 != 0 {
		left += w
	}
	if a.nr51&0x80 != 0 {
		left += n
	}
	if a.nr51&0x01 != 0 {
		right += s1
	}
	if a.nr51&0x02 != 0 {
		right += s2
	}
	if a.nr51&0x04 != 0 {
		right += w
	}
	if a.nr51&0x08 != 0 {
		right += n
	}

	leftVol := float32((a.nr50>>4)&0x07+1) / 8
	rightVol := float32(a.nr50&0x07+1) / 8

	out := a.highPass(&a.hpfL, (left/4)*leftVol)
	outR := a.highPass(&a.hpfR, (right/4)*rightVol)
	a.pushSample(out, outR)
}

// pushSample appends one stereo pair to the in-progress frame and, when
// the frame reaches FrameSamples pairs, publishes it and moves on to a
// recycled (or fresh) buffer.
func (a *APU) pushSample(left, right float32) {
	a.cur.Samples[a.curPos] = floatToPCM(left)
	a.cur.Samples[a.curPos+1] = floatToPCM(right)
	a.curPos += 2
	if a.curPos < len(a.cur.Samples) {
		return
	}

	a.frameSeq++
	a.cur.Seq = a.frameSeq
	next := a.frames.Publish(a.cur)
	if next == nil {
		next = &Frame{}
	}
	a.cur = next
	a.curPos = 0
}

func floatToPCM(v float32) int16 {
	switch {
	case v >= 1:
		return 32767
	case v <= -1:
		return -32768
	default:
		return int16(v * 32767)
	}
}

// TakeFrame claims the most recently completed audio frame, or nil when
// the emulation hasn't finished a new one. Called from the host audio
// thread.
func (a *APU) TakeFrame() *Frame { return a.frames.Take() }

// ReturnFrame gives a consumed frame back for reuse.
func (a *APU) ReturnFrame(f *Frame) { a.frames.Return(f) }

// highPass models the DMG's output DC-blocking capacitor: each channel's
// mixed output charges the capacitor toward silence, and what's returned
// is the input minus the capacitor's current charge.
func (a *APU) highPass(capacitor *gbmath.Q8_8, in float32) float32 {
	inQ := gbmath.FloatToQ8_8(float64(in))
	out := inQ - *capacitor
	*capacitor = inQ - out.Mul(hpfCharge)
	return float32(out.Float())
}

func (a *APU) Read8(offset uint16) uint8 {
	switch {
	case offset == 0x00:
		return a.sq1.readSweep()
	case offset == 0x01:
		return a.sq1.readDutyLength()
	case offset == 0x02:
		return a.sq1.readEnvelope()
	case offset == 0x04:
		return a.sq1.readControl()
	case offset == 0x06:
		return a.sq2.readDutyLength()
	case offset == 0x07:
		return a.sq2.readEnvelope()
	case offset == 0x09:
		return a.sq2.readControl()
	case offset == 0x0A:
		return a.wave.readDACEnable()
	case offset == 0x0C:
		return a.wave.readVolume()
	case offset == 0x0E:
		return a.wave.readControl()
	case offset == 0x10:
		return a.noise.readLength()
	case offset == 0x11:
		return a.noise.readEnvelope()
	case offset == 0x12:
		return a.noise.readPolynomial()
	case offset == 0x13:
		return a.noise.readControl()
	case offset == 0x14:
		return a.nr50
	case offset == 0x15:
		return a.nr51
	case offset == 0x16:
		return a.readNR52()
	case offset >= 0x20 && offset < 0x30:
		return a.wave.ram[offset-0x20]
	default:
		return 0xFF
	}
}

func (a *APU) Write8(offset uint16, value uint8) {
	if !a.enabled && offset != 0x16 && !(offset >= 0x20 && offset < 0x30) {
		return // writes to channel registers are ignored while powered off
	}
	switch {
	case offset == 0x00:
		a.sq1.writeSweep(value)
	case offset == 0x01:
		a.sq1.writeDutyLength(value)
	case offset == 0x02:
		a.sq1.writeEnvelope(value)
	case offset == 0x03:
		a.sq1.writeFreqLow(value)
	case offset == 0x04:
		a.sq1.writeControl(value)
	case offset == 0x06:
		a.sq2.writeDutyLength(value)
	case offset == 0x07:
		a.sq2.writeEnvelope(value)
	case offset == 0x08:
		a.sq2.writeFreqLow(value)
	case offset == 0x09:
		a.sq2.writeControl(value)
	case offset == 0x0A:
		a.wave.writeDACEnable(value)
	case offset == 0x0B:
		a.wave.writeLength(value)
	case offset == 0x0C:
		a.wave.writeVolume(value)
	case offset == 0x0D:
		a.wave.writeFreqLow(value)
	case offset == 0x0E:
		a.wave.writeControl(value)
	case offset == 0x10:
		a.noise.writeLength(value)
	case offset == 0x11:
		a.noise.writeEnvelope(value)
	case offset == 0x12:
		a.noise.writePolynomial(value)
	case offset == 0x13:
		a.noise.writeControl(value)
	case offset == 0x14:
		a.nr50 = value
	case offset == 0x15:
		a.nr51 = value
	case offset == 0x16:
		a.writeNR52(value)
	case offset >= 0x20 && offset < 0x30:
		a.wave.ram[offset-0x20] = value
	}
}

func (a *APU) readNR52() uint8 {
	v := uint8(0x70)
	if a.enabled {
		v |= 0x80
	}
	if a.sq1.active() {
		v |= 0x01
	}
	if a.sq2.active() {
		v |= 0x02
	}
	if a.wave.active() {
		v |= 0x04
	}
	if a.noise.active() {
		v |= 0x08
	}
	return v
}

func (a *APU) writeNR52(value uint8) {
	enable := value&0x80 != 0
	if !a.enabled && enable {
		// Powering on restarts the frame sequencer and sample clock from
		// phase zero.
		a.frameSeqCounter = 0
		a.frameSeqStep = 0
		a.sampleCounter = 0
	}
	if a.enabled && !enable {
		a.sq1 = squareChannel{hasSweep: true}
		a.sq2 = squareChannel{}
		a.wave.powerOff()
		a.noise = noiseChannel{}
		a.nr50, a.nr51 = 0, 0
	}
	a.enabled = enable
}
