package emulator

import (
	"gobound/internal/ppu"
)

// FrameBytes is the byte size of one published video frame: 160x144
// pixels, 4 bytes (RGBA) each.
const FrameBytes = ppu.ScreenWidth * ppu.ScreenHeight * 4

// VideoFrame is one finished 160x144 RGBA image, stamped with a
// monotonically increasing sequence number. Frames travel from the
// emulation thread to the host through a latest-wins publishing slot: a
// host slower than the emulated refresh rate simply misses intermediate
// frames.
type VideoFrame struct {
	Seq    uint64
	Pixels [FrameBytes]uint8
}

// dmgShades maps the four 2-bit shade indexes to RGBA, lightest first,
// using the classic DMG green tint.
var dmgShades = [4][4]uint8{
	{0xE0, 0xF8, 0xD0, 0xFF},
	{0x88, 0xC0, 0x70, 0xFF},
	{0x34, 0x68, 0x56, 0xFF},
	{0x08, 0x18, 0x20, 0xFF},
}

// publishVideoFrame converts the PPU's finished shade buffer to RGBA and
// hands it to the host side. Runs on the emulation thread once per frame.
func (c *Console) publishVideoFrame() {
	buf := c.videoCur
	if buf == nil {
		buf = &VideoFrame{}
	}

	shades := c.PPU.OutputBuffer[:]
	for i, shade := range shades {
		copy(buf.Pixels[i*4:i*4+4], dmgShades[shade&0x03][:])
	}

	c.videoSeq++
	buf.Seq = c.videoSeq
	c.videoCur = c.videoFrames.Publish(buf)
}

// TakeVideoFrame claims the most recently published frame, or nil when no
// new frame has been finished since the last take. The caller owns the
// frame until ReturnVideoFrame. Called from the host thread.
func (c *Console) TakeVideoFrame() *VideoFrame { return c.videoFrames.Take() }

// ReturnVideoFrame gives a consumed frame back for reuse.
func (c *Console) ReturnVideoFrame(f *VideoFrame) { c.videoFrames.Return(f) }

// GetCurrentFrame copies the most recent finished frame into out as RGBA
// bytes, without blocking. Before the first frame is published it fills
// out with solid white, matching the blank panel of a console that hasn't
// drawn yet. out must hold FrameBytes bytes.
func (c *Console) GetCurrentFrame(out []uint8) {
	if f := c.videoFrames.Take(); f != nil {
		if c.lastFrame != nil {
			c.videoFrames.Return(c.lastFrame)
		}
		c.lastFrame = f
	}
	if c.lastFrame == nil {
		for i := range out[:min(len(out), FrameBytes)] {
			out[i] = 0xFF
		}
		return
	}
	copy(out, c.lastFrame.Pixels[:])
}
