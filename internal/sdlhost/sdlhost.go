// Package sdlhost is the SDL2-backed presentation layer: it owns the
// window, renderer, and audio device, feeds keyboard input to the
// console's joypad, and consumes the frames the emulation goroutine
// publishes while the timing coordinator paces it against the wall clock.
package sdlhost

import (
	"fmt"
	"image"
	"image/draw"
	"unsafe"

	"github.com/veandco/go-sdl2/sdl"
	xdraw "golang.org/x/image/draw"

	"gobound/internal/emulator"
	"gobound/internal/ppu"
)

// Options configures window size and audio behavior.
type Options struct {
	Title string
	Scale int
	Mute  bool
}

// Host owns every SDL resource and the console it drives.
type Host struct {
	console *emulator.Console
	opts    Options

	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture

	audioDevice sdl.AudioDeviceID
	audioBuf    []int16

	native  *image.RGBA // 160x144 RGBA as published by the console
	scaled  *image.RGBA // scaled up to window size before blit
	buttons emulator.InputState
	running bool
}

// keyMapping maps SDL2 keys to fields of the console input snapshot.
var keyMapping = map[sdl.Keycode]func(*emulator.InputState) *uint8{
	sdl.K_UP:     func(st *emulator.InputState) *uint8 { return &st.Up },
	sdl.K_DOWN:   func(st *emulator.InputState) *uint8 { return &st.Down },
	sdl.K_LEFT:   func(st *emulator.InputState) *uint8 { return &st.Left },
	sdl.K_RIGHT:  func(st *emulator.InputState) *uint8 { return &st.Right },
	sdl.K_z:      func(st *emulator.InputState) *uint8 { return &st.A },
	sdl.K_x:      func(st *emulator.InputState) *uint8 { return &st.B },
	sdl.K_RETURN: func(st *emulator.InputState) *uint8 { return &st.Start },
	sdl.K_RSHIFT: func(st *emulator.InputState) *uint8 { return &st.Select },
}

// New initializes SDL2 video and (unless muted) audio, and creates a
// window sized to ppu.ScreenWidth/Height scaled by opts.Scale.
func New(console *emulator.Console, opts Options) (*Host, error) {
	if opts.Scale < 1 {
		opts.Scale = 1
	}

	initFlags := uint32(sdl.INIT_VIDEO | sdl.INIT_EVENTS)
	if !opts.Mute {
		initFlags |= sdl.INIT_AUDIO
	}
	if err := sdl.Init(initFlags); err != nil {
		return nil, fmt.Errorf("sdlhost: init SDL: %w", err)
	}

	w := int32(ppu.ScreenWidth * opts.Scale)
	h := int32(ppu.ScreenHeight * opts.Scale)

	window, err := sdl.CreateWindow(opts.Title, sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED, w, h, sdl.WINDOW_SHOWN)
	if err != nil {
		sdl.Quit()
		return nil, fmt.Errorf("sdlhost: create window: %w", err)
	}

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		window.Destroy()
		sdl.Quit()
		return nil, fmt.Errorf("sdlhost: create renderer: %w", err)
	}

	texture, err := renderer.CreateTexture(sdl.PIXELFORMAT_RGBA8888, sdl.TEXTUREACCESS_STREAMING, w, h)
	if err != nil {
		renderer.Destroy()
		window.Destroy()
		sdl.Quit()
		return nil, fmt.Errorf("sdlhost: create texture: %w", err)
	}

	host := &Host{
		console:  console,
		opts:     opts,
		window:   window,
		renderer: renderer,
		texture:  texture,
		native:   image.NewRGBA(image.Rect(0, 0, ppu.ScreenWidth, ppu.ScreenHeight)),
		scaled:   image.NewRGBA(image.Rect(0, 0, int(w), int(h))),
		audioBuf: make([]int16, 2048),
	}

	console.Configure(true, !opts.Mute)

	if !opts.Mute {
		if err := host.initAudio(); err != nil {
			return nil, err
		}
	}

	return host, nil
}

func (h *Host) initAudio() error {
	spec := &sdl.AudioSpec{
		Freq:     44100,
		Format:   sdl.AUDIO_S16LSB,
		Channels: 2,
		Samples:  1024,
	}
	obtained := &sdl.AudioSpec{}
	dev, err := sdl.OpenAudioDevice("", false, spec, obtained, 0)
	if err != nil {
		return fmt.Errorf("sdlhost: open audio device: %w", err)
	}
	h.audioDevice = dev
	sdl.PauseAudioDevice(h.audioDevice, false)
	return nil
}

// Run starts the timing coordinator (which owns the emulation goroutine)
// and then loops on this thread at display rate: poll input, blit the
// latest published frame, top up the audio queue. Returns when the user
// closes the window, presses Escape, or the emulation dies.
func (h *Host) Run() error {
	coord := emulator.NewCoordinator(h.console)
	coord.Start()
	defer coord.Stop()

	h.running = true
	for h.running {
		h.pollEvents(coord)
		if !h.running {
			break
		}
		if msg := coord.ExceptionMessage(); msg != "" {
			return fmt.Errorf("sdlhost: emulation stopped: %s", msg)
		}
		h.renderFrame()
		if !h.opts.Mute {
			h.queueAudio()
		}
		sdl.Delay(8)
	}
	return nil
}

func (h *Host) pollEvents(coord *emulator.Coordinator) {
	for ev := sdl.PollEvent(); ev != nil; ev = sdl.PollEvent() {
		switch e := ev.(type) {
		case *sdl.QuitEvent:
			h.running = false
		case *sdl.KeyboardEvent:
			if e.Repeat != 0 {
				continue
			}
			down := e.Type == sdl.KEYDOWN
			switch e.Keysym.Sym {
			case sdl.K_ESCAPE:
				if down {
					h.running = false
				}
				continue
			case sdl.K_p:
				if down {
					coord.TogglePause()
				}
				continue
			case sdl.K_TAB:
				// hold Tab to fast-forward
				if down {
					coord.SetSpeedMultiplier(4.0)
				} else {
					coord.SetSpeedMultiplier(1.0)
				}
				continue
			}
			field, ok := keyMapping[e.Keysym.Sym]
			if !ok {
				continue
			}
			if down {
				*field(&h.buttons) = 0xFF
			} else {
				*field(&h.buttons) = 0x00
			}
			h.console.SetInputState(h.buttons, down, !down)
		}
	}
}

func (h *Host) renderFrame() {
	h.console.GetCurrentFrame(h.native.Pix)

	xdraw.NearestNeighbor.Scale(h.scaled, h.scaled.Bounds(), h.native, h.native.Bounds(), draw.Over, nil)

	h.texture.Update(nil, unsafe.Pointer(&h.scaled.Pix[0]), h.scaled.Stride)
	h.renderer.Clear()
	h.renderer.Copy(h.texture, nil, nil)
	h.renderer.Present()
}

// queueAudio pulls published 16-bit stereo samples from the console and
// queues them to the SDL audio device, keeping roughly two frames ahead.
func (h *Host) queueAudio() {
	const targetBytes = 2 * 1024 * 2 * 2 // two 1024-sample stereo frames of int16
	if sdl.GetQueuedAudioSize(h.audioDevice) >= targetBytes {
		return
	}

	n := h.console.GetAudioData(h.audioBuf)
	if n == 0 {
		return
	}
	bytes := (*[1 << 30]byte)(unsafe.Pointer(&h.audioBuf[0]))[: n*2 : n*2]
	sdl.QueueAudio(h.audioDevice, bytes)
}

// Close tears down every SDL resource the host created.
func (h *Host) Close() {
	if h.audioDevice != 0 {
		sdl.CloseAudioDevice(h.audioDevice)
	}
	if h.texture != nil {
		h.texture.Destroy()
	}
	if h.renderer != nil {
		h.renderer.Destroy()
	}
	if h.window != nil {
		h.window.Destroy()
	}
	sdl.Quit()
}
