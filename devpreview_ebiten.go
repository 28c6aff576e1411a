//go:build !headless

// devpreview_ebiten.go - an optional preview window, wrapping an ebiten.Game
// exactly the way the teacher's video backend drives its window: set up the
// window once, run ebiten.RunGame on its own goroutine, and let Draw pull
// whatever the latest frame buffer is under a mutex. It never replaces a
// real mmap-backed Display; it only mirrors the compositor's already-composed
// global surface so the compositor is demoable without any scheme displays
// attached, and it turns mouse/keyboard activity into the same (code, a, b)
// records a real display's input sidecar would produce.
package main

import (
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// DevPreview is a synthetic display: a window showing a read-only copy of
// the compositor's global surface, and a source of RawInput records.
type DevPreview struct {
	width, height int

	mu     sync.RWMutex
	pixels []byte
	image  *ebiten.Image

	records   []RawInput
	prevMouse Point
	prevBtns  uint8
	prevKeys  uint64

	running bool
}

// NewDevPreview opens a width x height preview window.
func NewDevPreview(width, height int) *DevPreview {
	p := &DevPreview{
		width:  width,
		height: height,
		pixels: make([]byte, width*height*4),
	}
	ebiten.SetWindowSize(width, height)
	ebiten.SetWindowTitle("comp preview")
	ebiten.SetWindowResizable(false)
	ebiten.SetRunnableOnUnfocused(true)
	return p
}

// Start runs the ebiten game loop on its own goroutine, matching the
// teacher's pattern of never blocking the caller on RunGame.
func (p *DevPreview) Start() {
	p.running = true
	go ebiten.RunGame(p)
}

// Stop asks the next Update to terminate the game loop.
func (p *DevPreview) Stop() { p.running = false }

// PushFrame replaces the preview's displayed pixels with a snapshot of the
// compositor's global surface, called once per tick from outside ebiten's
// own goroutine.
func (p *DevPreview) PushFrame(s *Surface) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pixels) != len(s.Pix) {
		p.pixels = make([]byte, len(s.Pix))
	}
	copy(p.pixels, s.Pix)
}

// FetchEvent satisfies the same shape Display.FetchEvent exposes, so a
// DevPreview can feed RawInput records into Compositor.drainInput the same
// way a real display's input sidecar does.
func (p *DevPreview) FetchEvent() ([]RawInput, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	records := p.records
	p.records = nil
	return records, nil
}

func (p *DevPreview) Update() error {
	if !p.running {
		return ebiten.Termination
	}

	x, y := ebiten.CursorPosition()
	cur := Point{X: int32(x), Y: int32(y)}
	if cur != p.prevMouse {
		p.enqueue(RawInput{Code: codePointerMotion, A: int64(cur.X - p.prevMouse.X), B: int64(cur.Y - p.prevMouse.Y)})
		p.prevMouse = cur
	}

	var btns uint8
	if ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		btns |= 0b100
	}
	if ebiten.IsMouseButtonPressed(ebiten.MouseButtonMiddle) {
		btns |= 0b010
	}
	if ebiten.IsMouseButtonPressed(ebiten.MouseButtonRight) {
		btns |= 0b001
	}
	if btns != p.prevBtns {
		p.enqueue(RawInput{Code: codeMouseButtons, A: int64(btns)})
		p.prevBtns = btns
	}

	var mask uint64
	for _, k := range inpututil.AppendPressedKeys(nil) {
		if int(k) < 64 {
			mask |= 1 << uint(k)
		}
	}
	if mask != p.prevKeys {
		p.enqueue(RawInput{Code: codeKeys, A: int64(mask)})
		p.prevKeys = mask
	}

	return nil
}

func (p *DevPreview) enqueue(rec RawInput) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.records) >= maxInputRecordsPerTick {
		return
	}
	p.records = append(p.records, rec)
}

func (p *DevPreview) Draw(screen *ebiten.Image) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.image == nil {
		p.image = ebiten.NewImage(p.width, p.height)
	}
	p.image.WritePixels(p.pixels)
	screen.DrawImage(p.image, nil)
}

func (p *DevPreview) Layout(_, _ int) (int, int) { return p.width, p.height }
