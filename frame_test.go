package main

import (
	"testing"
	"time"

	"github.com/jcake/orbital-compositor/client"
)

func TestParseFrameOptionsDefaults(t *testing.T) {
	opts, err := ParseFrameOptions("")
	if err != nil {
		t.Fatalf("ParseFrameOptions(\"\"): %v", err)
	}
	if opts.Flags != client.DefaultFrameFlags {
		t.Fatalf("Flags = %v, want default", opts.Flags)
	}
	if opts.ZLock != client.ZAuto {
		t.Fatalf("ZLock = %v, want Auto", opts.ZLock)
	}
}

func TestParseFrameOptionsTokens(t *testing.T) {
	opts, err := ParseFrameOptions("title=hello&size=200,160&pos=10,20&close&transparent&z-lock=front")
	if err != nil {
		t.Fatalf("ParseFrameOptions: %v", err)
	}
	if opts.Title != "hello" {
		t.Fatalf("Title = %q, want hello", opts.Title)
	}
	if opts.Size != (Size{W: 200, H: 160}) {
		t.Fatalf("Size = %+v, want 200x160", opts.Size)
	}
	if opts.Pos != (Point{X: 10, Y: 20}) {
		t.Fatalf("Pos = %+v, want (10,20)", opts.Pos)
	}
	if opts.Flags&client.FlagClose == 0 {
		t.Fatalf("expected FlagClose to be set")
	}
	if !opts.Transparent {
		t.Fatalf("expected Transparent")
	}
	if opts.ZLock != client.ZFront {
		t.Fatalf("ZLock = %v, want Front", opts.ZLock)
	}
}

func TestParseFrameOptionsUnknownKeyFails(t *testing.T) {
	if _, err := ParseFrameOptions("bogus=1"); err == nil {
		t.Fatalf("expected error for unknown option key")
	}
}

func TestParseFrameOptionsMinExceedsMaxRejected(t *testing.T) {
	_, err := ParseFrameOptions("min-size=100,100&max-size=50,50")
	if err == nil {
		t.Fatalf("expected error when min_size exceeds max_size")
	}
}

func TestParseFrameOptionsSizeReclamped(t *testing.T) {
	opts, err := ParseFrameOptions("min-size=50,50&max-size=200,200&size=10,10")
	if err != nil {
		t.Fatalf("ParseFrameOptions: %v", err)
	}
	if opts.Size != (Size{W: 50, H: 50}) {
		t.Fatalf("Size = %+v, want clamped to min (50,50)", opts.Size)
	}
}

func TestParseFrameOptionsRoundTrip(t *testing.T) {
	src := "title=T&size=200,160&pos=10,20&min-size=10,10&max-size=400,400"
	first, err := ParseFrameOptions(src)
	if err != nil {
		t.Fatalf("ParseFrameOptions: %v", err)
	}
	canonical := "title=" + first.Title +
		"&min-size=10,10&max-size=400,400&size=200,160&pos=10,20"
	second, err := ParseFrameOptions(canonical)
	if err != nil {
		t.Fatalf("ParseFrameOptions(canonical): %v", err)
	}
	if first.Title != second.Title || first.Size != second.Size || first.Pos != second.Pos {
		t.Fatalf("round trip mismatch: %+v vs %+v", first, second)
	}
}

func newTestFrame(t *testing.T, opts string, id uint64) *Frame {
	t.Helper()
	parsed, err := ParseFrameOptions(opts)
	if err != nil {
		t.Fatalf("ParseFrameOptions: %v", err)
	}
	f, err := NewFrame(parsed, id)
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	return f
}

func TestNewFrameBeginsWithRedrawEvent(t *testing.T) {
	f := newTestFrame(t, "size=100,80", 1)
	defer f.Close()

	ev, ok := f.PopEvent()
	if !ok {
		t.Fatalf("expected an initial event")
	}
	if _, ok := ev.(client.EventRedraw); !ok {
		t.Fatalf("initial event = %#v, want EventRedraw", ev)
	}
	if _, ok := f.PopEvent(); ok {
		t.Fatalf("expected no further queued events")
	}
}

func TestFrameFullscreenRoundTripByteExact(t *testing.T) {
	f := newTestFrame(t, "size=300,200&pos=10,20", 1)
	defer f.Close()

	original := f.Rect()
	displayRect := client.Rect{X: 0, Y: 0, W: 1024, H: 768}

	if err := f.HandleRequest(client.RequestFullscreen{Fullscreen: true}, func() client.Rect { return displayRect }); err != nil {
		t.Fatalf("enter fullscreen: %v", err)
	}
	if f.Rect() != displayRect {
		t.Fatalf("fullscreen rect = %+v, want %+v", f.Rect(), displayRect)
	}
	if f.ZLock() != client.ZFront {
		t.Fatalf("ZLock = %v, want Front after fullscreen", f.ZLock())
	}

	if err := f.HandleRequest(client.RequestFullscreen{Fullscreen: false}, nil); err != nil {
		t.Fatalf("exit fullscreen: %v", err)
	}
	if f.Rect() != original {
		t.Fatalf("restored rect = %+v, want %+v", f.Rect(), original)
	}
}

func TestFramePositionRequestReallocatesAndEnqueues(t *testing.T) {
	f := newTestFrame(t, "size=10,10", 1)
	defer f.Close()
	f.PopEvent() // drain initial Redraw

	newRect := client.Rect{X: 5, Y: 5, W: 20, H: 30}
	if err := f.HandleRequest(client.RequestPosition{Rect: newRect}, nil); err != nil {
		t.Fatalf("HandleRequest Position: %v", err)
	}
	if f.Rect() != newRect {
		t.Fatalf("Rect = %+v, want %+v", f.Rect(), newRect)
	}
	ev, ok := f.PopEvent()
	if !ok {
		t.Fatalf("expected a Position event")
	}
	pos, ok := ev.(client.EventPosition)
	if !ok || pos.Rect != newRect {
		t.Fatalf("event = %#v, want EventPosition{%+v}", ev, newRect)
	}
}

func TestFrameCloseRequestSetsClosingAndEnqueues(t *testing.T) {
	f := newTestFrame(t, "size=10,10", 1)
	defer f.Close()
	f.PopEvent()

	if err := f.HandleRequest(client.RequestClose{}, nil); err != nil {
		t.Fatalf("HandleRequest Close: %v", err)
	}
	if !f.Closing() {
		t.Fatalf("expected Closing() to be true")
	}
	ev, ok := f.PopEvent()
	if !ok {
		t.Fatalf("expected a Close event")
	}
	if _, ok := ev.(client.EventClose); !ok {
		t.Fatalf("event = %#v, want EventClose", ev)
	}
}

func TestFrameStaleDimmingAlpha(t *testing.T) {
	f := newTestFrame(t, "size=10,10", 1)
	defer f.Close()
	f.lastUpdate = time.Now().Add(-12500 * time.Millisecond)

	global := NewSurface(10, 10)
	f.Draw(global)

	// elapsed=12.5s -> frac=(12.5-10)/5=0.5 -> overlay alpha=255*0.5*0.5=63
	// (truncated). The frame's mid-grey fill (0xaa) blends towards white
	// (0xff) by that ratio: (255*63 + 170*192)/255 = 191 exactly.
	got := global.Get(0, 0)
	if red := (got >> 16) & 0xff; red != 191 {
		t.Fatalf("blended red channel = %d, want 191", red)
	}
}

