package main

import (
	"testing"

	"github.com/jcake/orbital-compositor/client"
)

func TestApplyPointerMotionPassesThroughDelta(t *testing.T) {
	s := NewInputState()
	tr := s.Apply(RawInput{Code: codePointerMotion, A: 3, B: -4})
	move, ok := tr.Input.(client.InputMouseMove)
	if !ok || move.X != 3 || move.Y != -4 {
		t.Fatalf("Input = %#v, want InputMouseMove{3,-4}", tr.Input)
	}
	if len(tr.Edges) != 0 {
		t.Fatalf("pointer motion should not synthesize edges, got %v", tr.Edges)
	}
}

func TestApplyButtonsSynthesizesPressAndReleaseEdges(t *testing.T) {
	s := NewInputState()

	tr := s.Apply(RawInput{Code: codeMouseButtons, A: int64(client.ButtonLeft)})
	if len(tr.Edges) != 1 || tr.Edges[0].Button != client.ButtonLeft || !tr.Edges[0].Pressed {
		t.Fatalf("press edges = %+v, want one ButtonLeft press", tr.Edges)
	}
	held, ok := tr.Input.(client.InputMouseButtons)
	if !ok || held.Buttons != client.ButtonLeft {
		t.Fatalf("Input = %#v, want level-set {Left}", tr.Input)
	}

	tr = s.Apply(RawInput{Code: codeMouseButtons, A: int64(client.ButtonLeft | client.ButtonRight)})
	if len(tr.Edges) != 1 || tr.Edges[0].Button != client.ButtonRight || !tr.Edges[0].Pressed {
		t.Fatalf("second press edges = %+v, want one ButtonRight press", tr.Edges)
	}

	tr = s.Apply(RawInput{Code: codeMouseButtons, A: 0})
	if len(tr.Edges) != 2 {
		t.Fatalf("release edges = %+v, want 2 releases", tr.Edges)
	}
	for _, e := range tr.Edges {
		if e.Pressed {
			t.Fatalf("edge %+v should be a release", e)
		}
	}
}

func TestApplyKeysDiffsBitmask(t *testing.T) {
	s := NewInputState()

	tr := s.Apply(RawInput{Code: codeKeys, A: (1 << 5) | (1 << 9)})
	keys, ok := tr.Input.(client.InputKeys)
	if !ok || len(keys.Keys) != 2 || keys.Keys[0] != 5 || keys.Keys[1] != 9 {
		t.Fatalf("Input = %#v, want sorted [5 9]", tr.Input)
	}
	if len(tr.Edges) != 2 {
		t.Fatalf("expected 2 press edges, got %+v", tr.Edges)
	}

	tr = s.Apply(RawInput{Code: codeKeys, A: 1 << 5})
	if len(tr.Edges) != 1 || tr.Edges[0].Key != 9 || tr.Edges[0].Pressed {
		t.Fatalf("expected one release edge for key 9, got %+v", tr.Edges)
	}
}

func TestApplyUnknownCodeIsIgnored(t *testing.T) {
	s := NewInputState()
	tr := s.Apply(RawInput{Code: 999})
	if tr.Input != nil || tr.Edges != nil {
		t.Fatalf("unknown code should translate to nothing, got %+v", tr)
	}
}

func TestFrameUnderCursorPicksTopmost(t *testing.T) {
	bottom := newTestFrame(t, "pos=0,0&size=100,100", 1)
	defer bottom.Close()
	top := newTestFrame(t, "pos=10,10&size=50,50", 2)
	defer top.Close()

	frames := []*Frame{bottom, top}
	got := FrameUnderCursor(frames, Point{X: 20, Y: 20})
	if got != top {
		t.Fatalf("expected topmost overlapping frame, got id %d", got.ID)
	}

	got = FrameUnderCursor(frames, Point{X: 5, Y: 5})
	if got != bottom {
		t.Fatalf("expected bottom frame outside top's rect, got id %d", got.ID)
	}

	if got := FrameUnderCursor(frames, Point{X: 500, Y: 500}); got != nil {
		t.Fatalf("expected nil outside any frame, got id %d", got.ID)
	}
}

func TestRouteInputDropsWhenUntargeted(t *testing.T) {
	f := newTestFrame(t, "pos=0,0&size=10,10", 1)
	defer f.Close()
	f.PopEvent() // drain initial Redraw

	RouteInput([]*Frame{f}, Point{X: 500, Y: 500}, client.InputMouseMove{X: 1, Y: 1})
	if _, ok := f.PopEvent(); ok {
		t.Fatalf("expected no event queued when cursor is outside every frame")
	}

	RouteInput([]*Frame{f}, Point{X: 5, Y: 5}, client.InputMouseMove{X: 1, Y: 1})
	ev, ok := f.PopEvent()
	if !ok {
		t.Fatalf("expected an EventInput once the cursor is inside the frame")
	}
	if _, ok := ev.(client.EventInput); !ok {
		t.Fatalf("event = %#v, want EventInput", ev)
	}
}
