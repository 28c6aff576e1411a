package main

import "testing"

func TestNewCursorCentred(t *testing.T) {
	c := NewCursor(800, 600)
	if c.Pos() != (Point{X: 400, Y: 300}) {
		t.Fatalf("pos = %+v, want centred", c.Pos())
	}
	if c.Pos() != c.PrevPos() {
		t.Fatalf("pos and prevPos should match on construction")
	}
}

func TestCursorMoveClampsToBounds(t *testing.T) {
	c := NewCursor(100, 100)
	c.SetPos(Point{X: 0, Y: 0})
	c.Move(-50, -50)
	if c.Pos().X < 0 || c.Pos().Y < 0 {
		t.Fatalf("pos = %+v, want clamped to >= 0", c.Pos())
	}

	c.SetPos(Point{X: 90, Y: 90})
	c.Move(500, 500)
	if c.Pos().X > 100 || c.Pos().Y > 100 {
		t.Fatalf("pos = %+v, want clamped to <= bounds", c.Pos())
	}
}

func TestCursorSetPosRecordsPrev(t *testing.T) {
	c := NewCursor(800, 600)
	first := c.Pos()
	c.SetPos(Point{X: 10, Y: 20})
	if c.PrevPos() != first {
		t.Fatalf("prevPos = %+v, want %+v", c.PrevPos(), first)
	}
	if c.Pos() != (Point{X: 10, Y: 20}) {
		t.Fatalf("pos = %+v, want (10,20)", c.Pos())
	}
}

func TestCursorGlyphHasOpaquePixels(t *testing.T) {
	c := NewCursor(800, 600)
	glyph := c.Glyph()
	found := false
	for _, px := range glyph.Pix {
		if px>>24 > 0 {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("expected at least one non-transparent pixel in cursor glyph")
	}
}

func TestCursorBoundingRegionTracksSize(t *testing.T) {
	c := NewCursor(800, 600)
	r := c.BoundingRegion()
	if r.W != 20 || r.H != 20 {
		t.Fatalf("bounding region = %+v, want 20x20 (size+4)", r)
	}
}
