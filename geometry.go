// geometry.go - small geometric helpers layered on top of client.Rect
package main

import "github.com/jcake/orbital-compositor/client"

// Point is a signed 2D coordinate in display or global space.
type Point struct{ X, Y int32 }

// Size is an unsigned width/height pair.
type Size struct{ W, H uint32 }

// Clamp returns s constrained to the inclusive [min, max] box, component-wise.
func (s Size) Clamp(min, max Size) Size {
	clamp := func(v, lo, hi uint32) uint32 {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}
	return Size{W: clamp(s.W, min.W, max.W), H: clamp(s.H, min.H, max.H)}
}

// Contains reports whether p falls within r (half-open on the far edge).
func Contains(r client.Rect, p Point) bool {
	return p.X >= r.X && p.Y >= r.Y &&
		p.X < r.X+int32(r.W) && p.Y < r.Y+int32(r.H)
}

// Intersects reports whether a and b overlap in global space.
func Intersects(a, b client.Rect) bool {
	if a.W == 0 || a.H == 0 || b.W == 0 || b.H == 0 {
		return false
	}
	return a.X < b.X+int32(b.W) && b.X < a.X+int32(a.W) &&
		a.Y < b.Y+int32(b.H) && b.Y < a.Y+int32(a.H)
}

// Intersect returns the overlapping rectangle of a and b, and whether it is
// non-empty.
func Intersect(a, b client.Rect) (client.Rect, bool) {
	x0, y0 := max32(a.X, b.X), max32(a.Y, b.Y)
	x1, y1 := min32(a.X+int32(a.W), b.X+int32(b.W)), min32(a.Y+int32(a.H), b.Y+int32(b.H))
	if x1 <= x0 || y1 <= y0 {
		return client.Rect{}, false
	}
	return client.Rect{X: x0, Y: y0, W: uint32(x1 - x0), H: uint32(y1 - y0)}, true
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}
