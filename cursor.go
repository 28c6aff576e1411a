// cursor.go - software cursor: Breeze-style arrow rasterized once at start,
// then blitted with a damage-rect restore trail every tick.
package main

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	"github.com/jcake/orbital-compositor/client"
)

// Shape coefficients ported verbatim from the original Breeze-inspired
// cursor generator: h is overall scale, l is arrowhead breadth, g is tail
// breadth, t is the arrow's half-angle in degrees.
const (
	cursorShapeH = 1.125
	cursorShapeL = 0.17
	cursorShapeG = 2.65
	cursorShapeT = 67.5
)

// Cursor is the compositor's software pointer: a pre-rendered arrow glyph
// plus the position bookkeeping needed to restore the pixels it last sat on.
type Cursor struct {
	pos, prevPos Point
	size         int
	bounds       client.Rect
	glyph        *Surface
}

// NewCursor builds a cursor confined to [0,maxX) x [0,maxY), centred.
func NewCursor(maxX, maxY int32) *Cursor {
	const base = 16
	start := Point{X: maxX / 2, Y: maxY / 2}
	return &Cursor{
		pos:     start,
		prevPos: start,
		size:    base,
		bounds:  client.Rect{X: 0, Y: 0, W: uint32(maxX), H: uint32(maxY)},
		glyph:   renderCursorGlyph(base),
	}
}

// Glyph is the pre-rendered (size+4)x(size+4) ARGB cursor image.
func (c *Cursor) Glyph() *Surface { return c.glyph }

// Pos returns the cursor's current position.
func (c *Cursor) Pos() Point { return c.pos }

// PrevPos returns the cursor's position before the last SetPos/Move call.
func (c *Cursor) PrevPos() Point { return c.prevPos }

// SetPos moves the cursor to an absolute position, recording the prior one.
func (c *Cursor) SetPos(p Point) {
	c.prevPos = c.pos
	c.pos = p
}

// Move applies a relative delta, clamped to the cursor's bounds.
func (c *Cursor) Move(dx, dy int32) {
	c.prevPos = c.pos
	x, y := c.pos.X+dx, c.pos.Y+dy
	if x < c.bounds.X {
		x = c.bounds.X
	}
	if max := c.bounds.X + int32(c.bounds.W) - 1; x > max {
		x = max
	}
	if y < c.bounds.Y {
		y = c.bounds.Y
	}
	if max := c.bounds.Y + int32(c.bounds.H) - 1; y > max {
		y = max
	}
	c.pos = Point{X: x, Y: y}
}

// BoundingRegion is the glyph's current on-screen footprint.
func (c *Cursor) BoundingRegion() client.Rect {
	return client.Rect{X: c.pos.X, Y: c.pos.Y, W: uint32(c.size + 4), H: uint32(c.size + 4)}
}

// PrevBoundingRegion is the footprint the glyph occupied before the last
// move, used to know which pixels of the global surface need restoring.
func (c *Cursor) PrevBoundingRegion() client.Rect {
	return client.Rect{X: c.prevPos.X, Y: c.prevPos.Y, W: uint32(c.size + 4), H: uint32(c.size + 4)}
}

type pointF struct{ X, Y float32 }

func cursorOutline(cursorSize int) []pointF {
	size := float32(cursorSize)
	const h, l, g, t = cursorShapeH, cursorShapeL, cursorShapeG, cursorShapeT

	diagLen := float32(math.Sqrt(0.75*0.75 + l*l))
	diagAngle := t + float32(math.Atan2(float64(l), 0.75))*180/math.Pi

	type av struct{ angle, length float32 }
	vectors := []av{
		{t, 0.75},
		{diagAngle, diagLen},
		{90 - g, 0.90},
		{90 + g, 0.90},
		{180 - diagAngle, diagLen},
		{180 - t, 0.75},
		{0, 0},
	}

	pts := make([]pointF, 0, len(vectors)+1)
	pts = append(pts, pointF{0, 0})
	for _, v := range vectors {
		rad := float64(v.angle) * math.Pi / 180
		length := v.length * h
		x := size * length * float32(math.Cos(rad))
		y := size * length * float32(math.Sin(rad))
		pts = append(pts, pointF{x, y})
	}

	// raqote rotates the whole path by (270 + t) degrees then translates by
	// (2, 2) before drawing, so the tip lands inside the (size+4) canvas.
	rot := float64(270+t) * math.Pi / 180
	cos, sin := float32(math.Cos(rot)), float32(math.Sin(rot))
	out := make([]pointF, len(pts))
	for i, p := range pts {
		out[i] = pointF{X: p.X*cos - p.Y*sin + 2, Y: p.X*sin + p.Y*cos + 2}
	}
	return out
}

// scaleAbout grows pts outward from their centroid by factor, approximating
// the 1px black stroke raqote draws around the arrow (x/image/vector has no
// stroke primitive, so the stroke is approximated as an oversized silhouette
// painted under the fill).
func scaleAbout(pts []pointF, factor float32) []pointF {
	var cx, cy float32
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	cx /= float32(len(pts))
	cy /= float32(len(pts))
	out := make([]pointF, len(pts))
	for i, p := range pts {
		out[i] = pointF{X: cx + (p.X-cx)*factor, Y: cy + (p.Y-cy)*factor}
	}
	return out
}

func rasterizePolygon(dst draw.Image, pts []pointF, dim int, c color.Color) {
	r := vector.NewRasterizer(dim, dim)
	r.MoveTo(pts[0].X, pts[0].Y)
	for _, p := range pts[1:] {
		r.LineTo(p.X, p.Y)
	}
	r.ClosePath()
	src := &image.Uniform{C: c}
	r.Draw(dst, image.Rect(0, 0, dim, dim), src, image.Point{})
}

func renderCursorGlyph(cursorSize int) *Surface {
	dim := cursorSize + 4
	img := image.NewNRGBA(image.Rect(0, 0, dim, dim))

	outline := cursorOutline(cursorSize)
	rasterizePolygon(img, scaleAbout(outline, 1.18), dim, color.Black)
	rasterizePolygon(img, outline, dim, color.White)

	surf := NewSurface(dim, dim)
	for y := 0; y < dim; y++ {
		for x := 0; x < dim; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			surf.Set(x, y, uint32(a>>8)<<24|uint32(r>>8)<<16|uint32(g>>8)<<8|uint32(b>>8))
		}
	}
	return surf
}
