// surface.go - ARGB8888 pixel buffers and the blits the compositor performs
// every tick: clearing, opaque copy, and alpha-blended overlay.
package main

import (
	"encoding/binary"

	"github.com/jcake/orbital-compositor/client"
)

// Surface is a width*height ARGB8888 pixel buffer, 4 bytes per pixel. Pixel
// storage is a plain byte slice rather than []uint32 so a Surface can wrap
// an mmap'd file's bytes directly, with no copy, the way a real display or
// frame buffer does.
type Surface struct {
	Pix           []byte
	Width, Height int
}

// NewSurface allocates an owned, zeroed surface.
func NewSurface(width, height int) *Surface {
	return &Surface{Pix: make([]byte, width*height*4), Width: width, Height: height}
}

// WrapSurface adapts an externally-owned byte slice (e.g. an mmap'd frame or
// display buffer) into a Surface without copying.
func WrapSurface(pix []byte, width, height int) *Surface {
	return &Surface{Pix: pix, Width: width, Height: height}
}

// Clear fills the entire surface with c.
func (s *Surface) Clear(c uint32) {
	for i := 0; i < len(s.Pix); i += 4 {
		binary.LittleEndian.PutUint32(s.Pix[i:i+4], c)
	}
}

func (s *Surface) at(x, y int) int { return (y*s.Width + x) * 4 }

// Set writes a single pixel, a no-op if (x,y) falls outside the surface.
func (s *Surface) Set(x, y int, c uint32) {
	if x < 0 || y < 0 || x >= s.Width || y >= s.Height {
		return
	}
	i := s.at(x, y)
	binary.LittleEndian.PutUint32(s.Pix[i:i+4], c)
}

// Get reads a single pixel, returning 0 outside the surface.
func (s *Surface) Get(x, y int) uint32 {
	if x < 0 || y < 0 || x >= s.Width || y >= s.Height {
		return 0
	}
	i := s.at(x, y)
	return binary.LittleEndian.Uint32(s.Pix[i : i+4])
}

// CopySurface blits src onto dst at (dstX, dstY), opaque overwrite, clipped
// to both surfaces' bounds. This is the global-surface -> display blit and
// the frame -> global-surface blit the compositor does every tick.
func CopySurface(dst, src *Surface, dstX, dstY int) {
	for sy := 0; sy < src.Height; sy++ {
		dy := dstY + sy
		if dy < 0 || dy >= dst.Height {
			continue
		}
		for sx := 0; sx < src.Width; sx++ {
			dx := dstX + sx
			if dx < 0 || dx >= dst.Width {
				continue
			}
			dst.Set(dx, dy, src.Get(sx, sy))
		}
	}
}

// CopySurfaceRect is CopySurface restricted to the portion of src that
// overlaps rect (in dst space), used to repaint only a frame's damage rect.
func CopySurfaceRect(dst, src *Surface, dstX, dstY int, rect client.Rect) {
	x0, y0 := max32(rect.X, 0), max32(rect.Y, 0)
	x1 := min32(rect.X+int32(rect.W), int32(dst.Width))
	y1 := min32(rect.Y+int32(rect.H), int32(dst.Height))
	for dy := y0; dy < y1; dy++ {
		sy := int(dy) - dstY
		if sy < 0 || sy >= src.Height {
			continue
		}
		for dx := x0; dx < x1; dx++ {
			sx := int(dx) - dstX
			if sx < 0 || sx >= src.Width {
				continue
			}
			dst.Set(int(dx), int(dy), src.Get(sx, sy))
		}
	}
}

// BlendPixel alpha-composites src (premultiplied ARGB) over the existing
// pixel at (x, y) using src's alpha channel, used for the cursor silhouette
// and the stale-frame dimming ramp.
func (s *Surface) BlendPixel(x, y int, src uint32) {
	if x < 0 || y < 0 || x >= s.Width || y >= s.Height {
		return
	}
	a := src >> 24
	if a == 0xff {
		s.Set(x, y, src)
		return
	}
	if a == 0 {
		return
	}
	dst := s.Get(x, y)
	inv := 0xff - a
	blend := func(shift uint) uint32 {
		sc := (src >> shift) & 0xff
		dc := (dst >> shift) & 0xff
		return ((sc*0xff + dc*inv) / 0xff) & 0xff
	}
	out := blend(24)<<24 | blend(16)<<16 | blend(8)<<8 | blend(0)
	s.Set(x, y, out)
}

