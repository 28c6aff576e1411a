// display.go - a physical display backed by a memory-mapped file, addressed
// in global (desktop) space by its top-left position.
package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/jcake/orbital-compositor/client"
)

// Display owns an mmap'd pixel buffer backing a single physical screen and
// knows where that screen sits in global desktop space.
type Display struct {
	backing  *os.File
	syncFile *os.File
	input    *os.File
	mapping  []byte
	surface  *Surface
	pos      Point
	trail    []trailEntry
	log      *zap.SugaredLogger
}

type trailEntry struct {
	rect client.Rect
	pix  []byte
}

// TailLength is K from the spec's cursor restore trail: the number of prior
// cursor positions kept around to erase. 1 erases cleanly with no tail.
const TailLength = 1

// OpenDisplay opens the backing file at path, resolves its pixel dimensions,
// maps it, and clears it white the way the reference implementation does on
// first attach.
func OpenDisplay(path string, pos Point, log *zap.SugaredLogger) (*Display, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: open display %s: %v", ErrIO, path, err)
	}

	width, height, err := queryDisplayDims(f, path)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: query dims for %s: %v", ErrIO, path, err)
	}
	log.Infow("opening display", "path", path, "width", width, "height", height)

	size := width * height * 4
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: truncate %s: %v", ErrIO, path, err)
	}

	mapping, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: mmap %s: %v", ErrIO, path, err)
	}

	// The pixel-backing file's bytes ARE the mapped surface, so damage
	// notifications can't be written through the same fd without corrupting
	// pixels; they go to a sidecar "sync" channel instead, the portable
	// analog of a scheme's write() being handled separately from its fmap.
	syncFile, err := os.OpenFile(path+".sync", os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		unix.Munmap(mapping)
		f.Close()
		return nil, fmt.Errorf("%w: open sync channel for %s: %v", ErrIO, path, err)
	}

	d := &Display{
		backing:  f,
		syncFile: syncFile,
		input:    openInputSidecar(path, log),
		mapping:  mapping,
		surface:  WrapSurface(mapping, width, height),
		pos:      pos,
		log:      log,
	}
	d.surface.Clear(0xffffffff)
	if err := d.sync(client.Rect{X: 0, Y: 0, W: uint32(width), H: uint32(height)}); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// openInputSidecar opens "<path>.input" non-blocking if present: the
// portable analog of a display driver's own event stream. Its absence is
// not an error — a display with no input source simply never yields events.
func openInputSidecar(path string, log *zap.SugaredLogger) *os.File {
	fd, err := unix.Open(path+".input", unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		log.Debugw("no input sidecar for display", "path", path, "error", err)
		return nil
	}
	return os.NewFile(uintptr(fd), path+".input")
}

// queryDisplayDims resolves a display's pixel dimensions. On Linux this
// reads the scheme-style URL a real `fpath` syscall would have returned via
// /proc/self/fd/N; where that's unavailable (non-Linux, or a plain file) it
// falls back to a "<path>.dims" sidecar containing "WIDTH HEIGHT".
func queryDisplayDims(f *os.File, path string) (width, height int, err error) {
	if w, h, ok := queryDimsViaProcFd(f); ok {
		return w, h, nil
	}
	return queryDimsSidecar(path)
}

func queryDimsSidecar(path string) (int, int, error) {
	sidecar, err := os.Open(path + ".dims")
	if err != nil {
		return 0, 0, fmt.Errorf("no /proc fd path and no sidecar: %w", err)
	}
	defer sidecar.Close()

	scanner := bufio.NewScanner(sidecar)
	if !scanner.Scan() {
		return 0, 0, fmt.Errorf("empty dims sidecar")
	}
	fields := strings.Fields(scanner.Text())
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("malformed dims sidecar, want \"WIDTH HEIGHT\"")
	}
	w, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad width in dims sidecar: %w", err)
	}
	h, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad height in dims sidecar: %w", err)
	}
	return w, h, nil
}

// Pos returns the display's origin in global space.
func (d *Display) Pos() Point { return d.pos }

// Rect is the display's footprint in global space.
func (d *Display) Rect() client.Rect {
	return client.Rect{X: d.pos.X, Y: d.pos.Y, W: uint32(d.surface.Width), H: uint32(d.surface.Height)}
}

// sync writes a damage rectangle header to the display's "<path>.sync"
// sidecar and fsyncs it,
// the signal a real display driver watches for to know which pixels to scan
// out. A zero-area rect is a no-op per the spec's damage-rect invariant.
func (d *Display) sync(rect client.Rect) error {
	if rect.W == 0 || rect.H == 0 {
		return nil
	}
	header := make([]byte, 16)
	binary.BigEndian.PutUint32(header[0:4], uint32(rect.X))
	binary.BigEndian.PutUint32(header[4:8], uint32(rect.Y))
	binary.BigEndian.PutUint32(header[8:12], rect.W)
	binary.BigEndian.PutUint32(header[12:16], rect.H)
	if _, err := d.syncFile.WriteAt(header, 0); err != nil {
		return fmt.Errorf("%w: sync write: %v", ErrIO, err)
	}
	if err := d.syncFile.Sync(); err != nil {
		return fmt.Errorf("%w: fsync: %v", ErrIO, err)
	}
	return nil
}

// RawInput is one (code, a, b) record as read from a display's input
// sidecar; code 11 means relative pointer motion with (a, b) = (dx, dy).
type RawInput struct{ Code, A, B int64 }

const inputRecordSize = 24 // 3 x int64, big-endian on the wire
const maxInputRecordsPerTick = 64

// FetchEvent performs one of the loop's three non-blocking suspension
// points: it reads however many raw input records are currently available
// on this display's input sidecar, up to 64, and never blocks.
func (d *Display) FetchEvent() ([]RawInput, error) {
	if d.input == nil {
		return nil, nil
	}
	buf := make([]byte, maxInputRecordsPerTick*inputRecordSize)
	n, err := d.input.Read(buf)
	if err != nil {
		if err == io.EOF || err == unix.EAGAIN || err == os.ErrDeadlineExceeded {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read input sidecar: %v", ErrIO, err)
	}
	count := n / inputRecordSize
	records := make([]RawInput, count)
	for i := 0; i < count; i++ {
		off := i * inputRecordSize
		records[i] = RawInput{
			Code: int64(binary.BigEndian.Uint64(buf[off : off+8])),
			A:    int64(binary.BigEndian.Uint64(buf[off+8 : off+16])),
			B:    int64(binary.BigEndian.Uint64(buf[off+16 : off+24])),
		}
	}
	return records, nil
}

func snapshotSurfaceRect(s *Surface, rect client.Rect) []byte {
	buf := make([]byte, int(rect.W)*int(rect.H)*4)
	i := 0
	for y := rect.Y; y < rect.Y+int32(rect.H); y++ {
		for x := rect.X; x < rect.X+int32(rect.W); x++ {
			binary.LittleEndian.PutUint32(buf[i:i+4], s.Get(int(x), int(y)))
			i += 4
		}
	}
	return buf
}

func restoreSurfaceRect(s *Surface, rect client.Rect, buf []byte) {
	i := 0
	for y := rect.Y; y < rect.Y+int32(rect.H); y++ {
		for x := rect.X; x < rect.X+int32(rect.W); x++ {
			s.Set(int(x), int(y), binary.LittleEndian.Uint32(buf[i:i+4]))
			i += 4
		}
	}
}

// DrawCursor implements the spec's restore-trail cursor blit: erase every
// saved trail entry, trim the trail, snapshot the pixels the cursor is about
// to cover, blit the cursor bitmap, then sync every rect that changed.
func (d *Display) DrawCursor(cursor *Cursor) error {
	bounds := client.Rect{X: 0, Y: 0, W: uint32(d.surface.Width), H: uint32(d.surface.Height)}

	for _, e := range d.trail {
		restoreSurfaceRect(d.surface, e.rect, e.pix)
		if err := d.sync(e.rect); err != nil {
			return err
		}
	}
	d.trail = d.trail[:0]

	glyph := cursor.Glyph()
	local := client.Rect{
		X: cursor.Pos().X - d.pos.X, Y: cursor.Pos().Y - d.pos.Y,
		W: uint32(glyph.Width), H: uint32(glyph.Height),
	}
	clipped, ok := Intersect(bounds, local)
	if !ok {
		return nil
	}

	d.trail = append(d.trail, trailEntry{rect: clipped, pix: snapshotSurfaceRect(d.surface, clipped)})
	if len(d.trail) > TailLength {
		d.trail = d.trail[len(d.trail)-TailLength:]
	}

	for gy := 0; gy < glyph.Height; gy++ {
		dy := int(local.Y) + gy
		for gx := 0; gx < glyph.Width; gx++ {
			dx := int(local.X) + gx
			d.surface.BlendPixel(dx, dy, glyph.Get(gx, gy))
		}
	}

	return d.sync(clipped)
}

// Draw copies the portion of the global composited surface this display
// covers into its own mapped buffer, then syncs just the damaged rect.
func (d *Display) Draw(global *Surface, damage client.Rect) error {
	local, ok := Intersect(d.Rect(), damage)
	if !ok {
		return nil
	}
	syncRect := client.Rect{
		X: local.X - d.pos.X, Y: local.Y - d.pos.Y,
		W: local.W, H: local.H,
	}
	CopySurfaceRect(d.surface, global, -int(d.pos.X), -int(d.pos.Y), syncRect)
	return d.sync(syncRect)
}

// Close unmaps the buffer and closes the backing, sync, and input files.
func (d *Display) Close() error {
	if d.input != nil {
		d.input.Close()
	}
	d.syncFile.Close()
	if err := unix.Munmap(d.mapping); err != nil {
		d.backing.Close()
		return fmt.Errorf("%w: munmap: %v", ErrIO, err)
	}
	return d.backing.Close()
}
