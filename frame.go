// frame.go - a client's window: option parsing, memfd-backed pixel buffer,
// request handling, and its outbound event queue.
package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/jcake/orbital-compositor/client"
)

// unboundedSize stands in for "no limit" when an option omits max-size.
const unboundedSize = uint32(1<<31 - 1)

// FrameOptions is the parsed form of a frame's `comp:` open-path token list.
type FrameOptions struct {
	MinSize, MaxSize, Size Size
	Pos                    Point
	Title                  string
	Transparent            bool
	Minimisable            bool
	Flags                  client.FrameFlags
	ZLock                  client.ZIndex
	Parent                 *uint64
}

// DefaultFrameOptions matches the spec's stated default: resizable and
// movable on both axes, not closable, not z-locked.
func DefaultFrameOptions() FrameOptions {
	return FrameOptions{
		MinSize: Size{W: 0, H: 0},
		MaxSize: Size{W: unboundedSize, H: unboundedSize},
		Size:    Size{W: 0, H: 0},
		Flags:   client.DefaultFrameFlags,
		ZLock:   client.ZAuto,
	}
}

func parseCoordPair(value string) (uint32, uint32, error) {
	x, y, found := strings.Cut(value, ",")
	if !found {
		return 0, 0, fmt.Errorf("%w: expected \"W,H\", got %q", ErrInvalidArgument, value)
	}
	w, err := strconv.ParseUint(x, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad width %q: %v", ErrInvalidArgument, x, err)
	}
	h, err := strconv.ParseUint(y, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad height %q: %v", ErrInvalidArgument, y, err)
	}
	return uint32(w), uint32(h), nil
}

func parsePosPair(value string) (int32, int32, error) {
	x, y, found := strings.Cut(value, ",")
	if !found {
		return 0, 0, fmt.Errorf("%w: expected \"X,Y\", got %q", ErrInvalidArgument, value)
	}
	px, err := strconv.ParseInt(x, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad x %q: %v", ErrInvalidArgument, x, err)
	}
	py, err := strconv.ParseInt(y, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad y %q: %v", ErrInvalidArgument, y, err)
	}
	return int32(px), int32(py), nil
}

// ParseFrameOptions parses the `&`-separated option token list a client
// passes as its open path. An unrecognized key is a descriptive error.
func ParseFrameOptions(src string) (FrameOptions, error) {
	opts := DefaultFrameOptions()
	if src == "" {
		return normaliseFrameOptions(opts)
	}

	for _, token := range strings.Split(src, "&") {
		switch token {
		case "minimise":
			opts.Minimisable = true
			continue
		case "resize":
			opts.Flags |= client.FlagResizeX | client.FlagResizeY
			continue
		case "close":
			opts.Flags |= client.FlagClose
			continue
		case "transparent":
			opts.Transparent = true
			continue
		case "z-lock=back":
			opts.ZLock = client.ZBack
			continue
		case "z-lock=front":
			opts.ZLock = client.ZFront
			continue
		}

		key, value, found := strings.Cut(token, "=")
		if !found {
			return FrameOptions{}, fmt.Errorf("%w: malformed option token %q", ErrInvalidArgument, token)
		}
		switch key {
		case "min-size":
			w, h, err := parseCoordPair(value)
			if err != nil {
				return FrameOptions{}, err
			}
			opts.MinSize = Size{W: w, H: h}
		case "max-size":
			w, h, err := parseCoordPair(value)
			if err != nil {
				return FrameOptions{}, err
			}
			opts.MaxSize = Size{W: w, H: h}
		case "size":
			w, h, err := parseCoordPair(value)
			if err != nil {
				return FrameOptions{}, err
			}
			opts.Size = Size{W: w, H: h}
		case "pos":
			x, y, err := parsePosPair(value)
			if err != nil {
				return FrameOptions{}, err
			}
			opts.Pos = Point{X: x, Y: y}
		case "title":
			opts.Title = value
		case "parent":
			id, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return FrameOptions{}, fmt.Errorf("%w: bad parent id %q: %v", ErrInvalidArgument, value, err)
			}
			opts.Parent = &id
		default:
			return FrameOptions{}, fmt.Errorf("%w: unknown option %q", ErrInvalidArgument, key)
		}
	}

	return normaliseFrameOptions(opts)
}

// normaliseFrameOptions applies the Open-Question resolution: min_size >
// max_size is rejected outright rather than silently clamped. Size is then
// reclamped into the final bounds, and pos is clamped into non-negative
// global space.
func normaliseFrameOptions(o FrameOptions) (FrameOptions, error) {
	if o.MinSize.W > o.MaxSize.W || o.MinSize.H > o.MaxSize.H {
		return FrameOptions{}, fmt.Errorf("%w: min_size %+v exceeds max_size %+v", ErrInvalidArgument, o.MinSize, o.MaxSize)
	}
	o.Size = o.Size.Clamp(o.MinSize, o.MaxSize)
	if o.Pos.X < 0 {
		o.Pos.X = 0
	}
	if o.Pos.Y < 0 {
		o.Pos.Y = 0
	}
	return o, nil
}

// Frame is a client's window: a memfd-backed pixel buffer, its placement
// and capability state, and a FIFO of outbound events.
type Frame struct {
	ID     uint64
	pos    Point
	size   Size
	minSize, maxSize Size
	title  string
	parent *uint64

	transparent bool
	minimisable bool
	minimised   bool
	closing     bool
	fullscreen  bool
	preFullscreen *client.Rect

	flags      client.FrameFlags
	zlock      client.ZIndex
	lastUpdate time.Time

	events  []client.FrameEvent
	surface *Surface
	memfd   int
	mapping []byte
}

// NewFrame allocates a memfd-backed pixel buffer sized per opts and returns
// a frame that begins life with a single Redraw event queued.
func NewFrame(opts FrameOptions, id uint64) (*Frame, error) {
	width, height := int(opts.Size.W), int(opts.Size.H)

	fd, err := unix.MemfdCreate(fmt.Sprintf("comp-frame-%d", id), 0)
	if err != nil {
		return nil, fmt.Errorf("%w: memfd_create: %v", ErrIO, err)
	}

	mapping, err := mapFramePixels(fd, width, height)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}

	surf := WrapSurface(mapping, width, height)
	surf.Clear(0xffaaaaaa)

	f := &Frame{
		ID:          id,
		pos:         opts.Pos,
		size:        opts.Size,
		minSize:     opts.MinSize,
		maxSize:     opts.MaxSize,
		title:       opts.Title,
		parent:      opts.Parent,
		transparent: opts.Transparent,
		minimisable: opts.Minimisable,
		flags:       opts.Flags,
		zlock:       opts.ZLock,
		lastUpdate:  time.Now(),
		surface:     surf,
		memfd:       fd,
		mapping:     mapping,
	}
	f.events = append(f.events, client.EventRedraw{})
	return f, nil
}

func mapFramePixels(fd, width, height int) ([]byte, error) {
	size := width * height * 4
	if size == 0 {
		return nil, nil
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		return nil, fmt.Errorf("%w: ftruncate: %v", ErrIO, err)
	}
	mapping, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap frame buffer: %v", ErrIO, err)
	}
	return mapping, nil
}

// MemFD returns the frame's backing memfd and its pixel buffer length in
// bytes, used by the scheme server to satisfy an `fmap` request by handing
// the client a duplicated descriptor over SCM_RIGHTS.
func (f *Frame) MemFD() (fd int, length int) {
	return f.memfd, int(f.size.W) * int(f.size.H) * 4
}

// Rect is the frame's current position and size in global space.
func (f *Frame) Rect() client.Rect {
	return client.Rect{X: f.pos.X, Y: f.pos.Y, W: f.size.W, H: f.size.H}
}

// Messenger returns the plain-data snapshot plugins are allowed to hold.
type Messenger struct {
	ID                uint64
	Pos               Point
	Size              Size
	Title             string
	Parent            *uint64
	LastUpdateElapsed time.Duration
}

func (f *Frame) Messenger() Messenger {
	return Messenger{
		ID: f.ID, Pos: f.pos, Size: f.size, Title: f.title,
		Parent: f.parent, LastUpdateElapsed: time.Since(f.lastUpdate),
	}
}

// Touch marks the frame as freshly updated, clearing any stale-window dim.
func (f *Frame) Touch() { f.lastUpdate = time.Now() }

// Closing reports whether a Close request has been handled for this frame.
func (f *Frame) Closing() bool { return f.closing }

// ZLock is the frame's current painter-order lock.
func (f *Frame) ZLock() client.ZIndex { return f.zlock }

// Minimised reports whether the client last asked to be minimised; such a
// frame is skipped by painting and pointer hit-testing, but its memfd and
// event queue stay alive so it keeps its state once restored.
func (f *Frame) Minimised() bool { return f.minimised }

// PopEvent dequeues the oldest pending event, or reports none available
// (the scheme server translates that into ErrWouldBlock).
func (f *Frame) PopEvent() (client.FrameEvent, bool) {
	if len(f.events) == 0 {
		return nil, false
	}
	ev := f.events[0]
	f.events = f.events[1:]
	return ev, true
}

func (f *Frame) enqueue(ev client.FrameEvent) { f.events = append(f.events, ev) }

// Draw blits the frame's pixels into the global surface at its position,
// then if the frame has gone stale (no update for 10s), composites a white
// overlay whose alpha ramps from 0 at 10s to 50% at 15s.
func (f *Frame) Draw(global *Surface) {
	CopySurface(global, f.surface, int(f.pos.X), int(f.pos.Y))

	elapsed := time.Since(f.lastUpdate).Seconds()
	if elapsed <= 10 {
		return
	}
	// Ramps from 0% alpha at 10s to 50% alpha at 15s.
	frac := (elapsed - 10) / 5
	if frac > 1 {
		frac = 1
	}
	alpha := uint32(255 * 0.5 * frac)
	overlay := alpha<<24 | alpha<<16 | alpha<<8 | alpha

	rect := f.Rect()
	for y := rect.Y; y < rect.Y+int32(rect.H); y++ {
		for x := rect.X; x < rect.X+int32(rect.W); x++ {
			global.BlendPixel(int(x), int(y), overlay)
		}
	}
}

// HandleRequest applies a client request to frame state. resolveFullscreenRect
// is called only for a Fullscreen(true) request, to learn the rect of the
// display the frame should expand to cover.
func (f *Frame) HandleRequest(req client.FrameRequest, resolveFullscreenRect func() client.Rect) error {
	switch v := req.(type) {
	case client.RequestPosition:
		return f.setRect(v.Rect)
	case client.RequestFullscreen:
		if v.Fullscreen {
			return f.enterFullscreen(resolveFullscreenRect())
		}
		return f.exitFullscreen()
	case client.RequestFlags:
		f.flags = v.Flags
		f.enqueue(client.EventFlags{Flags: f.flags})
		return nil
	case client.RequestMinimise:
		f.minimised = v.Minimise
		f.enqueue(client.EventVisible{Visible: !f.minimised})
		return nil
	case client.RequestZLock:
		f.zlock = v.ZIndex
		return nil
	case client.RequestClose:
		f.closing = true
		f.enqueue(client.EventClose{})
		return nil
	default:
		return fmt.Errorf("%w: unknown request %T", ErrInvalidArgument, req)
	}
}

// setRect reallocates the pixel buffer if the size changed, blitting old
// contents origin-aligned into the new buffer, then updates pos and
// enqueues the Position event clients watch for.
func (f *Frame) setRect(r client.Rect) error {
	if r.W != f.size.W || r.H != f.size.H {
		if err := f.realloc(Size{W: r.W, H: r.H}); err != nil {
			return err
		}
	}
	f.pos = Point{X: r.X, Y: r.Y}
	f.enqueue(client.EventPosition{Rect: f.Rect()})
	return nil
}

func (f *Frame) realloc(newSize Size) error {
	// Copy the old pixels out first: the old mapping is unmapped below, and
	// the new mapping shares the same memfd pages, which get cleared.
	old := &Surface{Pix: append([]byte(nil), f.surface.Pix...), Width: f.surface.Width, Height: f.surface.Height}

	newLen := int64(int(newSize.W) * int(newSize.H) * 4)
	if err := unix.Ftruncate(f.memfd, newLen); err != nil {
		return fmt.Errorf("%w: ftruncate resize: %v", ErrIO, err)
	}
	if f.mapping != nil {
		unix.Munmap(f.mapping)
	}

	mapping, err := mapFramePixels(f.memfd, int(newSize.W), int(newSize.H))
	if err != nil {
		return err
	}

	f.mapping = mapping
	f.surface = WrapSurface(mapping, int(newSize.W), int(newSize.H))
	f.surface.Clear(0xffaaaaaa)
	CopySurface(f.surface, old, 0, 0)
	f.size = newSize
	return nil
}

func (f *Frame) enterFullscreen(target client.Rect) error {
	if f.fullscreen {
		return nil
	}
	saved := f.Rect()
	f.preFullscreen = &saved
	if err := f.setRect(target); err != nil {
		return err
	}
	f.fullscreen = true
	f.zlock = client.ZFront
	return nil
}

func (f *Frame) exitFullscreen() error {
	if !f.fullscreen || f.preFullscreen == nil {
		return nil
	}
	saved := *f.preFullscreen
	f.preFullscreen = nil
	f.fullscreen = false
	return f.setRect(saved)
}

// Close releases the frame's backing memory. The memfd itself is closed
// too; any client that had it mapped keeps its own reference alive.
func (f *Frame) Close() error {
	if f.mapping != nil {
		unix.Munmap(f.mapping)
	}
	return unix.Close(f.memfd)
}
