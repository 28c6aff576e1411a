// compositor.go - the tick loop: owns the frame table, the displays, the
// global composited surface, the cursor, and drives the scheme server and
// plugin bridge from a single thread. No other goroutine ever touches this
// state; everything reaches it through the scheme's channel inbox
// (scheme.Inbox()) and the per-display input sidecar files, both drained
// here each tick.
package main

import (
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/jcake/orbital-compositor/client"
)

const tickInterval = time.Second / 60

// Compositor owns every piece of mutable state in the process.
type Compositor struct {
	frames  map[uint64]*Frame
	nextID  uint64
	displays []*Display
	global  *Surface
	cursor  *Cursor
	input   *InputState
	scheme  *Scheme
	plugins *PluginManager
	log     *zap.SugaredLogger

	pluginEvents []PluginEvent
	lastTick     time.Time

	preview previewSink
}

// previewSink is satisfied by the platform-specific dev-preview window
// (devpreview_ebiten.go or its headless stub); Compositor only ever sees
// this interface so the tick loop itself never carries a build tag.
type previewSink interface {
	PushFrame(*Surface)
	FetchEvent() ([]RawInput, error)
}

// SetPreview attaches an optional demo window that mirrors the composited
// surface and injects synthetic pointer/keyboard input, independent of any
// real scheme-backed display.
func (c *Compositor) SetPreview(p previewSink) { c.preview = p }

// Bounds reports the global surface's pixel size, for sizing an attached
// preview window to match.
func (c *Compositor) Bounds() (width, height int) { return c.global.Width, c.global.Height }

// NewCompositor sizes the global surface and cursor to the bounding box of
// every attached display, in global (desktop) space.
func NewCompositor(displays []*Display, scheme *Scheme, plugins *PluginManager, log *zap.SugaredLogger) *Compositor {
	bounds := unionRect(displays)
	return &Compositor{
		frames:   make(map[uint64]*Frame),
		displays: displays,
		global:   NewSurface(int(bounds.W), int(bounds.H)),
		cursor:   NewCursor(int32(bounds.W), int32(bounds.H)),
		input:    NewInputState(),
		scheme:   scheme,
		plugins:  plugins,
		log:      log,
		lastTick: time.Now(),
	}
}

func unionRect(displays []*Display) client.Rect {
	if len(displays) == 0 {
		return client.Rect{W: 1, H: 1}
	}
	r := displays[0].Rect()
	minX, minY := r.X, r.Y
	maxX, maxY := r.X+int32(r.W), r.Y+int32(r.H)
	for _, d := range displays[1:] {
		dr := d.Rect()
		minX, minY = min32(minX, dr.X), min32(minY, dr.Y)
		maxX, maxY = max32(maxX, dr.X+int32(dr.W)), max32(maxY, dr.Y+int32(dr.H))
	}
	return client.Rect{X: minX, Y: minY, W: uint32(maxX - minX), H: uint32(maxY - minY)}
}

// Run drives the loop until stop is closed. The inter-tick sleep is the
// loop's third and only truly blocking suspension point.
func (c *Compositor) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		c.Tick()
		time.Sleep(tickInterval)
	}
}

// Tick performs the five numbered steps of the compositor's tick algorithm.
func (c *Compositor) Tick() {
	c.drainScheme()
	c.drainInput()

	if time.Since(c.lastTick) >= tickInterval {
		c.compose()
	}

	if c.plugins != nil {
		c.plugins.Tick(c)
		for _, ev := range c.pluginEvents {
			c.plugins.FanOut(ev)
		}
	}
	c.pluginEvents = c.pluginEvents[:0]

	c.lastTick = time.Now()
}

func (c *Compositor) drainScheme() {
	if c.scheme == nil {
		return
	}
	select {
	case req := <-c.scheme.Inbox():
		req.reply <- c.handleSchemeRequest(req)
	default:
	}
}

func (c *Compositor) drainInput() {
	for _, d := range c.displays {
		records, err := d.FetchEvent()
		if err != nil {
			c.log.Warnw("display input read failed", "error", err)
			continue
		}
		for _, rec := range records {
			c.handleTranslated(c.input.Apply(rec))
		}
	}
	if c.preview != nil {
		records, err := c.preview.FetchEvent()
		if err != nil {
			c.log.Warnw("preview input read failed", "error", err)
			return
		}
		for _, rec := range records {
			c.handleTranslated(c.input.Apply(rec))
		}
	}
}

// handleTranslated applies one translated input record: motion moves the
// cursor and triggers an immediate per-display cursor redraw; everything is
// also routed to the currently targeted frame and fanned out to plugins.
func (c *Compositor) handleTranslated(tr Translated) {
	if tr.Input == nil {
		return
	}

	switch v := tr.Input.(type) {
	case client.InputMouseMove:
		c.cursor.Move(v.X, v.Y)
		for _, d := range c.displays {
			if err := d.DrawCursor(c.cursor); err != nil {
				c.log.Warnw("cursor redraw failed", "error", err)
			}
		}
		pos := c.cursor.Pos()
		RouteInput(c.pointerFrames(), pos, client.InputMouseMove{X: pos.X, Y: pos.Y})
		c.pluginEvents = append(c.pluginEvents, PluginEvent{Kind: PluginMouseMove, Pos: pos})
		return
	case client.InputScroll:
		RouteInput(c.pointerFrames(), c.cursor.Pos(), tr.Input)
		c.pluginEvents = append(c.pluginEvents, PluginEvent{Kind: PluginScroll, DX: v.DX, DY: v.DY})
	default:
		RouteInput(c.pointerFrames(), c.cursor.Pos(), tr.Input)
	}

	for _, e := range tr.Edges {
		c.pluginEvents = append(c.pluginEvents, edgeToPluginEvent(e))
	}
}

func edgeToPluginEvent(e Edge) PluginEvent {
	if e.IsKey {
		kind := PluginKeyUp
		if e.Pressed {
			kind = PluginKeyDown
		}
		return PluginEvent{Kind: kind, Key: e.Key}
	}
	kind := PluginMouseUp
	if e.Pressed {
		kind = PluginMouseDown
	}
	return PluginEvent{Kind: kind, Button: e.Button}
}

// compose clears the global surface, draws every frame in painter order,
// paints the cursor on top, then asks each display to copy its region out.
func (c *Compositor) compose() {
	c.global.Clear(0xff000000)
	for _, f := range c.paintOrder() {
		f.Draw(c.global)
	}

	glyph := c.cursor.Glyph()
	pos := c.cursor.Pos()
	for gy := 0; gy < glyph.Height; gy++ {
		for gx := 0; gx < glyph.Width; gx++ {
			c.global.BlendPixel(int(pos.X)+gx, int(pos.Y)+gy, glyph.Get(gx, gy))
		}
	}

	damage := client.Rect{X: 0, Y: 0, W: uint32(c.global.Width), H: uint32(c.global.Height)}
	for _, d := range c.displays {
		if err := d.Draw(c.global, damage); err != nil {
			c.log.Warnw("display draw failed", "error", err)
		}
	}

	if c.preview != nil {
		c.preview.PushFrame(c.global)
	}
}

// paintOrder implements the spec's painter-order design note: Back-locked
// frames first, then Auto, then Front-locked, each bucket sorted by id so
// the order is deterministic and matches creation order within a bucket.
func (c *Compositor) paintOrder() []*Frame {
	var back, auto, front []*Frame
	for _, f := range c.frames {
		if f.Minimised() {
			continue
		}
		switch f.ZLock() {
		case client.ZBack:
			back = append(back, f)
		case client.ZFront:
			front = append(front, f)
		default:
			auto = append(auto, f)
		}
	}
	byID := func(fs []*Frame) {
		sort.Slice(fs, func(i, j int) bool { return fs[i].ID < fs[j].ID })
	}
	byID(back)
	byID(auto)
	byID(front)
	return append(append(back, auto...), front...)
}

// pointerFrames is the painter-order list FrameUnderCursor walks to find the
// topmost frame; this is the same order compose() draws in, so "topmost" in
// painting matches "topmost" in hit-testing.
func (c *Compositor) pointerFrames() []*Frame { return c.paintOrder() }

func (c *Compositor) allocID() uint64 {
	c.nextID++
	return c.nextID
}

// CreateFrame satisfies CompositorOps for the plugin bridge, and is also the
// body of the scheme's open() handler.
func (c *Compositor) CreateFrame(opts FrameOptions) (Messenger, error) {
	id := c.allocID()
	f, err := NewFrame(opts, id)
	if err != nil {
		return Messenger{}, err
	}
	c.frames[id] = f
	c.pluginEvents = append(c.pluginEvents, PluginEvent{Kind: PluginFrameCreated, Frame: f.Messenger()})
	return f.Messenger(), nil
}

// FrameByID satisfies CompositorOps.
func (c *Compositor) FrameByID(id uint64) (Messenger, bool) {
	f, ok := c.frames[id]
	if !ok {
		return Messenger{}, false
	}
	return f.Messenger(), true
}

// CloseFrame satisfies CompositorOps and is also the scheme's close() handler.
func (c *Compositor) CloseFrame(id uint64) error {
	f, ok := c.frames[id]
	if !ok {
		return fmt.Errorf("%w: frame %d", ErrNotFound, id)
	}
	delete(c.frames, id)
	c.pluginEvents = append(c.pluginEvents, PluginEvent{Kind: PluginFrameDestroyed, Frame: f.Messenger()})
	return f.Close()
}

// Mouse satisfies CompositorOps.
func (c *Compositor) Mouse() (Point, client.MouseButton) { return c.cursor.Pos(), c.input.buttons }

// Keys satisfies CompositorOps.
func (c *Compositor) Keys() []uint16 { return sortedKeys(c.input.keys) }

// PaintBuffer satisfies CompositorOps: a plugin blits raw ARGB8888 pixels
// directly into the global surface, ahead of the next compose.
func (c *Compositor) PaintBuffer(buf []byte, pos Point, size Size) error {
	if len(buf) != int(size.W)*int(size.H)*4 {
		return fmt.Errorf("%w: paint_buffer: buffer length %d does not match %dx%d", ErrInvalidArgument, len(buf), size.W, size.H)
	}
	src := WrapSurface(buf, int(size.W), int(size.H))
	CopySurface(c.global, src, int(pos.X), int(pos.Y))
	return nil
}

// handleSchemeRequest dispatches one decoded packet against compositor
// state, run synchronously inside the tick that drained it. This is the
// only place scheme ops actually touch frames/displays.
func (c *Compositor) handleSchemeRequest(req schemeRequest) schemeReply {
	switch req.op {
	case opOpen:
		return c.schemeOpen(req)
	case opFmap:
		return c.schemeFmap(req)
	case opFsync:
		return c.schemeFsync(req)
	case opClose:
		return c.schemeClose(req)
	case opRead:
		return c.schemeRead(req)
	case opWrite:
		return c.schemeWrite(req)
	default:
		return errReply(fmt.Errorf("%w: unknown scheme op %d", ErrInvalidArgument, req.op))
	}
}

func (c *Compositor) schemeOpen(req schemeRequest) schemeReply {
	opts, err := ParseFrameOptions(string(req.payload))
	if err != nil {
		return errReply(err)
	}
	m, err := c.CreateFrame(opts)
	if err != nil {
		return errReply(err)
	}
	payload := make([]byte, 8)
	binary.BigEndian.PutUint64(payload, m.ID)
	return okReply(payload)
}

// schemeFmap decodes a {offset u64, size u64} map request, validates it
// fits within the frame's buffer rounded up to a page, and replies with the
// buffer length plus the frame's memfd, which Scheme.deliver duplicates and
// passes over SCM_RIGHTS.
func (c *Compositor) schemeFmap(req schemeRequest) schemeReply {
	f, ok := c.frames[req.id]
	if !ok {
		return errReply(fmt.Errorf("%w: frame %d", ErrNotFound, req.id))
	}
	if len(req.payload) < 16 {
		return errReply(fmt.Errorf("%w: fmap: short payload", ErrInvalidArgument))
	}
	offset := binary.BigEndian.Uint64(req.payload[0:8])
	size := binary.BigEndian.Uint64(req.payload[8:16])

	fd, length := f.MemFD()
	pageSize := uint64(os.Getpagesize())
	rounded := (uint64(length) + pageSize - 1) / pageSize * pageSize
	if offset+size > rounded {
		return errReply(fmt.Errorf("%w: fmap: offset+size %d exceeds mapped length %d", ErrNoSpace, offset+size, rounded))
	}

	payload := make([]byte, 8)
	binary.BigEndian.PutUint64(payload, uint64(length))
	return schemeReply{status: statusOK, payload: payload, fd: fd}
}

func (c *Compositor) schemeFsync(req schemeRequest) schemeReply {
	if err := c.fsyncFrame(req.id); err != nil {
		return errReply(err)
	}
	return okReply(nil)
}

func (c *Compositor) schemeClose(req schemeRequest) schemeReply {
	if err := c.CloseFrame(req.id); err != nil {
		return errReply(err)
	}
	return okReply(nil)
}

func (c *Compositor) schemeRead(req schemeRequest) schemeReply {
	f, ok := c.frames[req.id]
	if !ok {
		return errReply(fmt.Errorf("%w: frame %d", ErrNotFound, req.id))
	}
	ev, ok := f.PopEvent()
	if !ok {
		return errReply(ErrWouldBlock)
	}
	encoded, err := client.EncodeFrameEvent(ev)
	if err != nil {
		return errReply(fmt.Errorf("%w: encode frame event: %v", ErrInvalidArgument, err))
	}
	return okReply(encoded)
}

func (c *Compositor) schemeWrite(req schemeRequest) schemeReply {
	f, ok := c.frames[req.id]
	if !ok {
		return errReply(fmt.Errorf("%w: frame %d", ErrNotFound, req.id))
	}
	fr, err := client.DecodeFrameRequest(req.payload)
	if err != nil {
		return errReply(fmt.Errorf("%w: decode frame request: %v", ErrInvalidArgument, err))
	}
	if err := f.HandleRequest(fr, func() client.Rect { return c.resolveFullscreenRect(f) }); err != nil {
		return errReply(err)
	}
	return okReply(nil)
}

// resolveFullscreenRect picks the display containing the frame's current
// origin, falling back to the first display, or a zero rect if there are
// none attached.
func (c *Compositor) resolveFullscreenRect(f *Frame) client.Rect {
	origin := f.Rect()
	for _, d := range c.displays {
		if Contains(d.Rect(), Point{X: origin.X, Y: origin.Y}) {
			return d.Rect()
		}
	}
	if len(c.displays) > 0 {
		return c.displays[0].Rect()
	}
	return client.Rect{}
}

// fsyncFrame implements the spec's fsync path: touch, re-draw into the
// global surface, enqueue a plugin update event, then for every display
// whose rect contains the frame's origin sync the damage rect and redraw
// the cursor on top of it so the cursor stays visible.
func (c *Compositor) fsyncFrame(id uint64) error {
	f, ok := c.frames[id]
	if !ok {
		return fmt.Errorf("%w: frame %d", ErrNotFound, id)
	}
	f.Touch()
	f.Draw(c.global)
	c.pluginEvents = append(c.pluginEvents, PluginEvent{Kind: PluginFrameUpdated, Frame: f.Messenger()})

	rect := f.Rect()
	for _, d := range c.displays {
		if !Contains(d.Rect(), Point{X: rect.X, Y: rect.Y}) {
			continue
		}
		if err := d.Draw(c.global, rect); err != nil {
			return err
		}
		if err := d.DrawCursor(c.cursor); err != nil {
			return err
		}
	}
	return nil
}

// Close tears down the scheme, plugin manager, every display, and every
// remaining frame.
func (c *Compositor) Close() error {
	if c.scheme != nil {
		c.scheme.Close()
	}
	if c.plugins != nil {
		c.plugins.Close()
	}
	for _, d := range c.displays {
		d.Close()
	}
	for _, f := range c.frames {
		f.Close()
	}
	return nil
}
