// pluginbridge.go - scripted plugin callbacks and the request/response
// bridge that lets a script ask the compositor to do something without
// ever calling back into the scripting runtime from inside compositor
// state mutation. Modelled on the ticket/correlation-key bookkeeping
// coprocessor_manager.go uses for its worker request queue.
package main

import (
	"fmt"
	"os"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/jcake/orbital-compositor/client"
)

// CompositorOps is the surface the plugin bridge is allowed to call into.
// Kept as an interface (rather than a concrete *Compositor) so this file
// has no import-order dependency on compositor.go.
type CompositorOps interface {
	CreateFrame(opts FrameOptions) (Messenger, error)
	FrameByID(id uint64) (Messenger, bool)
	CloseFrame(id uint64) error
	Mouse() (Point, client.MouseButton)
	Keys() []uint16
	PaintBuffer(buf []byte, pos Point, size Size) error
}

type pluginRequestKind int

const (
	reqCreateFrame pluginRequestKind = iota
	reqGetFrameByID
	reqCloseFrame
	reqGetMouse
	reqGetKeys
	reqPaintBuffer
)

type pluginRequest struct {
	key  uint64
	kind pluginRequestKind

	createOpts string
	frameID    uint64
	buf        []byte
	pos        Point
	size       Size
}

type pluginResponse struct {
	key       uint64
	kind      pluginRequestKind
	err       error
	messenger Messenger
	found     bool
	mousePos  Point
	buttons   client.MouseButton
	keys      []uint16
}

// Plugin is one loaded script: its own Lua context, a correlation-key
// counter, the registered callbacks awaiting a response, and the two
// queues the request/response protocol drains each tick.
type Plugin struct {
	name string
	path string
	L    *lua.LState
	log  *zap.SugaredLogger

	nextKey   uint64
	callbacks map[uint64]*lua.LFunction
	pending   []pluginRequest
	responses []pluginResponse
}

// LoadPlugin reads and runs a script, registers the host-exposed
// functions, and invokes on_plugin_load if the script defines it.
func LoadPlugin(path string, log *zap.SugaredLogger) (*Plugin, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read plugin %s: %v", ErrIO, path, err)
	}

	p := &Plugin{
		name:      path,
		path:      path,
		L:         lua.NewState(),
		log:       log,
		callbacks: make(map[uint64]*lua.LFunction),
	}
	p.registerHostFunctions()

	if err := p.L.DoString(string(src)); err != nil {
		p.L.Close()
		return nil, fmt.Errorf("%w: run plugin %s: %v", ErrInvalidArgument, path, err)
	}
	p.invokeIfDefined("on_plugin_load")
	return p, nil
}

// Unload invokes on_before_plugin_unload if defined, then closes the
// script's Lua state.
func (p *Plugin) Unload() {
	p.invokeIfDefined("on_before_plugin_unload")
	p.L.Close()
}

func (p *Plugin) allocKey() uint64 {
	p.nextKey++
	return p.nextKey
}

func (p *Plugin) invokeIfDefined(name string, args ...lua.LValue) {
	fn, ok := p.L.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return
	}
	if err := p.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...); err != nil {
		p.log.Warnw("plugin callback failed", "plugin", p.name, "callback", name, "error", err)
	}
}

// registerHostFunctions wires the callable surface a script sees. Every
// one of these enqueues a request and returns immediately; the actual
// compositor-side work happens in PluginManager.Tick, never inline here,
// so the script never reenters compositor state mutation.
func (p *Plugin) registerHostFunctions() {
	p.L.SetGlobal("create_frame", p.L.NewFunction(func(L *lua.LState) int {
		opts := L.CheckString(1)
		cb := L.CheckFunction(2)
		key := p.allocKey()
		p.callbacks[key] = cb
		p.pending = append(p.pending, pluginRequest{key: key, kind: reqCreateFrame, createOpts: opts})
		return 0
	}))

	p.L.SetGlobal("get_frame_by_id", p.L.NewFunction(func(L *lua.LState) int {
		id := uint64(L.CheckInt64(1))
		cb := L.CheckFunction(2)
		key := p.allocKey()
		p.callbacks[key] = cb
		p.pending = append(p.pending, pluginRequest{key: key, kind: reqGetFrameByID, frameID: id})
		return 0
	}))

	p.L.SetGlobal("close_frame", p.L.NewFunction(func(L *lua.LState) int {
		id := uint64(L.CheckInt64(1))
		cb := L.CheckFunction(2)
		key := p.allocKey()
		p.callbacks[key] = cb
		p.pending = append(p.pending, pluginRequest{key: key, kind: reqCloseFrame, frameID: id})
		return 0
	}))

	p.L.SetGlobal("get_mouse", p.L.NewFunction(func(L *lua.LState) int {
		cb := L.CheckFunction(1)
		key := p.allocKey()
		p.callbacks[key] = cb
		p.pending = append(p.pending, pluginRequest{key: key, kind: reqGetMouse})
		return 0
	}))

	p.L.SetGlobal("get_keys", p.L.NewFunction(func(L *lua.LState) int {
		cb := L.CheckFunction(1)
		key := p.allocKey()
		p.callbacks[key] = cb
		p.pending = append(p.pending, pluginRequest{key: key, kind: reqGetKeys})
		return 0
	}))

	p.L.SetGlobal("paint_buffer", p.L.NewFunction(func(L *lua.LState) int {
		buf := L.CheckString(1)
		posTable := L.CheckTable(2)
		sizeTable := L.CheckTable(3)
		cb := L.CheckFunction(4)
		key := p.allocKey()
		p.callbacks[key] = cb
		p.pending = append(p.pending, pluginRequest{
			key: key, kind: reqPaintBuffer,
			buf:  []byte(buf),
			pos:  Point{X: int32(lua.LVAsNumber(posTable.RawGetString("x"))), Y: int32(lua.LVAsNumber(posTable.RawGetString("y")))},
			size: Size{W: uint32(lua.LVAsNumber(sizeTable.RawGetString("w"))), H: uint32(lua.LVAsNumber(sizeTable.RawGetString("h")))},
		})
		return 0
	}))
}

// PluginManager owns every loaded plugin and drives the request/response
// and event fan-out protocol once per tick.
type PluginManager struct {
	plugins []*Plugin
	log     *zap.SugaredLogger
}

// LoadPlugins loads every script path, continuing past one that fails to
// load (logged, not fatal) so a typo in one script doesn't take the
// compositor down.
func LoadPlugins(paths []string, log *zap.SugaredLogger) *PluginManager {
	m := &PluginManager{log: log}
	for _, path := range paths {
		p, err := LoadPlugin(path, log)
		if err != nil {
			log.Warnw("failed to load plugin", "path", path, "error", err)
			continue
		}
		m.plugins = append(m.plugins, p)
	}
	return m
}

// Close unloads every plugin.
func (m *PluginManager) Close() {
	for _, p := range m.plugins {
		p.Unload()
	}
}

// Tick drains every plugin's pending requests against ops, then delivers
// the responses by invoking the script's stored callbacks. A faulting
// callback is logged and never aborts the tick.
func (m *PluginManager) Tick(ops CompositorOps) {
	for _, p := range m.plugins {
		m.dispatch(p, ops)
		m.deliver(p)
	}
}

func (m *PluginManager) dispatch(p *Plugin, ops CompositorOps) {
	reqs := p.pending
	p.pending = nil
	for _, req := range reqs {
		resp := pluginResponse{key: req.key, kind: req.kind}
		switch req.kind {
		case reqCreateFrame:
			opts, err := ParseFrameOptions(req.createOpts)
			if err == nil {
				resp.messenger, err = ops.CreateFrame(opts)
			}
			resp.err = err
		case reqGetFrameByID:
			resp.messenger, resp.found = ops.FrameByID(req.frameID)
			if !resp.found {
				resp.err = fmt.Errorf("%w: frame %d", ErrNotFound, req.frameID)
			}
		case reqCloseFrame:
			resp.err = ops.CloseFrame(req.frameID)
		case reqGetMouse:
			resp.mousePos, resp.buttons = ops.Mouse()
		case reqGetKeys:
			resp.keys = ops.Keys()
		case reqPaintBuffer:
			resp.err = ops.PaintBuffer(req.buf, req.pos, req.size)
		}
		p.responses = append(p.responses, resp)
	}
}

func (m *PluginManager) deliver(p *Plugin) {
	resps := p.responses
	p.responses = nil
	for _, resp := range resps {
		cb, ok := p.callbacks[resp.key]
		if !ok {
			continue
		}
		delete(p.callbacks, resp.key)

		ok2 := resp.err == nil
		var payload lua.LValue
		if !ok2 {
			payload = lua.LString(resp.err.Error())
		} else {
			payload = responsePayload(p.L, resp)
		}
		if err := p.L.CallByParam(lua.P{Fn: cb, NRet: 0, Protect: true}, lua.LBool(ok2), payload); err != nil {
			p.log.Warnw("plugin response callback failed", "plugin", p.name, "error", err)
		}
	}
}

// responsePayload builds the table passed as a successful response's second
// callback argument; its shape depends on which host function the request
// came from, so the two position-bearing cases (a frame's rect, the
// mouse's position) never collide on the same table.
func responsePayload(L *lua.LState, resp pluginResponse) lua.LValue {
	t := L.NewTable()
	switch resp.kind {
	case reqCreateFrame, reqGetFrameByID:
		t.RawSetString("id", lua.LNumber(resp.messenger.ID))
		t.RawSetString("x", lua.LNumber(resp.messenger.Pos.X))
		t.RawSetString("y", lua.LNumber(resp.messenger.Pos.Y))
		t.RawSetString("w", lua.LNumber(resp.messenger.Size.W))
		t.RawSetString("h", lua.LNumber(resp.messenger.Size.H))
		t.RawSetString("title", lua.LString(resp.messenger.Title))
	case reqGetMouse:
		t.RawSetString("x", lua.LNumber(resp.mousePos.X))
		t.RawSetString("y", lua.LNumber(resp.mousePos.Y))
		t.RawSetString("buttons", lua.LNumber(resp.buttons))
	case reqGetKeys:
		keys := L.NewTable()
		for _, k := range resp.keys {
			keys.Append(lua.LNumber(k))
		}
		t.RawSetString("keys", keys)
	}
	return t
}

// PluginEventKind names the callback an event fans out to.
type PluginEventKind int

const (
	PluginFrameCreated PluginEventKind = iota
	PluginFrameDestroyed
	PluginFrameUpdated
	PluginMouseMove
	PluginMouseDown
	PluginMouseUp
	PluginScroll
	PluginKeyDown
	PluginKeyUp
)

var pluginEventCallback = map[PluginEventKind]string{
	PluginFrameCreated:   "on_frame_create",
	PluginFrameDestroyed: "on_frame_destroy",
	PluginFrameUpdated:   "on_frame_update",
	PluginMouseMove:      "on_mouse_move",
	PluginMouseDown:      "on_mouse_down",
	PluginMouseUp:        "on_mouse_up",
	PluginScroll:         "on_mouse_scroll",
	PluginKeyDown:        "on_key_down",
	PluginKeyUp:          "on_key_up",
}

// PluginEvent is a notification the compositor enqueues about something
// that happened; PluginManager.FanOut delivers it best-effort, in queue
// order, to every plugin that registered the matching callback.
type PluginEvent struct {
	Kind   PluginEventKind
	Frame  Messenger
	Pos    Point
	Button client.MouseButton
	Key    uint16
	DX, DY float64
}

// FanOut delivers one event to every loaded plugin's matching callback,
// if it defines one. A faulting callback is logged; the rest still run.
func (m *PluginManager) FanOut(ev PluginEvent) {
	name, ok := pluginEventCallback[ev.Kind]
	if !ok {
		return
	}
	for _, p := range m.plugins {
		p.invokeIfDefined(name, pluginEventArgs(p.L, ev)...)
	}
}

func pluginEventArgs(L *lua.LState, ev PluginEvent) []lua.LValue {
	switch ev.Kind {
	case PluginFrameCreated, PluginFrameDestroyed, PluginFrameUpdated:
		t := L.NewTable()
		t.RawSetString("id", lua.LNumber(ev.Frame.ID))
		t.RawSetString("x", lua.LNumber(ev.Frame.Pos.X))
		t.RawSetString("y", lua.LNumber(ev.Frame.Pos.Y))
		t.RawSetString("w", lua.LNumber(ev.Frame.Size.W))
		t.RawSetString("h", lua.LNumber(ev.Frame.Size.H))
		t.RawSetString("title", lua.LString(ev.Frame.Title))
		return []lua.LValue{t}
	case PluginMouseMove:
		return []lua.LValue{lua.LNumber(ev.Pos.X), lua.LNumber(ev.Pos.Y)}
	case PluginMouseDown, PluginMouseUp:
		return []lua.LValue{lua.LNumber(ev.Button)}
	case PluginScroll:
		return []lua.LValue{lua.LNumber(ev.DX), lua.LNumber(ev.DY)}
	case PluginKeyDown, PluginKeyUp:
		return []lua.LValue{lua.LNumber(ev.Key)}
	default:
		return nil
	}
}
