// input.go - translates raw (code, a, b) records read from a display's
// input sidecar into wire-level client.Input values, synthesizes
// press/release edges for the plugin bridge, and picks the frame an event
// should be routed to.
package main

import (
	"sort"

	"github.com/jcake/orbital-compositor/client"
)

// Raw input codes this compositor assigns on its input sidecar. Code 11 is
// fixed by the spec (pointer motion delta); the rest are this compositor's
// own assignment for the codes left platform-defined. Keys are packed as a
// 64-bit held-scancode mask in `a` rather than one record per key, since a
// RawInput record only carries two int64 payload fields.
const (
	codePointerMotion int64 = 11
	codeMouseButtons  int64 = 12
	codeScroll        int64 = 13
	codeKeys          int64 = 14
)

// InputState tracks the previously-delivered button and key level-sets so
// a change can be diffed into press/release edges for plugin callbacks,
// without altering the level-set contract clients see on the wire: the
// client always gets the full new set, never a delta.
type InputState struct {
	buttons client.MouseButton
	keys    map[uint16]bool
}

// NewInputState returns an InputState with an empty (all-released) level-set.
func NewInputState() *InputState {
	return &InputState{keys: make(map[uint16]bool)}
}

// Edge is a synthesized press/release transition for the plugin bridge.
// It has no wire representation; plugins see it via on_mouse_down/up or
// on_key_down/up, clients see only the replaced level-set.
type Edge struct {
	Button  client.MouseButton
	Key     uint16
	IsKey   bool
	Pressed bool
}

// Translated is one raw record resolved into a client.Input, plus whatever
// edges it produced for plugins. For pointer motion the Input holds the raw
// delta; the compositor routes the cursor's absolute position instead.
type Translated struct {
	Input client.Input
	Edges []Edge
}

// Apply translates one raw record and updates the held level-sets. Pointer
// motion carries through as a delta; callers accumulate it into the cursor
// themselves rather than here, since the cursor clamps to display-union
// bounds InputState has no knowledge of.
func (s *InputState) Apply(rec RawInput) Translated {
	switch rec.Code {
	case codePointerMotion:
		return Translated{Input: client.InputMouseMove{X: int32(rec.A), Y: int32(rec.B)}}

	case codeMouseButtons:
		next := client.MouseButton(rec.A)
		edges := diffButtons(s.buttons, next)
		s.buttons = next
		return Translated{Input: client.InputMouseButtons{Buttons: next}, Edges: edges}

	case codeScroll:
		return Translated{Input: client.InputScroll{DX: float64(rec.A), DY: float64(rec.B)}}

	case codeKeys:
		next := keysFromMask(uint64(rec.A))
		edges := diffKeys(s.keys, next)
		s.keys = next
		return Translated{Input: client.InputKeys{Keys: sortedKeys(next)}, Edges: edges}

	default:
		return Translated{}
	}
}

func keysFromMask(mask uint64) map[uint16]bool {
	held := make(map[uint16]bool)
	for bit := uint16(0); bit < 64; bit++ {
		if mask&(1<<bit) != 0 {
			held[bit] = true
		}
	}
	return held
}

func sortedKeys(held map[uint16]bool) []uint16 {
	keys := make([]uint16, 0, len(held))
	for k := range held {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func diffButtons(prev, next client.MouseButton) []Edge {
	var edges []Edge
	for _, b := range []client.MouseButton{client.ButtonRight, client.ButtonMiddle, client.ButtonLeft} {
		was, is := prev&b != 0, next&b != 0
		if was != is {
			edges = append(edges, Edge{Button: b, Pressed: is})
		}
	}
	return edges
}

func diffKeys(prev, next map[uint16]bool) []Edge {
	var edges []Edge
	for k := range next {
		if !prev[k] {
			edges = append(edges, Edge{Key: k, IsKey: true, Pressed: true})
		}
	}
	for k := range prev {
		if !next[k] {
			edges = append(edges, Edge{Key: k, IsKey: true, Pressed: false})
		}
	}
	return edges
}

// FrameUnderCursor returns the topmost frame whose rect contains pos, given
// frames in back-to-front painter order, or nil if none does. This single
// definition serves both roles the spec names: "the currently-focused
// frame" (keyboard/scroll target) and "the frame under the cursor"
// (pointer target) are the same topmost-rect-containing-cursor frame.
func FrameUnderCursor(frames []*Frame, pos Point) *Frame {
	var top *Frame
	for _, f := range frames {
		if Contains(f.Rect(), pos) {
			top = f
		}
	}
	return top
}

// RouteInput enqueues an EventInput on the frame under the cursor, if any.
// An untargeted event is simply dropped on the wire side; the caller still
// fans any Edges from the same Translated out to plugins regardless.
func RouteInput(frames []*Frame, cursor Point, in client.Input) {
	target := FrameUnderCursor(frames, cursor)
	if target == nil {
		return
	}
	target.enqueue(client.EventInput{Input: in})
}
