// serialise.go - big-endian wire encoding for Input, FrameEvent and FrameRequest
package client

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ZIndex decode bands: a byte in [0,85] means Auto, [86,170] means Back,
// [171,255] means Front. Encoding picks one representative byte per state.
func EncodeZIndex(z ZIndex) byte {
	switch z {
	case ZBack:
		return 0x88
	case ZFront:
		return 0xFF
	default:
		return 0x00
	}
}

func DecodeZIndex(b byte) ZIndex {
	switch {
	case b <= 85:
		return ZAuto
	case b <= 170:
		return ZBack
	default:
		return ZFront
	}
}

func putF64(buf []byte, v float64) {
	binary.BigEndian.PutUint64(buf, math.Float64bits(v))
}

func getF64(buf []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(buf))
}

// EncodeInput serialises a raw input record: tag byte followed by payload.
func EncodeInput(in Input) ([]byte, error) {
	switch v := in.(type) {
	case InputMouseMove:
		buf := make([]byte, 9)
		buf[0] = 0x00
		binary.BigEndian.PutUint32(buf[1:5], uint32(v.X))
		binary.BigEndian.PutUint32(buf[5:9], uint32(v.Y))
		return buf, nil
	case InputMouseButtons:
		return []byte{0x01, byte(v.Buttons)}, nil
	case InputScroll:
		buf := make([]byte, 17)
		buf[0] = 0x02
		putF64(buf[1:9], v.DX)
		putF64(buf[9:17], v.DY)
		return buf, nil
	case InputKeys:
		if len(v.Keys) > math.MaxUint16 {
			return nil, fmt.Errorf("client: too many held keys (%d)", len(v.Keys))
		}
		buf := make([]byte, 3+2*len(v.Keys))
		buf[0] = 0x03
		binary.BigEndian.PutUint16(buf[1:3], uint16(len(v.Keys)))
		for i, k := range v.Keys {
			binary.BigEndian.PutUint16(buf[3+2*i:5+2*i], k)
		}
		return buf, nil
	default:
		return nil, fmt.Errorf("client: unknown Input variant %T", in)
	}
}

// DecodeInput parses a raw input record previously produced by EncodeInput.
func DecodeInput(buf []byte) (Input, error) {
	if len(buf) < 1 {
		return nil, fmt.Errorf("client: empty input buffer")
	}
	switch buf[0] {
	case 0x00:
		if len(buf) < 9 {
			return nil, fmt.Errorf("client: short MouseMove payload")
		}
		return InputMouseMove{
			X: int32(binary.BigEndian.Uint32(buf[1:5])),
			Y: int32(binary.BigEndian.Uint32(buf[5:9])),
		}, nil
	case 0x01:
		if len(buf) < 2 {
			return nil, fmt.Errorf("client: short MouseButtons payload")
		}
		return InputMouseButtons{Buttons: MouseButton(buf[1])}, nil
	case 0x02:
		if len(buf) < 17 {
			return nil, fmt.Errorf("client: short Scroll payload")
		}
		return InputScroll{DX: getF64(buf[1:9]), DY: getF64(buf[9:17])}, nil
	case 0x03:
		if len(buf) < 3 {
			return nil, fmt.Errorf("client: short Keys header")
		}
		n := int(binary.BigEndian.Uint16(buf[1:3]))
		if len(buf) < 3+2*n {
			return nil, fmt.Errorf("client: short Keys payload")
		}
		keys := make([]uint16, n)
		for i := range keys {
			keys[i] = binary.BigEndian.Uint16(buf[3+2*i : 5+2*i])
		}
		return InputKeys{Keys: keys}, nil
	default:
		return nil, fmt.Errorf("client: unknown Input tag 0x%02x", buf[0])
	}
}

func putRect(buf []byte, r Rect) {
	binary.BigEndian.PutUint32(buf[0:4], uint32(r.X))
	binary.BigEndian.PutUint32(buf[4:8], uint32(r.Y))
	binary.BigEndian.PutUint32(buf[8:12], r.W)
	binary.BigEndian.PutUint32(buf[12:16], r.H)
}

func getRect(buf []byte) Rect {
	return Rect{
		X: int32(binary.BigEndian.Uint32(buf[0:4])),
		Y: int32(binary.BigEndian.Uint32(buf[4:8])),
		W: binary.BigEndian.Uint32(buf[8:12]),
		H: binary.BigEndian.Uint32(buf[12:16]),
	}
}

func putBool(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// EncodeFrameEvent serialises a compositor->client event: tag byte + payload.
func EncodeFrameEvent(ev FrameEvent) ([]byte, error) {
	switch v := ev.(type) {
	case EventPosition:
		buf := make([]byte, 17)
		buf[0] = 0x00
		putRect(buf[1:], v.Rect)
		return buf, nil
	case EventVisible:
		return []byte{0x01, putBool(v.Visible)}, nil
	case EventInput:
		payload, err := EncodeInput(v.Input)
		if err != nil {
			return nil, err
		}
		return append([]byte{0x02}, payload...), nil
	case EventRedraw:
		return []byte{0x03}, nil
	case EventClose:
		return []byte{0x04}, nil
	case EventFlags:
		buf := make([]byte, 9)
		buf[0] = 0x05
		binary.BigEndian.PutUint64(buf[1:9], uint64(v.Flags))
		return buf, nil
	default:
		return nil, fmt.Errorf("client: unknown FrameEvent variant %T", ev)
	}
}

// DecodeFrameEvent parses a compositor->client event.
func DecodeFrameEvent(buf []byte) (FrameEvent, error) {
	if len(buf) < 1 {
		return nil, fmt.Errorf("client: empty FrameEvent buffer")
	}
	switch buf[0] {
	case 0x00:
		if len(buf) < 17 {
			return nil, fmt.Errorf("client: short Position payload")
		}
		return EventPosition{Rect: getRect(buf[1:17])}, nil
	case 0x01:
		if len(buf) < 2 {
			return nil, fmt.Errorf("client: short Visible payload")
		}
		return EventVisible{Visible: buf[1] != 0}, nil
	case 0x02:
		in, err := DecodeInput(buf[1:])
		if err != nil {
			return nil, err
		}
		return EventInput{Input: in}, nil
	case 0x03:
		return EventRedraw{}, nil
	case 0x04:
		return EventClose{}, nil
	case 0x05:
		if len(buf) < 9 {
			return nil, fmt.Errorf("client: short Flags payload")
		}
		return EventFlags{Flags: FrameFlags(binary.BigEndian.Uint64(buf[1:9]))}, nil
	default:
		return nil, fmt.Errorf("client: unknown FrameEvent tag 0x%02x", buf[0])
	}
}

// EncodeFrameRequest serialises a client->compositor request.
func EncodeFrameRequest(req FrameRequest) ([]byte, error) {
	switch v := req.(type) {
	case RequestPosition:
		buf := make([]byte, 17)
		buf[0] = 0x00
		putRect(buf[1:], v.Rect)
		return buf, nil
	case RequestFullscreen:
		return []byte{0x01, putBool(v.Fullscreen)}, nil
	case RequestFlags:
		buf := make([]byte, 9)
		buf[0] = 0x02
		binary.BigEndian.PutUint64(buf[1:9], uint64(v.Flags))
		return buf, nil
	case RequestMinimise:
		return []byte{0x03, putBool(v.Minimise)}, nil
	case RequestZLock:
		return []byte{0x04, EncodeZIndex(v.ZIndex)}, nil
	case RequestClose:
		return []byte{0x05}, nil
	default:
		return nil, fmt.Errorf("client: unknown FrameRequest variant %T", req)
	}
}

// DecodeFrameRequest parses a client->compositor request.
func DecodeFrameRequest(buf []byte) (FrameRequest, error) {
	if len(buf) < 1 {
		return nil, fmt.Errorf("client: empty FrameRequest buffer")
	}
	switch buf[0] {
	case 0x00:
		if len(buf) < 17 {
			return nil, fmt.Errorf("client: short Position payload")
		}
		return RequestPosition{Rect: getRect(buf[1:17])}, nil
	case 0x01:
		if len(buf) < 2 {
			return nil, fmt.Errorf("client: short Fullscreen payload")
		}
		return RequestFullscreen{Fullscreen: buf[1] != 0}, nil
	case 0x02:
		if len(buf) < 9 {
			return nil, fmt.Errorf("client: short Flags payload")
		}
		return RequestFlags{Flags: FrameFlags(binary.BigEndian.Uint64(buf[1:9]))}, nil
	case 0x03:
		if len(buf) < 2 {
			return nil, fmt.Errorf("client: short Minimise payload")
		}
		return RequestMinimise{Minimise: buf[1] != 0}, nil
	case 0x04:
		if len(buf) < 2 {
			return nil, fmt.Errorf("client: short ZLock payload")
		}
		return RequestZLock{ZIndex: DecodeZIndex(buf[1])}, nil
	case 0x05:
		return RequestClose{}, nil
	default:
		return nil, fmt.Errorf("client: unknown FrameRequest tag 0x%02x", buf[0])
	}
}
