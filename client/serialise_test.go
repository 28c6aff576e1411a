package client

import "testing"

func TestZIndexRoundTrip(t *testing.T) {
	cases := []struct {
		in   ZIndex
		want ZIndex
	}{
		{ZAuto, ZAuto},
		{ZBack, ZBack},
		{ZFront, ZFront},
	}
	for _, c := range cases {
		got := DecodeZIndex(EncodeZIndex(c.in))
		if got != c.want {
			t.Fatalf("ZIndex(%v) round trip = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestZIndexDecodeBands(t *testing.T) {
	cases := []struct {
		b    byte
		want ZIndex
	}{
		{0, ZAuto}, {85, ZAuto},
		{86, ZBack}, {170, ZBack},
		{171, ZFront}, {255, ZFront},
	}
	for _, c := range cases {
		if got := DecodeZIndex(c.b); got != c.want {
			t.Fatalf("DecodeZIndex(%d) = %v, want %v", c.b, got, c.want)
		}
	}
}

func TestInputRoundTrip(t *testing.T) {
	cases := []Input{
		InputMouseMove{X: -5, Y: 200},
		InputMouseButtons{Buttons: ButtonLeft | ButtonRight},
		InputScroll{DX: 1.5, DY: -2.25},
		InputKeys{Keys: []uint16{30, 31, 1000}},
		InputKeys{Keys: nil},
	}
	for _, in := range cases {
		buf, err := EncodeInput(in)
		if err != nil {
			t.Fatalf("EncodeInput(%#v): %v", in, err)
		}
		got, err := DecodeInput(buf)
		if err != nil {
			t.Fatalf("DecodeInput(%x): %v", buf, err)
		}
		if !inputEqual(got, in) {
			t.Fatalf("round trip = %#v, want %#v", got, in)
		}
	}
}

func inputEqual(a, b Input) bool {
	switch av := a.(type) {
	case InputMouseMove:
		bv, ok := b.(InputMouseMove)
		return ok && av == bv
	case InputMouseButtons:
		bv, ok := b.(InputMouseButtons)
		return ok && av == bv
	case InputScroll:
		bv, ok := b.(InputScroll)
		return ok && av == bv
	case InputKeys:
		bv, ok := b.(InputKeys)
		if !ok || len(av.Keys) != len(bv.Keys) {
			return false
		}
		for i := range av.Keys {
			if av.Keys[i] != bv.Keys[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func TestFrameEventRoundTrip(t *testing.T) {
	cases := []FrameEvent{
		EventPosition{Rect: Rect{X: -1, Y: 2, W: 800, H: 600}},
		EventVisible{Visible: true},
		EventVisible{Visible: false},
		EventInput{Input: InputMouseMove{X: 1, Y: 2}},
		EventRedraw{},
		EventClose{},
		EventFlags{Flags: DefaultFrameFlags},
	}
	for _, ev := range cases {
		buf, err := EncodeFrameEvent(ev)
		if err != nil {
			t.Fatalf("EncodeFrameEvent(%#v): %v", ev, err)
		}
		got, err := DecodeFrameEvent(buf)
		if err != nil {
			t.Fatalf("DecodeFrameEvent(%x): %v", buf, err)
		}
		if got != ev {
			if gi, ok := got.(EventInput); ok {
				if ei, ok := ev.(EventInput); ok && inputEqual(gi.Input, ei.Input) {
					continue
				}
			}
			t.Fatalf("round trip = %#v, want %#v", got, ev)
		}
	}
}

func TestFrameRequestRoundTrip(t *testing.T) {
	cases := []FrameRequest{
		RequestPosition{Rect: Rect{X: 10, Y: 20, W: 300, H: 400}},
		RequestFullscreen{Fullscreen: true},
		RequestFlags{Flags: FlagClose | FlagResizeX},
		RequestMinimise{Minimise: true},
		RequestZLock{ZIndex: ZFront},
		RequestClose{},
	}
	for _, req := range cases {
		buf, err := EncodeFrameRequest(req)
		if err != nil {
			t.Fatalf("EncodeFrameRequest(%#v): %v", req, err)
		}
		got, err := DecodeFrameRequest(buf)
		if err != nil {
			t.Fatalf("DecodeFrameRequest(%x): %v", buf, err)
		}
		if got != req {
			t.Fatalf("round trip = %#v, want %#v", got, req)
		}
	}
}

func TestDecodeFrameEventUnknownTag(t *testing.T) {
	if _, err := DecodeFrameEvent([]byte{0xAA}); err == nil {
		t.Fatalf("expected error for unknown tag")
	}
}

func TestDecodeFrameEventEmpty(t *testing.T) {
	if _, err := DecodeFrameEvent(nil); err == nil {
		t.Fatalf("expected error for empty buffer")
	}
}

func TestHexRoundTrip(t *testing.T) {
	cases := []string{"", "a", "hello world", "&=;"}
	for _, s := range cases {
		got, err := Decode(Encode(s))
		if err != nil {
			t.Fatalf("Decode(Encode(%q)): %v", s, err)
		}
		if got != s {
			t.Fatalf("round trip = %q, want %q", got, s)
		}
	}
}

func TestDecodeHexInvalid(t *testing.T) {
	if _, err := Decode("ABC"); err == nil {
		t.Fatalf("expected error for odd-length hex")
	}
	if _, err := Decode("ZZ"); err == nil {
		t.Fatalf("expected error for non-hex digits")
	}
}
