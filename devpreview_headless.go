//go:build headless

// devpreview_headless.go - a no-op stand-in for the ebiten preview window,
// selected when this binary is built with -tags headless (CI, a machine
// with no display server), matching the teacher's headless video backend
// build-tag pattern of compiling out the windowing dependency entirely.
package main

// DevPreview discards whatever it's given; a headless build never opens a
// window and never synthesizes input.
type DevPreview struct{}

// NewDevPreview ignores the requested size; there is no window to size.
func NewDevPreview(width, height int) *DevPreview { return &DevPreview{} }

func (p *DevPreview) Start() {}
func (p *DevPreview) Stop()  {}

func (p *DevPreview) PushFrame(s *Surface) {}

func (p *DevPreview) FetchEvent() ([]RawInput, error) { return nil, nil }
