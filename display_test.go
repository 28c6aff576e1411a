package main

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/jcake/orbital-compositor/client"
)

func testLogger(t *testing.T) *zap.SugaredLogger {
	t.Helper()
	l, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("zap.NewDevelopment: %v", err)
	}
	return l.Sugar()
}

func mustWriteFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}

func TestOpenDisplayReadsDimsSidecar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fb0")
	mustWriteFile(t, path, "")
	mustWriteFile(t, path+".dims", "64 48\n")

	d, err := OpenDisplay(path, Point{X: 0, Y: 0}, testLogger(t))
	if err != nil {
		t.Fatalf("OpenDisplay: %v", err)
	}
	defer d.Close()

	r := d.Rect()
	if r.W != 64 || r.H != 48 {
		t.Fatalf("Rect = %+v, want 64x48", r)
	}
}

func TestOpenDisplayMissingDimsFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fb0")
	mustWriteFile(t, path, "")

	if _, err := OpenDisplay(path, Point{}, testLogger(t)); err == nil {
		t.Fatalf("expected error with no dims source")
	}
}

func TestDisplaySyncZeroAreaIsNoop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fb0")
	mustWriteFile(t, path, "")
	mustWriteFile(t, path+".dims", "4 4\n")

	d, err := OpenDisplay(path, Point{}, testLogger(t))
	if err != nil {
		t.Fatalf("OpenDisplay: %v", err)
	}
	defer d.Close()

	if err := d.sync(client.Rect{}); err != nil {
		t.Fatalf("sync with zero-area rect should be a no-op, got %v", err)
	}
}

func TestDisplayDrawCursorClipsAndSyncs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fb0")
	mustWriteFile(t, path, "")
	mustWriteFile(t, path+".dims", "800 600\n")

	d, err := OpenDisplay(path, Point{X: 0, Y: 0}, testLogger(t))
	if err != nil {
		t.Fatalf("OpenDisplay: %v", err)
	}
	defer d.Close()

	cursor := NewCursor(800, 600)
	if err := d.DrawCursor(cursor); err != nil {
		t.Fatalf("DrawCursor: %v", err)
	}
	if len(d.trail) != 1 {
		t.Fatalf("trail length = %d, want 1", len(d.trail))
	}

	cursor.Move(10, 10)
	if err := d.DrawCursor(cursor); err != nil {
		t.Fatalf("DrawCursor after move: %v", err)
	}
	if len(d.trail) != 1 {
		t.Fatalf("trail length after second draw = %d, want 1 (TailLength)", len(d.trail))
	}
}
