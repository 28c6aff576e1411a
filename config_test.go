package main

import (
	"path/filepath"
	"testing"
)

func writeTestDisplayBacking(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	mustWriteFile(t, path, "")
	mustWriteFile(t, path+".dims", itoa(w)+" "+itoa(h)+"\n")
	return path
}

func TestLoadConfigAppliesDefaultSockPath(t *testing.T) {
	dir := t.TempDir()
	fb0 := writeTestDisplayBacking(t, dir, "fb0", 100, 80)

	cfgPath := filepath.Join(dir, "comp.yaml")
	mustWriteFile(t, cfgPath, "displays:\n  - path: "+fb0+"\n    x: 0\n    y: 0\n")

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.SockPath != DefaultSockPath {
		t.Fatalf("SockPath = %q, want default %q", cfg.SockPath, DefaultSockPath)
	}
	if len(cfg.Displays) != 1 || cfg.Displays[0].Path != fb0 {
		t.Fatalf("Displays = %+v, want one entry for %s", cfg.Displays, fb0)
	}
}

func TestLoadConfigRejectsOverlappingDisplays(t *testing.T) {
	dir := t.TempDir()
	fb0 := writeTestDisplayBacking(t, dir, "fb0", 100, 80)
	fb1 := writeTestDisplayBacking(t, dir, "fb1", 100, 80)

	cfgPath := filepath.Join(dir, "comp.yaml")
	mustWriteFile(t, cfgPath,
		"displays:\n  - path: "+fb0+"\n    x: 0\n    y: 0\n  - path: "+fb1+"\n    x: 50\n    y: 0\n")

	_, err := LoadConfig(cfgPath)
	if err == nil {
		t.Fatalf("expected an error for overlapping displays")
	}
}

func TestLoadConfigAcceptsAdjacentDisplays(t *testing.T) {
	dir := t.TempDir()
	fb0 := writeTestDisplayBacking(t, dir, "fb0", 100, 80)
	fb1 := writeTestDisplayBacking(t, dir, "fb1", 100, 80)

	cfgPath := filepath.Join(dir, "comp.yaml")
	mustWriteFile(t, cfgPath,
		"displays:\n  - path: "+fb0+"\n    x: 0\n    y: 0\n  - path: "+fb1+"\n    x: 100\n    y: 0\n")

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Displays) != 2 {
		t.Fatalf("Displays = %+v, want 2 entries", cfg.Displays)
	}
}

func TestLoadConfigRejectsEmptyDisplayList(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "comp.yaml")
	mustWriteFile(t, cfgPath, "displays: []\n")

	if _, err := LoadConfig(cfgPath); err == nil {
		t.Fatalf("expected an error for a config with no displays")
	}
}
