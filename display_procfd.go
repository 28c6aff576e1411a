//go:build linux

// display_procfd.go - Linux /proc/self/fd/N path query, the closest real-OS
// analog to asking the kernel "what scheme path was this fd opened through".
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

var dimsInName = regexp.MustCompile(`(\d+)x(\d+)`)

// queryDimsViaProcFd resolves f's real path via /proc/self/fd and looks for
// a "WIDTHxHEIGHT" token in its filename, e.g. "fb0-1920x1080.display". This
// mirrors the original compositor parsing its scheme URL's path segments for
// two integer components; here the integers live in the backing filename.
func queryDimsViaProcFd(f *os.File) (width, height int, ok bool) {
	link := fmt.Sprintf("/proc/self/fd/%d", f.Fd())
	target, err := os.Readlink(link)
	if err != nil {
		return 0, 0, false
	}
	m := dimsInName.FindStringSubmatch(filepath.Base(target))
	if m == nil {
		return 0, 0, false
	}
	w, err1 := strconv.Atoi(m[1])
	h, err2 := strconv.Atoi(m[2])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return w, h, true
}
