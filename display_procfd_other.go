//go:build !linux

package main

import "os"

// queryDimsViaProcFd has no portable analog outside Linux's /proc; callers
// fall back to the ".dims" sidecar file.
func queryDimsViaProcFd(f *os.File) (width, height int, ok bool) {
	return 0, 0, false
}
