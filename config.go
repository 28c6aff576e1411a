// config.go - YAML startup configuration: display backing paths with their
// global-space origins, and plugin script paths.
package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jcake/orbital-compositor/client"
)

// DisplayConfig names one physical display's backing file and where its
// top-left corner sits in global desktop space.
type DisplayConfig struct {
	Path string `yaml:"path"`
	X    int32  `yaml:"x"`
	Y    int32  `yaml:"y"`
}

// Config is the top-level shape of the compositor's startup file.
type Config struct {
	Displays []DisplayConfig `yaml:"displays"`
	Plugins  []string        `yaml:"plugins"`
	SockPath string          `yaml:"scheme_socket"`
}

// DefaultSockPath is used when a config omits scheme_socket.
const DefaultSockPath = "/tmp/comp.sock"

// LoadConfig reads and validates a YAML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: read config %s: %v", ErrIO, path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse config %s: %v", ErrInvalidArgument, path, err)
	}
	if cfg.SockPath == "" {
		cfg.SockPath = DefaultSockPath
	}
	if len(cfg.Displays) == 0 {
		return Config{}, fmt.Errorf("%w: config %s lists no displays", ErrInvalidArgument, path)
	}
	if err := validateNoOverlap(cfg.Displays); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validateNoOverlap rejects a config whose displays overlap in global space.
// Redox-style silent "first display wins" precedence would be too surprising
// for a daemon that owns every pixel on the machine, so this is a hard
// config-time error naming both offending paths.
func validateNoOverlap(displays []DisplayConfig) error {
	rects := make([]client.Rect, len(displays))
	for i, d := range displays {
		width, height, err := readDisplayDims(d.Path)
		if err != nil {
			return err
		}
		rects[i] = client.Rect{X: d.X, Y: d.Y, W: width, H: height}
	}
	for i := 0; i < len(rects); i++ {
		for j := i + 1; j < len(rects); j++ {
			if Intersects(rects[i], rects[j]) {
				return fmt.Errorf("%w: display %q overlaps display %q in global space",
					ErrInvalidArgument, displays[i].Path, displays[j].Path)
			}
		}
	}
	return nil
}

// readDisplayDims opens just long enough to learn a display's pixel
// dimensions via the same resolution path OpenDisplay uses, so overlap
// validation doesn't need to duplicate the mmap/truncate setup.
func readDisplayDims(path string) (width, height uint32, err error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: open display %s for validation: %v", ErrIO, path, err)
	}
	defer f.Close()
	w, h, derr := queryDisplayDims(f, path)
	if derr != nil {
		return 0, 0, fmt.Errorf("%w: query dims for %s: %v", ErrIO, path, derr)
	}
	return uint32(w), uint32(h), nil
}
