// main.go - compositor daemon entry point: load config, open displays and
// the :comp scheme endpoint, load plugins, and drive the tick loop until
// interrupted.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "comp.yaml", "path to the compositor's YAML config")
	preview := flag.Bool("preview", false, "open a demo window mirroring the composited surface")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Errorw("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	displays, err := openDisplays(cfg, log)
	if err != nil {
		log.Errorw("failed to open displays", "error", err)
		os.Exit(1)
	}

	scheme, err := OpenScheme(cfg.SockPath, log)
	if err != nil {
		log.Errorw("failed to open scheme socket", "path", cfg.SockPath, "error", err)
		os.Exit(1)
	}
	go scheme.Serve()

	plugins := LoadPlugins(cfg.Plugins, log)

	comp := NewCompositor(displays, scheme, plugins, log)
	defer comp.Close()

	if *preview {
		w, h := comp.Bounds()
		dp := NewDevPreview(w, h)
		dp.Start()
		defer dp.Stop()
		comp.SetPreview(dp)
	}

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Infow("shutting down")
		close(stop)
	}()

	log.Infow("compositor started", "displays", len(displays), "scheme", cfg.SockPath, "plugins", len(cfg.Plugins))
	comp.Run(stop)
}

// openDisplays opens every configured display, dropping (and logging) one
// that fails at open time rather than aborting startup entirely, matching
// the spec's "display-level I/O failures drop that display" rule.
func openDisplays(cfg Config, log *zap.SugaredLogger) ([]*Display, error) {
	var displays []*Display
	for _, dc := range cfg.Displays {
		d, err := OpenDisplay(dc.Path, Point{X: dc.X, Y: dc.Y}, log)
		if err != nil {
			log.Warnw("dropping display that failed to open", "path", dc.Path, "error", err)
			continue
		}
		displays = append(displays, d)
	}
	if len(displays) == 0 {
		return nil, ErrIO
	}
	return displays, nil
}
