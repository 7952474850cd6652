package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/assetmanifest/internal/config"
	"git.home.luguber.info/inful/assetmanifest/internal/logfields"
	"git.home.luguber.info/inful/assetmanifest/internal/metrics"
	"git.home.luguber.info/inful/assetmanifest/internal/watch"
)

// WatchCmd implements the 'watch' command. Every rebuild opens a new manifest pass.
type WatchCmd struct {
	Debounce time.Duration `help:"Quiet period before a rebuild (overrides watch.debounce)"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	ctx := g.context()
	logger := g.logger()

	var recorder metrics.Recorder
	if cfg.Metrics.Enabled {
		reg := prom.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(reg)
		stop := serveMetrics(ctx, cfg.Metrics.Listen, reg, g)
		defer stop()
	}

	s, err := newSession(ctx, cfg, recorder, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	rebuild := func(ctx context.Context) error {
		_, err := s.compiler.Run(ctx)
		return err
	}
	if err := rebuild(ctx); err != nil {
		logger.Error("Initial build failed", logfields.Error(err))
	}

	debounce := cfg.DebounceDuration()
	if w.Debounce > 0 {
		debounce = w.Debounce
	}
	watcher, err := watch.New(watchOptions(cfg, debounce, g), rebuild)
	if err != nil {
		return err
	}
	return watcher.Run(ctx)
}

// watchOptions watches every build context and ignores what the builds write.
func watchOptions(cfg *config.Config, debounce time.Duration, g *Global) watch.Options {
	opts := watch.Options{Debounce: debounce, Logger: g.logger()}
	for _, b := range cfg.Builds {
		opts.Dirs = append(opts.Dirs, b.Context)
		opts.Ignore = append(opts.Ignore, b.Output.Path)
	}
	if cfg.History.Enabled && cfg.History.Path != ":memory:" {
		for _, suffix := range []string{"", "-journal", "-wal", "-shm"} {
			opts.Ignore = append(opts.Ignore, cfg.History.Path+suffix)
		}
	}
	return opts
}

func serveMetrics(ctx context.Context, addr string, reg *prom.Registry, g *Global) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		g.logger().Info("Serving metrics", "listen", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger().Error("Metrics server failed", logfields.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
