// Package commands implements the assetmanifest subcommands.
package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/assetmanifest/internal/bundler"
	"git.home.luguber.info/inful/assetmanifest/internal/config"
	"git.home.luguber.info/inful/assetmanifest/internal/eventstore"
	"git.home.luguber.info/inful/assetmanifest/internal/logfields"
	"git.home.luguber.info/inful/assetmanifest/internal/manifestplugin"
	"git.home.luguber.info/inful/assetmanifest/internal/metrics"
	"git.home.luguber.info/inful/assetmanifest/internal/publish"
)

// Global is the state shared by every subcommand.
type Global struct {
	Ctx    context.Context
	Logger *slog.Logger
	Out    io.Writer
}

func (g *Global) context() context.Context {
	if g.Ctx == nil {
		return context.Background()
	}
	return g.Ctx
}

func (g *Global) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

func (g *Global) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Build file path" default:"assetmanifest.yaml" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Run every configured build once and emit the manifests"`
	Watch   WatchCmd   `cmd:"" help:"Rebuild on source changes"`
	History HistoryCmd `cmd:"" help:"List recorded manifests and what changed between them"`
	Inspect InspectCmd `cmd:"" help:"Print the entries of a manifest file"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(c.Verbose)}))
	slog.SetDefault(logger)
	return nil
}

// parseLogLevel honours ASSETMANIFEST_LOG_LEVEL over the verbose flag.
func parseLogLevel(verbose bool) slog.Level {
	switch strings.ToLower(os.Getenv("ASSETMANIFEST_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// session is a multi-compiler with its downstream consumers attached.
type session struct {
	cfg      *config.Config
	compiler *bundler.MultiCompiler
	closers  []func() error
	logger   *slog.Logger
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Warn("Failed to close resource", logfields.Error(err))
		}
	}
}

// newSession builds the compilers of cfg. Recorder may be nil.
func newSession(ctx context.Context, cfg *config.Config, recorder metrics.Recorder, logger *slog.Logger) (*session, error) {
	copts, err := cfg.ToCompilerOptions(logger)
	if err != nil {
		return nil, err
	}
	popts, err := cfg.ToPluginOptions()
	if err != nil {
		return nil, err
	}
	popts.Logger = logger
	popts.Recorder = recorder
	for i := range copts {
		copts[i].Plugins = append(copts[i].Plugins, manifestplugin.New(popts))
	}

	mc, err := bundler.NewMultiCompiler(copts...)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, compiler: mc, logger: logger}

	if cfg.History.Enabled {
		if err := s.attachHistory(); err != nil {
			s.Close()
			return nil, err
		}
	}
	if cfg.NATS.Enabled {
		if err := s.attachPublisher(ctx); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// attachHistory records every emitted manifest. Each group is tapped once,
// on its first member, so a merged manifest is recorded a single time.
func (s *session) attachHistory() error {
	store, err := eventstore.NewSQLiteStore(s.cfg.History.Path)
	if err != nil {
		return err
	}
	s.closers = append(s.closers, store.Close)
	for _, g := range s.compiler.Coordinator().Groups() {
		if members := g.Members(); len(members) > 0 && members[0].Hooks != nil {
			members[0].Hooks.TapAfterEmit("history", eventstore.Subscriber(store, s.logger))
		}
	}
	return nil
}

func (s *session) attachPublisher(ctx context.Context) error {
	n := s.cfg.NATS
	sender, err := publish.NewNATSSender(ctx, publish.NATSOptions{
		URL:       n.URL,
		Subject:   n.Subject,
		JetStream: n.JetStream,
		Stream:    n.Stream,
	})
	if err != nil {
		return err
	}
	pub := publish.NewPublisher(sender, n.Subject, s.logger)
	pub.SetRetry(n.RetryPolicy())
	s.closers = append(s.closers, pub.Close)
	for _, g := range s.compiler.Coordinator().Groups() {
		if members := g.Members(); len(members) > 0 && members[0].Hooks != nil {
			members[0].Hooks.TapAfterEmit("nats", pub.AfterEmit())
		}
	}
	return nil
}
