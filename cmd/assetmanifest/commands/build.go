package commands

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/assetmanifest/internal/config"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Parallelism int `short:"p" help:"Maximum number of builds compiling at once (0 = all)" default:"0"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	logger := g.logger()
	s, err := newSession(g.context(), cfg, nil, logger)
	if err != nil {
		return err
	}
	defer s.Close()
	s.compiler.SetParallelism(b.Parallelism)

	logger.Info("Starting build", "builds", len(cfg.Builds))
	stats, err := s.compiler.Run(g.context())
	for _, st := range stats.Stats {
		_, _ = fmt.Fprintf(g.out(), "%s\t%s\t%s\n", st.Compiler, st.Hash, st.Duration.Round(time.Millisecond))
	}
	return err
}
