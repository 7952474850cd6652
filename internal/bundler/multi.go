package bundler

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/assetmanifest/internal/coordinator"
	"git.home.luguber.info/inful/assetmanifest/internal/foundation/errors"
	"git.home.luguber.info/inful/assetmanifest/internal/logfields"
)

// MultiCompiler runs several configurations as one composite build. Its
// members share a coordinator, so plugins on different members writing the
// same manifest file cooperate on a single artifact.
type MultiCompiler struct {
	compilers   []*Compiler
	coord       *coordinator.Coordinator
	logger      *slog.Logger
	parallelism int
}

// MultiStats collects the stats of every successful member, in member order.
type MultiStats struct {
	Stats []*Stats
}

// Hash returns the hash of the named member, or "" when it did not succeed.
func (m *MultiStats) Hash(name string) string {
	for _, s := range m.Stats {
		if s != nil && s.Compiler == name {
			return s.Hash
		}
	}
	return ""
}

// NewMultiCompiler creates one member per Options. All members are created
// before any plugin is applied so group membership is complete at apply time.
func NewMultiCompiler(opts ...Options) (*MultiCompiler, error) {
	if len(opts) == 0 {
		return nil, errors.ConfigError("at least one build configuration is required").Build()
	}
	logger := opts[0].Logger
	if logger == nil {
		logger = slog.Default()
	}
	mc := &MultiCompiler{coord: coordinator.New(logger), logger: logger}

	names := make(map[string]bool, len(opts))
	for i, o := range opts {
		if o.Name == "" && len(opts) > 1 {
			o.Name = "build-" + strconv.Itoa(i)
		}
		c, err := newCompiler(o, mc)
		if err != nil {
			return nil, err
		}
		if names[c.Name()] {
			return nil, errors.ConfigError("duplicate build name").WithContext("compiler", c.Name()).Build()
		}
		names[c.Name()] = true
		mc.compilers = append(mc.compilers, c)
	}
	for _, c := range mc.compilers {
		if err := c.applyPlugins(); err != nil {
			return nil, err
		}
	}
	return mc, nil
}

// SetParallelism limits how many members compile at once. n <= 0 means no limit.
func (m *MultiCompiler) SetParallelism(n int) { m.parallelism = n }

// Compilers returns the members in configuration order.
func (m *MultiCompiler) Compilers() []*Compiler {
	return append([]*Compiler(nil), m.compilers...)
}

// Coordinator returns the coordinator shared by all members.
func (m *MultiCompiler) Coordinator() *coordinator.Coordinator { return m.coord }

// Run compiles every member concurrently. A failing member does not cancel
// the others; all member errors are returned joined.
func (m *MultiCompiler) Run(ctx context.Context) (*MultiStats, error) {
	var g errgroup.Group
	if m.parallelism > 0 {
		g.SetLimit(m.parallelism)
	}
	stats := make([]*Stats, len(m.compilers))
	var mu sync.Mutex
	var errs []error

	for i, c := range m.compilers {
		g.Go(func() error {
			s, err := c.Run(ctx)
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}
			stats[i] = s
			return nil
		})
	}
	_ = g.Wait()

	out := &MultiStats{}
	for _, s := range stats {
		if s != nil {
			out.Stats = append(out.Stats, s)
		}
	}
	if len(errs) > 0 {
		m.logger.Error("Composite build failed", logfields.Members(len(m.compilers)), slog.Int("failed", len(errs)))
		return out, stderrors.Join(errs...)
	}
	return out, nil
}
