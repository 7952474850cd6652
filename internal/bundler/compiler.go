package bundler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/assetmanifest/internal/coordinator"
	"git.home.luguber.info/inful/assetmanifest/internal/foundation/errors"
	"git.home.luguber.info/inful/assetmanifest/internal/hooks"
	"git.home.luguber.info/inful/assetmanifest/internal/logfields"
)

// Stats summarises a successful compilation.
type Stats struct {
	Compiler    string
	Hash        string
	Compilation *Compilation
	Duration    time.Duration
}

type namedTap[F any] struct {
	name string
	fn   F
}

// Compiler turns one Options set into compilations.
type Compiler struct {
	opts   Options
	logger *slog.Logger
	parent *MultiCompiler

	mu              sync.Mutex
	thisCompilation []namedTap[func(*Compilation)]
	failed          []namedTap[func(context.Context, *Compilation, error)]
	afterEmit       []namedTap[func(context.Context, *Compilation) error]
	done            []namedTap[func(*Stats)]

	runMu sync.Mutex

	hooksOnce sync.Once
	hooks     *hooks.Set
	coordOnce sync.Once
	coord     *coordinator.Coordinator
}

// NewCompiler validates opts, applies its plugins and returns a standalone compiler.
func NewCompiler(opts Options) (*Compiler, error) {
	c, err := newCompiler(opts, nil)
	if err != nil {
		return nil, err
	}
	if err := c.applyPlugins(); err != nil {
		return nil, err
	}
	return c, nil
}

func newCompiler(opts Options, parent *MultiCompiler) (*Compiler, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	return &Compiler{
		opts:   opts,
		logger: opts.Logger.With(logfields.Compiler(opts.Name)),
		parent: parent,
	}, nil
}

func (c *Compiler) applyPlugins() error {
	for _, p := range c.opts.Plugins {
		if err := p.Apply(c); err != nil {
			return errors.WrapError(err, errors.CategoryConfig, "plugin apply failed").
				WithContext("plugin", p.Name()).
				WithContext("compiler", c.opts.Name).
				Build()
		}
	}
	return nil
}

// Name returns the compiler's configuration name.
func (c *Compiler) Name() string { return c.opts.Name }

// Options returns the defaulted options.
func (c *Compiler) Options() Options { return c.opts }

// OutputPath returns the absolute output directory.
func (c *Compiler) OutputPath() string { return c.opts.Output.Path }

// Logger returns the compiler-scoped logger.
func (c *Compiler) Logger() *slog.Logger { return c.logger }

// ManifestHooks returns the manifest hook set of this compiler, creating it on
// first use. Every call returns the same set.
func (c *Compiler) ManifestHooks() *hooks.Set {
	c.hooksOnce.Do(func() { c.hooks = hooks.NewSet() })
	return c.hooks
}

// Coordinator returns the coordinator shared by all members of the parent
// MultiCompiler, or a private one for a standalone compiler.
func (c *Compiler) Coordinator() *coordinator.Coordinator {
	if c.parent != nil {
		return c.parent.coord
	}
	c.coordOnce.Do(func() { c.coord = coordinator.New(c.opts.Logger) })
	return c.coord
}

// TapThisCompilation runs fn when a compilation starts, before modules are built.
func (c *Compiler) TapThisCompilation(name string, fn func(*Compilation)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.thisCompilation = append(c.thisCompilation, namedTap[func(*Compilation)]{name, fn})
}

// TapFailed runs fn when a compilation fails or is aborted.
func (c *Compiler) TapFailed(name string, fn func(context.Context, *Compilation, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed = append(c.failed, namedTap[func(context.Context, *Compilation, error)]{name, fn})
}

// TapAfterEmit runs fn once assets are written to the output directory.
func (c *Compiler) TapAfterEmit(name string, fn func(context.Context, *Compilation) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.afterEmit = append(c.afterEmit, namedTap[func(context.Context, *Compilation) error]{name, fn})
}

// TapDone runs fn after a successful compilation.
func (c *Compiler) TapDone(name string, fn func(*Stats)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done = append(c.done, namedTap[func(*Stats)]{name, fn})
}

// Run performs one compilation. Runs of the same compiler are serialised.
func (c *Compiler) Run(ctx context.Context) (*Stats, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	start := time.Now()
	comp := newCompilation(c)

	c.mu.Lock()
	started := append([]namedTap[func(*Compilation)](nil), c.thisCompilation...)
	c.mu.Unlock()
	for _, t := range started {
		t.fn(comp)
	}

	if err := c.compile(ctx, comp); err != nil {
		return nil, c.fail(ctx, comp, err)
	}
	if err := comp.processAssets(ctx); err != nil {
		comp.AddError(err)
	}
	if errs := comp.Errors(); len(errs) > 0 {
		return nil, c.fail(ctx, comp, stderrors.Join(errs...))
	}
	comp.seal()

	if !c.opts.Output.InMemory {
		if err := c.writeAssets(comp); err != nil {
			return nil, c.fail(ctx, comp, err)
		}
	}

	c.mu.Lock()
	emitted := append([]namedTap[func(context.Context, *Compilation) error](nil), c.afterEmit...)
	done := append([]namedTap[func(*Stats)](nil), c.done...)
	c.mu.Unlock()
	for _, t := range emitted {
		if err := t.fn(ctx, comp); err != nil {
			return nil, c.fail(ctx, comp, err)
		}
	}

	stats := &Stats{Compiler: c.opts.Name, Hash: comp.Hash(), Compilation: comp, Duration: time.Since(start)}
	for _, t := range done {
		t.fn(stats)
	}
	c.logger.Info("Compilation finished",
		slog.Int("assets", len(comp.Assets())),
		logfields.DurationMS(float64(stats.Duration.Microseconds())/1000))
	return stats, nil
}

func (c *Compiler) fail(ctx context.Context, comp *Compilation, cause error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !stderrors.Is(cause, ctxErr) {
		cause = stderrors.Join(cause, ctxErr)
	}
	err := errors.WrapError(cause, errors.CategoryBuild, "compilation failed").
		Fatal().
		WithContext("compiler", c.opts.Name).
		Build()
	c.mu.Lock()
	failed := append([]namedTap[func(context.Context, *Compilation, error)](nil), c.failed...)
	c.mu.Unlock()
	// Failed taps may still need to write, so they must not inherit cancellation.
	detached := context.WithoutCancel(ctx)
	for _, t := range failed {
		t.fn(detached, comp, cause)
	}
	c.logger.Error("Compilation failed", logfields.Error(cause))
	return err
}

type module struct {
	rel    string
	source []byte
	asset  string
}

func (c *Compiler) compile(ctx context.Context, comp *Compilation) error {
	resources := make(map[string]string)
	type built struct {
		entry   Entry
		modules []module
	}
	var entries []built
	hash := sha256.New()

	for _, e := range c.opts.Entry {
		b := built{entry: e}
		fmt.Fprintf(hash, "entry:%s\n", e.Name)
		for _, imp := range e.Imports {
			if err := ctx.Err(); err != nil {
				return err
			}
			abs := imp
			if !filepath.IsAbs(abs) {
				abs = filepath.Join(c.opts.Context, imp)
			}
			src, err := os.ReadFile(abs)
			if err != nil {
				comp.AddError(errors.WrapError(err, errors.CategoryFileSystem, "module not found").
					WithContext("entry", e.Name).
					WithContext("path", imp).
					Build())
				continue
			}
			rel, err := filepath.Rel(c.opts.Context, abs)
			if err != nil {
				rel = abs
			}
			m := module{rel: filepath.ToSlash(rel), source: src}
			fmt.Fprintf(hash, "module:%s:%d\n", m.rel, len(src))
			hash.Write(src)
			if rule := c.matchRule(m.rel); rule != nil {
				name, ok := resources[abs]
				if !ok {
					name = c.resourceName(rule, m.rel, src)
					resources[abs] = name
					info := AssetInfo{
						SourceFilename: m.rel,
						ContentHash:    c.digest(src),
						Immutable:      strings.Contains(c.ruleTemplate(rule), "hash]"),
					}
					if err := comp.EmitAsset(name, src, info); err != nil {
						comp.AddError(err)
						continue
					}
				}
				m.asset = name
			}
			b.modules = append(b.modules, m)
		}
		entries = append(entries, b)
	}
	if errs := comp.Errors(); len(errs) > 0 {
		return stderrors.Join(errs...)
	}

	comp.hash = hex.EncodeToString(hash.Sum(nil))[:c.opts.HashLength]

	for i, b := range entries {
		chunk := &Chunk{ID: strconv.Itoa(i), Name: b.entry.Name, Initial: true}
		source := c.chunkSource(b.modules)
		chunk.ContentHash = c.digest(source)
		file := renderFilename(c.opts.Output.Filename, pathData{
			Name:        chunk.Name,
			ID:          chunk.ID,
			Ext:         "js",
			Hash:        comp.hash,
			ContentHash: chunk.ContentHash,
		})
		info := AssetInfo{ContentHash: chunk.ContentHash, Immutable: strings.Contains(c.opts.Output.Filename, "hash]")}

		var sourceMap []byte
		var mapFile string
		if c.opts.Devtool == DevtoolSourceMap {
			mapFile = file + ".map"
			var err error
			if sourceMap, err = buildSourceMap(path.Base(file), b.modules); err != nil {
				return errors.WrapError(err, errors.CategoryInternal, "source map generation failed").Build()
			}
			source = append(source, "//# sourceMappingURL="+path.Base(mapFile)+"\n"...)
			info.Related = map[string]string{"sourceMap": mapFile}
		}

		if err := comp.EmitAsset(file, source, info); err != nil {
			return err
		}
		chunk.Files = append(chunk.Files, file)
		if mapFile != "" {
			if err := comp.EmitAsset(mapFile, sourceMap, AssetInfo{}); err != nil {
				return err
			}
			chunk.AuxiliaryFiles = append(chunk.AuxiliaryFiles, mapFile)
		}
		comp.chunks = append(comp.chunks, chunk)
		comp.entrypoints = append(comp.entrypoints, Entrypoint{Name: chunk.Name, Chunks: []*Chunk{chunk}})
	}
	return nil
}

func (c *Compiler) matchRule(rel string) *Rule {
	for i := range c.opts.Rules {
		if c.opts.Rules[i].Test.MatchString(rel) {
			return &c.opts.Rules[i]
		}
	}
	return nil
}

func (c *Compiler) ruleTemplate(r *Rule) string {
	if r.Filename != "" {
		return r.Filename
	}
	return c.opts.Output.AssetFilename
}

func (c *Compiler) resourceName(r *Rule, rel string, src []byte) string {
	base := path.Base(rel)
	ext := path.Ext(base)
	hash := c.digest(src)
	return renderFilename(c.ruleTemplate(r), pathData{
		Name:        strings.TrimSuffix(base, ext),
		Ext:         strings.TrimPrefix(ext, "."),
		Hash:        hash,
		ContentHash: hash,
	})
}

func (c *Compiler) publicPath() string {
	if c.opts.Output.PublicPath == "auto" {
		return ""
	}
	return c.opts.Output.PublicPath
}

func (c *Compiler) chunkSource(mods []module) []byte {
	var b strings.Builder
	for _, m := range mods {
		fmt.Fprintf(&b, "/* %s */\n", m.rel)
		if m.asset != "" {
			fmt.Fprintf(&b, "export default %q;\n", c.publicPath()+m.asset)
			continue
		}
		b.Write(m.source)
		if len(m.source) > 0 && m.source[len(m.source)-1] != '\n' {
			b.WriteByte('\n')
		}
	}
	return []byte(b.String())
}

func (c *Compiler) digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])[:c.opts.HashLength]
}

type sourceMapV3 struct {
	Version        int      `json:"version"`
	File           string   `json:"file"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

func buildSourceMap(file string, mods []module) ([]byte, error) {
	sm := sourceMapV3{Version: 3, File: file, Names: []string{}}
	for _, m := range mods {
		sm.Sources = append(sm.Sources, "webpack:///./"+m.rel)
		sm.SourcesContent = append(sm.SourcesContent, string(m.source))
	}
	return json.Marshal(sm)
}

func (c *Compiler) writeAssets(comp *Compilation) error {
	for _, a := range comp.Assets() {
		target := filepath.Join(c.opts.Output.Path, filepath.FromSlash(a.Name))
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "create output directory").
				WithContext("path", filepath.Dir(target)).Build()
		}
		if err := os.WriteFile(target, a.Source, 0o644); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "write asset").
				WithContext("path", target).Build()
		}
		c.logger.Debug("Wrote asset", logfields.Asset(a.Name))
	}
	return nil
}
