// Package manifestplugin emits an asset manifest for every build pass of a
// compiler or of a group of compilers writing the same manifest file.
package manifestplugin

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/assetmanifest/internal/bundler"
	"git.home.luguber.info/inful/assetmanifest/internal/coordinator"
	"git.home.luguber.info/inful/assetmanifest/internal/foundation/errors"
	"git.home.luguber.info/inful/assetmanifest/internal/hooks"
	"git.home.luguber.info/inful/assetmanifest/internal/logfields"
	"git.home.luguber.info/inful/assetmanifest/internal/manifest"
	"git.home.luguber.info/inful/assetmanifest/internal/metrics"
	"git.home.luguber.info/inful/assetmanifest/internal/naming"
)

// PluginName is the tap name the plugin registers under.
const PluginName = "ManifestPlugin"

// GetCompilerHooks returns the manifest hooks of c. Repeated calls for the
// same compiler return the same set.
func GetCompilerHooks(c *bundler.Compiler) *hooks.Set {
	return c.ManifestHooks()
}

// Plugin is a bundler.Plugin generating the manifest.
type Plugin struct {
	opts Options
}

// New creates a plugin. One instance may be applied to several compilers.
func New(opts Options) *Plugin {
	return &Plugin{opts: opts.withDefaults()}
}

func (p *Plugin) Name() string { return PluginName }

// Apply joins c to the group of its manifest file and registers the lifecycle taps.
func (p *Plugin) Apply(c *bundler.Compiler) error {
	target, err := p.targetPath(c)
	if err != nil {
		return err
	}
	group, err := c.Coordinator().Join(target, coordinator.Member{
		Name:  c.Name(),
		Seed:  p.opts.Seed,
		Hooks: c.ManifestHooks(),
	}, p.opts.PartialPolicy)
	if err != nil {
		return err
	}

	b := &binding{
		opts:     p.opts,
		compiler: c,
		group:    group,
		target:   target,
		logger:   p.logger(c),
	}
	c.TapThisCompilation(PluginName, b.onCompilation)
	c.TapFailed(PluginName, b.onFailed)
	return nil
}

func (p *Plugin) targetPath(c *bundler.Compiler) (string, error) {
	target := p.opts.FileName
	if !filepath.IsAbs(target) {
		target = filepath.Join(c.OutputPath(), target)
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryConfig, "resolve manifest path").
			WithContext("file", p.opts.FileName).Build()
	}
	return abs, nil
}

func (p *Plugin) logger(c *bundler.Compiler) *slog.Logger {
	if p.opts.Logger != nil {
		return p.opts.Logger.With(logfields.Compiler(c.Name()))
	}
	return c.Logger()
}

// binding is one plugin applied to one compiler.
type binding struct {
	opts     Options
	compiler *bundler.Compiler
	group    *coordinator.Group
	target   string
	logger   *slog.Logger
}

func (b *binding) onCompilation(comp *bundler.Compilation) {
	pass, err := b.group.Begin(b.compiler.Name())
	if err != nil {
		comp.AddError(err)
		return
	}
	comp.TapProcessAssets(PluginName, b.opts.Stage, func(ctx context.Context, comp *bundler.Compilation) error {
		return b.process(ctx, comp, pass)
	})
}

func (b *binding) onFailed(ctx context.Context, _ *bundler.Compilation, cause error) {
	out, err := b.group.Fail(b.compiler.Name(), cause)
	if err != nil {
		b.logger.Error("Failed to record compilation failure", logfields.Error(err))
		return
	}
	if !out.Final {
		return
	}
	if b.group.Policy() != coordinator.PartialEmit || len(out.Pass.Arrived()) == 0 {
		b.suppressed(out.Pass)
		return
	}
	// The finalizing compilation failed, so there is no asset table to join:
	// the partial manifest goes straight to disk.
	if err := b.finalize(ctx, nil, out); err != nil {
		b.logger.Error("Partial manifest emission failed", logfields.PassID(out.Pass.ID), logfields.Error(err))
	}
}

func (b *binding) process(ctx context.Context, comp *bundler.Compilation, pass *coordinator.Pass) error {
	files, entrypoints, err := b.resolve(comp)
	if err != nil {
		return err
	}
	out, err := b.group.Arrive(b.compiler.Name(), coordinator.Arrival{Files: files, Entrypoints: entrypoints})
	if err != nil {
		return err
	}
	if out.Duplicate || !out.Final {
		b.logger.Debug("Waiting for remaining members",
			logfields.PassID(pass.ID),
			logfields.ManifestFile(b.target),
			logfields.Members(len(pass.Members())))
		return nil
	}
	if !out.Complete && b.group.Policy() == coordinator.PartialFail {
		b.suppressed(out.Pass)
		return errors.BuildError("composite pass incomplete, manifest suppressed").
			WithCause(out.Pass.Failure()).
			WithContext("manifest", b.target).
			WithContext("pass_id", out.Pass.ID).
			Build()
	}
	return b.finalize(ctx, comp, out)
}

func (b *binding) resolve(comp *bundler.Compilation) ([]naming.Descriptor, []naming.Entrypoint, error) {
	chunks := make([]naming.ChunkInput, 0, len(comp.Chunks()))
	for _, c := range comp.Chunks() {
		chunks = append(chunks, naming.ChunkInput{
			ID:             c.ID,
			Name:           c.Name,
			Files:          c.Files,
			AuxiliaryFiles: c.AuxiliaryFiles,
			Initial:        c.Initial,
		})
	}
	assets := comp.Assets()
	inputs := make([]naming.AssetInput, 0, len(assets))
	for _, a := range assets {
		inputs = append(inputs, naming.AssetInput{
			Name:           a.Name,
			SourceFilename: a.Info.SourceFilename,
			Related:        a.Info.Related,
		})
	}

	resolver := naming.NewResolver(naming.Options{
		BasePath:            b.opts.BasePath,
		PublicPath:          b.publicPath(),
		KeepQueryString:     b.opts.KeepQueryString,
		UseEntryKeys:        b.opts.UseEntryKeys,
		TransformExtensions: b.opts.TransformExtensions,
		RemoveKeyHash:       b.opts.RemoveKeyHash,
		Filter:              b.opts.Filter,
		Map:                 b.opts.Map,
		Sort:                b.opts.Sort,
		Exclude:             []string{b.assetName()},
	})
	described := resolver.Describe(chunks, inputs)
	files, err := resolver.Transform(described)
	if err != nil {
		return nil, nil, err
	}
	b.opts.Recorder.IncFilteredAssets(len(described) - len(files))

	var entrypoints []naming.Entrypoint
	for _, ep := range comp.Entrypoints() {
		entrypoints = append(entrypoints, naming.Entrypoint{Name: ep.Name, Files: ep.Files()})
	}
	return files, entrypoints, nil
}

func (b *binding) publicPath() string {
	if b.opts.PublicPath != nil {
		return *b.opts.PublicPath
	}
	if pp := b.compiler.Options().Output.PublicPath; pp != "auto" {
		return pp
	}
	return ""
}

// assetName is the manifest path relative to this compiler's output directory.
func (b *binding) assetName() string {
	rel, err := filepath.Rel(b.compiler.OutputPath(), b.target)
	if err != nil {
		return filepath.ToSlash(b.target)
	}
	return filepath.ToSlash(rel)
}

func (b *binding) suppressed(pass *coordinator.Pass) {
	b.opts.Recorder.IncManifestEmit(metrics.OutcomeSuppressed)
	b.logger.Warn("Manifest suppressed after member failure",
		logfields.PassID(pass.ID),
		logfields.ManifestFile(b.target),
		logfields.Error(pass.Failure()))
}

// finalize generates, publishes and writes the manifest of a settled pass.
// comp is nil when the finalizing compilation failed.
func (b *binding) finalize(ctx context.Context, comp *bundler.Compilation, out coordinator.Outcome) error {
	pass := out.Pass
	if !pass.Claim() {
		return nil
	}
	m, data, err := b.build(ctx, pass)
	if err != nil {
		b.opts.Recorder.IncManifestEmit(metrics.OutcomeFailed)
		return err
	}

	if comp != nil && *b.opts.EmitAsset {
		name := b.assetName()
		if _, exists := comp.GetAsset(name); exists {
			err = comp.UpdateAsset(name, data)
		} else {
			err = comp.EmitAsset(name, data, bundler.AssetInfo{Generated: true})
		}
		if err != nil {
			b.opts.Recorder.IncManifestEmit(metrics.OutcomeFailed)
			return err
		}
	}
	if comp == nil || b.opts.WriteToFileEmit {
		if err := writeFile(b.target, data); err != nil {
			b.opts.Recorder.IncManifestEmit(metrics.OutcomeFailed)
			return err
		}
	}

	outcome := metrics.OutcomeEmitted
	level := slog.LevelInfo
	if !out.Complete {
		outcome = metrics.OutcomeIncomplete
		level = slog.LevelWarn
	}
	b.opts.Recorder.IncManifestEmit(outcome)
	b.opts.Recorder.ObservePassDuration(time.Since(pass.Started))
	b.opts.Recorder.SetManifestEntries(b.opts.FileName, m.Len())
	b.logger.Log(ctx, level, "Manifest emitted",
		logfields.PassID(pass.ID),
		logfields.ManifestFile(b.target),
		logfields.Entries(m.Len()),
		logfields.Members(len(pass.Members())),
		slog.Bool("complete", out.Complete))

	event := hooks.Emitted{
		PassID:     pass.ID,
		FileName:   b.opts.FileName,
		OutputPath: b.target,
		Manifest:   m,
		Bytes:      data,
		Complete:   out.Complete,
		Members:    pass.Arrived(),
	}
	var errs []error
	for _, set := range b.group.HookSets() {
		if err := set.CallAfterEmit(ctx, event); err != nil {
			b.opts.Recorder.IncHookFailure(hooks.AfterEmit)
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

func (b *binding) build(ctx context.Context, pass *coordinator.Pass) (*manifest.Manifest, []byte, error) {
	acc := pass.Accumulator()
	if b.opts.Generate != nil {
		m, err := callGenerate(b.opts.Generate, acc.Snapshot(), pass.Files(), pass.Entrypoints())
		if err != nil {
			return nil, nil, err
		}
		if err := acc.Replace(m); err != nil {
			return nil, nil, err
		}
	} else {
		// Only settled arrivals contribute, in arrival order.
		for _, f := range pass.Files() {
			if err := acc.Add(f.Name, f.Path); err != nil {
				return nil, nil, err
			}
		}
	}
	for _, set := range b.group.HookSets() {
		m, err := set.CallBeforeEmit(ctx, acc.Live())
		if err != nil {
			b.opts.Recorder.IncHookFailure(hooks.BeforeEmit)
			return nil, nil, err
		}
		if err := acc.Replace(m); err != nil {
			return nil, nil, err
		}
	}
	m := acc.Freeze()
	data, err := callSerialize(b.opts.Serialize, m)
	if err != nil {
		return nil, nil, err
	}
	return m, data, nil
}

func writeFile(target string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "create manifest directory").
			WithContext("path", filepath.Dir(target)).Build()
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "write manifest").
			WithContext("path", target).Build()
	}
	return nil
}
