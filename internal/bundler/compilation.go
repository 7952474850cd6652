package bundler

import (
	"context"
	"slices"
	"sync"

	"git.home.luguber.info/inful/assetmanifest/internal/foundation/errors"
)

// Process-assets stages. Taps run in ascending stage order.
const (
	StageAdditional   = -2000
	StageOptimize     = 100
	StageOptimizeSize = 400
	StageDevTooling   = 500
	StageSummarize    = 1000
	StageOptimizeHash = 2500
	StageReport       = 5000
)

// AssetInfo carries metadata about an emitted asset.
type AssetInfo struct {
	// SourceFilename is the module path a resource asset was copied from.
	SourceFilename string
	// Related maps a relation kind such as "sourceMap" to another asset name.
	Related     map[string]string
	ContentHash string
	Immutable   bool
	// Generated marks synthetic assets added by plugins.
	Generated bool
}

// Asset is one output file of a compilation.
type Asset struct {
	Name   string
	Source []byte
	Info   AssetInfo
}

// Chunk groups the files generated for one entry point.
type Chunk struct {
	ID             string
	Name           string
	Files          []string
	AuxiliaryFiles []string
	Initial        bool
	ContentHash    string
}

// Entrypoint lists, in load order, the files an entry point needs.
type Entrypoint struct {
	Name   string
	Chunks []*Chunk
}

// Files returns the chunk files of the entrypoint.
func (e Entrypoint) Files() []string {
	var out []string
	for _, c := range e.Chunks {
		out = append(out, c.Files...)
	}
	return out
}

// ProcessAssetsFunc runs once per compilation at its registered stage.
type ProcessAssetsFunc func(ctx context.Context, comp *Compilation) error

type processTap struct {
	name  string
	stage int
	fn    ProcessAssetsFunc
}

// Compilation is the result of one compile of one compiler.
type Compilation struct {
	compiler *Compiler

	mu          sync.Mutex
	assets      []*Asset
	index       map[string]int
	chunks      []*Chunk
	entrypoints []Entrypoint
	hash        string
	errs        []error
	taps        []processTap
	sealed      bool
}

func newCompilation(c *Compiler) *Compilation {
	return &Compilation{compiler: c, index: make(map[string]int)}
}

// Compiler returns the compiler that created this compilation.
func (c *Compilation) Compiler() *Compiler { return c.compiler }

// Hash returns the compilation hash, available once modules are built.
func (c *Compilation) Hash() string { return c.hash }

// Chunks returns the chunks in entry order.
func (c *Compilation) Chunks() []*Chunk { return c.chunks }

// Entrypoints returns the entry points in declaration order.
func (c *Compilation) Entrypoints() []Entrypoint { return c.entrypoints }

// Errors returns the errors recorded so far.
func (c *Compilation) Errors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.errs...)
}

// AddError records a compilation error.
func (c *Compilation) AddError(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	c.errs = append(c.errs, err)
	c.mu.Unlock()
}

// TapProcessAssets registers fn for the given stage. Must be called before the
// compilation's assets are processed, usually from a ThisCompilation tap.
func (c *Compilation) TapProcessAssets(name string, stage int, fn ProcessAssetsFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.taps = append(c.taps, processTap{name: name, stage: stage, fn: fn})
}

// Assets returns the assets in emission order.
func (c *Compilation) Assets() []*Asset {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Asset(nil), c.assets...)
}

// GetAsset returns the named asset.
func (c *Compilation) GetAsset(name string) (*Asset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[name]
	if !ok {
		return nil, false
	}
	return c.assets[i], true
}

// EmitAsset adds a new asset. Emitting a name twice is an error.
func (c *Compilation) EmitAsset(name string, source []byte, info AssetInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		return errors.BuildError("cannot emit asset after compilation was sealed").WithContext("asset", name).Build()
	}
	if _, exists := c.index[name]; exists {
		return errors.BuildError("conflict: multiple assets emit to the same filename").WithContext("asset", name).Build()
	}
	c.index[name] = len(c.assets)
	c.assets = append(c.assets, &Asset{Name: name, Source: source, Info: info})
	return nil
}

// UpdateAsset replaces the source of an existing asset.
func (c *Compilation) UpdateAsset(name string, source []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		return errors.BuildError("cannot update asset after compilation was sealed").WithContext("asset", name).Build()
	}
	i, ok := c.index[name]
	if !ok {
		return errors.BuildError("asset does not exist").WithContext("asset", name).Build()
	}
	c.assets[i].Source = source
	return nil
}

func (c *Compilation) processAssets(ctx context.Context) error {
	c.mu.Lock()
	taps := append([]processTap(nil), c.taps...)
	c.mu.Unlock()
	slices.SortStableFunc(taps, func(a, b processTap) int { return a.stage - b.stage })

	for _, t := range taps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.fn(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compilation) seal() {
	c.mu.Lock()
	c.sealed = true
	c.mu.Unlock()
}
