package manifestplugin

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetmanifest/internal/bundler"
	"git.home.luguber.info/inful/assetmanifest/internal/coordinator"
	"git.home.luguber.info/inful/assetmanifest/internal/hooks"
	"git.home.luguber.info/inful/assetmanifest/internal/manifest"
)

func twoConfigs(t *testing.T, out string, popts Options) []bundler.Options {
	t.Helper()
	src := fixtures(t)
	return []bundler.Options{
		{
			Name:    "first",
			Context: src,
			Entry:   []bundler.Entry{entry("one", "./file.js")},
			Output:  bundler.Output{Path: out},
			Plugins: []bundler.Plugin{New(popts)},
		},
		{
			Name:    "second",
			Context: src,
			Entry:   []bundler.Entry{entry("two", "./file-two.js")},
			Output:  bundler.Output{Path: out},
			Plugins: []bundler.Plugin{New(popts)},
		},
	}
}

func TestComposite_MergesIntoOneManifest(t *testing.T) {
	out := t.TempDir()
	mc, err := bundler.NewMultiCompiler(twoConfigs(t, out, Options{Seed: manifest.New()})...)
	require.NoError(t, err)

	var emits atomic.Int32
	var befores atomic.Int32
	for _, c := range mc.Compilers() {
		h := GetCompilerHooks(c)
		h.TapBeforeEmit("count", func(context.Context, *manifest.Manifest) (*manifest.Manifest, error) {
			befores.Add(1)
			return nil, nil
		})
		h.TapAfterEmit("count", func(_ context.Context, e hooks.Emitted) error {
			emits.Add(1)
			assert.True(t, e.Complete)
			assert.ElementsMatch(t, []string{"first", "second"}, e.Members)
			return nil
		})
	}

	_, err = mc.Run(context.Background())
	require.NoError(t, err)

	m := readManifest(t, filepath.Join(out, DefaultFileName))
	assert.Equal(t, map[string]string{"one.js": "one.js", "two.js": "two.js"}, m.Map())
	assert.EqualValues(t, 2, befores.Load(), "every member's beforeEmit fires once")
	assert.EqualValues(t, 2, emits.Load(), "every member's afterEmit fires once")

	groups := mc.Coordinator().Groups()
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Members(), 2)
}

func TestComposite_SeedsMerged(t *testing.T) {
	out := t.TempDir()
	cfgs := twoConfigs(t, out, Options{})
	cfgs[0].Plugins = []bundler.Plugin{New(Options{Seed: manifest.New(manifest.Entry{Name: "a", Value: "1"})})}
	cfgs[1].Plugins = []bundler.Plugin{New(Options{Seed: manifest.New(manifest.Entry{Name: "b", Value: "2"})})}
	mc, err := bundler.NewMultiCompiler(cfgs...)
	require.NoError(t, err)
	_, err = mc.Run(context.Background())
	require.NoError(t, err)

	m := readManifest(t, filepath.Join(out, DefaultFileName))
	assert.Equal(t, []string{"a", "b"}, m.Keys()[:2])
	assert.Equal(t, map[string]string{"a": "1", "b": "2", "one.js": "one.js", "two.js": "two.js"}, m.Map())
}

func TestComposite_SeparateOutputsStaySeparate(t *testing.T) {
	cfgs := twoConfigs(t, t.TempDir(), Options{})
	cfgs[1].Output.Path = t.TempDir()
	mc, err := bundler.NewMultiCompiler(cfgs...)
	require.NoError(t, err)
	_, err = mc.Run(context.Background())
	require.NoError(t, err)

	first := readManifest(t, filepath.Join(cfgs[0].Output.Path, DefaultFileName))
	second := readManifest(t, filepath.Join(cfgs[1].Output.Path, DefaultFileName))
	assert.Equal(t, map[string]string{"one.js": "one.js"}, first.Map())
	assert.Equal(t, map[string]string{"two.js": "two.js"}, second.Map())
}

func TestComposite_SequentialMembers(t *testing.T) {
	out := t.TempDir()
	mc, err := bundler.NewMultiCompiler(twoConfigs(t, out, Options{})...)
	require.NoError(t, err)
	mc.SetParallelism(1)

	for range 2 {
		_, err = mc.Run(context.Background())
		require.NoError(t, err)
		m := readManifest(t, filepath.Join(out, DefaultFileName))
		assert.Equal(t, map[string]string{"one.js": "one.js", "two.js": "two.js"}, m.Map())
	}
}

func TestComposite_MemberFailureSuppressesManifest(t *testing.T) {
	out := t.TempDir()
	rec := newFakeRecorder()
	cfgs := twoConfigs(t, out, Options{Recorder: rec})
	cfgs[1].Entry = []bundler.Entry{entry("two", "./missing.js")}

	mc, err := bundler.NewMultiCompiler(cfgs...)
	require.NoError(t, err)
	var emitted atomic.Int32
	for _, c := range mc.Compilers() {
		GetCompilerHooks(c).TapAfterEmit("count", func(context.Context, hooks.Emitted) error {
			emitted.Add(1)
			return nil
		})
	}

	_, err = mc.Run(context.Background())
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(out, DefaultFileName))
	assert.True(t, os.IsNotExist(statErr), "no manifest for a failed composite pass")
	assert.EqualValues(t, 0, emitted.Load())
	assert.Equal(t, 1, rec.emits["suppressed"])
}

// failAfterProcessing makes the first member fail once its assets were
// processed, after it already reached the manifest barrier.
func failAfterProcessing(mc *bundler.MultiCompiler) {
	mc.Compilers()[0].TapAfterEmit("fail", func(context.Context, *bundler.Compilation) error {
		return stderrors.New("member one failed after processing assets")
	})
}

func TestComposite_FailureAfterArrivalSuppressesManifest(t *testing.T) {
	out := t.TempDir()
	rec := newFakeRecorder()
	mc, err := bundler.NewMultiCompiler(twoConfigs(t, out, Options{Recorder: rec})...)
	require.NoError(t, err)
	mc.SetParallelism(1)
	failAfterProcessing(mc)

	var emitted atomic.Int32
	for _, c := range mc.Compilers() {
		GetCompilerHooks(c).TapAfterEmit("count", func(context.Context, hooks.Emitted) error {
			emitted.Add(1)
			return nil
		})
	}

	_, err = mc.Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "member one failed after processing assets")
	_, statErr := os.Stat(filepath.Join(out, DefaultFileName))
	assert.True(t, os.IsNotExist(statErr), "a failed member must not leave a complete manifest")
	assert.EqualValues(t, 0, emitted.Load())
	assert.Equal(t, 1, rec.emits["suppressed"])
	assert.Zero(t, rec.emits["emitted"])
}

func TestComposite_FailureAfterArrivalPartialEmitDropsEntries(t *testing.T) {
	out := t.TempDir()
	mc, err := bundler.NewMultiCompiler(twoConfigs(t, out, Options{PartialPolicy: coordinator.PartialEmit})...)
	require.NoError(t, err)
	mc.SetParallelism(1)
	failAfterProcessing(mc)

	var events []hooks.Emitted
	GetCompilerHooks(mc.Compilers()[1]).TapAfterEmit("capture", func(_ context.Context, e hooks.Emitted) error {
		events = append(events, e)
		return nil
	})

	_, err = mc.Run(context.Background())
	require.Error(t, err)

	m := readManifest(t, filepath.Join(out, DefaultFileName))
	assert.Equal(t, map[string]string{"two.js": "two.js"}, m.Map())
	require.Len(t, events, 1)
	assert.False(t, events[0].Complete)
	assert.Equal(t, []string{"second"}, events[0].Members)
}

func TestComposite_PartialEmit(t *testing.T) {
	out := t.TempDir()
	cfgs := twoConfigs(t, out, Options{PartialPolicy: coordinator.PartialEmit})
	cfgs[1].Entry = []bundler.Entry{entry("two", "./missing.js")}

	mc, err := bundler.NewMultiCompiler(cfgs...)
	require.NoError(t, err)
	var events []hooks.Emitted
	var count atomic.Int32
	GetCompilerHooks(mc.Compilers()[0]).TapAfterEmit("capture", func(_ context.Context, e hooks.Emitted) error {
		count.Add(1)
		events = append(events, e)
		return nil
	})

	_, err = mc.Run(context.Background())
	require.Error(t, err, "the failed member still fails the run")

	m := readManifest(t, filepath.Join(out, DefaultFileName))
	assert.Equal(t, map[string]string{"one.js": "one.js"}, m.Map())
	require.EqualValues(t, 1, count.Load())
	assert.False(t, events[0].Complete)
	assert.Equal(t, []string{"first"}, events[0].Members)
}

func TestComposite_ConflictingPolicies(t *testing.T) {
	cfgs := twoConfigs(t, t.TempDir(), Options{})
	cfgs[1].Plugins = []bundler.Plugin{New(Options{PartialPolicy: coordinator.PartialEmit})}
	_, err := bundler.NewMultiCompiler(cfgs...)
	require.Error(t, err)
}
