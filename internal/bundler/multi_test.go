package bundler

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiCompiler_SharesCoordinator(t *testing.T) {
	a := fixtureOptions(t)
	a.Name = "a"
	b := fixtureOptions(t)
	b.Name = "b"

	var applied atomic.Int32
	recorder := PluginFunc{PluginName: "recorder", Fn: func(c *Compiler) error {
		applied.Add(1)
		return nil
	}}
	a.Plugins = []Plugin{recorder}
	b.Plugins = []Plugin{recorder}

	mc, err := NewMultiCompiler(a, b)
	require.NoError(t, err)
	assert.EqualValues(t, 2, applied.Load())

	cs := mc.Compilers()
	require.Len(t, cs, 2)
	assert.Same(t, cs[0].Coordinator(), cs[1].Coordinator())
	assert.Same(t, mc.Coordinator(), cs[0].Coordinator())
	assert.NotSame(t, cs[0].ManifestHooks(), cs[1].ManifestHooks())

	stats, err := mc.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, stats.Stats, 2)
	assert.NotEmpty(t, stats.Hash("a"))
}

func TestMultiCompiler_CollectsAllErrors(t *testing.T) {
	a := fixtureOptions(t)
	a.Name = "a"
	a.Entry[0].Imports = []string{"./missing-a.js"}
	b := fixtureOptions(t)
	b.Name = "b"
	b.Entry[0].Imports = []string{"./missing-b.js"}
	c := fixtureOptions(t)
	c.Name = "c"

	mc, err := NewMultiCompiler(a, b, c)
	require.NoError(t, err)
	mc.SetParallelism(1)
	stats, err := mc.Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "missing-a.js")
	assert.ErrorContains(t, err, "missing-b.js")
	assert.Len(t, stats.Stats, 1)
}

func TestMultiCompiler_DuplicateNames(t *testing.T) {
	a := fixtureOptions(t)
	a.Name = "same"
	b := fixtureOptions(t)
	b.Name = "same"
	_, err := NewMultiCompiler(a, b)
	require.Error(t, err)
}
