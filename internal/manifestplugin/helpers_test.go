package manifestplugin

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/assetmanifest/internal/bundler"
	"git.home.luguber.info/inful/assetmanifest/internal/manifest"
	"git.home.luguber.info/inful/assetmanifest/internal/metrics"
)

// fixtures writes the source files shared by the tests and returns their directory.
func fixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"file.js":     "console.log('file');\n",
		"file-two.js": "console.log('file two');\n",
		"file.txt":    "plain text\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
	return dir
}

func entry(name string, imports ...string) bundler.Entry {
	return bundler.Entry{Name: name, Imports: imports}
}

// compile runs a single compiler with the plugin applied and returns the
// manifest read back from disk.
func compile(t *testing.T, opts bundler.Options, popts Options) (*manifest.Manifest, *bundler.Stats) {
	t.Helper()
	opts.Plugins = append(opts.Plugins, New(popts))
	c, err := bundler.NewCompiler(opts)
	require.NoError(t, err)
	stats, err := c.Run(context.Background())
	require.NoError(t, err)

	name := popts.FileName
	if name == "" {
		name = DefaultFileName
	}
	return readManifest(t, filepath.Join(opts.Output.Path, name)), stats
}

func readManifest(t *testing.T, path string) *manifest.Manifest {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	m, err := manifest.FromJSON(data)
	require.NoError(t, err)
	return m
}

type fakeRecorder struct {
	mu       sync.Mutex
	emits    map[metrics.EmitOutcome]int
	entries  map[string]int
	filtered int
	hooks    map[string]int
	passes   int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{emits: map[metrics.EmitOutcome]int{}, entries: map[string]int{}, hooks: map[string]int{}}
}

func (f *fakeRecorder) ObservePassDuration(time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passes++
}

func (f *fakeRecorder) IncManifestEmit(o metrics.EmitOutcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emits[o]++
}

func (f *fakeRecorder) SetManifestEntries(file string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[file] = n
}

func (f *fakeRecorder) IncFilteredAssets(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filtered += n
}

func (f *fakeRecorder) IncHookFailure(hook string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks[hook]++
}
