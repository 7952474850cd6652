package naming

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	ferrors "git.home.luguber.info/inful/assetmanifest/internal/foundation/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(ds []Descriptor) map[string]string {
	out := make(map[string]string, len(ds))
	for _, d := range ds {
		out[d.Name] = d.Path
	}
	return out
}

func TestFileType(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"main.js", "js"},
		{"one.1a2b3c.js", "js"},
		{"one.js.map", "js.map"},
		{"one.js.gz", "js.gz"},
		{"one.js?v=123", "js"},
		{"style.CSS.MAP", "CSS.MAP"},
		{"LICENSE", ""},
		{"x.map", "map"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			assert.Equal(t, tt.want, FileType(tt.file, DefaultTransformExtensions))
		})
	}
}

func TestDescribeChunks(t *testing.T) {
	tests := []struct {
		name   string
		opts   Options
		chunks []ChunkInput
		want   map[string]string
	}{
		{
			name:   "single entry",
			chunks: []ChunkInput{{ID: "0", Name: "main", Files: []string{"main.js"}, Initial: true}},
			want:   map[string]string{"main.js": "main.js"},
		},
		{
			name:   "hashed filename keeps declared extension",
			chunks: []ChunkInput{{ID: "0", Name: "one", Files: []string{"one.0f3c9a1b2d4e5f60.js"}}},
			want:   map[string]string{"one.js": "one.0f3c9a1b2d4e5f60.js"},
		},
		{
			name:   "query string stripped from key and value",
			chunks: []ChunkInput{{ID: "0", Name: "one", Files: []string{"one.js?abc"}}},
			want:   map[string]string{"one.js": "one.js"},
		},
		{
			name:   "query string kept in value on request",
			opts:   Options{KeepQueryString: true},
			chunks: []ChunkInput{{ID: "0", Name: "one", Files: []string{"one.js?abc"}}},
			want:   map[string]string{"one.js": "one.js?abc"},
		},
		{
			name:   "unnamed chunk falls back to file name",
			chunks: []ChunkInput{{ID: "7", Files: []string{"7.chunk.js"}}},
			want:   map[string]string{"7.chunk.js": "7.chunk.js"},
		},
		{
			name:   "entry keys",
			opts:   Options{UseEntryKeys: true},
			chunks: []ChunkInput{{ID: "0", Name: "one", Files: []string{"one.js", "one.css"}}},
			want:   map[string]string{"one": "one.css"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewResolver(tt.opts).Describe(tt.chunks, nil)
			assert.Equal(t, tt.want, names(got))
			for _, d := range got {
				assert.True(t, d.IsChunk)
			}
		})
	}
}

func TestDescribeSourceMapDerivesFromPrimary(t *testing.T) {
	r := NewResolver(Options{})
	chunks := []ChunkInput{{
		ID:             "0",
		Name:           "one",
		Files:          []string{"one.5d41402abc4b2a76b9719d911017c592.js"},
		AuxiliaryFiles: []string{"one.5d41402abc4b2a76b9719d911017c592.js.map"},
	}}
	assets := []AssetInput{
		{Name: "one.5d41402abc4b2a76b9719d911017c592.js"},
		{Name: "one.5d41402abc4b2a76b9719d911017c592.js.map"},
	}

	got := r.Describe(chunks, assets)

	require.Len(t, got, 2)
	assert.Equal(t, "one.js", got[0].Name)
	assert.Equal(t, "one.js.map", got[1].Name)
	assert.Equal(t, "one.5d41402abc4b2a76b9719d911017c592.js.map", got[1].Path)
	assert.Equal(t, got[0].Path, got[1].AuxiliaryOf)
	assert.True(t, got[1].IsAuxiliary())
}

func TestDescribeSourceMapViaRelatedInfo(t *testing.T) {
	r := NewResolver(Options{})
	assets := []AssetInput{
		{Name: "styles.abc.css", SourceFilename: "src/styles.css", Related: map[string]string{"sourceMap": "maps/styles.abc.css.map"}},
		{Name: "maps/styles.abc.css.map"},
	}

	got := r.Describe(nil, assets)

	require.Len(t, got, 2)
	assert.Equal(t, "styles.css", got[0].Name)
	assert.Equal(t, "styles.css.map", got[1].Name)
}

func TestDescribeAssets(t *testing.T) {
	r := NewResolver(Options{})
	chunks := []ChunkInput{{ID: "0", Name: "main", Files: []string{"main.js"}, Initial: true}}
	assets := []AssetInput{
		{Name: "main.js"},
		{Name: "static/file.8d777f385d3dfec8.txt", SourceFilename: "../fixtures/file.txt"},
		{Name: "robots.txt"},
	}

	got := r.Describe(chunks, assets)

	assert.Equal(t, map[string]string{
		"main.js":         "main.js",
		"static/file.txt": "static/file.8d777f385d3dfec8.txt",
		"robots.txt":      "robots.txt",
	}, names(got))
	assert.True(t, got[1].IsModuleAsset)
	assert.False(t, got[2].IsModuleAsset)
	assert.Equal(t, "", got[2].Chunk)
}

func TestDescribeUnknownAuxiliaryFallsBackToIdentity(t *testing.T) {
	r := NewResolver(Options{})
	chunks := []ChunkInput{{ID: "0", Name: "main", AuxiliaryFiles: []string{"orphan.js.map"}}}

	got := r.Describe(chunks, []AssetInput{{Name: "orphan.js.map"}})

	assert.Equal(t, map[string]string{"orphan.js.map": "orphan.js.map"}, names(got))
}

func TestTransformPrefixesAndHashRemoval(t *testing.T) {
	r := NewResolver(Options{
		BasePath:      "app/",
		PublicPath:    "https://cdn.example.com/",
		RemoveKeyHash: DefaultRemoveKeyHash,
	})
	files := []Descriptor{
		{Name: "one.js", Path: "one.js"},
		{Name: "font.0123456789abcdef0123.woff", Path: "font.0123456789abcdef0123.woff"},
	}

	got, err := r.Transform(files)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"app/one.js":    "https://cdn.example.com/one.js",
		"app/font.woff": "https://cdn.example.com/font.0123456789abcdef0123.woff",
	}, names(got))
}

func TestTransformExcludesManifestAndHotUpdates(t *testing.T) {
	r := NewResolver(Options{Exclude: []string{"manifest.json"}})
	got, err := r.Transform([]Descriptor{
		{Name: "manifest.json", Path: "manifest.json"},
		{Name: "main.hot-update.js", Path: "main.hot-update.js"},
		{Name: "main.js", Path: "main.js"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"main.js": "main.js"}, names(got))
}

func TestTransformFilter(t *testing.T) {
	r := NewResolver(Options{Filter: func(d Descriptor) (bool, error) {
		return !strings.HasSuffix(d.Path, ".map"), nil
	}})
	got, err := r.Transform([]Descriptor{
		{Name: "one.js", Path: "one.js"},
		{Name: "one.js.map", Path: "one.js.map"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"one.js": "one.js"}, names(got))
}

func TestTransformMapIsAuthoritative(t *testing.T) {
	r := NewResolver(Options{Map: func(d Descriptor) (Descriptor, error) {
		d.Name = "assets/" + d.Name
		return d, nil
	}})
	got, err := r.Transform([]Descriptor{{Name: "one.js", Path: "one.js"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"assets/one.js": "one.js"}, names(got))
}

func TestTransformCallbackErrorsPropagate(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name string
		opts Options
	}{
		{"filter error", Options{Filter: func(Descriptor) (bool, error) { return false, boom }}},
		{"map error", Options{Map: func(Descriptor) (Descriptor, error) { return Descriptor{}, boom }}},
		{"filter panic", Options{Filter: func(Descriptor) (bool, error) { panic("bad filter") }}},
		{"map panic", Options{Map: func(Descriptor) (Descriptor, error) { panic("bad map") }}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewResolver(tt.opts).Transform([]Descriptor{{Name: "one.js", Path: "one.js"}})
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryHook))
		})
	}
}

func TestTransformMapEmptyResultIsConfigError(t *testing.T) {
	r := NewResolver(Options{Map: func(d Descriptor) (Descriptor, error) {
		d.Path = ""
		return d, nil
	}})
	_, err := r.Transform([]Descriptor{{Name: "one.js", Path: "one.js"}})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestTransformSortAndSlashes(t *testing.T) {
	r := NewResolver(Options{Sort: ByName})
	got, err := r.Transform([]Descriptor{
		{Name: `b\two.js`, Path: `b\two.js`},
		{Name: "a/one.js", Path: "a/one.js"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a/one.js", got[0].Name)
	assert.Equal(t, "b/two.js", got[1].Path)
}

func TestCustomTransformExtensions(t *testing.T) {
	r := NewResolver(Options{TransformExtensions: regexp.MustCompile(`^(br)$`)})
	got := r.Describe([]ChunkInput{{ID: "0", Name: "one", Files: []string{"one.js.br", "one.js.map"}}}, nil)
	assert.Equal(t, "one.js.br", got[0].Name)
	assert.Equal(t, "one.map", got[1].Name)
}
