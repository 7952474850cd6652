package naming

import (
	"cmp"
	"path"
	"regexp"
	"slices"
	"strings"

	"git.home.luguber.info/inful/assetmanifest/internal/foundation/errors"
)

// FilterFunc decides whether a file appears in the manifest.
type FilterFunc func(Descriptor) (bool, error)

// MapFunc rewrites a descriptor. Its output is authoritative.
type MapFunc func(Descriptor) (Descriptor, error)

// SortFunc orders descriptors before generation, as in slices.SortStableFunc.
type SortFunc func(a, b Descriptor) int

// Options tune how names are derived.
type Options struct {
	BasePath            string
	PublicPath          string
	KeepQueryString     bool
	UseEntryKeys        bool
	TransformExtensions *regexp.Regexp
	RemoveKeyHash       *regexp.Regexp
	Filter              FilterFunc
	Map                 MapFunc
	Sort                SortFunc
	// Exclude lists emitted paths that never enter a manifest (the manifest files themselves).
	Exclude []string
}

// ChunkInput describes one chunk of a compilation.
type ChunkInput struct {
	ID             string
	Name           string
	Files          []string
	AuxiliaryFiles []string
	Initial        bool
}

// AssetInput describes one emitted asset of a compilation.
type AssetInput struct {
	Name           string
	SourceFilename string
	// Related maps a relation kind (e.g. "sourceMap") to the emitted path of the related asset.
	Related map[string]string
}

// Resolver turns chunk and asset tables into manifest descriptors.
type Resolver struct {
	opts Options
}

// NewResolver creates a resolver. Nil TransformExtensions falls back to the default;
// nil RemoveKeyHash disables hash stripping.
func NewResolver(opts Options) *Resolver {
	if opts.TransformExtensions == nil {
		opts.TransformExtensions = DefaultTransformExtensions
	}
	return &Resolver{opts: opts}
}

// Describe derives descriptors in chunk order, then asset order for assets
// not already claimed by a chunk.
func (r *Resolver) Describe(chunks []ChunkInput, assets []AssetInput) []Descriptor {
	var out []Descriptor
	used := make(map[string]bool)
	primaries := make(map[string]Descriptor)
	auxOwner := make(map[string]string)

	for _, c := range chunks {
		for _, file := range c.Files {
			d := r.chunkFile(c, file)
			out = append(out, d)
			used[file] = true
			primaries[file] = d
		}
		for _, aux := range c.AuxiliaryFiles {
			if owner := longestPrefix(aux, c.Files); owner != "" {
				auxOwner[aux] = owner
			} else if len(c.Files) > 0 {
				auxOwner[aux] = c.Files[0]
			}
		}
	}

	for _, a := range assets {
		for kind, related := range a.Related {
			if kind == "sourceMap" && related != "" {
				if _, ok := auxOwner[related]; !ok {
					auxOwner[related] = a.Name
				}
			}
		}
	}

	for _, a := range assets {
		if used[a.Name] {
			continue
		}
		used[a.Name] = true
		if owner, ok := auxOwner[a.Name]; ok {
			if primary, ok := primaries[owner]; ok {
				out = append(out, r.auxiliary(a.Name, primary))
				continue
			}
		}
		d := r.standalone(a)
		out = append(out, d)
		primaries[a.Name] = d
	}
	return out
}

func (r *Resolver) chunkFile(c ChunkInput, file string) Descriptor {
	name := StripQuery(file)
	if c.Name != "" {
		if r.opts.UseEntryKeys && !strings.HasSuffix(name, ".map") {
			name = c.Name
		} else if ext := FileType(file, r.opts.TransformExtensions); ext != "" {
			name = c.Name + "." + ext
		} else {
			name = c.Name
		}
	}
	return Descriptor{
		ID:        c.ID + ":" + file,
		Name:      name,
		Path:      r.value(file),
		Chunk:     c.Name,
		IsInitial: c.Initial,
		IsChunk:   true,
	}
}

// auxiliary names an auxiliary file after its primary: primary key + the
// auxiliary's own suffix.
func (r *Resolver) auxiliary(file string, primary Descriptor) Descriptor {
	stripped := StripQuery(file)
	primaryPath := StripQuery(primary.Path)
	suffix, ok := strings.CutPrefix(stripped, primaryPath)
	if !ok || suffix == "" {
		suffix = path.Ext(stripped)
	}
	return Descriptor{
		ID:          file,
		Name:        primary.Name + suffix,
		Path:        r.value(file),
		Chunk:       primary.Chunk,
		AuxiliaryOf: primary.Path,
		IsAsset:     true,
	}
}

func (r *Resolver) standalone(a AssetInput) Descriptor {
	d := Descriptor{
		ID:      a.Name,
		Name:    StripQuery(a.Name),
		Path:    r.value(a.Name),
		IsAsset: true,
	}
	if a.SourceFilename != "" {
		d.Name = joinDir(a.Name, path.Base(normalizeSlashes(a.SourceFilename)))
		d.IsModuleAsset = true
	}
	return d
}

func (r *Resolver) value(file string) string {
	if r.opts.KeepQueryString {
		return file
	}
	return StripQuery(file)
}

func longestPrefix(aux string, files []string) string {
	best := ""
	for _, f := range files {
		p := StripQuery(f)
		if strings.HasPrefix(StripQuery(aux), p) && len(p) > len(best) {
			best = f
		}
	}
	return best
}

// Transform applies prefixes, hash stripping, filter, map and sort, in that order.
func (r *Resolver) Transform(files []Descriptor) ([]Descriptor, error) {
	out := make([]Descriptor, 0, len(files))
	for _, f := range files {
		if r.excluded(f.Path) || strings.Contains(f.Path, "hot-update") {
			continue
		}
		if r.opts.BasePath != "" {
			f.Name = r.opts.BasePath + f.Name
		}
		if r.opts.PublicPath != "" {
			f.Path = r.opts.PublicPath + f.Path
		}
		if r.opts.RemoveKeyHash != nil {
			f.Name = r.opts.RemoveKeyHash.ReplaceAllString(f.Name, "")
		}
		out = append(out, f)
	}

	if r.opts.Filter != nil {
		kept := out[:0]
		for _, f := range out {
			ok, err := callFilter(r.opts.Filter, f)
			if err != nil {
				return nil, err
			}
			if ok {
				kept = append(kept, f)
			}
		}
		out = kept
	}

	if r.opts.Map != nil {
		for i, f := range out {
			mapped, err := callMap(r.opts.Map, f)
			if err != nil {
				return nil, err
			}
			if mapped.Name == "" || mapped.Path == "" {
				return nil, errors.ConfigError("map callback returned an empty name or path").
					WithContext("asset", f.Path).
					Build()
			}
			out[i] = mapped
		}
	}

	if r.opts.Sort != nil {
		var sortErr error
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					sortErr = errors.HookError("sort callback panicked").WithContext("panic", rec).Build()
				}
			}()
			slices.SortStableFunc(out, r.opts.Sort)
		}()
		if sortErr != nil {
			return nil, sortErr
		}
	}

	for i := range out {
		out[i].Name = normalizeSlashes(out[i].Name)
		out[i].Path = normalizeSlashes(out[i].Path)
	}
	return out, nil
}

func (r *Resolver) excluded(p string) bool {
	return slices.Contains(r.opts.Exclude, StripQuery(p))
}

func callFilter(fn FilterFunc, d Descriptor) (ok bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.HookError("filter callback panicked").WithContext("asset", d.Path).WithContext("panic", rec).Build()
		}
	}()
	ok, err = fn(d)
	if err != nil {
		return false, errors.WrapError(err, errors.CategoryHook, "filter callback failed").Fatal().
			WithContext("asset", d.Path).Build()
	}
	return ok, nil
}

func callMap(fn MapFunc, d Descriptor) (out Descriptor, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.HookError("map callback panicked").WithContext("asset", d.Path).WithContext("panic", rec).Build()
		}
	}()
	out, err = fn(d)
	if err != nil {
		return Descriptor{}, errors.WrapError(err, errors.CategoryHook, "map callback failed").Fatal().
			WithContext("asset", d.Path).Build()
	}
	return out, nil
}

// ByName orders descriptors by logical name.
func ByName(a, b Descriptor) int {
	return cmp.Compare(a.Name, b.Name)
}
