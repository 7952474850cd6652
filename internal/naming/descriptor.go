// Package naming derives the logical manifest key for every file a compilation emits.
package naming

import (
	"path"
	"regexp"
	"strings"
)

// Descriptor is the fixed description of one emitted file handed to filter,
// map, sort and generate callbacks.
type Descriptor struct {
	// ID identifies the file inside its compilation (chunk id + file, or asset name).
	ID string
	// Name is the logical manifest key.
	Name string
	// Path is the emitted file name, used as manifest value.
	Path string
	// Chunk is the owning chunk or entry name, empty for standalone assets.
	Chunk string
	// AuxiliaryOf is the emitted path of the primary file for auxiliary outputs such as source maps.
	AuxiliaryOf string

	IsInitial     bool
	IsChunk       bool
	IsAsset       bool
	IsModuleAsset bool
}

// IsAuxiliary reports whether the descriptor was derived from a primary file.
func (d Descriptor) IsAuxiliary() bool {
	return d.AuxiliaryOf != ""
}

// DefaultTransformExtensions marks extensions that keep their inner extension in the key (one.js.map).
var DefaultTransformExtensions = regexp.MustCompile(`(?i)^(gz|map)$`)

// DefaultRemoveKeyHash matches hash fragments stripped from keys.
var DefaultRemoveKeyHash = regexp.MustCompile(`(?i)([a-f0-9]{16,32}\.?)`)

// StripQuery removes a trailing ?query component.
func StripQuery(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		return p[:i]
	}
	return p
}

// FileType returns the key extension for a file: the last extension, or the last
// two when the last one matches transform (one.js.map → js.map).
func FileType(fileName string, transform *regexp.Regexp) string {
	parts := strings.Split(StripQuery(fileName), ".")
	if len(parts) < 2 {
		return ""
	}
	ext := parts[len(parts)-1]
	if transform != nil && transform.MatchString(ext) && len(parts) > 2 {
		return parts[len(parts)-2] + "." + ext
	}
	return ext
}

func normalizeSlashes(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

func joinDir(file, base string) string {
	dir := path.Dir(normalizeSlashes(StripQuery(file)))
	if dir == "." {
		return base
	}
	return dir + "/" + base
}

// Entrypoint lists the emitted files one entry point loads, in load order.
type Entrypoint struct {
	Name  string
	Files []string
}
