package manifestplugin

import (
	"log/slog"
	"regexp"

	"git.home.luguber.info/inful/assetmanifest/internal/bundler"
	"git.home.luguber.info/inful/assetmanifest/internal/coordinator"
	"git.home.luguber.info/inful/assetmanifest/internal/manifest"
	"git.home.luguber.info/inful/assetmanifest/internal/metrics"
	"git.home.luguber.info/inful/assetmanifest/internal/naming"
)

// DefaultFileName is the manifest file written when Options.FileName is empty.
const DefaultFileName = "manifest.json"

// GenerateFunc replaces the default generation step. seed is a copy of the
// merged seed of the group, files the resolved descriptors of every arrived
// member.
type GenerateFunc func(seed *manifest.Manifest, files []naming.Descriptor, entrypoints []naming.Entrypoint) (*manifest.Manifest, error)

// SerializeFunc renders the final manifest.
type SerializeFunc func(m *manifest.Manifest) ([]byte, error)

// Options configure a manifest plugin instance.
type Options struct {
	// FileName is resolved against the compiler output path unless absolute.
	FileName string
	Seed     *manifest.Manifest

	Filter    naming.FilterFunc
	Map       naming.MapFunc
	Sort      naming.SortFunc
	Generate  GenerateFunc
	Serialize SerializeFunc

	// EmitAsset registers the manifest as a compilation asset. Nil means true.
	EmitAsset *bool
	// WriteToFileEmit also writes the manifest straight to disk.
	WriteToFileEmit bool

	// PublicPath prefixes values. Nil uses the compiler's output public path.
	PublicPath      *string
	BasePath        string
	KeepQueryString bool
	UseEntryKeys    bool

	TransformExtensions *regexp.Regexp
	// RemoveKeyHash strips hashes from keys. Nil uses naming.DefaultRemoveKeyHash.
	RemoveKeyHash *regexp.Regexp
	// KeepKeyHash disables hash stripping.
	KeepKeyHash bool

	// Stage is the process-assets stage the plugin runs at. Zero means bundler.StageReport.
	Stage         int
	PartialPolicy coordinator.Policy

	Logger   *slog.Logger
	Recorder metrics.Recorder
}

// Ptr returns a pointer to v, for the optional fields of Options.
func Ptr[T any](v T) *T { return &v }

func (o Options) withDefaults() Options {
	if o.FileName == "" {
		o.FileName = DefaultFileName
	}
	if o.EmitAsset == nil {
		o.EmitAsset = Ptr(true)
	}
	if o.TransformExtensions == nil {
		o.TransformExtensions = naming.DefaultTransformExtensions
	}
	if o.RemoveKeyHash == nil {
		o.RemoveKeyHash = naming.DefaultRemoveKeyHash
	}
	if o.KeepKeyHash {
		o.RemoveKeyHash = nil
	}
	if o.Stage == 0 {
		o.Stage = bundler.StageReport
	}
	if o.Serialize == nil {
		o.Serialize = DefaultSerialize
	}
	if o.Recorder == nil {
		o.Recorder = metrics.NoopRecorder{}
	}
	return o
}
