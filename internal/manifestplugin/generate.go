package manifestplugin

import (
	"git.home.luguber.info/inful/assetmanifest/internal/foundation/errors"
	"git.home.luguber.info/inful/assetmanifest/internal/manifest"
	"git.home.luguber.info/inful/assetmanifest/internal/naming"
)

// DefaultGenerate adds every descriptor as Name → Path on top of seed.
func DefaultGenerate(seed *manifest.Manifest, files []naming.Descriptor, _ []naming.Entrypoint) (*manifest.Manifest, error) {
	out := manifest.New()
	if seed != nil {
		out = seed.Clone()
	}
	for _, f := range files {
		out.Set(f.Name, f.Path)
	}
	return out, nil
}

// DefaultSerialize renders the manifest as two-space indented JSON.
func DefaultSerialize(m *manifest.Manifest) ([]byte, error) {
	return m.ToJSON()
}

func callGenerate(fn GenerateFunc, seed *manifest.Manifest, files []naming.Descriptor, eps []naming.Entrypoint) (out *manifest.Manifest, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.HookError("generate callback panicked").WithContext("panic", rec).Build()
		}
	}()
	out, err = fn(seed, files, eps)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryHook, "generate callback failed").Fatal().Build()
	}
	if out == nil {
		return nil, errors.ConfigError("generate callback returned no manifest").Build()
	}
	return out, nil
}

func callSerialize(fn SerializeFunc, m *manifest.Manifest) (out []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.SerializeError("serialize callback panicked").WithContext("panic", rec).Build()
		}
	}()
	out, err = fn(m)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategorySerialize, "manifest serialization failed").Fatal().Build()
	}
	return out, nil
}
