package config

import (
	"log/slog"
	"regexp"
	"time"

	"git.home.luguber.info/inful/assetmanifest/internal/bundler"
	"git.home.luguber.info/inful/assetmanifest/internal/coordinator"
	"git.home.luguber.info/inful/assetmanifest/internal/foundation/errors"
	"git.home.luguber.info/inful/assetmanifest/internal/manifestplugin"
	"git.home.luguber.info/inful/assetmanifest/internal/naming"
	"git.home.luguber.info/inful/assetmanifest/internal/retry"
)

// ToCompilerOptions converts the builds into bundler options. Plugins are
// not attached.
func (c *Config) ToCompilerOptions(logger *slog.Logger) ([]bundler.Options, error) {
	out := make([]bundler.Options, 0, len(c.Builds))
	for _, b := range c.Builds {
		opts := bundler.Options{
			Name:       b.Name,
			Context:    b.Context,
			Devtool:    b.Devtool,
			HashLength: b.HashLength,
			Logger:     logger,
			Output: bundler.Output{
				Path:          b.Output.Path,
				Filename:      b.Output.Filename,
				AssetFilename: b.Output.AssetFilename,
				PublicPath:    b.Output.PublicPath,
				InMemory:      b.Output.InMemory,
			},
		}
		for _, e := range b.Entry {
			opts.Entry = append(opts.Entry, bundler.Entry{Name: e.Name, Imports: e.Imports})
		}
		for _, r := range b.Rules {
			re, err := regexp.Compile(r.Test)
			if err != nil {
				return nil, errors.WrapError(err, errors.CategoryConfig, "invalid rule test pattern").
					WithContext("build", b.Name).Build()
			}
			opts.Rules = append(opts.Rules, bundler.Rule{Test: re, Type: r.Type, Filename: r.Filename})
		}
		out = append(out, opts)
	}
	return out, nil
}

// ToPluginOptions converts the manifest section into plugin options.
func (c *Config) ToPluginOptions() (manifestplugin.Options, error) {
	m := c.Manifest
	policy, err := coordinator.ParsePolicy(m.PartialPolicy)
	if err != nil {
		return manifestplugin.Options{}, err
	}
	opts := manifestplugin.Options{
		FileName:        m.FileName,
		Seed:            m.Seed.Manifest(),
		BasePath:        m.BasePath,
		PublicPath:      m.PublicPath,
		KeepQueryString: m.KeepQueryString,
		UseEntryKeys:    m.UseEntryKeys,
		EmitAsset:       m.EmitAsset,
		WriteToFileEmit: m.WriteToFileEmit,
		PartialPolicy:   policy,
	}
	if m.RemoveKeyHash != nil {
		if *m.RemoveKeyHash == "" {
			opts.KeepKeyHash = true
		} else {
			re, err := regexp.Compile("(?i)" + *m.RemoveKeyHash)
			if err != nil {
				return manifestplugin.Options{}, errors.WrapError(err, errors.CategoryConfig, "invalid remove_key_hash pattern").Build()
			}
			opts.RemoveKeyHash = re
		}
	}
	if m.Sort == "name" {
		opts.Sort = naming.ByName
	}
	return opts, nil
}

// DebounceDuration returns the parsed watch debounce.
func (c *Config) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 200 * time.Millisecond
	}
	return d
}

// RetryPolicy returns the publish retry policy. Without max_retries nothing is retried.
func (n NATSConfig) RetryPolicy() retry.Policy {
	if n.Retry.MaxRetries <= 0 {
		return retry.None()
	}
	initial, _ := time.ParseDuration(n.Retry.Initial)
	maxDelay, _ := time.ParseDuration(n.Retry.Max)
	return retry.NewPolicy(retry.Mode(n.Retry.Mode), initial, maxDelay, n.Retry.MaxRetries)
}
