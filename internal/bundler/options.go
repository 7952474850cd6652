package bundler

import (
	"log/slog"
	"path/filepath"
	"regexp"

	"git.home.luguber.info/inful/assetmanifest/internal/foundation/errors"
)

// DevtoolSourceMap emits a separate .map file next to every chunk file.
const DevtoolSourceMap = "source-map"

// RuleTypeResource copies matched modules to the output directory as standalone files.
const RuleTypeResource = "asset/resource"

// Options configure one compiler (one build configuration).
type Options struct {
	Name    string
	Context string
	Entry   []Entry
	Output  Output
	Devtool string
	Rules   []Rule
	// HashLength truncates every hash placeholder. Defaults to 20.
	HashLength int
	Plugins    []Plugin
	Logger     *slog.Logger
}

// Entry is a named entry point and the modules it imports.
type Entry struct {
	Name    string
	Imports []string
}

// Output controls where and under which names files are written.
type Output struct {
	Path string
	// Filename is the chunk filename template, e.g. "[name].[contenthash].js".
	Filename string
	// AssetFilename is the default template for resource modules.
	AssetFilename string
	// PublicPath is the URL prefix of emitted files; "auto" means relative.
	PublicPath string
	// InMemory keeps emitted files in the compilation instead of writing them.
	InMemory bool
}

// Rule routes modules whose path matches Test through a module type.
type Rule struct {
	Test     *regexp.Regexp
	Type     string
	Filename string
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = "default"
	}
	if o.Output.Filename == "" {
		o.Output.Filename = "[name].js"
	}
	if o.Output.AssetFilename == "" {
		o.Output.AssetFilename = "[contenthash].[ext]"
	}
	if o.Output.PublicPath == "" {
		o.Output.PublicPath = "auto"
	}
	if o.HashLength <= 0 {
		o.HashLength = 20
	}
	if o.HashLength > 64 {
		o.HashLength = 64
	}
	if o.Context == "" {
		o.Context = "."
	}
	if abs, err := filepath.Abs(o.Context); err == nil {
		o.Context = abs
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Output.Path != "" && !filepath.IsAbs(o.Output.Path) {
		if abs, err := filepath.Abs(o.Output.Path); err == nil {
			o.Output.Path = abs
		}
	}
	return o
}

// Validate checks the options for values no compilation could work with.
func (o Options) Validate() error {
	if len(o.Entry) == 0 {
		return errors.ConfigError("at least one entry is required").WithContext("compiler", o.Name).Build()
	}
	seen := make(map[string]bool, len(o.Entry))
	for _, e := range o.Entry {
		if e.Name == "" {
			return errors.ConfigError("entry name is required").WithContext("compiler", o.Name).Build()
		}
		if seen[e.Name] {
			return errors.ConfigError("duplicate entry name").WithContext("compiler", o.Name).WithContext("entry", e.Name).Build()
		}
		seen[e.Name] = true
		if len(e.Imports) == 0 {
			return errors.ConfigError("entry has no imports").WithContext("compiler", o.Name).WithContext("entry", e.Name).Build()
		}
	}
	if o.Output.Path == "" && !o.Output.InMemory {
		return errors.ConfigError("output path is required").WithContext("compiler", o.Name).Build()
	}
	if o.Devtool != "" && o.Devtool != DevtoolSourceMap {
		return errors.ConfigError("unsupported devtool").WithContext("devtool", o.Devtool).Build()
	}
	for _, r := range o.Rules {
		if r.Test == nil {
			return errors.ConfigError("rule test pattern is required").WithContext("compiler", o.Name).Build()
		}
		if r.Type != RuleTypeResource {
			return errors.ConfigError("unsupported rule type").WithContext("type", r.Type).Build()
		}
	}
	return nil
}
