package config

import (
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/assetmanifest/internal/foundation/errors"
	"git.home.luguber.info/inful/assetmanifest/internal/manifest"
)

// EntryPoint is one named entry and its imports.
type EntryPoint struct {
	Name    string
	Imports []string
}

// EntryMap keeps entries in document order. It accepts a single path
// (entry "main"), a mapping of name to path, or a mapping of name to a list
// of paths.
type EntryMap []EntryPoint

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *EntryMap) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*e = EntryMap{{Name: "main", Imports: []string{node.Value}}}
		return nil
	case yaml.SequenceNode:
		var imports []string
		if err := node.Decode(&imports); err != nil {
			return err
		}
		*e = EntryMap{{Name: "main", Imports: imports}}
		return nil
	case yaml.MappingNode:
	default:
		return errors.ConfigError("entry must be a path, a list of paths or a mapping").
			WithContext("line", node.Line).Build()
	}

	out := make(EntryMap, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		ep := EntryPoint{Name: key.Value}
		switch val.Kind {
		case yaml.ScalarNode:
			ep.Imports = []string{val.Value}
		case yaml.SequenceNode:
			if err := val.Decode(&ep.Imports); err != nil {
				return err
			}
		default:
			return errors.ConfigError("entry imports must be a path or a list of paths").
				WithContext("entry", key.Value).WithContext("line", val.Line).Build()
		}
		out = append(out, ep)
	}
	*e = out
	return nil
}

// SeedMap is the ordered seed manifest. Every value must be a YAML string.
type SeedMap struct {
	m *manifest.Manifest
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *SeedMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return errors.ConfigError("manifest seed must be a mapping").WithContext("line", node.Line).Build()
	}
	m := manifest.New()
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if val.Kind != yaml.ScalarNode || val.Tag != "!!str" {
			return errors.ConfigError("manifest seed values must be strings").
				WithContext("key", key.Value).WithContext("line", val.Line).Build()
		}
		m.Set(key.Value, val.Value)
	}
	s.m = m
	return nil
}

// Manifest returns the seed, or nil when none was configured.
func (s SeedMap) Manifest() *manifest.Manifest {
	if s.m == nil {
		return nil
	}
	return s.m.Clone()
}

// NewSeedMap wraps m.
func NewSeedMap(m *manifest.Manifest) SeedMap { return SeedMap{m: m} }
