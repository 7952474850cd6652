// Package coordinator joins the compilers of a composite build into groups
// that share one manifest and emit it once per pass, after every member is done.
package coordinator

import (
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/assetmanifest/internal/foundation/errors"
	"git.home.luguber.info/inful/assetmanifest/internal/hooks"
	"git.home.luguber.info/inful/assetmanifest/internal/logfields"
	"git.home.luguber.info/inful/assetmanifest/internal/manifest"
)

// Policy decides what happens to a pass in which a member failed.
type Policy int

const (
	// PartialFail suppresses the manifest and fails the pass.
	PartialFail Policy = iota
	// PartialEmit emits the manifest of the surviving members, marked incomplete.
	PartialEmit
)

func (p Policy) String() string {
	switch p {
	case PartialEmit:
		return "emit"
	default:
		return "fail"
	}
}

// ParsePolicy maps the configuration spelling of a policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "fail":
		return PartialFail, nil
	case "emit":
		return PartialEmit, nil
	default:
		return PartialFail, errors.ConfigError("unknown partial policy").WithContext("policy", s).Build()
	}
}

// Member is one compiler taking part in a group.
type Member struct {
	Name  string
	Seed  *manifest.Manifest
	Hooks *hooks.Set
}

// Coordinator owns the groups of one host run. A standalone compiler owns a
// private coordinator holding a single one-member group.
type Coordinator struct {
	mu     sync.Mutex
	groups map[string]*Group
	order  []string
	logger *slog.Logger
}

// New creates an empty coordinator. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{groups: make(map[string]*Group), logger: logger}
}

// Join adds m to the group keyed by key, creating it on first use. The first
// member fixes the group's policy; a later member asking for another policy is
// a configuration error, as is joining after the first pass has opened.
func (c *Coordinator) Join(key string, m Member, policy Policy) (*Group, error) {
	if key == "" {
		return nil, errors.ConfigError("group key is required").Build()
	}
	if m.Name == "" {
		return nil, errors.ConfigError("member name is required").WithContext("group", key).Build()
	}

	c.mu.Lock()
	g, ok := c.groups[key]
	if !ok {
		g = newGroup(key, policy, c.logger)
		c.groups[key] = g
		c.order = append(c.order, key)
	}
	c.mu.Unlock()

	if err := g.add(m, policy); err != nil {
		return nil, err
	}
	c.logger.Debug("Member joined manifest group",
		logfields.Compiler(m.Name),
		logfields.ManifestFile(key),
		logfields.Members(len(g.Members())))
	return g, nil
}

// Group returns the group keyed by key.
func (c *Coordinator) Group(key string) (*Group, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.groups[key]
	return g, ok
}

// Groups returns all groups in creation order.
func (c *Coordinator) Groups() []*Group {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Group, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.groups[k])
	}
	return out
}
