package coordinator

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/assetmanifest/internal/foundation/errors"
	"git.home.luguber.info/inful/assetmanifest/internal/hooks"
	"git.home.luguber.info/inful/assetmanifest/internal/logfields"
	"git.home.luguber.info/inful/assetmanifest/internal/manifest"
	"git.home.luguber.info/inful/assetmanifest/internal/naming"
)

// Arrival is what a member reports once its own asset processing is done.
type Arrival struct {
	Files       []naming.Descriptor
	Entrypoints []naming.Entrypoint
}

// Outcome describes the effect of one Arrive or Fail call.
type Outcome struct {
	Pass *Pass
	// Final is true for exactly one call per pass: the one completing the barrier.
	Final bool
	// Complete is false when at least one member failed in this pass.
	Complete bool
	// Duplicate marks a repeated signal from a member that was already counted.
	Duplicate bool
}

// Group is the barrier shared by all members writing the same manifest file.
type Group struct {
	key    string
	policy Policy
	logger *slog.Logger

	mu      sync.Mutex
	members []Member
	current *Pass
	passes  int
}

func newGroup(key string, policy Policy, logger *slog.Logger) *Group {
	return &Group{key: key, policy: policy, logger: logger}
}

func (g *Group) add(m Member, policy Policy) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.passes > 0 {
		return errors.ConfigError("group membership is fixed once a pass has started").
			WithContext("group", g.key).WithContext("member", m.Name).Build()
	}
	if policy != g.policy {
		return errors.ConfigError("conflicting partial policies for one manifest file").
			WithContext("group", g.key).WithContext("member", m.Name).
			WithContext("policy", policy.String()).Build()
	}
	if slices.ContainsFunc(g.members, func(x Member) bool { return x.Name == m.Name }) {
		return errors.ConfigError("duplicate member name in manifest group").
			WithContext("group", g.key).WithContext("member", m.Name).Build()
	}
	g.members = append(g.members, m)
	return nil
}

// Key returns the group key, the absolute manifest output path.
func (g *Group) Key() string { return g.key }

// Policy returns the group's failure policy.
func (g *Group) Policy() Policy { return g.policy }

// Members returns the members in join order.
func (g *Group) Members() []Member {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.members)
}

// MemberNames returns the member names in join order.
func (g *Group) MemberNames() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.memberNames()
}

func (g *Group) memberNames() []string {
	out := make([]string, len(g.members))
	for i, m := range g.members {
		out[i] = m.Name
	}
	return out
}

// HookSets returns the distinct hook sets of all members in join order.
func (g *Group) HookSets() []*hooks.Set {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []*hooks.Set
	for _, m := range g.members {
		if m.Hooks != nil && !slices.Contains(out, m.Hooks) {
			out = append(out, m.Hooks)
		}
	}
	return out
}

// Current returns the open pass, if any.
func (g *Group) Current() (*Pass, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil || g.current.settled {
		return nil, false
	}
	return g.current, true
}

// Begin returns the open pass, opening a new generation when none is open.
// A fresh pass gets a new ID and an accumulator seeded with the merge of all
// member seeds in join order.
func (g *Group) Begin(member string) (*Pass, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.isMember(member) {
		return nil, errors.InternalError("begin from a compiler outside the group").
			WithContext("group", g.key).WithContext("member", member).Build()
	}
	if g.current != nil && !g.current.settled {
		return g.current, nil
	}

	seed := manifest.New()
	for _, m := range g.members {
		if m.Seed == nil {
			continue
		}
		for _, e := range m.Seed.Entries() {
			seed.Set(e.Name, e.Value)
		}
	}
	acc := manifest.NewAccumulator()
	if err := acc.Seed(seed); err != nil {
		return nil, err
	}

	g.passes++
	g.current = &Pass{
		ID:          uuid.NewString(),
		Number:      g.passes,
		Started:     time.Now(),
		group:       g.key,
		acc:         acc,
		expected:    len(g.members),
		arrivals:    make(map[string]Arrival),
		failures:    make(map[string]error),
		memberNames: g.memberNames(),
	}
	g.logger.Debug("Opened manifest pass",
		logfields.PassID(g.current.ID),
		logfields.ManifestFile(g.key),
		logfields.Members(len(g.members)))
	return g.current, nil
}

// Arrive counts member as done for the open pass.
func (g *Group) Arrive(member string, a Arrival) (Outcome, error) {
	return g.signal(member, nil, func(p *Pass) { p.arrive(member, a) })
}

// Fail counts member as failed for the open pass. cause is kept for reporting.
func (g *Group) Fail(member string, cause error) (Outcome, error) {
	if cause == nil {
		cause = errors.BuildError("compilation failed").WithContext("member", member).Build()
	}
	return g.signal(member, cause, func(p *Pass) { p.fail(member, cause) })
}

// signal records one member signal. A failure from a member that already
// arrived at an open pass retracts the arrival; it does not count twice.
func (g *Group) signal(member string, failure error, record func(*Pass)) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.isMember(member) {
		return Outcome{}, errors.InternalError("signal from a compiler outside the group").
			WithContext("group", g.key).WithContext("member", member).Build()
	}
	p := g.current
	if p == nil || p.settled {
		// Late signal for a settled pass, e.g. a failure reported after emission.
		return Outcome{Pass: p, Duplicate: true}, nil
	}
	if p.counted(member) {
		if failure != nil && p.retract(member, failure) {
			g.logger.Warn("Member failed after reaching manifest barrier",
				logfields.Compiler(member),
				logfields.PassID(p.ID),
				logfields.Error(failure))
			return Outcome{Pass: p}, nil
		}
		return Outcome{Pass: p, Duplicate: true, Complete: len(p.failures) == 0}, nil
	}
	record(p)

	arrived := len(p.arrivals) + len(p.failures)
	g.logger.Debug("Member reached manifest barrier",
		logfields.Compiler(member),
		logfields.PassID(p.ID),
		logfields.Arrived(arrived),
		logfields.Members(p.expected))

	out := Outcome{Pass: p, Complete: len(p.failures) == 0}
	if arrived == p.expected {
		p.settled = true
		out.Final = true
	}
	return out, nil
}

func (g *Group) isMember(name string) bool {
	return slices.ContainsFunc(g.members, func(m Member) bool { return m.Name == name })
}
