package coordinator

import (
	"errors"
	"sync"
	"time"

	"git.home.luguber.info/inful/assetmanifest/internal/manifest"
	"git.home.luguber.info/inful/assetmanifest/internal/naming"
)

// Pass is one generation of a group: a run of every member that ends in at
// most one emitted manifest.
type Pass struct {
	ID      string
	Number  int
	Started time.Time

	group       string
	acc         *manifest.Accumulator
	expected    int
	memberNames []string

	// guarded by the owning group's mutex
	order    []string
	arrivals map[string]Arrival
	failures map[string]error
	settled  bool

	claimOnce sync.Once
}

// Group returns the key of the group that opened the pass.
func (p *Pass) Group() string { return p.group }

// Accumulator returns the pass's shared manifest accumulator.
func (p *Pass) Accumulator() *manifest.Accumulator { return p.acc }

// Members returns the names of all members expected in this pass.
func (p *Pass) Members() []string { return append([]string(nil), p.memberNames...) }

// Arrived returns the names of members that completed, in arrival order.
// It must only be called after the pass was settled by a final signal.
func (p *Pass) Arrived() []string {
	out := make([]string, 0, len(p.order))
	for _, name := range p.order {
		if _, ok := p.arrivals[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Files concatenates the arrived members' files in arrival order. Like
// Arrived, it is only valid on a settled pass.
func (p *Pass) Files() []naming.Descriptor {
	var out []naming.Descriptor
	for _, name := range p.order {
		if a, ok := p.arrivals[name]; ok {
			out = append(out, a.Files...)
		}
	}
	return out
}

// Entrypoints concatenates the arrived members' entry points in arrival order.
func (p *Pass) Entrypoints() []naming.Entrypoint {
	var out []naming.Entrypoint
	for _, name := range p.order {
		if a, ok := p.arrivals[name]; ok {
			out = append(out, a.Entrypoints...)
		}
	}
	return out
}

// Failure joins the errors of all failed members, or returns nil.
func (p *Pass) Failure() error {
	var errs []error
	for _, name := range p.order {
		if err, ok := p.failures[name]; ok {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Claim returns true exactly once per pass. Emission runs only behind a
// successful claim.
func (p *Pass) Claim() bool {
	won := false
	p.claimOnce.Do(func() {
		won = true
	})
	return won
}

func (p *Pass) counted(member string) bool {
	_, ok := p.arrivals[member]
	_, failed := p.failures[member]
	return ok || failed
}

func (p *Pass) arrive(member string, a Arrival) {
	p.order = append(p.order, member)
	p.arrivals[member] = a
}

func (p *Pass) fail(member string, err error) {
	p.order = append(p.order, member)
	p.failures[member] = err
}

// retract turns an arrival of member into a failure. It reports false when
// member has not arrived.
func (p *Pass) retract(member string, err error) bool {
	if _, ok := p.arrivals[member]; !ok {
		return false
	}
	delete(p.arrivals, member)
	p.failures[member] = err
	return true
}
