package manifest

import (
	"sync"

	"git.home.luguber.info/inful/assetmanifest/internal/foundation/errors"
)

var (
	// ErrFrozen is returned when writing to a manifest that was already serialized.
	ErrFrozen = errors.BuildError("manifest already serialized for this pass").Build()

	// ErrAlreadySeeded is returned by a second Seed call.
	ErrAlreadySeeded = errors.ConfigError("manifest seed may only be applied once").Build()
)

// Accumulator owns the single mutable Manifest of one build pass. It is safe
// for concurrent use by the members of a composite build.
type Accumulator struct {
	mu     sync.Mutex
	m      *Manifest
	seeded bool
	frozen bool
}

// NewAccumulator returns an empty, unseeded accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{m: New()}
}

// Seed pre-populates the manifest. It must run before any Add; seed entries
// count as the first writes for ordering purposes.
func (a *Accumulator) Seed(initial *Manifest) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.frozen {
		return ErrFrozen
	}
	if a.seeded || a.m.Len() > 0 {
		return ErrAlreadySeeded
	}
	a.seeded = true
	if initial == nil {
		return nil
	}
	for _, e := range initial.Entries() {
		a.m.Set(e.Name, e.Value)
	}
	return nil
}

// Add records name → value. Last write wins; position is that of the first write.
func (a *Accumulator) Add(name, value string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.frozen {
		return ErrFrozen
	}
	a.m.Set(name, value)
	return nil
}

// Len returns the number of accumulated entries.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.m.Len()
}

// Snapshot returns a copy of the current manifest.
func (a *Accumulator) Snapshot() *Manifest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.m.Clone()
}

// Replace swaps the live manifest for m, e.g. after a generate override.
func (a *Accumulator) Replace(m *Manifest) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.frozen {
		return ErrFrozen
	}
	if m == nil {
		m = New()
	}
	a.m = m
	return nil
}

// Live returns the mutable manifest. Callers must not retain it past Freeze.
func (a *Accumulator) Live() *Manifest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.m
}

// Freeze marks the manifest immutable and returns it.
func (a *Accumulator) Freeze() *Manifest {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frozen = true
	return a.m
}

// Frozen reports whether Freeze was called.
func (a *Accumulator) Frozen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frozen
}
