// Package hooks defines the extension points fired around manifest emission.
package hooks

import (
	"context"
	"sync"

	"git.home.luguber.info/inful/assetmanifest/internal/foundation/errors"
	"git.home.luguber.info/inful/assetmanifest/internal/manifest"
)

// Hook names.
const (
	AfterEmit  = "afterEmit"
	BeforeEmit = "beforeEmit"
)

// BeforeEmitFunc may mutate m in place or return a replacement. Returning nil keeps m.
type BeforeEmitFunc func(ctx context.Context, m *manifest.Manifest) (*manifest.Manifest, error)

// AfterEmitFunc observes a finalized manifest.
type AfterEmitFunc func(ctx context.Context, e Emitted) error

// Emitted is the read-only view handed to afterEmit taps.
type Emitted struct {
	PassID   string
	FileName string
	// OutputPath is the absolute path the artifact is written to.
	OutputPath string
	Manifest   *manifest.Manifest
	Bytes      []byte
	// Complete is false when a composite pass emitted despite a failed member.
	Complete bool
	Members  []string
}

type tap[F any] struct {
	name string
	fn   F
}

// Set is the collection of manifest hooks bound to one compiler.
type Set struct {
	mu     sync.RWMutex
	before []tap[BeforeEmitFunc]
	after  []tap[AfterEmitFunc]
}

// NewSet returns an empty hook set.
func NewSet() *Set { return &Set{} }

// Names lists the extension points of a Set.
func (s *Set) Names() []string {
	return []string{AfterEmit, BeforeEmit}
}

// TapBeforeEmit registers fn under name. Taps run in registration order.
func (s *Set) TapBeforeEmit(name string, fn BeforeEmitFunc) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.before = append(s.before, tap[BeforeEmitFunc]{name: name, fn: fn})
	s.mu.Unlock()
}

// TapAfterEmit registers fn under name. Taps run in registration order.
func (s *Set) TapAfterEmit(name string, fn AfterEmitFunc) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.after = append(s.after, tap[AfterEmitFunc]{name: name, fn: fn})
	s.mu.Unlock()
}

// Taps returns the tap names registered for hook.
func (s *Set) Taps(hook string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	switch hook {
	case BeforeEmit:
		for _, t := range s.before {
			out = append(out, t.name)
		}
	case AfterEmit:
		for _, t := range s.after {
			out = append(out, t.name)
		}
	}
	return out
}

// CallBeforeEmit threads m through every beforeEmit tap and returns the result.
func (s *Set) CallBeforeEmit(ctx context.Context, m *manifest.Manifest) (*manifest.Manifest, error) {
	s.mu.RLock()
	taps := append([]tap[BeforeEmitFunc](nil), s.before...)
	s.mu.RUnlock()

	for _, t := range taps {
		next, err := callBefore(ctx, t, m)
		if err != nil {
			return nil, err
		}
		if next != nil {
			m = next
		}
	}
	return m, nil
}

// CallAfterEmit delivers e to every afterEmit tap, stopping at the first error.
// Each tap receives its own copy of the manifest and bytes.
func (s *Set) CallAfterEmit(ctx context.Context, e Emitted) error {
	s.mu.RLock()
	taps := append([]tap[AfterEmitFunc](nil), s.after...)
	s.mu.RUnlock()

	for _, t := range taps {
		view := e
		if e.Manifest != nil {
			view.Manifest = e.Manifest.Clone()
		}
		view.Bytes = append([]byte(nil), e.Bytes...)
		view.Members = append([]string(nil), e.Members...)
		if err := callAfter(ctx, t, view); err != nil {
			return err
		}
	}
	return nil
}

func callBefore(ctx context.Context, t tap[BeforeEmitFunc], m *manifest.Manifest) (out *manifest.Manifest, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.HookError("hook panicked").WithContext("hook", BeforeEmit).WithContext("tap", t.name).WithContext("panic", rec).Build()
		}
	}()
	out, err = t.fn(ctx, m)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryHook, "hook failed").Fatal().
			WithContext("hook", BeforeEmit).WithContext("tap", t.name).Build()
	}
	return out, nil
}

func callAfter(ctx context.Context, t tap[AfterEmitFunc], e Emitted) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.HookError("hook panicked").WithContext("hook", AfterEmit).WithContext("tap", t.name).WithContext("panic", rec).Build()
		}
	}()
	if err = t.fn(ctx, e); err != nil {
		return errors.WrapError(err, errors.CategoryHook, "hook failed").Fatal().
			WithContext("hook", AfterEmit).WithContext("tap", t.name).Build()
	}
	return nil
}
