package eventstore

import (
	"git.home.luguber.info/inful/assetmanifest/internal/manifest"
)

// Change is a key whose value differs between two manifests.
type Change struct {
	Name     string
	Previous string
	Current  string
}

// Delta describes how a manifest changed from one pass to the next.
type Delta struct {
	Added   []manifest.Entry
	Removed []manifest.Entry
	Changed []Change
}

// Empty reports whether both manifests held the same entries.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Diff compares prev against next. Added and changed entries follow next's
// order, removed entries follow prev's order. A nil manifest is empty.
func Diff(prev, next *manifest.Manifest) Delta {
	if prev == nil {
		prev = manifest.New()
	}
	if next == nil {
		next = manifest.New()
	}
	var d Delta
	for _, e := range next.Entries() {
		old, ok := prev.Get(e.Name)
		switch {
		case !ok:
			d.Added = append(d.Added, e)
		case old != e.Value:
			d.Changed = append(d.Changed, Change{Name: e.Name, Previous: old, Current: e.Value})
		}
	}
	for _, e := range prev.Entries() {
		if _, ok := next.Get(e.Name); !ok {
			d.Removed = append(d.Removed, e)
		}
	}
	return d
}
