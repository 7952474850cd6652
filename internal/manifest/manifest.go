// Package manifest holds the ordered logical-name → emitted-name mapping written
// at the end of a build pass, and the accumulator that collects it.
package manifest

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"git.home.luguber.info/inful/assetmanifest/internal/foundation/errors"
)

// Entry is a single logical name and its emitted file name (or URL).
type Entry struct {
	Name  string
	Value string
}

// Manifest is an insertion-ordered string map. Overwriting a key keeps its
// original position. The zero value is an empty manifest ready to use.
type Manifest struct {
	keys   []string
	values map[string]string
}

// New creates an empty manifest, optionally pre-populated with entries in order.
func New(entries ...Entry) *Manifest {
	m := &Manifest{values: make(map[string]string, len(entries))}
	for _, e := range entries {
		m.Set(e.Name, e.Value)
	}
	return m
}

// Set writes name → value. It reports whether name was newly inserted.
func (m *Manifest) Set(name, value string) bool {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if _, ok := m.values[name]; ok {
		m.values[name] = value
		return false
	}
	m.keys = append(m.keys, name)
	m.values[name] = value
	return true
}

// Get returns the value for name.
func (m *Manifest) Get(name string) (string, bool) {
	v, ok := m.values[name]
	return v, ok
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	return len(m.keys)
}

// Keys returns the logical names in first-insertion order.
func (m *Manifest) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Entries returns all entries in first-insertion order.
func (m *Manifest) Entries() []Entry {
	out := make([]Entry, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, Entry{Name: k, Value: m.values[k]})
	}
	return out
}

// Map returns an unordered copy, mostly useful for assertions.
func (m *Manifest) Map() map[string]string {
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// Clone returns a deep copy.
func (m *Manifest) Clone() *Manifest {
	return New(m.Entries()...)
}

// MarshalJSON encodes the manifest as a JSON object in insertion order.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *Manifest) encode(w *bytes.Buffer) error {
	w.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			w.WriteByte(',')
		}
		if err := writeString(w, k); err != nil {
			return err
		}
		w.WriteByte(':')
		if err := writeString(w, m.values[k]); err != nil {
			return err
		}
	}
	w.WriteByte('}')
	return nil
}

func writeString(w *bytes.Buffer, s string) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode terminates every value with a newline.
	w.Truncate(w.Len() - 1)
	return nil
}

// UnmarshalJSON decodes a JSON object keeping document key order.
// Non-string values are rejected.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return ErrNotObject
	}
	out := New()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read manifest key: %w", err)
		}
		key, _ := keyTok.(string)
		valTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read manifest value for %q: %w", key, err)
		}
		val, ok := valTok.(string)
		if !ok {
			return ErrNonStringValue.WithContext("key", key)
		}
		out.Set(key, val)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("read manifest end: %w", err)
	}
	*m = *out
	return nil
}

// ToJSON serializes the manifest as indented JSON (two spaces, no trailing newline).
func (m *Manifest) ToJSON() ([]byte, error) {
	compact, err := m.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	if m.Len() == 0 {
		return compact, nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", "  "); err != nil {
		return nil, fmt.Errorf("indent manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// FromJSON deserializes a manifest from JSON.
func FromJSON(data []byte) (*Manifest, error) {
	m := New()
	if err := m.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return m, nil
}

// Hash computes a deterministic hash of the manifest content, including key order.
func (m *Manifest) Hash() (string, error) {
	data, err := m.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshal for hash: %w", err)
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum), nil
}

var (
	// ErrNotObject indicates JSON input whose top level is not an object.
	ErrNotObject = errors.ConfigError("manifest JSON must be an object").Build()

	// ErrNonStringValue indicates a manifest value that is not a string.
	ErrNonStringValue = errors.ConfigError("manifest values must be strings").Build()
)
