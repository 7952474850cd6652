// Package eventstore keeps a history of emitted manifests in SQLite.
package eventstore

import (
	"context"
	"time"

	"git.home.luguber.info/inful/assetmanifest/internal/manifest"
)

// Record is one emitted manifest.
type Record struct {
	ID         int64
	PassID     string
	FileName   string
	OutputPath string
	Hash       string
	Entries    int
	Complete   bool
	Members    []string
	Timestamp  time.Time
	Payload    []byte
}

// Manifest decodes the stored payload.
func (r Record) Manifest() (*manifest.Manifest, error) {
	return manifest.FromJSON(r.Payload)
}

// Store defines the interface for persisting and retrieving manifest records.
type Store interface {
	// Append stores a record. Appending the same pass twice is a no-op.
	Append(ctx context.Context, r Record) error

	// Get returns the record of a pass.
	Get(ctx context.Context, passID string) (Record, error)

	// List returns the newest records first. An empty outputPath lists all files.
	List(ctx context.Context, outputPath string, limit int) ([]Record, error)

	// Close closes the store and releases resources.
	Close() error
}
