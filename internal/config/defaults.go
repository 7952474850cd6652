package config

import (
	"path/filepath"
	"strconv"
)

const (
	defaultManifestFile = "manifest.json"
	defaultHistoryPath  = "manifest-history.db"
	defaultNATSURL      = "nats://127.0.0.1:4222"
	defaultNATSSubject  = "assets.manifest"
	defaultNATSStream   = "ASSET_MANIFESTS"
	defaultMetricsAddr  = ":9464"
	defaultDebounce     = "200ms"
)

func applyDefaults(cfg *Config) {
	for i := range cfg.Builds {
		b := &cfg.Builds[i]
		if b.Name == "" {
			b.Name = "build-" + strconv.Itoa(i)
		}
		if b.Context == "" {
			b.Context = "."
		}
		b.Context = cfg.resolve(b.Context)
		if b.Output.Path == "" {
			b.Output.Path = "dist"
		}
		b.Output.Path = cfg.resolve(b.Output.Path)
	}

	if cfg.Manifest.FileName == "" {
		cfg.Manifest.FileName = defaultManifestFile
	}
	if cfg.Manifest.PartialPolicy == "" {
		cfg.Manifest.PartialPolicy = "fail"
	}

	if cfg.History.Path == "" {
		cfg.History.Path = defaultHistoryPath
	}
	if cfg.History.Path != ":memory:" {
		cfg.History.Path = cfg.resolve(cfg.History.Path)
	}

	if cfg.NATS.URL == "" {
		cfg.NATS.URL = defaultNATSURL
	}
	if cfg.NATS.Subject == "" {
		cfg.NATS.Subject = defaultNATSSubject
	}
	if cfg.NATS.JetStream && cfg.NATS.Stream == "" {
		cfg.NATS.Stream = defaultNATSStream
	}

	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = defaultMetricsAddr
	}
	if cfg.Watch.Debounce == "" {
		cfg.Watch.Debounce = defaultDebounce
	}
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) || c.baseDir == "" {
		return filepath.Clean(p)
	}
	return filepath.Join(c.baseDir, p)
}
