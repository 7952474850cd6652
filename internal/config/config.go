// Package config loads the YAML build file driving the assetmanifest CLI.
package config

// Config is the root of a build file.
type Config struct {
	Builds   []BuildConfig  `yaml:"builds"`
	Manifest ManifestConfig `yaml:"manifest"`
	History  HistoryConfig  `yaml:"history"`
	NATS     NATSConfig     `yaml:"nats"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Watch    WatchConfig    `yaml:"watch"`

	// baseDir is the directory relative paths are resolved against.
	baseDir string
}

// BuildConfig describes one bundler configuration.
type BuildConfig struct {
	Name       string       `yaml:"name"`
	Context    string       `yaml:"context"`
	Entry      EntryMap     `yaml:"entry"`
	Output     OutputConfig `yaml:"output"`
	Devtool    string       `yaml:"devtool"`
	Rules      []RuleConfig `yaml:"rules"`
	HashLength int          `yaml:"hash_length"`
}

// OutputConfig controls where a build writes.
type OutputConfig struct {
	Path          string `yaml:"path"`
	Filename      string `yaml:"filename"`
	AssetFilename string `yaml:"asset_filename"`
	PublicPath    string `yaml:"public_path"`
	InMemory      bool   `yaml:"in_memory"`
}

// RuleConfig routes matching modules through a module type.
type RuleConfig struct {
	Test     string `yaml:"test"`
	Type     string `yaml:"type"`
	Filename string `yaml:"filename"`
}

// ManifestConfig configures the manifest plugin shared by all builds.
type ManifestConfig struct {
	FileName        string  `yaml:"file_name"`
	Seed            SeedMap `yaml:"seed"`
	BasePath        string  `yaml:"base_path"`
	PublicPath      *string `yaml:"public_path"`
	KeepQueryString bool    `yaml:"keep_query_string"`
	UseEntryKeys    bool    `yaml:"use_entry_keys"`
	EmitAsset       *bool   `yaml:"emit_asset"`
	WriteToFileEmit bool    `yaml:"write_to_file_emit"`
	PartialPolicy   string  `yaml:"partial_policy"`

	// RemoveKeyHash nil keeps the default pattern, "" disables hash removal.
	RemoveKeyHash *string `yaml:"remove_key_hash"`

	// Sort orders entries by key when set to "name".
	Sort string `yaml:"sort"`
}

// HistoryConfig enables the SQLite manifest history.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// NATSConfig enables publishing emitted manifests.
type NATSConfig struct {
	Enabled   bool        `yaml:"enabled"`
	URL       string      `yaml:"url"`
	Subject   string      `yaml:"subject"`
	JetStream bool        `yaml:"jetstream"`
	Stream    string      `yaml:"stream"`
	Retry     RetryConfig `yaml:"retry"`
}

// RetryConfig controls publish retries. Durations use time.ParseDuration syntax.
type RetryConfig struct {
	Mode       string `yaml:"mode"`
	Initial    string `yaml:"initial"`
	Max        string `yaml:"max"`
	MaxRetries int    `yaml:"max_retries"`
}

// MetricsConfig enables the Prometheus endpoint in watch mode.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// WatchConfig tunes watch mode.
type WatchConfig struct {
	Debounce string `yaml:"debounce"`
}

// BaseDir returns the directory relative paths were resolved against.
func (c *Config) BaseDir() string { return c.baseDir }
