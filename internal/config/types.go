// Package config assembles the zeev configuration from built-in defaults, the
// user's zeev.yaml and the environment.
package config

import (
	"path/filepath"
	"time"

	"github.com/leapstack-labs/zeev/internal/source"
)

// Config holds the fully assembled configuration of one session.
// It is built once at startup and only read afterwards.
type Config struct {
	OutDir     string           `koanf:"outDir"`
	Connection ConnectionConfig `koanf:"connection"`
	Watch      WatchConfig      `koanf:"watch"`
	Env        EnvConfig        `koanf:"env"`
	Server     ServerConfig     `koanf:"server"`
	Mocks      MockConfig       `koanf:"mocks"`

	// Src holds the declared build targets; nil when the user declared none.
	Src *source.SourceConfig `koanf:"-"`

	// ExplicitMocks is true when the user configuration has a mocks section.
	// The mock server only starts on explicit request.
	ExplicitMocks bool `koanf:"-"`

	// Environment is the running environment name (NODE_ENV).
	Environment string `koanf:"-"`

	// ConfigFile is the config file that was loaded, "" in zero-config mode.
	ConfigFile string `koanf:"-"`

	// Root is the project directory. Entries, outDir and the mocks file are
	// relative to it.
	Root string `koanf:"-"`
}

// Path resolves a project-relative path against Root.
func (c *Config) Path(rel string) string {
	if rel == "" || filepath.IsAbs(rel) || c.Root == "" {
		return rel
	}
	return filepath.Join(c.Root, rel)
}

// IsProduction reports whether bundles should be built for production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ConnectionConfig configures the SQL Server connection used to sync forms.
// Database, User, Password and Server are only ever read from the environment.
type ConnectionConfig struct {
	Port    int               `koanf:"port"`
	Pool    PoolConfig        `koanf:"pool"`
	Options ConnectionOptions `koanf:"options"`

	Database string `koanf:"-"`
	User     string `koanf:"-"`
	Password string `koanf:"-"`
	Server   string `koanf:"-"`
}

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	Max               int `koanf:"max"`
	Min               int `koanf:"min"`
	IdleTimeoutMillis int `koanf:"idleTimeoutMillis"`
}

// IdleTimeout returns the pool idle timeout.
func (p PoolConfig) IdleTimeout() time.Duration {
	return time.Duration(p.IdleTimeoutMillis) * time.Millisecond
}

// ConnectionOptions holds TLS settings.
type ConnectionOptions struct {
	Encrypt                bool `koanf:"encrypt"`
	TrustServerCertificate bool `koanf:"trustServerCertificate"`
}

// WatchConfig tunes the file watcher.
type WatchConfig struct {
	// IgnoreInitial skips change events for files present at startup.
	IgnoreInitial    bool                   `koanf:"ignoreInitial"`
	AwaitWriteFinish AwaitWriteFinishConfig `koanf:"awaitWriteFinish"`
}

// AwaitWriteFinishConfig delays events until a file stops changing.
type AwaitWriteFinishConfig struct {
	StabilityThreshold int `koanf:"stabilityThreshold"` // milliseconds
}

// Stability returns the write stabilisation delay.
func (w WatchConfig) Stability() time.Duration {
	return time.Duration(w.AwaitWriteFinish.StabilityThreshold) * time.Millisecond
}

// EnvConfig controls dotenv loading and bundle variables.
type EnvConfig struct {
	Path      string `koanf:"path"`
	EnvPrefix string `koanf:"envPrefix"`

	// BundleVariables maps process.env.<NAME> to a JSON string literal for
	// every environment variable whose name contains EnvPrefix.
	BundleVariables map[string]string `koanf:"-"`
}

// ServerConfig configures the static dev server.
type ServerConfig struct {
	Enabled    bool `koanf:"-"`
	Port       int  `koanf:"port"`
	Livereload bool `koanf:"livereload"`
}

// MockConfig configures the JSON mock API server.
type MockConfig struct {
	Enabled   bool   `koanf:"-"`
	Port      int    `koanf:"port"`
	DelayInMs int    `koanf:"delayInMs"`
	Route     string `koanf:"route"`
	File      string `koanf:"file"`
}

// Delay returns the artificial response delay.
func (m MockConfig) Delay() time.Duration {
	return time.Duration(m.DelayInMs) * time.Millisecond
}
