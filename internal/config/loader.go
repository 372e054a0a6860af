package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/providers/file"
	"github.com/spf13/pflag"

	"github.com/leapstack-labs/zeev/internal/environ"
)

// ConfigFileNames are looked up in the project directory when no config file
// is given explicitly, in this order.
var ConfigFileNames = []string{"zeev.yaml", "zeev.yml"}

// ErrConfigNotFound is returned when an explicitly requested config file does
// not exist.
var ErrConfigNotFound = errors.New("config file not found")

// LoadOptions controls Load.
type LoadOptions struct {
	// ConfigFile is an explicit config path. When set it must exist.
	ConfigFile string
	// Dir is the project root; relative paths resolve against it. Defaults to ".".
	Dir string
	// Flags are CLI flags layered over the config file.
	Flags *pflag.FlagSet
	// Env is the base environment; dotenv files are layered beneath it.
	// Defaults to the process environment.
	Env    environ.Provider
	Logger *slog.Logger
}

// Load finds and reads the config file, loads dotenv files and assembles the
// session configuration. Without an explicit config file and without a
// zeev.yaml in Dir, the defaults are used (zero-config mode).
func Load(opts LoadOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	base := opts.Env
	if base == nil {
		base = environ.OS()
	}
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}

	path, err := findConfigFile(dir, opts.ConfigFile)
	if err != nil {
		return nil, err
	}

	overlay := NewOverlay()
	if path != "" {
		data, err := file.Provider(path).ReadBytes()
		if err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
		if overlay, err = ParseOverlay(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		logger.Debug("loaded config file", "path", path)
	} else {
		logger.Debug("no config file found, using zero-config defaults", "dir", dir)
	}

	if err := overlay.ApplyFlags(opts.Flags); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	for _, key := range secretKeys {
		if overlay.Has("connection." + key) {
			logger.Warn("ignoring connection secret from config file, it is read from the environment",
				"key", "connection."+key)
		}
	}

	envDir := DefaultEnvPath
	if p := overlay.String("env.path"); p != "" {
		envDir = p
	}
	dotenv, err := environ.LoadDotenv(resolvePathRelativeTo(envDir, dir), environ.Get(base, EnvRunningEnv))
	if err != nil {
		return nil, err
	}

	cfg, err := Assemble(overlay, environ.Layer(base, dotenv))
	if err != nil {
		return nil, err
	}
	cfg.ConfigFile = path
	cfg.Root = dir
	return cfg, nil
}

// findConfigFile returns the config file to load, or "" in zero-config mode.
func findConfigFile(dir, explicit string) (string, error) {
	if explicit != "" {
		path := resolvePathRelativeTo(explicit, dir)
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("%w: can't find the config file at %s\nHint: omit --config to run with zero-config defaults",
				ErrConfigNotFound, path)
		}
		return path, nil
	}
	for _, name := range ConfigFileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
