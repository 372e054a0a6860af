// Package environ abstracts access to environment variables so configuration
// assembly can be tested without touching the process environment.
package environ

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
)

// Provider is a read-only view of environment variables.
type Provider interface {
	// Lookup returns the value of key and whether it is set.
	Lookup(key string) (string, bool)
	// Keys returns the names of all set variables.
	Keys() []string
}

// Get returns the value of key, or "" when it is unset.
func Get(p Provider, key string) string {
	v, _ := p.Lookup(key)
	return v
}

type osProvider struct{}

// OS returns a Provider backed by the process environment.
func OS() Provider { return osProvider{} }

func (osProvider) Lookup(key string) (string, bool) { return os.LookupEnv(key) }

func (osProvider) Keys() []string {
	env := os.Environ()
	keys := make([]string, 0, len(env))
	for _, kv := range env {
		if name, _, ok := strings.Cut(kv, "="); ok && name != "" {
			keys = append(keys, name)
		}
	}
	return keys
}

// Map is a Provider over a fixed set of variables.
type Map map[string]string

// Lookup implements Provider.
func (m Map) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Keys implements Provider. Keys are returned sorted.
func (m Map) Keys() []string {
	return slices.Sorted(maps.Keys(m))
}

type layered []Provider

// Layer stacks providers: a key is looked up in each provider in turn and the
// first one that sets it wins.
func Layer(providers ...Provider) Provider {
	return layered(providers)
}

func (l layered) Lookup(key string) (string, bool) {
	for _, p := range l {
		if v, ok := p.Lookup(key); ok {
			return v, true
		}
	}
	return "", false
}

func (l layered) Keys() []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, p := range l {
		for _, k := range p.Keys() {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	return keys
}

// DotenvFiles returns the dotenv files read for mode, lowest precedence first.
func DotenvFiles(mode string) []string {
	files := []string{".env", ".env.local"}
	if mode != "" {
		files = append(files, ".env."+mode, ".env."+mode+".local")
	}
	return files
}

// LoadDotenv reads the dotenv files for mode from dir. Later files override
// earlier ones; missing files and a missing dir are skipped.
func LoadDotenv(dir, mode string) (Map, error) {
	vars := Map{}
	for _, name := range DotenvFiles(mode) {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		values, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		maps.Copy(vars, values)
	}
	return vars, nil
}
