package source

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrCodformUnresolved is returned when a form declares a codform that has no
// value for the running environment.
var ErrCodformUnresolved = errors.New("codform does not resolve for the running environment")

// Environment key styles accepted in a codform mapping. One mapping uses
// exactly one style.
var (
	fullEnvNames  = []string{"production", "test", "development"}
	shortEnvNames = []string{"prd", "qa", "dev"}
)

type codformKind int

const (
	codformNumber codformKind = iota + 1
	codformByEnv
	codformInvalid
)

// Codform is the database key of the wfForm record a form is synced to.
// It is either one number used in every environment or a mapping from
// environment name to number.
type Codform struct {
	kind  codformKind
	code  int
	byEnv map[string]int
	raw   string
}

// NumericCodform returns a codform used in every environment.
func NumericCodform(code int) *Codform {
	return &Codform{kind: codformNumber, code: code}
}

// EnvCodform returns a codform keyed by environment name. Keys must all be
// full names (production, test, development) or all abbreviations
// (prd, qa, dev).
func EnvCodform(byEnv map[string]int) (*Codform, error) {
	if err := validateEnvKeys(byEnv); err != nil {
		return nil, err
	}
	return &Codform{kind: codformByEnv, byEnv: maps.Clone(byEnv)}, nil
}

func validateEnvKeys(byEnv map[string]int) error {
	if len(byEnv) == 0 {
		return errors.New("codform mapping is empty")
	}
	var full, short bool
	for key := range byEnv {
		switch {
		case slices.Contains(fullEnvNames, key):
			full = true
		case slices.Contains(shortEnvNames, key):
			short = true
		default:
			return fmt.Errorf("codform key %q is not an environment name (use %s or %s)",
				key, strings.Join(fullEnvNames, "/"), strings.Join(shortEnvNames, "/"))
		}
	}
	if full && short {
		return errors.New("codform mixes full environment names with abbreviations")
	}
	return nil
}

// ResolveCodform returns the codform for env. A numeric codform resolves in
// every environment; a mapping resolves only when env is one of its keys,
// spelled exactly as declared. Nil and malformed codforms never resolve.
func ResolveCodform(c *Codform, env string) (int, bool) {
	if c == nil {
		return 0, false
	}
	switch c.kind {
	case codformNumber:
		return c.code, true
	case codformByEnv:
		code, ok := c.byEnv[env]
		return code, ok
	default:
		return 0, false
	}
}

func (c *Codform) String() string {
	switch c.kind {
	case codformNumber:
		return "codform " + strconv.Itoa(c.code)
	case codformByEnv:
		keys := slices.Sorted(maps.Keys(c.byEnv))
		return "codform for " + strings.Join(keys, ", ")
	default:
		return fmt.Sprintf("malformed codform %q", c.raw)
	}
}

// UnmarshalYAML accepts an integer or an environment mapping. Any other
// scalar is kept as a malformed codform so the sync step can report it.
func (c *Codform) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!int" {
			var code int
			if err := node.Decode(&code); err != nil {
				return err
			}
			*c = Codform{kind: codformNumber, code: code}
			return nil
		}
		*c = Codform{kind: codformInvalid, raw: node.Value}
		return nil
	case yaml.MappingNode:
		var byEnv map[string]int
		if err := node.Decode(&byEnv); err != nil {
			return fmt.Errorf("line %d: codform values must be numbers: %w", node.Line, err)
		}
		if err := validateEnvKeys(byEnv); err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*c = Codform{kind: codformByEnv, byEnv: byEnv}
		return nil
	default:
		return fmt.Errorf("line %d: codform must be a number or an environment mapping", node.Line)
	}
}
