package source

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Scope identifies who owns a source file: the root scope or a named project.
// The zero value is not a valid scope; use RootScope or Project.
type Scope struct {
	name string
	root bool
}

// RootScope is the scope of files that belong to no named project.
var RootScope = Scope{root: true}

// Project returns the scope of the project folder src/<name>.
func Project(name string) Scope {
	return Scope{name: name}
}

// IsRoot reports whether s is the root scope.
func (s Scope) IsRoot() bool { return s.root }

// Name returns the project name, or "" for the root scope.
func (s Scope) Name() string { return s.name }

func (s Scope) String() string {
	if s.root {
		return "(root)"
	}
	return s.name
}

// ScopeTargets pairs a scope with its declared targets.
type ScopeTargets struct {
	Scope   Scope
	Targets *ArtifactTargets
}

// SourceConfig is the src section of the configuration: declared targets per
// scope, kept in declaration order.
type SourceConfig struct {
	scopes []ScopeTargets
}

// NewSourceConfig returns an empty SourceConfig.
func NewSourceConfig() *SourceConfig {
	return &SourceConfig{}
}

// Add declares targets for a scope. Declaring the same scope twice replaces
// the targets but keeps the original position.
func (c *SourceConfig) Add(scope Scope, targets *ArtifactTargets) {
	for i := range c.scopes {
		if c.scopes[i].Scope == scope {
			c.scopes[i].Targets = targets
			return
		}
	}
	c.scopes = append(c.scopes, ScopeTargets{Scope: scope, Targets: targets})
}

// Lookup returns the targets declared for scope.
func (c *SourceConfig) Lookup(scope Scope) (*ArtifactTargets, bool) {
	if c == nil {
		return nil, false
	}
	for _, st := range c.scopes {
		if st.Scope == scope {
			return st.Targets, true
		}
	}
	return nil, false
}

// Scopes returns every declared scope in declaration order.
func (c *SourceConfig) Scopes() []ScopeTargets {
	if c == nil {
		return nil
	}
	return c.scopes
}

// Len returns the number of declared scopes. A nil SourceConfig has none.
func (c *SourceConfig) Len() int {
	if c == nil {
		return 0
	}
	return len(c.scopes)
}

// All flattens the targets of kind across every scope, in declaration order.
func (c *SourceConfig) All(kind Artifact) []BuildTarget {
	var all []BuildTarget
	for _, st := range c.Scopes() {
		all = append(all, st.Targets.Get(kind)...)
	}
	return all
}

// UnmarshalYAML decodes the src mapping. Keys naming an artifact kind
// (js, css, form) declared directly under src are shorthand for the root
// scope; every other key is a project name. The root scope is placed after
// all named projects.
func (c *SourceConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: src must be a mapping", node.Line)
	}

	root := &ArtifactTargets{}
	seen := make(map[string]bool)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if seen[key.Value] {
			return fmt.Errorf("line %d: src key %q declared twice", key.Line, key.Value)
		}
		seen[key.Value] = true

		if kind, err := ParseArtifact(key.Value); err == nil {
			var ts Targets
			if err := value.Decode(&ts); err != nil {
				return fmt.Errorf("src.%s: %w", kind, err)
			}
			root.Set(kind, ts)
			continue
		}

		targets := &ArtifactTargets{}
		if err := value.Decode(targets); err != nil {
			return fmt.Errorf("src.%s: %w", key.Value, err)
		}
		c.Add(Project(key.Value), targets)
	}

	if !root.empty() {
		c.Add(RootScope, root)
	}
	return nil
}
