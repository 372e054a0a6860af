// Package source resolves which build targets a changed source file maps to.
//
// A source tree is organised in scopes: the root scope (files directly under
// src/ or under the canonical artifact folders src/js, src/styles, src/form)
// and named project scopes (src/<project>/...). Each scope declares build
// targets per artifact kind. Files that follow the naming conventions in
// RootFileNames can be built without any declaration at all.
package source

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Artifact is a kind of build output.
type Artifact string

// Supported artifact kinds.
const (
	ArtifactJS   Artifact = "js"
	ArtifactCSS  Artifact = "css"
	ArtifactForm Artifact = "form"
)

// Artifacts lists every artifact kind in a stable order.
var Artifacts = []Artifact{ArtifactJS, ArtifactCSS, ArtifactForm}

// SourceExt returns the source file extension an artifact is compiled from.
func (a Artifact) SourceExt() string {
	switch a {
	case ArtifactJS:
		return ".js"
	case ArtifactCSS:
		return ".scss"
	case ArtifactForm:
		return ".html"
	default:
		return ""
	}
}

// ArtifactForExt returns the artifact kind built from files with ext.
func ArtifactForExt(ext string) (Artifact, bool) {
	for _, a := range Artifacts {
		if a.SourceExt() == ext {
			return a, true
		}
	}
	return "", false
}

// ParseArtifact parses an artifact kind name.
func ParseArtifact(s string) (Artifact, error) {
	for _, a := range Artifacts {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown artifact kind %q (expected js, css or form)", s)
}

// BuildTarget describes one compilation: Entry is compiled into Output,
// which is relative to the configured output directory.
type BuildTarget struct {
	Entry   string   `yaml:"entry"`
	Output  string   `yaml:"output"`
	Codform *Codform `yaml:"codform,omitempty"`
}

// SyncCode resolves the database key the compiled form is synced to.
// ok is false when the target declares no codform. A declared codform that
// does not resolve for env is reported as ErrCodformUnresolved.
func (t BuildTarget) SyncCode(env string) (code int, ok bool, err error) {
	if t.Codform == nil {
		return 0, false, nil
	}
	code, ok = ResolveCodform(t.Codform, env)
	if !ok {
		return 0, false, fmt.Errorf("%w: entry %s declares %s, running environment is %q",
			ErrCodformUnresolved, t.Entry, t.Codform, env)
	}
	return code, true, nil
}

// Targets is the list of targets declared for one artifact kind. In YAML it
// is written either as a single mapping or as a sequence of mappings.
type Targets []BuildTarget

// UnmarshalYAML accepts a single target or a sequence of targets.
func (ts *Targets) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		var t BuildTarget
		if err := node.Decode(&t); err != nil {
			return err
		}
		*ts = Targets{t}
		return nil
	case yaml.SequenceNode:
		var list []BuildTarget
		if err := node.Decode(&list); err != nil {
			return err
		}
		*ts = list
		return nil
	default:
		return fmt.Errorf("line %d: build target must be a mapping or a list of mappings", node.Line)
	}
}

// ArtifactTargets holds the targets a scope declares per artifact kind.
// A kind the scope does not produce is left empty.
type ArtifactTargets struct {
	JS   Targets
	CSS  Targets
	Form Targets
}

// Get returns the targets declared for kind.
func (a *ArtifactTargets) Get(kind Artifact) Targets {
	if a == nil {
		return nil
	}
	switch kind {
	case ArtifactJS:
		return a.JS
	case ArtifactCSS:
		return a.CSS
	case ArtifactForm:
		return a.Form
	default:
		return nil
	}
}

// Set replaces the targets declared for kind.
func (a *ArtifactTargets) Set(kind Artifact, ts Targets) {
	switch kind {
	case ArtifactJS:
		a.JS = ts
	case ArtifactCSS:
		a.CSS = ts
	case ArtifactForm:
		a.Form = ts
	}
}

func (a *ArtifactTargets) empty() bool {
	return len(a.JS) == 0 && len(a.CSS) == 0 && len(a.Form) == 0
}

// UnmarshalYAML decodes a js/css/form mapping, rejecting unknown keys.
func (a *ArtifactTargets) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: project must map artifact kinds (js, css, form) to targets", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		kind, err := ParseArtifact(key.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", key.Line, err)
		}
		var ts Targets
		if err := value.Decode(&ts); err != nil {
			return fmt.Errorf("%s: %w", kind, err)
		}
		a.Set(kind, ts)
	}
	return nil
}
