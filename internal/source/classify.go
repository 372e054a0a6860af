package source

import (
	"path"
	"slices"
	"strings"
)

// commonRootNames are zero-config entry names valid for every extension.
var commonRootNames = []string{"app", "main", "index"}

// rootNamesByExt are zero-config entry names valid for one extension only.
var rootNamesByExt = map[string][]string{
	".js":   {"script"},
	".scss": {"style"},
	".html": {"form"},
}

// rootProjectPaths maps an extension to its canonical folder under src/.
var rootProjectPaths = map[string]string{
	".js":   "js",
	".scss": "styles",
	".html": "form",
}

// RootFileNames returns the base names (without extension) that make a file
// with ext a zero-config entry.
func RootFileNames(ext string) []string {
	names := slices.Clone(commonRootNames)
	return append(names, rootNamesByExt[ext]...)
}

// RootProjectPath returns the canonical folder for ext, e.g. "styles" for ".scss".
func RootProjectPath(ext string) (string, bool) {
	folder, ok := rootProjectPaths[ext]
	return folder, ok
}

// Classification describes a source path without looking at any configuration.
type Classification struct {
	Path     string   // slash separated path as given
	Segments []string // Path split on "/"
	Depth    int      // len(Segments); src/<file> has depth 2
	Name     string   // base name without extension
	Ext      string   // extension including the dot
	Folder   string   // first folder under src/, "" when the file sits directly in src/

	// IsRootPath is true when the file belongs to the root scope: it sits
	// directly in src/ or its first folder is the canonical folder for Ext.
	IsRootPath bool
	// IsRootFile is true when the file can be built without configuration.
	IsRootFile bool
}

// Classify splits a slash separated path whose first segment is the source
// root (src/...) and classifies it.
func Classify(p string) Classification {
	segments := strings.Split(p, "/")
	base := path.Base(p)
	ext := path.Ext(base)

	c := Classification{
		Path:     p,
		Segments: segments,
		Depth:    len(segments),
		Name:     strings.TrimSuffix(base, ext),
		Ext:      ext,
	}
	if c.Depth > 2 {
		c.Folder = segments[1]
	}

	canonical, hasCanonical := rootProjectPaths[ext]
	inCanonical := hasCanonical && c.Folder == canonical

	c.IsRootPath = inCanonical || c.Depth == 2
	c.IsRootFile = slices.Contains(RootFileNames(ext), c.Name) &&
		c.Depth <= 3 &&
		(c.Depth < 3 || inCanonical)

	return c
}

// Scope returns the scope the file belongs to. ok is false for paths too
// shallow to name a project folder.
func (c Classification) Scope() (scope Scope, ok bool) {
	if c.IsRootPath {
		return RootScope, true
	}
	if c.Depth < 2 {
		return Scope{}, false
	}
	return Project(c.Segments[1]), true
}

// OutputName returns the zero-config output file name for the classified file:
// src/index.js becomes index-bundle.js and src/styles/app.scss becomes
// app--bundle.css.
func (c Classification) OutputName() string {
	sep := "-"
	if c.Depth > 2 {
		sep = "--"
	}
	ext := c.Ext
	if ext == ".scss" {
		ext = ".css"
	}
	return c.Name + sep + "bundle" + ext
}
