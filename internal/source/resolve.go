package source

// Resolve returns the build targets to recompile for kind after the file at
// path changed. A nil result means the file is ignored.
//
// Precedence:
//  1. an unclassifiable file with no src section resolves to nothing;
//  2. a zero-config file whose scope declares nothing for kind gets a
//     synthesized target (entry = path, output from OutputName);
//  3. a file whose scope is not declared at all rebuilds every declared
//     target of kind across all scopes, since shared code may feed any of them;
//  4. otherwise the scope's declared targets are returned as declared.
//
// Resolve is pure and safe for concurrent use.
func Resolve(kind Artifact, path string, src *SourceConfig) []BuildTarget {
	c := Classify(path)

	if !c.IsRootFile && !c.IsRootPath && src == nil {
		return nil
	}

	var declared *ArtifactTargets
	if scope, ok := c.Scope(); ok {
		declared, _ = src.Lookup(scope)
	}

	if c.IsRootFile && len(declared.Get(kind)) == 0 {
		return []BuildTarget{{Entry: c.Path, Output: c.OutputName()}}
	}

	if declared == nil {
		if src.Len() > 0 {
			return src.All(kind)
		}
		return nil
	}

	return declared.Get(kind)
}
