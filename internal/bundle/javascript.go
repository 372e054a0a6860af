package bundle

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/leapstack-labs/zeev/internal/config"
	"github.com/leapstack-labs/zeev/internal/source"
)

// JavaScript bundles scripts with esbuild.
type JavaScript struct {
	cfg *config.Config
}

// NewJavaScript returns the esbuild bundler for cfg.
func NewJavaScript(cfg *config.Config) *JavaScript {
	return &JavaScript{cfg: cfg}
}

func (j *JavaScript) options(target source.BuildTarget) api.BuildOptions {
	production := j.cfg.IsProduction()
	return api.BuildOptions{
		EntryPoints: []string{j.cfg.Path(filepath.FromSlash(target.Entry))},
		Outfile:     outputPath(j.cfg, target),
		Bundle:      true,
		Write:       true,

		Platform: api.PlatformBrowser,
		Format:   api.FormatIIFE,

		Sourcemap:         api.SourceMapLinked,
		MinifyWhitespace:  production,
		MinifyIdentifiers: production,
		MinifySyntax:      production,
		IgnoreAnnotations: !production,

		// process.env.ZEEV_* references are replaced at build time
		Define: j.cfg.Env.BundleVariables,

		LogLevel: api.LogLevelSilent,
	}
}

// Bundle implements Bundler.
func (j *JavaScript) Bundle(_ context.Context, target source.BuildTarget) (string, error) {
	opts := j.options(target)
	if err := ensureDir(opts.Outfile); err != nil {
		return "", stageError(source.ArtifactJS, target, StageWrite, err)
	}

	result := api.Build(opts)
	if len(result.Errors) > 0 {
		var msg strings.Builder
		for _, e := range result.Errors {
			if e.Location != nil {
				fmt.Fprintf(&msg, "%s:%d:%d: ", e.Location.File, e.Location.Line, e.Location.Column)
			}
			msg.WriteString(e.Text)
			msg.WriteByte('\n')
		}
		return "", stageError(source.ArtifactJS, target, StageCompile,
			fmt.Errorf("esbuild errors:\n%s", strings.TrimSuffix(msg.String(), "\n")))
	}
	return opts.Outfile, nil
}
