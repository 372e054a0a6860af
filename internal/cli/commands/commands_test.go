package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/zeev/internal/config"
	"github.com/leapstack-labs/zeev/internal/environ"
	"github.com/leapstack-labs/zeev/internal/testutil"
)

const projectConfig = `server: false
src:
  portal:
    js:
      entry: src/portal/main.js
      output: portal.js
    form:
      - entry: src/portal/request.html
        output: portal-request.html
        codform:
          development: 120
          production: 87
  css:
    entry: src/styles/theme.scss
    output: theme.css
`

// loadProject writes files into a temp project and loads its configuration.
func loadProject(t *testing.T, files map[string]string, env environ.Map) *config.Config {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, files)
	if env == nil {
		env = environ.Map{}
	}
	cfg, err := config.Load(config.LoadOptions{Dir: dir, Env: env})
	require.NoError(t, err)
	return cfg
}

func execute(ctx context.Context, t *testing.T, cmd *cobra.Command, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	ctx = config.WithLogger(ctx, testutil.NewTestLogger(t))
	if cfg != nil {
		ctx = config.NewContext(ctx, cfg)
	}
	err := cmd.ExecuteContext(ctx)
	return buf.String(), err
}

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd     *cobra.Command
		use     string
		aliases []string
	}{
		{cmd: NewDevCommand(), use: "dev", aliases: []string{"serve"}},
		{cmd: NewBuildCommand(), use: "build"},
		{cmd: NewTargetsCommand(), use: "targets"},
		{cmd: NewResolveCommand(), use: "resolve <file>"},
		{cmd: NewInitCommand(), use: "init [directory]", aliases: []string{"create"}},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			assert.NotEmpty(t, tt.cmd.Long, "Long should not be empty")
			assert.Equal(t, tt.aliases, tt.cmd.Aliases)
		})
	}
}

func TestNewCommandContext_NoSession(t *testing.T) {
	_, err := execute(t.Context(), t, NewTargetsCommand(), nil)
	assert.ErrorIs(t, err, errNoSession)
}

func TestTargetsCommand(t *testing.T) {
	cfg := loadProject(t, map[string]string{"zeev.yaml": projectConfig}, nil)

	out, err := execute(t.Context(), t, NewTargetsCommand(), cfg)
	require.NoError(t, err)

	for _, want := range []string{
		"portal", "src/portal/main.js", "portal.js",
		"portal-request.html", "codform for development, production",
		"(root)", "theme.css", "(3 targets)",
	} {
		assert.Contains(t, out, want)
	}
}

func TestTargetsCommand_ZeroConfig(t *testing.T) {
	cfg := loadProject(t, nil, nil)

	out, err := execute(t.Context(), t, NewTargetsCommand(), cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "No targets declared")
}

func TestResolveCommand(t *testing.T) {
	cfg := loadProject(t, map[string]string{"zeev.yaml": projectConfig}, environ.Map{"NODE_ENV": "development"})

	tests := []struct {
		name    string
		file    string
		want    []string
		wantErr string
	}{
		{name: "declared form", file: "src/portal/request.html",
			want: []string{"src/portal/request.html (form)", "portal-request.html", "CodForm 120"}},
		{name: "zero-config root file", file: "./src/app.js",
			want: []string{"src/app.js (js)", "app-bundle.js"}},
		{name: "email template", file: "src/emails/welcome.html", want: []string{"is not watched"}},
		{name: "unrelated file", file: "README.md", want: []string{"README.md is not watched"}},
		{name: "outside the project", file: "../other/app.js", wantErr: "outside the project"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t.Context(), t, NewResolveCommand(), cfg, tt.file)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestResolveCommand_UnresolvedCodform(t *testing.T) {
	cfg := loadProject(t, map[string]string{"zeev.yaml": projectConfig}, environ.Map{"NODE_ENV": "test"})

	out, err := execute(t.Context(), t, NewResolveCommand(), cfg, "src/portal/request.html")
	require.NoError(t, err)
	assert.Contains(t, out, "unresolved")
}

func TestProjectPath(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		file    string
		want    string
		wantErr bool
	}{
		{file: "src/app.js", want: "src/app.js"},
		{file: "./src//styles/style.scss", want: "src/styles/style.scss"},
		{file: filepath.Join(root, "src", "form", "form.html"), want: "src/form/form.html"},
		{file: "../app.js", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			got, err := projectPath(root, tt.file)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildCommand(t *testing.T) {
	cfg := loadProject(t, map[string]string{
		"src/app.js":        "console.log(process.env.ZEEV_NAME)\n",
		"src/form/app.html": "<form><p>{{{ env }}}</p></form>",
	}, environ.Map{"ZEEV_NAME": "zeev"})

	_, err := execute(t.Context(), t, NewBuildCommand(), cfg)
	require.NoError(t, err)

	js, err := os.ReadFile(filepath.Join(cfg.Root, "dist", "app-bundle.js"))
	require.NoError(t, err)
	assert.Contains(t, string(js), `"zeev"`)

	form, err := os.ReadFile(filepath.Join(cfg.Root, "dist", "app--bundle.html"))
	require.NoError(t, err)
	assert.Equal(t, "<form><p>local</p></form>", string(form))
}

func TestBuildCommand_Failure(t *testing.T) {
	cfg := loadProject(t, map[string]string{
		"src/app.js": "const = ;\n",
	}, nil)

	_, err := execute(t.Context(), t, NewBuildCommand(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build failed")
}

func TestDevCommand_MissingSourceDir(t *testing.T) {
	cfg := loadProject(t, map[string]string{"zeev.yaml": "server: false\n"}, nil)

	_, err := execute(t.Context(), t, NewDevCommand(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to watch")
}

func TestDevCommand_StopsOnCancel(t *testing.T) {
	cfg := loadProject(t, map[string]string{
		"zeev.yaml":  "server: false\nmocks:\n  file: ./mocks/missing.json\n",
		"src/app.js": "console.log(1)\n",
	}, nil)

	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()

	_, err := execute(ctx, t, NewDevCommand(), cfg)
	require.NoError(t, err)
}
