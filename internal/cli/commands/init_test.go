package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/zeev/internal/config"
	"github.com/leapstack-labs/zeev/internal/environ"
)

func TestNewInitCommand(t *testing.T) {
	tests := []struct {
		name      string
		setupDir  func(t *testing.T, dir string)
		args      []string
		wantErr   bool
		wantFiles []string
		wantKept  map[string]string
	}{
		{
			name: "init empty directory",
			wantFiles: []string{
				"zeev.yaml",
				"src/js/app.js",
				"src/styles/app.scss",
				"src/form/app.html",
				"config/.env",
				".gitignore",
			},
		},
		{
			name: "init existing config without force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "zeev.yml"), []byte("existing"), 0600)
			},
			wantErr: true,
		},
		{
			name: "init existing config with force",
			setupDir: func(_ *testing.T, dir string) {
				_ = os.WriteFile(filepath.Join(dir, "zeev.yaml"), []byte("existing"), 0600)
			},
			args:      []string{"--force"},
			wantFiles: []string{"zeev.yaml", "src/js/app.js"},
		},
		{
			name: "existing sources are kept",
			setupDir: func(t *testing.T, dir string) {
				require.NoError(t, os.MkdirAll(filepath.Join(dir, "src", "js"), 0750))
				require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "js", "app.js"), []byte("custom"), 0600))
			},
			wantFiles: []string{"zeev.yaml"},
			wantKept:  map[string]string{"src/js/app.js": "custom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.setupDir != nil {
				tt.setupDir(t, dir)
			}

			cmd := NewInitCommand()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(append([]string{dir}, tt.args...))

			err := cmd.Execute()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			for _, f := range tt.wantFiles {
				assert.FileExists(t, filepath.Join(dir, filepath.FromSlash(f)))
			}
			for f, want := range tt.wantKept {
				data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(f)))
				require.NoError(t, err)
				assert.Equal(t, want, string(data))
				assert.NotContains(t, buf.String(), "created "+f)
			}
			assert.Contains(t, buf.String(), "zeev project initialized!")
		})
	}
}

func TestInitCommand_ProjectLoads(t *testing.T) {
	dir := t.TempDir()
	cmd := NewInitCommand()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{dir})
	require.NoError(t, cmd.Execute())

	cfg, err := config.Load(config.LoadOptions{Dir: dir, Env: environ.Map{}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "zeev.yaml"), cfg.ConfigFile)
	assert.Equal(t, 0, cfg.Src.Len())
	assert.False(t, cfg.MocksRequested())
	assert.Equal(t, `"hello from zeev"`, cfg.Env.BundleVariables["process.env.ZEEV_GREETING"])
}

func TestRenameSpecialFiles(t *testing.T) {
	assert.Equal(t, ".gitignore", renameSpecialFiles("gitignore"))
	assert.Equal(t, "config/.env", renameSpecialFiles("config/env"))
	assert.Equal(t, "src/js/app.js", renameSpecialFiles("src/js/app.js"))
}
