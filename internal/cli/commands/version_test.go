package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVersionCommand(t *testing.T) {
	tests := []struct {
		name    string
		info    VersionInfo
		args    []string
		wantOut []string
		exact   string
	}{
		{
			name:    "release build",
			info:    VersionInfo{Version: "0.1.0", GitCommit: "3f2a9c1", BuildDate: "2026-10-01T12:00:00Z"},
			wantOut: []string{"zeev v0.1.0", "commit: 3f2a9c1", "built:  2026-10-01T12:00:00Z", "go:     go", "esbuild"},
		},
		{
			name:    "missing build metadata",
			info:    VersionInfo{Version: "dev"},
			wantOut: []string{"zeev vdev", "commit: unknown", "built:  unknown"},
		},
		{
			name:  "short",
			info:  VersionInfo{Version: "1.2.3", GitCommit: "3f2a9c1"},
			args:  []string{"--short"},
			exact: "1.2.3\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewVersionCommand(tt.info)
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(tt.args)

			require.NoError(t, cmd.Execute())

			if tt.exact != "" {
				assert.Equal(t, tt.exact, buf.String())
				return
			}
			for _, want := range tt.wantOut {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestVersionCommandMetadata(t *testing.T) {
	cmd := NewVersionCommand(VersionInfo{Version: "test"})

	assert.Equal(t, "version", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Long, "Long should not be empty")
	assert.NotNil(t, cmd.Flags().Lookup("short"))
}
