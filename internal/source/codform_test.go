package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func decodeCodform(t *testing.T, doc string) *Codform {
	t.Helper()
	var target BuildTarget
	require.NoError(t, yaml.Unmarshal([]byte("entry: src/form/app.html\noutput: app.html\n"+doc), &target))
	return target.Codform
}

func TestResolveCodform(t *testing.T) {
	t.Run("absent", func(t *testing.T) {
		_, ok := ResolveCodform(nil, "production")
		assert.False(t, ok)
		assert.Nil(t, decodeCodform(t, ""))
	})

	t.Run("string", func(t *testing.T) {
		c := decodeCodform(t, `codform: "100"`)
		require.NotNil(t, c)
		_, ok := ResolveCodform(c, "production")
		assert.False(t, ok)
	})

	t.Run("number", func(t *testing.T) {
		c := decodeCodform(t, "codform: 100")
		for _, env := range []string{"", "production", "qa", "anything"} {
			code, ok := ResolveCodform(c, env)
			assert.True(t, ok, env)
			assert.Equal(t, 100, code, env)
		}
	})

	t.Run("full environment names", func(t *testing.T) {
		c := decodeCodform(t, "codform: {production: 100, test: 101, development: 102}")
		code, ok := ResolveCodform(c, "production")
		assert.True(t, ok)
		assert.Equal(t, 100, code)

		code, ok = ResolveCodform(c, "development")
		assert.True(t, ok)
		assert.Equal(t, 102, code)
	})

	t.Run("abbreviated environment names", func(t *testing.T) {
		c := decodeCodform(t, "codform: {prd: 100, qa: 101, dev: 102}")
		code, ok := ResolveCodform(c, "qa")
		assert.True(t, ok)
		assert.Equal(t, 101, code)
	})

	t.Run("no normalization between styles", func(t *testing.T) {
		c := decodeCodform(t, "codform: {prd: 100, qa: 101, dev: 102}")
		_, ok := ResolveCodform(c, "production")
		assert.False(t, ok)
	})

	t.Run("missing environment", func(t *testing.T) {
		c := decodeCodform(t, "codform: {production: 100}")
		_, ok := ResolveCodform(c, "test")
		assert.False(t, ok)
	})
}

func TestCodform_UnmarshalYAMLErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"mixed key styles", "codform: {production: 100, qa: 101}"},
		{"unknown environment", "codform: {staging: 100}"},
		{"non-numeric value", "codform: {production: abc}"},
		{"list", "codform: [100]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var target BuildTarget
			err := yaml.Unmarshal([]byte("entry: a.html\n"+tt.doc), &target)
			assert.Error(t, err)
		})
	}
}

func TestEnvCodform(t *testing.T) {
	c, err := EnvCodform(map[string]int{"prd": 1, "dev": 2})
	require.NoError(t, err)
	code, ok := ResolveCodform(c, "dev")
	assert.True(t, ok)
	assert.Equal(t, 2, code)

	_, err = EnvCodform(map[string]int{"prd": 1, "development": 2})
	assert.Error(t, err)

	_, err = EnvCodform(nil)
	assert.Error(t, err)
}

func TestBuildTarget_SyncCode(t *testing.T) {
	t.Run("no codform", func(t *testing.T) {
		_, ok, err := BuildTarget{Entry: "src/form/app.html"}.SyncCode("production")
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("resolves", func(t *testing.T) {
		target := BuildTarget{Entry: "src/form/app.html", Codform: NumericCodform(42)}
		code, ok, err := target.SyncCode("")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 42, code)
	})

	t.Run("declared but unresolved", func(t *testing.T) {
		c, err := EnvCodform(map[string]int{"production": 1})
		require.NoError(t, err)
		target := BuildTarget{Entry: "src/form/app.html", Codform: c}

		_, ok, err := target.SyncCode("development")
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrCodformUnresolved)
		assert.Contains(t, err.Error(), "src/form/app.html")
	})
}
