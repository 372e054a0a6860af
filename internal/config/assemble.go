package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/zeev/internal/environ"
	"github.com/leapstack-labs/zeev/internal/source"
)

// secretKeys are connection fields that are only ever read from the environment.
var secretKeys = []string{"database", "user", "password", "server"}

// Overlay is a partial, user-authored configuration layered over the defaults.
type Overlay struct {
	k     *koanf.Koanf
	flags *koanf.Koanf
	src   *source.SourceConfig
}

// NewOverlay returns an empty overlay (zero-config mode).
func NewOverlay() *Overlay {
	return &Overlay{k: koanf.New("."), flags: koanf.New(".")}
}

// ParseOverlay parses a YAML configuration document. The src section is
// decoded separately so project declaration order survives.
func ParseOverlay(data []byte) (*Overlay, error) {
	values, err := kyaml.Parser().Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if values == nil {
		values = map[string]any{}
	}

	o := NewOverlay()
	if err := o.k.Load(confmap.Provider(values, ""), nil); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var doc struct {
		Src *source.SourceConfig `yaml:"src"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid src section: %w", err)
	}
	o.src = doc.Src
	o.k.Delete("src")

	return o, nil
}

// Has reports whether the overlay sets the dotted key path.
func (o *Overlay) Has(path string) bool {
	return o != nil && o.k.Exists(path)
}

// String returns the string at the dotted key path, or "".
func (o *Overlay) String(path string) string {
	if o == nil {
		return ""
	}
	return o.k.String(path)
}

// flagKeys maps CLI flags to the configuration keys they override.
var flagKeys = map[string]string{
	FlagOutDir:   "outDir",
	FlagPort:     "server.port",
	FlagMockPort: "mocks.port",
}

// CLI flags that override configuration values.
const (
	FlagOutDir   = "out-dir"
	FlagPort     = "port"
	FlagMockPort = "mock-port"
)

// ApplyFlags records explicitly set CLI flags. They are kept apart from the
// file values and merged last, so a flag never creates or re-enables a
// section the file left out or switched off.
func (o *Overlay) ApplyFlags(flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	return o.flags.Load(posflag.ProviderWithFlag(flags, ".", o.flags, func(f *pflag.Flag) (string, interface{}) {
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed {
			return "", nil
		}
		return key, posflag.FlagVal(flags, f)
	}), nil)
}

func (o *Overlay) values() map[string]any {
	if o == nil {
		return map[string]any{}
	}
	return maps.Clone(o.k.Raw())
}

func (o *Overlay) flagValues() map[string]any {
	if o == nil {
		return map[string]any{}
	}
	return o.flags.Raw()
}

func (o *Overlay) source() *source.SourceConfig {
	if o == nil {
		return nil
	}
	return o.src
}

// takeToggle handles sections that may be written as a boolean
// (mocks: false). A boolean is removed from values so the defaults decode
// in its place. present reports whether the user wrote the section at all.
func takeToggle(values map[string]any, key string) (enabled, present bool) {
	v, ok := values[key]
	if !ok {
		return true, false
	}
	switch b := v.(type) {
	case bool:
		delete(values, key)
		return b, true
	case nil:
		delete(values, key)
		return true, true
	default:
		return true, true
	}
}

// Assemble merges the overlay onto the defaults and resolves every value that
// comes from the environment. Nested sections merge key by key; scalars and
// lists from the overlay replace the default outright. Unknown keys are an error.
func Assemble(overlay *Overlay, env environ.Provider) (*Config, error) {
	if env == nil {
		env = environ.OS()
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaultValues(), ""), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	user := overlay.values()
	serverEnabled, _ := takeToggle(user, "server")
	mocksEnabled, explicitMocks := takeToggle(user, "mocks")

	if err := k.Load(confmap.Provider(user, ""), nil); err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}
	if err := k.Load(confmap.Provider(overlay.flagValues(), ""), nil); err != nil {
		return nil, fmt.Errorf("failed to merge flags: %w", err)
	}
	for _, key := range secretKeys {
		k.Delete("connection." + key)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			TagName:          "koanf",
			ErrorUnused:      true,
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg.Server.Enabled = serverEnabled
	cfg.Mocks.Enabled = mocksEnabled
	cfg.ExplicitMocks = explicitMocks
	cfg.Src = overlay.source()

	cfg.Connection.Database = environ.Get(env, EnvDatabaseName)
	cfg.Connection.User = environ.Get(env, EnvDatabaseUsername)
	cfg.Connection.Password = environ.Get(env, EnvDatabasePassword)
	cfg.Connection.Server = environ.Get(env, EnvDatabaseServer)

	cfg.Env.BundleVariables = BundleVariables(env, cfg.Env.EnvPrefix)
	cfg.Environment = environ.Get(env, EnvRunningEnv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// MocksRequested reports whether the mock server should start: the user must
// have asked for it and not switched it off.
func (c *Config) MocksRequested() bool {
	return c.ExplicitMocks && c.Mocks.Enabled
}

// BundleVariables returns the substitutions handed to the JavaScript bundler:
// process.env.<NAME> mapped to the JSON string of the value, for every
// variable whose name contains prefix.
func BundleVariables(env environ.Provider, prefix string) map[string]string {
	vars := make(map[string]string)
	for _, name := range env.Keys() {
		if !strings.Contains(name, prefix) {
			continue
		}
		value, _ := env.Lookup(name)
		vars["process.env."+name] = jsonString(value)
	}
	return vars
}

// jsonString quotes s like JSON.stringify, except that U+2028 and U+2029 are
// escaped; both forms are the same string to JavaScript.
func jsonString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}
