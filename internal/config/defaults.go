package config

// Default configuration values.
const (
	DefaultOutDir             = "./dist"
	DefaultConnectionPort     = 1433
	DefaultPoolMax            = 10
	DefaultPoolMin            = 0
	DefaultPoolIdleTimeoutMs  = 30000
	DefaultStabilityThreshold = 150
	DefaultEnvPath            = "./config"
	DefaultEnvPrefix          = "ZEEV_"
	DefaultServerPort         = 8181
	DefaultMockPort           = 8282
	DefaultMockDelayMs        = 1000
	DefaultMockRoute          = "/mocks/api"
	DefaultMockFile           = "./mocks/db.json"
)

// Environment variables read during assembly.
const (
	EnvDatabaseName     = "DATABASE_NAME"
	EnvDatabaseUsername = "DATABASE_USERNAME"
	EnvDatabasePassword = "DATABASE_PASSWORD"
	EnvDatabaseServer   = "DATABASE_SERVER"
	EnvRunningEnv       = "NODE_ENV"
)

// defaultValues returns the defaults as the first koanf layer.
// A fresh map is returned on every call.
func defaultValues() map[string]any {
	return map[string]any{
		"outDir": DefaultOutDir,
		"connection": map[string]any{
			"port": DefaultConnectionPort,
			"pool": map[string]any{
				"max":               DefaultPoolMax,
				"min":               DefaultPoolMin,
				"idleTimeoutMillis": DefaultPoolIdleTimeoutMs,
			},
			"options": map[string]any{
				"encrypt":                true,
				"trustServerCertificate": true,
			},
		},
		"watch": map[string]any{
			"ignoreInitial": true,
			"awaitWriteFinish": map[string]any{
				"stabilityThreshold": DefaultStabilityThreshold,
			},
		},
		"env": map[string]any{
			"path":      DefaultEnvPath,
			"envPrefix": DefaultEnvPrefix,
		},
		"server": map[string]any{
			"port":       DefaultServerPort,
			"livereload": true,
		},
		"mocks": map[string]any{
			"port":      DefaultMockPort,
			"delayInMs": DefaultMockDelayMs,
			"route":     DefaultMockRoute,
			"file":      DefaultMockFile,
		},
	}
}
