package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the assembled configuration for values no session can run
// with. Settings of a disabled server are not checked.
func (c *Config) Validate() error {
	var errs []error

	if c.OutDir == "" {
		errs = append(errs, errors.New("outDir is required"))
	}
	if c.Connection.Pool.Max < 1 {
		errs = append(errs, fmt.Errorf("connection.pool.max must be at least 1, got %d", c.Connection.Pool.Max))
	}
	if c.Watch.AwaitWriteFinish.StabilityThreshold < 0 {
		errs = append(errs, errors.New("watch.awaitWriteFinish.stabilityThreshold must not be negative"))
	}

	if c.Server.Enabled {
		errs = append(errs, validatePort("server.port", c.Server.Port))
	}
	if c.MocksRequested() {
		errs = append(errs, validatePort("mocks.port", c.Mocks.Port))
		if !strings.HasPrefix(c.Mocks.Route, "/") {
			errs = append(errs, fmt.Errorf("mocks.route must start with /, got %q", c.Mocks.Route))
		}
		if c.Mocks.DelayInMs < 0 {
			errs = append(errs, errors.New("mocks.delayInMs must not be negative"))
		}
		if c.Server.Enabled && c.Server.Port == c.Mocks.Port {
			errs = append(errs, fmt.Errorf("server.port and mocks.port are both %d\nHint: use --mock-port to move the mock server", c.Mocks.Port))
		}
	}

	return errors.Join(errs...)
}

func validatePort(key string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", key, port)
	}
	return nil
}
