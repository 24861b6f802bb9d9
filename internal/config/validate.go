package config

import (
	"errors"
	"fmt"
	"net"
)

var knownUploadServices = map[string]struct{}{
	"catbox": {},
	"uguu":   {},
	"tempsh": {},
}

// Validate ensures the configuration is usable. Encoding defaults are checked
// by the parameter resolver when a job is built so invalid defaults surface with
// the field name the user would type.
func (c *Config) Validate() error {
	if err := c.validateSupervisor(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateAPI(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateSupervisor() error {
	if c.Supervisor.CancelGraceSeconds <= 0 {
		return errors.New("supervisor.cancel_grace_seconds must be positive")
	}
	if c.Supervisor.ReadTimeoutMillis <= 0 {
		return errors.New("supervisor.read_timeout_ms must be positive")
	}
	if c.Supervisor.JobTimeoutSeconds < 0 {
		return errors.New("supervisor.job_timeout_seconds must be zero (unlimited) or positive")
	}
	return nil
}

func (c *Config) validateUpload() error {
	if _, ok := knownUploadServices[c.Upload.DefaultService]; !ok {
		return fmt.Errorf("upload.default_service %q is not one of catbox, uguu, tempsh", c.Upload.DefaultService)
	}
	if c.Upload.MaxAttempts > 10 {
		return errors.New("upload.max_attempts must be at most 10")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if _, _, err := net.SplitHostPort(c.API.Bind); err != nil {
		return fmt.Errorf("api.bind %q: %w", c.API.Bind, err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn or error", c.Logging.Level)
	}
	return nil
}
