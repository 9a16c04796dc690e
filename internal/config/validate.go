package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Paths.StagingDir == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if c.Paths.APIBind == "" {
		return errors.New("paths.api_bind must be set")
	}
	if !c.Upload.LocalMode && c.Upload.MaxUploadMiB <= 0 {
		return errors.New("upload.max_upload_mib must be positive unless upload.local_mode is enabled")
	}
	if c.Workspace.StaleMaxAgeHours <= 0 {
		return errors.New("workspace.stale_max_age_hours must be positive")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
