package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateVision(); err != nil {
		return err
	}
	if err := c.validateGait(); err != nil {
		return err
	}
	if err := c.validateFusion(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateSearch(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateVision() error {
	if c.Vision.TimeoutSeconds < 0 {
		return errors.New("vision.timeout_seconds must not be negative")
	}
	if c.Vision.RequestsPerMinute < 0 {
		return errors.New("vision.requests_per_minute must not be negative")
	}
	return nil
}

func (c *Config) validateGait() error {
	switch c.Gait.Backend {
	case "", "none", "pose":
		return nil
	default:
		return fmt.Errorf("gait.backend: unsupported value %q (expected none or pose)", c.Gait.Backend)
	}
}

func (c *Config) validateFusion() error {
	switch c.Fusion.Policy {
	case "", "resolution", "legacy":
		return nil
	default:
		return fmt.Errorf("fusion.policy: unsupported value %q (expected resolution or legacy)", c.Fusion.Policy)
	}
}

func (c *Config) validateStorage() error {
	if !c.Storage.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Storage.Endpoint) == "" {
		return errors.New("storage.endpoint must be set when storage.enabled is true")
	}
	if strings.TrimSpace(c.Storage.Bucket) == "" {
		return errors.New("storage.bucket must be set when storage.enabled is true")
	}
	return nil
}

func (c *Config) validateSearch() error {
	if c.Search.SemanticThreshold < 0 || c.Search.SemanticThreshold > 1 {
		return errors.New("search.semantic_threshold must be between 0 and 1")
	}
	if c.Search.SemanticLimit < 0 {
		return errors.New("search.semantic_limit must not be negative")
	}
	if c.Search.SweepConcurrency < 0 {
		return errors.New("search.sweep_concurrency must not be negative")
	}
	return nil
}
