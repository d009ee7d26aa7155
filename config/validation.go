package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Validate checks the configuration and returns an error listing every
// problem found.
//
// Validation checks:
//   - Roots: checkpoint and output roots must be set; relative roots are accepted
//   - Commands: converter and channel helper must be non-empty
//   - Selector: must parse as highest, lowest or e<N>
//   - Parallelism: at least 1
//   - Policies: missing-dirs must be fail or skip, log format text or json
func Validate(c Config) error {
	var errors []string

	if c.CheckpointRoot == "" {
		errors = append(errors, "checkpoint root is required")
	}
	if c.OutputRoot == "" {
		errors = append(errors, "output root is required")
	}
	if c.ReinitOutputRoot == "" {
		errors = append(errors, "reinit output root is required")
	}
	if c.OutputRoot != "" && c.ReinitOutputRoot != "" &&
		filepath.Clean(c.OutputRoot) == filepath.Clean(c.ReinitOutputRoot) {
		errors = append(errors, fmt.Sprintf("output root and reinit output root must differ (both %s)", c.OutputRoot))
	}

	if len(c.Converter) == 0 {
		errors = append(errors, "converter command is empty")
	}
	if len(c.ChannelHelper) == 0 {
		errors = append(errors, "channel helper command is empty")
	}

	if _, err := c.EpochSelector(); err != nil {
		errors = append(errors, err.Error())
	}

	if c.Parallelism < 1 {
		errors = append(errors, fmt.Sprintf("parallelism must be at least 1 (got %d)", c.Parallelism))
	}

	switch c.MissingDirs {
	case MissingDirsFail, MissingDirsSkip:
	default:
		errors = append(errors, fmt.Sprintf("invalid missing-dirs policy %q (must be %s or %s)", c.MissingDirs, MissingDirsFail, MissingDirsSkip))
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		errors = append(errors, fmt.Sprintf("invalid log format %q (must be %s or %s)", c.LogFormat, LogFormatText, LogFormatJSON))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}
	return nil
}
