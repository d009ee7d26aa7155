// Package config holds the settings shared by every crossgame subcommand.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/mzhaom/polygames-crossgame/checkpoint"
	"github.com/mzhaom/polygames-crossgame/converter"
	"github.com/mzhaom/polygames-crossgame/gamewrapper"
)

// Environment variables read by LoadEnv.
const (
	EnvCheckpointRoot   = "CROSSGAME_CHECKPOINT_ROOT"
	EnvOutputRoot       = "CROSSGAME_OUTPUT_ROOT"
	EnvReinitOutputRoot = "CROSSGAME_REINIT_OUTPUT_ROOT"
	EnvConverter        = "CROSSGAME_CONVERTER"
	EnvChannelHelper    = "CROSSGAME_CHANNEL_HELPER"
	EnvParallelism      = "CROSSGAME_PARALLELISM"
)

// DefaultEnvFile is loaded by LoadEnv when it exists and no file is named.
const DefaultEnvFile = ".env"

// Missing directory policies.
const (
	MissingDirsFail = "fail"
	MissingDirsSkip = "skip"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config configures a batch run.
type Config struct {
	// CheckpointRoot prefixes the relative checkpoint directories of the registry.
	CheckpointRoot string

	// OutputRoot receives cross-game conversions.
	OutputRoot string

	// ReinitOutputRoot receives board-size conversions, one subdirectory per game.
	ReinitOutputRoot string

	// StateDir stores run manifests. Empty means <OutputRoot>/.crossgame/runs.
	StateDir string

	// Converter is the converter entrypoint, without the "convert" subcommand.
	Converter []string

	// ChannelHelper is the channel mapping helper command.
	ChannelHelper []string

	// Selector picks the source epoch: highest, lowest or e<N>.
	Selector string

	// Parallelism bounds concurrently running conversions. 1 is sequential.
	Parallelism int

	// MissingDirs is the policy for unlistable checkpoint directories.
	MissingDirs string

	// Resume names an earlier run whose converted outputs are skipped.
	Resume string

	DryRun    bool
	Verbose   bool
	LogFormat string
}

// Default returns a config with the paths used on the training cluster.
func Default() Config {
	return Config{
		CheckpointRoot:   "/checkpoint/dennissoemers/polygames_checkpoints",
		OutputRoot:       "/checkpoint/dennissoemers/crossgame/zeroshot",
		ReinitOutputRoot: "/checkpoint/dennissoemers/converted_reinit",
		Converter:        append([]string(nil), converter.DefaultEntrypoint...),
		ChannelHelper:    append([]string(nil), gamewrapper.DefaultHelper...),
		Selector:         "highest",
		Parallelism:      1,
		MissingDirs:      MissingDirsFail,
		LogFormat:        LogFormatText,
	}
}

// LoadEnv loads path (or DefaultEnvFile when path is empty and the file
// exists) into the process environment without overriding variables that
// are already set, then applies the CROSSGAME_* variables to c.
func (c *Config) LoadEnv(path string) error {
	if path == "" {
		if _, err := os.Stat(DefaultEnvFile); err == nil {
			path = DefaultEnvFile
		}
	}
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}

	if v := os.Getenv(EnvCheckpointRoot); v != "" {
		c.CheckpointRoot = v
	}
	if v := os.Getenv(EnvOutputRoot); v != "" {
		c.OutputRoot = v
	}
	if v := os.Getenv(EnvReinitOutputRoot); v != "" {
		c.ReinitOutputRoot = v
	}
	if v := os.Getenv(EnvConverter); v != "" {
		c.Converter = strings.Fields(v)
	}
	if v := os.Getenv(EnvChannelHelper); v != "" {
		c.ChannelHelper = strings.Fields(v)
	}
	if v := os.Getenv(EnvParallelism); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvParallelism, v, err)
		}
		c.Parallelism = n
	}
	return nil
}

// ManifestDir returns the directory holding run manifests for a command
// writing under outputRoot.
func (c Config) ManifestDir(outputRoot string) string {
	if c.StateDir != "" {
		return c.StateDir
	}
	return filepath.Join(outputRoot, ".crossgame", "runs")
}

// EpochSelector parses Selector.
func (c Config) EpochSelector() (checkpoint.Selector, error) {
	return checkpoint.ParseSelector(c.Selector)
}
