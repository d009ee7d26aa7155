package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/nightlyone/lockfile"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mzhaom/polygames-crossgame/batch"
	"github.com/mzhaom/polygames-crossgame/checkpoint"
	"github.com/mzhaom/polygames-crossgame/config"
	"github.com/mzhaom/polygames-crossgame/converter"
	"github.com/mzhaom/polygames-crossgame/gamewrapper"
	"github.com/mzhaom/polygames-crossgame/progress"
)

// lockFileName is created in an output root while a batch writes to it.
const lockFileName = ".crossgame.lock"

// app carries state shared by all subcommands.
type app struct {
	cfg config.Config
	log *logrus.Logger

	// Raw flag values, applied over the env-derived config when set.
	envFile   string
	flags     config.Config
	converter string
	helper    string
	quiet     bool
}

func newRootCmd() *cobra.Command {
	a := &app{}
	defaults := config.Default()

	root := &cobra.Command{
		Use:   "crossgame",
		Short: "Convert Polygames checkpoints between Ludii games",
		Long: `crossgame converts trained Polygames checkpoints so that a model trained on
one Ludii game or variant can be evaluated on another.

Settings come from built-in defaults, then an env file (--env-file, or .env in
the working directory) and CROSSGAME_* environment variables, then flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.envFile, "env-file", "", "Env file with CROSSGAME_* settings (default: .env if present)")
	pf.StringVar(&a.flags.CheckpointRoot, "checkpoint-root", defaults.CheckpointRoot, "Root of the training checkpoint directories")
	pf.StringVar(&a.flags.OutputRoot, "output-root", defaults.OutputRoot, "Directory receiving cross-game conversions")
	pf.StringVar(&a.flags.ReinitOutputRoot, "reinit-output-root", defaults.ReinitOutputRoot, "Directory receiving board-size conversions")
	pf.StringVar(&a.flags.StateDir, "state-dir", "", "Directory for run manifests (default: <output root>/.crossgame/runs)")
	pf.StringVar(&a.converter, "converter", strings.Join(defaults.Converter, " "), "Converter entrypoint")
	pf.StringVar(&a.helper, "channel-helper", strings.Join(defaults.ChannelHelper, " "), "Channel mapping helper command")
	pf.StringVar(&a.flags.Selector, "selector", defaults.Selector, "Source epoch: highest, lowest or e<N>")
	pf.IntVarP(&a.flags.Parallelism, "parallelism", "j", defaults.Parallelism, "Concurrent conversions")
	pf.StringVar(&a.flags.MissingDirs, "missing-dirs", defaults.MissingDirs, "Unreadable checkpoint directories: fail or skip")
	pf.StringVar(&a.flags.Resume, "resume", "", "Run id whose converted outputs are skipped")
	pf.BoolVar(&a.flags.DryRun, "dry-run", false, "Print converter commands instead of running them")
	pf.BoolVarP(&a.flags.Verbose, "verbose", "v", false, "Show debug logs and per-job status")
	pf.BoolVarP(&a.quiet, "quiet", "q", false, "Only report failures")
	pf.StringVar(&a.flags.LogFormat, "log-format", defaults.LogFormat, "Log format: text or json")

	root.AddCommand(
		newZeroShotCmd(a),
		newResizeCmd(a),
		newPlanCmd(a),
		newLocateCmd(a),
	)
	return root
}

// setup builds the effective config and the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg := config.Default()
	if err := cfg.LoadEnv(a.envFile); err != nil {
		return err
	}

	fl := cmd.Flags()
	override := func(name string, apply func()) {
		if fl.Changed(name) {
			apply()
		}
	}
	override("checkpoint-root", func() { cfg.CheckpointRoot = a.flags.CheckpointRoot })
	override("output-root", func() { cfg.OutputRoot = a.flags.OutputRoot })
	override("reinit-output-root", func() { cfg.ReinitOutputRoot = a.flags.ReinitOutputRoot })
	override("state-dir", func() { cfg.StateDir = a.flags.StateDir })
	override("converter", func() { cfg.Converter = strings.Fields(a.converter) })
	override("channel-helper", func() { cfg.ChannelHelper = strings.Fields(a.helper) })
	override("selector", func() { cfg.Selector = a.flags.Selector })
	override("parallelism", func() { cfg.Parallelism = a.flags.Parallelism })
	override("missing-dirs", func() { cfg.MissingDirs = a.flags.MissingDirs })
	override("log-format", func() { cfg.LogFormat = a.flags.LogFormat })
	cfg.Resume = a.flags.Resume
	cfg.DryRun = a.flags.DryRun
	cfg.Verbose = a.flags.Verbose

	if err := config.Validate(cfg); err != nil {
		return err
	}
	a.cfg = cfg
	a.log = newLogger(cfg, cmd.ErrOrStderr())
	return nil
}

func newLogger(cfg config.Config, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	if cfg.LogFormat == config.LogFormatJSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if cfg.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// runEnv is everything a batch command needs, plus the cleanup to run when it
// finishes.
type runEnv struct {
	runID    string
	driver   *batch.Driver
	reporter progress.Reporter
	cleanup  []func()
}

func (e *runEnv) close() {
	for i := len(e.cleanup) - 1; i >= 0; i-- {
		e.cleanup[i]()
	}
}

// prepare locks outputRoot, opens the run manifest and builds the driver.
// A dry run takes no lock and only reads the manifest it resumes.
func (a *app) prepare(cmd *cobra.Command, outputRoot string) (*runEnv, error) {
	env := &runEnv{runID: a.cfg.Resume}
	if env.runID == "" {
		env.runID = uuid.NewString()
	}

	sel, err := a.cfg.EpochSelector()
	if err != nil {
		return nil, err
	}

	opts := []batch.Option{batch.WithLogger(a.log.WithField("run_id", env.runID))}
	var runner converter.Runner = &converter.ExecRunner{}
	if a.cfg.DryRun {
		runner = &converter.DryRunner{Out: cmd.OutOrStdout()}
		if a.cfg.Resume != "" {
			manifest, err := checkpoint.ResumeReadOnly(a.cfg.ManifestDir(outputRoot), env.runID, cmd.Name())
			if err != nil {
				return nil, err
			}
			opts = append(opts, batch.WithManifest(manifest))
		}
	} else {
		unlock, err := a.lockOutput(outputRoot)
		if err != nil {
			return nil, err
		}
		env.cleanup = append(env.cleanup, unlock)

		manifest, err := a.openManifest(outputRoot, env.runID, cmd.Name())
		if err != nil {
			env.close()
			return nil, err
		}
		env.cleanup = append(env.cleanup, func() {
			if err := manifest.Close(); err != nil {
				a.log.WithError(err).Warn("failed to close run journal")
			}
		})
		opts = append(opts, batch.WithManifest(manifest))
	}

	mode := progress.OutputNormal
	switch {
	case a.quiet:
		mode = progress.OutputMinimal
	case a.cfg.Verbose:
		mode = progress.OutputVerbose
	}
	env.reporter = progress.NewConsoleReporter(progress.WithOutput(cmd.OutOrStdout()), progress.WithMode(mode))
	if a.cfg.LogFormat == config.LogFormatJSON {
		env.reporter = progress.Tee(env.reporter, progress.NewLogReporter(a.log.WithField("run_id", env.runID)))
	}
	env.cleanup = append(env.cleanup, env.reporter.Close)
	opts = append(opts, batch.WithReporter(env.reporter))

	env.driver = batch.New(batch.Config{
		OutputRoot:       a.cfg.OutputRoot,
		ReinitOutputRoot: a.cfg.ReinitOutputRoot,
		Selector:         sel,
		Parallelism:      a.cfg.Parallelism,
		SkipMissingDirs:  a.cfg.MissingDirs == config.MissingDirsSkip,
		DryRun:           a.cfg.DryRun,
		RunID:            env.runID,
	},
		gamewrapper.NewHelperFactory(a.cfg.ChannelHelper, a.log),
		converter.New(runner, converter.WithEntrypoint(a.cfg.Converter...)),
		opts...)
	return env, nil
}

// lockOutput takes the run lock of root, creating root if needed.
func (a *app) lockOutput(root string) (func(), error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid output root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output root: %w", err)
	}
	lock, err := lockfile.New(filepath.Join(abs, lockFileName))
	if err != nil {
		return nil, fmt.Errorf("cannot init lockfile: %w", err)
	}
	if err := lock.TryLock(); err != nil {
		if err == lockfile.ErrBusy {
			return nil, fmt.Errorf("output root %s is in use by another run", abs)
		}
		return nil, fmt.Errorf("unable to lock %s: %w", abs, err)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			a.log.WithError(err).Warn("failed to release output lock")
		}
	}, nil
}

// openManifest starts a fresh manifest, or continues the one named by --resume.
func (a *app) openManifest(outputRoot, runID, command string) (*checkpoint.Manager, error) {
	dir := a.cfg.ManifestDir(outputRoot)
	if a.cfg.Resume == "" {
		return checkpoint.NewManager(dir, runID, command), nil
	}
	if !checkpoint.Exists(dir, runID) {
		return nil, fmt.Errorf("no run %s under %s", runID, dir)
	}
	m, err := checkpoint.Resume(dir, runID, command)
	if err != nil {
		return nil, err
	}
	a.log.WithFields(logrus.Fields{
		"run_id":    runID,
		"converted": len(m.Current().Jobs),
	}).Info("resuming run")
	return m, nil
}

// printBanner prints the effective configuration.
func (a *app) printBanner(w io.Writer, title, runID, outputRoot string) {
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "CROSSGAME - %s\n", title)
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "Run id:          %s\n", runID)
	fmt.Fprintf(w, "Checkpoints:     %s\n", a.cfg.CheckpointRoot)
	fmt.Fprintf(w, "Output:          %s\n", outputRoot)
	fmt.Fprintf(w, "Selector:        %s\n", a.cfg.Selector)
	fmt.Fprintf(w, "Parallelism:     %d\n", a.cfg.Parallelism)
	fmt.Fprintf(w, "Converter:       %s\n", strings.Join(a.cfg.Converter, " "))
	if a.cfg.DryRun {
		fmt.Fprintln(w, "Mode:            dry run")
	}
	fmt.Fprintln(w, strings.Repeat("=", 60))
}

// finish prints the summary and maps it to the command result.
func finish(w io.Writer, summary *batch.Summary, err error) error {
	if summary != nil {
		summary.Print(w)
	}
	if err != nil {
		return err
	}
	if summary.Failed() {
		return errConversionsFailed
	}
	return nil
}
