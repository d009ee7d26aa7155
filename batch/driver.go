// Package batch drives conversion batches.
//
// A batch is a list of passes, each an expanded job group. For every source
// option set the driver locates the source checkpoint once, then for every
// target option set it asks the game wrapper for the channel correspondence,
// reports it and runs the converter. A missing checkpoint skips the source
// option set; a failed conversion is recorded and the batch goes on. Anything
// else (unreadable checkpoint directories, malformed checkpoint names,
// channel helper failures, cancellation) aborts the batch.
//
// # Usage
//
//	d := batch.New(cfg, factory, converter.New(nil),
//		batch.WithLogger(log), batch.WithReporter(reporter))
//	summary, err := d.Run(ctx, passes)
//	summary.Print(os.Stdout)
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/mzhaom/polygames-crossgame/checkpoint"
	"github.com/mzhaom/polygames-crossgame/converter"
	"github.com/mzhaom/polygames-crossgame/gamewrapper"
	"github.com/mzhaom/polygames-crossgame/progress"
	"github.com/mzhaom/polygames-crossgame/registry"
)

// Config holds driver settings.
type Config struct {
	// OutputRoot receives cross-game conversions.
	OutputRoot string
	// ReinitOutputRoot receives board-size conversions.
	ReinitOutputRoot string
	// Selector picks the source epoch.
	Selector checkpoint.Selector
	// Parallelism bounds concurrent conversions; 1 or less runs jobs inline.
	Parallelism int
	// SkipMissingDirs downgrades unlistable checkpoint directories from a
	// fatal error to a skipped source option set.
	SkipMissingDirs bool
	// DryRun is reported to the progress reporter and suppresses output
	// directory creation. The converter itself is expected to be a DryRunner.
	DryRun bool
	// RunID identifies the batch in reports.
	RunID string
}

// Driver runs conversion batches.
type Driver struct {
	config    Config
	factory   gamewrapper.Factory
	converter *converter.Converter
	manifest  *checkpoint.Manager
	reporter  progress.Reporter
	log       logrus.FieldLogger
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the diagnostic logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(d *Driver) { d.log = log }
}

// WithReporter sets the progress reporter.
func WithReporter(r progress.Reporter) Option {
	return func(d *Driver) { d.reporter = r }
}

// WithManifest records every job outcome in m. Jobs whose output m already
// lists as converted are skipped.
func WithManifest(m *checkpoint.Manager) Option {
	return func(d *Driver) { d.manifest = m }
}

// New creates a driver.
func New(config Config, factory gamewrapper.Factory, conv *converter.Converter, opts ...Option) *Driver {
	d := &Driver{
		config:    config,
		factory:   factory,
		converter: conv,
		reporter:  progress.NullReporter{},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		d.log = l
	}
	return d
}

// Run converts every job of passes. The returned summary is valid even when
// err is non-nil.
func (d *Driver) Run(ctx context.Context, passes []Pass) (*Summary, error) {
	summary := &Summary{}
	start := time.Now()
	defer func() { summary.Duration = time.Since(start) }()

	d.reporter.Event(progress.NewBatchStartEvent(d.config.RunID, len(passes), d.config.DryRun))

	sched := d.newScheduler(ctx)
	err := func() error {
		for _, pass := range passes {
			d.log.WithFields(logrus.Fields{"pass": pass.Name, "jobs": pass.Jobs()}).Info("starting pass")
			d.reporter.Event(progress.NewPassStartEvent(pass.Name, len(pass.Pairs)))
			for _, pair := range pass.Pairs {
				if err := d.runPair(sched, pair, summary); err != nil {
					return err
				}
			}
		}
		return nil
	}()
	err = sched.finish(err)
	if err != nil {
		d.reporter.Event(progress.NewErrorEvent(err, "batch aborted"))
	}
	return summary, err
}

// runPair schedules every conversion of pair.Source to pair.Targets.
func (d *Driver) runPair(sched *scheduler, pair registry.Pair, summary *Summary) error {
	src := pair.Source
	for i := 0; i < src.Len(); i++ {
		if err := sched.ctx.Err(); err != nil {
			return err
		}
		srcSet := src.OptionSet(i)
		res, ok, err := d.locate(src, srcSet, summary)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		srcWrapper, err := d.factory.Construct(sched.ctx, src.WrapperName(), srcSet.Options)
		if err != nil {
			return fmt.Errorf("failed to construct wrapper for %s: %w", src.Name(), err)
		}

		for _, dst := range pair.Targets {
			for j := 0; j < dst.Len(); j++ {
				job := Job{Source: src, SourceIndex: i, Target: dst, TargetIndex: j}
				output := filepath.Join(d.config.OutputRoot, job.OutputName())
				skip, err := d.alreadyConverted(job, res.Path, output, summary)
				if err != nil {
					return err
				}
				if skip {
					continue
				}

				dstSet := job.TargetSet()
				dstWrapper, err := d.factory.Construct(sched.ctx, dst.WrapperName(), dstSet.Options)
				if err != nil {
					return fmt.Errorf("failed to construct wrapper for %s: %w", dst.Name(), err)
				}

				summary.schedule()
				if err := sched.do(func(ctx context.Context) error {
					return d.convertZeroShot(ctx, job, res.Path, srcWrapper, dstWrapper, output, summary)
				}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (d *Driver) convertZeroShot(ctx context.Context, job Job, srcCheckpoint string, srcWrapper, dstWrapper gamewrapper.Wrapper, output string, summary *Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mapping, err := gamewrapper.Correspondence(ctx, dstWrapper, srcWrapper)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to map channels for %s: %w", job, err)
	}

	srcSet, dstSet := job.SourceSet(), job.TargetSet()
	req := converter.Request{
		SourceCheckpoint:    srcCheckpoint,
		TargetGame:          job.Target.Name(),
		TargetOptions:       dstSet.Options,
		Output:              output,
		MoveSourceChannels:  mapping.Move,
		StateSourceChannels: mapping.State,
	}
	d.reporter.Event(progress.NewJobStartEvent(
		job.Source.Name(), srcSet.Options, job.Target.Name(), dstSet.Options, output, &mapping))
	return d.execute(ctx, job, req, srcCheckpoint, output, summary)
}

// RunResize converts every option set of each game to every other option
// set of the same game, re-initialising the value and policy heads.
func (d *Driver) RunResize(ctx context.Context, games []*registry.GameProfile) (*Summary, error) {
	summary := &Summary{}
	start := time.Now()
	defer func() { summary.Duration = time.Since(start) }()

	d.reporter.Event(progress.NewBatchStartEvent(d.config.RunID, len(games), d.config.DryRun))

	sched := d.newScheduler(ctx)
	err := func() error {
		for _, game := range games {
			d.log.WithField("game", game.Name()).Info("starting resize pass")
			d.reporter.Event(progress.NewPassStartEvent(game.Name(), game.Len()))
			if err := d.resizeGame(sched, game, summary); err != nil {
				return err
			}
		}
		return nil
	}()
	err = sched.finish(err)
	if err != nil {
		d.reporter.Event(progress.NewErrorEvent(err, "resize aborted"))
	}
	return summary, err
}

func (d *Driver) resizeGame(sched *scheduler, game *registry.GameProfile, summary *Summary) error {
	for i := 0; i < game.Len(); i++ {
		if err := sched.ctx.Err(); err != nil {
			return err
		}
		srcSet := game.OptionSet(i)
		res, ok, err := d.locate(game, srcSet, summary)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		for j := 0; j < game.Len(); j++ {
			if i == j {
				continue
			}
			job := Job{Source: game, SourceIndex: i, Target: game, TargetIndex: j}
			output := filepath.Join(d.config.ReinitOutputRoot, job.ResizeOutputName())
			skip, err := d.alreadyConverted(job, res.Path, output, summary)
			if err != nil {
				return err
			}
			if skip {
				continue
			}

			dstSet := job.TargetSet()
			req := converter.ReinitRequest{
				SourceCheckpoint: res.Path,
				TargetOptions:    dstSet.Options,
				Output:           output,
			}
			srcPath := res.Path
			summary.schedule()
			if err := sched.do(func(ctx context.Context) error {
				d.reporter.Event(progress.NewJobStartEvent(
					game.Name(), srcSet.Options, game.Name(), dstSet.Options, output, nil))
				return d.execute(ctx, job, req, srcPath, output, summary)
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// locate resolves the checkpoint of one source option set. ok is false when
// the option set must be skipped.
func (d *Driver) locate(game *registry.GameProfile, set registry.OptionSet, summary *Summary) (checkpoint.Result, bool, error) {
	log := d.log.WithFields(logrus.Fields{
		"game":   game.Name(),
		"option": set.Label,
		"dir":    set.CheckpointDir,
	})

	res, err := checkpoint.Locate(set.CheckpointDir, d.config.Selector)
	switch {
	case err == nil:
	case errors.Is(err, checkpoint.ErrNoCheckpoint):
		log.WithError(err).Debug("no checkpoint, skipping source")
		summary.skipSource()
		d.reporter.Event(progress.NewJobSkippedEvent(game.Name(), set.Options, "", err.Error()))
		return checkpoint.Result{}, false, nil
	case isMalformed(err):
		return checkpoint.Result{}, false, err
	case d.config.SkipMissingDirs:
		log.WithError(err).Warn("checkpoint directory unavailable, skipping source")
		summary.skipSource()
		d.reporter.Event(progress.NewJobSkippedEvent(game.Name(), set.Options, "", err.Error()))
		return checkpoint.Result{}, false, nil
	default:
		return checkpoint.Result{}, false, fmt.Errorf("%s (%s): %w", game.Name(), set.CheckpointDir, err)
	}

	if res.ServerDirs > 1 {
		log.WithFields(logrus.Fields{
			"server_dirs": res.ServerDirs,
			"using":       res.ServerDir,
		}).Warn("multiple server directories, using highest job id")
	}
	log.WithFields(logrus.Fields{"checkpoint": res.Path, "epoch": res.Epoch}).Debug("located checkpoint")
	return res, true, nil
}

func isMalformed(err error) bool {
	var malformed *checkpoint.MalformedCheckpointError
	return errors.As(err, &malformed)
}

// alreadyConverted reports whether the manifest lists output as converted.
// A skipped job is recorded as resumed.
func (d *Driver) alreadyConverted(job Job, srcCheckpoint, output string, summary *Summary) (bool, error) {
	if d.manifest == nil || !d.manifest.Converted(output) {
		return false, nil
	}
	summary.resume()
	d.log.WithField("output", output).Debug("already converted, skipping")
	d.reporter.Event(progress.NewJobSkippedEvent(job.Source.Name(), job.SourceSet().Options, output, "already converted"))

	now := time.Now()
	rec := checkpoint.JobRecord{
		Output:           output,
		SourceGame:       job.Source.Name(),
		SourceOptions:    job.SourceSet().Options,
		SourceCheckpoint: srcCheckpoint,
		TargetGame:       job.Target.Name(),
		TargetOptions:    job.TargetSet().Options,
		Status:           checkpoint.StatusResumed,
		Started:          now,
		Finished:         now,
	}
	if err := d.manifest.Record(rec); err != nil {
		return false, fmt.Errorf("failed to record %s: %w", output, err)
	}
	return true, nil
}

// execute runs one conversion and records its outcome. Only cancellation and
// manifest write failures are returned; a failed conversion is not an error.
func (d *Driver) execute(ctx context.Context, job Job, cmd converter.Command, srcCheckpoint, output string, summary *Summary) error {
	log := d.log.WithFields(logrus.Fields{
		"checkpoint": srcCheckpoint,
		"output":     output,
	})

	if !d.config.DryRun {
		if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	rec := checkpoint.JobRecord{
		Output:           output,
		SourceGame:       job.Source.Name(),
		SourceOptions:    job.SourceSet().Options,
		SourceCheckpoint: srcCheckpoint,
		TargetGame:       job.Target.Name(),
		TargetOptions:    job.TargetSet().Options,
		Started:          time.Now(),
	}

	code, err := d.converter.Convert(ctx, cmd)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	rec.Finished = time.Now()
	rec.ExitCode = code

	if err != nil {
		rec.Status = checkpoint.StatusFailed
		rec.Error = err.Error()
		log.WithError(err).WithField("exit_code", code).Warn("conversion failed")
		summary.fail(Failure{Job: job, Output: output, ExitCode: code, Err: err})
	} else {
		rec.Status = checkpoint.StatusConverted
		log.Debug("conversion finished")
		summary.convert()
	}
	d.reporter.Event(progress.NewJobCompleteEvent(output, code, rec.Finished.Sub(rec.Started), err))

	if d.manifest != nil {
		if err := d.manifest.Record(rec); err != nil {
			return fmt.Errorf("failed to record %s: %w", output, err)
		}
	}
	return nil
}

// scheduler runs jobs inline, or on a bounded errgroup when parallelism is
// above one. The first job error cancels ctx.
type scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	g      *errgroup.Group
}

func (d *Driver) newScheduler(ctx context.Context) *scheduler {
	ctx, cancel := context.WithCancel(ctx)
	if d.config.Parallelism <= 1 {
		return &scheduler{ctx: ctx, cancel: cancel}
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.config.Parallelism)
	return &scheduler{ctx: gctx, cancel: cancel, g: g}
}

// do runs fn, blocking while all slots are busy. Inline errors are returned
// directly; errgroup errors surface from finish.
func (s *scheduler) do(fn func(ctx context.Context) error) error {
	if s.g == nil {
		return fn(s.ctx)
	}
	s.g.Go(func() error { return fn(s.ctx) })
	return nil
}

// finish waits for running jobs and returns the error that ended the batch.
// A scheduling error cancels the jobs still running.
func (s *scheduler) finish(err error) error {
	defer s.cancel()
	if err != nil {
		s.cancel()
	}
	if s.g == nil {
		return err
	}
	waitErr := s.g.Wait()
	if waitErr != nil && (err == nil || errors.Is(err, context.Canceled)) {
		return waitErr
	}
	return err
}
