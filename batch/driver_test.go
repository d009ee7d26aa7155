package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzhaom/polygames-crossgame/checkpoint"
	"github.com/mzhaom/polygames-crossgame/converter"
	"github.com/mzhaom/polygames-crossgame/gamewrapper"
	"github.com/mzhaom/polygames-crossgame/progress"
	"github.com/mzhaom/polygames-crossgame/registry"
)

// fakeFactory maps every pair with mapFn, identity by default.
type fakeFactory struct {
	mapFn func(target, source gamewrapper.Wrapper) (gamewrapper.ChannelMapping, error)

	mu        sync.Mutex
	construct []string
}

func (f *fakeFactory) Construct(_ context.Context, game string, options []string) (gamewrapper.Wrapper, error) {
	f.mu.Lock()
	f.construct = append(f.construct, game)
	f.mu.Unlock()
	return &fakeWrapper{factory: f, game: game, options: options}, nil
}

type fakeWrapper struct {
	factory *fakeFactory
	game    string
	options []string
}

func (w *fakeWrapper) Game() string      { return w.game }
func (w *fakeWrapper) Options() []string { return w.options }

func (w *fakeWrapper) mapping(source gamewrapper.Wrapper) (gamewrapper.ChannelMapping, error) {
	if w.factory.mapFn != nil {
		return w.factory.mapFn(w, source)
	}
	return gamewrapper.ChannelMapping{Move: []int{0, 1}, State: []int{0}}, nil
}

func (w *fakeWrapper) MoveSourceChannels(_ context.Context, source gamewrapper.Wrapper) ([]int, error) {
	m, err := w.mapping(source)
	return m.Move, err
}

func (w *fakeWrapper) StateSourceChannels(_ context.Context, source gamewrapper.Wrapper) ([]int, error) {
	m, err := w.mapping(source)
	return m.State, err
}

// fakeRunner records every command line and fails outputs listed in fail.
type fakeRunner struct {
	fail map[string]int

	mu   sync.Mutex
	argv [][]string
}

func (r *fakeRunner) Run(_ context.Context, argv []string) (int, error) {
	r.mu.Lock()
	r.argv = append(r.argv, argv)
	r.mu.Unlock()

	out := argValue(argv, "--out")
	if code, ok := r.fail[filepath.Base(out)]; ok {
		return code, &converter.ProcessError{Message: "converter exited with failure", ExitCode: code}
	}
	return 0, nil
}

func (r *fakeRunner) outputs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var outs []string
	for _, a := range r.argv {
		outs = append(outs, filepath.Base(argValue(a, "--out")))
	}
	sort.Strings(outs)
	return outs
}

func argValue(argv []string, flag string) string {
	for i, a := range argv {
		if a == flag && i+1 < len(argv) {
			return argv[i+1]
		}
	}
	return ""
}

// mkCheckpoints creates dir/server-<job>/checkpoint_<epoch>.pt files.
func mkCheckpoints(t *testing.T, dir, job string, epochs ...int) {
	t.Helper()
	server := filepath.Join(dir, checkpoint.ServerDirPrefix+job)
	require.NoError(t, os.MkdirAll(server, 0755))
	for _, e := range epochs {
		name := fmt.Sprintf("%s%d%s", checkpoint.FilePrefix, e, checkpoint.FileExt)
		require.NoError(t, os.WriteFile(filepath.Join(server, name), nil, 0644))
	}
}

type fixture struct {
	root   string
	out    string
	reg    *registry.Registry
	runner *fakeRunner
	fact   *fakeFactory
}

// newFixture registers Hex (9x9, 11x11), Gomoku (9x9) and Squava (default)
// with checkpoints under a temp root.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	set := func(game, label string, opts ...string) registry.OptionSet {
		dir := filepath.Join(root, game, label)
		mkCheckpoints(t, dir, "100", 1, 7, 3)
		return registry.OptionSet{Options: opts, Label: label, CheckpointDir: dir}
	}

	reg, err := registry.New(
		registry.NewGameProfile("Hex",
			set("Hex", "9x9", "Board Size/9x9"),
			set("Hex", "11x11", "Board Size/11x11")),
		registry.NewGameProfile("Gomoku", set("Gomoku", "9x9", "Board Size/9x9")),
		registry.NewGameProfile("Squava", set("Squava", "")),
	)
	require.NoError(t, err)

	return &fixture{
		root:   root,
		out:    filepath.Join(root, "out"),
		reg:    reg,
		runner: &fakeRunner{},
		fact:   &fakeFactory{},
	}
}

func (f *fixture) driver(cfg Config, opts ...Option) *Driver {
	if cfg.OutputRoot == "" {
		cfg.OutputRoot = f.out
	}
	if cfg.ReinitOutputRoot == "" {
		cfg.ReinitOutputRoot = filepath.Join(f.root, "reinit")
	}
	return New(cfg, f.fact, converter.New(f.runner), opts...)
}

func (f *fixture) plan(t *testing.T, groups ...registry.JobGroup) []Pass {
	t.Helper()
	passes, err := Plan(f.reg, groups)
	require.NoError(t, err)
	return passes
}

func TestPlan_DefaultGroupsHaveNoSelfPairs(t *testing.T) {
	passes, err := Plan(registry.Default(), registry.DefaultGroups())
	require.NoError(t, err)
	require.Len(t, passes, 4)

	for _, p := range passes {
		for _, pair := range p.Pairs {
			for _, dst := range pair.Targets {
				assert.NotEqual(t, pair.Source.Name(), dst.Name(), "pass %s", p.Name)
			}
		}
	}

	// Five single-configuration shogi variants: 5 * 4 ordered pairs.
	assert.Equal(t, registry.GroupShogiVariants, passes[1].Name)
	assert.Equal(t, 20, passes[1].Jobs())
}

func TestPlan_RejectsInvalidGroup(t *testing.T) {
	_, err := Plan(registry.Default(), []registry.JobGroup{{Name: "broken", Sources: []string{"LudiiNope.lud"}}})
	assert.Error(t, err)
}

func TestJob_OutputNames(t *testing.T) {
	hex := registry.NewGameProfile("Hex", registry.OptionSet{Label: "9x9"}, registry.OptionSet{Label: "11x11"})
	gomoku := registry.NewGameProfile("Gomoku", registry.OptionSet{Label: "9x9"})

	job := Job{Source: hex, SourceIndex: 0, Target: gomoku, TargetIndex: 0}
	assert.Equal(t, "Hex9x9_to_Gomoku9x9.pt.gz", job.OutputName())
	assert.Equal(t, "/base/Hex9x9_to_Gomoku9x9.pt.gz", filepath.Join("/base", job.OutputName()))

	resize := Job{Source: hex, SourceIndex: 1, Target: hex, TargetIndex: 0}
	assert.Equal(t, filepath.Join("Hex", "11x11_to_9x9.pt.gz"), resize.ResizeOutputName())
}

func TestRun_ConvertsEveryPairWithBestCheckpoint(t *testing.T) {
	f := newFixture(t)
	var report bytes.Buffer
	f.fact.mapFn = func(target, source gamewrapper.Wrapper) (gamewrapper.ChannelMapping, error) {
		return gamewrapper.ChannelMapping{Move: []int{1, 0}, State: []int{0, gamewrapper.NoSourceChannel}}, nil
	}
	d := f.driver(Config{Selector: checkpoint.Highest},
		WithReporter(progress.NewConsoleReporter(progress.WithOutput(&report))))

	passes := f.plan(t, registry.JobGroup{Name: "hex-to-gomoku", Sources: []string{"Hex"}, Targets: []string{"Gomoku"}, Directional: true})
	summary, err := d.Run(context.Background(), passes)
	require.NoError(t, err)

	assert.Equal(t, []string{"Hex11x11_to_Gomoku9x9.pt.gz", "Hex9x9_to_Gomoku9x9.pt.gz"}, f.runner.outputs())
	assert.Equal(t, 2, summary.Scheduled)
	assert.Equal(t, 2, summary.Converted)
	assert.False(t, summary.Failed())

	argv := f.runner.argv[0]
	assert.Equal(t, converter.DefaultEntrypoint, argv[:len(converter.DefaultEntrypoint)])
	assert.Equal(t, filepath.Join(f.out, "Hex9x9_to_Gomoku9x9.pt.gz"), argValue(argv, "--out"))
	assert.Equal(t, filepath.Join(f.root, "Hex", "9x9", "server-100", "checkpoint_7.pt"), argValue(argv, "--init_checkpoint"))
	assert.Equal(t, "Gomoku", argValue(argv, "--game_name"))
	assert.Equal(t, "1", argValue(argv, "--move_source_channels"))

	out := report.String()
	assert.Contains(t, out, "Source: Hex ([Board Size/9x9])\nTarget: Gomoku ([Board Size/9x9])\n")
	assert.Equal(t, 2, strings.Count(out, "Transferring move channel 1 --> 0"))
	assert.Equal(t, 2, strings.Count(out, "Transferring state channel -1 --> 1"))
	assert.NotContains(t, out, "Transferring state channel 0 --> 0")
}

func TestRun_SymmetricGroupSkipsSelf(t *testing.T) {
	f := newFixture(t)
	d := f.driver(Config{})

	passes := f.plan(t, registry.JobGroup{Name: "all", Sources: []string{"Hex", "Gomoku", "Squava"}})
	summary, err := d.Run(context.Background(), passes)
	require.NoError(t, err)

	for _, out := range f.runner.outputs() {
		for _, name := range []string{"Hex", "Gomoku", "Squava"} {
			assert.False(t, strings.HasPrefix(out, name) && strings.Contains(out, "_to_"+name), "self pair %s", out)
		}
	}
	// Hex(2) -> Gomoku(1)+Squava(1), Gomoku(1) -> Hex(2)+Squava(1), Squava(1) -> Hex(2)+Gomoku(1).
	assert.Equal(t, 4+3+3, summary.Converted)
}

func TestRun_MissingCheckpointSkipsOnlyThatOptionSet(t *testing.T) {
	f := newFixture(t)
	hex, err := f.reg.Game("Hex")
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(filepath.Join(hex.OptionSet(0).CheckpointDir, "server-100")))

	d := f.driver(Config{})
	summary, err := d.Run(context.Background(), f.plan(t,
		registry.JobGroup{Name: "g", Sources: []string{"Hex"}, Targets: []string{"Gomoku", "Squava"}, Directional: true}))
	require.NoError(t, err)

	assert.Equal(t, []string{"Hex11x11_to_Gomoku9x9.pt.gz", "Hex11x11_to_Squava.pt.gz"}, f.runner.outputs())
	assert.Equal(t, 1, summary.SkippedSources)
}

func TestRun_EmptyServerDirectorySkips(t *testing.T) {
	f := newFixture(t)
	gomoku, _ := f.reg.Game("Gomoku")
	dir := gomoku.OptionSet(0).CheckpointDir
	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "server-5"), 0755))

	summary, err := f.driver(Config{}).Run(context.Background(), f.plan(t,
		registry.JobGroup{Name: "g", Sources: []string{"Gomoku"}, Targets: []string{"Hex"}, Directional: true}))
	require.NoError(t, err)
	assert.Empty(t, f.runner.outputs())
	assert.Equal(t, 1, summary.SkippedSources)
}

func TestRun_FailedConversionContinues(t *testing.T) {
	f := newFixture(t)
	f.runner.fail = map[string]int{"Hex9x9_to_Gomoku9x9.pt.gz": 1}

	summary, err := f.driver(Config{}).Run(context.Background(), f.plan(t,
		registry.JobGroup{Name: "g", Sources: []string{"Hex"}, Targets: []string{"Gomoku", "Squava"}, Directional: true}))
	require.NoError(t, err)

	assert.Len(t, f.runner.outputs(), 4)
	assert.Equal(t, 3, summary.Converted)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, 1, summary.Failures[0].ExitCode)
	assert.True(t, converter.IsExitFailure(summary.Failures[0].Err))
	assert.True(t, summary.Failed())

	var buf bytes.Buffer
	summary.Print(&buf)
	assert.Contains(t, buf.String(), "Failed:             1")
	assert.Contains(t, buf.String(), "Hex9x9_to_Gomoku9x9.pt.gz (exit code 1)")
}

func TestRun_MissingDirectory(t *testing.T) {
	f := newFixture(t)
	hex, _ := f.reg.Game("Hex")
	require.NoError(t, os.RemoveAll(hex.OptionSet(1).CheckpointDir))
	group := registry.JobGroup{Name: "g", Sources: []string{"Hex"}, Targets: []string{"Gomoku"}, Directional: true}

	_, err := f.driver(Config{}).Run(context.Background(), f.plan(t, group))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist), "expected not-exist error, got %v", err)
	assert.False(t, errors.Is(err, checkpoint.ErrNoCheckpoint))

	f.runner = &fakeRunner{}
	summary, err := f.driver(Config{SkipMissingDirs: true}).Run(context.Background(), f.plan(t, group))
	require.NoError(t, err)
	assert.Equal(t, []string{"Hex9x9_to_Gomoku9x9.pt.gz"}, f.runner.outputs())
	assert.Equal(t, 1, summary.SkippedSources)
}

func TestRun_MalformedCheckpointIsFatal(t *testing.T) {
	f := newFixture(t)
	hex, _ := f.reg.Game("Hex")
	bad := filepath.Join(hex.OptionSet(0).CheckpointDir, "server-100", "checkpoint_final.pt")
	require.NoError(t, os.WriteFile(bad, nil, 0644))

	_, err := f.driver(Config{SkipMissingDirs: true}).Run(context.Background(), f.plan(t,
		registry.JobGroup{Name: "g", Sources: []string{"Hex"}, Targets: []string{"Gomoku"}, Directional: true}))
	var malformed *checkpoint.MalformedCheckpointError
	require.True(t, errors.As(err, &malformed), "expected MalformedCheckpointError, got %v", err)
	assert.Empty(t, f.runner.outputs())
}

func TestRun_ChannelMappingFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("helper crashed")
	f.fact.mapFn = func(target, source gamewrapper.Wrapper) (gamewrapper.ChannelMapping, error) {
		return gamewrapper.ChannelMapping{}, boom
	}

	for _, parallelism := range []int{1, 3} {
		f.runner = &fakeRunner{}
		_, err := f.driver(Config{Parallelism: parallelism}).Run(context.Background(), f.plan(t,
			registry.JobGroup{Name: "g", Sources: []string{"Hex", "Gomoku"}}))
		assert.ErrorIs(t, err, boom, "parallelism %d", parallelism)
		assert.Empty(t, f.runner.outputs())
	}
}

func TestRun_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.driver(Config{}).Run(ctx, f.plan(t, registry.JobGroup{Name: "g", Sources: []string{"Hex", "Gomoku"}}))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.runner.outputs())
}

func TestRun_ParallelMatchesSequential(t *testing.T) {
	group := registry.JobGroup{Name: "all", Sources: []string{"Hex", "Gomoku", "Squava"}}

	seq := newFixture(t)
	_, err := seq.driver(Config{Parallelism: 1}).Run(context.Background(), seq.plan(t, group))
	require.NoError(t, err)

	par := newFixture(t)
	par.runner.fail = map[string]int{"Squava_to_Gomoku9x9.pt.gz": 2}
	summary, err := par.driver(Config{Parallelism: 4}).Run(context.Background(), par.plan(t, group))
	require.NoError(t, err)

	assert.Equal(t, seq.runner.outputs(), par.runner.outputs())
	assert.Equal(t, 10, summary.Scheduled)
	assert.Equal(t, 9, summary.Converted)
	assert.Len(t, summary.Failures, 1)
}

func TestRun_ResumeSkipsConvertedOutputs(t *testing.T) {
	f := newFixture(t)
	stateDir := t.TempDir()
	group := registry.JobGroup{Name: "g", Sources: []string{"Hex"}, Targets: []string{"Gomoku"}, Directional: true}
	f.runner.fail = map[string]int{"Hex11x11_to_Gomoku9x9.pt.gz": 1}

	first := checkpoint.NewManager(stateDir, "run-1", "zeroshot")
	_, err := f.driver(Config{}, WithManifest(first)).Run(context.Background(), f.plan(t, group))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	f.runner = &fakeRunner{}
	resumed, err := checkpoint.Resume(stateDir, "run-1", "zeroshot")
	require.NoError(t, err)
	defer resumed.Close()

	summary, err := f.driver(Config{}, WithManifest(resumed)).Run(context.Background(), f.plan(t, group))
	require.NoError(t, err)

	assert.Equal(t, []string{"Hex11x11_to_Gomoku9x9.pt.gz"}, f.runner.outputs(), "only the failed job is retried")
	assert.Equal(t, 1, summary.Resumed)
	assert.True(t, resumed.Converted(filepath.Join(f.out, "Hex11x11_to_Gomoku9x9.pt.gz")))

	var skipped []checkpoint.JobRecord
	for _, rec := range resumed.Current().Jobs {
		if rec.Status == checkpoint.StatusResumed {
			skipped = append(skipped, rec)
		}
	}
	require.Len(t, skipped, 1)
	assert.Equal(t, filepath.Join(f.out, "Hex9x9_to_Gomoku9x9.pt.gz"), skipped[0].Output)
	assert.Equal(t, "Gomoku", skipped[0].TargetGame)
	assert.NotEmpty(t, skipped[0].SourceCheckpoint)
}

func TestRunResize(t *testing.T) {
	f := newFixture(t)
	hex, _ := f.reg.Game("Hex")
	reinit := filepath.Join(f.root, "reinit")

	d := f.driver(Config{ReinitOutputRoot: reinit, Selector: checkpoint.Lowest})
	summary, err := d.RunResize(context.Background(), []*registry.GameProfile{hex})
	require.NoError(t, err)

	assert.Equal(t, []string{"11x11_to_9x9.pt.gz", "9x9_to_11x11.pt.gz"}, f.runner.outputs())
	assert.Equal(t, 2, summary.Converted)

	var argv []string
	for _, a := range f.runner.argv {
		if strings.HasSuffix(argValue(a, "--out"), "9x9_to_11x11.pt.gz") {
			argv = a
		}
	}
	require.NotNil(t, argv)
	assert.Equal(t, filepath.Join(reinit, "Hex", "9x9_to_11x11.pt.gz"), argValue(argv, "--out"))
	assert.Equal(t, filepath.Join(f.root, "Hex", "9x9", "server-100", "checkpoint_1.pt"), argValue(argv, "--init_checkpoint"))
	assert.Equal(t, "v.weight", argValue(argv, "--skip"))
	assert.Equal(t, "Board Size/11x11", argValue(argv, "--game_options"))
	assert.NotContains(t, argv, "--zero_shot=true")

	info, err := os.Stat(filepath.Join(reinit, "Hex"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRun_DryRunCreatesNoDirectories(t *testing.T) {
	f := newFixture(t)
	var printed bytes.Buffer
	d := New(Config{OutputRoot: f.out, DryRun: true}, f.fact, converter.New(&converter.DryRunner{Out: &printed}))

	summary, err := d.Run(context.Background(), f.plan(t,
		registry.JobGroup{Name: "g", Sources: []string{"Squava"}, Targets: []string{"Gomoku"}, Directional: true}))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Converted)
	assert.Contains(t, printed.String(), "--out "+filepath.Join(f.out, "Squava_to_Gomoku9x9.pt.gz"))

	_, err = os.Stat(f.out)
	assert.True(t, os.IsNotExist(err))
}
