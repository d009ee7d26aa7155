package gamewrapper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/mzhaom/polygames-crossgame/internal/ndjson"
)

// DefaultHelper runs the channel mapping helper on top of the Ludii jar.
var DefaultHelper = []string{"java", "-cp", "Ludii.jar:.", "LudiiChannelMapper"}

// HelperError reports a failed helper invocation.
type HelperError struct {
	Argv     []string
	ExitCode int
	Stderr   string
	Cause    error
}

func (e *HelperError) Error() string {
	msg := fmt.Sprintf("channel helper failed: %v", e.Cause)
	if e.ExitCode > 0 {
		msg = fmt.Sprintf("channel helper failed (exit code %d)", e.ExitCode)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + lastLine(s)
	}
	return msg
}

func (e *HelperError) Unwrap() error {
	return e.Cause
}

// helperOutput is the single JSON line the helper prints.
type helperOutput struct {
	Move  []int `json:"move_source_channels"`
	State []int `json:"state_source_channels"`
}

// HelperFactory constructs wrappers whose correspondences are computed by
// running the helper once per (target, source) pair. Results are cached and
// concurrent requests for the same pair share one helper run. It is safe
// for concurrent use.
type HelperFactory struct {
	argv []string
	log  logrus.FieldLogger

	group singleflight.Group
	mu    sync.Mutex
	cache map[string]ChannelMapping
}

// NewHelperFactory creates a factory running argv (DefaultHelper if empty).
func NewHelperFactory(argv []string, log logrus.FieldLogger) *HelperFactory {
	if len(argv) == 0 {
		argv = DefaultHelper
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &HelperFactory{
		argv:  append([]string(nil), argv...),
		log:   log,
		cache: make(map[string]ChannelMapping),
	}
}

// Construct returns a wrapper for game and options. No process is started
// until a correspondence is requested.
func (f *HelperFactory) Construct(_ context.Context, game string, options []string) (Wrapper, error) {
	if game == "" {
		return nil, errors.New("construct wrapper: empty game name")
	}
	return &helperWrapper{
		factory: f,
		game:    game,
		options: append([]string(nil), options...),
	}, nil
}

// mapping returns the correspondence of target against source.
//
// Concurrent callers share one helper run. The run is detached from the
// cancellation of whichever caller started it; each caller stops waiting
// when its own ctx is done, and the result is still cached.
func (f *HelperFactory) mapping(ctx context.Context, target, source Wrapper) (ChannelMapping, error) {
	key := wrapperKey(target) + "<-" + wrapperKey(source)

	f.mu.Lock()
	m, ok := f.cache[key]
	f.mu.Unlock()
	if ok {
		return m, nil
	}

	runCtx := context.WithoutCancel(ctx)
	ch := f.group.DoChan(key, func() (interface{}, error) {
		m, err := f.run(runCtx, target, source)
		if err != nil {
			return nil, err
		}
		f.mu.Lock()
		f.cache[key] = m
		f.mu.Unlock()
		return m, nil
	})
	select {
	case <-ctx.Done():
		return ChannelMapping{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return ChannelMapping{}, res.Err
		}
		return res.Val.(ChannelMapping), nil
	}
}

// Argv returns the helper command line for a (target, source) pair.
func (f *HelperFactory) Argv(target, source Wrapper) []string {
	argv := append([]string(nil), f.argv...)
	argv = append(argv, "--source-game", source.Game())
	for _, o := range source.Options() {
		argv = append(argv, "--source-option", o)
	}
	argv = append(argv, "--target-game", target.Game())
	for _, o := range target.Options() {
		argv = append(argv, "--target-option", o)
	}
	return argv
}

func (f *HelperFactory) run(ctx context.Context, target, source Wrapper) (ChannelMapping, error) {
	argv := f.Argv(target, source)
	log := f.log.WithFields(logrus.Fields{
		"source": source.Game(),
		"target": target.Game(),
	})
	log.WithField("argv", strings.Join(argv, " ")).Debug("running channel helper")
	start := time.Now()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		helperErr := &HelperError{Argv: argv, Stderr: stderr.String(), Cause: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			helperErr.ExitCode = exitErr.ExitCode()
		}
		return ChannelMapping{}, helperErr
	}

	m, err := parseHelperOutput(&stdout)
	if err != nil {
		return ChannelMapping{}, &HelperError{Argv: argv, Stderr: stderr.String(), Cause: err}
	}
	log.WithFields(logrus.Fields{
		"move_channels":  len(m.Move),
		"state_channels": len(m.State),
		"elapsed":        time.Since(start).Round(time.Millisecond),
	}).Debug("channel helper finished")
	return m, nil
}

// parseHelperOutput decodes the first JSON object line carrying both channel lists.
func parseHelperOutput(r io.Reader) (ChannelMapping, error) {
	reader := ndjson.NewReader(r)
	for {
		var out helperOutput
		err := reader.Decode(&out)
		if err == io.EOF {
			return ChannelMapping{}, errors.New("no channel mapping in helper output")
		}
		if err != nil {
			return ChannelMapping{}, fmt.Errorf("failed to read helper output: %w", err)
		}
		if out.Move != nil && out.State != nil {
			return ChannelMapping{Move: out.Move, State: out.State}, nil
		}
	}
}

type helperWrapper struct {
	factory *HelperFactory
	game    string
	options []string
}

func (w *helperWrapper) Game() string { return w.game }

func (w *helperWrapper) Options() []string { return append([]string(nil), w.options...) }

func (w *helperWrapper) MoveSourceChannels(ctx context.Context, source Wrapper) ([]int, error) {
	m, err := w.factory.mapping(ctx, w, source)
	if err != nil {
		return nil, err
	}
	return append([]int(nil), m.Move...), nil
}

func (w *helperWrapper) StateSourceChannels(ctx context.Context, source Wrapper) ([]int, error) {
	m, err := w.factory.mapping(ctx, w, source)
	if err != nil {
		return nil, err
	}
	return append([]int(nil), m.State...), nil
}

func wrapperKey(w Wrapper) string {
	return w.Game() + "\x00" + strings.Join(w.Options(), "\x1f")
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
