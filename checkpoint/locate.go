package checkpoint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Filesystem naming conventions of the training jobs.
const (
	// ServerDirPrefix prefixes the per-job directory, "server-<jobid>".
	ServerDirPrefix = "server-"
	// FilePrefix and FileExt frame the epoch in "checkpoint_<epoch>.pt".
	FilePrefix = "checkpoint_"
	FileExt    = ".pt"
)

// ErrNoCheckpoint is returned when a directory holds no usable checkpoint:
// there is no server directory, or the server directory holds no checkpoint
// matching the selector. It is not fatal; callers skip the affected jobs.
var ErrNoCheckpoint = errors.New("no checkpoint found")

// MalformedCheckpointError reports a checkpoint file whose epoch is not an
// integer. This indicates corrupted training output and is fatal.
type MalformedCheckpointError struct {
	Path  string
	Cause error
}

func (e *MalformedCheckpointError) Error() string {
	return fmt.Sprintf("malformed checkpoint name %s: %v", e.Path, e.Cause)
}

func (e *MalformedCheckpointError) Unwrap() error {
	return e.Cause
}

// selectMode identifies how a Selector picks among epochs.
type selectMode int

const (
	modeHighest selectMode = iota
	modeLowest
	modeEpoch
)

// Selector chooses one checkpoint among the epochs found in a server directory.
type Selector struct {
	mode  selectMode
	epoch int
}

var (
	// Highest selects the checkpoint with the highest epoch.
	Highest = Selector{mode: modeHighest}
	// Lowest selects the checkpoint with the lowest epoch, i.e. the initial one.
	Lowest = Selector{mode: modeLowest}
)

// Epoch selects the checkpoint of exactly epoch n.
func Epoch(n int) Selector {
	return Selector{mode: modeEpoch, epoch: n}
}

// ParseSelector parses "highest" (alias "dev"), "lowest" (alias "init"), or an
// epoch number optionally prefixed with "e".
func ParseSelector(s string) (Selector, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "highest", "dev", "best":
		return Highest, nil
	case "lowest", "init":
		return Lowest, nil
	}
	n, err := strconv.Atoi(strings.TrimPrefix(s, "e"))
	if err != nil || n < 0 {
		return Selector{}, fmt.Errorf("invalid checkpoint selector %q (want highest, lowest or an epoch)", s)
	}
	return Epoch(n), nil
}

// String returns the form accepted by ParseSelector.
func (s Selector) String() string {
	switch s.mode {
	case modeLowest:
		return "lowest"
	case modeEpoch:
		return "e" + strconv.Itoa(s.epoch)
	default:
		return "highest"
	}
}

// prefers reports whether epoch candidate beats the current pick.
func (s Selector) prefers(candidate, current int, found bool) bool {
	switch s.mode {
	case modeLowest:
		return !found || candidate < current
	case modeEpoch:
		return candidate == s.epoch
	default:
		return !found || candidate > current
	}
}

// Result describes a located checkpoint.
type Result struct {
	Path      string // absolute path of the checkpoint file
	Epoch     int
	ServerDir string // name of the server directory it was found in
	// ServerDirs is the number of server directories present. When more than
	// one exists the one with the highest job id is used.
	ServerDirs int
}

// Best returns the path of the highest-epoch checkpoint under dir.
func Best(dir string) (string, error) {
	res, err := Locate(dir, Highest)
	if err != nil {
		return "", err
	}
	return res.Path, nil
}

// Locate finds the checkpoint chosen by sel under dir.
//
// dir must contain a "server-<jobid>" subdirectory, which in turn contains
// "checkpoint_<epoch>.pt" files. If several server directories exist the one
// with the highest job id is searched. A missing or unreadable dir is
// returned as a filesystem error; an empty one as ErrNoCheckpoint.
func Locate(dir string, sel Selector) (Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list checkpoint directory: %w", err)
	}

	var servers []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ServerDirPrefix) && isDir(dir, e) {
			servers = append(servers, e.Name())
		}
	}
	if len(servers) == 0 {
		return Result{}, fmt.Errorf("%w: no %s* directory in %s", ErrNoCheckpoint, ServerDirPrefix, dir)
	}

	server := servers[0]
	for _, s := range servers[1:] {
		if jobIDLess(server, s) {
			server = s
		}
	}

	serverPath := filepath.Join(dir, server)
	files, err := os.ReadDir(serverPath)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list server directory: %w", err)
	}

	var (
		best  string
		epoch int
		found bool
	)
	for _, f := range files {
		name := f.Name()
		if !strings.HasPrefix(name, FilePrefix) || !strings.HasSuffix(name, FileExt) || isDir(serverPath, f) {
			continue
		}
		n, err := parseEpoch(name)
		if err != nil {
			return Result{}, &MalformedCheckpointError{Path: filepath.Join(serverPath, name), Cause: err}
		}
		if sel.prefers(n, epoch, found) {
			best, epoch, found = name, n, true
		}
	}
	if !found {
		return Result{}, fmt.Errorf("%w: no %s checkpoint in %s", ErrNoCheckpoint, sel, serverPath)
	}

	path, err := filepath.Abs(filepath.Join(serverPath, best))
	if err != nil {
		return Result{}, fmt.Errorf("failed to resolve checkpoint path: %w", err)
	}
	return Result{Path: path, Epoch: epoch, ServerDir: server, ServerDirs: len(servers)}, nil
}

// parseEpoch extracts the epoch from "checkpoint_<epoch>.pt".
func parseEpoch(name string) (int, error) {
	digits := strings.TrimSuffix(strings.TrimPrefix(name, FilePrefix), FileExt)
	return strconv.Atoi(digits)
}

// isDir reports whether e is a directory, following symlinks. Dangling
// links are not directories.
func isDir(parent string, e os.DirEntry) bool {
	if e.Type()&os.ModeSymlink == 0 {
		return e.IsDir()
	}
	info, err := os.Stat(filepath.Join(parent, e.Name()))
	return err == nil && info.IsDir()
}

// jobIDLess orders server directories by job id. Ids are compared as runs
// of digits and non-digits: digit runs numerically, other runs lexically,
// so "server-12345_3" sorts above "server-99" and below "server-12345_10".
// A digit run sorts above text at the same position.
func jobIDLess(a, b string) bool {
	return compareJobIDs(strings.TrimPrefix(a, ServerDirPrefix), strings.TrimPrefix(b, ServerDirPrefix)) < 0
}

func compareJobIDs(a, b string) int {
	for a != "" && b != "" {
		da, restA := splitRun(a, true)
		db, restB := splitRun(b, true)
		switch {
		case da != "" && db != "":
			if c := compareDigits(da, db); c != 0 {
				return c
			}
		case da != "":
			return 1
		case db != "":
			return -1
		default:
			da, restA = splitRun(a, false)
			db, restB = splitRun(b, false)
			if c := strings.Compare(da, db); c != 0 {
				return c
			}
		}
		a, b = restA, restB
	}
	switch {
	case a != "":
		return 1
	case b != "":
		return -1
	}
	return 0
}

// splitRun splits s after its leading run of digits (or non-digits).
func splitRun(s string, digits bool) (run, rest string) {
	i := 0
	for i < len(s) && (s[i] >= '0' && s[i] <= '9') == digits {
		i++
	}
	return s[:i], s[i:]
}

// compareDigits compares decimal strings of any length.
func compareDigits(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
