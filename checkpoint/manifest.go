package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mzhaom/polygames-crossgame/internal/ndjson"
)

// Status is the outcome of one conversion job.
type Status string

const (
	StatusConverted Status = "converted"
	StatusFailed    Status = "failed"
	StatusResumed   Status = "resumed" // skipped because an earlier run converted it
)

// File names inside a run directory.
const (
	ManifestFileName = "manifest.json"
	JournalFileName  = "jobs.jsonl"
)

// JobRecord captures the outcome of one conversion.
type JobRecord struct {
	Output           string    `json:"output"`
	SourceGame       string    `json:"source_game"`
	SourceOptions    []string  `json:"source_options"`
	SourceCheckpoint string    `json:"source_checkpoint"`
	TargetGame       string    `json:"target_game"`
	TargetOptions    []string  `json:"target_options"`
	Status           Status    `json:"status"`
	ExitCode         int       `json:"exit_code"`
	Error            string    `json:"error,omitempty"`
	Started          time.Time `json:"started"`
	Finished         time.Time `json:"finished"`
}

// Manifest is the persisted record of a batch run.
type Manifest struct {
	Version     string      `json:"version"`
	RunID       string      `json:"run_id"`
	Command     string      `json:"command"`
	Started     time.Time   `json:"started"`
	LastUpdated time.Time   `json:"last_updated"`
	Jobs        []JobRecord `json:"jobs"`
}

// Converted reports whether output was successfully converted in this run.
func (m *Manifest) Converted(output string) bool {
	for _, j := range m.Jobs {
		if j.Output == output && (j.Status == StatusConverted || j.Status == StatusResumed) {
			return true
		}
	}
	return false
}

// Manager persists a run manifest. Every Record rewrites manifest.json and
// appends the record to jobs.jsonl, so a crashed run still leaves a journal.
// It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	runDir   string
	filePath string
	current  *Manifest
	journal  *os.File
	writer   *ndjson.Writer
	readOnly bool
}

// NewManager creates a manager for a fresh run.
func NewManager(dir, runID, command string) *Manager {
	now := time.Now()
	return &Manager{
		runDir:   filepath.Join(dir, runID),
		filePath: filepath.Join(dir, runID, ManifestFileName),
		current: &Manifest{
			Version:     "1.0",
			RunID:       runID,
			Command:     command,
			Started:     now,
			LastUpdated: now,
		},
	}
}

// Resume creates a manager that continues the run stored under dir/runID.
// A run without a manifest starts empty.
func Resume(dir, runID, command string) (*Manager, error) {
	m := NewManager(dir, runID, command)
	prev, err := Load(dir, runID)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		m.current = prev
	}
	return m, nil
}

// ResumeReadOnly is like Resume for a run that must exist, but the manager
// never writes: records only update the in-memory manifest.
func ResumeReadOnly(dir, runID, command string) (*Manager, error) {
	prev, err := Load(dir, runID)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, fmt.Errorf("no run %s under %s", runID, dir)
	}
	m := NewManager(dir, runID, command)
	m.current = prev
	m.readOnly = true
	return m, nil
}

// Record appends a job record and saves the manifest.
func (m *Manager) Record(rec JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current.Jobs = append(m.current.Jobs, rec)
	m.current.LastUpdated = time.Now()
	if m.readOnly {
		return nil
	}

	if err := m.appendJournalLocked(rec); err != nil {
		return err
	}
	return m.saveLocked()
}

// Converted reports whether output has already been converted in this run.
func (m *Manager) Converted(output string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Converted(output)
}

// Current returns a snapshot of the manifest.
func (m *Manager) Current() Manifest {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := *m.current
	snap.Jobs = append([]JobRecord(nil), m.current.Jobs...)
	return snap
}

// Close closes the journal file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.journal == nil {
		return nil
	}
	err := m.journal.Close()
	m.journal = nil
	m.writer = nil
	return err
}

func (m *Manager) appendJournalLocked(rec JobRecord) error {
	if m.writer == nil {
		if err := os.MkdirAll(m.runDir, 0755); err != nil {
			return fmt.Errorf("failed to create run directory: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(m.runDir, JournalFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open job journal: %w", err)
		}
		m.journal = f
		m.writer = ndjson.NewWriter(f)
	}
	if err := m.writer.Write(rec); err != nil {
		return fmt.Errorf("failed to append job journal: %w", err)
	}
	return nil
}

// saveLocked writes the manifest to disk.
func (m *Manager) saveLocked() error {
	if err := os.MkdirAll(m.runDir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	data, err := json.MarshalIndent(m.current, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	// Write then rename so a crash never leaves a truncated manifest.
	tmp := m.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, m.filePath); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// Load reads the manifest of runID from dir. It returns nil, nil when the
// run has no manifest.
func Load(dir, runID string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, runID, ManifestFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &manifest, nil
}

// Exists reports whether runID has a manifest under dir.
func Exists(dir, runID string) bool {
	_, err := os.Stat(filepath.Join(dir, runID, ManifestFileName))
	return err == nil
}

// Delete removes the run directory of runID.
func Delete(dir, runID string) error {
	return os.RemoveAll(filepath.Join(dir, runID))
}
