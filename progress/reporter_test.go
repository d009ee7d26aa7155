package progress

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mzhaom/polygames-crossgame/gamewrapper"
)

func TestLogReporter(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	r := NewLogReporter(log)
	r.Event(NewJobStartEvent("LudiiHex.lud", nil, "LudiiGomoku.lud", nil, "/out/a.pt.gz",
		&gamewrapper.ChannelMapping{Move: []int{1, 0}, State: []int{0}}))
	r.Event(NewJobCompleteEvent("/out/a.pt.gz", 4, time.Second, errors.New("converter exited with failure")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}

	var started map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &started); err != nil {
		t.Fatalf("failed to parse log line: %v", err)
	}
	if started["move_remaps"] != float64(2) {
		t.Errorf("expected 2 move remaps, got %v", started["move_remaps"])
	}

	var failed map[string]interface{}
	if err := json.Unmarshal([]byte(lines[1]), &failed); err != nil {
		t.Fatalf("failed to parse log line: %v", err)
	}
	if failed["level"] != "error" || failed["exit_code"] != float64(4) {
		t.Errorf("expected error entry with exit code 4, got %v", failed)
	}
}

type countingReporter struct {
	events int
	closed bool
}

func (c *countingReporter) Event(Event) { c.events++ }
func (c *countingReporter) Close()      { c.closed = true }

func TestTee(t *testing.T) {
	a, b := &countingReporter{}, &countingReporter{}
	r := Tee(a, b)
	r.Event(NewPassStartEvent("p", 1))
	r.Event(NewPassStartEvent("q", 2))
	r.Close()

	if a.events != 2 || b.events != 2 {
		t.Errorf("expected both reporters to get 2 events, got %d and %d", a.events, b.events)
	}
	if !a.closed || !b.closed {
		t.Error("expected both reporters to be closed")
	}
}
