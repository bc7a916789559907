package run

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskReport is one task's entry in the timing report.
type TaskReport struct {
	Name     string  `json:"name"`
	Items    int     `json:"items"`
	Secs     float64 `json:"secs"`
	Complete bool    `json:"complete"`
}

// TimingReport is the content of timing.json.
type TimingReport struct {
	RunID string       `json:"run_id"`
	Tasks []TaskReport `json:"tasks"`
}

// Tracker accumulates per-task progress and run warnings. It is safe
// for concurrent use so shard workers can report into one tracker.
type Tracker struct {
	runID string

	mu       sync.Mutex
	tasks    []TaskReport
	warnings []string
}

// NewTracker creates a tracker with a fresh run id.
func NewTracker() *Tracker {
	return &Tracker{runID: uuid.NewString()}
}

// RunID returns the unique id of this run.
func (t *Tracker) RunID() string {
	return t.runID
}

// Record adds a task's item count and elapsed time to the report.
func (t *Tracker) Record(name string, items int, elapsed time.Duration, complete bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tasks = append(t.tasks, TaskReport{
		Name:     name,
		Items:    items,
		Secs:     elapsed.Seconds(),
		Complete: complete,
	})
}

// Warn records a non-fatal problem for the run-level warning summary.
func (t *Tracker) Warn(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.warnings = append(t.warnings, msg)
}

// Warnings returns a copy of the accumulated warnings.
func (t *Tracker) Warnings() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.warnings...)
}

// WriteTiming writes the timing report as JSON.
func (t *Tracker) WriteTiming(path string) error {
	t.mu.Lock()
	report := TimingReport{RunID: t.runID, Tasks: append([]TaskReport(nil), t.tasks...)}
	t.mu.Unlock()

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding timing report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing timing report: %w", err)
	}
	return nil
}

// WriteWarnings writes accumulated warnings, one per line. No file is
// written when there are none.
func (t *Tracker) WriteWarnings(path string) error {
	warnings := t.Warnings()
	if len(warnings) == 0 {
		return nil
	}
	data := strings.Join(warnings, "\n") + "\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return fmt.Errorf("writing warnings: %w", err)
	}
	return nil
}
